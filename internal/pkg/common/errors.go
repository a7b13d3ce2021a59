package common

import (
	"errors"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Details string // 診斷用內容，例如 AI 原始回應
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 讓 errors.Is / errors.As 能看到原始錯誤
func (e *CustomError) Unwrap() error {
	return e.Err
}

// Is 以錯誤代碼比對，預定義錯誤可直接作為 errors.Is 的目標
func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap 以同一錯誤代碼包裝原始錯誤，不修改預定義錯誤本身
func (e *CustomError) Wrap(err error) *CustomError {
	c := *e
	c.Err = err
	return &c
}

// WithMessage 替換錯誤信息
func (e *CustomError) WithMessage(message string) *CustomError {
	c := *e
	c.Message = message
	return &c
}

// WithDetails 附加診斷內容
func (e *CustomError) WithDetails(details string) *CustomError {
	c := *e
	c.Details = details
	return &c
}

// Response 轉換為 API 錯誤響應
func (e *CustomError) Response(withDetails bool) ErrorResponse {
	resp := ErrorResponse{Code: e.Code, Message: e.Message}
	if withDetails {
		resp.Details = e.Details
		if resp.Details == "" && e.Err != nil {
			resp.Details = e.Err.Error()
		}
	}
	return resp
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// AsCustomError 取出錯誤鏈中的 CustomError
func AsCustomError(err error) (*CustomError, bool) {
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// NewUpstreamFormatError AI 有回覆但內容無法解析，保留原始文字以便排查
func NewUpstreamFormatError(raw string, err error) *CustomError {
	return ErrUpstreamFormat.Wrap(err).WithDetails(raw)
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest     = "INVALID_REQUEST"      // 400
	ErrCodeNotFound           = "NOT_FOUND"            // 404
	ErrCodeInvalidSelection   = "INVALID_SELECTION"    // 404
	ErrCodeNoRecipeSelected   = "NO_RECIPE_SELECTED"   // 404
	ErrCodeRequestTooLarge    = "REQUEST_TOO_LARGE"    // 413
	ErrCodeNoIngredientsFound = "NO_INGREDIENTS_FOUND" // 422
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"    // 429

	// 服務器錯誤 (5xx)
	ErrCodeInternalError       = "INTERNAL_ERROR"       // 500
	ErrCodeUpstreamFormat      = "UPSTREAM_FORMAT"      // 502
	ErrCodeNoRecipesGenerated  = "NO_RECIPES_GENERATED" // 502
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE" // 503
	ErrCodeGatewayTimeout      = "GATEWAY_TIMEOUT"      // 504
)

// 預定義錯誤
var (
	// 客戶端錯誤
	ErrInvalidRequest     = NewError(ErrCodeInvalidRequest, "invalid request", http.StatusBadRequest, nil)
	ErrNotFound           = NewError(ErrCodeNotFound, "session not found", http.StatusNotFound, nil)
	ErrInvalidSelection   = NewError(ErrCodeInvalidSelection, "recipe not found in this session", http.StatusNotFound, nil)
	ErrNoRecipeSelected   = NewError(ErrCodeNoRecipeSelected, "no recipe selected for this session", http.StatusNotFound, nil)
	ErrRequestTooLarge    = NewError(ErrCodeRequestTooLarge, "request body too large", http.StatusRequestEntityTooLarge, nil)
	ErrNoIngredientsFound = NewError(ErrCodeNoIngredientsFound, "no ingredients found in the input", http.StatusUnprocessableEntity, nil)
	ErrTooManyRequests    = NewError(ErrCodeTooManyRequests, "too many requests", http.StatusTooManyRequests, nil)

	// 服務器錯誤
	ErrInternalError       = NewError(ErrCodeInternalError, "internal server error", http.StatusInternalServerError, nil)
	ErrUpstreamFormat      = NewError(ErrCodeUpstreamFormat, "AI service returned an unreadable response", http.StatusBadGateway, nil)
	ErrNoRecipesGenerated  = NewError(ErrCodeNoRecipesGenerated, "AI service generated no recipes", http.StatusBadGateway, nil)
	ErrUpstreamUnavailable = NewError(ErrCodeUpstreamUnavailable, "AI service unavailable", http.StatusServiceUnavailable, nil)
	ErrGatewayTimeout      = NewError(ErrCodeGatewayTimeout, "request timeout", http.StatusGatewayTimeout, nil)
)
