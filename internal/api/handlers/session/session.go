// Package session 提供食譜對話 session 的 HTTP 處理器。
package session

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"chef-session/internal/core/ai/image"
	"chef-session/internal/core/recipe"
	"chef-session/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StartRequest JSON 形式的開始請求，image 為 data URI
type StartRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// SelectRequest 選擇食譜請求
type SelectRequest struct {
	RecipeID string `json:"recipe_id"`
}

// ChatRequest 對話請求
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse 對話響應
type ChatResponse struct {
	Reply string `json:"reply"`
}

// MessagesResponse 對話紀錄響應
type MessagesResponse struct {
	Messages []common.ChatMessage `json:"messages"`
}

// Handler session 處理器
type Handler struct {
	service     *recipe.Service
	images      *image.Processor
	showDetails bool
}

// NewHandler 創建 session 處理器；showDetails 為 true 時錯誤響應包含診斷內容
func NewHandler(service *recipe.Service, images *image.Processor, showDetails bool) *Handler {
	return &Handler{
		service:     service,
		images:      images,
		showDetails: showDetails,
	}
}

// Start 由文字或圖片開始新的 session
func (h *Handler) Start(c *gin.Context) {
	in, err := h.parseStartInput(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	common.LogInfo("開始 session 請求",
		zap.String("request_id", requestid.Get(c)),
		zap.Bool("has_text", in.Text != ""),
		zap.Bool("has_image", in.Image != nil),
	)

	result, err := h.service.Start(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Get 取得 session 狀態
func (h *Handler) Get(c *gin.Context) {
	view, err := h.service.Describe(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Messages 取得對話紀錄
func (h *Handler) Messages(c *gin.Context) {
	messages, err := h.service.Transcript(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if messages == nil {
		messages = []common.ChatMessage{}
	}
	c.JSON(http.StatusOK, MessagesResponse{Messages: messages})
}

// Select 選擇食譜
func (h *Handler) Select(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}

	if err := h.service.Select(c.Request.Context(), c.Param("id"), req.RecipeID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Chat 針對已選食譜提問
func (h *Handler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}

	reply, err := h.service.Chat(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}

// End 結束 session
func (h *Handler) End(c *gin.Context) {
	if err := h.service.End(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseStartInput 支援 multipart（text 欄位 + image 檔案）與 JSON 兩種格式
func (h *Handler) parseStartInput(c *gin.Context) (recipe.StartInput, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		return h.parseMultipart(c)
	}

	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return recipe.StartInput{}, bindError(err)
	}

	in := recipe.StartInput{Text: strings.TrimSpace(req.Text)}
	if req.Image != "" {
		img, err := h.images.ProcessDataURI(req.Image)
		if err != nil {
			return recipe.StartInput{}, err
		}
		in.Image = img
	}
	return in, nil
}

func (h *Handler) parseMultipart(c *gin.Context) (recipe.StartInput, error) {
	// FormFile 先解析整個表單，之後才能讀取 text 欄位
	header, err := c.FormFile("image")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		return recipe.StartInput{}, bindError(err)
	}

	in := recipe.StartInput{Text: strings.TrimSpace(c.PostForm("text"))}
	if header == nil {
		return in, nil
	}

	file, err := header.Open()
	if err != nil {
		return recipe.StartInput{}, common.ErrInvalidRequest.WithMessage("failed to open uploaded image").Wrap(err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return recipe.StartInput{}, common.ErrInvalidRequest.WithMessage("failed to read uploaded image").Wrap(err)
	}

	img, err := h.images.Process(data, header.Header.Get("Content-Type"))
	if err != nil {
		return recipe.StartInput{}, err
	}
	in.Image = img
	return in, nil
}

// fail 寫入錯誤響應，5xx 另外記錄錯誤日誌
func (h *Handler) fail(c *gin.Context, err error) {
	ce, ok := common.AsCustomError(err)
	if !ok || ce.Status >= http.StatusInternalServerError {
		common.LogError("Session request failed",
			zap.String("request_id", requestid.Get(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	common.WriteError(c, err, h.showDetails)
}

// bindError 將請求解析錯誤轉為客戶端錯誤，請求體過大時為 413
func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return common.ErrRequestTooLarge
	}
	return common.ErrInvalidRequest.WithMessage("invalid request format").Wrap(err)
}
