package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"chef-session/internal/core/ai/provider"
	"chef-session/internal/infrastructure/config"
	"chef-session/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client OpenRouter API 客戶端
type Client struct {
	client *resty.Client
	config config.OpenRouterConfig
}

var _ provider.Provider = (*Client)(nil)

// completionResponse OpenRouter 響應結構
type completionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage provider.Usage `json:"usage"`
}

// errorResponse 表示 API 錯誤
type errorResponse struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// NewClient 創建新的 OpenRouter 客戶端
func NewClient(cfg config.OpenRouterConfig) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("HTTP-Referer", cfg.Referer).
		SetHeader("X-Title", cfg.Title)

	return &Client{
		client: client,
		config: cfg,
	}
}

// ChatCompletion 發送對話請求，回傳第一個選項的內容
func (c *Client) ChatCompletion(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	if req.Model == "" {
		req.Model = c.config.Model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	hasImage := false
	for _, m := range req.Messages {
		if m.HasImage() {
			hasImage = true
			break
		}
	}

	common.LogDebug("Sending request to OpenRouter",
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Bool("has_image", hasImage),
	)

	start := time.Now()
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/completions")
	if err != nil {
		common.LogAICall(req.Model, time.Since(start), err)
		return nil, &provider.Error{Kind: provider.ErrUnavailable, Err: err}
	}

	body := sanitizeBody(resp.Body())

	if !resp.IsSuccess() {
		var apiErr errorResponse
		msg := body
		if json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		err := &provider.Error{
			Kind:   provider.ErrUnavailable,
			Status: resp.StatusCode(),
			Body:   body,
			Err:    errors.New(common.Truncate(msg, 500)),
		}
		common.LogAICall(req.Model, time.Since(start), err)
		return nil, err
	}

	var result completionResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		err := &provider.Error{Kind: provider.ErrFormat, Status: resp.StatusCode(), Body: body, Err: err}
		common.LogAICall(req.Model, time.Since(start), err)
		return nil, err
	}

	if len(result.Choices) == 0 {
		err := &provider.Error{Kind: provider.ErrFormat, Status: resp.StatusCode(), Body: body, Err: errors.New("no choices in response")}
		common.LogAICall(req.Model, time.Since(start), err)
		return nil, err
	}

	common.LogAICall(req.Model, time.Since(start), nil)

	return &provider.Response{
		Content: result.Choices[0].Message.Content,
		Model:   result.Model,
		Usage:   result.Usage,
	}, nil
}

// Close 關閉客戶端
func (c *Client) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}

// sanitizeBody 移除回應中的圖片資料，避免寫入日誌
func sanitizeBody(body []byte) string {
	s := string(body)
	if strings.Contains(s, "data:image/") || strings.Contains(s, ";base64,") {
		return "[IMAGE_DATA_REMOVED]"
	}
	return s
}
