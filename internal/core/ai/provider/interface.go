package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// 內容片段類型
const (
	PartText  = "text"
	PartImage = "image_url"
)

// ImageURL 圖片片段
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ContentPart 多模態內容片段
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// Message 表示與 AI 模型的對話消息
type Message struct {
	Role  string
	Parts []ContentPart
}

// TextMessage 純文字消息
func TextMessage(role, text string) Message {
	return Message{Role: role, Parts: []ContentPart{{Type: PartText, Text: text}}}
}

// MarshalJSON 只有單一文字片段時輸出字串，否則輸出片段列表
func (m Message) MarshalJSON() ([]byte, error) {
	type wire struct {
		Role    string `json:"role"`
		Content any    `json:"content"`
	}
	if len(m.Parts) == 1 && m.Parts[0].Type == PartText {
		return json.Marshal(wire{Role: m.Role, Content: m.Parts[0].Text})
	}
	return json.Marshal(wire{Role: m.Role, Content: m.Parts})
}

// Text 合併所有文字片段
func (m Message) Text() string {
	var text string
	for _, p := range m.Parts {
		if p.Type == PartText {
			text += p.Text
		}
	}
	return text
}

// HasImage 是否包含圖片片段
func (m Message) HasImage() bool {
	for _, p := range m.Parts {
		if p.Type == PartImage {
			return true
		}
	}
	return false
}

// Request 表示發送到 AI 提供者的請求
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Usage token 使用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response 表示從 AI 提供者收到的響應
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Provider 定義 AI 提供者介面
type Provider interface {
	// ChatCompletion 送出對話並取得第一個回覆
	ChatCompletion(ctx context.Context, req *Request) (*Response, error)

	// Close 關閉提供者連接
	Close() error
}

// 上游錯誤的兩種類別
var (
	// ErrUnavailable 網路錯誤、逾時或非 2xx 狀態
	ErrUnavailable = errors.New("ai provider unavailable")
	// ErrFormat 有回應但格式不符
	ErrFormat = errors.New("ai provider returned malformed response")
)

// Error 帶有原始回應內容的上游錯誤
type Error struct {
	Kind   error
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is 以類別比對，errors.Is(err, ErrUnavailable) 可直接使用
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}
