package common

import (
	"fmt"
	"strings"
	"time"
)

// Role 訊息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	// RoleInternal 內部紀錄，不會送給 AI
	RoleInternal Role = "system_internal"
)

// VisibleRoles 對話中 AI 可見的角色
var VisibleRoles = []Role{RoleUser, RoleAssistant}

// Recipe 食譜快照，建立後不再變動
type Recipe struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Ingredients         []string `json:"ingredients"`
	InstructionsPreview string   `json:"instructions_preview"`
}

// Clone 深拷貝，避免呼叫端修改共用的切片
func (r Recipe) Clone() Recipe {
	c := r
	if r.Ingredients != nil {
		c.Ingredients = make([]string, len(r.Ingredients))
		copy(c.Ingredients, r.Ingredients)
	}
	return c
}

// CloneRecipes 深拷貝食譜列表
func CloneRecipes(recipes []Recipe) []Recipe {
	if recipes == nil {
		return nil
	}
	out := make([]Recipe, len(recipes))
	for i, r := range recipes {
		out[i] = r.Clone()
	}
	return out
}

// RecipeTitles 取出所有食譜標題
func RecipeTitles(recipes []Recipe) []string {
	titles := make([]string, 0, len(recipes))
	for _, r := range recipes {
		title := r.Title
		if title == "" {
			title = "N/A"
		}
		titles = append(titles, title)
	}
	return titles
}

// ChatMessage 對話訊息
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ImageInput 上傳的圖片
type ImageInput struct {
	Data      []byte
	MediaType string
}

// DataURI 轉為 data URI，供多模態請求使用
func (img *ImageInput) DataURI() string {
	mediaType := img.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mediaType, EncodeBase64(img.Data))
}

// FormatIngredients 格式化食材列表
func FormatIngredients(ingredients []string) string {
	quoted := make([]string, len(ingredients))
	for i, ing := range ingredients {
		quoted[i] = fmt.Sprintf("%q", ing)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
