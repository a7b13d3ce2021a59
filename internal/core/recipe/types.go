package recipe

import (
	"context"

	"chef-session/internal/core/session"
	"chef-session/internal/pkg/common"
)

// State session 狀態
type State string

const (
	StateCreated        State = "created"
	StateRecipeSelected State = "recipe_selected"
)

// StartInput 開始 session 的輸入，文字與圖片至少一項
type StartInput struct {
	Text  string
	Image *common.ImageInput
}

// StartResult 開始 session 的結果
type StartResult struct {
	ContextID string          `json:"context_id"`
	Recipes   []common.Recipe `json:"recipes"`
}

// View session 檢視
type View struct {
	*session.Session
	State State `json:"state"`
}

// Gateway AI 能力
type Gateway interface {
	ExtractIngredients(ctx context.Context, text string, img *common.ImageInput) ([]string, error)
	GenerateRecipes(ctx context.Context, ingredients []string) ([]common.Recipe, error)
	AnswerQuestion(ctx context.Context, recipe common.Recipe, question string, history []common.ChatMessage) (string, error)
}

// SessionStore session 儲存
type SessionStore interface {
	Create(ctx context.Context, recipes []common.Recipe) (string, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Select(ctx context.Context, id, recipeID string) error
	GetSelected(ctx context.Context, id string) (*common.Recipe, error)
	AppendMessage(ctx context.Context, id string, role common.Role, content string) error
	History(ctx context.Context, id string, roles ...common.Role) ([]common.ChatMessage, error)
	Destroy(ctx context.Context, id string) error
}
