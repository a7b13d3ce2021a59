package recipe

import (
	"context"
	"strings"

	"chef-session/internal/pkg/common"
	"chef-session/internal/pkg/keylock"

	"go.uber.org/zap"
)

// Service 食譜對話流程：擷取食材 → 生成食譜 → 選擇 → 對話 → 結束
type Service struct {
	gateway Gateway
	store   SessionStore
	locks   *keylock.KeyLock
}

// NewService 創建食譜對話服務
func NewService(gateway Gateway, store SessionStore) *Service {
	return &Service{
		gateway: gateway,
		store:   store,
		locks:   keylock.New(),
	}
}

// Start 由文字或圖片開始新的 session
func (s *Service) Start(ctx context.Context, in StartInput) (*StartResult, error) {
	if strings.TrimSpace(in.Text) == "" && in.Image == nil {
		return nil, common.ErrInvalidRequest.WithMessage("either text or image is required")
	}

	ingredients, err := s.gateway.ExtractIngredients(ctx, in.Text, in.Image)
	if err != nil {
		return nil, err
	}
	if len(ingredients) == 0 {
		return nil, common.ErrNoIngredientsFound
	}

	recipes, err := s.gateway.GenerateRecipes(ctx, ingredients)
	if err != nil {
		return nil, err
	}
	if len(recipes) == 0 {
		return nil, common.ErrNoRecipesGenerated
	}

	id, err := s.store.Create(ctx, recipes)
	if err != nil {
		return nil, err
	}

	common.LogInfo("Session 開始",
		zap.String("session_id", id),
		zap.Strings("食材", ingredients),
		zap.Int("食譜數量", len(recipes)),
	)
	return &StartResult{ContextID: id, Recipes: recipes}, nil
}

// Select 選擇食譜
func (s *Service) Select(ctx context.Context, id, recipeID string) error {
	if strings.TrimSpace(recipeID) == "" {
		return common.ErrInvalidRequest.WithMessage("recipe_id is required")
	}
	return s.store.Select(ctx, id, recipeID)
}

// Chat 針對已選食譜提問，同一 session 的對話依序處理
//
// 使用者訊息先寫入；上游失敗時保留該訊息，不寫入回覆。
func (s *Service) Chat(ctx context.Context, id, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", common.ErrInvalidRequest.WithMessage("message is required")
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	recipe, err := s.store.GetSelected(ctx, id)
	if err != nil {
		return "", err
	}
	if recipe == nil {
		return "", common.ErrNoRecipeSelected
	}

	if err := s.store.AppendMessage(ctx, id, common.RoleUser, message); err != nil {
		return "", err
	}

	history, err := s.store.History(ctx, id, common.VisibleRoles...)
	if err != nil {
		return "", err
	}

	reply, err := s.gateway.AnswerQuestion(ctx, *recipe, message, history)
	if err != nil {
		common.LogWarn("回答問題失敗",
			zap.String("session_id", id),
			zap.Error(err),
		)
		return "", err
	}

	if err := s.store.AppendMessage(ctx, id, common.RoleAssistant, reply); err != nil {
		return "", err
	}
	return reply, nil
}

// End 結束 session，重複呼叫不會出錯
func (s *Service) End(ctx context.Context, id string) error {
	return s.store.Destroy(ctx, id)
}

// Describe 取得 session 狀態
func (s *Service) Describe(ctx context.Context, id string) (*View, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	state := StateCreated
	if sess.SelectedRecipeID != "" {
		state = StateRecipeSelected
	}
	return &View{Session: sess, State: state}, nil
}

// Transcript 取得使用者與助理的對話紀錄
func (s *Service) Transcript(ctx context.Context, id string) ([]common.ChatMessage, error) {
	return s.store.History(ctx, id, common.VisibleRoles...)
}
