// Package session 保存對話 session：候選食譜、已選食譜與訊息紀錄。
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chef-session/internal/infrastructure/database"
	"chef-session/internal/pkg/common"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Session session 的唯讀檢視
type Session struct {
	ID               string          `json:"context_id"`
	CreatedAt        time.Time       `json:"created_at"`
	Recipes          []common.Recipe `json:"recipes"`
	SelectedRecipeID string          `json:"selected_recipe_id,omitempty"`
}

// Selected 回傳已選食譜的副本，尚未選擇時為 nil
func (s *Session) Selected() *common.Recipe {
	if s.SelectedRecipeID == "" {
		return nil
	}
	for _, r := range s.Recipes {
		if r.ID == s.SelectedRecipeID {
			c := r.Clone()
			return &c
		}
	}
	return nil
}

// Store 以 gorm 實作的 session 儲存
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore 創建 Store
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create 在同一交易中建立 session 與一筆內部紀錄訊息
func (s *Store) Create(ctx context.Context, recipes []common.Recipe) (string, error) {
	now := s.now()
	model := &SessionModel{
		ID:        common.GenerateID(),
		CreatedAt: now,
		Recipes:   RecipeList(common.CloneRecipes(recipes)),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		note := &MessageModel{
			SessionID: model.ID,
			Role:      string(common.RoleInternal),
			Content:   fmt.Sprintf("Session created with recipes: [%s]", strings.Join(common.RecipeTitles(recipes), ", ")),
			Timestamp: now,
		}
		return tx.Create(note).Error
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	common.LogInfo("Session 已建立",
		zap.String("session_id", model.ID),
		zap.Int("食譜數量", len(recipes)),
	)
	return model.ID, nil
}

// Get 讀取 session
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	model, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        model.ID,
		CreatedAt: model.CreatedAt,
		Recipes:   common.CloneRecipes(model.Recipes),
	}
	if model.SelectedRecipeID != nil {
		sess.SelectedRecipeID = *model.SelectedRecipeID
	}
	return sess, nil
}

// Select 記錄使用者選擇的食譜；失敗時不改變原本的選擇
func (s *Store) Select(ctx context.Context, id, recipeID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		found := false
		for _, r := range model.Recipes {
			if r.ID == recipeID {
				found = true
				break
			}
		}
		if !found {
			return common.ErrInvalidSelection
		}

		if err := tx.Model(&SessionModel{}).Where("id = ?", id).Update("selected_recipe_id", recipeID).Error; err != nil {
			return fmt.Errorf("select recipe: %w", err)
		}
		return nil
	})
}

// GetSelected 取得已選食譜；session 不存在回傳 ErrNotFound，尚未選擇回傳 nil
func (s *Store) GetSelected(ctx context.Context, id string) (*common.Recipe, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.SelectedRecipeID == "" {
		return nil, nil
	}

	recipe := sess.Selected()
	if recipe == nil {
		return nil, fmt.Errorf("session %s references unknown recipe %s", id, sess.SelectedRecipeID)
	}
	return recipe, nil
}

// AppendMessage 新增訊息；時間戳不早於該 session 的最後一筆訊息
func (s *Store) AppendMessage(ctx context.Context, id string, role common.Role, content string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.load(ctx, tx, id); err != nil {
			return err
		}

		ts := s.now()
		var last MessageModel
		err := tx.Where("session_id = ?", id).Order("timestamp DESC, id DESC").Limit(1).Find(&last).Error
		if err != nil {
			return fmt.Errorf("read last message: %w", err)
		}
		if last.ID != 0 && last.Timestamp.After(ts) {
			ts = last.Timestamp
		}

		msg := &MessageModel{
			SessionID: id,
			Role:      string(role),
			Content:   content,
			Timestamp: ts,
		}
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		return nil
	})
}

// History 依時間順序列出訊息，可用 roles 篩選
func (s *Store) History(ctx context.Context, id string, roles ...common.Role) ([]common.ChatMessage, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.load(ctx, db, id); err != nil {
		return nil, err
	}

	query := db.Where("session_id = ?", id)
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		query = query.Where("role IN ?", names)
	}

	var models []MessageModel
	if err := query.Order("timestamp ASC, id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]common.ChatMessage, len(models))
	for i, m := range models {
		messages[i] = common.ChatMessage{
			Role:      common.Role(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
		}
	}
	return messages, nil
}

// Destroy 在同一交易中刪除訊息與 session；不存在時不視為錯誤
func (s *Store) Destroy(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&SessionModel{}).Error
	})
	if err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}

	common.LogInfo("Session 已結束", zap.String("session_id", id))
	return nil
}

// Ping 檢查資料庫連線
func (s *Store) Ping(ctx context.Context) error {
	return database.Ping(ctx, s.db)
}

func (s *Store) load(ctx context.Context, db *gorm.DB, id string) (*SessionModel, error) {
	var model SessionModel
	err := db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return &model, nil
}
