package session

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"chef-session/internal/pkg/common"

	"gorm.io/gorm"
)

// RecipeList 以 JSON 存放的食譜快照
type RecipeList []common.Recipe

// Value 實作 driver.Valuer
func (r RecipeList) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan 實作 sql.Scanner
func (r *RecipeList) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*r = RecipeList{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported recipe list type %T", src)
	}
	return json.Unmarshal(data, r)
}

// SessionModel sessions 資料表
type SessionModel struct {
	ID               string         `gorm:"primaryKey;size:32"`
	CreatedAt        time.Time      `gorm:"not null"`
	SelectedRecipeID *string        `gorm:"size:64"`
	Recipes          RecipeList     `gorm:"type:text;not null"`
	Messages         []MessageModel `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

// TableName 資料表名稱
func (SessionModel) TableName() string {
	return "sessions"
}

// MessageModel messages 資料表
type MessageModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"size:32;not null;index:idx_messages_session_ts,priority:1"`
	Role      string    `gorm:"size:32;not null"`
	Content   string    `gorm:"type:text;not null"`
	Timestamp time.Time `gorm:"not null;index:idx_messages_session_ts,priority:2"`
}

// TableName 資料表名稱
func (MessageModel) TableName() string {
	return "messages"
}

// Migrate 建立或更新資料表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&SessionModel{}, &MessageModel{}); err != nil {
		return fmt.Errorf("migrate session tables: %w", err)
	}
	return nil
}
