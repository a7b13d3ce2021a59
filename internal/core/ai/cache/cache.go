package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"chef-session/internal/pkg/common"
)

// RecipeCache 依食材指紋快取生成的食譜，讀寫皆為副本
type RecipeCache interface {
	Get(ctx context.Context, key string) ([]common.Recipe, bool, error)
	Set(ctx context.Context, key string, recipes []common.Recipe) error
	Purge(ctx context.Context) error
	Close() error
}

// Fingerprint 食材指紋：排序並去除完全相同的名稱後取 SHA-256，區分大小寫
func Fingerprint(ingredients []string) string {
	names := make([]string, len(ingredients))
	copy(names, ingredients)
	sort.Strings(names)

	unique := names[:0]
	for i, name := range names {
		if i > 0 && name == names[i-1] {
			continue
		}
		unique = append(unique, name)
	}

	// 以 NUL 分隔，避免 ["ab","c"] 與 ["a","bc"] 相同
	hash := sha256.Sum256([]byte(strings.Join(unique, "\x00")))
	return hex.EncodeToString(hash[:])
}
