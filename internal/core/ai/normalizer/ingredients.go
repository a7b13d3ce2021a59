package normalizer

import (
	"fmt"
	"strings"
)

// ingredientKeys 物件形式的食材依序檢查的欄位
var ingredientKeys = []string{"nama_bahan", "ingredient", "name"}

// NormalizeIngredients 將食材列表統一為字串
//
// 元素可以是字串或物件；物件取第一個有值的 ingredientKeys 欄位，其餘元素略過。
// 頂層為 {"ingredients": [...]} 時會先取出內層列表。
func NormalizeIngredients(value any) ([]string, error) {
	if obj, ok := value.(map[string]any); ok {
		if inner, ok := obj["ingredients"]; ok {
			value = inner
		}
	}

	items, ok := value.([]any)
	if !ok {
		return nil, &ParseError{Err: fmt.Errorf("expected a list of ingredients, got %T", value)}
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		if name, ok := ingredientName(item); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

func ingredientName(item any) (string, bool) {
	switch v := item.(type) {
	case string:
		name := strings.TrimSpace(v)
		return name, name != ""
	case map[string]any:
		for _, key := range ingredientKeys {
			if s, ok := v[key].(string); ok {
				if name := strings.TrimSpace(s); name != "" {
					return name, true
				}
			}
		}
	}
	return "", false
}
