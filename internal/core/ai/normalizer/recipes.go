package normalizer

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// RawRecipe AI 產生的食譜，尚未指派 ID
type RawRecipe struct {
	Title               string
	Ingredients         []string
	InstructionsPreview string
}

const recipeSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["title", "ingredients"],
    "properties": {
      "title": {"type": "string"},
      "ingredients": {
        "type": "array",
        "items": {"type": ["string", "object"]}
      },
      "instructions_preview": {"type": ["string", "null"]}
    }
  }
}`

var recipeSchemaLoader = gojsonschema.NewStringLoader(recipeSchemaJSON)

// DecodeRecipes 依 schema 驗證解析後的食譜列表並轉換為 RawRecipe
func DecodeRecipes(value any) ([]RawRecipe, error) {
	// 部分模型會包一層 {"recipes": [...]}
	if obj, ok := value.(map[string]any); ok {
		if inner, ok := obj["recipes"]; ok {
			value = inner
		}
	}

	result, err := gojsonschema.Validate(recipeSchemaLoader, gojsonschema.NewGoLoader(value))
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("validate recipes: %w", err)}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, &ParseError{Err: fmt.Errorf("recipes do not match schema: %s", strings.Join(msgs, "; "))}
	}

	items := value.([]any)
	recipes := make([]RawRecipe, 0, len(items))
	for _, item := range items {
		obj := item.(map[string]any)

		ingredients, err := NormalizeIngredients(obj["ingredients"])
		if err != nil {
			return nil, err
		}

		preview, _ := obj["instructions_preview"].(string)
		recipes = append(recipes, RawRecipe{
			Title:               strings.TrimSpace(obj["title"].(string)),
			Ingredients:         ingredients,
			InstructionsPreview: strings.TrimSpace(preview),
		})
	}
	return recipes, nil
}
