package normalizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStructuredFencedBlock(t *testing.T) {
	raw := "Here are your ingredients:\n```json\n[\"egg\", \"flour\"]\n```\nEnjoy!"

	got, err := ExtractStructured(raw)
	require.NoError(t, err)
	assert.Equal(t, `["egg", "flour"]`, got)
}

func TestExtractStructuredSurroundingProse(t *testing.T) {
	raw := `Sure! {"ingredients": ["tomato"]} Let me know if you need more.`

	got, err := ExtractStructured(raw)
	require.NoError(t, err)
	assert.Equal(t, `{"ingredients": ["tomato"]}`, got)
}

func TestExtractStructuredNoBrackets(t *testing.T) {
	_, err := ExtractStructured("I could not find any ingredients in this photo.")

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "I could not find any ingredients in this photo.", pe.Raw)
}

func TestRepairTruncatedClosers(t *testing.T) {
	full := `[{"title":"Pancakes","ingredients":["egg","flour"]},{"title":"Cookies","ingredients":["sugar"]}]`

	want, err := RepairAndParse(full)
	require.NoError(t, err)

	// 最外層到最深處共有 3 層括號
	for k := 0; k <= 3; k++ {
		truncated := full[:len(full)-k]

		candidate, err := ExtractStructured("Result:\n" + truncated)
		require.NoError(t, err, "k=%d", k)

		got, err := RepairAndParse(candidate)
		require.NoError(t, err, "k=%d", k)
		assert.Equal(t, want, got, "k=%d", k)
	}
}

func TestRepairAndParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"unterminated string", `["egg", "flo`, []any{"egg", "flo"}},
		{"trailing comma", `["egg", "flour",`, []any{"egg", "flour"}},
		{"dangling key", `{"title":`, map[string]any{"title": nil}},
		{"unquoted keys", `[{title: "Soup"}]`, []any{map[string]any{"title": "Soup"}}},
		{"nested order", `{"a":[{"b":["c"`, map[string]any{"a": []any{map[string]any{"b": []any{"c"}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RepairAndParse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseKeepsRawTextOnFailure(t *testing.T) {
	raw := "Sorry: [this is not json at all"

	_, err := Parse(raw)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, raw, pe.Raw)
}

func TestNormalizeIngredients(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{"strings", []any{"egg", " flour "}, []string{"egg", "flour"}},
		{
			"mixed records",
			[]any{
				map[string]any{"nama_bahan": "bawang merah"},
				map[string]any{"ingredient": "garlic"},
				map[string]any{"name": "salt", "quantity": "1 tsp"},
				"pepper",
			},
			[]string{"bawang merah", "garlic", "salt", "pepper"},
		},
		{"key precedence", []any{map[string]any{"name": "b", "nama_bahan": "a"}}, []string{"a"}},
		{"drops unusable", []any{42.0, map[string]any{"qty": "1"}, "", "rice"}, []string{"rice"}},
		{"wrapped object", map[string]any{"ingredients": []any{"milk"}}, []string{"milk"}},
		{"empty list", []any{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeIngredients(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIngredientsNotAList(t *testing.T) {
	_, err := NormalizeIngredients("egg, flour")

	var pe *ParseError
	assert.True(t, errors.As(err, &pe))
}

func TestDecodeRecipes(t *testing.T) {
	value, err := Parse("```json\n" + `[
		{"title": "Pancakes", "ingredients": ["egg", {"name": "flour"}], "instructions_preview": "Whisk and fry."},
		{"title": "Meringue", "ingredients": ["egg white", "sugar"]}
	]` + "\n```")
	require.NoError(t, err)

	recipes, err := DecodeRecipes(value)
	require.NoError(t, err)
	require.Len(t, recipes, 2)

	assert.Equal(t, RawRecipe{
		Title:               "Pancakes",
		Ingredients:         []string{"egg", "flour"},
		InstructionsPreview: "Whisk and fry.",
	}, recipes[0])
	assert.Equal(t, "Meringue", recipes[1].Title)
	assert.Empty(t, recipes[1].InstructionsPreview)
}

func TestDecodeRecipesWrapped(t *testing.T) {
	value, err := Parse(`{"recipes": [{"title": "Toast", "ingredients": ["bread"]}]}`)
	require.NoError(t, err)

	recipes, err := DecodeRecipes(value)
	require.NoError(t, err)
	require.Len(t, recipes, 1)
	assert.Equal(t, "Toast", recipes[0].Title)
}

func TestDecodeRecipesSchemaViolation(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not a list", `"pancakes"`},
		{"missing title", `[{"ingredients": ["egg"]}]`},
		{"ingredients not a list", `[{"title": "Soup", "ingredients": "water"}]`},
		{"title not a string", `[{"title": 7, "ingredients": []}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := RepairAndParse(tt.input)
			require.NoError(t, err)

			_, err = DecodeRecipes(value)
			var pe *ParseError
			assert.True(t, errors.As(err, &pe))
		})
	}
}
