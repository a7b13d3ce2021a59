// Package prompt 提供送給 AI 的提示詞模板與語言判斷。
package prompt

import (
	"fmt"

	"chef-session/internal/pkg/common"
)

// Language 回覆語言
type Language string

const (
	English    Language = "en"
	Indonesian Language = "id"
)

const extractTextTemplate = `You extract cooking ingredients from free text.

Rules:
- Read the user's text and list every ingredient it mentions.
- Reply with a JSON array of ingredient names only, for example ["eggs", "sugar", "flour"].
- Leave out quantities, units and any explanation.
- Keep the language of the input (English or Indonesian). Use English when unsure.

Text:
%s`

const extractImageTemplate = `You identify cooking ingredients in a photo.

Rules:
- Look at the attached image and read any visible labels.
- Reply with a JSON array of ingredient names only, for example ["tomato", "lettuce", "carrot"].
- No explanation and no text outside the array.
- If the image contains text, keep its language.`

const imageHintTemplate = `The user also wrote: %s`

const generateTemplateEN = `You are a recipe writer.

Create 3 different recipes that use the ingredients below.
Reply with a JSON array only. Every element must look like:
{"title": "<recipe title>", "ingredients": ["<ingredient>", ...], "instructions_preview": "<one or two sentence preview>"}
Write in English. Do not add notes outside the array.

Ingredients: %s`

const generateTemplateID = `Anda adalah penulis resep.

Buat 3 resep berbeda yang memakai bahan-bahan di bawah ini.
Balas hanya dengan array JSON. Setiap elemen harus berbentuk:
{"title": "<judul resep>", "ingredients": ["<bahan>", ...], "instructions_preview": "<ringkasan cara memasak>"}
Gunakan Bahasa Indonesia. Jangan menambahkan catatan di luar array.

Bahan: %s`

const chatTemplateEN = `You are a cooking assistant helping with one recipe.

Recipe:
- Title: %s
- Ingredients: %s
- Instructions preview: %s

Rules:
- Answer using this recipe as context.
- Reply in the user's language. Use English when unclear.
- If the question has nothing to do with the recipe, reply: "Sorry, I can only help with this recipe."
Keep answers short and practical.`

const chatTemplateID = `Anda adalah asisten memasak untuk satu resep.

Resep:
- Judul: %s
- Bahan: %s
- Ringkasan cara memasak: %s

Aturan:
- Jawab berdasarkan resep ini.
- Balas dalam bahasa pengguna.
- Jika pertanyaan tidak berhubungan dengan resep, balas: "Maaf, saya hanya bisa membantu dengan resep ini."
Jawab dengan singkat dan jelas.`

// ExtractText 從文字擷取食材的提示詞
func ExtractText(text string) string {
	return fmt.Sprintf(extractTextTemplate, text)
}

// ExtractImage 從圖片擷取食材的提示詞
func ExtractImage() string {
	return extractImageTemplate
}

// ImageHint 圖片附帶的使用者文字
func ImageHint(text string) string {
	return fmt.Sprintf(imageHintTemplate, text)
}

// GenerateRecipes 生成食譜的提示詞
func GenerateRecipes(lang Language, ingredients []string) string {
	tmpl := generateTemplateEN
	if lang == Indonesian {
		tmpl = generateTemplateID
	}
	return fmt.Sprintf(tmpl, common.FormatIngredients(ingredients))
}

// ChatSystem 對話的系統提示詞，帶入選定的食譜
func ChatSystem(lang Language, recipe common.Recipe) string {
	tmpl := chatTemplateEN
	if lang == Indonesian {
		tmpl = chatTemplateID
	}
	return fmt.Sprintf(tmpl,
		recipe.Title,
		common.FormatIngredients(recipe.Ingredients),
		recipe.InstructionsPreview,
	)
}
