package prompt

import (
	"strings"
	"unicode"
)

// Classifier 判斷文字語言
type Classifier interface {
	Classify(text string) Language
}

// DefaultIndonesianKeywords 常見的印尼語詞彙
var DefaultIndonesianKeywords = []string{
	"apa", "bagaimana", "saya", "kamu", "ini", "itu", "kalo", "sambal", "bumbu",
}

// KeywordClassifier 以關鍵字判斷是否為印尼語，只是近似判斷
//
// 以詞為單位比對，避免 "zucchini" 因包含 "ini" 而被誤判。
type KeywordClassifier struct {
	keywords map[string]struct{}
}

// NewKeywordClassifier 創建關鍵字分類器，未指定關鍵字時使用預設值
func NewKeywordClassifier(keywords ...string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = DefaultIndonesianKeywords
	}
	set := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		set[strings.ToLower(kw)] = struct{}{}
	}
	return &KeywordClassifier{keywords: set}
}

// Classify 任一詞命中即視為印尼語
func (k *KeywordClassifier) Classify(text string) Language {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if _, ok := k.keywords[tok]; ok {
			return Indonesian
		}
	}
	return English
}
