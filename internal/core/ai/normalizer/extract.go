// Package normalizer 把 AI 的自由文字回覆整理成可解析的結構化資料。
//
// 處理順序為 ExtractStructured → RepairAndParse → NormalizeIngredients / DecodeRecipes，
// 任一步失敗都回傳 *ParseError，不會把錯誤吞成空資料。
package normalizer

import (
	"errors"
	"strings"
)

const fence = "```"

// ExtractStructured 從回覆中取出 JSON 片段
//
// 有 ``` 區塊時只看區塊內容；找第一個 [ 或 { 與最後一個同類的結尾符號。
// 若片段本身不平衡（回覆被截斷），則一路取到文字結尾，交給 RepairAndParse 補齊。
func ExtractStructured(raw string) (string, error) {
	text := fencedInterior(raw)

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return "", &ParseError{Raw: raw, Err: errors.New("no JSON array or object found")}
	}

	closer := byte(']')
	if text[start] == '{' {
		closer = '}'
	}

	end := strings.LastIndexByte(text, closer)
	if end > start {
		candidate := text[start : end+1]
		if isBalanced(candidate) {
			return candidate, nil
		}
	}

	return strings.TrimSpace(text[start:]), nil
}

// fencedInterior 取出第一個 ``` 區塊的內容，沒有區塊時原樣返回
func fencedInterior(raw string) string {
	open := strings.Index(raw, fence)
	if open < 0 {
		return raw
	}

	body := raw[open+len(fence):]
	// 跳過語言標記，例如 ```json
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isLanguageTag(body[:nl]) {
		body = body[nl+1:]
	}

	if end := strings.Index(body, fence); end >= 0 {
		return strings.TrimSpace(body[:end])
	}
	// 沒有結尾的區塊視為被截斷
	return strings.TrimSpace(body)
}

func isLanguageTag(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

// isBalanced 檢查括號是否成對，忽略字串內的字元
func isBalanced(s string) bool {
	st := scan(s)
	return !st.inString && !st.mismatched && len(st.stack) == 0
}
