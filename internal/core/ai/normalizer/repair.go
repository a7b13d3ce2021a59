package normalizer

import (
	"fmt"
	"strings"

	"chef-session/internal/pkg/common"
)

// ParseError AI 回覆無法轉成結構化資料，Raw 保留原始文字
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "unparseable AI response"
	}
	return fmt.Sprintf("unparseable AI response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// scanState 掃描結果
type scanState struct {
	stack      []byte
	inString   bool
	escaped    bool
	mismatched bool
}

// scan 依序掃描字元，記錄尚未關閉的括號
func scan(s string) scanState {
	var st scanState
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if st.inString {
			switch {
			case st.escaped:
				st.escaped = false
			case ch == '\\':
				st.escaped = true
			case ch == '"':
				st.inString = false
			}
			continue
		}

		switch ch {
		case '"':
			st.inString = true
		case '[', '{':
			st.stack = append(st.stack, ch)
		case ']', '}':
			if n := len(st.stack); n > 0 && st.stack[n-1] == opener(ch) {
				st.stack = st.stack[:n-1]
			} else {
				st.mismatched = true
			}
		}
	}
	return st
}

func opener(closer byte) byte {
	if closer == ']' {
		return '['
	}
	return '{'
}

func closerOf(open byte) byte {
	if open == '[' {
		return ']'
	}
	return '}'
}

// balance 補齊被截斷的 JSON：關閉未結束的字串，去掉懸空的逗號，依相反順序補上結尾符號
func balance(s string) string {
	st := scan(s)
	out := s

	if st.inString {
		if st.escaped {
			out = out[:len(out)-1]
		}
		out += `"`
	}

	out = strings.TrimRight(out, " \t\r\n")
	switch {
	case strings.HasSuffix(out, ","):
		out = strings.TrimRight(out[:len(out)-1], " \t\r\n")
	case strings.HasSuffix(out, ":"):
		out += "null"
	}

	var b strings.Builder
	b.WriteString(out)
	for i := len(st.stack) - 1; i >= 0; i-- {
		b.WriteByte(closerOf(st.stack[i]))
	}
	return b.String()
}

// RepairAndParse 解析候選片段，失敗時先補齊括號，再嘗試為未加引號的鍵補上引號
func RepairAndParse(candidate string) (any, error) {
	var value any
	err := common.ParseJSON(candidate, &value)
	if err == nil {
		return value, nil
	}

	attempts := []string{
		balance(candidate),
		balance(common.QuoteJSONKeys(candidate)),
	}
	for _, attempt := range attempts {
		value = nil
		if perr := common.ParseJSON(attempt, &value); perr == nil {
			return value, nil
		}
	}

	return nil, &ParseError{Raw: candidate, Err: err}
}

// Parse 從原始回覆中取出並解析 JSON，錯誤一律帶上完整原始文字
func Parse(raw string) (any, error) {
	candidate, err := ExtractStructured(raw)
	if err != nil {
		return nil, err
	}

	value, err := RepairAndParse(candidate)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Raw = raw
		}
		return nil, err
	}
	return value, nil
}
