package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// The backend (and older builds of it) is inconsistent about field casing:
// the same value may arrive as chat_id, chatId or ChatID depending on the
// endpoint. All tolerant decoding goes through fields so the fallback order
// is declared once: exact snake_case key first, then camelCase, then the
// exported Go spelling.
type fields map[string]json.RawMessage

func newFields(data []byte) (fields, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return fields(m), nil
}

// variants derives the accepted spellings for a snake_case key.
// "chat_id" -> ["chat_id", "chatId", "ChatId", "ChatID"].
func variants(snake string) []string {
	parts := strings.Split(snake, "_")
	camel := parts[0]
	pascal := ""
	exported := ""
	for i, p := range parts {
		if p == "" {
			continue
		}
		title := strings.ToUpper(p[:1]) + p[1:]
		if i > 0 {
			camel += title
		}
		pascal += title
		if p == "id" {
			exported += "ID"
		} else {
			exported += title
		}
	}
	out := []string{snake, camel}
	if pascal != camel {
		out = append(out, pascal)
	}
	if exported != pascal {
		out = append(out, exported)
	}
	return out
}

func (f fields) raw(snake string) (json.RawMessage, bool) {
	for _, key := range variants(snake) {
		if v, ok := f[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// stringOf returns the string value for key, or "". Numbers are stringified.
func (f fields) stringOf(key string) string {
	raw, ok := f.raw(key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

func (f fields) stringOr(key, fallback string) string {
	if s := f.stringOf(key); s != "" {
		return s
	}
	return fallback
}

// int64Of returns the integer value for key, accepting numeric strings too.
func (f fields) int64Of(key string) int64 {
	raw, ok := f.raw(key)
	if !ok {
		return 0
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return parsed
		}
	}
	return 0
}

func (f fields) boolOf(key string) bool {
	raw, ok := f.raw(key)
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	return false
}
