package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Pretty 缩进 JSON 文本并保持键顺序；非法 JSON 原样返回。
func Pretty(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !json.Valid([]byte(raw)) {
		return raw
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return buf.String()
}
