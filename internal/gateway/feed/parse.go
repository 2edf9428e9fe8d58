package feed

import (
	"fmt"
	"strings"
	"time"

	"newsdriven/internal/types"

	"github.com/tidwall/gjson"
)

var (
	listPaths   = []string{"data", "items", "tweets", "results"}
	idKeys      = []string{"id", "id_str", "tweet_id"}
	textKeys    = []string{"text", "full_text", "content"}
	authorKeys  = []string{"user_name", "author", "username", "user.screen_name", "user.name"}
	createdKeys = []string{"created_at", "timestamp", "time"}
)

// ParseCandidates 解析消息源响应：顶层数组，或 data/items/tweets/results 下的数组。
// 缺少 id 或文本的条目被跳过。
func ParseCandidates(raw []byte, now time.Time) ([]types.Candidate, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("feed response is not valid JSON")
	}
	root := gjson.ParseBytes(raw)
	list := root
	if !root.IsArray() {
		list = gjson.Result{}
		for _, p := range listPaths {
			if r := root.Get(p); r.IsArray() {
				list = r
				break
			}
		}
		if !list.Exists() {
			return nil, fmt.Errorf("feed response has no item list")
		}
	}
	out := make([]types.Candidate, 0, len(list.Array()))
	list.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		id := firstString(item, idKeys)
		text := firstString(item, textKeys)
		if id == "" || strings.TrimSpace(text) == "" {
			return true
		}
		c := types.Candidate{
			ID:        id,
			Author:    strings.TrimPrefix(firstString(item, authorKeys), "@"),
			Text:      text,
			ArrivedAt: now,
		}
		if m, ok := item.Value().(map[string]any); ok {
			c.Payload = m
		}
		if ts := parseTime(item, createdKeys); !ts.IsZero() {
			c.ArrivedAt = ts
		}
		out = append(out, c)
		return true
	})
	return out, nil
}

func firstString(item gjson.Result, keys []string) string {
	for _, k := range keys {
		if v := item.Get(k); v.Exists() && v.Type != gjson.Null {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func parseTime(item gjson.Result, keys []string) time.Time {
	for _, k := range keys {
		v := item.Get(k)
		switch v.Type {
		case gjson.Number:
			n := v.Int()
			if n > 1e12 {
				return time.UnixMilli(n)
			}
			if n > 0 {
				return time.Unix(n, 0)
			}
		case gjson.String:
			for _, layout := range []string{time.RFC3339, time.RubyDate} {
				if ts, err := time.Parse(layout, v.String()); err == nil {
					return ts
				}
			}
		}
	}
	return time.Time{}
}
