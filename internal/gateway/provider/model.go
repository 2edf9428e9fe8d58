package provider

import "context"

type ChatPayload struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// ChatModel 是一次无状态的聊天补全调用。
type ChatModel interface {
	Call(ctx context.Context, payload ChatPayload) (string, error)
}
