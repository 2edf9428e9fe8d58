package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"newsdriven/internal/ingest"
	"newsdriven/internal/logger"
	"newsdriven/internal/pkg/jsonutil"
	"newsdriven/internal/types"

	"golang.org/x/time/rate"
)

// DefaultPrompt 在未配置提示词文件时使用。
const DefaultPrompt = `You classify crypto market news for a futures trading bot.
Author: {author}
About the author: {introduction}

Message:
{text}

Reply with a single JSON object:
{"symbol": ["BTC"], "direction": "long|short", "confidence": 0-100, "reason": "..."}
Use an empty symbol list when the message is not tradable.`

var placeholders = map[string][]string{
	"text":         {"{text}", "{text1}"},
	"author":       {"{author}", "{text2}"},
	"introduction": {"{introduction}", "{text3}"},
}

// LoadPrompt 读取提示词模板；path 为空时返回 DefaultPrompt。
func LoadPrompt(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPrompt, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", fmt.Errorf("prompt %s is empty", path)
	}
	return string(raw), nil
}

// RenderPrompt 填充 {text}/{author}/{introduction} 占位符。
func RenderPrompt(tmpl string, req ingest.AnalyzeRequest) string {
	values := map[string]string{
		"text":         req.Text,
		"author":       req.Author,
		"introduction": req.Introduction,
	}
	pairs := make([]string, 0, 12)
	for key, tokens := range placeholders {
		for _, tok := range tokens {
			pairs = append(pairs, tok, values[key])
		}
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Analyzer 用聊天模型对消息分类，实现 ingest.Analyzer。
type Analyzer struct {
	model       ChatModel
	modelName   string
	prompt      string
	temperature float64
	limiter     *rate.Limiter
}

// NewAnalyzer 的 rps<=0 表示不限速。
func NewAnalyzer(model ChatModel, modelName, prompt string, rps, temperature float64) *Analyzer {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultPrompt
	}
	a := &Analyzer{model: model, modelName: modelName, prompt: prompt, temperature: temperature}
	if rps > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return a
}

// Analyze 返回解析后的 JSON 对象；模型输出不是 JSON 时返回 {"raw": 原文}。
func (a *Analyzer) Analyze(ctx context.Context, req ingest.AnalyzeRequest) (types.AnalysisResult, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	user := RenderPrompt(a.prompt, req)
	logger.LogAnalyzerRequest(a.modelName, req.ItemID, "", user)
	out, err := a.model.Call(ctx, ChatPayload{User: user, Temperature: a.temperature, MaxTokens: 500})
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", req.ItemID, err)
	}
	logger.LogAnalyzerResponse(a.modelName, req.ItemID, out)
	if strings.TrimSpace(out) == "" {
		return nil, ErrEmptyResponse
	}
	return ParseResult(out), nil
}

// ParseResult 从模型输出中提取 JSON 对象，容忍代码块与前后说明文字。
func ParseResult(out string) types.AnalysisResult {
	if obj, ok := jsonutil.ExtractObject(out); ok {
		var res map[string]any
		if err := json.Unmarshal([]byte(obj), &res); err == nil && res != nil {
			logger.Debugf("[analyzer] parsed result:\n%s", jsonutil.Pretty(obj))
			return types.AnalysisResult(res)
		}
	}
	return types.AnalysisResult{"raw": out}
}
