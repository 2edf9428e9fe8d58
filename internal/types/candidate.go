package types

import "time"

// Candidate 是从消息源拉取的一条原始候选消息。
type Candidate struct {
	ID        string         `json:"id"`
	Author    string         `json:"author"`
	Text      string         `json:"text"`
	Payload   map[string]any `json:"payload,omitempty"`
	ArrivedAt time.Time      `json:"arrived_at"`
}

// AnalysisResult 是分析器返回的结构化结果，字段由模型输出决定。
type AnalysisResult map[string]any
