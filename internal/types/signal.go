package types

import "strings"

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite 返回平仓方向。
func (s Side) Opposite() Side {
	if s == SideShort {
		return SideLong
	}
	return SideShort
}

// OrderSide 转换为交易所的 BUY/SELL。
func (s Side) OrderSide() string {
	if s == SideShort {
		return "SELL"
	}
	return "BUY"
}

func ParseSide(raw string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "long", "buy":
		return SideLong, true
	case "short", "sell":
		return SideShort, true
	default:
		return "", false
	}
}

// Signal 是由候选消息翻译出的交易意图。
type Signal struct {
	TraceID    string  `json:"trace_id"`
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Confidence float64 `json:"confidence"`

	// 以下为可选覆盖项，为空时使用全局风控默认值
	PositionPct *float64         `json:"position_pct,omitempty"`
	StopLossPct *float64         `json:"stop_loss_pct,omitempty"`
	Scheme      string           `json:"scheme,omitempty"`
	TakeProfit  []TakeProfitTier `json:"take_profit,omitempty"`

	Source SignalSource `json:"source"`
}

// SignalSource 保留原始消息与分析结果，便于审计。
type SignalSource struct {
	CandidateID string         `json:"candidate_id"`
	Author      string         `json:"author,omitempty"`
	Text        string         `json:"text"`
	Analysis    AnalysisResult `json:"analysis"`
}
