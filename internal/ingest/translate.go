package ingest

import (
	"errors"
	"fmt"
	"strings"

	"newsdriven/internal/pkg/convert"
	"newsdriven/internal/pkg/symbol"
	"newsdriven/internal/types"

	"github.com/google/uuid"
)

// ErrNoSignal 表示分析结果不可交易，调用方直接丢弃。
var ErrNoSignal = errors.New("no actionable signal")

const DefaultConfidence = 50.0

var (
	instrumentKeys = []string{"交易币种", "symbol", "asset", "assets", "coins"}
	directionKeys  = []string{"交易方向", "direction", "side"}
	confidenceKeys = []string{"消息置信度", "confidence"}

	bullishMarkers = []string{"做多", "看多", "看涨", "利好", "买入", "bullish", "long", "buy"}
	bearishMarkers = []string{"做空", "看空", "看跌", "利空", "卖出", "bearish", "short", "sell"}
)

// Translator 把候选消息与分析结果转换为交易信号。
type Translator struct {
	Quote string
}

func NewTranslator(quote string) *Translator {
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if quote == "" {
		quote = symbol.DefaultQuote
	}
	return &Translator{Quote: quote}
}

// Translate 的规则依次为：空文本、无法解析的币种都返回 ErrNoSignal；
// 方向字段无法识别时按做多处理；置信度缺失时取 DefaultConfidence。
func (t *Translator) Translate(c types.Candidate, res types.AnalysisResult) (types.Signal, error) {
	if strings.TrimSpace(c.Text) == "" {
		return types.Signal{}, fmt.Errorf("%w: empty text", ErrNoSignal)
	}
	if len(res) == 0 {
		return types.Signal{}, fmt.Errorf("%w: empty analysis", ErrNoSignal)
	}
	// 非 JSON 输出被包装为 {"raw": ...}
	if _, ok := res["raw"]; ok && len(res) == 1 {
		return types.Signal{}, fmt.Errorf("%w: unstructured analysis", ErrNoSignal)
	}
	pair := t.instrument(res)
	if pair == "" {
		return types.Signal{}, fmt.Errorf("%w: no instrument", ErrNoSignal)
	}
	side, _ := ResolveSide(firstValue(res, directionKeys))
	confidence := DefaultConfidence
	if v, ok := convert.Float(firstValue(res, confidenceKeys)); ok {
		confidence = v
	}
	sig := types.Signal{
		TraceID:    uuid.NewString(),
		Symbol:     pair,
		Side:       side,
		Confidence: confidence,
		Source: types.SignalSource{
			CandidateID: c.ID,
			Author:      c.Author,
			Text:        c.Text,
			Analysis:    res,
		},
	}
	if v, ok := convert.Float(res["position_pct"]); ok && v > 0 && v <= 1 {
		sig.PositionPct = &v
	}
	if v, ok := convert.Float(res["stop_loss_pct"]); ok && v > 0 && v < 1 {
		sig.StopLossPct = &v
	}
	if s, ok := res["scheme"].(string); ok {
		sig.Scheme = strings.TrimSpace(s)
	}
	return sig, nil
}

// instrument 返回第一个能规范化为交易对的币种。
func (t *Translator) instrument(res types.AnalysisResult) string {
	for _, raw := range instrumentCandidates(firstValue(res, instrumentKeys)) {
		if pair := symbol.Canonical(raw, t.Quote); pair != "" {
			return pair
		}
	}
	return ""
}

func instrumentCandidates(v any) []string {
	switch val := v.(type) {
	case string:
		return splitList(val)
	case []string:
		var out []string
		for _, s := range val {
			out = append(out, splitList(s)...)
		}
		return out
	case []any:
		var out []string
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, splitList(s)...)
			}
		}
		return out
	default:
		return nil
	}
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', '，', '、', ';', '；', ' ', '\t', '\n':
			return true
		}
		return false
	})
}

// ResolveSide 识别方向文本；无法识别时返回 (SideLong, false)。
func ResolveSide(v any) (types.Side, bool) {
	s, _ := v.(string)
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return types.SideLong, false
	}
	for _, m := range bullishMarkers {
		if strings.Contains(s, m) {
			return types.SideLong, true
		}
	}
	for _, m := range bearishMarkers {
		if strings.Contains(s, m) {
			return types.SideShort, true
		}
	}
	return types.SideLong, false
}

func firstValue(res types.AnalysisResult, keys []string) any {
	for _, k := range keys {
		if v, ok := res[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}
