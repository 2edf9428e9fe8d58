package filter

import (
	"fmt"
	"strings"

	"newsdriven/internal/pkg/symbol"
	"newsdriven/internal/types"
)

// Verdict 是一次过滤的结论，原样写入审计记录。
type Verdict struct {
	Passed      bool    `json:"passed"`
	Reason      string  `json:"reason"`
	Symbol      string  `json:"symbol"`
	Base        string  `json:"base"`
	Confidence  float64 `json:"confidence"`
	Blacklisted bool    `json:"blacklisted"`
}

// Filter 按黑名单和最低置信度拦截信号。
type Filter struct {
	quote         string
	minConfidence float64
	blacklist     map[string]struct{}
}

func New(quote string, minConfidence float64, blacklist []string) *Filter {
	set := make(map[string]struct{}, len(blacklist))
	for _, b := range blacklist {
		b = strings.ToUpper(strings.TrimSpace(b))
		if b == "" {
			continue
		}
		set[b] = struct{}{}
	}
	if strings.TrimSpace(quote) == "" {
		quote = symbol.DefaultQuote
	}
	return &Filter{quote: strings.ToUpper(quote), minConfidence: minConfidence, blacklist: set}
}

// Check 先查黑名单，再查置信度。nil Filter 放行一切。
func (f *Filter) Check(sig types.Signal) Verdict {
	v := Verdict{Symbol: sig.Symbol, Confidence: sig.Confidence}
	if f == nil {
		v.Passed = true
		v.Reason = "no filter"
		return v
	}
	v.Base = symbol.Base(sig.Symbol, f.quote)
	if _, ok := f.blacklist[v.Base]; ok {
		v.Blacklisted = true
		v.Reason = fmt.Sprintf("rejected: %s is blacklisted", v.Base)
		return v
	}
	if sig.Confidence < f.minConfidence {
		v.Reason = fmt.Sprintf("rejected: confidence %.1f < %.1f", sig.Confidence, f.minConfidence)
		return v
	}
	v.Passed = true
	v.Reason = fmt.Sprintf("passed: confidence %.1f >= %.1f", sig.Confidence, f.minConfidence)
	return v
}
