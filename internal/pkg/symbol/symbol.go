package symbol

import (
	"strings"
)

const DefaultQuote = "USDT"

var knownQuotes = []string{"USDT", "BUSD", "USDC", "TUSD", "FDUSD"}

type Symbol struct {
	Base  string
	Quote string
}

// Pair 返回交易所格式（无分隔符），例如 BTCUSDT。
func (s Symbol) Pair() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Parse 解析 BTC/USDT、BTC-USDT、BTCUSDT:USDT、$btc 等写法。
func Parse(raw string) Symbol {
	s := clean(raw)
	if s == "" {
		return Symbol{}
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range knownQuotes {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}
	return Symbol{}
}

// Canonical 将分析结果中的币种名规范化为 quote 计价的交易对。
// 已带的 quote 后缀和分隔符会被剥离，再拼接 quote。
func Canonical(raw, quote string) string {
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if quote == "" {
		quote = DefaultQuote
	}
	s := clean(raw)
	s = strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)
	for strings.HasSuffix(s, quote) && len(s) > len(quote) {
		s = strings.TrimSuffix(s, quote)
	}
	if s == "" || s == quote || !isAlnum(s) {
		return ""
	}
	return s + quote
}

// Base 返回交易对的基础币种；无法识别 quote 时原样返回。
func Base(pair, quote string) string {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if quote != "" && strings.HasSuffix(pair, quote) && len(pair) > len(quote) {
		return pair[:len(pair)-len(quote)]
	}
	if sym := Parse(pair); sym.Base != "" {
		return sym.Base
	}
	return pair
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}

func clean(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "$")
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	return strings.Join(strings.Fields(s), "")
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
