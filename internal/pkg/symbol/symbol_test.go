package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"BTC":       "BTCUSDT",
		"btc":       "BTCUSDT",
		"$eth":      "ETHUSDT",
		"BTC/USDT":  "BTCUSDT",
		"SOL-USDT":  "SOLUSDT",
		"BNBUSDT":   "BNBUSDT",
		"1000SHIB":  "1000SHIBUSDT",
		"DOGE:USDT": "DOGEUSDT",
		"USDT":      "",
		"":          "",
		"比特币":       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Canonical(in, "USDT"), "input %q", in)
	}
	assert.Equal(t, "BTCUSDC", Canonical("BTC/USDC", "usdc"))
}

func TestBase(t *testing.T) {
	assert.Equal(t, "BTC", Base("BTCUSDT", "USDT"))
	assert.Equal(t, "ETH", Base("ETH/USDC", "USDT"))
	assert.Equal(t, "XYZ", Base("xyz", "USDT"))
}

func TestParse(t *testing.T) {
	assert.Equal(t, Symbol{Base: "BTC", Quote: "USDT"}, Parse("btc/usdt"))
	assert.Equal(t, "ETHUSDT", Parse("ETHUSDT").Pair())
	assert.False(t, IsValid("ETH"))
}

func TestBinanceConverter(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Binance.ToExchange("btc/usdt"))
	assert.Equal(t, "SOLUSDT", Binance.ToExchange("SOL-USDT"))
	assert.Equal(t, "ETHUSDT", Binance.ToExchange("$ethusdt"))
	assert.Equal(t, "DOGEUSDT", Binance.ToExchange("DOGE/USDT:USDT"))
	assert.Equal(t, "BTC/USDT", Binance.FromExchange("BTCUSDT"))
}
