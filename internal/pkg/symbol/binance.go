package symbol

import "strings"

// BinanceConverter 在内部写法与币安合约交易对之间转换。
type BinanceConverter struct{}

// ToExchange 把 BTC/USDT、btc-usdt、$BTCUSDT 等写法转为 BTCUSDT。
func (BinanceConverter) ToExchange(raw string) string {
	return strings.NewReplacer("/", "", "-", "", "_", "").Replace(clean(raw))
}

func (BinanceConverter) FromExchange(raw string) string {
	return Parse(raw).Internal()
}

var Binance = BinanceConverter{}
