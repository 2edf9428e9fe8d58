package trader

import "github.com/shopspring/decimal"

// OrderQuantity 计算下单数量：floor(balance*pct/price/step)*step。
// 任一输入非正或结果低于 minQty 时返回 0。step<=0 时不做取整。
func OrderQuantity(balance, price, pct, minQty, step float64) float64 {
	if balance <= 0 || price <= 0 || pct <= 0 {
		return 0
	}
	raw := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(pct)).
		DivRound(decimal.NewFromFloat(price), 16)
	qty := raw
	if step > 0 {
		st := decimal.NewFromFloat(step)
		qty = raw.Div(st).Floor().Mul(st)
	}
	if !qty.IsPositive() {
		return 0
	}
	if minQty > 0 && qty.LessThan(decimal.NewFromFloat(minQty)) {
		return 0
	}
	f, _ := qty.Float64()
	return f
}
