package binance

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// formatQuantity 将数量对齐到 step 并按 step 的小数位输出。
func formatQuantity(qty, step float64, roundUp bool) (string, error) {
	if qty <= 0 {
		return "", fmt.Errorf("%w: qty=%v", ErrQuantityTooSmall, qty)
	}
	d := decimal.NewFromFloat(qty)
	if step <= 0 {
		return d.String(), nil
	}
	st := decimal.NewFromFloat(step)
	n := d.Div(st)
	if roundUp {
		n = n.Ceil()
	} else {
		n = n.Floor()
	}
	q := n.Mul(st)
	if !q.IsPositive() {
		return "", fmt.Errorf("%w: qty=%v step=%v", ErrQuantityTooSmall, qty, step)
	}
	places := int32(0)
	if exp := st.Exponent(); exp < 0 {
		places = -exp
	}
	return q.StringFixed(places), nil
}
