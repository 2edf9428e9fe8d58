package exit

import (
	"math"

	"newsdriven/internal/types"

	"github.com/shopspring/decimal"
)

const fractionEpsilon = 1e-9

var (
	decOne      = decimal.NewFromInt(1)
	decimalZero = decimal.Zero
)

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimalZero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

// pnlRatio 多头 price/entry-1，空头 entry/price-1。
func pnlRatio(side string, entry, price decimal.Decimal) decimal.Decimal {
	if entry.Sign() <= 0 || price.Sign() <= 0 {
		return decimalZero
	}
	if side == "short" {
		return entry.Div(price).Sub(decOne)
	}
	return price.Div(entry).Sub(decOne)
}

// clampFraction 将平仓比例限制在 [0,1]。
func clampFraction(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return v
}

// RemainingFraction 把决策比例（相对开仓数量）换算为相对剩余数量的比例。
// 止损固定返回 1；接近 1 的结果按 1 处理，避免浮点残量让持仓无法归零。
func RemainingFraction(d types.ExitDecision, quantity, remaining float64) float64 {
	if !d.Actionable() || remaining <= 0 {
		return 0
	}
	if d.Action == types.ExitCloseAll || quantity <= 0 {
		return clampFraction(d.Fraction)
	}
	f := decFromFloat(quantity).Mul(decFromFloat(d.Fraction)).Div(decFromFloat(remaining))
	frac := decToFloat(f)
	if frac >= 1-fractionEpsilon {
		return 1
	}
	return clampFraction(frac)
}

// FractionToTarget 返回让剩余数量回到 quantity*(1-closed) 所需的平仓比例（相对剩余数量）。
// 剩余数量已不高于目标时返回 0。
func FractionToTarget(quantity, remaining, closed float64) float64 {
	if quantity <= 0 || remaining <= 0 || closed <= 0 {
		return 0
	}
	target := decFromFloat(quantity).Mul(decOne.Sub(decFromFloat(clampFraction(closed))))
	if target.LessThanOrEqual(decFromFloat(quantity * fractionEpsilon)) {
		return 1
	}
	rem := decFromFloat(remaining)
	if rem.LessThanOrEqual(target) {
		return 0
	}
	frac := decToFloat(rem.Sub(target).Div(rem))
	if frac >= 1-fractionEpsilon {
		return 1
	}
	return clampFraction(frac)
}
