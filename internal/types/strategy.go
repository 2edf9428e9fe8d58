package types

// TakeProfitTier 为一档止盈：盈利比例达到 ThresholdPct 时平掉开仓数量的 CloseFraction（按原始数量计，不是剩余数量）。
type TakeProfitTier struct {
	ThresholdPct  float64 `json:"threshold_pct" yaml:"threshold_pct"`
	CloseFraction float64 `json:"close_fraction" yaml:"close_fraction"`
}

// StrategyParams 是单笔交易实际生效的参数，由全局默认值与信号覆盖项合并得到。
type StrategyParams struct {
	PositionPct float64          `json:"position_pct"`
	StopLossPct float64          `json:"stop_loss_pct"`
	TakeProfit  []TakeProfitTier `json:"take_profit"`
	Scheme      string           `json:"scheme,omitempty"`
}

// CloneTiers 复制分档，避免多个持仓共享底层数组。
func CloneTiers(tiers []TakeProfitTier) []TakeProfitTier {
	if len(tiers) == 0 {
		return nil
	}
	out := make([]TakeProfitTier, len(tiers))
	copy(out, tiers)
	return out
}
