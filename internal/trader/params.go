package trader

import (
	"strings"

	"newsdriven/internal/logger"
	"newsdriven/internal/types"
)

// Defaults 是全局风控默认值。
type Defaults struct {
	PositionPct float64
	StopLossPct float64
	TakeProfit  []types.TakeProfitTier
}

// MergeStrategy 合并单笔交易参数，优先级：信号覆盖 > 命名方案 > 全局默认。
// 未知方案名只记录告警，退回默认值。
func MergeStrategy(def Defaults, sig types.Signal, schemes SchemeSource) types.StrategyParams {
	params := types.StrategyParams{
		PositionPct: def.PositionPct,
		StopLossPct: def.StopLossPct,
		TakeProfit:  types.CloneTiers(def.TakeProfit),
	}
	if name := strings.TrimSpace(sig.Scheme); name != "" {
		if schemes == nil {
			logger.Warnf("[trader] scheme %q requested but no registry configured", name)
		} else if sc, ok := schemes.Scheme(name); ok {
			params.Scheme = sc.ID
			if sc.PositionPct > 0 {
				params.PositionPct = sc.PositionPct
			}
			if sc.StopLossPct > 0 {
				params.StopLossPct = sc.StopLossPct
			}
			if len(sc.Tiers) > 0 {
				params.TakeProfit = types.CloneTiers(sc.Tiers)
			}
		} else {
			logger.Warnf("[trader] unknown scheme %q, using defaults", name)
		}
	}
	if sig.PositionPct != nil && *sig.PositionPct > 0 {
		params.PositionPct = *sig.PositionPct
	}
	if sig.StopLossPct != nil && *sig.StopLossPct > 0 {
		params.StopLossPct = *sig.StopLossPct
	}
	if len(sig.TakeProfit) > 0 {
		params.TakeProfit = types.CloneTiers(sig.TakeProfit)
	}
	return params
}
