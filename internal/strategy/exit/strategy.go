package exit

import (
	"newsdriven/internal/types"

	"github.com/shopspring/decimal"
)

type tierState struct {
	threshold decimal.Decimal
	fraction  float64
	triggered bool
}

// Strategy 是单个持仓的止损 + 分档止盈决策器。
// 非并发安全，由持有它的 monitor 串行调用。
type Strategy struct {
	side     string
	entry    decimal.Decimal
	stopLoss decimal.Decimal
	tiers    []tierState
	stopped  bool
}

// New 按持仓的入场价、方向与策略参数构建决策器。
// threshold 或 fraction 非正的分档会被忽略。
func New(pos types.Position) *Strategy {
	s := &Strategy{
		side:     string(pos.Side),
		entry:    decFromFloat(pos.EntryPrice),
		stopLoss: decFromFloat(pos.Strategy.StopLossPct),
	}
	for _, tier := range pos.Strategy.TakeProfit {
		if tier.ThresholdPct <= 0 || tier.CloseFraction <= 0 {
			continue
		}
		s.tiers = append(s.tiers, tierState{
			threshold: decFromFloat(tier.ThresholdPct),
			fraction:  clampFraction(tier.CloseFraction),
		})
	}
	return s
}

// Decide 根据最新价格给出动作。止损优先；止盈每次最多触发一档，且每档只触发一次。
// 止盈返回的 Fraction 是该档相对开仓数量的比例，执行时用 RemainingFraction 换算。
func (s *Strategy) Decide(price, remaining float64) types.ExitDecision {
	if s == nil || price <= 0 || remaining <= 0 {
		return types.ExitDecision{}
	}
	pnl := pnlRatio(s.side, s.entry, decFromFloat(price))
	if s.stopLoss.Sign() > 0 && pnl.LessThanOrEqual(s.stopLoss.Neg()) {
		s.stopped = true
		return types.ExitDecision{
			Action:   types.ExitCloseAll,
			Fraction: 1,
			Reason:   types.ReasonStopLoss,
		}
	}
	for i := range s.tiers {
		tier := &s.tiers[i]
		if tier.triggered {
			continue
		}
		if pnl.GreaterThanOrEqual(tier.threshold) {
			tier.triggered = true
			return types.ExitDecision{
				Action:   types.ExitClosePartial,
				Fraction: tier.fraction,
				Reason:   types.ReasonTakeProfit,
				Tier:     i + 1,
			}
		}
	}
	return types.ExitDecision{}
}

// ClosedFraction 返回已触发分档的累计平仓比例（相对开仓数量），止损后为 1。
func (s *Strategy) ClosedFraction() float64 {
	if s == nil {
		return 0
	}
	if s.stopped {
		return 1
	}
	sum := decimalZero
	for _, t := range s.tiers {
		if t.triggered {
			sum = sum.Add(decFromFloat(t.fraction))
		}
	}
	return clampFraction(decToFloat(sum))
}

// TierSnapshot 用于对外展示分档状态。
type TierSnapshot struct {
	ThresholdPct  float64 `json:"threshold_pct"`
	CloseFraction float64 `json:"close_fraction"`
	Triggered     bool    `json:"triggered"`
}

type Snapshot struct {
	Side        string         `json:"side"`
	EntryPrice  float64        `json:"entry_price"`
	StopLossPct float64        `json:"stop_loss_pct"`
	StopHit     bool           `json:"stop_hit"`
	Tiers       []TierSnapshot `json:"tiers"`
}

func (s *Strategy) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	out := Snapshot{
		Side:        s.side,
		EntryPrice:  decToFloat(s.entry),
		StopLossPct: decToFloat(s.stopLoss),
		StopHit:     s.stopped,
		Tiers:       make([]TierSnapshot, 0, len(s.tiers)),
	}
	for _, t := range s.tiers {
		out.Tiers = append(out.Tiers, TierSnapshot{
			ThresholdPct:  decToFloat(t.threshold),
			CloseFraction: t.fraction,
			Triggered:     t.triggered,
		})
	}
	return out
}
