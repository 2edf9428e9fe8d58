package types

import (
	"time"
)

// Position 是一笔由信号开出的持仓。RemainingQty 只减不增且不小于 0。
type Position struct {
	ID           string         `json:"id"`
	Symbol       string         `json:"symbol"`
	Side         Side           `json:"side"`
	EntryPrice   float64        `json:"entry_price"`
	Quantity     float64        `json:"quantity"`
	RemainingQty float64        `json:"remaining_qty"`
	Strategy     StrategyParams `json:"strategy"`
	RealizedPnL  float64        `json:"realized_pnl"`
	CandidateID  string         `json:"candidate_id,omitempty"`
	OpenedAt     time.Time      `json:"opened_at"`
}

// PnLRatio 返回给定价格下的收益率：多头 p/e-1，空头 e/p-1。
func (p Position) PnLRatio(price float64) float64 {
	if p.EntryPrice <= 0 || price <= 0 {
		return 0
	}
	if p.Side == SideShort {
		return p.EntryPrice/price - 1
	}
	return price/p.EntryPrice - 1
}

// ClosePnL 返回以 exitPrice 平掉 qty 的已实现盈亏。
func (p Position) ClosePnL(exitPrice, qty float64) float64 {
	if p.Side == SideShort {
		return (p.EntryPrice - exitPrice) * qty
	}
	return (exitPrice - p.EntryPrice) * qty
}

// ExitAction 是退出策略的动作类型。
type ExitAction string

const (
	ExitNone         ExitAction = ""
	ExitCloseAll     ExitAction = "close_all"
	ExitClosePartial ExitAction = "close_partial"
)

// ExitDecision 是退出策略对一次价格观测的结论。
type ExitDecision struct {
	Action   ExitAction `json:"action"`
	Fraction float64    `json:"fraction"`
	Reason   string     `json:"reason"`
	Tier     int        `json:"tier,omitempty"`
}

func (d ExitDecision) Actionable() bool {
	return (d.Action == ExitCloseAll || d.Action == ExitClosePartial) && d.Fraction > 0
}

const (
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
	ReasonManual     = "manual"
)

// IsOpen 表示仍有未平数量。
func (p Position) IsOpen() bool { return p.RemainingQty > 0 }
