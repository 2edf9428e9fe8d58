package risk

import (
	"context"

	"newsdriven/internal/types"
)

// PriceFetcher 返回 symbol 的最新价格。
type PriceFetcher interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// CloseResult 描述一次平仓委托的结果。
type CloseResult struct {
	OrderID  string  `json:"order_id"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// CloseExecutor 以 pos.RemainingQty*fraction 的数量反向平仓。失败不重试。
type CloseExecutor interface {
	Close(ctx context.Context, pos types.Position, fraction float64, reason string) (CloseResult, error)
}

// ExitEvent 是一次已执行（或执行失败）的退出动作。
type ExitEvent struct {
	PositionID string
	Position   types.Position
	Decision   types.ExitDecision
	Price      float64
	ClosedQty  float64
	PnL        float64
	Result     CloseResult
	Err        error
}

// ExitListener 接收退出事件，用于通知与审计。
type ExitListener interface {
	OnExit(evt ExitEvent)
}

type ExitListenerFunc func(ExitEvent)

func (f ExitListenerFunc) OnExit(evt ExitEvent) { f(evt) }
