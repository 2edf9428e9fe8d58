package trader

import (
	"context"

	"newsdriven/internal/exitplan"
	"newsdriven/internal/filter"
	"newsdriven/internal/types"
)

// Exchange 是下单所需的最小交易所能力。
type Exchange interface {
	Balance(ctx context.Context, asset string) (float64, error)
	Price(ctx context.Context, symbol string) (float64, error)
	MarketOrder(ctx context.Context, symbol string, side types.Side, qty float64) (types.OrderFill, error)
}

// Watcher 登记持仓并启动监控，返回持仓 ID。
type Watcher interface {
	Watch(ctx context.Context, pos types.Position) string
}

// SchemeSource 按名称查找止盈方案。
type SchemeSource interface {
	Scheme(id string) (exitplan.Scheme, bool)
}

// Observer 接收交易事件（审计记录、通知）。
type Observer interface {
	OnFiltered(sig types.Signal, v filter.Verdict)
	OnOpened(sig types.Signal, pos types.Position, fill types.OrderFill)
	OnFailed(sig types.Signal, err error)
}
