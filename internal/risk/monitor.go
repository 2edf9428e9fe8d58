package risk

import (
	"math"
	"sync"
	"time"

	"newsdriven/internal/strategy/exit"
	"newsdriven/internal/types"
)

// dustRatio 以下的剩余数量视为已平完。
const dustRatio = 1e-9

// Monitor 持有一个持仓及其退出策略。
type Monitor struct {
	mu        sync.Mutex
	pos       types.Position
	strategy  *exit.Strategy
	active    bool
	lastPrice float64
	lastCheck time.Time
}

type MonitorSnapshot struct {
	ID        string         `json:"id"`
	Position  types.Position `json:"position"`
	Active    bool           `json:"active"`
	LastPrice float64        `json:"last_price"`
	LastCheck time.Time      `json:"last_check"`
	Exit      exit.Snapshot  `json:"exit"`
}

func (m *Monitor) Symbol() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos.Symbol
}

// Running 表示监控仍有效且剩余数量大于 0。
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active && m.pos.RemainingQty > 0
}

// decide 返回决策、持仓快照与相对剩余数量的平仓比例。
func (m *Monitor) decide(price float64) (types.ExitDecision, types.Position, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPrice = price
	m.lastCheck = time.Now()
	d := m.strategy.Decide(price, m.pos.RemainingQty)
	if !d.Actionable() {
		return d, m.pos, 0
	}
	if d.Action == types.ExitClosePartial {
		// 按累计目标计算，吸收之前按步长取整造成的偏差
		return d, m.pos, exit.FractionToTarget(m.pos.Quantity, m.pos.RemainingQty, m.strategy.ClosedFraction())
	}
	return d, m.pos, exit.RemainingFraction(d, m.pos.Quantity, m.pos.RemainingQty)
}

// applyClose 扣减剩余数量并累计已实现盈亏；归零后监控失效。
// filled 为交易所实际成交数量，非正时按 remaining*frac 计算。
func (m *Monitor) applyClose(frac, filled, exitPrice float64) (closed, pnl float64, pos types.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case frac >= 1:
		closed = m.pos.RemainingQty
	case filled > 0:
		closed = math.Min(filled, m.pos.RemainingQty)
	default:
		closed = m.pos.RemainingQty * frac
	}
	m.pos.RemainingQty -= closed
	if m.pos.RemainingQty <= m.pos.Quantity*dustRatio {
		closed += m.pos.RemainingQty
		m.pos.RemainingQty = 0
		m.active = false
	}
	pnl = m.pos.ClosePnL(exitPrice, closed)
	m.pos.RealizedPnL += pnl
	return closed, pnl, m.pos
}

func (m *Monitor) Snapshot() MonitorSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos := m.pos
	pos.Strategy.TakeProfit = types.CloneTiers(pos.Strategy.TakeProfit)
	return MonitorSnapshot{
		Position:  pos,
		Active:    m.active && m.pos.RemainingQty > 0,
		LastPrice: m.lastPrice,
		LastCheck: m.lastCheck,
		Exit:      m.strategy.Snapshot(),
	}
}
