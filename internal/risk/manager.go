package risk

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"newsdriven/internal/logger"
	"newsdriven/internal/strategy/exit"
	"newsdriven/internal/types"

	"github.com/google/uuid"
)

const DefaultPollInterval = time.Second

// Manager 登记持仓并为每个持仓运行独立的监控循环。
type Manager struct {
	prices    PriceFetcher
	closer    CloseExecutor
	interval  time.Duration
	listeners []ExitListener
	newID     func() string

	mu       sync.RWMutex
	monitors map[string]*Monitor

	wg sync.WaitGroup
}

type Option func(*Manager)

func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithExitListener(l ExitListener) Option {
	return func(m *Manager) {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
	}
}

func NewManager(prices PriceFetcher, closer CloseExecutor, opts ...Option) *Manager {
	m := &Manager{
		prices:   prices,
		closer:   closer,
		interval: DefaultPollInterval,
		newID:    uuid.NewString,
		monitors: make(map[string]*Monitor),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddPosition 为持仓创建监控并返回 ID。持仓已带 ID 且已登记时直接返回该 ID。
func (m *Manager) AddPosition(pos types.Position) string {
	id, _ := m.register(pos)
	return id
}

// register 返回 ID 与新建的 monitor；ID 已登记时 monitor 为 nil。
func (m *Manager) register(pos types.Position) (string, *Monitor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pos.ID != "" {
		if _, ok := m.monitors[pos.ID]; ok {
			return pos.ID, nil
		}
	} else {
		pos.ID = m.newID()
	}
	if pos.RemainingQty <= 0 {
		pos.RemainingQty = pos.Quantity
	}
	if pos.OpenedAt.IsZero() {
		pos.OpenedAt = time.Now()
	}
	pos.Strategy.TakeProfit = types.CloneTiers(pos.Strategy.TakeProfit)
	mon := &Monitor{
		pos:      pos,
		strategy: exit.New(pos),
		active:   true,
	}
	m.monitors[pos.ID] = mon
	logger.Infof("[risk] position registered id=%s symbol=%s side=%s entry=%.8f qty=%.8f",
		pos.ID, pos.Symbol, pos.Side, pos.EntryPrice, pos.Quantity)
	return pos.ID, mon
}

// RemovePosition 仅从登记表移除；已在运行的监控循环不会被取消，会一直运行到自然结束。
func (m *Manager) RemovePosition(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.monitors[id]; !ok {
		return false
	}
	delete(m.monitors, id)
	logger.Infof("[risk] position removed id=%s (running loop not cancelled)", id)
	return true
}

func (m *Manager) monitor(id string) (*Monitor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mon, ok := m.monitors[id]
	return mon, ok
}

// Watch 登记持仓并在后台启动监控循环。ID 已登记时不会再启动第二个循环。
func (m *Manager) Watch(ctx context.Context, pos types.Position) string {
	id, mon := m.register(pos)
	if mon == nil {
		logger.Debugf("[risk] position id=%s already watched", id)
		return id
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx, id, mon)
	}()
	return id
}

// Wait 等待所有 Watch 启动的循环退出。
func (m *Manager) Wait() { m.wg.Wait() }

// MonitorLoop 轮询价格并执行退出决策，直到持仓归零、监控失效或 ctx 结束。
// 取价、平仓失败与 panic 都只记录日志，循环继续。
func (m *Manager) MonitorLoop(ctx context.Context, id string) {
	mon, ok := m.monitor(id)
	if !ok {
		logger.Warnf("[risk] monitor loop: unknown position id=%s", id)
		return
	}
	m.run(ctx, id, mon)
}

// run 持有 monitor 指针运行，登记表中的条目被移除后仍会继续。
func (m *Manager) run(ctx context.Context, id string, mon *Monitor) {
	symbol := mon.Symbol()
	logger.Infof("[risk] monitor started id=%s symbol=%s", id, symbol)
	defer logger.Infof("[risk] monitor finished id=%s", id)

	for mon.Running() {
		m.step(ctx, id, mon, symbol)
		if !mon.Running() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.interval):
		}
	}
}

func (m *Manager) step(ctx context.Context, id string, mon *Monitor, symbol string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[risk] monitor id=%s panic: %v", id, r)
		}
	}()
	price, err := m.prices.Price(ctx, symbol)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warnf("[risk] price fetch failed id=%s symbol=%s: %v", id, symbol, err)
		}
		return
	}
	decision, pos, frac := mon.decide(price)
	if frac <= 0 {
		return
	}
	logger.Infof("[risk] %s hit id=%s symbol=%s price=%.8f fraction=%.4f remaining=%.8f",
		decision.Reason, id, symbol, price, frac, pos.RemainingQty)

	res, err := m.closer.Close(ctx, pos, frac, decision.Reason)
	evt := ExitEvent{PositionID: id, Decision: decision, Price: price, Result: res, Err: err}
	if err != nil {
		logger.Errorf("[risk] close failed id=%s reason=%s: %v", id, decision.Reason, err)
		evt.Position = pos
		m.emit(evt)
		return
	}
	exitPrice := res.Price
	if exitPrice <= 0 {
		exitPrice = price
	}
	evt.ClosedQty, evt.PnL, evt.Position = mon.applyClose(frac, res.Quantity, exitPrice)
	if !evt.Position.IsOpen() {
		logger.Infof("[risk] position closed id=%s realized_pnl=%.8f", id, evt.Position.RealizedPnL)
	}
	m.emit(evt)
}

func (m *Manager) emit(evt ExitEvent) {
	for _, l := range m.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("[risk] exit listener panic: %v", r)
				}
			}()
			l.OnExit(evt)
		}()
	}
}

// Monitors 返回当前登记的持仓监控快照，按开仓时间排序。
func (m *Manager) Monitors() []MonitorSnapshot {
	m.mu.RLock()
	out := make([]MonitorSnapshot, 0, len(m.monitors))
	for id, mon := range m.monitors {
		snap := mon.Snapshot()
		snap.ID = id
		out = append(out, snap)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position.OpenedAt.Equal(out[j].Position.OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].Position.OpenedAt.Before(out[j].Position.OpenedAt)
	})
	return out
}

// Lookup 返回单个持仓的快照。
func (m *Manager) Lookup(id string) (MonitorSnapshot, bool) {
	mon, ok := m.monitor(strings.TrimSpace(id))
	if !ok {
		return MonitorSnapshot{}, false
	}
	snap := mon.Snapshot()
	snap.ID = id
	return snap, true
}
