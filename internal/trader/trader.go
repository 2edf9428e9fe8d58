package trader

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"newsdriven/internal/filter"
	"newsdriven/internal/logger"
	"newsdriven/internal/pkg/symbol"
	"newsdriven/internal/types"
)

var ErrZeroQuantity = errors.New("order quantity rounds to zero")

// Config 是下单相关的静态参数。
type Config struct {
	Quote    string
	Defaults Defaults
	MinQty   float64
	StepSize float64
}

// Trader 逐条消费信号：过滤、合并参数、计算数量、市价下单并登记监控。
// 单条信号的失败或 panic 不会中断消费。
type Trader struct {
	cfg       Config
	exchange  Exchange
	watcher   Watcher
	schemes   SchemeSource
	filter    *filter.Filter
	observers []Observer
	now       func() time.Time
}

func New(cfg Config, ex Exchange, watcher Watcher, schemes SchemeSource, f *filter.Filter, observers ...Observer) *Trader {
	if strings.TrimSpace(cfg.Quote) == "" {
		cfg.Quote = symbol.DefaultQuote
	}
	obs := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			obs = append(obs, o)
		}
	}
	return &Trader{
		cfg:       cfg,
		exchange:  ex,
		watcher:   watcher,
		schemes:   schemes,
		filter:    f,
		observers: obs,
		now:       time.Now,
	}
}

// Run 消费信号直到通道关闭或 ctx 结束。
func (t *Trader) Run(ctx context.Context, signals <-chan types.Signal) error {
	logger.Infof("[trader] started")
	defer logger.Infof("[trader] stopped")
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			t.safeHandle(ctx, sig)
		}
	}
}

func (t *Trader) safeHandle(ctx context.Context, sig types.Signal) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[trader] panic handling signal %s: %v\n%s", sig.TraceID, r, debug.Stack())
		}
	}()
	if _, err := t.Handle(ctx, sig); err != nil {
		logger.Warnf("[trader] signal %s (%s %s) not traded: %v", sig.TraceID, sig.Symbol, sig.Side, err)
	}
}

// Handle 处理单条信号；被过滤时返回 (zero, nil)。
func (t *Trader) Handle(ctx context.Context, sig types.Signal) (types.Position, error) {
	logger.Infof("[trader] signal trace=%s candidate=%s symbol=%s side=%s confidence=%.1f",
		sig.TraceID, sig.Source.CandidateID, sig.Symbol, sig.Side, sig.Confidence)

	verdict := t.filter.Check(sig)
	for _, o := range t.observers {
		o.OnFiltered(sig, verdict)
	}
	if !verdict.Passed {
		logger.Infof("[trader] signal %s filtered: %s", sig.TraceID, verdict.Reason)
		return types.Position{}, nil
	}

	pos, fill, err := t.open(ctx, sig)
	if err != nil {
		for _, o := range t.observers {
			o.OnFailed(sig, err)
		}
		return types.Position{}, err
	}
	pos.ID = t.watcher.Watch(ctx, pos)
	logger.Infof("[trader] position %s opened %s %s qty=%.8f entry=%.8f", pos.ID, pos.Symbol, pos.Side, pos.Quantity, pos.EntryPrice)
	for _, o := range t.observers {
		o.OnOpened(sig, pos, fill)
	}
	return pos, nil
}

func (t *Trader) open(ctx context.Context, sig types.Signal) (types.Position, types.OrderFill, error) {
	params := MergeStrategy(t.cfg.Defaults, sig, t.schemes)

	balance, err := t.exchange.Balance(ctx, t.cfg.Quote)
	if err != nil {
		return types.Position{}, types.OrderFill{}, fmt.Errorf("balance: %w", err)
	}
	price, err := t.exchange.Price(ctx, sig.Symbol)
	if err != nil {
		return types.Position{}, types.OrderFill{}, fmt.Errorf("price %s: %w", sig.Symbol, err)
	}
	qty := OrderQuantity(balance, price, params.PositionPct, t.cfg.MinQty, t.cfg.StepSize)
	if qty <= 0 {
		return types.Position{}, types.OrderFill{}, fmt.Errorf("%w (balance=%.4f price=%.8f pct=%.4f)", ErrZeroQuantity, balance, price, params.PositionPct)
	}

	logger.Infof("[trader] placing market order %s %s qty=%.8f price~%.8f", sig.Symbol, sig.Side.OrderSide(), qty, price)
	fill, err := t.exchange.MarketOrder(ctx, sig.Symbol, sig.Side, qty)
	if err != nil {
		return types.Position{}, types.OrderFill{}, fmt.Errorf("market order %s: %w", sig.Symbol, err)
	}
	entry := price
	if fill.Price > 0 {
		entry = fill.Price
	}
	if fill.Quantity > 0 {
		qty = fill.Quantity
	}
	pos := types.Position{
		Symbol:       sig.Symbol,
		Side:         sig.Side,
		EntryPrice:   entry,
		Quantity:     qty,
		RemainingQty: qty,
		Strategy:     params,
		CandidateID:  sig.Source.CandidateID,
		OpenedAt:     t.now(),
	}
	return pos, fill, nil
}
