package trader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"newsdriven/internal/exitplan"
	"newsdriven/internal/filter"
	"newsdriven/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExchange struct {
	mock.Mock
}

func (m *mockExchange) Balance(ctx context.Context, asset string) (float64, error) {
	args := m.Called(asset)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockExchange) Price(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockExchange) MarketOrder(ctx context.Context, symbol string, side types.Side, qty float64) (types.OrderFill, error) {
	args := m.Called(symbol, side, qty)
	return args.Get(0).(types.OrderFill), args.Error(1)
}

type fakeWatcher struct {
	mu        sync.Mutex
	positions []types.Position
}

func (w *fakeWatcher) Watch(ctx context.Context, pos types.Position) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.positions = append(w.positions, pos)
	return "pos-1"
}

type recorder struct {
	filtered []filter.Verdict
	opened   []types.Position
	failed   []error
}

func (r *recorder) OnFiltered(sig types.Signal, v filter.Verdict) { r.filtered = append(r.filtered, v) }

func (r *recorder) OnOpened(sig types.Signal, pos types.Position, fill types.OrderFill) {
	r.opened = append(r.opened, pos)
}

func (r *recorder) OnFailed(sig types.Signal, err error) { r.failed = append(r.failed, err) }

type staticSchemes map[string]exitplan.Scheme

func (s staticSchemes) Scheme(id string) (exitplan.Scheme, bool) {
	sc, ok := s[id]
	return sc, ok
}

func defaults() Defaults {
	return Defaults{
		PositionPct: 0.02,
		StopLossPct: 0.01,
		TakeProfit:  []types.TakeProfitTier{{ThresholdPct: 0.02, CloseFraction: 0.5}, {ThresholdPct: 0.05, CloseFraction: 0.5}},
	}
}

func ptr(v float64) *float64 { return &v }

func TestOrderQuantity(t *testing.T) {
	cases := []struct {
		name                              string
		balance, price, pct, minQty, step float64
		want                              float64
	}{
		{"floor to step", 1000, 3, 0.02, 0.01, 0.01, 6.66},
		{"below min qty", 1000, 3, 0.02, 7, 0.01, 0},
		{"rounds to zero", 1000, 50000, 0.02, 0, 0.001, 0},
		{"exact", 1000, 100, 0.02, 0.001, 0.001, 0.2},
		{"no step", 100, 8, 0.5, 0, 0, 6.25},
		{"zero balance", 0, 100, 0.02, 0, 0.001, 0},
		{"zero price", 1000, 0, 0.02, 0, 0.001, 0},
		{"negative pct", 1000, 100, -0.1, 0, 0.001, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := OrderQuantity(tc.balance, tc.price, tc.pct, tc.minQty, tc.step)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestMergeStrategyPrecedence(t *testing.T) {
	schemes := staticSchemes{
		"fast": {ID: "fast", StopLossPct: 0.005, Tiers: []types.TakeProfitTier{{ThresholdPct: 0.01, CloseFraction: 1}}},
	}

	p := MergeStrategy(defaults(), types.Signal{}, schemes)
	assert.Equal(t, 0.02, p.PositionPct)
	assert.Equal(t, 0.01, p.StopLossPct)
	assert.Len(t, p.TakeProfit, 2)
	assert.Empty(t, p.Scheme)

	p = MergeStrategy(defaults(), types.Signal{Scheme: "fast"}, schemes)
	assert.Equal(t, "fast", p.Scheme)
	assert.Equal(t, 0.02, p.PositionPct)
	assert.Equal(t, 0.005, p.StopLossPct)
	assert.Equal(t, []types.TakeProfitTier{{ThresholdPct: 0.01, CloseFraction: 1}}, p.TakeProfit)

	p = MergeStrategy(defaults(), types.Signal{Scheme: "fast", PositionPct: ptr(0.1), StopLossPct: ptr(0.03)}, schemes)
	assert.Equal(t, 0.1, p.PositionPct)
	assert.Equal(t, 0.03, p.StopLossPct)

	p = MergeStrategy(defaults(), types.Signal{Scheme: "missing"}, schemes)
	assert.Empty(t, p.Scheme)
	assert.Len(t, p.TakeProfit, 2)

	p = MergeStrategy(defaults(), types.Signal{Scheme: "fast"}, nil)
	assert.Empty(t, p.Scheme)
}

func TestMergeStrategyCopiesTiers(t *testing.T) {
	def := defaults()
	p := MergeStrategy(def, types.Signal{}, nil)
	p.TakeProfit[0].CloseFraction = 0.9
	assert.Equal(t, 0.5, def.TakeProfit[0].CloseFraction)
}

func newTestTrader(ex Exchange, w Watcher, f *filter.Filter, rec *recorder) *Trader {
	tr := New(Config{Quote: "USDT", Defaults: defaults(), MinQty: 0.001, StepSize: 0.001}, ex, w, nil, f, rec)
	tr.now = func() time.Time { return time.Unix(1700000000, 0) }
	return tr
}

func TestHandleOpensAndWatches(t *testing.T) {
	ex := &mockExchange{}
	ex.On("Balance", "USDT").Return(1000.0, nil)
	ex.On("Price", "BTCUSDT").Return(100.0, nil)
	ex.On("MarketOrder", "BTCUSDT", types.SideLong, 0.2).
		Return(types.OrderFill{OrderID: "1", Quantity: 0.2, Price: 100.5}, nil)
	w := &fakeWatcher{}
	rec := &recorder{}
	tr := newTestTrader(ex, w, filter.New("USDT", 50, nil), rec)

	sig := types.Signal{TraceID: "t1", Symbol: "BTCUSDT", Side: types.SideLong, Confidence: 80,
		Source: types.SignalSource{CandidateID: "c1"}}
	pos, err := tr.Handle(context.Background(), sig)
	require.NoError(t, err)
	ex.AssertExpectations(t)

	assert.Equal(t, "pos-1", pos.ID)
	assert.Equal(t, 100.5, pos.EntryPrice)
	assert.Equal(t, 0.2, pos.Quantity)
	assert.Equal(t, 0.2, pos.RemainingQty)
	assert.Equal(t, "c1", pos.CandidateID)
	require.Len(t, w.positions, 1)
	assert.Equal(t, 0.01, w.positions[0].Strategy.StopLossPct)
	require.Len(t, rec.filtered, 1)
	assert.True(t, rec.filtered[0].Passed)
	assert.Len(t, rec.opened, 1)
	assert.Empty(t, rec.failed)
}

func TestHandleFilteredSignalSkipsExchange(t *testing.T) {
	ex := &mockExchange{}
	w := &fakeWatcher{}
	rec := &recorder{}
	tr := newTestTrader(ex, w, filter.New("USDT", 0, []string{"DOGE"}), rec)

	pos, err := tr.Handle(context.Background(), types.Signal{Symbol: "DOGEUSDT", Side: types.SideShort, Confidence: 90})
	require.NoError(t, err)
	assert.Empty(t, pos.ID)
	ex.AssertNotCalled(t, "Balance", mock.Anything)
	assert.Empty(t, w.positions)
	require.Len(t, rec.filtered, 1)
	assert.True(t, rec.filtered[0].Blacklisted)
}

func TestHandleZeroQuantity(t *testing.T) {
	ex := &mockExchange{}
	ex.On("Balance", "USDT").Return(10.0, nil)
	ex.On("Price", "BTCUSDT").Return(60000.0, nil)
	w := &fakeWatcher{}
	rec := &recorder{}
	tr := newTestTrader(ex, w, nil, rec)

	_, err := tr.Handle(context.Background(), types.Signal{Symbol: "BTCUSDT", Side: types.SideLong})
	require.ErrorIs(t, err, ErrZeroQuantity)
	ex.AssertNotCalled(t, "MarketOrder", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, w.positions)
	assert.Len(t, rec.failed, 1)
}

func TestHandleOrderFailure(t *testing.T) {
	ex := &mockExchange{}
	ex.On("Balance", "USDT").Return(1000.0, nil)
	ex.On("Price", "ETHUSDT").Return(100.0, nil)
	ex.On("MarketOrder", "ETHUSDT", types.SideShort, 0.2).Return(types.OrderFill{}, errors.New("margin"))
	w := &fakeWatcher{}
	rec := &recorder{}
	tr := newTestTrader(ex, w, nil, rec)

	_, err := tr.Handle(context.Background(), types.Signal{Symbol: "ETHUSDT", Side: types.SideShort})
	require.Error(t, err)
	assert.Empty(t, w.positions)
	assert.Len(t, rec.failed, 1)
}

func TestHandleFallsBackToQuotedPrice(t *testing.T) {
	ex := &mockExchange{}
	ex.On("Balance", "USDT").Return(1000.0, nil)
	ex.On("Price", "BTCUSDT").Return(100.0, nil)
	ex.On("MarketOrder", "BTCUSDT", types.SideLong, 0.2).Return(types.OrderFill{OrderID: "dry"}, nil)
	w := &fakeWatcher{}
	tr := newTestTrader(ex, w, nil, &recorder{})

	pos, err := tr.Handle(context.Background(), types.Signal{Symbol: "BTCUSDT", Side: types.SideLong})
	require.NoError(t, err)
	assert.Equal(t, 100.0, pos.EntryPrice)
	assert.Equal(t, 0.2, pos.Quantity)
}

type panicExchange struct{ mockExchange }

func (p *panicExchange) Balance(ctx context.Context, asset string) (float64, error) {
	panic("boom")
}

func TestRunSurvivesPanicsAndStopsOnClose(t *testing.T) {
	tr := newTestTrader(&panicExchange{}, &fakeWatcher{}, nil, &recorder{})
	ch := make(chan types.Signal, 2)
	ch <- types.Signal{Symbol: "BTCUSDT", Side: types.SideLong}
	ch <- types.Signal{Symbol: "ETHUSDT", Side: types.SideLong}
	close(ch)

	done := make(chan error, 1)
	go func() { done <- tr.Run(context.Background(), ch) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("trader did not stop after channel close")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	tr := newTestTrader(&mockExchange{}, &fakeWatcher{}, nil, &recorder{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, tr.Run(ctx, make(chan types.Signal)))
}
