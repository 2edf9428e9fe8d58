package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"newsdriven/internal/config"
	"newsdriven/internal/gateway/notifier"
	"newsdriven/internal/ingest"
	"newsdriven/internal/risk"
	"newsdriven/internal/types"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedJSON = `{"data": [
  {"id": "t-1", "text": "Big $BTC news, long it", "author": "@whale"}
]}`

const schemesYAML = `
schemes:
  fast:
    description: one shot
    tiers:
      - {threshold_pct: 0.03, close_fraction: 1}
`

type fakeAnalyzer struct {
	result types.AnalysisResult
}

func (f fakeAnalyzer) Analyze(context.Context, ingest.AnalyzeRequest) (types.AnalysisResult, error) {
	return f.result, nil
}

type fakeExchange struct {
	mu     sync.Mutex
	orders []string
}

func (f *fakeExchange) Balance(context.Context, string) (float64, error) { return 1000, nil }

func (f *fakeExchange) Price(context.Context, string) (float64, error) { return 100, nil }

func (f *fakeExchange) MarketOrder(_ context.Context, symbol string, side types.Side, qty float64) (types.OrderFill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, symbol)
	return types.OrderFill{OrderID: "o-1", Symbol: symbol, Side: side, Quantity: qty, Price: 100, DryRun: true}, nil
}

func (f *fakeExchange) Close(_ context.Context, pos types.Position, fraction float64, _ string) (risk.CloseResult, error) {
	return risk.CloseResult{OrderID: "c-1", Quantity: pos.RemainingQty * fraction, Price: 100}, nil
}

func (f *fakeExchange) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	feedPath := filepath.Join(dir, "feed.json")
	require.NoError(t, os.WriteFile(feedPath, []byte(feedJSON), 0o644))
	schemePath := filepath.Join(dir, "schemes.yaml")
	require.NoError(t, os.WriteFile(schemePath, []byte(schemesYAML), 0o644))

	return &config.Config{
		App:  config.AppConfig{LogLevel: "error"},
		Feed: config.FeedConfig{Static: feedPath},
		Ingest: config.IngestConfig{
			PollIntervalSeconds:    1,
			Workers:                1,
			AnalysisTimeoutSeconds: 5,
			MaxRetries:             3,
			ItemTTLSeconds:         60,
			ReapIntervalSeconds:    5,
		},
		AI: config.AIConfig{Model: "test-model"},
		Risk: config.RiskConfig{
			DefaultPositionPct: 0.02,
			DefaultStopLossPct: 0.01,
			DefaultTakeProfit:  []config.TierConfig{{ThresholdPct: 0.02, CloseFraction: 0.5}},
			SchemePath:         schemePath,
			PollIntervalMs:     50,
			QuoteAsset:         "USDT",
		},
		Exchange: config.ExchangeConfig{DryRun: true, StepSize: 0.001, Leverage: 1},
		Store: config.StoreConfig{
			ProcessedPath: filepath.Join(dir, "processed.db"),
			RecordsDriver: "sqlite",
			RecordsDSN:    filepath.Join(dir, "records.db"),
		},
	}
}

func testBuilder(cfg *config.Config, ex *fakeExchange, result types.AnalysisResult) *AppBuilder {
	return NewAppBuilder(cfg,
		WithAnalyzer(func(config.AIConfig) (ingest.Analyzer, error) {
			return fakeAnalyzer{result: result}, nil
		}),
		WithExchange(func(config.ExchangeConfig) (ExchangeClient, error) {
			return ex, nil
		}),
		WithNotifier(func(config.NotifyConfig) (notifier.TextNotifier, error) {
			return notifier.Nop{}, nil
		}),
		WithProfiler(func(config.ProfilingConfig) (*pyroscope.Profiler, error) {
			return nil, nil
		}),
	)
}

func TestBuildWiresComponents(t *testing.T) {
	cfg := testConfig(t)
	app, err := testBuilder(cfg, &fakeExchange{}, nil).Build(context.Background())
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Loop())
	assert.NotNil(t, app.Risk())
	assert.NotNil(t, app.schemes)
	assert.Nil(t, app.liveHTTP)
	assert.Len(t, app.closers, 2)

	require.NotNil(t, app.Summary)
	assert.Equal(t, "static:"+cfg.Feed.Static, app.Summary.Feed.Source)
	assert.Equal(t, []string{"fast"}, app.Summary.Risk.Schemes)
	assert.Equal(t, []string{"+2.00% 平 50%"}, app.Summary.Risk.TakeProfit)
}

func TestBuildToleratesMissingSchemeFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Risk.SchemePath = filepath.Join(t.TempDir(), "missing.yaml")
	cfg.Store.RecordsDSN = ""
	cfg.App.HTTPAddr = "127.0.0.1:0"

	app, err := testBuilder(cfg, &fakeExchange{}, nil).Build(context.Background())
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.schemes)
	assert.NotNil(t, app.liveHTTP)
	assert.Len(t, app.closers, 1)
	assert.Empty(t, app.Summary.Risk.Schemes)
}

func TestBuildRejectsLiveExchangeWithoutKeys(t *testing.T) {
	_, err := buildExchange(config.ExchangeConfig{DryRun: false})
	require.Error(t, err)

	ex, err := buildExchange(config.ExchangeConfig{DryRun: true, StepSize: 0.001})
	require.NoError(t, err)
	assert.NotNil(t, ex)
}

func TestBuildFeedSelection(t *testing.T) {
	_, err := buildFeed(config.FeedConfig{})
	require.Error(t, err)

	f, err := buildFeed(config.FeedConfig{URL: "http://127.0.0.1:1/feed", BreakerThreshold: 2, BreakerCooldown: 1})
	require.NoError(t, err)
	assert.NotNil(t, f)
}

func TestIngestConfigConversion(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.QueueCapacity = 7
	cfg.Ingest.DedupeInFlight = true
	cfg.AI.Authors = map[string]string{"whale": "on-chain analyst"}

	ic := ingestConfig(cfg)
	assert.Equal(t, time.Second, ic.PollInterval)
	assert.Equal(t, 5*time.Second, ic.AnalysisTimeout)
	assert.Equal(t, time.Minute, ic.ItemTTL)
	assert.Equal(t, 7, ic.QueueCapacity)
	assert.True(t, ic.DedupeInFlight)
	assert.Equal(t, "USDT", ic.Quote)
	assert.Equal(t, "on-chain analyst", ic.Authors["whale"])

	def := riskDefaults(cfg.Risk)
	assert.InDelta(t, 0.02, def.PositionPct, 1e-9)
	require.Len(t, def.TakeProfit, 1)
	assert.InDelta(t, 0.5, def.TakeProfit[0].CloseFraction, 1e-9)
}

func TestRunOpensPositionFromFeed(t *testing.T) {
	cfg := testConfig(t)
	ex := &fakeExchange{}
	result := types.AnalysisResult{"symbol": []any{"BTC"}, "direction": "long", "confidence": 90.0}
	app, err := testBuilder(cfg, ex, result).Build(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(app.Risk().Monitors()) == 1
	}, 10*time.Second, 50*time.Millisecond)

	mons := app.Risk().Monitors()
	assert.Equal(t, "BTCUSDT", mons[0].Position.Symbol)
	assert.Equal(t, types.SideLong, mons[0].Position.Side)
	assert.InDelta(t, 0.2, mons[0].Position.Quantity, 1e-9)
	assert.Equal(t, 1, ex.orderCount())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}
