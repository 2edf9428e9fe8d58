package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"newsdriven/internal/config"
	"newsdriven/internal/exitplan"
	"newsdriven/internal/filter"
	"newsdriven/internal/gateway/binance"
	"newsdriven/internal/gateway/feed"
	"newsdriven/internal/gateway/notifier"
	"newsdriven/internal/gateway/provider"
	"newsdriven/internal/ingest"
	"newsdriven/internal/logger"
	"newsdriven/internal/pkg/circuit"
	"newsdriven/internal/risk"
	"newsdriven/internal/store/processed"
	"newsdriven/internal/store/records"
	"newsdriven/internal/trader"
	livehttp "newsdriven/internal/transport/http/live"
	"newsdriven/internal/types"

	"github.com/grafana/pyroscope-go"
)

// ExchangeClient 同时承担下单与平仓，binance.Client 即为实现。
type ExchangeClient interface {
	trader.Exchange
	risk.CloseExecutor
}

type ProcessedStore interface {
	ingest.ProcessedStore
	io.Closer
}

type AppBuilder struct {
	cfg *config.Config

	feedFn     func(config.FeedConfig) (ingest.Feed, error)
	analyzerFn func(config.AIConfig) (ingest.Analyzer, error)
	exchangeFn func(config.ExchangeConfig) (ExchangeClient, error)
	notifierFn func(config.NotifyConfig) (notifier.TextNotifier, error)
	profilerFn func(config.ProfilingConfig) (*pyroscope.Profiler, error)

	processedOverride ProcessedStore
	recordsOverride   *records.Store
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		feedFn:     buildFeed,
		analyzerFn: buildAnalyzer,
		exchangeFn: buildExchange,
		notifierFn: buildNotifier,
		profilerFn: startProfiler,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	var closers []io.Closer
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	src, err := b.feedFn(cfg.Feed)
	if err != nil {
		return nil, fmt.Errorf("初始化消息源失败: %w", err)
	}
	analyzer, err := b.analyzerFn(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("初始化分析器失败: %w", err)
	}

	procStore, recStore, err := b.resolveStores(cfg.Store)
	if err != nil {
		return nil, err
	}
	closers = append(closers, procStore)
	if recStore != nil {
		closers = append(closers, recStore)
	}

	registry := loadSchemes(cfg.Risk.SchemePath)

	ex, err := b.exchangeFn(cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("初始化交易所失败: %w", err)
	}

	text, err := b.notifierFn(cfg.Notify)
	if err != nil {
		return nil, fmt.Errorf("初始化通知失败: %w", err)
	}
	reporter := notifier.NewReporter(text, 0)

	riskOpts := []risk.Option{
		risk.WithPollInterval(time.Duration(cfg.Risk.PollIntervalMs) * time.Millisecond),
		risk.WithExitListener(reporter),
	}
	var ingestObs ingest.Observer
	traderObs := []trader.Observer{reporter}
	if recStore != nil {
		riskOpts = append(riskOpts, risk.WithExitListener(recStore))
		ingestObs = recStore
		traderObs = append(traderObs, recStore)
	}
	riskMgr := risk.NewManager(ex, ex, riskOpts...)

	loop := ingest.NewLoop(ingestConfig(cfg), src, procStore, analyzer, ingestObs)

	var schemes trader.SchemeSource
	if registry != nil {
		schemes = registry
	}
	tr := trader.New(trader.Config{
		Quote:    cfg.Risk.QuoteAsset,
		Defaults: riskDefaults(cfg.Risk),
		MinQty:   cfg.Exchange.MinQty,
		StepSize: cfg.Exchange.StepSize,
	}, ex, riskMgr, schemes, filter.New(cfg.Risk.QuoteAsset, cfg.Risk.MinConfidence, cfg.Risk.SymbolBlacklist), traderObs...)

	liveHTTP, err := buildLiveHTTP(cfg.App, loop, riskMgr, recStore, registry)
	if err != nil {
		return nil, err
	}

	profiler, err := b.profilerFn(cfg.Profiling)
	if err != nil {
		logger.Warnf("[app] pyroscope disabled: %v", err)
		profiler = nil
	}

	return &App{
		cfg:      cfg,
		loop:     loop,
		trader:   tr,
		risk:     riskMgr,
		reporter: reporter,
		schemes:  registry,
		liveHTTP: liveHTTP,
		profiler: profiler,
		closers:  closers,
		Summary:  newStartupSummary(cfg, registry),
	}, nil
}

func (b *AppBuilder) resolveStores(cfg config.StoreConfig) (ProcessedStore, *records.Store, error) {
	procStore := b.processedOverride
	if procStore == nil {
		s, err := processed.Open(cfg.ProcessedPath)
		if err != nil {
			return nil, nil, fmt.Errorf("初始化已处理存储失败: %w", err)
		}
		procStore = s
	}
	if b.recordsOverride != nil {
		return procStore, b.recordsOverride, nil
	}
	if strings.TrimSpace(cfg.RecordsDSN) == "" {
		logger.Warnf("[app] store.records_dsn 未配置，审计记录已关闭")
		return procStore, nil, nil
	}
	recStore, err := records.Open(cfg.RecordsDriver, cfg.RecordsDSN)
	if err != nil {
		_ = procStore.Close()
		return nil, nil, fmt.Errorf("初始化审计存储失败: %w", err)
	}
	return procStore, recStore, nil
}

// loadSchemes 加载止盈方案；文件缺失或无效时只告警，信号退回全局默认参数。
func loadSchemes(path string) *exitplan.Registry {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	registry, err := exitplan.NewRegistry(path)
	if err != nil {
		logger.Warnf("[app] 止盈方案未加载 (%s): %v", path, err)
		return nil
	}
	registry.Watch()
	registry.OnChange(func(snap exitplan.Snapshot) {
		logger.Infof("[app] 止盈方案已重载: version=%d schemes=%d", snap.Version, len(snap.Schemes))
	})
	logger.Infof("✓ 已加载 %d 个止盈方案: %v", len(registry.IDs()), registry.IDs())
	return registry
}

func ingestConfig(cfg *config.Config) ingest.Config {
	return ingest.Config{
		PollInterval:    seconds(cfg.Ingest.PollIntervalSeconds),
		Workers:         cfg.Ingest.Workers,
		AnalysisTimeout: seconds(cfg.Ingest.AnalysisTimeoutSeconds),
		MaxRetries:      cfg.Ingest.MaxRetries,
		ItemTTL:         seconds(cfg.Ingest.ItemTTLSeconds),
		ReapInterval:    seconds(cfg.Ingest.ReapIntervalSeconds),
		QueueCapacity:   cfg.Ingest.QueueCapacity,
		DedupeInFlight:  cfg.Ingest.DedupeInFlight,
		Quote:           cfg.Risk.QuoteAsset,
		Authors:         cfg.AI.Authors,
	}
}

func riskDefaults(cfg config.RiskConfig) trader.Defaults {
	tiers := make([]types.TakeProfitTier, 0, len(cfg.DefaultTakeProfit))
	for _, t := range cfg.DefaultTakeProfit {
		tiers = append(tiers, types.TakeProfitTier{ThresholdPct: t.ThresholdPct, CloseFraction: t.CloseFraction})
	}
	return trader.Defaults{
		PositionPct: cfg.DefaultPositionPct,
		StopLossPct: cfg.DefaultStopLossPct,
		TakeProfit:  tiers,
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func buildFeed(cfg config.FeedConfig) (ingest.Feed, error) {
	if path := strings.TrimSpace(cfg.Static); path != "" {
		logger.Infof("✓ 使用本地消息源: %s", path)
		return feed.NewStaticFeed(path), nil
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("feed.url 与 feed.static 均未配置")
	}
	breaker := circuit.New("feed", cfg.BreakerThreshold, seconds(cfg.BreakerCooldown))
	return feed.NewHTTPFeed(cfg.URL, cfg.APIKey, seconds(cfg.TimeoutSeconds), breaker), nil
}

func buildAnalyzer(cfg config.AIConfig) (ingest.Analyzer, error) {
	prompt, err := provider.LoadPrompt(cfg.PromptPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		logger.Warnf("[app] 提示词文件不存在 (%s)，使用内置模板", cfg.PromptPath)
		prompt = provider.DefaultPrompt
	}
	client := &provider.OpenAIChatClient{
		BaseURL: cfg.APIURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
	logger.Infof("✓ 分析模型 %s 已就绪，提示词长度=%d 字符", cfg.Model, len(prompt))
	return provider.NewAnalyzer(client, cfg.Model, prompt, cfg.RequestsPerSecond, cfg.Temperature), nil
}

func buildExchange(cfg config.ExchangeConfig) (ExchangeClient, error) {
	if !cfg.DryRun && (strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.APISecret) == "") {
		return nil, fmt.Errorf("实盘模式需要 exchange.api_key 与 exchange.api_secret")
	}
	if cfg.DryRun {
		logger.Warnf("[app] 交易所处于 dry-run 模式，不会真实下单")
	}
	return binance.New(binance.Config{
		APIKey:        cfg.APIKey,
		APISecret:     cfg.APISecret,
		RESTBaseURL:   cfg.FuturesBaseURL,
		HTTPTimeout:   seconds(cfg.TimeoutSeconds),
		DryRun:        cfg.DryRun,
		DryRunBalance: cfg.DryRunBalance,
		Leverage:      cfg.Leverage,
		StepSize:      cfg.StepSize,
	}), nil
}

func buildNotifier(cfg config.NotifyConfig) (notifier.TextNotifier, error) {
	if !cfg.Telegram.Enabled {
		return notifier.Nop{}, nil
	}
	tg, err := notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ Telegram 通知已启用")
	return tg, nil
}

func startProfiler(cfg config.ProfilingConfig) (*pyroscope.Profiler, error) {
	addr := strings.TrimSpace(cfg.PyroscopeAddr)
	if addr == "" {
		return nil, nil
	}
	return pyroscope.Start(pyroscope.Config{
		ApplicationName: "newsdriven",
		ServerAddress:   addr,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
}

func buildLiveHTTP(cfg config.AppConfig, loop *ingest.Loop, positions *risk.Manager, recStore *records.Store, registry *exitplan.Registry) (*livehttp.Server, error) {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, nil
	}
	serverCfg := livehttp.ServerConfig{
		Addr:      cfg.HTTPAddr,
		Items:     loop,
		Positions: positions,
		LogPaths:  map[string]string{"app": cfg.LogPath},
	}
	if cfg.AnalyzerDump {
		serverCfg.LogPaths["analyzer"] = cfg.AnalyzerLogPath
	}
	if recStore != nil {
		serverCfg.Records = recStore
	}
	if registry != nil {
		serverCfg.Schemes = registry
	}
	srv, err := livehttp.NewServer(serverCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化运维接口失败: %w", err)
	}
	return srv, nil
}

func WithFeed(fn func(config.FeedConfig) (ingest.Feed, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.feedFn = fn
		}
	}
}

func WithAnalyzer(fn func(config.AIConfig) (ingest.Analyzer, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.analyzerFn = fn
		}
	}
}

func WithExchange(fn func(config.ExchangeConfig) (ExchangeClient, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.exchangeFn = fn
		}
	}
}

func WithNotifier(fn func(config.NotifyConfig) (notifier.TextNotifier, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.notifierFn = fn
		}
	}
}

func WithProfiler(fn func(config.ProfilingConfig) (*pyroscope.Profiler, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.profilerFn = fn
		}
	}
}

func WithStorageOverrides(proc ProcessedStore, recs *records.Store) AppBuilderOption {
	return func(b *AppBuilder) {
		b.processedOverride = proc
		b.recordsOverride = recs
	}
}
