package config

import "strings"

// Config 是 newsdriven 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Feed      FeedConfig      `toml:"feed"`
	Ingest    IngestConfig    `toml:"ingest"`
	AI        AIConfig        `toml:"ai"`
	Risk      RiskConfig      `toml:"risk"`
	Exchange  ExchangeConfig  `toml:"exchange"`
	Store     StoreConfig     `toml:"store"`
	Notify    NotifyConfig    `toml:"notify"`
	Profiling ProfilingConfig `toml:"profiling"`
}

type AppConfig struct {
	Env             string `toml:"env"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	HTTPAddr        string `toml:"http_addr"`
	LogPath         string `toml:"log_path"`
	AnalyzerLogPath string `toml:"analyzer_log_path"`
	AnalyzerDump    bool   `toml:"analyzer_dump"`
}

// FeedConfig 描述候选消息源；Static 非空时使用本地 JSON 文件代替 HTTP 拉取。
type FeedConfig struct {
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Static         string `toml:"static"`
	// 连续失败多少次后熔断
	BreakerThreshold int `toml:"breaker_threshold"`
	BreakerCooldown  int `toml:"breaker_cooldown_seconds"`
}

type IngestConfig struct {
	PollIntervalSeconds    int `toml:"poll_interval_seconds"`
	Workers                int `toml:"workers"`
	AnalysisTimeoutSeconds int `toml:"analysis_timeout_seconds"`
	MaxRetries             int `toml:"max_retries"`
	ItemTTLSeconds         int `toml:"item_ttl_seconds"`
	ReapIntervalSeconds    int `toml:"reap_interval_seconds"`
	// 0 表示不限容量
	QueueCapacity int `toml:"queue_capacity"`
	// 为 true 时，处理中的条目不会被重复入队
	DedupeInFlight bool `toml:"dedupe_inflight"`
}

type AIConfig struct {
	APIURL            string            `toml:"api_url"`
	APIKey            string            `toml:"api_key"`
	Model             string            `toml:"model"`
	PromptPath        string            `toml:"prompt_path"`
	RequestsPerSecond float64           `toml:"requests_per_second"`
	Temperature       float64           `toml:"temperature"`
	Authors           map[string]string `toml:"authors"`
}

// TierConfig 对应一档止盈：盈利达到 threshold_pct 时平掉开仓数量的 close_fraction。
type TierConfig struct {
	ThresholdPct  float64 `toml:"threshold_pct"`
	CloseFraction float64 `toml:"close_fraction"`
}

type RiskConfig struct {
	DefaultPositionPct float64      `toml:"default_position_pct"`
	DefaultStopLossPct float64      `toml:"default_stop_loss_pct"`
	DefaultTakeProfit  []TierConfig `toml:"default_take_profit"`
	SchemePath         string       `toml:"scheme_path"`
	PollIntervalMs     int          `toml:"poll_interval_ms"`
	MinConfidence      float64      `toml:"min_confidence"`
	SymbolBlacklist    []string     `toml:"symbol_blacklist"`
	QuoteAsset         string       `toml:"quote_asset"`
}

type ExchangeConfig struct {
	APIKey         string  `toml:"api_key"`
	APISecret      string  `toml:"api_secret"`
	FuturesBaseURL string  `toml:"futures_base_url"`
	DryRun         bool    `toml:"dry_run"`
	DryRunBalance  float64 `toml:"dry_run_balance"`
	Leverage       int     `toml:"leverage"`
	MinQty         float64 `toml:"min_qty"`
	StepSize       float64 `toml:"step_size"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

type StoreConfig struct {
	ProcessedPath string `toml:"processed_path"`
	RecordsDriver string `toml:"records_driver"`
	RecordsDSN    string `toml:"records_dsn"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   int64  `toml:"chat_id"`
}

type ProfilingConfig struct {
	PyroscopeAddr string `toml:"pyroscope_addr"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
