package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv             = "dev"
	defaultAppLogLevel        = "info"
	defaultAppLogFormat       = "text"
	defaultAppHTTPAddr        = ":9991"
	defaultAppLogPath         = "/data/logs/newsdriven.log"
	defaultAppAnalyzerLogPath = "/data/logs/newsdriven-analyzer.log"
	defaultFeedTimeout        = 15
	defaultFeedBreakerFails   = 5
	defaultFeedBreakerCool    = 60
	defaultIngestPoll         = 10
	defaultIngestWorkers      = 3
	defaultIngestTimeout      = 30
	defaultIngestMaxRetries   = 3
	defaultIngestTTL          = 60
	defaultIngestReap         = 5
	defaultAIModel            = "gpt-4o-mini"
	defaultAIPromptPath       = "prompts/analyzer.txt"
	defaultAIRate             = 1
	defaultRiskPositionPct    = 0.02
	defaultRiskStopLossPct    = 0.01
	defaultRiskPollMs         = 1000
	defaultRiskSchemePath     = "configs/take_profit_schemes.yaml"
	defaultQuoteAsset         = "USDT"
	defaultExchangeBaseURL    = "https://fapi.binance.com"
	defaultExchangeLeverage   = 1
	defaultExchangeStep       = 0.001
	defaultExchangeTimeout    = 10
	defaultDryRunBalance      = 1000
	defaultProcessedPath      = "/data/db/processed.db"
	defaultRecordsDriver      = "sqlite"
	defaultRecordsDSN         = "/data/db/records.db"
)

func defaultTakeProfit() []TierConfig {
	return []TierConfig{
		{ThresholdPct: 0.02, CloseFraction: 0.5},
		{ThresholdPct: 0.05, CloseFraction: 0.5},
	}
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Feed.applyDefaults(keys)
	c.Ingest.applyDefaults(keys)
	c.AI.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.analyzer_log_path", &a.AnalyzerLogPath, defaultAppAnalyzerLogPath),
	)
}

func (f *FeedConfig) applyDefaults(keys keySet) {
	if f == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("feed.timeout_seconds", &f.TimeoutSeconds, defaultFeedTimeout),
		intFieldDefault("feed.breaker_threshold", &f.BreakerThreshold, defaultFeedBreakerFails),
		intFieldDefault("feed.breaker_cooldown_seconds", &f.BreakerCooldown, defaultFeedBreakerCool),
	)
}

func (i *IngestConfig) applyDefaults(keys keySet) {
	if i == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("ingest.poll_interval_seconds", &i.PollIntervalSeconds, defaultIngestPoll),
		intFieldDefault("ingest.workers", &i.Workers, defaultIngestWorkers),
		intFieldDefault("ingest.analysis_timeout_seconds", &i.AnalysisTimeoutSeconds, defaultIngestTimeout),
		intFieldDefault("ingest.max_retries", &i.MaxRetries, defaultIngestMaxRetries),
		intFieldDefault("ingest.item_ttl_seconds", &i.ItemTTLSeconds, defaultIngestTTL),
		intFieldDefault("ingest.reap_interval_seconds", &i.ReapIntervalSeconds, defaultIngestReap),
	)
}

func (a *AIConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("ai.model", &a.Model, defaultAIModel),
		stringFieldDefault("ai.prompt_path", &a.PromptPath, defaultAIPromptPath),
		fieldDefault{
			key:   "ai.requests_per_second",
			need:  func() bool { return a.RequestsPerSecond <= 0 },
			apply: func() { a.RequestsPerSecond = defaultAIRate },
		},
	)
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.default_position_pct",
			need:  func() bool { return r.DefaultPositionPct <= 0 },
			apply: func() { r.DefaultPositionPct = defaultRiskPositionPct },
		},
		fieldDefault{
			key:   "risk.default_stop_loss_pct",
			need:  func() bool { return r.DefaultStopLossPct <= 0 },
			apply: func() { r.DefaultStopLossPct = defaultRiskStopLossPct },
		},
		fieldDefault{
			key:   "risk.default_take_profit",
			need:  func() bool { return len(r.DefaultTakeProfit) == 0 },
			apply: func() { r.DefaultTakeProfit = defaultTakeProfit() },
		},
		stringFieldDefault("risk.scheme_path", &r.SchemePath, defaultRiskSchemePath),
		intFieldDefault("risk.poll_interval_ms", &r.PollIntervalMs, defaultRiskPollMs),
		stringFieldDefault("risk.quote_asset", &r.QuoteAsset, defaultQuoteAsset),
	)
	r.QuoteAsset = strings.ToUpper(strings.TrimSpace(r.QuoteAsset))
	r.SymbolBlacklist = normalizeUpperList(r.SymbolBlacklist)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.futures_base_url", &e.FuturesBaseURL, defaultExchangeBaseURL),
		boolFieldDefault("exchange.dry_run", &e.DryRun, true),
		intFieldDefault("exchange.leverage", &e.Leverage, defaultExchangeLeverage),
		intFieldDefault("exchange.timeout_seconds", &e.TimeoutSeconds, defaultExchangeTimeout),
		fieldDefault{
			key:   "exchange.step_size",
			need:  func() bool { return e.StepSize <= 0 },
			apply: func() { e.StepSize = defaultExchangeStep },
		},
		fieldDefault{
			key:   "exchange.dry_run_balance",
			need:  func() bool { return e.DryRunBalance <= 0 },
			apply: func() { e.DryRunBalance = defaultDryRunBalance },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.processed_path", &s.ProcessedPath, defaultProcessedPath),
		stringFieldDefault("store.records_driver", &s.RecordsDriver, defaultRecordsDriver),
		stringFieldDefault("store.records_dsn", &s.RecordsDSN, defaultRecordsDSN),
	)
	s.RecordsDriver = strings.ToLower(strings.TrimSpace(s.RecordsDriver))
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func normalizeUpperList(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	seen := make(map[string]bool, len(list))
	for _, item := range list {
		item = strings.ToUpper(strings.TrimSpace(item))
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
