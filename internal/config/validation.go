package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Feed.validate(); err != nil {
		return err
	}
	if err := c.Ingest.validate(); err != nil {
		return err
	}
	if err := c.AI.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (f *FeedConfig) validate() error {
	if strings.TrimSpace(f.URL) == "" && strings.TrimSpace(f.Static) == "" {
		return fmt.Errorf("feed.url or feed.static is required")
	}
	return nil
}

func (i *IngestConfig) validate() error {
	if i.MaxRetries > 3 {
		return fmt.Errorf("ingest.max_retries must be <= 3")
	}
	if i.QueueCapacity < 0 {
		return fmt.Errorf("ingest.queue_capacity must be >= 0")
	}
	if i.ItemTTLSeconds < i.ReapIntervalSeconds {
		return fmt.Errorf("ingest.item_ttl_seconds must be >= ingest.reap_interval_seconds")
	}
	return nil
}

func (a *AIConfig) validate() error {
	if strings.TrimSpace(a.APIURL) == "" {
		return fmt.Errorf("ai.api_url is required")
	}
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("ai.model is required")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.DefaultPositionPct <= 0 || r.DefaultPositionPct > 1 {
		return fmt.Errorf("risk.default_position_pct must be in (0,1]")
	}
	if r.DefaultStopLossPct <= 0 || r.DefaultStopLossPct >= 1 {
		return fmt.Errorf("risk.default_stop_loss_pct must be in (0,1)")
	}
	if r.MinConfidence < 0 || r.MinConfidence > 100 {
		return fmt.Errorf("risk.min_confidence must be in [0,100]")
	}
	sum := 0.0
	prev := 0.0
	for i, tier := range r.DefaultTakeProfit {
		if tier.ThresholdPct <= 0 {
			return fmt.Errorf("risk.default_take_profit[%d].threshold_pct must be > 0", i)
		}
		if tier.CloseFraction <= 0 || tier.CloseFraction > 1 {
			return fmt.Errorf("risk.default_take_profit[%d].close_fraction must be in (0,1]", i)
		}
		if tier.ThresholdPct <= prev {
			return fmt.Errorf("risk.default_take_profit thresholds must be ascending")
		}
		prev = tier.ThresholdPct
		sum += tier.CloseFraction
	}
	if sum-1 > 1e-9 {
		return fmt.Errorf("risk.default_take_profit close_fraction sum %.4f exceeds 1", sum)
	}
	if r.QuoteAsset == "" {
		return fmt.Errorf("risk.quote_asset cannot be empty")
	}
	return nil
}

func (e *ExchangeConfig) validate() error {
	if e.DryRun {
		return nil
	}
	if strings.TrimSpace(e.APIKey) == "" || strings.TrimSpace(e.APISecret) == "" {
		return fmt.Errorf("exchange.api_key/api_secret are required when dry_run=false")
	}
	if e.Leverage < 1 || e.Leverage > 125 {
		return fmt.Errorf("exchange.leverage must be in [1,125]")
	}
	return nil
}

func (s *StoreConfig) validate() error {
	switch s.RecordsDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("store.records_driver must be sqlite or postgres, got %q", s.RecordsDriver)
	}
	if strings.TrimSpace(s.ProcessedPath) == "" {
		return fmt.Errorf("store.processed_path cannot be empty")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if !tg.Enabled {
		return nil
	}
	if strings.TrimSpace(tg.BotToken) == "" {
		return fmt.Errorf("notify.telegram.bot_token is required when enabled")
	}
	if tg.ChatID == 0 {
		return fmt.Errorf("notify.telegram.chat_id is required when enabled")
	}
	return nil
}
