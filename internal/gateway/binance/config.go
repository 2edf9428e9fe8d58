package binance

import (
	"strings"
	"time"
)

type Config struct {
	APIKey      string
	APISecret   string
	RESTBaseURL string
	HTTPTimeout time.Duration

	// DryRun 时不向交易所下单，余额取 DryRunBalance，价格仍走公共行情接口
	DryRun        bool
	DryRunBalance float64

	Leverage int
	StepSize float64
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://fapi.binance.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	if out.Leverage <= 0 {
		out.Leverage = 1
	}
	if out.DryRun && out.DryRunBalance <= 0 {
		out.DryRunBalance = 1000
	}
	return out
}
