package app

import (
	"fmt"
	"strings"

	"newsdriven/internal/config"
	"newsdriven/internal/exitplan"
)

type StartupSummary struct {
	Feed     FeedSummary
	Analyzer AnalyzerSummary
	Risk     RiskSummary
	Exchange ExchangeSummary
	Store    config.StoreConfig
	HTTPAddr string
}

type FeedSummary struct {
	Source       string
	PollInterval int
	Workers      int
	Timeout      int
	MaxRetries   int
	ItemTTL      int
}

type AnalyzerSummary struct {
	Model      string
	APIURL     string
	PromptPath string
	RPS        float64
	Authors    int
}

type RiskSummary struct {
	PositionPct   float64
	StopLossPct   float64
	TakeProfit    []string
	Schemes       []string
	MinConfidence float64
	Blacklist     []string
	Quote         string
}

type ExchangeSummary struct {
	DryRun   bool
	BaseURL  string
	Leverage int
	StepSize float64
	MinQty   float64
}

func newStartupSummary(cfg *config.Config, registry *exitplan.Registry) *StartupSummary {
	source := cfg.Feed.URL
	if strings.TrimSpace(cfg.Feed.Static) != "" {
		source = "static:" + cfg.Feed.Static
	}
	tiers := make([]string, 0, len(cfg.Risk.DefaultTakeProfit))
	for _, t := range cfg.Risk.DefaultTakeProfit {
		tiers = append(tiers, fmt.Sprintf("+%.2f%% 平 %.0f%%", t.ThresholdPct*100, t.CloseFraction*100))
	}
	var schemes []string
	if registry != nil {
		schemes = registry.IDs()
	}
	return &StartupSummary{
		Feed: FeedSummary{
			Source:       source,
			PollInterval: cfg.Ingest.PollIntervalSeconds,
			Workers:      cfg.Ingest.Workers,
			Timeout:      cfg.Ingest.AnalysisTimeoutSeconds,
			MaxRetries:   cfg.Ingest.MaxRetries,
			ItemTTL:      cfg.Ingest.ItemTTLSeconds,
		},
		Analyzer: AnalyzerSummary{
			Model:      cfg.AI.Model,
			APIURL:     cfg.AI.APIURL,
			PromptPath: cfg.AI.PromptPath,
			RPS:        cfg.AI.RequestsPerSecond,
			Authors:    len(cfg.AI.Authors),
		},
		Risk: RiskSummary{
			PositionPct:   cfg.Risk.DefaultPositionPct,
			StopLossPct:   cfg.Risk.DefaultStopLossPct,
			TakeProfit:    tiers,
			Schemes:       schemes,
			MinConfidence: cfg.Risk.MinConfidence,
			Blacklist:     cfg.Risk.SymbolBlacklist,
			Quote:         cfg.Risk.QuoteAsset,
		},
		Exchange: ExchangeSummary{
			DryRun:   cfg.Exchange.DryRun,
			BaseURL:  cfg.Exchange.FuturesBaseURL,
			Leverage: cfg.Exchange.Leverage,
			StepSize: cfg.Exchange.StepSize,
			MinQty:   cfg.Exchange.MinQty,
		},
		Store:    cfg.Store,
		HTTPAddr: cfg.App.HTTPAddr,
	}
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[消息源 (FEED)]")
	fmt.Printf("  来源: %s\n", s.Feed.Source)
	fmt.Printf("  拉取间隔: %ds  并发: %d\n", s.Feed.PollInterval, s.Feed.Workers)
	fmt.Printf("  分析超时: %ds  重试: %d  TTL: %ds\n", s.Feed.Timeout, s.Feed.MaxRetries, s.Feed.ItemTTL)
	fmt.Println()

	fmt.Println("[分析模型 (ANALYZER)]")
	fmt.Printf("  模型: %s\n", s.Analyzer.Model)
	fmt.Printf("  接口: %s\n", orDash(s.Analyzer.APIURL))
	fmt.Printf("  提示词: %s\n", orDash(s.Analyzer.PromptPath))
	fmt.Printf("  限速: %.2f req/s  作者简介: %d\n", s.Analyzer.RPS, s.Analyzer.Authors)
	fmt.Println()

	fmt.Println("[风控 (RISK)]")
	fmt.Printf("  计价币: %s\n", s.Risk.Quote)
	fmt.Printf("  默认仓位: %.2f%%  默认止损: %.2f%%\n", s.Risk.PositionPct*100, s.Risk.StopLossPct*100)
	fmt.Printf("  默认止盈: %s\n", formatList(s.Risk.TakeProfit))
	fmt.Printf("  命名方案: %s\n", formatList(s.Risk.Schemes))
	fmt.Printf("  最低置信度: %.1f\n", s.Risk.MinConfidence)
	fmt.Printf("  黑名单: %s\n", formatList(s.Risk.Blacklist))
	fmt.Println()

	fmt.Println("[交易所 (EXCHANGE)]")
	mode := "实盘"
	if s.Exchange.DryRun {
		mode = "模拟 (dry-run)"
	}
	fmt.Printf("  模式: %s\n", mode)
	fmt.Printf("  接口: %s\n", orDash(s.Exchange.BaseURL))
	fmt.Printf("  杠杆: %dx  步长: %g  最小数量: %g\n", s.Exchange.Leverage, s.Exchange.StepSize, s.Exchange.MinQty)
	fmt.Println()

	fmt.Println("[存储 (STORE)]")
	fmt.Printf("  已处理: %s\n", orDash(s.Store.ProcessedPath))
	dsn := s.Store.RecordsDSN
	if s.Store.RecordsDriver == "postgres" && dsn != "" {
		dsn = "***"
	}
	fmt.Printf("  审计记录: %s (%s)\n", orDash(dsn), s.Store.RecordsDriver)
	fmt.Printf("  运维接口: %s\n", orDash(s.HTTPAddr))
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
