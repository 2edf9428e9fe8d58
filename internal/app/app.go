package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"newsdriven/internal/config"
	"newsdriven/internal/exitplan"
	"newsdriven/internal/gateway/notifier"
	"newsdriven/internal/ingest"
	"newsdriven/internal/logger"
	"newsdriven/internal/risk"
	"newsdriven/internal/trader"
	livehttp "newsdriven/internal/transport/http/live"

	"github.com/grafana/pyroscope-go"
	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→初始化依赖→启动拉取、交易与风控。
type App struct {
	cfg      *config.Config
	loop     *ingest.Loop
	trader   *trader.Trader
	risk     *risk.Manager
	reporter *notifier.Reporter
	schemes  *exitplan.Registry
	liveHTTP *livehttp.Server
	profiler *pyroscope.Profiler
	closers  []io.Closer
	Summary  *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动拉取循环、交易消费、通知与运维接口，阻塞到 ctx 结束。
// 返回前等待所有持仓监控退出并关闭存储。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.loop == nil || a.trader == nil || a.risk == nil {
		return fmt.Errorf("app pipeline not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	group, gctx := errgroup.WithContext(ctx)

	if a.liveHTTP != nil {
		group.Go(func() error {
			if err := a.liveHTTP.Start(gctx); err != nil {
				return fmt.Errorf("live http server error: %w", err)
			}
			return nil
		})
	}
	if a.reporter != nil {
		group.Go(func() error {
			return a.reporter.Run(gctx)
		})
	}
	group.Go(func() error {
		return a.loop.Run(gctx)
	})
	group.Go(func() error {
		return a.trader.Run(gctx, a.loop.Signals())
	})

	err := group.Wait()
	a.risk.Wait()
	logger.Infof("[app] stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close 关闭存储与 profiler，可重复调用。
func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warnf("[app] close failed: %v", err)
		}
	}
	a.closers = nil
	if a.profiler != nil {
		if err := a.profiler.Stop(); err != nil {
			logger.Warnf("[app] pyroscope stop failed: %v", err)
		}
		a.profiler = nil
	}
}

// Risk exposes the position registry (for testing/replay harnesses).
func (a *App) Risk() *risk.Manager {
	if a == nil {
		return nil
	}
	return a.risk
}

// Loop exposes the ingest loop.
func (a *App) Loop() *ingest.Loop {
	if a == nil {
		return nil
	}
	return a.loop
}
