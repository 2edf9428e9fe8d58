package ingest

import (
	"context"
	"time"

	"newsdriven/internal/logger"
)

const (
	DefaultItemTTL      = 60 * time.Second
	DefaultReapInterval = 5 * time.Second
)

// reaper 定期清理超过 TTL 的状态记录，无论其处于哪个状态。
type reaper struct {
	table    *Table
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	// done 在 run 退出时关闭
	done chan struct{}
}

func (r *reaper) run(ctx context.Context) {
	if r.done != nil {
		defer close(r.done)
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *reaper) sweep() (expired []string) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("[reaper] sweep panic: %v", rec)
		}
	}()
	expired = r.table.Expire(r.now(), r.ttl)
	for _, id := range expired {
		logger.Infof("[reaper] expired id=%s removed after %s", id, r.ttl)
	}
	return expired
}
