package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"

	"newsdriven/internal/logger"
	"newsdriven/internal/types"
)

const (
	DefaultWorkers         = 3
	DefaultAnalysisTimeout = 30 * time.Second
	unknownAuthorIntro     = "unknown author"
	workerPanicPause       = 500 * time.Millisecond
	// 关闭时等待分析调用响应取消的最长时间
	shutdownGrace = 2 * time.Second
)

// Pool 是固定数量的分析 worker，从共享队列取消息调用分析器。
type Pool struct {
	workers  int
	timeout  time.Duration
	queue    *workQueue
	table    *Table
	analyzer Analyzer
	authors  map[string]string
	observer Observer

	running atomic.Int32
}

func newPool(workers int, timeout time.Duration, q *workQueue, table *Table, analyzer Analyzer, authors map[string]string, obs Observer) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Pool{
		workers:  workers,
		timeout:  timeout,
		queue:    q,
		table:    table,
		analyzer: analyzer,
		authors:  authors,
		observer: obs,
	}
}

// worker 循环出队直到 ctx 结束；单条消息的 panic 不会结束 worker。
func (p *Pool) worker(ctx context.Context, n int) {
	p.running.Add(1)
	logger.Debugf("[worker] #%d started", n)
	defer func() {
		p.running.Add(-1)
		logger.Debugf("[worker] #%d stopped", n)
	}()
	for {
		it, err := p.queue.Pop(ctx)
		if err != nil {
			return
		}
		if !p.safeProcess(ctx, n, it) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(workerPanicPause):
			}
		}
	}
}

func (p *Pool) safeProcess(ctx context.Context, n int, it workItem) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[worker] #%d unexpected panic id=%s: %v\n%s", n, it.Candidate.ID, r, debug.Stack())
			ok = false
		}
	}()
	p.process(ctx, n, it)
	return true
}

func (p *Pool) process(ctx context.Context, n int, it workItem) {
	c := it.Candidate
	if c.ID == "" {
		return
	}
	if !p.table.MarkProcessing(c.ID) {
		logger.Debugf("[worker] #%d drop id=%s: retries exhausted", n, c.ID)
		return
	}
	req := AnalyzeRequest{
		ItemID:       c.ID,
		Text:         c.Text,
		Author:       c.Author,
		Introduction: p.introduction(c.Author),
	}
	start := time.Now()
	res, err := p.analyze(ctx, req)
	if ctx.Err() != nil {
		// 关闭中，不计入重试
		return
	}
	if err == nil {
		p.table.MarkDone(c.ID, res)
		p.observer.OnAnalyzed(c.ID, res, nil, 0)
		logger.Infof("[worker] #%d done id=%s in %s", n, c.ID, time.Since(start).Truncate(time.Millisecond))
		return
	}
	timedOut := errors.Is(err, context.DeadlineExceeded)
	retries := p.table.MarkFailed(c.ID, timedOut, err)
	p.observer.OnAnalyzed(c.ID, nil, err, retries)
	if timedOut {
		logger.Warnf("[worker] #%d timeout after %s id=%s (retry %d/%d)", n, p.timeout, c.ID, retries, p.table.MaxRetries())
		return
	}
	logger.Warnf("[worker] #%d error id=%s: %v (retry %d/%d)", n, c.ID, err, retries, p.table.MaxRetries())
}

// analyze 在独立 goroutine 中调用分析器，保证即使分析器忽略 ctx 也能按时返回。
func (p *Pool) analyze(ctx context.Context, req AnalyzeRequest) (types.AnalysisResult, error) {
	actx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type outcome struct {
		res types.AnalysisResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("analyzer panic: %v", r)}
			}
		}()
		res, err := p.analyzer.Analyze(actx, req)
		done <- outcome{res: res, err: err}
	}()
	select {
	case out := <-done:
		if out.err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, out.err)
		}
		return out.res, out.err
	case <-actx.Done():
		if ctx.Err() != nil {
			// 关闭中：给分析调用一个宽限期完成退出
			grace := time.NewTimer(shutdownGrace)
			defer grace.Stop()
			select {
			case <-done:
			case <-grace.C:
				logger.Warnf("[worker] analyzer for id=%s ignored cancellation", req.ItemID)
			}
		}
		return nil, actx.Err()
	}
}

func (p *Pool) introduction(author string) string {
	author = strings.TrimSpace(author)
	if author != "" {
		if intro, ok := p.authors[author]; ok && strings.TrimSpace(intro) != "" {
			return intro
		}
	}
	return unknownAuthorIntro
}
