package ingest

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"newsdriven/internal/logger"
	"newsdriven/internal/types"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultPollInterval = 10 * time.Second
	signalBuffer        = 64
)

// Config 控制拉取循环、worker 池与清理任务。
type Config struct {
	PollInterval    time.Duration
	Workers         int
	AnalysisTimeout time.Duration
	MaxRetries      int
	ItemTTL         time.Duration
	ReapInterval    time.Duration
	// 0 表示不限容量；满时新消息被丢弃，下个周期重新入队
	QueueCapacity int
	// 为 true 时不重复入队仍在排队、处理中或已完成待收割的消息
	DedupeInFlight bool
	Quote          string
	Authors        map[string]string
}

func (c *Config) normalize() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = DefaultAnalysisTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.ItemTTL <= 0 {
		c.ItemTTL = DefaultItemTTL
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = DefaultReapInterval
	}
}

// Loop 周期性拉取候选消息，去重后入队分析，并把上一轮完成的分析结果转换为信号。
// 分析从不在循环内同步等待。
type Loop struct {
	cfg        Config
	feed       Feed
	store      ProcessedStore
	table      *Table
	queue      *workQueue
	pool       *Pool
	reaper     *reaper
	translator *Translator
	observer   Observer
	now        func() time.Time

	signals chan types.Signal

	mu        sync.RWMutex
	processed map[string]struct{}
}

func NewLoop(cfg Config, feed Feed, store ProcessedStore, analyzer Analyzer, obs Observer) *Loop {
	cfg.normalize()
	if obs == nil {
		obs = nopObserver{}
	}
	table := NewTable(cfg.MaxRetries)
	queue := newWorkQueue(cfg.QueueCapacity)
	l := &Loop{
		cfg:        cfg,
		feed:       feed,
		store:      store,
		table:      table,
		queue:      queue,
		pool:       newPool(cfg.Workers, cfg.AnalysisTimeout, queue, table, analyzer, cfg.Authors, obs),
		translator: NewTranslator(cfg.Quote),
		observer:   obs,
		now:        time.Now,
		signals:    make(chan types.Signal, signalBuffer),
		processed:  make(map[string]struct{}),
	}
	l.reaper = &reaper{table: table, ttl: cfg.ItemTTL, interval: cfg.ReapInterval, now: l.clock, done: make(chan struct{})}
	return l
}

func (l *Loop) clock() time.Time { return l.now() }

// Signals 返回信号流；Run 退出后关闭。
func (l *Loop) Signals() <-chan types.Signal { return l.signals }

// Table 暴露状态表，供管理接口只读查询。
func (l *Loop) Table() *Table { return l.table }

// QueueLen 返回排队中的消息数。
func (l *Loop) QueueLen() int { return l.queue.Len() }

// Run 阻塞直到 ctx 结束；返回前等待所有 worker 与清理任务退出。
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.signals)

	bgCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(bgCtx)
	for i := 1; i <= l.pool.workers; i++ {
		n := i
		g.Go(func() error {
			l.pool.worker(gctx, n)
			return nil
		})
	}
	g.Go(func() error {
		l.reaper.run(gctx)
		return nil
	})
	logger.Infof("[ingest] started: workers=%d poll=%s timeout=%s ttl=%s", l.pool.workers, l.cfg.PollInterval, l.cfg.AnalysisTimeout, l.cfg.ItemTTL)

	l.poll(ctx)

	cancel()
	err := g.Wait()
	logger.Infof("[ingest] stopped: workers and reaper exited")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (l *Loop) poll(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		start := l.now()
		l.safeCycle(ctx)
		wait := l.cfg.PollInterval - l.now().Sub(start)
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

func (l *Loop) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[ingest] cycle panic: %v\n%s", r, debug.Stack())
		}
	}()
	l.cycle(ctx)
}

// cycle 执行一轮拉取；拉取失败只记录日志。
func (l *Loop) cycle(ctx context.Context) {
	items, err := l.feed.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warnf("[ingest] fetch failed: %v", err)
		}
		return
	}
	l.refreshProcessed(ctx)

	var enqueued, skipped, emitted int
	for _, c := range items {
		if ctx.Err() != nil {
			return
		}
		if c.ID == "" {
			continue
		}
		if l.isProcessed(c.ID) {
			skipped++
			continue
		}
		if l.shouldEnqueue(c.ID) {
			retries, ok := l.table.Touch(c.ID, l.now())
			if !ok {
				logger.Debugf("[ingest] id=%s skipped: max retries %d reached", c.ID, retries)
				skipped++
				continue
			}
			if !l.queue.Push(workItem{Candidate: c}) {
				logger.Warnf("[ingest] queue full (cap=%d), id=%s dropped this cycle", l.cfg.QueueCapacity, c.ID)
			} else {
				l.table.MarkQueued(c.ID)
				enqueued++
				l.observer.OnEnqueued(c, retries)
			}
		}
		if l.harvest(ctx, c) {
			emitted++
		}
	}
	logger.Debugf("[ingest] cycle: fetched=%d enqueued=%d skipped=%d signals=%d queue=%d", len(items), enqueued, skipped, emitted, l.queue.Len())
}

func (l *Loop) shouldEnqueue(id string) bool {
	if !l.cfg.DedupeInFlight {
		return true
	}
	st, ok := l.table.Status(id)
	if !ok {
		return true
	}
	switch st {
	case StatusPending:
		// 上次入队被丢弃的 Pending 消息需要重新入队
		return !l.table.Queued(id)
	case StatusProcessing, StatusDone:
		return false
	default:
		return true
	}
}

// harvest 取出已完成的分析结果并尝试生成信号。
func (l *Loop) harvest(ctx context.Context, c types.Candidate) bool {
	res, ok := l.table.TakeResult(c.ID)
	if !ok {
		return false
	}
	sig, err := l.translator.Translate(c, res)
	if err != nil {
		logger.Infof("[ingest] id=%s dropped: %v", c.ID, err)
		return false
	}
	l.markProcessed(ctx, c.ID)
	l.observer.OnSignal(c, sig)
	logger.Infof("[ingest] signal id=%s symbol=%s side=%s confidence=%.0f", c.ID, sig.Symbol, sig.Side, sig.Confidence)
	select {
	case l.signals <- sig:
		return true
	case <-ctx.Done():
		return false
	}
}

func (l *Loop) refreshProcessed(ctx context.Context) {
	if l.store == nil {
		return
	}
	ids, err := l.store.Load(ctx)
	if err != nil {
		logger.Warnf("[ingest] load processed ids failed, using cached set: %v", err)
		return
	}
	l.mu.Lock()
	for id := range ids {
		l.processed[id] = struct{}{}
	}
	l.mu.Unlock()
}

func (l *Loop) isProcessed(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.processed[id]
	return ok
}

func (l *Loop) markProcessed(ctx context.Context, id string) {
	l.mu.Lock()
	l.processed[id] = struct{}{}
	l.mu.Unlock()
	if l.store == nil {
		return
	}
	if err := l.store.MarkProcessed(ctx, []string{id}); err != nil {
		logger.Errorf("[ingest] persist processed id=%s failed: %v", id, err)
	}
}
