package ingest

import (
	"sort"
	"sync"
	"time"

	"newsdriven/internal/types"
)

const DefaultMaxRetries = 3

type entry struct {
	status    Status
	queued    bool
	retries   int
	lastErr   string
	createdAt time.Time
	updatedAt time.Time
}

// Table 保存每个候选 ID 的状态与分析结果缓存，供拉取循环、worker 与清理任务并发访问。
type Table struct {
	mu         sync.Mutex
	maxRetries int
	now        func() time.Time
	items      map[string]*entry
	results    map[string]types.AnalysisResult
}

func NewTable(maxRetries int) *Table {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Table{
		maxRetries: maxRetries,
		now:        time.Now,
		items:      make(map[string]*entry),
		results:    make(map[string]types.AnalysisResult),
	}
}

func (t *Table) MaxRetries() int { return t.maxRetries }

// Touch 在入队前调用：重试次数已达上限时返回 ok=false；
// 否则把状态置为 Pending（不存在则创建，存在则保留重试次数）。
func (t *Table) Touch(id string, now time.Time) (retries int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, exists := t.items[id]
	if !exists {
		t.items[id] = &entry{status: StatusPending, createdAt: now, updatedAt: now}
		return 0, true
	}
	if e.retries >= t.maxRetries {
		return e.retries, false
	}
	e.status = StatusPending
	e.updatedAt = now
	return e.retries, true
}

// MarkQueued 记录消息已进入工作队列；入队失败时不调用，Pending 消息下个周期会再次入队。
func (t *Table) MarkQueued(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.items[id]; ok {
		e.queued = true
	}
}

// Queued 表示 id 仍在队列中等待 worker 取出。
func (t *Table) Queued(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.items[id]
	return ok && e.queued
}

// Status 返回 id 当前状态。
func (t *Table) Status(id string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.items[id]
	if !ok {
		return 0, false
	}
	return e.status, true
}

// Exhausted 表示 id 已用完重试次数。
func (t *Table) Exhausted(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.items[id]
	return ok && e.retries >= t.maxRetries
}

// MarkProcessing 由 worker 出队后调用；重试次数已达上限时返回 false，调用方应丢弃该消息。
// 记录已被清理时重新创建。
func (t *Table) MarkProcessing(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	e, ok := t.items[id]
	if !ok {
		e = &entry{createdAt: now}
		t.items[id] = e
	}
	e.queued = false
	if e.retries >= t.maxRetries {
		return false
	}
	e.status = StatusProcessing
	e.updatedAt = now
	return true
}

// MarkDone 缓存分析结果并清零重试次数。
func (t *Table) MarkDone(id string, result types.AnalysisResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	e, ok := t.items[id]
	if !ok {
		e = &entry{createdAt: now}
		t.items[id] = e
	}
	e.status = StatusDone
	e.retries = 0
	e.lastErr = ""
	e.updatedAt = now
	t.results[id] = result
}

// MarkFailed 记录一次超时或错误，重试次数加一并封顶；返回新的重试次数。
func (t *Table) MarkFailed(id string, timedOut bool, cause error) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	e, ok := t.items[id]
	if !ok {
		e = &entry{createdAt: now}
		t.items[id] = e
	}
	if timedOut {
		e.status = StatusTimedOut
	} else {
		e.status = StatusError
	}
	if e.retries < t.maxRetries {
		e.retries++
	}
	if cause != nil {
		e.lastErr = cause.Error()
	}
	e.updatedAt = now
	return e.retries
}

// TakeResult 取出并删除缓存的分析结果。
func (t *Table) TakeResult(id string) (types.AnalysisResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, ok := t.results[id]
	if ok {
		delete(t.results, id)
	}
	return res, ok
}

// HasResult 仅查询，不取出。
func (t *Table) HasResult(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.results[id]
	return ok
}

// Expire 删除创建时间早于 now-ttl 的记录及其缓存结果，不区分状态。
func (t *Table) Expire(now time.Time, ttl time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []string
	for id, e := range t.items {
		if now.Sub(e.createdAt) > ttl {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(t.items, id)
		delete(t.results, id)
	}
	// 没有状态记录的孤立结果同样清理
	for id := range t.results {
		if _, ok := t.items[id]; !ok {
			delete(t.results, id)
		}
	}
	sort.Strings(expired)
	return expired
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Snapshot 按创建时间排序返回全部记录。
func (t *Table) Snapshot() []ItemStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ItemStatus, 0, len(t.items))
	for id, e := range t.items {
		_, has := t.results[id]
		out = append(out, ItemStatus{
			ID:        id,
			Status:    e.status,
			Retries:   e.retries,
			HasResult: has,
			LastError: e.lastErr,
			CreatedAt: e.createdAt,
			UpdatedAt: e.updatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
