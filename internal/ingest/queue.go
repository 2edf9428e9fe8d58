package ingest

import (
	"context"
	"sync"

	"newsdriven/internal/types"
)

type workItem struct {
	Candidate types.Candidate
}

// workQueue 是 FIFO 工作队列。capacity 为 0 时不限长度；满时 Push 直接丢弃，不阻塞调用方。
type workQueue struct {
	mu       sync.Mutex
	items    []workItem
	capacity int
	notify   chan struct{}
}

func newWorkQueue(capacity int) *workQueue {
	if capacity < 0 {
		capacity = 0
	}
	return &workQueue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

func (q *workQueue) Push(it workItem) bool {
	q.mu.Lock()
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, it)
	q.mu.Unlock()
	q.signal()
	return true
}

// Pop 阻塞直到有消息或 ctx 结束。
func (q *workQueue) Pop(ctx context.Context) (workItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			it := q.items[0]
			q.items[0] = workItem{}
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				q.signal()
			}
			return it, nil
		}
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return workItem{}, ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *workQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *workQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
