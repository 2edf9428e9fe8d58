package ingest

import (
	"context"
	"sync"

	"newsdriven/internal/types"
)

type fakeFeed struct {
	mu    sync.Mutex
	items []types.Candidate
	err   error
	calls int
}

func (f *fakeFeed) Fetch(context.Context) ([]types.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]types.Candidate(nil), f.items...), nil
}

type memStore struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newMemStore(ids ...string) *memStore {
	s := &memStore{ids: make(map[string]struct{})}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *memStore) Load(context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.ids))
	for id := range s.ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *memStore) MarkProcessed(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return nil
}

func (s *memStore) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

type analyzerFunc func(ctx context.Context, req AnalyzeRequest) (types.AnalysisResult, error)

type countingAnalyzer struct {
	mu    sync.Mutex
	calls map[string]int
	fn    analyzerFunc
}

func newCountingAnalyzer(fn analyzerFunc) *countingAnalyzer {
	return &countingAnalyzer{calls: make(map[string]int), fn: fn}
}

func (a *countingAnalyzer) Analyze(ctx context.Context, req AnalyzeRequest) (types.AnalysisResult, error) {
	a.mu.Lock()
	a.calls[req.ItemID]++
	a.mu.Unlock()
	return a.fn(ctx, req)
}

func (a *countingAnalyzer) Calls(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[id]
}
