package ingest

import (
	"context"

	"newsdriven/internal/types"
)

// Feed 拉取一批候选消息；失败视为暂时性错误。
type Feed interface {
	Fetch(ctx context.Context) ([]types.Candidate, error)
}

// ProcessedStore 记录已转化为信号的候选 ID。
type ProcessedStore interface {
	Load(ctx context.Context) (map[string]struct{}, error)
	MarkProcessed(ctx context.Context, ids []string) error
}

// AnalyzeRequest 是交给分析器的一次请求。
type AnalyzeRequest struct {
	ItemID       string
	Text         string
	Author       string
	Introduction string
}

// Analyzer 对文本做结构化分类；超时与重试由 worker 池负责。
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (types.AnalysisResult, error)
}

// Observer 接收流水线事件，用于审计记录。实现需自行处理并发。
type Observer interface {
	OnEnqueued(c types.Candidate, retries int)
	OnAnalyzed(id string, result types.AnalysisResult, err error, retries int)
	OnSignal(c types.Candidate, sig types.Signal)
}

type nopObserver struct{}

func (nopObserver) OnEnqueued(types.Candidate, int) {}

func (nopObserver) OnAnalyzed(string, types.AnalysisResult, error, int) {}

func (nopObserver) OnSignal(types.Candidate, types.Signal) {}
