package livehttp

import (
	"context"

	"newsdriven/internal/exitplan"
	"newsdriven/internal/ingest"
	"newsdriven/internal/risk"
	"newsdriven/internal/store/records"
)

// ItemSource 暴露拉取循环的状态表。
type ItemSource interface {
	Table() *ingest.Table
	QueueLen() int
}

// PositionRegistry 是风控登记表的查询与移除能力。
type PositionRegistry interface {
	Monitors() []risk.MonitorSnapshot
	Lookup(id string) (risk.MonitorSnapshot, bool)
	RemovePosition(id string) bool
}

// RecordReader 读取审计记录，可为空。
type RecordReader interface {
	Get(ctx context.Context, id string) (records.CandidateRecord, error)
	Recent(ctx context.Context, limit int) ([]records.CandidateRecord, error)
	Exits(ctx context.Context, positionID string) ([]records.ExitRecord, error)
}

// SchemeSource 提供止盈方案快照，可为空。
type SchemeSource interface {
	Snapshot() exitplan.Snapshot
}
