package feed

import (
	"context"
	"fmt"
	"os"
	"time"

	"newsdriven/internal/types"
)

// StaticFeed 每次从本地 JSON 文件读取消息，用于演练与离线调试。
type StaticFeed struct {
	path string
	now  func() time.Time
}

func NewStaticFeed(path string) *StaticFeed {
	return &StaticFeed{path: path, now: time.Now}
}

func (f *StaticFeed) Fetch(ctx context.Context) ([]types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read static feed %s: %w", f.path, err)
	}
	return ParseCandidates(raw, f.now())
}
