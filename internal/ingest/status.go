package ingest

import "time"

// Status 是候选消息在分析流水线中的状态。
type Status int

const (
	StatusPending Status = iota
	StatusProcessing
	StatusDone
	StatusTimedOut
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusDone:
		return "done"
	case StatusTimedOut:
		return "timeout"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal 表示一次分析尝试已结束。
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusTimedOut || s == StatusError
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ItemStatus 是状态表中一条记录的快照。
type ItemStatus struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Retries   int       `json:"retries"`
	HasResult bool      `json:"has_result"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
