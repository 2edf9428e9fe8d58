package records

import (
	"time"

	"gorm.io/datatypes"
)

const (
	FilterPending = "pending"
	FilterPass    = "pass"
	FilterReject  = "reject"
)

// CandidateRecord 是一条候选消息从入队到平仓的审计记录，以候选 ID 为主键。
type CandidateRecord struct {
	ID           string         `gorm:"column:id;primaryKey;size:128" json:"id"`
	Author       string         `gorm:"column:author;size:128" json:"author"`
	Preview      string         `gorm:"column:preview;size:512" json:"preview"`
	ArrivedAt    time.Time      `gorm:"column:arrived_at" json:"arrived_at"`
	AISuccess    bool           `gorm:"column:ai_success" json:"ai_success"`
	AIRaw        string         `gorm:"column:ai_raw" json:"ai_raw,omitempty"`
	AIParsed     datatypes.JSON `gorm:"column:ai_parsed" json:"ai_parsed,omitempty"`
	Signal       datatypes.JSON `gorm:"column:signal" json:"signal,omitempty"`
	FilterStatus string         `gorm:"column:filter_status;size:16;index" json:"filter_status"`
	FilterReason string         `gorm:"column:filter_reason" json:"filter_reason,omitempty"`
	TradeInfo    datatypes.JSON `gorm:"column:trade_info" json:"trade_info,omitempty"`
	RetryCount   int            `gorm:"column:retry_count" json:"retry_count"`
	LastError    string         `gorm:"column:last_error" json:"last_error,omitempty"`
	CreatedAt    time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (CandidateRecord) TableName() string { return "candidate_records" }

// ExitRecord 是一次已执行或失败的平仓。
type ExitRecord struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PositionID  string    `gorm:"column:position_id;size:64;index" json:"position_id"`
	CandidateID string    `gorm:"column:candidate_id;size:128;index" json:"candidate_id"`
	Symbol      string    `gorm:"column:symbol;size:32" json:"symbol"`
	Side        string    `gorm:"column:side;size:8" json:"side"`
	Reason      string    `gorm:"column:reason;size:32" json:"reason"`
	Tier        int       `gorm:"column:tier" json:"tier,omitempty"`
	Fraction    float64   `gorm:"column:fraction" json:"fraction"`
	Price       float64   `gorm:"column:price" json:"price"`
	ClosedQty   float64   `gorm:"column:closed_qty" json:"closed_qty"`
	PnL         float64   `gorm:"column:pnl" json:"pnl"`
	RealizedPnL float64   `gorm:"column:realized_pnl" json:"realized_pnl"`
	Remaining   float64   `gorm:"column:remaining" json:"remaining"`
	OrderID     string    `gorm:"column:order_id;size:64" json:"order_id,omitempty"`
	Error       string    `gorm:"column:error" json:"error,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

func (ExitRecord) TableName() string { return "exit_records" }

// TradeInfo 存放在 CandidateRecord.TradeInfo 中。
type TradeInfo struct {
	PositionID  string  `json:"position_id,omitempty"`
	Symbol      string  `json:"symbol,omitempty"`
	Side        string  `json:"side,omitempty"`
	OrderID     string  `json:"order_id,omitempty"`
	DryRun      bool    `json:"dry_run,omitempty"`
	Quantity    float64 `json:"quantity,omitempty"`
	EntryPrice  float64 `json:"entry_price,omitempty"`
	PositionPct float64 `json:"position_pct,omitempty"`
	StopLossPct float64 `json:"stop_loss_pct,omitempty"`
	Scheme      string  `json:"scheme,omitempty"`
	Remaining   float64 `json:"remaining"`
	RealizedPnL float64 `json:"realized_pnl"`
	Closed      bool    `json:"closed,omitempty"`
	Error       string  `json:"error,omitempty"`
}
