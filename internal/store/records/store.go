package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"newsdriven/internal/filter"
	"newsdriven/internal/logger"
	"newsdriven/internal/risk"
	"newsdriven/internal/types"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	previewRunes = 100
	writeTimeout = 5 * time.Second
)

// Store 以 gorm 写入审计记录，实现 ingest.Observer、trader.Observer 与 risk.ExitListener。
// 写入失败只记录日志，不影响交易流程。
type Store struct {
	mu sync.Mutex
	db *gorm.DB
}

func Open(driver, dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("records dsn 不能为空")
	}
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", dsn))
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported records driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open records store: %w", err)
	}
	return NewFromDB(db)
}

func NewFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	if err := db.AutoMigrate(&CandidateRecord{}, &ExitRecord{}); err != nil {
		return nil, fmt.Errorf("migrate records: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil && db.Dialector.Name() == DriverSQLite {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) write(op string, fn func(ctx context.Context, db *gorm.DB) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := fn(ctx, s.db.WithContext(ctx)); err != nil {
		logger.Warnf("[records] %s failed: %v", op, err)
	}
}

// OnEnqueued 首次入队时创建记录，之后只更新重试次数。
func (s *Store) OnEnqueued(c types.Candidate, retries int) {
	s.write("enqueue "+c.ID, func(ctx context.Context, db *gorm.DB) error {
		rec := CandidateRecord{
			ID:           c.ID,
			Author:       c.Author,
			Preview:      Preview(c.Text, previewRunes),
			ArrivedAt:    c.ArrivedAt,
			FilterStatus: FilterPending,
			RetryCount:   retries,
		}
		return db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"retry_count", "updated_at"}),
		}).Create(&rec).Error
	})
}

// OnAnalyzed 记录分析结果；非 JSON 输出记为失败并保留原文。
func (s *Store) OnAnalyzed(id string, result types.AnalysisResult, err error, retries int) {
	updates := map[string]any{"retry_count": retries}
	switch {
	case err != nil:
		updates["ai_success"] = false
		updates["last_error"] = err.Error()
	case isRawOnly(result):
		updates["ai_success"] = false
		updates["ai_raw"] = fmt.Sprint(result["raw"])
		updates["last_error"] = ""
	default:
		raw, merr := json.Marshal(result)
		if merr != nil {
			logger.Warnf("[records] marshal analysis %s: %v", id, merr)
			return
		}
		updates["ai_success"] = true
		updates["ai_parsed"] = datatypes.JSON(raw)
		updates["last_error"] = ""
	}
	s.write("analyzed "+id, func(ctx context.Context, db *gorm.DB) error {
		return db.Model(&CandidateRecord{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (s *Store) OnSignal(c types.Candidate, sig types.Signal) {
	raw, err := json.Marshal(sig)
	if err != nil {
		logger.Warnf("[records] marshal signal %s: %v", c.ID, err)
		return
	}
	s.write("signal "+c.ID, func(ctx context.Context, db *gorm.DB) error {
		return db.Model(&CandidateRecord{}).Where("id = ?", c.ID).Update("signal", datatypes.JSON(raw)).Error
	})
}

func (s *Store) OnFiltered(sig types.Signal, v filter.Verdict) {
	status := FilterReject
	if v.Passed {
		status = FilterPass
	}
	id := sig.Source.CandidateID
	s.write("filter "+id, func(ctx context.Context, db *gorm.DB) error {
		return db.Model(&CandidateRecord{}).Where("id = ?", id).
			Updates(map[string]any{"filter_status": status, "filter_reason": v.Reason}).Error
	})
}

func (s *Store) OnOpened(sig types.Signal, pos types.Position, fill types.OrderFill) {
	info := TradeInfo{
		PositionID:  pos.ID,
		Symbol:      pos.Symbol,
		Side:        string(pos.Side),
		OrderID:     fill.OrderID,
		DryRun:      fill.DryRun,
		Quantity:    pos.Quantity,
		EntryPrice:  pos.EntryPrice,
		PositionPct: pos.Strategy.PositionPct,
		StopLossPct: pos.Strategy.StopLossPct,
		Scheme:      pos.Strategy.Scheme,
		Remaining:   pos.RemainingQty,
	}
	s.saveTradeInfo(sig.Source.CandidateID, func(*TradeInfo) TradeInfo { return info })
}

func (s *Store) OnFailed(sig types.Signal, err error) {
	s.saveTradeInfo(sig.Source.CandidateID, func(cur *TradeInfo) TradeInfo {
		out := TradeInfo{Symbol: sig.Symbol, Side: string(sig.Side)}
		if cur != nil {
			out = *cur
		}
		out.Error = err.Error()
		return out
	})
}

// OnExit 写入平仓流水并同步候选记录上的剩余数量与累计盈亏。
func (s *Store) OnExit(evt risk.ExitEvent) {
	rec := ExitRecord{
		PositionID:  evt.PositionID,
		CandidateID: evt.Position.CandidateID,
		Symbol:      evt.Position.Symbol,
		Side:        string(evt.Position.Side),
		Reason:      evt.Decision.Reason,
		Tier:        evt.Decision.Tier,
		Fraction:    evt.Decision.Fraction,
		Price:       evt.Price,
		ClosedQty:   evt.ClosedQty,
		PnL:         evt.PnL,
		RealizedPnL: evt.Position.RealizedPnL,
		Remaining:   evt.Position.RemainingQty,
		OrderID:     evt.Result.OrderID,
	}
	if evt.Err != nil {
		rec.Error = evt.Err.Error()
	}
	s.write("exit "+evt.PositionID, func(ctx context.Context, db *gorm.DB) error {
		return db.Create(&rec).Error
	})
	if evt.Err != nil || evt.Position.CandidateID == "" {
		return
	}
	s.saveTradeInfo(evt.Position.CandidateID, func(cur *TradeInfo) TradeInfo {
		out := TradeInfo{PositionID: evt.PositionID, Symbol: evt.Position.Symbol, Side: string(evt.Position.Side)}
		if cur != nil {
			out = *cur
		}
		out.Remaining = evt.Position.RemainingQty
		out.RealizedPnL = evt.Position.RealizedPnL
		out.Closed = !evt.Position.IsOpen()
		return out
	})
}

func (s *Store) saveTradeInfo(id string, update func(cur *TradeInfo) TradeInfo) {
	if id == "" {
		return
	}
	s.write("trade info "+id, func(ctx context.Context, db *gorm.DB) error {
		var rec CandidateRecord
		err := db.Select("trade_info").Where("id = ?", id).Take(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var cur *TradeInfo
		if len(rec.TradeInfo) > 0 {
			var ti TradeInfo
			if err := json.Unmarshal(rec.TradeInfo, &ti); err == nil {
				cur = &ti
			}
		}
		raw, err := json.Marshal(update(cur))
		if err != nil {
			return err
		}
		return db.Model(&CandidateRecord{}).Where("id = ?", id).Update("trade_info", datatypes.JSON(raw)).Error
	})
}

// Get 返回单条审计记录。
func (s *Store) Get(ctx context.Context, id string) (CandidateRecord, error) {
	var rec CandidateRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	return rec, err
}

// Recent 按更新时间倒序返回最近的记录。
func (s *Store) Recent(ctx context.Context, limit int) ([]CandidateRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []CandidateRecord
	err := s.db.WithContext(ctx).Order("updated_at desc").Limit(limit).Find(&out).Error
	return out, err
}

func (s *Store) Exits(ctx context.Context, positionID string) ([]ExitRecord, error) {
	var out []ExitRecord
	err := s.db.WithContext(ctx).Where("position_id = ?", positionID).Order("id asc").Find(&out).Error
	return out, err
}

// Preview 截取前 n 个字符。
func Preview(text string, n int) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n])
}

func isRawOnly(res types.AnalysisResult) bool {
	if len(res) != 1 {
		return false
	}
	_, ok := res["raw"]
	return ok
}
