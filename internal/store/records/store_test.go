package records

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"newsdriven/internal/filter"
	"newsdriven/internal/risk"
	"newsdriven/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func tradeInfo(t *testing.T, rec CandidateRecord) TradeInfo {
	t.Helper()
	var ti TradeInfo
	require.NoError(t, json.Unmarshal(rec.TradeInfo, &ti))
	return ti
}

func TestCandidateLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	c := types.Candidate{ID: "c1", Author: "alice", Text: strings.Repeat("字", 150), ArrivedAt: time.Unix(1700000000, 0)}

	s.OnEnqueued(c, 0)
	s.OnAnalyzed("c1", nil, errors.New("timeout"), 1)
	s.OnEnqueued(c, 1)

	rec, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Author)
	assert.Equal(t, 100, len([]rune(rec.Preview)))
	assert.Equal(t, 1, rec.RetryCount)
	assert.False(t, rec.AISuccess)
	assert.Equal(t, "timeout", rec.LastError)
	assert.Equal(t, FilterPending, rec.FilterStatus)

	s.OnAnalyzed("c1", types.AnalysisResult{"symbol": "BTC", "confidence": 80.0}, nil, 0)
	sig := types.Signal{TraceID: "t1", Symbol: "BTCUSDT", Side: types.SideLong, Source: types.SignalSource{CandidateID: "c1"}}
	s.OnSignal(c, sig)
	s.OnFiltered(sig, filter.Verdict{Passed: true, Reason: "passed: confidence 80.0 >= 50.0"})

	pos := types.Position{ID: "p1", Symbol: "BTCUSDT", Side: types.SideLong, EntryPrice: 100, Quantity: 2, RemainingQty: 2, CandidateID: "c1"}
	s.OnOpened(sig, pos, types.OrderFill{OrderID: "o1"})

	pos.RemainingQty = 1
	pos.RealizedPnL = 1
	s.OnExit(risk.ExitEvent{PositionID: "p1", Position: pos, Price: 101, ClosedQty: 1, PnL: 1,
		Decision: types.ExitDecision{Action: types.ExitClosePartial, Fraction: 0.5, Reason: types.ReasonTakeProfit, Tier: 1}})

	rec, err = s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, rec.AISuccess)
	assert.Empty(t, rec.LastError)
	assert.Equal(t, 0, rec.RetryCount)
	assert.JSONEq(t, `{"symbol":"BTC","confidence":80}`, string(rec.AIParsed))
	assert.Contains(t, string(rec.Signal), `"trace_id":"t1"`)
	assert.Equal(t, FilterPass, rec.FilterStatus)

	ti := tradeInfo(t, rec)
	assert.Equal(t, "p1", ti.PositionID)
	assert.Equal(t, "o1", ti.OrderID)
	assert.Equal(t, 100.0, ti.EntryPrice)
	assert.Equal(t, 1.0, ti.Remaining)
	assert.Equal(t, 1.0, ti.RealizedPnL)
	assert.False(t, ti.Closed)

	exits, err := s.Exits(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, exits, 1)
	assert.Equal(t, types.ReasonTakeProfit, exits[0].Reason)
	assert.Equal(t, 1, exits[0].Tier)
	assert.Equal(t, "c1", exits[0].CandidateID)
}

func TestRawAnalysisAndFailures(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.OnEnqueued(types.Candidate{ID: "c2", Text: "hello"}, 0)
	s.OnAnalyzed("c2", types.AnalysisResult{"raw": "not json"}, nil, 0)

	sig := types.Signal{Symbol: "ETHUSDT", Side: types.SideShort, Source: types.SignalSource{CandidateID: "c2"}}
	s.OnFiltered(sig, filter.Verdict{Reason: "rejected: confidence 10.0 < 50.0"})
	s.OnFailed(sig, errors.New("margin insufficient"))

	rec, err := s.Get(ctx, "c2")
	require.NoError(t, err)
	assert.False(t, rec.AISuccess)
	assert.Equal(t, "not json", rec.AIRaw)
	assert.Equal(t, FilterReject, rec.FilterStatus)
	ti := tradeInfo(t, rec)
	assert.Equal(t, "margin insufficient", ti.Error)
	assert.Equal(t, "ETHUSDT", ti.Symbol)

	s.OnExit(risk.ExitEvent{PositionID: "p9", Position: types.Position{CandidateID: "c2"}, Err: errors.New("rejected")})
	exits, err := s.Exits(ctx, "p9")
	require.NoError(t, err)
	require.Len(t, exits, 1)
	assert.Equal(t, "rejected", exits[0].Error)

	recent, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestUnknownCandidateIsIgnored(t *testing.T) {
	s := openTestStore(t)
	s.OnAnalyzed("missing", types.AnalysisResult{"symbol": "BTC"}, nil, 0)
	s.OnFailed(types.Signal{Source: types.SignalSource{CandidateID: "missing"}}, errors.New("x"))
	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
	_, err = Open(DriverSQLite, "")
	require.Error(t, err)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "abc", Preview("  abc ", 10))
	assert.Equal(t, "ab", Preview("abc", 2))
}
