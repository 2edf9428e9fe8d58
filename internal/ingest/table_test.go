package ingest

import (
	"errors"
	"testing"
	"time"

	"newsdriven/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableTouchPreservesRetries(t *testing.T) {
	tb := NewTable(3)
	t0 := time.Unix(1000, 0)

	retries, ok := tb.Touch("a", t0)
	require.True(t, ok)
	assert.Zero(t, retries)

	require.True(t, tb.MarkProcessing("a"))
	assert.Equal(t, 1, tb.MarkFailed("a", true, errors.New("slow")))
	st, _ := tb.Status("a")
	assert.Equal(t, StatusTimedOut, st)

	retries, ok = tb.Touch("a", t0.Add(10*time.Second))
	require.True(t, ok)
	assert.Equal(t, 1, retries)
	st, _ = tb.Status("a")
	assert.Equal(t, StatusPending, st)

	snap := tb.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, t0, snap[0].CreatedAt, "refresh keeps created_at")
}

func TestTableRetriesCapAndNeverReenqueue(t *testing.T) {
	tb := NewTable(3)
	now := time.Unix(1000, 0)
	for i := 1; i <= 5; i++ {
		tb.MarkFailed("x", false, errors.New("boom"))
	}
	snap := tb.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 3, snap[0].Retries)
	assert.Equal(t, StatusError, snap[0].Status)
	assert.Equal(t, "boom", snap[0].LastError)

	_, ok := tb.Touch("x", now)
	assert.False(t, ok)
	assert.False(t, tb.MarkProcessing("x"))
	assert.True(t, tb.Exhausted("x"))
}

func TestTableDoneResetsRetriesAndCachesResult(t *testing.T) {
	tb := NewTable(3)
	tb.Touch("a", time.Unix(1000, 0))
	tb.MarkFailed("a", false, nil)
	tb.MarkDone("a", types.AnalysisResult{"交易币种": "BTC"})

	st, _ := tb.Status("a")
	assert.Equal(t, StatusDone, st)
	assert.True(t, tb.HasResult("a"))
	assert.Zero(t, tb.Snapshot()[0].Retries)

	res, ok := tb.TakeResult("a")
	require.True(t, ok)
	assert.Equal(t, "BTC", res["交易币种"])
	_, ok = tb.TakeResult("a")
	assert.False(t, ok, "result is popped")
}

func TestTableExpirePurgesEveryStatusOnce(t *testing.T) {
	tb := NewTable(3)
	t0 := time.Unix(1000, 0)
	tb.now = func() time.Time { return t0 }

	tb.Touch("pending", t0)
	tb.Touch("processing", t0)
	tb.MarkProcessing("processing")
	tb.Touch("done", t0)
	tb.MarkDone("done", types.AnalysisResult{"k": "v"})
	tb.Touch("timeout", t0)
	tb.MarkFailed("timeout", true, nil)
	tb.Touch("error", t0)
	tb.MarkFailed("error", false, nil)
	tb.Touch("fresh", t0.Add(30*time.Second))

	assert.Empty(t, tb.Expire(t0.Add(60*time.Second), 60*time.Second), "age == ttl is kept")

	expired := tb.Expire(t0.Add(61*time.Second), 60*time.Second)
	assert.Equal(t, []string{"done", "error", "pending", "processing", "timeout"}, expired)
	assert.False(t, tb.HasResult("done"))
	assert.Equal(t, 1, tb.Len())

	assert.Empty(t, tb.Expire(t0.Add(62*time.Second), 60*time.Second))
}

func TestTableMarkAfterExpiryRecreates(t *testing.T) {
	tb := NewTable(3)
	t0 := time.Unix(1000, 0)
	tb.now = func() time.Time { return t0.Add(100 * time.Second) }
	tb.MarkDone("gone", types.AnalysisResult{"k": 1})
	snap := tb.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, t0.Add(100*time.Second), snap[0].CreatedAt)
	assert.Len(t, tb.Expire(t0.Add(161*time.Second), 60*time.Second), 1)
}
