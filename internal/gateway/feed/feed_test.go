package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"newsdriven/internal/pkg/circuit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidatesShapes(t *testing.T) {
	now := time.Unix(1700000000, 0)

	items, err := ParseCandidates([]byte(`[
		{"id": "a", "text": "long BTC", "user_name": "@cz"},
		{"id": 12345678901234567, "full_text": "short ETH", "user": {"screen_name": "bob"}, "created_at": 1700000100},
		{"id": "c", "text": "   "},
		{"text": "no id"},
		"junk"
	]`), now)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "cz", items[0].Author)
	assert.Equal(t, now, items[0].ArrivedAt)
	assert.Equal(t, "long BTC", items[0].Payload["text"])
	assert.Equal(t, "12345678901234567", items[1].ID)
	assert.Equal(t, "bob", items[1].Author)
	assert.Equal(t, int64(1700000100), items[1].ArrivedAt.Unix())

	items, err = ParseCandidates([]byte(`{"data": [{"id": "x", "content": "hi"}]}`), now)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "hi", items[0].Text)

	_, err = ParseCandidates([]byte(`{"status": "ok"}`), now)
	require.Error(t, err)
	_, err = ParseCandidates([]byte(`not json`), now)
	require.Error(t, err)
}

func TestHTTPFeedFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"items": [{"id": "1", "text": "BTC up", "author": "alice"}]}`))
	}))
	defer srv.Close()

	f := NewHTTPFeed(srv.URL, "k1", time.Second, nil)
	items, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "alice", items[0].Author)
}

func TestHTTPFeedBreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewHTTPFeed(srv.URL, "", time.Second, circuit.New("feed", 2, time.Minute))
	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background())
		require.Error(t, err)
		assert.False(t, errors.Is(err, circuit.ErrOpen))
	}
	_, err := f.Fetch(context.Background())
	require.ErrorIs(t, err, circuit.ErrOpen)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestStaticFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": "s1", "text": "SOL long", "user_name": "carol"}]`), 0o644))

	f := NewStaticFeed(path)
	items, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "s1", items[0].ID)

	_, err = NewStaticFeed(filepath.Join(t.TempDir(), "missing.json")).Fetch(context.Background())
	require.Error(t, err)
}
