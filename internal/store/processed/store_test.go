package processed

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "processed.db")
	s, err := Open(path)
	require.NoError(t, err)

	ctx := context.Background()
	set, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, set)

	require.NoError(t, s.MarkProcessed(ctx, []string{"a", "b", ""}))
	require.NoError(t, s.MarkProcessed(ctx, []string{"b", "c"}))
	require.NoError(t, s.MarkProcessed(ctx, nil))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	set, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, set, 3)
	assert.Contains(t, set, "a")
	assert.Contains(t, set, "c")
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(" ")
	require.Error(t, err)
}
