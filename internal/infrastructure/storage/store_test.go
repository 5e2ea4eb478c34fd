package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/itrc/evaluation-workflow/internal/domain/errors"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "reports")
	s, err := NewStore(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s, dir
}

func TestStore_PutOpen(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	path, size, err := s.Put(ctx, "ITRC-ETR-2025-0001.md", []byte("# Report\n"))
	require.NoError(t, err)
	assert.Equal(t, "ITRC-ETR-2025-0001.md", path)
	assert.Equal(t, int64(9), size)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	rc, n, err := s.Open(ctx, path)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(9), n)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "# Report\n", string(data))

	_, _, err = s.Put(ctx, path, []byte("# Revised\n"))
	require.NoError(t, err)
	rc2, n, err := s.Open(ctx, path)
	require.NoError(t, err)
	rc2.Close()
	assert.Equal(t, int64(10), n)
}

func TestStore_InvalidNames(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"", "..", "../escape.md", "nested/report.md", `a\b`, ".hidden"} {
		t.Run(name, func(t *testing.T) {
			_, _, err := s.Put(ctx, name, []byte("x"))
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

			_, _, err = s.Open(ctx, name)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

func TestStore_OpenMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, _, err := s.Open(context.Background(), "missing.md")
	assert.True(t, errors.IsNotFound(err))
}

func TestStore_Delete(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	_, _, err := s.Put(ctx, "r.html", []byte("<p>x</p>"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "r.html"))
	require.NoError(t, s.Delete(ctx, "r.html"))

	_, err = os.Stat(filepath.Join(dir, "r.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_CanceledContext(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Put(ctx, "r.md", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewStore_RequiresRoot(t *testing.T) {
	_, err := NewStore("", zaptest.NewLogger(t))
	assert.Error(t, err)
}
