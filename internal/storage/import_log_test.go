package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listbind/internal/etl"
)

func TestImportLogStore(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "listbind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewImportLogStore(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, job := range []string{"sub-codes", "gl-accounts", "sub-codes"} {
		log := &etl.RunLog{
			Job:         job,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			FinishedAt:  base.Add(time.Duration(i)*time.Minute + time.Second),
			Status:      "success",
			RowsRead:    10 + i,
			RowsWritten: 10 + i,
		}
		require.NoError(t, s.CreateRunLog(ctx, log))
		assert.NotEmpty(t, log.ID)
	}

	logs, err := s.ListRunLogs(ctx, "sub-codes", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, 12, logs[0].RowsRead, "newest first")
	assert.True(t, logs[0].StartedAt.Equal(base.Add(2*time.Minute)))

	all, err := s.ListRunLogs(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	one, err := s.ListRunLogs(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}
