package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"listbind/internal/etl"
)

// ImportLogStore persists the history of import job runs.
type ImportLogStore struct {
	db *DB
}

// NewImportLogStore creates a new ImportLogStore.
func NewImportLogStore(db *DB) *ImportLogStore {
	return &ImportLogStore{db: db}
}

func (s *ImportLogStore) CreateRunLog(ctx context.Context, log *etl.RunLog) error {
	log.ID = uuid.New().String()
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO import_runs (id, job, started_at, finished_at, status, rows_read, rows_written, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Job, log.StartedAt, log.FinishedAt, log.Status, log.RowsRead, log.RowsWritten, log.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run log: %w", err)
	}
	return nil
}

// ListRunLogs returns the most recent runs of a job, newest first. An empty
// job name lists runs of every job.
func (s *ImportLogStore) ListRunLogs(ctx context.Context, job string, limit int) ([]etl.RunLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, job, started_at, finished_at, status, rows_read, rows_written, error
		 FROM import_runs WHERE (? = '' OR job = ?) ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		job, job, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []etl.RunLog
	for rows.Next() {
		var l etl.RunLog
		if err := rows.Scan(&l.ID, &l.Job, &l.StartedAt, &l.FinishedAt, &l.Status, &l.RowsRead, &l.RowsWritten, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
