package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"listbind/internal/domain"
)

// ApprovalStore implements domain.ApprovalStore on SQLite.
type ApprovalStore struct {
	db *DB
}

// NewApprovalStore creates a new ApprovalStore.
func NewApprovalStore(db *DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

var _ domain.ApprovalStore = (*ApprovalStore)(nil)

func (s *ApprovalStore) CreateApproval(ctx context.Context, a *domain.Approval) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Metadata == "" {
		a.Metadata = "{}"
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Status = domain.ApprovalPending
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO approvals (id, tool, description, status, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Tool, a.Description, a.Status, a.Metadata, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

func (s *ApprovalStore) ApprovalStatus(ctx context.Context, id string) (domain.ApprovalStatus, error) {
	var status string
	err := s.db.conn.QueryRowContext(ctx, `SELECT status FROM approvals WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrApprovalNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get approval status: %w", err)
	}
	return domain.ApprovalStatus(status), nil
}

// ResolveApproval records a decision. Only pending approvals can be resolved.
func (s *ApprovalStore) ResolveApproval(ctx context.Context, id string, status domain.ApprovalStatus) error {
	if status != domain.ApprovalApproved && status != domain.ApprovalRejected {
		return fmt.Errorf("invalid approval status %q", status)
	}
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE approvals SET status = ? WHERE id = ? AND status = 'pending'`, status, id)
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrApprovalNotFound
	}
	return nil
}

func (s *ApprovalStore) DeleteApproval(ctx context.Context, id string) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM approvals WHERE id = ?`, id)
	return err
}

// ListPendingApprovals returns pending approvals, oldest first.
func (s *ApprovalStore) ListPendingApprovals(ctx context.Context) ([]domain.Approval, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, tool, description, status, metadata, created_at
		 FROM approvals WHERE status = 'pending' ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Approval
	for rows.Next() {
		var a domain.Approval
		var status string
		if err := rows.Scan(&a.ID, &a.Tool, &a.Description, &status, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Status = domain.ApprovalStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}
