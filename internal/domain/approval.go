package domain

import (
	"context"
	"errors"
	"time"
)

// ErrApprovalNotFound means no pending approval has the given ID.
var ErrApprovalNotFound = errors.New("approval not found")

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Approval is a destructive agent action waiting for a human decision.
type Approval struct {
	ID          string         `json:"id"`
	Tool        string         `json:"tool"`
	Description string         `json:"description"`
	Status      ApprovalStatus `json:"status"`
	Metadata    string         `json:"metadata"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// ApprovalStore persists approval requests so separate processes can
// hand decisions to each other through the shared database.
type ApprovalStore interface {
	CreateApproval(ctx context.Context, a *Approval) error
	ApprovalStatus(ctx context.Context, id string) (ApprovalStatus, error)
	ResolveApproval(ctx context.Context, id string, status ApprovalStatus) error
	DeleteApproval(ctx context.Context, id string) error
	ListPendingApprovals(ctx context.Context) ([]Approval, error)
}
