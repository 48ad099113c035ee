package app

import (
	"context"

	"listbind/internal/domain"
	"listbind/internal/server"
)

// ============================================================
// Agent Approvals
// ============================================================

// PendingApprovals returns the agent actions waiting for a decision.
func (a *App) PendingApprovals(ctx context.Context) ([]domain.Approval, error) {
	return a.approvals.ListPendingApprovals(ctx)
}

// Approve lets a waiting agent action proceed.
func (a *App) Approve(ctx context.Context, id string) error {
	return a.resolve(ctx, id, domain.ApprovalApproved)
}

// Reject refuses a waiting agent action.
func (a *App) Reject(ctx context.Context, id string) error {
	return a.resolve(ctx, id, domain.ApprovalRejected)
}

func (a *App) resolve(ctx context.Context, id string, status domain.ApprovalStatus) error {
	if err := a.approvals.ResolveApproval(ctx, id, status); err != nil {
		return err
	}
	a.hub.Emit(ctx, server.EventApprovalResolved, map[string]string{"id": id, "status": string(status)})
	return nil
}
