package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"listbind/internal/domain"
	"listbind/internal/service"
)

// Events emitted around an approval request.
const (
	EventApprovalRequired  = "approval:required"
	EventApprovalDismissed = "approval:dismissed"
)

// ErrApprovalRejected is returned when a user rejects a pending action.
var ErrApprovalRejected = errors.New("action rejected by user")

// ApprovalQueue manages human-in-the-loop approval for destructive MCP tool calls.
// Pending actions are written to the shared database; the serve process (or
// `listbind approvals`) resolves them and the queue polls for the decision.
type ApprovalQueue struct {
	store    domain.ApprovalStore
	emitter  service.EventEmitter
	timeout  time.Duration
	interval time.Duration
}

// NewApprovalQueue creates a queue over store. emitter may be nil.
func NewApprovalQueue(store domain.ApprovalStore, emitter service.EventEmitter) *ApprovalQueue {
	return &ApprovalQueue{
		store:    store,
		emitter:  emitter,
		timeout:  120 * time.Second,
		interval: 500 * time.Millisecond,
	}
}

// SetTiming overrides the decision timeout and the poll interval.
func (q *ApprovalQueue) SetTiming(timeout, interval time.Duration) {
	if timeout > 0 {
		q.timeout = timeout
	}
	if interval > 0 {
		q.interval = interval
	}
}

// Request records a pending approval and blocks until it is approved,
// rejected, timed out or ctx is done. metadata is optional JSON with extra
// context (e.g. the job name).
func (q *ApprovalQueue) Request(ctx context.Context, tool, description string, metadata ...string) (bool, error) {
	if q.store == nil {
		return false, errors.New("approvals are not configured")
	}
	a := &domain.Approval{Tool: tool, Description: description}
	if len(metadata) > 0 && metadata[0] != "" {
		a.Metadata = metadata[0]
	}
	if err := q.store.CreateApproval(ctx, a); err != nil {
		return false, err
	}
	log.Printf("[MCP] approval %s pending: %s", a.ID, description)
	q.emit(ctx, EventApprovalRequired, a)

	// Cleanup must survive a cancelled request context.
	cleanup := func() {
		if err := q.store.DeleteApproval(context.WithoutCancel(ctx), a.ID); err != nil {
			log.Printf("[MCP] approval %s cleanup: %v", a.ID, err)
		}
	}

	deadline := time.NewTimer(q.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status, err := q.store.ApprovalStatus(ctx, a.ID)
			if err != nil {
				if errors.Is(err, domain.ErrApprovalNotFound) {
					return false, fmt.Errorf("%w: %s (request withdrawn)", ErrApprovalRejected, tool)
				}
				continue
			}
			switch status {
			case domain.ApprovalApproved:
				cleanup()
				return true, nil
			case domain.ApprovalRejected:
				cleanup()
				return false, fmt.Errorf("%w: %s", ErrApprovalRejected, tool)
			}
		case <-deadline.C:
			cleanup()
			q.emit(ctx, EventApprovalDismissed, map[string]string{"id": a.ID})
			return false, fmt.Errorf("action timed out after %s: %s", q.timeout, tool)
		case <-ctx.Done():
			cleanup()
			return false, ctx.Err()
		}
	}
}

func (q *ApprovalQueue) emit(ctx context.Context, event string, data any) {
	if q.emitter != nil {
		q.emitter.Emit(ctx, event, data)
	}
}
