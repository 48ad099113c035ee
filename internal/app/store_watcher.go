package app

import (
	"context"
	"log"
	"sync"
	"time"

	mcpserver "listbind/internal/mcp"
)

// EventListsChanged is broadcast when lists were written outside this process.
const EventListsChanged = "lists:changed"

// storeWatcher polls the database for writes made by other processes (an
// MCP server running imports, `listbind import`) and broadcasts them on the
// hub so connected clients can refresh. It also surfaces approvals requested
// by an MCP process.
type storeWatcher struct {
	ctx      context.Context
	app      *App
	interval time.Duration

	mu        sync.Mutex
	lastLists string // lists fingerprint
	// Track emitted approval IDs to avoid re-emission
	emittedApprovals map[string]bool
	stopCh           chan struct{}
	stopOnce         sync.Once
}

func newStoreWatcher(ctx context.Context, app *App) *storeWatcher {
	return &storeWatcher{
		ctx:              ctx,
		app:              app,
		interval:         2 * time.Second,
		emittedApprovals: map[string]bool{},
		stopCh:           make(chan struct{}),
	}
}

// Start begins the polling loop.
func (w *storeWatcher) Start() {
	w.check()
	go w.pollLoop()
}

// Stop terminates the polling loop.
func (w *storeWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *storeWatcher) pollLoop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check()
		case <-w.stopCh:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *storeWatcher) check() {
	ctx := w.ctx

	// ── Lists fingerprint ──────────────────────────────
	fp, err := w.app.lists.Fingerprint(ctx)
	if err == nil {
		w.mu.Lock()
		changed := w.lastLists != "" && w.lastLists != fp
		w.lastLists = fp
		w.mu.Unlock()
		if changed {
			w.app.hub.Emit(ctx, EventListsChanged, map[string]string{"fingerprint": fp})
		}
	} else if ctx.Err() == nil {
		log.Printf("[WATCH] %v", err)
	}

	// ── Pending approvals (cross-process IPC) ──────────
	pending, err := w.app.approvals.ListPendingApprovals(ctx)
	if err != nil {
		return
	}
	seen := make(map[string]bool, len(pending))
	for _, a := range pending {
		seen[a.ID] = true
		w.mu.Lock()
		alreadySent := w.emittedApprovals[a.ID]
		w.emittedApprovals[a.ID] = true
		w.mu.Unlock()
		if !alreadySent {
			w.app.hub.Emit(ctx, mcpserver.EventApprovalRequired, a)
		}
	}

	// Forget approvals that were decided, withdrawn or timed out
	w.mu.Lock()
	for id := range w.emittedApprovals {
		if !seen[id] {
			delete(w.emittedApprovals, id)
		}
	}
	w.mu.Unlock()
}
