package service

import (
	"context"
	"sync"
)

// ExportedRunningGuard is an exported alias so _test packages can test the guard.
type ExportedRunningGuard = runningJobsGuard

// ─────────────────────────────────────────────────────────────
// runningJobsGuard — prevents concurrent execution of the same job
// ─────────────────────────────────────────────────────────────

// runningJobsGuard ensures only one run of a given import job is in flight.
// The zero value is ready to use.
type runningJobsGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock marks job as running. It returns false if it already is.
func (g *runningJobsGuard) TryLock(job string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[job]; ok {
		return false // already running
	}
	g.running[job] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock marks job as finished. Must follow a successful TryLock.
func (g *runningJobsGuard) Unlock(job string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, job)
	g.wg.Done()
}

// Running reports whether job is in flight.
func (g *runningJobsGuard) Running(job string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[job]
	return ok
}

// WaitAll blocks until every running job finishes or ctx is done.
func (g *runningJobsGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
