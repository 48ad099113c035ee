package app

import (
	"context"

	"listbind/internal/etl"
	"listbind/internal/service"
)

// ============================================================
// Import Jobs
// ============================================================

// ImportJobs returns the configured import jobs.
func (a *App) ImportJobs() []etl.Job {
	return a.importSvc.Jobs()
}

// RunImport runs one import job to completion.
func (a *App) RunImport(ctx context.Context, name string) (*etl.Result, error) {
	return a.importSvc.RunJob(ctx, name)
}

// PreviewImport reads up to rows records of a job's source without writing.
func (a *App) PreviewImport(ctx context.Context, name string, rows int) (*service.PreviewResult, error) {
	return a.importSvc.Preview(ctx, name, rows)
}

// ImportRuns returns the latest runs of a job, or of every job when name is empty.
func (a *App) ImportRuns(ctx context.Context, name string) ([]etl.RunLog, error) {
	if name != "" {
		if _, err := a.importSvc.Job(name); err != nil {
			return nil, err
		}
	}
	return a.importSvc.ListRunLogs(ctx, name)
}
