package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"listbind/internal/etl"
	"listbind/internal/metrics"
)

// ─────────────────────────────────────────────────────────────
// Import Service — list import jobs, scheduling and file watching
// ─────────────────────────────────────────────────────────────

// EventImportCompleted is emitted after every import run.
const EventImportCompleted = "import:completed"

// RunLogStore persists import run history.
type RunLogStore interface {
	CreateRunLog(ctx context.Context, log *etl.RunLog) error
	ListRunLogs(ctx context.Context, job string, limit int) ([]etl.RunLog, error)
}

// ImportService runs the configured import jobs into the local list store,
// on demand, on a cron schedule or when a watched file changes.
type ImportService struct {
	jobs        map[string]etl.Job
	order       []string
	dest        etl.ListWriterStore
	logs        RunLogStore
	emitter     EventEmitter
	metrics     *metrics.Metrics
	runningJobs runningJobsGuard

	// watcher / cron lifecycle
	mu          sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewImportService creates an ImportService. logs, emitter and m may be nil.
func NewImportService(
	jobs []etl.Job,
	dest etl.ListWriterStore,
	logs RunLogStore,
	emitter EventEmitter,
	m *metrics.Metrics,
) *ImportService {
	s := &ImportService{
		jobs:    make(map[string]etl.Job, len(jobs)),
		dest:    dest,
		logs:    logs,
		emitter: emitter,
		metrics: m,
	}
	for _, j := range jobs {
		if _, dup := s.jobs[j.Name]; !dup {
			s.order = append(s.order, j.Name)
		}
		s.jobs[j.Name] = j
	}
	return s
}

// Jobs returns the configured jobs in configuration order.
func (s *ImportService) Jobs() []etl.Job {
	out := make([]etl.Job, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.jobs[name])
	}
	return out
}

// Job returns a configured job by name.
func (s *ImportService) Job(name string) (*etl.Job, error) {
	j, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return &j, nil
}

// Running reports whether a job is currently running.
func (s *ImportService) Running(name string) bool {
	return s.runningJobs.Running(name)
}

// ListSources returns the available source descriptors.
func (s *ImportService) ListSources() []etl.SourceSpec {
	return etl.ListSources()
}

// ── Run ────────────────────────────────────────────────────

// RunJob executes a job synchronously, records its run log and emits
// EventImportCompleted.
func (s *ImportService) RunJob(ctx context.Context, name string) (*etl.Result, error) {
	job, err := s.Job(name)
	if err != nil {
		return nil, err
	}

	// Prevent concurrent execution of the same job.
	if !s.runningJobs.TryLock(name) {
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	defer s.runningJobs.Unlock(name)

	engine := &etl.Engine{
		Dest: &etl.ListWriter{Store: s.dest, Source: job.Name},
	}

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	result, runErr := engine.Run(runCtx, job)

	runLog := &etl.RunLog{
		Job:         name,
		StartedAt:   start,
		FinishedAt:  time.Now(),
		Status:      result.Status,
		RowsRead:    result.RowsRead,
		RowsWritten: result.RowsWritten,
		Error:       result.Error,
	}
	if s.logs != nil {
		if err := s.logs.CreateRunLog(ctx, runLog); err != nil {
			log.Printf("[IMPORT] job %s: save run log: %v", name, err)
		}
	}
	s.metrics.ImportRun(name, result.Status, result.RowsWritten)

	if s.emitter != nil {
		s.emitter.Emit(ctx, EventImportCompleted, map[string]any{
			"job":         name,
			"target":      job.Target,
			"status":      result.Status,
			"rowsWritten": result.RowsWritten,
		})
	}
	return result, runErr
}

// ListRunLogs returns the last 50 runs of a job, or of every job when name is empty.
func (s *ImportService) ListRunLogs(ctx context.Context, name string) ([]etl.RunLog, error) {
	if s.logs == nil {
		return nil, errors.New("run logs are not recorded")
	}
	return s.logs.ListRunLogs(ctx, name, 50)
}

// ── Preview ────────────────────────────────────────────────

// PreviewResult is the response from Preview.
type PreviewResult struct {
	Schema  *etl.Schema  `json:"schema"`
	Records []etl.Record `json:"records"`
}

// Preview reads up to maxRows records of a job's source without writing.
func (s *ImportService) Preview(ctx context.Context, name string, maxRows int) (*PreviewResult, error) {
	job, err := s.Job(name)
	if err != nil {
		return nil, err
	}
	if maxRows <= 0 {
		maxRows = 10
	}

	previewCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	engine := &etl.Engine{}
	records, schema, err := engine.Preview(previewCtx, job.SourceType, job.SourceCfg, maxRows)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Schema: schema, Records: records}, nil
}

// ── Watchers (cron + file_watch) ──────────────────────────

// RestartWatchers tears down the current watcher/cron and rebuilds them from
// the configured jobs.
func (s *ImportService) RestartWatchers(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchers()

	// ── Cron jobs ──
	c := cron.New()
	scheduled := 0
	for _, name := range s.order {
		j := s.jobs[name]
		if j.TriggerType != etl.TriggerSchedule || j.TriggerConfig == "" {
			continue
		}
		jobName := j.Name
		_, err := c.AddFunc(j.TriggerConfig, func() {
			log.Printf("import cron: running job %s", jobName)
			if _, err := s.RunJob(ctx, jobName); err != nil {
				log.Printf("import cron: job %s failed: %v", jobName, err)
			}
		})
		if err != nil {
			log.Printf("import cron: invalid expression %q for job %s: %v", j.TriggerConfig, jobName, err)
			continue
		}
		scheduled++
	}
	if scheduled > 0 {
		c.Start()
		s.cronSched = c
		log.Printf("import cron: scheduled %d job(s)", scheduled)
	}

	// ── File watchers ──
	pathToJob := make(map[string]string)
	for _, name := range s.order {
		j := s.jobs[name]
		if j.TriggerType != etl.TriggerFileWatch || j.TriggerConfig == "" {
			continue
		}
		absPath, err := filepath.Abs(j.TriggerConfig)
		if err != nil {
			log.Printf("import watcher: bad path %q: %v", j.TriggerConfig, err)
			continue
		}
		pathToJob[absPath] = j.Name
	}
	if len(pathToJob) == 0 {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("import watcher: failed to create watcher: %v", err)
		return
	}
	s.watcher = watcher

	watchedDirs := make(map[string]bool)
	for absPath := range pathToJob {
		dir := filepath.Dir(absPath)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			log.Printf("import watcher: failed to watch dir %q: %v", dir, err)
			continue
		}
		watchedDirs[dir] = true
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		timers := make(map[string]*time.Timer)
		defer func() {
			for _, t := range timers {
				t.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				absPath, _ := filepath.Abs(event.Name)
				jobName, ok := pathToJob[absPath]
				if !ok {
					continue
				}
				if t, exists := timers[jobName]; exists {
					t.Stop()
				}
				timers[jobName] = time.AfterFunc(500*time.Millisecond, func() {
					log.Printf("import watcher: file changed %q, running job %s", absPath, jobName)
					if _, err := s.RunJob(ctx, jobName); err != nil {
						log.Printf("import watcher: run failed for job %s: %v", jobName, err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("import watcher: error: %v", err)
			}
		}
	}()

	log.Printf("import watcher: watching %d file(s)", len(pathToJob))
}

// WaitRunning blocks until all running jobs finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *ImportService) WaitRunning(ctx context.Context) {
	s.runningJobs.WaitAll(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *ImportService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchers()
}

func (s *ImportService) stopWatchers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
