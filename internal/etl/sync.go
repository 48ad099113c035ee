package etl

import (
	"context"
	"fmt"
	"sort"
	"time"

	"listbind/internal/domain"
)

// ── Job ────────────────────────────────────────────────────
// Orchestrates: source.Read → transform chain → destination.Write.
//
// Pattern: Airbyte sync / Singer tap→target pipeline.

// Trigger types.
const (
	TriggerManual    = "manual"
	TriggerSchedule  = "schedule"   // TriggerConfig is a cron expression
	TriggerFileWatch = "file_watch" // TriggerConfig is a file path
)

// Job is one configured list import.
type Job struct {
	Name       string            `json:"name" yaml:"name"`
	SourceType string            `json:"sourceType" yaml:"source"`
	SourceCfg  SourceConfig      `json:"sourceConfig" yaml:"config"`
	Transforms []TransformConfig `json:"transforms,omitempty" yaml:"transforms"`
	// Target is the title of the local list written to.
	Target    string   `json:"target" yaml:"target"`
	SyncMode  SyncMode `json:"syncMode" yaml:"mode"`
	DedupeKey string   `json:"dedupeKey,omitempty" yaml:"dedupe_key"`
	// Fields declares field types that override the discovered ones, e.g.
	// marking a "Show ..." column boolean.
	Fields        []domain.Field `json:"fields,omitempty" yaml:"fields"`
	TriggerType   string         `json:"triggerType" yaml:"trigger"`
	TriggerConfig string         `json:"triggerConfig" yaml:"trigger_config"`
}

// Validate checks the job for missing or unknown settings.
func (j *Job) Validate() error {
	if j.Name == "" {
		return fmt.Errorf("import job name is required")
	}
	if j.Target == "" {
		return fmt.Errorf("import job %s: target list is required", j.Name)
	}
	if _, err := GetSource(j.SourceType); err != nil {
		return fmt.Errorf("import job %s: %w", j.Name, err)
	}
	switch j.SyncMode {
	case "", SyncReplace, SyncAppend:
	default:
		return fmt.Errorf("import job %s: unknown mode %q", j.Name, j.SyncMode)
	}
	switch j.TriggerType {
	case "", TriggerManual:
	case TriggerSchedule, TriggerFileWatch:
		if j.TriggerConfig == "" {
			return fmt.Errorf("import job %s: %s trigger needs trigger_config", j.Name, j.TriggerType)
		}
	default:
		return fmt.Errorf("import job %s: unknown trigger %q", j.Name, j.TriggerType)
	}
	if err := ValidateTransforms(j.Transforms); err != nil {
		return fmt.Errorf("import job %s: %w", j.Name, err)
	}
	return nil
}

// Result is the outcome of running a job.
type Result struct {
	Job         string        `json:"job"`
	Status      string        `json:"status"` // "success" | "error"
	RowsRead    int           `json:"rowsRead"`
	RowsWritten int           `json:"rowsWritten"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// RunLog is a historical record of a job run.
type RunLog struct {
	ID          string    `json:"id"`
	Job         string    `json:"job"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"`
	RowsRead    int       `json:"rowsRead"`
	RowsWritten int       `json:"rowsWritten"`
	Error       string    `json:"error,omitempty"`
}

// ── Engine ─────────────────────────────────────────────────

// Engine runs jobs using the registered sources and a destination.
type Engine struct {
	Dest Destination
}

// Run executes a job end-to-end.
func (e *Engine) Run(ctx context.Context, job *Job) (*Result, error) {
	start := time.Now()
	result := &Result{Job: job.Name}
	fail := func(stage string, err error) (*Result, error) {
		result.Status = "error"
		result.Error = fmt.Sprintf("%s: %s", stage, err)
		result.Duration = time.Since(start)
		return result, fmt.Errorf("%s: %w", stage, err)
	}

	source, err := GetSource(job.SourceType)
	if err != nil {
		return fail("source", err)
	}

	schema, err := source.Discover(ctx, job.SourceCfg)
	if err != nil {
		return fail("discover", err)
	}

	recCh, errCh := source.Read(ctx, job.SourceCfg)
	transformers := BuildTransformers(job.Transforms, job.DedupeKey)

	var records []Record
	for rec := range recCh {
		result.RowsRead++
		transformed, keep := ApplyTransformers(rec, transformers)
		if keep {
			records = append(records, transformed)
		}
	}
	records = ApplyBatchSort(records, transformers)

	if err := <-errCh; err != nil {
		return fail("read", err)
	}

	out := applyFieldOverrides(deriveSchemaFromRecords(records, schema), job.Fields)

	written, err := e.Dest.Write(ctx, job.Target, out, records, job.SyncMode)
	if err != nil {
		return fail("write", err)
	}

	result.Status = "success"
	result.RowsWritten = written
	result.Duration = time.Since(start)
	return result, nil
}

// Preview executes only the source read phase and returns up to maxRows records.
func (e *Engine) Preview(ctx context.Context, sourceType string, cfg SourceConfig, maxRows int) ([]Record, *Schema, error) {
	source, err := GetSource(sourceType)
	if err != nil {
		return nil, nil, err
	}

	schema, err := source.Discover(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("discover: %w", err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	recCh, errCh := source.Read(readCtx, cfg)

	var records []Record
	for rec := range recCh {
		records = append(records, rec)
		if len(records) >= maxRows {
			cancel()
			break
		}
	}

	// Drain remaining and check for errors.
	go func() {
		for range recCh {
		}
	}()
	if err := <-errCh; err != nil && readCtx.Err() == nil {
		return records, schema, err
	}
	return records, schema, nil
}

// deriveSchemaFromRecords builds a schema from the keys present in the
// transformed records: source fields first in source order, then new keys
// sorted. Source field types are kept.
func deriveSchemaFromRecords(records []Record, sourceSchema *Schema) *Schema {
	if len(records) == 0 {
		return sourceSchema
	}

	present := make(map[string]bool)
	for _, r := range records {
		for k := range r.Data {
			present[k] = true
		}
	}

	out := &Schema{}
	if sourceSchema != nil {
		for _, f := range sourceSchema.Fields {
			if present[f.Name] {
				out.Fields = append(out.Fields, f)
				delete(present, f.Name)
			}
		}
	}
	extra := make([]string, 0, len(present))
	for k := range present {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, name := range extra {
		out.Fields = append(out.Fields, domain.Field{Name: name, Type: domain.FieldTypeText})
	}
	return out
}

// applyFieldOverrides sets the declared type of overridden fields, adding
// fields the records did not carry.
func applyFieldOverrides(schema *Schema, overrides []domain.Field) *Schema {
	if len(overrides) == 0 {
		return schema
	}
	out := &Schema{}
	if schema != nil {
		out.Fields = append(out.Fields, schema.Fields...)
	}
	for _, o := range overrides {
		found := false
		for i := range out.Fields {
			if out.Fields[i].Name == o.Name {
				out.Fields[i].Type = o.Type
				found = true
				break
			}
		}
		if !found {
			out.Fields = append(out.Fields, o)
		}
	}
	return out
}
