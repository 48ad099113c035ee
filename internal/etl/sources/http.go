package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"

	"listbind/internal/domain"
	"listbind/internal/etl"
)

// ── HTTP Source ─────────────────────────────────────────────
// Fetches list records from a JSON REST endpoint.

type httpSource struct{}

func init() { etl.RegisterSource(&httpSource{}) }

func (s *httpSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "http",
		Label: "HTTP API",
		ConfigFields: []etl.ConfigField{
			{Key: "url", Label: "URL", Required: true, Help: "Full URL to fetch"},
			{Key: "method", Label: "Method", Options: []string{"GET", "POST"}, Default: "GET"},
			{Key: "headers", Label: "Headers", Help: "Header map, or a JSON object string"},
			{Key: "body", Label: "Body", Help: "Request body (for POST)"},
			{Key: "dataPath", Label: "Data Path", Help: "Dot-separated path to the array in the response (e.g., 'data.items')"},
		},
	}
}

func (s *httpSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	records, err := fetchHTTP(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return inferSchema(records), nil
}

func (s *httpSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	return streamRecords(ctx, func() ([]etl.Record, error) { return fetchHTTP(ctx, cfg) })
}

func fetchHTTP(ctx context.Context, cfg etl.SourceConfig) ([]etl.Record, error) {
	url := cast.ToString(cfg["url"])
	if url == "" {
		return nil, fmt.Errorf("url is required")
	}

	method := strings.ToUpper(cast.ToString(cfg["method"]))
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if body := cast.ToString(cfg["body"]); body != "" {
		bodyReader = strings.NewReader(body)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headerMap(cfg["headers"]) {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
	}

	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	if dataPath := cast.ToString(cfg["dataPath"]); dataPath != "" {
		raw = navigatePath(raw, dataPath)
	}

	return toRecords(raw), nil
}

// headerMap accepts headers as a map (YAML config) or a JSON object string.
func headerMap(v any) map[string]string {
	if s, ok := v.(string); ok {
		var headers map[string]string
		if s == "" || json.Unmarshal([]byte(s), &headers) != nil {
			return nil
		}
		return headers
	}
	headers, err := cast.ToStringMapStringE(v)
	if err != nil {
		return nil
	}
	return headers
}

// ── Shared JSON helpers ────────────────────────────────────

// streamRecords runs load in a goroutine and streams its records.
func streamRecords(ctx context.Context, load func() ([]etl.Record, error)) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		records, err := load()
		if err != nil {
			errCh <- err
			return
		}
		for _, rec := range records {
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}

// navigatePath walks a dot-separated path into nested maps.
func navigatePath(obj any, path string) any {
	current := obj
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

// toRecords converts a raw JSON value into a slice of Records.
func toRecords(raw any) []etl.Record {
	switch v := raw.(type) {
	case []any:
		records := make([]etl.Record, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				records = append(records, etl.Record{Data: flattenMap(m)})
			}
		}
		return records
	case map[string]any:
		// Single object → single record.
		return []etl.Record{{Data: flattenMap(v)}}
	default:
		return nil
	}
}

// flattenMap keeps scalar values and arrays of scalars (multi-choice values).
// Nested objects are serialized as JSON strings.
func flattenMap(m map[string]any) map[string]any {
	flat := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string, float64, bool, nil:
			flat[k] = v
		case []any:
			if parts, err := cast.ToStringSliceE(val); err == nil && scalarSlice(val) {
				flat[k] = parts
				continue
			}
			b, _ := json.Marshal(v)
			flat[k] = string(b)
		default:
			b, _ := json.Marshal(v)
			flat[k] = string(b)
		}
	}
	return flat
}

func scalarSlice(vals []any) bool {
	for _, v := range vals {
		switch v.(type) {
		case string, float64, bool:
		default:
			return false
		}
	}
	return true
}

// inferSchema infers a Schema from a slice of Records, fields sorted by name.
func inferSchema(records []etl.Record) *etl.Schema {
	fieldSet := make(map[string]domain.FieldType)
	for _, rec := range records {
		for k, v := range rec.Data {
			if t, exists := fieldSet[k]; !exists || (t == domain.FieldTypeText && v != nil) {
				fieldSet[k] = inferType(v)
			}
		}
	}

	names := make([]string, 0, len(fieldSet))
	for name := range fieldSet {
		names = append(names, name)
	}
	sort.Strings(names)

	schema := &etl.Schema{}
	for _, name := range names {
		schema.Fields = append(schema.Fields, domain.Field{Name: name, Type: fieldSet[name]})
	}
	return schema
}

func inferType(v any) domain.FieldType {
	switch v.(type) {
	case float64, float32, int, int64:
		return domain.FieldTypeNumber
	case bool:
		return domain.FieldTypeBoolean
	case []string:
		return domain.FieldTypeMultiChoice
	default:
		return domain.FieldTypeText
	}
}
