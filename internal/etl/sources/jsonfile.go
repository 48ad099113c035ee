package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cast"

	"listbind/internal/etl"
)

// ── JSON File Source ────────────────────────────────────────
// Reads list records from a local JSON file.

type jsonFileSource struct{}

func init() { etl.RegisterSource(&jsonFileSource{}) }

func (s *jsonFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "json_file",
		Label: "JSON File",
		ConfigFields: []etl.ConfigField{
			{Key: "filePath", Label: "File Path", Required: true, Help: "Path to the JSON file"},
			{Key: "dataPath", Label: "Data Path", Help: "Dot-separated path to the array (e.g., 'data.items'). Leave empty if root is an array."},
		},
	}
}

func (s *jsonFileSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	records, err := readJSONFile(cfg)
	if err != nil {
		return nil, err
	}
	return inferSchema(records), nil
}

func (s *jsonFileSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	return streamRecords(ctx, func() ([]etl.Record, error) { return readJSONFile(cfg) })
}

func readJSONFile(cfg etl.SourceConfig) ([]etl.Record, error) {
	filePath := cast.ToString(cfg["filePath"])
	if filePath == "" {
		return nil, fmt.Errorf("filePath is required")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	if dataPath := cast.ToString(cfg["dataPath"]); dataPath != "" {
		raw = navigatePath(raw, dataPath)
		if raw == nil {
			return nil, fmt.Errorf("invalid data path: %q not found", dataPath)
		}
	}

	return toRecords(raw), nil
}
