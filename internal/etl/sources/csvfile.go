package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"listbind/internal/domain"
	"listbind/internal/etl"
)

// ── CSV File Source ─────────────────────────────────────────
// Reads list records from a local CSV file.

type csvFileSource struct{}

func init() { etl.RegisterSource(&csvFileSource{}) }

func (s *csvFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "csv_file",
		Label: "CSV File",
		ConfigFields: []etl.ConfigField{
			{Key: "filePath", Label: "File Path", Required: true, Help: "Path to the CSV file"},
			{Key: "delimiter", Label: "Delimiter", Default: ",", Help: "Column delimiter (default: comma)"},
			{Key: "hasHeader", Label: "Has Header", Options: []string{"true", "false"}, Default: "true", Help: "Whether the first row contains column names"},
			{Key: "inferTypes", Label: "Infer Types", Options: []string{"true", "false"}, Default: "true", Help: "Parse numbers and booleans instead of keeping text"},
		},
	}
}

func (s *csvFileSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	headers, rows, err := readCSVFile(cfg)
	if err != nil {
		return nil, err
	}
	infer := inferTypes(cfg)

	schema := &etl.Schema{Fields: make([]domain.Field, len(headers))}
	for i, h := range headers {
		typ := domain.FieldTypeText
		if infer && len(rows) > 0 && i < len(rows[0]) {
			typ = inferType(inferCSVValue(rows[0][i]))
		}
		schema.Fields[i] = domain.Field{Name: h, Type: typ}
	}
	return schema, nil
}

func (s *csvFileSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		headers, rows, err := readCSVFile(cfg)
		if err != nil {
			errCh <- err
			return
		}
		infer := inferTypes(cfg)

		for _, row := range rows {
			data := make(map[string]any, len(headers))
			for j, h := range headers {
				if j >= len(row) {
					continue
				}
				if infer {
					data[h] = inferCSVValue(row[j])
				} else {
					data[h] = strings.TrimSpace(row[j])
				}
			}
			select {
			case out <- etl.Record{Data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}

func inferTypes(cfg etl.SourceConfig) bool {
	v, ok := cfg["inferTypes"]
	if !ok {
		return true
	}
	b, err := cast.ToBoolE(v)
	return err != nil || b
}

func readCSVFile(cfg etl.SourceConfig) ([]string, [][]string, error) {
	filePath := cast.ToString(cfg["filePath"])
	if filePath == "" {
		return nil, nil, fmt.Errorf("filePath is required")
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if delim := cast.ToString(cfg["delimiter"]); len(delim) > 0 {
		reader.Comma = rune(delim[0])
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("empty csv file")
	}

	hasHeader := true
	if h, ok := cfg["hasHeader"]; ok {
		hasHeader = cast.ToString(h) != "false"
	}

	var headers []string
	var rows [][]string
	if hasHeader {
		headers = records[0]
		for i := range headers {
			headers[i] = strings.TrimSpace(strings.TrimPrefix(headers[i], "\ufeff"))
		}
		rows = records[1:]
	} else {
		// Generate column names: col_1, col_2, ...
		headers = make([]string, len(records[0]))
		for i := range headers {
			headers[i] = fmt.Sprintf("col_%d", i+1)
		}
		rows = records
	}

	return headers, rows, nil
}

// inferCSVValue tries to parse a string as a number or bool. Values with a
// leading zero stay text so codes like "007" survive.
func inferCSVValue(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if len(s) == 1 || s[0] != '0' || strings.HasPrefix(s, "0.") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	switch strings.ToLower(s) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	}

	return s
}
