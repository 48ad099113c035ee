package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listbind/internal/domain"
	"listbind/internal/etl"
)

func collect(t *testing.T, src etl.Source, cfg etl.SourceConfig) []etl.Record {
	t.Helper()
	recCh, errCh := src.Read(context.Background(), cfg)
	var out []etl.Record
	for r := range recCh {
		out = append(out, r)
	}
	require.NoError(t, <-errCh)
	return out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegisteredSources(t *testing.T) {
	var types []string
	for _, s := range etl.ListSources() {
		types = append(types, s.Type)
	}
	assert.Subset(t, types, []string{"csv_file", "http", "json_file", "list"})
}

func TestInferCSVValue(t *testing.T) {
	assert.Equal(t, "007", inferCSVValue("007"))
	assert.Equal(t, 0.0, inferCSVValue("0"))
	assert.Equal(t, 0.5, inferCSVValue("0.5"))
	assert.Equal(t, 12.0, inferCSVValue(" 12 "))
	assert.Equal(t, true, inferCSVValue("Yes"))
	assert.Equal(t, false, inferCSVValue("no"))
	assert.Equal(t, "Y", inferCSVValue("Y"))
	assert.Nil(t, inferCSVValue("  "))
}

func TestCSVFileSource(t *testing.T) {
	path := writeFile(t, "codes.csv", "\ufeffCode,Name,Sort Order,Show Notes\n010,Freight,2,true\n020,Duty,1,false\n")
	src, err := etl.GetSource("csv_file")
	require.NoError(t, err)
	cfg := etl.SourceConfig{"filePath": path}

	schema, err := src.Discover(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []domain.Field{
		{Name: "Code", Type: domain.FieldTypeText},
		{Name: "Name", Type: domain.FieldTypeText},
		{Name: "Sort Order", Type: domain.FieldTypeNumber},
		{Name: "Show Notes", Type: domain.FieldTypeBoolean},
	}, schema.Fields)

	recs := collect(t, src, cfg)
	require.Len(t, recs, 2)
	assert.Equal(t, "010", recs[0].Data["Code"])
	assert.Equal(t, 2.0, recs[0].Data["Sort Order"])
	assert.Equal(t, false, recs[1].Data["Show Notes"])

	cfg["inferTypes"] = "false"
	recs = collect(t, src, cfg)
	assert.Equal(t, "2", recs[0].Data["Sort Order"])
}

func TestCSVFileSource_NoHeader(t *testing.T) {
	path := writeFile(t, "raw.csv", "A;Alpha\nB;Beta\n")
	src, _ := etl.GetSource("csv_file")
	recs := collect(t, src, etl.SourceConfig{
		"filePath": path, "delimiter": ";", "hasHeader": false,
	})
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]any{"col_1": "B", "col_2": "Beta"}, recs[1].Data)
}

func TestJSONFileSource(t *testing.T) {
	path := writeFile(t, "zones.json", `{"data":{"items":[
		{"Code":"N","Name":"North","Tags":["a","b"],"Meta":{"x":1}},
		{"Code":"S","Name":"South","Active":true}
	]}}`)
	src, _ := etl.GetSource("json_file")
	cfg := etl.SourceConfig{"filePath": path, "dataPath": "data.items"}

	schema, err := src.Discover(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Active", "Code", "Meta", "Name", "Tags"}, schema.FieldNames())
	tags, _ := schema.Field("Tags")
	assert.Equal(t, domain.FieldTypeMultiChoice, tags.Type)

	recs := collect(t, src, cfg)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"a", "b"}, recs[0].Data["Tags"])
	assert.Equal(t, `{"x":1}`, recs[0].Data["Meta"])

	_, err = src.Discover(context.Background(), etl.SourceConfig{"filePath": path, "dataPath": "missing"})
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "t0k" {
			http.Error(w, "denied", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"Code":"EUR","Name":"Euro"},{"Code":"USD","Name":"Dollar"}]`))
	}))
	defer srv.Close()

	src, _ := etl.GetSource("http")
	recs := collect(t, src, etl.SourceConfig{
		"url": srv.URL, "headers": map[string]any{"X-Token": "t0k"},
	})
	require.Len(t, recs, 2)
	assert.Equal(t, "USD", recs[1].Data["Code"])

	recCh, errCh := src.Read(context.Background(), etl.SourceConfig{"url": srv.URL, "headers": `{"X-Token":"bad"}`})
	for range recCh {
	}
	err := <-errCh
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "http 401"))
}

// stubStore serves one list.
type stubStore struct {
	list  domain.List
	items []domain.Item
}

func (s *stubStore) ListLists(context.Context) ([]domain.List, error) {
	return []domain.List{s.list}, nil
}

func (s *stubStore) GetList(_ context.Context, title string) (*domain.List, error) {
	if title != s.list.Title {
		return nil, &domain.LookupError{Name: title, Err: domain.ErrListNotFound}
	}
	l := s.list
	return &l, nil
}

func (s *stubStore) GetItems(_ context.Context, _ string, orderBy string) ([]domain.Item, error) {
	out := append([]domain.Item(nil), s.items...)
	domain.SortItemsBy(out, orderBy)
	return out, nil
}

func (s *stubStore) GetItemsFiltered(context.Context, string, string, string) ([]domain.Item, error) {
	return nil, nil
}

type stubProvider map[string]domain.ListStore

func (p stubProvider) ListSource(_ context.Context, name string) (domain.ListStore, error) {
	if s, ok := p[name]; ok {
		return s, nil
	}
	return nil, domain.ErrListNotFound
}

func TestListSource(t *testing.T) {
	store := &stubStore{
		list: domain.List{ID: "gl", Title: "gl_accounts", Fields: []domain.Field{{Name: "Code"}, {Name: "Sort Order", Type: domain.FieldTypeNumber}}},
		items: []domain.Item{
			{ID: "1", Data: map[string]any{"Code": "6000", "Sort Order": 2}},
			{ID: "2", Data: map[string]any{"Code": "5000", "Sort Order": 1}},
		},
	}
	SetListProvider(stubProvider{"erp": store})
	t.Cleanup(func() { SetListProvider(nil) })

	src, _ := etl.GetSource("list")
	cfg := etl.SourceConfig{"source": "erp", "list": "gl_accounts", "orderBy": "Sort Order"}

	schema, err := src.Discover(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Code", "Sort Order"}, schema.FieldNames())

	recs := collect(t, src, cfg)
	require.Len(t, recs, 2)
	assert.Equal(t, "5000", recs[0].Data["Code"])

	_, err = src.Discover(context.Background(), etl.SourceConfig{"source": "crm", "list": "x"})
	assert.ErrorIs(t, err, domain.ErrListNotFound)

	_, err = src.Discover(context.Background(), etl.SourceConfig{"source": "erp", "list": "missing"})
	assert.ErrorIs(t, err, domain.ErrListNotFound)
}

func TestListSource_NoProvider(t *testing.T) {
	SetListProvider(nil)
	src, _ := etl.GetSource("list")
	_, err := src.Discover(context.Background(), etl.SourceConfig{"source": "erp", "list": "x"})
	assert.Error(t, err)
}
