package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listbind/internal/domain"
	"listbind/internal/etl"
	_ "listbind/internal/etl/sources"
	"listbind/internal/form"
	"listbind/internal/service"
	"listbind/internal/storage"
)

const manualPaymentYAML = `
id: ucManualPayment
root: Org
controls:
  - id: ddlGLAccount
    kind: dropdown
    list: AP GL Accounts
  - id: pnlSubCodes
    kind: panel
    controls:
      - id: ddlSubCode
        kind: dropdown
`

type fixture struct {
	srv       *Server
	lists     *storage.ListStore
	approvals *storage.ApprovalStore
	emitter   *service.MockEmitter
}

func seed(t *testing.T, lists *storage.ListStore, title string, fields []domain.Field, rows ...map[string]any) {
	t.Helper()
	ctx := context.Background()
	l, err := lists.EnsureList(ctx, title, fields)
	require.NoError(t, err)
	items := make([]domain.Item, len(rows))
	for i, row := range rows {
		items[i] = domain.Item{Data: row}
	}
	require.NoError(t, lists.ReplaceItems(ctx, l.ID, items))
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "listbind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	lists := storage.NewListStore(db)

	seed(t, lists, "AP GL Accounts", []domain.Field{
		{Name: "Code", Type: domain.FieldTypeText},
		{Name: "Name", Type: domain.FieldTypeText},
		{Name: "AP Show Sub Codes", Type: domain.FieldTypeBoolean},
		{Name: "Available Sub Code", Type: domain.FieldTypeText},
		{Name: "Sort Order", Type: domain.FieldTypeNumber},
	},
		map[string]any{"Code": "6000", "Name": "Freight", "AP Show Sub Codes": "true", "Available Sub Code": "T.C", "Sort Order": 1},
		map[string]any{"Code": "6100", "Name": "Duty", "AP Show Sub Codes": "false", "Available Sub Code": "ALL", "Sort Order": 2},
	)
	seed(t, lists, "Sub Codes", []domain.Field{
		{Name: "Code", Type: domain.FieldTypeText},
		{Name: "Name", Type: domain.FieldTypeText},
	},
		map[string]any{"Code": "T.C", "Name": "Cost"},
		map[string]any{"Code": "T.D", "Name": "Duty"},
	)

	registry := form.NewRegistry(dir)
	def, err := form.ParseDefinition([]byte(manualPaymentYAML))
	require.NoError(t, err)
	require.NoError(t, registry.Register(def))

	csvPath := filepath.Join(dir, "currencies.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Code,Name\nEUR,Euro\nUSD,Dollar\n"), 0644))

	emitter := &service.MockEmitter{}
	listSvc := service.NewListService(lists)
	selection := service.NewSelectionService(listSvc, service.NewSynchronizer(listSvc, emitter, nil), nil)
	forms := service.NewFormService(registry, listSvc, selection, emitter, nil)
	imports := service.NewImportService([]etl.Job{{
		Name:       "currencies",
		SourceType: "csv_file",
		SourceCfg:  etl.SourceConfig{"filePath": csvPath},
		Target:     "Currencies",
		SyncMode:   etl.SyncReplace,
	}}, lists, storage.NewImportLogStore(db), emitter, nil)
	t.Cleanup(imports.Stop)

	approvals := storage.NewApprovalStore(db)
	srv := New(Deps{
		Emitter:   emitter,
		Lists:     listSvc,
		Forms:     forms,
		Imports:   imports,
		Approvals: approvals,
	})
	srv.Approvals().SetTiming(2*time.Second, 10*time.Millisecond)
	return fixture{srv: srv, lists: lists, approvals: approvals, emitter: emitter}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func decodeResult(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), v))
}

func TestListTools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.srv.handleListLists(ctx, callRequest(nil))
	require.NoError(t, err)
	var lists []listSummary
	decodeResult(t, res, &lists)
	require.Len(t, lists, 2)

	res, err = f.srv.handleListItems(ctx, callRequest(map[string]any{"title": "Sub Codes", "field": "Name", "contains": "dut"}))
	require.NoError(t, err)
	var rows []map[string]any
	decodeResult(t, res, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "T.D", rows[0]["Code"])

	_, err = f.srv.handleListItems(ctx, callRequest(nil))
	assert.EqualError(t, err, "title is required")

	_, err = f.srv.handleListItems(ctx, callRequest(map[string]any{"title": "Sub Code"}))
	assert.ErrorIs(t, err, domain.ErrListNotFound, "list_items wants the exact title")
}

func TestResolveListTool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.srv.handleResolveList(ctx, callRequest(map[string]any{"control": "Org_ucManualPayment_ddlSubCode"}))
	require.NoError(t, err)
	var out struct {
		Token string           `json:"token"`
		List  listSummary      `json:"list"`
		Items []map[string]any `json:"items"`
	}
	decodeResult(t, res, &out)
	assert.Equal(t, "SUBCODE", out.Token)
	assert.Equal(t, "Sub Codes", out.List.Title)
	assert.Len(t, out.Items, 2)

	seed(t, f.lists, "Sub Code", []domain.Field{{Name: "Code", Type: domain.FieldTypeText}})
	res, err = f.srv.handleResolveList(ctx, callRequest(map[string]any{"name": "sub code"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), domain.ErrListAmbiguous.Error())

	_, err = f.srv.handleResolveList(ctx, callRequest(nil))
	assert.Error(t, err)
}

func TestClassifyField(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		control string
		check   func(t *testing.T, e fieldExplanation)
	}{
		{
			name: "visibility", field: "AP Show Sub Codes", value: "false", control: "Org_ucManualPayment_pnlSubCodes",
			check: func(t *testing.T, e fieldExplanation) {
				assert.Equal(t, "visibility", e.Kind)
				assert.Equal(t, "SUBCODES", e.VisibilityTarget)
				assert.False(t, *e.Visible)
				assert.True(t, *e.VisibleParsed)
				assert.True(t, *e.TargetsPanel)
				assert.False(t, *e.TargetsDropDown)
			},
		},
		{
			name: "unparseable visibility shows", field: "Show Notes", value: "maybe",
			check: func(t *testing.T, e fieldExplanation) {
				assert.True(t, *e.Visible)
				assert.False(t, *e.VisibleParsed)
				assert.Nil(t, e.TargetsPanel)
			},
		},
		{
			name: "availability", field: "Available Sub Code", value: "A,B,A", control: "Org_ucManualPayment_ddlSubCode",
			check: func(t *testing.T, e fieldExplanation) {
				assert.Equal(t, "availability", e.Kind)
				assert.Equal(t, "Sub Code", e.RelatedList)
				assert.Equal(t, []string{"A", "B", "A"}, e.Codes)
				assert.False(t, *e.AllCodes)
				assert.True(t, *e.TargetsDropDown)
			},
		},
		{
			name: "availability of all", field: "Available Sub Code", value: "ALL",
			check: func(t *testing.T, e fieldExplanation) {
				assert.True(t, *e.AllCodes)
				assert.Empty(t, e.Codes)
			},
		},
		{
			name: "plain field", field: "Name", value: "Freight",
			check: func(t *testing.T, e fieldExplanation) {
				assert.Equal(t, "none", e.Kind)
				assert.Nil(t, e.Visible)
				assert.Empty(t, e.RelatedList)
			},
		},
	}
	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.srv.handleClassifyField(context.Background(), callRequest(map[string]any{
				"field": tt.field, "value": tt.value, "control": tt.control,
			}))
			require.NoError(t, err)
			var e fieldExplanation
			decodeResult(t, res, &e)
			tt.check(t, e)
		})
	}
}

func TestFormTools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.srv.handleOpenForm(ctx, callRequest(map[string]any{"formId": "ucManualPayment"}))
	require.NoError(t, err)
	var opened struct {
		ID string `json:"id"`
	}
	decodeResult(t, res, &opened)
	require.NotEmpty(t, opened.ID)

	res, err = f.srv.handleSelectValue(ctx, callRequest(map[string]any{
		"sessionId": opened.ID, "control": "ddlGLAccount", "value": "6000",
	}))
	require.NoError(t, err)
	var selected service.SelectResult
	decodeResult(t, res, &selected)
	require.NotNil(t, selected.Sync)
	require.Len(t, selected.Sync.PanelsToggled, 1)
	assert.True(t, selected.Sync.PanelsToggled[0].Visible)
	require.Len(t, selected.Sync.OptionListsBound, 1)
	assert.Len(t, selected.Sync.OptionListsBound[0].Options, 2, "blank + T.C")

	res, err = f.srv.handleListForms(ctx, callRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), opened.ID)

	_, err = f.srv.handleFormState(ctx, callRequest(map[string]any{"sessionId": opened.ID}))
	require.NoError(t, err)

	_, err = f.srv.handleSelectValue(ctx, callRequest(map[string]any{"sessionId": opened.ID, "control": "pnlSubCodes", "value": "x"}))
	assert.ErrorIs(t, err, service.ErrNotDropDown)

	res, err = f.srv.handleCloseForm(ctx, callRequest(map[string]any{"sessionId": opened.ID}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "closed")

	_, err = f.srv.handleFormState(ctx, callRequest(map[string]any{"sessionId": opened.ID}))
	assert.ErrorIs(t, err, service.ErrSessionNotFound)
}

func TestRunImport_Approved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			pending, err := f.approvals.ListPendingApprovals(ctx)
			if err == nil && len(pending) == 1 {
				assert.Equal(t, "run_import", pending[0].Tool)
				assert.Contains(t, pending[0].Metadata, `"job":"currencies"`)
				assert.NoError(t, f.approvals.ResolveApproval(ctx, pending[0].ID, domain.ApprovalApproved))
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	res, err := f.srv.handleRunImport(ctx, callRequest(map[string]any{"job": "currencies"}))
	require.NoError(t, err)
	<-done

	var result etl.Result
	decodeResult(t, res, &result)
	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 2, result.RowsWritten)

	items, err := f.srv.lists.Items(ctx, "Currencies")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	pending, err := f.approvals.ListPendingApprovals(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "resolved approvals are cleaned up")
	assert.Len(t, f.emitter.Named(EventApprovalRequired), 1)

	res, err = f.srv.handleImportStatus(ctx, callRequest(map[string]any{"job": "currencies"}))
	require.NoError(t, err)
	var status struct {
		Jobs []struct {
			Name    string `json:"name"`
			Running bool   `json:"running"`
		} `json:"jobs"`
		Runs []etl.RunLog `json:"runs"`
	}
	decodeResult(t, res, &status)
	require.Len(t, status.Jobs, 1)
	assert.False(t, status.Jobs[0].Running)
	require.Len(t, status.Runs, 1)
	assert.Equal(t, "success", status.Runs[0].Status)
}

func TestRunImport_Rejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	go func() {
		for {
			pending, err := f.approvals.ListPendingApprovals(ctx)
			if err == nil && len(pending) == 1 {
				f.approvals.ResolveApproval(ctx, pending[0].ID, domain.ApprovalRejected)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	res, err := f.srv.handleRunImport(ctx, callRequest(map[string]any{"job": "currencies"}))
	require.NoError(t, err)
	assert.Equal(t, "Action rejected by user", resultText(t, res))

	_, err = f.srv.lists.Items(ctx, "Currencies")
	assert.ErrorIs(t, err, domain.ErrListNotFound, "nothing was imported")

	_, err = f.srv.handleRunImport(ctx, callRequest(map[string]any{"job": "missing"}))
	assert.ErrorIs(t, err, service.ErrJobNotFound)
}

func TestApprovalQueue_Timeout(t *testing.T) {
	f := newFixture(t)
	q := NewApprovalQueue(f.approvals, f.emitter)
	q.SetTiming(50*time.Millisecond, 10*time.Millisecond)

	approved, err := q.Request(context.Background(), "run_import", "Run import job currencies")
	assert.False(t, approved)
	assert.ErrorContains(t, err, "timed out")
	assert.Len(t, f.emitter.Named(EventApprovalDismissed), 1)

	pending, err := f.approvals.ListPendingApprovals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = NewApprovalQueue(nil, nil).Request(context.Background(), "run_import", "x")
	assert.Error(t, err)
}

func TestApprovalQueue_ContextCancelled(t *testing.T) {
	f := newFixture(t)
	q := NewApprovalQueue(f.approvals, nil)
	q.SetTiming(time.Minute, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	approved, err := q.Request(ctx, "run_import", "Run import job currencies")
	assert.False(t, approved)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pending, err := f.approvals.ListPendingApprovals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var req mcp.ReadResourceRequest
	req.Params.URI = "listbind://lists/Sub%20Codes/items"
	contents, err := f.srv.handleListItemsResource(ctx, req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, req.Params.URI, text.URI)
	assert.Contains(t, text.Text, "T.D")

	req.Params.URI = listsURI
	contents, err = f.srv.handleListsResource(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, "AP GL Accounts")

	contents, err = f.srv.handleFormsResource(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, "ucManualPayment")

	_, err = titleFromURI("listbind://lists//items")
	assert.Error(t, err)
	_, err = titleFromURI("listbind://forms")
	assert.Error(t, err)
}

func TestPrompts(t *testing.T) {
	f := newFixture(t)
	var req mcp.GetPromptRequest
	req.Params.Arguments = map[string]string{"formId": "ucManualPayment", "control": "Org_ucManualPayment_pnlSubCodes"}

	res, err := f.srv.handleDiagnoseBindingPrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(mcp.TextContent).Text
	assert.Contains(t, text, "Org_ucManualPayment_pnlSubCodes")
	assert.Contains(t, text, "classify_field")

	req.Params.Arguments = map[string]string{"formId": "ucManualPayment", "dropDown": "Org_ucManualPayment_ddlGLAccount"}
	res, err = f.srv.handleDesignListPrompt(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, res.Messages[0].Content.(mcp.TextContent).Text, "Available <related list title>")
}
