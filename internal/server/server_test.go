package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listbind/internal/domain"
	"listbind/internal/etl"
	_ "listbind/internal/etl/sources"
	"listbind/internal/form"
	"listbind/internal/metrics"
	"listbind/internal/server"
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
      - id: lblSubCode
        kind: label
`

type fixture struct {
	handler   http.Handler
	lists     *storage.ListStore
	approvals *storage.ApprovalStore
	hub       *server.Hub
	dir       string
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

func newFixture(t *testing.T, showType domain.FieldType) fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "listbind.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	lists := storage.NewListStore(db)

	seed(t, lists, "AP GL Accounts", []domain.Field{
		{Name: "Code", Type: domain.FieldTypeText},
		{Name: "Name", Type: domain.FieldTypeText},
		{Name: "AP Show Sub Codes", Type: showType},
		{Name: "Available Sub Code", Type: domain.FieldTypeText},
		{Name: "Sort Order", Type: domain.FieldTypeNumber},
	},
		map[string]any{"Code": "6000", "Name": "Freight", "AP Show Sub Codes": "true", "Available Sub Code": "T.C,T.D", "Sort Order": 1},
		map[string]any{"Code": "6100", "Name": "Duty", "AP Show Sub Codes": "false", "Available Sub Code": "ALL", "Sort Order": 2},
	)
	seed(t, lists, "Sub Codes", []domain.Field{
		{Name: "Code", Type: domain.FieldTypeText},
		{Name: "Name", Type: domain.FieldTypeText},
		{Name: "Sort Order", Type: domain.FieldTypeNumber},
	},
		map[string]any{"Code": "T.C", "Name": "Cost", "Sort Order": 2},
		map[string]any{"Code": "T.D", "Name": "Duty", "Sort Order": 1},
		map[string]any{"Code": "T.E", "Name": "Extra", "Sort Order": 3},
	)

	registry := form.NewRegistry(dir)
	def, err := form.ParseDefinition([]byte(manualPaymentYAML))
	require.NoError(t, err)
	require.NoError(t, registry.Register(def))

	csvPath := filepath.Join(dir, "currencies.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("Code,Name\nEUR,Euro\nUSD,Dollar\n"), 0644))

	m := metrics.New()
	hub := server.NewHub()
	listSvc := service.NewListService(lists)
	selection := service.NewSelectionService(listSvc, service.NewSynchronizer(listSvc, hub, m), m)
	forms := service.NewFormService(registry, listSvc, selection, hub, m)
	imports := service.NewImportService([]etl.Job{{
		Name:       "currencies",
		SourceType: "csv_file",
		SourceCfg:  etl.SourceConfig{"filePath": csvPath},
		Target:     "Currencies",
	}}, lists, storage.NewImportLogStore(db), hub, m)
	t.Cleanup(imports.Stop)

	approvals := storage.NewApprovalStore(db)
	srv := server.New(server.Config{}, server.Deps{
		Lists:     listSvc,
		Forms:     forms,
		Imports:   imports,
		Approvals: approvals,
		Hub:       hub,
		Metrics:   m,
	})
	return fixture{handler: srv.Handler(), lists: lists, approvals: approvals, hub: hub, dir: dir}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rec)["code"]
}

func findControl(st form.ControlState, id string) *form.ControlState {
	if st.ID == id {
		return &st
	}
	for _, c := range st.Controls {
		if found := findControl(c, id); found != nil {
			return found
		}
	}
	return nil
}

func codes(opts []domain.Option) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Code
	}
	return out
}

type sessionBody struct {
	ID       string            `json:"id"`
	FormID   string            `json:"formId"`
	Controls form.ControlState `json:"controls"`
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, domain.FieldTypeBoolean)

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	f.do(t, http.MethodGet, "/v1/lists", nil)
	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `listbind_http_requests_total\{method="GET",route="/v1/lists/?",status="200"\} 1`, rec.Body.String())
}

func TestLists(t *testing.T) {
	f := newFixture(t, domain.FieldTypeBoolean)

	rec := f.do(t, http.MethodGet, "/v1/lists", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]domain.List](t, rec), 2)

	rec = f.do(t, http.MethodGet, "/v1/lists/Sub%20Codes/items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[[]domain.Item](t, rec)
	require.Len(t, items, 3)
	assert.Equal(t, "T.D", items[0].Code())

	rec = f.do(t, http.MethodGet, "/v1/lists/Sub%20Codes/items?field=Name&contains=ext", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items = decode[[]domain.Item](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, "T.E", items[0].Code())

	rec = f.do(t, http.MethodGet, "/v1/lists/Sub%20Codes/options?codes=T.E,T.C", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"", "T.C", "T.E"}, codes(decode[[]domain.Option](t, rec)))

	rec = f.do(t, http.MethodGet, "/v1/lists/Vendors/items", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "LIST_NOT_FOUND", errorCode(t, rec))
}

func TestResolveList(t *testing.T) {
	f := newFixture(t, domain.FieldTypeBoolean)

	rec := f.do(t, http.MethodGet, "/v1/lists/resolve?name=SUBCODE", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[server.ResolvedList](t, rec)
	assert.Equal(t, "Sub Codes", got.List.Title)
	assert.Equal(t, "SUBCODE", got.Token)
	assert.Len(t, got.Items, 3)

	rec = f.do(t, http.MethodGet, "/v1/lists/resolve?control=Org_ucManualPayment_ddlGLAccount", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AP GL Accounts", decode[server.ResolvedList](t, rec).List.Title)

	rec = f.do(t, http.MethodGet, "/v1/lists/resolve", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/lists/resolve?name=Vendor", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	seed(t, f.lists, "Sub Code", nil)
	rec = f.do(t, http.MethodGet, "/v1/lists/resolve?name=SUBCODE", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "LIST_AMBIGUOUS", errorCode(t, rec))
}

func TestSessionFlow(t *testing.T) {
	f := newFixture(t, domain.FieldTypeBoolean)

	rec := f.do(t, http.MethodGet, "/v1/forms", nil)
	assert.JSONEq(t, `["ucManualPayment"]`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/v1/forms/ucManualPayment/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	sess := decode[sessionBody](t, rec)
	require.NotEmpty(t, sess.ID)
	assert.Equal(t, "ucManualPayment", sess.FormID)
	gl := findControl(sess.Controls, "ddlGLAccount")
	require.NotNil(t, gl)
	assert.Equal(t, []string{"", "6000", "6100"}, codes(gl.Options))

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/select", server.SelectData{Control: "ddlGLAccount", Value: "6000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Sync  service.Result `json:"sync"`
		State sessionBody    `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Sync.OptionListsBound, 1)
	sub := findControl(out.State.Controls, "ddlSubCode")
	require.NotNil(t, sub)
	assert.Equal(t, []string{"", "T.D", "T.C"}, codes(sub.Options))
	assert.Equal(t, "6000", findControl(out.State.Controls, "ddlGLAccount").Selected)

	rec = f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/select", server.SelectData{Control: "ddlGLAccount", Value: "6100"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/sessions/"+sess.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[sessionBody](t, rec)
	assert.False(t, findControl(state.Controls, "pnlSubCodes").Visible)
	assert.Equal(t, []string{"", "T.D", "T.C", "T.E"}, codes(findControl(state.Controls, "ddlSubCode").Options))

	rec = f.do(t, http.MethodGet, "/v1/sessions", nil)
	assert.Len(t, decode[[]sessionBody](t, rec), 1)

	rec = f.do(t, http.MethodDelete, "/v1/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/v1/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectErrors(t *testing.T) {
	f := newFixture(t, domain.FieldTypeBoolean)
	rec := f.do(t, http.MethodPost, "/v1/forms/ucRefund/sessions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	sess := decode[sessionBody](t, f.do(t, http.MethodPost, "/v1/forms/ucManualPayment/sessions", nil))
	path := "/v1/sessions/" + sess.ID + "/select"

	cases := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"unknown control", server.SelectData{Control: "ddlMissing", Value: "x"}, http.StatusNotFound, "NOT_FOUND"},
		{"not a drop-down", server.SelectData{Control: "lblSubCode", Value: "x"}, http.StatusBadRequest, "NOT_DROPDOWN"},
		{"missing control", server.SelectData{Value: "x"}, http.StatusBadRequest, "MISSING_CONTROL"},
		{"bad body", "not an object", http.StatusBadRequest, "INVALID_BODY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, path, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}

	rec = f.do(t, http.MethodPost, "/v1/sessions/nope/select", server.SelectData{Control: "ddlGLAccount", Value: "6000"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown codes are a no-op, not an error.
	rec = f.do(t, http.MethodPost, path, server.SelectData{Control: "ddlGLAccount", Value: "9999"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSelectTypeMismatch(t *testing.T) {
	f := newFixture(t, domain.FieldTypeText)
	sess := decode[sessionBody](t, f.do(t, http.MethodPost, "/v1/forms/ucManualPayment/sessions", nil))

	rec := f.do(t, http.MethodPost, "/v1/sessions/"+sess.ID+"/select", server.SelectData{Control: "ddlGLAccount", Value: "6000"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "FIELD_TYPE_MISMATCH", errorCode(t, rec))
}

func TestImports(t *testing.T) {
	f := newFixture(t, domain.FieldTypeBoolean)

	rec := f.do(t, http.MethodGet, "/v1/imports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	jobs := decode[[]server.ImportJobView](t, rec)
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].Running)

	rec = f.do(t, http.MethodGet, "/v1/imports/currencies/preview?rows=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[service.PreviewResult](t, rec).Records, 1)

	rec = f.do(t, http.MethodPost, "/v1/imports/currencies/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[etl.Result](t, rec).RowsWritten)

	rec = f.do(t, http.MethodGet, "/v1/lists/Currencies/options", nil)
	assert.Equal(t, []string{"", "EUR", "USD"}, codes(decode[[]domain.Option](t, rec)))

	rec = f.do(t, http.MethodGet, "/v1/imports/currencies/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]etl.RunLog](t, rec), 1)

	rec = f.do(t, http.MethodPost, "/v1/imports/nope/run", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, "/v1/imports/nope/runs", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/imports/sources", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A failing run still reports its result.
	require.NoError(t, os.Remove(filepath.Join(f.dir, "currencies.csv")))
	rec = f.do(t, http.MethodPost, "/v1/imports/currencies/run", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "error", decode[etl.Result](t, rec).Status)
}

func TestApprovals(t *testing.T) {
	f := newFixture(t, domain.FieldTypeBoolean)
	ctx := context.Background()

	rec := f.do(t, http.MethodGet, "/v1/approvals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	a := &domain.Approval{Tool: "run_import", Description: "Run import job currencies"}
	require.NoError(t, f.approvals.CreateApproval(ctx, a))

	pending := decode[[]domain.Approval](t, f.do(t, http.MethodGet, "/v1/approvals", nil))
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	events, unsubscribe := f.hub.Subscribe("")
	defer unsubscribe()

	rec = f.do(t, http.MethodPost, "/v1/approvals/"+a.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	status, err := f.approvals.ApprovalStatus(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalApproved, status)

	select {
	case msg := <-events:
		assert.Equal(t, server.EventApprovalResolved, msg.Data.(server.EventData).Event)
	case <-time.After(time.Second):
		t.Fatal("no approval event")
	}

	rec = f.do(t, http.MethodPost, "/v1/approvals/"+a.ID+"/reject", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "already decided")
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := server.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", errorCode(t, rec))
}

func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, match func(server.ServerMessage, json.RawMessage) bool) json.RawMessage {
	t.Helper()
	for {
		var msg struct {
			server.ServerMessage
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, wsjson.Read(ctx, conn, &msg))
		if match(msg.ServerMessage, msg.Data) {
			return msg.Data
		}
	}
}

func TestSessionStream(t *testing.T) {
	f := newFixture(t, domain.FieldTypeBoolean)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	sess := decode[sessionBody](t, f.do(t, http.MethodPost, "/v1/forms/ucManualPayment/sessions", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/sessions/" + sess.ID + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	readUntil(t, ctx, conn, func(m server.ServerMessage, _ json.RawMessage) bool { return m.Type == "session" })
	require.Eventually(t, func() bool { return f.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	data, _ := json.Marshal(server.SelectData{Control: "ddlGLAccount", Value: "6000"})
	require.NoError(t, wsjson.Write(ctx, conn, server.ClientMessage{Type: "select", ID: "r1", Data: data}))

	raw := readUntil(t, ctx, conn, func(m server.ServerMessage, raw json.RawMessage) bool {
		if m.Type != "event" {
			return false
		}
		var ev server.EventData
		return json.Unmarshal(raw, &ev) == nil && ev.Event == service.EventOptions
	})
	var ev server.EventData
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, sess.ID, ev.Session)

	readUntil(t, ctx, conn, func(m server.ServerMessage, _ json.RawMessage) bool {
		return m.Type == "state" && m.RequestID == "r1"
	})

	require.NoError(t, wsjson.Write(ctx, conn, server.ClientMessage{Type: "ping", ID: "p1"}))
	readUntil(t, ctx, conn, func(m server.ServerMessage, _ json.RawMessage) bool {
		return m.Type == "pong" && m.RequestID == "p1"
	})

	// Closing the session ends the stream.
	f.do(t, http.MethodDelete, "/v1/sessions/"+sess.ID, nil)
	for {
		var msg server.ServerMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
			break
		}
	}
}

func TestSessionStream_UnknownSession(t *testing.T) {
	f := newFixture(t, domain.FieldTypeBoolean)
	rec := f.do(t, http.MethodGet, "/v1/sessions/nope/ws", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
