package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Synchronized(nil)
	m.Synchronized(nil)
	m.Synchronized(errors.New("boom"))
	m.DirectiveApplied("visibility")
	m.LookupSkipped()
	m.ImportRun("sub-codes", "success", 12)
	m.ImportRun("sub-codes", "error", 0)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.Request("GET", "/v1/lists", 200)
	m.Request("GET", "/v1/lists", 200)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/v1/lists", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.synchronizations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.synchronizations.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.directives.WithLabelValues("visibility")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skippedLookups))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.importRows.WithLabelValues("sub-codes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.openSessions))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Synchronized(nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `listbind_synchronizations_total{result="ok"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Synchronized(nil)
	m.DirectiveApplied("availability")
	m.LookupSkipped()
	m.SelectionChanged(nil)
	m.ImportRun("x", "success", 1)
	m.SessionOpened()
	m.SessionClosed()
	m.Request("GET", "/", 200)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
