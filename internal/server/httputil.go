package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"

	"listbind/internal/domain"
	"listbind/internal/metrics"
	"listbind/internal/service"
)

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: writeJSON encode error: %v", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// errorStatus maps domain and service errors to an HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrListNotFound):
		return http.StatusNotFound, "LIST_NOT_FOUND"
	case errors.Is(err, domain.ErrListAmbiguous):
		return http.StatusConflict, "LIST_AMBIGUOUS"
	case errors.Is(err, domain.ErrFieldTypeMismatch):
		return http.StatusUnprocessableEntity, "FIELD_TYPE_MISMATCH"
	case errors.Is(err, service.ErrFormNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrControlNotFound),
		errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, domain.ErrApprovalNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, service.ErrNotDropDown):
		return http.StatusBadRequest, "NOT_DROPDOWN"
	case errors.Is(err, service.ErrJobRunning):
		return http.StatusConflict, "JOB_RUNNING"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// errorToHTTP writes err as a JSON error response. Unmapped errors are
// logged and hidden from the client.
func errorToHTTP(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("server: internal error: %v", err)
		writeError(w, status, code, "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}

// ── Middleware ─────────────────────────────────────────────

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack passes through to the underlying writer for WebSocket upgrades.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

// Recovery turns a handler panic into a 500 response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.Printf("server: panic serving %s %s: %v\n%s", r.Method, r.URL.Path, v, debug.Stack())
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Logging logs each request and counts it by route pattern.
func Logging(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.Request(r.Method, route, rec.status)
			log.Printf("server: %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
		})
	}
}
