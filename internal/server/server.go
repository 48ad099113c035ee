// Package server exposes the list and form services over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"listbind/internal/domain"
	"listbind/internal/metrics"
	"listbind/internal/service"
)

// Config holds server configuration.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	// OriginPatterns are the origins allowed to open WebSocket streams.
	// Empty allows same-origin requests only.
	OriginPatterns []string
}

// Deps are the services the routes are served from. Imports and Approvals
// may be nil.
type Deps struct {
	Lists     *service.ListService
	Forms     *service.FormService
	Imports   *service.ImportService
	Approvals domain.ApprovalStore
	Hub       *Hub
	Metrics   *metrics.Metrics
}

// Server holds the route handlers.
type Server struct {
	lists     *service.ListService
	forms     *service.FormService
	imports   *service.ImportService
	approvals domain.ApprovalStore
	hub       *Hub
	metrics   *metrics.Metrics
	origins   []string
}

// New creates a Server.
func New(cfg Config, deps Deps) *Server {
	hub := deps.Hub
	if hub == nil {
		hub = NewHub()
	}
	return &Server{
		lists:     deps.Lists,
		forms:     deps.Forms,
		imports:   deps.Imports,
		approvals: deps.Approvals,
		hub:       hub,
		metrics:   deps.Metrics,
		origins:   cfg.OriginPatterns,
	}
}

// Handler returns the router with all routes registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(Recovery, Logging(s.metrics))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/lists", func(r chi.Router) {
			r.Get("/", s.listLists)
			r.Get("/resolve", s.resolveList)
			r.Get("/{title}/items", s.listItems)
			r.Get("/{title}/options", s.listOptions)
		})

		r.Get("/forms", s.listForms)
		r.Post("/forms/{formID}/sessions", s.openSession)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Get("/{id}", s.getSession)
			r.Delete("/{id}", s.closeSession)
			r.Post("/{id}/select", s.selectValue)
			r.Get("/{id}/ws", s.sessionStream)
		})

		if s.imports != nil {
			r.Route("/imports", func(r chi.Router) {
				r.Get("/", s.listImports)
				r.Get("/sources", s.listImportSources)
				r.Post("/{name}/run", s.runImport)
				r.Get("/{name}/preview", s.previewImport)
				r.Get("/{name}/runs", s.listImportRuns)
			})
		}

		if s.approvals != nil {
			r.Route("/approvals", func(r chi.Router) {
				r.Get("/", s.listApprovals)
				r.Post("/{id}/approve", s.resolveApproval(domain.ApprovalApproved))
				r.Post("/{id}/reject", s.resolveApproval(domain.ApprovalRejected))
			})
		}
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	log.Printf("server: shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
