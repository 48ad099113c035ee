// Package app wires configuration, storage and services together for the
// serve, mcp and command-line entry points.
package app

import (
	"context"
	"fmt"
	"log"

	"listbind/internal/config"
	"listbind/internal/etl/sources"
	"listbind/internal/form"
	"listbind/internal/metrics"
	"listbind/internal/secret"
	"listbind/internal/server"
	"listbind/internal/service"
	"listbind/internal/storage"
)

// App owns the storage handle and every service built on it.
type App struct {
	cfg *config.Config
	db  *storage.DB

	lists     *storage.ListStore
	runLogs   *storage.ImportLogStore
	approvals *storage.ApprovalStore
	secrets   secret.SecretStore
	registry  *form.Registry

	hub     *server.Hub
	metrics *metrics.Metrics

	listSvc   *service.ListService
	sourceSvc *service.SourceService
	formSvc   *service.FormService
	importSvc *service.ImportService
}

// New opens the database and builds the services described by cfg.
func New(cfg *config.Config) (*App, error) {
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	secrets, err := secret.Open(cfg.Secrets.Backend, cfg.Secrets.EnvPrefix, cfg.Secrets.KeychainService)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &App{
		cfg:       cfg,
		db:        db,
		lists:     storage.NewListStore(db),
		runLogs:   storage.NewImportLogStore(db),
		approvals: storage.NewApprovalStore(db),
		secrets:   secrets,
		registry:  form.NewRegistry(cfg.Forms.Dir),
		hub:       server.NewHub(),
		metrics:   metrics.New(),
	}

	// Import jobs of type "list" mirror configured external sources.
	a.sourceSvc = service.NewSourceService(cfg.Sources, secrets)
	sources.SetListProvider(a.sourceSvc)

	a.listSvc = service.NewListService(a.lists)
	synchronizer := service.NewSynchronizer(a.listSvc, a.hub, a.metrics)
	selection := service.NewSelectionService(a.listSvc, synchronizer, a.metrics)
	a.formSvc = service.NewFormService(a.registry, a.listSvc, selection, a.hub, a.metrics)
	a.importSvc = service.NewImportService(cfg.Imports, a.lists, a.runLogs, a.hub, a.metrics)

	if err := a.registry.Load(); err != nil {
		log.Printf("[FORMS] %v", err)
	}
	return a, nil
}

// Close stops background work, waits for running imports and closes storage.
func (a *App) Close() error {
	a.importSvc.Stop()
	a.importSvc.WaitRunning(context.Background())
	a.sourceSvc.Close()
	return a.db.Close()
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config {
	return a.cfg
}

// ── Serve ──────────────────────────────────────────────────

// ServeHTTP runs the HTTP server with the form watcher, import schedules and
// the store watcher until ctx is cancelled.
func (a *App) ServeHTTP(ctx context.Context) error {
	if a.cfg.Forms.Watch {
		if err := a.registry.Watch(ctx); err != nil {
			log.Printf("[FORMS] %v", err)
		}
	}
	a.importSvc.RestartWatchers(ctx)

	w := newStoreWatcher(ctx, a)
	w.Start()
	defer w.Stop()

	srvCfg := server.Config{
		Addr:            a.cfg.Server.Addr,
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		OriginPatterns:  a.cfg.Server.OriginPatterns,
	}
	srv := server.New(srvCfg, server.Deps{
		Lists:     a.listSvc,
		Forms:     a.formSvc,
		Imports:   a.importSvc,
		Approvals: a.approvals,
		Hub:       a.hub,
		Metrics:   a.metrics,
	})
	return server.Run(ctx, srvCfg, srv.Handler())
}
