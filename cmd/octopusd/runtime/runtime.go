// Package runtime constructs and owns the lifetime of every Octopus
// service: persistence, storage providers, the job queue, the outbox
// dispatcher, the worker pool, and the HTTP server. A Runtime struct is
// assembled once from config, with a Start/Shutdown pair driven by
// main.go's signal handling.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/octopus-bim/octopus/pkg/api"
	"github.com/octopus-bim/octopus/pkg/auth/oauth2"
	"github.com/octopus-bim/octopus/pkg/auth/principal"
	"github.com/octopus-bim/octopus/pkg/config"
	"github.com/octopus-bim/octopus/pkg/files"
	"github.com/octopus-bim/octopus/pkg/modelsvc"
	"github.com/octopus-bim/octopus/pkg/persistence"
	"github.com/octopus-bim/octopus/pkg/processing/pipeline"
	"github.com/octopus-bim/octopus/pkg/processing/wexbim"
	"github.com/octopus-bim/octopus/pkg/queue"
	"github.com/octopus-bim/octopus/pkg/storagedriver"

	// Driver packages register themselves into storagedriver.Registry via
	// init(); imported for side effect only.
	_ "github.com/octopus-bim/octopus/pkg/storagedriver/disk"
	_ "github.com/octopus-bim/octopus/pkg/storagedriver/s3"
)

// Runtime holds every long-lived service octopusd runs.
type Runtime struct {
	store      *persistence.Store
	queue      queue.Queue
	dispatcher *queue.Dispatcher
	workers    []*queue.Worker
	server     *api.Server
	httpServer *http.Server
	log        zerolog.Logger

	workerCtx    context.Context
	cancelWorker context.CancelFunc
}

// New assembles every service from cfg but does not yet start any of
// them; call Start to begin serving and processing.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Runtime, error) {
	driver, dsn, err := databaseDriver(cfg.Database)
	if err != nil {
		return nil, err
	}
	store, err := persistence.Open(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("runtime: open persistence: %w", err)
	}

	providers, defaultProvider, err := buildProviders(cfg.Storage)
	if err != nil {
		store.Close()
		return nil, err
	}

	filesSvc, err := files.New(store, providers, defaultProvider, cfg.Quota, cfg.Uploads.ReserveTTLHours)
	if err != nil {
		store.Close()
		return nil, err
	}
	modelSvc := modelsvc.New(store)

	q, err := buildQueue(ctx, cfg.Processing.Queue)
	if err != nil {
		store.Close()
		return nil, err
	}

	notifier := queue.NewProgressNotifier()

	registry := queue.NewRegistry()
	registry.Register(modelsvc.JobConvertWexBim, pipeline.NewConvertWexBimHandler(store, filesSvc, notifier, wexbim.NoopConverter{}))
	registry.Register(modelsvc.JobExtractProperties, pipeline.NewExtractPropertiesHandler(store, filesSvc, notifier))

	workerCfg := queue.WorkerConfig{
		MaxAttempts: cfg.Processing.MaxAttempts,
		BackoffBase: time.Duration(cfg.Processing.BackoffBaseMs) * time.Millisecond,
		BackoffMax:  time.Minute,
	}
	workerCount := cfg.Processing.Workers
	if workerCount < 1 {
		workerCount = 1
	}
	workers := make([]*queue.Worker, workerCount)
	for i := range workers {
		workers[i] = queue.NewWorker(q, registry, workerCfg, log)
	}

	dispatcher := queue.NewDispatcher(store, q, 500*time.Millisecond, log)

	oauthSvc := oauth2.New(store, cfg.OAuth, developmentCurrentUser(store, cfg))

	server := api.NewServer(store, filesSvc, modelSvc, oauthSvc, q, notifier, cfg, log)

	return &Runtime{
		store:      store,
		queue:      q,
		dispatcher: dispatcher,
		workers:    workers,
		server:     server,
		httpServer: &http.Server{Addr: cfg.HTTP.Addr, Handler: server.Router()},
		log:        log,
	}, nil
}

// Start launches the dispatcher, every worker, the periodic maintenance
// sweeps, and the HTTP listener, all on goroutines tied to ctx.
func (rt *Runtime) Start(ctx context.Context) {
	rt.workerCtx, rt.cancelWorker = context.WithCancel(ctx)

	go rt.dispatcher.Run(rt.workerCtx)
	for _, w := range rt.workers {
		go w.Run(rt.workerCtx)
	}
	go rt.runMaintenance(rt.workerCtx)

	go func() {
		if err := rt.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rt.log.Error().Err(err).Msg("runtime: http server stopped unexpectedly")
		}
	}()
}

// runMaintenance samples the queue backlog gauge on a 30s tick until ctx is
// cancelled. It does not expire stale upload sessions: nothing in the
// runtime calls files.Service.ExpireStaleSessions.
func (rt *Runtime) runMaintenance(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.server.SampleBacklog()
		}
	}
}

// Shutdown stops accepting new work and waits for the HTTP server to drain
// in-flight requests, then closes the persistence handle.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	if rt.cancelWorker != nil {
		rt.cancelWorker()
	}
	err := rt.httpServer.Shutdown(ctx)
	rt.store.Close()
	return err
}

func databaseDriver(db config.Database) (driver, dsn string, err error) {
	switch db.Provider {
	case "sqlite", "sqlite3":
		return "sqlite3", db.ConnectionString, nil
	case "mysql":
		return "mysql", db.ConnectionString, nil
	default:
		return "", "", fmt.Errorf("runtime: no database driver wired for provider %q", db.Provider)
	}
}

func buildProviders(cfg config.Storage) (map[string]storagedriver.Provider, string, error) {
	providers := map[string]storagedriver.Provider{}

	disk, err := storagedriver.Registry.New("localDisk", map[string]interface{}{"basePath": cfg.LocalDisk.BasePath})
	if err != nil {
		return nil, "", err
	}
	providers["localDisk"] = disk

	if cfg.S3.Bucket != "" {
		s3, err := storagedriver.Registry.New("s3", map[string]interface{}{
			"endpoint": cfg.S3.Endpoint, "bucket": cfg.S3.Bucket,
			"accessKey": cfg.S3.AccessKey, "secretKey": cfg.S3.SecretKey,
			"useSSL": cfg.S3.UseSSL, "region": cfg.S3.Region,
		})
		if err != nil {
			return nil, "", err
		}
		providers["s3"] = s3
	}

	if _, ok := providers[cfg.Provider]; !ok {
		return nil, "", fmt.Errorf("runtime: storage.provider %q has no registered provider", cfg.Provider)
	}
	return providers, cfg.Provider, nil
}

func buildQueue(ctx context.Context, cfg config.QueueConf) (queue.Queue, error) {
	switch cfg.Driver {
	case "", "inprocess":
		return queue.NewInProcess(256), nil
	case "nats":
		return queue.NewNATS(ctx, queue.NATSConfig{URL: cfg.NATS.URL, Embed: cfg.NATS.Embed, Subject: cfg.NATS.Subject})
	default:
		return nil, fmt.Errorf("runtime: no queue driver wired for %q", cfg.Driver)
	}
}

// developmentCurrentUser resolves /oauth/authorize's session principal.
// Octopus has no browser session layer of its own; /oauth/authorize sits
// outside principal.Middleware, so in development mode the fixed dev
// principal is resolved directly rather than read from request context.
// Outside development mode there is no session layer to authorize
// against yet, so authorize always declines.
func developmentCurrentUser(store *persistence.Store, cfg *config.Config) oauth2.CurrentUserFunc {
	return func(r *http.Request) (string, bool) {
		if cfg.Auth.Mode != "development" {
			return "", false
		}
		p, err := principal.EnsureDevUser(r.Context(), store, cfg.Auth.Dev)
		if err != nil {
			return "", false
		}
		return p.UserID, true
	}
}
