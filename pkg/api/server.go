// Package api implements Octopus's REST surface: a chi router, an
// authentication/authorization middleware chain wired from pkg/auth, and
// per-resource handlers mapping onto pkg/files, pkg/modelsvc, and
// pkg/auth/oauth2. A service struct holds its dependencies; Router()
// returns a mux with endpoints registered as thin adapters over the
// business-logic layer.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/octopus-bim/octopus/pkg/appctx"
	"github.com/octopus-bim/octopus/pkg/auth/oauth2"
	"github.com/octopus-bim/octopus/pkg/auth/principal"
	"github.com/octopus-bim/octopus/pkg/config"
	"github.com/octopus-bim/octopus/pkg/files"
	"github.com/octopus-bim/octopus/pkg/modelsvc"
	"github.com/octopus-bim/octopus/pkg/persistence"
	"github.com/octopus-bim/octopus/pkg/queue"
)

// Server holds every dependency the HTTP surface dispatches into.
type Server struct {
	store    *persistence.Store
	files    *files.Service
	models   *modelsvc.Service
	oauth    *oauth2.Service
	queue    queue.Queue
	notifier *queue.ProgressNotifier
	cfg      *config.Config
	log      zerolog.Logger
	validate *validator.Validate
	backlog  prometheus.Gauge
}

// NewServer constructs the API server with its full dependency set.
func NewServer(store *persistence.Store, filesSvc *files.Service, modelSvc *modelsvc.Service, oauthSvc *oauth2.Service, q queue.Queue, notifier *queue.ProgressNotifier, cfg *config.Config, log zerolog.Logger) *Server {
	backlog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "octopus_queue_backlog",
		Help: "Approximate count of undelivered processing jobs.",
	})
	prometheus.MustRegister(backlog)

	return &Server{
		store: store, files: filesSvc, models: modelSvc, oauth: oauthSvc,
		queue: q, notifier: notifier, cfg: cfg, log: log,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		backlog:  backlog,
	}
}

// SampleBacklog refreshes the queue-backlog gauge. Intended to run on a
// periodic ticker alongside the worker pool.
func (s *Server) SampleBacklog() {
	s.backlog.Set(float64(s.queue.Backlog()))
}

// Router builds the complete chi mux.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/oauth", func(r chi.Router) {
		r.Get("/authorize", s.oauth.HandleAuthorize)
		r.Post("/token", s.oauth.HandleToken)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(principal.Middleware(s.store, s.cfg, principal.BearerHeaderStrategy{}))

		r.Route("/workspaces", func(r chi.Router) {
			r.Post("/", s.createWorkspace)
			r.Get("/", s.listWorkspaces)
			r.Route("/{workspaceID}", func(r chi.Router) {
				r.Get("/", s.getWorkspace)
				r.Put("/", s.updateWorkspace)
				r.Post("/projects", s.createProject)
			})
		})

		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Post("/files/reserve", s.reserveUpload)
			r.Post("/files/sessions/{sessionID}/content", s.uploadContent)
			r.Post("/files/sessions/{sessionID}/commit", s.commitUpload)
			r.Get("/files", s.listFiles)
			r.Post("/models", s.createModel)
		})

		r.Get("/files/{fileID}/content", s.downloadFile)

		r.Route("/models/{modelID}", func(r chi.Router) {
			r.Post("/versions", s.createModelVersion)
			r.Get("/versions", s.listModelVersions)
		})

		r.Route("/modelversions/{versionID}", func(r chi.Router) {
			r.Get("/", s.getModelVersion)
			r.Get("/wexbim", s.streamWexBim)
			r.Get("/properties", s.streamProperties)
		})

		r.Get("/usage/workspaces/{workspaceID}", s.getUsage)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := appctx.WithTrace(r.Context(), chimiddleware.GetReqID(r.Context()))
		l := s.log.With().Str("trace", appctx.GetTrace(ctx)).Logger()
		ctx = appctx.WithLogger(ctx, &l)
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		l.Info().Str("method", r.Method).Str("path", r.URL.Path).
			Int("status", ww.Status()).Dur("duration", time.Since(start)).Msg("request")
	})
}
