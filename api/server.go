package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"qualitrack/api/handlers"
	"qualitrack/api/routegroups"
	"qualitrack/config"
	"qualitrack/core/authz"
	"qualitrack/core/metrics"
	"qualitrack/core/nc"
	"qualitrack/core/utils"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

// BackgroundWorker is started with the server and stopped on shutdown.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context)
	StopWithContext(ctx context.Context) error
}

type ServerDeps struct {
	NC      *nc.Service
	Policy  *authz.Policy
	Metrics *metrics.NCMetrics
	Workers []BackgroundWorker
}

type Server struct {
	cfg     *config.AppConfig
	logger  *utils.Logger
	router  chi.Router
	ncSvc   *nc.Service
	policy  *authz.Policy
	metrics *metrics.NCMetrics
	workers []BackgroundWorker
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	if cfg == nil {
		cfg = &config.AppConfig{}
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		ncSvc:   deps.NC,
		policy:  deps.Policy,
		metrics: deps.Metrics,
		workers: deps.Workers,
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(s.securityHeadersMiddleware)
	r.Use(s.loggingMiddleware)

	r.MethodFunc("GET", "/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method("GET", "/metrics", s.metrics.Handler())
	}

	ncHandler := handlers.NewNCHandler(s.ncSvc, s.logger)
	r.Route("/api", func(apiRouter chi.Router) {
		routegroups.RegisterNC(apiRouter, routegroups.Guards{
			WithSession:       s.withSession,
			RequirePermission: s.requirePermission,
		}, ncHandler)
	})
	return r
}

// Run serves until ctx is cancelled, then drains requests and stops the
// background workers.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	for _, w := range s.workers {
		if w != nil {
			w.StartWithContext(workerCtx)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", s.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("http shutdown: %v", err)
	}
	for _, w := range s.workers {
		if w == nil {
			continue
		}
		if err := w.StopWithContext(shutdownCtx); err != nil {
			s.logger.Errorf("worker stop: %v", err)
		}
	}
	return serveErr
}
