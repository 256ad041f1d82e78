// Package worker provides the HTTP service that runs correlations for the dashboard.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/remote/internal/config"
	"github.com/thebtf/remote/internal/correlation"
	"github.com/thebtf/remote/internal/extract"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout bounds synchronous requests, including immediate correlations.
	DefaultHTTPTimeout = 60 * time.Second
)

// errSourceNotFound is returned when a request names an unregistered source.
var errSourceNotFound = errors.New("source not found")

// Service is the main worker service orchestrator.
type Service struct {
	// Version of the worker binary
	version string

	// Configuration
	config   *config.Config
	registry *config.Registry

	// Domain services
	jobs    *correlation.JobManager
	cache   *extract.Cache
	limiter *PerClientRateLimiter

	// Engines are rebuilt when the registry hands out a new *Source.
	engines   map[string]*correlation.Engine
	enginesMu sync.Mutex

	// HTTP server
	router    *chi.Mux
	server    *http.Server
	startTime time.Time

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a worker service over a source registry.
func NewService(version string, cfg *config.Config, registry *config.Registry) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	jobCfg := correlation.DefaultJobManagerConfig()
	if cfg.JobTTL > 0 {
		jobCfg.TTL = cfg.JobTTL
	}

	svc := &Service{
		version:   version,
		config:    cfg,
		registry:  registry,
		jobs:      correlation.NewJobManager(jobCfg),
		cache:     extract.NewCache(extract.DefaultCacheSize),
		limiter:   NewPerClientRateLimiter(cfg.RateLimit, cfg.RateBurst),
		engines:   make(map[string]*correlation.Engine),
		router:    chi.NewRouter(),
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	svc.setupMiddleware()
	svc.setupRoutes()
	return svc
}

// Handler returns the service's HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) setupMiddleware() {
	s.router.Use(RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(SecurityHeaders)
}

func (s *Service) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/sources", s.handleListSources)
		r.Get("/sources/{source}", s.handleGetSource)

		r.With(
			PerClientRateLimitMiddleware(s.limiter),
			RequireJSONContentType,
			MaxBodySize(s.config.MaxBodyBytes),
		).Post("/correlate/{source}", s.handleCorrelate)

		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Delete("/jobs/{id}", s.handleCancelJob)

		r.Get("/stats", s.handleStats)
	})
}

// engineFor returns the engine for a source, building it on first use or after a reload.
func (s *Service) engineFor(name string) (*correlation.Engine, error) {
	src, ok := s.registry.Get(name)
	if !ok {
		return nil, errSourceNotFound
	}

	s.enginesMu.Lock()
	defer s.enginesMu.Unlock()

	if engine, ok := s.engines[name]; ok && engine.Source() == src {
		return engine, nil
	}
	engine, err := correlation.NewEngine(src,
		correlation.WithWorkers(s.config.Workers),
		correlation.WithCache(s.cache),
	)
	if err != nil {
		return nil, err
	}
	s.engines[name] = engine
	log.Debug().Str("source", name).Msg("Built correlation engine")
	return engine, nil
}

// Start launches the job manager, the source watcher and the HTTP listener.
func (s *Service) Start() error {
	s.jobs.Start()

	if s.config.WatchSources && s.config.SourcesDir != "" {
		if err := s.registry.Watch(s.ctx); err != nil {
			log.Warn().Err(err).Msg("Source configs will not hot-reload")
		}
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.WorkerPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().
		Int("port", s.config.WorkerPort).
		Int("pid", os.Getpid()).
		Strs("sources", s.registry.Sources()).
		Msg("Worker HTTP server started")

	return nil
}

// Shutdown stops the listener, cancels outstanding jobs and waits for background goroutines.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	var shutdownErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
			shutdownErr = err
		}
	}

	s.jobs.Stop()
	s.wg.Wait()

	log.Info().Msg("Worker service shutdown complete")
	return shutdownErr
}

// requestLogger logs each request through zerolog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("request_id", GetRequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}
