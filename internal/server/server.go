// Package server exposes the probe set over HTTP.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/leslieo2/go-probe/internal/apidoc"
	"github.com/leslieo2/go-probe/internal/config"
	"github.com/leslieo2/go-probe/internal/constants"
	"github.com/leslieo2/go-probe/internal/observability"
	"github.com/leslieo2/go-probe/internal/probe"
	"github.com/leslieo2/go-probe/internal/runtimeinfo"
	"github.com/leslieo2/go-probe/internal/security"
	"go.uber.org/zap"
)

var ErrAlreadyStarted = errors.New("server already started")

type Server struct {
	config  *config.Config
	probes  *probe.Set
	runtime *runtimeinfo.Provider
	doc     *apidoc.Document
	handler http.Handler

	// Security
	rateLimiter *security.RateLimiter

	// Observability
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	mu       sync.Mutex
	server   *http.Server
	draining bool
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *observability.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics sets the HTTP and dependency metrics. They must already be
// registered.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithTracer(t *observability.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// WithRuntimeInfo sets the provider behind /api/info.
func WithRuntimeInfo(p *runtimeinfo.Provider) Option {
	return func(s *Server) {
		s.runtime = p
	}
}

// New builds the server and its handler chain. Anything not supplied through
// options gets a quiet default.
func New(cfg *config.Config, probes *probe.Set, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if probes == nil {
		return nil, errors.New("probe set is required")
	}

	s := &Server{config: cfg, probes: probes}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = observability.NewNopLogger()
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics()
		if err := s.metrics.Register(); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	if s.tracer == nil {
		tracer, err := observability.NewTracer(context.Background(), config.TracingConfig{})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracer = tracer
	}
	if s.runtime == nil {
		s.runtime = runtimeinfo.NewProvider(cfg.App.Name, cfg.App.Version, cfg.App.Environment, probes.Liveness())
	}

	metricsPath := s.metricsPath()
	if err := config.ValidateMetricsPath(metricsPath); err != nil {
		return nil, fmt.Errorf("invalid metrics path: %w", err)
	}
	switch metricsPath {
	case constants.PathRoot, constants.PathHealth, constants.PathReady, constants.PathInfo, constants.PathOpenAPI:
		return nil, fmt.Errorf("metrics path %s collides with a built-in route", metricsPath)
	}

	doc, err := apidoc.Load(cfg.App.Version, metricsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load API description: %w", err)
	}
	s.doc = doc

	s.rateLimiter = security.NewRateLimiter(cfg.Security.RateLimit, s.probePaths()...)

	mux, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.handler = s.applyMiddleware(mux)

	return s, nil
}

// Handler returns the complete handler chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) metricsPath() string {
	if p := s.config.Observability.Metrics.Path; p != "" {
		return p
	}
	return constants.PathMetrics
}

// probePaths are polled by orchestrators and scrapers, so they are neither
// rate limited nor logged at info level.
func (s *Server) probePaths() []string {
	return []string{constants.PathHealth, constants.PathReady, s.metricsPath()}
}

func (s *Server) routes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	handlers := map[string]http.Handler{
		constants.PathRoot:    http.HandlerFunc(s.rootHandler),
		constants.PathHealth:  http.HandlerFunc(s.healthHandler),
		constants.PathReady:   http.HandlerFunc(s.readinessHandler),
		s.metricsPath():       http.HandlerFunc(s.metricsHandler),
		constants.PathInfo:    http.HandlerFunc(s.infoHandler),
		constants.PathOpenAPI: s.doc.Handler(),
	}

	for _, route := range s.doc.Routes() {
		h, ok := handlers[route.Path]
		if !ok {
			return nil, fmt.Errorf("no handler for documented route %s %s", route.Method, route.Path)
		}

		path := route.Path
		if path == constants.PathRoot {
			path = "/{$}"
		}
		mux.Handle(route.Method+" "+path, h)

		s.logger.Logger.Debug("Registered route",
			zap.String("method", route.Method),
			zap.String("path", path),
			zap.String("operation", route.OperationID),
		)
	}

	mux.HandleFunc("/", s.notFoundHandler)

	return mux, nil
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.GetServerAddress()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Shutdown is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.config.Server.ReadTimeout,
		ReadHeaderTimeout: s.config.Server.ReadTimeout,
		WriteTimeout:      s.config.Server.WriteTimeout,
		IdleTimeout:       s.config.Server.IdleTimeout,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
		ErrorLog:          zap.NewStdLog(s.logger.Logger),
	}
	if s.config.TLS.Enabled {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrAlreadyStarted
	}
	s.server = srv
	s.mu.Unlock()

	s.logger.Logger.Info("Starting server",
		zap.String("address", ln.Addr().String()),
		zap.Bool("tls", s.config.TLS.Enabled),
		zap.String("metrics_path", s.metricsPath()),
	)
	s.metrics.SetHealthStatus(true)

	errCh := make(chan error, 1)
	go func() {
		if s.config.TLS.Enabled {
			errCh <- srv.ServeTLS(ln, s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			errCh <- srv.Serve(ln)
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		s.metrics.SetHealthStatus(false)
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown flips readiness to not-ready through the shutdown check, marks
// liveness degraded and drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	first := !s.draining
	s.draining = true
	s.mu.Unlock()

	if first {
		s.logger.Logger.Info("Shutting down server...")
		if err := s.probes.Readiness().Report(constants.ShutdownCheckName, probe.CheckFailing, "server is shutting down"); err != nil {
			s.logger.Logger.Warn("Failed to report shutdown check", zap.Error(err))
		}
		s.probes.Liveness().MarkDegraded("shutting down")
		s.metrics.SetHealthStatus(false)
	}
	defer s.rateLimiter.Stop()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		s.logger.Logger.Error("Failed to shutdown server", zap.Error(err))
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Logger.Info("Server stopped")
	return nil
}
