package http

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/agrisearch-core/internal/core/ports/driving"
	"github.com/custodia-labs/agrisearch-core/internal/metrics"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to the Pinger interface
type PingFunc func(ctx context.Context) error

// Ping calls f(ctx)
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	cfg        Config
	logger     *slog.Logger

	// Services
	answerService driving.AnswerService
	agentService  driving.AgentService
	jobService    driving.JobService
	authService   driving.AuthService // nil when auth is disabled

	// Infrastructure
	checks  map[string]Pinger // readiness checks by component name
	metrics *metrics.Collector
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            int
	Version         string
	CORSOrigins     []string
	RateLimit       float64 // requests per second per client, 0 disables
	RateBurst       int
	MetricsPath     string
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		CORSOrigins:     []string{"*"},
		RateLimit:       10,
		RateBurst:       20,
		MetricsPath:     "/metrics",
		ShutdownTimeout: 30 * time.Second,
	}
}

// Services groups the driving ports served over HTTP
type Services struct {
	Answer driving.AnswerService
	Agents driving.AgentService
	Jobs   driving.JobService
	Auth   driving.AuthService
}

// NewServer creates a new HTTP server.
// checks holds the readiness probes; collector may be nil.
func NewServer(
	cfg Config,
	services Services,
	checks map[string]Pinger,
	collector *metrics.Collector,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{
		router:        http.NewServeMux(),
		version:       cfg.Version,
		cfg:           cfg,
		logger:        logger,
		answerService: services.Answer,
		agentService:  services.Agents,
		jobService:    services.Jobs,
		authService:   services.Auth,
		checks:        checks,
		metrics:       collector,
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // synchronous answers can take a full pipeline budget
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewRateLimitMiddleware(s.cfg.RateLimit, s.cfg.RateBurst).Handler(h)
	h = NewCORSMiddleware(s.cfg.CORSOrigins).Handler(h)
	h = NewMetricsMiddleware(s.metrics).Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	return h
}

func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)

	// Health endpoints (no auth required)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	if s.metrics != nil {
		s.router.Handle("GET "+s.cfg.MetricsPath, s.metrics.Handler())
	}

	// Auth endpoints (no auth required)
	s.router.HandleFunc("POST /api/v1/auth/token", s.handleIssueToken)

	// Answering endpoints
	s.router.Handle("POST /api/v1/answer",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleAnswer)))
	s.router.Handle("GET /api/v1/models",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListModels)))
	s.router.Handle("POST /api/v1/agents",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleConsultAgents)))
	s.router.Handle("GET /api/v1/agents",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListAgents)))

	// Async job endpoints
	s.router.Handle("POST /api/v1/jobs",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleSubmitJob)))
	s.router.Handle("GET /api/v1/jobs/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetJob)))
	s.router.Handle("DELETE /api/v1/jobs/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleCancelJob)))

	// Stored answers
	s.router.Handle("GET /api/v1/answers",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListAnswers)))
	s.router.Handle("GET /api/v1/answers/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetAnswer)))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
