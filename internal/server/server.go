package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"admin-backend/internal/audit"
	"admin-backend/internal/upload"
)

// BuildInfo is reported by /health and /metrics.
type BuildInfo struct {
	Version string
	Commit  string
}

type Config struct {
	Addr  string // e.g. ":3000"
	Build BuildInfo

	Manager *upload.Manager
	Audit   *audit.Recorder

	// APIKeyHash is the bcrypt hash of the admin API key. Empty disables
	// authentication.
	APIKeyHash string

	// Database and Storage are probed by the health endpoints.
	Database Pinger
	Storage  Pinger

	MaxDirectUploadBytes int64

	// RateLimit is the number of /v1 requests allowed per client IP per
	// minute. Zero disables limiting.
	RateLimit int
}

type Server struct {
	httpServer *http.Server
	limiter    *rateLimiter

	manager   *upload.Manager
	audit     *audit.Recorder
	build     BuildInfo
	database  Pinger
	storage   Pinger
	maxDirect int64
}

func New(cfg Config) *Server {
	s := &Server{
		manager:   cfg.Manager,
		audit:     cfg.Audit,
		build:     cfg.Build,
		database:  cfg.Database,
		storage:   cfg.Storage,
		maxDirect: cfg.MaxDirectUploadBytes,
	}
	if s.maxDirect <= 0 {
		s.maxDirect = 32 << 20
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeadersMiddleware)
	r.Use(middleware.Compress(5, "application/json", "text/plain"))

	r.Get("/health", s.HandleHealth)
	r.Get("/ready", s.HandleReady)
	r.Get("/live", s.HandleLive)
	r.Get("/metrics", PrometheusMetricsHandler(cfg.Build))

	r.Route("/v1", func(r chi.Router) {
		if cfg.RateLimit > 0 {
			s.limiter = newRateLimiter(cfg.RateLimit, time.Minute)
			r.Use(s.limiter.middleware)
		}
		r.Use(APIKeyAuth{Hash: cfg.APIKeyHash}.require)

		r.Route("/uploads", func(r chi.Router) {
			r.Post("/", s.handleCreateUpload)
			r.Route("/{uploadID}", func(r chi.Router) {
				r.Get("/", s.handleGetUpload)
				r.Delete("/", s.handleAbortUpload)
				r.Post("/complete", s.handleCompleteUpload)
				r.Get("/parts/{partNumber}/url", s.handlePartURL)
				r.Put("/parts/{partNumber}", s.handleRegisterPart)
			})
		})

		r.Route("/files", func(r chi.Router) {
			r.Get("/", s.handleListFiles)
			r.Post("/", s.handleUploadFile)
			r.Get("/{fileID}", s.handleGetFile)
			r.Delete("/{fileID}", s.handleDeleteFile)
		})

		r.Get("/audit-logs", s.handleListAuditLogs)
	})

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}
