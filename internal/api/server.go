// Package api serves walk estimates, sweeps, traces and saved runs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MJE43/lattice-walk-go/internal/auth"
	"github.com/MJE43/lattice-walk-go/internal/report"
	"github.com/MJE43/lattice-walk-go/internal/sampling"
	"github.com/MJE43/lattice-walk-go/internal/store"
)

const (
	// DefaultMaxSamples bounds samples per request unless configured.
	DefaultMaxSamples = 1_000_000

	// MaxTraceSteps bounds the length of a traced fixed-length walk.
	MaxTraceSteps = 100_000

	maxBodyBytes = 1 << 20
)

// Config wires a Server.
type Config struct {
	DB         store.DB // nil disables run persistence
	Sampler    *sampling.Sampler
	Logger     *zap.Logger
	Token      string // empty disables bearer auth
	MaxSamples int
	Timeout    time.Duration
	Precision  int // report precision for /runs/{id}/report
}

// Server handles HTTP requests.
type Server struct {
	db           store.DB
	sampler      *sampling.Sampler
	emitter      *report.Emitter
	errorHandler *ErrorHandler
	logger       *zap.Logger
	token        string
	maxSamples   int
	timeout      time.Duration
	startTime    time.Time
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sampler := cfg.Sampler
	if sampler == nil {
		sampler = sampling.NewSampler(sampling.WithLogger(logger))
	}
	maxSamples := cfg.MaxSamples
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	s := &Server{
		db:           cfg.DB,
		sampler:      sampler,
		emitter:      report.NewEmitter(cfg.Precision),
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		token:        cfg.Token,
		maxSamples:   maxSamples,
		timeout:      timeout,
		startTime:    time.Now(),
	}

	logger.Info("api_server_created",
		zap.Int("workers", sampler.Workers()),
		zap.Bool("database_enabled", s.db != nil),
		zap.Bool("auth_enabled", s.token != ""),
		zap.Int("max_samples", maxSamples),
	)
	return s
}

// Routes sets up the HTTP routes with middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(s.CORSMiddleware)

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.AuthMiddleware)
		r.Use(middleware.Timeout(s.timeout))

		r.Get("/version", s.handleVersion)
		r.Get("/walks", s.handleListWalks)
		r.Post("/estimate", s.handleEstimate)
		r.Post("/sweep", s.handleSweep)
		r.Post("/trace", s.handleTrace)

		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/report", s.handleRunReport)
		r.Delete("/runs/{id}", s.handleDeleteRun)
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api_listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		s.logger.Info("api_stopped")
		return nil
	}
}

// RequestLoggingMiddleware logs the start and end of every request.
func (s *Server) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		s.logger.Debug("request_start",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_ip", r.RemoteAddr),
		)

		next.ServeHTTP(ww, r)

		s.logger.Info("request_completed",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// CORSMiddleware allows browser clients on any origin.
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware requires "Authorization: Bearer <token>" when a token is set.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || !auth.Equal(strings.TrimSpace(presented), s.token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="walksim"`)
			s.errorHandler.HandleStatus(w, r, http.StatusUnauthorized, ErrTypeUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the engine version header.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", sampling.EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("response_encode_failed", zap.Error(err))
	}
}

// decodeJSON reads a bounded JSON body, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
