package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/metrics"
	"github.com/poiesic/recall/search"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Engine is the retrieval surface the server exposes.
type Engine interface {
	Search(ctx context.Context, query string) (*search.Result, error)
	Ask(ctx context.Context, query string) (*ai.Answer, error)
	Users() []string
}

// Server serves the HTTP API.
type Server struct {
	engine          Engine
	addr            string
	shutdownTimeout time.Duration
	logger          *slog.Logger
	router          chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address. Default is DefaultAddr.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithShutdownTimeout bounds graceful shutdown. Default is 10 seconds.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a server for engine and registers the recall metrics.
func New(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:          engine,
		addr:            DefaultAddr,
		shutdownTimeout: 10 * time.Second,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	metrics.Register()
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/ask", s.handleAsk)
		r.Get("/users", s.handleUsers)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUsers(w http.ResponseWriter, _ *http.Request) {
	users := s.engine.Users()
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, UsersResponse{Users: users})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	result, err := s.engine.Search(r.Context(), req.Query)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSearchResponse(result, req.Explain))
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRequest(w, r)
	if !ok {
		return
	}

	answer, err := s.engine.Ask(r.Context(), req.Query)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAnswerResponse(answer))
}

func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request) (SearchRequest, bool) {
	var req SearchRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return req, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "query is required")
		return req, false
	}
	return req, true
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "request cancelled")
		return
	}
	s.logger.Error("request failed",
		"path", r.URL.Path,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"err", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
