package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"voice-summary/internal/domain"
)

//go:embed static/index.html
var indexHTML []byte

// CycleRunner runs one capture, transcribe, summarize and speak cycle.
type CycleRunner interface {
	Cycle(ctx context.Context) (*domain.Cycle, error)
}

type factCheckResponse struct {
	Response string `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	addr        string
	runner      CycleRunner
	rateLimiter *RateLimiter
	logger      *slog.Logger
	mux         *http.ServeMux

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener

	// one microphone, one cycle at a time
	cycleMu sync.Mutex
}

// NewServer registers the routes. rateLimiter may be nil.
func NewServer(addr string, runner CycleRunner, rateLimiter *RateLimiter, logger *slog.Logger) *Server {
	s := &Server{
		addr:        addr,
		runner:      runner,
		rateLimiter: rateLimiter,
		logger:      logger,
		mux:         http.NewServeMux(),
	}

	factCheck := s.handleFactCheck
	if rateLimiter != nil {
		factCheck = rateLimiter.Middleware(factCheck)
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /fact_check", factCheck)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	server := s.server
	go func() {
		s.logger.Info("HTTP server starting", "addr", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Addr is the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}

	s.server = nil
	s.listener = nil
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleFactCheck(w http.ResponseWriter, r *http.Request) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	cycle, err := s.runner.Cycle(r.Context())
	if cycle != nil && cycle.ID != "" {
		w.Header().Set("X-Cycle-ID", cycle.ID)
	}

	if err != nil {
		status := statusFor(err)
		s.logger.Error("fact check failed", "error", err, "status", status)
		writeJSON(w, status, errorResponse{Error: domain.Message(err)})
		return
	}

	writeJSON(w, http.StatusOK, factCheckResponse{Response: cycle.Summary})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusFor(err error) int {
	var reqErr *domain.RequestError

	switch {
	case errors.Is(err, domain.ErrNoText):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnintelligible):
		return http.StatusUnprocessableEntity
	case errors.As(err, &reqErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(body)
}
