package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
)

// Server is the one concrete transport SPEC_FULL wires (§6 trigger
// protocol): a minimal bearer-token-authenticated submit endpoint. The
// rest of the HTTP control surface — CRUD, login, settings, UI — is
// explicitly out of scope (§1, §5) and not built.
type Server struct {
	adapter  *Adapter
	token    string
	router   chi.Router
	server   *http.Server
	listener net.Listener
	port     int
	logger   zerolog.Logger
}

// Config holds server configuration.
type Config struct {
	Host         string
	Port         int
	Token        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:         "127.0.0.1",
		Port:         8733,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
}

// NewServer builds the chi router around adapter: structured logging,
// panic recovery, health check, then the rate-limited, token-
// authenticated trigger endpoint, and binds a listener.
func NewServer(config *Config, adapter *Adapter, logger zerolog.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	srv := &Server{
		adapter:  adapter,
		token:    config.Token,
		router:   r,
		listener: listener,
		port:     port,
		logger:   logger,
		server: &http.Server{
			Handler:      r,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		},
	}

	r.Use(srv.requestLogger)
	r.Get("/health", healthHandler)
	r.Route("/trigger", func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Use(srv.authenticate)
		r.Post("/submit", srv.handleSubmit)
	})

	logger.Debug().Str("host", config.Host).Int("port", port).Msg("trigger endpoint listening")
	return srv, nil
}

// GetPort returns the port the server is listening on.
func (s *Server) GetPort() int { return s.port }

// Start begins serving requests in the background.
func (s *Server) Start() error {
	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("trigger server error")
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		s.logger.Trace().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.Status()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// authenticate enforces the shared-token auth §6 requires for the
// trigger endpoint only — not a general operator control plane, which is
// out of scope.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			writeJSON(w, http.StatusForbidden, map[string]any{"code": 403, "error": "trigger endpoint disabled: no token configured"})
			return
		}
		got := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if len(got) <= len(prefix) || got[:len(prefix)] != prefix {
			writeJSON(w, http.StatusForbidden, map[string]any{"code": 403, "error": "bad token"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got[len(prefix):]), []byte(s.token)) != 1 {
			writeJSON(w, http.StatusForbidden, map[string]any{"code": 403, "error": "bad token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type submitRequest struct {
	Path string `json:"path"`
}

// handleSubmit implements §6's trigger protocol exactly: payload
// {"path": "<absolute file path>"}, returns {"code":200,"task_id":N} on
// success, 400 if path missing, 403 on bad token (authenticate above).
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "error": "path missing"})
		return
	}

	task, err := s.adapter.Submit(r.Context(), req.Path)
	if err != nil {
		s.logger.Error().Err(err).Str("path", req.Path).Msg("trigger submit failed")
		writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "error": "submit failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"code": 200, "task_id": task.ID})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "time": time.Now().Format(time.RFC3339)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
