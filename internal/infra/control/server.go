package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/OmarFaruqJibon/NexoVoice-AI/internal/application"
)

// Controller is the part of the session machine the control surface drives.
type Controller interface {
	Start()
	Stop()
	Play()
	Pause()
	Snapshot() application.Snapshot
}

// Server exposes the session controls over HTTP: the buttons of the voice
// chat page, plus status, health and metrics.
type Server struct {
	addr        string
	server      *http.Server
	controller  Controller
	logger      *slog.Logger
	mu          sync.Mutex
	running     bool
	mux         *http.ServeMux
	rateLimiter *RateLimiter
	authToken   string
}

func NewServer(addr string, authToken string, controller Controller, metrics http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		addr:        addr,
		controller:  controller,
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(30, time.Minute), // 30 requests per minute per IP
		authToken:   authToken,
	}
	s.mux.HandleFunc("POST /start", s.command(controller.Start, "start"))
	s.mux.HandleFunc("POST /stop", s.command(controller.Stop, "stop"))
	s.mux.HandleFunc("POST /play", s.command(controller.Play, "play"))
	s.mux.HandleFunc("POST /pause", s.command(controller.Pause, "pause"))
	s.mux.HandleFunc("GET /status", s.authorized(s.handleStatus))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics)
	}
	return s
}

// Run serves until ctx is done, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	server := s.server
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control server starting", "addr", s.addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.markStopped()
		if ok {
			return fmt.Errorf("control server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	defer s.markStopped()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("graceful shutdown failed, forcing close", "error", err)
		if err := s.server.Close(); err != nil {
			return fmt.Errorf("closing server: %w", err)
		}
	}
	return nil
}

func (s *Server) markStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) command(action func(), name string) http.HandlerFunc {
	return s.rateLimiter.Middleware(s.authorized(func(w http.ResponseWriter, r *http.Request) {
		action()
		s.logger.Info("control command", "command", name, "remote_addr", r.RemoteAddr)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"command":  name,
			"accepted": true,
		})
	}))
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			token := r.Header.Get("X-Auth-Token")
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token != s.authToken {
				s.logger.Warn("unauthorized control request", "remote_addr", r.RemoteAddr)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

type statusResponse struct {
	SessionID    string  `json:"session_id,omitempty"`
	Status       string  `json:"status"`
	Error        string  `json:"error,omitempty"`
	HasReply     bool    `json:"has_reply"`
	Playing      bool    `json:"playing"`
	Position     float64 `json:"position_seconds"`
	Duration     float64 `json:"duration_seconds"`
	AutoRelisten bool    `json:"auto_relisten"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.controller.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		SessionID:    snap.SessionID,
		Status:       string(snap.Status),
		Error:        snap.Error,
		HasReply:     snap.HasReply,
		Playing:      snap.Playing,
		Position:     snap.Position.Seconds(),
		Duration:     snap.Duration.Seconds(),
		AutoRelisten: snap.AutoRelisten,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	status := "ok"
	statusCode := http.StatusOK
	if !running {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]any{
		"status":  status,
		"running": running,
		"session": string(s.controller.Snapshot().Status),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
