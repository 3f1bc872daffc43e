package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgnsrekt/vocalize-go/internal/config"
	"github.com/dgnsrekt/vocalize-go/internal/speak"
)

// Server handles HTTP API requests.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	speaker *speak.Speaker
}

// New creates a new API server.
func New(cfg *config.Config, logger *slog.Logger, speaker *speak.Speaker) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		speaker: speaker,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/voices", s.withAuth(s.handleVoices))
	mux.HandleFunc("GET /v1/backends", s.withAuth(s.handleBackends))
	mux.HandleFunc("POST /v1/speak", s.withAuth(s.handleSpeak))

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// Speak responses wait for playback to finish, which can take a
		// while for long utterances.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
