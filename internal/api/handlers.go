package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgnsrekt/vocalize-go/internal/speak"
	"github.com/dgnsrekt/vocalize-go/internal/tts"
)

// SpeakRequest represents the request body for /v1/speak.
type SpeakRequest struct {
	Text     string  `json:"text"`
	Voice    string  `json:"voice,omitempty"`
	Language string  `json:"language,omitempty"`
	Rate     float64 `json:"rate,omitempty"`
	Backend  string  `json:"backend,omitempty"`
}

// SpeakResponse represents the response body for /v1/speak. It is written
// after playback completes (or is preempted by a newer request).
type SpeakResponse struct {
	Backend      string `json:"backend"`
	DurationMs   int64  `json:"duration_ms"`
	ProcessingMs int64  `json:"processing_ms"`
	CharCount    int    `json:"char_count"`
}

// VoicesResponse represents the response body for /v1/voices.
type VoicesResponse struct {
	Backend string      `json:"backend"`
	Voices  []tts.Voice `json:"voices"`
}

// BackendsResponse represents the response body for /v1/backends.
type BackendsResponse struct {
	Backends []speak.BackendStatus `json:"backends"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the response body for /v1/healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealthz handles GET /v1/healthz requests.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// handleSpeak handles POST /v1/speak requests. The call is synchronous:
// the response reports what was actually spoken.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req SpeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("failed to decode speak request", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Error: "invalid JSON body"})
		return
	}

	result, err := s.speaker.Speak(r.Context(), speak.Request{
		Text:     req.Text,
		Voice:    req.Voice,
		Language: req.Language,
		Rate:     req.Rate,
		Backend:  req.Backend,
	})
	if err != nil {
		s.writeSpeakError(w, err)
		return
	}

	s.logger.Info("speak request served",
		"backend", result.Backend,
		"text_length", len(req.Text),
		"duration_ms", result.DurationMs,
	)

	json.NewEncoder(w).Encode(SpeakResponse{
		Backend:      result.Backend,
		DurationMs:   result.DurationMs,
		ProcessingMs: result.ProcessingMs,
		CharCount:    result.CharCount,
	})
}

// handleVoices handles GET /v1/voices requests.
func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	backend, voices, err := s.speaker.Voices(r.Context())
	if err != nil {
		s.writeSpeakError(w, err)
		return
	}

	json.NewEncoder(w).Encode(VoicesResponse{Backend: backend, Voices: voices})
}

// handleBackends handles GET /v1/backends requests.
func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(BackendsResponse{
		Backends: s.speaker.Backends(r.Context()),
	})
}

// writeSpeakError maps pipeline errors to HTTP statuses.
func (s *Server) writeSpeakError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tts.ErrInvalidInput):
		w.WriteHeader(http.StatusBadRequest)
	case errors.Is(err, tts.ErrNoBackendAvailable), errors.Is(err, tts.ErrBackendUnavailable):
		w.WriteHeader(http.StatusServiceUnavailable)
	case errors.Is(err, tts.ErrUnknownBackend):
		w.WriteHeader(http.StatusNotFound)
	default:
		s.logger.Error("speak request failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}
