// Package speak orchestrates a full utterance: resolve a backend, synthesize
// the text, and hand the finished buffer to playback.
package speak

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgnsrekt/vocalize-go/internal/tts"
)

// Player renders one finished audio buffer. Satisfied by the playback
// coordinator.
type Player interface {
	Play(ctx context.Context, data []byte, format string) error
}

// Options configures a Speaker.
type Options struct {
	// PreferredBackend is tried first; empty means pure priority order.
	PreferredBackend string
	// DefaultVoice is used when a request does not name a voice.
	DefaultVoice string
	// MaxTextLength caps request text on top of per-backend limits.
	// Zero means only backend limits apply.
	MaxTextLength int
}

// Request is one utterance.
type Request struct {
	Text     string
	Voice    string
	Language string
	Rate     float64
	// Backend overrides the configured preference for this request.
	Backend string
}

// Result reports what was synthesized and by whom.
type Result struct {
	Backend      string
	Format       string
	DurationMs   int64
	ProcessingMs int64
	CharCount    int
}

// Speaker turns text into audible speech.
type Speaker struct {
	registry *tts.Registry
	player   Player
	opts     Options
	logger   *slog.Logger
}

// NewSpeaker creates a speaker over the given backend registry and player.
func NewSpeaker(registry *tts.Registry, player Player, opts Options, logger *slog.Logger) *Speaker {
	return &Speaker{
		registry: registry,
		player:   player,
		opts:     opts,
		logger:   logger,
	}
}

// Speak synthesizes the text and plays it, returning when playback finishes
// or is preempted by a newer request.
func (s *Speaker) Speak(ctx context.Context, req Request) (*Result, error) {
	result, audio, err := s.synthesize(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.player.Play(ctx, audio, result.Format); err != nil {
		return nil, fmt.Errorf("playing synthesized audio: %w", err)
	}

	s.logger.Info("utterance complete",
		"backend", result.Backend,
		"chars", result.CharCount,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

// Synthesize produces the audio buffer without playing it.
func (s *Speaker) Synthesize(ctx context.Context, req Request) (*tts.SynthesisResult, string, error) {
	result, audio, err := s.synthesize(ctx, req)
	if err != nil {
		return nil, "", err
	}
	return &tts.SynthesisResult{
		Audio:        audio,
		Format:       result.Format,
		DurationMs:   result.DurationMs,
		ProcessingMs: result.ProcessingMs,
		CharCount:    result.CharCount,
	}, result.Backend, nil
}

func (s *Speaker) synthesize(ctx context.Context, req Request) (*Result, []byte, error) {
	// Validate before touching any backend so bad input never spawns a
	// worker or burns an API call.
	if err := tts.ValidateText(req.Text, s.opts.MaxTextLength); err != nil {
		return nil, nil, err
	}

	preferred := req.Backend
	if preferred == "" {
		preferred = s.opts.PreferredBackend
	}

	backend, err := s.registry.WithFallback(ctx, preferred)
	if err != nil {
		return nil, nil, err
	}

	voice := req.Voice
	if voice == "" {
		voice = s.opts.DefaultVoice
	}

	s.logger.Debug("synthesizing",
		"backend", backend.Name(),
		"voice", voice,
		"text_length", len(req.Text),
	)

	res, err := backend.Synthesize(ctx, tts.SynthesizeRequest{
		Text:     req.Text,
		Voice:    voice,
		Language: req.Language,
		Rate:     req.Rate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("backend %s: %w", backend.Name(), err)
	}

	return &Result{
		Backend:      backend.Name(),
		Format:       res.Format,
		DurationMs:   res.DurationMs,
		ProcessingMs: res.ProcessingMs,
		CharCount:    res.CharCount,
	}, res.Audio, nil
}

// Voices lists the voices of the backend that would serve a request now.
func (s *Speaker) Voices(ctx context.Context) (string, []tts.Voice, error) {
	backend, err := s.registry.WithFallback(ctx, s.opts.PreferredBackend)
	if err != nil {
		return "", nil, err
	}
	voices, err := backend.ListVoices(ctx)
	if err != nil {
		return "", nil, err
	}
	return backend.Name(), voices, nil
}

// Backends reports every registered backend with its current availability.
func (s *Speaker) Backends(ctx context.Context) []BackendStatus {
	var statuses []BackendStatus
	for _, name := range s.registry.List() {
		status := BackendStatus{Name: name}
		backend, err := s.registry.Create(name)
		if err == nil {
			status.Available = backend.IsAvailable(ctx)
			caps := backend.Capabilities()
			status.Local = caps.Local
			status.VoiceCloning = caps.VoiceCloning
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// BackendStatus is one registry entry with its probe result.
type BackendStatus struct {
	Name         string `json:"name"`
	Available    bool   `json:"available"`
	Local        bool   `json:"local"`
	VoiceCloning bool   `json:"voice_cloning"`
}
