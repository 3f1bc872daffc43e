// Package tts defines the speech synthesis backend contract and the
// priority-ordered registry that selects between backend implementations.
package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgnsrekt/vocalize-go/internal/audio"
)

var (
	// ErrUnknownBackend is returned when a backend name is not registered.
	ErrUnknownBackend = errors.New("unknown TTS backend")
	// ErrBackendExists is returned when registering a duplicate backend name.
	ErrBackendExists = errors.New("TTS backend already registered")
	// ErrNoBackendAvailable is returned when no registered backend is usable.
	ErrNoBackendAvailable = errors.New("no TTS backend available")
	// ErrBackendUnavailable is returned when a backend cannot serve a request.
	ErrBackendUnavailable = errors.New("TTS backend unavailable")
	// ErrInvalidInput is returned for empty or over-length input text.
	ErrInvalidInput = errors.New("invalid input text")
)

// Capabilities describes what a backend can do.
type Capabilities struct {
	// SupportedFormats lists audio formats the backend can produce.
	SupportedFormats []string
	// Streaming reports whether the backend can stream audio generation.
	Streaming bool
	// Local reports whether synthesis runs on this host (no network).
	Local bool
	// MaxTextLength is the maximum text length per request in characters.
	MaxTextLength int
	// VoiceCloning reports whether the backend can clone voices.
	VoiceCloning bool
	// CostPerChar is the approximate synthesis cost per character in USD.
	CostPerChar float64
}

// Voice describes one selectable voice of a backend.
type Voice struct {
	ID       string
	Name     string
	Language string
	Gender   string
}

// SynthesizeRequest contains parameters for speech synthesis.
// It is immutable once issued.
type SynthesizeRequest struct {
	Text     string
	Voice    string
	Language string
	Style    string
	Rate     float64
}

// SynthesisResult is a finished audio buffer plus its metadata.
// The caller owns the buffer exclusively; backends must not retain it.
type SynthesisResult struct {
	Audio        []byte
	Format       string
	SampleRate   int
	Channels     int
	DurationMs   int64
	ProcessingMs int64
	CharCount    int
}

// Backend is the interface every speech synthesis implementation satisfies.
type Backend interface {
	// Name returns the backend identifier.
	Name() string
	// Capabilities describes the backend's abilities and limits.
	Capabilities() Capabilities
	// IsAvailable reports whether the backend can serve requests right now.
	// Probes must be cheap and side-effect-light: checking a credential or
	// the presence of an executable is fine, spawning a process is not.
	IsAvailable(ctx context.Context) bool
	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesisResult, error)
	// ListVoices returns the voices the backend offers.
	ListVoices(ctx context.Context) ([]Voice, error)
}

// fillDuration decodes a compressed result buffer to recover duration and
// sample format metadata the remote API does not report.
func fillDuration(res *SynthesisResult) {
	if res.DurationMs > 0 {
		return
	}
	pcm, err := audio.Decode(res.Audio, res.Format)
	if err != nil {
		return
	}
	res.DurationMs = pcm.DurationMs()
	res.SampleRate = pcm.SampleRate
	res.Channels = pcm.Channels
}

// ValidateText rejects empty and over-length text with ErrInvalidInput.
// A maxLen of zero or less means unbounded.
func ValidateText(text string, maxLen int) error {
	if text == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidInput)
	}
	if maxLen > 0 && len([]rune(text)) > maxLen {
		return fmt.Errorf("%w: text exceeds %d characters", ErrInvalidInput, maxLen)
	}
	return nil
}
