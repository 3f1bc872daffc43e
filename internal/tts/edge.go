package tts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wujunwei928/edge-tts-go/edge_tts"
)

// EdgeConfig holds configuration for the Microsoft Edge TTS backend.
type EdgeConfig struct {
	// DefaultVoice is the neural voice used when the request does not set one.
	DefaultVoice string
	// Disabled turns the backend off without unregistering it.
	Disabled bool
}

// EdgeBackend implements Backend using the free Edge neural TTS service.
type EdgeBackend struct {
	config EdgeConfig
	logger *slog.Logger
}

// NewEdgeBackend creates a new Edge TTS backend.
func NewEdgeBackend(cfg EdgeConfig, logger *slog.Logger) *EdgeBackend {
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "en-US-AriaNeural"
	}

	return &EdgeBackend{
		config: cfg,
		logger: logger,
	}
}

// Name returns the backend identifier.
func (e *EdgeBackend) Name() string {
	return "edge"
}

// Capabilities describes the Edge backend.
func (e *EdgeBackend) Capabilities() Capabilities {
	return Capabilities{
		SupportedFormats: []string{"mp3"},
		Streaming:        false,
		Local:            false,
		MaxTextLength:    8192,
		VoiceCloning:     false,
		CostPerChar:      0,
	}
}

// IsAvailable reports whether the backend is enabled. The service needs no
// credential, so the probe does not touch the network.
func (e *EdgeBackend) IsAvailable(ctx context.Context) bool {
	return !e.config.Disabled
}

// ListVoices returns a useful subset of the Edge neural voices.
func (e *EdgeBackend) ListVoices(ctx context.Context) ([]Voice, error) {
	return []Voice{
		{ID: "en-US-AriaNeural", Name: "Aria", Language: "en-US", Gender: "female"},
		{ID: "en-US-GuyNeural", Name: "Guy", Language: "en-US", Gender: "male"},
		{ID: "en-GB-SoniaNeural", Name: "Sonia", Language: "en-GB", Gender: "female"},
		{ID: "de-DE-KatjaNeural", Name: "Katja", Language: "de-DE", Gender: "female"},
		{ID: "fr-FR-DeniseNeural", Name: "Denise", Language: "fr-FR", Gender: "female"},
		{ID: "ja-JP-NanamiNeural", Name: "Nanami", Language: "ja-JP", Gender: "female"},
	}, nil
}

// Synthesize converts text to MP3 audio via the Edge TTS service.
func (e *EdgeBackend) Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesisResult, error) {
	if err := ValidateText(req.Text, e.Capabilities().MaxTextLength); err != nil {
		return nil, err
	}
	if e.config.Disabled {
		return nil, fmt.Errorf("%w: edge backend disabled", ErrBackendUnavailable)
	}

	voice := req.Voice
	if voice == "" || voice == "default" {
		voice = e.config.DefaultVoice
	}

	e.logger.Debug("requesting Edge TTS",
		"voice", voice,
		"text_length", len(req.Text),
	)

	start := time.Now()

	communicate, err := edge_tts.NewCommunicate(req.Text, edge_tts.SetVoice(voice))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	data, err := communicate.Stream()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	e.logger.Debug("Edge synthesis complete", "output_bytes", len(data))

	result := &SynthesisResult{
		Audio:        data,
		Format:       "mp3",
		ProcessingMs: time.Since(start).Milliseconds(),
		CharCount:    len([]rune(req.Text)),
	}
	fillDuration(result)
	return result, nil
}
