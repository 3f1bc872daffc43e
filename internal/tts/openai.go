package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig holds configuration for the OpenAI speech backend.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Empty means the backend is unavailable.
	APIKey string
	// Model is the speech model name (default tts-1).
	Model string
	// DefaultVoice is the voice used when the request does not set one.
	DefaultVoice string
}

// OpenAIBackend implements Backend using the OpenAI speech endpoint.
type OpenAIBackend struct {
	config OpenAIConfig
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAIBackend creates a new OpenAI backend. The client performs no I/O
// until the first request.
func NewOpenAIBackend(cfg OpenAIConfig, logger *slog.Logger) *OpenAIBackend {
	if cfg.Model == "" {
		cfg.Model = string(openai.TTSModel1)
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = string(openai.VoiceAlloy)
	}

	return &OpenAIBackend{
		config: cfg,
		client: openai.NewClient(cfg.APIKey),
		logger: logger,
	}
}

// Name returns the backend identifier.
func (o *OpenAIBackend) Name() string {
	return "openai"
}

// Capabilities describes the OpenAI backend.
func (o *OpenAIBackend) Capabilities() Capabilities {
	return Capabilities{
		SupportedFormats: []string{"mp3", "wav"},
		Streaming:        false,
		Local:            false,
		MaxTextLength:    4096,
		VoiceCloning:     false,
		CostPerChar:      0.000015,
	}
}

// IsAvailable reports whether an API key is configured.
func (o *OpenAIBackend) IsAvailable(ctx context.Context) bool {
	return o.config.APIKey != ""
}

// ListVoices returns the fixed set of OpenAI speech voices.
func (o *OpenAIBackend) ListVoices(ctx context.Context) ([]Voice, error) {
	return []Voice{
		{ID: string(openai.VoiceAlloy), Name: "Alloy", Language: "en-US", Gender: "neutral"},
		{ID: string(openai.VoiceEcho), Name: "Echo", Language: "en-US", Gender: "male"},
		{ID: string(openai.VoiceFable), Name: "Fable", Language: "en-US", Gender: "neutral"},
		{ID: string(openai.VoiceOnyx), Name: "Onyx", Language: "en-US", Gender: "male"},
		{ID: string(openai.VoiceNova), Name: "Nova", Language: "en-US", Gender: "female"},
		{ID: string(openai.VoiceShimmer), Name: "Shimmer", Language: "en-US", Gender: "female"},
	}, nil
}

// Synthesize converts text to MP3 audio via the OpenAI speech endpoint.
func (o *OpenAIBackend) Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesisResult, error) {
	if err := ValidateText(req.Text, o.Capabilities().MaxTextLength); err != nil {
		return nil, err
	}
	if o.config.APIKey == "" {
		return nil, fmt.Errorf("%w: no OpenAI API key configured", ErrBackendUnavailable)
	}

	voice := req.Voice
	if voice == "" || voice == "default" {
		voice = o.config.DefaultVoice
	}

	speed := req.Rate
	if speed <= 0 {
		speed = 1.0
	}

	o.logger.Debug("requesting OpenAI speech",
		"model", o.config.Model,
		"voice", voice,
		"speed", speed,
		"text_length", len(req.Text),
	)

	start := time.Now()

	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.config.Model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrSynthesisFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	o.logger.Debug("OpenAI synthesis complete", "output_bytes", len(data))

	result := &SynthesisResult{
		Audio:        data,
		Format:       "mp3",
		ProcessingMs: time.Since(start).Milliseconds(),
		CharCount:    len([]rune(req.Text)),
	}
	fillDuration(result)
	return result, nil
}
