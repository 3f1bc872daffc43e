package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/dgnsrekt/vocalize-go/internal/wav"
)

var (
	// ErrPiperNotFound is returned when the piper binary is not found.
	ErrPiperNotFound = errors.New("piper binary not found")
	// ErrNoModelSpecified is returned when no model is configured.
	ErrNoModelSpecified = errors.New("no piper model specified")
	// ErrSynthesisFailed is returned when TTS synthesis fails.
	ErrSynthesisFailed = errors.New("TTS synthesis failed")
)

// PiperConfig holds configuration for the Piper CLI backend.
type PiperConfig struct {
	// BinaryPath is the path to the piper executable.
	BinaryPath string
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// DefaultVoice is the default voice/speaker to use.
	DefaultVoice string
}

// PiperBackend implements Backend using the local Piper CLI.
type PiperBackend struct {
	config PiperConfig
	logger *slog.Logger
}

// NewPiperBackend creates a new Piper backend. The binary and model are only
// checked by IsAvailable, not here.
func NewPiperBackend(cfg PiperConfig, logger *slog.Logger) *PiperBackend {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "piper"
	}

	return &PiperBackend{
		config: cfg,
		logger: logger,
	}
}

// Name returns the backend identifier.
func (p *PiperBackend) Name() string {
	return "piper"
}

// Capabilities describes the Piper backend.
func (p *PiperBackend) Capabilities() Capabilities {
	return Capabilities{
		SupportedFormats: []string{"wav", "pcm"},
		Streaming:        false,
		Local:            true,
		MaxTextLength:    10000,
		VoiceCloning:     false,
		CostPerChar:      0,
	}
}

// IsAvailable checks that the piper binary and model file exist.
func (p *PiperBackend) IsAvailable(ctx context.Context) bool {
	if p.config.ModelPath == "" {
		return false
	}
	if _, err := exec.LookPath(p.config.BinaryPath); err != nil {
		return false
	}
	if _, err := os.Stat(p.config.ModelPath); err != nil {
		return false
	}
	return true
}

// ListVoices returns the model's voice. Piper voices are baked into the
// model file, so there is exactly one entry per configured model.
func (p *PiperBackend) ListVoices(ctx context.Context) ([]Voice, error) {
	voice := p.config.DefaultVoice
	if voice == "" {
		voice = "default"
	}
	return []Voice{
		{ID: voice, Name: voice, Language: "en-US", Gender: "neutral"},
	}, nil
}

// Synthesize converts text to audio using Piper.
func (p *PiperBackend) Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesisResult, error) {
	if err := ValidateText(req.Text, p.Capabilities().MaxTextLength); err != nil {
		return nil, err
	}
	if p.config.ModelPath == "" {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, ErrNoModelSpecified)
	}
	if _, err := exec.LookPath(p.config.BinaryPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, ErrPiperNotFound)
	}

	args := []string{
		"--model", p.config.ModelPath,
		"--output-raw",
	}

	// Add voice/speaker if specified
	voice := req.Voice
	if voice == "" || voice == "default" {
		voice = p.config.DefaultVoice
	}
	if voice != "" && voice != "default" {
		args = append(args, "--speaker", voice)
	}

	p.logger.Debug("running piper",
		"binary", p.config.BinaryPath,
		"model", p.config.ModelPath,
		"voice", voice,
		"text_length", len(req.Text),
	)

	start := time.Now()

	cmd := exec.CommandContext(ctx, p.config.BinaryPath, args...)
	cmd.Stdin = bytes.NewReader([]byte(req.Text))

	// Capture stdout (raw audio) and stderr (logs/errors)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Error("piper failed",
			"error", err,
			"stderr", stderr.String(),
		)
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	rawAudio := stdout.Bytes()
	if len(rawAudio) == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	p.logger.Debug("piper synthesis complete",
		"output_bytes", len(rawAudio),
	)

	// Piper outputs raw 16-bit PCM at 22050 Hz mono by default;
	// wrap it in a WAV header for consistency.
	wavData := wav.WrapRawPCM(rawAudio, wav.PiperSampleRate, wav.PiperChannels, wav.PiperBitsPerSample)

	bytesPerSecond := wav.PiperSampleRate * wav.PiperChannels * 2
	return &SynthesisResult{
		Audio:        wavData,
		Format:       "wav",
		SampleRate:   wav.PiperSampleRate,
		Channels:     wav.PiperChannels,
		DurationMs:   int64(len(rawAudio)) * 1000 / int64(bytesPerSecond),
		ProcessingMs: time.Since(start).Milliseconds(),
		CharCount:    len([]rune(req.Text)),
	}, nil
}
