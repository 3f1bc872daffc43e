package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/dgnsrekt/vocalize-go/internal/wav"
	"github.com/dgnsrekt/vocalize-go/internal/worker"
)

// WorkerBackend implements Backend on top of the persistent local worker
// process. The worker client owns the process lifecycle; this adapter only
// translates between the Backend contract and the wire methods.
type WorkerBackend struct {
	client *worker.Client
	path   string
	logger *slog.Logger
}

// NewWorkerBackend creates a worker-backed TTS backend. The worker process
// is spawned lazily on the first synthesis call, never during construction
// or probing.
func NewWorkerBackend(opts worker.Options, logger *slog.Logger) *WorkerBackend {
	return &WorkerBackend{
		client: worker.NewClient(opts, logger),
		path:   opts.Path,
		logger: logger,
	}
}

// Name returns the backend identifier.
func (w *WorkerBackend) Name() string {
	return "worker"
}

// Capabilities describes the worker backend.
func (w *WorkerBackend) Capabilities() Capabilities {
	return Capabilities{
		SupportedFormats: []string{"wav", "pcm"},
		Streaming:        false,
		Local:            true,
		MaxTextLength:    5000,
		VoiceCloning:     true,
		CostPerChar:      0,
	}
}

// IsAvailable checks that a worker executable is configured and present.
// It must not spawn the worker; loading a model is far too expensive for a
// probe.
func (w *WorkerBackend) IsAvailable(ctx context.Context) bool {
	if w.path == "" {
		return false
	}
	_, err := exec.LookPath(w.path)
	return err == nil
}

// ListVoices returns the voices the worker's model provides.
func (w *WorkerBackend) ListVoices(ctx context.Context) ([]Voice, error) {
	infos, err := w.client.ListVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	voices := make([]Voice, 0, len(infos))
	for _, info := range infos {
		voices = append(voices, Voice{
			ID:       info.ID,
			Name:     info.Name,
			Language: info.Language,
			Gender:   info.Gender,
		})
	}
	return voices, nil
}

// CloneVoice builds a new voice from sample recordings on disk.
func (w *WorkerBackend) CloneVoice(ctx context.Context, name string, samplePaths []string) (*Voice, error) {
	info, err := w.client.CloneVoice(ctx, name, samplePaths)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return &Voice{
		ID:       info.ID,
		Name:     info.Name,
		Language: info.Language,
		Gender:   info.Gender,
	}, nil
}

// Synthesize converts text to audio via the worker process.
func (w *WorkerBackend) Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesisResult, error) {
	if err := ValidateText(req.Text, w.Capabilities().MaxTextLength); err != nil {
		return nil, err
	}

	start := time.Now()

	reply, err := w.client.Synthesize(ctx, worker.SynthesizeParams{
		Text:     req.Text,
		Voice:    req.Voice,
		Language: req.Language,
		Rate:     req.Rate,
	})
	if err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(reply.Audio)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding worker audio: %v", ErrSynthesisFailed, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no audio output", ErrSynthesisFailed)
	}

	sampleRate := reply.SampleRate
	if sampleRate <= 0 {
		sampleRate = wav.PiperSampleRate
	}
	channels := reply.Channels
	if channels <= 0 {
		channels = 1
	}

	format := reply.Format
	if format == "" || format == "pcm" {
		// Headerless samples: wrap so every downstream consumer sees WAV.
		data = wav.WrapRawPCM(data, sampleRate, channels, 16)
		format = "wav"
	}

	durationMs := reply.DurationMs
	if durationMs <= 0 {
		bytesPerSecond := sampleRate * channels * 2
		durationMs = int64(len(data)-wav.HeaderSize) * 1000 / int64(bytesPerSecond)
	}

	w.logger.Debug("worker synthesis complete",
		"output_bytes", len(data),
		"duration_ms", durationMs,
	)

	return &SynthesisResult{
		Audio:        data,
		Format:       format,
		SampleRate:   sampleRate,
		Channels:     channels,
		DurationMs:   durationMs,
		ProcessingMs: time.Since(start).Milliseconds(),
		CharCount:    len([]rune(req.Text)),
	}, nil
}

// Close shuts the worker process down. Safe to call at any time.
func (w *WorkerBackend) Close(ctx context.Context) {
	w.client.Shutdown(ctx)
}
