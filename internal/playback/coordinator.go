package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgnsrekt/vocalize-go/internal/audio"
	"github.com/dgnsrekt/vocalize-go/internal/wav"
)

// Mode selects the playback path.
type Mode string

const (
	// ModeAuto tries the streaming path and falls back to legacy.
	ModeAuto Mode = "auto"
	// ModeStream uses only the streaming path; its failures are terminal.
	ModeStream Mode = "stream"
	// ModeLegacy uses only the temp-file/subprocess path.
	ModeLegacy Mode = "legacy"
)

// ErrInvalidMode is returned for an unrecognized playback mode string.
var ErrInvalidMode = errors.New("invalid playback mode")

// ParseMode validates a mode string. Empty selects auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeStream, ModeLegacy:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Options configures a Coordinator.
type Options struct {
	// Mode selects the playback path. Empty means auto.
	Mode Mode
	// LockPath is the host-wide lock artifact. Empty selects the default.
	LockPath string
	// LockStaleness is the abandoned-lock threshold. Zero selects the default.
	LockStaleness time.Duration
	// Players overrides the legacy player list. Empty selects the defaults.
	Players []PlayerCommand
}

// Coordinator renders finished audio buffers to the host's speakers. It
// guarantees that at most one playback is audibly active host-wide and that
// a newer request preempts an older one instead of queuing behind it.
type Coordinator struct {
	mode   Mode
	stream *streamManager
	legacy *legacyPlayer
	logger *slog.Logger
}

// NewCoordinator creates a playback coordinator.
func NewCoordinator(opts Options, logger *slog.Logger) *Coordinator {
	mode := opts.Mode
	if mode == "" {
		mode = ModeAuto
	}
	lock := NewLock(opts.LockPath, opts.LockStaleness, logger)

	return &Coordinator{
		mode:   mode,
		stream: newStreamManager(logger),
		legacy: newLegacyPlayer(lock, opts.Players, logger),
		logger: logger,
	}
}

// Mode returns the configured playback mode.
func (c *Coordinator) Mode() Mode {
	return c.mode
}

// Play renders one encoded audio buffer and returns when playback finishes
// or is preempted.
func (c *Coordinator) Play(ctx context.Context, data []byte, format string) error {
	if len(data) == 0 {
		return errors.New("empty audio buffer")
	}

	switch c.mode {
	case ModeStream:
		return c.playStream(ctx, data, format)
	case ModeLegacy:
		return c.playLegacy(ctx, data, format)
	default:
		err := c.playStream(ctx, data, format)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		c.logger.Debug("streaming path failed, falling back to legacy", "error", err)
		return c.playLegacy(ctx, data, format)
	}
}

// playStream decodes the buffer to PCM and sends it through the device.
func (c *Coordinator) playStream(ctx context.Context, data []byte, format string) error {
	pcm, err := audio.Decode(data, format)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamUnavailable, err)
	}
	return c.stream.play(ctx, pcm)
}

// playLegacy hands the encoded buffer to an external player. Raw PCM has no
// container an external player can read, so it gets a WAV header first.
func (c *Coordinator) playLegacy(ctx context.Context, data []byte, format string) error {
	ext := format
	if ext == "" || ext == "pcm" {
		data = wav.WrapRawPCM(data, audio.DefaultSampleRate, audio.DefaultChannels, 16)
		ext = "wav"
	}
	return c.legacy.play(ctx, data, ext)
}
