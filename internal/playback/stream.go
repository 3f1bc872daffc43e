package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/vocalize-go/internal/audio"
)

// ErrStreamUnavailable is returned when the streaming path cannot serve a
// buffer (no device, or a sample format the pinned context cannot play).
var ErrStreamUnavailable = errors.New("streaming playback unavailable")

// prebuffer is how much audio is queued in the device before playback
// starts, so the first fraction of a second is not clipped.
const prebuffer = 100 * time.Millisecond

// streamManager owns the process-wide audio output context. The underlying
// device context can be created only once per process and is pinned to the
// sample format of the first buffer played; later buffers with a different
// format make the streaming path unavailable for them.
type streamManager struct {
	mu         sync.Mutex
	otoCtx     *oto.Context
	sampleRate int
	channels   int
	active     *oto.Player
	logger     *slog.Logger
}

func newStreamManager(logger *slog.Logger) *streamManager {
	return &streamManager{logger: logger}
}

// play renders decoded PCM through the output device: preempt any still
// active in-process stream, prebuffer, play, drain, close.
func (s *streamManager) play(ctx context.Context, pcm *audio.PCM) error {
	player, err := s.start(ctx, pcm)
	if err != nil {
		return err
	}

	// Drain outside the manager lock so a newer request can preempt us by
	// closing the player.
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			s.finish(player)
			return ctx.Err()
		}
	}

	s.finish(player)
	return nil
}

// start sets up the device context if needed, preempts the previous stream,
// and begins playback of the new buffer.
func (s *streamManager) start(ctx context.Context, pcm *audio.PCM) (*oto.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.otoCtx == nil {
		if err := s.initLocked(ctx, pcm.SampleRate, pcm.Channels); err != nil {
			return nil, err
		}
	}
	if pcm.SampleRate != s.sampleRate || pcm.Channels != s.channels {
		return nil, fmt.Errorf("%w: device pinned to %d Hz/%d ch, buffer is %d Hz/%d ch",
			ErrStreamUnavailable, s.sampleRate, s.channels, pcm.SampleRate, pcm.Channels)
	}

	// Most recent wins: stop whatever this process is still playing.
	if s.active != nil {
		s.active.Close()
		s.active = nil
	}

	player := s.otoCtx.NewPlayer(bytes.NewReader(pcm.Data))
	bytesPerSecond := pcm.SampleRate * pcm.Channels * 2
	player.SetBufferSize(int(prebuffer.Seconds() * float64(bytesPerSecond)))
	player.Play()
	s.active = player

	s.logger.Debug("streaming playback started",
		"bytes", len(pcm.Data),
		"sample_rate", pcm.SampleRate,
		"channels", pcm.Channels,
	)
	return player, nil
}

// initLocked creates the process-wide device context pinned to the given
// format. Caller holds s.mu.
func (s *streamManager) initLocked(ctx context.Context, sampleRate, channels int) error {
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamUnavailable, err)
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.otoCtx = otoCtx
	s.sampleRate = sampleRate
	s.channels = channels
	s.logger.Info("audio output device opened",
		"sample_rate", sampleRate,
		"channels", channels,
	)
	return nil
}

// finish closes the player and clears the active slot if still ours.
func (s *streamManager) finish(player *oto.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	player.Close()
	if s.active == player {
		s.active = nil
	}
}
