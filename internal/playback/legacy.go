package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrNoPlayerAvailable is returned when every configured player invocation
// failed for a legacy playback.
var ErrNoPlayerAvailable = errors.New("no audio player available")

// PlayerCommand is one external player invocation. The temp file path is
// appended as the final argument.
type PlayerCommand struct {
	Name string
	Args []string
}

// defaultPlayers is the prioritized list of external players tried by the
// legacy path, covering macOS, PulseAudio, ALSA, and ffmpeg/mpv installs.
func defaultPlayers() []PlayerCommand {
	return []PlayerCommand{
		{Name: "afplay"},
		{Name: "paplay"},
		{Name: "aplay", Args: []string{"-q"}},
		{Name: "ffplay", Args: []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}},
		{Name: "mpv", Args: []string{"--no-video", "--really-quiet"}},
	}
}

// legacyPlayer plays buffers by writing them to a temp file and handing the
// file to an external player subprocess, under the host-wide lock.
type legacyPlayer struct {
	lock    *Lock
	players []PlayerCommand
	tempDir string
	logger  *slog.Logger
}

func newLegacyPlayer(lock *Lock, players []PlayerCommand, logger *slog.Logger) *legacyPlayer {
	if len(players) == 0 {
		players = defaultPlayers()
	}
	return &legacyPlayer{
		lock:    lock,
		players: players,
		tempDir: os.TempDir(),
		logger:  logger,
	}
}

// play renders one buffer through the first player that succeeds. The lock
// and the temp file are released on every exit path.
func (l *legacyPlayer) play(ctx context.Context, data []byte, ext string) error {
	if err := l.lock.Acquire(ctx); err != nil {
		return fmt.Errorf("acquiring playback lock: %w", err)
	}
	defer l.lock.Release()

	path := filepath.Join(l.tempDir, fmt.Sprintf("vocalize-%s.%s", uuid.NewString(), ext))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing playback temp file: %w", err)
	}
	defer os.Remove(path)

	var lastErr error
	for _, player := range l.players {
		if _, err := exec.LookPath(player.Name); err != nil {
			continue
		}

		args := append(append([]string{}, player.Args...), path)
		l.logger.Debug("invoking player", "player", player.Name, "file", path)

		cmd := exec.CommandContext(ctx, player.Name, args...)
		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A signal-killed player or a lock that now names another pid
			// means a newer playback preempted this one. The newest caller
			// owns the speakers; falling through to the next player would
			// restart the interrupted audio on top of it.
			if signaled(cmd) || !l.lock.Owned() {
				l.logger.Info("playback preempted, stopping", "player", player.Name)
				return nil
			}
			l.logger.Debug("player failed, trying next", "player", player.Name, "error", err)
			lastErr = err
			continue
		}

		l.logger.Debug("playback complete", "player", player.Name)
		return nil
	}

	if lastErr != nil {
		return fmt.Errorf("%w: last player error: %v", ErrNoPlayerAvailable, lastErr)
	}
	return ErrNoPlayerAvailable
}

// signaled reports whether the player was killed by a signal rather than
// exiting on its own.
func signaled(cmd *exec.Cmd) bool {
	return cmd.ProcessState != nil && cmd.ProcessState.ExitCode() == -1
}
