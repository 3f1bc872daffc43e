// Package playback renders finished audio buffers to the host's speakers,
// arbitrating between a low-latency streaming path and a temp-file/subprocess
// legacy path while enforcing host-wide exclusive playback.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// DefaultStaleness is the age past which a lock artifact is treated as
// abandoned by a crashed owner.
const DefaultStaleness = 60 * time.Second

// playerProcessNames are the process names whose audio we stop when
// preempting a fresh lock held by another process.
var playerProcessNames = []string{"afplay", "paplay", "aplay", "ffplay", "mpv"}

// lockInfo is the decoded content of a lock artifact.
type lockInfo struct {
	pid        int
	acquiredAt time.Time
}

// Lock is the host-wide playback lock. The artifact is a file whose content
// is "<owner-pid>\n<acquired-at-epoch-ms>"; absence means unlocked. At most
// one valid, non-stale artifact exists at any instant across all cooperating
// processes.
type Lock struct {
	path      string
	staleness time.Duration
	logger    *slog.Logger
}

// NewLock creates a lock over the given artifact path. A zero staleness
// selects the default.
func NewLock(path string, staleness time.Duration, logger *slog.Logger) *Lock {
	if path == "" {
		path = filepath.Join(os.TempDir(), "vocalize-playback.lock")
	}
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	return &Lock{path: path, staleness: staleness, logger: logger}
}

// Path returns the artifact path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock, preempting any current owner. A fresh artifact
// means another process's audio is genuinely playing, so its players are
// stopped first; a stale artifact is an abandoned leftover and is replaced
// silently. Newest caller always wins; nothing queues.
func (l *Lock) Acquire(ctx context.Context) error {
	info, err := l.read()
	switch {
	case err == nil:
		age := time.Since(info.acquiredAt)
		if age < l.staleness {
			l.logger.Info("preempting active playback",
				"owner_pid", info.pid,
				"lock_age", age.Round(time.Millisecond),
			)
			l.stopPlayers(ctx, info.pid)
		} else {
			l.logger.Debug("replacing stale playback lock",
				"owner_pid", info.pid,
				"lock_age", age.Round(time.Second),
			)
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing previous lock: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Unlocked.
	default:
		// Unreadable artifact: treat as abandoned and replace it.
		l.logger.Warn("replacing unreadable playback lock", "path", l.path, "error", err)
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing corrupt lock: %w", err)
		}
	}

	return l.write()
}

// Owned reports whether the artifact currently names this process as the
// owner. A missing, rewritten, or unreadable artifact means ownership is lost.
func (l *Lock) Owned() bool {
	info, err := l.read()
	return err == nil && info.pid == os.Getpid()
}

// Release removes the artifact if this process still owns it. Releasing a
// lock another process has since preempted is a no-op.
func (l *Lock) Release() {
	info, err := l.read()
	if err != nil {
		return
	}
	if info.pid != os.Getpid() {
		l.logger.Debug("lock no longer owned, leaving in place", "owner_pid", info.pid)
		return
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.logger.Warn("releasing playback lock failed", "error", err)
	}
}

// read decodes the artifact. os.ErrNotExist means unlocked.
func (l *Lock) read() (lockInfo, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return lockInfo{}, err
	}

	parts := strings.SplitN(strings.TrimSpace(string(data)), "\n", 2)
	if len(parts) != 2 {
		return lockInfo{}, fmt.Errorf("malformed lock content %q", data)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return lockInfo{}, fmt.Errorf("malformed lock pid: %w", err)
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return lockInfo{}, fmt.Errorf("malformed lock timestamp: %w", err)
	}

	return lockInfo{pid: pid, acquiredAt: time.UnixMilli(ms)}, nil
}

// write creates the artifact stamped with this process. The content lands
// via temp file + rename so no observer ever sees a torn, valid-looking lock.
func (l *Lock) write() error {
	content := fmt.Sprintf("%d\n%d", os.Getpid(), time.Now().UnixMilli())

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".vocalize-lock-*")
	if err != nil {
		return fmt.Errorf("creating lock temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing lock temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing lock temp file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing lock: %w", err)
	}
	return nil
}

// stopPlayers terminates known audio player processes so the previous
// owner's playback stops before ours begins. Best effort: scan failures are
// logged, never fatal, and this process's own players are left alone.
func (l *Lock) stopPlayers(ctx context.Context, ownerPid int) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		l.logger.Warn("scanning for player processes failed", "error", err)
		return
	}

	self := int32(os.Getpid())
	for _, p := range procs {
		if p.Pid == self {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if !isPlayerName(name) {
			continue
		}
		if err := p.TerminateWithContext(ctx); err != nil {
			l.logger.Debug("terminating player failed", "pid", p.Pid, "name", name, "error", err)
			continue
		}
		l.logger.Info("stopped player process", "pid", p.Pid, "name", name, "owner_pid", ownerPid)
	}
}

func isPlayerName(name string) bool {
	for _, candidate := range playerProcessNames {
		if name == candidate {
			return true
		}
	}
	return false
}
