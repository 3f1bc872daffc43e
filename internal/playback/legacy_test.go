package playback

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// fakePlayer writes an executable script and returns a PlayerCommand for it.
func fakePlayer(t *testing.T, dir, name, body string) PlayerCommand {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}

	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("writing fake player: %v", err)
	}
	return PlayerCommand{Name: path}
}

func testLegacy(t *testing.T, players ...PlayerCommand) *legacyPlayer {
	t.Helper()
	p := newLegacyPlayer(testLock(t), players, discardLogger())
	p.tempDir = t.TempDir()
	return p
}

func TestLegacyPlaysWithFirstWorkingPlayer(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "played")
	player := fakePlayer(t, dir, "player", `cp "$1" `+marker)

	legacy := testLegacy(t, player)
	data := []byte("RIFF fake wav")

	if err := legacy.play(context.Background(), data, "wav"); err != nil {
		t.Fatalf("play error = %v", err)
	}

	got, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("player never received the file: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("player saw %q, want %q", got, data)
	}
}

func TestLegacyTriesNextPlayerOnFailure(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "played")
	broken := fakePlayer(t, dir, "broken", "exit 1")
	missing := PlayerCommand{Name: "/nonexistent/player"}
	working := fakePlayer(t, dir, "working", `touch `+marker)

	legacy := testLegacy(t, broken, missing, working)

	if err := legacy.play(context.Background(), []byte("audio"), "wav"); err != nil {
		t.Fatalf("play error = %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("fallback player never ran: %v", err)
	}
}

func TestLegacyStopsAfterPlayerTerminated(t *testing.T) {
	// A preempting process stops the active player with SIGTERM, exactly as
	// Lock.Acquire does. The interrupted playback must not restart itself on
	// the next configured player.
	dir := t.TempDir()
	marker := filepath.Join(dir, "played")
	terminated := fakePlayer(t, dir, "terminated", `kill -TERM $$`)
	next := fakePlayer(t, dir, "next", `touch `+marker)

	legacy := testLegacy(t, terminated, next)

	if err := legacy.play(context.Background(), []byte("audio"), "wav"); err != nil {
		t.Fatalf("play error = %v", err)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("preempted playback restarted on the next player")
	}
}

func TestLegacyStopsAfterLockPreempted(t *testing.T) {
	// The player fails after another process has rewritten the lock. The new
	// owner holds the speakers, so no fallback player may run and the foreign
	// lock must be left in place.
	dir := t.TempDir()
	marker := filepath.Join(dir, "played")
	lock := testLock(t)

	usurper := fakePlayer(t, dir, "usurper",
		`printf '999999\n1' > `+lock.Path()+`
exit 1`)
	next := fakePlayer(t, dir, "next", `touch `+marker)

	legacy := newLegacyPlayer(lock, []PlayerCommand{usurper, next}, discardLogger())
	legacy.tempDir = t.TempDir()

	if err := legacy.play(context.Background(), []byte("audio"), "wav"); err != nil {
		t.Fatalf("play error = %v", err)
	}
	if _, err := os.Stat(marker); !os.IsNotExist(err) {
		t.Error("preempted playback restarted on the next player")
	}

	pid, _ := readArtifact(t, lock.Path())
	if pid != 999999 {
		t.Errorf("foreign lock pid = %d, want 999999 left untouched", pid)
	}
}

func TestLegacyNoPlayerAvailable(t *testing.T) {
	dir := t.TempDir()
	broken := fakePlayer(t, dir, "broken", "exit 1")

	legacy := testLegacy(t, broken, PlayerCommand{Name: "/nonexistent/player"})

	err := legacy.play(context.Background(), []byte("audio"), "wav")
	if !errors.Is(err, ErrNoPlayerAvailable) {
		t.Errorf("play error = %v, want ErrNoPlayerAvailable", err)
	}
}

func TestLegacyReleasesLockOnAllPaths(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		player PlayerCommand
	}{
		{name: "success", player: fakePlayer(t, dir, "ok", "exit 0")},
		{name: "player failure", player: fakePlayer(t, dir, "bad", "exit 1")},
		{name: "missing player", player: PlayerCommand{Name: "/nonexistent/player"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			legacy := testLegacy(t, tc.player)
			_ = legacy.play(context.Background(), []byte("audio"), "wav")

			if _, err := os.Stat(legacy.lock.Path()); !os.IsNotExist(err) {
				t.Errorf("lock artifact still present (stat err = %v)", err)
			}
		})
	}
}

func TestLegacyRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	player := fakePlayer(t, dir, "ok", "exit 0")

	legacy := testLegacy(t, player)
	if err := legacy.play(context.Background(), []byte("audio"), "wav"); err != nil {
		t.Fatalf("play error = %v", err)
	}

	entries, err := os.ReadDir(legacy.tempDir)
	if err != nil {
		t.Fatalf("reading temp dir: %v", err)
	}
	for _, entry := range entries {
		t.Errorf("temp file left behind: %s", entry.Name())
	}
}

func TestLegacyContextCancel(t *testing.T) {
	dir := t.TempDir()
	slow := fakePlayer(t, dir, "slow", "sleep 30")

	legacy := testLegacy(t, slow)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := legacy.play(ctx, []byte("audio"), "wav")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("play error = %v, want context.DeadlineExceeded", err)
	}
	if _, statErr := os.Stat(legacy.lock.Path()); !os.IsNotExist(statErr) {
		t.Errorf("lock artifact still present after cancel (stat err = %v)", statErr)
	}
}
