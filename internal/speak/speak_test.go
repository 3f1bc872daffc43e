package speak

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dgnsrekt/vocalize-go/internal/tts"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubBackend struct {
	name      string
	available bool
	synthErr  error
	lastReq   tts.SynthesizeRequest
	calls     int
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Capabilities() tts.Capabilities {
	return tts.Capabilities{SupportedFormats: []string{"wav"}, MaxTextLength: 1000}
}

func (b *stubBackend) IsAvailable(ctx context.Context) bool { return b.available }

func (b *stubBackend) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (*tts.SynthesisResult, error) {
	b.calls++
	b.lastReq = req
	if b.synthErr != nil {
		return nil, b.synthErr
	}
	return &tts.SynthesisResult{
		Audio:      []byte("fake audio"),
		Format:     "wav",
		DurationMs: 42,
		CharCount:  len(req.Text),
	}, nil
}

func (b *stubBackend) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{{ID: "v1", Name: "Voice One"}}, nil
}

type recordingPlayer struct {
	data   []byte
	format string
	err    error
	calls  int
}

func (p *recordingPlayer) Play(ctx context.Context, data []byte, format string) error {
	p.calls++
	p.data = data
	p.format = format
	return p.err
}

func newTestSpeaker(t *testing.T, opts Options, player Player, backends ...*stubBackend) *Speaker {
	t.Helper()
	registry := tts.NewRegistry(discardLogger())
	for i, b := range backends {
		backend := b
		err := registry.Register(tts.Registration{
			Name:     backend.name,
			Priority: 100 - i*10,
			New:      func() (tts.Backend, error) { return backend, nil },
		})
		if err != nil {
			t.Fatalf("registering %s: %v", backend.name, err)
		}
	}
	return NewSpeaker(registry, player, opts, discardLogger())
}

func TestSpeakSynthesizesAndPlays(t *testing.T) {
	backend := &stubBackend{name: "stub", available: true}
	player := &recordingPlayer{}
	speaker := newTestSpeaker(t, Options{}, player, backend)

	result, err := speaker.Speak(context.Background(), Request{Text: "hello"})
	if err != nil {
		t.Fatalf("Speak error = %v", err)
	}

	if result.Backend != "stub" {
		t.Errorf("Backend = %s, want stub", result.Backend)
	}
	if result.DurationMs != 42 {
		t.Errorf("DurationMs = %d, want 42", result.DurationMs)
	}
	if player.calls != 1 {
		t.Fatalf("player ran %d times, want 1", player.calls)
	}
	if string(player.data) != "fake audio" || player.format != "wav" {
		t.Errorf("player got (%q, %s), want (fake audio, wav)", player.data, player.format)
	}
}

func TestSpeakEmptyTextNeverTouchesBackend(t *testing.T) {
	backend := &stubBackend{name: "stub", available: true}
	player := &recordingPlayer{}
	speaker := newTestSpeaker(t, Options{}, player, backend)

	_, err := speaker.Speak(context.Background(), Request{Text: ""})
	if !errors.Is(err, tts.ErrInvalidInput) {
		t.Fatalf("Speak error = %v, want ErrInvalidInput", err)
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times for empty text, want 0", backend.calls)
	}
	if player.calls != 0 {
		t.Errorf("player called %d times for empty text, want 0", player.calls)
	}
}

func TestSpeakEnforcesMaxTextLength(t *testing.T) {
	backend := &stubBackend{name: "stub", available: true}
	speaker := newTestSpeaker(t, Options{MaxTextLength: 3}, &recordingPlayer{}, backend)

	_, err := speaker.Speak(context.Background(), Request{Text: "too long"})
	if !errors.Is(err, tts.ErrInvalidInput) {
		t.Errorf("Speak error = %v, want ErrInvalidInput", err)
	}
}

func TestSpeakFallsBackAcrossBackends(t *testing.T) {
	down := &stubBackend{name: "down", available: false}
	up := &stubBackend{name: "up", available: true}
	speaker := newTestSpeaker(t, Options{}, &recordingPlayer{}, down, up)

	result, err := speaker.Speak(context.Background(), Request{Text: "hello"})
	if err != nil {
		t.Fatalf("Speak error = %v", err)
	}
	if result.Backend != "up" {
		t.Errorf("Backend = %s, want up", result.Backend)
	}
	if down.calls != 0 {
		t.Errorf("unavailable backend was called %d times", down.calls)
	}
}

func TestSpeakRequestBackendOverride(t *testing.T) {
	primary := &stubBackend{name: "primary", available: true}
	secondary := &stubBackend{name: "secondary", available: true}
	speaker := newTestSpeaker(t, Options{}, &recordingPlayer{}, primary, secondary)

	result, err := speaker.Speak(context.Background(), Request{Text: "hi", Backend: "secondary"})
	if err != nil {
		t.Fatalf("Speak error = %v", err)
	}
	if result.Backend != "secondary" {
		t.Errorf("Backend = %s, want secondary", result.Backend)
	}
}

func TestSpeakAppliesDefaultVoice(t *testing.T) {
	backend := &stubBackend{name: "stub", available: true}
	speaker := newTestSpeaker(t, Options{DefaultVoice: "aria"}, &recordingPlayer{}, backend)

	if _, err := speaker.Speak(context.Background(), Request{Text: "hi"}); err != nil {
		t.Fatalf("Speak error = %v", err)
	}
	if backend.lastReq.Voice != "aria" {
		t.Errorf("backend voice = %q, want aria", backend.lastReq.Voice)
	}

	if _, err := speaker.Speak(context.Background(), Request{Text: "hi", Voice: "guy"}); err != nil {
		t.Fatalf("Speak error = %v", err)
	}
	if backend.lastReq.Voice != "guy" {
		t.Errorf("backend voice = %q, want explicit guy", backend.lastReq.Voice)
	}
}

func TestSpeakNoBackendAvailable(t *testing.T) {
	down := &stubBackend{name: "down", available: false}
	speaker := newTestSpeaker(t, Options{}, &recordingPlayer{}, down)

	_, err := speaker.Speak(context.Background(), Request{Text: "hello"})
	if !errors.Is(err, tts.ErrNoBackendAvailable) {
		t.Errorf("Speak error = %v, want ErrNoBackendAvailable", err)
	}
}

func TestSpeakSynthesisFailure(t *testing.T) {
	backend := &stubBackend{name: "stub", available: true, synthErr: tts.ErrSynthesisFailed}
	player := &recordingPlayer{}
	speaker := newTestSpeaker(t, Options{}, player, backend)

	_, err := speaker.Speak(context.Background(), Request{Text: "hello"})
	if !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Errorf("Speak error = %v, want ErrSynthesisFailed", err)
	}
	if player.calls != 0 {
		t.Errorf("player called %d times after failed synthesis", player.calls)
	}
}

func TestSpeakPlaybackFailure(t *testing.T) {
	backend := &stubBackend{name: "stub", available: true}
	player := &recordingPlayer{err: errors.New("device gone")}
	speaker := newTestSpeaker(t, Options{}, player, backend)

	if _, err := speaker.Speak(context.Background(), Request{Text: "hello"}); err == nil {
		t.Error("Speak error = nil, want playback error")
	}
}

func TestSynthesizeSkipsPlayback(t *testing.T) {
	backend := &stubBackend{name: "stub", available: true}
	player := &recordingPlayer{}
	speaker := newTestSpeaker(t, Options{}, player, backend)

	res, name, err := speaker.Synthesize(context.Background(), Request{Text: "hello"})
	if err != nil {
		t.Fatalf("Synthesize error = %v", err)
	}
	if name != "stub" {
		t.Errorf("backend = %s, want stub", name)
	}
	if string(res.Audio) != "fake audio" {
		t.Errorf("Audio = %q, want fake audio", res.Audio)
	}
	if player.calls != 0 {
		t.Errorf("player called %d times by Synthesize", player.calls)
	}
}

func TestVoices(t *testing.T) {
	backend := &stubBackend{name: "stub", available: true}
	speaker := newTestSpeaker(t, Options{}, &recordingPlayer{}, backend)

	name, voices, err := speaker.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices error = %v", err)
	}
	if name != "stub" || len(voices) != 1 || voices[0].ID != "v1" {
		t.Errorf("Voices = (%s, %+v), want stub with v1", name, voices)
	}
}

func TestBackendsStatuses(t *testing.T) {
	up := &stubBackend{name: "up", available: true}
	down := &stubBackend{name: "down", available: false}
	speaker := newTestSpeaker(t, Options{}, &recordingPlayer{}, up, down)

	statuses := speaker.Backends(context.Background())
	if len(statuses) != 2 {
		t.Fatalf("Backends returned %d entries, want 2", len(statuses))
	}
	// Registration order gives "up" the higher priority.
	if statuses[0].Name != "up" || !statuses[0].Available {
		t.Errorf("statuses[0] = %+v, want available up", statuses[0])
	}
	if statuses[1].Name != "down" || statuses[1].Available {
		t.Errorf("statuses[1] = %+v, want unavailable down", statuses[1])
	}
}
