package tts

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockBackend is a configurable in-memory backend for registry tests.
type mockBackend struct {
	name      string
	available bool
	synthErr  error
	calls     int
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) Capabilities() Capabilities {
	return Capabilities{SupportedFormats: []string{"wav"}, MaxTextLength: 100}
}

func (m *mockBackend) IsAvailable(ctx context.Context) bool { return m.available }

func (m *mockBackend) Synthesize(ctx context.Context, req SynthesizeRequest) (*SynthesisResult, error) {
	m.calls++
	if m.synthErr != nil {
		return nil, m.synthErr
	}
	return &SynthesisResult{Audio: []byte{1}, Format: "wav"}, nil
}

func (m *mockBackend) ListVoices(ctx context.Context) ([]Voice, error) {
	return []Voice{{ID: "default", Name: "Default"}}, nil
}

func register(t *testing.T, r *Registry, name string, priority int, backend Backend) {
	t.Helper()
	err := r.Register(Registration{
		Name:     name,
		Priority: priority,
		New:      func() (Backend, error) { return backend, nil },
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", name, err)
	}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := NewRegistry(discardLogger())
	register(t, r, "mock", 10, &mockBackend{name: "mock"})

	err := r.Register(Registration{
		Name: "mock",
		New:  func() (Backend, error) { return &mockBackend{name: "mock"}, nil },
	})
	if !errors.Is(err, ErrBackendExists) {
		t.Errorf("duplicate Register error = %v, want ErrBackendExists", err)
	}
}

func TestRegistryCreateUnknown(t *testing.T) {
	r := NewRegistry(discardLogger())

	_, err := r.Create("nope")
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Create(nope) error = %v, want ErrUnknownBackend", err)
	}
}

func TestRegistryCreateCachesInstance(t *testing.T) {
	r := NewRegistry(discardLogger())
	constructed := 0
	err := r.Register(Registration{
		Name: "mock",
		New: func() (Backend, error) {
			constructed++
			return &mockBackend{name: "mock"}, nil
		},
	})
	if err != nil {
		t.Fatalf("Register error = %v", err)
	}

	first, err := r.Create("mock")
	if err != nil {
		t.Fatalf("first Create error = %v", err)
	}
	second, err := r.Create("mock")
	if err != nil {
		t.Fatalf("second Create error = %v", err)
	}

	if first != second {
		t.Error("Create returned distinct instances for the same name")
	}
	if constructed != 1 {
		t.Errorf("constructor ran %d times, want 1", constructed)
	}
}

func TestRegistryListOrdersByPriority(t *testing.T) {
	r := NewRegistry(discardLogger())
	register(t, r, "piper", 40, &mockBackend{name: "piper"})
	register(t, r, "worker", 100, &mockBackend{name: "worker"})
	register(t, r, "edge", 60, &mockBackend{name: "edge"})
	register(t, r, "openai", 80, &mockBackend{name: "openai"})

	got := r.List()
	want := []string{"worker", "openai", "edge", "piper"}
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRegistryListBreaksTiesByName(t *testing.T) {
	r := NewRegistry(discardLogger())
	register(t, r, "bravo", 50, &mockBackend{name: "bravo"})
	register(t, r, "alpha", 50, &mockBackend{name: "alpha"})

	got := r.List()
	if got[0] != "alpha" || got[1] != "bravo" {
		t.Errorf("List() = %v, want [alpha bravo]", got)
	}
}

func TestRegistryAvailablePicksHighestPriority(t *testing.T) {
	r := NewRegistry(discardLogger())
	register(t, r, "worker", 100, &mockBackend{name: "worker", available: false})
	register(t, r, "openai", 80, &mockBackend{name: "openai", available: true})
	register(t, r, "edge", 60, &mockBackend{name: "edge", available: true})

	backend, err := r.Available(context.Background())
	if err != nil {
		t.Fatalf("Available error = %v", err)
	}
	if backend.Name() != "openai" {
		t.Errorf("Available = %s, want openai", backend.Name())
	}
}

func TestRegistryAvailableNoneUsable(t *testing.T) {
	r := NewRegistry(discardLogger())
	register(t, r, "worker", 100, &mockBackend{name: "worker", available: false})
	register(t, r, "edge", 60, &mockBackend{name: "edge", available: false})

	_, err := r.Available(context.Background())
	if !errors.Is(err, ErrNoBackendAvailable) {
		t.Errorf("Available error = %v, want ErrNoBackendAvailable", err)
	}
}

func TestRegistryAvailableSkipsFailedConstructor(t *testing.T) {
	r := NewRegistry(discardLogger())
	err := r.Register(Registration{
		Name:     "broken",
		Priority: 100,
		New:      func() (Backend, error) { return nil, errors.New("no model") },
	})
	if err != nil {
		t.Fatalf("Register error = %v", err)
	}
	register(t, r, "edge", 60, &mockBackend{name: "edge", available: true})

	backend, err := r.Available(context.Background())
	if err != nil {
		t.Fatalf("Available error = %v", err)
	}
	if backend.Name() != "edge" {
		t.Errorf("Available = %s, want edge", backend.Name())
	}
}

func TestRegistryWithFallback(t *testing.T) {
	tests := []struct {
		name      string
		preferred string
		edgeUp    bool
		piperUp   bool
		want      string
		wantErr   error
	}{
		{name: "preferred available", preferred: "piper", edgeUp: true, piperUp: true, want: "piper"},
		{name: "preferred down falls back", preferred: "piper", edgeUp: true, piperUp: false, want: "edge"},
		{name: "unknown preferred falls back", preferred: "ghost", edgeUp: true, want: "edge"},
		{name: "empty preferred uses priority", preferred: "", edgeUp: true, piperUp: true, want: "edge"},
		{name: "nothing usable", preferred: "piper", wantErr: ErrNoBackendAvailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry(discardLogger())
			register(t, r, "edge", 60, &mockBackend{name: "edge", available: tc.edgeUp})
			register(t, r, "piper", 40, &mockBackend{name: "piper", available: tc.piperUp})

			backend, err := r.WithFallback(context.Background(), tc.preferred)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("WithFallback error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("WithFallback error = %v", err)
			}
			if backend.Name() != tc.want {
				t.Errorf("WithFallback = %s, want %s", backend.Name(), tc.want)
			}
		})
	}
}
