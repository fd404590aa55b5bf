package tts

import (
	"context"
	"errors"
	"testing"

	"github.com/voxhall/callagent/internal/audio"
	"github.com/voxhall/callagent/internal/speechcache"
)

// countingBackend returns transport-native audio and counts invocations.
type countingBackend struct {
	calls int
	fail  bool
}

func (b *countingBackend) Name() string { return "fake" }

func (b *countingBackend) SynthesizeAudio(_ context.Context, text string) ([]byte, audio.Format, error) {
	b.calls++
	if b.fail {
		return nil, "", errors.New("backend down")
	}
	return []byte(text), audio.FormatULaw8000, nil
}

// errStore fails every read but accepts writes.
type errStore struct {
	speechcache.Store
	sets int
}

func (e *errStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("cache unreachable")
}

func (e *errStore) Set(context.Context, string, []byte) error {
	e.sets++
	return nil
}

func TestSynthesizeCachesByNormalizedText(t *testing.T) {
	backend := &countingBackend{}
	s := NewSynthesizer(backend, speechcache.NewMemory())
	ctx := context.Background()

	first, err := s.Synthesize(ctx, "Hello there.")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	// Same phrase with different case and padding must hit the cache.
	second, err := s.Synthesize(ctx, "  hello THERE.  ")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if backend.calls != 1 {
		t.Fatalf("backend calls = %d, want 1", backend.calls)
	}
	if string(first) != string(second) {
		t.Fatalf("cache returned different audio: %q vs %q", first, second)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	backend := &countingBackend{}
	s := NewSynthesizer(backend, speechcache.NewMemory())

	out, err := s.Synthesize(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out != nil || backend.calls != 0 {
		t.Fatalf("out = %v, calls = %d", out, backend.calls)
	}
}

func TestSynthesizeCacheFailureFallsThrough(t *testing.T) {
	backend := &countingBackend{}
	store := &errStore{}
	s := NewSynthesizer(backend, store)

	out, err := s.Synthesize(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(out) != "hi" {
		t.Fatalf("out = %q", out)
	}
	if backend.calls != 1 || store.sets != 1 {
		t.Fatalf("calls = %d, sets = %d", backend.calls, store.sets)
	}
}

func TestSynthesizeBackendError(t *testing.T) {
	s := NewSynthesizer(&countingBackend{fail: true}, speechcache.NewMemory())
	if _, err := s.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatal("expected backend error")
	}
}
