// Package tts turns reply segments into transport-ready audio, memoizing
// synthesized phrases in the shared speech cache so common fillers and
// greetings are produced once per process lifetime, not once per call.
package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxhall/callagent/internal/audio"
	"github.com/voxhall/callagent/internal/metrics"
	"github.com/voxhall/callagent/internal/speechcache"
)

// Synthesizer wraps a backend with the cache-through and transcode steps.
// The cache only ever holds transport-ready bytes.
type Synthesizer struct {
	backend Backend
	cache   speechcache.Store
}

// NewSynthesizer creates a synthesizer over the selected backend.
func NewSynthesizer(backend Backend, cache speechcache.Store) *Synthesizer {
	return &Synthesizer{backend: backend, cache: cache}
}

// Synthesize returns 8 kHz μ-law audio for the text. Cache hits skip the
// network entirely; cache failures are treated as misses so synthesis always
// proceeds. The result is cached before returning.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	key := speechcache.Key(s.backend.Name(), text)

	cached, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("speech cache get failed, synthesizing", "error", err)
		metrics.CacheLookups.WithLabelValues("error").Inc()
	} else if cached != nil {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	raw, format, err := s.backend.SynthesizeAudio(ctx, text)
	if err != nil {
		metrics.Errors.WithLabelValues("tts", "synth").Inc()
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	out, err := audio.ToTransport(raw, format)
	if err != nil {
		metrics.Errors.WithLabelValues("tts", "transcode").Inc()
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	metrics.StageDuration.WithLabelValues("synthesis").Observe(time.Since(start).Seconds())

	if err = s.cache.Set(ctx, key, out); err != nil {
		slog.Warn("speech cache set failed", "error", err)
	}
	return out, nil
}

// Engine reports the backend name, used for log context and cache keys.
func (s *Synthesizer) Engine() string {
	return s.backend.Name()
}
