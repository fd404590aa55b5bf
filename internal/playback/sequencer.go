// Package playback buffers synthesized audio segments and flushes them to the
// transport in order, tracking outstanding playback marks and honoring
// barge-in by discarding anything not yet sent.
package playback

import (
	"context"
	"fmt"
	"time"

	"sync"

	"github.com/google/uuid"

	"github.com/voxhall/callagent/internal/metrics"
	"github.com/voxhall/callagent/internal/transport"
)

// mediaFrameBytes is the largest audio slice sent in one media message:
// 4000 bytes of 8 kHz μ-law is half a second of speech.
const mediaFrameBytes = 4000

// Sequencer flushes audio segments for one call. Enqueue is called from a
// single goroutine per session, which is what guarantees segments reach the
// transport in emission order; Ack and Clear may be called from the session
// event loop concurrently.
type Sequencer struct {
	sender    transport.Sender
	streamSID string
	grace     time.Duration

	mu          sync.Mutex
	outstanding map[string]struct{}
	epoch       uint64
}

// NewSequencer creates a sequencer bound to one media stream. grace is how
// long to hold the next segment while a prior mark is unacknowledged, keeping
// the sender from running far ahead of caller-perceived playback.
func NewSequencer(sender transport.Sender, streamSID string, grace time.Duration) *Sequencer {
	return &Sequencer{
		sender:      sender,
		streamSID:   streamSID,
		grace:       grace,
		outstanding: make(map[string]struct{}),
	}
}

// Enqueue streams one audio segment to the transport as framed media
// payloads followed by a fresh mark, which is recorded as outstanding.
// If playback was cleared while the segment waited its grace interval, the
// segment is dropped rather than played after the interruption.
func (s *Sequencer) Enqueue(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return nil
	}

	epoch := s.snapshot()

	if s.Outstanding() > 0 {
		select {
		case <-time.After(s.grace):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	if s.epoch != epoch {
		// Barge-in happened while waiting; the caller no longer wants this.
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	for off := 0; off < len(audio); off += mediaFrameBytes {
		end := min(off+mediaFrameBytes, len(audio))
		if err := s.sender.SendMedia(s.streamSID, audio[off:end]); err != nil {
			return fmt.Errorf("playback media: %w", err)
		}
	}

	label := uuid.NewString()
	if err := s.sender.SendMark(s.streamSID, label); err != nil {
		return fmt.Errorf("playback mark: %w", err)
	}

	s.mu.Lock()
	s.outstanding[label] = struct{}{}
	s.mu.Unlock()
	metrics.MarksOutstanding.Inc()
	metrics.SegmentsSpoken.Inc()
	return nil
}

// Ack removes an acknowledged mark from the outstanding set.
func (s *Sequencer) Ack(label string) {
	s.mu.Lock()
	_, ok := s.outstanding[label]
	if ok {
		delete(s.outstanding, label)
	}
	s.mu.Unlock()
	if ok {
		metrics.MarksOutstanding.Dec()
	}
}

// Clear directs the transport to drop buffered audio and empties the
// outstanding-mark set. Segments already waiting in Enqueue are discarded.
func (s *Sequencer) Clear() error {
	s.mu.Lock()
	dropped := len(s.outstanding)
	s.outstanding = make(map[string]struct{})
	s.epoch++
	s.mu.Unlock()

	metrics.MarksOutstanding.Sub(float64(dropped))

	if err := s.sender.SendClear(s.streamSID); err != nil {
		return fmt.Errorf("playback clear: %w", err)
	}
	return nil
}

// Outstanding reports how many marks await acknowledgement.
func (s *Sequencer) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.outstanding)
}

func (s *Sequencer) snapshot() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}
