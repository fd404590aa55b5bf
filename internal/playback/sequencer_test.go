package playback

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeSender records outbound transport calls in order.
type fakeSender struct {
	mu     sync.Mutex
	media  [][]byte
	marks  []string
	clears int
}

func (f *fakeSender) SendMedia(_ string, audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(audio))
	copy(cp, audio)
	f.media = append(f.media, cp)
	return nil
}

func (f *fakeSender) SendMark(_ string, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, label)
	return nil
}

func (f *fakeSender) SendClear(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakeSender) snapshot() (media int, marks []string, clears int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.media), append([]string(nil), f.marks...), f.clears
}

func TestEnqueueFramesAudioAndMarks(t *testing.T) {
	sender := &fakeSender{}
	seq := NewSequencer(sender, "MZ1", time.Millisecond)

	audio := make([]byte, mediaFrameBytes*2+100)
	if err := seq.Enqueue(context.Background(), audio); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	media, marks, _ := sender.snapshot()
	if media != 3 {
		t.Fatalf("media frames = %d, want 3", media)
	}
	if len(marks) != 1 {
		t.Fatalf("marks = %v", marks)
	}
	if len(sender.media[0]) != mediaFrameBytes || len(sender.media[2]) != 100 {
		t.Fatalf("frame sizes = %d, %d, %d", len(sender.media[0]), len(sender.media[1]), len(sender.media[2]))
	}
	if seq.Outstanding() != 1 {
		t.Fatalf("Outstanding() = %d", seq.Outstanding())
	}
}

func TestAckRetiresMark(t *testing.T) {
	sender := &fakeSender{}
	seq := NewSequencer(sender, "MZ1", time.Millisecond)

	seq.Enqueue(context.Background(), []byte{1})
	_, marks, _ := sender.snapshot()

	seq.Ack("not-a-real-label")
	if seq.Outstanding() != 1 {
		t.Fatalf("unknown label retired a mark")
	}
	seq.Ack(marks[0])
	if seq.Outstanding() != 0 {
		t.Fatalf("Outstanding() = %d after ack", seq.Outstanding())
	}
	// Double ack is harmless.
	seq.Ack(marks[0])
	if seq.Outstanding() != 0 {
		t.Fatalf("Outstanding() = %d after double ack", seq.Outstanding())
	}
}

func TestEmptySegmentIsIgnored(t *testing.T) {
	sender := &fakeSender{}
	seq := NewSequencer(sender, "MZ1", time.Millisecond)

	if err := seq.Enqueue(context.Background(), nil); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	media, marks, _ := sender.snapshot()
	if media != 0 || len(marks) != 0 {
		t.Fatal("empty segment produced transport traffic")
	}
}

func TestClearEmptiesOutstanding(t *testing.T) {
	sender := &fakeSender{}
	seq := NewSequencer(sender, "MZ1", time.Millisecond)

	seq.Enqueue(context.Background(), []byte{1})
	seq.Enqueue(context.Background(), []byte{2})

	if err := seq.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if seq.Outstanding() != 0 {
		t.Fatalf("Outstanding() = %d after clear", seq.Outstanding())
	}
	_, _, clears := sender.snapshot()
	if clears != 1 {
		t.Fatalf("clears = %d", clears)
	}
}

func TestClearDropsSegmentWaitingOutGrace(t *testing.T) {
	sender := &fakeSender{}
	seq := NewSequencer(sender, "MZ1", 100*time.Millisecond)

	seq.Enqueue(context.Background(), []byte{1})
	mediaBefore, _, _ := sender.snapshot()

	done := make(chan error, 1)
	go func() {
		// Outstanding mark forces this segment into the grace wait.
		done <- seq.Enqueue(context.Background(), []byte{2})
	}()

	time.Sleep(20 * time.Millisecond)
	seq.Clear()

	if err := <-done; err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	mediaAfter, _, _ := sender.snapshot()
	if mediaAfter != mediaBefore {
		t.Fatal("segment played after playback was cleared")
	}
	if seq.Outstanding() != 0 {
		t.Fatalf("Outstanding() = %d", seq.Outstanding())
	}
}

func TestEnqueueHonorsContextDuringGrace(t *testing.T) {
	sender := &fakeSender{}
	seq := NewSequencer(sender, "MZ1", time.Minute)

	seq.Enqueue(context.Background(), []byte{1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- seq.Enqueue(ctx, []byte{2})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-done; err == nil {
		t.Fatal("expected context error")
	}
}
