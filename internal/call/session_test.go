package call

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/voxhall/callagent/internal/audio"
	"github.com/voxhall/callagent/internal/dialogue"
	"github.com/voxhall/callagent/internal/speechcache"
	"github.com/voxhall/callagent/internal/stt"
	"github.com/voxhall/callagent/internal/transport"
	"github.com/voxhall/callagent/internal/tts"
)

// fakeTransport feeds canned inbound frames and records outbound calls.
type fakeTransport struct {
	inbound chan *transport.Message

	mu     sync.Mutex
	media  [][]byte
	marks  []string
	clears int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan *transport.Message, 16)}
}

func (f *fakeTransport) Read() (*transport.Message, error) {
	msg, ok := <-f.inbound
	if !ok {
		return nil, errors.New("closed")
	}
	return msg, nil
}

func (f *fakeTransport) SendMedia(_ string, audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(audio))
	copy(cp, audio)
	f.media = append(f.media, cp)
	return nil
}

func (f *fakeTransport) SendMark(_ string, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, label)
	return nil
}

func (f *fakeTransport) SendClear(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakeTransport) markCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.marks)
}

func (f *fakeTransport) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

func (f *fakeTransport) mediaText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []byte
	for _, m := range f.media {
		out = append(out, m...)
	}
	return string(out)
}

// fakeSTT exposes result channels the test writes to directly.
type fakeSTT struct {
	results chan stt.Result
	errs    chan error

	mu    sync.Mutex
	audio [][]byte
}

func newFakeSTT() *fakeSTT {
	return &fakeSTT{results: make(chan stt.Result, 16), errs: make(chan error, 1)}
}

func (f *fakeSTT) StreamAudio(_ context.Context, audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audio = append(f.audio, audio)
	return nil
}

func (f *fakeSTT) Results() <-chan stt.Result { return f.results }
func (f *fakeSTT) Errors() <-chan error       { return f.errs }
func (f *fakeSTT) Close() error               { return nil }

// textBackend returns the input text as transport-native audio, so tests can
// assert on what was "spoken".
type textBackend struct{}

func (textBackend) Name() string { return "fake" }

func (textBackend) SynthesizeAudio(_ context.Context, text string) ([]byte, audio.Format, error) {
	return []byte(text), audio.FormatULaw8000, nil
}

// cannedEngine serves SSE completion streams, one canned reply per request.
func cannedEngine(t *testing.T, replies []string) *dialogue.Engine {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		if len(replies) == 0 {
			mu.Unlock()
			http.Error(w, "no canned reply", http.StatusInternalServerError)
			return
		}
		reply := replies[0]
		replies = replies[1:]
		mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"test\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q},\"finish_reason\":null}]}\n\n", reply)
		fmt.Fprint(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"test\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	client := openai.NewClient(option.WithBaseURL(srv.URL+"/v1/"), option.WithAPIKey("test"), option.WithMaxRetries(0))
	return dialogue.New(client, dialogue.Config{Model: "test", SystemPrompt: "sys"})
}

func newTestSession(t *testing.T, conn *fakeTransport, sttClient stt.Client, engine *dialogue.Engine) *Session {
	t.Helper()
	if engine == nil {
		engine = cannedEngine(t, nil)
	}
	return NewSession(SessionConfig{
		CallSID:         "CA1",
		StreamSID:       "MZ1",
		Greeting:        "Hello caller.",
		BargeInMinChars: 5,
		MarkGrace:       time.Millisecond,
		Engine:          engine,
		Synth:           tts.NewSynthesizer(textBackend{}, speechcache.NewMemory()),
		STT:             sttClient,
		Conn:            conn,
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSessionSpeaksGreetingAndEndsOnStop(t *testing.T) {
	conn := newFakeTransport()
	sess := newTestSession(t, conn, newFakeSTT(), nil)

	done := make(chan struct{})
	go func() {
		sess.Run(context.Background())
		close(done)
	}()

	waitFor(t, "greeting mark", func() bool { return conn.markCount() == 1 })
	if got := conn.mediaText(); got != "Hello caller." {
		t.Fatalf("spoken media = %q", got)
	}

	conn.inbound <- &transport.Message{Event: transport.EventStop, Stop: &transport.StopFrame{}}
	<-done

	if sess.State() != StateEnded {
		t.Fatalf("state = %s", sess.State())
	}
}

func TestSessionForwardsMediaToSTT(t *testing.T) {
	conn := newFakeTransport()
	sttClient := newFakeSTT()
	sess := newTestSession(t, conn, sttClient, nil)

	done := make(chan struct{})
	go func() {
		sess.Run(context.Background())
		close(done)
	}()

	payload := base64.StdEncoding.EncodeToString([]byte{0x7f, 0x00})
	conn.inbound <- &transport.Message{Event: transport.EventMedia, Media: &transport.MediaFrame{Payload: payload}}

	waitFor(t, "stt audio", func() bool {
		sttClient.mu.Lock()
		defer sttClient.mu.Unlock()
		return len(sttClient.audio) == 1
	})
	sttClient.mu.Lock()
	got := sttClient.audio[0]
	sttClient.mu.Unlock()
	if len(got) != 2 || got[0] != 0x7f {
		t.Fatalf("stt received %v", got)
	}

	conn.inbound <- &transport.Message{Event: transport.EventStop}
	<-done
}

func TestSessionBargeInClearsPlayback(t *testing.T) {
	conn := newFakeTransport()
	sttClient := newFakeSTT()
	sess := newTestSession(t, conn, sttClient, nil)

	done := make(chan struct{})
	go func() {
		sess.Run(context.Background())
		close(done)
	}()

	// Greeting leaves an unacknowledged mark, so the caller counts as
	// being spoken to.
	waitFor(t, "greeting mark", func() bool { return conn.markCount() == 1 })

	// A short blip must not interrupt.
	sttClient.results <- stt.Result{Text: "uh", Final: false}
	// A real utterance must.
	sttClient.results <- stt.Result{Text: "hold on a second", Final: false}

	waitFor(t, "clear", func() bool { return conn.clearCount() == 1 })
	if sess.seq.Outstanding() != 0 {
		t.Fatalf("outstanding = %d after barge-in", sess.seq.Outstanding())
	}

	conn.inbound <- &transport.Message{Event: transport.EventStop}
	<-done
}

func TestSessionTurnProducesSpokenReply(t *testing.T) {
	conn := newFakeTransport()
	sttClient := newFakeSTT()
	engine := cannedEngine(t, []string{"Hi! We have ten in stock."})
	sess := newTestSession(t, conn, sttClient, engine)

	done := make(chan struct{})
	go func() {
		sess.Run(context.Background())
		close(done)
	}()

	waitFor(t, "greeting mark", func() bool { return conn.markCount() == 1 })

	// Acknowledge the greeting so the reply does not sit out the grace wait.
	conn.mu.Lock()
	greetingMark := conn.marks[0]
	conn.mu.Unlock()
	conn.inbound <- &transport.Message{Event: transport.EventMark, Mark: &transport.MarkFrame{Name: greetingMark}}

	sttClient.results <- stt.Result{Text: "do you have airpods?", Final: true}

	// The reply splits into two segments, each with its own mark.
	waitFor(t, "reply marks", func() bool { return conn.markCount() == 3 })
	if got := conn.mediaText(); got != "Hello caller.Hi!We have ten in stock." {
		t.Fatalf("spoken media = %q", got)
	}

	conn.inbound <- &transport.Message{Event: transport.EventStop}
	<-done
}
