// Package call binds the pipeline together for one phone call: transport
// events in, STT events in, dialogue segments synthesized and sequenced out,
// with barge-in cutting playback without touching in-flight generation.
package call

import (
	"context"
	"encoding/base64"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxhall/callagent/internal/dialogue"
	"github.com/voxhall/callagent/internal/metrics"
	"github.com/voxhall/callagent/internal/playback"
	"github.com/voxhall/callagent/internal/stt"
	"github.com/voxhall/callagent/internal/trace"
	"github.com/voxhall/callagent/internal/transport"
	"github.com/voxhall/callagent/internal/tts"
)

// State is the orchestrator's position in the call lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateGreeting     State = "greeting"
	StateAwaitingUser State = "awaiting_user"
	StateThinking     State = "thinking"
	StateSpeaking     State = "speaking"
	StateInterrupted  State = "interrupted"
	StateEnded        State = "ended"
)

// Transport is the duplex media stream a session runs over.
type Transport interface {
	transport.Sender
	Read() (*transport.Message, error)
}

// SessionConfig holds everything a single call needs.
type SessionConfig struct {
	CallSID   string
	StreamSID string

	Greeting string
	// BargeInMinChars is the minimum interim-utterance length that counts as
	// a real interruption rather than a transcription blip.
	BargeInMinChars int
	// MarkGrace is how long the sequencer holds the next segment while a
	// prior mark is unacknowledged.
	MarkGrace time.Duration

	Engine *dialogue.Engine
	Synth  *tts.Synthesizer
	STT    stt.Client
	Conn   Transport
	Tracer *trace.Tracer
}

type turnRequest struct {
	text        string
	interaction int
}

// Session runs one call to completion.
type Session struct {
	cfg SessionConfig
	seq *playback.Sequencer

	// interaction is the monotonically increasing turn counter; owned by the
	// event loop goroutine (and the greeting, which precedes it).
	interaction int

	// bargeCutoff is read by the speaker worker: segments from interactions
	// below it were interrupted and must not be played.
	bargeCutoff atomic.Int64

	userCh  chan turnRequest
	speakCh chan dialogue.Segment

	stateMu sync.Mutex
	state   State
}

// NewSession creates a session for an accepted call.
func NewSession(cfg SessionConfig) *Session {
	return &Session{
		cfg:     cfg,
		seq:     playback.NewSequencer(cfg.Conn, cfg.StreamSID, cfg.MarkGrace),
		userCh:  make(chan turnRequest, 4),
		speakCh: make(chan dialogue.Segment, 8),
		state:   StateIdle,
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// Run drives the call until the transport stops or ctx is cancelled.
// All in-flight synthesis and completion work is cancelled on return.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgCh := make(chan *transport.Message, 16)
	go s.readTransport(msgCh)

	dialogueDone := make(chan struct{})
	speakerDone := make(chan struct{})
	go s.dialogueWorker(ctx, dialogueDone)
	go s.speakerWorker(ctx, speakerDone)

	s.setState(StateGreeting)
	s.emit(ctx, dialogue.Segment{Interaction: s.nextInteraction(), Text: s.cfg.Greeting})

	s.eventLoop(ctx, msgCh)

	s.setState(StateEnded)
	cancel()
	close(s.userCh)
	<-dialogueDone
	close(s.speakCh)
	<-speakerDone

	if err := s.cfg.STT.Close(); err != nil {
		slog.Debug("stt close", "error", err)
	}
	slog.Info("call ended", "call_sid", s.cfg.CallSID)
}

func (s *Session) nextInteraction() int {
	n := s.interaction
	s.interaction++
	return n
}

// emit hands a segment to the speaker worker, honoring cancellation.
func (s *Session) emit(ctx context.Context, seg dialogue.Segment) {
	select {
	case s.speakCh <- seg:
	case <-ctx.Done():
	}
}

func (s *Session) readTransport(msgCh chan<- *transport.Message) {
	defer close(msgCh)
	for {
		msg, err := s.cfg.Conn.Read()
		if err != nil {
			slog.Info("transport closed", "call_sid", s.cfg.CallSID, "error", err)
			return
		}
		msgCh <- msg
	}
}

func (s *Session) eventLoop(ctx context.Context, msgCh <-chan *transport.Message) {
	results := s.cfg.STT.Results()
	errs := s.cfg.STT.Errors()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			if done := s.handleTransport(ctx, msg); done {
				return
			}

		case res, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if res.Final {
				s.handleTranscription(ctx, res.Text)
			} else {
				s.handleUtterance(res.Text)
			}

		case err := <-errs:
			// Transcription failures leave the call alive awaiting the next utterance.
			slog.Error("stt stream", "call_sid", s.cfg.CallSID, "error", err)
			metrics.Errors.WithLabelValues("stt", "stream").Inc()

		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) handleTransport(ctx context.Context, msg *transport.Message) bool {
	switch msg.Event {
	case transport.EventMedia:
		if msg.Media == nil {
			return false
		}
		raw, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
		if err != nil {
			slog.Warn("media payload decode", "error", err)
			return false
		}
		if err = s.cfg.STT.StreamAudio(ctx, raw); err != nil {
			slog.Error("stt send", "error", err)
			metrics.Errors.WithLabelValues("stt", "send").Inc()
		}

	case transport.EventMark:
		if msg.Mark != nil {
			s.seq.Ack(msg.Mark.Name)
		}

	case transport.EventStop:
		slog.Info("media stream stopped", "stream_sid", s.cfg.StreamSID)
		return true
	}
	return false
}

// handleUtterance implements barge-in: a sufficiently long interim utterance
// while assistant audio is still outstanding clears pending playback. The
// in-flight completion stream is left alone; only its audio is muted.
func (s *Session) handleUtterance(text string) {
	if len(text) <= s.cfg.BargeInMinChars || s.seq.Outstanding() == 0 {
		return
	}

	slog.Info("barge-in, clearing playback", "call_sid", s.cfg.CallSID, "utterance_len", len(text))
	metrics.BargeIns.Inc()
	s.setState(StateInterrupted)

	s.bargeCutoff.Store(int64(s.interaction))
	if err := s.seq.Clear(); err != nil {
		slog.Error("playback clear", "error", err)
	}
	s.setState(StateAwaitingUser)
}

func (s *Session) handleTranscription(ctx context.Context, text string) {
	if text == "" {
		return
	}

	s.setState(StateThinking)
	metrics.Interactions.Inc()
	interaction := s.nextInteraction()
	slog.Info("transcription", "call_sid", s.cfg.CallSID, "interaction", interaction, "text", text)

	select {
	case s.userCh <- turnRequest{text: text, interaction: interaction}:
	case <-ctx.Done():
	}
}

// dialogueWorker serializes interactions: a new turn's generation does not
// begin until the previous turn has fully handed off its segments.
func (s *Session) dialogueWorker(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for req := range s.userCh {
		runID := s.cfg.Tracer.StartInteraction(req.interaction)
		start := time.Now()

		reply, err := s.cfg.Engine.SubmitUserText(ctx, req.text, req.interaction, runID, func(seg dialogue.Segment) {
			s.emit(ctx, seg)
		})

		status := "ok"
		if err != nil {
			// The interaction is lost; the transcript stays consistent and
			// the call keeps listening.
			slog.Error("dialogue", "call_sid", s.cfg.CallSID, "interaction", req.interaction, "error", err)
			metrics.Errors.WithLabelValues("dialogue", "interaction").Inc()
			status = "error"
		}
		s.cfg.Tracer.EndInteraction(runID, float64(time.Since(start).Milliseconds()), req.text, reply, status)
	}
}

// speakerWorker serializes synthesis and enqueueing: one segment in flight at
// a time, so segments hit the transport in emission order.
func (s *Session) speakerWorker(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for seg := range s.speakCh {
		if int64(seg.Interaction) < s.bargeCutoff.Load() {
			continue
		}

		audio, err := s.cfg.Synth.Synthesize(ctx, seg.Text)
		if err != nil {
			// Skip the segment, keep the turn going.
			slog.Error("synthesis, skipping segment", "text", seg.Text, "error", err)
			metrics.SegmentsSkipped.Inc()
			continue
		}
		if len(audio) == 0 {
			continue
		}

		// Re-check: a barge-in may have landed during the synthesis call.
		if int64(seg.Interaction) < s.bargeCutoff.Load() {
			continue
		}

		s.setState(StateSpeaking)
		if err = s.seq.Enqueue(ctx, audio); err != nil {
			slog.Error("playback enqueue", "error", err)
			metrics.Errors.WithLabelValues("playback", "enqueue").Inc()
		}
	}
}
