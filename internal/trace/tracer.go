package trace

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const maxIOLen = 500

type traceMsg struct {
	kind string // "call_create", "call_end", "interaction_create", "interaction_end", "span"
	// call / interaction fields
	id         string
	callSID    string
	streamSID  string
	sequence   int
	durationMs float64
	userText   string
	replyText  string
	status     string
	// span fields
	span Span
}

// Tracer writes trace data asynchronously via a buffered channel so a slow or
// failing sink never stalls the call pipeline. All methods are nil-safe
// (no-op on nil receiver).
type Tracer struct {
	store  *Store
	callID string
	ch     chan traceMsg
	done   chan struct{}
}

// NewTracer starts a tracer for one call. Must call Close when the call ends.
func NewTracer(store *Store, callSID, streamSID string) *Tracer {
	if store == nil {
		return nil
	}
	t := &Tracer{
		store:  store,
		callID: uuid.NewString(),
		ch:     make(chan traceMsg, 64),
		done:   make(chan struct{}),
	}
	t.ch <- traceMsg{kind: "call_create", id: t.callID, callSID: callSID, streamSID: streamSID}
	go t.drain()
	return t
}

func (t *Tracer) drain() {
	defer close(t.done)
	for msg := range t.ch {
		t.handle(msg)
	}
	if err := t.store.EndCall(t.callID); err != nil {
		slog.Warn("trace call end failed", "error", err)
	}
}

func (t *Tracer) handle(m traceMsg) {
	var err error
	switch m.kind {
	case "call_create":
		err = t.store.CreateCall(m.id, m.callSID, m.streamSID)
	case "interaction_create":
		err = t.store.CreateInteraction(m.id, t.callID, m.sequence)
	case "interaction_end":
		err = t.store.EndInteraction(m.id, m.durationMs, m.userText, m.replyText, m.status)
	case "span":
		err = t.store.CreateSpan(m.span)
	}
	if err != nil {
		slog.Warn("trace write failed", "kind", m.kind, "error", err)
	}
}

// StartInteraction begins a traced interaction and returns its run identifier.
func (t *Tracer) StartInteraction(sequence int) string {
	if t == nil {
		return ""
	}
	id := uuid.NewString()
	t.send(traceMsg{kind: "interaction_create", id: id, sequence: sequence})
	return id
}

// EndInteraction finalizes a traced interaction.
func (t *Tracer) EndInteraction(id string, durationMs float64, userText, replyText, status string) {
	if t == nil || id == "" {
		return
	}
	t.send(traceMsg{
		kind:       "interaction_end",
		id:         id,
		durationMs: durationMs,
		userText:   truncate(userText, maxIOLen),
		replyText:  truncate(replyText, maxIOLen),
		status:     status,
	})
}

// RecordSpan records a completed pipeline stage under an interaction.
func (t *Tracer) RecordSpan(interactionID, name string, startedAt time.Time, durationMs float64, input, output, status, errMsg string) {
	if t == nil || interactionID == "" {
		return
	}
	t.send(traceMsg{
		kind: "span",
		span: Span{
			ID:            uuid.NewString(),
			InteractionID: interactionID,
			Name:          name,
			StartedAt:     startedAt,
			DurationMs:    durationMs,
			Input:         truncate(input, maxIOLen),
			Output:        truncate(output, maxIOLen),
			Status:        status,
			Error:         errMsg,
		},
	})
}

// send drops the message when the buffer is full; tracing is best-effort.
func (t *Tracer) send(m traceMsg) {
	select {
	case t.ch <- m:
	default:
	}
}

// Close drains pending writes, marks the call ended, and stops the goroutine.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	close(t.ch)
	<-t.done
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
