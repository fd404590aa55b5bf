package trace

import "time"

// Call represents one traced call session.
type Call struct {
	ID               string     `json:"id"`
	CallSID          string     `json:"call_sid"`
	StreamSID        string     `json:"stream_sid"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	InteractionCount int        `json:"interaction_count,omitempty"`
}

// Interaction represents one user-turn→assistant-reply cycle within a call.
type Interaction struct {
	ID         string    `json:"id"`
	CallID     string    `json:"call_id"`
	Sequence   int       `json:"sequence"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms,omitempty"`
	UserText   string    `json:"user_text,omitempty"`
	ReplyText  string    `json:"reply_text,omitempty"`
	Status     string    `json:"status"`
	SpanCount  int       `json:"span_count,omitempty"`
}

// Span represents an individual pipeline stage (completion, tool, synthesis).
type Span struct {
	ID            string    `json:"id"`
	InteractionID string    `json:"interaction_id"`
	Name          string    `json:"name"`
	StartedAt     time.Time `json:"started_at"`
	DurationMs    float64   `json:"duration_ms"`
	Input         string    `json:"input,omitempty"`
	Output        string    `json:"output,omitempty"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
}
