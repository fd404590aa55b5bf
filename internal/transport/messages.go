// Package transport speaks the bidirectional media-stream protocol of the
// telephony provider: JSON envelopes over a WebSocket, audio as base64
// payloads, playback acknowledged through named marks.
package transport

// Event names used on the media-stream socket.
const (
	EventStart = "start"
	EventMedia = "media"
	EventMark  = "mark"
	EventStop  = "stop"
	EventClear = "clear"
)

// Message is one inbound envelope from the media stream.
type Message struct {
	Event          string      `json:"event"`
	SequenceNumber string      `json:"sequenceNumber,omitempty"`
	StreamSID      string      `json:"streamSid,omitempty"`
	Start          *StartFrame `json:"start,omitempty"`
	Media          *MediaFrame `json:"media,omitempty"`
	Mark           *MarkFrame  `json:"mark,omitempty"`
	Stop           *StopFrame  `json:"stop,omitempty"`
}

// StartFrame carries call identifiers and caller-supplied parameters.
type StartFrame struct {
	StreamSID        string            `json:"streamSid"`
	CallSID          string            `json:"callSid"`
	AccountSID       string            `json:"accountSid,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
}

// MediaFrame carries one base64-encoded audio chunk.
type MediaFrame struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   string `json:"payload"`
}

// MarkFrame acknowledges that playback of a named mark completed.
type MarkFrame struct {
	Name string `json:"name"`
}

// StopFrame signals the end of the media stream.
type StopFrame struct {
	CallSID string `json:"callSid,omitempty"`
}

// outMessage is one outbound envelope to the media stream.
type outMessage struct {
	Event     string      `json:"event"`
	StreamSID string      `json:"streamSid"`
	Media     *MediaFrame `json:"media,omitempty"`
	Mark      *MarkFrame  `json:"mark,omitempty"`
}
