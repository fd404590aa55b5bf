// Package stt consumes an external speech-to-text engine. The engine receives
// raw transport audio and hands back interim utterances (used for barge-in
// detection) and final turn transcriptions (used to drive the dialogue).
package stt

import "context"

// Result is one transcription event from the engine.
type Result struct {
	Text       string
	Confidence float64
	// Final marks end-of-speech: the text is the complete user turn.
	// Non-final results are interim utterances that may still be revised.
	Final bool
}

// Client is a live transcription stream for one call.
type Client interface {
	// StreamAudio forwards a raw audio chunk to the engine.
	StreamAudio(ctx context.Context, audio []byte) error

	// Results delivers transcription events. Closed when the stream ends.
	Results() <-chan Result

	// Errors delivers stream-level failures.
	Errors() <-chan error

	// Close tears down the engine connection.
	Close() error
}
