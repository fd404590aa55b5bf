package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// DeepgramConfig holds connection parameters for the live transcription API.
type DeepgramConfig struct {
	APIKey     string
	URL        string // base websocket URL, e.g. wss://api.deepgram.com
	Model      string
	Language   string
	Encoding   string // transport codec, e.g. mulaw
	SampleRate int
}

// DeepgramClient streams audio to the Deepgram live API over a WebSocket and
// emits interim and final transcription results.
type DeepgramClient struct {
	ws      *websocket.Conn
	results chan Result
	errs    chan error

	writeMu sync.Mutex

	closeOnce sync.Once
}

type deepgramResponse struct {
	Type    string `json:"type"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	IsFinal     bool `json:"is_final"`
	SpeechFinal bool `json:"speech_final"`
}

// NewDeepgramClient dials the live API and starts the read loop.
func NewDeepgramClient(ctx context.Context, cfg DeepgramConfig) (*DeepgramClient, error) {
	q := url.Values{}
	q.Set("model", cfg.Model)
	q.Set("language", cfg.Language)
	q.Set("encoding", cfg.Encoding)
	q.Set("sample_rate", fmt.Sprintf("%d", cfg.SampleRate))
	q.Set("channels", "1")
	q.Set("punctuate", "true")
	q.Set("interim_results", "true")

	header := http.Header{"Authorization": []string{"Token " + cfg.APIKey}}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL+"/v1/listen?"+q.Encode(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("deepgram dial: %w", err)
	}

	c := &DeepgramClient{
		ws:      ws,
		results: make(chan Result, 16),
		errs:    make(chan error, 1),
	}
	go c.readLoop()
	return c, nil
}

// StreamAudio implements Client, forwarding a raw audio chunk as one binary frame.
func (c *DeepgramClient) StreamAudio(_ context.Context, audio []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("deepgram send: %w", err)
	}
	return nil
}

// Results implements Client.
func (c *DeepgramClient) Results() <-chan Result {
	return c.results
}

// Errors implements Client.
func (c *DeepgramClient) Errors() <-chan error {
	return c.errs
}

// Close implements Client, asking the engine to flush before the socket drops.
func (c *DeepgramClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// readLoop turns engine responses into Results. Segment-final transcripts are
// accumulated until the engine signals end-of-speech, which Deepgram reports
// as speech_final; a single user turn may span several segment-final results.
func (c *DeepgramClient) readLoop() {
	defer close(c.results)

	var turn strings.Builder
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case c.errs <- fmt.Errorf("deepgram read: %w", err):
			default:
			}
			return
		}

		var resp deepgramResponse
		if json.Unmarshal(data, &resp) != nil || resp.Type != "Results" {
			continue
		}
		if len(resp.Channel.Alternatives) == 0 {
			continue
		}
		alt := resp.Channel.Alternatives[0]

		if !resp.IsFinal {
			if alt.Transcript != "" {
				c.results <- Result{Text: alt.Transcript, Confidence: alt.Confidence}
			}
			continue
		}

		if alt.Transcript != "" {
			if turn.Len() > 0 {
				turn.WriteString(" ")
			}
			turn.WriteString(alt.Transcript)
		}

		if resp.SpeechFinal && turn.Len() > 0 {
			c.results <- Result{Text: turn.String(), Confidence: alt.Confidence, Final: true}
			turn.Reset()
		}
	}
}
