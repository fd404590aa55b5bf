package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Sender is the outbound half of the media stream. Implementations must be
// safe for use from multiple goroutines.
type Sender interface {
	SendMedia(streamSID string, audio []byte) error
	SendMark(streamSID, label string) error
	SendClear(streamSID string) error
}

// Conn wraps a media-stream WebSocket. Reads happen from one goroutine;
// writes are serialized by an internal mutex so the playback sequencer and
// the session loop can both send.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
}

// NewConn wraps an upgraded WebSocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Read blocks for the next inbound envelope.
func (c *Conn) Read() (*Message, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("transport read: %w", err)
	}
	var msg Message
	if err = json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("transport decode: %w", err)
	}
	return &msg, nil
}

// SendMedia implements Sender, base64-encoding the audio payload.
func (c *Conn) SendMedia(streamSID string, audio []byte) error {
	return c.write(outMessage{
		Event:     EventMedia,
		StreamSID: streamSID,
		Media:     &MediaFrame{Payload: base64.StdEncoding.EncodeToString(audio)},
	})
}

// SendMark implements Sender.
func (c *Conn) SendMark(streamSID, label string) error {
	return c.write(outMessage{
		Event:     EventMark,
		StreamSID: streamSID,
		Mark:      &MarkFrame{Name: label},
	})
}

// SendClear implements Sender, directing the transport to drop any audio it
// has buffered but not yet played.
func (c *Conn) SendClear(streamSID string) error {
	return c.write(outMessage{Event: EventClear, StreamSID: streamSID})
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) write(msg outMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("transport encode: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err = c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("transport write: %w", err)
	}
	return nil
}
