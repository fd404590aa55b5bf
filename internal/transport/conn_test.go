package transport

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// wsPair dials an upgraded server and returns both ends.
func wsPair(t *testing.T) (*Conn, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverSide := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverSide <- ws
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	peer := <-serverSide
	t.Cleanup(func() { peer.Close() })
	return NewConn(client), peer
}

func TestReadDecodesStartFrame(t *testing.T) {
	conn, peer := wsPair(t)

	frame := `{"event":"start","sequenceNumber":"1","streamSid":"MZ1","start":{"streamSid":"MZ1","callSid":"CA1","customParameters":{"lang":"en"}}}`
	if err := peer.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}

	msg, err := conn.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if msg.Event != EventStart || msg.Start == nil {
		t.Fatalf("msg = %+v", msg)
	}
	if msg.Start.CallSID != "CA1" || msg.Start.StreamSID != "MZ1" {
		t.Fatalf("start = %+v", msg.Start)
	}
	if msg.Start.CustomParameters["lang"] != "en" {
		t.Fatalf("custom parameters = %v", msg.Start.CustomParameters)
	}
}

func TestSendMediaEncodesPayload(t *testing.T) {
	conn, peer := wsPair(t)

	audio := []byte{0x7f, 0x00, 0xff}
	if err := conn.SendMedia("MZ1", audio); err != nil {
		t.Fatalf("SendMedia: %v", err)
	}

	_, data, err := peer.ReadMessage()
	if err != nil {
		t.Fatalf("peer read: %v", err)
	}
	var out struct {
		Event     string `json:"event"`
		StreamSID string `json:"streamSid"`
		Media     struct {
			Payload string `json:"payload"`
		} `json:"media"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Event != EventMedia || out.StreamSID != "MZ1" {
		t.Fatalf("out = %+v", out)
	}
	decoded, err := base64.StdEncoding.DecodeString(out.Media.Payload)
	if err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if string(decoded) != string(audio) {
		t.Fatalf("payload = %v", decoded)
	}
}

func TestSendMarkAndClear(t *testing.T) {
	conn, peer := wsPair(t)

	if err := conn.SendMark("MZ1", "seg-1"); err != nil {
		t.Fatalf("SendMark: %v", err)
	}
	_, data, _ := peer.ReadMessage()
	if !strings.Contains(string(data), `"mark"`) || !strings.Contains(string(data), `"seg-1"`) {
		t.Fatalf("mark frame = %s", data)
	}

	if err := conn.SendClear("MZ1"); err != nil {
		t.Fatalf("SendClear: %v", err)
	}
	_, data, _ = peer.ReadMessage()
	if !strings.Contains(string(data), `"clear"`) {
		t.Fatalf("clear frame = %s", data)
	}
}
