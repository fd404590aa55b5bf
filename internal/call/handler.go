package call

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxhall/callagent/internal/dialogue"
	"github.com/voxhall/callagent/internal/metrics"
	"github.com/voxhall/callagent/internal/stt"
	"github.com/voxhall/callagent/internal/trace"
	"github.com/voxhall/callagent/internal/transport"
	"github.com/voxhall/callagent/internal/tts"
)

// HandlerConfig carries the per-process pieces the handler hands to each call.
type HandlerConfig struct {
	MaxConcurrentCalls int
	Greeting           string
	BargeInMinChars    int
	MarkGrace          time.Duration

	NewEngine func(tracer *trace.Tracer) *dialogue.Engine
	NewSTT    func() (stt.Client, error)
	Synth     *tts.Synthesizer
	Store     *trace.Store
}

// Handler upgrades media-stream connections and runs a Session per call.
type Handler struct {
	cfg      HandlerConfig
	sem      chan struct{}
	upgrader websocket.Upgrader
}

func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.MaxConcurrentCalls <= 0 {
		cfg.MaxConcurrentCalls = 10
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, cfg.MaxConcurrentCalls),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Telephony providers connect server-to-server without an Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		slog.Warn("call rejected, at capacity", "max", h.cfg.MaxConcurrentCalls)
		http.Error(w, "too many concurrent calls", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade", "error", err)
		return
	}
	conn := transport.NewConn(ws)
	defer conn.Close()

	start, err := h.awaitStart(conn)
	if err != nil {
		slog.Error("media stream handshake", "error", err)
		return
	}
	slog.Info("call started", "call_sid", start.CallSID, "stream_sid", start.StreamSID)
	metrics.CallsActive.Inc()
	metrics.CallsTotal.Inc()
	defer metrics.CallsActive.Dec()

	sttClient, err := h.cfg.NewSTT()
	if err != nil {
		slog.Error("stt connect", "error", err)
		metrics.Errors.WithLabelValues("stt", "connect").Inc()
		return
	}

	tracer := trace.NewTracer(h.cfg.Store, start.CallSID, start.StreamSID)
	defer tracer.Close()

	engine := h.cfg.NewEngine(tracer)
	engine.BindCallContext(start.CallSID, start.StreamSID)

	sess := NewSession(SessionConfig{
		CallSID:         start.CallSID,
		StreamSID:       start.StreamSID,
		Greeting:        h.cfg.Greeting,
		BargeInMinChars: h.cfg.BargeInMinChars,
		MarkGrace:       h.cfg.MarkGrace,
		Engine:          engine,
		Synth:           h.cfg.Synth,
		STT:             sttClient,
		Conn:            conn,
		Tracer:          tracer,
	})
	sess.Run(r.Context())
}

// awaitStart reads frames until the start frame arrives. Providers send a
// "connected" preamble first; anything before start is skipped.
func (h *Handler) awaitStart(conn *transport.Conn) (*transport.StartFrame, error) {
	for {
		msg, err := conn.Read()
		if err != nil {
			return nil, err
		}
		if msg.Event == transport.EventStart && msg.Start != nil {
			return msg.Start, nil
		}
	}
}
