package feed

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait       = 10 * time.Second
	defaultPongWait = 60 * time.Second
)

// WebSocketHandler serves GET /ws.
type WebSocketHandler struct {
	publisher *Publisher
	upgrader  websocket.Upgrader
	logger    *log.Logger
	pongWait  time.Duration
}

// WebSocketOption configures the websocket handler.
type WebSocketOption func(*WebSocketHandler)

// WithPongWait sets how long the peer may stay silent before the connection is dropped.
// Pings go out at 9/10 of this interval.
func WithPongWait(d time.Duration) WebSocketOption {
	return func(h *WebSocketHandler) {
		if d > 0 {
			h.pongWait = d
		}
	}
}

// NewWebSocketHandler constructs a websocket stream handler.
func NewWebSocketHandler(publisher *Publisher, logger *log.Logger, opts ...WebSocketOption) *WebSocketHandler {
	h := &WebSocketHandler{
		publisher: publisher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:   logger,
		pongWait: defaultPongWait,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the connection and streams snapshots until disconnect.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.publisher == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.Printf("feed: websocket upgrade failed: remote=%s err=%v", r.RemoteAddr, err)
		}
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pongWait := h.pongWait
	pingPeriod := pongWait * 9 / 10

	// inbound frames are discarded; a read error means the peer went away
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		}
	}()

	// keepalive pings; WriteControl may run concurrently with WriteMessage
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	session := h.publisher.NewSession(func(payload []byte) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, payload)
	})
	if err := session.Run(ctx); err != nil && h.logger != nil {
		h.logger.Printf("feed: websocket stream ended: remote=%s err=%v", r.RemoteAddr, err)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

// SSEHandler serves GET /api/stream as Server-Sent Events.
type SSEHandler struct {
	publisher *Publisher
	logger    *log.Logger
}

// NewSSEHandler constructs an SSE stream handler.
func NewSSEHandler(publisher *Publisher, logger *log.Logger) *SSEHandler {
	return &SSEHandler{publisher: publisher, logger: logger}
}

// ServeHTTP streams snapshots as "snapshot" events.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.publisher == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	session := h.publisher.NewSession(func(payload []byte) error {
		if _, err := w.Write([]byte("event: snapshot\ndata: ")); err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err := session.Run(r.Context()); err != nil && h.logger != nil {
		h.logger.Printf("feed: sse stream ended: remote=%s err=%v", r.RemoteAddr, err)
	}
}
