package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/growbot-project/growbot/internal/events"
)

const (
	streamBuffer    = 64
	streamWriteWait = 10 * time.Second
	streamPongWait  = 60 * time.Second
	streamPingEvery = streamPongWait * 9 / 10
)

// StreamMessage is one event as sent to websocket clients.
type StreamMessage struct {
	Type    events.EventType `json:"type"`
	Bot     string           `json:"bot"`
	Time    time.Time        `json:"time"`
	Payload interface{}      `json:"payload,omitempty"`
}

// Stream fans session events out to websocket clients. A client that falls
// behind by more than streamBuffer messages loses the overflow.
type Stream struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[chan StreamMessage]struct{}
	closed  bool
}

// NewStream creates a stream accepting websocket upgrades from origins, or
// from any origin when origins is empty.
func NewStream(origins []string) *Stream {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return &Stream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				if _, ok := allowed["*"]; ok {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
		clients: make(map[chan StreamMessage]struct{}),
	}
}

// Subscribe forwards session events and health alerts from bus.
func (st *Stream) Subscribe(bus *events.EventBus) {
	if bus == nil {
		return
	}
	bus.SubscribeMany(events.SessionEvents, "api.stream", st.onEvent)
	bus.Subscribe(events.EventHealthAlert, "api.stream.alert", st.onEvent)
}

func (st *Stream) onEvent(ctx context.Context, e events.Event) error {
	st.Broadcast(StreamMessage{Type: e.Type, Bot: e.Source, Time: e.Time, Payload: e.Payload})
	return nil
}

// Broadcast queues msg for every client without blocking.
func (st *Stream) Broadcast(msg StreamMessage) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for ch := range st.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// ClientCount returns the number of connected clients.
func (st *Stream) ClientCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.clients)
}

// Close disconnects every client.
func (st *Stream) Close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	st.closed = true
	for ch := range st.clients {
		close(ch)
		delete(st.clients, ch)
	}
}

func (st *Stream) register() (chan StreamMessage, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return nil, false
	}
	ch := make(chan StreamMessage, streamBuffer)
	st.clients[ch] = struct{}{}
	return ch, true
}

func (st *Stream) unregister(ch chan StreamMessage) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.clients[ch]; ok {
		delete(st.clients, ch)
		close(ch)
	}
}

// Handle upgrades the request and writes events until the client leaves.
func (st *Stream) Handle(c *gin.Context) {
	conn, err := st.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, ok := st.register()
	if !ok {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(streamWriteWait))
		return
	}
	defer st.unregister(ch)

	log.Debug().Str("client_ip", c.ClientIP()).Msg("event stream client connected")

	// Reads only serve control frames and detect the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingEvery)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			log.Debug().Str("client_ip", c.ClientIP()).Msg("event stream client disconnected")
			return
		case msg, ok := <-ch:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
