package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"workwatch.service/internal/core/relay"
)

// StreamHandler owns the WebSocket side of the relay: one upgraded
// connection per agent or viewer, a read loop feeding the hub and a
// single write goroutine draining a bounded queue. All routing
// decisions live in the hub; this layer only moves envelopes.
type StreamHandler struct {
	Hub            *relay.Hub
	PingInterval   time.Duration
	ReadDeadline   time.Duration
	SendBufferSize int
	MaxFrameBytes  int64

	upgrader websocket.Upgrader
}

func NewStreamHandler(hub *relay.Hub, pingInterval, readDeadline time.Duration, sendBuffer int, maxFrameBytes int64) *StreamHandler {
	return &StreamHandler{
		Hub:            hub,
		PingInterval:   pingInterval,
		ReadDeadline:   readDeadline,
		SendBufferSize: sendBuffer,
		MaxFrameBytes:  maxFrameBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Relay auth is delegated to the fronting auth layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// wsConn adapts a gorilla connection to relay.Conn. Send never blocks:
// a full queue means the viewer is too slow for live frames and the
// frame is dropped for that viewer only.
type wsConn struct {
	id      string
	conn    *websocket.Conn
	sendCh  chan relay.Envelope
	done    chan struct{}
	closeFn sync.Once
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(env relay.Envelope) bool {
	select {
	case <-c.done:
		return false
	case c.sendCh <- env:
		return true
	default:
		return false
	}
}

func (c *wsConn) close() {
	c.closeFn.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// ServeHTTP upgrades the connection and runs its read loop until the
// peer goes away.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &wsConn{
		id:     uuid.New().String(),
		conn:   socket,
		sendCh: make(chan relay.Envelope, h.SendBufferSize),
		done:   make(chan struct{}),
	}

	log.Debug().Str("conn", c.id).Msg("Relay connection opened")
	h.Hub.Attach(c)

	socket.SetReadLimit(h.MaxFrameBytes)
	socket.SetReadDeadline(time.Now().Add(h.ReadDeadline))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(h.ReadDeadline))
	})

	go h.writeLoop(c)

	h.readLoop(c)

	// Transport disconnect is not an error; it just clears routing state.
	h.Hub.DropConn(c)
	c.close()
	log.Debug().Str("conn", c.id).Msg("Relay connection closed")
}

// writeLoop is the only goroutine allowed to write on the socket. It
// also carries the keepalive pings so writes never interleave.
func (h *StreamHandler) writeLoop(c *wsConn) {
	ticker := time.NewTicker(h.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case env := <-c.sendCh:
			if err := c.conn.WriteJSON(env); err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("Relay write failed")
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				c.close()
				return
			}
		}
	}
}

func (h *StreamHandler) readLoop(c *wsConn) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(h.ReadDeadline))

		var env relay.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// Malformed input from an untrusted peer must never take
			// the relay down.
			log.Warn().Err(err).Str("conn", c.id).Msg("Bad relay message dropped")
			continue
		}

		switch env.Type {
		case relay.EventRegisterAgent:
			h.Hub.RegisterAgent(c, env)
		case relay.EventWatchStream:
			h.Hub.Subscribe(c, env)
		case relay.EventStopWatching:
			h.Hub.Unsubscribe(c, env)
		case relay.EventStatusUpdate:
			h.Hub.StatusUpdate(c, env)
		case relay.EventLiveFrame:
			h.Hub.RouteFrame(c, env)
		default:
			log.Debug().Str("type", env.Type).Str("conn", c.id).Msg("Unknown relay event ignored")
		}
	}
}
