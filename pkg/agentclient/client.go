// Package agentclient is the agent side of the relay: a persistent
// WebSocket connection that registers the agent, emits frames and
// status updates, and reconnects forever with exponential backoff.
// Frames are best-effort; anything queued while the link is down is
// dropped rather than buffered.
package agentclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"workwatch.service/internal/core/relay"
)

const (
	sendBufferSize    = 8
	heartbeatInterval = 30 * time.Second
	dialTimeout       = 10 * time.Second
)

type Client struct {
	url     string
	agentID string
	sendCh  chan relay.Envelope
}

// New prepares a client for the relay at url, producing frames for
// agentID. Run must be started before anything is sent.
func New(url, agentID string) *Client {
	return &Client{
		url:     url,
		agentID: agentID,
		sendCh:  make(chan relay.Envelope, sendBufferSize),
	}
}

// SendFrame queues one screen frame. Returns false when the local queue
// is full; the caller just captures the next frame instead.
func (c *Client) SendFrame(frame json.RawMessage, capturedAt time.Time) bool {
	return c.enqueue(relay.Envelope{
		Type:      relay.EventLiveFrame,
		AgentID:   c.agentID,
		Frame:     frame,
		Timestamp: capturedAt.UnixMilli(),
	})
}

// SendStatus queues a presence update.
func (c *Client) SendStatus(status string) bool {
	return c.enqueue(relay.Envelope{
		Type:      relay.EventStatusUpdate,
		AgentID:   c.agentID,
		Status:    status,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (c *Client) enqueue(env relay.Envelope) bool {
	select {
	case c.sendCh <- env:
		return true
	default:
		return false
	}
}

// Run owns the connection for its whole life: dial, register, drain the
// send queue, and on any failure reconnect with backoff. It returns
// only when ctx is canceled; there is no other fatal path.
func (c *Client) Run(ctx context.Context) {
	for {
		conn, err := c.connect(ctx)
		if err != nil {
			// Only context cancellation gets the dial loop to give up.
			return
		}
		log.Info().Str("agent", c.agentID).Msg("Connected to relay")

		c.pump(ctx, conn)
		conn.Close()

		select {
		case <-ctx.Done():
			return
		default:
			log.Warn().Str("agent", c.agentID).Msg("Relay connection lost, reconnecting")
		}
	}
}

// connect dials until it succeeds, with unbounded exponential backoff,
// and announces the agent on the fresh connection.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	return backoff.Retry(ctx, func() (*websocket.Conn, error) {
		dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
		conn, _, err := dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Debug().Err(err).Str("agent", c.agentID).Msg("Relay dial failed, backing off")
			return nil, err
		}
		if err := conn.WriteJSON(relay.Envelope{Type: relay.EventRegisterAgent, AgentID: c.agentID}); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()))
}

// pump writes queued envelopes and heartbeats until the connection or
// the context dies. The reader goroutine only exists to notice closes.
func (c *Client) pump(ctx context.Context, conn *websocket.Conn) {
	readErr := make(chan struct{})
	go func() {
		defer close(readErr)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-readErr:
			return
		case env := <-c.sendCh:
			if err := conn.WriteJSON(env); err != nil {
				log.Debug().Err(err).Str("agent", c.agentID).Msg("Relay write failed")
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
