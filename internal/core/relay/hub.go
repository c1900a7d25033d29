package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type eventKind int

const (
	evTrack eventKind = iota
	evRegisterAgent
	evSubscribe
	evUnsubscribe
	evStatus
	evFrame
	evDrop
)

type event struct {
	kind eventKind
	conn Conn
	env  Envelope
}

// Hub is the single routing authority for the relay. Every membership
// change and every frame passes through one goroutine, so no two frames
// for the same agent can ever be processed out of the order they were
// accepted. Forwarding is fire-and-forget: delivery to each viewer is a
// non-blocking enqueue, and a slow viewer loses frames without holding
// up the producer or the other viewers.
type Hub struct {
	registry *Registry
	cache    *FrameCache
	events   chan event
	now      func() time.Time
}

// NewHub wires a hub over the given frame cache.
func NewHub(cache *FrameCache) *Hub {
	return &Hub{
		registry: NewRegistry(),
		cache:    cache,
		events:   make(chan event, 256),
		now:      time.Now,
	}
}

// Run consumes events until ctx is canceled. It must be running before
// any connection is attached.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("Relay hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Relay hub shutting down")
			return
		case ev := <-h.events:
			h.handle(ev)
		}
	}
}

// Attach announces a new transport connection to the hub.
func (h *Hub) Attach(conn Conn) {
	h.events <- event{kind: evTrack, conn: conn}
}

// RegisterAgent binds conn as the frame producer for the agent named in
// env.
func (h *Hub) RegisterAgent(conn Conn, env Envelope) {
	h.events <- event{kind: evRegisterAgent, conn: conn, env: env}
}

// Subscribe declares conn's interest in one agent's stream.
func (h *Hub) Subscribe(conn Conn, env Envelope) {
	h.events <- event{kind: evSubscribe, conn: conn, env: env}
}

// Unsubscribe withdraws conn's interest in one agent's stream.
func (h *Hub) Unsubscribe(conn Conn, env Envelope) {
	h.events <- event{kind: evUnsubscribe, conn: conn, env: env}
}

// StatusUpdate rebroadcasts a presence report to every connection except
// the sender.
func (h *Hub) StatusUpdate(conn Conn, env Envelope) {
	h.events <- event{kind: evStatus, conn: conn, env: env}
}

// RouteFrame caches a frame and forwards it to the agent's viewers.
func (h *Hub) RouteFrame(conn Conn, env Envelope) {
	h.events <- event{kind: evFrame, conn: conn, env: env}
}

// DropConn removes a disconnected transport connection from all routing
// state. Not an error path; agents and viewers come and go.
func (h *Hub) DropConn(conn Conn) {
	h.events <- event{kind: evDrop, conn: conn}
}

func (h *Hub) handle(ev event) {
	switch ev.kind {
	case evTrack:
		h.registry.Track(ev.conn)
	case evRegisterAgent:
		if ev.env.AgentID == "" {
			log.Warn().Str("conn", ev.conn.ID()).Msg("register-agent without agentId dropped")
			return
		}
		h.registry.BindAgent(ev.env.AgentID, ev.conn)
		log.Info().Str("agent", ev.env.AgentID).Str("conn", ev.conn.ID()).Msg("Agent registered")
	case evSubscribe:
		if ev.env.AgentID == "" {
			return
		}
		h.registry.Subscribe(ev.env.AgentID, ev.conn)
		log.Debug().Str("agent", ev.env.AgentID).Str("conn", ev.conn.ID()).Msg("Viewer subscribed")
	case evUnsubscribe:
		if ev.env.AgentID == "" {
			return
		}
		h.registry.Unsubscribe(ev.env.AgentID, ev.conn)
	case evStatus:
		h.broadcastStatus(ev.conn, ev.env)
	case evFrame:
		h.routeFrame(ev.env)
	case evDrop:
		h.registry.Drop(ev.conn)
		log.Debug().Str("conn", ev.conn.ID()).Msg("Connection dropped from relay")
	}
}

// broadcastStatus relays a presence report to all other connections.
// Presence is a side channel: it ignores per-agent subscriptions.
func (h *Hub) broadcastStatus(origin Conn, env Envelope) {
	if env.AgentID == "" {
		log.Warn().Str("conn", origin.ID()).Msg("status-update without agentId dropped")
		return
	}
	env.Type = EventStatusUpdate
	for id, conn := range h.registry.Conns() {
		if id == origin.ID() {
			continue
		}
		conn.Send(env)
	}
}

// routeFrame updates the frame cache and forwards to current viewers.
// Malformed frames from a misbehaving agent are dropped, never fatal.
func (h *Hub) routeFrame(env Envelope) {
	if env.AgentID == "" || len(env.Frame) == 0 {
		log.Warn().Msg("Malformed live-frame dropped")
		return
	}

	// The timestamp comes from the agent's clock, which may be skewed.
	// Never let it run ahead of receipt time.
	capturedAt := h.now()
	if env.Timestamp > 0 {
		if t := time.UnixMilli(env.Timestamp); t.Before(capturedAt) {
			capturedAt = t
		}
	}
	h.cache.Put(env.AgentID, env.Frame, capturedAt)

	viewers := h.registry.Viewers(env.AgentID)
	if len(viewers) == 0 {
		// Cached for the polling fallback; nobody is watching live.
		return
	}

	env.Type = EventLiveFrame
	for _, conn := range viewers {
		if !conn.Send(env) {
			log.Debug().Str("agent", env.AgentID).Str("conn", conn.ID()).Msg("Viewer queue full, frame dropped")
		}
	}
}
