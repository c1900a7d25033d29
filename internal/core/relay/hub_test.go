package relay

import (
	"encoding/json"
	"testing"
	"time"
)

// newTestHub returns a hub whose events are dispatched synchronously
// through handle, so tests observe routing without running the loop.
func newTestHub(freshness time.Duration) (*Hub, *FrameCache) {
	cache := NewFrameCache(freshness)
	return NewHub(cache), cache
}

func attach(h *Hub, conns ...Conn) {
	for _, c := range conns {
		h.handle(event{kind: evTrack, conn: c})
	}
}

func frameEnv(agentID, payload string) Envelope {
	return Envelope{Type: EventLiveFrame, AgentID: agentID, Frame: json.RawMessage(payload)}
}

func TestHub_FrameWithNoViewersIsCachedNotDelivered(t *testing.T) {
	h, cache := newTestHub(30 * time.Second)
	agent := &fakeConn{id: "a1"}
	bystander := &fakeConn{id: "v1"}
	attach(h, agent, bystander)

	h.handle(event{kind: evRegisterAgent, conn: agent, env: Envelope{AgentID: "emp-1"}})
	h.handle(event{kind: evFrame, conn: agent, env: frameEnv("emp-1", `"f1"`)})

	if _, _, ok := cache.Latest("emp-1"); !ok {
		t.Error("frame should be cached even with zero viewers")
	}
	if len(bystander.sent) != 0 {
		t.Errorf("unsubscribed connection received %d envelopes, want 0", len(bystander.sent))
	}
}

func TestHub_FrameGoesOnlyToThatAgentsViewers(t *testing.T) {
	h, _ := newTestHub(30 * time.Second)
	agent := &fakeConn{id: "a1"}
	v1 := &fakeConn{id: "v1"}
	v2 := &fakeConn{id: "v2"}
	attach(h, agent, v1, v2)

	h.handle(event{kind: evSubscribe, conn: v1, env: Envelope{AgentID: "emp-1"}})
	h.handle(event{kind: evSubscribe, conn: v2, env: Envelope{AgentID: "emp-2"}})

	h.handle(event{kind: evFrame, conn: agent, env: frameEnv("emp-1", `"f1"`)})

	if len(v1.sent) != 1 {
		t.Fatalf("subscribed viewer got %d envelopes, want 1", len(v1.sent))
	}
	if v1.sent[0].Type != EventLiveFrame || v1.sent[0].AgentID != "emp-1" {
		t.Errorf("unexpected envelope %+v", v1.sent[0])
	}
	if len(v2.sent) != 0 {
		t.Errorf("viewer of a different agent got %d envelopes, want 0", len(v2.sent))
	}
}

func TestHub_LateSubscriberMissesLiveFrameButPollingServesIt(t *testing.T) {
	h, cache := newTestHub(30 * time.Second)
	agent := &fakeConn{id: "a1"}
	late := &fakeConn{id: "v1"}
	attach(h, agent, late)

	h.handle(event{kind: evRegisterAgent, conn: agent, env: Envelope{AgentID: "emp-1"}})
	h.handle(event{kind: evFrame, conn: agent, env: frameEnv("emp-1", `"f1"`)})

	// Subscribes after the frame already went by.
	h.handle(event{kind: evSubscribe, conn: late, env: Envelope{AgentID: "emp-1"}})

	if len(late.sent) != 0 {
		t.Error("late subscriber must not receive the missed frame on the live channel")
	}
	payload, _, ok := cache.Latest("emp-1")
	if !ok || string(payload) != `"f1"` {
		t.Errorf("polling fallback payload = %q, ok=%v; want the missed frame", payload, ok)
	}
}

func TestHub_MalformedFramesAreDropped(t *testing.T) {
	h, cache := newTestHub(30 * time.Second)
	agent := &fakeConn{id: "a1"}
	viewer := &fakeConn{id: "v1"}
	attach(h, agent, viewer)
	h.handle(event{kind: evSubscribe, conn: viewer, env: Envelope{AgentID: "emp-1"}})

	h.handle(event{kind: evFrame, conn: agent, env: Envelope{AgentID: "", Frame: json.RawMessage(`"f"`)}})
	h.handle(event{kind: evFrame, conn: agent, env: Envelope{AgentID: "emp-1"}}) // empty payload

	if len(viewer.sent) != 0 {
		t.Error("malformed frames must not be forwarded")
	}
	if _, _, ok := cache.Latest("emp-1"); ok {
		t.Error("malformed frames must not be cached")
	}
}

func TestHub_FutureTimestampClampedToReceiptTime(t *testing.T) {
	h, cache := newTestHub(30 * time.Second)
	base := time.Now()
	h.now = func() time.Time { return base }
	cache.now = func() time.Time { return base }

	agent := &fakeConn{id: "a1"}
	attach(h, agent)

	env := frameEnv("emp-1", `"f1"`)
	env.Timestamp = base.Add(time.Minute).UnixMilli()
	h.handle(event{kind: evFrame, conn: agent, env: env})

	_, age, ok := cache.Latest("emp-1")
	if !ok {
		t.Fatal("frame should be cached")
	}
	if age < 0 {
		t.Errorf("age = %v; a frame must never read as captured in the future", age)
	}
}

func TestHub_SlowViewerLosesFrameOthersStillReceive(t *testing.T) {
	h, _ := newTestHub(30 * time.Second)
	agent := &fakeConn{id: "a1"}
	slow := &fakeConn{id: "v1", full: true}
	healthy := &fakeConn{id: "v2"}
	attach(h, agent, slow, healthy)

	h.handle(event{kind: evSubscribe, conn: slow, env: Envelope{AgentID: "emp-1"}})
	h.handle(event{kind: evSubscribe, conn: healthy, env: Envelope{AgentID: "emp-1"}})

	h.handle(event{kind: evFrame, conn: agent, env: frameEnv("emp-1", `"f1"`)})

	if len(healthy.sent) != 1 {
		t.Errorf("healthy viewer got %d envelopes, want 1; a slow peer must not block delivery", len(healthy.sent))
	}
}

func TestHub_StatusUpdateReachesEveryoneExceptSender(t *testing.T) {
	h, _ := newTestHub(30 * time.Second)
	agent := &fakeConn{id: "a1"}
	v1 := &fakeConn{id: "v1"}
	v2 := &fakeConn{id: "v2"}
	attach(h, agent, v1, v2)

	// Presence ignores subscriptions entirely; v1 and v2 watch nothing.
	h.handle(event{kind: evStatus, conn: agent, env: Envelope{AgentID: "emp-1", Status: "idle"}})

	if len(agent.sent) != 0 {
		t.Error("status update must not echo back to its sender")
	}
	for _, v := range []*fakeConn{v1, v2} {
		if len(v.sent) != 1 || v.sent[0].Status != "idle" || v.sent[0].Type != EventStatusUpdate {
			t.Errorf("connection %s: envelopes %+v, want one idle status-update", v.id, v.sent)
		}
	}
}

func TestHub_DroppedViewerGetsNoFurtherFrames(t *testing.T) {
	h, _ := newTestHub(30 * time.Second)
	agent := &fakeConn{id: "a1"}
	viewer := &fakeConn{id: "v1"}
	attach(h, agent, viewer)
	h.handle(event{kind: evSubscribe, conn: viewer, env: Envelope{AgentID: "emp-1"}})

	h.handle(event{kind: evDrop, conn: viewer})
	h.handle(event{kind: evFrame, conn: agent, env: frameEnv("emp-1", `"f1"`)})

	if len(viewer.sent) != 0 {
		t.Error("frames must never reach a dropped connection")
	}
}

func TestHub_AgentReconnectReplacesBinding(t *testing.T) {
	h, _ := newTestHub(30 * time.Second)
	oldConn := &fakeConn{id: "a1"}
	newConn := &fakeConn{id: "a2"}
	attach(h, oldConn, newConn)

	h.handle(event{kind: evRegisterAgent, conn: oldConn, env: Envelope{AgentID: "emp-1"}})
	h.handle(event{kind: evRegisterAgent, conn: newConn, env: Envelope{AgentID: "emp-1"}})
	// Stale disconnect arriving after the replacement must not clear
	// the new binding's routing.
	h.handle(event{kind: evDrop, conn: oldConn})

	got, ok := h.registry.AgentConn("emp-1")
	if !ok || got != newConn {
		t.Errorf("AgentConn after reconnect = %v (ok=%v), want the new connection", got, ok)
	}
}
