package relay

import (
	"sync"
	"time"
)

// frameEntry is the latest known frame for one agent.
type frameEntry struct {
	payload    []byte
	capturedAt time.Time
}

// FrameCache holds the most recent frame per agent. It backs the HTTP
// polling fallback, so unlike the registry it is read outside the hub
// goroutine and carries its own lock. Entries past the freshness window
// are reported as absent but not evicted; the next frame overwrites
// them anyway.
type FrameCache struct {
	mu        sync.RWMutex
	entries   map[string]frameEntry
	freshness time.Duration
	now       func() time.Time
}

// NewFrameCache returns a cache that treats frames older than freshness
// as absent.
func NewFrameCache(freshness time.Duration) *FrameCache {
	return &FrameCache{
		entries:   make(map[string]frameEntry),
		freshness: freshness,
		now:       time.Now,
	}
}

// Put stores the latest frame for agentID. The last frame received
// always wins, but capturedAt never moves backwards: a reconnecting
// agent stamping frames with a skewed clock must not turn a fresh
// entry stale and blank the polling fallback.
func (c *FrameCache) Put(agentID string, payload []byte, capturedAt time.Time) {
	c.mu.Lock()
	if prev, ok := c.entries[agentID]; ok && capturedAt.Before(prev.capturedAt) {
		capturedAt = prev.capturedAt
	}
	c.entries[agentID] = frameEntry{payload: payload, capturedAt: capturedAt}
	c.mu.Unlock()
}

// Latest returns the cached frame for agentID and its age. ok is false
// when there is no entry or the entry has aged past the freshness
// window.
func (c *FrameCache) Latest(agentID string) (payload []byte, age time.Duration, ok bool) {
	c.mu.RLock()
	entry, exists := c.entries[agentID]
	c.mu.RUnlock()
	if !exists {
		return nil, 0, false
	}
	age = c.now().Sub(entry.capturedAt)
	if age >= c.freshness {
		return nil, 0, false
	}
	return entry.payload, age, true
}
