package livechat

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry maps user ids to their live connection.
type Registry interface {
	// Register stores c under its user id and returns the connection it
	// replaced, if any. The replaced socket is left open.
	Register(c *Conn) (replaced *Conn)
	// Unregister removes c only while it is still the entry for its user.
	Unregister(c *Conn) bool
	// Lookup returns the current connection of userID.
	Lookup(userID string) (*Conn, bool)
	// Broadcast enqueues ev on every connection matching match and returns
	// how many accepted it.
	Broadcast(ev Event, match func(Identity) bool) int
	// Count returns how many connections match.
	Count(match func(Identity) bool) int
	// Identities returns the identities of the matching connections.
	Identities(match func(Identity) bool) []Identity
}

var registered = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "livechat_registered_connections",
	Help: "Connections currently registered under a user id.",
})

var dropped = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "livechat_dropped_events_total",
	Help: "Outbound events dropped because a connection queue was full or closed.",
})

func init() {
	prometheus.MustRegister(registered, dropped)
}

// Hub is the in-process Registry.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

// Register implements Registry.
func (h *Hub) Register(c *Conn) *Conn {
	uid := c.Identity().UserID
	if uid == "" {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.conns[uid]
	h.conns[uid] = c
	if prev == nil {
		registered.Inc()
	}
	return prev
}

// Unregister implements Registry.
func (h *Hub) Unregister(c *Conn) bool {
	uid := c.Identity().UserID
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.conns[uid]; ok && cur == c {
		delete(h.conns, uid)
		registered.Dec()
		return true
	}
	return false
}

// Lookup implements Registry.
func (h *Hub) Lookup(userID string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[userID]
	return c, ok
}

// Broadcast implements Registry. Matching runs under the read lock; sends
// happen after it is released and never block.
func (h *Hub) Broadcast(ev Event, match func(Identity) bool) int {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		if match(c.Identity()) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if c.Send(ev) {
			n++
		} else {
			dropped.Inc()
		}
	}
	return n
}

// Count implements Registry.
func (h *Hub) Count(match func(Identity) bool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.conns {
		if match(c.Identity()) {
			n++
		}
	}
	return n
}

// Identities implements Registry.
func (h *Hub) Identities(match func(Identity) bool) []Identity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Identity
	for _, c := range h.conns {
		if id := c.Identity(); match(id) {
			out = append(out, id)
		}
	}
	return out
}
