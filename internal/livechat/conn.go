package livechat

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// connIDCounter hands out process-unique connection ids.
var connIDCounter atomic.Uint64

// Identity is what a connection declared in its last join frame.
type Identity struct {
	UserID    string
	Username  string
	IsStaff   bool
	SessionID string
}

// Conn is one live socket. Outbound events are queued on send and written
// by the socket's write pump, which keeps per-socket FIFO order.
type Conn struct {
	id    uint64
	ws    *websocket.Conn
	send  chan Event
	done  chan struct{}
	once  sync.Once
	ident atomic.Pointer[Identity]
}

// NewConn wraps ws with an outbound queue of the given size. ws may be nil
// in tests that only inspect the queue.
func NewConn(ws *websocket.Conn, buffer int) *Conn {
	if buffer < 1 {
		buffer = 1
	}
	return &Conn{
		id:   connIDCounter.Add(1),
		ws:   ws,
		send: make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the process-unique connection id.
func (c *Conn) ID() uint64 { return c.id }

// Identity returns the identity set by the last join, or the zero value.
func (c *Conn) Identity() Identity {
	if p := c.ident.Load(); p != nil {
		return *p
	}
	return Identity{}
}

func (c *Conn) setIdentity(id Identity) { c.ident.Store(&id) }

// Send enqueues ev without blocking. It reports false when the queue is
// full or the connection is closed; the event is then dropped.
func (c *Conn) Send(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Close stops the write pump. It is safe to call more than once.
func (c *Conn) Close() { c.once.Do(func() { close(c.done) }) }

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }
