package livechat

import "context"

// Scope selects the recipients of a broadcast.
type Scope string

const (
	ScopeSession Scope = "session" // participants of SessionID
	ScopeUser    Scope = "user"    // the connection of UserID
	ScopeAll     Scope = "all"     // every registered connection
	// ScopeCustomers is every non-staff connection.
	ScopeCustomers Scope = "customers"
	// ScopeLobby is every non-staff connection that joined without a
	// session (legacy unscoped chat).
	ScopeLobby Scope = "lobby"
)

// Audience is a serializable broadcast predicate, so it can travel over a
// broker to other processes. Except drops the sender's own connection.
type Audience struct {
	Scope     Scope  `json:"scope"`
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Except    string `json:"except,omitempty"`
}

// Match reports whether a connection with identity id is in the audience.
func (a Audience) Match(id Identity) bool {
	if a.Except != "" && id.UserID == a.Except {
		return false
	}
	switch a.Scope {
	case ScopeSession:
		return a.SessionID != "" && id.SessionID == a.SessionID
	case ScopeUser:
		return id.UserID == a.UserID
	case ScopeAll:
		return true
	case ScopeCustomers:
		return !id.IsStaff
	case ScopeLobby:
		return !id.IsStaff && id.SessionID == ""
	}
	return false
}

// Fanout delivers events to an audience, locally or across processes.
type Fanout interface {
	Publish(ctx context.Context, a Audience, ev Event) error
}

// LocalFanout delivers straight to the in-process registry.
type LocalFanout struct{ Registry Registry }

// Publish implements Fanout.
func (f LocalFanout) Publish(_ context.Context, a Audience, ev Event) error {
	f.Registry.Broadcast(ev, a.Match)
	return nil
}

// Presence tracks which staff members are connected. Online is repeated
// for as long as the connection stays open.
type Presence interface {
	Online(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
	Count(ctx context.Context) (int, error)
}

// LocalPresence counts staff connections in the registry. Online and
// Offline are no-ops because the registry already reflects them.
type LocalPresence struct{ Registry Registry }

func (LocalPresence) Online(context.Context, string) error  { return nil }
func (LocalPresence) Offline(context.Context, string) error { return nil }

// Count implements Presence.
func (p LocalPresence) Count(context.Context) (int, error) {
	return p.Registry.Count(func(id Identity) bool { return id.IsStaff }), nil
}
