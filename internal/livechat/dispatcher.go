package livechat

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

// SessionStore is the persistence the dispatcher writes through to.
type SessionStore interface {
	AppendMessage(ctx context.Context, sessionID, senderID, content string, isStaff bool, files []string) (*domain.LiveChatMessage, error)
	CloseSession(ctx context.Context, sessionID string) error
}

var frames = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "livechat_frames_total",
		Help: "Inbound websocket frames by type and result.",
	},
	[]string{"type", "result"},
)

func init() {
	prometheus.MustRegister(frames)
}

var tracer = otel.Tracer("livechat")

// Dispatcher routes decoded frames to the right set of connections.
type Dispatcher struct {
	reg      Registry
	store    SessionStore
	fanout   Fanout
	presence Presence
	log      zerolog.Logger
	now      func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithFanout replaces local delivery, e.g. with a broker-backed fanout.
func WithFanout(f Fanout) DispatcherOption { return func(d *Dispatcher) { d.fanout = f } }

// WithPresence replaces the registry-backed staff presence.
func WithPresence(p Presence) DispatcherOption { return func(d *Dispatcher) { d.presence = p } }

// WithLogger sets the dispatcher logger.
func WithLogger(l zerolog.Logger) DispatcherOption { return func(d *Dispatcher) { d.log = l } }

// WithClock sets the time source for event timestamps.
func WithClock(now func() time.Time) DispatcherOption { return func(d *Dispatcher) { d.now = now } }

// NewDispatcher returns a dispatcher that delivers through reg unless a
// fanout option says otherwise.
func NewDispatcher(reg Registry, store SessionStore, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		reg:      reg,
		store:    store,
		fanout:   LocalFanout{Registry: reg},
		presence: LocalPresence{Registry: reg},
		log:      log.Logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Registry returns the registry the dispatcher routes through.
func (d *Dispatcher) Registry() Registry { return d.reg }

// Handle decodes raw and acts on it. A rejected frame is answered with an
// error event on c and returned; c stays open either way.
func (d *Dispatcher) Handle(ctx context.Context, c *Conn, raw []byte) error {
	f, err := Decode(raw)
	if err != nil {
		var fe *FrameError
		if errors.As(err, &fe) {
			d.reject(c, fe)
		}
		frames.WithLabelValues("unknown", "rejected").Inc()
		return err
	}

	ctx, span := tracer.Start(ctx, "livechat.Handle")
	defer span.End()
	span.SetAttributes(attribute.String("frame.type", f.Type()))

	switch f := f.(type) {
	case JoinFrame:
		d.join(ctx, c, f)
	case MessageFrame:
		d.message(ctx, c, f)
	case TypingFrame:
		err = d.typing(ctx, c, f)
	case FileSharedFrame:
		err = d.fileShared(ctx, c, f)
	case AgentTransferFrame:
		err = d.agentTransfer(ctx, c, f)
	case CloseSessionFrame:
		d.closeSession(ctx, c, f)
	}
	if err != nil {
		frames.WithLabelValues(f.Type(), "rejected").Inc()
		return err
	}
	frames.WithLabelValues(f.Type(), "ok").Inc()
	return nil
}

// Leave tears down c: it is removed from the registry if still current and
// its session is told the user left.
func (d *Dispatcher) Leave(ctx context.Context, c *Conn) {
	id := c.Identity()
	if id.UserID == "" || !d.reg.Unregister(c) {
		return
	}
	if id.SessionID != "" {
		d.publish(ctx, Audience{Scope: ScopeSession, SessionID: id.SessionID, Except: id.UserID}, Event{
			Type:      EventUserLeft,
			SessionID: id.SessionID,
			UserID:    id.UserID,
			Username:  id.Username,
			IsAgent:   id.IsStaff,
			Timestamp: d.now(),
		})
	}
	if id.IsStaff {
		if err := d.presence.Offline(ctx, id.UserID); err != nil {
			d.log.Warn().Err(err).Str("user_id", id.UserID).Msg("presence offline failed")
		}
		d.announceAgents(ctx)
	}
}

func (d *Dispatcher) join(ctx context.Context, c *Conn, f JoinFrame) {
	if prev := c.Identity(); prev.UserID != "" && prev.UserID != f.UserID {
		d.reg.Unregister(c)
	}
	id := Identity{UserID: f.UserID, Username: f.Username, IsStaff: f.IsAgent, SessionID: f.SessionID}
	c.setIdentity(id)
	if replaced := d.reg.Register(c); replaced != nil && replaced != c {
		d.log.Debug().Str("user_id", id.UserID).Msg("connection replaced by newer join")
	}

	ev := Event{
		UserID:    id.UserID,
		Username:  id.Username,
		IsAgent:   id.IsStaff,
		SessionID: id.SessionID,
		Timestamp: d.now(),
	}
	switch {
	case id.IsStaff && id.SessionID != "":
		ev.Type = EventAgentJoined
		d.publish(ctx, Audience{Scope: ScopeSession, SessionID: id.SessionID, Except: id.UserID}, ev)
	case id.IsStaff:
		ev.Type = EventAgentJoined
		d.publish(ctx, Audience{Scope: ScopeLobby}, ev)
	case id.SessionID != "":
		ev.Type = EventUserJoined
		d.publish(ctx, Audience{Scope: ScopeSession, SessionID: id.SessionID, Except: id.UserID}, ev)
	}

	if id.IsStaff {
		if err := d.presence.Online(ctx, id.UserID); err != nil {
			d.log.Warn().Err(err).Str("user_id", id.UserID).Msg("presence online failed")
		}
		d.announceAgents(ctx)
	}
}

// sender resolves who sent a frame: the joined identity of c, else the
// registered connection for claimed, else an anonymous sender.
func (d *Dispatcher) sender(c *Conn, claimed string) Identity {
	if id := c.Identity(); id.UserID != "" {
		return id
	}
	if claimed != "" {
		if other, ok := d.reg.Lookup(claimed); ok {
			return other.Identity()
		}
	}
	return Identity{UserID: claimed, Username: "Unknown"}
}

func (d *Dispatcher) message(ctx context.Context, c *Conn, f MessageFrame) {
	from := d.sender(c, f.UserID)
	ev := Event{
		Type:      TypeMessage,
		SessionID: f.SessionID,
		UserID:    from.UserID,
		Sender:    from.Username,
		IsAgent:   from.IsStaff,
		Content:   f.Content,
		Files:     f.Files,
		Timestamp: d.now(),
	}

	if f.SessionID == "" {
		d.publish(ctx, Audience{Scope: ScopeAll, Except: from.UserID}, ev)
		return
	}

	// Delivery does not depend on the write succeeding.
	msg, err := d.store.AppendMessage(ctx, f.SessionID, from.UserID, f.Content, from.IsStaff, f.Files)
	if err != nil {
		d.log.Error().Err(err).Str("session_id", f.SessionID).Msg("failed to persist live chat message")
	} else {
		ev.MessageID = msg.ID
		ev.Timestamp = msg.CreatedAt
	}
	d.publish(ctx, Audience{Scope: ScopeSession, SessionID: f.SessionID, Except: from.UserID}, ev)
}

func (d *Dispatcher) typing(ctx context.Context, c *Conn, f TypingFrame) error {
	from, err := d.joined(c)
	if err != nil {
		return err
	}
	typing := f.IsTyping
	d.publish(ctx, Audience{Scope: ScopeSession, SessionID: f.SessionID, Except: from.UserID}, Event{
		Type:      TypeTyping,
		SessionID: f.SessionID,
		UserID:    from.UserID,
		Username:  from.Username,
		IsAgent:   from.IsStaff,
		IsTyping:  &typing,
		Timestamp: d.now(),
	})
	return nil
}

func (d *Dispatcher) fileShared(ctx context.Context, c *Conn, f FileSharedFrame) error {
	from, err := d.joined(c)
	if err != nil {
		return err
	}
	d.publish(ctx, Audience{Scope: ScopeSession, SessionID: f.SessionID, Except: from.UserID}, Event{
		Type:      TypeFileShared,
		SessionID: f.SessionID,
		UserID:    from.UserID,
		Sender:    from.Username,
		IsAgent:   from.IsStaff,
		FileID:    f.FileID,
		FileURL:   f.FileURL,
		FileName:  f.FileName,
		Timestamp: d.now(),
	})
	return nil
}

func (d *Dispatcher) agentTransfer(ctx context.Context, c *Conn, f AgentTransferFrame) error {
	from, err := d.joined(c)
	if err != nil {
		return err
	}
	if !from.IsStaff {
		err := &FrameError{Code: CodeInvalidFrame, Reason: "only agents can transfer a session"}
		d.reject(c, err)
		return err
	}
	name := f.FromAgentName
	if name == "" {
		name = from.Username
	}
	ev := Event{
		SessionID:     f.SessionID,
		UserID:        from.UserID,
		FromAgentName: name,
		ToAgentID:     f.ToAgentID,
		Reason:        f.Reason,
		TransferID:    f.TransferID,
		Timestamp:     d.now(),
	}

	req := ev
	req.Type = EventTransferRequest
	d.publish(ctx, Audience{Scope: ScopeUser, UserID: f.ToAgentID}, req)

	info := ev
	info.Type = TypeAgentTransfer
	d.publish(ctx, Audience{Scope: ScopeSession, SessionID: f.SessionID, Except: from.UserID}, info)
	return nil
}

func (d *Dispatcher) closeSession(ctx context.Context, c *Conn, f CloseSessionFrame) {
	from := c.Identity()
	d.publish(ctx, Audience{Scope: ScopeSession, SessionID: f.SessionID}, Event{
		Type:      EventSessionClosed,
		SessionID: f.SessionID,
		UserID:    from.UserID,
		Username:  from.Username,
		IsAgent:   from.IsStaff,
		Timestamp: d.now(),
	})
	if err := d.store.CloseSession(ctx, f.SessionID); err != nil {
		d.log.Error().Err(err).Str("session_id", f.SessionID).Msg("failed to close live chat session")
	}
}

func (d *Dispatcher) joined(c *Conn) (Identity, error) {
	id := c.Identity()
	if id.UserID == "" {
		err := &FrameError{Code: CodeNotJoined, Reason: "send a join frame first"}
		d.reject(c, err)
		return id, err
	}
	return id, nil
}

// RefreshPresence marks every staff member connected to this process as
// online again.
func (d *Dispatcher) RefreshPresence(ctx context.Context) {
	for _, id := range d.reg.Identities(func(id Identity) bool { return id.IsStaff }) {
		if err := d.presence.Online(ctx, id.UserID); err != nil {
			d.log.Warn().Err(err).Str("user_id", id.UserID).Msg("presence refresh failed")
		}
	}
}

// KeepPresence calls RefreshPresence every interval until ctx ends.
func (d *Dispatcher) KeepPresence(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			d.RefreshPresence(ctx)
		}
	}
}

// announceAgents tells customers how many agents are connected.
func (d *Dispatcher) announceAgents(ctx context.Context) {
	n, err := d.presence.Count(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("agent presence count failed")
		return
	}
	available := n > 0
	d.publish(ctx, Audience{Scope: ScopeCustomers}, Event{
		Type:      EventAgentOnline,
		Count:     &n,
		Available: &available,
		Timestamp: d.now(),
	})
}

func (d *Dispatcher) publish(ctx context.Context, a Audience, ev Event) {
	if err := d.fanout.Publish(ctx, a, ev); err != nil {
		d.log.Error().Err(err).Str("event", ev.Type).Str("scope", string(a.Scope)).Msg("live chat publish failed")
	}
}

func (d *Dispatcher) reject(c *Conn, fe *FrameError) {
	c.Send(Event{Type: EventError, Code: fe.Code, Error: fe.Reason, Timestamp: d.now()})
}
