// Package services – LiveChatService and TransferService
//
// LiveChatService persists live chat sessions and their message log. It is
// also the write-through store of the websocket dispatcher, and mirrors
// HTTP-side changes (messages posted over REST, sessions closed by staff)
// to connected sockets through an optional livechat.Fanout.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/livechat"
	"github.com/tbourn/solar-support-backend/internal/repo"
)

// NewSession is the input of LiveChatService.Create.
type NewSession struct {
	UserID     string
	GuestName  string
	GuestEmail string
	Page       string
}

// SessionUpdate carries the fields of a partial session update. An empty
// AssignedTo unassigns the session.
type SessionUpdate struct {
	Status     *string
	AssignedTo *string
}

// LiveChatService manages sessions and their messages.
type LiveChatService struct {
	DB *gorm.DB

	// Fanout, when set, receives events for changes made over HTTP.
	Fanout livechat.Fanout

	// MessageLimit caps Messages; zero returns the whole log.
	MessageLimit int

	Now func() time.Time
}

var _ livechat.SessionStore = (*LiveChatService)(nil)

// NewLiveChatService constructs a LiveChatService.
func NewLiveChatService(db *gorm.DB, fanout livechat.Fanout) *LiveChatService {
	return &LiveChatService{DB: db, Fanout: fanout, Now: time.Now}
}

// Create opens an active session for a user or a guest.
func (s *LiveChatService) Create(ctx context.Context, in NewSession) (*domain.LiveChatSession, error) {
	tr := otel.Tracer("services/LiveChatService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	sess := &domain.LiveChatSession{
		GuestName:  strings.TrimSpace(in.GuestName),
		GuestEmail: strings.TrimSpace(in.GuestEmail),
		Page:       strings.TrimSpace(in.Page),
		Status:     domain.SessionActive,
	}
	if uid := strings.TrimSpace(in.UserID); uid != "" {
		sess.UserID = &uid
	} else if sess.GuestName == "" {
		return nil, ErrMissingField
	}
	if err := repo.CreateSession(ctx, s.DB, sess); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))
	return sess, nil
}

// Get returns a session by id.
func (s *LiveChatService) Get(ctx context.Context, id string) (*domain.LiveChatSession, error) {
	tr := otel.Tracer("services/LiveChatService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	sess, err := repo.GetSession(ctx, s.DB, id)
	return sess, mapNotFound(err, ErrSessionNotFound)
}

// List returns sessions filtered by status and assigned agent.
func (s *LiveChatService) List(ctx context.Context, status, agentID string) ([]domain.LiveChatSession, error) {
	tr := otel.Tracer("services/LiveChatService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.String("status", status), attribute.String("agent.id", agentID)),
	)
	defer span.End()

	if status != "" && !domain.ValidSessionStatus(status) {
		return nil, ErrInvalidStatus
	}
	return repo.ListSessions(ctx, s.DB, repo.SessionFilter{Status: status, AgentID: agentID})
}

// Update changes status or assignment. Closing stamps the close time and
// tells connected participants.
func (s *LiveChatService) Update(ctx context.Context, id string, u SessionUpdate) (*domain.LiveChatSession, error) {
	tr := otel.Tracer("services/LiveChatService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	cur, err := repo.GetSession(ctx, s.DB, id)
	if err != nil {
		return nil, mapNotFound(err, ErrSessionNotFound)
	}
	updates := map[string]any{}
	closing := false
	if u.Status != nil && *u.Status != cur.Status {
		if !domain.ValidSessionStatus(*u.Status) {
			return nil, ErrInvalidStatus
		}
		updates["status"] = *u.Status
		if *u.Status == domain.SessionClosed {
			updates["closed_at"] = s.Now().UTC()
			closing = true
		} else {
			updates["closed_at"] = nil
		}
	}
	if u.AssignedTo != nil {
		if a := strings.TrimSpace(*u.AssignedTo); a == "" {
			updates["assigned_to"] = nil
		} else {
			updates["assigned_to"] = a
		}
	}
	if len(updates) == 0 {
		return cur, nil
	}
	if err := repo.UpdateSession(ctx, s.DB, id, updates); err != nil {
		return nil, mapNotFound(err, ErrSessionNotFound)
	}
	if closing {
		s.publish(ctx, livechat.Audience{Scope: livechat.ScopeSession, SessionID: id}, livechat.Event{
			Type:      livechat.EventSessionClosed,
			SessionID: id,
			Timestamp: s.Now().UTC(),
		})
	}
	sess, err := repo.GetSession(ctx, s.DB, id)
	return sess, mapNotFound(err, ErrSessionNotFound)
}

// Messages returns the message log of a session, oldest first.
func (s *LiveChatService) Messages(ctx context.Context, id string) ([]domain.LiveChatMessage, error) {
	tr := otel.Tracer("services/LiveChatService")
	ctx, span := tr.Start(ctx, "Messages", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	if _, err := repo.GetSession(ctx, s.DB, id); err != nil {
		return nil, mapNotFound(err, ErrSessionNotFound)
	}
	return repo.ListLiveChatMessages(ctx, s.DB, id, s.MessageLimit)
}

// Post appends a message sent over HTTP and relays it to the session's
// sockets. senderName labels the relayed event.
func (s *LiveChatService) Post(ctx context.Context, id, senderID, senderName, content string, isStaff bool, files []string) (*domain.LiveChatMessage, error) {
	m, err := s.AppendMessage(ctx, id, senderID, content, isStaff, files)
	if err != nil {
		return nil, err
	}
	if senderName == "" {
		senderName = "Unknown"
	}
	s.publish(ctx, livechat.Audience{Scope: livechat.ScopeSession, SessionID: id, Except: senderID}, livechat.Event{
		Type:      livechat.TypeMessage,
		SessionID: id,
		UserID:    senderID,
		Sender:    senderName,
		IsAgent:   isStaff,
		MessageID: m.ID,
		Content:   m.Message,
		Files:     m.Files,
		Timestamp: m.CreatedAt,
	})
	return m, nil
}

// AppendMessage implements livechat.SessionStore. The session must exist;
// its status is not checked, so closed sessions still accept messages.
func (s *LiveChatService) AppendMessage(ctx context.Context, sessionID, senderID, content string, isStaff bool, files []string) (*domain.LiveChatMessage, error) {
	tr := otel.Tracer("services/LiveChatService")
	ctx, span := tr.Start(ctx, "AppendMessage", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" && len(files) == 0 {
		return nil, ErrMissingField
	}
	if _, err := repo.GetSession(ctx, s.DB, sessionID); err != nil {
		return nil, mapNotFound(err, ErrSessionNotFound)
	}
	m := &domain.LiveChatMessage{SessionID: sessionID, Message: content, IsStaff: isStaff, Files: files}
	if senderID != "" {
		m.SenderID = &senderID
	}
	if err := repo.CreateLiveChatMessage(ctx, s.DB, m); err != nil {
		return nil, err
	}
	return m, nil
}

// CloseSession implements livechat.SessionStore.
func (s *LiveChatService) CloseSession(ctx context.Context, sessionID string) error {
	tr := otel.Tracer("services/LiveChatService")
	ctx, span := tr.Start(ctx, "CloseSession", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	err := repo.UpdateSession(ctx, s.DB, sessionID, map[string]any{
		"status":    domain.SessionClosed,
		"closed_at": s.Now().UTC(),
	})
	return mapNotFound(err, ErrSessionNotFound)
}

func (s *LiveChatService) publish(ctx context.Context, a livechat.Audience, ev livechat.Event) {
	if s.Fanout == nil {
		return
	}
	if err := s.Fanout.Publish(ctx, a, ev); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("event", ev.Type).Msg("live chat relay failed")
	}
}

// NewTransfer is the input of TransferService.Create.
type NewTransfer struct {
	SessionID     string
	FromAgentID   string
	FromAgentName string
	ToAgentID     string
	Reason        string
}

// TransferService hands sessions between agents.
type TransferService struct {
	DB       *gorm.DB
	Notifier Notifier
	Fanout   livechat.Fanout
	Now      func() time.Time
}

// NewTransferService constructs a TransferService.
func NewTransferService(db *gorm.DB, n Notifier, fanout livechat.Fanout) *TransferService {
	return &TransferService{DB: db, Notifier: notifierOrNop(n), Fanout: fanout, Now: time.Now}
}

// Create records a pending transfer, notifies the target agent in-app and
// pushes a transfer request to their socket if connected. Pending
// transfers never expire.
func (s *TransferService) Create(ctx context.Context, in NewTransfer) (*domain.AgentTransfer, error) {
	tr := otel.Tracer("services/TransferService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("session.id", in.SessionID), attribute.String("to.agent.id", in.ToAgentID)),
	)
	defer span.End()

	t := &domain.AgentTransfer{
		SessionID:   strings.TrimSpace(in.SessionID),
		FromAgentID: strings.TrimSpace(in.FromAgentID),
		ToAgentID:   strings.TrimSpace(in.ToAgentID),
		Reason:      strings.TrimSpace(in.Reason),
		Status:      domain.TransferPending,
	}
	if t.SessionID == "" || t.FromAgentID == "" || t.ToAgentID == "" {
		return nil, ErrMissingField
	}
	if _, err := repo.GetSession(ctx, s.DB, t.SessionID); err != nil {
		return nil, mapNotFound(err, ErrSessionNotFound)
	}
	if u, err := repo.GetUser(ctx, s.DB, t.ToAgentID); err == nil && !domain.IsStaffRole(u.Role) {
		return nil, ErrNotStaff
	}
	if err := repo.CreateTransfer(ctx, s.DB, t); err != nil {
		return nil, err
	}

	s.Notifier.NotifyTransferRequested(ctx, t.ToAgentID, t.ID, t.SessionID, t.Reason)
	if s.Fanout != nil {
		err := s.Fanout.Publish(ctx, livechat.Audience{Scope: livechat.ScopeUser, UserID: t.ToAgentID}, livechat.Event{
			Type:          livechat.EventTransferRequest,
			SessionID:     t.SessionID,
			UserID:        t.FromAgentID,
			FromAgentName: in.FromAgentName,
			ToAgentID:     t.ToAgentID,
			Reason:        t.Reason,
			TransferID:    t.ID,
			Timestamp:     t.CreatedAt,
		})
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("transfer_id", t.ID).Msg("transfer push failed")
		}
	}
	return t, nil
}

// Get returns a transfer by id.
func (s *TransferService) Get(ctx context.Context, id string) (*domain.AgentTransfer, error) {
	tr := otel.Tracer("services/TransferService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("transfer.id", id)))
	defer span.End()

	t, err := repo.GetTransfer(ctx, s.DB, id)
	return t, mapNotFound(err, ErrTransferNotFound)
}

// Pending returns the transfers waiting for agentID.
func (s *TransferService) Pending(ctx context.Context, agentID string) ([]domain.AgentTransfer, error) {
	tr := otel.Tracer("services/TransferService")
	ctx, span := tr.Start(ctx, "Pending", trace.WithAttributes(attribute.String("agent.id", agentID)))
	defer span.End()

	if strings.TrimSpace(agentID) == "" {
		return nil, ErrMissingField
	}
	return repo.ListPendingTransfers(ctx, s.DB, agentID)
}

// Accept marks a pending transfer accepted and assigns its session to the
// target agent in the same transaction.
func (s *TransferService) Accept(ctx context.Context, id string) (*domain.AgentTransfer, error) {
	tr := otel.Tracer("services/TransferService")
	ctx, span := tr.Start(ctx, "Accept", trace.WithAttributes(attribute.String("transfer.id", id)))
	defer span.End()

	t, err := repo.GetTransfer(ctx, s.DB, id)
	if err != nil {
		return nil, mapNotFound(err, ErrTransferNotFound)
	}
	if t.Status != domain.TransferPending {
		return nil, ErrTransferNotPending
	}
	now := s.Now().UTC()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.AcceptTransfer(ctx, tx, id, now); err != nil {
			return err
		}
		return repo.UpdateSession(ctx, tx, t.SessionID, map[string]any{"assigned_to": t.ToAgentID})
	})
	if err != nil {
		// AcceptTransfer reports a lost race as not found.
		return nil, mapNotFound(err, ErrTransferNotPending)
	}
	return repo.GetTransfer(ctx, s.DB, id)
}
