// Package services – TicketService
//
// This file implements TicketService, which owns the ticket lifecycle:
// creation with its initial history row, status/priority/assignment
// changes recorded in ticket_history, and the ticket conversation. Entity
// and history writes share one transaction; notifications are sent after
// commit and never fail the request.
//
// Observability: all public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/notify"
	"github.com/tbourn/solar-support-backend/internal/repo"
)

// SystemActor is recorded in history when no user performed the change.
const SystemActor = "system"

// NewTicket is the input of TicketService.Create.
type NewTicket struct {
	UserID      string
	Title       string
	Description string
	Category    string
	Priority    string
	Files       []string

	// Contact details for external notification channels. When empty they
	// are looked up from the user record.
	Email string
	Name  string
	Phone string
}

// TicketUpdate carries the fields of a partial ticket update; nil fields
// are left unchanged. An empty AssignedTo unassigns the ticket.
type TicketUpdate struct {
	Title       *string
	Description *string
	Category    *string
	Status      *string
	Priority    *string
	AssignedTo  *string
}

// TicketService manages tickets, their history and conversation.
type TicketService struct {
	DB       *gorm.DB
	Notifier Notifier

	// Now is the clock used for resolution timestamps.
	Now func() time.Time
}

// NewTicketService constructs a TicketService.
func NewTicketService(db *gorm.DB, n Notifier) *TicketService {
	return &TicketService{DB: db, Notifier: notifierOrNop(n), Now: time.Now}
}

// Create validates in, stores the ticket with a "created" history row and
// notifies the submitter and the support team.
func (s *TicketService) Create(ctx context.Context, in NewTicket) (*domain.Ticket, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.String("user.id", in.UserID)))
	defer span.End()

	t := &domain.Ticket{
		UserID:      strings.TrimSpace(in.UserID),
		Title:       clip(normalizeTitle(in.Title), maxTitleRunes),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Priority:    strings.TrimSpace(in.Priority),
		Status:      domain.TicketOpen,
		Files:       in.Files,
	}
	if t.UserID == "" || t.Title == "" || t.Description == "" {
		return nil, ErrMissingField
	}
	if t.Category == "" {
		t.Category = "general"
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if !domain.ValidTicketPriority(t.Priority) {
		return nil, ErrInvalidPriority
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateTicket(ctx, tx, t); err != nil {
			return err
		}
		_, err := repo.CreateTicketHistory(ctx, tx, t.ID, t.UserID, domain.HistoryCreated, details(map[string]any{
			"status":   t.Status,
			"priority": t.Priority,
			"category": t.Category,
		}))
		return err
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("ticket.id", t.ID))

	c := s.contact(ctx, t.UserID, in.Email, in.Name, in.Phone)
	s.Notifier.NotifyTicketCreated(ctx, notify.TicketCreated{
		TicketID: t.ID,
		UserID:   t.UserID,
		Title:    t.Title,
		Category: t.Category,
		Priority: t.Priority,
		Email:    c.email,
		Name:     c.name,
		Phone:    c.phone,
	})
	return t, nil
}

// Get returns a ticket by id.
func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("ticket.id", id)))
	defer span.End()

	t, err := repo.GetTicket(ctx, s.DB, id)
	return t, mapNotFound(err, ErrTicketNotFound)
}

// ListPage returns a page of tickets, newest first, and the total count.
// An empty userID lists every ticket.
func (s *TicketService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Ticket, int64, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountTickets(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Ticket{}, 0, nil
	}
	items, err := repo.ListTickets(ctx, s.DB, userID, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Update applies u to ticket id on behalf of actorID. Every kind of change
// gets its own history row; a status change also notifies the submitter.
func (s *TicketService) Update(ctx context.Context, actorID, id string, u TicketUpdate) (*domain.Ticket, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(attribute.String("ticket.id", id), attribute.String("actor.id", actorID)),
	)
	defer span.End()

	if actorID == "" {
		actorID = SystemActor
	}
	cur, err := repo.GetTicket(ctx, s.DB, id)
	if err != nil {
		return nil, mapNotFound(err, ErrTicketNotFound)
	}

	updates := map[string]any{}
	type entry struct {
		action string
		data   map[string]any
	}
	var history []entry
	edited := map[string]any{}

	if u.Status != nil && *u.Status != cur.Status {
		if !domain.ValidTicketStatus(*u.Status) {
			return nil, ErrInvalidStatus
		}
		updates["status"] = *u.Status
		if (*u.Status == domain.TicketResolved || *u.Status == domain.TicketClosed) && cur.ResolvedAt == nil {
			updates["resolved_at"] = s.Now().UTC()
		}
		history = append(history, entry{domain.HistoryStatusChanged, map[string]any{"from": cur.Status, "to": *u.Status}})
	}
	if u.Priority != nil && *u.Priority != cur.Priority {
		if !domain.ValidTicketPriority(*u.Priority) {
			return nil, ErrInvalidPriority
		}
		updates["priority"] = *u.Priority
		edited["priority"] = map[string]string{"from": cur.Priority, "to": *u.Priority}
	}
	if u.AssignedTo != nil {
		to := strings.TrimSpace(*u.AssignedTo)
		from := ""
		if cur.AssignedTo != nil {
			from = *cur.AssignedTo
		}
		if to != from {
			if to == "" {
				updates["assigned_to"] = nil
			} else {
				updates["assigned_to"] = to
			}
			history = append(history, entry{domain.HistoryAssigned, map[string]any{"from": from, "to": to}})
		}
	}
	if u.Title != nil {
		if t := clip(normalizeTitle(*u.Title), maxTitleRunes); t == "" {
			return nil, ErrMissingField
		} else if t != cur.Title {
			updates["title"] = t
			edited["title"] = t
		}
	}
	if u.Description != nil {
		if d := strings.TrimSpace(*u.Description); d == "" {
			return nil, ErrMissingField
		} else if d != cur.Description {
			updates["description"] = d
			edited["description"] = true
		}
	}
	if u.Category != nil {
		if c := strings.TrimSpace(*u.Category); c != "" && c != cur.Category {
			updates["category"] = c
			edited["category"] = c
		}
	}
	if len(edited) > 0 {
		history = append(history, entry{domain.HistoryUpdated, edited})
	}
	if len(updates) == 0 {
		return cur, nil
	}
	updates["updated_at"] = s.Now().UTC()

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpdateTicket(ctx, tx, id, updates); err != nil {
			return err
		}
		for _, h := range history {
			if _, err := repo.CreateTicketHistory(ctx, tx, id, actorID, h.action, details(h.data)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err, ErrTicketNotFound)
	}

	t, err := repo.GetTicket(ctx, s.DB, id)
	if err != nil {
		return nil, mapNotFound(err, ErrTicketNotFound)
	}
	if _, changed := updates["status"]; changed {
		c := s.contact(ctx, t.UserID, "", "", "")
		s.Notifier.NotifyTicketStatus(ctx, notify.TicketStatusChanged{
			TicketID: t.ID,
			UserID:   t.UserID,
			Status:   t.Status,
			Email:    c.email,
			Name:     c.name,
			Phone:    c.phone,
		})
	}
	return t, nil
}

// History returns the audit trail of a ticket, oldest first.
func (s *TicketService) History(ctx context.Context, id string) ([]domain.TicketHistory, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "History", trace.WithAttributes(attribute.String("ticket.id", id)))
	defer span.End()

	if _, err := repo.GetTicket(ctx, s.DB, id); err != nil {
		return nil, mapNotFound(err, ErrTicketNotFound)
	}
	return repo.ListTicketHistory(ctx, s.DB, id)
}

// Messages returns the conversation of a ticket, oldest first.
func (s *TicketService) Messages(ctx context.Context, id string) ([]domain.TicketMessage, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "Messages", trace.WithAttributes(attribute.String("ticket.id", id)))
	defer span.End()

	if _, err := repo.GetTicket(ctx, s.DB, id); err != nil {
		return nil, mapNotFound(err, ErrTicketNotFound)
	}
	return repo.ListTicketMessages(ctx, s.DB, id)
}

// AddMessage appends a message to the ticket conversation.
func (s *TicketService) AddMessage(ctx context.Context, id, userID, message string, isAgent bool, files []string) (*domain.TicketMessage, error) {
	tr := otel.Tracer("services/TicketService")
	ctx, span := tr.Start(ctx, "AddMessage", trace.WithAttributes(attribute.String("ticket.id", id)))
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" || strings.TrimSpace(userID) == "" {
		return nil, ErrMissingField
	}
	if _, err := repo.GetTicket(ctx, s.DB, id); err != nil {
		return nil, mapNotFound(err, ErrTicketNotFound)
	}
	m := &domain.TicketMessage{TicketID: id, UserID: userID, Message: message, IsAgent: isAgent, Files: files}
	if err := repo.CreateTicketMessage(ctx, s.DB, m); err != nil {
		return nil, err
	}
	return m, nil
}

type contactInfo struct{ email, name, phone string }

// contact fills missing contact details from the user record, if any.
func (s *TicketService) contact(ctx context.Context, userID, email, name, phone string) contactInfo {
	c := contactInfo{email: email, name: name, phone: phone}
	if c.email != "" && c.name != "" && c.phone != "" {
		return c
	}
	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		return c
	}
	if c.email == "" {
		c.email = u.Email
	}
	if c.name == "" {
		c.name = u.FullName
		if c.name == "" {
			c.name = u.Username
		}
	}
	if c.phone == "" {
		c.phone = u.Phone
	}
	return c
}

// details encodes a history payload; it only fails for unencodable values,
// which the callers never pass.
func details(m map[string]any) []byte {
	b, _ := json.Marshal(m)
	return b
}

// mapNotFound converts repo.ErrNotFound into the given service error.
func mapNotFound(err, target error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return target
	}
	return err
}
