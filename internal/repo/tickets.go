// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for tickets,
// their history and their conversation messages.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a ticket is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

// CreateTicket inserts t, assigning a UUID and UTC timestamps when unset.
func CreateTicket(ctx context.Context, db *gorm.DB, t *domain.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = t.CreatedAt
	return db.WithContext(ctx).Create(t).Error
}

// GetTicket fetches a ticket by id or returns ErrNotFound.
func GetTicket(ctx context.Context, db *gorm.DB, id string) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTickets returns tickets ordered by creation time descending. An empty
// userID lists every ticket (staff view). A non-positive limit disables
// paging.
func ListTickets(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	q := db.WithContext(ctx).Order("created_at desc, id desc")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountTickets returns the number of tickets, optionally scoped to userID.
func CountTickets(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Ticket{})
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	err := q.Count(&total).Error
	return total, err
}

// UpdateTicket applies column updates to the ticket with the given id.
// It returns ErrNotFound when no row matched.
func UpdateTicket(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	return updateByID(ctx, db, &domain.Ticket{}, id, updates)
}

// CreateTicketHistory appends an audit row.
func CreateTicketHistory(ctx context.Context, db *gorm.DB, ticketID, userID, action string, details []byte) (*domain.TicketHistory, error) {
	h := &domain.TicketHistory{
		ID:        uuid.NewString(),
		TicketID:  ticketID,
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(h).Error; err != nil {
		return nil, err
	}
	return h, nil
}

// ListTicketHistory returns the audit trail of a ticket, oldest first.
func ListTicketHistory(ctx context.Context, db *gorm.DB, ticketID string) ([]domain.TicketHistory, error) {
	var out []domain.TicketHistory
	err := db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CreateTicketMessage appends a conversation message to a ticket.
func CreateTicketMessage(ctx context.Context, db *gorm.DB, m *domain.TicketMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(m).Error
}

// ListTicketMessages returns messages ordered deterministically (CreatedAt ASC, ID ASC).
func ListTicketMessages(ctx context.Context, db *gorm.DB, ticketID string) ([]domain.TicketMessage, error) {
	var out []domain.TicketMessage
	err := db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// updateByID runs an Updates on model filtered by id and maps a zero
// RowsAffected to ErrNotFound.
func updateByID(ctx context.Context, db *gorm.DB, model any, id string, updates map[string]any) error {
	res := db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// deleteByID removes the row of model with the given id, mapping a zero
// RowsAffected to ErrNotFound.
func deleteByID(ctx context.Context, db *gorm.DB, model any, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
