// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for live chat
// sessions, their messages and agent transfers.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
)

// CreateSession inserts an active live chat session.
func CreateSession(ctx context.Context, db *gorm.DB, s *domain.LiveChatSession) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = domain.SessionActive
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	return db.WithContext(ctx).Create(s).Error
}

// GetSession fetches a session by id or returns ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.LiveChatSession, error) {
	var s domain.LiveChatSession
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// SessionFilter narrows ListSessions. Zero fields are ignored.
type SessionFilter struct {
	Status  string
	AgentID string
	UserID  string
}

// ListSessions returns sessions newest first.
func ListSessions(ctx context.Context, db *gorm.DB, f SessionFilter) ([]domain.LiveChatSession, error) {
	var out []domain.LiveChatSession
	q := db.WithContext(ctx).Order("created_at desc, id desc")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AgentID != "" {
		q = q.Where("assigned_to = ?", f.AgentID)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpdateSession applies column updates to a session.
func UpdateSession(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	return updateByID(ctx, db, &domain.LiveChatSession{}, id, updates)
}

// CreateLiveChatMessage appends a message to a session. The foreign key
// rejects messages for unknown sessions.
func CreateLiveChatMessage(ctx context.Context, db *gorm.DB, m *domain.LiveChatMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(m).Error
}

// ListLiveChatMessages returns the messages of a session in send order.
// A positive limit keeps only the first limit rows.
func ListLiveChatMessages(ctx context.Context, db *gorm.DB, sessionID string, limit int) ([]domain.LiveChatMessage, error) {
	var out []domain.LiveChatMessage
	q := db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CreateTransfer inserts a pending agent transfer.
func CreateTransfer(ctx context.Context, db *gorm.DB, tr *domain.AgentTransfer) error {
	if tr.ID == "" {
		tr.ID = uuid.NewString()
	}
	tr.Status = domain.TransferPending
	tr.CreatedAt = time.Now().UTC()
	return db.WithContext(ctx).Create(tr).Error
}

// GetTransfer fetches a transfer by id or returns ErrNotFound.
func GetTransfer(ctx context.Context, db *gorm.DB, id string) (*domain.AgentTransfer, error) {
	var tr domain.AgentTransfer
	if err := db.WithContext(ctx).Where("id = ?", id).First(&tr).Error; err != nil {
		return nil, err
	}
	return &tr, nil
}

// ListPendingTransfers returns the pending transfers addressed to agentID,
// oldest first.
func ListPendingTransfers(ctx context.Context, db *gorm.DB, agentID string) ([]domain.AgentTransfer, error) {
	var out []domain.AgentTransfer
	err := db.WithContext(ctx).
		Where("to_agent_id = ? AND status = ?", agentID, domain.TransferPending).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// AcceptTransfer marks a pending transfer accepted. It returns ErrNotFound
// when no pending transfer with that id exists.
func AcceptTransfer(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.AgentTransfer{}).
		Where("id = ? AND status = ?", id, domain.TransferPending).
		Updates(map[string]any{"status": domain.TransferAccepted, "accepted_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
