package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/notify"
	"github.com/tbourn/solar-support-backend/internal/repo"
)

// NewCallback is the input of CallbackService.Create.
type NewCallback struct {
	Name          string
	Email         string
	Phone         string
	PreferredTime string
	Reason        string
}

// CallbackUpdate carries the fields of a partial callback update.
type CallbackUpdate struct {
	Status *string
	Notes  *string
}

// CallbackService handles callback requests from customers and guests.
type CallbackService struct {
	DB       *gorm.DB
	Notifier Notifier
	Now      func() time.Time
}

// NewCallbackService constructs a CallbackService.
func NewCallbackService(db *gorm.DB, n Notifier) *CallbackService {
	return &CallbackService{DB: db, Notifier: notifierOrNop(n), Now: time.Now}
}

// Create stores a pending callback request with a reference number, then
// alerts the team and confirms to the customer.
func (s *CallbackService) Create(ctx context.Context, in NewCallback) (*domain.CallbackRequest, error) {
	tr := otel.Tracer("services/CallbackService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	cb := &domain.CallbackRequest{
		ID:            uuid.NewString(),
		CustomerName:  strings.TrimSpace(in.Name),
		Email:         strings.TrimSpace(in.Email),
		Phone:         strings.TrimSpace(in.Phone),
		PreferredTime: strings.TrimSpace(in.PreferredTime),
		Reason:        strings.TrimSpace(in.Reason),
		Status:        domain.CallbackPending,
	}
	if cb.CustomerName == "" || cb.Phone == "" {
		return nil, ErrMissingField
	}
	cb.ReferenceNumber = "CB-" + notify.Reference(cb.ID)
	if err := repo.CreateCallback(ctx, s.DB, cb); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("callback.id", cb.ID))

	s.Notifier.NotifyCallbackRequest(ctx, notify.CallbackRequested{
		RequestID:     cb.ID,
		Name:          cb.CustomerName,
		Email:         cb.Email,
		Phone:         cb.Phone,
		PreferredTime: cb.PreferredTime,
		Reason:        cb.Reason,
	})
	return cb, nil
}

// Get returns a callback request by id.
func (s *CallbackService) Get(ctx context.Context, id string) (*domain.CallbackRequest, error) {
	tr := otel.Tracer("services/CallbackService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("callback.id", id)))
	defer span.End()

	cb, err := repo.GetCallback(ctx, s.DB, id)
	return cb, mapNotFound(err, ErrCallbackNotFound)
}

// List returns callback requests, optionally filtered by status.
func (s *CallbackService) List(ctx context.Context, status string) ([]domain.CallbackRequest, error) {
	tr := otel.Tracer("services/CallbackService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	if status != "" && !domain.ValidCallbackStatus(status) {
		return nil, ErrInvalidStatus
	}
	return repo.ListCallbacks(ctx, s.DB, status)
}

// Update changes status and notes. Completing a request stamps the contact
// time once.
func (s *CallbackService) Update(ctx context.Context, id string, u CallbackUpdate) (*domain.CallbackRequest, error) {
	tr := otel.Tracer("services/CallbackService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.String("callback.id", id)))
	defer span.End()

	cur, err := repo.GetCallback(ctx, s.DB, id)
	if err != nil {
		return nil, mapNotFound(err, ErrCallbackNotFound)
	}
	updates := map[string]any{}
	if u.Status != nil {
		if !domain.ValidCallbackStatus(*u.Status) {
			return nil, ErrInvalidStatus
		}
		updates["status"] = *u.Status
		if *u.Status == domain.CallbackCompleted && cur.ContactedAt == nil {
			updates["contacted_at"] = s.Now().UTC()
		}
	}
	if u.Notes != nil {
		updates["notes"] = strings.TrimSpace(*u.Notes)
	}
	if len(updates) == 0 {
		return nil, ErrNoChanges
	}
	if err := repo.UpdateCallback(ctx, s.DB, id, updates); err != nil {
		return nil, mapNotFound(err, ErrCallbackNotFound)
	}
	cb, err := repo.GetCallback(ctx, s.DB, id)
	return cb, mapNotFound(err, ErrCallbackNotFound)
}

// NewSupportForm is the input of SupportFormService.Create.
type NewSupportForm struct {
	FormType string
	Name     string
	Email    string
	Phone    string
	Subject  string
	Message  string
}

// SupportFormUpdate carries the fields of a partial support form update.
type SupportFormUpdate struct {
	Status     *string
	AssignedTo *string
}

// SupportFormService handles generic contact form submissions.
type SupportFormService struct {
	DB       *gorm.DB
	Notifier Notifier
	Now      func() time.Time
}

// NewSupportFormService constructs a SupportFormService.
func NewSupportFormService(db *gorm.DB, n Notifier) *SupportFormService {
	return &SupportFormService{DB: db, Notifier: notifierOrNop(n), Now: time.Now}
}

// Create stores a submission and alerts the support team.
func (s *SupportFormService) Create(ctx context.Context, in NewSupportForm) (*domain.SupportForm, error) {
	tr := otel.Tracer("services/SupportFormService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	f := &domain.SupportForm{
		FormType: strings.TrimSpace(in.FormType),
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.TrimSpace(in.Email),
		Phone:    strings.TrimSpace(in.Phone),
		Subject:  clip(normalizeTitle(in.Subject), maxTitleRunes),
		Message:  strings.TrimSpace(in.Message),
	}
	if f.Name == "" || f.Email == "" || f.Message == "" {
		return nil, ErrMissingField
	}
	if f.FormType == "" {
		f.FormType = "contact"
	}
	if err := repo.CreateSupportForm(ctx, s.DB, f); err != nil {
		return nil, err
	}
	s.Notifier.NotifySupportForm(ctx, f.ID, f.Name, f.Subject)
	return f, nil
}

// Get returns one submission.
func (s *SupportFormService) Get(ctx context.Context, id string) (*domain.SupportForm, error) {
	tr := otel.Tracer("services/SupportFormService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("form.id", id)))
	defer span.End()

	f, err := repo.GetSupportForm(ctx, s.DB, id)
	return f, mapNotFound(err, ErrFormNotFound)
}

// List returns submissions, optionally filtered by status.
func (s *SupportFormService) List(ctx context.Context, status string) ([]domain.SupportForm, error) {
	tr := otel.Tracer("services/SupportFormService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	if status != "" && !domain.ValidFormStatus(status) {
		return nil, ErrInvalidStatus
	}
	return repo.ListSupportForms(ctx, s.DB, status)
}

// Update changes status and assignment. Moving to responded stamps the
// response time once.
func (s *SupportFormService) Update(ctx context.Context, id string, u SupportFormUpdate) (*domain.SupportForm, error) {
	tr := otel.Tracer("services/SupportFormService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.String("form.id", id)))
	defer span.End()

	cur, err := repo.GetSupportForm(ctx, s.DB, id)
	if err != nil {
		return nil, mapNotFound(err, ErrFormNotFound)
	}
	updates := map[string]any{}
	if u.Status != nil {
		if !domain.ValidFormStatus(*u.Status) {
			return nil, ErrInvalidStatus
		}
		updates["status"] = *u.Status
		if *u.Status == domain.FormResponded && cur.RespondedAt == nil {
			updates["responded_at"] = s.Now().UTC()
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
		return nil, ErrNoChanges
	}
	if err := repo.UpdateSupportForm(ctx, s.DB, id, updates); err != nil {
		return nil, mapNotFound(err, ErrFormNotFound)
	}
	f, err := repo.GetSupportForm(ctx, s.DB, id)
	return f, mapNotFound(err, ErrFormNotFound)
}
