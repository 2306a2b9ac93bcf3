package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/repo"
)

// NewUser is the input of UserService.Create.
type NewUser struct {
	Username string
	Email    string
	FullName string
	Phone    string
	Role     string
}

// AgentAvailability is the answer of GET /agents/online.
type AgentAvailability struct {
	Available bool `json:"available"`
	Count     int  `json:"count"`
	Online    int  `json:"online"`
}

// OnlineCounter reports how many staff members are connected.
type OnlineCounter interface {
	Count(ctx context.Context) (int, error)
}

// UserService manages users and reports agent availability.
type UserService struct {
	DB *gorm.DB

	// Presence, when set, supplies the live staff connection count.
	Presence OnlineCounter
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, presence OnlineCounter) *UserService {
	return &UserService{DB: db, Presence: presence}
}

// Create stores a user. Username and email must be unique.
func (s *UserService) Create(ctx context.Context, in NewUser) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Create", trace.WithAttributes(attribute.String("user.username", in.Username)))
	defer span.End()

	u := &domain.User{
		Username: strings.TrimSpace(in.Username),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		FullName: normalizeTitle(in.FullName),
		Phone:    strings.TrimSpace(in.Phone),
		Role:     strings.ToLower(strings.TrimSpace(in.Role)),
	}
	if u.Username == "" || u.Email == "" {
		return nil, ErrMissingField
	}
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	if !domain.ValidRole(u.Role) {
		return nil, ErrInvalidRole
	}
	if err := repo.CreateUser(ctx, s.DB, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	return u, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("user.id", id)))
	defer span.End()

	u, err := repo.GetUser(ctx, s.DB, id)
	return u, mapNotFound(err, ErrUserNotFound)
}

// List returns users, optionally filtered by role.
func (s *UserService) List(ctx context.Context, role string) ([]domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "List", trace.WithAttributes(attribute.String("role", role)))
	defer span.End()

	if role != "" && !domain.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	return repo.ListUsers(ctx, s.DB, role)
}

// UpdateRole changes the role of a user.
func (s *UserService) UpdateRole(ctx context.Context, id, role string) (*domain.User, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "UpdateRole",
		trace.WithAttributes(attribute.String("user.id", id), attribute.String("role", role)),
	)
	defer span.End()

	role = strings.ToLower(strings.TrimSpace(role))
	if !domain.ValidRole(role) {
		return nil, ErrInvalidRole
	}
	if err := repo.UpdateUserRole(ctx, s.DB, id, role); err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}
	u, err := repo.GetUser(ctx, s.DB, id)
	return u, mapNotFound(err, ErrUserNotFound)
}

// AgentsOnline reports whether any staff account exists, how many there
// are and how many staff connections are live. A presence failure is
// logged and reported as zero online.
func (s *UserService) AgentsOnline(ctx context.Context) (AgentAvailability, error) {
	tr := otel.Tracer("services/UserService")
	ctx, span := tr.Start(ctx, "AgentsOnline")
	defer span.End()

	n, err := repo.CountStaff(ctx, s.DB)
	if err != nil {
		return AgentAvailability{}, err
	}
	out := AgentAvailability{Available: n > 0, Count: int(n)}
	if s.Presence != nil {
		online, err := s.Presence.Count(ctx)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("agent presence unavailable")
		} else {
			out.Online = online
		}
	}
	span.SetAttributes(attribute.Int("agents.count", out.Count), attribute.Int("agents.online", out.Online))
	return out, nil
}
