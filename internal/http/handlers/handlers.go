// Package handlers provides HTTP handler implementations for the public API.
//
// This file declares the service contracts consumed by the handlers, the
// Handlers wiring type, and helpers shared by every endpoint: caller
// identity, pagination, weak ETags and replay of idempotent creates.
//
// Handlers are transport-thin: they bind and validate input, call
// application services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/http/middleware"
	"github.com/tbourn/solar-support-backend/internal/repo"
	"github.com/tbourn/solar-support-backend/internal/services"
	"github.com/tbourn/solar-support-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatbotService answers the chat widget.
type ChatbotService interface {
	Reply(ctx context.Context, msgs []services.ChatMessage, pageContext string) (string, error)
	Suggest(page string) services.Suggestion
}

// TicketService defines the ticket lifecycle operations.
type TicketService interface {
	Create(ctx context.Context, in services.NewTicket) (*domain.Ticket, error)
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Ticket, int64, error)
	Update(ctx context.Context, actorID, id string, u services.TicketUpdate) (*domain.Ticket, error)
	History(ctx context.Context, id string) ([]domain.TicketHistory, error)
	Messages(ctx context.Context, id string) ([]domain.TicketMessage, error)
	AddMessage(ctx context.Context, id, userID, message string, isAgent bool, files []string) (*domain.TicketMessage, error)
}

// CallbackService defines callback request operations.
type CallbackService interface {
	Create(ctx context.Context, in services.NewCallback) (*domain.CallbackRequest, error)
	Get(ctx context.Context, id string) (*domain.CallbackRequest, error)
	List(ctx context.Context, status string) ([]domain.CallbackRequest, error)
	Update(ctx context.Context, id string, u services.CallbackUpdate) (*domain.CallbackRequest, error)
}

// SupportFormService defines contact form operations.
type SupportFormService interface {
	Create(ctx context.Context, in services.NewSupportForm) (*domain.SupportForm, error)
	Get(ctx context.Context, id string) (*domain.SupportForm, error)
	List(ctx context.Context, status string) ([]domain.SupportForm, error)
	Update(ctx context.Context, id string, u services.SupportFormUpdate) (*domain.SupportForm, error)
}

// NotificationService defines the in-app inbox operations.
type NotificationService interface {
	List(ctx context.Context, userID string, includeArchived bool) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id string) (*domain.Notification, error)
	Archive(ctx context.Context, id string) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// LiveChatService defines live chat session operations over HTTP.
type LiveChatService interface {
	Create(ctx context.Context, in services.NewSession) (*domain.LiveChatSession, error)
	Get(ctx context.Context, id string) (*domain.LiveChatSession, error)
	List(ctx context.Context, status, agentID string) ([]domain.LiveChatSession, error)
	Update(ctx context.Context, id string, u services.SessionUpdate) (*domain.LiveChatSession, error)
	Messages(ctx context.Context, id string) ([]domain.LiveChatMessage, error)
	Post(ctx context.Context, id, senderID, senderName, content string, isStaff bool, files []string) (*domain.LiveChatMessage, error)
}

// TransferService defines agent-to-agent session transfers.
type TransferService interface {
	Create(ctx context.Context, in services.NewTransfer) (*domain.AgentTransfer, error)
	Get(ctx context.Context, id string) (*domain.AgentTransfer, error)
	Pending(ctx context.Context, agentID string) ([]domain.AgentTransfer, error)
	Accept(ctx context.Context, id string) (*domain.AgentTransfer, error)
}

// FileService defines upload storage operations.
type FileService interface {
	Save(ctx context.Context, in services.NewFile) (*domain.FileUpload, error)
	Get(ctx context.Context, id string) (*domain.FileUpload, error)
	ListRelated(ctx context.Context, relatedType, relatedID string) ([]domain.FileUpload, error)
	Path(ctx context.Context, id string) (*domain.FileUpload, string, error)
	Delete(ctx context.Context, id string) error
}

// ContentService defines page, section and FAQ management.
type ContentService interface {
	CreatePage(ctx context.Context, in services.NewPage) (*domain.Page, error)
	GetPage(ctx context.Context, slugOrID string) (*domain.Page, error)
	ListPages(ctx context.Context, publishedOnly bool) ([]domain.Page, error)
	UpdatePage(ctx context.Context, slugOrID string, u services.PageUpdate) (*domain.Page, error)
	DeletePage(ctx context.Context, slugOrID string) error

	CreateSection(ctx context.Context, slugOrID string, in services.NewSection) (*domain.PageSection, error)
	Sections(ctx context.Context, slugOrID string, visibleOnly bool) ([]domain.PageSection, error)
	UpdateSection(ctx context.Context, id string, u services.SectionUpdate) (*domain.PageSection, error)
	DeleteSection(ctx context.Context, id string) error

	CreateFAQ(ctx context.Context, in services.NewFAQ) (*domain.FAQ, error)
	GetFAQ(ctx context.Context, id string) (*domain.FAQ, error)
	ListFAQs(ctx context.Context, category, page string, publishedOnly bool) ([]domain.FAQ, error)
	UpdateFAQ(ctx context.Context, id string, u services.FAQUpdate) (*domain.FAQ, error)
	DeleteFAQ(ctx context.Context, id string) error
}

// UserService defines user management and agent availability.
type UserService interface {
	Create(ctx context.Context, in services.NewUser) (*domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, role string) ([]domain.User, error)
	UpdateRole(ctx context.Context, id, role string) (*domain.User, error)
	AgentsOnline(ctx context.Context) (services.AgentAvailability, error)
}

//
// Handler wiring
//

// Deps lists the collaborators of Handlers. DB is optional; without it
// idempotent replays and ETags are disabled.
type Deps struct {
	Chatbot       ChatbotService
	Tickets       TicketService
	Callbacks     CallbackService
	Forms         SupportFormService
	Notifications NotificationService
	LiveChat      LiveChatService
	Transfers     TransferService
	Files         FileService
	Content       ContentService
	Users         UserService

	DB *gorm.DB

	// IdempotencyTTL bounds how long a create can be replayed.
	IdempotencyTTL time.Duration
}

// Handlers groups every HTTP endpoint of the API.
type Handlers struct {
	chatbot       ChatbotService
	tickets       TicketService
	callbacks     CallbackService
	forms         SupportFormService
	notifications NotificationService
	livechat      LiveChatService
	transfers     TransferService
	files         FileService
	content       ContentService
	users         UserService

	db     *gorm.DB
	idemTT time.Duration
}

// New constructs Handlers from d.
func New(d Deps) *Handlers {
	ttl := d.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handlers{
		chatbot:       d.Chatbot,
		tickets:       d.Tickets,
		callbacks:     d.Callbacks,
		forms:         d.Forms,
		notifications: d.Notifications,
		livechat:      d.LiveChat,
		transfers:     d.Transfers,
		files:         d.Files,
		content:       d.Content,
		users:         d.Users,
		db:            d.DB,
		idemTT:        ttl,
	}
}

//
// DTOs shared across endpoints
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Helpers
//

// clampPagination reads the page and page_size query parameters.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"))
}

// actor is the id recorded as the author of a change.
func actor(c *gin.Context) string {
	if id := middleware.UserID(c); id != "" {
		return id
	}
	return services.SystemActor
}

// checkETag sets a weak ETag built from (kind, scope, count, latest) and
// answers 304 when the client already holds it. It reports whether the
// response has been written.
func checkETag(c *gin.Context, kind, scope string, count int64, latest *time.Time) bool {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, scope, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

func idemKey(c *gin.Context, key string) repo.IdempotencyKey {
	return repo.IdempotencyKey{Caller: middleware.IdempotencyCaller(c), Scope: middleware.IdempotencyScope(c), Key: key}
}

// replayCreate answers a retried create from its idempotency record. It
// reports whether the response has been written.
func replayCreate[T any](h *Handlers, c *gin.Context, get func(context.Context, string) (T, error)) bool {
	if h.db == nil || !middleware.IsReplay(c) {
		return false
	}
	key, _ := middleware.GetIdempotencyKey(c)
	ctx := c.Request.Context()
	rec, err := repo.FindIdempotency(ctx, h.db, idemKey(c, key), time.Now().UTC())
	if err != nil || rec == nil {
		return false
	}
	v, err := get(ctx, rec.ResourceID)
	if err != nil {
		return false
	}
	c.Header("Idempotency-Replayed", "true")
	ok(c, rec.Status, v)
	return true
}

// rememberCreate records a successful create for later replays. Best effort.
func (h *Handlers) rememberCreate(c *gin.Context, resourceID string, status int) {
	key, found := middleware.GetIdempotencyKey(c)
	if h.db == nil || !found {
		return
	}
	if _, err := repo.SaveIdempotency(c.Request.Context(), h.db, idemKey(c, key), resourceID, status, h.idemTT); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
	}
}
