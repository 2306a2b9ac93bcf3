// Package notify fans a notification out to the in-app inbox and, when a
// recipient address is known, to the email and WhatsApp channels.
//
// The Dispatcher never reports failures to its caller: every channel attempt
// is isolated (errors and panics are logged and counted), so a broken SMTP
// relay cannot fail ticket creation. The in-app row is always attempted
// first and exactly once per Send.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/solar-support-backend/internal/domain"
	"github.com/tbourn/solar-support-backend/internal/repo"
)

// AdminRecipient is the pseudo user id that collects staff alerts.
const AdminRecipient = "admin"

// Notification types.
const (
	TypeTicket   = "ticket"
	TypeCallback = "callback"
	TypeTransfer = "transfer"
	TypeForm     = "support_form"
)

// ErrChannelDisabled is returned by channels switched off in configuration.
var ErrChannelDisabled = errors.New("notify: channel disabled")

// Payload describes one notification. Email and Phone are optional; when
// empty the matching channel is not attempted.
type Payload struct {
	UserID    string
	Title     string
	Message   string
	Type      string
	RelatedID string
	Email     string
	Name      string
	Phone     string
}

// Channel is an outbound delivery capability (email, WhatsApp, ...).
type Channel interface {
	Name() string
	Deliver(ctx context.Context, p Payload) error
}

// Store persists in-app notifications.
type Store interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
}

// GormStore writes notifications through the repo layer.
type GormStore struct{ DB *gorm.DB }

// CreateNotification implements Store.
func (s GormStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	return repo.CreateNotification(ctx, s.DB, n)
}

var deliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Notification delivery attempts by channel and result.",
	},
	[]string{"channel", "result"},
)

func init() {
	prometheus.MustRegister(deliveries)
}

// Dispatcher fans notifications out over the configured channels.
type Dispatcher struct {
	store    Store
	email    Channel
	whatsapp Channel
	timeout  time.Duration
	log      zerolog.Logger
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithEmail sets the email channel.
func WithEmail(c Channel) Option { return func(d *Dispatcher) { d.email = c } }

// WithWhatsApp sets the WhatsApp channel.
func WithWhatsApp(c Channel) Option { return func(d *Dispatcher) { d.whatsapp = c } }

// WithTimeout bounds each external channel attempt.
func WithTimeout(t time.Duration) Option { return func(d *Dispatcher) { d.timeout = t } }

// WithLogger sets the logger used for delivery outcomes.
func WithLogger(l zerolog.Logger) Option { return func(d *Dispatcher) { d.log = l } }

// NewDispatcher builds a Dispatcher. Channels default to disabled.
func NewDispatcher(store Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		email:    Skip("email"),
		whatsapp: Skip("whatsapp"),
		timeout:  10 * time.Second,
		log:      log.Logger,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Send writes the in-app notification and then tries email and WhatsApp
// when the payload carries an address for them.
func (d *Dispatcher) Send(ctx context.Context, p Payload) {
	d.inApp(ctx, p)
	d.external(ctx, p)
}

// external attempts only the out-of-app channels. Used for recipients
// without a persisted identity.
func (d *Dispatcher) external(ctx context.Context, p Payload) {
	if p.Email != "" {
		d.deliver(ctx, d.email, p)
	}
	if p.Phone != "" {
		d.deliver(ctx, d.whatsapp, p)
	}
}

func (d *Dispatcher) inApp(ctx context.Context, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			deliveries.WithLabelValues("in_app", "error").Inc()
			d.log.Error().Interface("panic", r).Str("user_id", p.UserID).Msg("in-app notification panicked")
		}
	}()
	n := &domain.Notification{
		UserID:  p.UserID,
		Title:   p.Title,
		Message: p.Message,
		Type:    p.Type,
	}
	if p.RelatedID != "" {
		rid := p.RelatedID
		n.RelatedID = &rid
	}
	if err := d.store.CreateNotification(ctx, n); err != nil {
		deliveries.WithLabelValues("in_app", "error").Inc()
		d.log.Error().Err(err).Str("user_id", p.UserID).Msg("failed to create in-app notification")
		return
	}
	deliveries.WithLabelValues("in_app", "sent").Inc()
	d.log.Debug().Str("user_id", p.UserID).Str("title", p.Title).Msg("in-app notification created")
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, p Payload) {
	name := ch.Name()
	defer func() {
		if r := recover(); r != nil {
			deliveries.WithLabelValues(name, "error").Inc()
			d.log.Error().Interface("panic", r).Str("channel", name).Msg("notification channel panicked")
		}
	}()

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := ch.Deliver(cctx, p)
	switch {
	case errors.Is(err, ErrChannelDisabled):
		deliveries.WithLabelValues(name, "skipped").Inc()
		d.log.Info().Str("channel", name).Str("user_id", p.UserID).Msg("notification skipped (service not configured)")
	case err != nil:
		deliveries.WithLabelValues(name, "error").Inc()
		d.log.Error().Err(err).Str("channel", name).Str("user_id", p.UserID).Msg("notification delivery failed")
	default:
		deliveries.WithLabelValues(name, "sent").Inc()
		d.log.Info().Str("channel", name).Str("user_id", p.UserID).Msg("notification delivered")
	}
}

// Reference returns the short customer-facing reference of an id: its first
// eight characters, upper-cased.
func Reference(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}

// renderText is the plain-text body shared by text channels.
func renderText(p Payload) string {
	if p.RelatedID == "" {
		return p.Message
	}
	return fmt.Sprintf("%s\n\nReference: %s", p.Message, Reference(p.RelatedID))
}
