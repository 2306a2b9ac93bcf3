package services

import (
	"context"

	"github.com/tbourn/solar-support-backend/internal/notify"
)

// Notifier is the notification fan-out used by the services. Every method
// is best effort and never returns an error.
type Notifier interface {
	NotifyTicketCreated(ctx context.Context, ev notify.TicketCreated)
	NotifyTicketStatus(ctx context.Context, ev notify.TicketStatusChanged)
	NotifyCallbackRequest(ctx context.Context, ev notify.CallbackRequested)
	NotifySupportForm(ctx context.Context, formID, name, subject string)
	NotifyTransferRequested(ctx context.Context, toAgentID, transferID, sessionID, reason string)
}

var _ Notifier = (*notify.Dispatcher)(nil)

// nopNotifier drops every notification.
type nopNotifier struct{}

func (nopNotifier) NotifyTicketCreated(context.Context, notify.TicketCreated)               {}
func (nopNotifier) NotifyTicketStatus(context.Context, notify.TicketStatusChanged)          {}
func (nopNotifier) NotifyCallbackRequest(context.Context, notify.CallbackRequested)         {}
func (nopNotifier) NotifySupportForm(context.Context, string, string, string)               {}
func (nopNotifier) NotifyTransferRequested(context.Context, string, string, string, string) {}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
