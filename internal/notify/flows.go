package notify

import (
	"context"
	"fmt"
)

// TicketCreated describes a freshly created ticket and its submitter.
type TicketCreated struct {
	TicketID string
	UserID   string
	Title    string
	Category string
	Priority string
	Email    string
	Name     string
	Phone    string
}

// NotifyTicketCreated confirms the ticket to its submitter on every channel
// and raises an in-app alert for the support team.
func (d *Dispatcher) NotifyTicketCreated(ctx context.Context, ev TicketCreated) {
	d.Send(ctx, Payload{
		UserID:    ev.UserID,
		Title:     "Support Ticket Created",
		Message:   fmt.Sprintf("Your ticket %q has been created. Reference: %s. We'll respond soon.", ev.Title, Reference(ev.TicketID)),
		Type:      TypeTicket,
		RelatedID: ev.TicketID,
		Email:     ev.Email,
		Name:      ev.Name,
		Phone:     ev.Phone,
	})
	d.inApp(ctx, Payload{
		UserID:    AdminRecipient,
		Title:     "New Support Ticket",
		Message:   fmt.Sprintf("New %s priority ticket in %s: %s", ev.Priority, ev.Category, ev.Title),
		Type:      TypeTicket,
		RelatedID: ev.TicketID,
	})
}

// TicketStatusChanged describes a status transition of a ticket.
type TicketStatusChanged struct {
	TicketID string
	UserID   string
	Status   string
	Email    string
	Name     string
	Phone    string
}

// NotifyTicketStatus tells the submitter about the new status.
func (d *Dispatcher) NotifyTicketStatus(ctx context.Context, ev TicketStatusChanged) {
	d.Send(ctx, Payload{
		UserID:    ev.UserID,
		Title:     "Ticket Status Updated",
		Message:   fmt.Sprintf("Your ticket %s status has been updated to: %s", Reference(ev.TicketID), ev.Status),
		Type:      TypeTicket,
		RelatedID: ev.TicketID,
		Email:     ev.Email,
		Name:      ev.Name,
		Phone:     ev.Phone,
	})
}

// CallbackRequested describes a new callback request from a customer who
// may not have an account.
type CallbackRequested struct {
	RequestID     string
	Name          string
	Email         string
	Phone         string
	PreferredTime string
	Reason        string
}

// NotifyCallbackRequest alerts the support team in-app and sends the
// customer a confirmation over email/WhatsApp only, since guests have no
// inbox to hold an in-app notification.
func (d *Dispatcher) NotifyCallbackRequest(ctx context.Context, ev CallbackRequested) {
	when := ev.PreferredTime
	if when == "" {
		when = "the earliest available time"
	}
	d.inApp(ctx, Payload{
		UserID:    AdminRecipient,
		Title:     "New Callback Request",
		Message:   fmt.Sprintf("%s requested a callback at %s. Reason: %s", ev.Name, when, ev.Reason),
		Type:      TypeCallback,
		RelatedID: ev.RequestID,
	})
	d.external(ctx, Payload{
		UserID:    "guest",
		Title:     "Callback Request Received",
		Message:   fmt.Sprintf("We've received your callback request. Reference: %s. We'll call you at %s.", Reference(ev.RequestID), when),
		Type:      TypeCallback,
		RelatedID: ev.RequestID,
		Email:     ev.Email,
		Name:      ev.Name,
		Phone:     ev.Phone,
	})
}

// NotifySupportForm alerts the support team about a new contact form.
func (d *Dispatcher) NotifySupportForm(ctx context.Context, formID, name, subject string) {
	d.inApp(ctx, Payload{
		UserID:    AdminRecipient,
		Title:     "New Support Form",
		Message:   fmt.Sprintf("%s submitted a support form: %s", name, subject),
		Type:      TypeForm,
		RelatedID: formID,
	})
}

// NotifyTransferRequested tells the target agent that a chat session is
// waiting for them.
func (d *Dispatcher) NotifyTransferRequested(ctx context.Context, toAgentID, transferID, sessionID, reason string) {
	d.inApp(ctx, Payload{
		UserID:    toAgentID,
		Title:     "Chat Transfer Request",
		Message:   fmt.Sprintf("A live chat session %s was transferred to you. Reason: %s", Reference(sessionID), reason),
		Type:      TypeTransfer,
		RelatedID: transferID,
	})
}
