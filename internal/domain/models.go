// Package domain defines the persistence models of the support backend:
// users, tickets and their history, notifications, callback requests,
// support forms, live chat sessions and the content managed by staff.
// These types are mapped with GORM and shared by the repository, service
// and transport layers.
package domain

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// Roles a User can hold. Agents and admins are "staff".
const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
	RoleAdmin    = "admin"
)

// IsStaffRole reports whether role belongs to support staff.
func IsStaffRole(role string) bool { return role == RoleAgent || role == RoleAdmin }

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleCustomer || IsStaffRole(role)
}

// User is a customer or a member of staff. Authentication is handled
// elsewhere; only profile and contact data live here.
type User struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Username  string    `json:"username"   gorm:"type:varchar(64);not null;uniqueIndex"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	FullName  string    `json:"full_name"  gorm:"type:varchar(255)"`
	Phone     string    `json:"phone,omitempty" gorm:"type:varchar(32)"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;default:'customer';index;check:role IN ('customer','agent','admin')"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Ticket statuses.
const (
	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketResolved   = "resolved"
	TicketClosed     = "closed"
)

// Ticket priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

var (
	ticketStatuses   = []string{TicketOpen, TicketInProgress, TicketResolved, TicketClosed}
	ticketPriorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
)

// ValidTicketStatus reports whether s is a known ticket status.
func ValidTicketStatus(s string) bool { return slices.Contains(ticketStatuses, s) }

// ValidTicketPriority reports whether p is a known ticket priority.
func ValidTicketPriority(p string) bool { return slices.Contains(ticketPriorities, p) }

// Ticket is a support request raised by a user. Files holds the ids of
// FileUpload rows attached at creation time.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: submitter; not a foreign key so guest submissions are allowed.
//   - Status: open | in_progress | resolved | closed.
//   - Priority: low | medium | high | urgent.
//   - AssignedTo: staff user id, nil while unassigned.
//   - ResolvedAt: set when the ticket first moves to resolved or closed.
type Ticket struct {
	ID          string                      `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID      string                      `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_user_tickets"`
	Title       string                      `json:"title"       gorm:"type:varchar(255);not null"`
	Description string                      `json:"description" gorm:"type:text;not null"`
	Status      string                      `json:"status"      gorm:"type:varchar(16);not null;default:'open';index"`
	Priority    string                      `json:"priority"    gorm:"type:varchar(16);not null;default:'medium'"`
	Category    string                      `json:"category"    gorm:"type:varchar(64);not null;default:'general'"`
	AssignedTo  *string                     `json:"assigned_to,omitempty" gorm:"type:varchar(64);index"`
	Files       datatypes.JSONSlice[string] `json:"files"`
	CreatedAt   time.Time                   `json:"created_at"  gorm:"index:idx_user_tickets"`
	UpdatedAt   time.Time                   `json:"updated_at"`
	ResolvedAt  *time.Time                  `json:"resolved_at,omitempty"`
}

// TableName returns the database table name for Ticket.
func (Ticket) TableName() string { return "tickets" }

// Ticket history actions.
const (
	HistoryCreated       = "created"
	HistoryStatusChanged = "status_changed"
	HistoryAssigned      = "assigned"
	HistoryUpdated       = "updated"
)

// TicketHistory is an audit row describing one change to a ticket.
type TicketHistory struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	TicketID  string         `json:"ticket_id"  gorm:"type:char(36);not null;index"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null"`
	Action    string         `json:"action"     gorm:"type:varchar(32);not null"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `json:"created_at"`

	Ticket Ticket `json:"-" gorm:"foreignKey:TicketID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for TicketHistory.
func (TicketHistory) TableName() string { return "ticket_history" }

// TicketMessage is one entry of a ticket conversation between the
// submitter and staff.
type TicketMessage struct {
	ID        string                      `json:"id"         gorm:"type:char(36);primaryKey"`
	TicketID  string                      `json:"ticket_id"  gorm:"type:char(36);not null;index:idx_ticket_msgs,priority:1"`
	UserID    string                      `json:"user_id"    gorm:"type:varchar(64);not null"`
	Message   string                      `json:"message"    gorm:"type:text;not null"`
	IsAgent   bool                        `json:"is_agent"   gorm:"not null;default:false"`
	Files     datatypes.JSONSlice[string] `json:"files"`
	CreatedAt time.Time                   `json:"created_at" gorm:"index:idx_ticket_msgs,priority:2"`

	Ticket Ticket `json:"-" gorm:"foreignKey:TicketID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for TicketMessage.
func (TicketMessage) TableName() string { return "chat_messages" }

// Notification statuses.
const (
	NotificationUnread   = "unread"
	NotificationRead     = "read"
	NotificationArchived = "archived"
)

// Notification is an in-app message for a user. UserID may be the pseudo
// recipient "admin", so it is not a foreign key.
type Notification struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_notifications,priority:1"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null"`
	Message   string    `json:"message"    gorm:"type:text;not null"`
	Type      string    `json:"type"       gorm:"type:varchar(32);not null;default:'info'"`
	Status    string    `json:"status"     gorm:"type:varchar(16);not null;default:'unread';index"`
	RelatedID *string   `json:"related_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_user_notifications,priority:2"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Callback request statuses.
const (
	CallbackPending   = "pending"
	CallbackCompleted = "completed"
	CallbackCancelled = "cancelled"
)

// ValidCallbackStatus reports whether s is a known callback status.
func ValidCallbackStatus(s string) bool {
	return s == CallbackPending || s == CallbackCompleted || s == CallbackCancelled
}

// CallbackRequest asks staff to phone a customer back.
type CallbackRequest struct {
	ID              string     `json:"id"               gorm:"type:char(36);primaryKey"`
	ReferenceNumber string     `json:"reference_number" gorm:"type:varchar(16);not null;index"`
	CustomerName    string     `json:"customer_name"    gorm:"type:varchar(255);not null"`
	Email           string     `json:"email,omitempty"  gorm:"type:varchar(255)"`
	Phone           string     `json:"phone"            gorm:"type:varchar(32);not null"`
	PreferredTime   string     `json:"preferred_time,omitempty" gorm:"type:varchar(64)"`
	Reason          string     `json:"reason,omitempty" gorm:"type:text"`
	Status          string     `json:"status"           gorm:"type:varchar(16);not null;default:'pending';index"`
	Notes           string     `json:"notes,omitempty"  gorm:"type:text"`
	ContactedAt     *time.Time `json:"contacted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for CallbackRequest.
func (CallbackRequest) TableName() string { return "callback_requests" }

// Support form statuses.
const (
	FormNew        = "new"
	FormInProgress = "in_progress"
	FormResponded  = "responded"
	FormClosed     = "closed"
)

// ValidFormStatus reports whether s is a known support form status.
func ValidFormStatus(s string) bool {
	return s == FormNew || s == FormInProgress || s == FormResponded || s == FormClosed
}

// SupportForm is a generic contact form submission.
type SupportForm struct {
	ID          string     `json:"id"          gorm:"type:char(36);primaryKey"`
	FormType    string     `json:"form_type"   gorm:"type:varchar(32);not null;default:'contact'"`
	Name        string     `json:"name"        gorm:"type:varchar(255);not null"`
	Email       string     `json:"email"       gorm:"type:varchar(255);not null"`
	Phone       string     `json:"phone,omitempty" gorm:"type:varchar(32)"`
	Subject     string     `json:"subject"     gorm:"type:varchar(255)"`
	Message     string     `json:"message"     gorm:"type:text;not null"`
	Status      string     `json:"status"      gorm:"type:varchar(16);not null;default:'new';index"`
	AssignedTo  *string    `json:"assigned_to,omitempty" gorm:"type:varchar(64)"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for SupportForm.
func (SupportForm) TableName() string { return "support_forms" }
