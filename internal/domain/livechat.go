package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Live chat session statuses.
const (
	SessionActive = "active"
	SessionClosed = "closed"
)

// ValidSessionStatus reports whether s is a known session status.
func ValidSessionStatus(s string) bool { return s == SessionActive || s == SessionClosed }

// LiveChatSession is a real-time conversation between a customer (or a
// guest) and staff. Its lifetime is independent of any socket.
type LiveChatSession struct {
	ID         string     `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     *string    `json:"user_id,omitempty" gorm:"type:varchar(64);index"`
	GuestName  string     `json:"guest_name,omitempty"  gorm:"type:varchar(255)"`
	GuestEmail string     `json:"guest_email,omitempty" gorm:"type:varchar(255)"`
	Status     string     `json:"status"      gorm:"type:varchar(16);not null;default:'active';index"`
	AssignedTo *string    `json:"assigned_to,omitempty" gorm:"type:varchar(64);index"`
	Page       string     `json:"page,omitempty" gorm:"type:varchar(255)"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// TableName returns the database table name for LiveChatSession.
func (LiveChatSession) TableName() string { return "live_chat_sessions" }

// LiveChatMessage is an append-only message of a session. It always
// references an existing session.
type LiveChatMessage struct {
	ID        string                      `json:"id"         gorm:"type:char(36);primaryKey"`
	SessionID string                      `json:"session_id" gorm:"type:char(36);not null;index:idx_session_msgs,priority:1"`
	SenderID  *string                     `json:"sender_id,omitempty" gorm:"type:varchar(64)"`
	Message   string                      `json:"message"    gorm:"type:text;not null"`
	IsStaff   bool                        `json:"is_staff"   gorm:"not null;default:false"`
	Files     datatypes.JSONSlice[string] `json:"files"`
	CreatedAt time.Time                   `json:"created_at" gorm:"index:idx_session_msgs,priority:2"`

	Session LiveChatSession `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for LiveChatMessage.
func (LiveChatMessage) TableName() string { return "live_chat_messages" }

// Agent transfer statuses. Pending transfers never expire.
const (
	TransferPending  = "pending"
	TransferAccepted = "accepted"
)

// AgentTransfer hands a session from one agent to another.
type AgentTransfer struct {
	ID          string     `json:"id"            gorm:"type:char(36);primaryKey"`
	SessionID   string     `json:"session_id"    gorm:"type:char(36);not null;index"`
	FromAgentID string     `json:"from_agent_id" gorm:"type:varchar(64);not null"`
	ToAgentID   string     `json:"to_agent_id"   gorm:"type:varchar(64);not null;index:idx_transfer_target,priority:1"`
	Reason      string     `json:"reason,omitempty" gorm:"type:text"`
	Status      string     `json:"status"        gorm:"type:varchar(16);not null;default:'pending';index:idx_transfer_target,priority:2"`
	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`

	Session LiveChatSession `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AgentTransfer.
func (AgentTransfer) TableName() string { return "agent_transfers" }

// FileUpload is metadata of a file stored by the upload service. RelatedType
// names the owning entity kind (ticket, live_chat, ...).
type FileUpload struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	OriginalName string    `json:"original_name" gorm:"type:varchar(255);not null"`
	StoredName   string    `json:"-"             gorm:"type:varchar(255);not null"`
	MimeType     string    `json:"mime_type"     gorm:"type:varchar(128);not null"`
	Size         int64     `json:"size"          gorm:"not null"`
	URL          string    `json:"url"           gorm:"type:varchar(512);not null"`
	UploadedBy   string    `json:"uploaded_by,omitempty" gorm:"type:varchar(64)"`
	RelatedType  string    `json:"related_type,omitempty" gorm:"type:varchar(32);index:idx_related_files,priority:1"`
	RelatedID    string    `json:"related_id,omitempty"   gorm:"type:varchar(64);index:idx_related_files,priority:2"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for FileUpload.
func (FileUpload) TableName() string { return "file_uploads" }
