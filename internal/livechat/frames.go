package livechat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
)

// Inbound frame types.
const (
	TypeJoin          = "join"
	TypeMessage       = "message"
	TypeTyping        = "typing"
	TypeFileShared    = "file_shared"
	TypeAgentTransfer = "agent_transfer"
	TypeCloseSession  = "close_session"
)

// Outbound event types that have no inbound counterpart.
const (
	EventAgentJoined     = "agent_joined"
	EventUserJoined      = "user_joined"
	EventUserLeft        = "user_left"
	EventAgentOnline     = "agent_online"
	EventTransferRequest = "transfer_request"
	EventSessionClosed   = "session_closed"
	EventError           = "error"
)

// Frame error codes sent back to the offending socket.
const (
	CodeInvalidJSON  = "invalid_json"
	CodeUnknownType  = "unknown_type"
	CodeInvalidFrame = "invalid_frame"
	CodeNotJoined    = "not_joined"
)

// FrameError rejects one inbound frame. The connection stays open.
type FrameError struct {
	Code   string
	Reason string
}

func (e *FrameError) Error() string { return e.Code + ": " + e.Reason }

// Frame is a decoded inbound message.
type Frame interface {
	Type() string
}

// JoinFrame registers the socket under a user id and, optionally, a session.
type JoinFrame struct {
	UserID    string `json:"userId"    validate:"required,max=64"`
	Username  string `json:"username"  validate:"max=128"`
	IsAgent   bool   `json:"isAgent"`
	SessionID string `json:"sessionId" validate:"max=64"`
}

// MessageFrame carries chat text. Without a session id it is delivered to
// every connection (legacy unscoped chat) and not persisted.
type MessageFrame struct {
	UserID    string   `json:"userId"    validate:"max=64"`
	SessionID string   `json:"sessionId" validate:"max=64"`
	Content   string   `json:"content"   validate:"required_without=Files,max=8000"`
	Files     []string `json:"files"     validate:"max=10,dive,max=512"`
}

// TypingFrame toggles the typing indicator of the sender in a session.
type TypingFrame struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
	IsTyping  bool   `json:"isTyping"`
}

// FileSharedFrame announces an upload made over HTTP to a session.
type FileSharedFrame struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
	FileID    string `json:"fileId"    validate:"required,max=64"`
	FileURL   string `json:"fileUrl"   validate:"required,max=512"`
	FileName  string `json:"fileName"  validate:"max=255"`
}

// AgentTransferFrame asks another agent to take over a session.
type AgentTransferFrame struct {
	SessionID     string `json:"sessionId"     validate:"required,max=64"`
	FromAgentName string `json:"fromAgentName" validate:"max=128"`
	ToAgentID     string `json:"toAgentId"     validate:"required,max=64"`
	Reason        string `json:"reason"        validate:"max=1000"`
	TransferID    string `json:"transferId"    validate:"max=64"`
}

// CloseSessionFrame ends a session for every participant.
type CloseSessionFrame struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
}

func (JoinFrame) Type() string          { return TypeJoin }
func (MessageFrame) Type() string       { return TypeMessage }
func (TypingFrame) Type() string        { return TypeTyping }
func (FileSharedFrame) Type() string    { return TypeFileShared }
func (AgentTransferFrame) Type() string { return TypeAgentTransfer }
func (CloseSessionFrame) Type() string  { return TypeCloseSession }

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode parses and validates one inbound text frame.
func Decode(raw []byte) (Frame, error) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &FrameError{Code: CodeInvalidJSON, Reason: "frame is not a JSON object"}
	}

	var f Frame
	var err error
	switch env.Type {
	case TypeJoin:
		f, err = decodeAs[JoinFrame](raw)
	case TypeMessage:
		f, err = decodeAs[MessageFrame](raw)
	case TypeTyping:
		f, err = decodeAs[TypingFrame](raw)
	case TypeFileShared:
		f, err = decodeAs[FileSharedFrame](raw)
	case TypeAgentTransfer:
		f, err = decodeAs[AgentTransferFrame](raw)
	case TypeCloseSession:
		f, err = decodeAs[CloseSessionFrame](raw)
	default:
		return nil, &FrameError{Code: CodeUnknownType, Reason: fmt.Sprintf("unknown frame type %q", env.Type)}
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func decodeAs[T any](raw []byte) (T, error) {
	var f T
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, &FrameError{Code: CodeInvalidFrame, Reason: err.Error()}
	}
	if err := validate.Struct(f); err != nil {
		return f, &FrameError{Code: CodeInvalidFrame, Reason: describe(err)}
	}
	return f, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// Event is an outbound frame. Only the fields relevant to Type are set.
type Event struct {
	Type          string    `json:"type"`
	SessionID     string    `json:"sessionId,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	Username      string    `json:"username,omitempty"`
	Sender        string    `json:"sender,omitempty"`
	IsAgent       bool      `json:"isAgent,omitempty"`
	MessageID     string    `json:"messageId,omitempty"`
	Content       string    `json:"content,omitempty"`
	Files         []string  `json:"files,omitempty"`
	IsTyping      *bool     `json:"isTyping,omitempty"`
	FileID        string    `json:"fileId,omitempty"`
	FileURL       string    `json:"fileUrl,omitempty"`
	FileName      string    `json:"fileName,omitempty"`
	TransferID    string    `json:"transferId,omitempty"`
	FromAgentName string    `json:"fromAgentName,omitempty"`
	ToAgentID     string    `json:"toAgentId,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Count         *int      `json:"count,omitempty"`
	Available     *bool     `json:"available,omitempty"`
	Code          string    `json:"code,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
