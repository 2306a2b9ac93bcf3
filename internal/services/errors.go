// Package services defines the business logic of the support backend:
// tickets, callbacks, notifications, live chat, transfers, files, content
// and the chatbot. This file centralizes the service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// Translation into user-facing messages or HTTP status codes is performed
// at the handler layer.
package services

import "errors"

// Not-found errors.
var (
	ErrTicketNotFound       = errors.New("ticket not found")
	ErrCallbackNotFound     = errors.New("callback request not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrSessionNotFound      = errors.New("live chat session not found")
	ErrTransferNotFound     = errors.New("transfer not found")
	ErrFileNotFound         = errors.New("file not found")
	ErrPageNotFound         = errors.New("page not found")
	ErrSectionNotFound      = errors.New("page section not found")
	ErrFAQNotFound          = errors.New("faq not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrFormNotFound         = errors.New("support form not found")
)

// Validation errors.
var (
	// ErrInvalidStatus is returned for a status outside the entity's enum.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidPriority is returned for an unknown ticket priority.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidRole is returned for an unknown user role.
	ErrInvalidRole = errors.New("invalid role")

	// ErrMissingField is returned when a required field is blank after
	// trimming.
	ErrMissingField = errors.New("required field is missing")

	// ErrNoChanges is returned when an update carries no fields.
	ErrNoChanges = errors.New("no fields to update")

	// ErrEmptyConversation is returned when a chat request has no messages.
	ErrEmptyConversation = errors.New("messages are required")

	// ErrLastMessageNotUser is returned when the final chat message was not
	// written by the user.
	ErrLastMessageNotUser = errors.New("last message must be from the user")

	// ErrFileTooLarge is returned for uploads above the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrFileType is returned for uploads whose extension is not allowed.
	ErrFileType = errors.New("file type not allowed")
)

// Conflict errors.
var (
	ErrDuplicateUser      = errors.New("username or email already exists")
	ErrDuplicateSlug      = errors.New("page slug already exists")
	ErrTransferNotPending = errors.New("transfer is not pending")
	ErrNotStaff           = errors.New("user is not an agent or admin")
)

// ErrProviderUnavailable is returned when the language model provider fails.
var ErrProviderUnavailable = errors.New("chat provider unavailable")
