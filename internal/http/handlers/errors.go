package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on the code,
// never on the message.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeUnsupportedType  = "unsupported_type"
	ErrCodeInternal         = "internal_error"

	// Written by middleware, which cannot import this package.
	ErrCodeForbidden   = "forbidden"
	ErrCodeRateLimited = "too_many_requests"

	// Fallbacks of failService, one per kind of operation.
	ErrCodeCreateFailed = "create_failed"
	ErrCodeListFailed   = "list_failed"
	ErrCodeUpdateFailed = "update_failed"

	// The chat provider is down or its circuit is open.
	ErrCodeProviderUnavailable = "provider_unavailable"
	// Accept or reject of a transfer that was already answered.
	ErrCodeTransferNotPending = "transfer_not_pending"
)
