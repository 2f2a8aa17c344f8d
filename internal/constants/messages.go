package constants

// Error messages used in API responses.
// These are the human-readable messages returned in the "message" field.
const (
	MsgInvalidRequestBody = "Invalid request body"
	MsgInternalError      = "An internal error occurred"

	MsgInvalidURL        = "Invalid or missing URL"
	MsgInvalidValidity   = "Validity must be a non-negative whole number of minutes"
	MsgInvalidShortcode  = "Shortcode may only contain letters, digits, '-' and '_' (max 32)"
	MsgReservedShortcode = "Shortcode is reserved"
	MsgShortcodeTaken    = "Shortcode already exists"
	MsgLinkNotFound      = "Shortlink not found"
	MsgLinkExpired       = "Shortlink expired"
	MsgLogForwardFailure = "Failed to send log"
)
