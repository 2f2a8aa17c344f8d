package constants

// Error codes used in API responses.
// These are the machine-readable codes returned in the "error" field.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInternalError  = "INTERNAL_ERROR"
	CodeNotFound       = "NOT_FOUND"

	CodeInvalidURL        = "INVALID_URL"
	CodeInvalidValidity   = "INVALID_VALIDITY"
	CodeInvalidShortcode  = "INVALID_SHORTCODE"
	CodeShortcodeTaken    = "SHORTCODE_TAKEN"
	CodeLinkExpired       = "LINK_EXPIRED"
	CodeLinkNotFound      = "LINK_NOT_FOUND"
	CodeLogForwardFailure = "LOG_FORWARD_FAILED"
)
