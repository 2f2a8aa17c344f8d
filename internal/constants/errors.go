package constants

import "net/http"

// APIError represents a standardized API error with code, message, and HTTP status.
// Use these predefined errors for consistent API responses across the application.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// WithMessage returns a copy of the APIError with a custom message.
// Useful for validation errors or other dynamic messages.
func (e APIError) WithMessage(message string) APIError {
	return APIError{
		Code:    e.Code,
		Message: message,
		Status:  e.Status,
	}
}

// Common errors - shared across multiple modules
var (
	ErrInvalidRequestBody = APIError{
		Code:    CodeInvalidRequest,
		Message: MsgInvalidRequestBody,
		Status:  http.StatusBadRequest,
	}
	ErrInternalError = APIError{
		Code:    CodeInternalError,
		Message: MsgInternalError,
		Status:  http.StatusInternalServerError,
	}
)

// Shortener-specific errors
var (
	ErrInvalidURL = APIError{
		Code:    CodeInvalidURL,
		Message: MsgInvalidURL,
		Status:  http.StatusBadRequest,
	}
	ErrInvalidValidity = APIError{
		Code:    CodeInvalidValidity,
		Message: MsgInvalidValidity,
		Status:  http.StatusBadRequest,
	}
	ErrInvalidShortcode = APIError{
		Code:    CodeInvalidShortcode,
		Message: MsgInvalidShortcode,
		Status:  http.StatusBadRequest,
	}
	ErrReservedShortcode = APIError{
		Code:    CodeInvalidShortcode,
		Message: MsgReservedShortcode,
		Status:  http.StatusBadRequest,
	}
	ErrShortcodeTaken = APIError{
		Code:    CodeShortcodeTaken,
		Message: MsgShortcodeTaken,
		Status:  http.StatusConflict,
	}
	ErrLinkNotFound = APIError{
		Code:    CodeLinkNotFound,
		Message: MsgLinkNotFound,
		Status:  http.StatusNotFound,
	}
	ErrLinkExpired = APIError{
		Code:    CodeLinkExpired,
		Message: MsgLinkExpired,
		Status:  http.StatusGone,
	}
)

var ErrLogForwardFailure = APIError{
	Code:    CodeLogForwardFailure,
	Message: MsgLogForwardFailure,
	Status:  http.StatusInternalServerError,
}
