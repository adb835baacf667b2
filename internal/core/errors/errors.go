package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors - these represent business rule violations
var (
	// Identity & access
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("action forbidden")

	// Lookups
	ErrUserNotFound    = errors.New("user not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotFound        = errors.New("resource not found")

	// Ticket validation
	ErrDescriptionTooShort     = errors.New("description must be at least 20 characters")
	ErrDescriptionTooLong      = errors.New("description exceeds maximum length")
	ErrInvalidPriority         = errors.New("invalid ticket priority")
	ErrInvalidCategory         = errors.New("invalid ticket category")
	ErrInvalidStatus           = errors.New("invalid ticket status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrTechnicianMismatch      = errors.New("requiresTechnician is only valid for technical tickets")
	ErrRequesterRequired       = errors.New("requester ID is required")
	ErrCannotReopen            = errors.New("only resolved or closed tickets can be reopened")
	ErrCannotAssignClosed      = errors.New("cannot assign a closed ticket")
	ErrNotATechnician          = errors.New("assignee is not a technician")

	// Assignment
	ErrNoTechnicianAvailable = errors.New("no technician available to take this ticket")

	// Message validation
	ErrMessageRequired     = errors.New("message text is required")
	ErrMessageTooLong      = errors.New("message exceeds maximum length")
	ErrVoiceURLRequired    = errors.New("voice messages require an audio attachment")
	ErrVoiceURLNotAllowed  = errors.New("text messages cannot carry a voice attachment")
	ErrInvalidMessageType  = errors.New("invalid message type")
	ErrInvalidSender       = errors.New("invalid message sender")
	ErrInvalidCallType     = errors.New("invalid call type")
	ErrCallNotPermitted    = errors.New("calls can only be requested on high priority tickets")
	ErrSpeechTextRequired  = errors.New("text is required")
	ErrSpeechTextTooLong   = errors.New("text exceeds maximum length for speech synthesis")
	ErrAudioRequired       = errors.New("audio payload is required")
	ErrUnsupportedAudioExt = errors.New("unsupported audio format")

	// External collaborators (AI, blob store, notification queue)
	ErrExternalService = errors.New("external service failure")

	// Generic
	ErrInternal    = errors.New("internal server error")
	ErrBadRequest  = errors.New("bad request")
	ErrConflict    = errors.New("resource conflict")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error constructors for common cases
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: http.StatusBadRequest,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		StatusCode: http.StatusForbidden,
	}
}

func NewNotFoundError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "NOT_FOUND",
		StatusCode: http.StatusNotFound,
	}
}

func NewValidationError(err error, message string, details map[string]interface{}) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		StatusCode: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

// NewAssignmentError reports that a ticket needing a technician could not be staffed.
func NewAssignmentError(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "No technician is available to take this ticket. Please try again later.",
		Code:       "NO_TECHNICIAN_AVAILABLE",
		StatusCode: http.StatusConflict,
	}
}

// NewExternalServiceError wraps a failure from the AI provider, blob store or
// notification queue. service names the collaborator for logs.
func NewExternalServiceError(service string, err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %s: %v", ErrExternalService, service, err),
		Message:    "An upstream service is unavailable. Please try again later.",
		Code:       "EXTERNAL_SERVICE_ERROR",
		StatusCode: http.StatusBadGateway,
		Details:    map[string]interface{}{"service": service},
	}
}

func NewRateLimitError() *AppError {
	return &AppError{
		Err:        ErrRateLimited,
		Message:    "Too many requests. Please try again later.",
		Code:       "RATE_LIMITED",
		StatusCode: http.StatusTooManyRequests,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "An unexpected error occurred",
		Code:       "INTERNAL_ERROR",
		StatusCode: http.StatusInternalServerError,
	}
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}

// IsValidation reports whether err is a caller input problem.
func IsValidation(err error) bool {
	var verrs *ValidationErrors
	if errors.As(err, &verrs) {
		return true
	}
	for _, target := range validationSentinels {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var validationSentinels = []error{
	ErrDescriptionTooShort,
	ErrDescriptionTooLong,
	ErrInvalidPriority,
	ErrInvalidCategory,
	ErrInvalidStatus,
	ErrTechnicianMismatch,
	ErrRequesterRequired,
	ErrMessageRequired,
	ErrMessageTooLong,
	ErrVoiceURLRequired,
	ErrVoiceURLNotAllowed,
	ErrInvalidMessageType,
	ErrInvalidSender,
	ErrInvalidCallType,
	ErrSpeechTextRequired,
	ErrSpeechTextTooLong,
	ErrAudioRequired,
	ErrUnsupportedAudioExt,
}
