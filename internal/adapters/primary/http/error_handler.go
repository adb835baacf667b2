package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
)

// GetRequestID returns the id assigned by the RequestID middleware.
func GetRequestID(ctx context.Context) string {
	return mw.GetRequestID(ctx)
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// ValidationErrorResponse lists the failing fields of a request body.
type ValidationErrorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// errorRule maps a family of core errors onto a response. An empty message
// echoes the error text, which is safe for caller-facing sentinels only.
type errorRule struct {
	targets []error
	match   func(error) bool
	status  int
	code    string
	message string
}

func (r errorRule) matches(err error) bool {
	if r.match != nil {
		return r.match(err)
	}
	for _, target := range r.targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Evaluated in order; the first match wins.
var errorRules = []errorRule{
	{targets: []error{apperrors.ErrUnauthorized}, status: http.StatusUnauthorized, code: "UNAUTHORIZED", message: "Authentication required"},
	{targets: []error{apperrors.ErrForbidden}, status: http.StatusForbidden, code: "FORBIDDEN", message: "You do not have permission to perform this action"},
	{targets: []error{apperrors.ErrCallNotPermitted}, status: http.StatusForbidden, code: "CALL_NOT_PERMITTED"},

	{targets: []error{apperrors.ErrUserNotFound}, status: http.StatusNotFound, code: "USER_NOT_FOUND", message: "User not found"},
	{targets: []error{apperrors.ErrTicketNotFound}, status: http.StatusNotFound, code: "TICKET_NOT_FOUND", message: "Ticket not found"},
	{targets: []error{apperrors.ErrMessageNotFound, apperrors.ErrNotFound}, status: http.StatusNotFound, code: "NOT_FOUND", message: "Resource not found"},

	{targets: []error{apperrors.ErrNoTechnicianAvailable}, status: http.StatusConflict, code: "NO_TECHNICIAN_AVAILABLE",
		message: "No technician is available to take this ticket. Please try again later."},
	{targets: []error{apperrors.ErrConflict}, status: http.StatusConflict, code: "CONFLICT", message: "Resource conflict"},

	{match: apperrors.IsValidation, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
	{targets: []error{apperrors.ErrBadRequest}, status: http.StatusBadRequest, code: "BAD_REQUEST", message: "Bad request"},
	{targets: []error{apperrors.ErrInvalidStatusTransition}, status: http.StatusBadRequest, code: "INVALID_STATUS_TRANSITION", message: "Invalid status transition"},
	{targets: []error{apperrors.ErrCannotReopen}, status: http.StatusBadRequest, code: "CANNOT_REOPEN"},
	{targets: []error{apperrors.ErrCannotAssignClosed}, status: http.StatusBadRequest, code: "CANNOT_ASSIGN_CLOSED", message: "Cannot assign a closed ticket"},
	{targets: []error{apperrors.ErrNotATechnician}, status: http.StatusBadRequest, code: "NOT_A_TECHNICIAN"},

	{targets: []error{apperrors.ErrExternalService}, status: http.StatusBadGateway, code: "EXTERNAL_SERVICE_ERROR",
		message: "An upstream service is unavailable. Please try again later."},
	{targets: []error{apperrors.ErrRateLimited}, status: http.StatusTooManyRequests, code: "RATE_LIMITED", message: "Too many requests. Please try again later."},
}

// ErrorHandler turns service errors into JSON responses and logs them.
type ErrorHandler struct {
	logger *slog.Logger
}

func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger.With("component", "http_errors")}
}

// Handle writes the response for err. AppErrors carry their own status,
// field validation failures become 422, and everything else goes through
// the rule table with 500 as the fallback.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		h.log(r, appErr.StatusCode, err)
		WriteJSON(w, appErr.StatusCode, ErrorResponse{Error: appErr.Message, Code: appErr.Code, Details: appErr.Details})
		return
	}

	var fieldErrs *apperrors.ValidationErrors
	if errors.As(err, &fieldErrs) {
		h.log(r, http.StatusUnprocessableEntity, err)
		WriteJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
			Error:  "Validation failed",
			Code:   "VALIDATION_ERROR",
			Fields: fieldErrs.Errors,
		})
		return
	}

	status, body := mapDomainError(err)
	h.log(r, status, err)
	WriteJSON(w, status, body)
}

func mapDomainError(err error) (int, ErrorResponse) {
	for _, rule := range errorRules {
		if !rule.matches(err) {
			continue
		}
		msg := rule.message
		if msg == "" {
			msg = err.Error()
		}
		return rule.status, ErrorResponse{Error: msg, Code: rule.code}
	}
	return http.StatusInternalServerError, ErrorResponse{Error: "An unexpected error occurred", Code: "INTERNAL_ERROR"}
}

func (h *ErrorHandler) log(r *http.Request, status int, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		"request_id", GetRequestID(r.Context()),
		"method", r.Method,
		"route", r.URL.Path,
		"status", status,
		"error", err.Error(),
	)
}
