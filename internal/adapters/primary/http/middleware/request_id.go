package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/logging"
)

const (
	// RequestIDKey is the context key for the per-request record
	RequestIDKey contextKey = "request_id"
	// RequestIDHeader is the HTTP header name for request IDs
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLength = 128
)

// requestRecord is shared by every context derived from the request, so
// values resolved by inner middleware are visible to outer ones.
type requestRecord struct {
	id string

	mu       sync.Mutex
	identity *domain.Identity
}

// RequestID reuses a sane X-Request-ID from the caller or mints one, echoes
// it on the response and makes it available to loggers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey, &requestRecord{id: requestID})
		ctx = logging.WithRequestID(ctx, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if rec, ok := ctx.Value(RequestIDKey).(*requestRecord); ok {
		return rec.id
	}
	return ""
}

// noteIdentity records the authenticated caller for the access log.
func noteIdentity(ctx context.Context, identity *domain.Identity) {
	if rec, ok := ctx.Value(RequestIDKey).(*requestRecord); ok {
		rec.mu.Lock()
		rec.identity = identity
		rec.mu.Unlock()
	}
}

func recordedIdentity(ctx context.Context) *domain.Identity {
	if rec, ok := ctx.Value(RequestIDKey).(*requestRecord); ok {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.identity
	}
	return nil
}
