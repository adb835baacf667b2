package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/lorrc/helpdesk-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/helpdesk-backend/internal/auth"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/realtime"
)

// RouterDeps carries everything the HTTP surface is assembled from.
type RouterDeps struct {
	TicketService    ports.TicketService
	ChatService      ports.ChatService
	CallService      ports.CallService
	SpeechService    ports.SpeechService
	DirectoryService ports.DirectoryService
	ReportService    ports.ReportService

	Bus          *realtime.Bus
	Hub          *wsAdapter.Hub
	TokenManager *auth.TokenManager

	HealthChecks map[string]HealthChecker
	Version      string

	// MediaRoot is the blob store directory served under /media.
	MediaRoot string

	CORSAllowedOrigins []string
	WebSocket          WebSocketConfig
	FeedHeartbeat      time.Duration

	// Optional limiters; nil disables them.
	RateLimiter   *mw.RateLimiter
	AIRateLimiter *mw.RateLimiter

	Logger *slog.Logger
}

// NewRouter wires handlers and middleware into one chi router.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	errorHandler := NewErrorHandler(logger)

	var aiLimit func(http.Handler) http.Handler
	if deps.AIRateLimiter != nil {
		aiLimit = deps.AIRateLimiter.PerIdentity
	}

	ticketHandler := NewTicketHandler(deps.TicketService, errorHandler, logger)
	messageHandler := NewMessageHandler(deps.ChatService, errorHandler, aiLimit, logger)
	callHandler := NewCallHandler(deps.CallService, errorHandler, logger)
	feedHandler := NewFeedHandler(deps.TicketService, deps.Bus, deps.FeedHeartbeat, errorHandler, logger)
	speechHandler := NewSpeechHandler(deps.SpeechService, errorHandler)
	meHandler := NewMeHandler(deps.DirectoryService, errorHandler, logger)
	adminHandler := NewAdminHandler(deps.DirectoryService, deps.ReportService, errorHandler, logger)
	healthHandler := NewHealthHandler(deps.HealthChecks, deps.Version, realtimeStats(deps))

	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(mw.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders:   []string{mw.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Probes and metrics stay outside /api/v1 and skip rate limiting.
	healthHandler.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	if deps.MediaRoot != "" {
		r.Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(deps.MediaRoot))))
	}

	r.Route("/api/v1", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware)
		}

		// Browsers cannot set headers on a socket handshake.
		if deps.Hub != nil {
			wsHandler := NewWebSocketHandler(deps.Hub, deps.WebSocket, logger)
			r.With(mw.JWTQueryMiddleware(deps.TokenManager)).Get("/ws", wsHandler.ServeHTTP)
		}

		r.Route("/tickets", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(mw.JWTMiddleware(deps.TokenManager))
				ticketHandler.RegisterRoutes(r)
				messageHandler.RegisterRoutes(r)
				callHandler.RegisterRoutes(r)
			})

			// EventSource cannot send headers either.
			r.Group(func(r chi.Router) {
				r.Use(mw.JWTQueryMiddleware(deps.TokenManager))
				feedHandler.RegisterRoutes(r)
			})
		})

		r.Route("/me", func(r chi.Router) {
			r.Use(mw.JWTMiddleware(deps.TokenManager))
			meHandler.RegisterRoutes(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.JWTMiddleware(deps.TokenManager))
			adminHandler.RegisterRoutes(r)
		})

		r.Route("/speech", func(r chi.Router) {
			r.Use(mw.JWTMiddleware(deps.TokenManager))
			if aiLimit != nil {
				r.Use(aiLimit)
			}
			speechHandler.RegisterRoutes(r)
		})
	})

	return r
}

func realtimeStats(deps RouterDeps) func() RealtimeStats {
	if deps.Bus == nil {
		return nil
	}
	return func() RealtimeStats {
		stats := RealtimeStats{Topics: deps.Bus.TopicCount()}
		if deps.Hub != nil {
			stats.Sockets = deps.Hub.GetClientCount()
		}
		return stats
	}
}
