package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/lorrc/helpdesk-backend/internal/adapters/primary/websocket"
)

// WebSocketConfig controls the socket upgrade.
type WebSocketConfig struct {
	// AllowedOrigins holds hosts such as "app.example.com" or "*.example.com".
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
	// AllowAllOrigins accepts any origin; development only.
	AllowAllOrigins bool
}

// WebSocketHandler upgrades authenticated requests and hands the connection
// to the hub. The caller's identity comes from the query-token middleware.
type WebSocketHandler struct {
	hub      *wsAdapter.Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWebSocketHandler(hub *wsAdapter.Hub, cfg WebSocketConfig, logger *slog.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		hub:    hub,
		logger: logger.With("handler", "websocket"),
	}
	policy := originPolicy{allowed: cfg.AllowedOrigins, any: cfg.AllowAllOrigins}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			ok, reason := policy.check(r.Header.Get("Origin"))
			if reason != "" {
				h.logger.Warn(reason, "origin", r.Header.Get("Origin"), "remote_addr", r.RemoteAddr)
			}
			return ok
		},
	}
	return h
}

// originPolicy decides which browser origins may open a socket. Requests
// without an Origin header come from non-browser clients and pass.
type originPolicy struct {
	allowed []string
	any     bool
}

// check reports whether origin is accepted and, when worth logging, why.
func (p originPolicy) check(origin string) (bool, string) {
	if p.any {
		if origin != "" {
			return true, "accepting websocket origin in development mode"
		}
		return true, ""
	}
	if origin == "" {
		return true, ""
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false, "unparseable websocket origin"
	}
	for _, pattern := range p.allowed {
		if hostMatches(pattern, u.Host) {
			return true, ""
		}
	}
	return false, "websocket origin rejected"
}

// hostMatches compares a host against an exact name or a "*.domain"
// wildcard. The wildcard also covers the bare domain.
func hostMatches(pattern, host string) bool {
	base, wildcard := strings.CutPrefix(pattern, "*.")
	if !wildcard {
		return strings.EqualFold(pattern, host)
	}
	host = strings.ToLower(host)
	base = strings.ToLower(base)
	return host == base || strings.HasSuffix(host, "."+base)
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity := mw.GetIdentity(r.Context())
	if !identity.Valid() {
		http.Error(w, "Missing authentication token", http.StatusUnauthorized)
		return
	}
	logger := h.logger.With("request_id", GetRequestID(r.Context()), "user_id", identity.UserID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := wsAdapter.NewClient(h.hub, conn, identity, h.logger)
	if !h.hub.Register(client) {
		closing := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteMessage(websocket.CloseMessage, closing)
		_ = conn.Close()
		return
	}

	logger.Info("websocket connected", "remote_addr", r.RemoteAddr)
	go client.WritePump()
	go client.ReadPump()
}
