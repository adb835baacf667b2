package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-backend/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// MeHandler handles HTTP requests for the authenticated user.
type MeHandler struct {
	directory    ports.DirectoryService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewMeHandler creates a new MeHandler.
func NewMeHandler(
	directory ports.DirectoryService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *MeHandler {
	return &MeHandler{
		directory:    directory,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "me"),
	}
}

// RegisterRoutes registers the /me routes.
func (h *MeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleGetProfile)
	r.Put("/", h.HandleSyncProfile)
}

// SyncProfileRequest carries the caller's display details.
type SyncProfileRequest struct {
	FullName string `json:"fullName" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
}

// HandleGetProfile handles GET /me.
func (h *MeHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.directory.GetSelf(r.Context(), mw.GetIdentity(r.Context()))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toUserDTO(user))
}

// HandleSyncProfile handles PUT /me.
func (h *MeHandler) HandleSyncProfile(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[SyncProfileRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	user, err := h.directory.SyncSelf(r.Context(), req.FullName, req.Email, mw.GetIdentity(r.Context()))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "profile synced", "role", user.Role)

	WriteJSON(w, http.StatusOK, toUserDTO(user))
}
