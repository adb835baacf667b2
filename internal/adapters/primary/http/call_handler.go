package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-backend/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// CallHandler accepts explicit call requests.
type CallHandler struct {
	callService  ports.CallService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewCallHandler(callService ports.CallService, errorHandler *ErrorHandler, logger *slog.Logger) *CallHandler {
	return &CallHandler{
		callService:  callService,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "call"),
	}
}

// RegisterRoutes adds the call route to the /tickets router.
func (h *CallHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{ticketID}/calls", h.HandleInitiateCall)
}

// InitiateCallRequest is the optional body of a call request.
type InitiateCallRequest struct {
	Type string `json:"type" validate:"omitempty,oneof=audio video"`
}

// HandleInitiateCall handles POST /tickets/{ticketID}/calls
func (h *CallHandler) HandleInitiateCall(w http.ResponseWriter, r *http.Request) {
	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	callType := domain.CallTypeAudio
	if r.ContentLength != 0 {
		req, err := validation.DecodeAndValidate[InitiateCallRequest](w, r)
		if err != nil {
			h.errorHandler.Handle(w, r, err)
			return
		}
		if req.Type != "" {
			callType = domain.CallType(req.Type)
		}
	}

	call, err := h.callService.InitiateCall(r.Context(), ports.InitiateCallParams{
		TicketID: ticketID,
		Type:     callType,
		Actor:    mw.GetIdentity(r.Context()),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteCreated(w, domain.NewCallSnapshot(call))
}
