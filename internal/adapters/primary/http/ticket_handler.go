package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-backend/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// TicketHandler handles HTTP requests for tickets
type TicketHandler struct {
	ticketService ports.TicketService
	errorHandler  *ErrorHandler
	logger        *slog.Logger
}

// NewTicketHandler creates a new ticket handler
func NewTicketHandler(
	ticketService ports.TicketService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
		errorHandler:  errorHandler,
		logger:        logger.With("handler", "ticket"),
	}
}

// RegisterRoutes sets up the collection routes and the per-ticket lifecycle
// routes on the /tickets router. Message, call and feed routes are added to
// the same router by their own handlers.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListUserTickets)
	r.Post("/", h.HandleCreateTicket)
	r.Get("/all", h.HandleListAllTickets)
	r.Get("/assigned", h.HandleListTechnicianTickets)
	r.Get("/counts", h.HandleGetTicketCounts)
	r.Get("/recent", h.HandleGetRecentTickets)

	r.Get("/{ticketID}", h.HandleGetTicket)
	r.Patch("/{ticketID}/status", h.HandleUpdateTicketStatus)
	r.Post("/{ticketID}/reopen", h.HandleReopenTicket)
	r.Patch("/{ticketID}/assignee", h.HandleAssignTicket)
}

// --- Request/Response DTOs ---

// CreateTicketRequest defines the expected JSON body for creating a ticket.
// Priority and category are optional and default in the domain.
type CreateTicketRequest struct {
	Description        string `json:"description" validate:"required,min=20,max=5000"`
	Priority           string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Category           string `json:"category" validate:"omitempty,oneof=technical general"`
	RequiresTechnician bool   `json:"requiresTechnician"`
}

// UpdateStatusRequest defines the expected JSON body for status updates
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open in-progress resolved closed"`
}

// AssignTicketRequest defines the expected JSON body for assigning a ticket
type AssignTicketRequest struct {
	TechnicianID string `json:"technicianId" validate:"required,uuid"`
}

// TicketDTO defines the JSON response for tickets.
type TicketDTO struct {
	ID                 int64        `json:"id"`
	RequesterID        string       `json:"userId"`
	Description        string       `json:"description"`
	Status             string       `json:"status"`
	Priority           string       `json:"priority"`
	Category           string       `json:"category"`
	RequiresTechnician bool         `json:"requiresTechnician"`
	AssignedTo         *string      `json:"assignedTo"`
	AssignedTechnician *UserInfoDTO `json:"assignedTechnician"`
	CreatedAt          string       `json:"createdAt"`
	UpdatedAt          *string      `json:"updatedAt"`
}

func toTicketDTO(ticket *domain.Ticket) TicketDTO {
	var assignedTo *string
	if ticket.AssignedTo != nil {
		value := ticket.AssignedTo.String()
		assignedTo = &value
	}

	var updatedAt *string
	if ticket.UpdatedAt != nil {
		value := ticket.UpdatedAt.UTC().Format(time.RFC3339)
		updatedAt = &value
	}

	return TicketDTO{
		ID:                 ticket.ID,
		RequesterID:        ticket.RequesterID.String(),
		Description:        ticket.Description,
		Status:             string(ticket.Status),
		Priority:           string(ticket.Priority),
		Category:           string(ticket.Category),
		RequiresTechnician: ticket.RequiresTechnician,
		AssignedTo:         assignedTo,
		AssignedTechnician: toUserInfoDTO(ticket.AssignedTechnician),
		CreatedAt:          ticket.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:          updatedAt,
	}
}

func toTicketDTOs(tickets []*domain.Ticket) []TicketDTO {
	response := make([]TicketDTO, 0, len(tickets))
	for _, ticket := range tickets {
		response = append(response, toTicketDTO(ticket))
	}
	return response
}

// --- Handlers ---

// HandleCreateTicket handles POST /tickets
func (h *TicketHandler) HandleCreateTicket(w http.ResponseWriter, r *http.Request) {
	identity := mw.GetIdentity(r.Context())

	req, err := validation.DecodeAndValidate[CreateTicketRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.ticketService.CreateTicket(r.Context(), ports.CreateTicketParams{
		Description:        req.Description,
		Priority:           domain.TicketPriority(req.Priority),
		Category:           domain.TicketCategory(req.Category),
		RequiresTechnician: req.RequiresTechnician,
		Requester:          identity,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "ticket created",
		"ticket_id", ticket.ID,
		"category", ticket.Category,
		"assigned", ticket.IsAssigned(),
	)

	WriteCreated(w, toTicketDTO(ticket))
}

// HandleListUserTickets handles GET /tickets
func (h *TicketHandler) HandleListUserTickets(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.ticketService.ListUserTickets)
}

// HandleListAllTickets handles GET /tickets/all
func (h *TicketHandler) HandleListAllTickets(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.ticketService.ListAllTickets)
}

// HandleListTechnicianTickets handles GET /tickets/assigned
func (h *TicketHandler) HandleListTechnicianTickets(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.ticketService.ListTechnicianTickets)
}

type ticketLister func(ctx context.Context, params ports.ListTicketsParams) ([]*domain.Ticket, error)

// list runs one of the role-scoped listings. It asks for one extra row so
// the response can report whether another page exists.
func (h *TicketHandler) list(w http.ResponseWriter, r *http.Request, fetch ticketLister) {
	pagination := validation.ParsePagination(r)

	var status *domain.TicketStatus
	if raw := validation.ParseStringQueryParam(r, "status"); raw != nil {
		value := domain.TicketStatus(*raw)
		if !value.IsValid() {
			h.errorHandler.Handle(w, r, apperrors.ErrInvalidStatus)
			return
		}
		status = &value
	}

	tickets, err := fetch(r.Context(), ports.ListTicketsParams{
		Viewer: mw.GetIdentity(r.Context()),
		Limit:  pagination.Limit + 1,
		Offset: pagination.Offset,
		Status: status,
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WritePaginatedSimple(w, toTicketDTOs(tickets), pagination.Limit, pagination.Offset)
}

// HandleGetTicketCounts handles GET /tickets/counts
func (h *TicketHandler) HandleGetTicketCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.ticketService.GetTicketCounts(r.Context(), mw.GetIdentity(r.Context()))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, counts)
}

// HandleGetRecentTickets handles GET /tickets/recent
func (h *TicketHandler) HandleGetRecentTickets(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.ticketService.GetRecentTickets(r.Context(), mw.GetIdentity(r.Context()))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	WriteList(w, toTicketDTOs(tickets))
}

// HandleGetTicket handles GET /tickets/{ticketID}
func (h *TicketHandler) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.ticketService.GetTicket(r.Context(), ticketID, mw.GetIdentity(r.Context()))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleUpdateTicketStatus handles PATCH /tickets/{ticketID}/status
func (h *TicketHandler) HandleUpdateTicketStatus(w http.ResponseWriter, r *http.Request) {
	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[UpdateStatusRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.ticketService.UpdateStatus(r.Context(), ports.UpdateStatusParams{
		TicketID: ticketID,
		Status:   domain.TicketStatus(req.Status),
		Actor:    mw.GetIdentity(r.Context()),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "ticket status updated",
		"ticket_id", ticketID,
		"new_status", req.Status,
	)

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleReopenTicket handles POST /tickets/{ticketID}/reopen
func (h *TicketHandler) HandleReopenTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	ticket, err := h.ticketService.ReopenTicket(r.Context(), ticketID, mw.GetIdentity(r.Context()))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "ticket reopened", "ticket_id", ticketID)

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// HandleAssignTicket handles PATCH /tickets/{ticketID}/assignee
func (h *TicketHandler) HandleAssignTicket(w http.ResponseWriter, r *http.Request) {
	ticketID, err := parseTicketID(r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	req, err := validation.DecodeAndValidate[AssignTicketRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	// The validator has already checked the format.
	technicianID := uuid.MustParse(req.TechnicianID)

	ticket, err := h.ticketService.AssignTicket(r.Context(), ports.AssignTicketParams{
		TicketID:     ticketID,
		TechnicianID: technicianID,
		Actor:        mw.GetIdentity(r.Context()),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "ticket assigned",
		"ticket_id", ticketID,
		"technician_id", technicianID,
	)

	WriteJSON(w, http.StatusOK, toTicketDTO(ticket))
}

// --- Helper methods ---

// parseTicketID extracts and validates the ticket ID from the URL
func parseTicketID(r *http.Request) (int64, error) {
	return validation.ParseID("ticketID", chi.URLParam(r, "ticketID"))
}
