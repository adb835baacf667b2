package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/lorrc/helpdesk-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-backend/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

type AdminHandler struct {
	directory    ports.DirectoryService
	reports      ports.ReportService
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

func NewAdminHandler(
	directory ports.DirectoryService,
	reports ports.ReportService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		directory:    directory,
		reports:      reports,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "admin"),
	}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/users", h.HandleListUsers)
	r.Put("/users/{userID}", h.HandleUpsertUser)
	r.Get("/dashboard", h.HandleDashboard)
	r.Get("/reports", h.HandleReports)
}

type UpsertUserRequest struct {
	FullName string `json:"fullName" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Role     string `json:"role" validate:"required,oneof=user technician admin"`
}

// UserDTO is the directory representation of a user.
type UserDTO struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

func toUserDTO(user *domain.User) UserDTO {
	return UserDTO{
		ID:        user.ID.String(),
		FullName:  user.FullName,
		Email:     user.Email,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// HandleListUsers handles GET /admin/users?role=technician
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	var role *domain.Role
	if raw := validation.ParseStringQueryParam(r, "role"); raw != nil {
		value := domain.Role(*raw)
		role = &value
	}

	users, err := h.directory.ListUsers(r.Context(), role, mw.GetIdentity(r.Context()))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	response := make([]UserDTO, 0, len(users))
	for _, user := range users {
		response = append(response, toUserDTO(user))
	}

	WriteList(w, response)
}

// HandleUpsertUser handles PUT /admin/users/{userID}
func (h *AdminHandler) HandleUpsertUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.errorHandler.Handle(w, r, validation.FieldError("userID", "Must be a valid UUID"))
		return
	}

	req, err := validation.DecodeAndValidate[UpsertUserRequest](w, r)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	user, err := h.directory.UpsertUser(r.Context(), ports.UpsertUserParams{
		UserID:   userID,
		FullName: req.FullName,
		Email:    req.Email,
		Role:     domain.Role(req.Role),
		Actor:    mw.GetIdentity(r.Context()),
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toUserDTO(user))
}

// HandleDashboard handles GET /admin/dashboard
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	totals, err := h.reports.Dashboard(r.Context(), mw.GetIdentity(r.Context()))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, DashboardResponse{
		TotalUsers:      totals.Users,
		TotalTickets:    totals.Tickets,
		OpenTickets:     totals.OpenTickets,
		ResolvedTickets: totals.ResolvedTickets,
	})
}

// HandleReports handles GET /admin/reports?period=week
func (h *AdminHandler) HandleReports(w http.ResponseWriter, r *http.Request) {
	period := domain.DefaultReportPeriod
	if raw := validation.ParseStringQueryParam(r, "period"); raw != nil {
		period = domain.ReportPeriod(*raw)
	}

	overview, err := h.reports.Report(r.Context(), period, mw.GetIdentity(r.Context()))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, toReportResponse(period, overview))
}

type DashboardResponse struct {
	TotalUsers      int64 `json:"totalUsers"`
	TotalTickets    int64 `json:"totalTickets"`
	OpenTickets     int64 `json:"openTickets"`
	ResolvedTickets int64 `json:"resolvedTickets"`
}

type StatusCountDTO struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type PriorityCountDTO struct {
	Priority string `json:"priority"`
	Count    int64  `json:"count"`
}

type VolumePointDTO struct {
	Date     string `json:"date"`
	Created  int64  `json:"created"`
	Resolved int64  `json:"resolved"`
}

type WorkloadItemDTO struct {
	TechnicianID  string `json:"technicianId"`
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	ActiveTickets int64  `json:"activeTickets"`
}

type ReportResponse struct {
	Period            string             `json:"period"`
	Since             string             `json:"since"`
	Until             string             `json:"until"`
	TicketsByStatus   []StatusCountDTO   `json:"ticketsByStatus"`
	TicketsByPriority []PriorityCountDTO `json:"ticketsByPriority"`
	TicketsOverTime   []VolumePointDTO   `json:"ticketsOverTime"`
	Workload          []WorkloadItemDTO  `json:"workload"`
	// ResolutionHours is the mean time from creation to resolution.
	ResolutionHours float64 `json:"resolutionHours"`
}

func toReportResponse(period domain.ReportPeriod, overview *domain.AnalyticsOverview) ReportResponse {
	resp := ReportResponse{
		Period: string(period),
		Since:  overview.Since.UTC().Format(time.RFC3339),
		Until:  overview.Until.UTC().Format(time.RFC3339),
		TicketsByStatus: []StatusCountDTO{
			{Status: string(domain.StatusOpen), Count: overview.Status.Open},
			{Status: string(domain.StatusInProgress), Count: overview.Status.InProgress},
			{Status: string(domain.StatusResolved), Count: overview.Status.Resolved},
			{Status: string(domain.StatusClosed), Count: overview.Status.Closed},
		},
		TicketsByPriority: []PriorityCountDTO{
			{Priority: string(domain.PriorityLow), Count: overview.Priority.Low},
			{Priority: string(domain.PriorityMedium), Count: overview.Priority.Medium},
			{Priority: string(domain.PriorityHigh), Count: overview.Priority.High},
		},
		TicketsOverTime: make([]VolumePointDTO, 0, len(overview.Volume)),
		Workload:        make([]WorkloadItemDTO, 0, len(overview.Workload)),
		ResolutionHours: overview.ResolutionHours,
	}

	for _, p := range overview.Volume {
		resp.TicketsOverTime = append(resp.TicketsOverTime, VolumePointDTO{
			Date:     p.Day.Format(time.DateOnly),
			Created:  p.Created,
			Resolved: p.Resolved,
		})
	}
	for _, item := range overview.Workload {
		resp.Workload = append(resp.Workload, WorkloadItemDTO{
			TechnicianID:  item.TechnicianID.String(),
			FullName:      item.FullName,
			Email:         item.Email,
			ActiveTickets: item.ActiveTickets,
		})
	}
	return resp
}
