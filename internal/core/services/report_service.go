package services

import (
	"context"
	"log/slog"

	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-backend/internal/core/errors"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/clock"
)

// ReportService answers the admin dashboard and report queries.
type ReportService struct {
	analyticsRepo ports.AnalyticsRepository
	clock         clock.Clock
	logger        *slog.Logger
}

var _ ports.ReportService = (*ReportService)(nil)

func NewReportService(analyticsRepo ports.AnalyticsRepository, clk clock.Clock, logger *slog.Logger) ports.ReportService {
	return &ReportService{
		analyticsRepo: analyticsRepo,
		clock:         clk,
		logger:        logger.With("component", "report_service"),
	}
}

func (s *ReportService) Dashboard(ctx context.Context, actor *domain.Identity) (*domain.DashboardTotals, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	totals, err := s.analyticsRepo.Totals(ctx)
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func (s *ReportService) Report(ctx context.Context, period domain.ReportPeriod, actor *domain.Identity) (*domain.AnalyticsOverview, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	if period == "" {
		period = domain.DefaultReportPeriod
	}
	if !period.IsValid() {
		errs := apperrors.NewValidationErrors()
		errs.Add("period", "Period must be one of: day, week, month, year")
		return nil, errs
	}

	until := s.clock.Now()
	overview, err := s.analyticsRepo.Overview(ctx, period.Since(until), until)
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "report generated",
		"period", period,
		"actor_id", actor.UserID,
		"days", len(overview.Volume),
	)
	return overview, nil
}
