package domain

import (
	"time"

	"github.com/google/uuid"
)

// TicketCounts is the per-status tally shown on a requester's dashboard.
type TicketCounts struct {
	Open       int64 `json:"open"`
	InProgress int64 `json:"inProgress"`
	Resolved   int64 `json:"resolved"`
	Closed     int64 `json:"closed"`
}

// Add folds a status count into the tally.
func (c *TicketCounts) Add(status TicketStatus, n int64) {
	switch status {
	case StatusOpen:
		c.Open += n
	case StatusInProgress:
		c.InProgress += n
	case StatusResolved:
		c.Resolved += n
	case StatusClosed:
		c.Closed += n
	}
}

// PriorityCounts is the per-priority tally used by admin reports.
type PriorityCounts struct {
	Low    int64
	Medium int64
	High   int64
}

// Add folds a priority count into the tally.
func (c *PriorityCounts) Add(priority TicketPriority, n int64) {
	switch priority {
	case PriorityLow:
		c.Low += n
	case PriorityMedium:
		c.Medium += n
	case PriorityHigh:
		c.High += n
	}
}

// TechnicianLoad is the derived count of a technician's open and
// in-progress tickets. It is computed on demand and never stored.
type TechnicianLoad struct {
	TechnicianID  uuid.UUID
	ActiveTickets int64
}

// LeastLoaded picks the technician with the fewest active tickets. Ties go
// to the earliest entry, so callers control tie-breaking through ordering.
func LeastLoaded(loads []TechnicianLoad) (TechnicianLoad, bool) {
	if len(loads) == 0 {
		return TechnicianLoad{}, false
	}
	best := loads[0]
	for _, l := range loads[1:] {
		if l.ActiveTickets < best.ActiveTickets {
			best = l
		}
	}
	return best, true
}

// DashboardTotals are the headline figures on the admin dashboard.
type DashboardTotals struct {
	Users           int64
	Tickets         int64
	OpenTickets     int64
	ResolvedTickets int64
}

// VolumePoint is one UTC day of ticket traffic. Resolved counts tickets
// that reached resolved or closed on that day.
type VolumePoint struct {
	Day      time.Time
	Created  int64
	Resolved int64
}

// WorkloadItem is a technician's current active ticket count.
type WorkloadItem struct {
	TechnicianID  uuid.UUID
	FullName      string
	Email         string
	ActiveTickets int64
}

// AnalyticsOverview aggregates the tickets created in [Since, Until).
// Workload is a snapshot and ignores the window.
type AnalyticsOverview struct {
	Since           time.Time
	Until           time.Time
	Status          TicketCounts
	Priority        PriorityCounts
	Volume          []VolumePoint
	Workload        []WorkloadItem
	ResolutionHours float64
}

// ReportPeriod selects how far back an admin report looks.
type ReportPeriod string

const (
	PeriodDay   ReportPeriod = "day"
	PeriodWeek  ReportPeriod = "week"
	PeriodMonth ReportPeriod = "month"
	PeriodYear  ReportPeriod = "year"
)

// DefaultReportPeriod applies when the caller names none.
const DefaultReportPeriod = PeriodWeek

func (p ReportPeriod) IsValid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// Since returns the start of the period ending at now, using calendar
// arithmetic for months and years.
func (p ReportPeriod) Since(now time.Time) time.Time {
	switch p {
	case PeriodDay:
		return now.AddDate(0, 0, -1)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	case PeriodYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, 0, -7)
	}
}
