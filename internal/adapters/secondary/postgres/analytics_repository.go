package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lorrc/helpdesk-backend/internal/core/domain"
	"github.com/lorrc/helpdesk-backend/internal/core/ports"
)

// AnalyticsRepository runs the reporting aggregates. Tickets carry no
// resolution timestamp, so a settled ticket's updated_at stands in for it.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

var _ ports.AnalyticsRepository = (*AnalyticsRepository)(nil)

func NewAnalyticsRepository(pool *pgxpool.Pool) ports.AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

func (r *AnalyticsRepository) Totals(ctx context.Context) (domain.DashboardTotals, error) {
	const query = `
SELECT (SELECT COUNT(*) FROM users),
       COUNT(*),
       COUNT(*) FILTER (WHERE status = 'open'),
       COUNT(*) FILTER (WHERE status = 'resolved')
FROM tickets
`
	var totals domain.DashboardTotals
	err := GetDBTX(ctx, r.pool).QueryRow(ctx, query).Scan(
		&totals.Users,
		&totals.Tickets,
		&totals.OpenTickets,
		&totals.ResolvedTickets,
	)
	return totals, err
}

func (r *AnalyticsRepository) Overview(ctx context.Context, since, until time.Time) (*domain.AnalyticsOverview, error) {
	overview := &domain.AnalyticsOverview{Since: since, Until: until}

	if err := r.fetchCounts(ctx, since, until, overview); err != nil {
		return nil, err
	}

	volume, err := r.fetchVolume(ctx, since, until)
	if err != nil {
		return nil, err
	}
	overview.Volume = volume

	workload, err := r.fetchWorkload(ctx)
	if err != nil {
		return nil, err
	}
	overview.Workload = workload

	hours, err := r.fetchResolutionHours(ctx, since, until)
	if err != nil {
		return nil, err
	}
	overview.ResolutionHours = hours

	return overview, nil
}

func (r *AnalyticsRepository) fetchCounts(ctx context.Context, since, until time.Time, overview *domain.AnalyticsOverview) error {
	const query = `
SELECT status, priority, COUNT(*)
FROM tickets
WHERE created_at >= $1 AND created_at < $2
GROUP BY status, priority
`
	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, since, until)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status   string
			priority string
			n        int64
		)
		if err := rows.Scan(&status, &priority, &n); err != nil {
			return err
		}
		overview.Status.Add(domain.TicketStatus(status), n)
		overview.Priority.Add(domain.TicketPriority(priority), n)
	}
	return rows.Err()
}

func (r *AnalyticsRepository) fetchVolume(ctx context.Context, since, until time.Time) ([]domain.VolumePoint, error) {
	const query = `
WITH days AS (
  SELECT generate_series(
    ($1::timestamptz AT TIME ZONE 'UTC')::date,
    ($2::timestamptz AT TIME ZONE 'UTC')::date,
    interval '1 day'
  )::date AS day
),
created AS (
  SELECT (created_at AT TIME ZONE 'UTC')::date AS day, COUNT(*) AS created_count
  FROM tickets
  WHERE created_at >= date_trunc('day', $1::timestamptz AT TIME ZONE 'UTC') AT TIME ZONE 'UTC'
  GROUP BY 1
),
resolved AS (
  SELECT (updated_at AT TIME ZONE 'UTC')::date AS day, COUNT(*) AS resolved_count
  FROM tickets
  WHERE status IN ('resolved', 'closed')
    AND updated_at IS NOT NULL
    AND updated_at >= date_trunc('day', $1::timestamptz AT TIME ZONE 'UTC') AT TIME ZONE 'UTC'
  GROUP BY 1
)
SELECT d.day,
       COALESCE(c.created_count, 0),
       COALESCE(r.resolved_count, 0)
FROM days d
LEFT JOIN created c ON c.day = d.day
LEFT JOIN resolved r ON r.day = d.day
ORDER BY d.day
`
	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query, since, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.VolumePoint, 0)
	for rows.Next() {
		var (
			day      pgtype.Date
			created  int64
			resolved int64
		)
		if err := rows.Scan(&day, &created, &resolved); err != nil {
			return nil, err
		}
		points = append(points, domain.VolumePoint{
			Day:      time.Date(day.Time.Year(), day.Time.Month(), day.Time.Day(), 0, 0, 0, 0, time.UTC),
			Created:  created,
			Resolved: resolved,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func (r *AnalyticsRepository) fetchWorkload(ctx context.Context) ([]domain.WorkloadItem, error) {
	const query = `
SELECT u.id, u.full_name, u.email, COUNT(t.id)
FROM users u
LEFT JOIN tickets t
  ON t.assigned_to = u.id
 AND t.status IN ('open', 'in-progress')
WHERE u.role = 'technician'
GROUP BY u.id, u.full_name, u.email
ORDER BY COUNT(t.id) DESC, u.full_name, u.email
`
	rows, err := GetDBTX(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.WorkloadItem, 0)
	for rows.Next() {
		var (
			id   pgtype.UUID
			item domain.WorkloadItem
		)
		if err := rows.Scan(&id, &item.FullName, &item.Email, &item.ActiveTickets); err != nil {
			return nil, err
		}
		item.TechnicianID = id.Bytes
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *AnalyticsRepository) fetchResolutionHours(ctx context.Context, since, until time.Time) (float64, error) {
	const query = `
SELECT AVG(EXTRACT(EPOCH FROM (updated_at - created_at)))::float8
FROM tickets
WHERE status IN ('resolved', 'closed')
  AND updated_at IS NOT NULL
  AND created_at >= $1 AND created_at < $2
`
	var avgSeconds pgtype.Float8
	if err := GetDBTX(ctx, r.pool).QueryRow(ctx, query, since, until).Scan(&avgSeconds); err != nil {
		return 0, err
	}
	if !avgSeconds.Valid {
		return 0, nil
	}
	return avgSeconds.Float64 / 3600, nil
}
