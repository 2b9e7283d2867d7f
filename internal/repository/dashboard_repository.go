package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/psytest-backend/internal/model"
)

// DashboardRepository handles admin dashboard data access.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository creates a new DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// GetSummaryCounts retrieves the high-level metrics for the dashboard.
func (r *DashboardRepository) GetSummaryCounts(ctx context.Context) (participants, tests, sessions, attempts int, err error) {
	err = r.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM participants),
			(SELECT COUNT(*) FROM tests),
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM attempts)`,
	).Scan(&participants, &tests, &sessions, &attempts)
	return
}

// ListOpenSessions returns sessions whose stored status is not final. Their effective
// status depends on the clock and is computed by the caller.
func (r *DashboardRepository) ListOpenSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE status IN ('draft', 'active')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var s model.Session
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountFinalSessions returns the number of sessions per final stored status.
func (r *DashboardRepository) CountFinalSessions(ctx context.Context) (map[model.SessionStatus]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM sessions
		 WHERE status IN ('expired', 'completed', 'cancelled') GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.SessionStatus]int)
	for rows.Next() {
		var status model.SessionStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CountAttemptsByStatus returns the number of attempts per status.
func (r *DashboardRepository) CountAttemptsByStatus(ctx context.Context) (map[model.AttemptStatus]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM attempts GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.AttemptStatus]int)
	for rows.Next() {
		var status model.AttemptStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DashboardRecentSession summarizes a session whose window has closed.
type DashboardRecentSession struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	EndTime         time.Time `json:"end_time"`
	Participants    int       `json:"participants"`
	TotalAttempts   int       `json:"total_attempts"`
	FinishedCount   int       `json:"finished_count"`
	AverageRawScore *float64  `json:"average_raw_score"`
}

// GetRecentSessions retrieves the last N sessions whose window ended before now.
func (r *DashboardRepository) GetRecentSessions(ctx context.Context, now time.Time, limit int) ([]DashboardRecentSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT
			s.id,
			s.name,
			s.end_time,
			s.current_participants,
			COUNT(a.id),
			COUNT(a.id) FILTER (WHERE a.status IN ('completed', 'auto_completed')),
			AVG(a.raw_score)
		 FROM sessions s
		 LEFT JOIN attempts a ON a.session_id = s.id
		 WHERE s.end_time < $1
		 GROUP BY s.id
		 ORDER BY s.end_time DESC
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []DashboardRecentSession{}
	for rows.Next() {
		var d DashboardRecentSession
		if err := rows.Scan(&d.ID, &d.Name, &d.EndTime, &d.Participants,
			&d.TotalAttempts, &d.FinishedCount, &d.AverageRawScore); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}
