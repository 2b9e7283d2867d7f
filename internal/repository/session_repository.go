package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/psytest-backend/internal/database"
	"github.com/stemsi/psytest-backend/internal/model"
)

// SessionRepository handles session and session module data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, name, join_code, start_time, end_time, target_position,
	max_participants, current_participants, status, auto_expire, allow_late_entry,
	created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }, s *model.Session) error {
	return row.Scan(&s.ID, &s.Name, &s.JoinCode, &s.StartTime, &s.EndTime, &s.TargetPosition,
		&s.MaxParticipants, &s.CurrentParticipants, &s.Status, &s.AutoExpire, &s.AllowLateEntry,
		&s.CreatedAt, &s.UpdatedAt)
}

// SessionFilter narrows ListPaginated. Zero values match everything.
type SessionFilter struct {
	Status         model.SessionStatus
	TargetPosition string
}

// Create inserts a session together with its modules in one transaction.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO sessions (name, join_code, start_time, end_time, target_position,
			                       max_participants, status, auto_expire, allow_late_entry)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id, current_participants, created_at, updated_at`,
			s.Name, s.JoinCode, s.StartTime, s.EndTime, s.TargetPosition,
			s.MaxParticipants, s.Status, s.AutoExpire, s.AllowLateEntry,
		).Scan(&s.ID, &s.CurrentParticipants, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return translate(err)
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"session_modules"},
			[]string{"session_id", "test_id", "sequence", "is_required", "weight"},
			pgx.CopyFromSlice(len(s.Modules), func(i int) ([]any, error) {
				m := &s.Modules[i]
				m.SessionID = s.ID
				return []any{s.ID, m.TestID, m.Sequence, m.IsRequired, m.Weight}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("insert modules: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a session with its modules.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	s := &model.Session{}
	if err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id), s); err != nil {
		return nil, translate(err)
	}

	modules, err := r.ListModules(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Modules = modules
	return s, nil
}

// GetByJoinCode retrieves a session by its join code, without modules.
func (r *SessionRepository) GetByJoinCode(ctx context.Context, code string) (*model.Session, error) {
	s := &model.Session{}
	err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE UPPER(join_code) = UPPER($1)`, code), s)
	if err != nil {
		return nil, translate(err)
	}
	return s, nil
}

// ListModules returns a session's modules in sequence order.
func (r *SessionRepository) ListModules(ctx context.Context, sessionID uuid.UUID) ([]model.SessionModule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, test_id, sequence, is_required, weight
		 FROM session_modules WHERE session_id = $1 ORDER BY sequence`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []model.SessionModule
	for rows.Next() {
		var m model.SessionModule
		if err := rows.Scan(&m.SessionID, &m.TestID, &m.Sequence, &m.IsRequired, &m.Weight); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// ListPaginated retrieves sessions, newest window first.
func (r *SessionRepository) ListPaginated(ctx context.Context, f SessionFilter, limit, offset int) ([]model.Session, int, error) {
	where := ` WHERE TRUE`
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		where += ` AND status = $` + strconv.Itoa(len(args))
	}
	if f.TargetPosition != "" {
		args = append(args, f.TargetPosition)
		where += ` AND target_position = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions` + where +
		` ORDER BY start_time DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	sessions, err := r.query(ctx, query, args...)
	return sessions, total, err
}

// ListForParticipant returns the sessions a participant is registered for.
func (r *SessionRepository) ListForParticipant(ctx context.Context, participantID int) ([]model.Session, error) {
	return r.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE id IN (SELECT session_id FROM session_registrations WHERE participant_id = $1)
		 ORDER BY start_time`, participantID)
}

// ListByTargetPosition returns every session recruiting for a position, oldest first.
func (r *SessionRepository) ListByTargetPosition(ctx context.Context, position string) ([]model.Session, error) {
	return r.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE target_position = $1 ORDER BY start_time`, position)
}

// ListStale returns sessions whose stored status may lag behind the clock at now:
// drafts whose window has opened and open sessions whose window has closed.
func (r *SessionRepository) ListStale(ctx context.Context, now time.Time, limit int) ([]model.Session, error) {
	return r.query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE (status = 'draft' AND start_time <= $1)
		    OR (status = 'active' AND auto_expire AND end_time < $1)
		 ORDER BY end_time
		 LIMIT $2`, now, limit)
}

// UpdateStatus moves a session from one status to another. It reports false when the
// stored status was no longer from, so concurrent writers never overwrite each other.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.SessionStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		to, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SessionRepository) query(ctx context.Context, sql string, args ...any) ([]model.Session, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var s model.Session
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
