package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/psytest-backend/internal/model"
)

// AttemptRepository handles per-module attempt rows.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, participant_id, test_id, session_id, status, start_time, end_time,
	time_spent, answered_questions, raw_score, updated_at`

func scanAttempt(row interface{ Scan(...any) error }, a *model.Attempt) error {
	return row.Scan(&a.ID, &a.ParticipantID, &a.TestID, &a.SessionID, &a.Status, &a.StartTime, &a.EndTime,
		&a.TimeSpent, &a.AnsweredQuestions, &a.RawScore, &a.UpdatedAt)
}

// GetOrCreate returns the participant's attempt on a module, creating a not_started row on
// first entry. Concurrent callers end up with the same row.
func (r *AttemptRepository) GetOrCreate(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := scanAttempt(r.pool.QueryRow(ctx,
		`INSERT INTO attempts (participant_id, test_id, session_id, status)
		 VALUES ($1, $2, $3, 'not_started')
		 ON CONFLICT (session_id, test_id, participant_id) DO UPDATE SET updated_at = attempts.updated_at
		 RETURNING `+attemptColumns,
		participantID, testID, sessionID), a)
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

// Get returns the participant's attempt on a module.
func (r *AttemptRepository) Get(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE session_id = $1 AND test_id = $2 AND participant_id = $3`,
		sessionID, testID, participantID), a)
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

// GetByID returns an attempt by its ID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	if err := scanAttempt(r.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id), a); err != nil {
		return nil, translate(err)
	}
	return a, nil
}

// Update writes the progress fields of a. It only applies when the stored row still has
// prev's status and answer count, and reports false otherwise.
func (r *AttemptRepository) Update(ctx context.Context, a *model.Attempt, prev model.Attempt) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET status = $1, start_time = $2, end_time = $3, time_spent = $4,
		     answered_questions = $5, updated_at = NOW()
		 WHERE id = $6 AND status = $7 AND answered_questions = $8
		 RETURNING updated_at`,
		a.Status, a.StartTime, a.EndTime, a.TimeSpent, a.AnsweredQuestions,
		a.ID, prev.Status, prev.AnsweredQuestions,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(translate(err), ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListForParticipant returns a participant's attempts within one session.
func (r *AttemptRepository) ListForParticipant(ctx context.Context, sessionID uuid.UUID, participantID int) ([]model.Attempt, error) {
	return r.query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE session_id = $1 AND participant_id = $2`,
		sessionID, participantID)
}

// ListBySession returns every attempt in a session.
func (r *AttemptRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Attempt, error) {
	return r.query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE session_id = $1 ORDER BY participant_id, test_id`,
		sessionID)
}

// ListScoredByTest returns the scored attempts on a test across all sessions. These form
// the norm group for percentile ranks.
func (r *AttemptRepository) ListScoredByTest(ctx context.Context, testID uuid.UUID) ([]model.Attempt, error) {
	return r.query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE test_id = $1 AND raw_score IS NOT NULL AND status IN ('completed', 'auto_completed')`,
		testID)
}

// ListBySessions returns every attempt in the given sessions.
func (r *AttemptRepository) ListBySessions(ctx context.Context, sessionIDs []uuid.UUID) ([]model.Attempt, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	return r.query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE session_id = ANY($1)`, sessionIDs)
}

// ListOpen returns in-progress attempts that have not been touched since before.
func (r *AttemptRepository) ListOpen(ctx context.Context, before time.Time, limit int) ([]model.Attempt, error) {
	return r.query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE status = 'in_progress' AND updated_at < $1
		 ORDER BY updated_at
		 LIMIT $2`, before, limit)
}

// SaveAnswer upserts one autosaved answer.
func (r *AttemptRepository) SaveAnswer(ctx context.Context, attemptID uuid.UUID, questionID, answer string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, answer)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = NOW()`,
		attemptID, questionID, answer,
	)
	return err
}

// SetRawScores stores raw scores for a batch of finished attempts in one statement.
// Attempts that are not completed or auto-completed are left untouched.
func (r *AttemptRepository) SetRawScores(ctx context.Context, ids []uuid.UUID, scores []float64) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE attempts AS a
		 SET raw_score = t.score, updated_at = NOW()
		 FROM UNNEST($1::uuid[], $2::float8[]) AS t (id, score)
		 WHERE a.id = t.id AND a.status IN ('completed', 'auto_completed')`,
		ids, scores,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetRawScore stores the raw score of a single finished attempt.
func (r *AttemptRepository) SetRawScore(ctx context.Context, id uuid.UUID, score float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET raw_score = $1, updated_at = NOW()
		 WHERE id = $2 AND status IN ('completed', 'auto_completed')`,
		score, id,
	)
	return err
}

func (r *AttemptRepository) query(ctx context.Context, sql string, args ...any) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := scanAttempt(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
