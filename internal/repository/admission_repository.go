package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/psytest-backend/internal/database"
	"github.com/stemsi/psytest-backend/internal/model"
)

// AdmissionRepository records participants entering sessions and keeps
// sessions.current_participants in step with first admissions.
type AdmissionRepository struct {
	pool *pgxpool.Pool
}

// NewAdmissionRepository creates a new AdmissionRepository.
func NewAdmissionRepository(pool *pgxpool.Pool) *AdmissionRepository {
	return &AdmissionRepository{pool: pool}
}

// DecideFunc evaluates admission against the locked session row.
type DecideFunc func(s model.Session, e model.Entrant) model.Decision

// Admit locks the session row, builds the entrant from the roster and admission rows, asks
// decide, and applies the decision in the same transaction. The session is returned as read
// under the lock, with the count updated when a seat was taken.
func (r *AdmissionRepository) Admit(ctx context.Context, sessionID uuid.UUID, participantID int, now time.Time, decide DecideFunc) (model.Decision, *model.Session, error) {
	var (
		decision model.Decision
		session  model.Session
	)

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := scanSession(tx.QueryRow(ctx,
			`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, sessionID), &session)
		if err != nil {
			return translate(err)
		}

		var e model.Entrant
		err = tx.QueryRow(ctx,
			`SELECT
				EXISTS (SELECT 1 FROM session_registrations WHERE session_id = $1 AND participant_id = $2),
				COALESCE((SELECT seated FROM session_admissions WHERE session_id = $1 AND participant_id = $2), FALSE),
				EXISTS (SELECT 1 FROM session_admissions WHERE session_id = $1 AND participant_id = $2)`,
			sessionID, participantID,
		).Scan(&e.Registered, &e.Seated, &e.PreviouslyAdmitted)
		if err != nil {
			return fmt.Errorf("load entrant: %w", err)
		}

		decision = decide(session, e)
		if !decision.Allow {
			return nil
		}

		if !decision.Resume {
			if err := tx.QueryRow(ctx,
				`UPDATE sessions SET current_participants = current_participants + 1, updated_at = NOW()
				 WHERE id = $1 RETURNING current_participants`, sessionID,
			).Scan(&session.CurrentParticipants); err != nil {
				return fmt.Errorf("take seat: %w", err)
			}
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO session_admissions (session_id, participant_id, seated, admitted_at)
			 VALUES ($1, $2, TRUE, $3)
			 ON CONFLICT (session_id, participant_id) DO UPDATE SET seated = TRUE, left_at = NULL`,
			sessionID, participantID, now)
		if err != nil {
			return fmt.Errorf("record admission: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Decision{}, nil, err
	}
	return decision, &session, nil
}

// Get returns the participant's admission to a session.
func (r *AdmissionRepository) Get(ctx context.Context, sessionID uuid.UUID, participantID int) (*model.Admission, error) {
	a := &model.Admission{}
	err := r.pool.QueryRow(ctx,
		`SELECT session_id, participant_id, seated, admitted_at, left_at
		 FROM session_admissions WHERE session_id = $1 AND participant_id = $2`,
		sessionID, participantID,
	).Scan(&a.SessionID, &a.ParticipantID, &a.Seated, &a.AdmittedAt, &a.LeftAt)
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

// Leave marks the participant as outside the session. The seat stays counted.
func (r *AdmissionRepository) Leave(ctx context.Context, sessionID uuid.UUID, participantID int, now time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE session_admissions SET seated = FALSE, left_at = $3
		 WHERE session_id = $1 AND participant_id = $2 AND seated`,
		sessionID, participantID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountAdmitted returns how many distinct participants entered a session.
func (r *AdmissionRepository) CountAdmitted(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM session_admissions WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}
