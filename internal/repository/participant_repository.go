package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/psytest-backend/internal/model"
)

// ParticipantRepository handles participants and session rosters.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository creates a new ParticipantRepository.
func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

// Create inserts a participant, or returns the existing one with the same phone number.
func (r *ParticipantRepository) Create(ctx context.Context, p *model.Participant) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO participants (name, phone) VALUES ($1, $2)
		 ON CONFLICT (phone) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, created_at`,
		p.Name, p.Phone,
	).Scan(&p.ID, &p.CreatedAt)
}

// GetByID retrieves a participant.
func (r *ParticipantRepository) GetByID(ctx context.Context, id int) (*model.Participant, error) {
	p := &model.Participant{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, phone, created_at FROM participants WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Phone, &p.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return p, nil
}

// Register adds participants to a session roster. Already registered participants and
// unknown IDs are ignored. It returns the number of new registrations.
func (r *ParticipantRepository) Register(ctx context.Context, sessionID uuid.UUID, participantIDs []int) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO session_registrations (session_id, participant_id)
		 SELECT $1, p.id FROM participants p WHERE p.id = ANY($2)
		 ON CONFLICT DO NOTHING`,
		sessionID, participantIDs)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// IsRegistered reports whether the participant is on the session roster.
func (r *ParticipantRepository) IsRegistered(ctx context.Context, sessionID uuid.UUID, participantID int) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM session_registrations WHERE session_id = $1 AND participant_id = $2)`,
		sessionID, participantID,
	).Scan(&ok)
	return ok, err
}

// ListRegistered returns the roster of a session.
func (r *ParticipantRepository) ListRegistered(ctx context.Context, sessionID uuid.UUID) ([]model.Participant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.id, p.name, p.phone, p.created_at
		 FROM participants p
		 JOIN session_registrations sr ON sr.participant_id = p.id
		 WHERE sr.session_id = $1
		 ORDER BY p.name`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		var p model.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Count returns the number of participants.
func (r *ParticipantRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM participants`).Scan(&n)
	return n, err
}
