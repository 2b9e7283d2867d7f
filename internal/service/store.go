package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/psytest-backend/internal/cache"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/repository"
)

// The services talk to storage through these interfaces. The repository and cache
// packages provide the production implementations.

type TestStore interface {
	Create(ctx context.Context, t *model.Test) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Test, error)
	ListPaginated(ctx context.Context, limit, offset int) ([]model.Test, int, error)
}

type TestCache interface {
	GetTest(ctx context.Context, id uuid.UUID) (*model.Test, error)
	SetTest(ctx context.Context, t *model.Test) error
}

type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	GetByJoinCode(ctx context.Context, code string) (*model.Session, error)
	ListPaginated(ctx context.Context, f repository.SessionFilter, limit, offset int) ([]model.Session, int, error)
	ListForParticipant(ctx context.Context, participantID int) ([]model.Session, error)
	ListByTargetPosition(ctx context.Context, position string) ([]model.Session, error)
	ListStale(ctx context.Context, now time.Time, limit int) ([]model.Session, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.SessionStatus) (bool, error)
}

type RosterStore interface {
	GetByID(ctx context.Context, id int) (*model.Participant, error)
	Register(ctx context.Context, sessionID uuid.UUID, participantIDs []int) (int, error)
	IsRegistered(ctx context.Context, sessionID uuid.UUID, participantID int) (bool, error)
	ListRegistered(ctx context.Context, sessionID uuid.UUID) ([]model.Participant, error)
}

type AdmissionStore interface {
	Admit(ctx context.Context, sessionID uuid.UUID, participantID int, now time.Time, decide repository.DecideFunc) (model.Decision, *model.Session, error)
	Get(ctx context.Context, sessionID uuid.UUID, participantID int) (*model.Admission, error)
	Leave(ctx context.Context, sessionID uuid.UUID, participantID int, now time.Time) error
}

type AttemptStore interface {
	GetOrCreate(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (*model.Attempt, error)
	Get(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (*model.Attempt, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	Update(ctx context.Context, a *model.Attempt, prev model.Attempt) (bool, error)
	ListForParticipant(ctx context.Context, sessionID uuid.UUID, participantID int) ([]model.Attempt, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Attempt, error)
	ListBySessions(ctx context.Context, sessionIDs []uuid.UUID) ([]model.Attempt, error)
	ListScoredByTest(ctx context.Context, testID uuid.UUID) ([]model.Attempt, error)
	ListOpen(ctx context.Context, before time.Time, limit int) ([]model.Attempt, error)
}

type AnswerBuffer interface {
	BufferAnswer(ctx context.Context, p cache.AnswerPayload) (bool, error)
	DropAnswer(ctx context.Context, p cache.AnswerPayload) error
	QueueAnswer(ctx context.Context, p cache.AnswerPayload) error
	Answers(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (map[string]string, error)
	QueueScore(ctx context.Context, p cache.ScorePayload) error
}

// TestReader resolves test metadata for attempt events. TestService implements it
// on top of the Redis cache.
type TestReader interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Test, error)
}
