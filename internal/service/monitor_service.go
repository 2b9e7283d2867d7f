package service

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/clock"
	"github.com/stemsi/psytest-backend/internal/model"
	"golang.org/x/sync/errgroup"
)

// SessionLookup loads a session and its roster.
type SessionLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Session, error)
	Roster(ctx context.Context, id uuid.UUID) ([]model.Participant, error)
}

// AttemptLister lists every attempt recorded in a session.
type AttemptLister interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Attempt, error)
}

// MonitorService builds live snapshots of a session for proctors.
type MonitorService struct {
	sessions SessionLookup
	attempts AttemptLister
	clock    clock.Clock
	log      zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(sessions SessionLookup, attempts AttemptLister, clk clock.Clock, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		sessions: sessions,
		attempts: attempts,
		clock:    clk,
		log:      log.With().Str("component", "monitor_service").Logger(),
	}
}

// Snapshot fetches the session, its roster and its attempts concurrently and folds them
// into one view. Stored attempt statuses are reported as is; the sweep worker keeps them
// close to the clock.
func (s *MonitorService) Snapshot(ctx context.Context, sessionID uuid.UUID) (*model.MonitorSnapshot, error) {
	var (
		sess     *model.Session
		roster   []model.Participant
		attempts []model.Attempt
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sess, err = s.sessions.Get(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		roster, err = s.sessions.Roster(gctx, sessionID)
		return err
	})
	g.Go(func() (err error) {
		attempts, err = s.attempts.ListBySession(gctx, sessionID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	snap := &model.MonitorSnapshot{
		SessionID:           sess.ID,
		Name:                sess.Name,
		Status:              sess.Status,
		Registered:          len(roster),
		CurrentParticipants: sess.CurrentParticipants,
		MaxParticipants:     sess.MaxParticipants,
		Modules:             make([]model.ModuleMonitor, 0, len(sess.Modules)),
		Active:              []model.ActiveAttempt{},
		GeneratedAt:         now,
	}

	index := make(map[uuid.UUID]int, len(sess.Modules))
	for _, m := range sess.Modules {
		index[m.TestID] = len(snap.Modules)
		snap.Modules = append(snap.Modules, model.ModuleMonitor{
			TestID:       m.TestID,
			Sequence:     m.Sequence,
			NotStarted:   len(roster),
			StatusCounts: map[model.AttemptStatus]int{},
		})
	}

	for _, a := range attempts {
		i, ok := index[a.TestID]
		if !ok {
			s.log.Warn().Str("attempt_id", a.ID.String()).Msg("Attempt references a test outside the session")
			continue
		}
		mod := &snap.Modules[i]
		mod.StatusCounts[a.Status]++
		if a.Status != model.AttemptStatusNotStarted {
			mod.NotStarted--
		}

		if a.Status == model.AttemptStatusInProgress && a.StartTime != nil {
			snap.Active = append(snap.Active, model.ActiveAttempt{
				AttemptID:         a.ID,
				ParticipantID:     a.ParticipantID,
				TestID:            a.TestID,
				StartTime:         *a.StartTime,
				ElapsedSeconds:    max(0, int(now.Sub(*a.StartTime).Seconds())),
				AnsweredQuestions: a.AnsweredQuestions,
			})
		}
	}

	sort.Slice(snap.Modules, func(i, j int) bool { return snap.Modules[i].Sequence < snap.Modules[j].Sequence })
	sort.Slice(snap.Active, func(i, j int) bool { return snap.Active[i].StartTime.Before(snap.Active[j].StartTime) })
	return snap, nil
}
