package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/clock"
	"github.com/stemsi/psytest-backend/internal/engine"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/repository"
	"github.com/stemsi/psytest-backend/internal/response"
)

// LobbyEntry is one session as seen by a registered participant.
type LobbyEntry struct {
	Session  model.Session
	Decision model.Decision
}

// SessionService schedules sessions and keeps their stored status in step with the clock.
type SessionService struct {
	sessions SessionStore
	roster   RosterStore
	tests    TestStore
	clock    clock.Clock
	log      zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(sessions SessionStore, roster RosterStore, tests TestStore, clk clock.Clock, log zerolog.Logger) *SessionService {
	return &SessionService{
		sessions: sessions,
		roster:   roster,
		tests:    tests,
		clock:    clk,
		log:      log.With().Str("component", "session_service").Logger(),
	}
}

// Create validates and stores a new draft session with its modules.
func (s *SessionService) Create(ctx context.Context, req model.CreateSessionRequest) (*model.Session, error) {
	sess := &model.Session{
		Name:            strings.TrimSpace(req.Name),
		JoinCode:        strings.ToUpper(req.JoinCode),
		StartTime:       req.StartTime.UTC(),
		EndTime:         req.EndTime.UTC(),
		TargetPosition:  strings.TrimSpace(req.TargetPosition),
		MaxParticipants: req.MaxParticipants,
		Status:          model.SessionStatusDraft,
		AutoExpire:      true,
		AllowLateEntry:  req.AllowLateEntry,
	}
	if req.AutoExpire != nil {
		sess.AutoExpire = *req.AutoExpire
	}

	ids := make([]uuid.UUID, 0, len(req.Modules))
	for _, m := range req.Modules {
		mod := model.SessionModule{
			TestID:     m.TestID,
			Sequence:   m.Sequence,
			IsRequired: true,
			Weight:     1,
		}
		if m.IsRequired != nil {
			mod.IsRequired = *m.IsRequired
		}
		if m.Weight != 0 {
			mod.Weight = m.Weight
		}
		sess.Modules = append(sess.Modules, mod)
		ids = append(ids, m.TestID)
	}

	if err := engine.ValidateSession(*sess); err != nil {
		return nil, err
	}

	known, err := s.tests.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load module tests: %w", err)
	}
	var missing []engine.FieldError
	for i, m := range sess.Modules {
		if _, ok := known[m.TestID]; !ok {
			missing = append(missing, engine.FieldError{
				Field:   fmt.Sprintf("modules[%d].test_id", i),
				Message: "unknown test",
			})
		}
	}
	if len(missing) > 0 {
		return nil, &engine.ValidationError{Fields: missing}
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrJoinCodeTaken
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Int("modules", len(sess.Modules)).
		Time("start", sess.StartTime).
		Time("end", sess.EndTime).
		Msg("Session scheduled")

	sess.Modules = engine.OrderedSequence(sess.Modules)
	return sess, nil
}

// Get returns a session with its effective status, writing that status back if the
// stored one lags behind.
func (s *SessionService) Get(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Refresh(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SessionService) load(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// Refresh brings sess.Status up to its effective value and persists the change with a
// compare-and-swap. When another writer got there first the stored row is reloaded.
func (s *SessionService) Refresh(ctx context.Context, sess *model.Session) error {
	eff, stale := engine.NeedsWriteBack(*sess, s.clock.Now())
	if !stale {
		return nil
	}

	ok, err := s.sessions.UpdateStatus(ctx, sess.ID, sess.Status, eff)
	if err != nil {
		return fmt.Errorf("write back session status: %w", err)
	}
	if ok {
		s.log.Debug().
			Str("session_id", sess.ID.String()).
			Str("from", string(sess.Status)).
			Str("to", string(eff)).
			Msg("Session status written back")
		sess.Status = eff
		return nil
	}

	fresh, err := s.load(ctx, sess.ID)
	if err != nil {
		return err
	}
	fresh.Status = engine.EffectiveStatus(*fresh, s.clock.Now())
	*sess = *fresh
	return nil
}

// List retrieves sessions with pagination. Statuses in the result are effective; the
// status filter applies to stored values, which the sweep keeps current.
func (s *SessionService) List(ctx context.Context, f repository.SessionFilter, page, perPage int) ([]model.Session, *response.Pagination, error) {
	page, perPage, offset := response.NormalizePage(page, perPage)

	sessions, total, err := s.sessions.ListPaginated(ctx, f, perPage, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("list sessions: %w", err)
	}
	if sessions == nil {
		sessions = []model.Session{}
	}

	now := s.clock.Now()
	for i := range sessions {
		sessions[i].Status = engine.EffectiveStatus(sessions[i], now)
	}
	return sessions, response.NewPagination(page, perPage, total), nil
}

// OrderedModules returns a session's modules in sequence order.
func (s *SessionService) OrderedModules(ctx context.Context, id uuid.UUID) ([]model.SessionModule, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return engine.OrderedSequence(sess.Modules), nil
}

// Cancel moves a session to cancelled.
func (s *SessionService) Cancel(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return s.transition(ctx, id, model.SessionStatusCancelled)
}

// Complete closes an active session before its window ends.
func (s *SessionService) Complete(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return s.transition(ctx, id, model.SessionStatusCompleted)
}

func (s *SessionService) transition(ctx context.Context, id uuid.UUID, to model.SessionStatus) (*model.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := engine.Transition(*sess, to, s.clock.Now())
	if err != nil {
		return nil, err
	}

	ok, err := s.sessions.UpdateStatus(ctx, id, sess.Status, next)
	if err != nil {
		return nil, fmt.Errorf("update session status: %w", err)
	}
	if !ok {
		return nil, ErrStaleSession
	}

	s.log.Info().
		Str("session_id", id.String()).
		Str("from", string(sess.Status)).
		Str("to", string(next)).
		Msg("Session status changed")

	sess.Status = next
	return sess, nil
}

// Register adds participants to the roster of a session that has not closed.
func (s *SessionService) Register(ctx context.Context, id uuid.UUID, participantIDs []int) (int, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if sess.Status.IsTerminal() {
		return 0, engine.DecisionErr(model.Decision{Reason: model.ReasonClosed}, id, 0)
	}

	n, err := s.roster.Register(ctx, id, participantIDs)
	if err != nil {
		return 0, fmt.Errorf("register participants: %w", err)
	}

	s.log.Info().
		Str("session_id", id.String()).
		Int("requested", len(participantIDs)).
		Int("added", n).
		Msg("Participants registered")
	return n, nil
}

// Roster returns the registered participants of a session.
func (s *SessionService) Roster(ctx context.Context, id uuid.UUID) ([]model.Participant, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	participants, err := s.roster.ListRegistered(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	if participants == nil {
		participants = []model.Participant{}
	}
	return participants, nil
}

// Lobby lists the sessions a participant is registered for, with the admission decision a
// first entry would get right now.
func (s *SessionService) Lobby(ctx context.Context, participantID int) ([]LobbyEntry, error) {
	sessions, err := s.sessions.ListForParticipant(ctx, participantID)
	if err != nil {
		return nil, fmt.Errorf("list participant sessions: %w", err)
	}

	now := s.clock.Now()
	entries := make([]LobbyEntry, 0, len(sessions))
	for _, sess := range sessions {
		d := engine.CanEnter(sess, true, now)
		sess.Status = engine.EffectiveStatus(sess, now)
		entries = append(entries, LobbyEntry{Session: sess, Decision: d})
	}
	return entries, nil
}

// SweepStatuses writes back the effective status of up to limit stale sessions and
// returns how many were updated.
func (s *SessionService) SweepStatuses(ctx context.Context, limit int) (int, error) {
	stale, err := s.sessions.ListStale(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list stale sessions: %w", err)
	}

	updated := 0
	for i := range stale {
		before := stale[i].Status
		if err := s.Refresh(ctx, &stale[i]); err != nil {
			s.log.Error().Err(err).Str("session_id", stale[i].ID.String()).Msg("Session write-back failed")
			continue
		}
		if stale[i].Status != before {
			updated++
		}
	}
	return updated, nil
}
