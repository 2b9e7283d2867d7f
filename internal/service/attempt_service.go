package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/cache"
	"github.com/stemsi/psytest-backend/internal/clock"
	"github.com/stemsi/psytest-backend/internal/engine"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/repository"
)

// maxAdvanceRetries bounds how often an attempt update is retried after losing a
// compare-and-swap race.
const maxAdvanceRetries = 3

// AttemptService drives per-module attempts through their lifecycle.
type AttemptService struct {
	sessions   SessionStore
	tests      TestReader
	roster     RosterStore
	admissions AdmissionStore
	attempts   AttemptStore
	buffer     AnswerBuffer
	clock      clock.Clock
	log        zerolog.Logger
}

// AttemptDeps groups the collaborators of an AttemptService.
type AttemptDeps struct {
	Sessions   SessionStore
	Tests      TestReader
	Roster     RosterStore
	Admissions AdmissionStore
	Attempts   AttemptStore
	Buffer     AnswerBuffer
	Clock      clock.Clock
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(deps AttemptDeps, log zerolog.Logger) *AttemptService {
	return &AttemptService{
		sessions:   deps.Sessions,
		tests:      deps.Tests,
		roster:     deps.Roster,
		admissions: deps.Admissions,
		attempts:   deps.Attempts,
		buffer:     deps.Buffer,
		clock:      deps.Clock,
		log:        log.With().Str("component", "attempt_service").Logger(),
	}
}

// moduleContext is everything an event on one module needs.
type moduleContext struct {
	session model.Session
	ordered []model.SessionModule
	module  model.SessionModule
	test    model.Test
}

func (m *moduleContext) env(d model.Decision) engine.Env {
	return engine.Env{Test: m.test, Session: m.session, Admission: d}
}

func (s *AttemptService) loadSession(ctx context.Context, sessionID uuid.UUID) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *AttemptService) loadModule(ctx context.Context, sessionID, testID uuid.UUID) (*moduleContext, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	mc := &moduleContext{session: *sess, ordered: engine.OrderedSequence(sess.Modules)}
	found := false
	for _, m := range mc.ordered {
		if m.TestID == testID {
			mc.module = m
			found = true
			break
		}
	}
	if !found {
		return nil, ErrTestNotInSession
	}

	t, err := s.tests.Get(ctx, testID)
	if err != nil {
		return nil, err
	}
	mc.test = *t
	return mc, nil
}

// advance applies ev and persists the result. A lost compare-and-swap reloads the attempt and
// evaluates the event again against the stored state.
func (s *AttemptService) advance(ctx context.Context, a model.Attempt, ev engine.Event, env engine.Env) (engine.Progress, error) {
	for try := 0; try < maxAdvanceRetries; try++ {
		p, err := engine.AdvanceAttempt(a, ev, env, s.clock.Now())
		if err != nil || !p.Changed() {
			return p, err
		}

		next := p.Attempt
		ok, err := s.attempts.Update(ctx, &next, a)
		if err != nil {
			return engine.Progress{}, fmt.Errorf("update attempt: %w", err)
		}
		if ok {
			p.Attempt = next
			if p.Outcome == engine.OutcomeFinalized {
				s.log.Info().
					Str("attempt_id", next.ID.String()).
					Str("event", string(ev)).
					Str("status", string(next.Status)).
					Int("answered", next.AnsweredQuestions).
					Int("time_spent", next.TimeSpent).
					Msg("Attempt finalized")
			}
			return p, nil
		}

		fresh, err := s.attempts.GetByID(ctx, a.ID)
		if err != nil {
			return engine.Progress{}, fmt.Errorf("reload attempt: %w", err)
		}
		a = *fresh
	}

	s.log.Warn().Str("attempt_id", a.ID.String()).Str("event", string(ev)).Msg("Attempt update kept losing races")
	return engine.Progress{}, ErrStaleAttempt
}

// tick brings an in-progress attempt up to date with the clock, finalizing it when a
// deadline passed. Other attempts are returned untouched.
func (s *AttemptService) tick(ctx context.Context, a model.Attempt, mc *moduleContext) (model.Attempt, error) {
	if a.Status != model.AttemptStatusInProgress {
		return a, nil
	}
	p, err := s.advance(ctx, a, engine.EventTick, mc.env(model.Decision{}))
	if err != nil {
		return a, err
	}
	return p.Attempt, nil
}

func (s *AttemptService) attemptMap(ctx context.Context, sessionID uuid.UUID, participantID int) (map[uuid.UUID]model.Attempt, error) {
	list, err := s.attempts.ListForParticipant(ctx, sessionID, participantID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	m := make(map[uuid.UUID]model.Attempt, len(list))
	for _, a := range list {
		m[a.TestID] = a
	}
	return m, nil
}

// Modules returns the participant's progress through each module of a session, in
// sequence order. Running attempts are ticked first so their status is current.
func (s *AttemptService) Modules(ctx context.Context, sessionID uuid.UUID, participantID int) ([]model.ModuleProgress, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attemptMap(ctx, sessionID, participantID)
	if err != nil {
		return nil, err
	}

	ordered := engine.OrderedSequence(sess.Modules)
	out := make([]model.ModuleProgress, 0, len(ordered))
	tests := make(map[uuid.UUID]model.Test, len(ordered))
	for _, m := range ordered {
		t, err := s.tests.Get(ctx, m.TestID)
		if err != nil {
			return nil, err
		}
		tests[m.TestID] = *t

		if a, ok := attempts[m.TestID]; ok {
			mc := &moduleContext{session: *sess, ordered: ordered, module: m, test: *t}
			if attempts[m.TestID], err = s.tick(ctx, a, mc); err != nil {
				return nil, err
			}
		}
	}

	open := engine.EffectiveStatus(*sess, s.clock.Now()) == model.SessionStatusActive
	for _, m := range ordered {
		mp := model.ModuleProgress{Module: m, Test: tests[m.TestID]}
		a, ok := attempts[m.TestID]
		if ok {
			mp.Attempt = &a
		}
		mp.CanStart = open && (!ok || !a.Status.IsTerminal()) &&
			engine.CanStartModule(ordered, attempts, m.TestID) == nil
		out = append(out, mp)
	}
	return out, nil
}

// Start begins or resumes the participant's attempt on a module. The participant must be
// seated in the session, and a fresh attempt must respect the module sequence.
func (s *AttemptService) Start(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (*model.AttemptState, error) {
	mc, err := s.loadModule(ctx, sessionID, testID)
	if err != nil {
		return nil, err
	}

	adm, err := s.admissions.Get(ctx, sessionID, participantID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !adm.Seated) {
		return nil, ErrNotAdmitted
	}
	if err != nil {
		return nil, fmt.Errorf("get admission: %w", err)
	}

	registered, err := s.roster.IsRegistered(ctx, sessionID, participantID)
	if err != nil {
		return nil, fmt.Errorf("check registration: %w", err)
	}
	decision := engine.Decide(mc.session, model.Entrant{
		Registered:         registered,
		Seated:             true,
		PreviouslyAdmitted: true,
	}, s.clock.Now())

	existing, err := s.attempts.Get(ctx, sessionID, testID, participantID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if existing == nil || existing.Status == model.AttemptStatusNotStarted {
		attempts, err := s.attemptMap(ctx, sessionID, participantID)
		if err != nil {
			return nil, err
		}
		if err := engine.CanStartModule(mc.ordered, attempts, testID); err != nil {
			return nil, err
		}
		// Refuse before creating a row so a closed session leaves no trace.
		if err := engine.DecisionErr(decision, sessionID, participantID); err != nil {
			return nil, err
		}
	}

	a, err := s.attempts.GetOrCreate(ctx, sessionID, testID, participantID)
	if err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	p, err := s.advance(ctx, *a, engine.EventStart, mc.env(decision))
	if err != nil {
		return nil, err
	}
	if p.Outcome == engine.OutcomeUpdated && a.Status == model.AttemptStatusNotStarted {
		s.log.Info().
			Str("attempt_id", a.ID.String()).
			Str("session_id", sessionID.String()).
			Str("test_id", testID.String()).
			Int("participant_id", participantID).
			Msg("Attempt started")
	}

	return s.snapshot(ctx, p.Attempt, mc)
}

// Answer records one answer. The answer is buffered in Redis and the attempt's answered
// count grows only for questions not answered before. The answer is queued for the
// autosave worker only once the attempt update went through, and a buffered answer whose
// update failed is dropped again so a retry counts it.
func (s *AttemptService) Answer(ctx context.Context, sessionID, testID uuid.UUID, participantID int, req model.AnswerRequest) (engine.Progress, error) {
	mc, err := s.loadModule(ctx, sessionID, testID)
	if err != nil {
		return engine.Progress{}, err
	}

	a, err := s.current(ctx, sessionID, testID, participantID)
	if err != nil {
		return engine.Progress{}, err
	}
	if a.Status == model.AttemptStatusNotStarted {
		return s.advance(ctx, a, engine.EventAnswer, mc.env(model.Decision{}))
	}

	a, err = s.tick(ctx, a, mc)
	if err != nil {
		return engine.Progress{}, err
	}
	if a.Status.IsTerminal() {
		return engine.Progress{Attempt: a, Outcome: engine.OutcomeAlreadyFinalized}, nil
	}

	payload := cache.AnswerPayload{
		AttemptID:     a.ID,
		ParticipantID: participantID,
		SessionID:     sessionID,
		TestID:        testID,
		QuestionID:    req.QuestionID,
		Answer:        req.Answer,
	}
	isNew, err := s.buffer.BufferAnswer(ctx, payload)
	if err != nil {
		return engine.Progress{}, fmt.Errorf("save answer: %w", err)
	}

	var p engine.Progress
	if isNew {
		p, err = s.advance(ctx, a, engine.EventAnswer, mc.env(model.Decision{}))
		if err != nil || p.Outcome != engine.OutcomeUpdated {
			s.dropAnswer(ctx, payload)
			return p, err
		}
	} else {
		fresh, err := s.attempts.GetByID(ctx, a.ID)
		if err != nil {
			return engine.Progress{}, fmt.Errorf("reload attempt: %w", err)
		}
		if fresh.Status.IsTerminal() {
			return engine.Progress{Attempt: *fresh, Outcome: engine.OutcomeAlreadyFinalized}, nil
		}
		p = engine.Progress{Attempt: *fresh, Outcome: engine.OutcomeUnchanged}
	}

	if err := s.buffer.QueueAnswer(ctx, payload); err != nil {
		return engine.Progress{}, fmt.Errorf("queue answer: %w", err)
	}
	return p, nil
}

func (s *AttemptService) dropAnswer(ctx context.Context, p cache.AnswerPayload) {
	if err := s.buffer.DropAnswer(ctx, p); err != nil {
		s.log.Warn().Err(err).
			Str("attempt_id", p.AttemptID.String()).
			Str("question_id", p.QuestionID).
			Msg("Failed to drop buffered answer")
	}
}

// Finish completes the attempt at the participant's request. Finishing an attempt that is
// already final returns it unchanged.
func (s *AttemptService) Finish(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (engine.Progress, error) {
	mc, err := s.loadModule(ctx, sessionID, testID)
	if err != nil {
		return engine.Progress{}, err
	}
	a, err := s.current(ctx, sessionID, testID, participantID)
	if err != nil {
		return engine.Progress{}, err
	}
	return s.advance(ctx, a, engine.EventFinish, mc.env(model.Decision{}))
}

// State returns the attempt with its autosaved answers and the seconds left, after
// bringing it up to date with the clock.
func (s *AttemptService) State(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (*model.AttemptState, error) {
	mc, err := s.loadModule(ctx, sessionID, testID)
	if err != nil {
		return nil, err
	}
	a, err := s.attempts.Get(ctx, sessionID, testID, participantID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	ticked, err := s.tick(ctx, *a, mc)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, ticked, mc)
}

// current loads the participant's attempt. A missing row is reported as a not-started
// attempt so the engine rejects the event consistently.
func (s *AttemptService) current(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (model.Attempt, error) {
	a, err := s.attempts.Get(ctx, sessionID, testID, participantID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Attempt{
			ParticipantID: participantID,
			TestID:        testID,
			SessionID:     sessionID,
			Status:        model.AttemptStatusNotStarted,
		}, nil
	}
	if err != nil {
		return model.Attempt{}, fmt.Errorf("get attempt: %w", err)
	}
	return *a, nil
}

func (s *AttemptService) snapshot(ctx context.Context, a model.Attempt, mc *moduleContext) (*model.AttemptState, error) {
	answers, err := s.buffer.Answers(ctx, a.SessionID, a.TestID, a.ParticipantID)
	if err != nil {
		s.log.Warn().Err(err).Str("attempt_id", a.ID.String()).Msg("Failed to read autosaved answers")
		answers = map[string]string{}
	}
	return &model.AttemptState{
		Attempt:          a,
		TotalQuestions:   mc.test.TotalQuestions,
		RemainingSeconds: engine.RemainingSeconds(a, mc.test, mc.session, s.clock.Now()),
		AutosavedAnswers: answers,
	}, nil
}

// ListBySession returns every attempt in a session.
func (s *AttemptService) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Attempt, error) {
	if _, err := s.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	attempts, err := s.attempts.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session attempts: %w", err)
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	return attempts, nil
}

// TickOpen advances up to limit in-progress attempts that have not been touched since
// staleBefore, finalizing those past a deadline. It returns how many were finalized.
func (s *AttemptService) TickOpen(ctx context.Context, staleBefore time.Time, limit int) (int, error) {
	open, err := s.attempts.ListOpen(ctx, staleBefore, limit)
	if err != nil {
		return 0, fmt.Errorf("list open attempts: %w", err)
	}

	sessions := make(map[uuid.UUID]*model.Session)
	tests := make(map[uuid.UUID]*model.Test)
	finalized := 0
	for _, a := range open {
		sess, ok := sessions[a.SessionID]
		if !ok {
			if sess, err = s.loadSession(ctx, a.SessionID); err != nil {
				s.log.Error().Err(err).Str("session_id", a.SessionID.String()).Msg("Sweep could not load session")
				continue
			}
			sessions[a.SessionID] = sess
		}
		t, ok := tests[a.TestID]
		if !ok {
			if t, err = s.tests.Get(ctx, a.TestID); err != nil {
				s.log.Error().Err(err).Str("test_id", a.TestID.String()).Msg("Sweep could not load test")
				continue
			}
			tests[a.TestID] = t
		}

		p, err := s.advance(ctx, a, engine.EventTick, engine.Env{Test: *t, Session: *sess})
		if err != nil {
			s.log.Error().Err(err).Str("attempt_id", a.ID.String()).Msg("Sweep could not advance attempt")
			continue
		}
		if p.Outcome == engine.OutcomeFinalized {
			finalized++
		}
	}
	return finalized, nil
}

// SubmitScore queues an externally computed raw score for a completed attempt.
func (s *AttemptService) SubmitScore(ctx context.Context, attemptID uuid.UUID, rawScore float64) (*model.Attempt, error) {
	a, err := s.attempts.GetByID(ctx, attemptID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if !a.Status.CountsAsCompleted() {
		return nil, ErrAttemptNotScorable
	}

	err = s.buffer.QueueScore(ctx, cache.ScorePayload{
		AttemptID:     a.ID,
		ParticipantID: a.ParticipantID,
		SessionID:     a.SessionID,
		TestID:        a.TestID,
		RawScore:      rawScore,
	})
	if err != nil {
		return nil, fmt.Errorf("queue score: %w", err)
	}

	s.log.Info().Str("attempt_id", a.ID.String()).Float64("raw_score", rawScore).Msg("Score queued")
	return a, nil
}
