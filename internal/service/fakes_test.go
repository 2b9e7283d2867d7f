package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/cache"
	"github.com/stemsi/psytest-backend/internal/clock"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/repository"
)

var t0 = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

// fakeDB is an in-memory stand-in for PostgreSQL and Redis. The typed views below
// implement the store interfaces on top of it.
type fakeDB struct {
	mu  sync.Mutex
	clk clock.Clock

	tests         map[uuid.UUID]model.Test
	sessions      map[uuid.UUID]model.Session
	participants  map[int]model.Participant
	registrations map[uuid.UUID]map[int]bool
	admissions    map[uuid.UUID]map[int]model.Admission
	attempts      map[uuid.UUID]model.Attempt
	answers       map[string]map[string]string
	scores        []cache.ScorePayload
	queued        []cache.AnswerPayload

	// lostRaces makes the next n attempt updates report a concurrent change.
	lostRaces int
}

func newFakeDB(clk clock.Clock) *fakeDB {
	return &fakeDB{
		clk:           clk,
		tests:         make(map[uuid.UUID]model.Test),
		sessions:      make(map[uuid.UUID]model.Session),
		participants:  make(map[int]model.Participant),
		registrations: make(map[uuid.UUID]map[int]bool),
		admissions:    make(map[uuid.UUID]map[int]model.Admission),
		attempts:      make(map[uuid.UUID]model.Attempt),
		answers:       make(map[string]map[string]string),
	}
}

func copySession(s model.Session) *model.Session {
	s.Modules = append([]model.SessionModule(nil), s.Modules...)
	return &s
}

// ─── Tests ───

type fakeTests struct{ db *fakeDB }

func (f fakeTests) Create(_ context.Context, t *model.Test) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t.ID = uuid.New()
	t.CreatedAt = f.db.clk.Now()
	f.db.tests[t.ID] = *t
	return nil
}

func (f fakeTests) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t, ok := f.db.tests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (f fakeTests) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]model.Test, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := make(map[uuid.UUID]model.Test)
	for _, id := range ids {
		if t, ok := f.db.tests[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func (f fakeTests) ListPaginated(_ context.Context, limit, offset int) ([]model.Test, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var all []model.Test
	for _, t := range f.db.tests {
		all = append(all, t)
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// missCache never holds anything, so every read falls through to the store.
type missCache struct{}

func (missCache) GetTest(context.Context, uuid.UUID) (*model.Test, error) { return nil, cache.ErrMiss }
func (missCache) SetTest(context.Context, *model.Test) error             { return nil }

// ─── Sessions ───

type fakeSessions struct{ db *fakeDB }

func (f fakeSessions) Create(_ context.Context, s *model.Session) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, other := range f.db.sessions {
		if strings.EqualFold(other.JoinCode, s.JoinCode) {
			return repository.ErrDuplicate
		}
	}
	s.ID = uuid.New()
	s.CreatedAt = f.db.clk.Now()
	s.UpdatedAt = s.CreatedAt
	for i := range s.Modules {
		s.Modules[i].SessionID = s.ID
	}
	f.db.sessions[s.ID] = *copySession(*s)
	return nil
}

func (f fakeSessions) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySession(s), nil
}

func (f fakeSessions) GetByJoinCode(_ context.Context, code string) (*model.Session, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	for _, s := range f.db.sessions {
		if strings.EqualFold(s.JoinCode, code) {
			out := copySession(s)
			out.Modules = nil
			return out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f fakeSessions) ListPaginated(_ context.Context, filter repository.SessionFilter, limit, offset int) ([]model.Session, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var all []model.Session
	for _, s := range f.db.sessions {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.TargetPosition != "" && s.TargetPosition != filter.TargetPosition {
			continue
		}
		all = append(all, s)
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f fakeSessions) ListForParticipant(_ context.Context, participantID int) ([]model.Session, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Session
	for id, reg := range f.db.registrations {
		if reg[participantID] {
			out = append(out, *copySession(f.db.sessions[id]))
		}
	}
	return out, nil
}

func (f fakeSessions) ListByTargetPosition(_ context.Context, position string) ([]model.Session, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Session
	for _, s := range f.db.sessions {
		if s.TargetPosition == position {
			out = append(out, *copySession(s))
		}
	}
	return out, nil
}

func (f fakeSessions) ListStale(_ context.Context, now time.Time, limit int) ([]model.Session, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Session
	for _, s := range f.db.sessions {
		draftOpened := s.Status == model.SessionStatusDraft && !s.StartTime.After(now)
		activeOver := s.Status == model.SessionStatusActive && s.AutoExpire && s.EndTime.Before(now)
		if (draftOpened || activeOver) && len(out) < limit {
			out = append(out, *copySession(s))
		}
	}
	return out, nil
}

func (f fakeSessions) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.SessionStatus) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	f.db.sessions[id] = s
	return true, nil
}

// ─── Roster ───

type fakeRoster struct{ db *fakeDB }

func (f fakeRoster) GetByID(_ context.Context, id int) (*model.Participant, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	p, ok := f.db.participants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f fakeRoster) Register(_ context.Context, sessionID uuid.UUID, ids []int) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	reg := f.db.registrations[sessionID]
	if reg == nil {
		reg = make(map[int]bool)
		f.db.registrations[sessionID] = reg
	}
	added := 0
	for _, id := range ids {
		if _, ok := f.db.participants[id]; !ok || reg[id] {
			continue
		}
		reg[id] = true
		added++
	}
	return added, nil
}

func (f fakeRoster) IsRegistered(_ context.Context, sessionID uuid.UUID, participantID int) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.registrations[sessionID][participantID], nil
}

func (f fakeRoster) ListRegistered(_ context.Context, sessionID uuid.UUID) ([]model.Participant, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Participant
	for id := range f.db.registrations[sessionID] {
		out = append(out, f.db.participants[id])
	}
	return out, nil
}

// ─── Admissions ───

type fakeAdmissions struct{ db *fakeDB }

func (f fakeAdmissions) Admit(_ context.Context, sessionID uuid.UUID, participantID int, now time.Time, decide repository.DecideFunc) (model.Decision, *model.Session, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[sessionID]
	if !ok {
		return model.Decision{}, nil, repository.ErrNotFound
	}

	adm, admitted := f.db.admissions[sessionID][participantID]
	e := model.Entrant{
		Registered:         f.db.registrations[sessionID][participantID],
		Seated:             admitted && adm.Seated,
		PreviouslyAdmitted: admitted,
	}
	d := decide(s, e)
	if !d.Allow {
		return d, copySession(s), nil
	}

	if !d.Resume {
		s.CurrentParticipants++
		f.db.sessions[sessionID] = s
	}
	if f.db.admissions[sessionID] == nil {
		f.db.admissions[sessionID] = make(map[int]model.Admission)
	}
	if !admitted {
		adm = model.Admission{SessionID: sessionID, ParticipantID: participantID, AdmittedAt: now}
	}
	adm.Seated = true
	adm.LeftAt = nil
	f.db.admissions[sessionID][participantID] = adm
	return d, copySession(s), nil
}

func (f fakeAdmissions) Get(_ context.Context, sessionID uuid.UUID, participantID int) (*model.Admission, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	adm, ok := f.db.admissions[sessionID][participantID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &adm, nil
}

func (f fakeAdmissions) Leave(_ context.Context, sessionID uuid.UUID, participantID int, now time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	adm, ok := f.db.admissions[sessionID][participantID]
	if !ok || !adm.Seated {
		return repository.ErrNotFound
	}
	adm.Seated = false
	adm.LeftAt = &now
	f.db.admissions[sessionID][participantID] = adm
	return nil
}

// ─── Attempts ───

type fakeAttempts struct{ db *fakeDB }

func (f fakeAttempts) find(sessionID, testID uuid.UUID, participantID int) (model.Attempt, bool) {
	for _, a := range f.db.attempts {
		if a.SessionID == sessionID && a.TestID == testID && a.ParticipantID == participantID {
			return a, true
		}
	}
	return model.Attempt{}, false
}

func (f fakeAttempts) GetOrCreate(_ context.Context, sessionID, testID uuid.UUID, participantID int) (*model.Attempt, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if a, ok := f.find(sessionID, testID, participantID); ok {
		return &a, nil
	}
	a := model.Attempt{
		ID:            uuid.New(),
		ParticipantID: participantID,
		TestID:        testID,
		SessionID:     sessionID,
		Status:        model.AttemptStatusNotStarted,
		UpdatedAt:     f.db.clk.Now(),
	}
	f.db.attempts[a.ID] = a
	return &a, nil
}

func (f fakeAttempts) Get(_ context.Context, sessionID, testID uuid.UUID, participantID int) (*model.Attempt, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.find(sessionID, testID, participantID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (f fakeAttempts) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a, ok := f.db.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &a, nil
}

func (f fakeAttempts) Update(_ context.Context, a *model.Attempt, prev model.Attempt) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.lostRaces > 0 {
		f.db.lostRaces--
		return false, nil
	}
	stored, ok := f.db.attempts[a.ID]
	if !ok || stored.Status != prev.Status || stored.AnsweredQuestions != prev.AnsweredQuestions {
		return false, nil
	}
	a.UpdatedAt = f.db.clk.Now()
	a.RawScore = stored.RawScore
	f.db.attempts[a.ID] = *a
	return true, nil
}

func (f fakeAttempts) filter(keep func(model.Attempt) bool) []model.Attempt {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Attempt
	for _, a := range f.db.attempts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (f fakeAttempts) ListForParticipant(_ context.Context, sessionID uuid.UUID, participantID int) ([]model.Attempt, error) {
	return f.filter(func(a model.Attempt) bool {
		return a.SessionID == sessionID && a.ParticipantID == participantID
	}), nil
}

func (f fakeAttempts) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.Attempt, error) {
	return f.filter(func(a model.Attempt) bool { return a.SessionID == sessionID }), nil
}

func (f fakeAttempts) ListBySessions(_ context.Context, sessionIDs []uuid.UUID) ([]model.Attempt, error) {
	return f.filter(func(a model.Attempt) bool {
		for _, id := range sessionIDs {
			if a.SessionID == id {
				return true
			}
		}
		return false
	}), nil
}

func (f fakeAttempts) ListScoredByTest(_ context.Context, testID uuid.UUID) ([]model.Attempt, error) {
	return f.filter(func(a model.Attempt) bool {
		return a.TestID == testID && a.RawScore != nil && a.Status.CountsAsCompleted()
	}), nil
}

func (f fakeAttempts) ListOpen(_ context.Context, before time.Time, limit int) ([]model.Attempt, error) {
	out := f.filter(func(a model.Attempt) bool {
		return a.Status == model.AttemptStatusInProgress && a.UpdatedAt.Before(before)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ─── Answer buffer ───

type fakeBuffer struct{ db *fakeDB }

func answerKey(sessionID, testID uuid.UUID, participantID int) string {
	return fmt.Sprintf("%s/%s/%d", sessionID, testID, participantID)
}

func (f fakeBuffer) BufferAnswer(_ context.Context, p cache.AnswerPayload) (bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	key := answerKey(p.SessionID, p.TestID, p.ParticipantID)
	if f.db.answers[key] == nil {
		f.db.answers[key] = make(map[string]string)
	}
	_, seen := f.db.answers[key][p.QuestionID]
	f.db.answers[key][p.QuestionID] = p.Answer
	return !seen, nil
}

func (f fakeBuffer) DropAnswer(_ context.Context, p cache.AnswerPayload) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	delete(f.db.answers[answerKey(p.SessionID, p.TestID, p.ParticipantID)], p.QuestionID)
	return nil
}

func (f fakeBuffer) QueueAnswer(_ context.Context, p cache.AnswerPayload) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.queued = append(f.db.queued, p)
	return nil
}

func (f fakeBuffer) Answers(_ context.Context, sessionID, testID uuid.UUID, participantID int) (map[string]string, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	out := make(map[string]string)
	for k, v := range f.db.answers[answerKey(sessionID, testID, participantID)] {
		out[k] = v
	}
	return out, nil
}

func (f fakeBuffer) QueueScore(_ context.Context, p cache.ScorePayload) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.scores = append(f.db.scores, p)
	return nil
}

// finalizingBuffer completes the attempt right after the answer is buffered.
type finalizingBuffer struct {
	AnswerBuffer
	db *fakeDB
	id uuid.UUID
}

func (f finalizingBuffer) BufferAnswer(ctx context.Context, p cache.AnswerPayload) (bool, error) {
	isNew, err := f.AnswerBuffer.BufferAnswer(ctx, p)
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	a := f.db.attempts[f.id]
	end := f.db.clk.Now()
	a.Status = model.AttemptStatusCompleted
	a.EndTime = &end
	f.db.attempts[f.id] = a
	return isNew, err
}

// ─── Harness ───

type harness struct {
	db  *fakeDB
	clk *clock.Manual

	tests      *TestService
	sessions   *SessionService
	admission  *AdmissionService
	attempts   *AttemptService
	reports    *ReportService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewManual(t0.Add(-time.Hour))
	db := newFakeDB(clk)
	log := zerolog.Nop()

	h := &harness{db: db, clk: clk}
	h.tests = NewTestService(fakeTests{db}, missCache{}, log)
	h.sessions = NewSessionService(fakeSessions{db}, fakeRoster{db}, fakeTests{db}, clk, log)
	h.admission = NewAdmissionService(fakeSessions{db}, fakeAdmissions{db}, clk, log)
	h.attempts = NewAttemptService(AttemptDeps{
		Sessions:   fakeSessions{db},
		Tests:      h.tests,
		Roster:     fakeRoster{db},
		Admissions: fakeAdmissions{db},
		Attempts:   fakeAttempts{db},
		Buffer:     fakeBuffer{db},
		Clock:      clk,
	}, log)
	h.reports = NewReportService(fakeSessions{db}, fakeTests{db}, fakeRoster{db}, fakeAttempts{db}, 0, log)
	return h
}

func (h *harness) addTest(t *testing.T, name string, minutes, questions int) model.Test {
	t.Helper()
	tst, err := h.tests.Create(context.Background(), model.CreateTestRequest{
		Name:           name,
		Category:       "Cognitive",
		ModuleType:     string(model.ModuleTypeCognitive),
		TimeLimit:      minutes,
		TotalQuestions: questions,
	})
	if err != nil {
		t.Fatalf("create test: %v", err)
	}
	return *tst
}

func (h *harness) addParticipants(ids ...int) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	for _, id := range ids {
		h.db.participants[id] = model.Participant{ID: id, Name: "Peserta", Phone: fmt.Sprintf("0812%08d", id)}
	}
}

// addSession schedules a two-hour session at t0 with the given tests in order.
func (h *harness) addSession(t *testing.T, code string, maxParticipants *int, tests ...model.Test) *model.Session {
	t.Helper()
	req := model.CreateSessionRequest{
		Name:            "Rekrutmen Analis",
		JoinCode:        code,
		StartTime:       t0,
		EndTime:         t0.Add(2 * time.Hour),
		TargetPosition:  "analyst",
		MaxParticipants: maxParticipants,
	}
	for i, tst := range tests {
		req.Modules = append(req.Modules, model.SessionModuleRequest{TestID: tst.ID, Sequence: i + 1})
	}
	s, err := h.sessions.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func (h *harness) setRawScore(id uuid.UUID, score float64) {
	h.db.mu.Lock()
	defer h.db.mu.Unlock()
	a := h.db.attempts[id]
	a.RawScore = &score
	h.db.attempts[id] = a
}

func intPtr(v int) *int { return &v }
