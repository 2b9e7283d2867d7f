package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/engine"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/repository"
	"github.com/stemsi/psytest-backend/internal/stats"
	"golang.org/x/sync/errgroup"
)

// ReportService builds session, participant and cohort reports from stored attempts.
// Scores are ranked against every scored attempt on the same test.
type ReportService struct {
	sessions       SessionStore
	tests          TestStore
	roster         RosterStore
	attempts       AttemptStore
	trendThreshold float64
	log            zerolog.Logger
}

// NewReportService creates a new ReportService. A non-positive threshold falls back to
// stats.DefaultTrendThreshold.
func NewReportService(sessions SessionStore, tests TestStore, roster RosterStore, attempts AttemptStore, trendThreshold float64, log zerolog.Logger) *ReportService {
	if trendThreshold <= 0 {
		trendThreshold = stats.DefaultTrendThreshold
	}
	return &ReportService{
		sessions:       sessions,
		tests:          tests,
		roster:         roster,
		attempts:       attempts,
		trendThreshold: trendThreshold,
		log:            log.With().Str("component", "report_service").Logger(),
	}
}

var allGrades = []model.Grade{
	model.GradeVeryHigh, model.GradeHigh, model.GradeAverage, model.GradeLow, model.GradeVeryLow,
}

func (s *ReportService) loadSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// norms loads the norm group distribution of each test concurrently.
func (s *ReportService) norms(ctx context.Context, testIDs []uuid.UUID) (map[uuid.UUID]stats.Distribution, error) {
	var mu sync.Mutex
	out := make(map[uuid.UUID]stats.Distribution, len(testIDs))

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range testIDs {
		g.Go(func() error {
			group, err := s.attempts.ListScoredByTest(ctx, id)
			if err != nil {
				return fmt.Errorf("load norm group for %s: %w", id, err)
			}
			d := stats.DistributionStats(rawScores(group))
			mu.Lock()
			out[id] = d
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// scored reports whether a counts toward results.
func scored(a model.Attempt) bool {
	return a.RawScore != nil && a.Status.CountsAsCompleted()
}

func rawScores(attempts []model.Attempt) []float64 {
	out := make([]float64, 0, len(attempts))
	for _, a := range attempts {
		if scored(a) {
			out = append(out, *a.RawScore)
		}
	}
	return out
}

// scoreRecord ranks a scored attempt against its norm group. The scaled score is a T-score.
func scoreRecord(a model.Attempt, norm stats.Distribution) model.ScoreRecord {
	raw := *a.RawScore
	scaled := 50.0
	if norm.StdDev > 0 {
		scaled = 50 + 10*(raw-norm.Mean)/norm.StdDev
	}
	pct := norm.PercentileRank(raw)
	return model.ScoreRecord{
		AttemptID:   a.ID,
		TestID:      a.TestID,
		Status:      a.Status,
		RawScore:    raw,
		ScaledScore: scaled,
		Percentile:  pct,
		Grade:       stats.GradeForPercentile(pct),
	}
}

func summary(d stats.Distribution) model.ScoreSummary {
	return model.ScoreSummary{
		Count:  d.Count,
		Mean:   d.Mean,
		Median: d.Median,
		StdDev: d.StdDev,
		Min:    d.Min,
		Max:    d.Max,
	}
}

// gradeMix counts grades over every band, so bands nobody landed in still weigh in
// the diversity index.
func gradeMix(records []model.ScoreRecord) (map[model.Grade]int, float64) {
	counts := make(map[model.Grade]int, len(allGrades))
	keyed := make(map[string]int, len(allGrades))
	for _, g := range allGrades {
		counts[g] = 0
		keyed[string(g)] = 0
	}
	for _, r := range records {
		counts[r.Grade]++
		keyed[string(r.Grade)]++
	}
	return counts, stats.DiversityIndex(keyed)
}

// trend orders the percentiles of scored attempts by end time and compares the halves.
func (s *ReportService) trend(attempts []model.Attempt, records map[uuid.UUID]model.ScoreRecord) stats.Trend {
	finished := make([]model.Attempt, 0, len(records))
	for _, a := range attempts {
		if _, ok := records[a.ID]; ok && a.EndTime != nil {
			finished = append(finished, a)
		}
	}
	sort.SliceStable(finished, func(i, j int) bool { return finished[i].EndTime.Before(*finished[j].EndTime) })

	series := make([]float64, len(finished))
	for i, a := range finished {
		series[i] = records[a.ID].Percentile
	}
	first, second := stats.SplitHalves(series)
	return stats.TrendDirection(first, second, s.trendThreshold)
}

func (s *ReportService) scoreAll(attempts []model.Attempt, norms map[uuid.UUID]stats.Distribution) map[uuid.UUID]model.ScoreRecord {
	out := make(map[uuid.UUID]model.ScoreRecord)
	for _, a := range attempts {
		if scored(a) {
			out[a.ID] = scoreRecord(a, norms[a.TestID])
		}
	}
	return out
}

func recordList(m map[uuid.UUID]model.ScoreRecord) []model.ScoreRecord {
	out := make([]model.ScoreRecord, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	return out
}

func moduleTestIDs(modules []model.SessionModule) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(modules))
	for _, m := range modules {
		ids = append(ids, m.TestID)
	}
	return ids
}

// SessionReport aggregates every module of a session.
func (s *ReportService) SessionReport(ctx context.Context, sessionID uuid.UUID) (*model.SessionReport, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ids := moduleTestIDs(sess.Modules)

	var (
		attempts []model.Attempt
		roster   []model.Participant
		tests    map[uuid.UUID]model.Test
		norms    map[uuid.UUID]stats.Distribution
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		attempts, err = s.attempts.ListBySession(gctx, sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		roster, err = s.roster.ListRegistered(gctx, sessionID)
		return err
	})
	g.Go(func() error {
		var err error
		tests, err = s.tests.GetMany(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		norms, err = s.norms(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load session report data: %w", err)
	}

	records := s.scoreAll(attempts, norms)
	registered := len(roster)

	byTest := make(map[uuid.UUID][]model.Attempt, len(ids))
	for _, a := range attempts {
		byTest[a.TestID] = append(byTest[a.TestID], a)
	}

	rep := &model.SessionReport{
		Session:       *sess,
		Registered:    registered,
		TotalAttempts: len(attempts),
	}
	for _, m := range sess.Modules {
		list := byTest[m.TestID]
		t := tests[m.TestID]
		mr := model.ModuleReport{
			TestID:       m.TestID,
			TestName:     t.Name,
			Category:     t.Category,
			Sequence:     m.Sequence,
			Weight:       m.Weight,
			Attempts:     len(list),
			StatusCounts: make(map[model.AttemptStatus]int),
			RawScores:    summary(stats.DistributionStats(rawScores(list))),
		}
		var spent, finished int
		for _, a := range list {
			mr.StatusCounts[a.Status]++
			if a.Status.CountsAsCompleted() {
				mr.Completed++
			}
			if a.Status.IsTerminal() {
				spent += a.TimeSpent
				finished++
			}
		}
		if finished > 0 {
			mr.AvgTimeSpent = float64(spent) / float64(finished)
		}
		mr.CompletionRate = stats.CompletionRate(registered, mr.Completed)
		rep.Completed += mr.Completed
		rep.Modules = append(rep.Modules, mr)
	}

	rep.CompletionRate = stats.CompletionRate(registered*len(sess.Modules), rep.Completed)
	rep.GradeCounts, rep.GradeDiversity = gradeMix(recordList(records))
	rep.Trend = string(s.trend(attempts, records))

	s.log.Debug().
		Str("session_id", sessionID.String()).
		Int("attempts", len(attempts)).
		Int("scored", len(records)).
		Msg("Session report built")
	return rep, nil
}

// ParticipantReport returns one participant's ranked results in a session and the
// weight-adjusted composite across modules.
func (s *ReportService) ParticipantReport(ctx context.Context, sessionID uuid.UUID, participantID int) (*model.ParticipantReport, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var (
		participant *model.Participant
		attempts    []model.Attempt
		norms       map[uuid.UUID]stats.Distribution
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participant, err = s.roster.GetByID(gctx, participantID)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrParticipantNotFound
		}
		return err
	})
	g.Go(func() error {
		var err error
		attempts, err = s.attempts.ListForParticipant(gctx, sessionID, participantID)
		return err
	})
	g.Go(func() error {
		var err error
		norms, err = s.norms(gctx, moduleTestIDs(sess.Modules))
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrParticipantNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load participant report data: %w", err)
	}

	byTest := make(map[uuid.UUID]model.Attempt, len(attempts))
	for _, a := range attempts {
		byTest[a.TestID] = a
	}

	rep := &model.ParticipantReport{
		Participant: *participant,
		SessionID:   sessionID,
		Records:     []model.ScoreRecord{},
	}
	var scaled, pcts, weights []float64
	for _, m := range engine.OrderedSequence(sess.Modules) {
		a, ok := byTest[m.TestID]
		if !ok || !scored(a) {
			rep.Pending++
			continue
		}
		r := scoreRecord(a, norms[m.TestID])
		rep.Records = append(rep.Records, r)
		scaled = append(scaled, r.ScaledScore)
		pcts = append(pcts, r.Percentile)
		weights = append(weights, m.Weight)
	}

	rep.WeightedScore = stats.WeightedMean(scaled, weights)
	rep.WeightedPercentile = stats.WeightedMean(pcts, weights)
	if len(rep.Records) > 0 {
		rep.OverallGrade = stats.GradeForPercentile(rep.WeightedPercentile)
	}
	return rep, nil
}

// CohortReport aggregates every session recruiting for targetPosition. A position with no
// sessions yields an empty report.
func (s *ReportService) CohortReport(ctx context.Context, targetPosition string) (*model.CohortReport, error) {
	sessions, err := s.sessions.ListByTargetPosition(ctx, targetPosition)
	if err != nil {
		return nil, fmt.Errorf("list cohort sessions: %w", err)
	}

	rep := &model.CohortReport{TargetPosition: targetPosition, Sessions: []model.CohortSession{}}
	if len(sessions) == 0 {
		rep.GradeCounts, rep.GradeDiversity = gradeMix(nil)
		rep.Trend = string(stats.TrendStable)
		return rep, nil
	}

	sessionIDs := make([]uuid.UUID, 0, len(sessions))
	for _, sess := range sessions {
		sessionIDs = append(sessionIDs, sess.ID)
	}
	attempts, err := s.attempts.ListBySessions(ctx, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("list cohort attempts: %w", err)
	}

	seenTests := make(map[uuid.UUID]struct{})
	var testIDs []uuid.UUID
	for _, a := range attempts {
		if _, ok := seenTests[a.TestID]; !ok {
			seenTests[a.TestID] = struct{}{}
			testIDs = append(testIDs, a.TestID)
		}
	}
	norms, err := s.norms(ctx, testIDs)
	if err != nil {
		return nil, err
	}
	records := s.scoreAll(attempts, norms)

	bySession := make(map[uuid.UUID][]model.Attempt, len(sessions))
	participants := make(map[int]struct{})
	completed := 0
	for _, a := range attempts {
		bySession[a.SessionID] = append(bySession[a.SessionID], a)
		participants[a.ParticipantID] = struct{}{}
		if a.Status.CountsAsCompleted() {
			completed++
		}
	}

	for _, sess := range sessions {
		list := bySession[sess.ID]
		cs := model.CohortSession{
			SessionID: sess.ID,
			Name:      sess.Name,
			StartTime: sess.StartTime,
			Attempts:  len(list),
		}
		done := 0
		var pcts []float64
		for _, a := range list {
			if a.Status.CountsAsCompleted() {
				done++
			}
			if r, ok := records[a.ID]; ok {
				pcts = append(pcts, r.Percentile)
			}
		}
		cs.CompletionRate = stats.CompletionRate(len(list), done)
		cs.MeanPercentile = stats.DistributionStats(pcts).Mean
		rep.Sessions = append(rep.Sessions, cs)
	}

	all := recordList(records)
	pcts := make([]float64, 0, len(all))
	for _, r := range all {
		pcts = append(pcts, r.Percentile)
	}

	rep.Participants = len(participants)
	rep.TotalAttempts = len(attempts)
	rep.CompletionRate = stats.CompletionRate(len(attempts), completed)
	rep.Percentiles = summary(stats.DistributionStats(pcts))
	rep.GradeCounts, rep.GradeDiversity = gradeMix(all)
	rep.Trend = string(s.trend(attempts, records))
	return rep, nil
}
