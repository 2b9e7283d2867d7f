package service

import (
	"context"
	"time"

	"github.com/stemsi/psytest-backend/internal/clock"
	"github.com/stemsi/psytest-backend/internal/engine"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/repository"
)

// DashboardStore is the read model behind the admin dashboard.
type DashboardStore interface {
	GetSummaryCounts(ctx context.Context) (participants, tests, sessions, attempts int, err error)
	ListOpenSessions(ctx context.Context) ([]model.Session, error)
	CountFinalSessions(ctx context.Context) (map[model.SessionStatus]int, error)
	CountAttemptsByStatus(ctx context.Context) (map[model.AttemptStatus]int, error)
	GetRecentSessions(ctx context.Context, now time.Time, limit int) ([]repository.DashboardRecentSession, error)
}

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	TotalParticipants   int                                 `json:"total_participants"`
	TotalTests          int                                 `json:"total_tests"`
	TotalSessions       int                                 `json:"total_sessions"`
	TotalAttempts       int                                 `json:"total_attempts"`
	SessionStatusCounts map[model.SessionStatus]int         `json:"session_status_counts"`
	AttemptStatusCounts map[model.AttemptStatus]int         `json:"attempt_status_counts"`
	RunningSessions     []model.Session                     `json:"running_sessions"`
	RecentSessions      []repository.DashboardRecentSession `json:"recent_sessions"`
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	repo  DashboardStore
	clock clock.Clock
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(repo DashboardStore, clk clock.Clock) *DashboardService {
	return &DashboardService{repo: repo, clock: clk}
}

// GetDashboardData gathers the dashboard metrics. Session counts use effective statuses,
// so sessions whose window passed count as expired even before the sweep writes them back.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	participants, tests, sessions, attempts, err := s.repo.GetSummaryCounts(ctx)
	if err != nil {
		return nil, err
	}

	statusCounts, err := s.repo.CountFinalSessions(ctx)
	if err != nil {
		return nil, err
	}
	if statusCounts == nil {
		statusCounts = map[model.SessionStatus]int{}
	}

	open, err := s.repo.ListOpenSessions(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	running := []model.Session{}
	for _, sess := range open {
		sess.Status = engine.EffectiveStatus(sess, now)
		statusCounts[sess.Status]++
		if sess.Status == model.SessionStatusActive {
			running = append(running, sess)
		}
	}

	attemptCounts, err := s.repo.CountAttemptsByStatus(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := s.repo.GetRecentSessions(ctx, now, 5)
	if err != nil {
		return nil, err
	}

	data := &DashboardData{
		TotalParticipants:   participants,
		TotalTests:          tests,
		TotalSessions:       sessions,
		TotalAttempts:       attempts,
		SessionStatusCounts: statusCounts,
		AttemptStatusCounts: attemptCounts,
		RunningSessions:     running,
		RecentSessions:      recent,
	}

	return data, nil
}
