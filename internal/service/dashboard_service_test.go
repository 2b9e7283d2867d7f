package service

import (
	"context"
	"testing"
	"time"

	"github.com/stemsi/psytest-backend/internal/clock"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/repository"
)

type dashboardStub struct {
	open []model.Session
}

func (d dashboardStub) GetSummaryCounts(context.Context) (int, int, int, int, error) {
	return 10, 4, 3, 25, nil
}

func (d dashboardStub) ListOpenSessions(context.Context) ([]model.Session, error) {
	return d.open, nil
}

func (d dashboardStub) CountFinalSessions(context.Context) (map[model.SessionStatus]int, error) {
	return nil, nil
}

func (d dashboardStub) CountAttemptsByStatus(context.Context) (map[model.AttemptStatus]int, error) {
	return map[model.AttemptStatus]int{model.AttemptStatusCompleted: 25}, nil
}

func (d dashboardStub) GetRecentSessions(context.Context, time.Time, int) ([]repository.DashboardRecentSession, error) {
	return nil, nil
}

func TestDashboardUsesEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	stub := dashboardStub{open: []model.Session{
		{Name: "running", Status: model.SessionStatusDraft, AutoExpire: true,
			StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)},
		{Name: "over", Status: model.SessionStatusActive, AutoExpire: true,
			StartTime: now.Add(-3 * time.Hour), EndTime: now.Add(-time.Hour)},
		{Name: "later", Status: model.SessionStatusDraft, AutoExpire: true,
			StartTime: now.Add(time.Hour), EndTime: now.Add(2 * time.Hour)},
	}}

	data, err := NewDashboardService(stub, clock.Fixed(now)).GetDashboardData(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	counts := data.SessionStatusCounts
	if counts[model.SessionStatusActive] != 1 || counts[model.SessionStatusExpired] != 1 || counts[model.SessionStatusDraft] != 1 {
		t.Fatalf("unexpected status counts %v", counts)
	}
	if len(data.RunningSessions) != 1 || data.RunningSessions[0].Name != "running" {
		t.Fatalf("unexpected running sessions %+v", data.RunningSessions)
	}
	if data.TotalParticipants != 10 || data.AttemptStatusCounts[model.AttemptStatusCompleted] != 25 {
		t.Fatalf("summary not passed through: %+v", data)
	}
}
