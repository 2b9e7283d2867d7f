package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/psytest-backend/internal/model"
)

var t0 = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func timePtr(v time.Time) *time.Time { return &v }

// twoHourSession is a draft session open from t0 to t0+2h with auto-expiry.
func twoHourSession() model.Session {
	return model.Session{
		ID:         uuid.New(),
		Name:       "Rekrutmen Staf Gudang",
		JoinCode:   "GDG2026",
		StartTime:  t0,
		EndTime:    t0.Add(2 * time.Hour),
		Status:     model.SessionStatusDraft,
		AutoExpire: true,
	}
}

func thirtyMinuteTest() model.Test {
	return model.Test{
		ID:             uuid.New(),
		Name:           "Tes Penalaran Verbal",
		Category:       "verbal",
		ModuleType:     model.ModuleTypeCognitive,
		TimeLimit:      30,
		TotalQuestions: 20,
	}
}
