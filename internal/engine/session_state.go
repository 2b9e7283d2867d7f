package engine

import (
	"time"

	"github.com/stemsi/psytest-backend/internal/model"
)

// EffectiveStatus derives the status a session has at now from its stored status and window.
//
// Stored completed/cancelled are final. Past end_time with auto_expire the session is expired.
// A draft inside its window is active. Anything else keeps its stored status.
// The result is never written back here; callers persist it if they want to.
func EffectiveStatus(s model.Session, now time.Time) model.SessionStatus {
	switch s.Status {
	case model.SessionStatusCompleted, model.SessionStatusCancelled:
		return s.Status
	}

	if now.After(s.EndTime) && s.AutoExpire {
		return model.SessionStatusExpired
	}

	if s.Status == model.SessionStatusDraft && !now.Before(s.StartTime) && !now.After(s.EndTime) {
		return model.SessionStatusActive
	}

	return s.Status
}

var sessionTransitions = map[model.SessionStatus][]model.SessionStatus{
	model.SessionStatusDraft:  {model.SessionStatusActive, model.SessionStatusCancelled},
	model.SessionStatusActive: {model.SessionStatusExpired, model.SessionStatusCompleted, model.SessionStatusCancelled},
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
func CanTransition(from, to model.SessionStatus) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates an explicit status change against the session's effective status at now
// and returns the status to store.
func Transition(s model.Session, to model.SessionStatus, now time.Time) (model.SessionStatus, error) {
	from := EffectiveStatus(s, now)
	if !CanTransition(from, to) {
		return from, conflict(ConflictIllegalTransition, "session %s cannot move from %s to %s", s.ID, from, to)
	}
	return to, nil
}

// NeedsWriteBack reports whether the stored status lags behind the effective one.
func NeedsWriteBack(s model.Session, now time.Time) (model.SessionStatus, bool) {
	eff := EffectiveStatus(s, now)
	return eff, eff != s.Status
}
