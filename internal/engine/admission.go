package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/psytest-backend/internal/model"
)

// CanEnter decides whether a participant who was never admitted may enter the session at now.
func CanEnter(s model.Session, registered bool, now time.Time) model.Decision {
	return Decide(s, model.Entrant{Registered: registered}, now)
}

// Decide runs the full admission check for an entrant.
//
// The roster is checked first, so an unregistered participant always gets "not registered".
// Then the session must be effectively active. Capacity only applies to first entry: a seated
// participant always resumes, and a participant who left keeps being counted and may come back
// into a full session only when late entry is allowed.
//
// The count read from s is only trustworthy inside the transaction that will update it.
func Decide(s model.Session, e model.Entrant, now time.Time) model.Decision {
	if !e.Registered {
		return model.Decision{Reason: model.ReasonNotRegistered}
	}

	switch EffectiveStatus(s, now) {
	case model.SessionStatusActive:
	case model.SessionStatusDraft:
		return model.Decision{Reason: model.ReasonNotYetOpen}
	default:
		return model.Decision{Reason: model.ReasonClosed}
	}

	if e.Seated {
		return model.Decision{Allow: true, Resume: true}
	}

	if s.IsFull() {
		if e.PreviouslyAdmitted && s.AllowLateEntry {
			return model.Decision{Allow: true, Resume: true}
		}
		return model.Decision{Reason: model.ReasonFull}
	}

	return model.Decision{Allow: true, Resume: e.PreviouslyAdmitted}
}

// DecisionErr returns nil for an allowing decision and a typed error otherwise.
func DecisionErr(d model.Decision, sessionID uuid.UUID, participantID int) error {
	if d.Allow {
		return nil
	}
	return decisionError(d, sessionID, participantID)
}

// ConsumesSeat reports whether admitting under d adds one to the session's participant count.
func ConsumesSeat(d model.Decision) bool {
	return d.Allow && !d.Resume
}
