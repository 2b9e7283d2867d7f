package engine

import (
	"time"

	"github.com/stemsi/psytest-backend/internal/model"
)

// Event is something that happened to an attempt.
type Event string

const (
	EventStart  Event = "start"
	EventAnswer Event = "answer"
	EventFinish Event = "finish"
	EventTick   Event = "tick"
)

// Outcome describes what AdvanceAttempt did.
type Outcome string

const (
	OutcomeUpdated          Outcome = "updated"
	OutcomeFinalized        Outcome = "finalized"
	OutcomeAlreadyFinalized Outcome = "already_finalized"
	OutcomeUnchanged        Outcome = "unchanged"
)

// Env is the context an attempt event is evaluated against.
type Env struct {
	Test    model.Test
	Session model.Session
	// Admission must be the decision for this participant at the event time.
	// Only the start event looks at it.
	Admission model.Decision
}

// Progress is the result of advancing an attempt.
type Progress struct {
	Attempt model.Attempt
	Outcome Outcome
}

// Changed reports whether the attempt needs to be persisted.
func (p Progress) Changed() bool {
	return p.Outcome == OutcomeUpdated || p.Outcome == OutcomeFinalized
}

// AdvanceAttempt applies ev to a at now and returns the new attempt state.
//
// Deadlines are enforced before the event itself: an in-progress attempt past its test time
// limit or past the session window is finalized regardless of which event arrived. The attempt
// ends at the earlier of the two deadlines, so the result does not depend on when it is
// observed; when they coincide the full time limit is credited. Events on a terminal attempt
// change nothing and are not errors.
func AdvanceAttempt(a model.Attempt, ev Event, env Env, now time.Time) (Progress, error) {
	switch {
	case a.Status.IsTerminal():
		return Progress{Attempt: a, Outcome: OutcomeAlreadyFinalized}, nil
	case a.Status == model.AttemptStatusNotStarted:
		return advanceNotStarted(a, ev, env, now)
	}

	if a.StartTime == nil {
		// Stored in_progress without a start time; treat the first sighting as the start.
		st := now
		a.StartTime = &st
	}
	start := *a.StartTime

	deadline := ModuleDeadline(start, env.Test)
	if !now.Before(deadline) {
		end := deadline
		if env.Session.EndTime.Before(end) {
			end = env.Session.EndTime
		}
		a.EndTime = &end
		a.TimeSpent = elapsedSeconds(start, end)
		a.Status = finalStatus(a)
		return Progress{Attempt: a, Outcome: OutcomeFinalized}, nil
	}

	if sessionOver(env.Session, now) {
		end := now
		if env.Session.EndTime.Before(end) {
			end = env.Session.EndTime
		}
		a.EndTime = &end
		a.TimeSpent = elapsedSeconds(start, end)
		a.Status = finalStatus(a)
		return Progress{Attempt: a, Outcome: OutcomeFinalized}, nil
	}

	switch ev {
	case EventAnswer:
		if env.Test.TotalQuestions <= 0 || a.AnsweredQuestions < env.Test.TotalQuestions {
			a.AnsweredQuestions++
		}
		a.TimeSpent = elapsedSeconds(start, now)
		return Progress{Attempt: a, Outcome: OutcomeUpdated}, nil

	case EventFinish:
		end := now
		a.EndTime = &end
		a.TimeSpent = elapsedSeconds(start, now)
		a.Status = model.AttemptStatusCompleted
		return Progress{Attempt: a, Outcome: OutcomeFinalized}, nil

	case EventTick:
		spent := elapsedSeconds(start, now)
		if spent == a.TimeSpent {
			return Progress{Attempt: a, Outcome: OutcomeUnchanged}, nil
		}
		a.TimeSpent = spent
		return Progress{Attempt: a, Outcome: OutcomeUpdated}, nil

	default:
		// start on a running attempt resumes it
		return Progress{Attempt: a, Outcome: OutcomeUnchanged}, nil
	}
}

func advanceNotStarted(a model.Attempt, ev Event, env Env, now time.Time) (Progress, error) {
	switch ev {
	case EventStart:
		if err := DecisionErr(env.Admission, env.Session.ID, a.ParticipantID); err != nil {
			return Progress{Attempt: a, Outcome: OutcomeUnchanged}, err
		}
		st := now
		a.StartTime = &st
		a.EndTime = nil
		a.TimeSpent = 0
		a.AnsweredQuestions = 0
		a.Status = model.AttemptStatusInProgress
		return Progress{Attempt: a, Outcome: OutcomeUpdated}, nil

	case EventTick:
		return Progress{Attempt: a, Outcome: OutcomeUnchanged}, nil

	default:
		return Progress{Attempt: a, Outcome: OutcomeUnchanged},
			conflict(ConflictAttemptNotStarted, "attempt on test %s has not been started", a.TestID)
	}
}

func sessionOver(s model.Session, now time.Time) bool {
	if now.After(s.EndTime) {
		return true
	}
	switch EffectiveStatus(s, now) {
	case model.SessionStatusExpired, model.SessionStatusCancelled, model.SessionStatusCompleted:
		return true
	}
	return false
}

// finalStatus picks the terminal status for an attempt cut off by a deadline.
func finalStatus(a model.Attempt) model.AttemptStatus {
	if a.AnsweredQuestions > 0 {
		return model.AttemptStatusAutoCompleted
	}
	return model.AttemptStatusExpired
}

func elapsedSeconds(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// RemainingSeconds returns how long an in-progress attempt has left before the earlier of its
// test deadline and the session end. It is zero for attempts that are not running.
func RemainingSeconds(a model.Attempt, t model.Test, s model.Session, now time.Time) int {
	if a.Status != model.AttemptStatusInProgress || a.StartTime == nil {
		return 0
	}
	deadline := ModuleDeadline(*a.StartTime, t)
	if s.EndTime.Before(deadline) {
		deadline = s.EndTime
	}
	return elapsedSeconds(now, deadline)
}
