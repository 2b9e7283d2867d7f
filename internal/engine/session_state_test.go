package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stemsi/psytest-backend/internal/model"
)

func TestEffectiveStatus(t *testing.T) {
	cases := []struct {
		name   string
		stored model.SessionStatus
		auto   bool
		at     time.Duration
		want   model.SessionStatus
	}{
		{"draft before start", model.SessionStatusDraft, true, -time.Minute, model.SessionStatusDraft},
		{"draft at start", model.SessionStatusDraft, true, 0, model.SessionStatusActive},
		{"draft at end", model.SessionStatusDraft, true, 2 * time.Hour, model.SessionStatusActive},
		{"draft after end", model.SessionStatusDraft, true, 2*time.Hour + time.Second, model.SessionStatusExpired},
		{"draft after end without auto expire", model.SessionStatusDraft, false, 3 * time.Hour, model.SessionStatusDraft},
		{"active after end", model.SessionStatusActive, true, 3 * time.Hour, model.SessionStatusExpired},
		{"completed stays completed", model.SessionStatusCompleted, true, 3 * time.Hour, model.SessionStatusCompleted},
		{"cancelled inside window", model.SessionStatusCancelled, true, time.Hour, model.SessionStatusCancelled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := twoHourSession()
			s.Status = tc.stored
			s.AutoExpire = tc.auto
			if got := EffectiveStatus(s, t0.Add(tc.at)); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestEffectiveStatusNeverEnteredSessionExpires(t *testing.T) {
	s := twoHourSession()
	if got := EffectiveStatus(s, t0.Add(2*time.Hour+time.Second)); got != model.SessionStatusExpired {
		t.Fatalf("expected expired, got %s", got)
	}
}

func TestEffectiveStatusMonotonic(t *testing.T) {
	rank := map[model.SessionStatus]int{
		model.SessionStatusDraft:   0,
		model.SessionStatusActive:  1,
		model.SessionStatusExpired: 2,
	}

	for _, stored := range []model.SessionStatus{model.SessionStatusDraft, model.SessionStatusActive} {
		s := twoHourSession()
		s.Status = stored
		prev := -1
		seenExpired := false
		for at := -30 * time.Minute; at <= 4*time.Hour; at += 7 * time.Minute {
			got := EffectiveStatus(s, t0.Add(at))
			r, ok := rank[got]
			if !ok {
				t.Fatalf("stored %s: unexpected status %s at %v", stored, got, at)
			}
			if r < prev {
				t.Fatalf("stored %s: status went back to %s at %v", stored, got, at)
			}
			if seenExpired && got != model.SessionStatusExpired {
				t.Fatalf("stored %s: left expired at %v", stored, at)
			}
			seenExpired = got == model.SessionStatusExpired
			prev = r
		}
		if !seenExpired {
			t.Fatalf("stored %s: never expired", stored)
		}
	}
}

func TestEffectiveStatusDegenerateWindow(t *testing.T) {
	s := twoHourSession()
	s.EndTime = s.StartTime

	if got := EffectiveStatus(s, t0); got != model.SessionStatusActive {
		t.Fatalf("expected active at the single instant, got %s", got)
	}
	if got := EffectiveStatus(s, t0.Add(time.Nanosecond)); got != model.SessionStatusExpired {
		t.Fatalf("expected expired right after, got %s", got)
	}
}

func TestTransition(t *testing.T) {
	s := twoHourSession()

	if to, err := Transition(s, model.SessionStatusCancelled, t0.Add(-time.Hour)); err != nil || to != model.SessionStatusCancelled {
		t.Fatalf("draft -> cancelled: got %s, %v", to, err)
	}
	if to, err := Transition(s, model.SessionStatusCompleted, t0.Add(time.Hour)); err != nil || to != model.SessionStatusCompleted {
		t.Fatalf("effective active -> completed: got %s, %v", to, err)
	}

	_, err := Transition(s, model.SessionStatusCompleted, t0.Add(-time.Hour))
	var conflictErr *StateConflictError
	if !errors.As(err, &conflictErr) || conflictErr.Kind != ConflictIllegalTransition {
		t.Fatalf("draft -> completed: expected illegal transition, got %v", err)
	}

	_, err = Transition(s, model.SessionStatusCancelled, t0.Add(3*time.Hour))
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expired -> cancelled: expected conflict, got %v", err)
	}
}

func TestCanTransitionTerminal(t *testing.T) {
	for _, from := range []model.SessionStatus{model.SessionStatusExpired, model.SessionStatusCompleted, model.SessionStatusCancelled} {
		for _, to := range []model.SessionStatus{model.SessionStatusDraft, model.SessionStatusActive, model.SessionStatusExpired, model.SessionStatusCompleted, model.SessionStatusCancelled} {
			if CanTransition(from, to) {
				t.Fatalf("%s is terminal but allows %s", from, to)
			}
		}
	}
}

func TestNeedsWriteBack(t *testing.T) {
	s := twoHourSession()
	if _, ok := NeedsWriteBack(s, t0.Add(-time.Minute)); ok {
		t.Fatal("draft before start should not need write-back")
	}
	eff, ok := NeedsWriteBack(s, t0.Add(time.Minute))
	if !ok || eff != model.SessionStatusActive {
		t.Fatalf("expected write-back to active, got %s %v", eff, ok)
	}
}
