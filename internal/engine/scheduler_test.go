package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/psytest-backend/internal/model"
)

func module(seq int, required bool, weight float64) model.SessionModule {
	return model.SessionModule{TestID: uuid.New(), Sequence: seq, IsRequired: required, Weight: weight}
}

func fieldSet(errs []FieldError) map[string]bool {
	m := make(map[string]bool, len(errs))
	for _, e := range errs {
		m[e.Field] = true
	}
	return m
}

func TestValidateAcceptsWellFormedSet(t *testing.T) {
	mods := []model.SessionModule{module(1, true, 1), module(2, true, 2.5), module(3, false, 0.1)}
	if errs := Validate(mods); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
}

func TestValidateCollectsEveryViolation(t *testing.T) {
	dup := module(2, true, 1)
	mods := []model.SessionModule{
		module(1, true, 1),
		dup,
		{TestID: dup.TestID, Sequence: 2, Weight: 11},
		{Sequence: 0, Weight: 0.05},
	}

	errs := Validate(mods)
	got := fieldSet(errs)
	for _, want := range []string{
		"modules[2].sequence",
		"modules[2].test_id",
		"modules[2].weight",
		"modules[3].sequence",
		"modules[3].test_id",
		"modules[3].weight",
	} {
		if !got[want] {
			t.Errorf("missing error for %s in %v", want, errs)
		}
	}
	if got["modules[0].sequence"] || got["modules[1].sequence"] {
		t.Fatalf("first occurrences must not be flagged: %v", errs)
	}
}

func TestValidateModuleCount(t *testing.T) {
	if errs := Validate(nil); !fieldSet(errs)["modules"] {
		t.Fatalf("expected count error for empty set, got %v", errs)
	}

	var many []model.SessionModule
	for i := 1; i <= MaxModules+1; i++ {
		many = append(many, module(i, true, 1))
	}
	if errs := Validate(many); !fieldSet(errs)["modules"] {
		t.Fatalf("expected count error for %d modules, got %v", len(many), errs)
	}
}

func TestOrderedSequenceIsStrictlyIncreasing(t *testing.T) {
	mods := []model.SessionModule{module(4, true, 1), module(1, true, 1), module(9, false, 1), module(2, true, 1)}
	if errs := Validate(mods); len(errs) != 0 {
		t.Fatalf("fixture invalid: %v", errs)
	}

	ordered := OrderedSequence(mods)
	if len(ordered) != len(mods) {
		t.Fatalf("expected %d modules, got %d", len(mods), len(ordered))
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Sequence <= ordered[i-1].Sequence {
			t.Fatalf("not strictly increasing at %d: %d after %d", i, ordered[i].Sequence, ordered[i-1].Sequence)
		}
	}
	if mods[0].Sequence != 4 {
		t.Fatal("input slice was reordered")
	}
}

func TestValidateSession(t *testing.T) {
	s := twoHourSession()
	s.Modules = []model.SessionModule{module(1, true, 1)}
	if err := ValidateSession(s); err != nil {
		t.Fatalf("expected valid session, got %v", err)
	}

	s.EndTime = s.StartTime.Add(-time.Minute)
	s.MaxParticipants = intPtr(0)
	err := ValidateSession(s)

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := vErr.FieldMap()
	if _, ok := fields["end_time"]; !ok {
		t.Fatalf("expected end_time error, got %v", fields)
	}
	if _, ok := fields["max_participants"]; !ok {
		t.Fatalf("expected max_participants error, got %v", fields)
	}
}

func TestNextModuleAndCanStart(t *testing.T) {
	first, optional, last := module(1, true, 1), module(2, false, 1), module(3, true, 1)
	ordered := OrderedSequence([]model.SessionModule{last, optional, first})
	attempts := map[uuid.UUID]model.Attempt{}

	next, ok := NextModule(ordered, attempts)
	if !ok || next.TestID != first.TestID {
		t.Fatalf("expected first module next, got %+v", next)
	}

	var conflictErr *StateConflictError
	if err := CanStartModule(ordered, attempts, last.TestID); !errors.As(err, &conflictErr) || conflictErr.Kind != ConflictOutOfSequence {
		t.Fatalf("expected out of sequence, got %v", err)
	}

	attempts[first.TestID] = model.Attempt{TestID: first.TestID, Status: model.AttemptStatusExpired}
	if err := CanStartModule(ordered, attempts, last.TestID); err != nil {
		t.Fatalf("optional module should be skippable, got %v", err)
	}

	next, _ = NextModule(ordered, attempts)
	if next.TestID != optional.TestID {
		t.Fatalf("expected optional module next, got sequence %d", next.Sequence)
	}

	attempts[optional.TestID] = model.Attempt{Status: model.AttemptStatusCompleted}
	attempts[last.TestID] = model.Attempt{Status: model.AttemptStatusAutoCompleted}
	if _, ok := NextModule(ordered, attempts); ok {
		t.Fatal("expected no module left")
	}

	if err := CanStartModule(ordered, attempts, uuid.New()); err == nil {
		t.Fatal("expected error for a test outside the session")
	}
}
