package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/psytest-backend/internal/model"
)

// Module configuration bounds.
const (
	MinModules = 1
	MaxModules = 20
	MinWeight  = 0.1
	MaxWeight  = 10.0
)

// Validate checks a session's module set and returns every violation found.
// A nil result means the set is usable.
func Validate(modules []model.SessionModule) []FieldError {
	var errs []FieldError

	if len(modules) < MinModules || len(modules) > MaxModules {
		errs = append(errs, FieldError{
			Field:   "modules",
			Message: fmt.Sprintf("must contain between %d and %d modules, got %d", MinModules, MaxModules, len(modules)),
		})
	}

	seenSeq := make(map[int]int, len(modules))
	seenTest := make(map[uuid.UUID]int, len(modules))

	for i, m := range modules {
		prefix := fmt.Sprintf("modules[%d]", i)

		if m.Sequence <= 0 {
			errs = append(errs, FieldError{Field: prefix + ".sequence", Message: "must be a positive number"})
		} else if first, ok := seenSeq[m.Sequence]; ok {
			errs = append(errs, FieldError{
				Field:   prefix + ".sequence",
				Message: fmt.Sprintf("duplicates sequence of modules[%d]", first),
			})
		} else {
			seenSeq[m.Sequence] = i
		}

		if m.TestID == uuid.Nil {
			errs = append(errs, FieldError{Field: prefix + ".test_id", Message: "is required"})
		} else if first, ok := seenTest[m.TestID]; ok {
			errs = append(errs, FieldError{
				Field:   prefix + ".test_id",
				Message: fmt.Sprintf("test already used by modules[%d]", first),
			})
		} else {
			seenTest[m.TestID] = i
		}

		if m.Weight < MinWeight || m.Weight > MaxWeight {
			errs = append(errs, FieldError{
				Field:   prefix + ".weight",
				Message: fmt.Sprintf("must be between %.1f and %.1f", MinWeight, MaxWeight),
			})
		}
	}

	return errs
}

// ValidateSession checks the session window, capacity and modules together.
func ValidateSession(s model.Session) error {
	var errs []FieldError

	if !s.EndTime.After(s.StartTime) {
		errs = append(errs, FieldError{Field: "end_time", Message: "must be after start_time"})
	}
	if s.MaxParticipants != nil {
		if *s.MaxParticipants < 1 {
			errs = append(errs, FieldError{Field: "max_participants", Message: "must be at least 1"})
		} else if s.CurrentParticipants > *s.MaxParticipants {
			errs = append(errs, FieldError{Field: "max_participants", Message: "is below the current participant count"})
		}
	}
	errs = append(errs, Validate(s.Modules)...)

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// OrderedSequence returns the modules sorted ascending by sequence. The input is not modified.
func OrderedSequence(modules []model.SessionModule) []model.SessionModule {
	out := make([]model.SessionModule, len(modules))
	copy(out, modules)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// NextModule returns the first module, in sequence order, whose attempt is not yet terminal.
func NextModule(ordered []model.SessionModule, attempts map[uuid.UUID]model.Attempt) (model.SessionModule, bool) {
	for _, m := range ordered {
		a, ok := attempts[m.TestID]
		if !ok || !a.Status.IsTerminal() {
			return m, true
		}
	}
	return model.SessionModule{}, false
}

// CanStartModule reports whether testID may be entered: every earlier required module
// must already be terminal. Optional modules may be passed over.
func CanStartModule(ordered []model.SessionModule, attempts map[uuid.UUID]model.Attempt, testID uuid.UUID) error {
	for _, m := range ordered {
		if m.TestID == testID {
			return nil
		}
		if !m.IsRequired {
			continue
		}
		if a, ok := attempts[m.TestID]; !ok || !a.Status.IsTerminal() {
			return conflict(ConflictOutOfSequence, "module %d must be finished first", m.Sequence)
		}
	}
	return conflict(ConflictOutOfSequence, "test %s is not part of this session", testID)
}

// ModuleDeadline is the instant a module attempt started at start runs out of time.
func ModuleDeadline(start time.Time, t model.Test) time.Time {
	return start.Add(t.TimeLimitDuration())
}
