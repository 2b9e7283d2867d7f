package engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stemsi/psytest-backend/internal/model"
)

// FieldError is a single field-scoped configuration violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationError batches every violation found in one configuration.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldMap flattens the violations into field → message, keeping the first message per field.
func (e *ValidationError) FieldMap() map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := m[f.Field]; !ok {
			m[f.Field] = f.Message
		}
	}
	return m
}

// ConflictKind classifies a StateConflictError.
type ConflictKind string

const (
	ConflictSessionNotOpen    ConflictKind = "session_not_open"
	ConflictSessionClosed     ConflictKind = "session_closed"
	ConflictSessionFull       ConflictKind = "session_full"
	ConflictIllegalTransition ConflictKind = "illegal_transition"
	ConflictAttemptNotStarted ConflictKind = "attempt_not_started"
	ConflictOutOfSequence     ConflictKind = "out_of_sequence"
)

// StateConflictError reports an operation that the current state does not permit.
// The caller should refresh its view of the state and inform the user.
type StateConflictError struct {
	Kind   ConflictKind
	Detail string
}

func (e *StateConflictError) Error() string {
	if e.Detail == "" {
		return "state conflict: " + string(e.Kind)
	}
	return fmt.Sprintf("state conflict: %s: %s", e.Kind, e.Detail)
}

// NotRegisteredError reports a participant missing from a session roster.
type NotRegisteredError struct {
	SessionID     uuid.UUID
	ParticipantID int
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("participant %d is not registered for session %s", e.ParticipantID, e.SessionID)
}

func conflict(kind ConflictKind, format string, args ...any) *StateConflictError {
	return &StateConflictError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// decisionError converts a negative admission decision into a typed error.
func decisionError(d model.Decision, sessionID uuid.UUID, participantID int) error {
	switch d.Reason {
	case model.ReasonNotRegistered:
		return &NotRegisteredError{SessionID: sessionID, ParticipantID: participantID}
	case model.ReasonNotYetOpen:
		return conflict(ConflictSessionNotOpen, "session %s is not yet open", sessionID)
	case model.ReasonFull:
		return conflict(ConflictSessionFull, "session %s is full", sessionID)
	default:
		return conflict(ConflictSessionClosed, "session %s is closed", sessionID)
	}
}
