package service

import "errors"

// Service-level errors. Engine errors (ValidationError, StateConflictError,
// NotRegisteredError) are passed through unchanged.
var (
	ErrTestNotFound        = errors.New("test not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrInvalidJoinCode     = errors.New("no session with this join code")
	ErrJoinCodeTaken       = errors.New("join code already in use")
	ErrNotAdmitted         = errors.New("participant has not joined the session")
	ErrTestNotInSession    = errors.New("test is not a module of this session")
	ErrStaleAttempt        = errors.New("attempt changed concurrently")
	ErrStaleSession        = errors.New("session changed concurrently")
	ErrAttemptNotScorable  = errors.New("only completed attempts can be scored")
)
