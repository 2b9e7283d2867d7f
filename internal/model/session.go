package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates the stored and effective states of an assessment session.
type SessionStatus string

const (
	SessionStatusDraft     SessionStatus = "draft"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusExpired   SessionStatus = "expired"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible from s.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusExpired, SessionStatusCompleted, SessionStatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusDraft, SessionStatusActive, SessionStatusExpired, SessionStatusCompleted, SessionStatusCancelled:
		return true
	}
	return false
}

// Session is a scheduled, time-boxed assessment event.
type Session struct {
	ID                  uuid.UUID       `json:"id"`
	Name                string          `json:"name"`
	JoinCode            string          `json:"join_code"`
	StartTime           time.Time       `json:"start_time"`
	EndTime             time.Time       `json:"end_time"`
	TargetPosition      string          `json:"target_position"`
	MaxParticipants     *int            `json:"max_participants,omitempty"`
	CurrentParticipants int             `json:"current_participants"`
	Status              SessionStatus   `json:"status"`
	AutoExpire          bool            `json:"auto_expire"`
	AllowLateEntry      bool            `json:"allow_late_entry"`
	Modules             []SessionModule `json:"modules,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// IsFull reports whether every seat is taken. Sessions without a cap are never full.
func (s *Session) IsFull() bool {
	return s.MaxParticipants != nil && s.CurrentParticipants >= *s.MaxParticipants
}

// SessionModule binds a test to a session at a sequence position with a scoring weight.
type SessionModule struct {
	SessionID  uuid.UUID `json:"session_id"`
	TestID     uuid.UUID `json:"test_id"`
	Sequence   int       `json:"sequence"`
	IsRequired bool      `json:"is_required"`
	Weight     float64   `json:"weight"`
}

// CreateSessionRequest is the payload for scheduling a new session.
type CreateSessionRequest struct {
	Name            string                 `json:"name" binding:"required,min=3,max=255"`
	JoinCode        string                 `json:"join_code" binding:"required,joincode"`
	StartTime       time.Time              `json:"start_time" binding:"required"`
	EndTime         time.Time              `json:"end_time" binding:"required,gtfield=StartTime"`
	TargetPosition  string                 `json:"target_position" binding:"omitempty,max=255"`
	MaxParticipants *int                   `json:"max_participants" binding:"omitempty,min=1"`
	AutoExpire      *bool                  `json:"auto_expire" binding:"omitempty"`
	AllowLateEntry  bool                   `json:"allow_late_entry"`
	Modules         []SessionModuleRequest `json:"modules" binding:"required,min=1,dive"`
}

// SessionModuleRequest describes one module in a CreateSessionRequest.
type SessionModuleRequest struct {
	TestID     uuid.UUID `json:"test_id" binding:"required"`
	Sequence   int       `json:"sequence" binding:"required"`
	IsRequired *bool     `json:"is_required" binding:"omitempty"`
	Weight     float64   `json:"weight" binding:"omitempty"`
}

// RegisterParticipantsRequest adds participants to a session roster.
type RegisterParticipantsRequest struct {
	ParticipantIDs []int `json:"participant_ids" binding:"required,min=1,max=500,dive,min=1"`
}

// JoinSessionRequest is the payload for a participant joining by code.
type JoinSessionRequest struct {
	JoinCode string `json:"join_code" binding:"required,joincode"`
}

// ListSessionsQuery holds the filters of the admin session listing.
type ListSessionsQuery struct {
	Status         string `form:"status" binding:"omitempty,oneof=draft active expired completed cancelled"`
	TargetPosition string `form:"target_position" binding:"omitempty,max=255"`
	Page           int    `form:"page" binding:"omitempty,min=1"`
	PerPage        int    `form:"per_page" binding:"omitempty,min=1,max=100"`
}

// CohortQuery selects the sessions of a cohort report.
type CohortQuery struct {
	TargetPosition string `form:"target_position" binding:"required,max=255"`
}
