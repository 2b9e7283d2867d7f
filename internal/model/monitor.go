package model

import (
	"time"

	"github.com/google/uuid"
)

// MonitorSnapshot is the live view of a running session pushed to proctors.
type MonitorSnapshot struct {
	SessionID           uuid.UUID       `json:"session_id"`
	Name                string          `json:"name"`
	Status              SessionStatus   `json:"status"`
	Registered          int             `json:"registered"`
	CurrentParticipants int             `json:"current_participants"`
	MaxParticipants     *int            `json:"max_participants,omitempty"`
	Modules             []ModuleMonitor `json:"modules"`
	Active              []ActiveAttempt `json:"active"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

// ModuleMonitor counts attempts per status for one module.
type ModuleMonitor struct {
	TestID       uuid.UUID             `json:"test_id"`
	Sequence     int                   `json:"sequence"`
	NotStarted   int                   `json:"not_started"`
	StatusCounts map[AttemptStatus]int `json:"status_counts"`
}

// ActiveAttempt is an attempt currently in progress.
type ActiveAttempt struct {
	AttemptID         uuid.UUID `json:"attempt_id"`
	ParticipantID     int       `json:"participant_id"`
	TestID            uuid.UUID `json:"test_id"`
	StartTime         time.Time `json:"start_time"`
	ElapsedSeconds    int       `json:"elapsed_seconds"`
	AnsweredQuestions int       `json:"answered_questions"`
}
