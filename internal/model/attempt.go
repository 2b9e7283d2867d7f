package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates per-module attempt states.
type AttemptStatus string

const (
	AttemptStatusNotStarted    AttemptStatus = "not_started"
	AttemptStatusInProgress    AttemptStatus = "in_progress"
	AttemptStatusCompleted     AttemptStatus = "completed"
	AttemptStatusAutoCompleted AttemptStatus = "auto_completed"
	AttemptStatusExpired       AttemptStatus = "expired"
)

// IsTerminal reports whether the attempt can no longer change.
func (s AttemptStatus) IsTerminal() bool {
	switch s {
	case AttemptStatusCompleted, AttemptStatusAutoCompleted, AttemptStatusExpired:
		return true
	}
	return false
}

// CountsAsCompleted reports whether the attempt counts toward completion rates.
// Auto-completed attempts keep partial credit and count; expired ones do not.
func (s AttemptStatus) CountsAsCompleted() bool {
	return s == AttemptStatusCompleted || s == AttemptStatusAutoCompleted
}

// Attempt is one participant's progress through one test within one session.
type Attempt struct {
	ID                uuid.UUID     `json:"id"`
	ParticipantID     int           `json:"participant_id"`
	TestID            uuid.UUID     `json:"test_id"`
	SessionID         uuid.UUID     `json:"session_id"`
	Status            AttemptStatus `json:"status"`
	StartTime         *time.Time    `json:"start_time,omitempty"`
	EndTime           *time.Time    `json:"end_time,omitempty"`
	TimeSpent         int           `json:"time_spent"` // seconds
	AnsweredQuestions int           `json:"answered_questions"`
	RawScore          *float64      `json:"raw_score,omitempty"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// AttemptState is the snapshot returned to a participant on reload.
type AttemptState struct {
	Attempt          Attempt           `json:"attempt"`
	TotalQuestions   int               `json:"total_questions"`
	RemainingSeconds int               `json:"remaining_seconds"`
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
}

// ModuleProgress pairs a session module with the participant's attempt on it.
type ModuleProgress struct {
	Module   SessionModule `json:"module"`
	Test     Test          `json:"test"`
	Attempt  *Attempt      `json:"attempt,omitempty"`
	CanStart bool          `json:"can_start"`
}

// AnswerRequest carries a single answer submission.
type AnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,max=64"`
	Answer     string `json:"answer" binding:"required,max=4000"`
}

// SubmitScoreRequest carries an externally computed raw score for an attempt.
type SubmitScoreRequest struct {
	RawScore *float64 `json:"raw_score" binding:"required,min=0,max=100"`
}
