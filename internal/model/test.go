package model

import (
	"time"

	"github.com/google/uuid"
)

// ModuleType enumerates the kinds of psychological test modules.
type ModuleType string

const (
	ModuleTypeCognitive   ModuleType = "cognitive"
	ModuleTypePersonality ModuleType = "personality"
	ModuleTypeAptitude    ModuleType = "aptitude"
	ModuleTypeInterest    ModuleType = "interest"
)

// Test is a timed test module. The engine only reads it.
type Test struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Category       string     `json:"category"`
	ModuleType     ModuleType `json:"module_type"`
	TimeLimit      int        `json:"time_limit"` // minutes
	TotalQuestions int        `json:"total_questions"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TimeLimitDuration returns the time limit as a duration.
func (t *Test) TimeLimitDuration() time.Duration {
	return time.Duration(t.TimeLimit) * time.Minute
}

// CreateTestRequest is the payload for registering a test module.
type CreateTestRequest struct {
	Name           string `json:"name" binding:"required,min=2,max=255"`
	Category       string `json:"category" binding:"required,min=2,max=100"`
	ModuleType     string `json:"module_type" binding:"required,oneof=cognitive personality aptitude interest"`
	TimeLimit      int    `json:"time_limit" binding:"required,min=1,max=480"`
	TotalQuestions int    `json:"total_questions" binding:"required,min=1,max=1000"`
}
