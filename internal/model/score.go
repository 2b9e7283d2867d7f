package model

import "github.com/google/uuid"

// Grade buckets a percentile into a reporting band.
type Grade string

const (
	GradeVeryHigh Grade = "very_high"
	GradeHigh     Grade = "high"
	GradeAverage  Grade = "average"
	GradeLow      Grade = "low"
	GradeVeryLow  Grade = "very_low"
)

// ScoreRecord is derived per attempt for reporting; it is never persisted.
type ScoreRecord struct {
	AttemptID   uuid.UUID     `json:"attempt_id"`
	TestID      uuid.UUID     `json:"test_id"`
	Status      AttemptStatus `json:"status"`
	RawScore    float64       `json:"raw_score"`
	ScaledScore float64       `json:"scaled_score"`
	Percentile  float64       `json:"percentile"`
	Grade       Grade         `json:"grade"`
}
