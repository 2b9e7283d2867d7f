package model

import (
	"time"

	"github.com/google/uuid"
)

// ScoreSummary describes a set of scores.
type ScoreSummary struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
}

// ModuleReport aggregates the attempts on one module of a session.
type ModuleReport struct {
	TestID         uuid.UUID
	TestName       string
	Category       string
	Sequence       int
	Weight         float64
	Attempts       int
	Completed      int
	CompletionRate float64
	StatusCounts   map[AttemptStatus]int
	RawScores      ScoreSummary
	AvgTimeSpent   float64
}

// SessionReport aggregates a whole session.
type SessionReport struct {
	Session        Session
	Registered     int
	TotalAttempts  int
	Completed      int
	CompletionRate float64
	Modules        []ModuleReport
	GradeCounts    map[Grade]int
	GradeDiversity float64
	Trend          string
}

// ParticipantReport is one participant's results in a session.
type ParticipantReport struct {
	Participant        Participant
	SessionID          uuid.UUID
	Records            []ScoreRecord
	Pending            int
	WeightedScore      float64
	WeightedPercentile float64
	OverallGrade       Grade
}

// CohortSession is one session's line in a cohort report.
type CohortSession struct {
	SessionID      uuid.UUID
	Name           string
	StartTime      time.Time
	Attempts       int
	CompletionRate float64
	MeanPercentile float64
}

// CohortReport aggregates every session recruiting for one target position.
type CohortReport struct {
	TargetPosition string
	Sessions       []CohortSession
	Participants   int
	TotalAttempts  int
	CompletionRate float64
	Percentiles    ScoreSummary
	GradeCounts    map[Grade]int
	GradeDiversity float64
	Trend          string
}
