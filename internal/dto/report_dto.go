package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/stats"
)

// ScoreSummaryResponse describes a set of scores, rounded for display.
type ScoreSummaryResponse struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

func (r *ScoreSummaryResponse) round() {
	r.Mean = stats.Round2(r.Mean)
	r.Median = stats.Round2(r.Median)
	r.StdDev = stats.Round2(r.StdDev)
	r.Min = stats.Round2(r.Min)
	r.Max = stats.Round2(r.Max)
}

type ModuleReportResponse struct {
	TestID         uuid.UUID                   `json:"test_id"`
	TestName       string                      `json:"test_name"`
	Category       string                      `json:"category"`
	Sequence       int                         `json:"sequence"`
	Weight         float64                     `json:"weight"`
	Attempts       int                         `json:"attempts"`
	Completed      int                         `json:"completed"`
	CompletionRate float64                     `json:"completion_rate"`
	StatusCounts   map[model.AttemptStatus]int `json:"status_counts"`
	RawScores      ScoreSummaryResponse        `json:"raw_scores"`
	AvgTimeSpent   float64                     `json:"avg_time_spent"`
}

type SessionReportResponse struct {
	Session        model.Session          `json:"session"`
	Registered     int                    `json:"registered"`
	TotalAttempts  int                    `json:"total_attempts"`
	Completed      int                    `json:"completed"`
	CompletionRate float64                `json:"completion_rate"`
	Modules        []ModuleReportResponse `json:"modules"`
	GradeCounts    map[model.Grade]int    `json:"grade_counts"`
	GradeDiversity float64                `json:"grade_diversity"`
	Trend          string                 `json:"trend"`
}

type ScoreRecordResponse struct {
	AttemptID   uuid.UUID           `json:"attempt_id"`
	TestID      uuid.UUID           `json:"test_id"`
	Status      model.AttemptStatus `json:"status"`
	RawScore    float64             `json:"raw_score"`
	ScaledScore float64             `json:"scaled_score"`
	Percentile  float64             `json:"percentile"`
	Grade       model.Grade         `json:"grade"`
}

type ParticipantReportResponse struct {
	Participant        model.Participant     `json:"participant"`
	SessionID          uuid.UUID             `json:"session_id"`
	Records            []ScoreRecordResponse `json:"records"`
	Pending            int                   `json:"pending"`
	WeightedScore      float64               `json:"weighted_score"`
	WeightedPercentile float64               `json:"weighted_percentile"`
	OverallGrade       model.Grade           `json:"overall_grade,omitempty"`
}

type CohortSessionResponse struct {
	SessionID      uuid.UUID `json:"session_id"`
	Name           string    `json:"name"`
	StartTime      time.Time `json:"start_time"`
	Attempts       int       `json:"attempts"`
	CompletionRate float64   `json:"completion_rate"`
	MeanPercentile float64   `json:"mean_percentile"`
}

type CohortReportResponse struct {
	TargetPosition string                  `json:"target_position"`
	Sessions       []CohortSessionResponse `json:"sessions"`
	Participants   int                     `json:"participants"`
	TotalAttempts  int                     `json:"total_attempts"`
	CompletionRate float64                 `json:"completion_rate"`
	Percentiles    ScoreSummaryResponse    `json:"percentiles"`
	GradeCounts    map[model.Grade]int     `json:"grade_counts"`
	GradeDiversity float64                 `json:"grade_diversity"`
	Trend          string                  `json:"trend"`
}

var deep = copier.Option{DeepCopy: true}

// NewSessionReport converts a report to its response form. Figures are rounded to two
// decimals here and nowhere earlier.
func NewSessionReport(rep *model.SessionReport) (*SessionReportResponse, error) {
	var resp SessionReportResponse
	if err := copier.CopyWithOption(&resp, rep, deep); err != nil {
		return nil, err
	}
	resp.CompletionRate = stats.Round2(resp.CompletionRate)
	resp.GradeDiversity = stats.Round2(resp.GradeDiversity)
	for i := range resp.Modules {
		m := &resp.Modules[i]
		m.CompletionRate = stats.Round2(m.CompletionRate)
		m.AvgTimeSpent = stats.Round2(m.AvgTimeSpent)
		m.RawScores.round()
	}
	if resp.Modules == nil {
		resp.Modules = []ModuleReportResponse{}
	}
	return &resp, nil
}

// NewParticipantReport converts a participant report to its response form.
func NewParticipantReport(rep *model.ParticipantReport) (*ParticipantReportResponse, error) {
	var resp ParticipantReportResponse
	if err := copier.CopyWithOption(&resp, rep, deep); err != nil {
		return nil, err
	}
	resp.WeightedScore = stats.Round2(resp.WeightedScore)
	resp.WeightedPercentile = stats.Round2(resp.WeightedPercentile)
	for i := range resp.Records {
		r := &resp.Records[i]
		r.RawScore = stats.Round2(r.RawScore)
		r.ScaledScore = stats.Round2(r.ScaledScore)
		r.Percentile = stats.Round2(r.Percentile)
	}
	if resp.Records == nil {
		resp.Records = []ScoreRecordResponse{}
	}
	return &resp, nil
}

// NewCohortReport converts a cohort report to its response form.
func NewCohortReport(rep *model.CohortReport) (*CohortReportResponse, error) {
	var resp CohortReportResponse
	if err := copier.CopyWithOption(&resp, rep, deep); err != nil {
		return nil, err
	}
	resp.CompletionRate = stats.Round2(resp.CompletionRate)
	resp.GradeDiversity = stats.Round2(resp.GradeDiversity)
	resp.Percentiles.round()
	for i := range resp.Sessions {
		s := &resp.Sessions[i]
		s.CompletionRate = stats.Round2(s.CompletionRate)
		s.MeanPercentile = stats.Round2(s.MeanPercentile)
	}
	if resp.Sessions == nil {
		resp.Sessions = []CohortSessionResponse{}
	}
	return &resp, nil
}
