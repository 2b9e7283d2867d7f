package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/psytest-backend/internal/dto"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/response"
	"github.com/stemsi/psytest-backend/internal/validator"
)

// Reports builds the assessment reports.
type Reports interface {
	SessionReport(ctx context.Context, sessionID uuid.UUID) (*model.SessionReport, error)
	ParticipantReport(ctx context.Context, sessionID uuid.UUID, participantID int) (*model.ParticipantReport, error)
	CohortReport(ctx context.Context, targetPosition string) (*model.CohortReport, error)
}

// ReportHandler handles reporting endpoints.
type ReportHandler struct {
	reports Reports
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports Reports) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// SessionReport godoc
// GET /api/v1/admin/reports/sessions/:id
// Completion and score figures for every module of a session.
func (h *ReportHandler) SessionReport(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	rep, err := h.reports.SessionReport(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	resp, err := dto.NewSessionReport(rep)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// ParticipantReport godoc
// GET /api/v1/admin/reports/sessions/:id/participants/:participant_id
// One participant's score records within a session.
func (h *ReportHandler) ParticipantReport(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	pid, ok := intParam(c, "participant_id")
	if !ok {
		return
	}

	rep, err := h.reports.ParticipantReport(c.Request.Context(), id, pid)
	if err != nil {
		fail(c, err)
		return
	}
	resp, err := dto.NewParticipantReport(rep)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}

// CohortReport godoc
// GET /api/v1/admin/reports/cohort?target_position=analyst
// Aggregates every session recruiting for the same position.
func (h *ReportHandler) CohortReport(c *gin.Context) {
	var q model.CohortQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rep, err := h.reports.CohortReport(c.Request.Context(), strings.TrimSpace(q.TargetPosition))
	if err != nil {
		fail(c, err)
		return
	}
	resp, err := dto.NewCohortReport(rep)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, resp)
}
