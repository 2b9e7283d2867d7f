package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/repository"
	"github.com/stemsi/psytest-backend/internal/response"
	"github.com/stemsi/psytest-backend/internal/validator"
)

// SessionManager is the part of the session service used by admin endpoints.
type SessionManager interface {
	Create(ctx context.Context, req model.CreateSessionRequest) (*model.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Session, error)
	List(ctx context.Context, f repository.SessionFilter, page, perPage int) ([]model.Session, *response.Pagination, error)
	Cancel(ctx context.Context, id uuid.UUID) (*model.Session, error)
	Complete(ctx context.Context, id uuid.UUID) (*model.Session, error)
	Register(ctx context.Context, id uuid.UUID, participantIDs []int) (int, error)
	Roster(ctx context.Context, id uuid.UUID) ([]model.Participant, error)
}

// AttemptAdmin is the part of the attempt service used by admin endpoints.
type AttemptAdmin interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Attempt, error)
	SubmitScore(ctx context.Context, attemptID uuid.UUID, rawScore float64) (*model.Attempt, error)
}

// SessionHandler handles session scheduling and supervision endpoints.
type SessionHandler struct {
	sessions SessionManager
	attempts AttemptAdmin
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions SessionManager, attempts AttemptAdmin) *SessionHandler {
	return &SessionHandler{sessions: sessions, attempts: attempts}
}

// ListSessions godoc
// GET /api/v1/admin/sessions?status=active&target_position=analyst
// Lists sessions with their effective status.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	var q model.ListSessionsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	f := repository.SessionFilter{
		Status:         model.SessionStatus(q.Status),
		TargetPosition: strings.TrimSpace(q.TargetPosition),
	}
	sessions, pagination, err := h.sessions.List(c.Request.Context(), f, q.Page, q.PerPage)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"sessions": sessions}, pagination)
}

// CreateSession godoc
// POST /api/v1/admin/sessions
// Schedules a draft session with its ordered test modules.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"session": session})
}

// GetSession godoc
// GET /api/v1/admin/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	session, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// CancelSession godoc
// POST /api/v1/admin/sessions/:id/cancel
func (h *SessionHandler) CancelSession(c *gin.Context) {
	h.closeSession(c, h.sessions.Cancel)
}

// CompleteSession godoc
// POST /api/v1/admin/sessions/:id/complete
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	h.closeSession(c, h.sessions.Complete)
}

func (h *SessionHandler) closeSession(c *gin.Context, close func(context.Context, uuid.UUID) (*model.Session, error)) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	session, err := close(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// RegisterParticipants godoc
// POST /api/v1/admin/sessions/:id/participants
// Adds participants to the session roster. Already registered participants are skipped.
func (h *SessionHandler) RegisterParticipants(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req model.RegisterParticipantsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	added, err := h.sessions.Register(c.Request.Context(), id, req.ParticipantIDs)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"registered": added})
}

// GetRoster godoc
// GET /api/v1/admin/sessions/:id/participants
func (h *SessionHandler) GetRoster(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	roster, err := h.sessions.Roster(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if roster == nil {
		roster = []model.Participant{}
	}
	response.Success(c, http.StatusOK, gin.H{"participants": roster})
}

// ListAttempts godoc
// GET /api/v1/admin/sessions/:id/attempts
// Returns every attempt in the session as of now.
func (h *SessionHandler) ListAttempts(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	attempts, err := h.attempts.ListBySession(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// SubmitScore godoc
// PUT /api/v1/admin/attempts/:attempt_id/score
// Records the externally computed raw score of a finished attempt.
func (h *SessionHandler) SubmitScore(c *gin.Context) {
	id, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.SubmitScoreRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attempt, err := h.attempts.SubmitScore(c.Request.Context(), id, *req.RawScore)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"attempt": attempt})
}
