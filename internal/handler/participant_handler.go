package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/psytest-backend/internal/dto"
	"github.com/stemsi/psytest-backend/internal/engine"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/response"
	"github.com/stemsi/psytest-backend/internal/service"
	"github.com/stemsi/psytest-backend/internal/validator"
)

// Lobby lists the sessions a participant is registered for.
type Lobby interface {
	Lobby(ctx context.Context, participantID int) ([]service.LobbyEntry, error)
}

// Admission lets participants in and out of sessions.
type Admission interface {
	Join(ctx context.Context, code string, participantID int) (*model.Session, model.Decision, error)
	Enter(ctx context.Context, sessionID uuid.UUID, participantID int) (*model.Session, model.Decision, error)
	Leave(ctx context.Context, sessionID uuid.UUID, participantID int) error
}

// AttemptRunner drives a participant's attempts.
type AttemptRunner interface {
	Modules(ctx context.Context, sessionID uuid.UUID, participantID int) ([]model.ModuleProgress, error)
	Start(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (*model.AttemptState, error)
	Answer(ctx context.Context, sessionID, testID uuid.UUID, participantID int, req model.AnswerRequest) (engine.Progress, error)
	Finish(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (engine.Progress, error)
	State(ctx context.Context, sessionID, testID uuid.UUID, participantID int) (*model.AttemptState, error)
}

// ParticipantHandler handles participant-facing endpoints (lobby, admission, attempts).
type ParticipantHandler struct {
	lobby     Lobby
	admission Admission
	attempts  AttemptRunner
}

// NewParticipantHandler creates a new ParticipantHandler.
func NewParticipantHandler(lobby Lobby, admission Admission, attempts AttemptRunner) *ParticipantHandler {
	return &ParticipantHandler{lobby: lobby, admission: admission, attempts: attempts}
}

// GetLobby godoc
// GET /api/v1/participant/lobby
// Returns the sessions the participant is registered for and whether each can be entered now.
func (h *ParticipantHandler) GetLobby(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}

	entries, err := h.lobby.Lobby(c.Request.Context(), pid)
	if err != nil {
		fail(c, err)
		return
	}
	sessions, err := dto.NewLobby(entries)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// JoinSession godoc
// POST /api/v1/participant/sessions/join
// Admits the participant to the session behind a join code. Rejoining does not take another seat.
func (h *ParticipantHandler) JoinSession(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}

	var req model.JoinSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, d, err := h.admission.Join(c.Request.Context(), req.JoinCode, pid)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto.JoinResponse{Session: *session, Resume: d.Resume})
}

// EnterSession godoc
// POST /api/v1/participant/sessions/:id/enter
// Same as JoinSession for a session picked from the lobby.
func (h *ParticipantHandler) EnterSession(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	session, d, err := h.admission.Enter(c.Request.Context(), id, pid)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto.JoinResponse{Session: *session, Resume: d.Resume})
}

// LeaveSession godoc
// POST /api/v1/participant/sessions/:id/leave
func (h *ParticipantHandler) LeaveSession(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.admission.Leave(c.Request.Context(), id, pid); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"left": true})
}

// GetModules godoc
// GET /api/v1/participant/sessions/:id/modules
// Lists the session's modules in order with the participant's attempt on each.
func (h *ParticipantHandler) GetModules(c *gin.Context) {
	pid, ok := participantID(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	modules, err := h.attempts.Modules(c.Request.Context(), id, pid)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"modules": modules})
}

// moduleParams reads the participant, session and test of a module route.
func moduleParams(c *gin.Context) (pid int, sessionID, testID uuid.UUID, ok bool) {
	if pid, ok = participantID(c); !ok {
		return
	}
	if sessionID, ok = uuidParam(c, "id"); !ok {
		return
	}
	testID, ok = uuidParam(c, "test_id")
	return
}

// StartModule godoc
// POST /api/v1/participant/sessions/:id/modules/:test_id/start
// Starts the attempt, or returns the running one.
func (h *ParticipantHandler) StartModule(c *gin.Context) {
	pid, sessionID, testID, ok := moduleParams(c)
	if !ok {
		return
	}

	state, err := h.attempts.Start(c.Request.Context(), sessionID, testID, pid)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}

// SubmitAnswer godoc
// POST /api/v1/participant/sessions/:id/modules/:test_id/answer
// Autosaves one answer. Answers after the attempt ended are accepted and ignored.
func (h *ParticipantHandler) SubmitAnswer(c *gin.Context) {
	pid, sessionID, testID, ok := moduleParams(c)
	if !ok {
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	p, err := h.attempts.Answer(c.Request.Context(), sessionID, testID, pid, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto.NewAttemptProgress(p))
}

// FinishModule godoc
// POST /api/v1/participant/sessions/:id/modules/:test_id/finish
func (h *ParticipantHandler) FinishModule(c *gin.Context) {
	pid, sessionID, testID, ok := moduleParams(c)
	if !ok {
		return
	}

	p, err := h.attempts.Finish(c.Request.Context(), sessionID, testID, pid)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, dto.NewAttemptProgress(p))
}

// GetModuleState godoc
// GET /api/v1/participant/sessions/:id/modules/:test_id/state
// Covers page reloads: the attempt, remaining time and autosaved answers.
func (h *ParticipantHandler) GetModuleState(c *gin.Context) {
	pid, sessionID, testID, ok := moduleParams(c)
	if !ok {
		return
	}

	state, err := h.attempts.State(c.Request.Context(), sessionID, testID, pid)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, state)
}
