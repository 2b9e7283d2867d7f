package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/psytest-backend/internal/engine"
	"github.com/stemsi/psytest-backend/internal/middleware"
	"github.com/stemsi/psytest-backend/internal/response"
	"github.com/stemsi/psytest-backend/internal/service"
)

var conflictCodes = map[engine.ConflictKind]response.ErrCode{
	engine.ConflictSessionNotOpen:    response.ErrSessionNotOpen,
	engine.ConflictSessionClosed:     response.ErrSessionClosed,
	engine.ConflictSessionFull:       response.ErrSessionFull,
	engine.ConflictIllegalTransition: response.ErrIllegalTransition,
	engine.ConflictAttemptNotStarted: response.ErrAttemptNotStarted,
	engine.ConflictOutOfSequence:     response.ErrOutOfSequence,
}

// errorStatus maps a service or engine error to an HTTP status and error code.
func errorStatus(err error) (int, response.ErrCode) {
	var (
		invalid    *engine.ValidationError
		conflict   *engine.StateConflictError
		unrostered *engine.NotRegisteredError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, response.ErrInvalidModuleSet
	case errors.As(err, &conflict):
		if code, ok := conflictCodes[conflict.Kind]; ok {
			return http.StatusConflict, code
		}
		return http.StatusConflict, response.ErrConflict
	case errors.As(err, &unrostered):
		return http.StatusForbidden, response.ErrNotRegistered

	case errors.Is(err, service.ErrTestNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrParticipantNotFound),
		errors.Is(err, service.ErrAttemptNotFound),
		errors.Is(err, service.ErrTestNotInSession):
		return http.StatusNotFound, response.ErrNotFound
	case errors.Is(err, service.ErrInvalidJoinCode):
		return http.StatusNotFound, response.ErrInvalidJoinCode
	case errors.Is(err, service.ErrJoinCodeTaken):
		return http.StatusConflict, response.ErrJoinCodeTaken
	case errors.Is(err, service.ErrNotAdmitted):
		return http.StatusForbidden, response.ErrNotAdmitted
	case errors.Is(err, service.ErrStaleAttempt):
		return http.StatusConflict, response.ErrStaleAttempt
	case errors.Is(err, service.ErrStaleSession):
		return http.StatusConflict, response.ErrConflict
	case errors.Is(err, service.ErrAttemptNotScorable):
		return http.StatusConflict, response.ErrAttemptNotScored
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// fail writes the error envelope for err. Unexpected errors are attached to the
// context so the request logger records them.
func fail(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		response.Fail(c, status, code)
		return
	}

	var invalid *engine.ValidationError
	if errors.As(err, &invalid) {
		response.FailWithFields(c, status, code, invalid.FieldMap())
		return
	}
	response.Fail(c, status, code)
}

// uuidParam parses a UUID path parameter, writing INVALID_ID on failure.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}

// intParam parses a positive integer path parameter, writing INVALID_ID on failure.
func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return n, true
}

// participantID returns the authenticated participant, writing TOKEN_REQUIRED when absent.
func participantID(c *gin.Context) (int, bool) {
	id, err := middleware.ParticipantID(c)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return 0, false
	}
	return id, true
}

func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	return page, perPage
}
