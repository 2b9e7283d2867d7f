package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/response"
	"github.com/stemsi/psytest-backend/internal/validator"
)

// TestCatalog is the part of the test service used by TestHandler.
type TestCatalog interface {
	Create(ctx context.Context, req model.CreateTestRequest) (*model.Test, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Test, error)
	List(ctx context.Context, page, perPage int) ([]model.Test, *response.Pagination, error)
}

// TestHandler handles test module catalogue endpoints.
type TestHandler struct {
	tests TestCatalog
}

// NewTestHandler creates a new TestHandler.
func NewTestHandler(tests TestCatalog) *TestHandler {
	return &TestHandler{tests: tests}
}

// ListTests godoc
// GET /api/v1/admin/tests
func (h *TestHandler) ListTests(c *gin.Context) {
	page, perPage := pageQuery(c)
	tests, pagination, err := h.tests.List(c.Request.Context(), page, perPage)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"tests": tests}, pagination)
}

// CreateTest godoc
// POST /api/v1/admin/tests
// Registers a timed test module.
func (h *TestHandler) CreateTest(c *gin.Context) {
	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.tests.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// GetTest godoc
// GET /api/v1/admin/tests/:id
func (h *TestHandler) GetTest(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	test, err := h.tests.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": test})
}
