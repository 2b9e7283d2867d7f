package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/psytest-backend/internal/response"
	"github.com/stemsi/psytest-backend/internal/service"
)

// Dashboard supplies the admin overview.
type Dashboard interface {
	GetDashboardData(ctx context.Context) (*service.DashboardData, error)
}

// DashboardHandler handles admin dashboard endpoints.
type DashboardHandler struct {
	dashboard Dashboard
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboard Dashboard) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// GetDashboardData godoc
// GET /api/v1/admin/dashboard
// Returns summary counts, session and attempt status distributions, and running sessions.
func (h *DashboardHandler) GetDashboardData(c *gin.Context) {
	data, err := h.dashboard.GetDashboardData(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, data)
}
