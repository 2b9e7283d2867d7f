package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/psytest-backend/internal/config"
	"github.com/stemsi/psytest-backend/internal/handler"
	"github.com/stemsi/psytest-backend/internal/middleware"
	"github.com/stemsi/psytest-backend/internal/model"
	"github.com/stemsi/psytest-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Participant *handler.ParticipantHandler
	WS          *handler.WSHandler
	Test        *handler.TestHandler
	Session     *handler.SessionHandler
	Report      *handler.ReportHandler
	Dashboard   *handler.DashboardHandler
	Monitor     *handler.MonitorHandler
	System      *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// joinLimiter guards the join endpoint against join code guessing.
func SetupRouter(
	auth middleware.TokenValidator,
	handlers *Handlers,
	cfg *config.Config,
	joinLimiter *middleware.RateLimiter,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Compress())

	router.GET("/health", handlers.System.Health)

	// ─── 1. Participant Group (JWT) ────────────────────────────────────
	participantAPI := router.Group("/api/v1/participant")
	participantAPI.Use(
		middleware.RequireParticipantJWT(auth),
		middleware.CacheControl("no-store"),
	)
	{
		participantAPI.GET("/lobby", handlers.Participant.GetLobby)
		participantAPI.POST("/sessions/join", joinLimiter.Middleware(), handlers.Participant.JoinSession)
		participantAPI.POST("/sessions/:id/enter", handlers.Participant.EnterSession)
		participantAPI.POST("/sessions/:id/leave", handlers.Participant.LeaveSession)
		participantAPI.GET("/sessions/:id/modules", handlers.Participant.GetModules)

		module := participantAPI.Group("/sessions/:id/modules/:test_id")
		{
			module.POST("/start", handlers.Participant.StartModule)
			module.POST("/answer", handlers.Participant.SubmitAnswer)
			module.POST("/finish", handlers.Participant.FinishModule)
			module.GET("/state", handlers.Participant.GetModuleState)
		}
	}

	// ─── 2. WebSocket Group (Participant WS Auth) ──────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireParticipantWSAuth(auth))
	{
		ws.GET("/participant/sessions/:id/modules/:test_id/stream", handlers.WS.ModuleStream)
	}

	// ─── 3. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(auth))
	{
		// Test modules
		adminAPI.GET("/tests",
			middleware.RequirePermission(model.PermissionTestsRead),
			handlers.Test.ListTests,
		)
		adminAPI.POST("/tests",
			middleware.RequirePermission(model.PermissionTestsWrite),
			handlers.Test.CreateTest,
		)
		adminAPI.GET("/tests/:id",
			middleware.RequirePermission(model.PermissionTestsRead),
			handlers.Test.GetTest,
		)

		// Sessions
		adminAPI.GET("/sessions",
			middleware.RequirePermission(model.PermissionSessionsRead),
			handlers.Session.ListSessions,
		)
		adminAPI.POST("/sessions",
			middleware.RequirePermission(model.PermissionSessionsWrite),
			handlers.Session.CreateSession,
		)
		adminAPI.GET("/sessions/:id",
			middleware.RequirePermission(model.PermissionSessionsRead),
			handlers.Session.GetSession,
		)
		adminAPI.POST("/sessions/:id/cancel",
			middleware.RequirePermission(model.PermissionSessionsClose),
			handlers.Session.CancelSession,
		)
		adminAPI.POST("/sessions/:id/complete",
			middleware.RequirePermission(model.PermissionSessionsClose),
			handlers.Session.CompleteSession,
		)
		adminAPI.GET("/sessions/:id/participants",
			middleware.RequirePermission(model.PermissionSessionsRead),
			handlers.Session.GetRoster,
		)
		adminAPI.POST("/sessions/:id/participants",
			middleware.RequirePermission(model.PermissionSessionsWrite),
			handlers.Session.RegisterParticipants,
		)
		adminAPI.GET("/sessions/:id/monitor",
			middleware.RequirePermission(model.PermissionSessionsRead),
			handlers.Monitor.MonitorSession,
		)
		adminAPI.GET("/sessions/:id/attempts",
			middleware.RequireAnyPermission(model.PermissionSessionsRead, model.PermissionReportsRead),
			handlers.Session.ListAttempts,
		)

		// Scores
		adminAPI.PUT("/attempts/:attempt_id/score",
			middleware.RequirePermission(model.PermissionScoresWrite),
			handlers.Session.SubmitScore,
		)

		// Reports
		reports := adminAPI.Group("/reports", middleware.RequirePermission(model.PermissionReportsRead))
		{
			reports.GET("/sessions/:id", handlers.Report.SessionReport)
			reports.GET("/sessions/:id/participants/:participant_id", handlers.Report.ParticipantReport)
			reports.GET("/cohort", handlers.Report.CohortReport)
		}

		// Dashboard
		adminAPI.GET("/dashboard",
			handlers.Dashboard.GetDashboardData, // Open to all admins
		)

		// System status
		adminAPI.GET("/system/status",
			handlers.System.Status, // Open to all admins
		)
	}

	return router
}
