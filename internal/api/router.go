package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/timesheet/internal/api/handler"
	"github.com/timmy/timesheet/internal/api/middleware"
	"github.com/timmy/timesheet/internal/config"
	"github.com/timmy/timesheet/internal/logger"
)

// RouterDeps holds what the HTTP layer needs from the rest of the process.
type RouterDeps struct {
	Timesheets handler.TimesheetSubmitter
	DB         handler.Pinger
	Logger     *logger.Logger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *config.Config, deps RouterDeps) *gin.Engine {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	log := deps.Logger
	if log == nil {
		log = logger.GetDefault()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(cfg.Server.CORS))

	healthHandler := handler.NewHealthHandler(deps.DB)
	timesheetHandler := handler.NewTimesheetHandler(deps.Timesheets)

	r.GET("/health", healthHandler.Health)

	authed := r.Group("/", middleware.Auth(cfg.Auth.JWTSecret, cfg.Auth.RequiredRole))
	{
		authed.POST("/timesheet", timesheetHandler.Submit)
		authed.GET("/timesheet", timesheetHandler.Status)
	}

	return r
}
