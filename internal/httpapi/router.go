// Package httpapi wires the gin HTTP surface that fronts the queue and
// schedule APIs: magic-link auth, JWT-protected job push/cancel, and
// schedule CRUD, with routes and request shapes built around
// domain.Job/domain.Schedule instead of a flat HTTP-callback job model.
package httpapi

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/windmillcore/jobcore/internal/httpapi/handler"
	"github.com/windmillcore/jobcore/internal/httpapi/middleware"
)

func NewRouter(logger *slog.Logger, jobHandler *handler.JobHandler, scheduleHandler *handler.ScheduleHandler, authHandler *handler.AuthHandler, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.POST("/auth/magic-link", authHandler.RequestMagicLink)
	r.GET("/auth/verify", authHandler.Verify)

	protected := r.Group("", middleware.Auth(jwtKey))

	jobs := protected.Group("/jobs")
	jobs.POST("", jobHandler.Push)
	jobs.POST("/:id/cancel", jobHandler.Cancel)

	// Schedule paths are slash-delimited (e.g. "f/myfolder/myschedule",
	// windmill-style), so they're matched with a wildcard segment rather
	// than a single :path param.
	schedules := protected.Group("/schedules")
	schedules.POST("", scheduleHandler.Create)
	schedules.POST("/preview", scheduleHandler.Preview)
	schedules.GET("", scheduleHandler.List)
	schedules.GET("/*path", scheduleHandler.Get)
	schedules.PUT("/*path", scheduleHandler.Edit)
	schedules.PATCH("/enabled/*path", scheduleHandler.SetEnabled)
	schedules.DELETE("/*path", scheduleHandler.Delete)

	return r
}
