package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"taskboard/api/internal/config"
	"taskboard/api/internal/middleware"
	"taskboard/api/internal/service"
)

// Pinger is satisfied by *pgxpool.Pool and *cache.LicenseStatusCache.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Log      zerolog.Logger
	Config   *config.AppConfig
	Guard    *service.SessionGuard
	Auth     *service.AuthService
	Licenses *service.LicenseService
	Tasks    *service.TaskService
	Database Pinger
	// Cache is nil when redis is disabled.
	Cache Pinger
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	guard    *service.SessionGuard
	auth     *service.AuthService
	licenses *service.LicenseService
	tasks    *service.TaskService
	db       Pinger
	cache    Pinger
}

func NewHandlerSet(deps Dependencies) HandlerSet {
	useJSONFieldNames()
	return HandlerSet{
		log:      deps.Log,
		cfg:      deps.Config,
		guard:    deps.Guard,
		auth:     deps.Auth,
		licenses: deps.Licenses,
		tasks:    deps.Tasks,
		db:       deps.Database,
		cache:    deps.Cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/health", h.Health)

	auth := router.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)

	requireSession := middleware.Auth(h.guard)

	users := router.Group("/users", requireSession)
	users.GET("/me", h.Me)

	license := router.Group("/license", requireSession)
	license.GET("/status", h.LicenseStatus)
	license.POST("/activate", h.ActivateLicense)
	license.POST("/activate-file", h.ActivateLicenseFile)

	tasks := router.Group("/api/v1/tasks", requireSession)
	tasks.GET("", h.ListTasks)
	tasks.GET("/export", middleware.RequireLicense(h.licenses), h.ExportTasks)
	tasks.GET("/:id", h.GetTask)
	tasks.POST("", h.CreateTask)
	tasks.PATCH("/:id", h.UpdateTask)
	tasks.DELETE("/:id", h.DeleteTask)
	tasks.PATCH("/:id/toggle", h.ToggleTask)
	tasks.PATCH("/:id/move", h.MoveTask)
}
