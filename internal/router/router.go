package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"workingonit/backend/internal/handler"
	"workingonit/backend/internal/middleware"
	"workingonit/backend/internal/service"
)

type Handlers struct {
	Auth     *handler.AuthHandler
	Timer    *handler.TimerHandler
	Activity *handler.ActivityHandler
	Project  *handler.ProjectHandler
	Entries  *handler.EntriesHandler
	Sync     *handler.SyncHandler
}

func New(
	authService *service.AuthService,
	handlers Handlers,
	corsOrigins []string,
	log *slog.Logger,
) *gin.Engine {
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.CORS(corsOrigins),
	)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", handlers.Auth.Register)
	auth.POST("/login", handlers.Auth.Login)

	api.GET("/spheres", handlers.Activity.Spheres)

	authed := api.Group("")
	authed.Use(middleware.Auth(authService))

	projects := authed.Group("/projects")
	projects.GET("", handlers.Project.List)
	projects.POST("", handlers.Project.Create)
	projects.DELETE("/:id", handlers.Project.Delete)

	activities := authed.Group("/activities")
	activities.GET("", handlers.Activity.List)
	activities.POST("", handlers.Activity.Create)
	activities.POST("/suggest", handlers.Activity.Suggest)
	activities.DELETE("/:id", handlers.Activity.Delete)

	timer := authed.Group("/timer")
	timer.GET("", handlers.Timer.Get)
	timer.GET("/stream", handlers.Timer.Stream)
	timer.POST("/start", handlers.Timer.Start)
	timer.POST("/pause", handlers.Timer.Pause)
	timer.POST("/resume", handlers.Timer.Resume)
	timer.POST("/stop", handlers.Timer.Stop)
	timer.POST("/rate", handlers.Timer.Rate)
	timer.POST("/keep-working", handlers.Timer.KeepWorking)
	timer.POST("/discard", handlers.Timer.Discard)

	entries := authed.Group("/entries")
	entries.GET("", handlers.Entries.List)
	entries.GET("/today", handlers.Entries.Today)
	authed.GET("/analytics", handlers.Entries.Analytics)

	sync := authed.Group("/sync")
	sync.POST("/connectivity", handlers.Sync.Connectivity)
	sync.GET("/status", handlers.Sync.Status)
	sync.POST("/pull", handlers.Sync.Pull)

	data := authed.Group("/data")
	data.GET("/export", handlers.Entries.Export)
	data.DELETE("", handlers.Entries.Clear)

	return engine
}
