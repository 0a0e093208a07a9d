package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/taskventure/taskventure-backend/internal/http/handlers"
	httpMW "github.com/taskventure/taskventure-backend/internal/http/middleware"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AllowedOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler      *httpH.AuthHandler
	UserHandler      *httpH.UserHandler
	AdventureHandler *httpH.AdventureHandler
	TasksHandler     *httpH.TasksHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.AttachRequestContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	r.GET("/healthcheck", httpH.Health)

	api := r.Group("/api")
	{
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.AuthHandler != nil {
			protected.POST("/refresh", cfg.AuthHandler.Refresh)
			protected.POST("/logout", cfg.AuthHandler.Logout)
		}

		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
		}

		if cfg.AdventureHandler != nil {
			protected.GET("/map", cfg.AdventureHandler.GetMap)
			protected.GET("/worlds", cfg.AdventureHandler.ListWorlds)
			protected.GET("/worlds/:worldNumber/path", cfg.AdventureHandler.GetWorldPath)
			protected.POST("/worlds/:worldNumber/levels/:nodeID/move", cfg.AdventureHandler.MoveToNode)
			protected.POST("/worlds/:worldNumber/levels/:nodeID/complete", cfg.AdventureHandler.CheckNodeCompletion)
			protected.GET("/worlds/:worldNumber/boss", cfg.AdventureHandler.GetBossChallenge)
			protected.POST("/worlds/:worldNumber/boss/complete", cfg.AdventureHandler.CompleteBoss)
			protected.GET("/progress", cfg.AdventureHandler.GetProgress)
		}

		if cfg.TasksHandler != nil {
			protected.POST("/tasks/:taskID/complete", cfg.TasksHandler.CompleteTask)
		}
	}

	return r
}
