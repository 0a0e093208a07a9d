package app

import (
	internalhttp "github.com/taskventure/taskventure-backend/internal/http"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, handlerset Handlers, mw Middleware) *internalhttp.Server {
	log.Info("Wiring server...")
	return internalhttp.NewServer(internalhttp.RouterConfig{
		Log:              log,
		AllowedOrigins:   cfg.AllowedOrigins,
		AuthMiddleware:   mw.Auth,
		AuthHandler:      handlerset.Auth,
		UserHandler:      handlerset.User,
		AdventureHandler: handlerset.Adventure,
		TasksHandler:     handlerset.Tasks,
	})
}
