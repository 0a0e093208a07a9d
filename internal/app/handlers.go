package app

import (
	httpH "github.com/taskventure/taskventure-backend/internal/http/handlers"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

type Handlers struct {
	Auth      *httpH.AuthHandler
	User      *httpH.UserHandler
	Adventure *httpH.AdventureHandler
	Tasks     *httpH.TasksHandler
}

func wireHandlers(log *logger.Logger, serviceset Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:      httpH.NewAuthHandler(log, serviceset.Auth),
		User:      httpH.NewUserHandler(log, serviceset.User),
		Adventure: httpH.NewAdventureHandler(log, serviceset.Engine),
		Tasks:     httpH.NewTasksHandler(log, clients.Tasks),
	}
}
