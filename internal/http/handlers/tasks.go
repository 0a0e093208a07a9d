package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskventure/taskventure-backend/internal/clients/tasks"
	"github.com/taskventure/taskventure-backend/internal/http/response"
	"github.com/taskventure/taskventure-backend/internal/platform/apierr"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

// TasksHandler proxies task mutations to the external to-do provider so the
// client can tick a task off without leaving the adventure flow.
type TasksHandler struct {
	log    *logger.Logger
	client tasks.Client
}

func NewTasksHandler(baseLog *logger.Logger, client tasks.Client) *TasksHandler {
	return &TasksHandler{
		log:    baseLog.With("handler", "TasksHandler"),
		client: client,
	}
}

func (th *TasksHandler) CompleteTask(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	taskID := c.Param("taskID")
	if taskID == "" {
		response.Error(c, apierr.InvalidArgument("missing task id"))
		return
	}
	if err := th.client.CompleteTask(c.Request.Context(), userID, taskID); err != nil {
		response.Error(c, apierr.Upstream(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"task_id": taskID, "completed": true})
}
