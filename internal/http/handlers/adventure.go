package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taskventure/taskventure-backend/internal/adventure"
	"github.com/taskventure/taskventure-backend/internal/http/response"
	"github.com/taskventure/taskventure-backend/internal/platform/apierr"
	"github.com/taskventure/taskventure-backend/internal/platform/ctxutil"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

type AdventureHandler struct {
	log    *logger.Logger
	engine *adventure.Engine
}

func NewAdventureHandler(baseLog *logger.Logger, engine *adventure.Engine) *AdventureHandler {
	return &AdventureHandler{
		log:    baseLog.With("handler", "AdventureHandler"),
		engine: engine,
	}
}

func (ah *AdventureHandler) ListWorlds(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	worlds, err := ah.engine.ListWorlds(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"worlds": worlds})
}

func (ah *AdventureHandler) GetMap(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := ah.engine.GetMap(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

func (ah *AdventureHandler) GetWorldPath(c *gin.Context) {
	userID, worldNumber, err := worldParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := ah.engine.GetWorldPath(c.Request.Context(), userID, worldNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

func (ah *AdventureHandler) MoveToNode(c *gin.Context) {
	userID, worldNumber, err := worldParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := ah.engine.MoveToNode(c.Request.Context(), userID, worldNumber, c.Param("nodeID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

func (ah *AdventureHandler) CheckNodeCompletion(c *gin.Context) {
	userID, worldNumber, err := worldParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := ah.engine.CheckNodeCompletion(c.Request.Context(), userID, worldNumber, c.Param("nodeID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Satisfied {
		response.ErrorWithData(c, apierr.ObjectiveUnmet("node objectives are not yet satisfied"), result)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (ah *AdventureHandler) GetBossChallenge(c *gin.Context) {
	userID, worldNumber, err := worldParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	challenge, err := ah.engine.GetBossChallenge(c.Request.Context(), userID, worldNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, challenge)
}

func (ah *AdventureHandler) CompleteBoss(c *gin.Context) {
	userID, worldNumber, err := worldParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := ah.engine.CompleteBoss(c.Request.Context(), userID, worldNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !result.Satisfied {
		response.ErrorWithData(c, apierr.ObjectiveUnmet("boss objectives are not yet satisfied"), result)
		return
	}
	response.Success(c, http.StatusOK, result)
}

func (ah *AdventureHandler) GetProgress(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := ah.engine.GetProgress(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

func currentUserID(c *gin.Context) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, apierr.Unauthenticated(fmt.Errorf("not logged in"))
	}
	return rd.UserID, nil
}

func worldParams(c *gin.Context) (uuid.UUID, int, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return uuid.Nil, 0, err
	}
	worldNumber, err := strconv.Atoi(c.Param("worldNumber"))
	if err != nil {
		return uuid.Nil, 0, apierr.InvalidArgument("world number must be an integer")
	}
	return userID, worldNumber, nil
}
