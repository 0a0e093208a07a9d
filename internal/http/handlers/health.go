package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskventure/taskventure-backend/internal/http/response"
)

func Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"healthy": true})
}
