// Package response renders the API envelope. Every payload carries a status
// discriminator so clients can branch without inspecting HTTP codes.
package response

import (
	"github.com/gin-gonic/gin"

	"github.com/taskventure/taskventure-backend/internal/platform/apierr"
)

func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"status": "success",
		"data":   data,
	})
}

func Error(c *gin.Context, err error) {
	e := apierr.From(err)
	c.JSON(e.Status, gin.H{
		"status":  "error",
		"code":    e.Code,
		"message": e.Error(),
	})
}

// ErrorWithData attaches detail to an error payload, e.g. per-objective
// progress on an unmet completion check.
func ErrorWithData(c *gin.Context, err error, data interface{}) {
	e := apierr.From(err)
	c.JSON(e.Status, gin.H{
		"status":  "error",
		"code":    e.Code,
		"message": e.Error(),
		"data":    data,
	})
}

func AbortError(c *gin.Context, err error) {
	e := apierr.From(err)
	c.AbortWithStatusJSON(e.Status, gin.H{
		"status":  "error",
		"code":    e.Code,
		"message": e.Error(),
	})
}
