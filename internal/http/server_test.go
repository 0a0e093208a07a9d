package http

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

func TestNewServerServesConfiguredRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(RouterConfig{Log: logger.NewNop()})

	rec, env := doJSON(t, s.Engine, http.MethodGet, "/healthcheck", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
	if env.Status != "success" {
		t.Fatalf("unexpected envelope status: got=%s want=success", env.Status)
	}
}
