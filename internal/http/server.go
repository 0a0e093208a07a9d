package http

import (
	"github.com/gin-gonic/gin"

	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

// Server owns the configured gin engine for the adventure API.
type Server struct {
	log    *logger.Logger
	Engine *gin.Engine
}

func NewServer(cfg RouterConfig) *Server {
	return &Server{
		log:    cfg.Log.With("component", "Server"),
		Engine: NewRouter(cfg),
	}
}

// Run blocks serving HTTP on the given address.
func (s *Server) Run(address string) error {
	s.log.Info("Server listening", "addr", address)
	return s.Engine.Run(address)
}
