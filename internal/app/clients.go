package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/taskventure/taskventure-backend/internal/clients/tasks"
	"github.com/taskventure/taskventure-backend/internal/clients/xp"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

type Clients struct {
	Tasks tasks.Client
	XP    xp.Client
	Redis *goredis.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	taskClient, err := tasks.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init tasks client: %w", err)
	}
	xpClient, err := xp.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init xp client: %w", err)
	}

	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	return Clients{Tasks: taskClient, XP: xpClient, Redis: rdb}, nil
}
