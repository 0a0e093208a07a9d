package app

import (
	"gorm.io/gorm"

	"github.com/taskventure/taskventure-backend/internal/adventure"
	"github.com/taskventure/taskventure-backend/internal/clients/xp"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
	"github.com/taskventure/taskventure-backend/internal/services"
)

type Services struct {
	Auth        services.AuthService
	User        services.UserService
	Catalog     *adventure.Catalog
	Engine      *adventure.Engine
	RetryWorker *xp.RetryWorker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	catalog := adventure.LoadCatalog(cfg.WorldFile, log)

	retryWorker := xp.NewRetryWorker(
		db,
		log,
		reposet.XPCredit,
		clients.XP,
		clients.Redis,
		cfg.CreditRetryInterval,
		cfg.CreditMaxAttempts,
	)

	engine := adventure.NewEngine(
		db,
		log,
		catalog,
		reposet.User,
		reposet.GeneratedPath,
		reposet.Progress,
		reposet.NodeCompletion,
		reposet.XPCredit,
		reposet.BossEvent,
		clients.Tasks,
		clients.XP,
		retryWorker,
	)

	return Services{
		Auth:        services.NewAuthService(db, log, reposet.User, reposet.UserToken, cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		User:        services.NewUserService(db, log, reposet.User),
		Catalog:     catalog,
		Engine:      engine,
		RetryWorker: retryWorker,
	}, nil
}
