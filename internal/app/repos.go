package app

import (
	"gorm.io/gorm"

	"github.com/taskventure/taskventure-backend/internal/platform/logger"
	"github.com/taskventure/taskventure-backend/internal/repos"
)

type Repos struct {
	User           repos.UserRepo
	UserToken      repos.UserTokenRepo
	GeneratedPath  repos.GeneratedPathRepo
	Progress       repos.ProgressRepo
	NodeCompletion repos.NodeCompletionRepo
	XPCredit       repos.XPCreditRepo
	BossEvent      repos.BossEventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:           repos.NewUserRepo(db, log),
		UserToken:      repos.NewUserTokenRepo(db, log),
		GeneratedPath:  repos.NewGeneratedPathRepo(db, log),
		Progress:       repos.NewProgressRepo(db, log),
		NodeCompletion: repos.NewNodeCompletionRepo(db, log),
		XPCredit:       repos.NewXPCreditRepo(db, log),
		BossEvent:      repos.NewBossEventRepo(db, log),
	}
}
