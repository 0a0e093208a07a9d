package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskventure/taskventure-backend/internal/domain"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

type BossEventRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *domain.BossEvent) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.BossEvent, error)
}

type bossEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBossEventRepo(db *gorm.DB, baseLog *logger.Logger) BossEventRepo {
	return &bossEventRepo{db: db, log: baseLog.With("repo", "BossEventRepo")}
}

func (r *bossEventRepo) Create(ctx context.Context, tx *gorm.DB, row *domain.BossEvent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).Create(row).Error
}

func (r *bossEventRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.BossEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.BossEvent
	if userID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("defeated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
