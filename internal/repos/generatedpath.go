package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taskventure/taskventure-backend/internal/domain"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

type GeneratedPathRepo interface {
	// Create inserts the path unless one already exists for (user, world).
	// Returns the stored row either way: on conflict the loser reads back the
	// winner's path, so concurrent generation converges on one graph.
	Create(ctx context.Context, tx *gorm.DB, row *domain.GeneratedPath) (*domain.GeneratedPath, error)
	GetByUserAndWorld(ctx context.Context, tx *gorm.DB, userID uuid.UUID, worldNumber int) (*domain.GeneratedPath, error)
}

type generatedPathRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGeneratedPathRepo(db *gorm.DB, baseLog *logger.Logger) GeneratedPathRepo {
	return &generatedPathRepo{db: db, log: baseLog.With("repo", "GeneratedPathRepo")}
}

func (r *generatedPathRepo) Create(ctx context.Context, tx *gorm.DB, row *domain.GeneratedPath) (*domain.GeneratedPath, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil, nil
	}

	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		return row, nil
	}
	return r.GetByUserAndWorld(ctx, transaction, row.UserID, row.WorldNumber)
}

func (r *generatedPathRepo) GetByUserAndWorld(ctx context.Context, tx *gorm.DB, userID uuid.UUID, worldNumber int) (*domain.GeneratedPath, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.GeneratedPath
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND world_number = ?", userID, worldNumber).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
