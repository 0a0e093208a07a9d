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

type ProgressRepo interface {
	// CreateIfAbsent inserts the row unless (user, world) already exists and
	// returns the stored row either way.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *domain.UserWorldProgress) (*domain.UserWorldProgress, error)
	GetByUserAndWorld(ctx context.Context, tx *gorm.DB, userID uuid.UUID, worldNumber int) (*domain.UserWorldProgress, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.UserWorldProgress, error)
	Save(ctx context.Context, tx *gorm.DB, row *domain.UserWorldProgress) error
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return &progressRepo{db: db, log: baseLog.With("repo", "ProgressRepo")}
}

func (r *progressRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *domain.UserWorldProgress) (*domain.UserWorldProgress, error) {
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

func (r *progressRepo) GetByUserAndWorld(ctx context.Context, tx *gorm.DB, userID uuid.UUID, worldNumber int) (*domain.UserWorldProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.UserWorldProgress
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

func (r *progressRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*domain.UserWorldProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.UserWorldProgress
	if userID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("world_number ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *progressRepo) Save(ctx context.Context, tx *gorm.DB, row *domain.UserWorldProgress) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	return transaction.WithContext(ctx).Save(row).Error
}
