package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taskventure/taskventure-backend/internal/domain"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

type NodeCompletionRepo interface {
	// Insert records a completion. The unique (user, world, position) index is
	// the at-most-once guard: inserted=false means the node was already
	// completed and the caller must treat the request as a no-op.
	Insert(ctx context.Context, tx *gorm.DB, row *domain.NodeCompletion) (inserted bool, err error)
	ListByUserAndWorld(ctx context.Context, tx *gorm.DB, userID uuid.UUID, worldNumber int) ([]*domain.NodeCompletion, error)
}

type nodeCompletionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNodeCompletionRepo(db *gorm.DB, baseLog *logger.Logger) NodeCompletionRepo {
	return &nodeCompletionRepo{db: db, log: baseLog.With("repo", "NodeCompletionRepo")}
}

func (r *nodeCompletionRepo) Insert(ctx context.Context, tx *gorm.DB, row *domain.NodeCompletion) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return false, nil
	}

	res := transaction.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *nodeCompletionRepo) ListByUserAndWorld(ctx context.Context, tx *gorm.DB, userID uuid.UUID, worldNumber int) ([]*domain.NodeCompletion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*domain.NodeCompletion
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND world_number = ?", userID, worldNumber).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
