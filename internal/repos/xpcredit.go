package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taskventure/taskventure-backend/internal/domain"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

type XPCreditRepo interface {
	// CreateIfAbsent inserts the ledger row unless one exists for the node,
	// returning the stored row. The row ID is the idempotency key sent to the
	// XP service.
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *domain.XPCredit) (*domain.XPCredit, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.XPCredit, error)
	MarkCredited(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	MarkAttemptFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, attempts int, lastError string, terminal bool) error
	ListPending(ctx context.Context, tx *gorm.DB, limit int) ([]*domain.XPCredit, error)
}

type xpCreditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewXPCreditRepo(db *gorm.DB, baseLog *logger.Logger) XPCreditRepo {
	return &xpCreditRepo{db: db, log: baseLog.With("repo", "XPCreditRepo")}
}

func (r *xpCreditRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *domain.XPCredit) (*domain.XPCredit, error) {
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

	var existing domain.XPCredit
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND world_number = ? AND position_key = ?", row.UserID, row.WorldNumber, row.PositionKey).
		First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (r *xpCreditRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.XPCredit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var row domain.XPCredit
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *xpCreditRepo) MarkCredited(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&domain.XPCredit{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     domain.XPCreditCredited,
			"last_error": "",
			"updated_at": time.Now(),
		}).Error
}

func (r *xpCreditRepo) MarkAttemptFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, attempts int, lastError string, terminal bool) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	status := domain.XPCreditPending
	if terminal {
		status = domain.XPCreditFailed
	}
	return transaction.WithContext(ctx).
		Model(&domain.XPCredit{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"attempts":   attempts,
			"last_error": lastError,
			"updated_at": time.Now(),
		}).Error
}

func (r *xpCreditRepo) ListPending(ctx context.Context, tx *gorm.DB, limit int) ([]*domain.XPCredit, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}

	var results []*domain.XPCredit
	if err := transaction.WithContext(ctx).
		Where("status = ?", domain.XPCreditPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
