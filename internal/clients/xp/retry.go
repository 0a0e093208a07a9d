package xp

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/taskventure/taskventure-backend/internal/domain"
	"github.com/taskventure/taskventure-backend/internal/platform/httpx"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
	"github.com/taskventure/taskventure-backend/internal/repos"
)

const retryQueueKey = "xp_credit_retry"

// RetryWorker drains deferred XP credits: a bounded retry loop with backoff,
// driven by a redis queue when available and by pending-ledger scans
// otherwise. A credit that exhausts its attempts is marked failed and left in
// the ledger for operators; it is never silently dropped.
type RetryWorker struct {
	db          *gorm.DB
	log         *logger.Logger
	credits     repos.XPCreditRepo
	client      Client
	rdb         *goredis.Client
	interval    time.Duration
	maxAttempts int
	backoffBase time.Duration
}

func NewRetryWorker(db *gorm.DB, baseLog *logger.Logger, credits repos.XPCreditRepo, client Client, rdb *goredis.Client, interval time.Duration, maxAttempts int) *RetryWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &RetryWorker{
		db:          db,
		log:         baseLog.With("worker", "XPCreditRetry"),
		credits:     credits,
		client:      client,
		rdb:         rdb,
		interval:    interval,
		maxAttempts: maxAttempts,
		backoffBase: time.Second,
	}
}

// Enqueue registers a credit for retry. Best effort: the pending ledger row is
// the source of truth, the queue just shortens the wait.
func (w *RetryWorker) Enqueue(ctx context.Context, creditID uuid.UUID) {
	if w == nil || w.rdb == nil {
		return
	}
	if err := w.rdb.LPush(ctx, retryQueueKey, creditID.String()).Err(); err != nil {
		w.log.Warn("Failed to enqueue credit retry", "error", err, "credit_id", creditID)
	}
}

func (w *RetryWorker) Start(ctx context.Context) {
	if w == nil || w.client == nil {
		return
	}
	go w.run(ctx)
}

func (w *RetryWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drainQueue(ctx)
			w.scanPending(ctx)
		}
	}
}

func (w *RetryWorker) drainQueue(ctx context.Context) {
	if w.rdb == nil {
		return
	}
	for {
		raw, err := w.rdb.RPop(ctx, retryQueueKey).Result()
		if err != nil {
			// Empty queue or redis unavailable; the pending scan covers both.
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			w.log.Warn("Discarding malformed retry queue entry", "value", raw)
			continue
		}
		row, err := w.credits.GetByID(ctx, nil, id)
		if err != nil || row == nil {
			continue
		}
		w.attempt(ctx, row)
	}
}

func (w *RetryWorker) scanPending(ctx context.Context) {
	rows, err := w.credits.ListPending(ctx, nil, 50)
	if err != nil {
		w.log.Warn("Pending credit scan failed", "error", err)
		return
	}
	for _, row := range rows {
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.attempt(ctx, row)
	}
}

func (w *RetryWorker) attempt(ctx context.Context, row *domain.XPCredit) {
	if row.Status != domain.XPCreditPending {
		return
	}

	timer := time.NewTimer(httpx.Backoff(w.backoffBase, 30*w.backoffBase, row.Attempts))
	select {
	case <-ctx.Done():
		timer.Stop()
		return
	case <-timer.C:
	}

	_, err := w.client.Credit(ctx, row.UserID, row.Amount, row.Reason, row.ID)
	if err == nil {
		if mErr := w.credits.MarkCredited(ctx, nil, row.ID); mErr != nil {
			w.log.Error("Credit succeeded but ledger update failed", "error", mErr, "credit_id", row.ID)
		}
		w.log.Info("Deferred XP credit applied", "credit_id", row.ID, "amount", row.Amount)
		return
	}

	attempts := row.Attempts + 1
	terminal := attempts >= w.maxAttempts
	if mErr := w.credits.MarkAttemptFailed(ctx, nil, row.ID, attempts, err.Error(), terminal); mErr != nil {
		w.log.Error("Failed to record credit attempt", "error", mErr, "credit_id", row.ID)
	}
	if terminal {
		w.log.Error("XP credit exhausted retries", "credit_id", row.ID, "attempts", attempts, "error", err)
	} else {
		w.log.Warn("XP credit retry failed", "credit_id", row.ID, "attempts", attempts, "error", err)
	}
}
