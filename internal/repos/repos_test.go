package repos

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/taskventure/taskventure-backend/internal/db"
	"github.com/taskventure/taskventure-backend/internal/domain"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func TestNodeCompletionInsertIsFirstWriterWins(t *testing.T) {
	gdb := testDB(t)
	repo := NewNodeCompletionRepo(gdb, logger.NewNop())
	ctx := context.Background()

	userID := uuid.New()
	row := func() *domain.NodeCompletion {
		return &domain.NodeCompletion{
			ID:          uuid.New(),
			UserID:      userID,
			WorldNumber: 1,
			PositionKey: "level_1",
			NodeType:    "regular",
			RewardXP:    40,
			CompletedAt: time.Now(),
		}
	}

	inserted, err := repo.Insert(ctx, nil, row())
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !inserted {
		t.Fatalf("first insert must win")
	}

	inserted, err = repo.Insert(ctx, nil, row())
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Fatalf("duplicate insert must be a silent loss, not a win")
	}

	// A different node for the same user still inserts.
	other := row()
	other.PositionKey = "level_2"
	inserted, err = repo.Insert(ctx, nil, other)
	if err != nil {
		t.Fatalf("second node insert: %v", err)
	}
	if !inserted {
		t.Fatalf("distinct position keys must not conflict")
	}

	rows, err := repo.ListByUserAndWorld(ctx, nil, userID, 1)
	if err != nil {
		t.Fatalf("list completions: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("unexpected completion count: got=%d want=2", len(rows))
	}
}

func TestGeneratedPathCreateReturnsWinner(t *testing.T) {
	gdb := testDB(t)
	repo := NewGeneratedPathRepo(gdb, logger.NewNop())
	ctx := context.Background()

	userID := uuid.New()
	build := func(startKey string) *domain.GeneratedPath {
		return &domain.GeneratedPath{
			ID:          uuid.New(),
			UserID:      userID,
			WorldNumber: 1,
			StartKey:    startKey,
			TotalLevels: 4,
			Nodes:       []byte(`[]`),
			CreatedAt:   time.Now(),
		}
	}

	winner, err := repo.Create(ctx, nil, build("level_1"))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	// A concurrent loser converges on the stored winner instead of erroring.
	loser, err := repo.Create(ctx, nil, build("other_start"))
	if err != nil {
		t.Fatalf("conflicting create: %v", err)
	}
	if loser.ID != winner.ID || loser.StartKey != "level_1" {
		t.Fatalf("loser must read back the winner: got=%+v", loser)
	}

	stored, err := repo.GetByUserAndWorld(ctx, nil, userID, 1)
	if err != nil {
		t.Fatalf("get path: %v", err)
	}
	if stored == nil || stored.ID != winner.ID {
		t.Fatalf("unexpected stored path: %+v", stored)
	}
}

func TestProgressCreateIfAbsentAndSave(t *testing.T) {
	gdb := testDB(t)
	repo := NewProgressRepo(gdb, logger.NewNop())
	ctx := context.Background()

	userID := uuid.New()
	now := time.Now()
	first, err := repo.CreateIfAbsent(ctx, nil, &domain.UserWorldProgress{
		ID:          uuid.New(),
		UserID:      userID,
		WorldNumber: 1,
		WorldStatus: domain.WorldStatusUnlocked,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("create progress: %v", err)
	}

	dup, err := repo.CreateIfAbsent(ctx, nil, &domain.UserWorldProgress{
		ID:          uuid.New(),
		UserID:      userID,
		WorldNumber: 1,
		WorldStatus: domain.WorldStatusLocked,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if dup.ID != first.ID || dup.WorldStatus != domain.WorldStatusUnlocked {
		t.Fatalf("duplicate create must return the existing row: %+v", dup)
	}

	first.LevelsCompleted = 3
	first.WorldStatus = domain.WorldStatusInProgress
	if err := repo.Save(ctx, nil, first); err != nil {
		t.Fatalf("save progress: %v", err)
	}

	rows, err := repo.ListByUser(ctx, nil, userID)
	if err != nil {
		t.Fatalf("list progress: %v", err)
	}
	if len(rows) != 1 || rows[0].LevelsCompleted != 3 || rows[0].WorldStatus != domain.WorldStatusInProgress {
		t.Fatalf("unexpected progress rows: %+v", rows)
	}
}

func TestUserRepoNotFoundIsNil(t *testing.T) {
	gdb := testDB(t)
	repo := NewUserRepo(gdb, logger.NewNop())
	ctx := context.Background()

	user, err := repo.GetByEmail(ctx, nil, "ghost@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if user != nil {
		t.Fatalf("missing user must be nil, not %+v", user)
	}

	user, err = repo.GetByID(ctx, nil, uuid.New())
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if user != nil {
		t.Fatalf("missing user must be nil, not %+v", user)
	}
}
