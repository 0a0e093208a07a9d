package adventure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/taskventure/taskventure-backend/internal/clients/tasks"
	"github.com/taskventure/taskventure-backend/internal/clients/xp"
	"github.com/taskventure/taskventure-backend/internal/domain"
	"github.com/taskventure/taskventure-backend/internal/platform/apierr"
	"github.com/taskventure/taskventure-backend/internal/platform/logger"
	"github.com/taskventure/taskventure-backend/internal/repos"
)

// TaskSource is the engine's view of the external to-do provider.
type TaskSource interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (tasks.Snapshot, error)
}

// XPService credits experience; the engine does not own the leveling curve.
type XPService interface {
	Credit(ctx context.Context, userID uuid.UUID, amount int, reason string, idempotencyKey uuid.UUID) (*xp.Result, error)
}

// CreditDeferrer queues a ledger row for background retry after a failed
// credit attempt.
type CreditDeferrer interface {
	Enqueue(ctx context.Context, creditID uuid.UUID)
}

// Engine coordinates the world catalog, path generation, objective evaluation
// and the progress store. It owns all mutations of adventure state.
type Engine struct {
	db          *gorm.DB
	log         *logger.Logger
	catalog     *Catalog
	users       repos.UserRepo
	paths       repos.GeneratedPathRepo
	progress    repos.ProgressRepo
	completions repos.NodeCompletionRepo
	credits     repos.XPCreditRepo
	bossEvents  repos.BossEventRepo
	taskSource  TaskSource
	xpService   XPService
	deferrer    CreditDeferrer

	genGroup singleflight.Group
	now      func() time.Time
}

func NewEngine(
	db *gorm.DB,
	baseLog *logger.Logger,
	catalog *Catalog,
	users repos.UserRepo,
	paths repos.GeneratedPathRepo,
	progress repos.ProgressRepo,
	completions repos.NodeCompletionRepo,
	credits repos.XPCreditRepo,
	bossEvents repos.BossEventRepo,
	taskSource TaskSource,
	xpService XPService,
	deferrer CreditDeferrer,
) *Engine {
	return &Engine{
		db:          db,
		log:         baseLog.With("service", "AdventureEngine"),
		catalog:     catalog,
		users:       users,
		paths:       paths,
		progress:    progress,
		completions: completions,
		credits:     credits,
		bossEvents:  bossEvents,
		taskSource:  taskSource,
		xpService:   xpService,
		deferrer:    deferrer,
		now:         time.Now,
	}
}

// Views returned to the HTTP layer.

type WorldView struct {
	World
	Status           string `json:"status"`
	LevelsCompleted  int    `json:"levels_completed"`
	TotalLevels      int    `json:"total_levels"`
	MiniBossDefeated bool   `json:"mini_boss_defeated"`
	BossDefeated     bool   `json:"boss_defeated"`
	TotalXPEarned    int    `json:"total_xp_earned"`
}

type NodeView struct {
	Node
	Status NodeStatus `json:"status"`
}

type PathView struct {
	WorldNumber     int                       `json:"world_number"`
	StartKey        string                    `json:"start_key"`
	CurrentPosition string                    `json:"current_position"`
	Nodes           []NodeView                `json:"nodes"`
	Progress        *domain.UserWorldProgress `json:"progress"`
}

type MapView struct {
	World World    `json:"world"`
	Path  PathView `json:"path"`
}

type CompletionResult struct {
	PositionKey       string   `json:"position_key"`
	NodeType          NodeType `json:"node_type"`
	RewardXP          int      `json:"reward_xp"`
	AlreadyCompleted  bool     `json:"already_completed"`
	LevelsCompleted   int      `json:"levels_completed"`
	UnlockedNodes     []string `json:"unlocked_nodes"`
	WorldCompleted    bool     `json:"world_completed"`
	NextWorldUnlocked bool     `json:"next_world_unlocked"`
	XPPending         bool     `json:"xp_pending"`
}

type CheckResult struct {
	Satisfied  bool                `json:"satisfied"`
	Objectives []ObjectiveProgress `json:"objectives"`
	Completion *CompletionResult   `json:"completion,omitempty"`
}

type BossChallenge struct {
	WorldNumber int            `json:"world_number"`
	Boss        BossDefinition `json:"boss"`
	Objectives  []Objective    `json:"objectives"`
	Accessible  bool           `json:"accessible"`
	Defeated    bool           `json:"defeated"`
}

type ProgressSummary struct {
	CurrentWorld       int                         `json:"current_world"`
	WorldsUnlocked     int                         `json:"worlds_unlocked"`
	WorldsCompleted    int                         `json:"worlds_completed"`
	LevelsCompleted    int                         `json:"levels_completed"`
	BossesDefeated     int                         `json:"bosses_defeated"`
	MiniBossesDefeated int                         `json:"mini_bosses_defeated"`
	TotalXPEarned      int                         `json:"total_xp_earned"`
	LastBossDefeatedAt *time.Time                  `json:"last_boss_defeated_at,omitempty"`
	Worlds             []*domain.UserWorldProgress `json:"worlds"`
}

// ListWorlds returns every catalog world with the user's status, creating
// progress rows lazily on first access.
func (e *Engine) ListWorlds(ctx context.Context, userID uuid.UUID) ([]WorldView, error) {
	if userID == uuid.Nil {
		return nil, apierr.InvalidArgument("missing user id")
	}

	views := make([]WorldView, 0, e.catalog.Count())
	for _, w := range e.catalog.Worlds() {
		prog, err := e.ensureProgress(ctx, nil, userID, w.Number)
		if err != nil {
			return nil, err
		}
		views = append(views, WorldView{
			World:            w,
			Status:           prog.WorldStatus,
			LevelsCompleted:  prog.LevelsCompleted,
			TotalLevels:      prog.TotalLevels,
			MiniBossDefeated: prog.MiniBossDefeated,
			BossDefeated:     prog.BossDefeated,
			TotalXPEarned:    prog.TotalXPEarned,
		})
	}
	return views, nil
}

// GetMap returns the user's current world with its path, generating the path
// lazily. The current world is the furthest one still open.
func (e *Engine) GetMap(ctx context.Context, userID uuid.UUID) (*MapView, error) {
	if userID == uuid.Nil {
		return nil, apierr.InvalidArgument("missing user id")
	}
	if _, err := e.ensureProgress(ctx, nil, userID, 1); err != nil {
		return nil, err
	}

	rows, err := e.progress.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	current := e.currentWorld(rows)

	world, _, path, prog, err := e.worldState(ctx, userID, current)
	if err != nil {
		return nil, err
	}
	view, err := e.pathView(ctx, userID, world, path, prog)
	if err != nil {
		return nil, err
	}
	return &MapView{World: world, Path: *view}, nil
}

// GetWorldPath returns the generated path for a world, generating it on first
// request. Locked worlds are not accessible.
func (e *Engine) GetWorldPath(ctx context.Context, userID uuid.UUID, worldNumber int) (*PathView, error) {
	world, _, path, prog, err := e.worldState(ctx, userID, worldNumber)
	if err != nil {
		return nil, err
	}
	return e.pathView(ctx, userID, world, path, prog)
}

// MoveToNode records the user's position on the path. Locked nodes are not
// accessible.
func (e *Engine) MoveToNode(ctx context.Context, userID uuid.UUID, worldNumber int, positionKey string) (*PathView, error) {
	if positionKey == "" {
		return nil, apierr.InvalidArgument("missing node id")
	}
	world, _, path, prog, err := e.worldState(ctx, userID, worldNumber)
	if err != nil {
		return nil, err
	}
	if _, ok := path.Node(positionKey); !ok {
		return nil, apierr.NotFound("node %s does not exist in world %d", positionKey, worldNumber)
	}
	statuses, err := e.nodeStatuses(ctx, userID, worldNumber, path)
	if err != nil {
		return nil, err
	}
	if statuses[positionKey] == NodeLocked {
		return nil, apierr.NotAccessible("node %s is locked", positionKey)
	}

	prog.CurrentPosition = positionKey
	prog.UpdatedAt = e.now()
	if err := e.progress.Save(ctx, nil, prog); err != nil {
		return nil, apierr.Persistence(err)
	}
	return e.pathView(ctx, userID, world, path, prog)
}

// CheckNodeCompletion evaluates a node's objectives against a fresh task
// snapshot and completes the node when all are satisfied. An unmet objective
// is a normal negative result, not an error.
func (e *Engine) CheckNodeCompletion(ctx context.Context, userID uuid.UUID, worldNumber int, positionKey string) (*CheckResult, error) {
	if positionKey == "" {
		return nil, apierr.InvalidArgument("missing node id")
	}
	world, _, path, prog, err := e.worldState(ctx, userID, worldNumber)
	if err != nil {
		return nil, err
	}
	node, ok := path.Node(positionKey)
	if !ok {
		return nil, apierr.NotFound("node %s does not exist in world %d", positionKey, worldNumber)
	}
	statuses, err := e.nodeStatuses(ctx, userID, worldNumber, path)
	if err != nil {
		return nil, err
	}
	switch statuses[positionKey] {
	case NodeLocked:
		return nil, apierr.NotAccessible("node %s is locked", positionKey)
	case NodeCompleted:
		// Idempotent: a completed node stays a successful no-op.
		return &CheckResult{
			Satisfied: true,
			Completion: &CompletionResult{
				PositionKey:      node.PositionKey,
				NodeType:         node.Type,
				RewardXP:         node.RewardXP,
				AlreadyCompleted: true,
				LevelsCompleted:  prog.LevelsCompleted,
				UnlockedNodes:    node.Connections,
			},
		}, nil
	}

	snap := e.snapshot(ctx, userID)
	loc := e.userLocation(ctx, userID)
	objectives, satisfied := EvaluateNode(node, snap, e.now(), loc)

	result := &CheckResult{Satisfied: satisfied, Objectives: objectives}
	if !satisfied {
		return result, nil
	}

	completion, err := e.completeNode(ctx, userID, world, node)
	if err != nil {
		return nil, err
	}
	result.Completion = completion
	return result, nil
}

// GetBossChallenge returns the world's boss definition and whether the boss
// fight is open: every pre-boss level done and the mini-boss defeated.
func (e *Engine) GetBossChallenge(ctx context.Context, userID uuid.UUID, worldNumber int) (*BossChallenge, error) {
	world, _, path, prog, err := e.worldState(ctx, userID, worldNumber)
	if err != nil {
		return nil, err
	}
	boss, ok := path.NodeOfType(NodeBoss)
	if !ok {
		return nil, apierr.NotFound("world %d has no boss node", worldNumber)
	}
	return &BossChallenge{
		WorldNumber: worldNumber,
		Boss:        world.Boss,
		Objectives:  boss.Objectives,
		Accessible:  bossAccessible(prog),
		Defeated:    prog.BossDefeated,
	}, nil
}

// CompleteBoss evaluates and completes the boss node, recording a boss-defeat
// event and unlocking the next world.
func (e *Engine) CompleteBoss(ctx context.Context, userID uuid.UUID, worldNumber int) (*CheckResult, error) {
	world, _, path, prog, err := e.worldState(ctx, userID, worldNumber)
	if err != nil {
		return nil, err
	}
	boss, ok := path.NodeOfType(NodeBoss)
	if !ok {
		return nil, apierr.NotFound("world %d has no boss node", worldNumber)
	}
	if prog.BossDefeated {
		return &CheckResult{
			Satisfied: true,
			Completion: &CompletionResult{
				PositionKey:      boss.PositionKey,
				NodeType:         NodeBoss,
				RewardXP:         boss.RewardXP,
				AlreadyCompleted: true,
				LevelsCompleted:  prog.LevelsCompleted,
				WorldCompleted:   true,
			},
		}, nil
	}
	if !bossAccessible(prog) {
		return nil, apierr.NotAccessible("boss of world %d is not accessible yet", worldNumber)
	}

	snap := e.snapshot(ctx, userID)
	loc := e.userLocation(ctx, userID)
	objectives, satisfied := EvaluateNode(boss, snap, e.now(), loc)

	result := &CheckResult{Satisfied: satisfied, Objectives: objectives}
	if !satisfied {
		return result, nil
	}

	completion, err := e.completeNode(ctx, userID, world, boss)
	if err != nil {
		return nil, err
	}
	result.Completion = completion
	return result, nil
}

// GetProgress aggregates per-world progress into account-wide counters.
func (e *Engine) GetProgress(ctx context.Context, userID uuid.UUID) (*ProgressSummary, error) {
	if userID == uuid.Nil {
		return nil, apierr.InvalidArgument("missing user id")
	}
	if _, err := e.ensureProgress(ctx, nil, userID, 1); err != nil {
		return nil, err
	}

	rows, err := e.progress.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}

	summary := &ProgressSummary{CurrentWorld: e.currentWorld(rows), Worlds: rows}
	for _, row := range rows {
		if row.WorldStatus != domain.WorldStatusLocked {
			summary.WorldsUnlocked++
		}
		if row.WorldStatus == domain.WorldStatusCompleted {
			summary.WorldsCompleted++
		}
		summary.LevelsCompleted += row.LevelsCompleted
		summary.TotalXPEarned += row.TotalXPEarned
		if row.BossDefeated {
			summary.BossesDefeated++
		}
		if row.MiniBossDefeated {
			summary.MiniBossesDefeated++
		}
	}

	events, err := e.bossEvents.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if len(events) > 0 {
		t := events[0].DefeatedAt
		summary.LastBossDefeatedAt = &t
	}
	return summary, nil
}

// currentWorld picks the furthest world still open. A fully completed final
// world has nowhere further to go and stays current.
func (e *Engine) currentWorld(rows []*domain.UserWorldProgress) int {
	current := 1
	for _, row := range rows {
		if row.WorldNumber <= current {
			continue
		}
		switch row.WorldStatus {
		case domain.WorldStatusUnlocked, domain.WorldStatusInProgress:
			current = row.WorldNumber
		case domain.WorldStatusCompleted:
			if row.WorldNumber == e.catalog.Count() {
				current = row.WorldNumber
			}
		}
	}
	return current
}

func bossAccessible(prog *domain.UserWorldProgress) bool {
	if prog.WorldStatus == domain.WorldStatusLocked {
		return false
	}
	if prog.TotalLevels == 0 {
		return false
	}
	return prog.MiniBossDefeated && prog.LevelsCompleted >= prog.TotalLevels-1
}

// worldState resolves the common preamble of every per-world operation:
// catalog lookup, progress row, accessibility, and the (lazily generated)
// path.
func (e *Engine) worldState(ctx context.Context, userID uuid.UUID, worldNumber int) (World, *domain.GeneratedPath, Path, *domain.UserWorldProgress, error) {
	if userID == uuid.Nil {
		return World{}, nil, Path{}, nil, apierr.InvalidArgument("missing user id")
	}
	world, err := e.catalog.World(worldNumber)
	if err != nil {
		return World{}, nil, Path{}, nil, err
	}
	prog, err := e.ensureProgress(ctx, nil, userID, worldNumber)
	if err != nil {
		return World{}, nil, Path{}, nil, err
	}
	if prog.WorldStatus == domain.WorldStatusLocked {
		return World{}, nil, Path{}, nil, apierr.NotAccessible("world %d is locked", worldNumber)
	}

	row, path, err := e.loadOrGeneratePath(ctx, userID, world)
	if err != nil {
		return World{}, nil, Path{}, nil, err
	}

	// First sight of the generated path fixes the level count.
	if prog.TotalLevels == 0 {
		prog.TotalLevels = len(path.Nodes)
		if prog.CurrentPosition == "" {
			prog.CurrentPosition = path.StartKey
		}
		prog.UpdatedAt = e.now()
		if err := e.progress.Save(ctx, nil, prog); err != nil {
			return World{}, nil, Path{}, nil, apierr.Persistence(err)
		}
	}
	return world, row, path, prog, nil
}

// ensureProgress loads the (user, world) progress row, creating it on first
// access. A new row starts unlocked only for world 1 or when the previous
// world is completed; an existing locked row is re-checked so unlock state
// self-heals.
func (e *Engine) ensureProgress(ctx context.Context, tx *gorm.DB, userID uuid.UUID, worldNumber int) (*domain.UserWorldProgress, error) {
	existing, err := e.progress.GetByUserAndWorld(ctx, tx, userID, worldNumber)
	if err != nil {
		return nil, apierr.Persistence(err)
	}

	var previous *domain.UserWorldProgress
	if worldNumber > 1 {
		previous, err = e.progress.GetByUserAndWorld(ctx, tx, userID, worldNumber-1)
		if err != nil {
			return nil, apierr.Persistence(err)
		}
	}
	shouldUnlock := e.catalog.ShouldUnlock(worldNumber, previous)

	if existing != nil {
		if existing.WorldStatus == domain.WorldStatusLocked && shouldUnlock {
			existing.WorldStatus = domain.WorldStatusUnlocked
			existing.UpdatedAt = e.now()
			if err := e.progress.Save(ctx, tx, existing); err != nil {
				return nil, apierr.Persistence(err)
			}
		}
		return existing, nil
	}

	status := domain.WorldStatusLocked
	if shouldUnlock {
		status = domain.WorldStatusUnlocked
	}
	now := e.now()
	row := &domain.UserWorldProgress{
		ID:          uuid.New(),
		UserID:      userID,
		WorldNumber: worldNumber,
		WorldStatus: status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	stored, err := e.progress.CreateIfAbsent(ctx, tx, row)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return stored, nil
}

// loadOrGeneratePath returns the stored path for (user, world), generating and
// persisting it on first request. Generation is guarded by singleflight in
// process and by the unique index across processes: first writer wins, losers
// read back the winner's graph.
func (e *Engine) loadOrGeneratePath(ctx context.Context, userID uuid.UUID, world World) (*domain.GeneratedPath, Path, error) {
	row, err := e.paths.GetByUserAndWorld(ctx, nil, userID, world.Number)
	if err != nil {
		return nil, Path{}, apierr.Persistence(err)
	}
	if row == nil {
		key := fmt.Sprintf("%s:%d", userID, world.Number)
		v, genErr, _ := e.genGroup.Do(key, func() (interface{}, error) {
			snap := e.snapshot(ctx, userID)
			p := Generate(world, snap, e.log)
			encoded, err := json.Marshal(p.Nodes)
			if err != nil {
				return nil, err
			}
			return e.paths.Create(ctx, nil, &domain.GeneratedPath{
				ID:          uuid.New(),
				UserID:      userID,
				WorldNumber: world.Number,
				StartKey:    p.StartKey,
				TotalLevels: len(p.Nodes),
				Nodes:       encoded,
				CreatedAt:   e.now(),
			})
		})
		if genErr != nil {
			return nil, Path{}, apierr.Persistence(genErr)
		}
		row = v.(*domain.GeneratedPath)
		e.log.Info("Generated adventure path", "user_id", userID, "world", world.Number, "levels", row.TotalLevels)
	}

	path, err := decodePath(row)
	if err != nil {
		return nil, Path{}, apierr.Persistence(err)
	}
	return row, path, nil
}

func decodePath(row *domain.GeneratedPath) (Path, error) {
	var nodes []Node
	if err := json.Unmarshal(row.Nodes, &nodes); err != nil {
		return Path{}, fmt.Errorf("decode path %s: %w", row.ID, err)
	}
	return Path{StartKey: row.StartKey, Nodes: nodes}, nil
}

// nodeStatuses derives the status of every node from the completion set: the
// start node and successors of completed nodes are unlocked, everything else
// is locked.
func (e *Engine) nodeStatuses(ctx context.Context, userID uuid.UUID, worldNumber int, path Path) (map[string]NodeStatus, error) {
	rows, err := e.completions.ListByUserAndWorld(ctx, nil, userID, worldNumber)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	completed := make(map[string]bool, len(rows))
	for _, row := range rows {
		completed[row.PositionKey] = true
	}

	preds := path.Predecessors()
	statuses := make(map[string]NodeStatus, len(path.Nodes))
	for _, n := range path.Nodes {
		switch {
		case completed[n.PositionKey]:
			statuses[n.PositionKey] = NodeCompleted
		case n.PositionKey == path.StartKey:
			statuses[n.PositionKey] = NodeUnlocked
		case anyCompleted(preds[n.PositionKey], completed):
			statuses[n.PositionKey] = NodeUnlocked
		default:
			statuses[n.PositionKey] = NodeLocked
		}
	}
	return statuses, nil
}

func anyCompleted(keys []string, completed map[string]bool) bool {
	for _, k := range keys {
		if completed[k] {
			return true
		}
	}
	return false
}

func (e *Engine) pathView(ctx context.Context, userID uuid.UUID, world World, path Path, prog *domain.UserWorldProgress) (*PathView, error) {
	statuses, err := e.nodeStatuses(ctx, userID, world.Number, path)
	if err != nil {
		return nil, err
	}
	nodes := make([]NodeView, 0, len(path.Nodes))
	for _, n := range path.Nodes {
		nodes = append(nodes, NodeView{Node: n, Status: statuses[n.PositionKey]})
	}
	return &PathView{
		WorldNumber:     world.Number,
		StartKey:        path.StartKey,
		CurrentPosition: prog.CurrentPosition,
		Nodes:           nodes,
		Progress:        prog,
	}, nil
}

// completeNode applies a node completion as one transaction: the completion
// row insert is the at-most-once guard, then counters, the reward ledger, the
// boss event and the next-world unlock all commit together. The external XP
// credit happens after commit so a slow or failing XP service can never roll
// back progress.
func (e *Engine) completeNode(ctx context.Context, userID uuid.UUID, world World, node Node) (*CompletionResult, error) {
	now := e.now()
	reason := fmt.Sprintf("adventure:world_%d:%s", world.Number, node.PositionKey)

	result := &CompletionResult{
		PositionKey:   node.PositionKey,
		NodeType:      node.Type,
		RewardXP:      node.RewardXP,
		UnlockedNodes: node.Connections,
	}
	var creditID uuid.UUID

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := e.completions.Insert(ctx, tx, &domain.NodeCompletion{
			ID:          uuid.New(),
			UserID:      userID,
			WorldNumber: world.Number,
			PositionKey: node.PositionKey,
			NodeType:    string(node.Type),
			RewardXP:    node.RewardXP,
			CompletedAt: now,
		})
		if err != nil {
			return err
		}
		if !inserted {
			result.AlreadyCompleted = true
			return nil
		}

		prog, err := e.progress.GetByUserAndWorld(ctx, tx, userID, world.Number)
		if err != nil {
			return err
		}
		if prog == nil {
			return fmt.Errorf("progress row missing for world %d", world.Number)
		}

		if prog.WorldStatus == domain.WorldStatusUnlocked {
			prog.WorldStatus = domain.WorldStatusInProgress
		}
		if prog.StartedAt == nil {
			started := now
			prog.StartedAt = &started
		}
		prog.LevelsCompleted++
		prog.TotalXPEarned += node.RewardXP
		prog.CurrentPosition = node.PositionKey

		switch node.Type {
		case NodeMiniBoss:
			prog.MiniBossDefeated = true
		case NodeBoss:
			prog.BossDefeated = true
			prog.WorldStatus = domain.WorldStatusCompleted
			completedAt := now
			prog.CompletedAt = &completedAt
			result.WorldCompleted = true
		}
		prog.UpdatedAt = now
		if err := e.progress.Save(ctx, tx, prog); err != nil {
			return err
		}
		result.LevelsCompleted = prog.LevelsCompleted

		credit, err := e.credits.CreateIfAbsent(ctx, tx, &domain.XPCredit{
			ID:          uuid.New(),
			UserID:      userID,
			WorldNumber: world.Number,
			PositionKey: node.PositionKey,
			Amount:      node.RewardXP,
			Reason:      reason,
			Status:      domain.XPCreditPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return err
		}
		creditID = credit.ID

		if node.Type == NodeBoss {
			if err := e.bossEvents.Create(ctx, tx, &domain.BossEvent{
				ID:          uuid.New(),
				UserID:      userID,
				WorldNumber: world.Number,
				BossName:    world.Boss.Name,
				XPAwarded:   node.RewardXP,
				DefeatedAt:  now,
			}); err != nil {
				return err
			}
			if world.Number < e.catalog.Count() {
				next, err := e.unlockNextWorld(ctx, tx, userID, world.Number+1, now)
				if err != nil {
					return err
				}
				result.NextWorldUnlocked = next
			}
		}
		return nil
	})
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if result.AlreadyCompleted {
		return result, nil
	}

	e.creditXP(ctx, userID, creditID, node.RewardXP, reason, result)
	return result, nil
}

// unlockNextWorld creates or updates the next world's progress row so it never
// remains locked after the previous boss falls.
func (e *Engine) unlockNextWorld(ctx context.Context, tx *gorm.DB, userID uuid.UUID, worldNumber int, now time.Time) (bool, error) {
	row, err := e.progress.GetByUserAndWorld(ctx, tx, userID, worldNumber)
	if err != nil {
		return false, err
	}
	if row == nil {
		_, err := e.progress.CreateIfAbsent(ctx, tx, &domain.UserWorldProgress{
			ID:          uuid.New(),
			UserID:      userID,
			WorldNumber: worldNumber,
			WorldStatus: domain.WorldStatusUnlocked,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return true, err
	}
	if row.WorldStatus == domain.WorldStatusLocked {
		row.WorldStatus = domain.WorldStatusUnlocked
		row.UpdatedAt = now
		if err := e.progress.Save(ctx, tx, row); err != nil {
			return false, err
		}
	}
	return true, nil
}

// creditXP makes one immediate credit attempt; on failure the pending ledger
// row stays authoritative and the credit is deferred to the retry worker. A
// missing XP service defers straight away.
func (e *Engine) creditXP(ctx context.Context, userID, creditID uuid.UUID, amount int, reason string, result *CompletionResult) {
	if e.xpService == nil {
		result.XPPending = true
		if e.deferrer != nil {
			e.deferrer.Enqueue(ctx, creditID)
		}
		return
	}

	if _, err := e.xpService.Credit(ctx, userID, amount, reason, creditID); err != nil {
		e.log.Warn("XP credit failed, deferring", "error", err, "credit_id", creditID, "user_id", userID)
		result.XPPending = true
		if mErr := e.credits.MarkAttemptFailed(ctx, nil, creditID, 1, err.Error(), false); mErr != nil {
			e.log.Error("Failed to record credit attempt", "error", mErr, "credit_id", creditID)
		}
		if e.deferrer != nil {
			e.deferrer.Enqueue(ctx, creditID)
		}
		return
	}

	if err := e.credits.MarkCredited(ctx, nil, creditID); err != nil {
		e.log.Error("Credit succeeded but ledger update failed", "error", err, "credit_id", creditID)
	}
}

// snapshot fetches a fresh task snapshot, degrading to empty when the source
// is unreachable so evaluation never hard-fails.
func (e *Engine) snapshot(ctx context.Context, userID uuid.UUID) tasks.Snapshot {
	if e.taskSource == nil {
		return tasks.Snapshot{FetchedAt: e.now(), Degraded: true}
	}
	snap, err := e.taskSource.Snapshot(ctx, userID)
	if err != nil {
		e.log.Warn("Task snapshot unavailable, evaluating against empty snapshot", "error", err, "user_id", userID)
		return tasks.Snapshot{FetchedAt: e.now(), Degraded: true}
	}
	return snap
}

// userLocation resolves the user's day-boundary timezone, defaulting to UTC.
func (e *Engine) userLocation(ctx context.Context, userID uuid.UUID) *time.Location {
	if e.users == nil {
		return time.UTC
	}
	u, err := e.users.GetByID(ctx, nil, userID)
	if err != nil || u == nil || u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
