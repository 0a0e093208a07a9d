package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// World progress statuses. The order is monotonic: a row never moves back.
const (
	WorldStatusLocked     = "locked"
	WorldStatusUnlocked   = "unlocked"
	WorldStatusInProgress = "in_progress"
	WorldStatusCompleted  = "completed"
)

// XP credit ledger statuses.
const (
	XPCreditPending  = "pending"
	XPCreditCredited = "credited"
	XPCreditFailed   = "failed"
)

// GeneratedPath is the materialized node graph for one (user, world) pair.
// Immutable once written; regeneration reads this row back instead of
// producing a new graph, so an in-progress position is never invalidated.
type GeneratedPath struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_generated_path_user_world,unique,priority:1" json:"user_id"`
	WorldNumber int            `gorm:"not null;index:idx_generated_path_user_world,unique,priority:2" json:"world_number"`
	StartKey    string         `gorm:"not null;column:start_key" json:"start_key"`
	TotalLevels int            `gorm:"not null;column:total_levels" json:"total_levels"`
	Nodes       datatypes.JSON `gorm:"not null" json:"nodes"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}

func (GeneratedPath) TableName() string { return "generated_path" }

// UserWorldProgress is the only mutable state the engine owns: one row per
// (user, world). Counters are monotonically non-decreasing.
type UserWorldProgress struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null;index:idx_user_world_progress,unique,priority:1" json:"user_id"`
	WorldNumber      int        `gorm:"not null;index:idx_user_world_progress,unique,priority:2" json:"world_number"`
	WorldStatus      string     `gorm:"not null;default:'locked';column:world_status" json:"world_status"`
	CurrentPosition  string     `gorm:"column:current_position" json:"current_position"`
	LevelsCompleted  int        `gorm:"not null;default:0;column:levels_completed" json:"levels_completed"`
	TotalLevels      int        `gorm:"not null;default:0;column:total_levels" json:"total_levels"`
	MiniBossDefeated bool       `gorm:"not null;default:false;column:mini_boss_defeated" json:"mini_boss_defeated"`
	BossDefeated     bool       `gorm:"not null;default:false;column:boss_defeated" json:"boss_defeated"`
	TotalXPEarned    int        `gorm:"not null;default:0;column:total_xp_earned" json:"total_xp_earned"`
	StartedAt        *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt      *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"not null" json:"updated_at"`
}

func (UserWorldProgress) TableName() string { return "user_world_progress" }

// NodeCompletion is the at-most-once guard for node completion: the unique
// index makes the insert a compare-and-swap, so a double-submitted complete
// request hits the conflict path and becomes an idempotent no-op.
type NodeCompletion struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_node_completion,unique,priority:1" json:"user_id"`
	WorldNumber int       `gorm:"not null;index:idx_node_completion,unique,priority:2" json:"world_number"`
	PositionKey string    `gorm:"not null;column:position_key;index:idx_node_completion,unique,priority:3" json:"position_key"`
	NodeType    string    `gorm:"not null;column:node_type" json:"node_type"`
	RewardXP    int       `gorm:"not null;column:reward_xp" json:"reward_xp"`
	CompletedAt time.Time `gorm:"not null;column:completed_at" json:"completed_at"`
}

func (NodeCompletion) TableName() string { return "node_completion" }

// XPCredit is the outbound reward ledger. Its ID doubles as the idempotency
// key sent to the XP service, so a retry after a partial failure cannot
// double-credit.
type XPCredit struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index:idx_xp_credit,unique,priority:1" json:"user_id"`
	WorldNumber int       `gorm:"not null;index:idx_xp_credit,unique,priority:2" json:"world_number"`
	PositionKey string    `gorm:"not null;column:position_key;index:idx_xp_credit,unique,priority:3" json:"position_key"`
	Amount      int       `gorm:"not null" json:"amount"`
	Reason      string    `gorm:"not null" json:"reason"`
	Status      string    `gorm:"not null;default:'pending'" json:"status"`
	Attempts    int       `gorm:"not null;default:0" json:"attempts"`
	LastError   string    `gorm:"column:last_error" json:"last_error,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (XPCredit) TableName() string { return "xp_credit" }

// BossEvent is append-only boss-defeat history for analytics.
type BossEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	WorldNumber int       `gorm:"not null" json:"world_number"`
	BossName    string    `gorm:"not null;column:boss_name" json:"boss_name"`
	XPAwarded   int       `gorm:"not null;column:xp_awarded" json:"xp_awarded"`
	DefeatedAt  time.Time `gorm:"not null;column:defeated_at" json:"defeated_at"`
}

func (BossEvent) TableName() string { return "boss_event" }
