package models

import "time"

// Advance saga stages.
const (
	AdvanceStageSettling             = "settling"
	AdvanceStageSettledAwaitingStart = "settled_awaiting_start"
	AdvanceStageCompleted            = "completed"
	AdvanceStageFailed               = "failed"
)

// AdvanceCheckpoint records progress of one settle-then-start advance so a
// restart can finish the start step instead of leaving no active round.
type AdvanceCheckpoint struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	RoundID uint64 `gorm:"not null;uniqueIndex"`
	RunID   string `gorm:"type:varchar(36);not null;index"`

	Stage      string `gorm:"type:varchar(32);not null;index"`
	FailedStep string `gorm:"type:varchar(16)"`

	EndPriceMicro   *uint64
	StartPriceMicro *uint64
	SettleTxHash    *string `gorm:"type:varchar(80)"`
	StartTxHash     *string `gorm:"type:varchar(80)"`
	NextRoundID     *uint64

	Attempts  int     `gorm:"not null;default:0"`
	LastError *string `gorm:"type:text"`

	SettledAt   *time.Time `gorm:"type:timestamptz"`
	CompletedAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt   time.Time  `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (AdvanceCheckpoint) TableName() string {
	return "advance_checkpoints"
}
