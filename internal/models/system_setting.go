package models

import (
	"time"

	"gorm.io/datatypes"
)

// SystemSetting is a keeper feature switch (feature.auto_manage,
// feature.claim_relay) flipped by operators at runtime. Seeded rows have an
// empty UpdatedBy.
type SystemSetting struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Key string `gorm:"type:varchar(120);not null;uniqueIndex"`

	// JSON boolean.
	Value datatypes.JSON `gorm:"type:jsonb;not null"`

	Description string `gorm:"type:text"`
	// Operator claim of the token that last changed the switch.
	UpdatedBy string    `gorm:"type:varchar(120);not null;default:''"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}
