package models

import (
	"time"

	"gorm.io/datatypes"
)

// TxSubmission is the audit row for one Submitter call, covering all of its
// attempts.
type TxSubmission struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Function  string         `gorm:"type:varchar(64);not null;index"`
	Arguments datatypes.JSON `gorm:"type:jsonb"`
	Sender    string         `gorm:"type:varchar(80);not null;index"`
	Attempts  int            `gorm:"not null"`

	TxHash *string `gorm:"type:varchar(80);index"`
	Status string  `gorm:"type:varchar(16);not null;index"`
	Error  *string `gorm:"type:text"`

	StartedAt  time.Time `gorm:"type:timestamptz;not null"`
	FinishedAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (TxSubmission) TableName() string {
	return "tx_submissions"
}
