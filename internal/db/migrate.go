package db

import (
	"roundkeeper/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}
	return db.Gorm.AutoMigrate(
		&models.AdvanceCheckpoint{},
		&models.TxSubmission{},
		&models.SystemSetting{},
	)
}
