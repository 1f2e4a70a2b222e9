package repository

import (
	"context"

	"gorm.io/gorm"

	"roundkeeper/internal/models"
)

// Repository is the keeper's own persistence. Round and bet state is never
// stored here; the ledger owns it.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Advance saga checkpoints, one per round id.
	GetAdvanceCheckpoint(ctx context.Context, roundID uint64) (*models.AdvanceCheckpoint, error)
	SaveAdvanceCheckpoint(ctx context.Context, item *models.AdvanceCheckpoint) error
	ListAdvanceCheckpoints(ctx context.Context, params ListAdvanceCheckpointsParams) ([]models.AdvanceCheckpoint, error)
	CountAdvanceCheckpoints(ctx context.Context, params ListAdvanceCheckpointsParams) (int64, error)

	// Submission journal.
	InsertTxSubmission(ctx context.Context, item *models.TxSubmission) error
	ListTxSubmissions(ctx context.Context, params ListTxSubmissionsParams) ([]models.TxSubmission, error)
	CountTxSubmissions(ctx context.Context, params ListTxSubmissionsParams) (int64, error)

	// Settings.
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
	CountSystemSettings(ctx context.Context, params ListSystemSettingsParams) (int64, error)
}

type ListAdvanceCheckpointsParams struct {
	Limit   int
	Offset  int
	Stages  []string
	OrderBy string
	Asc     *bool
}

type ListTxSubmissionsParams struct {
	Limit    int
	Offset   int
	Function *string
	Status   *string
	Sender   *string
	OrderBy  string
	Asc      *bool
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}
