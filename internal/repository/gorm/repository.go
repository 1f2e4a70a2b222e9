package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roundkeeper/internal/models"
	"roundkeeper/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- advance checkpoints ---------------------------------------------------

func (s *Store) GetAdvanceCheckpoint(ctx context.Context, roundID uint64) (*models.AdvanceCheckpoint, error) {
	if s == nil || s.db == nil || roundID == 0 {
		return nil, nil
	}
	var item models.AdvanceCheckpoint
	err := s.db.WithContext(ctx).Model(&models.AdvanceCheckpoint{}).Where("round_id = ?", roundID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveAdvanceCheckpoint(ctx context.Context, item *models.AdvanceCheckpoint) error {
	if s == nil || s.db == nil || item == nil || item.RoundID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "round_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"run_id",
			"stage",
			"failed_step",
			"end_price_micro",
			"start_price_micro",
			"settle_tx_hash",
			"start_tx_hash",
			"next_round_id",
			"attempts",
			"last_error",
			"settled_at",
			"completed_at",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListAdvanceCheckpoints(ctx context.Context, params repository.ListAdvanceCheckpointsParams) ([]models.AdvanceCheckpoint, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := checkpointFilter(s.db.WithContext(ctx).Model(&models.AdvanceCheckpoint{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "round_id")
	var items []models.AdvanceCheckpoint
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountAdvanceCheckpoints(ctx context.Context, params repository.ListAdvanceCheckpointsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := checkpointFilter(s.db.WithContext(ctx).Model(&models.AdvanceCheckpoint{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func checkpointFilter(query *gorm.DB, params repository.ListAdvanceCheckpointsParams) *gorm.DB {
	if stages := cleanStrings(params.Stages); len(stages) > 0 {
		query = query.Where("stage IN ?", stages)
	}
	return query
}

// --- submission journal ----------------------------------------------------

func (s *Store) InsertTxSubmission(ctx context.Context, item *models.TxSubmission) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListTxSubmissions(ctx context.Context, params repository.ListTxSubmissionsParams) ([]models.TxSubmission, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := submissionFilter(s.db.WithContext(ctx).Model(&models.TxSubmission{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "finished_at")
	var items []models.TxSubmission
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTxSubmissions(ctx context.Context, params repository.ListTxSubmissionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := submissionFilter(s.db.WithContext(ctx).Model(&models.TxSubmission{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func submissionFilter(query *gorm.DB, params repository.ListTxSubmissionsParams) *gorm.DB {
	if params.Function != nil && strings.TrimSpace(*params.Function) != "" {
		query = query.Where("function = ?", strings.TrimSpace(*params.Function))
	}
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.Sender != nil && strings.TrimSpace(*params.Sender) != "" {
		query = query.Where("sender = ?", strings.ToLower(strings.TrimSpace(*params.Sender)))
	}
	return query
}

// --- system settings -------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_by",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := settingFilter(s.db.WithContext(ctx).Model(&models.SystemSetting{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "key")
	var items []models.SystemSetting
	if err := query.Limit(normalizeLimit(params.Limit, 500)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := settingFilter(s.db.WithContext(ctx).Model(&models.SystemSetting{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func settingFilter(query *gorm.DB, params repository.ListSystemSettingsParams) *gorm.DB {
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	return query
}

// --- helpers ---------------------------------------------------------------

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if column == "" {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}
