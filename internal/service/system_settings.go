package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	"roundkeeper/internal/models"
	"roundkeeper/internal/repository"
)

const (
	FeatureAutoManage = "feature.auto_manage"
	FeatureClaimRelay = "feature.claim_relay"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureAutoManage: true,
		FeatureClaimRelay: true,
	}
}

type SystemSettingsService struct {
	Repo repository.Repository
}

// EnsureDefaultSwitches inserts missing switches. Stored values are never
// overwritten, so an operator's off switch survives restarts.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	return s.Switch(ctx, key, fallback).Enabled
}

// SetEnabled stores a switch value and records operator as its last editor.
func (s *SystemSettingsService) SetEnabled(ctx context.Context, key string, enabled bool, operator string) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	raw, _ := json.Marshal(enabled)
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedBy:   strings.TrimSpace(operator),
		UpdatedAt:   time.Now().UTC(),
	}
	return s.Repo.UpsertSystemSetting(ctx, item)
}

type FeatureSwitch struct {
	Key       string     `json:"key"`
	Enabled   bool       `json:"enabled"`
	UpdatedBy string     `json:"updatedBy,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Switch reads one switch. Keys without a readable stored value report
// fallback.
func (s *SystemSettingsService) Switch(ctx context.Context, key string, fallback bool) FeatureSwitch {
	key = strings.TrimSpace(key)
	out := FeatureSwitch{Key: key, Enabled: fallback}
	if s == nil || s.Repo == nil || key == "" {
		return out
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return out
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return out
	}
	out.Enabled = enabled
	out.UpdatedBy = item.UpdatedBy
	if !item.UpdatedAt.IsZero() {
		at := item.UpdatedAt
		out.UpdatedAt = &at
	}
	return out
}

// Switches reports every known switch, falling back to defaults for keys
// without a stored value.
func (s *SystemSettingsService) Switches(ctx context.Context) []FeatureSwitch {
	defaults := DefaultFeatureSwitches()
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]FeatureSwitch, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.Switch(ctx, k, defaults[k]))
	}
	return out
}

func IsKnownSwitch(key string) bool {
	_, ok := DefaultFeatureSwitches()[strings.TrimSpace(key)]
	return ok
}
