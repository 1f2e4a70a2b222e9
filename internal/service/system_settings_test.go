package service

import (
	"context"
	"testing"
	"time"

	"roundkeeper/internal/ledger"
)

func TestSystemSettings_DefaultsAndOverrides(t *testing.T) {
	repo := newStubRepo()
	svc := &SystemSettingsService{Repo: repo}
	ctx := context.Background()

	if err := svc.SetEnabled(ctx, FeatureAutoManage, false, " ops "); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := svc.EnsureDefaultSwitches(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if svc.IsEnabled(ctx, FeatureAutoManage, true) {
		t.Fatalf("defaults must not overwrite an operator's off switch")
	}
	if !svc.IsEnabled(ctx, FeatureClaimRelay, false) {
		t.Fatalf("missing switch should be seeded on")
	}
	switches := svc.Switches(ctx)
	if len(switches) != 2 || switches[0].Key != FeatureAutoManage || switches[0].Enabled {
		t.Fatalf("unexpected switches: %+v", switches)
	}
	if switches[0].UpdatedBy != "ops" || switches[0].UpdatedAt == nil {
		t.Fatalf("operator change should record its editor: %+v", switches[0])
	}
	if switches[1].UpdatedBy != "" {
		t.Fatalf("seeded switch has no editor: %+v", switches[1])
	}
	if !IsKnownSwitch(FeatureClaimRelay) || IsKnownSwitch("feature.unknown") {
		t.Fatalf("unexpected known switch result")
	}
}

func TestSystemSettings_NilRepoFallsBack(t *testing.T) {
	var svc *SystemSettingsService
	if !svc.IsEnabled(context.Background(), FeatureAutoManage, true) {
		t.Fatalf("nil service should return fallback")
	}
	if sw := svc.Switch(context.Background(), FeatureClaimRelay, false); sw.Enabled || sw.UpdatedAt != nil {
		t.Fatalf("nil service switch: %+v", sw)
	}
}

func TestSubmissionJournal_Records(t *testing.T) {
	repo := newStubRepo()
	j := &SubmissionJournal{Repo: repo}
	now := time.Now().UTC()
	err := j.RecordSubmission(context.Background(), ledger.SubmissionRecord{
		Function:   ledger.FnSettle,
		Arguments:  []any{"1", "8500000"},
		Sender:     "0xKEEPER",
		Attempts:   2,
		Hash:       "0xabc",
		Status:     ledger.SubmissionCommitted,
		StartedAt:  now,
		FinishedAt: now,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(repo.submissions) != 1 {
		t.Fatalf("expected one row, got %d", len(repo.submissions))
	}
	row := repo.submissions[0]
	if row.Sender != "0xkeeper" || row.TxHash == nil || *row.TxHash != "0xabc" || row.Error != nil {
		t.Fatalf("unexpected row: %+v", row)
	}
	if string(row.Arguments) != `["1","8500000"]` {
		t.Fatalf("unexpected arguments %s", row.Arguments)
	}
}
