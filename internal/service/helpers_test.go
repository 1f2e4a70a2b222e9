package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"roundkeeper/internal/ledger"
	"roundkeeper/internal/ledger/ledgertest"
	"roundkeeper/internal/models"
	"roundkeeper/internal/oracle"
	"roundkeeper/internal/repository"
)

const testKeeperKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var testStart = time.Unix(1_700_000_000, 0)

type stubPrices struct {
	mu      sync.Mutex
	prices  []oracle.Price
	calls   int
	err     error
	onFetch func()
}

func (s *stubPrices) FetchCurrentPrice(context.Context) (oracle.Price, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.onFetch != nil {
		s.onFetch()
	}
	if s.err != nil {
		return oracle.Price{}, s.err
	}
	if len(s.prices) == 0 {
		return oracle.Price{}, oracle.ErrUnavailable
	}
	p := s.prices[0]
	if len(s.prices) > 1 {
		s.prices = s.prices[1:]
	}
	return p, nil
}

func (s *stubPrices) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func mustPrice(t *testing.T, v string) oracle.Price {
	t.Helper()
	d := decimal.RequireFromString(v)
	micro, err := oracle.ToMicro(d)
	if err != nil {
		t.Fatalf("to micro %s: %v", v, err)
	}
	return oracle.Price{Value: d, Micro: micro}
}

type harness struct {
	chain  *ledgertest.Chain
	keeper *Keeper
	rounds *RoundController
	prices *stubPrices
	sleeps []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	chain := ledgertest.NewChain(testStart)
	chain.Initialize(200, "0xtreasury")
	signer, err := ledger.NewKeySigner(testKeeperKey, "")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	sub := ledger.NewSubmitter(chain, nil)
	sub.Backoff = 0
	h := &harness{chain: chain, prices: &stubPrices{}}
	h.keeper = &Keeper{
		Ledger:    chain,
		Submitter: sub,
		Signer:    signer,
	}
	h.rounds = NewRoundController(h.keeper, h.prices, NewMemoryCheckpoints())
	h.rounds.Now = chain.Now
	h.rounds.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		chain.Advance(d)
		return nil
	}
	return h
}

// stubRepo is an in-memory repository.Repository.
type stubRepo struct {
	mu          sync.Mutex
	checkpoints *MemoryCheckpoints
	submissions []models.TxSubmission
	settings    map[string]models.SystemSetting
}

func newStubRepo() *stubRepo {
	return &stubRepo{checkpoints: NewMemoryCheckpoints(), settings: map[string]models.SystemSetting{}}
}

var _ repository.Repository = (*stubRepo)(nil)

func (r *stubRepo) InTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (r *stubRepo) GetAdvanceCheckpoint(ctx context.Context, roundID uint64) (*models.AdvanceCheckpoint, error) {
	return r.checkpoints.GetAdvanceCheckpoint(ctx, roundID)
}

func (r *stubRepo) SaveAdvanceCheckpoint(ctx context.Context, item *models.AdvanceCheckpoint) error {
	return r.checkpoints.SaveAdvanceCheckpoint(ctx, item)
}

func (r *stubRepo) ListAdvanceCheckpoints(ctx context.Context, params repository.ListAdvanceCheckpointsParams) ([]models.AdvanceCheckpoint, error) {
	return r.checkpoints.ListAdvanceCheckpoints(ctx, params)
}

func (r *stubRepo) CountAdvanceCheckpoints(ctx context.Context, params repository.ListAdvanceCheckpointsParams) (int64, error) {
	params.Limit, params.Offset = 0, 0
	items, err := r.checkpoints.ListAdvanceCheckpoints(ctx, params)
	return int64(len(items)), err
}

func (r *stubRepo) InsertTxSubmission(_ context.Context, item *models.TxSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = uint64(len(r.submissions) + 1)
	r.submissions = append(r.submissions, *item)
	return nil
}

func (r *stubRepo) ListTxSubmissions(_ context.Context, params repository.ListTxSubmissionsParams) ([]models.TxSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.TxSubmission, 0, len(r.submissions))
	for i := len(r.submissions) - 1; i >= 0; i-- {
		item := r.submissions[i]
		if params.Function != nil && item.Function != *params.Function {
			continue
		}
		if params.Status != nil && item.Status != *params.Status {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *stubRepo) CountTxSubmissions(ctx context.Context, params repository.ListTxSubmissionsParams) (int64, error) {
	items, err := r.ListTxSubmissions(ctx, params)
	return int64(len(items)), err
}

func (r *stubRepo) UpsertSystemSetting(_ context.Context, item *models.SystemSetting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[item.Key] = *item
	return nil
}

func (r *stubRepo) GetSystemSettingByKey(_ context.Context, key string) (*models.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.settings[key]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (r *stubRepo) ListSystemSettings(_ context.Context, _ repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SystemSetting, 0, len(r.settings))
	for _, item := range r.settings {
		out = append(out, item)
	}
	return out, nil
}

func (r *stubRepo) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	items, err := r.ListSystemSettings(ctx, params)
	return int64(len(items)), err
}
