package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"roundkeeper/internal/events"
	"roundkeeper/internal/keeperlock"
	"roundkeeper/internal/ledger"
	"roundkeeper/internal/metrics"
	"roundkeeper/internal/models"
	"roundkeeper/internal/oracle"
	"roundkeeper/internal/repository"
)

// Ledger is the read side of the betting module plus a transaction builder.
type Ledger interface {
	CurrentRoundID(ctx context.Context) (uint64, error)
	GetRound(ctx context.Context, roundID uint64) (*ledger.Round, error)
	GetUserBet(ctx context.Context, roundID uint64, user string) (*ledger.Bet, error)
	PotentialPayout(ctx context.Context, roundID uint64, user string) (uint64, error)
	ContractInitialized(ctx context.Context) (bool, error)
	Builder(function string, args ...any) ledger.BuildFunc
}

type TxSubmitter interface {
	Submit(ctx context.Context, build ledger.BuildFunc, signer ledger.Signer) (*ledger.Receipt, error)
}

type PriceSource interface {
	FetchCurrentPrice(ctx context.Context) (oracle.Price, error)
}

// Keeper bundles the signing identity with the plumbing every mutating
// service shares. All ledger writes go through one Keeper so they share
// the identity lock.
type Keeper struct {
	Ledger    Ledger
	Submitter TxSubmitter
	Signer    ledger.Signer
	Locker    keeperlock.Locker
	Events    *events.Hub
	Logger    *zap.Logger
	Metrics   *metrics.Keeper
}

func (k *Keeper) requireSigner() error {
	if k == nil || k.Signer == nil || k.Signer.Address() == "" {
		return ErrSignerNotConfigured
	}
	if k.Ledger == nil || k.Submitter == nil {
		return fmt.Errorf("keeper ledger not configured")
	}
	return nil
}

// Address is empty when no signer is configured.
func (k *Keeper) Address() string {
	if k == nil || k.Signer == nil {
		return ""
	}
	return k.Signer.Address()
}

// lock holds the identity for the caller's whole operation. Callers must
// not nest acquisitions and must use the returned context, which is
// cancelled if the lock is lost.
func (k *Keeper) lock(ctx context.Context) (context.Context, func(), error) {
	if k.Locker == nil {
		return ctx, func() {}, nil
	}
	held, release, err := k.Locker.Acquire(ctx, k.Signer.Address())
	if err != nil {
		return ctx, nil, fmt.Errorf("acquire identity lock: %w", err)
	}
	return held, release, nil
}

func (k *Keeper) submit(ctx context.Context, function string, args ...any) (*ledger.Receipt, error) {
	receipt, err := k.Submitter.Submit(ctx, k.Ledger.Builder(function, args...), k.Signer)
	if err != nil && errors.Is(context.Cause(ctx), keeperlock.ErrLockLost) {
		return receipt, fmt.Errorf("%w: %w", keeperlock.ErrLockLost, err)
	}
	return receipt, err
}

// round reads a round and maps a missing id to ErrRoundNotFound.
func (k *Keeper) round(ctx context.Context, roundID uint64) (*ledger.Round, error) {
	r, err := k.Ledger.GetRound(ctx, roundID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("round %d: %w", roundID, ErrRoundNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read round %d: %w", roundID, err)
	}
	return r, nil
}

func (k *Keeper) publish(ev events.Event) {
	if k == nil {
		return
	}
	k.Events.Publish(ev)
}

func (k *Keeper) logger() *zap.Logger {
	if k == nil || k.Logger == nil {
		return zap.NewNop()
	}
	return k.Logger
}

// CheckpointStore persists advance saga progress. repository.Repository
// satisfies it; MemoryCheckpoints serves keepers running without a
// database.
type CheckpointStore interface {
	GetAdvanceCheckpoint(ctx context.Context, roundID uint64) (*models.AdvanceCheckpoint, error)
	SaveAdvanceCheckpoint(ctx context.Context, item *models.AdvanceCheckpoint) error
	ListAdvanceCheckpoints(ctx context.Context, params repository.ListAdvanceCheckpointsParams) ([]models.AdvanceCheckpoint, error)
}

type MemoryCheckpoints struct {
	mu    sync.Mutex
	items map[uint64]models.AdvanceCheckpoint
}

func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{items: map[uint64]models.AdvanceCheckpoint{}}
}

func (m *MemoryCheckpoints) GetAdvanceCheckpoint(_ context.Context, roundID uint64) (*models.AdvanceCheckpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[roundID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *MemoryCheckpoints) SaveAdvanceCheckpoint(_ context.Context, item *models.AdvanceCheckpoint) error {
	if item == nil || item.RoundID == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[uint64]models.AdvanceCheckpoint{}
	}
	if item.ID == 0 {
		if prev, ok := m.items[item.RoundID]; ok {
			item.ID = prev.ID
		} else {
			item.ID = uint64(len(m.items) + 1)
		}
	}
	m.items[item.RoundID] = *item
	return nil
}

func (m *MemoryCheckpoints) ListAdvanceCheckpoints(_ context.Context, params repository.ListAdvanceCheckpointsParams) ([]models.AdvanceCheckpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, s := range params.Stages {
		want[s] = true
	}
	out := make([]models.AdvanceCheckpoint, 0, len(m.items))
	for _, item := range m.items {
		if len(want) > 0 && !want[item.Stage] {
			continue
		}
		out = append(out, item)
	}
	asc := params.Asc != nil && *params.Asc
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].RoundID < out[j].RoundID
		}
		return out[i].RoundID > out[j].RoundID
	})
	if params.Offset > 0 {
		if params.Offset >= len(out) {
			return nil, nil
		}
		out = out[params.Offset:]
	}
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}
