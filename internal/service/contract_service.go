package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"roundkeeper/internal/events"
	"roundkeeper/internal/ledger"
)

const (
	InitStatusInitialized        = "initialized"
	InitStatusAlreadyInitialized = "already_initialized"

	DefaultFeeBasisPoints = 200
)

type InitResult struct {
	Status          string          `json:"status"`
	Admin           string          `json:"admin"`
	FeeBasisPoints  uint64          `json:"feeBasisPoints"`
	Treasury        string          `json:"treasury"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	Receipt         *ledger.Receipt `json:"receipt,omitempty"`
}

// ContractService bootstraps the betting module with the keeper as admin.
type ContractService struct {
	Keeper         *Keeper
	FeeBasisPoints uint64
	// Treasury defaults to the keeper address.
	Treasury string
}

// Init is idempotent: an initialized module is reported without a submission.
func (s *ContractService) Init(ctx context.Context) (*InitResult, error) {
	k := s.Keeper
	if err := k.requireSigner(); err != nil {
		return nil, err
	}
	fee := s.FeeBasisPoints
	if fee == 0 {
		fee = DefaultFeeBasisPoints
	}
	if fee > 10000 {
		return nil, fmt.Errorf("fee basis points %d exceeds 10000: %w", fee, ErrInvalidArgument)
	}
	treasury := k.Address()
	if s.Treasury != "" {
		t, err := ledger.NormalizeAddress(s.Treasury)
		if err != nil {
			return nil, fmt.Errorf("treasury: %v: %w", err, ErrInvalidArgument)
		}
		treasury = t
	}

	ctx, release, err := k.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	res := &InitResult{Admin: k.Address(), FeeBasisPoints: fee, Treasury: treasury}
	ok, err := k.Ledger.ContractInitialized(ctx)
	if err != nil {
		return nil, fmt.Errorf("check contract state: %w", err)
	}
	if ok {
		res.Status = InitStatusAlreadyInitialized
		return res, nil
	}
	receipt, err := k.submit(ctx, ledger.FnInit, k.Address(), ledger.U64(fee), treasury)
	if err != nil {
		return nil, fmt.Errorf("init contract: %w", err)
	}
	res.Status = InitStatusInitialized
	res.TransactionHash = receipt.Hash
	res.Receipt = receipt
	k.logger().Info("contract initialized", zap.Uint64("fee_bps", fee), zap.String("treasury", treasury), zap.String("hash", receipt.Hash))
	k.publish(events.Event{Type: events.TypeContractInitDone, TxHash: receipt.Hash})
	return res, nil
}
