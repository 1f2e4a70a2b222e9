package service

import (
	"context"
	"errors"
	"testing"

	"roundkeeper/internal/ledger"
	"roundkeeper/internal/ledger/ledgertest"
)

func TestContractInit_Idempotent(t *testing.T) {
	h := newHarness(t)
	fresh := ledgertest.NewChain(testStart)
	h.keeper.Ledger = fresh
	h.keeper.Submitter = ledger.NewSubmitter(fresh, nil)
	svc := &ContractService{Keeper: h.keeper}

	res, err := svc.Init(context.Background())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if res.Status != InitStatusInitialized || res.FeeBasisPoints != DefaultFeeBasisPoints || res.Treasury != h.keeper.Address() {
		t.Fatalf("unexpected result: %+v", res)
	}
	again, err := svc.Init(context.Background())
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if again.Status != InitStatusAlreadyInitialized {
		t.Fatalf("expected already_initialized, got %+v", again)
	}
	if n := fresh.Submissions(ledger.FnInit); n != 1 {
		t.Fatalf("expected one init submission, got %d", n)
	}
}

func TestContractInit_Validation(t *testing.T) {
	h := newHarness(t)
	if _, err := (&ContractService{Keeper: h.keeper, FeeBasisPoints: 20000}).Init(context.Background()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for fee, got %v", err)
	}
	if _, err := (&ContractService{Keeper: h.keeper, Treasury: "treasury"}).Init(context.Background()); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for treasury, got %v", err)
	}
	h.keeper.Signer = nil
	if _, err := (&ContractService{Keeper: h.keeper}).Init(context.Background()); !errors.Is(err, ErrSignerNotConfigured) {
		t.Fatalf("expected ErrSignerNotConfigured, got %v", err)
	}
}
