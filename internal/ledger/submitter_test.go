package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeNode struct {
	mu        sync.Mutex
	submitted []*SignedTransaction
	submitErr func(n int) error
	receipt   *Receipt
	waitErr   error
	block     bool
}

func (f *fakeNode) SubmitTransaction(_ context.Context, tx *SignedTransaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, tx)
	if f.submitErr != nil {
		if err := f.submitErr(len(f.submitted)); err != nil {
			return "", err
		}
	}
	return "0xhash", nil
}

func (f *fakeNode) WaitForTransaction(ctx context.Context, hash string) (*Receipt, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	if f.receipt != nil {
		r := *f.receipt
		return &r, nil
	}
	return &Receipt{Hash: hash, Success: true, VMStatus: "Executed successfully"}, nil
}

func (f *fakeNode) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type fakeSigner struct{ addr string }

func (s fakeSigner) Address() string { return s.addr }

func (s fakeSigner) Sign(tx *RawTransaction) (*SignedTransaction, error) {
	return &SignedTransaction{RawTransaction: *tx, Signature: TransactionSignature{Type: "test"}}, nil
}

type countingBuilder struct {
	calls int
}

func (b *countingBuilder) build(_ context.Context, sender string) (*RawTransaction, error) {
	b.calls++
	return &RawTransaction{
		Sender:         sender,
		SequenceNumber: uint64(b.calls),
		Payload:        EntryFunctionPayload{Function: "0x1::betting::settle", Arguments: []any{"1", "8500000"}},
	}, nil
}

type memJournal struct {
	records []SubmissionRecord
}

func (j *memJournal) RecordSubmission(_ context.Context, rec SubmissionRecord) error {
	j.records = append(j.records, rec)
	return nil
}

func newTestSubmitter(node Node) (*Submitter, *[]time.Duration) {
	var slept []time.Duration
	s := NewSubmitter(node, nil)
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func staleErr() error {
	return &APIError{Status: 400, ErrorCode: "vm_error", Message: "Invalid transaction: Type: Validation Code: SEQUENCE_NUMBER_TOO_OLD"}
}

func TestSubmitSucceedsFirstTry(t *testing.T) {
	node := &fakeNode{}
	s, slept := newTestSubmitter(node)
	j := &memJournal{}
	s.Journal = j
	b := &countingBuilder{}

	receipt, err := s.Submit(context.Background(), b.build, fakeSigner{addr: "0xkeeper"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if receipt.Hash != "0xhash" || !receipt.Success {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if node.count() != 1 || b.calls != 1 || len(*slept) != 0 {
		t.Fatalf("expected one submission, got submits=%d builds=%d sleeps=%d", node.count(), b.calls, len(*slept))
	}
	if len(j.records) != 1 || j.records[0].Status != SubmissionCommitted || j.records[0].Function != "settle" {
		t.Fatalf("unexpected journal: %+v", j.records)
	}
}

func TestSubmitSustainedStaleStopsAtMaxAttempts(t *testing.T) {
	node := &fakeNode{submitErr: func(int) error { return staleErr() }}
	s, slept := newTestSubmitter(node)
	j := &memJournal{}
	s.Journal = j
	b := &countingBuilder{}

	_, err := s.Submit(context.Background(), b.build, fakeSigner{addr: "0xkeeper"})
	if !errors.Is(err, ErrStaleSequence) {
		t.Fatalf("expected stale sequence error, got %v", err)
	}
	if node.count() != DefaultMaxAttempts {
		t.Fatalf("expected %d submissions, got %d", DefaultMaxAttempts, node.count())
	}
	if b.calls != DefaultMaxAttempts {
		t.Fatalf("expected a fresh build per attempt, got %d builds", b.calls)
	}
	if len(*slept) != DefaultMaxAttempts-1 {
		t.Fatalf("expected %d backoffs, got %d", DefaultMaxAttempts-1, len(*slept))
	}
	for _, d := range *slept {
		if d != DefaultBackoff {
			t.Fatalf("backoff should be fixed at %s, got %s", DefaultBackoff, d)
		}
	}
	seen := map[uint64]bool{}
	for _, tx := range node.submitted {
		if seen[tx.SequenceNumber] {
			t.Fatalf("signed payload replayed with sequence %d", tx.SequenceNumber)
		}
		seen[tx.SequenceNumber] = true
	}
	if len(j.records) != 1 || j.records[0].Status != SubmissionFailed || j.records[0].Attempts != DefaultMaxAttempts {
		t.Fatalf("unexpected journal: %+v", j.records)
	}
}

func TestSubmitRecoversAfterStale(t *testing.T) {
	node := &fakeNode{submitErr: func(n int) error {
		if n == 1 {
			return staleErr()
		}
		return nil
	}}
	s, _ := newTestSubmitter(node)
	b := &countingBuilder{}

	if _, err := s.Submit(context.Background(), b.build, fakeSigner{addr: "0xkeeper"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if node.count() != 2 {
		t.Fatalf("expected 2 submissions, got %d", node.count())
	}
	if node.submitted[1].SequenceNumber != 2 {
		t.Fatalf("retry should use rebuilt transaction, got sequence %d", node.submitted[1].SequenceNumber)
	}
}

func TestSubmitDoesNotRetryOtherErrors(t *testing.T) {
	insufficient := &APIError{Status: 400, ErrorCode: "vm_error", Message: "INSUFFICIENT_BALANCE_FOR_TRANSACTION_FEE"}
	node := &fakeNode{submitErr: func(int) error { return insufficient }}
	s, slept := newTestSubmitter(node)
	b := &countingBuilder{}

	_, err := s.Submit(context.Background(), b.build, fakeSigner{addr: "0xkeeper"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr != insufficient {
		t.Fatalf("expected error to propagate unchanged, got %v", err)
	}
	if node.count() != 1 || len(*slept) != 0 {
		t.Fatalf("expected no retries, got submits=%d sleeps=%d", node.count(), len(*slept))
	}
}

func TestSubmitRejectedExecution(t *testing.T) {
	node := &fakeNode{receipt: &Receipt{Hash: "0xhash", Success: false, VMStatus: "Move abort: E_ROUND_NOT_EXPIRED"}}
	s, _ := newTestSubmitter(node)
	b := &countingBuilder{}

	_, err := s.Submit(context.Background(), b.build, fakeSigner{addr: "0xkeeper"})
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected rejected error, got %v", err)
	}
	if rejected.Function != "settle" || rejected.Hash != "0xhash" {
		t.Fatalf("unexpected rejection: %+v", rejected)
	}
	if node.count() != 1 {
		t.Fatalf("rejection must not be retried, got %d submissions", node.count())
	}
}

func TestSubmitConfirmationTimeoutIsFatal(t *testing.T) {
	node := &fakeNode{block: true}
	s, _ := newTestSubmitter(node)
	s.ConfirmTimeout = 20 * time.Millisecond
	j := &memJournal{}
	s.Journal = j
	b := &countingBuilder{}

	_, err := s.Submit(context.Background(), b.build, fakeSigner{addr: "0xkeeper"})
	if !errors.Is(err, ErrConfirmationTimeout) {
		t.Fatalf("expected confirmation timeout, got %v", err)
	}
	if node.count() != 1 {
		t.Fatalf("timeout must not be retried, got %d submissions", node.count())
	}
	if len(j.records) != 1 || j.records[0].Hash != "0xhash" {
		t.Fatalf("journal should keep the ambiguous hash: %+v", j.records)
	}
}

func TestSubmitBuildErrorIsFatal(t *testing.T) {
	node := &fakeNode{}
	s, _ := newTestSubmitter(node)
	boom := errors.New("account lookup failed")
	build := func(context.Context, string) (*RawTransaction, error) { return nil, boom }

	_, err := s.Submit(context.Background(), build, fakeSigner{addr: "0xkeeper"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected build error, got %v", err)
	}
	if node.count() != 0 {
		t.Fatalf("expected no submission, got %d", node.count())
	}
}

func TestSleepHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
