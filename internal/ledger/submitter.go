package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"roundkeeper/internal/metrics"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBackoff        = time.Second
	DefaultConfirmTimeout = 30 * time.Second

	SubmissionCommitted = "committed"
	SubmissionFailed    = "failed"
)

// BuildFunc produces a fresh unsigned transaction for sender against the
// ledger's current sequence number. It is called once per attempt.
type BuildFunc func(ctx context.Context, sender string) (*RawTransaction, error)

// Node is the part of the fullnode the Submitter needs.
type Node interface {
	SubmitTransaction(ctx context.Context, tx *SignedTransaction) (string, error)
	WaitForTransaction(ctx context.Context, hash string) (*Receipt, error)
}

// Attempt is one submission try inside a Submit call.
type Attempt struct {
	Number  int
	Tx      *RawTransaction
	PrevErr error
}

type SubmissionRecord struct {
	Function   string
	Arguments  []any
	Sender     string
	Attempts   int
	Hash       string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Journal persists the outcome of every Submit call.
type Journal interface {
	RecordSubmission(ctx context.Context, rec SubmissionRecord) error
}

// Submitter builds, signs, submits and confirms one transaction. A stale
// sequence number is the only retried failure; every retry rebuilds and
// re-signs so a consumed sequence number is never replayed.
type Submitter struct {
	Node           Node
	MaxAttempts    int
	Backoff        time.Duration
	ConfirmTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *metrics.Keeper
	Journal        Journal

	sleep func(ctx context.Context, d time.Duration) error
}

func NewSubmitter(node Node, logger *zap.Logger) *Submitter {
	return &Submitter{
		Node:           node,
		MaxAttempts:    DefaultMaxAttempts,
		Backoff:        DefaultBackoff,
		ConfirmTimeout: DefaultConfirmTimeout,
		Logger:         logger,
	}
}

// Submit makes at most MaxAttempts submissions. Errors other than
// ErrStaleSequence are returned unchanged on the first occurrence.
func (s *Submitter) Submit(ctx context.Context, build BuildFunc, signer Signer) (*Receipt, error) {
	if s == nil || s.Node == nil {
		return nil, fmt.Errorf("submitter not configured")
	}
	if build == nil {
		return nil, fmt.Errorf("build func is nil")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is nil")
	}
	maxAttempts := s.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	rec := SubmissionRecord{Sender: signer.Address(), StartedAt: time.Now().UTC()}

	var prevErr error
	for n := 1; ; n++ {
		rec.Attempts = n
		if err := ctx.Err(); err != nil {
			return nil, s.finish(ctx, rec, "", fmt.Errorf("before attempt %d: %w", n, context.Cause(ctx)))
		}
		tx, err := build(ctx, signer.Address())
		if err != nil {
			return nil, s.finish(ctx, rec, "", fmt.Errorf("build transaction: %w", err))
		}
		attempt := Attempt{Number: n, Tx: tx, PrevErr: prevErr}
		rec.Function = shortFunction(tx.Payload.Function)
		rec.Arguments = tx.Payload.Arguments

		receipt, err := s.try(ctx, attempt, signer)
		if err == nil {
			rec.Hash = receipt.Hash
			_ = s.finish(ctx, rec, receipt.Hash, nil)
			return receipt, nil
		}
		if !errors.Is(err, ErrStaleSequence) || n >= maxAttempts {
			return nil, s.finish(ctx, rec, hashOf(err), err)
		}

		s.logger().Warn("stale sequence number, rebuilding",
			zap.String("function", rec.Function),
			zap.Int("attempt", n),
			zap.Uint64("sequence_number", tx.SequenceNumber),
			zap.Error(err),
		)
		s.Metrics.ObserveStaleRetry(rec.Function)
		prevErr = err
		if err := s.wait(ctx, s.backoff()); err != nil {
			return nil, s.finish(ctx, rec, "", err)
		}
	}
}

func (s *Submitter) try(ctx context.Context, a Attempt, signer Signer) (*Receipt, error) {
	signed, err := signer.Sign(a.Tx)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	fn := shortFunction(a.Tx.Payload.Function)
	hash, err := s.Node.SubmitTransaction(ctx, signed)
	if err != nil {
		return nil, err
	}
	s.logger().Info("transaction submitted",
		zap.String("function", fn),
		zap.String("hash", hash),
		zap.Int("attempt", a.Number),
		zap.Uint64("sequence_number", a.Tx.SequenceNumber),
	)

	timeout := s.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	started := time.Now()
	receipt, err := s.Node.WaitForTransaction(waitCtx, hash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &pendingError{hash: hash, err: fmt.Errorf("transaction %s: %w", hash, ErrConfirmationTimeout)}
		}
		return nil, &pendingError{hash: hash, err: fmt.Errorf("wait for %s: %w", hash, err)}
	}
	s.Metrics.ObserveConfirm(fn, time.Since(started))
	if receipt.Hash == "" {
		receipt.Hash = hash
	}
	if !receipt.Success {
		return nil, &RejectedError{Hash: hash, Function: fn, VMStatus: receipt.VMStatus}
	}
	return receipt, nil
}

func (s *Submitter) finish(ctx context.Context, rec SubmissionRecord, hash string, err error) error {
	rec.FinishedAt = time.Now().UTC()
	rec.Hash = hash
	outcome := SubmissionCommitted
	if err != nil {
		outcome = SubmissionFailed
		rec.Error = err.Error()
		s.logger().Error("transaction failed",
			zap.String("function", rec.Function),
			zap.Int("attempts", rec.Attempts),
			zap.String("hash", hash),
			zap.Error(err),
		)
	}
	rec.Status = outcome
	s.Metrics.ObserveSubmission(rec.Function, outcome)
	if s.Journal != nil {
		if jerr := s.Journal.RecordSubmission(context.WithoutCancel(ctx), rec); jerr != nil {
			s.logger().Warn("record submission failed", zap.Error(jerr))
		}
	}
	return err
}

func (s *Submitter) backoff() time.Duration {
	if s.Backoff < 0 {
		return 0
	}
	return s.Backoff
}

func (s *Submitter) wait(ctx context.Context, d time.Duration) error {
	if s.sleep != nil {
		return s.sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

func (s *Submitter) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Sleep waits for d or until ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// pendingError carries the hash of an accepted transaction whose outcome
// was not observed.
type pendingError struct {
	hash string
	err  error
}

func (e *pendingError) Error() string { return e.err.Error() }
func (e *pendingError) Unwrap() error { return e.err }

func hashOf(err error) string {
	var pe *pendingError
	if errors.As(err, &pe) {
		return pe.hash
	}
	var re *RejectedError
	if errors.As(err, &re) {
		return re.Hash
	}
	return ""
}

func shortFunction(fn string) string {
	if i := strings.LastIndex(fn, "::"); i >= 0 {
		return fn[i+2:]
	}
	return fn
}
