package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStaleSequence marks a submission whose sequence number the ledger
	// has already consumed. It is the only retryable submission failure.
	ErrStaleSequence = errors.New("sequence number too old")
	// ErrConfirmationTimeout means the transaction was accepted but its
	// execution was not observed in time. The outcome is unknown.
	ErrConfirmationTimeout = errors.New("confirmation timed out")
	ErrNotFound            = errors.New("not found")
)

const staleSequenceSignature = "SEQUENCE_NUMBER_TOO_OLD"

// APIError is a non-2xx response from the node.
type APIError struct {
	Status      int    `json:"-"`
	Message     string `json:"message"`
	ErrorCode   string `json:"error_code"`
	VMErrorCode int    `json:"vm_error_code"`
	Body        string `json:"-"`
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("node error (%d %s): %s", e.Status, e.ErrorCode, msg)
	}
	return fmt.Sprintf("node error (%d): %s", e.Status, msg)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrStaleSequence:
		return strings.Contains(strings.ToUpper(e.Message+" "+e.Body), staleSequenceSignature)
	case ErrNotFound:
		return e.Status == 404
	}
	return false
}

// RejectedError is a transaction the ledger executed and aborted.
type RejectedError struct {
	Hash     string
	Function string
	VMStatus string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transaction %s (%s) rejected: %s", e.Hash, e.Function, e.VMStatus)
}

// IsMoveAbort reports whether err is a view or simulation abort raised by
// the module itself, as opposed to a transport or node failure.
func IsMoveAbort(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	s := strings.ToUpper(apiErr.Message + " " + apiErr.Body)
	return strings.Contains(s, "ABORTED") || strings.Contains(s, "MOVE_ABORT")
}
