package wallet

import (
	"fmt"

	"github.com/pkg/errors"
)

// Validation errors. These are detected before any call to the wallet or the
// chain and are never retried.
var (
	ErrNotConnected      = errors.New("wallet not connected")
	ErrNoActiveChain     = errors.New("no active chain")
	ErrChainMismatch     = errors.New("active chain does not match operation chain")
	ErrUnsupportedTxKind = errors.New("transaction kind not supported on active chain")
	ErrInvalidABI        = errors.New("invalid contract abi")
	ErrMethodNotFound    = errors.New("method not found in contract abi")
	ErrSchemaMismatch    = errors.New("message does not match typed data schema")
	ErrInvalidArguments  = errors.New("arguments do not match contract method")
)

// ErrTransientNetwork marks failures that are worth retrying.
var ErrTransientNetwork = errors.New("transient network error")

// RemoteRejection is returned when the wallet or the chain declines a request,
// for example a user rejecting a signature or a reverted transaction.
type RemoteRejection struct {
	Reason string
}

func (e *RemoteRejection) Error() string {
	return fmt.Sprintf("remote rejection: %s", e.Reason)
}

// NewRemoteRejection creates a RemoteRejection.
func NewRemoteRejection(reason string) error {
	return &RemoteRejection{Reason: reason}
}

// IsRemoteRejection reports whether err was caused by a RemoteRejection.
func IsRemoteRejection(err error) bool {
	var rejection *RemoteRejection
	return errors.As(err, &rejection)
}

// Transient wraps err so that IsTransient reports true.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{cause: err}
}

type transientError struct {
	cause error
}

func (e *transientError) Error() string { return e.cause.Error() }
func (e *transientError) Unwrap() error { return e.cause }
func (e *transientError) Is(target error) bool {
	return target == ErrTransientNetwork
}

// IsTransient reports whether err is a retryable network failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientNetwork)
}
