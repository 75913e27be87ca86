package tx

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github/chapool/cross-dapp/internal/config"
	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/session"
)

// Status is the tracking state of a submitted transaction.
type Status int

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusFailed
	StatusTimedOut
)

var statusNames = map[Status]string{
	StatusPending:   "pending",
	StatusConfirmed: "confirmed",
	StatusFailed:    "failed",
	StatusTimedOut:  "timed_out",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusTimedOut
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return errors.Errorf("unknown transaction status %q", text)
}

// Outcome is the tracked result of one transaction.
type Outcome struct {
	Hash   common.Hash    `json:"hash"`
	Chain  wallet.ChainID `json:"chain"`
	Status Status         `json:"status"`
	// Reason explains a Failed outcome.
	Reason string `json:"reason,omitempty"`
	// QueryFailure marks a Failed outcome caused by status queries that kept
	// failing, as opposed to the chain reverting the transaction.
	QueryFailure bool      `json:"query_failure,omitempty"`
	BlockNumber  uint64    `json:"block_number,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PollOptions bounds a poll. Zero fields fall back to the orchestrator defaults.
type PollOptions struct {
	Interval        time.Duration
	MaxWait         time.Duration
	MaxQueryRetries uint64
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
	// Chain is used for hashes this orchestrator did not submit.
	Chain *wallet.ChainID
}

// PollOptionsFromConfig converts the poll configuration.
func PollOptionsFromConfig(c config.Poll) PollOptions {
	return PollOptions{
		Interval:        c.Interval,
		MaxWait:         c.MaxWait,
		MaxQueryRetries: c.MaxQueryRetries,
		BackoffInitial:  c.BackoffInitial,
		BackoffMax:      c.BackoffMax,
	}
}

func (o PollOptions) withDefaults(d PollOptions) PollOptions {
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.MaxWait <= 0 {
		o.MaxWait = d.MaxWait
	}
	if o.MaxQueryRetries == 0 {
		o.MaxQueryRetries = d.MaxQueryRetries
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = d.BackoffInitial
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = d.BackoffMax
	}
	if o.Chain == nil {
		o.Chain = d.Chain
	}
	return o
}

// Broadcaster is the part of the signer the orchestrator drives.
type Broadcaster interface {
	SendTransaction(ctx context.Context, chain wallet.ChainID, from common.Address, req *wallet.TransactionRequest) (common.Hash, error)
	ReadContract(ctx context.Context, chain wallet.ChainID, to common.Address, data []byte) ([]byte, error)
	GetTransaction(ctx context.Context, chain wallet.ChainID, hash common.Hash) (*wallet.Receipt, error)
}

// SessionReader exposes the current session snapshot.
type SessionReader interface {
	Snapshot() session.Snapshot
}

// Store keeps one outcome record per transaction hash.
type Store interface {
	Put(ctx context.Context, outcome Outcome) error
	// Get returns false when no record exists for hash.
	Get(ctx context.Context, hash common.Hash) (Outcome, bool, error)
}

// Clock abstracts time for polling.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
