package tx

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github/chapool/cross-dapp/internal/metrics"
	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/chain"
)

// Orchestrator submits transactions through the signer and tracks them to
// a terminal outcome.
type Orchestrator struct {
	state    SessionReader
	chains   chain.Service
	signer   Broadcaster
	store    Store
	metrics  *metrics.Metrics
	defaults PollOptions
	clock    Clock
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore replaces the in-memory outcome store.
func WithStore(store Store) Option {
	return func(o *Orchestrator) {
		o.store = store
	}
}

// WithMetrics records submissions and polls on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithClock replaces the wall clock used while polling.
func WithClock(c Clock) Option {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

func New(state SessionReader, chains chain.Service, signer Broadcaster, defaults PollOptions, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		state:    state,
		chains:   chains,
		signer:   signer,
		store:    NewMemoryStore(),
		defaults: defaults,
		clock:    realClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit validates req against the session and hands it to the signer. On
// success a Pending outcome is recorded for the returned hash.
func (o *Orchestrator) Submit(ctx context.Context, req *wallet.TransactionRequest) (common.Hash, error) {
	snapshot := o.state.Snapshot()

	account, ok := snapshot.Account()
	if !ok {
		return common.Hash{}, wallet.ErrNotConnected
	}

	active, hasChain := snapshot.Chain()

	switch req.Kind {
	case wallet.TxKindLegacy:
	case wallet.TxKindFeePayerSponsored:
		if !hasChain || !o.sponsored(active) {
			return common.Hash{}, errors.Wrapf(wallet.ErrUnsupportedTxKind, "%s on chain %q", req.Kind, active)
		}
	default:
		return common.Hash{}, errors.Wrapf(wallet.ErrUnsupportedTxKind, "kind %d", req.Kind)
	}

	if !hasChain {
		return common.Hash{}, wallet.ErrNoActiveChain
	}

	hash, err := o.signer.SendTransaction(ctx, active, account, req)
	o.metrics.ObserveSubmission(req.Kind.String(), err)
	if err != nil {
		log.Warn().Err(err).Str("chain", active.String()).Str("kind", req.Kind.String()).Msg("Transaction submission failed")
		return common.Hash{}, errors.Wrap(err, "failed to submit transaction")
	}

	o.record(ctx, Outcome{Hash: hash, Chain: active, Status: StatusPending})

	log.Info().
		Str("tx_hash", hash.Hex()).
		Str("chain", active.String()).
		Str("kind", req.Kind.String()).
		Msg("Transaction submitted")

	return hash, nil
}

// Poll queries hash until it is final, opts.MaxWait elapses or ctx is done.
// On cancellation the outcome stays Pending and ctx.Err() is returned; every
// other result is reported through the returned Outcome.
func (o *Orchestrator) Poll(ctx context.Context, hash common.Hash, opts PollOptions) (Outcome, error) {
	opts = opts.withDefaults(o.defaults)

	outcome := Outcome{Hash: hash, Status: StatusPending}

	record, found, err := o.store.Get(ctx, hash)
	if err != nil {
		log.Warn().Err(err).Str("tx_hash", hash.Hex()).Msg("Failed to load transaction outcome, polling anyway")
	}
	switch {
	case found && record.Status.Terminal():
		return record, nil
	case found:
		outcome.Chain = record.Chain
	case opts.Chain != nil:
		outcome.Chain = *opts.Chain
	default:
		active, ok := o.state.Snapshot().Chain()
		if !ok {
			return outcome, wallet.ErrNoActiveChain
		}
		outcome.Chain = active
	}

	l := log.With().Str("tx_hash", hash.Hex()).Str("chain", outcome.Chain.String()).Logger()
	deadline := o.clock.Now().Add(opts.MaxWait)

	// bounds slow or hanging status queries, the clock only schedules the waits
	pollCtx, cancel := context.WithTimeout(ctx, opts.MaxWait)
	defer cancel()

	for attempt := 1; ; attempt++ {
		receipt, err := o.query(pollCtx, outcome.Chain, hash, opts)
		if ctx.Err() != nil {
			l.Debug().Int("attempt", attempt).Msg("Poll cancelled, leaving transaction pending")
			return outcome, ctx.Err()
		}
		if err != nil && pollCtx.Err() != nil {
			outcome.Status = StatusTimedOut
			break
		}

		if err != nil {
			outcome.Status = StatusFailed
			outcome.QueryFailure = true
			outcome.Reason = "status query failed: " + err.Error()
			break
		}

		if receipt.Status == wallet.ReceiptSucceeded {
			outcome.Status = StatusConfirmed
			outcome.BlockNumber = receipt.BlockNumber
			break
		}
		if receipt.Status == wallet.ReceiptReverted {
			outcome.Status = StatusFailed
			outcome.Reason = "transaction reverted"
			outcome.BlockNumber = receipt.BlockNumber
			break
		}

		remaining := deadline.Sub(o.clock.Now())
		if remaining <= 0 {
			outcome.Status = StatusTimedOut
			break
		}

		wait := opts.Interval
		if wait > remaining {
			wait = remaining
		}

		l.Debug().Int("attempt", attempt).Dur("wait", wait).Msg("Transaction pending")

		select {
		case <-ctx.Done():
			l.Debug().Int("attempt", attempt).Msg("Poll cancelled, leaving transaction pending")
			return outcome, ctx.Err()
		case <-pollCtx.Done():
		case <-o.clock.After(wait):
		}

		if pollCtx.Err() != nil || !o.clock.Now().Before(deadline) {
			if ctx.Err() != nil {
				return outcome, ctx.Err()
			}
			outcome.Status = StatusTimedOut
			break
		}
	}

	o.metrics.ObservePollOutcome(outcome.Status.String())
	o.record(ctx, outcome)

	l.Info().
		Str("status", outcome.Status.String()).
		Str("reason", outcome.Reason).
		Msg("Transaction poll finished")

	return outcome, nil
}

// Outcome returns the recorded outcome of hash.
func (o *Orchestrator) Outcome(ctx context.Context, hash common.Hash) (Outcome, bool, error) {
	return o.store.Get(ctx, hash)
}

// query fetches the receipt, retrying transient failures with exponential backoff.
// It returns as soon as ctx is done, even when the signer ignores ctx.
func (o *Orchestrator) query(ctx context.Context, chainID wallet.ChainID, hash common.Hash, opts PollOptions) (*wallet.Receipt, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.BackoffInitial
	b.MaxInterval = opts.BackoffMax
	b.MaxElapsedTime = 0
	b.Reset()

	var receipt *wallet.Receipt
	type result struct {
		receipt *wallet.Receipt
		err     error
	}

	operation := func() error {
		done := make(chan result, 1)
		go func() {
			r, err := o.signer.GetTransaction(ctx, chainID, hash)
			done <- result{r, err}
		}()

		var r *wallet.Receipt
		var err error
		select {
		case <-ctx.Done():
			return backoff.Permanent(ctx.Err())
		case res := <-done:
			r, err = res.receipt, res.err
		}
		if err != nil {
			if !wallet.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		receipt = r
		return nil
	}

	notify := func(err error, next time.Duration) {
		o.metrics.ObservePollRetry()
		log.Warn().Err(err).Str("tx_hash", hash.Hex()).Dur("retry_in", next).Msg("Transaction status query failed, retrying")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, opts.MaxQueryRetries), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	return receipt, nil
}

func (o *Orchestrator) sponsored(id wallet.ChainID) bool {
	if o.chains == nil {
		return false
	}
	c, ok := o.chains.GetChain(id)
	return ok && c.FeePayer
}

// record writes outcome. A terminal record is never replaced.
func (o *Orchestrator) record(ctx context.Context, outcome Outcome) {
	outcome.UpdatedAt = o.clock.Now().UTC()

	if existing, found, err := o.store.Get(ctx, outcome.Hash); err == nil && found && existing.Status.Terminal() {
		return
	}

	if err := o.store.Put(ctx, outcome); err != nil {
		log.Warn().Err(err).Str("tx_hash", outcome.Hash.Hex()).Msg("Failed to store transaction outcome")
	}
}
