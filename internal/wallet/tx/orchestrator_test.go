package tx_test

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/chapool/cross-dapp/internal/metrics"
	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/chain"
	"github/chapool/cross-dapp/internal/wallet/session"
	"github/chapool/cross-dapp/internal/wallet/tx"
)

const erc20ABI = `[
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var (
	account   = common.HexToAddress("0xABC0000000000000000000000000000000000001")
	recipient = common.HexToAddress("0x920A31f0E48739C3FbB790D992b0690f7F5C42ea")
	token     = common.HexToAddress("0x88f8146EB4120dA51Fc978a22933CbeB71D8Bde6")
)

type fixedSession struct {
	mu       sync.Mutex
	snapshot session.Snapshot
}

func (f *fixedSession) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func connectedOn(id wallet.ChainID) *fixedSession {
	return &fixedSession{snapshot: session.NewSnapshot(session.StatusConnected, &account, &id)}
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	sent     []*wallet.TransactionRequest
	reads    int
	queries  int
	readOut  []byte
	sendHash common.Hash
	sendErr  error
	// receipts is consumed one entry per query; the last entry repeats.
	receipts []func() (*wallet.Receipt, error)
	onQuery  func(n int)
}

func (f *fakeBroadcaster) SendTransaction(_ context.Context, _ wallet.ChainID, _ common.Address, req *wallet.TransactionRequest) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return f.sendHash, f.sendErr
}

func (f *fakeBroadcaster) ReadContract(_ context.Context, _ wallet.ChainID, _ common.Address, _ []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.readOut, nil
}

func (f *fakeBroadcaster) GetTransaction(_ context.Context, _ wallet.ChainID, hash common.Hash) (*wallet.Receipt, error) {
	f.mu.Lock()
	f.queries++
	n := f.queries
	next := f.receipts[min(n, len(f.receipts))-1]
	hook := f.onQuery
	f.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	r, err := next()
	if r != nil {
		r.Hash = hash
	}
	return r, err
}

func (f *fakeBroadcaster) calls() (sent, reads, queries int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent), f.reads, f.queries
}

func pending() (*wallet.Receipt, error) {
	return &wallet.Receipt{Status: wallet.ReceiptPending}, nil
}

func succeeded() (*wallet.Receipt, error) {
	return &wallet.Receipt{Status: wallet.ReceiptSucceeded, BlockNumber: 42}, nil
}

func reverted() (*wallet.Receipt, error) {
	return &wallet.Receipt{Status: wallet.ReceiptReverted, BlockNumber: 42}, nil
}

func networkDown() (*wallet.Receipt, error) {
	return nil, wallet.Transient(errors.New("connection refused"))
}

// fakeClock advances instantly whenever the poller waits.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) elapsed(start time.Time) time.Duration {
	return c.Now().Sub(start)
}

var scenarioPoll = tx.PollOptions{
	Interval:        2 * time.Second,
	MaxWait:         30 * time.Second,
	MaxQueryRetries: 3,
	BackoffInitial:  time.Millisecond,
	BackoffMax:      2 * time.Millisecond,
}

func newOrchestrator(t *testing.T, state tx.SessionReader, b *fakeBroadcaster, opts ...tx.Option) (*tx.Orchestrator, *fakeClock) {
	t.Helper()

	chains, err := chain.NewService(chain.DefaultCatalog())
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	opts = append([]tx.Option{tx.WithClock(clock)}, opts...)
	return tx.New(state, chains, b, scenarioPoll, opts...), clock
}

func TestSubmitRequiresConnection(t *testing.T) {
	b := &fakeBroadcaster{}
	o, _ := newOrchestrator(t, &fixedSession{snapshot: session.NewSnapshot(session.StatusDisconnected, nil, nil)}, b)

	_, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: recipient, Value: big.NewInt(1)})
	assert.True(t, errors.Is(err, wallet.ErrNotConnected))

	sent, _, _ := b.calls()
	assert.Zero(t, sent)
}

func TestSubmitFeePayerNeedsSponsoringChain(t *testing.T) {
	b := &fakeBroadcaster{sendHash: common.HexToHash("0x01")}
	o, _ := newOrchestrator(t, connectedOn(chain.Ethereum), b)

	_, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: token, Kind: wallet.TxKindFeePayerSponsored})
	assert.True(t, errors.Is(err, wallet.ErrUnsupportedTxKind))

	unresolved := &fixedSession{snapshot: session.NewSnapshot(session.StatusConnected, &account, nil)}
	o, _ = newOrchestrator(t, unresolved, b)
	_, err = o.Submit(t.Context(), &wallet.TransactionRequest{To: token, Kind: wallet.TxKindFeePayerSponsored})
	assert.True(t, errors.Is(err, wallet.ErrUnsupportedTxKind))

	_, err = o.Submit(t.Context(), &wallet.TransactionRequest{To: token, Kind: wallet.TxKind(9)})
	assert.True(t, errors.Is(err, wallet.ErrUnsupportedTxKind))

	sent, _, _ := b.calls()
	assert.Zero(t, sent)

	o, _ = newOrchestrator(t, connectedOn(chain.CrossTestnet), b)
	hash, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: token, Kind: wallet.TxKindFeePayerSponsored})
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x01"), hash)
}

func TestSubmitRecordsPending(t *testing.T) {
	b := &fakeBroadcaster{sendHash: common.HexToHash("0xbeef")}
	m := metrics.New()
	o, _ := newOrchestrator(t, connectedOn(chain.CrossTestnet), b, tx.WithMetrics(m))

	hash, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: recipient, Value: big.NewInt(1)})
	require.NoError(t, err)

	outcome, found, err := o.Outcome(t.Context(), hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, tx.StatusPending, outcome.Status)
	assert.Equal(t, chain.CrossTestnet, outcome.Chain)
}

func TestSubmitPropagatesRejection(t *testing.T) {
	b := &fakeBroadcaster{sendErr: wallet.NewRemoteRejection("user rejected")}
	o, _ := newOrchestrator(t, connectedOn(chain.CrossTestnet), b)

	_, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: recipient})
	assert.True(t, wallet.IsRemoteRejection(err))
}

func TestPollConfirmedOnThirdAttempt(t *testing.T) {
	b := &fakeBroadcaster{
		sendHash: common.HexToHash("0x0c"),
		receipts: []func() (*wallet.Receipt, error){pending, pending, succeeded},
	}
	o, clock := newOrchestrator(t, connectedOn(chain.CrossTestnet), b)
	start := clock.Now()

	hash, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: recipient, Value: big.NewInt(1)})
	require.NoError(t, err)

	outcome, err := o.Poll(t.Context(), hash, scenarioPoll)
	require.NoError(t, err)
	assert.Equal(t, tx.StatusConfirmed, outcome.Status)
	assert.Equal(t, uint64(42), outcome.BlockNumber)
	assert.Equal(t, 4*time.Second, clock.elapsed(start))

	_, _, queries := b.calls()
	assert.Equal(t, 3, queries)

	stored, found, err := o.Outcome(t.Context(), hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, tx.StatusConfirmed, stored.Status)

	// a terminal outcome is returned without querying again
	again, err := o.Poll(t.Context(), hash, scenarioPoll)
	require.NoError(t, err)
	assert.Equal(t, tx.StatusConfirmed, again.Status)
	_, _, queries = b.calls()
	assert.Equal(t, 3, queries)
}

func TestPollTimesOut(t *testing.T) {
	b := &fakeBroadcaster{
		sendHash: common.HexToHash("0x0d"),
		receipts: []func() (*wallet.Receipt, error){pending},
	}
	o, clock := newOrchestrator(t, connectedOn(chain.CrossTestnet), b)
	start := clock.Now()

	hash, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: recipient})
	require.NoError(t, err)

	outcome, err := o.Poll(t.Context(), hash, scenarioPoll)
	require.NoError(t, err)
	assert.Equal(t, tx.StatusTimedOut, outcome.Status)
	assert.Equal(t, 30*time.Second, clock.elapsed(start))

	// t=0,2,..,28; the window closes during the last wait
	_, _, queries := b.calls()
	assert.Equal(t, 15, queries)
}

func TestPollReverted(t *testing.T) {
	b := &fakeBroadcaster{
		sendHash: common.HexToHash("0x0e"),
		receipts: []func() (*wallet.Receipt, error){reverted},
	}
	o, _ := newOrchestrator(t, connectedOn(chain.CrossTestnet), b)

	hash, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: recipient})
	require.NoError(t, err)

	outcome, err := o.Poll(t.Context(), hash, tx.PollOptions{})
	require.NoError(t, err)
	assert.Equal(t, tx.StatusFailed, outcome.Status)
	assert.False(t, outcome.QueryFailure)
	assert.Equal(t, "transaction reverted", outcome.Reason)
}

func TestPollRetriesTransientQueryFailures(t *testing.T) {
	b := &fakeBroadcaster{
		sendHash: common.HexToHash("0x0f"),
		receipts: []func() (*wallet.Receipt, error){networkDown, networkDown, succeeded},
	}
	m := metrics.New()
	o, _ := newOrchestrator(t, connectedOn(chain.CrossTestnet), b, tx.WithMetrics(m))

	hash, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: recipient})
	require.NoError(t, err)

	outcome, err := o.Poll(t.Context(), hash, scenarioPoll)
	require.NoError(t, err)
	assert.Equal(t, tx.StatusConfirmed, outcome.Status)
}

func TestPollExhaustedRetriesFail(t *testing.T) {
	b := &fakeBroadcaster{
		sendHash: common.HexToHash("0x10"),
		receipts: []func() (*wallet.Receipt, error){networkDown},
	}
	o, _ := newOrchestrator(t, connectedOn(chain.CrossTestnet), b)

	hash, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: recipient})
	require.NoError(t, err)

	outcome, err := o.Poll(t.Context(), hash, scenarioPoll)
	require.NoError(t, err)
	assert.Equal(t, tx.StatusFailed, outcome.Status)
	assert.True(t, outcome.QueryFailure)
	assert.Contains(t, outcome.Reason, "connection refused")

	// one attempt plus MaxQueryRetries retries
	_, _, queries := b.calls()
	assert.Equal(t, 4, queries)
}

func wallClockOrchestrator(t *testing.T, b *fakeBroadcaster) *tx.Orchestrator {
	t.Helper()

	chains, err := chain.NewService(chain.DefaultCatalog())
	require.NoError(t, err)

	return tx.New(connectedOn(chain.CrossTestnet), chains, b, scenarioPoll)
}

func TestPollMaxWaitBoundsSlowQuery(t *testing.T) {
	slow := func() (*wallet.Receipt, error) {
		time.Sleep(time.Second)
		return networkDown()
	}
	b := &fakeBroadcaster{
		sendHash: common.HexToHash("0x13"),
		receipts: []func() (*wallet.Receipt, error){slow},
	}
	o := wallClockOrchestrator(t, b)

	hash, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: recipient})
	require.NoError(t, err)

	start := time.Now()
	outcome, err := o.Poll(t.Context(), hash, tx.PollOptions{
		Interval:        50 * time.Millisecond,
		MaxWait:         300 * time.Millisecond,
		MaxQueryRetries: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, tx.StatusTimedOut, outcome.Status)
	assert.False(t, outcome.QueryFailure)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	stored, found, err := o.Outcome(t.Context(), hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, tx.StatusTimedOut, stored.Status)
}

func TestPollRetryBackoffStopsAtMaxWait(t *testing.T) {
	b := &fakeBroadcaster{
		sendHash: common.HexToHash("0x14"),
		receipts: []func() (*wallet.Receipt, error){networkDown},
	}
	o := wallClockOrchestrator(t, b)

	hash, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: recipient})
	require.NoError(t, err)

	// the retry schedule alone would run for seconds
	start := time.Now()
	outcome, err := o.Poll(t.Context(), hash, tx.PollOptions{
		Interval:        50 * time.Millisecond,
		MaxWait:         300 * time.Millisecond,
		MaxQueryRetries: 10,
		BackoffInitial:  200 * time.Millisecond,
		BackoffMax:      time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, tx.StatusTimedOut, outcome.Status)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	_, _, queries := b.calls()
	assert.GreaterOrEqual(t, queries, 1)
	assert.Less(t, queries, 11)
}

func TestPollRetriesExhaustedInsideWindowFail(t *testing.T) {
	b := &fakeBroadcaster{
		sendHash: common.HexToHash("0x15"),
		receipts: []func() (*wallet.Receipt, error){networkDown},
	}
	o := wallClockOrchestrator(t, b)

	hash, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: recipient})
	require.NoError(t, err)

	outcome, err := o.Poll(t.Context(), hash, tx.PollOptions{
		Interval:        50 * time.Millisecond,
		MaxWait:         5 * time.Second,
		MaxQueryRetries: 2,
		BackoffInitial:  time.Millisecond,
		BackoffMax:      2 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, tx.StatusFailed, outcome.Status)
	assert.True(t, outcome.QueryFailure)

	_, _, queries := b.calls()
	assert.Equal(t, 3, queries)
}

func TestPollCancelledStaysPending(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())

	b := &fakeBroadcaster{
		sendHash: common.HexToHash("0x11"),
		receipts: []func() (*wallet.Receipt, error){pending},
	}
	b.onQuery = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	o, _ := newOrchestrator(t, connectedOn(chain.CrossTestnet), b)

	hash, err := o.Submit(t.Context(), &wallet.TransactionRequest{To: recipient})
	require.NoError(t, err)

	outcome, err := o.Poll(ctx, hash, scenarioPoll)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, tx.StatusPending, outcome.Status)

	stored, found, err := o.Outcome(t.Context(), hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, tx.StatusPending, stored.Status)
}

func TestPollUnaffectedByDisconnect(t *testing.T) {
	chains, err := chain.NewService(chain.DefaultCatalog())
	require.NoError(t, err)

	router := session.NewRouter(session.NewState(), chains, nil)
	src := session.NewChannelSource(8)
	changed := make(chan session.Snapshot, 8)
	router.Register(func(s session.Snapshot, _ session.Event) { changed <- s })

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() { _ = router.Run(ctx, src) }()
	src.MarkReady()

	require.NoError(t, src.Emit(ctx, session.Notification{
		Type:    session.NotificationAccountConnected,
		Account: account,
		ChainID: chain.CrossTestnet.String(),
	}))
	require.True(t, (<-changed).Connected())

	b := &fakeBroadcaster{
		sendHash: common.HexToHash("0x12"),
		receipts: []func() (*wallet.Receipt, error){pending, pending, succeeded},
	}
	b.onQuery = func(n int) {
		if n == 2 {
			_ = src.Emit(ctx, session.Notification{Type: session.NotificationAccountDisconnected})
			<-changed
		}
	}
	o, _ := newOrchestrator(t, router.State(), b)

	hash, err := o.Submit(ctx, &wallet.TransactionRequest{To: recipient, Value: big.NewInt(1)})
	require.NoError(t, err)

	outcome, err := o.Poll(ctx, hash, scenarioPoll)
	require.NoError(t, err)
	assert.Equal(t, tx.StatusConfirmed, outcome.Status)
	assert.Equal(t, session.StatusDisconnected, router.State().CurrentStatus())
}

func TestPollForeignHashUsesActiveChain(t *testing.T) {
	b := &fakeBroadcaster{receipts: []func() (*wallet.Receipt, error){succeeded}}
	o, _ := newOrchestrator(t, connectedOn(chain.CrossTestnet), b)

	outcome, err := o.Poll(t.Context(), common.HexToHash("0x99"), scenarioPoll)
	require.NoError(t, err)
	assert.Equal(t, chain.CrossTestnet, outcome.Chain)

	none := &fixedSession{snapshot: session.NewSnapshot(session.StatusDisconnected, nil, nil)}
	o, _ = newOrchestrator(t, none, b)
	_, err = o.Poll(t.Context(), common.HexToHash("0x98"), scenarioPoll)
	assert.True(t, errors.Is(err, wallet.ErrNoActiveChain))
}

func TestWriteContractMethodNotFound(t *testing.T) {
	b := &fakeBroadcaster{}
	o, _ := newOrchestrator(t, connectedOn(chain.CrossTestnet), b)

	_, err := o.WriteContract(t.Context(), token, erc20ABI, "mint", []any{recipient.Hex(), "1"}, tx.WriteOptions{})
	assert.True(t, errors.Is(err, wallet.ErrMethodNotFound))

	_, err = o.WriteContract(t.Context(), token, `{"not":"an abi"`, "transfer", nil, tx.WriteOptions{})
	assert.True(t, errors.Is(err, wallet.ErrInvalidABI))

	_, err = o.WriteContract(t.Context(), token, erc20ABI, "transfer", []any{"0x1234", 1}, tx.WriteOptions{})
	assert.True(t, errors.Is(err, wallet.ErrInvalidArguments))

	sent, reads, queries := b.calls()
	assert.Zero(t, sent+reads+queries)
}

func TestWriteContractPacksTransfer(t *testing.T) {
	b := &fakeBroadcaster{sendHash: common.HexToHash("0x13")}
	o, _ := newOrchestrator(t, connectedOn(chain.CrossTestnet), b)

	amount, _ := new(big.Int).SetString("1000000000000000000", 10)
	hash, err := o.WriteContract(t.Context(), token, erc20ABI, "transfer", []any{recipient.Hex(), amount}, tx.WriteOptions{
		Kind:       wallet.TxKindFeePayerSponsored,
		CustomData: &wallet.CustomData{Metadata: "Meta data"},
	})
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x13"), hash)

	b.mu.Lock()
	req := b.sent[0]
	b.mu.Unlock()

	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)
	expected, err := parsed.Pack("transfer", recipient, amount)
	require.NoError(t, err)

	assert.Equal(t, token, req.To)
	assert.Equal(t, expected, req.Data)
	assert.Equal(t, wallet.TxKindFeePayerSponsored, req.Kind)
	assert.Equal(t, "Meta data", req.Metadata)
}

func TestReadContract(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	require.NoError(t, err)
	out, err := parsed.Methods["name"].Outputs.Pack("Sample Token")
	require.NoError(t, err)

	b := &fakeBroadcaster{readOut: out}
	o, _ := newOrchestrator(t, connectedOn(chain.CrossTestnet), b)

	testnet := chain.CrossTestnet
	name, err := tx.ReadContract[string](t.Context(), o, tx.ReadCall{
		Chain:   &testnet,
		Address: token,
		ABI:     erc20ABI,
		Method:  "name",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sample Token", name)

	_, err = tx.ReadContract[*big.Int](t.Context(), o, tx.ReadCall{Address: token, ABI: erc20ABI, Method: "name"})
	assert.Error(t, err)
}

func TestReadContractChainMismatch(t *testing.T) {
	b := &fakeBroadcaster{}
	o, _ := newOrchestrator(t, connectedOn(chain.Ethereum), b)

	testnet := chain.CrossTestnet
	_, err := tx.ReadContract[string](t.Context(), o, tx.ReadCall{
		Chain:   &testnet,
		Address: token,
		ABI:     erc20ABI,
		Method:  "name",
	})
	assert.True(t, errors.Is(err, wallet.ErrChainMismatch))

	_, reads, _ := b.calls()
	assert.Zero(t, reads)
}
