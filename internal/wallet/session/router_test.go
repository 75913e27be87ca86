package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/cross-dapp/internal/metrics"
	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/chain"
	"github/chapool/cross-dapp/internal/wallet/session"
)

type recorded struct {
	snapshot session.Snapshot
	event    session.Event
}

func newTestRouter(t *testing.T) (*session.Router, *session.ChannelSource, chan recorded, *metrics.Metrics) {
	t.Helper()

	chains, err := chain.NewService(chain.DefaultCatalog())
	require.NoError(t, err)

	m := metrics.New()
	router := session.NewRouter(session.NewState(), chains, m)
	src := session.NewChannelSource(16)
	seen := make(chan recorded, 16)
	router.Register(func(s session.Snapshot, e session.Event) {
		seen <- recorded{snapshot: s, event: e}
	})

	return router, src, seen, m
}

func next(t *testing.T, seen chan recorded) recorded {
	t.Helper()

	select {
	case r := <-seen:
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for observer notification")
		return recorded{}
	}
}

func TestRouterAppliesInDeliveryOrder(t *testing.T) {
	router, src, seen, m := newTestRouter(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- router.Run(ctx, src) }()
	src.MarkReady()

	notifications := []session.Notification{
		{Type: session.NotificationConnecting},
		{Type: session.NotificationAccountConnected, Account: alice, ChainID: "eip155:612044"},
		{Type: session.NotificationAccountChanged, Account: bob},
		{Type: session.NotificationAccountDisconnected},
	}
	for _, n := range notifications {
		require.NoError(t, src.Emit(ctx, n))
	}

	expected := session.NewSnapshot(session.StatusDisconnected, nil, nil)
	for _, n := range notifications {
		r := next(t, seen)
		assert.Equal(t, n.Type, r.event.Type)
		expected = session.Fold(expected, r.event)
		assert.True(t, expected.Equal(r.snapshot))
	}

	state := router.State()
	assert.Equal(t, session.StatusDisconnected, state.CurrentStatus())
	_, ok := state.CurrentAccount()
	assert.False(t, ok)
	c, ok := state.CurrentChain()
	require.True(t, ok)
	assert.Equal(t, chain.CrossTestnet, c)

	src.Close()
	require.NoError(t, <-done)
	assert.InDelta(t, 0, testutil.ToFloat64(m.SessionConnected), 0)
}

func TestRouterUnsupportedChainStillNotifies(t *testing.T) {
	router, src, seen, _ := newTestRouter(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go func() { _ = router.Run(ctx, src) }()
	src.MarkReady()

	require.NoError(t, src.Emit(ctx, session.Notification{Type: session.NotificationAccountConnected, Account: alice, ChainID: "eip155:1"}))
	next(t, seen)

	require.NoError(t, src.Emit(ctx, session.Notification{Type: session.NotificationChainChanged, ChainID: "eip155:424242"}))
	r := next(t, seen)
	assert.Nil(t, r.event.Chain)
	assert.True(t, r.event.ChainReported)
	_, ok := r.snapshot.Chain()
	assert.False(t, ok)
	assert.True(t, r.snapshot.Connected())

	// same unsupported chain again: state unchanged but dependents are told again
	require.NoError(t, src.Emit(ctx, session.Notification{Type: session.NotificationChainChanged, ChainID: "eip155:424242"}))
	r = next(t, seen)
	assert.Nil(t, r.event.Chain)
}

func TestRouterSkipsDuplicateEvents(t *testing.T) {
	router, src, seen, _ := newTestRouter(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go func() { _ = router.Run(ctx, src) }()
	src.MarkReady()

	connected := session.Notification{Type: session.NotificationAccountConnected, Account: alice, ChainID: "eip155:1"}
	require.NoError(t, src.Emit(ctx, connected))
	require.NoError(t, src.Emit(ctx, connected))
	require.NoError(t, src.Emit(ctx, session.Notification{Type: session.NotificationAccountDisconnected}))

	assert.Equal(t, session.NotificationAccountConnected, next(t, seen).event.Type)
	assert.Equal(t, session.NotificationAccountDisconnected, next(t, seen).event.Type)
}

func TestRouterWaitsForReadySource(t *testing.T) {
	router, src, seen, _ := newTestRouter(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	go func() { _ = router.Run(ctx, src) }()

	// buffered before the wallet object exists; must not be lost
	require.NoError(t, src.Emit(ctx, session.Notification{Type: session.NotificationAccountConnected, Account: alice}))

	select {
	case <-seen:
		t.Fatal("router consumed notifications before the source was ready")
	case <-time.After(50 * time.Millisecond):
	}

	src.MarkReady()
	r := next(t, seen)
	assert.True(t, r.snapshot.Connected())
}

func TestRouterRunOnce(t *testing.T) {
	router, src, seen, _ := newTestRouter(t)
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() { done <- router.Run(ctx, src) }()
	src.MarkReady()

	require.NoError(t, src.Emit(ctx, session.Notification{Type: session.NotificationConnecting}))
	next(t, seen)

	assert.ErrorIs(t, router.Run(ctx, src), session.ErrRouterStarted)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRouterUnregister(t *testing.T) {
	chains, err := chain.NewService(chain.DefaultCatalog())
	require.NoError(t, err)

	router := session.NewRouter(session.NewState(), chains, nil)
	src := session.NewChannelSource(4)
	calls := make(chan wallet.ChainID, 4)
	unregister := router.Register(func(s session.Snapshot, _ session.Event) {
		c, _ := s.Chain()
		calls <- c
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	go func() { _ = router.Run(ctx, src) }()
	src.MarkReady()

	require.NoError(t, src.Emit(ctx, session.Notification{Type: session.NotificationChainChanged, ChainID: "eip155:1"}))
	assert.Equal(t, chain.Ethereum, <-calls)

	unregister()
	require.NoError(t, src.Emit(ctx, session.Notification{Type: session.NotificationChainChanged, ChainID: "eip155:612044"}))
	require.Eventually(t, func() bool {
		c, _ := router.State().CurrentChain()
		return c == chain.CrossTestnet
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, calls)
}
