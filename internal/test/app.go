package test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github/chapool/cross-dapp/internal/dapp"
	"github/chapool/cross-dapp/internal/metrics"
	"github/chapool/cross-dapp/internal/wallet/chain"
	"github/chapool/cross-dapp/internal/wallet/session"
	"github/chapool/cross-dapp/internal/wallet/tx"
	"github/chapool/cross-dapp/internal/wallet/typeddata"
)

// PollOptions keep polls in tests short.
var PollOptions = tx.PollOptions{
	Interval:        10 * time.Millisecond,
	MaxWait:         time.Second,
	MaxQueryRetries: 1,
	BackoffInitial:  time.Millisecond,
	BackoffMax:      time.Millisecond,
}

// NewTestApp wires an App around a fresh Wallet and starts its lifecycle
// router. The router is stopped when the test ends.
func NewTestApp(t *testing.T) (*dapp.App, *Wallet) {
	t.Helper()

	chains, err := chain.NewService(chain.DefaultCatalog())
	require.NoError(t, err)

	m := metrics.New()
	w := NewWallet(t)
	router := session.NewRouter(session.NewState(), chains, m)
	orch := tx.New(router.State(), chains, w, PollOptions, tx.WithMetrics(m))

	builder, err := typeddata.NewBuilder(typeddata.MailDomain(), typeddata.MailSchema(), router.State(), w)
	require.NoError(t, err)

	app := dapp.NewApp(router, w, orch, builder, chains, m, PollOptions)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = app.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return app, w
}

// WaitForView blocks until cond holds for the app's view and returns that view.
func WaitForView(t *testing.T, app *dapp.App, cond func(dapp.View) bool) dapp.View {
	t.Helper()

	require.Eventually(t, func() bool { return cond(app.View()) }, time.Second, 5*time.Millisecond)

	return app.View()
}

// Connect runs the connect action and waits for the session to report it.
func Connect(t *testing.T, app *dapp.App) {
	t.Helper()

	_, err := app.Invoke(t.Context(), dapp.ActionConnect, nil)
	require.NoError(t, err)
	WaitForView(t, app, func(v dapp.View) bool { return v.Session.Status == "connected" })
}
