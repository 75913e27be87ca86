package dapp

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github/chapool/cross-dapp/internal/metrics"
	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/chain"
	"github/chapool/cross-dapp/internal/wallet/gate"
	"github/chapool/cross-dapp/internal/wallet/session"
	"github/chapool/cross-dapp/internal/wallet/signer"
	"github/chapool/cross-dapp/internal/wallet/tx"
	"github/chapool/cross-dapp/internal/wallet/typeddata"
)

var (
	ErrUnknownAction      = errors.New("unknown action")
	ErrActionUnavailable  = errors.New("action not available on the active chain")
	ErrActionNotPermitted = errors.New("action not permitted in the current session")
)

// BalanceReader reads balances straight from the chain.
type BalanceReader interface {
	Balance(ctx context.Context, chain wallet.ChainID, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, chain wallet.ChainID, token, account common.Address) (*big.Int, error)
}

// Wallet is everything the app needs from the wallet layer.
type Wallet interface {
	session.Connector
	signer.Service
	BalanceReader
}

// Args are the optional inputs of an action invocation.
type Args map[string]string

// Handler runs one action.
type Handler func(ctx context.Context, args Args) (*Result, error)

// Action is a gated, invocable operation.
type Action struct {
	gate.Descriptor
	Run Handler
}

// Result is what an action reports back for display.
type Result struct {
	Action    string      `json:"action"`
	Message   string      `json:"message"`
	TxHash    string      `json:"tx_hash,omitempty"`
	Outcome   *tx.Outcome `json:"outcome,omitempty"`
	Signature string      `json:"signature,omitempty"`
	Valid     *bool       `json:"valid,omitempty"`
}

// ActionView is one entry of the list offered to the user.
type ActionView struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

type SessionView struct {
	Status    string `json:"status"`
	Account   string `json:"account,omitempty"`
	Chain     string `json:"chain,omitempty"`
	ChainName string `json:"chain_name,omitempty"`
}

// View is the current presentation state, rebuilt on every session change.
type View struct {
	Session SessionView  `json:"session"`
	Actions []ActionView `json:"actions"`
	Notice  string       `json:"notice,omitempty"`
}

// App binds the action catalog to the session, the orchestrator and the wallet.
type App struct {
	router  *session.Router
	gate    *gate.Gate
	wallet  Wallet
	orch    *tx.Orchestrator
	builder *typeddata.Builder
	chains  chain.Service
	metrics *metrics.Metrics
	poll    tx.PollOptions

	actions []Action
	byID    map[string]int
	view    atomic.Pointer[View]
}

func NewApp(
	router *session.Router,
	w Wallet,
	orch *tx.Orchestrator,
	builder *typeddata.Builder,
	chains chain.Service,
	m *metrics.Metrics,
	poll tx.PollOptions,
) *App {
	a := &App{
		router:  router,
		gate:    gate.New(router.State()),
		wallet:  w,
		orch:    orch,
		builder: builder,
		chains:  chains,
		metrics: m,
		poll:    poll,
	}

	a.actions = a.catalog()
	a.byID = make(map[string]int, len(a.actions))
	for i, action := range a.actions {
		a.byID[action.ID] = i
	}

	a.refresh(router.State().Snapshot(), "")
	router.Register(a.onStateChanged)

	return a
}

// Run consumes wallet notifications until ctx is done.
func (a *App) Run(ctx context.Context) error {
	return a.router.Run(ctx, a.wallet)
}

// Router exposes the lifecycle router so other observers can register.
func (a *App) Router() *session.Router {
	return a.router
}

// View returns the presentation state as of the last applied event.
func (a *App) View() View {
	return *a.view.Load()
}

// Orchestrator returns the transaction orchestrator used by the actions.
func (a *App) Orchestrator() *tx.Orchestrator {
	return a.orch
}

// Invoke runs action id when the gate permits it on the current session.
func (a *App) Invoke(ctx context.Context, id string, args Args) (*Result, error) {
	i, ok := a.byID[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAction, "%q", id)
	}
	action := a.actions[i]

	if !a.gate.Visible(action.Descriptor) {
		return nil, errors.Wrapf(ErrActionUnavailable, "%q", id)
	}
	if !a.gate.IsPermitted(action.Descriptor) {
		return nil, errors.Wrapf(ErrActionNotPermitted, "%q requires account %s", id, action.Account)
	}

	l := log.With().Str("action", id).Logger()
	l.Debug().Msg("Running action")

	result, err := action.Run(ctx, args)
	if err != nil {
		l.Warn().Err(err).Msg("Action failed")
		return nil, err
	}

	result.Action = id
	l.Info().Str("message", result.Message).Msg("Action finished")
	return result, nil
}

func (a *App) onStateChanged(snapshot session.Snapshot, event session.Event) {
	notice := ""
	if event.Type == session.NotificationChainChanged && event.Chain == nil {
		notice = "Unsupported chain"
		log.Warn().Msg("Wallet switched to an unsupported chain")
	}
	a.refresh(snapshot, notice)
}

// refresh rebuilds the action list from scratch. Actions scoped to other
// chains are left out; account-gated ones stay listed but disabled.
func (a *App) refresh(snapshot session.Snapshot, notice string) {
	view := &View{
		Session: SessionView{Status: snapshot.Status().String()},
		Actions: make([]ActionView, 0, len(a.actions)),
		Notice:  notice,
	}

	if account, ok := snapshot.Account(); ok {
		view.Session.Account = account.Hex()
	}
	if id, ok := snapshot.Chain(); ok {
		view.Session.Chain = id.String()
		if c, found := a.chains.GetChain(id); found {
			view.Session.ChainName = c.Name
		}
	}

	for _, action := range a.actions {
		if !gate.Visible(action.Descriptor, snapshot) {
			continue
		}
		view.Actions = append(view.Actions, ActionView{
			ID:      action.ID,
			Label:   action.Label,
			Enabled: gate.Permitted(action.Descriptor, snapshot),
		})
	}

	a.view.Store(view)
}

// active returns the connected account and its chain for handlers that need both.
func (a *App) active() (common.Address, *chain.Chain, error) {
	snapshot := a.router.State().Snapshot()

	account, ok := snapshot.Account()
	if !ok {
		return common.Address{}, nil, wallet.ErrNotConnected
	}

	id, ok := snapshot.Chain()
	if !ok {
		return common.Address{}, nil, wallet.ErrNoActiveChain
	}

	c, found := a.chains.GetChain(id)
	if !found {
		return common.Address{}, nil, errors.Wrapf(wallet.ErrNoActiveChain, "chain %s not in catalog", id)
	}

	return account, c, nil
}

// Metrics returns the collectors shared by the session and orchestration layers.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}
