package session

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/atomic"

	"github/chapool/cross-dapp/internal/wallet"
)

// Snapshot is an immutable view of the session. The account is set iff the
// status is StatusConnected; the chain may be unset while connected.
type Snapshot struct {
	status  Status
	account *common.Address
	chain   *wallet.ChainID
}

// NewSnapshot builds a snapshot, dropping the account unless status is connected.
func NewSnapshot(status Status, account *common.Address, chain *wallet.ChainID) Snapshot {
	if status != StatusConnected {
		account = nil
	}
	if status == StatusConnected && account == nil {
		status = StatusConnecting
	}

	return Snapshot{status: status, account: copyAddress(account), chain: copyChain(chain)}
}

func (s Snapshot) Status() Status {
	return s.status
}

func (s Snapshot) Account() (common.Address, bool) {
	if s.account == nil {
		return common.Address{}, false
	}
	return *s.account, true
}

func (s Snapshot) Chain() (wallet.ChainID, bool) {
	if s.chain == nil {
		return "", false
	}
	return *s.chain, true
}

func (s Snapshot) Connected() bool {
	return s.status == StatusConnected
}

// Equal compares snapshots field by field.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.status != o.status {
		return false
	}
	if (s.account == nil) != (o.account == nil) || (s.account != nil && *s.account != *o.account) {
		return false
	}
	if (s.chain == nil) != (o.chain == nil) || (s.chain != nil && *s.chain != *o.chain) {
		return false
	}
	return true
}

// Fold applies e to s and returns the resulting snapshot. It is a pure
// function; State.apply is Fold plus an atomic publish.
func Fold(s Snapshot, e Event) Snapshot {
	next := s

	switch e.Type {
	case NotificationConnecting:
		if s.status == StatusDisconnected {
			next.status = StatusConnecting
		}
	case NotificationAccountConnected:
		next.status = StatusConnected
		next.account = copyAddress(&e.Account)
		if e.ChainReported {
			next.chain = copyChain(e.Chain)
		}
	case NotificationAccountChanged:
		// a change that arrives after a disconnect must not resurrect the account
		if s.status == StatusConnected {
			next.account = copyAddress(&e.Account)
		}
		if e.ChainReported && s.status == StatusConnected {
			next.chain = copyChain(e.Chain)
		}
	case NotificationAccountDisconnected:
		next.status = StatusDisconnected
		next.account = nil
	case NotificationChainChanged:
		next.chain = copyChain(e.Chain)
	}

	return next
}

// State holds the current session snapshot. Reads are lock free; the only
// writer is the Router.
type State struct {
	current *atomic.Pointer[Snapshot]
}

// NewState returns a disconnected session.
func NewState() *State {
	initial := Snapshot{status: StatusDisconnected}
	return &State{current: atomic.NewPointer(&initial)}
}

// Snapshot returns the last published snapshot.
func (s *State) Snapshot() Snapshot {
	return *s.current.Load()
}

func (s *State) CurrentStatus() Status {
	return s.Snapshot().Status()
}

func (s *State) CurrentAccount() (common.Address, bool) {
	return s.Snapshot().Account()
}

func (s *State) CurrentChain() (wallet.ChainID, bool) {
	return s.Snapshot().Chain()
}

// apply publishes Fold(current, e). It reports false when e changes nothing.
func (s *State) apply(e Event) (Snapshot, bool) {
	prev := s.Snapshot()
	next := Fold(prev, e)
	if next.Equal(prev) {
		return prev, false
	}

	s.current.Store(&next)
	return next, true
}

func copyAddress(a *common.Address) *common.Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func copyChain(c *wallet.ChainID) *wallet.ChainID {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
