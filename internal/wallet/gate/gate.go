package gate

import (
	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/session"
)

// AccountRequirement is the tri-state account constraint of an operation.
type AccountRequirement int

const (
	// AccountAny places no constraint on the connection status.
	AccountAny AccountRequirement = iota
	// AccountRequired permits the operation only while an account is connected.
	AccountRequired
	// AccountForbidden permits the operation only while no account is connected.
	AccountForbidden
)

func (r AccountRequirement) String() string {
	switch r {
	case AccountAny:
		return "any"
	case AccountRequired:
		return "required"
	case AccountForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// ChainSet is an optional set of chains. The zero value (nil) means any chain.
type ChainSet map[wallet.ChainID]struct{}

// Chains returns a restricted set containing ids. Chains() with no ids
// yields a set that permits nothing.
func Chains(ids ...wallet.ChainID) ChainSet {
	set := make(ChainSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Restricted reports whether the set constrains the active chain.
func (c ChainSet) Restricted() bool {
	return c != nil
}

func (c ChainSet) Contains(id wallet.ChainID) bool {
	_, ok := c[id]
	return ok
}

// Descriptor is the static definition of a user-invocable operation.
type Descriptor struct {
	ID            string
	Label         string
	Account       AccountRequirement
	AllowedChains ChainSet
}

// SnapshotSource provides the session snapshot the gate decides on.
type SnapshotSource interface {
	Snapshot() session.Snapshot
}

// Gate decides whether operations are currently permitted.
type Gate struct {
	state SnapshotSource
}

func New(state SnapshotSource) *Gate {
	return &Gate{state: state}
}

// IsPermitted evaluates op against the current session snapshot.
func (g *Gate) IsPermitted(op Descriptor) bool {
	return Permitted(op, g.state.Snapshot())
}

// Visible reports whether op should be offered at all on the active chain.
// Operations scoped to other chains are hidden rather than disabled.
func (g *Gate) Visible(op Descriptor) bool {
	return Visible(op, g.state.Snapshot())
}

// Visible is the pure chain-axis decision over (op, snapshot).
func Visible(op Descriptor, s session.Snapshot) bool {
	return chainAllowed(op, s)
}

// Permitted is the pure decision over (op, snapshot).
func Permitted(op Descriptor, s session.Snapshot) bool {
	switch op.Account {
	case AccountRequired:
		if !s.Connected() {
			return false
		}
	case AccountForbidden:
		if s.Connected() {
			return false
		}
	case AccountAny:
	}

	return chainAllowed(op, s)
}

func chainAllowed(op Descriptor, s session.Snapshot) bool {
	if !op.AllowedChains.Restricted() {
		return true
	}

	active, ok := s.Chain()
	if !ok {
		return false
	}

	return op.AllowedChains.Contains(active)
}
