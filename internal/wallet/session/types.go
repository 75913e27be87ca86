package session

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github/chapool/cross-dapp/internal/wallet"
)

// Status is the connection status of the wallet session.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// NotificationType enumerates the lifecycle notifications emitted by the wallet layer.
type NotificationType int

const (
	NotificationChainChanged NotificationType = iota
	NotificationAccountConnected
	NotificationAccountDisconnected
	NotificationAccountChanged
	// NotificationConnecting is emitted when the wallet layer starts a session handshake.
	NotificationConnecting
)

func (t NotificationType) String() string {
	switch t {
	case NotificationChainChanged:
		return "chain_changed"
	case NotificationAccountConnected:
		return "account_connected"
	case NotificationAccountDisconnected:
		return "account_disconnected"
	case NotificationAccountChanged:
		return "account_changed"
	case NotificationConnecting:
		return "connecting"
	default:
		return "unknown"
	}
}

// Notification is a raw lifecycle notification as delivered by the wallet
// layer. ChainID is the unresolved identifier reported by the wallet and may
// be empty.
type Notification struct {
	Type    NotificationType
	Account common.Address
	ChainID string
}

// Event is a Notification after chain resolution. Chain is nil when the
// wallet reported no chain or an unsupported one; ChainReported tells the two apart.
type Event struct {
	Type          NotificationType
	Account       common.Address
	Chain         *wallet.ChainID
	ChainReported bool
}

// Source is the wallet layer's notification stream. Ready is closed once
// the underlying wallet object exists and Notifications may be consumed.
type Source interface {
	Ready() <-chan struct{}
	Notifications() <-chan Notification
}

// Observer is notified after every applied event, in delivery order.
type Observer func(snapshot Snapshot, event Event)

// Connector is the wallet layer: it owns the connection and emits the
// lifecycle notifications consumed by the Router.
type Connector interface {
	Source

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Account(ctx context.Context) (wallet.AccountInfo, error)
	// SwitchChain asks the wallet to move to id. The result arrives as a
	// chain-changed notification.
	SwitchChain(ctx context.Context, id wallet.ChainID) error
}
