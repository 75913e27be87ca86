package signer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/rpc"
	"github/chapool/cross-dapp/internal/wallet/session"
	"github/chapool/cross-dapp/internal/wallet/typeddata"
)

const localNotificationBuffer = 16

// Local is an in-process development wallet holding a single key. It plays
// both roles of the wallet layer: session connector and signer.
type Local struct {
	*session.ChannelSource
	*ChainReader
	Recoverer

	key     *ecdsa.PrivateKey
	address common.Address
	pool    *rpc.Pool

	mu        sync.Mutex
	connected bool
	active    wallet.ChainID
}

// NewLocal creates a dev wallet on chain. It is ready immediately.
func NewLocal(key *ecdsa.PrivateKey, pool *rpc.Pool, chain wallet.ChainID) *Local {
	l := &Local{
		ChannelSource: session.NewChannelSource(localNotificationBuffer),
		ChainReader:   NewChainReader(pool),
		key:           key,
		address:       crypto.PubkeyToAddress(key.PublicKey),
		pool:          pool,
		active:        chain,
	}
	l.MarkReady()
	return l
}

// Address returns the account managed by the wallet.
func (l *Local) Address() common.Address {
	return l.address
}

func (l *Local) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connected {
		return nil
	}

	if err := l.Emit(ctx, session.Notification{Type: session.NotificationConnecting}); err != nil {
		return err
	}
	l.connected = true

	log.Info().Str("account", l.address.Hex()).Str("chain", l.active.String()).Msg("Dev wallet connected")

	return l.Emit(ctx, session.Notification{
		Type:    session.NotificationAccountConnected,
		Account: l.address,
		ChainID: l.active.String(),
	})
}

func (l *Local) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		return nil
	}
	l.connected = false

	log.Info().Str("account", l.address.Hex()).Msg("Dev wallet disconnected")

	return l.Emit(ctx, session.Notification{Type: session.NotificationAccountDisconnected})
}

func (l *Local) Account(_ context.Context) (wallet.AccountInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.connected {
		return wallet.AccountInfo{}, wallet.ErrNotConnected
	}
	return wallet.AccountInfo{Address: l.address, ChainID: l.active}, nil
}

// SwitchChain moves the wallet to id, supported or not; resolution is the router's job.
func (l *Local) SwitchChain(ctx context.Context, id wallet.ChainID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.active = id
	return l.Emit(ctx, session.Notification{Type: session.NotificationChainChanged, ChainID: id.String()})
}

func (l *Local) SignMessage(_ context.Context, account common.Address, message []byte, customData *wallet.CustomData) ([]byte, error) {
	if err := l.checkAccount(account); err != nil {
		return nil, err
	}

	logCustomData(customData, "personal_sign")

	return sign(accounts.TextHash(message), l.key)
}

func (l *Local) SignTypedData(_ context.Context, account common.Address, typedData string) ([]byte, error) {
	if err := l.checkAccount(account); err != nil {
		return nil, err
	}

	payload, err := typeddata.Parse(typedData)
	if err != nil {
		return nil, err
	}

	hash, err := payload.Hash()
	if err != nil {
		return nil, err
	}

	return sign(hash, l.key)
}

// SendTransaction fills nonce, gas and fees from the node, signs and broadcasts.
func (l *Local) SendTransaction(ctx context.Context, chain wallet.ChainID, from common.Address, req *wallet.TransactionRequest) (common.Hash, error) {
	if err := l.checkAccount(from); err != nil {
		return common.Hash{}, err
	}

	client, err := l.pool.Client(chain)
	if err != nil {
		return common.Hash{}, err
	}

	chainID, err := chain.Numeric()
	if err != nil {
		return common.Hash{}, errors.Wrapf(wallet.ErrUnsupportedTxKind, "chain %s: %v", chain, err)
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, err
	}

	to := req.To
	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: req.Data})
	if err != nil {
		return common.Hash{}, rejectUnlessTransient(err)
	}

	params := &TxParams{
		ChainID:  chainID,
		Nonce:    nonce,
		To:       req.To,
		Value:    value,
		Data:     req.Data,
		GasLimit: gas,
	}

	switch req.Kind {
	case wallet.TxKindLegacy:
		if params.GasPrice, err = client.SuggestGasPrice(ctx); err != nil {
			return common.Hash{}, err
		}
	case wallet.TxKindFeePayerSponsored:
		if err := l.fillDynamicFees(ctx, client, params); err != nil {
			return common.Hash{}, err
		}
	default:
		return common.Hash{}, errors.Wrapf(wallet.ErrUnsupportedTxKind, "kind %d", req.Kind)
	}

	logCustomData(&wallet.CustomData{Metadata: req.Metadata}, req.Kind.String())

	signedTx, err := signTransaction(req.Kind, params, l.key)
	if err != nil {
		return common.Hash{}, err
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, rejectUnlessTransient(err)
	}

	log.Info().
		Str("chain", chain.String()).
		Str("tx_hash", signedTx.Hash().Hex()).
		Uint8("type", signedTx.Type()).
		Uint64("nonce", nonce).
		Msg("Dev wallet broadcast transaction")

	return signedTx.Hash(), nil
}

func (l *Local) fillDynamicFees(ctx context.Context, client *rpc.RPCClient, params *TxParams) error {
	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return err
	}

	baseFee, err := client.LatestBaseFee(ctx)
	if err != nil {
		return err
	}
	if baseFee == nil {
		return errors.Wrap(wallet.ErrUnsupportedTxKind, "chain has no base fee")
	}

	params.GasTipCap = tip
	params.GasFeeCap = new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)
	return nil
}

func (l *Local) checkAccount(account common.Address) error {
	l.mu.Lock()
	connected := l.connected
	l.mu.Unlock()

	if !connected {
		return wallet.ErrNotConnected
	}
	if account != l.address {
		return wallet.NewRemoteRejection("account " + account.Hex() + " is not managed by this wallet")
	}
	return nil
}

func logCustomData(customData *wallet.CustomData, request string) {
	if customData == nil || customData.Metadata == nil {
		return
	}
	log.Debug().Str("request", request).Interface("custom_data", customData.Metadata).Msg("Wallet request metadata")
}
