package test

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github/chapool/cross-dapp/internal/dapp"
	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/chain"
	"github/chapool/cross-dapp/internal/wallet/session"
	"github/chapool/cross-dapp/internal/wallet/signer"
	"github/chapool/cross-dapp/internal/wallet/typeddata"
)

var (
	// NativeBalance is reported for every account: 1.5 units at 18 decimals.
	NativeBalance = big.NewInt(1_500_000_000_000_000_000)
	// TokenBalance is reported for every token and account: 2 units at 18 decimals.
	TokenBalance = big.NewInt(2_000_000_000_000_000_000)
)

// Wallet is an in-memory wallet that signs with a real key. Transactions are
// recorded instead of broadcast and every receipt reports success.
type Wallet struct {
	*session.ChannelSource
	signer.Recoverer

	key     *ecdsa.PrivateKey
	address common.Address
	outputs map[string][]byte

	mu        sync.Mutex
	connected bool
	chain     wallet.ChainID
	sent      []*wallet.TransactionRequest
}

var _ dapp.Wallet = (*Wallet)(nil)

// NewWallet returns a ready wallet on Cross Testnet that answers the sample
// token's name and balanceOf calls.
func NewWallet(t *testing.T) *Wallet {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	parsed, err := abi.JSON(strings.NewReader(dapp.SampleERC20ABI))
	require.NoError(t, err)
	name, err := parsed.Methods["name"].Outputs.Pack("Sample Token")
	require.NoError(t, err)
	balance, err := parsed.Methods["balanceOf"].Outputs.Pack(TokenBalance)
	require.NoError(t, err)

	w := &Wallet{
		ChannelSource: session.NewChannelSource(16),
		key:           key,
		address:       crypto.PubkeyToAddress(key.PublicKey),
		chain:         chain.CrossTestnet,
		outputs: map[string][]byte{
			string(parsed.Methods["name"].ID):      name,
			string(parsed.Methods["balanceOf"].ID): balance,
		},
	}
	w.MarkReady()

	return w
}

func (w *Wallet) Address() common.Address {
	return w.address
}

// Sent returns the transactions handed to SendTransaction so far.
func (w *Wallet) Sent() []*wallet.TransactionRequest {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]*wallet.TransactionRequest(nil), w.sent...)
}

func (w *Wallet) Connect(ctx context.Context) error {
	w.mu.Lock()
	w.connected = true
	chainID := w.chain
	w.mu.Unlock()

	if err := w.Emit(ctx, session.Notification{Type: session.NotificationConnecting}); err != nil {
		return err
	}

	return w.Emit(ctx, session.Notification{
		Type:    session.NotificationAccountConnected,
		Account: w.address,
		ChainID: chainID.String(),
	})
}

func (w *Wallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	w.connected = false
	w.mu.Unlock()

	return w.Emit(ctx, session.Notification{Type: session.NotificationAccountDisconnected})
}

func (w *Wallet) Account(_ context.Context) (wallet.AccountInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.connected {
		return wallet.AccountInfo{}, wallet.ErrNotConnected
	}

	return wallet.AccountInfo{Address: w.address, ChainID: w.chain}, nil
}

func (w *Wallet) SwitchChain(ctx context.Context, id wallet.ChainID) error {
	w.mu.Lock()
	w.chain = id
	w.mu.Unlock()

	return w.Emit(ctx, session.Notification{Type: session.NotificationChainChanged, ChainID: id.String()})
}

func (w *Wallet) SignMessage(_ context.Context, _ common.Address, message []byte, _ *wallet.CustomData) ([]byte, error) {
	return w.sign(accounts.TextHash(message))
}

func (w *Wallet) SignTypedData(_ context.Context, _ common.Address, typedData string) ([]byte, error) {
	payload, err := typeddata.Parse(typedData)
	if err != nil {
		return nil, err
	}

	hash, err := payload.Hash()
	if err != nil {
		return nil, err
	}

	return w.sign(hash)
}

func (w *Wallet) SendTransaction(_ context.Context, _ wallet.ChainID, _ common.Address, req *wallet.TransactionRequest) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sent = append(w.sent, req)

	return common.BigToHash(big.NewInt(int64(len(w.sent)))), nil
}

func (w *Wallet) ReadContract(_ context.Context, _ wallet.ChainID, _ common.Address, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, wallet.NewRemoteRejection("execution reverted")
	}

	out, ok := w.outputs[string(data[:4])]
	if !ok {
		return nil, wallet.NewRemoteRejection("execution reverted")
	}

	return out, nil
}

func (w *Wallet) GetTransaction(_ context.Context, _ wallet.ChainID, hash common.Hash) (*wallet.Receipt, error) {
	return &wallet.Receipt{Hash: hash, Status: wallet.ReceiptSucceeded, BlockNumber: 7}, nil
}

func (w *Wallet) Balance(_ context.Context, _ wallet.ChainID, _ common.Address) (*big.Int, error) {
	return new(big.Int).Set(NativeBalance), nil
}

func (w *Wallet) TokenBalance(_ context.Context, _ wallet.ChainID, _, _ common.Address) (*big.Int, error) {
	return new(big.Int).Set(TokenBalance), nil
}

func (w *Wallet) sign(hash []byte) ([]byte, error) {
	sig, err := crypto.Sign(hash, w.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27

	return sig, nil
}
