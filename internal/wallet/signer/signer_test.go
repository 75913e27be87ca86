package signer_test

import (
	"math/big"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/chapool/cross-dapp/internal/config"
	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/chain"
	"github/chapool/cross-dapp/internal/wallet/rpc"
	"github/chapool/cross-dapp/internal/wallet/session"
	"github/chapool/cross-dapp/internal/wallet/signer"
	"github/chapool/cross-dapp/internal/wallet/typeddata"
)

const (
	testMnemonic = "test test test test test test test test test test test junk"
	testPath     = "m/44'/60'/0'/0/0"
)

var testAccount = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type node struct {
	mu    sync.Mutex
	sent  []*types.Transaction
	mined map[common.Hash]bool
}

func (n *node) GetTransactionCount(_ common.Address, _ string) hexutil.Uint64 {
	return 7
}

func (n *node) EstimateGas(_ map[string]any, _ *string) hexutil.Uint64 {
	return 21000
}

func (n *node) GasPrice() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(1_000_000_000))
}

func (n *node) MaxPriorityFeePerGas() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(1_000))
}

func (n *node) GetBlockByNumber(_ string, _ bool) *types.Header {
	return &types.Header{
		Number:     big.NewInt(100),
		Difficulty: big.NewInt(0),
		BaseFee:    big.NewInt(5_000),
	}
}

func (n *node) SendRawTransaction(data hexutil.Bytes) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(data); err != nil {
		return common.Hash{}, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, tx)
	return tx.Hash(), nil
}

func (n *node) GetTransactionReceipt(hash common.Hash) (*types.Receipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	succeeded, ok := n.mined[hash]
	if !ok {
		return nil, nil
	}

	status := types.ReceiptStatusFailed
	if succeeded {
		status = types.ReceiptStatusSuccessful
	}
	return &types.Receipt{
		Type:        types.LegacyTxType,
		Status:      status,
		TxHash:      hash,
		GasUsed:     21000,
		BlockNumber: big.NewInt(101),
		Logs:        []*types.Log{},
	}, nil
}

func newLocal(t *testing.T) (*signer.Local, *node) {
	t.Helper()

	n := &node{mined: make(map[common.Hash]bool)}
	srv := gethrpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", n))
	httpSrv := httptest.NewServer(srv)
	t.Cleanup(func() {
		httpSrv.Close()
		srv.Stop()
	})

	chains, err := chain.NewService([]*chain.Chain{
		{ID: chain.CrossTestnet, Name: "Cross Testnet", RPCURL: httpSrv.URL, FeePayer: true},
	})
	require.NoError(t, err)

	pool := rpc.NewPool(chains, config.RPC{CallTimeout: 5 * time.Second})
	t.Cleanup(pool.Close)

	key, err := signer.DeriveKey(testMnemonic, "", testPath)
	require.NoError(t, err)

	return signer.NewLocal(key, pool, chain.CrossTestnet), n
}

func TestDeriveKey(t *testing.T) {
	local, _ := newLocal(t)
	assert.Equal(t, testAccount, local.Address())

	_, err := signer.DeriveKey("not a mnemonic", "", testPath)
	assert.Error(t, err)

	_, err = signer.DeriveKey(testMnemonic, "", "44'/60'")
	assert.Error(t, err)
}

func TestLocalConnectEmitsNotifications(t *testing.T) {
	local, _ := newLocal(t)

	select {
	case <-local.Ready():
	default:
		t.Fatal("dev wallet should be ready immediately")
	}

	_, err := local.Account(t.Context())
	assert.True(t, errors.Is(err, wallet.ErrNotConnected))

	require.NoError(t, local.Connect(t.Context()))
	require.NoError(t, local.Connect(t.Context()))

	first := <-local.Notifications()
	assert.Equal(t, session.NotificationConnecting, first.Type)
	second := <-local.Notifications()
	assert.Equal(t, session.NotificationAccountConnected, second.Type)
	assert.Equal(t, testAccount, second.Account)
	assert.Equal(t, "eip155:612044", second.ChainID)
	assert.Empty(t, local.Notifications())

	info, err := local.Account(t.Context())
	require.NoError(t, err)
	assert.Equal(t, chain.CrossTestnet, info.ChainID)

	require.NoError(t, local.SwitchChain(t.Context(), "eip155:999"))
	assert.Equal(t, "eip155:999", (<-local.Notifications()).ChainID)

	require.NoError(t, local.Disconnect(t.Context()))
	assert.Equal(t, session.NotificationAccountDisconnected, (<-local.Notifications()).Type)
}

func TestLocalPersonalSign(t *testing.T) {
	local, _ := newLocal(t)
	ctx := t.Context()

	_, err := local.SignMessage(ctx, testAccount, []byte("Hello"), nil)
	assert.True(t, errors.Is(err, wallet.ErrNotConnected))

	require.NoError(t, local.Connect(ctx))

	message := []byte("Hello from Go!")
	sig, err := local.SignMessage(ctx, testAccount, message, &wallet.CustomData{Metadata: "plain text custom data"})
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.GreaterOrEqual(t, sig[64], byte(27))

	ok, err := local.VerifyMessageSignature(ctx, testAccount, message, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = local.VerifyMessageSignature(ctx, testAccount, []byte("tampered"), sig)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = local.SignMessage(ctx, common.HexToAddress("0x01"), message, nil)
	assert.True(t, wallet.IsRemoteRejection(err))
}

type activeChain wallet.ChainID

func (a activeChain) CurrentChain() (wallet.ChainID, bool) {
	return wallet.ChainID(a), true
}

func TestLocalSignTypedData(t *testing.T) {
	local, _ := newLocal(t)
	ctx := t.Context()
	require.NoError(t, local.Connect(ctx))

	b, err := typeddata.NewBuilder(typeddata.MailDomain(), typeddata.MailSchema(), activeChain(chain.CrossTestnet), local)
	require.NoError(t, err)
	payload, err := b.Build(typeddata.DomainOverrides{}, typeddata.MailPrimaryType, typeddata.ExampleMail())
	require.NoError(t, err)
	serialized, err := payload.Serialize()
	require.NoError(t, err)

	sig, err := local.SignTypedData(ctx, testAccount, serialized)
	require.NoError(t, err)

	ok, err := b.Verify(ctx, testAccount, payload, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	recovered, err := signer.RecoverTypedDataSigner(serialized, sig)
	require.NoError(t, err)
	assert.Equal(t, testAccount, recovered)
}

func TestLocalSendTransaction(t *testing.T) {
	local, n := newLocal(t)
	ctx := t.Context()
	require.NoError(t, local.Connect(ctx))

	to := common.HexToAddress("0x920A31f0E48739C3FbB790D992b0690f7F5C42ea")

	legacy, err := local.SendTransaction(ctx, chain.CrossTestnet, testAccount, &wallet.TransactionRequest{
		To:    to,
		Value: big.NewInt(1),
		Kind:  wallet.TxKindLegacy,
	})
	require.NoError(t, err)

	sponsored, err := local.SendTransaction(ctx, chain.CrossTestnet, testAccount, &wallet.TransactionRequest{
		To:   to,
		Data: []byte{0xa9, 0x05, 0x9c, 0xbb},
		Kind: wallet.TxKindFeePayerSponsored,
	})
	require.NoError(t, err)

	n.mu.Lock()
	require.Len(t, n.sent, 2)
	sent := append([]*types.Transaction(nil), n.sent...)
	n.mu.Unlock()

	assert.Equal(t, legacy, sent[0].Hash())
	assert.Equal(t, uint8(types.LegacyTxType), sent[0].Type())
	assert.Equal(t, uint64(7), sent[0].Nonce())
	assert.Equal(t, big.NewInt(612044), sent[0].ChainId())

	assert.Equal(t, sponsored, sent[1].Hash())
	assert.Equal(t, uint8(types.DynamicFeeTxType), sent[1].Type())
	assert.Equal(t, big.NewInt(11_000), sent[1].GasFeeCap())

	for _, tx := range sent {
		from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
		require.NoError(t, err)
		assert.Equal(t, testAccount, from)
	}
}

func TestChainReaderGetTransaction(t *testing.T) {
	local, n := newLocal(t)
	ctx := t.Context()

	pending := common.HexToHash("0xaa")
	receipt, err := local.GetTransaction(ctx, chain.CrossTestnet, pending)
	require.NoError(t, err)
	assert.Equal(t, wallet.ReceiptPending, receipt.Status)

	n.mu.Lock()
	n.mined[pending] = true
	n.mined[common.HexToHash("0xbb")] = false
	n.mu.Unlock()

	receipt, err = local.GetTransaction(ctx, chain.CrossTestnet, pending)
	require.NoError(t, err)
	assert.Equal(t, wallet.ReceiptSucceeded, receipt.Status)
	assert.Equal(t, uint64(101), receipt.BlockNumber)

	receipt, err = local.GetTransaction(ctx, chain.CrossTestnet, common.HexToHash("0xbb"))
	require.NoError(t, err)
	assert.Equal(t, wallet.ReceiptReverted, receipt.Status)

	_, err = local.GetTransaction(ctx, chain.Ethereum, pending)
	assert.True(t, errors.Is(err, wallet.ErrChainMismatch))
}
