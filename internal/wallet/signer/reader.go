package signer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/rpc"
)

var balanceOfMethodID = common.Hex2Bytes("70a08231")

// ChainReader serves the read side of Service from chain RPC nodes.
type ChainReader struct {
	pool *rpc.Pool
}

func NewChainReader(pool *rpc.Pool) *ChainReader {
	return &ChainReader{pool: pool}
}

func (r *ChainReader) ReadContract(ctx context.Context, chain wallet.ChainID, to common.Address, data []byte) ([]byte, error) {
	client, err := r.pool.Client(chain)
	if err != nil {
		return nil, err
	}

	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data})
	if err != nil {
		return nil, rejectUnlessTransient(err)
	}

	return out, nil
}

// GetTransaction maps the receipt of hash onto a wallet.Receipt. A missing
// receipt means the transaction is still pending.
func (r *ChainReader) GetTransaction(ctx context.Context, chain wallet.ChainID, hash common.Hash) (*wallet.Receipt, error) {
	client, err := r.pool.Client(chain)
	if err != nil {
		return nil, err
	}

	receipt, err := client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return &wallet.Receipt{Hash: hash, Status: wallet.ReceiptPending}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &wallet.Receipt{
		Hash:    hash,
		Status:  wallet.ReceiptReverted,
		GasUsed: receipt.GasUsed,
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		result.Status = wallet.ReceiptSucceeded
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}

	return result, nil
}

// Balance returns the native balance of account.
func (r *ChainReader) Balance(ctx context.Context, chain wallet.ChainID, account common.Address) (*big.Int, error) {
	client, err := r.pool.Client(chain)
	if err != nil {
		return nil, err
	}
	return client.BalanceAt(ctx, account)
}

// TokenBalance returns the ERC20 token balance for the given account.
func (r *ChainReader) TokenBalance(ctx context.Context, chain wallet.ChainID, token, account common.Address) (*big.Int, error) {
	const abiPaddedAddressLength = 32
	data := make([]byte, 0, len(balanceOfMethodID)+abiPaddedAddressLength)
	data = append(data, balanceOfMethodID...)
	data = append(data, common.LeftPadBytes(account.Bytes(), abiPaddedAddressLength)...)

	resp, err := r.ReadContract(ctx, chain, token, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to call balanceOf")
	}

	return new(big.Int).SetBytes(resp), nil
}

// rejectUnlessTransient turns a node's answer into a RemoteRejection; network
// failures stay retryable.
func rejectUnlessTransient(err error) error {
	if wallet.IsTransient(err) || errors.Is(err, context.Canceled) {
		return err
	}
	return errors.WithStack(wallet.NewRemoteRejection(err.Error()))
}
