package signer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github/chapool/cross-dapp/internal/wallet"
)

// Service is the signer/broadcaster the dapp drives. Signing and key
// custody happen behind it; callers only see signatures and hashes.
type Service interface {
	// SignMessage returns a personal_sign signature over message.
	SignMessage(ctx context.Context, account common.Address, message []byte, customData *wallet.CustomData) ([]byte, error)

	// SignTypedData returns an eth_signTypedData_v4 signature over the serialized payload.
	SignTypedData(ctx context.Context, account common.Address, typedData string) ([]byte, error)

	// SendTransaction signs and broadcasts req on chain and returns its hash.
	SendTransaction(ctx context.Context, chain wallet.ChainID, from common.Address, req *wallet.TransactionRequest) (common.Hash, error)

	// ReadContract executes an eth_call with already packed calldata.
	ReadContract(ctx context.Context, chain wallet.ChainID, to common.Address, data []byte) ([]byte, error)

	VerifyMessageSignature(ctx context.Context, account common.Address, message []byte, signature []byte) (bool, error)
	VerifyTypedDataSignature(ctx context.Context, account common.Address, typedData string, signature []byte) (bool, error)

	// GetTransaction reports the receipt status of hash on chain.
	GetTransaction(ctx context.Context, chain wallet.ChainID, hash common.Hash) (*wallet.Receipt, error)
}

// TxParams holds everything needed to sign one transaction.
type TxParams struct {
	ChainID   *big.Int
	Nonce     uint64
	To        common.Address
	Value     *big.Int
	Data      []byte
	GasLimit  uint64
	GasPrice  *big.Int // legacy
	GasTipCap *big.Int // dynamic fee
	GasFeeCap *big.Int // dynamic fee
}
