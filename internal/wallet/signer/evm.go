package signer

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github/chapool/cross-dapp/internal/wallet"
)

// signTransaction signs params as the envelope selected by kind.
func signTransaction(kind wallet.TxKind, params *TxParams, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	switch kind {
	case wallet.TxKindLegacy:
		return signLegacyTransaction(params, key)
	case wallet.TxKindFeePayerSponsored:
		return signEIP1559Transaction(params, key)
	default:
		return nil, errors.Wrapf(wallet.ErrUnsupportedTxKind, "kind %d", kind)
	}
}

// signLegacyTransaction signs a type 0 transaction with EIP-155 replay protection
func signLegacyTransaction(params *TxParams, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	if params.GasPrice == nil {
		return nil, errors.New("gas price is required for legacy transactions")
	}

	to := params.To
	//nolint:varnamelen // tx is a common abbreviation for transaction
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    params.Nonce,
		GasPrice: params.GasPrice,
		Gas:      params.GasLimit,
		To:       &to,
		Value:    params.Value,
		Data:     params.Data,
	})

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(params.ChainID), key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	return signedTx, nil
}

// signEIP1559Transaction signs an EIP-1559 transaction
func signEIP1559Transaction(params *TxParams, key *ecdsa.PrivateKey) (*types.Transaction, error) {
	if params.GasTipCap == nil || params.GasFeeCap == nil {
		return nil, errors.New("gas tip and fee caps are required for dynamic fee transactions")
	}

	to := params.To
	//nolint:varnamelen // tx is a common abbreviation for transaction
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   params.ChainID,
		Nonce:     params.Nonce,
		GasTipCap: params.GasTipCap,
		GasFeeCap: params.GasFeeCap,
		Gas:       params.GasLimit,
		To:        &to,
		Value:     params.Value,
		Data:      params.Data,
	})

	signedTx, err := types.SignTx(tx, types.NewLondonSigner(params.ChainID), key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign transaction")
	}

	return signedTx, nil
}
