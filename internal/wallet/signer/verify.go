package signer

import (
	"context"
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github/chapool/cross-dapp/internal/wallet/typeddata"
)

// Recoverer verifies signatures locally by public key recovery.
type Recoverer struct{}

func (Recoverer) VerifyMessageSignature(_ context.Context, account common.Address, message []byte, signature []byte) (bool, error) {
	recovered, err := RecoverMessageSigner(message, signature)
	if err != nil {
		return false, err
	}
	return recovered == account, nil
}

func (Recoverer) VerifyTypedDataSignature(_ context.Context, account common.Address, typedData string, signature []byte) (bool, error) {
	recovered, err := RecoverTypedDataSigner(typedData, signature)
	if err != nil {
		return false, err
	}
	return recovered == account, nil
}

// RecoverMessageSigner returns the address that produced a personal_sign signature.
func RecoverMessageSigner(message, signature []byte) (common.Address, error) {
	return recoverAddress(accounts.TextHash(message), signature)
}

// RecoverTypedDataSigner returns the address that signed the serialized typed data.
func RecoverTypedDataSigner(typedData string, signature []byte) (common.Address, error) {
	payload, err := typeddata.Parse(typedData)
	if err != nil {
		return common.Address{}, err
	}

	hash, err := payload.Hash()
	if err != nil {
		return common.Address{}, err
	}

	return recoverAddress(hash, signature)
}

func recoverAddress(hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, errors.Errorf("invalid signature length %d", len(signature))
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27 // Transform yellow paper V from 27/28 to 0/1
	}

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to recover public key")
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// sign produces a 65 byte signature with V in 27/28 form.
func sign(hash []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign")
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}
