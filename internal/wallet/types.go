package wallet

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// NamespaceEIP155 is the CAIP-2 namespace of EVM chains.
const NamespaceEIP155 = "eip155"

// ChainID is a CAIP-2 chain identifier such as "eip155:612044".
type ChainID string

// ParseChainID validates raw as a CAIP-2 identifier. A bare decimal number is
// treated as an eip155 reference.
func ParseChainID(raw string) (ChainID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty chain id")
	}

	if !strings.Contains(raw, ":") {
		if _, err := strconv.ParseUint(raw, 10, 64); err != nil {
			return "", errors.Errorf("invalid chain id %q", raw)
		}
		return ChainID(NamespaceEIP155 + ":" + raw), nil
	}

	namespace, reference, _ := strings.Cut(raw, ":")
	if namespace == "" || reference == "" || strings.Contains(reference, ":") {
		return "", errors.Errorf("invalid chain id %q", raw)
	}

	return ChainID(raw), nil
}

// EIP155 builds the CAIP-2 identifier of an EVM chain.
func EIP155(chainID int64) ChainID {
	return ChainID(NamespaceEIP155 + ":" + strconv.FormatInt(chainID, 10))
}

// Namespace returns the part before the colon.
func (c ChainID) Namespace() string {
	namespace, _, _ := strings.Cut(string(c), ":")
	return namespace
}

// Reference returns the part after the colon.
func (c ChainID) Reference() string {
	_, reference, _ := strings.Cut(string(c), ":")
	return reference
}

// Numeric returns the numeric reference of an eip155 chain.
func (c ChainID) Numeric() (*big.Int, error) {
	if c.Namespace() != NamespaceEIP155 {
		return nil, errors.Errorf("chain %q is not an eip155 chain", c)
	}

	n, ok := new(big.Int).SetString(c.Reference(), 10)
	if !ok || n.Sign() <= 0 {
		return nil, errors.Errorf("chain %q has no numeric reference", c)
	}

	return n, nil
}

func (c ChainID) String() string {
	return string(c)
}

// TxKind selects how a transaction is paid for.
type TxKind int

const (
	// TxKindLegacy is a type 0 transaction paid by the sender.
	TxKindLegacy TxKind = iota
	// TxKindFeePayerSponsored is a type 2 transaction whose fee is paid by a sponsor.
	TxKindFeePayerSponsored
)

func (k TxKind) String() string {
	switch k {
	case TxKindLegacy:
		return "legacy"
	case TxKindFeePayerSponsored:
		return "fee_payer"
	default:
		return "unknown"
	}
}

// EnvelopeType returns the EIP-2718 envelope type the wallet is asked to produce.
func (k TxKind) EnvelopeType() uint8 {
	if k == TxKindFeePayerSponsored {
		return 2
	}
	return 0
}

// TransactionRequest is built per call and never retained.
type TransactionRequest struct {
	To       common.Address
	Value    *big.Int
	Data     []byte
	Kind     TxKind
	Metadata any
}

// CustomData is shown by the wallet next to a signing or transaction request.
type CustomData struct {
	Metadata any `json:"metadata"`
}

// AccountInfo describes the account the wallet currently exposes.
type AccountInfo struct {
	Address common.Address
	ChainID ChainID
}

// ReceiptStatus is the on-chain state of a transaction as seen by a status query.
type ReceiptStatus int

const (
	ReceiptPending ReceiptStatus = iota
	ReceiptSucceeded
	ReceiptReverted
)

func (s ReceiptStatus) String() string {
	switch s {
	case ReceiptPending:
		return "pending"
	case ReceiptSucceeded:
		return "succeeded"
	case ReceiptReverted:
		return "reverted"
	default:
		return "unknown"
	}
}

// Receipt is the result of a transaction status query.
type Receipt struct {
	Hash        common.Hash
	Status      ReceiptStatus
	BlockNumber uint64
	GasUsed     uint64
}
