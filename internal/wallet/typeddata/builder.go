package typeddata

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"

	"github/chapool/cross-dapp/internal/wallet"
)

// ChainSource reports the session's active chain.
type ChainSource interface {
	CurrentChain() (wallet.ChainID, bool)
}

// Verifier checks a typed-data signature against its serialized payload.
type Verifier interface {
	VerifyTypedDataSignature(ctx context.Context, address common.Address, typedData string, signature []byte) (bool, error)
}

// Builder constructs payloads over a fixed schema and base domain.
type Builder struct {
	base     Domain
	schema   Schema
	chains   ChainSource
	verifier Verifier
}

func NewBuilder(base Domain, schema Schema, chains ChainSource, verifier Verifier) (*Builder, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	return &Builder{
		base:     base,
		schema:   schema.clone(),
		chains:   chains,
		verifier: verifier,
	}, nil
}

// Build merges overrides over the base domain, scopes it to the active
// chain and validates message against primaryType.
func (b *Builder) Build(overrides DomainOverrides, primaryType string, message map[string]any) (*Payload, error) {
	chainID, ok := b.chains.CurrentChain()
	if !ok {
		return nil, wallet.ErrNoActiveChain
	}

	reference, err := chainID.Numeric()
	if err != nil {
		return nil, errors.Wrapf(wallet.ErrNoActiveChain, "chain %s has no numeric reference", chainID)
	}

	domain := b.base.merge(overrides)
	domain.ChainID = reference

	normalized, err := b.schema.normalizeStruct(primaryType, message, primaryType)
	if err != nil {
		return nil, err
	}

	return &Payload{
		Domain:      domain,
		PrimaryType: primaryType,
		Types:       b.schema.clone(),
		Message:     normalized,
	}, nil
}

// Verify serializes payload and hands it to the verifier.
func (b *Builder) Verify(ctx context.Context, address common.Address, payload *Payload, signature []byte) (bool, error) {
	if b.verifier == nil {
		return false, errors.New("typed data verifier not configured")
	}

	serialized, err := payload.Serialize()
	if err != nil {
		return false, err
	}

	return b.verifier.VerifyTypedDataSignature(ctx, address, serialized, signature)
}

// TypedData converts the payload into go-ethereum's representation.
func (p *Payload) TypedData() apitypes.TypedData {
	types := make(apitypes.Types, len(p.Types)+1)
	for name, fields := range p.Types {
		types[name] = toAPIFields(fields)
	}
	types[domainType] = toAPIFields(p.Domain.domainFields())

	domain := apitypes.TypedDataDomain{
		Name:    p.Domain.Name,
		Version: p.Domain.Version,
	}
	if p.Domain.ChainID != nil {
		domain.ChainId = (*math.HexOrDecimal256)(p.Domain.ChainID)
	}
	if p.Domain.VerifyingContract != nil {
		domain.VerifyingContract = p.Domain.VerifyingContract.Hex()
	}

	return apitypes.TypedData{
		Types:       types,
		PrimaryType: p.PrimaryType,
		Domain:      domain,
		Message:     p.Message,
	}
}

// Hash returns the EIP-712 signing hash of the payload.
func (p *Payload) Hash() ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(p.TypedData())
	if err != nil {
		return nil, errors.Wrap(wallet.ErrSchemaMismatch, err.Error())
	}
	return hash, nil
}

func toAPIFields(fields []Field) []apitypes.Type {
	out := make([]apitypes.Type, len(fields))
	for i, f := range fields {
		out[i] = apitypes.Type{Name: f.Name, Type: f.Type}
	}
	return out
}

func (s Schema) clone() Schema {
	c := make(Schema, len(s))
	for name, fields := range s {
		c[name] = append([]Field(nil), fields...)
	}
	return c
}
