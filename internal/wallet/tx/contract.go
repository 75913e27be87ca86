package tx

import (
	"context"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github/chapool/cross-dapp/internal/wallet"
)

// WriteOptions are the transaction fields of a contract write.
type WriteOptions struct {
	Value      *big.Int
	Kind       wallet.TxKind
	CustomData *wallet.CustomData
}

// ReadCall describes a contract query. A non-nil Chain scopes the query to
// that chain.
type ReadCall struct {
	Chain   *wallet.ChainID
	Address common.Address
	ABI     string
	Method  string
	Args    []any
}

// WriteContract packs a call to method and submits it. The ABI and the
// arguments are validated before anything is sent.
func (o *Orchestrator) WriteContract(ctx context.Context, address common.Address, abiJSON string, method string, args []any, opts WriteOptions) (common.Hash, error) {
	data, err := packCall(abiJSON, method, args)
	if err != nil {
		return common.Hash{}, err
	}

	req := &wallet.TransactionRequest{
		To:    address,
		Value: opts.Value,
		Data:  data,
		Kind:  opts.Kind,
	}
	if opts.CustomData != nil {
		req.Metadata = opts.CustomData.Metadata
	}

	return o.Submit(ctx, req)
}

// ReadContract queries method and returns its first output as T. It sends
// no transaction.
func ReadContract[T any](ctx context.Context, o *Orchestrator, call ReadCall) (T, error) {
	var zero T

	active, ok := o.state.Snapshot().Chain()
	if call.Chain != nil && (!ok || active != *call.Chain) {
		return zero, errors.Wrapf(wallet.ErrChainMismatch, "call scoped to %s, active chain %q", *call.Chain, active)
	}
	if !ok {
		return zero, wallet.ErrNoActiveChain
	}

	parsed, err := parseABI(call.ABI)
	if err != nil {
		return zero, err
	}

	data, err := pack(parsed, call.Method, call.Args)
	if err != nil {
		return zero, err
	}

	raw, err := o.signer.ReadContract(ctx, active, call.Address, data)
	if err != nil {
		return zero, errors.Wrapf(err, "failed to call %s", call.Method)
	}

	values, err := parsed.Unpack(call.Method, raw)
	if err != nil {
		return zero, errors.Wrapf(err, "failed to decode %s output", call.Method)
	}
	if len(values) == 0 {
		return zero, errors.Errorf("method %s returned no values", call.Method)
	}

	out, ok := values[0].(T)
	if !ok {
		return zero, errors.Errorf("method %s returns %T, not %T", call.Method, values[0], zero)
	}

	return out, nil
}

func packCall(abiJSON, method string, args []any) ([]byte, error) {
	parsed, err := parseABI(abiJSON)
	if err != nil {
		return nil, err
	}
	return pack(parsed, method, args)
}

func parseABI(abiJSON string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return abi.ABI{}, errors.Wrap(wallet.ErrInvalidABI, err.Error())
	}
	return parsed, nil
}

func pack(parsed abi.ABI, method string, args []any) ([]byte, error) {
	m, ok := parsed.Methods[method]
	if !ok {
		return nil, errors.Wrapf(wallet.ErrMethodNotFound, "%s", method)
	}

	if len(args) != len(m.Inputs) {
		return nil, errors.Wrapf(wallet.ErrInvalidArguments, "%s expects %d arguments, got %d", method, len(m.Inputs), len(args))
	}

	coerced := make([]any, len(args))
	for i, arg := range args {
		v, err := coerce(m.Inputs[i].Type, arg)
		if err != nil {
			return nil, errors.Wrapf(wallet.ErrInvalidArguments, "%s argument %q: %v", method, m.Inputs[i].Name, err)
		}
		coerced[i] = v
	}

	data, err := parsed.Pack(method, coerced...)
	if err != nil {
		return nil, errors.Wrapf(wallet.ErrInvalidArguments, "%s: %v", method, err)
	}
	return data, nil
}

// coerce converts loosely typed arguments (hex strings, decimal strings,
// plain ints) into the Go types abi.Pack expects.
func coerce(t abi.Type, arg any) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if s, ok := arg.(string); ok {
			if !common.IsHexAddress(s) {
				return nil, errors.Errorf("invalid address %q", s)
			}
			return common.HexToAddress(s), nil
		}
	case abi.UintTy, abi.IntTy:
		if t.Size > 64 {
			return toBig(arg)
		}
		if reflect.TypeOf(arg) != t.GetType() {
			i, err := toBig(arg)
			if err != nil {
				return nil, err
			}
			v := reflect.New(t.GetType()).Elem()
			if t.T == abi.UintTy {
				if i.Sign() < 0 || !i.IsUint64() || v.OverflowUint(i.Uint64()) {
					return nil, errors.Errorf("%s out of range for %s", i, t)
				}
				v.SetUint(i.Uint64())
			} else {
				if !i.IsInt64() || v.OverflowInt(i.Int64()) {
					return nil, errors.Errorf("%s out of range for %s", i, t)
				}
				v.SetInt(i.Int64())
			}
			return v.Interface(), nil
		}
	}
	return arg, nil
}

func toBig(arg any) (*big.Int, error) {
	switch v := arg.(type) {
	case *big.Int:
		return v, nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case string:
		i, ok := new(big.Int).SetString(v, 0)
		if !ok {
			return nil, errors.Errorf("invalid integer %q", v)
		}
		return i, nil
	default:
		return nil, errors.Errorf("cannot use %T as integer", arg)
	}
}
