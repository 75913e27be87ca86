package typeddata

import (
	"encoding/json"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github/chapool/cross-dapp/internal/wallet"
)

// normalizeStruct validates value against the struct type typ and returns
// its normalized form.
func (s Schema) normalizeStruct(typ string, value any, path string) (Message, error) {
	fields, ok := s[typ]
	if !ok {
		return nil, mismatch(path, "undefined type %s", typ)
	}

	obj, ok := asObject(value)
	if !ok {
		return nil, mismatch(path, "expected %s object, got %T", typ, value)
	}

	out := make(Message, len(fields))
	for _, f := range fields {
		v, present := obj[f.Name]
		if !present {
			return nil, mismatch(path, "missing field %q of %s", f.Name, typ)
		}

		n, err := s.normalize(f.Type, v, path+"."+f.Name)
		if err != nil {
			return nil, err
		}
		out[f.Name] = n
	}

	if len(obj) > len(fields) {
		return nil, mismatch(path, "unexpected fields %s for %s", strings.Join(extraKeys(obj, fields), ", "), typ)
	}

	return out, nil
}

func (s Schema) normalize(typ string, value any, path string) (any, error) {
	if elem, size, ok := arrayElem(typ); ok {
		items, ok := asSlice(value)
		if !ok {
			return nil, mismatch(path, "expected %s array, got %T", typ, value)
		}
		if size >= 0 && len(items) != size {
			return nil, mismatch(path, "expected %d elements, got %d", size, len(items))
		}

		out := make([]any, len(items))
		for i, item := range items {
			n, err := s.normalize(elem, item, path+"["+strconv.Itoa(i)+"]")
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}

	if _, ok := s[typ]; ok {
		return s.normalizeStruct(typ, value, path)
	}

	return normalizePrimitive(typ, value, path)
}

func normalizePrimitive(typ string, value any, path string) (any, error) {
	switch typ {
	case "string":
		v, ok := value.(string)
		if !ok {
			return nil, mismatch(path, "expected string, got %T", value)
		}
		return v, nil
	case "bool":
		v, ok := value.(bool)
		if !ok {
			return nil, mismatch(path, "expected bool, got %T", value)
		}
		return v, nil
	case "address":
		return normalizeAddress(value, path)
	case "bytes":
		b, err := toBytes(value, path)
		if err != nil {
			return nil, err
		}
		return hexutil.Encode(b), nil
	}

	if n, ok := fixedBytes(typ); ok {
		b, err := toBytes(value, path)
		if err != nil {
			return nil, err
		}
		if len(b) > n {
			return nil, mismatch(path, "%d bytes do not fit %s", len(b), typ)
		}
		return hexutil.Encode(b), nil
	}

	if bits, ok := intBits(typ); ok {
		i, err := toBigInt(value, path)
		if err != nil {
			return nil, err
		}
		if err := checkRange(i, bits, signed(typ)); err != nil {
			return nil, mismatch(path, "%s: %v", typ, err)
		}
		return i.String(), nil
	}

	return nil, mismatch(path, "undefined type %s", typ)
}

func normalizeAddress(value any, path string) (string, error) {
	switch v := value.(type) {
	case common.Address:
		return v.Hex(), nil
	case *common.Address:
		if v == nil {
			return "", mismatch(path, "nil address")
		}
		return v.Hex(), nil
	case string:
		if !common.IsHexAddress(v) {
			return "", mismatch(path, "invalid address %q", v)
		}
		return common.HexToAddress(v).Hex(), nil
	default:
		return "", mismatch(path, "expected address, got %T", value)
	}
}

func toBytes(value any, path string) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case hexutil.Bytes:
		return v, nil
	case common.Hash:
		return v.Bytes(), nil
	case string:
		b, err := hexutil.Decode(v)
		if err != nil {
			return nil, mismatch(path, "invalid hex bytes %q", v)
		}
		return b, nil
	default:
		return nil, mismatch(path, "expected bytes, got %T", value)
	}
}

func toBigInt(value any, path string) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, mismatch(path, "nil integer")
		}
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case float64:
		f := new(big.Float).SetFloat64(v)
		i, acc := f.Int(nil)
		if acc != big.Exact {
			return nil, mismatch(path, "non-integral number %v", v)
		}
		return i, nil
	case json.Number:
		return parseBigInt(string(v), path)
	case string:
		return parseBigInt(v, path)
	default:
		return nil, mismatch(path, "expected integer, got %T", value)
	}
}

func parseBigInt(s string, path string) (*big.Int, error) {
	i, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, mismatch(path, "invalid integer %q", s)
	}
	return i, nil
}

func checkRange(i *big.Int, bits int, isSigned bool) error {
	if !isSigned {
		if i.Sign() < 0 {
			return errors.New("negative value for unsigned type")
		}
		if i.BitLen() > bits {
			return errors.New("value overflows")
		}
		return nil
	}

	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	minValue := new(big.Int).Neg(limit)
	if i.Cmp(minValue) < 0 || i.Cmp(limit) >= 0 {
		return errors.New("value overflows")
	}
	return nil
}

func asObject(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	default:
		return nil, false
	}
}

func asSlice(value any) ([]any, bool) {
	if v, ok := value.([]any); ok {
		return v, true
	}

	rv := reflect.ValueOf(value)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func extraKeys(obj map[string]any, fields []Field) []string {
	declared := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		declared[f.Name] = struct{}{}
	}

	var extra []string
	for k := range obj {
		if _, ok := declared[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return extra
}

func mismatch(path string, format string, args ...any) error {
	return errors.Wrapf(wallet.ErrSchemaMismatch, path+": "+format, args...)
}
