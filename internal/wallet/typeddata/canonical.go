package typeddata

import (
	"bytes"
	"encoding/json"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github/chapool/cross-dapp/internal/wallet"
)

// Serialize renders the payload as eth_signTypedData_v4 JSON. Keys follow
// the schema's field order, so equal payloads always produce equal bytes.
func (p *Payload) Serialize() (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`{"types":{`)
	names := make([]string, 0, len(p.Types))
	for name := range p.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	names = append([]string{domainType}, names...)

	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		fields := p.Types[name]
		if name == domainType {
			fields = p.Domain.domainFields()
		}
		writeString(&buf, name)
		buf.WriteString(`:[`)
		for j, f := range fields {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(`{"name":`)
			writeString(&buf, f.Name)
			buf.WriteString(`,"type":`)
			writeString(&buf, f.Type)
			buf.WriteByte('}')
		}
		buf.WriteByte(']')
	}

	buf.WriteString(`},"primaryType":`)
	writeString(&buf, p.PrimaryType)

	buf.WriteString(`,"domain":{`)
	for i, f := range p.Domain.domainFields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeString(&buf, f.Name)
		buf.WriteByte(':')
		switch f.Name {
		case "name":
			writeString(&buf, p.Domain.Name)
		case "version":
			writeString(&buf, p.Domain.Version)
		case "chainId":
			buf.WriteString(p.Domain.ChainID.String())
		case "verifyingContract":
			writeString(&buf, p.Domain.VerifyingContract.Hex())
		}
	}

	buf.WriteString(`},"message":`)
	if err := p.writeValue(&buf, p.PrimaryType, p.Message, p.PrimaryType); err != nil {
		return "", err
	}
	buf.WriteByte('}')

	return buf.String(), nil
}

func (p *Payload) writeValue(buf *bytes.Buffer, typ string, value any, path string) error {
	if elem, _, ok := arrayElem(typ); ok {
		items, ok := value.([]any)
		if !ok {
			return mismatch(path, "expected normalized array, got %T", value)
		}
		buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := p.writeValue(buf, elem, item, path); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}

	if fields, ok := p.Types[typ]; ok {
		obj, ok := value.(map[string]any)
		if !ok {
			return mismatch(path, "expected normalized %s object, got %T", typ, value)
		}
		buf.WriteByte('{')
		for i, f := range fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, f.Name)
			buf.WriteByte(':')
			if err := p.writeValue(buf, f.Type, obj[f.Name], path+"."+f.Name); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	}

	switch v := value.(type) {
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		if isInteger(typ) && jsSafe(v) {
			buf.WriteString(v)
		} else {
			writeString(buf, v)
		}
	default:
		return mismatch(path, "unexpected normalized value %T", value)
	}

	return nil
}

// maxSafeInteger is the largest integer a JavaScript wallet reads from a JSON
// number without rounding. Larger values are written as decimal strings.
var maxSafeInteger = big.NewInt(1<<53 - 1)

func jsSafe(decimal string) bool {
	i, ok := new(big.Int).SetString(decimal, 10)
	return ok && i.CmpAbs(maxSafeInteger) <= 0
}

func writeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// Parse reads a serialized payload back, validating the message against
// the types embedded in the document.
func Parse(data string) (*Payload, error) {
	if !gjson.Valid(data) {
		return nil, errors.Wrap(wallet.ErrSchemaMismatch, "typed data is not valid JSON")
	}

	doc := gjson.Parse(data)

	schema := make(Schema)
	doc.Get("types").ForEach(func(key, value gjson.Result) bool {
		if key.String() == domainType {
			return true
		}
		var fields []Field
		value.ForEach(func(_, f gjson.Result) bool {
			fields = append(fields, Field{Name: f.Get("name").String(), Type: f.Get("type").String()})
			return true
		})
		schema[key.String()] = fields
		return true
	})
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	primaryType := doc.Get("primaryType").String()
	if primaryType == "" {
		return nil, errors.Wrap(wallet.ErrSchemaMismatch, "missing primaryType")
	}

	domain, err := parseDomain(doc.Get("domain"))
	if err != nil {
		return nil, err
	}

	message, err := schema.normalizeStruct(primaryType, plain(doc.Get("message")), primaryType)
	if err != nil {
		return nil, err
	}

	return &Payload{
		Domain:      domain,
		PrimaryType: primaryType,
		Types:       schema,
		Message:     message,
	}, nil
}

func parseDomain(r gjson.Result) (Domain, error) {
	d := Domain{
		Name:    r.Get("name").String(),
		Version: r.Get("version").String(),
	}

	if c := r.Get("chainId"); c.Exists() {
		id, err := toBigInt(plain(c), "domain.chainId")
		if err != nil {
			return Domain{}, err
		}
		d.ChainID = id
	}

	if v := r.Get("verifyingContract"); v.Exists() {
		if !common.IsHexAddress(v.String()) {
			return Domain{}, mismatch("domain.verifyingContract", "invalid address %q", v.String())
		}
		addr := common.HexToAddress(v.String())
		d.VerifyingContract = &addr
	}

	return d, nil
}

// plain converts a gjson value into the generic tree normalize expects,
// keeping numbers as their literal text.
func plain(r gjson.Result) any {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return json.Number(r.Raw)
	case gjson.String:
		return r.Str
	case gjson.JSON:
		if r.IsArray() {
			items := r.Array()
			out := make([]any, len(items))
			for i, item := range items {
				out[i] = plain(item)
			}
			return out
		}
		out := make(map[string]any)
		r.ForEach(func(key, value gjson.Result) bool {
			out[key.String()] = plain(value)
			return true
		})
		return out
	default:
		return nil
	}
}
