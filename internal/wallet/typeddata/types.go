package typeddata

import (
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github/chapool/cross-dapp/internal/wallet"
)

const domainType = "EIP712Domain"

var (
	intPattern   = regexp.MustCompile(`^u?int([0-9]*)$`)
	bytesPattern = regexp.MustCompile(`^bytes([0-9]+)$`)
	arrayPattern = regexp.MustCompile(`^(.+)\[([0-9]*)\]$`)
)

// Field is a single (name, type) member of a struct type.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema maps struct type names to their ordered fields. The domain type
// is derived from the Domain and must not be declared here.
type Schema map[string][]Field

// Domain is the signing domain of a payload.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract *common.Address
}

// DomainOverrides replaces base domain fields that are set. The chain id
// always comes from the active session chain.
type DomainOverrides struct {
	Name              *string
	Version           *string
	VerifyingContract *common.Address
}

// Message is a normalized message tree: struct values are map[string]any,
// arrays []any, integers decimal strings, addresses checksummed hex and
// bytes lowercase 0x hex.
type Message = map[string]any

// Payload is a validated, domain-scoped typed-data document.
type Payload struct {
	Domain      Domain
	PrimaryType string
	Types       Schema
	Message     Message
}

// Validate checks that every type referenced from any declared struct
// resolves to a primitive or another declared struct.
func (s Schema) Validate() error {
	if _, ok := s[domainType]; ok {
		return errors.Wrapf(wallet.ErrSchemaMismatch, "%s is derived from the domain and cannot be declared", domainType)
	}

	for name, fields := range s {
		if len(fields) == 0 {
			return errors.Wrapf(wallet.ErrSchemaMismatch, "type %s has no fields", name)
		}

		seen := make(map[string]struct{}, len(fields))
		for _, f := range fields {
			if f.Name == "" {
				return errors.Wrapf(wallet.ErrSchemaMismatch, "type %s has an unnamed field", name)
			}
			if _, dup := seen[f.Name]; dup {
				return errors.Wrapf(wallet.ErrSchemaMismatch, "type %s declares field %q twice", name, f.Name)
			}
			seen[f.Name] = struct{}{}

			base := baseType(f.Type)
			if isPrimitive(base) {
				continue
			}
			if _, ok := s[base]; !ok {
				return errors.Wrapf(wallet.ErrSchemaMismatch, "type %s field %q references undefined type %s", name, f.Name, base)
			}
		}
	}

	return nil
}

// domainFields returns the EIP712Domain members present in d, in canonical order.
func (d Domain) domainFields() []Field {
	fields := make([]Field, 0, 4)
	if d.Name != "" {
		fields = append(fields, Field{Name: "name", Type: "string"})
	}
	if d.Version != "" {
		fields = append(fields, Field{Name: "version", Type: "string"})
	}
	if d.ChainID != nil {
		fields = append(fields, Field{Name: "chainId", Type: "uint256"})
	}
	if d.VerifyingContract != nil {
		fields = append(fields, Field{Name: "verifyingContract", Type: "address"})
	}
	return fields
}

func (d Domain) merge(o DomainOverrides) Domain {
	merged := d
	if o.Name != nil {
		merged.Name = *o.Name
	}
	if o.Version != nil {
		merged.Version = *o.Version
	}
	if o.VerifyingContract != nil {
		c := *o.VerifyingContract
		merged.VerifyingContract = &c
	}
	return merged
}

// arrayElem splits "T[]" or "T[N]" into T and N (-1 when dynamic).
func arrayElem(typ string) (string, int, bool) {
	m := arrayPattern.FindStringSubmatch(typ)
	if m == nil {
		return "", 0, false
	}
	if m[2] == "" {
		return m[1], -1, true
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

func baseType(typ string) string {
	for {
		elem, _, ok := arrayElem(typ)
		if !ok {
			return typ
		}
		typ = elem
	}
}

func isPrimitive(typ string) bool {
	switch typ {
	case "address", "bool", "string", "bytes":
		return true
	}
	if _, ok := intBits(typ); ok {
		return true
	}
	if _, ok := fixedBytes(typ); ok {
		return true
	}
	return false
}

func isInteger(typ string) bool {
	_, ok := intBits(typ)
	return ok
}

func intBits(typ string) (int, bool) {
	m := intPattern.FindStringSubmatch(typ)
	if m == nil {
		return 0, false
	}
	if m[1] == "" {
		return 256, true
	}
	bits, err := strconv.Atoi(m[1])
	if err != nil || bits == 0 || bits > 256 || bits%8 != 0 {
		return 0, false
	}
	return bits, true
}

func fixedBytes(typ string) (int, bool) {
	m := bytesPattern.FindStringSubmatch(typ)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 || n > 32 {
		return 0, false
	}
	return n, true
}

func signed(typ string) bool {
	return !strings.HasPrefix(typ, "uint")
}
