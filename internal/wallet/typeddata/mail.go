package typeddata

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const MailPrimaryType = "Mail"

// MailSchema is the "Ether Mail" schema used by the typed-data demo.
func MailSchema() Schema {
	return Schema{
		"Person": {
			{Name: "name", Type: "string"},
			{Name: "wallets", Type: "address[]"},
		},
		"Group": {
			{Name: "name", Type: "string"},
			{Name: "members", Type: "Person[]"},
		},
		"Mail": {
			{Name: "from", Type: "Person"},
			{Name: "to", Type: "Person[]"},
			{Name: "contents", Type: "string"},
		},
	}
}

func MailDomain() Domain {
	contract := common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC")
	return Domain{
		Name:              "Ether Mail",
		Version:           "1",
		ChainID:           big.NewInt(1),
		VerifyingContract: &contract,
	}
}

// ExampleMail is the message signed by the typed-data demo.
func ExampleMail() map[string]any {
	return map[string]any{
		"from": map[string]any{
			"name": "Cow",
			"wallets": []string{
				"0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
				"0xDeaDbeefdEAdbeefdEadbEEFdeadbeEFdEaDbeeF",
			},
		},
		"to": []map[string]any{
			{
				"name": "Bob",
				"wallets": []string{
					"0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB",
					"0xB0BdaBea57B0BDABeA57b0bdABEA57b0BDabEa57",
					"0xB0B0b0b0b0b0B000000000000000000000000000",
				},
			},
		},
		"contents": "Hello, Bob!",
	}
}
