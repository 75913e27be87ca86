package dapp

import "github.com/ethereum/go-ethereum/common"

// SampleERC20ABI covers the calls the sample actions make on the sample token.
const SampleERC20ABI = `[
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"nonpayable","type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"payable":false,"stateMutability":"view","type":"function"}
]`

var (
	// SampleRecipient receives the demo transfers.
	SampleRecipient = common.HexToAddress("0x920A31f0E48739C3FbB790D992b0690f7F5C42ea")
	// SampleToken is the sample ERC20 deployed on Cross Testnet.
	SampleToken = common.HexToAddress("0x88f8146EB4120dA51Fc978a22933CbeB71D8Bde6")
	// SampleHolder is the account whose token balance the read action reports.
	SampleHolder = common.HexToAddress("0xC1B55cfc80D0e9fB9ce7e31ecEbA4782Fcc4455D")
)

const (
	personalSignMessage = "Hello from CrossSdk Go!"
	personalSignNote    = "You are about to sign a message. This is plain text type custom data."
	tokenTransferNote   = "Meta data is required in CrossSdk."
)
