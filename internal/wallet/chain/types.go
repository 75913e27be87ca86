package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github/chapool/cross-dapp/internal/wallet"
)

// Service resolves chain identifiers delivered by the wallet into known chains.
type Service interface {
	// GetChain returns the chain registered under id.
	GetChain(id wallet.ChainID) (*Chain, bool)

	// ListChains returns every registered chain ordered by id.
	ListChains() []*Chain

	// Resolve parses raw and returns it only when it names a supported chain.
	Resolve(raw string) (wallet.ChainID, bool)

	// ParseRPCURLs splits a comma separated RPC URL list.
	ParseRPCURLs(rpcURL string) []string
}

// Chain is a supported network.
type Chain struct {
	ID           wallet.ChainID `toml:"id"`
	Name         string         `toml:"name"`
	RPCURL       string         `toml:"rpc_url"`
	NativeSymbol string         `toml:"native_symbol"`
	Decimals     int            `toml:"decimals"`
	// FeePayer marks chains where a sponsor may pay transaction fees.
	FeePayer bool    `toml:"fee_payer"`
	Tokens   []Token `toml:"tokens"`
}

// Token is an ERC20 token tracked on a chain.
type Token struct {
	Symbol   string `toml:"symbol"`
	Address  string `toml:"address"`
	Decimals int    `toml:"decimals"`
}

// ContractAddress returns the token contract as an address.
func (t Token) ContractAddress() common.Address {
	return common.HexToAddress(t.Address)
}

type catalogFile struct {
	Chains []*Chain `toml:"chains"`
}
