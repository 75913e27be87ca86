package chain

import (
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github/chapool/cross-dapp/internal/wallet"
)

const (
	CrossMainnet wallet.ChainID = "eip155:612055"
	CrossTestnet wallet.ChainID = "eip155:612044"
	Ethereum     wallet.ChainID = "eip155:1"
)

const defaultDecimals = 18

// DefaultCatalog returns the chains available without a catalog file.
func DefaultCatalog() []*Chain {
	return []*Chain{
		{
			ID:           Ethereum,
			Name:         "Ethereum",
			RPCURL:       "https://cloudflare-eth.com",
			NativeSymbol: "ETH",
			Decimals:     defaultDecimals,
		},
		{
			ID:           CrossMainnet,
			Name:         "Cross Mainnet",
			RPCURL:       "https://mainnet.crosstoken.io:22001",
			NativeSymbol: "CROSS",
			Decimals:     defaultDecimals,
			FeePayer:     true,
		},
		{
			ID:           CrossTestnet,
			Name:         "Cross Testnet",
			RPCURL:       "https://testnet.crosstoken.io:22001",
			NativeSymbol: "CROSS",
			Decimals:     defaultDecimals,
			FeePayer:     true,
			Tokens: []Token{
				{Symbol: "SAMPLE", Address: "0x88f8146EB4120dA51Fc978a22933CbeB71D8Bde6", Decimals: defaultDecimals},
			},
		},
	}
}

// service 实现 Service 接口
type service struct {
	chains map[wallet.ChainID]*Chain
}

// NewService builds a chain service from chains. Duplicate ids are rejected.
//
//nolint:ireturn
func NewService(chains []*Chain) (Service, error) {
	byID := make(map[wallet.ChainID]*Chain, len(chains))
	for _, c := range chains {
		id, err := wallet.ParseChainID(string(c.ID))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid chain %q", c.Name)
		}
		if _, exists := byID[id]; exists {
			return nil, errors.Errorf("duplicate chain %s", id)
		}
		if c.Decimals == 0 {
			c.Decimals = defaultDecimals
		}
		c.ID = id
		byID[id] = c
	}

	return &service{chains: byID}, nil
}

// LoadCatalog decodes a TOML chain catalog. An empty path yields DefaultCatalog.
func LoadCatalog(path string) ([]*Chain, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read chain catalog")
	}

	var file catalogFile
	if _, err := toml.Decode(string(data), &file); err != nil {
		return nil, errors.Wrap(err, "failed to decode chain catalog")
	}

	if len(file.Chains) == 0 {
		return nil, errors.New("chain catalog is empty")
	}

	return file.Chains, nil
}

// GetChain 根据 chain id 查询链配置
func (s *service) GetChain(id wallet.ChainID) (*Chain, bool) {
	c, ok := s.chains[id]
	return c, ok
}

// ListChains 查询所有链配置
func (s *service) ListChains() []*Chain {
	chains := make([]*Chain, 0, len(s.chains))
	for _, c := range s.chains {
		chains = append(chains, c)
	}

	sort.Slice(chains, func(i, j int) bool {
		return chains[i].ID < chains[j].ID
	})

	return chains
}

// Resolve parses raw and reports whether it is a supported chain.
func (s *service) Resolve(raw string) (wallet.ChainID, bool) {
	id, err := wallet.ParseChainID(raw)
	if err != nil {
		return "", false
	}

	if _, ok := s.chains[id]; !ok {
		return "", false
	}

	return id, true
}

// ParseRPCURLs 解析 RPC URL（支持多个，逗号分隔）
func (s *service) ParseRPCURLs(rpcURL string) []string {
	if rpcURL == "" {
		return nil
	}

	urls := strings.Split(rpcURL, ",")
	result := make([]string, 0, len(urls))

	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url != "" {
			result = append(result, url)
		}
	}

	return result
}
