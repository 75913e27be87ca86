package rpc

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github/chapool/cross-dapp/internal/config"
	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/chain"
)

// Pool hands out one RPCClient per chain. Every client of a pool shares
// the same rate limiter.
type Pool struct {
	chains  chain.Service
	opts    Options
	mu      sync.Mutex
	clients map[wallet.ChainID]*RPCClient
}

func NewPool(chains chain.Service, cfg config.RPC) *Pool {
	opts := Options{CallTimeout: cfg.CallTimeout}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return NewPoolWithOptions(chains, opts)
}

// NewPoolWithOptions is NewPool with explicit client options.
func NewPoolWithOptions(chains chain.Service, opts Options) *Pool {
	return &Pool{
		chains:  chains,
		opts:    opts,
		clients: make(map[wallet.ChainID]*RPCClient),
	}
}

// Client returns the client of id, creating it on first use.
func (p *Pool) Client(id wallet.ChainID) (*RPCClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[id]; ok {
		return client, nil
	}

	c, ok := p.chains.GetChain(id)
	if !ok {
		return nil, errors.Wrapf(wallet.ErrChainMismatch, "no RPC endpoint for chain %s", id)
	}

	client, err := NewRPCClient(p.chains.ParseRPCURLs(c.RPCURL), p.opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create RPC client for %s", id)
	}

	p.clients[id] = client
	return client, nil
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, client := range p.clients {
		client.Close()
		delete(p.clients, id)
	}
}
