package rpc

import (
	"context"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github/chapool/cross-dapp/internal/wallet"
)

// Dialer opens a client for a single URL.
type Dialer func(ctx context.Context, url string) (*ethclient.Client, error)

// RPCClient 封装以太坊 RPC 客户端，支持多个 URL 和故障转移
type RPCClient struct {
	urls    []string
	dial    Dialer
	limiter *rate.Limiter
	timeout time.Duration

	mu      sync.Mutex
	clients []*ethclient.Client
	current int // 当前使用的客户端索引
}

// Options tunes an RPCClient. A nil Limiter disables rate limiting.
type Options struct {
	Limiter     *rate.Limiter
	CallTimeout time.Duration
	Dial        Dialer
}

// NewRPCClient 创建新的 RPC 客户端. Connections are opened lazily.
func NewRPCClient(urls []string, opts Options) (*RPCClient, error) {
	if len(urls) == 0 {
		return nil, errors.New("at least one RPC URL is required")
	}

	dial := opts.Dial
	if dial == nil {
		dial = ethclient.DialContext
	}

	return &RPCClient{
		urls:    urls,
		dial:    dial,
		limiter: opts.Limiter,
		timeout: opts.CallTimeout,
		clients: make([]*ethclient.Client, len(urls)),
	}, nil
}

// Close 关闭所有客户端连接
func (c *RPCClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, client := range c.clients {
		if client != nil {
			client.Close()
			c.clients[i] = nil
		}
	}
}

// ChainID 获取链 ID
func (c *RPCClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := c.do(ctx, "eth_chainId", func(ctx context.Context, client *ethclient.Client) (err error) {
		id, err = client.ChainID(ctx)
		return err
	})
	return id, err
}

// BalanceAt returns the balance of an address at the latest known block.
func (c *RPCClient) BalanceAt(ctx context.Context, address common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.do(ctx, "eth_getBalance", func(ctx context.Context, client *ethclient.Client) (err error) {
		balance, err = client.BalanceAt(ctx, address, nil)
		return err
	})
	return balance, err
}

// PendingNonceAt returns the pending nonce for the given address.
func (c *RPCClient) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	var nonce uint64
	err := c.do(ctx, "eth_getTransactionCount", func(ctx context.Context, client *ethclient.Client) (err error) {
		nonce, err = client.PendingNonceAt(ctx, address)
		return err
	})
	return nonce, err
}

// SuggestGasPrice 建议 legacy 交易的 Gas 价格
func (c *RPCClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var price *big.Int
	err := c.do(ctx, "eth_gasPrice", func(ctx context.Context, client *ethclient.Client) (err error) {
		price, err = client.SuggestGasPrice(ctx)
		return err
	})
	return price, err
}

// SuggestGasTipCap 建议 Gas 小费上限 (EIP-1559)
func (c *RPCClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var tip *big.Int
	err := c.do(ctx, "eth_maxPriorityFeePerGas", func(ctx context.Context, client *ethclient.Client) (err error) {
		tip, err = client.SuggestGasTipCap(ctx)
		return err
	})
	return tip, err
}

// LatestBaseFee returns the base fee of the latest header, nil before London.
func (c *RPCClient) LatestBaseFee(ctx context.Context) (*big.Int, error) {
	var header *types.Header
	err := c.do(ctx, "eth_getBlockByNumber", func(ctx context.Context, client *ethclient.Client) (err error) {
		header, err = client.HeaderByNumber(ctx, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return header.BaseFee, nil
}

// EstimateGas 估算 Gas 用量
func (c *RPCClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := c.do(ctx, "eth_estimateGas", func(ctx context.Context, client *ethclient.Client) (err error) {
		gas, err = client.EstimateGas(ctx, msg)
		return err
	})
	return gas, err
}

// SendTransaction 发送已签名的交易
func (c *RPCClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.do(ctx, "eth_sendRawTransaction", func(ctx context.Context, client *ethclient.Client) error {
		return client.SendTransaction(ctx, tx)
	})
}

// TransactionReceipt 获取交易回执. ethereum.NotFound is returned unwrapped
// while the transaction is pending.
func (c *RPCClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := c.do(ctx, "eth_getTransactionReceipt", func(ctx context.Context, client *ethclient.Client) (err error) {
		receipt, err = client.TransactionReceipt(ctx, txHash)
		return err
	})
	return receipt, err
}

// CallContract executes an eth_call against the latest block.
func (c *RPCClient) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var out []byte
	err := c.do(ctx, "eth_call", func(ctx context.Context, client *ethclient.Client) (err error) {
		out, err = client.CallContract(ctx, msg, nil)
		return err
	})
	return out, err
}

func (c *RPCClient) do(ctx context.Context, method string, call func(context.Context, *ethclient.Client) error) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter")
		}
	}

	client, idx, err := c.getClient(ctx)
	if err != nil {
		return err
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err = call(callCtx, client)
	if err == nil {
		return nil
	}

	if errors.Is(err, ethereum.NotFound) {
		return err
	}

	classified := classify(err)
	if wallet.IsTransient(classified) {
		log.Warn().
			Str("url", c.urls[idx]).
			Str("method", method).
			Err(err).
			Msg("RPC call failed, switching to next node")
		c.failover(idx)
	}

	return errors.Wrapf(classified, "failed to call %s", method)
}

// getClient 获取当前可用的客户端，如果未连接则尝试拨号
func (c *RPCClient) getClient(ctx context.Context) (*ethclient.Client, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for i := 0; i < len(c.urls); i++ {
		idx := (c.current + i) % len(c.urls)
		if client := c.clients[idx]; client != nil {
			c.current = idx
			return client, idx, nil
		}

		client, err := c.dial(ctx, c.urls[idx])
		if err != nil {
			log.Warn().
				Str("url", c.urls[idx]).
				Err(err).
				Msg("Failed to connect to RPC node, trying next")
			lastErr = err
			continue
		}

		c.clients[idx] = client
		c.current = idx
		return client, idx, nil
	}

	return nil, 0, wallet.Transient(errors.Wrap(lastErr, "all RPC clients are unavailable"))
}

// failover drops the client at idx and moves on to the next URL.
func (c *RPCClient) failover(idx int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client := c.clients[idx]; client != nil {
		client.Close()
		c.clients[idx] = nil
	}
	if c.current == idx {
		c.current = (idx + 1) % len(c.urls)
	}
}

// classify marks errors that are worth retrying. A JSON-RPC error means the
// node answered and is returned as is.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return wallet.Transient(err)
	}

	var httpErr gethrpc.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= http.StatusInternalServerError {
			return wallet.Transient(err)
		}
		return err
	}

	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		return err
	}

	// transport level failure: dial, reset, malformed response
	return wallet.Transient(err)
}
