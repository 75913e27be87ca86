package dapp

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github/chapool/cross-dapp/internal/config"
	"github/chapool/cross-dapp/internal/metrics"
	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/chain"
	"github/chapool/cross-dapp/internal/wallet/keystore"
	"github/chapool/cross-dapp/internal/wallet/rpc"
	"github/chapool/cross-dapp/internal/wallet/session"
	"github/chapool/cross-dapp/internal/wallet/signer"
	"github/chapool/cross-dapp/internal/wallet/tx"
	"github/chapool/cross-dapp/internal/wallet/typeddata"
	"github/chapool/cross-dapp/internal/wallet/walletconnect"
)

//nolint:ireturn
func NewChainService(cfg config.Dapp) (chain.Service, error) {
	chains, err := chain.LoadCatalog(cfg.Chains.CatalogFile)
	if err != nil {
		return nil, err
	}
	return chain.NewService(chains)
}

func NewRPCPool(cfg config.Dapp, chains chain.Service) (*rpc.Pool, func()) {
	pool := rpc.NewPool(chains, cfg.RPC)
	return pool, pool.Close
}

func NewRouter(chains chain.Service, m *metrics.Metrics) *session.Router {
	return session.NewRouter(session.NewState(), chains, m)
}

// NewWallet returns the dev signer when it is enabled and a WalletConnect
// client dialed to the bridge otherwise.
//
//nolint:ireturn
func NewWallet(ctx context.Context, cfg config.Dapp, pool *rpc.Pool, display walletconnect.DisplayFunc) (Wallet, func(), error) {
	defaultChain, err := wallet.ParseChainID(cfg.Chains.Default)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid chains.default")
	}

	if cfg.DevSigner.Enabled {
		mnemonic := cfg.DevSigner.Mnemonic
		if cfg.DevSigner.KeystoreFile != "" {
			mnemonic, err = keystore.LoadMnemonic(cfg.DevSigner.KeystoreFile, cfg.DevSigner.KeystorePassword)
			if err != nil {
				return nil, nil, errors.Wrap(err, "failed to unlock dev signer keystore")
			}
		}

		key, err := signer.DeriveKey(mnemonic, cfg.DevSigner.Passphrase, cfg.DevSigner.DerivationPath)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to derive dev signer key")
		}

		local := signer.NewLocal(key, pool, defaultChain)
		log.Warn().Str("account", local.Address().Hex()).Msg("Using in-process dev signer")

		return local, func() {}, nil
	}

	client, err := walletconnect.NewClient(walletconnect.Options{
		Bridge:  cfg.WalletConnect,
		Project: cfg.Project,
		Chain:   defaultChain,
		Display: display,
	}, signer.NewChainReader(pool))
	if err != nil {
		return nil, nil, err
	}

	if err := client.Dial(ctx); err != nil {
		return nil, nil, err
	}

	return client, client.Close, nil
}

// NewOutcomeStore keeps outcomes in Redis when enabled, in memory otherwise.
//
//nolint:ireturn
func NewOutcomeStore(ctx context.Context, cfg config.Dapp) (tx.Store, func(), error) {
	if !cfg.Redis.Enabled {
		return tx.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, errors.Wrap(err, "failed to connect to redis")
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close redis client")
		}
	}

	return tx.NewRedisStore(client, tx.WithPrefix(cfg.Redis.Prefix), tx.WithTTL(cfg.Redis.TTL)), cleanup, nil
}

func NewPollOptions(cfg config.Dapp) tx.PollOptions {
	return tx.PollOptionsFromConfig(cfg.Poll)
}

func NewOrchestrator(router *session.Router, chains chain.Service, w Wallet, store tx.Store, m *metrics.Metrics, poll tx.PollOptions) *tx.Orchestrator {
	return tx.New(router.State(), chains, w, poll, tx.WithStore(store), tx.WithMetrics(m))
}

func NewTypedDataBuilder(router *session.Router, w Wallet) (*typeddata.Builder, error) {
	return typeddata.NewBuilder(typeddata.MailDomain(), typeddata.MailSchema(), router.State(), w)
}
