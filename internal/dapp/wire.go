//go:build wireinject

package dapp

import (
	"context"

	"github.com/google/wire"

	"github/chapool/cross-dapp/internal/config"
	"github/chapool/cross-dapp/internal/metrics"
	"github/chapool/cross-dapp/internal/wallet/walletconnect"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// appSet groups the providers required to assemble an App.
var appSet = wire.NewSet(
	NewApp,
	NewChainService,
	NewRPCPool,
	NewRouter,
	NewWallet,
	NewOutcomeStore,
	NewPollOptions,
	NewOrchestrator,
	NewTypedDataBuilder,
	metrics.New,
)

// InitApp wires the session, wallet and orchestration layers from cfg.
func InitApp(
	ctx context.Context,
	cfg config.Dapp,
	display walletconnect.DisplayFunc,
) (*App, func(), error) {
	wire.Build(appSet)
	return new(App), nil, nil
}
