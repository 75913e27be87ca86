package poll

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github/chapool/cross-dapp/internal/dapp"
	"github/chapool/cross-dapp/internal/metrics"
	"github/chapool/cross-dapp/internal/util/command"
	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/session"
	"github/chapool/cross-dapp/internal/wallet/signer"
	"github/chapool/cross-dapp/internal/wallet/tx"
)

const (
	chainFlag   = "chain"
	maxWaitFlag = "max-wait"
)

var errReadOnly = errors.New("poll does not submit transactions")

// readOnly serves the orchestrator's chain reads without a wallet.
type readOnly struct {
	*signer.ChainReader
}

func (readOnly) SendTransaction(context.Context, wallet.ChainID, common.Address, *wallet.TransactionRequest) (common.Hash, error) {
	return common.Hash{}, errReadOnly
}

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll <tx-hash>",
		Short: "Polls a transaction until it is final",
		Long: `Polls the status of a transaction hash on a chain until it is confirmed,
fails or the configured maximum wait elapses, then prints the outcome as JSON.
The outcome is recorded in the configured outcome store.`,
		Args: cobra.ExactArgs(1),
		RunE: pollCmdFunc,
	}

	command.AddConfigFlag(cmd)
	cmd.Flags().String(chainFlag, "", "CAIP-2 chain id, defaults to chains.default")
	cmd.Flags().Duration(maxWaitFlag, 0, "Overrides poll.max_wait")

	return cmd
}

func pollCmdFunc(cmd *cobra.Command, args []string) error {
	cfg, err := command.LoadConfig(cmd)
	if err != nil {
		return err
	}

	raw, err := hexutil.Decode(args[0])
	if err != nil || len(raw) != common.HashLength {
		return errors.Errorf("invalid transaction hash %q", args[0])
	}
	hash := common.BytesToHash(raw)

	chainArg, _ := cmd.Flags().GetString(chainFlag)
	if chainArg == "" {
		chainArg = cfg.Chains.Default
	}
	chainID, err := wallet.ParseChainID(chainArg)
	if err != nil {
		return err
	}

	opts := dapp.NewPollOptions(cfg)
	opts.Chain = &chainID
	if maxWait, _ := cmd.Flags().GetDuration(maxWaitFlag); maxWait > 0 {
		opts.MaxWait = maxWait
	}

	ctx := cmd.Context()

	chains, err := dapp.NewChainService(cfg)
	if err != nil {
		return err
	}
	if _, ok := chains.GetChain(chainID); !ok {
		return errors.Wrapf(wallet.ErrNoActiveChain, "chain %s not in catalog", chainID)
	}

	pool, closePool := dapp.NewRPCPool(cfg, chains)
	defer closePool()

	store, closeStore, err := dapp.NewOutcomeStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	orch := tx.New(session.NewState(), chains, readOnly{signer.NewChainReader(pool)}, opts,
		tx.WithStore(store), tx.WithMetrics(metrics.New()))

	outcome, err := orch.Poll(ctx, hash, opts)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if outcome.Status != tx.StatusConfirmed {
		return errors.Errorf("transaction %s %s", hash.Hex(), outcome.Status)
	}

	return nil
}
