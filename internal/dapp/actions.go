package dapp

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/chain"
	"github/chapool/cross-dapp/internal/wallet/gate"
	"github/chapool/cross-dapp/internal/wallet/tx"
	"github/chapool/cross-dapp/internal/wallet/typeddata"
)

const (
	ActionConnect           = "connect"
	ActionNetwork           = "network"
	ActionPersonalSign      = "personal_sign"
	ActionSignTypedData     = "sign_typed_data"
	ActionSendNative        = "send_native"
	ActionSendERC20         = "send_erc20"
	ActionSendERC20FeePayer = "send_erc20_fee_payer"
	ActionGetBalance        = "get_balance"
	ActionGetTokens         = "get_tokens"
	ActionReadContract      = "read_contract"
	ActionDisconnect        = "disconnect"
)

// ArgChain selects the target of the network action.
const ArgChain = "chain"

func (a *App) catalog() []Action {
	return []Action{
		{Descriptor: gate.Descriptor{ID: ActionConnect, Label: "Connect", Account: gate.AccountForbidden}, Run: a.connect},
		{Descriptor: gate.Descriptor{ID: ActionNetwork, Label: "Network"}, Run: a.network},
		{Descriptor: gate.Descriptor{ID: ActionPersonalSign, Label: "Personal Sign", Account: gate.AccountRequired}, Run: a.personalSign},
		{Descriptor: gate.Descriptor{ID: ActionSignTypedData, Label: "Sign Typed Data", Account: gate.AccountRequired}, Run: a.signTypedData},
		{Descriptor: gate.Descriptor{ID: ActionSendNative, Label: "Send 1 Cross", Account: gate.AccountRequired}, Run: a.sendNative},
		{Descriptor: gate.Descriptor{ID: ActionSendERC20, Label: "Send 1 ERC20", Account: gate.AccountRequired}, Run: a.sendERC20(wallet.TxKindLegacy)},
		{Descriptor: gate.Descriptor{ID: ActionSendERC20FeePayer, Label: "Send 1 ERC20 with FeePayer", Account: gate.AccountRequired}, Run: a.sendERC20(wallet.TxKindFeePayerSponsored)},
		{Descriptor: gate.Descriptor{ID: ActionGetBalance, Label: "Get Balance", Account: gate.AccountRequired}, Run: a.getBalance},
		{Descriptor: gate.Descriptor{ID: ActionGetTokens, Label: "Get Tokens", Account: gate.AccountRequired}, Run: a.getTokens},
		{
			Descriptor: gate.Descriptor{
				ID:            ActionReadContract,
				Label:         "Read Contract",
				Account:       gate.AccountRequired,
				AllowedChains: gate.Chains(chain.CrossTestnet),
			},
			Run: a.readContract,
		},
		{Descriptor: gate.Descriptor{ID: ActionDisconnect, Label: "Disconnect", Account: gate.AccountRequired}, Run: a.disconnect},
	}
}

func (a *App) connect(ctx context.Context, _ Args) (*Result, error) {
	if err := a.wallet.Connect(ctx); err != nil {
		return nil, err
	}
	return &Result{Message: "Wallet connected"}, nil
}

func (a *App) disconnect(ctx context.Context, _ Args) (*Result, error) {
	if err := a.wallet.Disconnect(ctx); err != nil {
		return nil, err
	}
	return &Result{Message: "Wallet disconnected"}, nil
}

// network lists the supported chains, or asks the wallet to switch when a chain is given.
func (a *App) network(ctx context.Context, args Args) (*Result, error) {
	raw := strings.TrimSpace(args[ArgChain])
	if raw == "" {
		var b strings.Builder
		b.WriteString("Networks:\n")
		for _, c := range a.chains.ListChains() {
			fmt.Fprintf(&b, "%s: %s\n", c.ID, c.Name)
		}
		return &Result{Message: b.String()}, nil
	}

	id, err := wallet.ParseChainID(raw)
	if err != nil {
		return nil, errors.Wrapf(wallet.ErrInvalidArguments, "chain %q: %v", raw, err)
	}
	if err := a.wallet.SwitchChain(ctx, id); err != nil {
		return nil, err
	}

	return &Result{Message: "Switching network to " + id.String()}, nil
}

func (a *App) personalSign(ctx context.Context, _ Args) (*Result, error) {
	account, ok := a.router.State().CurrentAccount()
	if !ok {
		return nil, wallet.ErrNotConnected
	}

	message := []byte(personalSignMessage)
	signature, err := a.wallet.SignMessage(ctx, account, message, &wallet.CustomData{Metadata: personalSignNote})
	a.metrics.ObserveSignature("personal_sign", err)
	if err != nil {
		return nil, err
	}

	valid, err := a.wallet.VerifyMessageSignature(ctx, account, message, signature)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify signature")
	}

	sig := hexutil.Encode(signature)
	return &Result{
		Message:   fmt.Sprintf("Signature finished: %s valid? %t", sig, valid),
		Signature: sig,
		Valid:     &valid,
	}, nil
}

func (a *App) signTypedData(ctx context.Context, _ Args) (*Result, error) {
	account, ok := a.router.State().CurrentAccount()
	if !ok {
		return nil, wallet.ErrNotConnected
	}

	payload, err := a.builder.Build(typeddata.DomainOverrides{}, typeddata.MailPrimaryType, typeddata.ExampleMail())
	if err != nil {
		return nil, err
	}

	serialized, err := payload.Serialize()
	if err != nil {
		return nil, err
	}

	signature, err := a.wallet.SignTypedData(ctx, account, serialized)
	a.metrics.ObserveSignature("typed_data_v4", err)
	if err != nil {
		return nil, err
	}

	valid, err := a.builder.Verify(ctx, account, payload, signature)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify typed data signature")
	}

	return &Result{
		Message:   fmt.Sprintf("Signature valid: %t", valid),
		Signature: hexutil.Encode(signature),
		Valid:     &valid,
	}, nil
}

func (a *App) sendNative(ctx context.Context, _ Args) (*Result, error) {
	_, c, err := a.active()
	if err != nil {
		return nil, err
	}

	value, err := ToWei("1", c.Decimals)
	if err != nil {
		return nil, err
	}

	hash, err := a.orch.Submit(ctx, &wallet.TransactionRequest{
		To:    SampleRecipient,
		Value: value,
		Kind:  wallet.TxKindLegacy,
		Metadata: map[string]string{
			"title":       "Custom Data",
			"description": "You are about to send 1 " + c.NativeSymbol + " to the address",
		},
	})
	if err != nil {
		return nil, err
	}

	return a.track(ctx, hash)
}

func (a *App) sendERC20(kind wallet.TxKind) Handler {
	return func(ctx context.Context, _ Args) (*Result, error) {
		amount, err := ToWei("1", 18)
		if err != nil {
			return nil, err
		}

		hash, err := a.orch.WriteContract(ctx, SampleToken, SampleERC20ABI, "transfer",
			[]any{SampleRecipient.Hex(), amount},
			tx.WriteOptions{
				Value:      new(big.Int),
				Kind:       kind,
				CustomData: &wallet.CustomData{Metadata: tokenTransferNote},
			})
		if err != nil {
			return nil, err
		}

		return a.track(ctx, hash)
	}
}

// track polls hash to a terminal outcome. A poll abandoned by ctx still
// reports the hash with a pending outcome.
func (a *App) track(ctx context.Context, hash common.Hash) (*Result, error) {
	outcome, err := a.orch.Poll(ctx, hash, a.poll)
	result := &Result{TxHash: hash.Hex(), Outcome: &outcome}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result.Message = fmt.Sprintf("Tx hash: %s, stopped polling", hash.Hex())
			return result, nil
		}
		return nil, err
	}

	switch outcome.Status {
	case tx.StatusConfirmed:
		result.Message = fmt.Sprintf("Successfully retrieved transaction %s", hash.Hex())
	case tx.StatusTimedOut:
		result.Message = fmt.Sprintf("Transaction %s not final after %s", hash.Hex(), a.poll.MaxWait)
	default:
		result.Message = fmt.Sprintf("Transaction %s %s: %s", hash.Hex(), outcome.Status, outcome.Reason)
	}

	return result, nil
}

func (a *App) getBalance(ctx context.Context, _ Args) (*Result, error) {
	account, c, err := a.active()
	if err != nil {
		return nil, err
	}

	balance, err := a.wallet.Balance(ctx, c.ID, account)
	if err != nil {
		return nil, err
	}

	return &Result{Message: fmt.Sprintf("Balance: %s %s", FromWei(balance, c.Decimals), c.NativeSymbol)}, nil
}

func (a *App) getTokens(ctx context.Context, _ Args) (*Result, error) {
	account, c, err := a.active()
	if err != nil {
		return nil, err
	}

	native, err := a.wallet.Balance(ctx, c.ID, account)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("Tokens:\n")
	fmt.Fprintf(&b, "%s: %s\n", c.NativeSymbol, FromWei(native, c.Decimals))

	for _, token := range c.Tokens {
		balance, err := a.wallet.TokenBalance(ctx, c.ID, token.ContractAddress(), account)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s balance", token.Symbol)
		}
		fmt.Fprintf(&b, "%s: %s\n", token.Symbol, FromWei(balance, token.Decimals))
	}

	return &Result{Message: b.String()}, nil
}

func (a *App) readContract(ctx context.Context, _ Args) (*Result, error) {
	testnet := chain.CrossTestnet

	name, err := tx.ReadContract[string](ctx, a.orch, tx.ReadCall{
		Chain:   &testnet,
		Address: SampleToken,
		ABI:     SampleERC20ABI,
		Method:  "name",
	})
	if err != nil {
		return nil, err
	}

	balance, err := tx.ReadContract[*big.Int](ctx, a.orch, tx.ReadCall{
		Chain:   &testnet,
		Address: SampleToken,
		ABI:     SampleERC20ABI,
		Method:  "balanceOf",
		Args:    []any{SampleHolder.Hex()},
	})
	if err != nil {
		return nil, err
	}

	return &Result{Message: fmt.Sprintf("Test Account owns: %s %s tokens on the active chain.", FromWei(balance, 18), name)}, nil
}
