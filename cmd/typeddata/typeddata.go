package typeddata

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/chain"
	"github/chapool/cross-dapp/internal/wallet/signer"
	"github/chapool/cross-dapp/internal/wallet/typeddata"
)

const (
	chainFlag     = "chain"
	signatureFlag = "signature"
)

type fixedChain wallet.ChainID

func (c fixedChain) CurrentChain() (wallet.ChainID, bool) {
	return wallet.ChainID(c), true
}

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "typeddata",
		Short: "Prints the sample Mail typed data payload",
		Long: `Prints the canonical eth_signTypedData_v4 payload of the sample Mail message
scoped to a chain. With --signature the signer address is recovered instead.`,
		Args: cobra.NoArgs,
		RunE: typedDataCmdFunc,
	}

	cmd.Flags().String(chainFlag, chain.CrossTestnet.String(), "CAIP-2 chain id the domain is scoped to")
	cmd.Flags().String(signatureFlag, "", "Hex signature to recover the signer from")

	return cmd
}

func typedDataCmdFunc(cmd *cobra.Command, _ []string) error {
	chainArg, _ := cmd.Flags().GetString(chainFlag)
	chainID, err := wallet.ParseChainID(chainArg)
	if err != nil {
		return err
	}

	builder, err := typeddata.NewBuilder(typeddata.MailDomain(), typeddata.MailSchema(), fixedChain(chainID), signer.Recoverer{})
	if err != nil {
		return err
	}

	payload, err := builder.Build(typeddata.DomainOverrides{}, typeddata.MailPrimaryType, typeddata.ExampleMail())
	if err != nil {
		return err
	}

	serialized, err := payload.Serialize()
	if err != nil {
		return err
	}

	sigArg, _ := cmd.Flags().GetString(signatureFlag)
	if sigArg == "" {
		fmt.Fprintln(cmd.OutOrStdout(), serialized)
		return nil
	}

	signature, err := hexutil.Decode(sigArg)
	if err != nil {
		return errors.Wrap(err, "invalid signature")
	}

	address, err := signer.RecoverTypedDataSigner(serialized, signature)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), address.Hex())

	return nil
}
