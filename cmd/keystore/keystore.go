package keystore

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/term"

	"github/chapool/cross-dapp/internal/util/command"
	"github/chapool/cross-dapp/internal/wallet/keystore"
	"github/chapool/cross-dapp/internal/wallet/signer"
)

const (
	outFlag      = "out"
	generateFlag = "generate"
	lightFlag    = "light"

	passwordEnv  = "DAPP_DEV_SIGNER_KEYSTORE_PASSWORD"
	entropyBits  = 128
	defaultPath  = "m/44'/60'/0'/0/0"
	fileFlagName = "file"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("keystore",
		newCreate(),
		newAddress(),
	)
}

func newCreate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Encrypts a dev signer mnemonic into a keystore file",
		Long: `Encrypts a mnemonic, read from stdin or freshly generated, into a keystore v3
file usable as dev_signer.keystore_file. The password is read from the terminal,
or from ` + passwordEnv + ` when stdin is not a terminal.`,
		Args: cobra.NoArgs,
		RunE: createCmdFunc,
	}

	cmd.Flags().StringP(outFlag, "o", "dev.keystore.json", "Keystore file to create")
	cmd.Flags().Bool(generateFlag, false, "Generate a new mnemonic instead of reading one")
	cmd.Flags().Bool(lightFlag, false, "Use light scrypt parameters")

	return cmd
}

func newAddress() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Prints the dev signer address of a keystore file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString(fileFlagName)

			password, err := readPassword(cmd, "Password: ")
			if err != nil {
				return err
			}

			mnemonic, err := keystore.LoadMnemonic(path, password)
			if err != nil {
				return err
			}

			return printAddress(cmd, mnemonic)
		},
	}

	cmd.Flags().StringP(fileFlagName, "f", "dev.keystore.json", "Keystore file to read")

	return cmd
}

func createCmdFunc(cmd *cobra.Command, _ []string) error {
	out, _ := cmd.Flags().GetString(outFlag)
	generate, _ := cmd.Flags().GetBool(generateFlag)
	light, _ := cmd.Flags().GetBool(lightFlag)

	var mnemonic string
	if generate {
		entropy, err := bip39.NewEntropy(entropyBits)
		if err != nil {
			return errors.Wrap(err, "failed to generate entropy")
		}
		if mnemonic, err = bip39.NewMnemonic(entropy); err != nil {
			return errors.Wrap(err, "failed to generate mnemonic")
		}
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return errors.Wrap(err, "failed to read mnemonic")
		}
		mnemonic = strings.Join(strings.Fields(line), " ")
	}

	if !bip39.IsMnemonicValid(mnemonic) {
		return errors.New("invalid mnemonic")
	}

	password, err := readPassword(cmd, "New password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("empty password")
	}

	params := keystore.DefaultScryptParams()
	if light {
		params = keystore.LightScryptParams()
	}

	ks, err := keystore.EncryptMnemonic(mnemonic, password, params)
	if err != nil {
		return err
	}
	if err := keystore.WriteFile(out, ks); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Keystore written to %s\n", out)

	return printAddress(cmd, mnemonic)
}

func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec
	if !term.IsTerminal(fd) {
		return os.Getenv(passwordEnv), nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", errors.Wrap(err, "failed to read password")
	}

	return string(password), nil
}

func printAddress(cmd *cobra.Command, mnemonic string) error {
	key, err := signer.DeriveKey(mnemonic, "", defaultPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Address (%s): %s\n", defaultPath, crypto.PubkeyToAddress(key.PublicKey).Hex())

	return nil
}
