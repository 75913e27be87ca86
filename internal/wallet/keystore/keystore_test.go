package keystore_test

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/chapool/cross-dapp/internal/wallet/keystore"
)

const mnemonic = "test test test test test test test test test test test junk"

func TestEncryptDecryptMnemonic(t *testing.T) {
	ks, err := keystore.EncryptMnemonic(mnemonic, "hunter2", keystore.LightScryptParams())
	require.NoError(t, err)
	assert.Equal(t, 3, ks.Version)
	assert.NotEmpty(t, ks.ID)
	assert.Equal(t, "aes-128-ctr", ks.Crypto.Cipher)
	assert.NotContains(t, ks.Crypto.Ciphertext, "test")

	got, err := keystore.DecryptMnemonic(ks, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, mnemonic, got)

	_, err = keystore.DecryptMnemonic(ks, "wrong")
	assert.True(t, errors.Is(err, keystore.ErrInvalidPassword))
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.keystore.json")

	ks, err := keystore.EncryptMnemonic(mnemonic, "hunter2", keystore.LightScryptParams())
	require.NoError(t, err)
	require.NoError(t, keystore.WriteFile(path, ks))

	assert.Error(t, keystore.WriteFile(path, ks), "existing keystore must not be overwritten")

	got, err := keystore.LoadMnemonic(path, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, mnemonic, got)
}

func TestDecryptRejectsUnknownCipher(t *testing.T) {
	ks, err := keystore.EncryptMnemonic(mnemonic, "hunter2", keystore.LightScryptParams())
	require.NoError(t, err)

	ks.Crypto.Cipher = "aes-256-gcm"
	_, err = keystore.DecryptMnemonic(ks, "hunter2")
	assert.True(t, errors.Is(err, keystore.ErrUnsupportedCipher))
}
