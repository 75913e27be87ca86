package keystore

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// DecryptMnemonic decrypts a mnemonic from Ethereum keystore v3 format
func DecryptMnemonic(keystoreJSON *KeystoreJSON, password string) (string, error) {
	if keystoreJSON.Crypto.Cipher != cipherName || keystoreJSON.Crypto.KDF != kdfName {
		return "", ErrUnsupportedCipher
	}

	salt, err := hex.DecodeString(keystoreJSON.Crypto.KDFParams.Salt)
	if err != nil {
		return "", fmt.Errorf("failed to decode salt: %w", err)
	}

	//nolint:varnamelen // iv is a common abbreviation for initialization vector
	iv, err := hex.DecodeString(keystoreJSON.Crypto.CipherParams.IV)
	if err != nil {
		return "", fmt.Errorf("failed to decode IV: %w", err)
	}

	ciphertext, err := hex.DecodeString(keystoreJSON.Crypto.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	expectedMAC, err := hex.DecodeString(keystoreJSON.Crypto.MAC)
	if err != nil {
		return "", fmt.Errorf("failed to decode MAC: %w", err)
	}

	params := keystoreJSON.Crypto.KDFParams
	//nolint:mnd // the MAC key is the second half of a 32 byte derived key
	if params.DKLen < 32 {
		return "", fmt.Errorf("derived key length %d too short", params.DKLen)
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	mac := calculateMAC(derivedKey[16:32], ciphertext)
	if subtle.ConstantTimeCompare(mac, expectedMAC) != 1 {
		return "", ErrInvalidPassword
	}

	plaintext, err := aes128CTR(derivedKey[:16], iv, ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt mnemonic: %w", err)
	}

	return string(plaintext), nil
}
