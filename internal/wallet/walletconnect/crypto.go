package walletconnect

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// KeySize is the length of the symmetric session key shared through the URI.
const KeySize = 256 / 8

var errHMACMismatch = errors.New("inconsistent session message hmac")

// GenerateKey returns a fresh random session key.
func GenerateKey() ([]byte, error) {
	return randomBytes(KeySize)
}

// EncryptPayload encrypts a JSON-RPC body with AES-256-CBC and signs
// ciphertext||iv with HMAC-SHA256.
func EncryptPayload(plaintext, key []byte) (*Payload, error) {
	iv, err := randomBytes(aes.BlockSize)
	if err != nil {
		return nil, errors.Wrap(err, "generate iv")
	}

	data, err := aes256Encrypt(plaintext, key, iv)
	if err != nil {
		return nil, err
	}

	return &Payload{
		Data: hex.EncodeToString(data),
		IV:   hex.EncodeToString(iv),
		HMAC: hex.EncodeToString(hmacSHA256(append(data, iv...), key)),
	}, nil
}

// DecryptPayload checks the HMAC of p and returns the plaintext.
func DecryptPayload(p *Payload, key []byte) ([]byte, error) {
	iv, err := hex.DecodeString(p.IV)
	if err != nil {
		return nil, errors.Wrap(err, "decode iv hex")
	}
	data, err := hex.DecodeString(p.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode cipher hex")
	}
	mac, err := hex.DecodeString(p.HMAC)
	if err != nil {
		return nil, errors.Wrap(err, "decode hmac hex")
	}

	// 校验hmac一致性
	signed := make([]byte, 0, len(data)+len(iv))
	signed = append(signed, data...)
	signed = append(signed, iv...)
	if !hmac.Equal(mac, hmacSHA256(signed, key)) {
		return nil, errHMACMismatch
	}

	return aes256Decrypt(data, key, iv)
}

func aes256Encrypt(content, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "create new cipher block")
	}

	plaintext := pkcs7Pad(content, aes.BlockSize)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)
	return ciphertext, nil
}

func aes256Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "create new cipher block")
	}
	if len(iv) != aes.BlockSize {
		return nil, errors.Errorf("iv must be %d bytes", aes.BlockSize)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a multiple of the block size")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(bytes.Clone(data), bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, errors.New("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, errors.New("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func hmacSHA256(data, secret []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(data)
	return h.Sum(nil)
}
