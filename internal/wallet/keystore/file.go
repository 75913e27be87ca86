package keystore

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// WriteFile stores ks at path, refusing to overwrite an existing keystore.
func WriteFile(path string, ks *KeystoreJSON) error {
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode keystore")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return errors.Wrap(err, "failed to create keystore file")
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "failed to write keystore file")
	}

	return errors.Wrap(f.Close(), "failed to close keystore file")
}

func ReadFile(path string) (*KeystoreJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read keystore file")
	}

	var ks KeystoreJSON
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, errors.Wrap(err, "failed to decode keystore file")
	}

	return &ks, nil
}

// LoadMnemonic reads and decrypts the keystore at path.
func LoadMnemonic(path string, password string) (string, error) {
	ks, err := ReadFile(path)
	if err != nil {
		return "", err
	}

	return DecryptMnemonic(ks, password)
}
