package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

var (
	ErrKeystoreExists      = errors.New("crypto: keystore already exists")
	ErrEmptyPassphrase     = errors.New("crypto: empty keystore passphrase")
	ErrKeystoreMismatch    = errors.New("crypto: keystore address does not match its key")
	ErrKeystorePermissions = errors.New("crypto: keystore accessible by other users")
)

// KeystoreOptions tunes how an authority key is sealed. Zero scrypt values
// select the light parameters.
type KeystoreOptions struct {
	Overwrite bool
	ScryptN   int
	ScryptP   int
}

// SaveToKeystore seals an authority key into an Ethereum v3 keystore file at
// path and returns the address it signs for. An existing file is only
// replaced when opts.Overwrite is set. The file is written to a temporary
// sibling and renamed into place with mode 0600.
func SaveToKeystore(path string, key *PrivateKey, passphrase string, opts KeystoreOptions) ([20]byte, error) {
	var zero [20]byte
	if key == nil || key.PrivateKey == nil {
		return zero, errors.New("crypto: nil private key")
	}
	if path == "" {
		return zero, errors.New("crypto: empty keystore path")
	}
	if passphrase == "" {
		return zero, ErrEmptyPassphrase
	}
	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return zero, fmt.Errorf("%w: %s", ErrKeystoreExists, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return zero, err
		}
	}
	scryptN, scryptP := opts.ScryptN, opts.ScryptP
	if scryptN == 0 {
		scryptN = keystore.LightScryptN
	}
	if scryptP == 0 {
		scryptP = keystore.LightScryptP
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return zero, err
	}
	sealed := &keystore.Key{
		Id:         id,
		Address:    ethcrypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key.PrivateKey,
	}
	keyJSON, err := keystore.EncryptKey(sealed, passphrase, scryptN, scryptP)
	if err != nil {
		return zero, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return zero, err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return zero, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(keyJSON); err != nil {
		tmp.Close()
		return zero, err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return zero, err
	}
	if err := tmp.Close(); err != nil {
		return zero, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return zero, err
	}
	return sealed.Address, nil
}

// LoadFromKeystore decrypts an authority keystore. Files readable by group or
// others are rejected on unix, as are files whose recorded address does not
// belong to the sealed key.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keystore path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("%w: %s has mode %o", ErrKeystorePermissions, path, info.Mode().Perm())
	}

	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var header struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(keyJSON, &header); err != nil {
		return nil, fmt.Errorf("crypto: decode keystore: %w", err)
	}
	decrypted, err := keystore.DecryptKey(keyJSON, passphrase)
	if err != nil {
		return nil, err
	}
	if !common.IsHexAddress(header.Address) || common.HexToAddress(header.Address) != decrypted.Address {
		return nil, fmt.Errorf("%w: recorded %q", ErrKeystoreMismatch, header.Address)
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}
