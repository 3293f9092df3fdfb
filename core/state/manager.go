package state

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"reflect"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/monalisastar/elr-protocol-mainnet/storage"
)

// Manager provides typed access to the key-value store backing a call. Keys
// are hashed with keccak256 and values are RLP encoded.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Database exposes the underlying store.
func (m *Manager) Database() storage.Database {
	return m.db
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVPut stores the provided value under the supplied key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.db.Get(kvKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.db.Delete(kvKey(key))
}

// KVAppend appends the provided value to the RLP-encoded byte slice list stored
// under the supplied key. Duplicate values are ignored to keep the index
// deterministic.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	var list [][]byte
	if _, err := m.KVGet(key, &list); err != nil {
		return err
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	return m.KVPut(key, list)
}

// KVGetList retrieves an RLP-encoded slice stored under the provided key and
// decodes it into the supplied destination slice pointer. When no value is
// present the destination is initialised with an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("kv: destination must be a non-nil pointer")
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Slice {
		return fmt.Errorf("kv: destination must point to a slice")
	}
	found, err := m.KVGet(key, out)
	if err != nil {
		return err
	}
	if !found {
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
	}
	return nil
}

// BigGet loads a non-negative integer scalar. Missing keys read as zero.
func (m *Manager) BigGet(key []byte) (*big.Int, error) {
	out := new(big.Int)
	found, err := m.KVGet(key, out)
	if err != nil {
		return nil, err
	}
	if !found {
		return big.NewInt(0), nil
	}
	return out, nil
}

// BigPut stores a non-negative integer scalar.
func (m *Manager) BigPut(key []byte, value *big.Int) error {
	if value == nil {
		value = big.NewInt(0)
	}
	if value.Sign() < 0 {
		return fmt.Errorf("kv: negative scalar %s", value)
	}
	return m.KVPut(key, value)
}

// Flag reports whether a boolean marker is set.
func (m *Manager) Flag(key []byte) (bool, error) {
	var set bool
	found, err := m.KVGet(key, &set)
	if err != nil {
		return false, err
	}
	return found && set, nil
}

// SetFlag sets or clears a boolean marker. Clearing removes the key.
func (m *Manager) SetFlag(key []byte, set bool) error {
	if !set {
		return m.KVDelete(key)
	}
	return m.KVPut(key, true)
}

// Key joins segments into a namespaced storage key, e.g.
// Key("rewards", ledger[:], "account", addr[:]).
func Key(segments ...[]byte) []byte {
	size := 0
	for _, s := range segments {
		size += len(s) + 1
	}
	buf := make([]byte, 0, size)
	for i, s := range segments {
		if i > 0 {
			buf = append(buf, '/')
		}
		buf = append(buf, s...)
	}
	return buf
}
