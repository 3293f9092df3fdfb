package attestation

import (
	"errors"

	"github.com/monalisastar/elr-protocol-mainnet/core/state"
)

// ErrNonceUsed is returned when a nonce has already been consumed.
var ErrNonceUsed = errors.New("attestation: nonce already used")

// NonceBook records consumed nonces for one verifying instance. The set is
// global to the instance: a nonce consumed for one beneficiary is blocked for
// every other beneficiary too. Entries are never removed.
type NonceBook struct {
	namespace []byte
}

// NewNonceBook returns the nonce book owned by instance.
func NewNonceBook(instance [20]byte) NonceBook {
	return NonceBook{namespace: state.Key([]byte("nonce"), instance[:])}
}

func (b NonceBook) key(nonce [32]byte) []byte {
	return state.Key(b.namespace, nonce[:])
}

// Used reports whether nonce was consumed.
func (b NonceBook) Used(st *state.Manager, nonce [32]byte) (bool, error) {
	return st.Flag(b.key(nonce))
}

// Consume marks nonce as used, failing if it already was.
func (b NonceBook) Consume(st *state.Manager, nonce [32]byte) error {
	used, err := b.Used(st, nonce)
	if err != nil {
		return err
	}
	if used {
		return ErrNonceUsed
	}
	return st.SetFlag(b.key(nonce), true)
}
