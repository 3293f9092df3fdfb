package attestation

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned whenever a signature is malformed or does
// not recover to the configured authority.
var ErrInvalidSignature = errors.New("attestation: invalid signature")

// SignatureLength is the size of an r||s||v secp256k1 signature.
const SignatureLength = 65

// Scheme turns a packed payload into the digest the authority signs and
// recovers the signer from a signature over that digest.
type Scheme interface {
	Name() string
	Digest(payload []byte) []byte
	Recover(digest, sig []byte) ([20]byte, error)
}

// PersonalSign is the EIP-191 scheme used by wallet signMessage: the payload is
// hashed with keccak256 and the 32-byte hash is signed under the
// "\x19Ethereum Signed Message:\n32" prefix.
type PersonalSign struct{}

func (PersonalSign) Name() string { return "personal_sign" }

func (PersonalSign) Digest(payload []byte) []byte {
	return accounts.TextHash(ethcrypto.Keccak256(payload))
}

func (PersonalSign) Recover(digest, sig []byte) ([20]byte, error) {
	return recoverSigner(digest, sig)
}

// RawKeccak signs keccak256(payload) directly without a prefix.
type RawKeccak struct{}

func (RawKeccak) Name() string { return "raw_keccak" }

func (RawKeccak) Digest(payload []byte) []byte {
	return ethcrypto.Keccak256(payload)
}

func (RawKeccak) Recover(digest, sig []byte) ([20]byte, error) {
	return recoverSigner(digest, sig)
}

func recoverSigner(digest, sig []byte) ([20]byte, error) {
	var zero [20]byte
	if len(digest) != 32 {
		return zero, fmt.Errorf("%w: digest must be 32 bytes", ErrInvalidSignature)
	}
	if len(sig) != SignatureLength {
		return zero, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(sig))
	}
	normalized := append([]byte(nil), sig...)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	v := normalized[64]
	if v > 1 {
		return zero, fmt.Errorf("%w: invalid recovery id", ErrInvalidSignature)
	}
	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	// Reject high-s signatures so each authorisation has exactly one encoding.
	if !ethcrypto.ValidateSignatureValues(v, r, s, true) {
		return zero, fmt.Errorf("%w: signature values out of range", ErrInvalidSignature)
	}
	pub, err := ethcrypto.SigToPub(digest, normalized)
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// SchemeByName resolves a configured scheme name. An empty name selects
// PersonalSign.
func SchemeByName(name string) (Scheme, error) {
	switch name {
	case "", PersonalSign{}.Name():
		return PersonalSign{}, nil
	case RawKeccak{}.Name():
		return RawKeccak{}, nil
	default:
		return nil, fmt.Errorf("attestation: unknown scheme %q", name)
	}
}

// Verifier checks attestations against a single authority address.
type Verifier struct {
	scheme    Scheme
	authority [20]byte
}

// NewVerifier returns a verifier for authority. A nil scheme selects PersonalSign.
func NewVerifier(scheme Scheme, authority [20]byte) *Verifier {
	if scheme == nil {
		scheme = PersonalSign{}
	}
	return &Verifier{scheme: scheme, authority: authority}
}

// Authority returns the configured signer address.
func (v *Verifier) Authority() [20]byte {
	return v.authority
}

// Verify canonicalises fields, hashes them with the scheme and compares the
// recovered signer with the authority.
func (v *Verifier) Verify(sig []byte, fields ...Field) error {
	if v == nil || v.authority == ([20]byte{}) {
		return fmt.Errorf("%w: no authority configured", ErrInvalidSignature)
	}
	payload, err := Packed(fields...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	signer, err := v.scheme.Recover(v.scheme.Digest(payload), sig)
	if err != nil {
		return err
	}
	if signer != v.authority {
		return ErrInvalidSignature
	}
	return nil
}

// Signer produces attestations. The ledger never signs; this exists for the
// off-chain authority tooling and tests.
type Signer struct {
	scheme Scheme
	key    *ecdsa.PrivateKey
}

// NewSigner wraps key. A nil scheme selects PersonalSign.
func NewSigner(key *ecdsa.PrivateKey, scheme Scheme) *Signer {
	if scheme == nil {
		scheme = PersonalSign{}
	}
	return &Signer{scheme: scheme, key: key}
}

// Address returns the signer's address.
func (s *Signer) Address() [20]byte {
	return ethcrypto.PubkeyToAddress(s.key.PublicKey)
}

// Sign returns a 65-byte signature with v in {27, 28}.
func (s *Signer) Sign(fields ...Field) ([]byte, error) {
	payload, err := Packed(fields...)
	if err != nil {
		return nil, err
	}
	sig, err := ethcrypto.Sign(s.scheme.Digest(payload), s.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}
