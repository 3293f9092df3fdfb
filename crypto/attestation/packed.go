package attestation

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

type fieldKind uint8

const (
	kindString fieldKind = iota + 1
	kindAddress
	kindUint8
	kindUint256
	kindBytes32
)

// Field is one typed element of a canonical payload. The encoding of each
// kind matches Solidity's abi.encodePacked so digests interoperate with
// signers that build messages with solidityKeccak256.
type Field struct {
	kind fieldKind
	str  string
	addr [20]byte
	u8   uint8
	u256 *big.Int
	b32  [32]byte
}

func String(s string) Field    { return Field{kind: kindString, str: s} }
func Address(a [20]byte) Field { return Field{kind: kindAddress, addr: a} }
func Uint8(v uint8) Field      { return Field{kind: kindUint8, u8: v} }
func Bytes32(b [32]byte) Field { return Field{kind: kindBytes32, b32: b} }
func Uint256(v *big.Int) Field { return Field{kind: kindUint256, u256: v} }

// Packed concatenates the packed encodings of fields.
func Packed(fields ...Field) ([]byte, error) {
	out := make([]byte, 0, 32*len(fields))
	for i, f := range fields {
		switch f.kind {
		case kindString:
			out = append(out, f.str...)
		case kindAddress:
			out = append(out, f.addr[:]...)
		case kindUint8:
			out = append(out, f.u8)
		case kindUint256:
			if f.u256 == nil || f.u256.Sign() < 0 {
				return nil, fmt.Errorf("attestation: field %d: uint256 must be non-negative", i)
			}
			v, overflow := uint256.FromBig(f.u256)
			if overflow {
				return nil, fmt.Errorf("attestation: field %d: value exceeds uint256", i)
			}
			word := v.Bytes32()
			out = append(out, word[:]...)
		case kindBytes32:
			out = append(out, f.b32[:]...)
		default:
			return nil, fmt.Errorf("attestation: field %d: unknown kind", i)
		}
	}
	return out, nil
}
