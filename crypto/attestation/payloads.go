package attestation

import "math/big"

// Purpose tags prefixed to merchant attestations. They keep an approval from
// being replayed as a blacklist and vice versa.
const (
	PurposeApproveMerchant = "APPROVE_MERCHANT"
	PurposeBlacklist       = "BLACKLIST"
)

// ApprovalPayload is the canonical tuple for a merchant approval:
// (string "APPROVE_MERCHANT", address merchant, uint8 tier, address registry).
func ApprovalPayload(merchant [20]byte, tier uint8, registry [20]byte) []Field {
	return []Field{
		String(PurposeApproveMerchant),
		Address(merchant),
		Uint8(tier),
		Address(registry),
	}
}

// BlacklistPayload is the canonical tuple for a blacklist attestation:
// (string "BLACKLIST", address merchant, address registry).
func BlacklistPayload(merchant [20]byte, registry [20]byte) []Field {
	return []Field{
		String(PurposeBlacklist),
		Address(merchant),
		Address(registry),
	}
}

// AllocationPayload is the canonical tuple for a signed reward allocation:
// (address beneficiary, uint256 amount, bytes32 nonce, address ledger).
func AllocationPayload(beneficiary [20]byte, amount *big.Int, nonce [32]byte, ledger [20]byte) []Field {
	return []Field{
		Address(beneficiary),
		Uint256(amount),
		Bytes32(nonce),
		Address(ledger),
	}
}
