package events

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/monalisastar/elr-protocol-mainnet/core/types"
)

const (
	// TypeRewardPoolFunded is emitted when the admin moves custody funds into
	// the reward pool.
	TypeRewardPoolFunded = "rewards.pool.funded"
	// TypeRewardAllocated is emitted for every credit to a reward account.
	TypeRewardAllocated = "rewards.allocated"
	// TypeRewardClaimed is emitted when a beneficiary withdraws pending rewards.
	TypeRewardClaimed = "rewards.claimed"
	// TypeRewardModuleSet is emitted when module membership changes.
	TypeRewardModuleSet = "rewards.module.set"
	// TypeRewardUserReset is emitted when the admin zeroes an account.
	TypeRewardUserReset = "rewards.user.reset"
)

// Allocation sources reported by RewardAllocated.
const (
	AllocationSourceModule = "module"
	AllocationSourceSigned = "signed"
)

// RewardPoolFunded captures a pool top-up.
type RewardPoolFunded struct {
	Ledger [20]byte
	Funder [20]byte
	Amount *big.Int
	Pool   *big.Int
}

// EventType implements the Event interface.
func (RewardPoolFunded) EventType() string { return TypeRewardPoolFunded }

// Event converts the typed event to the generic representation.
func (e RewardPoolFunded) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardPoolFunded,
		Attributes: map[string]string{
			"ledger": formatAddr(e.Ledger),
			"funder": formatAddr(e.Funder),
			"amount": formatAmount(e.Amount),
			"pool":   formatAmount(e.Pool),
		},
	}
}

// RewardAllocated captures a credit to a beneficiary. Source distinguishes
// module pushes from signed one-off allocations; Nonce is only set for the
// latter.
type RewardAllocated struct {
	Ledger      [20]byte
	Source      string
	Module      [20]byte
	Beneficiary [20]byte
	Amount      *big.Int
	Nonce       [32]byte
	Pool        *big.Int
}

// EventType implements the Event interface.
func (RewardAllocated) EventType() string { return TypeRewardAllocated }

// Event converts the typed event to the generic representation.
func (e RewardAllocated) Event() *types.Event {
	attrs := map[string]string{
		"ledger":      formatAddr(e.Ledger),
		"source":      e.Source,
		"beneficiary": formatAddr(e.Beneficiary),
		"amount":      formatAmount(e.Amount),
		"pool":        formatAmount(e.Pool),
	}
	if e.Source == AllocationSourceModule {
		attrs["module"] = formatAddr(e.Module)
	}
	if e.Nonce != ([32]byte{}) {
		attrs["nonce"] = "0x" + hex.EncodeToString(e.Nonce[:])
	}
	return &types.Event{Type: TypeRewardAllocated, Attributes: attrs}
}

// RewardClaimed captures a payout.
type RewardClaimed struct {
	Ledger      [20]byte
	Beneficiary [20]byte
	Amount      *big.Int
	ClaimedAt   uint64
}

// EventType implements the Event interface.
func (RewardClaimed) EventType() string { return TypeRewardClaimed }

// Event converts the typed event to the generic representation.
func (e RewardClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardClaimed,
		Attributes: map[string]string{
			"ledger":      formatAddr(e.Ledger),
			"beneficiary": formatAddr(e.Beneficiary),
			"amount":      formatAmount(e.Amount),
			"claimedAt":   strconv.FormatUint(e.ClaimedAt, 10),
		},
	}
}

// RewardModuleSet captures an allow-list change.
type RewardModuleSet struct {
	Ledger  [20]byte
	Module  [20]byte
	Enabled bool
}

// EventType implements the Event interface.
func (RewardModuleSet) EventType() string { return TypeRewardModuleSet }

// Event converts the typed event to the generic representation.
func (e RewardModuleSet) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardModuleSet,
		Attributes: map[string]string{
			"ledger":  formatAddr(e.Ledger),
			"module":  formatAddr(e.Module),
			"enabled": strconv.FormatBool(e.Enabled),
		},
	}
}

// RewardUserReset captures an administrative account reset. Forfeited is the
// pending balance the account held; Reclaimed reports whether it went back to
// the pool.
type RewardUserReset struct {
	Ledger    [20]byte
	Account   [20]byte
	Forfeited *big.Int
	Reclaimed bool
}

// EventType implements the Event interface.
func (RewardUserReset) EventType() string { return TypeRewardUserReset }

// Event converts the typed event to the generic representation.
func (e RewardUserReset) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardUserReset,
		Attributes: map[string]string{
			"ledger":    formatAddr(e.Ledger),
			"account":   formatAddr(e.Account),
			"forfeited": formatAmount(e.Forfeited),
			"reclaimed": strconv.FormatBool(e.Reclaimed),
		},
	}
}
