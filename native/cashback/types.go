package cashback

import (
	"fmt"
	"math/big"

	"github.com/monalisastar/elr-protocol-mainnet/core/host"
	"github.com/monalisastar/elr-protocol-mainnet/native/merchants"
)

// BasisPoints is the fixed-point denominator for rates and boosts.
const BasisPoints = 10_000

// PurchaseHook is a bonus module notified after the base cashback is
// credited. Hooks run as nested calls issued by the engine.
type PurchaseHook interface {
	OnPurchase(ctx *host.Context, user [20]byte, amount *big.Int) error
}

// PurchaseHookFunc adapts a function to the PurchaseHook interface.
type PurchaseHookFunc func(ctx *host.Context, user [20]byte, amount *big.Int) error

func (f PurchaseHookFunc) OnPurchase(ctx *host.Context, user [20]byte, amount *big.Int) error {
	return f(ctx, user, amount)
}

// BoostHook scales a merchant's base rate. BasisPoints means no change.
type BoostHook interface {
	BoostBps(ctx *host.Context, merchant [20]byte) (uint32, error)
}

// MerchantDirectory is the registry surface the engine depends on.
type MerchantDirectory interface {
	GetMerchant(ctx *host.Context, addr [20]byte) (merchants.Merchant, bool, error)
	UpdateVolumeAndTier(ctx *host.Context, merchant [20]byte, amount *big.Int) (merchants.Tier, error)
}

// RewardSink is the ledger surface the engine depends on.
type RewardSink interface {
	IsModule(ctx *host.Context, addr [20]byte) (bool, error)
	AllocateFromModule(ctx *host.Context, beneficiary [20]byte, amount *big.Int) error
}

// Slot identifies a bonus hook position. Hooks run in slot order.
type Slot uint8

const (
	SlotReferral Slot = iota
	SlotStreak
	SlotLevel
	SlotRandom
	SlotQuest

	slotCount
)

var slotNames = [...]string{"referral", "streak", "level", "random", "quest"}

func (s Slot) String() string {
	if s >= slotCount {
		return fmt.Sprintf("slot(%d)", uint8(s))
	}
	return slotNames[s]
}

// ParseSlot maps a slot name to its position.
func ParseSlot(name string) (Slot, error) {
	for i, n := range slotNames {
		if n == name {
			return Slot(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, name)
}

// Rates are the base cashback rates per tier in basis points. TierNone always
// earns nothing.
type Rates struct {
	Silver   uint32
	Gold     uint32
	Platinum uint32
}

// DefaultRates returns 1% / 2% / 3%.
func DefaultRates() Rates {
	return Rates{Silver: 100, Gold: 200, Platinum: 300}
}

// Validate rejects rates above 100%.
func (r Rates) Validate() error {
	for _, v := range []uint32{r.Silver, r.Gold, r.Platinum} {
		if v > BasisPoints {
			return fmt.Errorf("%w: %d bps exceeds %d", ErrInvalidRate, v, BasisPoints)
		}
	}
	return nil
}

// For returns the rate applied to tier.
func (r Rates) For(tier merchants.Tier) uint32 {
	switch tier {
	case merchants.TierSilver:
		return r.Silver
	case merchants.TierGold:
		return r.Gold
	case merchants.TierPlatinum:
		return r.Platinum
	default:
		return 0
	}
}

// Receipt summarises a processed purchase.
type Receipt struct {
	User     [20]byte
	Merchant [20]byte
	Amount   *big.Int
	Reward   *big.Int
	Tier     merchants.Tier
	RateBps  uint32
	// NewTier is the merchant tier after the volume update.
	NewTier merchants.Tier
}
