package events

import (
	"math/big"
	"strconv"

	"github.com/monalisastar/elr-protocol-mainnet/core/types"
)

const (
	TypeCashbackProcessed  = "cashback.processed"
	TypeReferralRegistered = "referral.registered"
	TypeStreakBonus        = "streak.bonus"
)

// CashbackProcessed is emitted once per successful purchase. Tier is the
// merchant tier the rate was taken from, before the volume update.
type CashbackProcessed struct {
	Engine   [20]byte
	User     [20]byte
	Merchant [20]byte
	Amount   *big.Int
	Reward   *big.Int
	Tier     uint8
	TierName string
	RateBps  uint32
}

// EventType implements the Event interface.
func (CashbackProcessed) EventType() string { return TypeCashbackProcessed }

// Event converts the typed event to the generic representation.
func (e CashbackProcessed) Event() *types.Event {
	return &types.Event{
		Type: TypeCashbackProcessed,
		Attributes: map[string]string{
			"engine":     formatAddr(e.Engine),
			"user":       formatAddr(e.User),
			merchantAttr: formatAddr(e.Merchant),
			"amount":     formatAmount(e.Amount),
			"reward":     formatAmount(e.Reward),
			tierAttr:     strconv.FormatUint(uint64(e.Tier), 10),
			tierNameAttr: tierName(e.TierName),
			"rateBps":    strconv.FormatUint(uint64(e.RateBps), 10),
		},
	}
}

// ReferralRegistered is emitted when a user records their referrer.
type ReferralRegistered struct {
	Module       [20]byte
	User         [20]byte
	Referrer     [20]byte
	WelcomeBonus *big.Int
}

// EventType implements the Event interface.
func (ReferralRegistered) EventType() string { return TypeReferralRegistered }

// Event converts the typed event to the generic representation.
func (e ReferralRegistered) Event() *types.Event {
	return &types.Event{
		Type: TypeReferralRegistered,
		Attributes: map[string]string{
			"module":       formatAddr(e.Module),
			"user":         formatAddr(e.User),
			"referrer":     formatAddr(e.Referrer),
			"welcomeBonus": formatAmount(e.WelcomeBonus),
		},
	}
}

// StreakBonus is emitted when a purchase streak milestone pays out.
type StreakBonus struct {
	Module [20]byte
	User   [20]byte
	Days   uint64
	Bonus  *big.Int
}

// EventType implements the Event interface.
func (StreakBonus) EventType() string { return TypeStreakBonus }

// Event converts the typed event to the generic representation.
func (e StreakBonus) Event() *types.Event {
	return &types.Event{
		Type: TypeStreakBonus,
		Attributes: map[string]string{
			"module": formatAddr(e.Module),
			"user":   formatAddr(e.User),
			"days":   strconv.FormatUint(e.Days, 10),
			"bonus":  formatAmount(e.Bonus),
		},
	}
}
