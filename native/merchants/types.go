package merchants

import (
	"fmt"
	"math/big"
	"strings"
)

// Tier is the merchant classification driving the cashback rate.
type Tier uint8

const (
	TierNone Tier = iota
	TierSilver
	TierGold
	TierPlatinum
)

var tierNames = [...]string{"NONE", "SILVER", "GOLD", "PLATINUM"}

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("TIER(%d)", uint8(t))
	}
	return tierNames[t]
}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool {
	return t <= TierPlatinum
}

// ParseTier accepts a tier name (case-insensitive) or its numeric value.
func ParseTier(s string) (Tier, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range tierNames {
		if trimmed == name || trimmed == fmt.Sprint(i) {
			return Tier(i), nil
		}
	}
	return TierNone, fmt.Errorf("%w: %q", ErrInvalidTier, s)
}

func maxTier(a, b Tier) Tier {
	if a > b {
		return a
	}
	return b
}

// Merchant is the stored identity record.
type Merchant struct {
	Exists       bool
	Approved     bool
	Blacklisted  bool
	Tier         Tier
	Volume       *big.Int
	Name         string
	ExternalRef  string
	RegisteredAt uint64
	ApprovedAt   uint64
}

// Clone returns a deep copy of the merchant record.
func (m *Merchant) Clone() *Merchant {
	if m == nil {
		return nil
	}
	out := *m
	if m.Volume != nil {
		out.Volume = new(big.Int).Set(m.Volume)
	} else {
		out.Volume = big.NewInt(0)
	}
	return &out
}

// Eligible reports whether the merchant may currently earn cashback.
func (m *Merchant) Eligible() bool {
	return m != nil && m.Exists && m.Approved && !m.Blacklisted
}

// TierLadder lists the cumulative volume needed to reach each tier.
type TierLadder struct {
	Silver   *big.Int
	Gold     *big.Int
	Platinum *big.Int
}

var wholeToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), wholeToken)
}

// DefaultTierLadder returns the 10k / 50k / 100k token thresholds.
func DefaultTierLadder() TierLadder {
	return TierLadder{
		Silver:   tokens(10_000),
		Gold:     tokens(50_000),
		Platinum: tokens(100_000),
	}
}

// Validate checks that every threshold is set, positive and non-decreasing.
func (l TierLadder) Validate() error {
	steps := []*big.Int{l.Silver, l.Gold, l.Platinum}
	for i, step := range steps {
		if step == nil || step.Sign() <= 0 {
			return fmt.Errorf("%w: %s threshold must be positive", ErrInvalidLadder, Tier(i+1))
		}
		if i > 0 && step.Cmp(steps[i-1]) < 0 {
			return fmt.Errorf("%w: %s threshold below %s", ErrInvalidLadder, Tier(i+1), Tier(i))
		}
	}
	return nil
}

// TierFor maps a cumulative volume onto the ladder.
func (l TierLadder) TierFor(volume *big.Int) Tier {
	if volume == nil {
		return TierNone
	}
	switch {
	case l.Platinum != nil && volume.Cmp(l.Platinum) >= 0:
		return TierPlatinum
	case l.Gold != nil && volume.Cmp(l.Gold) >= 0:
		return TierGold
	case l.Silver != nil && volume.Cmp(l.Silver) >= 0:
		return TierSilver
	default:
		return TierNone
	}
}
