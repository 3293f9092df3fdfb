package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/monalisastar/elr-protocol-mainnet/crypto"
)

const maxBps = 10_000

// Resolved holds the parsed form of the values Config keeps as strings.
type Resolved struct {
	Relayer   [20]byte
	Admin     [20]byte
	Authority [20]byte

	Token    [20]byte
	Ledger   [20]byte
	Registry [20]byte
	Engine   [20]byte
	Referral [20]byte
	Streak   [20]byte

	GenesisSupply *big.Int

	SilverThreshold   *big.Int
	GoldThreshold     *big.Int
	PlatinumThreshold *big.Int

	WelcomeBonus *big.Int
	StreakBonus  *big.Int
}

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	_, err := c.Resolve()
	return err
}

// Resolve validates the configuration and parses addresses and amounts.
func (c *Config) Resolve() (*Resolved, error) {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return nil, fmt.Errorf("config: ListenAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return nil, fmt.Errorf("config: DataDir required")
	}
	out := &Resolved{}
	addrs := []struct {
		name  string
		value string
		dst   *[20]byte
	}{
		{"RelayerAddress", c.RelayerAddress, &out.Relayer},
		{"AdminAddress", c.AdminAddress, &out.Admin},
		{"AuthorityAddress", c.AuthorityAddress, &out.Authority},
		{"contracts.Token", c.Contracts.Token, &out.Token},
		{"contracts.Ledger", c.Contracts.Ledger, &out.Ledger},
		{"contracts.Registry", c.Contracts.Registry, &out.Registry},
		{"contracts.Engine", c.Contracts.Engine, &out.Engine},
		{"contracts.Referral", c.Contracts.Referral, &out.Referral},
		{"contracts.Streak", c.Contracts.Streak, &out.Streak},
	}
	for _, a := range addrs {
		parsed, err := crypto.ParseAddress(a.value)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", a.name, err)
		}
		if parsed == ([20]byte{}) {
			return nil, fmt.Errorf("config: %s must not be the zero address", a.name)
		}
		*a.dst = parsed
	}
	seen := make(map[[20]byte]string)
	for _, a := range addrs[3:] {
		if prev, dup := seen[*a.dst]; dup {
			return nil, fmt.Errorf("config: %s and %s share an address", prev, a.name)
		}
		seen[*a.dst] = a.name
	}

	amounts := []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"token.GenesisSupply", c.Token.GenesisSupply, &out.GenesisSupply},
		{"tiers.SilverThreshold", c.Tiers.SilverThreshold, &out.SilverThreshold},
		{"tiers.GoldThreshold", c.Tiers.GoldThreshold, &out.GoldThreshold},
		{"tiers.PlatinumThreshold", c.Tiers.PlatinumThreshold, &out.PlatinumThreshold},
		{"referral.WelcomeBonus", c.Referral.WelcomeBonus, &out.WelcomeBonus},
		{"streak.Bonus", c.Streak.Bonus, &out.StreakBonus},
	}
	for _, a := range amounts {
		parsed, err := ParseAmount(a.value)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", a.name, err)
		}
		*a.dst = parsed
	}
	if out.SilverThreshold.Sign() <= 0 {
		return nil, fmt.Errorf("config: tiers.SilverThreshold must be positive")
	}
	if out.GoldThreshold.Cmp(out.SilverThreshold) < 0 || out.PlatinumThreshold.Cmp(out.GoldThreshold) < 0 {
		return nil, fmt.Errorf("config: tier thresholds must be non-decreasing")
	}
	for name, bps := range map[string]uint32{
		"tiers.SilverBps":   c.Tiers.SilverBps,
		"tiers.GoldBps":     c.Tiers.GoldBps,
		"tiers.PlatinumBps": c.Tiers.PlatinumBps,
		"referral.BonusBps": c.Referral.BonusBps,
	} {
		if bps > maxBps {
			return nil, fmt.Errorf("config: %s exceeds %d bps", name, maxBps)
		}
	}
	if c.Streak.Enabled && c.Streak.Length == 0 {
		return nil, fmt.Errorf("config: streak.Length must be positive")
	}
	switch c.Rewards.ResetPolicy {
	case "reclaim", "forfeit":
	default:
		return nil, fmt.Errorf("config: rewards.ResetPolicy %q must be reclaim or forfeit", c.Rewards.ResetPolicy)
	}
	switch c.Rewards.SignatureScheme {
	case "personal_sign", "raw_keccak":
	default:
		return nil, fmt.Errorf("config: rewards.SignatureScheme %q is not supported", c.Rewards.SignatureScheme)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return nil, fmt.Errorf("config: rate_limit values must not be negative")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("config: logging.Level %q is not supported", c.Logging.Level)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return nil, fmt.Errorf("config: telemetry.SampleRatio must be within [0,1]")
	}
	return out, nil
}
