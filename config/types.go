package config

// Contracts lists the instance addresses of the deployed components. Each
// address namespaces its component's state and is bound into the attestations
// that component accepts.
type Contracts struct {
	Token    string `toml:"Token"`
	Ledger   string `toml:"Ledger"`
	Registry string `toml:"Registry"`
	Engine   string `toml:"Engine"`
	Referral string `toml:"Referral"`
	Streak   string `toml:"Streak"`
}

// Token configures the in-state custody token.
type Token struct {
	Symbol string `toml:"Symbol"`
	// GenesisSupply is minted to the admin on first start, in base units.
	GenesisSupply string `toml:"GenesisSupply"`
}

// Tiers holds the volume ladder and the cashback rate per tier. Thresholds are
// decimal strings in base units; rates are basis points.
type Tiers struct {
	SilverThreshold   string `toml:"SilverThreshold"`
	GoldThreshold     string `toml:"GoldThreshold"`
	PlatinumThreshold string `toml:"PlatinumThreshold"`
	SilverBps         uint32 `toml:"SilverBps"`
	GoldBps           uint32 `toml:"GoldBps"`
	PlatinumBps       uint32 `toml:"PlatinumBps"`
}

// Rewards configures the reward ledger.
type Rewards struct {
	// ResetPolicy is "reclaim" or "forfeit".
	ResetPolicy string `toml:"ResetPolicy"`
	// SignatureScheme is "personal_sign" or "raw_keccak".
	SignatureScheme string `toml:"SignatureScheme"`
}

type Referral struct {
	Enabled      bool   `toml:"Enabled"`
	BonusBps     uint32 `toml:"BonusBps"`
	WelcomeBonus string `toml:"WelcomeBonus"`
}

type Streak struct {
	Enabled bool   `toml:"Enabled"`
	Length  uint64 `toml:"Length"`
	Bonus   string `toml:"Bonus"`
}

type Pauses struct {
	Merchants bool `toml:"Merchants"`
	Rewards   bool `toml:"Rewards"`
	Cashback  bool `toml:"Cashback"`
}

// Modules returns the names of the paused modules.
func (p Pauses) Modules() []string {
	var out []string
	if p.Merchants {
		out = append(out, "merchants")
	}
	if p.Rewards {
		out = append(out, "rewards")
	}
	if p.Cashback {
		out = append(out, "cashback")
	}
	return out
}

// RateLimit throttles attestation submissions per client IP.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

type Logging struct {
	Level string `toml:"Level"`
	// File enables a rotated JSON log file next to stdout.
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures request tracing. Leaving Endpoint empty keeps spans
// local to the process.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	SampleRatio float64 `toml:"SampleRatio"`
}
