package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/monalisastar/elr-protocol-mainnet/crypto"
)

type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`
	// RelayerAddress is the caller identity the daemon uses when it submits
	// attestations on behalf of clients.
	RelayerAddress   string `toml:"RelayerAddress"`
	AdminAddress     string `toml:"AdminAddress"`
	AuthorityAddress string `toml:"AuthorityAddress"`
	// RecentEvents bounds the in-memory event log served by the API.
	RecentEvents int `toml:"RecentEvents"`

	Contracts Contracts `toml:"contracts"`
	Token     Token     `toml:"token"`
	Tiers     Tiers     `toml:"tiers"`
	Rewards   Rewards   `toml:"rewards"`
	Referral  Referral  `toml:"referral"`
	Streak    Streak    `toml:"streak"`
	Pauses    Pauses    `toml:"pauses"`
	RateLimit RateLimit `toml:"rate_limit"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path, writing a default file on
// first run.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	cfg.normalize()
	return cfg, nil
}

// Default returns the configuration written on first run. Admin and authority
// are left empty and must be filled in before the daemon will start.
func Default() *Config {
	return &Config{
		ListenAddress:  ":8545",
		DataDir:        "./elr-data",
		Environment:    "local",
		RelayerAddress: deriveAddress("relayer"),
		RecentEvents:   1024,
		Contracts: Contracts{
			Token:    deriveAddress("token"),
			Ledger:   deriveAddress("ledger"),
			Registry: deriveAddress("registry"),
			Engine:   deriveAddress("engine"),
			Referral: deriveAddress("referral"),
			Streak:   deriveAddress("streak"),
		},
		Token: Token{Symbol: "ELR", GenesisSupply: "1000000000000000000000000000"},
		Tiers: Tiers{
			SilverThreshold:   "10000000000000000000000",
			GoldThreshold:     "50000000000000000000000",
			PlatinumThreshold: "100000000000000000000000",
			SilverBps:         100,
			GoldBps:           200,
			PlatinumBps:       300,
		},
		Rewards:   Rewards{ResetPolicy: "reclaim", SignatureScheme: "personal_sign"},
		Referral:  Referral{Enabled: true, BonusBps: 300, WelcomeBonus: "10000000000000000000"},
		Streak:    Streak{Enabled: true, Length: 7, Bonus: "5000000000000000000"},
		RateLimit: RateLimit{RequestsPerSecond: 5, Burst: 10},
		Logging:   Logging{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
		Telemetry: Telemetry{SampleRatio: 1},
	}
}

// deriveAddress returns a deterministic instance address for a component so
// fresh deployments get distinct, stable identities.
func deriveAddress(component string) string {
	hash := ethcrypto.Keccak256([]byte("elr/instance/" + component))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return crypto.FormatHex(addr)
}

func (c *Config) normalize() {
	c.Environment = strings.TrimSpace(c.Environment)
	c.Rewards.ResetPolicy = strings.ToLower(strings.TrimSpace(c.Rewards.ResetPolicy))
	c.Rewards.SignatureScheme = strings.ToLower(strings.TrimSpace(c.Rewards.SignatureScheme))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Rewards.ResetPolicy == "" {
		c.Rewards.ResetPolicy = "reclaim"
	}
	if c.Rewards.SignatureScheme == "" {
		c.Rewards.SignatureScheme = "personal_sign"
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	return persist(path, cfg)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// ParseAmount parses a non-negative decimal amount in base units. An empty
// string reads as zero.
func ParseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	return amount, nil
}
