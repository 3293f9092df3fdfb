package main

import (
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/monalisastar/elr-protocol-mainnet/cmd/internal/passphrase"
	"github.com/monalisastar/elr-protocol-mainnet/config"
	"github.com/monalisastar/elr-protocol-mainnet/crypto"
	"github.com/monalisastar/elr-protocol-mainnet/crypto/attestation"
	"github.com/monalisastar/elr-protocol-mainnet/native/merchants"
)

const (
	keygenCommand     = "keygen"
	addressCommand    = "address"
	approvalCommand   = "sign-approval"
	blacklistCommand  = "sign-blacklist"
	allocationCommand = "sign-allocation"

	defaultPassEnv  = "ELR_AUTHORITY_PASS"
	defaultConfig   = "./config.toml"
	defaultKeystore = "authority.keystore"
)

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(1)
	}
	if err := dispatch(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func dispatch(command string, args []string, out io.Writer) error {
	switch command {
	case keygenCommand:
		return runKeygen(args, out)
	case addressCommand:
		return runAddress(args, out)
	case approvalCommand:
		return runSignApproval(args, out)
	case blacklistCommand:
		return runSignBlacklist(args, out)
	case allocationCommand:
		return runSignAllocation(args, out)
	default:
		usage(out)
		return fmt.Errorf("unknown command %q", command)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: elrctl <command> [flags]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintf(w, "  %-16s generate an authority key into a keystore\n", keygenCommand)
	fmt.Fprintf(w, "  %-16s print the address held by a keystore\n", addressCommand)
	fmt.Fprintf(w, "  %-16s sign a merchant approval\n", approvalCommand)
	fmt.Fprintf(w, "  %-16s sign a merchant blacklist\n", blacklistCommand)
	fmt.Fprintf(w, "  %-16s sign a one-off reward allocation\n", allocationCommand)
}

type keyFlags struct {
	keystore *string
	passEnv  *string
}

func addKeyFlags(fs *flag.FlagSet) keyFlags {
	return keyFlags{
		keystore: fs.String("keystore", defaultKeystore, "Path to the authority keystore"),
		passEnv:  fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase"),
	}
}

func (k keyFlags) load() (*crypto.PrivateKey, error) {
	pass, err := passphrase.NewSource(*k.passEnv, "authority keystore").Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(*k.keystore, pass)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore: %w", err)
	}
	return key, nil
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(keygenCommand, flag.ContinueOnError)
	keys := addKeyFlags(fs)
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*force {
		if _, err := os.Stat(*keys.keystore); err == nil {
			return fmt.Errorf("keystore file %s already exists (use -force to overwrite)", *keys.keystore)
		}
	}
	pass, err := passphrase.NewSource(*keys.passEnv, "new authority keystore").Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	addr, err := crypto.SaveToKeystore(*keys.keystore, key, pass, crypto.KeystoreOptions{Overwrite: *force})
	if err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	return writeOutput(out, map[string]string{
		"keystore": *keys.keystore,
		"address":  crypto.FormatHex(addr),
	})
}

func runAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(addressCommand, flag.ContinueOnError)
	keys := addKeyFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := keys.load()
	if err != nil {
		return err
	}
	raw := key.PubKey().Address().Raw()
	return writeOutput(out, map[string]string{
		"address": crypto.FormatHex(raw),
		"bech32":  crypto.FormatAddress(raw),
	})
}

// instanceFlags resolve the verifying contract address and signature scheme,
// falling back to the daemon config when a flag is left empty.
type instanceFlags struct {
	config   *string
	instance *string
	scheme   *string
}

func addInstanceFlags(fs *flag.FlagSet, name string) instanceFlags {
	return instanceFlags{
		config:   fs.String("config", defaultConfig, "Daemon config used to resolve unset instance flags"),
		instance: fs.String(name, "", "Address of the verifying "+name),
		scheme:   fs.String("scheme", "", "Signature scheme (personal_sign or raw_keccak)"),
	}
}

func (f instanceFlags) resolve(pick func(*config.Config) string) ([20]byte, attestation.Scheme, error) {
	instance := strings.TrimSpace(*f.instance)
	schemeName := strings.TrimSpace(*f.scheme)
	if instance == "" || schemeName == "" {
		cfg, err := readConfig(*f.config)
		if err != nil {
			return [20]byte{}, nil, err
		}
		if instance == "" {
			instance = pick(cfg)
		}
		if schemeName == "" {
			schemeName = cfg.Rewards.SignatureScheme
		}
	}
	addr, err := crypto.ParseAddress(instance)
	if err != nil {
		return [20]byte{}, nil, fmt.Errorf("instance address: %w", err)
	}
	scheme, err := attestation.SchemeByName(schemeName)
	if err != nil {
		return [20]byte{}, nil, err
	}
	return addr, scheme, nil
}

// readConfig loads an existing daemon config without creating one.
func readConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config %s unavailable and instance flags missing: %w", path, err)
	}
	return config.Load(path)
}

func runSignApproval(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(approvalCommand, flag.ContinueOnError)
	keys := addKeyFlags(fs)
	inst := addInstanceFlags(fs, "registry")
	merchantFlag := fs.String("merchant", "", "Merchant address to approve")
	tierFlag := fs.String("tier", "", "Tier to grant (NONE, SILVER, GOLD, PLATINUM or 0-3)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	merchant, err := crypto.ParseAddress(*merchantFlag)
	if err != nil {
		return fmt.Errorf("merchant: %w", err)
	}
	tier, err := merchants.ParseTier(*tierFlag)
	if err != nil {
		return err
	}
	registry, scheme, err := inst.resolve(func(c *config.Config) string { return c.Contracts.Registry })
	if err != nil {
		return err
	}
	key, err := keys.load()
	if err != nil {
		return err
	}
	sig, err := attestation.NewSigner(key.PrivateKey, scheme).Sign(attestation.ApprovalPayload(merchant, uint8(tier), registry)...)
	if err != nil {
		return err
	}
	return writeOutput(out, map[string]string{
		"merchant":  crypto.FormatHex(merchant),
		"registry":  crypto.FormatHex(registry),
		"tier":      tier.String(),
		"signature": hexutil.Encode(sig),
	})
}

func runSignBlacklist(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(blacklistCommand, flag.ContinueOnError)
	keys := addKeyFlags(fs)
	inst := addInstanceFlags(fs, "registry")
	merchantFlag := fs.String("merchant", "", "Merchant address to blacklist")
	if err := fs.Parse(args); err != nil {
		return err
	}
	merchant, err := crypto.ParseAddress(*merchantFlag)
	if err != nil {
		return fmt.Errorf("merchant: %w", err)
	}
	registry, scheme, err := inst.resolve(func(c *config.Config) string { return c.Contracts.Registry })
	if err != nil {
		return err
	}
	key, err := keys.load()
	if err != nil {
		return err
	}
	sig, err := attestation.NewSigner(key.PrivateKey, scheme).Sign(attestation.BlacklistPayload(merchant, registry)...)
	if err != nil {
		return err
	}
	return writeOutput(out, map[string]string{
		"merchant":  crypto.FormatHex(merchant),
		"registry":  crypto.FormatHex(registry),
		"signature": hexutil.Encode(sig),
	})
}

func runSignAllocation(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(allocationCommand, flag.ContinueOnError)
	keys := addKeyFlags(fs)
	inst := addInstanceFlags(fs, "ledger")
	beneficiaryFlag := fs.String("beneficiary", "", "Address credited by the allocation")
	amountFlag := fs.String("amount", "", "Amount in base units")
	nonceFlag := fs.String("nonce", "", "32-byte hex nonce; random when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	beneficiary, err := crypto.ParseAddress(*beneficiaryFlag)
	if err != nil {
		return fmt.Errorf("beneficiary: %w", err)
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(*amountFlag), 10)
	if !ok || amount.Sign() <= 0 {
		return fmt.Errorf("amount must be a positive decimal integer")
	}
	nonce, err := parseNonce(*nonceFlag)
	if err != nil {
		return err
	}
	ledger, scheme, err := inst.resolve(func(c *config.Config) string { return c.Contracts.Ledger })
	if err != nil {
		return err
	}
	key, err := keys.load()
	if err != nil {
		return err
	}
	sig, err := attestation.NewSigner(key.PrivateKey, scheme).Sign(attestation.AllocationPayload(beneficiary, amount, nonce, ledger)...)
	if err != nil {
		return err
	}
	return writeOutput(out, map[string]string{
		"beneficiary": crypto.FormatHex(beneficiary),
		"amount":      amount.String(),
		"nonce":       hexutil.Encode(nonce[:]),
		"ledger":      crypto.FormatHex(ledger),
		"signature":   hexutil.Encode(sig),
	})
}

func parseNonce(raw string) ([32]byte, error) {
	var nonce [32]byte
	if strings.TrimSpace(raw) == "" {
		if _, err := rand.Read(nonce[:]); err != nil {
			return nonce, fmt.Errorf("generate nonce: %w", err)
		}
		return nonce, nil
	}
	decoded, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil || len(decoded) != len(nonce) {
		return nonce, fmt.Errorf("nonce must be %d hex-encoded bytes", len(nonce))
	}
	copy(nonce[:], decoded)
	return nonce, nil
}

func writeOutput(w io.Writer, payload map[string]string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
