package crypto

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestParseAddressAcceptsHexAndBech32(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	if !strings.HasPrefix(addr.String(), "elr1") {
		t.Fatalf("expected elr bech32 prefix, got %s", addr.String())
	}

	fromBech, err := ParseAddress(addr.String())
	if err != nil {
		t.Fatalf("parse bech32: %v", err)
	}
	if fromBech != addr.Raw() {
		t.Fatalf("bech32 round trip mismatch")
	}

	hexAddr := "0x000000000000000000000000000000000000dEaD"
	raw, err := ParseAddress(hexAddr)
	if err != nil {
		t.Fatalf("parse hex: %v", err)
	}
	if raw[18] != 0xde || raw[19] != 0xad {
		t.Fatalf("unexpected hex decode %x", raw)
	}
	if _, err := ParseAddress("0x1234"); err == nil {
		t.Fatalf("expected short hex address rejected")
	}
	if _, err := ParseAddress(""); err == nil {
		t.Fatalf("expected empty address rejected")
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "authority.keystore")
	addr, err := SaveToKeystore(path, key, "secret", KeystoreOptions{})
	if err != nil {
		t.Fatalf("save keystore: %v", err)
	}
	if addr != key.PubKey().Address().Raw() {
		t.Fatalf("save returned %x, want %x", addr, key.PubKey().Address().Raw())
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat keystore: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Fatalf("expected mode 0600, got %o", info.Mode().Perm())
	}
	loaded, err := LoadFromKeystore(path, "secret")
	if err != nil {
		t.Fatalf("load keystore: %v", err)
	}
	if loaded.PubKey().Address().Raw() != key.PubKey().Address().Raw() {
		t.Fatalf("loaded key does not match")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}

func TestSaveKeystoreGuards(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "authority.keystore")
	if _, err := SaveToKeystore(path, key, "", KeystoreOptions{}); !errors.Is(err, ErrEmptyPassphrase) {
		t.Fatalf("expected ErrEmptyPassphrase, got %v", err)
	}
	if _, err := SaveToKeystore(path, key, "secret", KeystoreOptions{}); err != nil {
		t.Fatalf("save keystore: %v", err)
	}
	other, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if _, err := SaveToKeystore(path, other, "secret", KeystoreOptions{}); !errors.Is(err, ErrKeystoreExists) {
		t.Fatalf("expected ErrKeystoreExists, got %v", err)
	}
	if _, err := SaveToKeystore(path, other, "secret", KeystoreOptions{Overwrite: true}); err != nil {
		t.Fatalf("overwrite keystore: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "secret")
	if err != nil {
		t.Fatalf("load keystore: %v", err)
	}
	if loaded.PubKey().Address().Raw() != other.PubKey().Address().Raw() {
		t.Fatalf("overwrite kept the old key")
	}
}

func TestLoadKeystoreRejectsTampering(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "authority.keystore")
	if _, err := SaveToKeystore(path, key, "secret", KeystoreOptions{}); err != nil {
		t.Fatalf("save keystore: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read keystore: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode keystore: %v", err)
	}
	doc["address"] = "000000000000000000000000000000000000beef"
	forged, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("encode keystore: %v", err)
	}
	if err := os.WriteFile(path, forged, 0o600); err != nil {
		t.Fatalf("write keystore: %v", err)
	}
	if _, err := LoadFromKeystore(path, "secret"); !errors.Is(err, ErrKeystoreMismatch) {
		t.Fatalf("expected ErrKeystoreMismatch, got %v", err)
	}

	if runtime.GOOS == "windows" {
		return
	}
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	if _, err := LoadFromKeystore(path, "secret"); !errors.Is(err, ErrKeystorePermissions) {
		t.Fatalf("expected ErrKeystorePermissions, got %v", err)
	}
}
