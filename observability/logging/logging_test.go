package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupRenamesKeysAndTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := Setup("elrd", "test", Options{Output: &buf})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer closer.Close()
	defer slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	logger.Info("hello", "op", "rewards.claim")
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for _, key := range []string{"timestamp", "severity", "message", "service", "env", "op"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("missing key %q in %v", key, line)
		}
	}
	if line["severity"] != "INFO" || line["message"] != "hello" || line["service"] != "elrd" {
		t.Fatalf("unexpected line: %v", line)
	}
}

func TestSetupHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := Setup("elrd", "", Options{Level: "warn", Output: &buf})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer closer.Close()
	defer slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	logger.Info("dropped")
	logger.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestSetupWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elrd.log")
	var buf bytes.Buffer
	logger, closer, err := Setup("elrd", "", Options{File: path, MaxSizeMB: 1, Output: &buf})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	logger.Info("persisted")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "persisted") {
		t.Fatalf("log file missing line: %s", data)
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	level, err := ParseLevel("DEBUG")
	if err != nil || level != slog.LevelDebug {
		t.Fatalf("expected debug, got %v %v", level, err)
	}
}

func TestMaskFieldRedactsUnlistedKeys(t *testing.T) {
	if got := MaskField("signature", "0xdeadbeef"); got.Value.String() != RedactedValue {
		t.Fatalf("expected signature to be redacted, got %s", got.Value)
	}
	if got := MaskField("op", "rewards.claim"); got.Value.String() != "rewards.claim" {
		t.Fatalf("expected op to pass through, got %s", got.Value)
	}
	if got := MaskValue("  "); got != "  " {
		t.Fatalf("empty values must pass through")
	}
}
