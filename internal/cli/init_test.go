package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"finance/internal/config"
	"finance/internal/log"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("FINANCE_TEST_VALUE=hello\n"), 0644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("FINANCE_TEST_VALUE", "")
	os.Unsetenv("FINANCE_TEST_VALUE")

	if err := LoadEnvFile(filepath.Join(dir, "missing.env"), envFile); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("FINANCE_TEST_VALUE"); got != "hello" {
		t.Fatalf("FINANCE_TEST_VALUE = %q, want hello", got)
	}
}

func TestSetupLogger(t *testing.T) {
	cfg := &config.Config{LogLevel: "debug", LogFormat: "json"}
	logger := SetupLogger(cfg, log.ComponentCLI)
	if logger.Component() != log.ComponentCLI {
		t.Fatalf("component = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), -4) {
		t.Fatalf("debug level should be enabled")
	}
}

func TestNewServiceOverMemoryBackend(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		UserName:        "alice",
		SessionTimezone: "UTC",
		DataBackend:     "memory",
		CreateIfMissing: true,
	}
	logger := log.Discard()

	res, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("OpenBackend: %v", err)
	}
	defer res.Close()

	svc, err := NewService(ctx, cfg, res, nil, logger)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if svc.UserName() != "alice" {
		t.Fatalf("user = %q", svc.UserName())
	}
	if n := len(svc.AllRecords()); n != 0 {
		t.Fatalf("expected empty ledger, got %d records", n)
	}
}

func TestNewPublisherDisabled(t *testing.T) {
	pub, err := NewPublisher(&config.Config{}, log.Discard())
	if err != nil || pub != nil {
		t.Fatalf("NewPublisher() = %v, %v; want nil, nil", pub, err)
	}
}

func TestShutdownContextCancel(t *testing.T) {
	ctx, cancel := ShutdownContext(log.Discard())
	cancel()
	<-ctx.Done()
}
