package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestSwapFlagsParseAmount(t *testing.T) {
	cmd := &cobra.Command{Use: "quote"}
	addSwapFlags(cmd.Flags())
	args := []string{
		"--token-in", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		"--token-out", "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		"--amount", "1.5",
		"--exact-in",
	}
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	swap, err := swapFlags(cmd)
	if err != nil {
		t.Fatalf("swap flags: %v", err)
	}
	if !swap.exactIn || swap.fee != 3000 {
		t.Fatalf("unexpected swap input: %+v", swap)
	}
	amount, err := swap.parseAmount(18)
	if err != nil {
		t.Fatalf("parse amount: %v", err)
	}
	if amount.String() != "1500000000000000000" {
		t.Fatalf("unexpected amount: %s", amount)
	}

	swap.raw = true
	if _, err := swap.parseAmount(18); err == nil {
		t.Fatalf("expected fractional raw amount to fail")
	}
}

func TestSwapFlagsRejectsWideFee(t *testing.T) {
	cmd := &cobra.Command{Use: "quote"}
	addSwapFlags(cmd.Flags())
	args := []string{
		"--token-in", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		"--token-out", "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		"--amount", "1",
		"--fee", "16777216",
	}
	if err := cmd.Flags().Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if _, err := swapFlags(cmd); err == nil {
		t.Fatalf("expected fee overflow error")
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("U3R_TEST_ENV_VALUE=loaded\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("U3R_TEST_ENV_VALUE", "")
	os.Unsetenv("U3R_TEST_ENV_VALUE")
	if err := loadEnvFile(path); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if got := os.Getenv("U3R_TEST_ENV_VALUE"); got != "loaded" {
		t.Fatalf("unexpected env value: %q", got)
	}
}
