package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"u3relay/internal/codec"
	"u3relay/internal/dex"
	"u3relay/internal/wire"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Factory != dex.DefaultFactory || cfg.InitCodeHash != dex.DefaultPoolInitCodeHash {
		t.Fatalf("unexpected deployment defaults: %s %s", cfg.Factory, cfg.InitCodeHash)
	}
	if cfg.PayloadVariant() != codec.VariantNested || cfg.Binding() != codec.NonceEmbedded {
		t.Fatalf("unexpected codec defaults: %s %s", cfg.Variant, cfg.NonceBinding)
	}
	if cfg.SlippageBps != 500 || cfg.DeadlineWindow != time.Minute {
		t.Fatalf("unexpected quote defaults: %d %s", cfg.SlippageBps, cfg.DeadlineWindow)
	}
	if _, err := cfg.PoolResolver(); err != nil {
		t.Fatalf("resolver: %v", err)
	}
}

func TestLoadRejectsWideFactory(t *testing.T) {
	t.Setenv("U3R_FACTORY", dex.DefaultFactory+"00")
	if _, err := Load("", nil); !errors.Is(err, wire.ErrInvalidAddressWidth) {
		t.Fatalf("expected address width error, got %v", err)
	}
}

func TestLoadRejectsWideInitCodeHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u3r.yaml")
	content := "init-code-hash: \"" + dex.DefaultPoolInitCodeHash + "00\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path, nil); !errors.Is(err, wire.ErrInvalidHashWidth) {
		t.Fatalf("expected hash width error, got %v", err)
	}
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u3r.yaml")
	if err := os.WriteFile(path, []byte("variant: nested\nslippage-bps: 100\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("variant", "nested", "")
	flags.String("nonce-binding", "embedded", "")
	if err := flags.Parse([]string{"--variant", "flat", "--nonce-binding", "prefixed"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PayloadVariant() != codec.VariantFlat || cfg.Binding() != codec.NoncePrefixed {
		t.Fatalf("flags not applied: %s %s", cfg.Variant, cfg.NonceBinding)
	}
	if cfg.SlippageBps != 100 {
		t.Fatalf("file value lost: %d", cfg.SlippageBps)
	}
}

func TestLoadRejectsUnknownVariant(t *testing.T) {
	t.Setenv("U3R_VARIANT", "packed")
	if _, err := Load("", nil); err == nil {
		t.Fatalf("expected unknown variant error")
	}
}

func TestLoadServeDefaults(t *testing.T) {
	cfg, err := LoadServe("", nil)
	if err != nil {
		t.Fatalf("load serve: %v", err)
	}
	if cfg.Listen != ":8080" || !cfg.Persist || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected serve defaults: %+v", cfg)
	}
}
