package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"u3relay/internal/codec"
	"u3relay/internal/dex"
	"u3relay/internal/quote"
	"u3relay/internal/wire"
)

const envPrefix = "U3R"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL         string
	ChainID        uint64
	Factory        string
	InitCodeHash   string
	Relayer        string
	Variant        string
	NonceBinding   string
	SlippageBps    uint32
	DeadlineWindow time.Duration
	QuoteMaxAge    time.Duration
	SignerKey      string
	RelayerKey     string
	Out            string
	PGDSN          string
	MaxRetries     int
	RetryBackoff   time.Duration
	ReceiptTimeout time.Duration
	GasLimit       uint64
	LogLevel       string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks addresses, hashes and enum values.
func (c Config) Validate() error {
	if _, err := dex.NewPoolResolver(c.Factory, c.InitCodeHash); err != nil {
		return err
	}
	if c.Relayer != "" {
		if _, err := wire.ParseAddress(c.Relayer); err != nil {
			return fmt.Errorf("relayer: %w", err)
		}
	}
	if _, err := codec.ParseVariant(c.Variant); err != nil {
		return err
	}
	if _, err := codec.ParseNonceBinding(c.NonceBinding); err != nil {
		return err
	}
	if c.SlippageBps > 10_000 {
		return fmt.Errorf("%w: %d bps", quote.ErrInvalidSlippage, c.SlippageBps)
	}
	if c.DeadlineWindow <= 0 {
		return fmt.Errorf("deadline window must be positive")
	}
	return nil
}

// PoolResolver returns the resolver for the configured factory deployment.
func (c Config) PoolResolver() (*dex.PoolResolver, error) {
	return dex.NewPoolResolver(c.Factory, c.InitCodeHash)
}

// PayloadVariant returns the parsed payload variant.
func (c Config) PayloadVariant() codec.Variant {
	v, _ := codec.ParseVariant(c.Variant)
	return v
}

// Binding returns the parsed nonce binding.
func (c Config) Binding() codec.NonceBinding {
	b, _ := codec.ParseNonceBinding(c.NonceBinding)
	return b
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("factory", dex.DefaultFactory)
	v.SetDefault("init-code-hash", dex.DefaultPoolInitCodeHash)
	v.SetDefault("variant", codec.VariantNested.String())
	v.SetDefault("nonce-binding", codec.NonceEmbedded.String())
	v.SetDefault("slippage-bps", quote.DefaultSlippageBps)
	v.SetDefault("deadline-window", 60*time.Second)
	v.SetDefault("quote-max-age", 30*time.Second)
	v.SetDefault("out", "./data/authorizations.jsonl")
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("receipt-timeout", 2*time.Minute)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		RPCURL:         v.GetString("rpc"),
		ChainID:        v.GetUint64("chain-id"),
		Factory:        strings.TrimSpace(v.GetString("factory")),
		InitCodeHash:   strings.TrimSpace(v.GetString("init-code-hash")),
		Relayer:        strings.TrimSpace(v.GetString("relayer")),
		Variant:        v.GetString("variant"),
		NonceBinding:   v.GetString("nonce-binding"),
		SlippageBps:    v.GetUint32("slippage-bps"),
		DeadlineWindow: v.GetDuration("deadline-window"),
		QuoteMaxAge:    v.GetDuration("quote-max-age"),
		SignerKey:      strings.TrimSpace(v.GetString("signer-key")),
		RelayerKey:     strings.TrimSpace(v.GetString("relayer-key")),
		Out:            v.GetString("out"),
		PGDSN:          v.GetString("pg-dsn"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		ReceiptTimeout: v.GetDuration("receipt-timeout"),
		GasLimit:       v.GetUint64("gas-limit"),
		LogLevel:       v.GetString("log-level"),
	}
}
