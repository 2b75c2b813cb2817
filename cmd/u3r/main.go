package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"u3relay/internal/codec"
	"u3relay/internal/dex"
	"u3relay/internal/quote"
)

func main() {
	root := &cobra.Command{
		Use:          "u3r",
		Short:        "Signed, relayed Uniswap V3 swaps",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return loadEnvFile(envFile)
		},
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file with U3R_SIGNER_KEY / U3R_RELAYER_KEY (optional)")

	poolCmd := &cobra.Command{
		Use:   "pool",
		Short: "Derive a pool address from token pair and fee",
		RunE:  runPool,
	}
	addDeploymentFlags(poolCmd.Flags())
	poolCmd.Flags().String("rpc", "", "RPC URL; when set, the pool is checked on chain")
	poolCmd.Flags().String("token-a", "", "first token, hashed in the order given")
	poolCmd.Flags().String("token-b", "", "second token")
	poolCmd.Flags().Uint32("fee", 3000, "fee tier")
	poolCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(poolCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Estimate the counter amount and slippage bound of a swap",
		RunE:  runQuote,
	}
	addDeploymentFlags(quoteCmd.Flags())
	addSwapFlags(quoteCmd.Flags())
	quoteCmd.Flags().String("rpc", "", "RPC URL; required unless --tick is given")
	quoteCmd.Flags().String("relayer", "", "uniV3Relayed contract; when set its quote() is shown too")
	quoteCmd.Flags().Int32("tick", 0, "price the swap at this tick instead of reading slot0")
	quoteCmd.Flags().Bool("known-is-token0", false, "with --tick: the known amount is the pool's token0")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(quoteCmd)

	signCmd := &cobra.Command{
		Use:   "sign",
		Short: "Build and sign a swap authorization",
		RunE:  runSign,
	}
	addSessionFlags(signCmd.Flags())
	addSwapFlags(signCmd.Flags())
	signCmd.Flags().String("recipient", "", "recipient (defaults to the signer)")
	signCmd.Flags().String("sqrt-price-limit", "0", "sqrtPriceLimitX96, 0 for none")
	signCmd.Flags().Bool("fund", false, "approve the input token, or deposit into the gas tank with --deposit")
	signCmd.Flags().String("deposit", "", "ether amount to deposit into the gas tank when funding")
	signCmd.Flags().String("weth", dex.DefaultWETH9, "wrapped ether; funding a swap that pays it deposits the maximum input into the gas tank")
	root.AddCommand(signCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Recover the signers of stored authorizations",
		RunE:  runVerify,
	}
	verifyCmd.Flags().String("in", "./data/authorizations.jsonl", "authorization JSONL file")
	verifyCmd.Flags().String("id", "", "only verify this authorization")
	verifyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(verifyCmd)

	relayCmd := &cobra.Command{
		Use:   "relay",
		Short: "Submit stored authorizations through the relayer contract",
		RunE:  runRelay,
	}
	addSessionFlags(relayCmd.Flags())
	relayCmd.Flags().String("in", "", "authorization JSONL file (defaults to --out)")
	relayCmd.Flags().String("id", "", "authorization id to relay")
	relayCmd.Flags().Bool("pending", false, "relay every pending authorization from Postgres")
	relayCmd.Flags().Int("limit", 50, "maximum pending authorizations per run")
	root.AddCommand(relayCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP verify and relay endpoints",
		RunE:  runServe,
	}
	addSessionFlags(serveCmd.Flags())
	serveCmd.Flags().String("listen", ":8080", "listen address")
	serveCmd.Flags().Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	serveCmd.Flags().Bool("persist", true, "store authorizations before relaying")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addDeploymentFlags(flags *pflag.FlagSet) {
	flags.String("factory", dex.DefaultFactory, "Uniswap V3 factory address")
	flags.String("init-code-hash", dex.DefaultPoolInitCodeHash, "pool init code hash")
}

func addSwapFlags(flags *pflag.FlagSet) {
	flags.String("token-in", "", "input token")
	flags.String("token-out", "", "output token")
	flags.Uint32("fee", 3000, "fee tier")
	flags.String("amount", "", "amount in human units of the known token")
	flags.Bool("raw", false, "treat --amount as raw units")
	flags.Bool("exact-in", false, "amount is the exact input; otherwise the exact output")
	flags.Uint32("slippage-bps", quote.DefaultSlippageBps, "slippage tolerance in basis points")
}

func addSessionFlags(flags *pflag.FlagSet) {
	addDeploymentFlags(flags)
	flags.String("rpc", "", "RPC URL")
	flags.Uint64("chain-id", 0, "expected chain id, 0 to accept the RPC's")
	flags.String("relayer", "", "uniV3Relayed contract address")
	flags.String("variant", codec.VariantNested.String(), "payload variant (nested, flat)")
	flags.String("nonce-binding", codec.NonceEmbedded.String(), "nonce binding (embedded, prefixed)")
	flags.Duration("deadline-window", 60*time.Second, "deadline offset from chain time")
	flags.Duration("quote-max-age", 30*time.Second, "warn when signing a quote older than this")
	flags.String("out", "./data/authorizations.jsonl", "authorization JSONL path, empty to disable")
	flags.String("pg-dsn", "", "Postgres DSN for the authorization ledger")
	flags.Int("max-retries", 3, "send retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.Duration("receipt-timeout", 2*time.Minute, "receipt wait timeout")
	flags.Uint64("gas-limit", 0, "fixed gas limit, 0 to estimate")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
