package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"u3relay/internal/chain"
	"u3relay/internal/config"
	"u3relay/internal/dex"
	"u3relay/internal/model"
	"u3relay/internal/wire"
)

func runPool(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	resolver, err := cfg.PoolResolver()
	if err != nil {
		return err
	}
	tokenAFlag, _ := cmd.Flags().GetString("token-a")
	tokenBFlag, _ := cmd.Flags().GetString("token-b")
	fee, _ := cmd.Flags().GetUint32("fee")

	tokenA, err := wire.ParseAddress(tokenAFlag)
	if err != nil {
		return fmt.Errorf("token-a: %w", err)
	}
	tokenB, err := wire.ParseAddress(tokenBFlag)
	if err != nil {
		return fmt.Errorf("token-b: %w", err)
	}

	key := dex.PoolKey{TokenA: tokenA, TokenB: tokenB, Fee: fee}
	pool, err := resolver.Resolve(key)
	if err != nil {
		return err
	}
	out := model.PoolMeta{Address: pool.Hex(), Token0: tokenA.Hex(), Token1: tokenB.Hex(), Fee: fee}

	if cfg.RPCURL != "" {
		ctx, stop := signalContext()
		defer stop()

		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		registered, err := dex.LookupPool(ctx, chainClient, resolver.Factory, key)
		if err != nil {
			return fmt.Errorf("factory lookup: %w", err)
		}
		if registered != pool {
			logger.Warn("factory reports a different pool; check token order and init code hash",
				zap.String("derived", pool.Hex()),
				zap.String("registered", registered.Hex()),
			)
		}

		meta, err := dex.FetchPoolMeta(ctx, chainClient, pool)
		if err != nil {
			return err
		}
		slot0, err := dex.FetchSlot0(ctx, chainClient, pool, nil)
		if err != nil {
			return err
		}
		liquidity, err := dex.FetchLiquidity(ctx, chainClient, pool, nil)
		if err != nil {
			return err
		}
		meta.Registered = registered.Hex()
		meta.Liquidity = liquidity.String()
		meta.Slot0 = slot0.Model()
		out = meta
	}

	return printJSON(out)
}
