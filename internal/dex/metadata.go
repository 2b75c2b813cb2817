package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"u3relay/internal/model"
)

// Slot0 holds the price fields of a pool's slot0.
type Slot0 struct {
	SqrtPriceX96 *big.Int
	Tick         int32
	Unlocked     bool
}

// Model converts slot0 into its storage representation.
func (s Slot0) Model() *model.PoolSlot0 {
	sqrt := "0"
	if s.SqrtPriceX96 != nil {
		sqrt = s.SqrtPriceX96.String()
	}
	return &model.PoolSlot0{SqrtPriceX96: sqrt, Tick: s.Tick, Unlocked: s.Unlocked}
}

// FetchPoolMeta reads the pool immutables token0, token1, fee and tickSpacing concurrently.
// The first failed read cancels the others.
func FetchPoolMeta(ctx context.Context, caller ContractCaller, pool common.Address) (model.PoolMeta, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	meta := model.PoolMeta{Address: pool.Hex()}
	g, gctx := errgroup.WithContext(ctx)
	read := func(method string, assign func(interface{}) error) {
		g.Go(func() error {
			values, err := callMethod(gctx, caller, pool, poolABI, method, nil)
			if err != nil {
				return err
			}
			if err := assign(values[0]); err != nil {
				return fmt.Errorf("%s: %w", method, err)
			}
			return nil
		})
	}

	read("token0", func(v interface{}) error {
		addr, err := asAddress(v)
		meta.Token0 = addr.Hex()
		return err
	})
	read("token1", func(v interface{}) error {
		addr, err := asAddress(v)
		meta.Token1 = addr.Hex()
		return err
	})
	read("fee", func(v interface{}) error {
		fee, err := asBigInt(v)
		if err != nil {
			return err
		}
		meta.Fee = uint32(fee.Uint64())
		return nil
	})
	read("tickSpacing", func(v interface{}) error {
		spacing, err := asInt24(v)
		meta.TickSpacing = spacing
		return err
	})
	if err := g.Wait(); err != nil {
		return model.PoolMeta{}, err
	}
	return meta, nil
}

// FetchLiquidity reads the pool's in-range liquidity at blockNumber; nil means latest.
func FetchLiquidity(ctx context.Context, caller ContractCaller, pool common.Address, blockNumber *big.Int) (*big.Int, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := callMethod(ctx, caller, pool, poolABI, "liquidity", blockNumber)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// FetchSlot0 reads slot0 at blockNumber; nil means latest.
func FetchSlot0(ctx context.Context, caller ContractCaller, pool common.Address, blockNumber *big.Int) (Slot0, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return Slot0{}, fmt.Errorf("parse pool abi: %w", err)
	}

	values, err := callMethod(ctx, caller, pool, poolABI, "slot0", blockNumber)
	if err != nil {
		return Slot0{}, err
	}
	if len(values) < 7 {
		return Slot0{}, fmt.Errorf("slot0 returned %d values", len(values))
	}

	sqrt, err := asBigInt(values[0])
	if err != nil {
		return Slot0{}, fmt.Errorf("sqrt price: %w", err)
	}
	tick, err := asInt24(values[1])
	if err != nil {
		return Slot0{}, fmt.Errorf("tick: %w", err)
	}
	unlocked, _ := values[6].(bool)

	return Slot0{SqrtPriceX96: sqrt, Tick: tick, Unlocked: unlocked}, nil
}

// LookupPool asks the factory for the registered pool address; the zero address means none.
// The factory sorts the pair itself, so key order does not matter here.
func LookupPool(ctx context.Context, caller ContractCaller, factory common.Address, key PoolKey) (common.Address, error) {
	factoryABI, err := V3FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := callMethod(ctx, caller, factory, factoryABI, "getPool", nil, key.TokenA, key.TokenB, new(big.Int).SetUint64(uint64(key.Fee)))
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// FetchTokenMeta reads decimals, symbol and name. Only decimals is required; symbol and name
// fall back to the bytes32 form and are left empty when both fail.
func FetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}
	if logger == nil {
		logger = zap.NewNop()
	}

	parsed, err := erc20ABI(textString)
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, caller, token, parsed, "decimals", nil)
	if err != nil {
		return meta, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return meta, fmt.Errorf("decimals: unsupported type %T", values[0])
	}
	meta.Decimals = decimals

	meta.Symbol = readText(ctx, caller, token, "symbol", logger)
	meta.Name = readText(ctx, caller, token, "name", logger)
	return meta, nil
}

func readText(ctx context.Context, caller ContractCaller, token common.Address, method string, logger *zap.Logger) string {
	var lastErr error
	for _, textType := range []string{textString, textBytes32} {
		parsed, err := erc20ABI(textType)
		if err != nil {
			lastErr = err
			continue
		}
		values, err := callMethod(ctx, caller, token, parsed, method, nil)
		if err != nil {
			lastErr = err
			continue
		}
		if text, ok := asText(values[0]); ok {
			return text
		}
	}
	logger.Debug("erc20 text read failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(lastErr))
	return ""
}

// FetchBalance reads the ERC20 balance of owner.
func FetchBalance(ctx context.Context, caller ContractCaller, token, owner common.Address) (*big.Int, error) {
	parsed, err := erc20ABI(textString)
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, caller, token, parsed, "balanceOf", nil, owner)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// CachedTokenMeta returns token metadata from cache, loading and caching it on a miss.
// Failed loads are cached with whatever fields were read so the token is not retried.
func CachedTokenMeta(ctx context.Context, caller ContractCaller, cache *TokenMetaCache, token common.Address, logger *zap.Logger) model.TokenMeta {
	if cache != nil {
		if meta, ok := cache.Get(token); ok {
			return meta
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	meta, err := FetchTokenMeta(ctx, caller, token, logger)
	if err != nil {
		logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	if cache != nil {
		cache.Set(token, meta)
	}
	return meta
}
