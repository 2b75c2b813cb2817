package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"u3relay/internal/chain"
	"u3relay/internal/config"
	"u3relay/internal/dex"
	"u3relay/internal/quote"
	"u3relay/internal/relayer"
	"u3relay/internal/wire"
)

type quoteOutput struct {
	Pool           string `json:"pool,omitempty"`
	Tick           int32  `json:"tick"`
	Amount         string `json:"amount"`
	Counter        string `json:"counter"`
	CounterUnits   string `json:"counter_units,omitempty"`
	Limit          string `json:"limit"`
	LimitUnits     string `json:"limit_units,omitempty"`
	SlippageBps    uint32 `json:"slippage_bps"`
	ExactCounter   string `json:"exact_counter,omitempty"`
	ContractQuote  string `json:"contract_quote,omitempty"`
	ExactIn        bool   `json:"exact_in"`
	KnownIsToken0  bool   `json:"known_is_token0"`
	CounterDecimal uint8  `json:"counter_decimals,omitempty"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
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

	swap, err := swapFlags(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("tick") {
		tick, _ := cmd.Flags().GetInt32("tick")
		knownIsToken0, _ := cmd.Flags().GetBool("known-is-token0")
		amount, err := quote.ParseUnits(swap.amount, 0)
		if err != nil {
			return fmt.Errorf("--tick quotes take raw amounts: %w", err)
		}
		q, err := quote.Estimate(quote.Request{
			Amount:        amount,
			KnownIsToken0: knownIsToken0,
			ExactIn:       swap.exactIn,
			SlippageBps:   cfg.SlippageBps,
		}, tick)
		if err != nil {
			return err
		}
		return printJSON(quoteOutput{
			Tick:          tick,
			Amount:        amount.String(),
			Counter:       q.Counter.String(),
			Limit:         q.Limit.String(),
			SlippageBps:   q.SlippageBps,
			ExactIn:       swap.exactIn,
			KnownIsToken0: knownIsToken0,
		})
	}

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required unless --tick is given")
	}
	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	resolver, err := cfg.PoolResolver()
	if err != nil {
		return err
	}
	key := dex.OrderedPoolKey(swap.tokenIn, swap.tokenOut, swap.fee)
	pool, err := resolver.Resolve(key)
	if err != nil {
		return err
	}
	slot0, err := dex.FetchSlot0(ctx, chainClient, pool, nil)
	if err != nil {
		return err
	}
	observedAt := time.Now()

	known, counter := swap.tokenOut, swap.tokenIn
	if swap.exactIn {
		known, counter = swap.tokenIn, swap.tokenOut
	}
	tokens := dex.NewTokenMetaCache()
	knownMeta := dex.CachedTokenMeta(ctx, chainClient, tokens, known, logger)
	counterMeta := dex.CachedTokenMeta(ctx, chainClient, tokens, counter, logger)

	amount, err := swap.parseAmount(knownMeta.Decimals)
	if err != nil {
		return err
	}
	req := quote.Request{
		Amount:        amount,
		KnownIsToken0: known == key.TokenA,
		ExactIn:       swap.exactIn,
		SlippageBps:   cfg.SlippageBps,
		ObservedAt:    observedAt,
	}
	q, err := quote.Estimate(req, slot0.Tick)
	if err != nil {
		return err
	}

	out := quoteOutput{
		Pool:           pool.Hex(),
		Tick:           slot0.Tick,
		Amount:         amount.String(),
		Counter:        q.Counter.String(),
		CounterUnits:   quote.FormatUnits(q.Counter, counterMeta.Decimals),
		Limit:          q.Limit.String(),
		LimitUnits:     quote.FormatUnits(q.Limit, counterMeta.Decimals),
		SlippageBps:    q.SlippageBps,
		ExactIn:        swap.exactIn,
		KnownIsToken0:  req.KnownIsToken0,
		CounterDecimal: counterMeta.Decimals,
	}
	if exact, err := quote.EstimateFromSqrtPrice(req, slot0.SqrtPriceX96); err == nil {
		out.ExactCounter = exact.Counter.String()
	} else {
		logger.Debug("sqrt price estimate failed", zap.Error(err))
	}

	if cfg.Relayer != "" {
		contract, err := wire.ParseAddress(cfg.Relayer)
		if err != nil {
			return err
		}
		chainID, err := chainClient.ChainID(ctx)
		if err != nil {
			return fmt.Errorf("chain id: %w", err)
		}
		binding, err := relayer.New(chainClient, contract, chainID, nil, relayer.Options{}, logger)
		if err != nil {
			return err
		}
		amountIn, amountOut := amount, new(big.Int)
		if !swap.exactIn {
			amountIn, amountOut = new(big.Int), amount
		}
		contractQuote, err := binding.Quote(ctx, swap.tokenIn, swap.tokenOut, swap.fee, amountIn, amountOut)
		if err != nil {
			logger.Warn("contract quote failed", zap.Error(err))
		} else {
			out.ContractQuote = contractQuote.String()
		}
	}

	if err := q.CheckFresh(time.Now(), cfg.QuoteMaxAge); err != nil {
		logger.Warn("quote is stale", zap.Error(err))
	}
	return printJSON(out)
}

type swapInput struct {
	tokenIn  common.Address
	tokenOut common.Address
	fee      uint32
	amount   string
	raw      bool
	exactIn  bool
}

func swapFlags(cmd *cobra.Command) (swapInput, error) {
	tokenIn, _ := cmd.Flags().GetString("token-in")
	tokenOut, _ := cmd.Flags().GetString("token-out")
	fee, _ := cmd.Flags().GetUint32("fee")
	amount, _ := cmd.Flags().GetString("amount")
	raw, _ := cmd.Flags().GetBool("raw")
	exactIn, _ := cmd.Flags().GetBool("exact-in")

	in, err := wire.ParseAddress(tokenIn)
	if err != nil {
		return swapInput{}, fmt.Errorf("token-in: %w", err)
	}
	out, err := wire.ParseAddress(tokenOut)
	if err != nil {
		return swapInput{}, fmt.Errorf("token-out: %w", err)
	}
	if err := wire.CheckFee(fee); err != nil {
		return swapInput{}, err
	}
	if amount == "" {
		return swapInput{}, fmt.Errorf("amount is required")
	}
	return swapInput{tokenIn: in, tokenOut: out, fee: fee, amount: amount, raw: raw, exactIn: exactIn}, nil
}

func (s swapInput) parseAmount(decimals uint8) (*big.Int, error) {
	if s.raw {
		decimals = 0
	}
	return quote.ParseUnits(s.amount, decimals)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
