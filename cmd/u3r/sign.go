package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"u3relay/internal/codec"
	"u3relay/internal/config"
	"u3relay/internal/quote"
	"u3relay/internal/session"
	"u3relay/internal/wire"
)

func runSign(cmd *cobra.Command, _ []string) error {
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
	recipientFlag, _ := cmd.Flags().GetString("recipient")
	sqrtLimitFlag, _ := cmd.Flags().GetString("sqrt-price-limit")
	fund, _ := cmd.Flags().GetBool("fund")
	deposit, _ := cmd.Flags().GetString("deposit")
	wethFlag, _ := cmd.Flags().GetString("weth")

	var recipient common.Address
	if recipientFlag != "" {
		recipient, err = wire.ParseAddress(recipientFlag)
		if err != nil {
			return fmt.Errorf("recipient: %w", err)
		}
	}
	var weth common.Address
	if wethFlag != "" {
		weth, err = wire.ParseAddress(wethFlag)
		if err != nil {
			return fmt.Errorf("weth: %w", err)
		}
	}
	sqrtLimit, err := wire.ParseUint(sqrtLimitFlag, 160)
	if err != nil {
		return fmt.Errorf("sqrt-price-limit: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	s, err := session.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	known := swap.tokenOut
	if swap.exactIn {
		known = swap.tokenIn
	}
	amount, err := swap.parseAmount(s.TokenMeta(ctx, known).Decimals)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}

	prepared, err := s.Prepare(ctx, session.SwapRequest{
		TokenIn:           swap.tokenIn,
		TokenOut:          swap.tokenOut,
		Fee:               swap.fee,
		Amount:            amount,
		ExactIn:           swap.exactIn,
		Recipient:         recipient,
		SqrtPriceLimitX96: sqrtLimit,
	})
	if err != nil {
		return err
	}

	auth, err := s.Sign(ctx, prepared)
	if err != nil {
		return err
	}

	if fund {
		if err := fundSwap(ctx, s, prepared, deposit, weth, logger); err != nil {
			return err
		}
	}
	return printJSON(auth.Record)
}

// fundSwap deposits into the gas tank for swaps paid in wrapped ether, or when --deposit is
// set, and approves the maximum input otherwise.
func fundSwap(ctx context.Context, s *session.Session, prepared session.Prepared, deposit string, weth common.Address, logger *zap.Logger) error {
	amount, err := depositFor(prepared.Intent, deposit, weth)
	if err != nil {
		return err
	}
	if amount != nil {
		txHash, err := s.Deposit(ctx, amount)
		if err != nil {
			return fmt.Errorf("deposit: %w", err)
		}
		logger.Info("gas tank deposit", zap.String("tx", txHash.Hex()), zap.String("eth", quote.FormatUnits(amount, 18)))
		return nil
	}

	maxIn := maxInput(prepared.Intent)
	if balance, err := s.Balance(ctx, prepared.Intent.TokenIn); err != nil {
		logger.Warn("balance read failed", zap.Error(err))
	} else if balance.Cmp(maxIn) < 0 {
		logger.Warn("signer balance is below the maximum input",
			zap.String("balance", balance.String()),
			zap.String("max_in", maxIn.String()),
		)
	}

	if allowance, err := s.Allowance(ctx, prepared.Intent.TokenIn); err == nil && allowance.Cmp(maxIn) >= 0 {
		logger.Info("allowance already covers the swap", zap.String("allowance", allowance.String()))
		return nil
	}

	txHash, err := s.Approve(ctx, prepared.Intent.TokenIn, maxIn)
	if err != nil {
		return fmt.Errorf("approve: %w", err)
	}
	logger.Info("approved input token",
		zap.String("token", prepared.Intent.TokenIn.Hex()),
		zap.String("amount", maxIn.String()),
		zap.String("tx", txHash.Hex()),
	)
	return nil
}

// depositFor returns the gas tank deposit for intent: the --deposit amount when given, the
// maximum input when the swap pays wrapped ether, nil when the input token is approved instead.
func depositFor(intent codec.SwapIntent, deposit string, weth common.Address) (*big.Int, error) {
	if deposit != "" {
		amount, err := quote.ParseUnits(deposit, 18)
		if err != nil {
			return nil, fmt.Errorf("deposit: %w", err)
		}
		return amount, nil
	}
	if weth != (common.Address{}) && intent.TokenIn == weth {
		return new(big.Int).Set(maxInput(intent)), nil
	}
	return nil, nil
}

// maxInput is the most the swap can take from the signer: the specified amount for exact
// input, the limit for exact output.
func maxInput(intent codec.SwapIntent) *big.Int {
	if intent.ExactIn {
		return intent.AmountSpecified
	}
	return intent.LimitAmount
}
