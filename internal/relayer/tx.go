package relayer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// transact signs and broadcasts a dynamic fee transaction from key and waits for its receipt.
func (r *Relayer) transact(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, value *big.Int, data []byte, op string) (*types.Receipt, error) {
	if key == nil {
		return nil, ErrNoRelayerKey
	}
	if value == nil {
		value = new(big.Int)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	r.sendMu.Lock()
	tx, err := r.buildTx(ctx, key, from, to, value, data)
	if err == nil {
		err = withRetry(ctx, r.logger, op, r.opts.MaxRetries, r.opts.RetryBaseDelay, func(ctx context.Context) error {
			sendErr := r.backend.SendTransaction(ctx, tx)
			switch {
			case sendErr == nil, isKnownTransaction(sendErr):
				return nil
			case isNonceRejection(sendErr):
				return permanent(sendErr)
			default:
				return sendErr
			}
		})
	}
	r.sendMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", op, err)
	}

	r.logger.Info("transaction sent",
		zap.String("op", op),
		zap.String("tx", tx.Hash().Hex()),
		zap.String("from", from.Hex()),
		zap.Uint64("nonce", tx.Nonce()),
		zap.Uint64("gas", tx.Gas()),
	)
	return r.waitReceipt(ctx, tx.Hash())
}

func (r *Relayer) buildTx(ctx context.Context, key *ecdsa.PrivateKey, from, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	nonce, err := r.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	tip, err := r.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip: %w", err)
	}
	head, err := r.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas := r.opts.GasLimit
	if gas == 0 {
		estimated, err := r.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    &to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
		gas = estimated + estimated*r.opts.GasBufferPercent/100
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   r.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(r.chainID), key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

func (r *Relayer) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(r.opts.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := r.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			r.logger.Debug("receipt poll failed", zap.String("tx", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait receipt %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
