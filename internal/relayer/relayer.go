// Package relayer submits signed swap authorizations to the uniV3Relayed contract and wraps the
// contract's read surface (nonces, quotes, gas tank) plus the user-side deposit and approve calls.
package relayer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"u3relay/internal/codec"
	"u3relay/internal/model"
)

// ErrNoRelayerKey is returned by write operations on a read-only relayer.
var ErrNoRelayerKey = errors.New("relayer key not configured")

// Options tune transaction submission.
type Options struct {
	MaxRetries          int
	RetryBaseDelay      time.Duration
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
	// GasLimit overrides estimation when non-zero.
	GasLimit uint64
	// GasBufferPercent is added on top of the estimate.
	GasBufferPercent uint64
}

func (o Options) withDefaults() Options {
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 500 * time.Millisecond
	}
	if o.ReceiptPollInterval <= 0 {
		o.ReceiptPollInterval = 2 * time.Second
	}
	if o.ReceiptTimeout <= 0 {
		o.ReceiptTimeout = 2 * time.Minute
	}
	if o.GasBufferPercent == 0 {
		o.GasBufferPercent = 20
	}
	return o
}

// Relayer talks to one deployed uniV3Relayed contract.
type Relayer struct {
	backend  Backend
	contract common.Address
	chainID  *big.Int
	key      *ecdsa.PrivateKey
	from     common.Address
	opts     Options
	logger   *zap.Logger
	now      func() time.Time

	// serializes nonce assignment and broadcast per sender
	sendMu sync.Mutex
}

// New creates a relayer for contract. key may be nil for read-only use.
func New(backend Backend, contract common.Address, chainID *big.Int, key *ecdsa.PrivateKey, opts Options, logger *zap.Logger) (*Relayer, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is nil")
	}
	if contract == (common.Address{}) {
		return nil, fmt.Errorf("relayer contract address is required")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Relayer{
		backend:  backend,
		contract: contract,
		chainID:  new(big.Int).Set(chainID),
		key:      key,
		opts:     opts.withDefaults(),
		logger:   logger,
		now:      time.Now,
	}
	if key != nil {
		r.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return r, nil
}

// Address returns the relayer account, or the zero address when read-only.
func (r *Relayer) Address() common.Address {
	return r.from
}

// Contract returns the uniV3Relayed address.
func (r *Relayer) Contract() common.Address {
	return r.contract
}

// Method returns the contract entry point accepting payloads of variant.
func Method(variant codec.Variant) (string, error) {
	switch variant {
	case codec.VariantNested:
		return "relayedSwap", nil
	case codec.VariantFlat:
		return "signedSwap", nil
	default:
		return "", fmt.Errorf("unsupported payload variant %s", variant)
	}
}

// Calldata packs the contract call for signed.
func Calldata(signed codec.SignedPayload) ([]byte, error) {
	method, err := Method(signed.Variant)
	if err != nil {
		return nil, err
	}
	parsed, err := RelayerABI()
	if err != nil {
		return nil, fmt.Errorf("parse relayer abi: %w", err)
	}
	data, err := parsed.Pack(method, signed.Signature.V, [32]byte(signed.Signature.R), [32]byte(signed.Signature.S), signed.Payload)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

// Nonce reads the signer's current nonce from the contract.
func (r *Relayer) Nonce(ctx context.Context, signer common.Address) (*big.Int, error) {
	values, err := r.call(ctx, common.Address{}, "nonces", signer)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// Quote asks the contract for the counter amount of a swap. Exactly one of amountIn and
// amountOut is set; the other is zero or nil.
func (r *Relayer) Quote(ctx context.Context, tokenIn, tokenOut common.Address, fee uint32, amountIn, amountOut *big.Int) (*big.Int, error) {
	if amountIn == nil {
		amountIn = new(big.Int)
	}
	if amountOut == nil {
		amountOut = new(big.Int)
	}
	if (amountIn.Sign() == 0) == (amountOut.Sign() == 0) {
		return nil, fmt.Errorf("quote needs exactly one of amountIn and amountOut")
	}
	values, err := r.call(ctx, common.Address{}, "quote", tokenIn, tokenOut, new(big.Int).SetUint64(uint64(fee)), amountIn, amountOut)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// GasTank returns the address of the contract's gas tank.
func (r *Relayer) GasTank(ctx context.Context) (common.Address, error) {
	values, err := r.call(ctx, common.Address{}, "gasTank")
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("gasTank returned %T", values[0])
	}
	return addr, nil
}

// Simulate executes the relay call with eth_call from the relayer account and returns the
// amount the contract reports.
func (r *Relayer) Simulate(ctx context.Context, signed codec.SignedPayload) (*big.Int, error) {
	data, err := Calldata(signed)
	if err != nil {
		return nil, err
	}
	method, _ := Method(signed.Variant)
	parsed, err := RelayerABI()
	if err != nil {
		return nil, fmt.Errorf("parse relayer abi: %w", err)
	}

	resp, err := r.backend.CallContract(ctx, ethereum.CallMsg{From: r.from, To: &r.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("simulate %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return asBigInt(values[0])
}

// Submit re-verifies signed, simulates it and sends the relay transaction, then waits for the
// receipt. When expected is non-zero the recovered signer must match it. A mined but reverted
// transaction is reported through the result status, not as an error.
func (r *Relayer) Submit(ctx context.Context, signed codec.SignedPayload, expected common.Address) (model.RelayResult, error) {
	if r.key == nil {
		return model.RelayResult{}, ErrNoRelayerKey
	}

	signer, err := signed.Recover()
	if err != nil {
		return model.RelayResult{}, fmt.Errorf("verify authorization: %w", err)
	}
	if expected != (common.Address{}) && signer != expected {
		return model.RelayResult{}, fmt.Errorf("%w: recovered %s, expected %s", codec.ErrSignerMismatch, signer.Hex(), expected.Hex())
	}

	method, err := Method(signed.Variant)
	if err != nil {
		return model.RelayResult{}, err
	}
	simulated, err := r.Simulate(ctx, signed)
	if err != nil {
		return model.RelayResult{}, err
	}
	r.logger.Info("relay simulated",
		zap.String("method", method),
		zap.String("signer", signer.Hex()),
		zap.String("amount", simulated.String()),
	)

	data, err := Calldata(signed)
	if err != nil {
		return model.RelayResult{}, err
	}
	submittedAt := r.now().UTC()
	receipt, err := r.transact(ctx, r.key, r.contract, nil, data, method)
	if err != nil {
		return model.RelayResult{}, err
	}

	result := model.RelayResult{
		Method:          method,
		TxHash:          receipt.TxHash.Hex(),
		GasUsed:         receipt.GasUsed,
		SimulatedAmount: simulated.String(),
		Status:          model.RelayStatusSucceeded,
		SubmittedAt:     submittedAt.Format(time.RFC3339Nano),
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != 1 {
		result.Status = model.RelayStatusReverted
		r.logger.Warn("relay reverted", zap.String("tx", result.TxHash), zap.String("signer", signer.Hex()))
	} else {
		r.logger.Info("relay mined",
			zap.String("tx", result.TxHash),
			zap.Uint64("block", result.BlockNumber),
			zap.Uint64("gas_used", result.GasUsed),
		)
	}
	return result, nil
}

// Deposit funds the gas tank from key's account.
func (r *Relayer) Deposit(ctx context.Context, key *ecdsa.PrivateKey, amount *big.Int) (common.Hash, error) {
	tank, err := r.GasTank(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	parsed, err := GasTankABI()
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse gas tank abi: %w", err)
	}
	data, err := parsed.Pack("deposit")
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack deposit: %w", err)
	}
	receipt, err := r.transact(ctx, key, tank, amount, data, "deposit")
	if err != nil {
		return common.Hash{}, err
	}
	if receipt.Status != 1 {
		return receipt.TxHash, fmt.Errorf("deposit %s reverted", receipt.TxHash.Hex())
	}
	r.logger.Info("gas tank funded", zap.String("tx", receipt.TxHash.Hex()), zap.String("wei", amount.String()))
	return receipt.TxHash, nil
}

// Approve lets the relayer contract spend amount of token from key's account.
func (r *Relayer) Approve(ctx context.Context, key *ecdsa.PrivateKey, token common.Address, amount *big.Int) (common.Hash, error) {
	parsed, err := erc20ApprovalABI()
	if err != nil {
		return common.Hash{}, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack("approve", r.contract, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack approve: %w", err)
	}
	receipt, err := r.transact(ctx, key, token, nil, data, "approve")
	if err != nil {
		return common.Hash{}, err
	}
	if receipt.Status != 1 {
		return receipt.TxHash, fmt.Errorf("approve %s reverted", receipt.TxHash.Hex())
	}
	r.logger.Info("allowance granted", zap.String("token", token.Hex()), zap.String("amount", amount.String()))
	return receipt.TxHash, nil
}

// Allowance returns how much of token the relayer contract may spend for owner.
func (r *Relayer) Allowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	parsed, err := erc20ApprovalABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack("allowance", owner, r.contract)
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}
	resp, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call allowance: %w", err)
	}
	values, err := parsed.Unpack("allowance", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack allowance: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("allowance returned no values")
	}
	return asBigInt(values[0])
}

func (r *Relayer) call(ctx context.Context, from common.Address, method string, args ...interface{}) ([]interface{}, error) {
	parsed, err := RelayerABI()
	if err != nil {
		return nil, fmt.Errorf("parse relayer abi: %w", err)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := r.backend.CallContract(ctx, ethereum.CallMsg{From: from, To: &r.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	v, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
	return new(big.Int).Set(v), nil
}
