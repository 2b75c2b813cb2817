package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"u3relay/internal/codec"
	"u3relay/internal/dex"
	"u3relay/internal/model"
	"u3relay/internal/quote"
	"u3relay/internal/wire"
)

// SwapRequest is what a user asks for before pool state is known.
type SwapRequest struct {
	TokenIn  common.Address
	TokenOut common.Address
	Fee      uint32
	// Amount is the input amount when ExactIn is set, the output amount otherwise.
	Amount  *big.Int
	ExactIn bool
	// Recipient defaults to the signer.
	Recipient         common.Address
	SqrtPriceLimitX96 *big.Int
	// SlippageBps overrides the configured tolerance when non-zero.
	SlippageBps uint32
}

// Prepared is an unsigned intent together with the pool state it was priced from.
type Prepared struct {
	Intent  codec.SwapIntent
	Key     dex.PoolKey
	Slot0   dex.Slot0
	Quote   quote.Quote
	Variant codec.Variant
	Binding codec.NonceBinding
}

// Authorization is a signed payload with its persisted record.
type Authorization struct {
	Signed codec.SignedPayload
	Record model.AuthorizationRecord
}

// Prepare resolves the pool, reads the signer nonce, pool slot0 and chain time concurrently,
// and prices limitAmount.
func (s *Session) Prepare(ctx context.Context, req SwapRequest) (Prepared, error) {
	if s.signerKey == nil {
		return Prepared{}, ErrNoSigner
	}
	if s.relayer == nil {
		return Prepared{}, ErrNoRelayer
	}
	if err := wire.CheckUint(req.Amount, 256); err != nil {
		return Prepared{}, fmt.Errorf("amount: %w", err)
	}
	if req.TokenIn == req.TokenOut {
		return Prepared{}, fmt.Errorf("token in and token out are the same")
	}

	key := dex.OrderedPoolKey(req.TokenIn, req.TokenOut, req.Fee)
	pool, err := s.resolver.Resolve(key)
	if err != nil {
		return Prepared{}, fmt.Errorf("resolve pool: %w", err)
	}

	var (
		nonce     *big.Int
		slot0     dex.Slot0
		chainTime uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.relayer.Nonce(gctx, s.signer)
		if err != nil {
			return fmt.Errorf("read nonce: %w", err)
		}
		nonce = n
		return nil
	})
	g.Go(func() error {
		st, err := dex.FetchSlot0(gctx, s.backend, pool, nil)
		if err != nil {
			return fmt.Errorf("read slot0 of %s: %w", pool.Hex(), err)
		}
		slot0 = st
		return nil
	})
	g.Go(func() error {
		return s.checkPool(gctx, pool, key)
	})
	g.Go(func() error {
		ts, err := s.backend.LatestTimestamp(gctx)
		if err != nil {
			return fmt.Errorf("read chain time: %w", err)
		}
		chainTime = ts
		return nil
	})
	if err := g.Wait(); err != nil {
		return Prepared{}, err
	}

	known := req.TokenOut
	if req.ExactIn {
		known = req.TokenIn
	}
	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = s.cfg.SlippageBps
	}
	q, err := quote.Estimate(quote.Request{
		Amount:        req.Amount,
		KnownIsToken0: known == key.TokenA,
		ExactIn:       req.ExactIn,
		SlippageBps:   slippage,
		ObservedAt:    s.now(),
	}, slot0.Tick)
	if err != nil {
		return Prepared{}, fmt.Errorf("estimate: %w", err)
	}

	recipient := req.Recipient
	if recipient == (common.Address{}) {
		recipient = s.signer
	}
	intent := codec.SwapIntent{
		AmountSpecified:   new(big.Int).Set(req.Amount),
		LimitAmount:       q.Limit,
		Deadline:          chainTime + uint64(s.cfg.DeadlineWindow/time.Second),
		Nonce:             nonce,
		Pool:              pool,
		TokenIn:           req.TokenIn,
		TokenOut:          req.TokenOut,
		Recipient:         recipient,
		SqrtPriceLimitX96: req.SqrtPriceLimitX96,
		Fee:               req.Fee,
		ExactIn:           req.ExactIn,
	}
	if err := intent.Validate(); err != nil {
		return Prepared{}, err
	}

	s.logger.Info("swap prepared",
		zap.String("pool", pool.Hex()),
		zap.Int32("tick", slot0.Tick),
		zap.String("nonce", nonce.String()),
		zap.String("counter", s.formatAmount(ctx, counterToken(req), q.Counter)),
		zap.String("limit", s.formatAmount(ctx, counterToken(req), q.Limit)),
		zap.Uint64("deadline", intent.Deadline),
	)

	return Prepared{
		Intent:  intent,
		Key:     key,
		Slot0:   slot0,
		Quote:   q,
		Variant: s.cfg.PayloadVariant(),
		Binding: s.cfg.Binding(),
	}, nil
}

// Sign signs a prepared intent and records it in the ledger. A stale quote is logged, not refused.
func (s *Session) Sign(ctx context.Context, prepared Prepared) (Authorization, error) {
	if s.signerKey == nil {
		return Authorization{}, ErrNoSigner
	}

	var stale *quote.StaleQuoteError
	if err := prepared.Quote.CheckFresh(s.now(), s.cfg.QuoteMaxAge); errors.As(err, &stale) {
		s.logger.Warn("signing with stale quote", zap.Duration("age", stale.Age), zap.Duration("max_age", stale.MaxAge))
	}

	signed, err := codec.Authorize(prepared.Intent, prepared.Variant, prepared.Binding, s.signerKey)
	if err != nil {
		return Authorization{}, err
	}
	record, err := signed.Record(uuid.NewString(), s.chainID.Uint64(), s.signer, s.now())
	if err != nil {
		return Authorization{}, err
	}
	if s.ledger != nil {
		if err := s.ledger.UpsertAuthorizations(ctx, []model.AuthorizationRecord{record}); err != nil {
			return Authorization{}, fmt.Errorf("store authorization: %w", err)
		}
	}

	s.logger.Info("swap signed",
		zap.String("id", record.ID),
		zap.String("variant", record.Variant),
		zap.String("hash", record.Hash),
	)
	return Authorization{Signed: signed, Record: record}, nil
}

// Relay submits a stored authorization. The recorded signer must match the recovered one.
func (s *Session) Relay(ctx context.Context, record model.AuthorizationRecord) (model.RelayResult, error) {
	if s.relayer == nil {
		return model.RelayResult{}, ErrNoRelayer
	}
	if record.ChainID != 0 && record.ChainID != s.chainID.Uint64() {
		return model.RelayResult{}, fmt.Errorf("authorization %s is for chain %d, connected to %s", record.ID, record.ChainID, s.chainID)
	}
	signed, err := codec.FromRecord(record)
	if err != nil {
		return model.RelayResult{}, fmt.Errorf("authorization %s: %w", record.ID, err)
	}

	var expected common.Address
	if record.Signer != "" {
		expected, err = wire.ParseAddress(record.Signer)
		if err != nil {
			return model.RelayResult{}, fmt.Errorf("authorization %s signer: %w", record.ID, err)
		}
	}

	result, err := s.relayer.Submit(ctx, signed, expected)
	if err != nil {
		return model.RelayResult{}, err
	}
	result.AuthorizationID = record.ID
	if s.ledger != nil {
		if err := s.ledger.SaveRelayResult(ctx, result); err != nil {
			s.logger.Error("store relay result failed", zap.String("id", record.ID), zap.Error(err))
		}
	}
	return result, nil
}

// Deposit funds the contract's gas tank from the signer account.
func (s *Session) Deposit(ctx context.Context, amount *big.Int) (common.Hash, error) {
	if s.signerKey == nil {
		return common.Hash{}, ErrNoSigner
	}
	if s.relayer == nil {
		return common.Hash{}, ErrNoRelayer
	}
	return s.relayer.Deposit(ctx, s.signerKey, amount)
}

// Approve lets the relayer contract pull amount of token from the signer account.
func (s *Session) Approve(ctx context.Context, token common.Address, amount *big.Int) (common.Hash, error) {
	if s.signerKey == nil {
		return common.Hash{}, ErrNoSigner
	}
	if s.relayer == nil {
		return common.Hash{}, ErrNoRelayer
	}
	return s.relayer.Approve(ctx, s.signerKey, token, amount)
}

// checkPool confirms that the derived address hosts the expected pool. A mismatch means the
// configured factory or init code hash belongs to another deployment.
func (s *Session) checkPool(ctx context.Context, pool common.Address, key dex.PoolKey) error {
	meta, ok := s.pools.Get(pool)
	if !ok {
		fetched, err := dex.FetchPoolMeta(ctx, s.backend, pool)
		if err != nil {
			return fmt.Errorf("read pool %s: %w", pool.Hex(), err)
		}
		fetched.Address = pool.Hex()
		s.pools.Set(pool, fetched)
		meta = fetched
	}
	if meta.Token0 != key.TokenA.Hex() || meta.Token1 != key.TokenB.Hex() || meta.Fee != key.Fee {
		return fmt.Errorf("pool %s is %s/%s fee %d, expected %s/%s fee %d",
			pool.Hex(), meta.Token0, meta.Token1, meta.Fee, key.TokenA.Hex(), key.TokenB.Hex(), key.Fee)
	}
	return nil
}

// Allowance returns how much of token the relayer contract may pull from the signer.
func (s *Session) Allowance(ctx context.Context, token common.Address) (*big.Int, error) {
	if s.signerKey == nil {
		return nil, ErrNoSigner
	}
	if s.relayer == nil {
		return nil, ErrNoRelayer
	}
	return s.relayer.Allowance(ctx, token, s.signer)
}

// Balance reads the signer's balance of token.
func (s *Session) Balance(ctx context.Context, token common.Address) (*big.Int, error) {
	if s.signerKey == nil {
		return nil, ErrNoSigner
	}
	return dex.FetchBalance(ctx, s.backend, token, s.signer)
}

// TokenMeta returns cached ERC20 metadata for token.
func (s *Session) TokenMeta(ctx context.Context, token common.Address) model.TokenMeta {
	return dex.CachedTokenMeta(ctx, s.backend, s.tokens, token, s.logger)
}

func (s *Session) formatAmount(ctx context.Context, token common.Address, amount *big.Int) string {
	meta := s.TokenMeta(ctx, token)
	formatted := quote.FormatUnits(amount, meta.Decimals)
	if meta.Symbol != "" {
		formatted += " " + meta.Symbol
	}
	return formatted
}

// counterToken is the token whose amount the quote estimates.
func counterToken(req SwapRequest) common.Address {
	if req.ExactIn {
		return req.TokenOut
	}
	return req.TokenIn
}
