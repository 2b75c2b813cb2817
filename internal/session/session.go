// Package session ties the resolver, quote estimator, codec and relayer together for one signer.
// A Session replaces ambient wallet state: it is created by Connect, passed explicitly, and
// released with Close.
package session

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"u3relay/internal/chain"
	"u3relay/internal/config"
	"u3relay/internal/dex"
	"u3relay/internal/model"
	"u3relay/internal/relayer"
	"u3relay/internal/storage"
	"u3relay/internal/storage/postgres"
	"u3relay/internal/wire"
)

var (
	ErrNoSigner  = errors.New("signer key not configured")
	ErrNoRelayer = errors.New("relayer contract not configured")
	ErrNoStore   = errors.New("postgres ledger not configured")
)

// Backend is the chain access a session needs. *chain.Client satisfies it.
type Backend interface {
	relayer.Backend
	LatestTimestamp(ctx context.Context) (uint64, error)
}

// Session holds the connection, keys and collaborators for one signer.
type Session struct {
	cfg      config.Config
	backend  Backend
	chainID  *big.Int
	resolver *dex.PoolResolver
	relayer  *relayer.Relayer
	ledger   storage.Ledger
	store    *postgres.Store
	pools    *dex.PoolMetaCache
	tokens   *dex.TokenMetaCache
	logger   *zap.Logger
	now      func() time.Time

	signerKey *ecdsa.PrivateKey
	signer    common.Address

	closers []func()
}

// Connect dials the configured RPC endpoint, checks the chain id and opens the ledgers.
func Connect(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Session, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	closers := []func(){client.Close}
	fail := func(err error) (*Session, error) {
		runClosers(closers)
		return nil, err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return fail(fmt.Errorf("chain id: %w", err))
	}
	if cfg.ChainID != 0 && chainID.Uint64() != cfg.ChainID {
		return fail(fmt.Errorf("rpc serves chain %s, configured chain %d", chainID, cfg.ChainID))
	}

	var (
		ledgers []storage.Ledger
		store   *postgres.Store
	)
	if cfg.Out != "" {
		ledgers = append(ledgers, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fail(fmt.Errorf("open postgres: %w", err))
		}
		closers = append(closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return fail(fmt.Errorf("ensure schema: %w", err))
		}
		ledgers = append(ledgers, store)
	}

	s, err := New(client, chainID, cfg, storage.Multi(ledgers...), logger)
	if err != nil {
		return fail(err)
	}
	s.closers = closers
	s.store = store
	if s.relayer != nil && s.relayer.Address() != (common.Address{}) {
		balance, err := client.BalanceAt(ctx, s.relayer.Address())
		switch {
		case err != nil:
			logger.Warn("relayer balance read failed", zap.Error(err))
		case balance.Sign() == 0:
			logger.Warn("relayer account has no ether for gas", zap.String("relayer", s.relayer.Address().Hex()))
		}
	}
	logger.Info("session connected",
		zap.String("chain_id", chainID.String()),
		zap.String("signer", s.signer.Hex()),
		zap.String("relayer", s.relayerAddress().Hex()),
	)
	return s, nil
}

// New builds a session over an existing backend. ledger may be nil.
func New(backend Backend, chainID *big.Int, cfg config.Config, ledger storage.Ledger, logger *zap.Logger) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver, err := cfg.PoolResolver()
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		backend:  backend,
		chainID:  new(big.Int).Set(chainID),
		resolver: resolver,
		ledger:   ledger,
		pools:    dex.NewPoolMetaCache(),
		tokens:   dex.NewTokenMetaCache(),
		logger:   logger,
		now:      time.Now,
	}

	if cfg.SignerKey != "" {
		key, err := ParseKey(cfg.SignerKey)
		if err != nil {
			return nil, fmt.Errorf("signer key: %w", err)
		}
		s.signerKey = key
		s.signer = crypto.PubkeyToAddress(key.PublicKey)
	}

	if cfg.Relayer != "" {
		contract, err := wire.ParseAddress(cfg.Relayer)
		if err != nil {
			return nil, fmt.Errorf("relayer: %w", err)
		}
		var relayerKey *ecdsa.PrivateKey
		if cfg.RelayerKey != "" {
			relayerKey, err = ParseKey(cfg.RelayerKey)
			if err != nil {
				return nil, fmt.Errorf("relayer key: %w", err)
			}
		}
		s.relayer, err = relayer.New(backend, contract, chainID, relayerKey, relayer.Options{
			MaxRetries:     cfg.MaxRetries,
			RetryBaseDelay: cfg.RetryBackoff,
			ReceiptTimeout: cfg.ReceiptTimeout,
			GasLimit:       cfg.GasLimit,
		}, logger.Named("relayer"))
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close releases the RPC connection and ledgers.
func (s *Session) Close() {
	runClosers(s.closers)
	s.closers = nil
}

// Signer returns the signer address, or the zero address when no key is loaded.
func (s *Session) Signer() common.Address {
	return s.signer
}

// ChainID returns the connected chain id.
func (s *Session) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// Resolver returns the pool address resolver.
func (s *Session) Resolver() *dex.PoolResolver {
	return s.resolver
}

// Relayer returns the contract binding, or nil when no contract is configured.
func (s *Session) Relayer() *relayer.Relayer {
	return s.relayer
}

// Backend returns the chain backend.
func (s *Session) Backend() Backend {
	return s.backend
}

// Ledger returns the configured ledger, or nil.
func (s *Session) Ledger() storage.Ledger {
	return s.ledger
}

// Store returns the Postgres ledger opened by Connect, or nil when none is configured.
func (s *Session) Store() *postgres.Store {
	return s.store
}

// Pending loads unexpired authorizations on the session's chain that have not been relayed
// successfully, through the session's own Postgres pool.
func (s *Session) Pending(ctx context.Context, limit int) ([]model.AuthorizationRecord, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.LoadPending(ctx, s.chainID.Uint64(), s.now(), limit)
}

func (s *Session) relayerAddress() common.Address {
	if s.relayer == nil {
		return common.Address{}
	}
	return s.relayer.Contract()
}

// ParseKey parses a hex secp256k1 private key with or without 0x.
func ParseKey(input string) (*ecdsa.PrivateKey, error) {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(strings.TrimPrefix(input, "0x"), "0X")
	return crypto.HexToECDSA(input)
}

func runClosers(closers []func()) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
}
