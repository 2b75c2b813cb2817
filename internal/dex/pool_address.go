package dex

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"u3relay/internal/wire"
)

// Uniswap V3 deployment on Ethereum mainnet.
const (
	DefaultFactory          = "0x1F98431c8aD98523631AE4a59f267346ea31F984"
	DefaultPoolInitCodeHash = "0xe34f199b19b2b4f47f68442619d555527d244f78a3297ea89325f843f87b8b54"
	DefaultWETH9            = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

const create2Prefix = 0xff

var poolKeySchema = wire.Schema{
	{Name: "tokenA", Type: wire.Address},
	{Name: "tokenB", Type: wire.Address},
	{Name: "fee", Type: wire.Uint24},
}

// PoolKey identifies a pool by token pair and fee tier.
// Tokens are hashed in the order given; the caller must supply the factory's token0/token1 order.
type PoolKey struct {
	TokenA common.Address
	TokenB common.Address
	Fee    uint32
}

// OrderedPoolKey builds the key the factory uses for a pair: the lower address becomes token0.
func OrderedPoolKey(tokenX, tokenY common.Address, fee uint32) PoolKey {
	if bytes.Compare(tokenX.Bytes(), tokenY.Bytes()) > 0 {
		tokenX, tokenY = tokenY, tokenX
	}
	return PoolKey{TokenA: tokenX, TokenB: tokenY, Fee: fee}
}

// Salt returns keccak256(abi.encode(tokenA, tokenB, fee)).
func (k PoolKey) Salt() (common.Hash, error) {
	if err := wire.CheckFee(k.Fee); err != nil {
		return common.Hash{}, err
	}
	encoded, err := poolKeySchema.Pack(k.TokenA, k.TokenB, new(big.Int).SetUint64(uint64(k.Fee)))
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode pool key: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}

// DeriveAddress computes the CREATE2 address of the pool deployed by factory for the token pair and fee:
// keccak256(0xff ++ factory ++ salt ++ initCodeHash)[12:].
func DeriveAddress(tokenA, tokenB common.Address, fee uint32, factory common.Address, initCodeHash common.Hash) (common.Address, error) {
	salt, err := PoolKey{TokenA: tokenA, TokenB: tokenB, Fee: fee}.Salt()
	if err != nil {
		return common.Address{}, err
	}

	data := new(wire.Packed).
		Byte(create2Prefix).
		Address(factory).
		Hash(salt).
		Hash(initCodeHash).
		Bytes()

	hash := crypto.Keccak256(data)
	return common.BytesToAddress(hash[12:]), nil
}

// DeriveAddressBytes is DeriveAddress over raw inputs. Addresses must be exactly 20 bytes and
// the init code hash exactly 32 bytes.
func DeriveAddressBytes(tokenA, tokenB []byte, fee uint32, factory, initCodeHash []byte) (common.Address, error) {
	a, err := wire.AddressFromBytes(tokenA)
	if err != nil {
		return common.Address{}, fmt.Errorf("tokenA: %w", err)
	}
	b, err := wire.AddressFromBytes(tokenB)
	if err != nil {
		return common.Address{}, fmt.Errorf("tokenB: %w", err)
	}
	f, err := wire.AddressFromBytes(factory)
	if err != nil {
		return common.Address{}, fmt.Errorf("factory: %w", err)
	}
	if len(initCodeHash) != common.HashLength {
		return common.Address{}, fmt.Errorf("%w: init code hash is %d bytes", wire.ErrInvalidHashWidth, len(initCodeHash))
	}
	return DeriveAddress(a, b, fee, f, common.BytesToHash(initCodeHash))
}

// PoolResolver derives pool addresses for one factory deployment.
type PoolResolver struct {
	Factory      common.Address
	InitCodeHash common.Hash
}

// NewPoolResolver parses the chain-specific factory address and pool init code hash.
func NewPoolResolver(factory, initCodeHash string) (*PoolResolver, error) {
	f, err := wire.ParseAddress(factory)
	if err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}
	h, err := wire.ParseHash(initCodeHash)
	if err != nil {
		return nil, fmt.Errorf("init code hash: %w", err)
	}
	return &PoolResolver{Factory: f, InitCodeHash: h}, nil
}

// Resolve returns the pool address for key.
func (r *PoolResolver) Resolve(key PoolKey) (common.Address, error) {
	return DeriveAddress(key.TokenA, key.TokenB, key.Fee, r.Factory, r.InitCodeHash)
}
