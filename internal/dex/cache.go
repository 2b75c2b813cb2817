package dex

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"u3relay/internal/model"
)

type addressCache[V any] struct {
	mu   sync.RWMutex
	data map[common.Address]V
}

func (c *addressCache[V]) Get(address common.Address) (V, bool) {
	c.mu.RLock()
	v, ok := c.data[address]
	c.mu.RUnlock()
	return v, ok
}

func (c *addressCache[V]) Set(address common.Address, v V) {
	c.mu.Lock()
	if c.data == nil {
		c.data = make(map[common.Address]V)
	}
	c.data[address] = v
	c.mu.Unlock()
}

// PoolMetaCache holds pool immutables by address. Slot0 is never cached.
type PoolMetaCache struct {
	addressCache[model.PoolMeta]
}

func NewPoolMetaCache() *PoolMetaCache {
	return &PoolMetaCache{}
}

// TokenMetaCache holds ERC20 metadata by address.
type TokenMetaCache struct {
	addressCache[model.TokenMeta]
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{}
}
