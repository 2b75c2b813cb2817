package dex

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Pool reads used for sanity checks and pricing. slot0 keeps all seven outputs so the
// unpacked tuple matches the deployed pool.
const v3PoolABIJSON = `[
  {"inputs": [], "name": "token0", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token1", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "fee", "outputs": [{"type": "uint24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "tickSpacing", "outputs": [{"type": "int24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "liquidity", "outputs": [{"type": "uint128"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "slot0", "outputs": [
    {"name": "sqrtPriceX96", "type": "uint160"},
    {"name": "tick", "type": "int24"},
    {"name": "observationIndex", "type": "uint16"},
    {"name": "observationCardinality", "type": "uint16"},
    {"name": "observationCardinalityNext", "type": "uint16"},
    {"name": "feeProtocol", "type": "uint8"},
    {"name": "unlocked", "type": "bool"}
  ], "stateMutability": "view", "type": "function"}
]`

const v3FactoryABIJSON = `[
  {"inputs": [
    {"name": "tokenA", "type": "address"},
    {"name": "tokenB", "type": "address"},
    {"name": "fee", "type": "uint24"}
  ], "name": "getPool", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"}
]`

var (
	v3PoolABI    parsedABI
	v3FactoryABI parsedABI
)

func (p *parsedABI) load(definition string) (abi.ABI, error) {
	p.once.Do(func() {
		p.parsed, p.err = abi.JSON(strings.NewReader(definition))
	})
	return p.parsed, p.err
}

// V3PoolABI returns the parsed V3 pool ABI.
func V3PoolABI() (abi.ABI, error) {
	return v3PoolABI.load(v3PoolABIJSON)
}

// V3FactoryABI returns the parsed V3 factory ABI.
func V3FactoryABI() (abi.ABI, error) {
	return v3FactoryABI.load(v3FactoryABIJSON)
}
