package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ContractCaller executes read-only contract calls. *chain.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

func callMethod(ctx context.Context, caller ContractCaller, to common.Address, parsed abi.ABI, method string, block *big.Int, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, block)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("call %s on %s: empty result, no contract at address?", method, to.Hex())
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

func asAddress(value interface{}) (common.Address, error) {
	addr, ok := value.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
	return addr, nil
}

// asBigInt accepts the Go types abi.Unpack produces for integer outputs: *big.Int above
// 64 bits and for 24-bit widths, native integers otherwise.
func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asText(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	default:
		return "", false
	}
}

var (
	minInt24 = big.NewInt(-1 << 23)
	maxInt24 = big.NewInt(1<<23 - 1)
)

func asInt24(value interface{}) (int32, error) {
	v, err := asBigInt(value)
	if err != nil {
		return 0, err
	}
	if v.Cmp(minInt24) < 0 || v.Cmp(maxInt24) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", v)
	}
	return int32(v.Int64()), nil
}
