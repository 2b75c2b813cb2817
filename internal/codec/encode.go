package codec

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"u3relay/internal/wire"
)

// swapParamsSchema is tuple(uint256,uint256,uint256,uint256,address,uint160,bool).
var swapParamsSchema = wire.Schema{
	{Name: "amountSpecified", Type: wire.Uint256},
	{Name: "limitAmount", Type: wire.Uint256},
	{Name: "deadline", Type: wire.Uint256},
	{Name: "nonce", Type: wire.Uint256},
	{Name: "pool", Type: wire.Address},
	{Name: "sqrtPriceLimitX96", Type: wire.Uint160},
	{Name: "exactIn", Type: wire.Bool},
}

// callbackDataSchema is tuple(address,address,address,uint24).
var callbackDataSchema = wire.Schema{
	{Name: "tokenIn", Type: wire.Address},
	{Name: "tokenOut", Type: wire.Address},
	{Name: "recipient", Type: wire.Address},
	{Name: "fee", Type: wire.Uint24},
}

var nestedSchema = wire.Schema{
	{Name: "swapParams", Type: wire.Bytes},
	{Name: "callbackData", Type: wire.Bytes},
}

var flatSchema = wire.Schema{
	{Name: "amountSpecified", Type: wire.Uint256},
	{Name: "limitAmount", Type: wire.Uint256},
	{Name: "deadline", Type: wire.Uint256},
	{Name: "nonce", Type: wire.Uint256},
	{Name: "pool", Type: wire.Address},
	{Name: "tokenIn", Type: wire.Address},
	{Name: "tokenOut", Type: wire.Address},
	{Name: "recipient", Type: wire.Address},
	{Name: "sqrtPriceLimitX96", Type: wire.Uint160},
	{Name: "fee", Type: wire.Uint24},
	{Name: "exactIn", Type: wire.Bool},
}

// Encode serializes intent with the field order of variant.
func Encode(intent SwapIntent, variant Variant) ([]byte, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}

	switch variant {
	case VariantNested:
		swapParams, err := swapParamsSchema.Pack(
			intent.AmountSpecified,
			intent.LimitAmount,
			intent.deadline(),
			intent.Nonce,
			intent.Pool,
			intent.sqrtPriceLimit(),
			intent.ExactIn,
		)
		if err != nil {
			return nil, fmt.Errorf("encode swap params: %w", err)
		}
		callbackData, err := callbackDataSchema.Pack(
			intent.TokenIn,
			intent.TokenOut,
			intent.Recipient,
			intent.fee(),
		)
		if err != nil {
			return nil, fmt.Errorf("encode callback data: %w", err)
		}
		payload, err := nestedSchema.Pack(swapParams, callbackData)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return payload, nil
	case VariantFlat:
		payload, err := flatSchema.Pack(
			intent.AmountSpecified,
			intent.LimitAmount,
			intent.deadline(),
			intent.Nonce,
			intent.Pool,
			intent.TokenIn,
			intent.TokenOut,
			intent.Recipient,
			intent.sqrtPriceLimit(),
			intent.fee(),
			intent.ExactIn,
		)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("unsupported payload variant %s", variant)
	}
}

// Decode parses a payload produced by Encode. Non-canonical encodings are rejected so that a
// decoded intent always re-encodes to the exact bytes that were signed.
func Decode(payload []byte, variant Variant) (SwapIntent, error) {
	var intent SwapIntent

	switch variant {
	case VariantNested:
		outer, err := nestedSchema.Unpack(payload)
		if err != nil {
			return SwapIntent{}, fmt.Errorf("decode payload: %w", err)
		}
		swapParams, ok1 := outer[0].([]byte)
		callbackData, ok2 := outer[1].([]byte)
		if !ok1 || !ok2 {
			return SwapIntent{}, fmt.Errorf("decode payload: unexpected outer types %T, %T", outer[0], outer[1])
		}

		params, err := swapParamsSchema.Unpack(swapParams)
		if err != nil {
			return SwapIntent{}, fmt.Errorf("decode swap params: %w", err)
		}
		callback, err := callbackDataSchema.Unpack(callbackData)
		if err != nil {
			return SwapIntent{}, fmt.Errorf("decode callback data: %w", err)
		}

		d := decoder{}
		intent = SwapIntent{
			AmountSpecified:   d.bigInt(params[0], "amountSpecified"),
			LimitAmount:       d.bigInt(params[1], "limitAmount"),
			Deadline:          d.u64(params[2], "deadline"),
			Nonce:             d.bigInt(params[3], "nonce"),
			Pool:              d.addr(params[4], "pool"),
			SqrtPriceLimitX96: d.bigInt(params[5], "sqrtPriceLimitX96"),
			ExactIn:           d.flag(params[6], "exactIn"),
			TokenIn:           d.addr(callback[0], "tokenIn"),
			TokenOut:          d.addr(callback[1], "tokenOut"),
			Recipient:         d.addr(callback[2], "recipient"),
			Fee:               d.fee(callback[3], "fee"),
		}
		if d.err != nil {
			return SwapIntent{}, d.err
		}
	case VariantFlat:
		values, err := flatSchema.Unpack(payload)
		if err != nil {
			return SwapIntent{}, fmt.Errorf("decode payload: %w", err)
		}

		d := decoder{}
		intent = SwapIntent{
			AmountSpecified:   d.bigInt(values[0], "amountSpecified"),
			LimitAmount:       d.bigInt(values[1], "limitAmount"),
			Deadline:          d.u64(values[2], "deadline"),
			Nonce:             d.bigInt(values[3], "nonce"),
			Pool:              d.addr(values[4], "pool"),
			TokenIn:           d.addr(values[5], "tokenIn"),
			TokenOut:          d.addr(values[6], "tokenOut"),
			Recipient:         d.addr(values[7], "recipient"),
			SqrtPriceLimitX96: d.bigInt(values[8], "sqrtPriceLimitX96"),
			Fee:               d.fee(values[9], "fee"),
			ExactIn:           d.flag(values[10], "exactIn"),
		}
		if d.err != nil {
			return SwapIntent{}, d.err
		}
	default:
		return SwapIntent{}, fmt.Errorf("unsupported payload variant %s", variant)
	}

	reencoded, err := Encode(intent, variant)
	if err != nil {
		return SwapIntent{}, fmt.Errorf("re-encode payload: %w", err)
	}
	if !bytes.Equal(reencoded, payload) {
		return SwapIntent{}, fmt.Errorf("payload is not canonically encoded")
	}
	return intent, nil
}

// decoder converts unpacked ABI values, keeping the first conversion error.
type decoder struct {
	err error
}

func (d *decoder) fail(field string, value interface{}) {
	if d.err == nil {
		d.err = fmt.Errorf("decode %s: unexpected type %T", field, value)
	}
}

func (d *decoder) bigInt(value interface{}, field string) *big.Int {
	v, ok := value.(*big.Int)
	if !ok {
		d.fail(field, value)
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func (d *decoder) u64(value interface{}, field string) uint64 {
	v := d.bigInt(value, field)
	if !v.IsUint64() {
		if d.err == nil {
			d.err = fmt.Errorf("decode %s: %w: %s overflows uint64", field, wire.ErrInvalidIntegerWidth, v)
		}
		return 0
	}
	return v.Uint64()
}

func (d *decoder) fee(value interface{}, field string) uint32 {
	v := d.bigInt(value, field)
	if v.BitLen() > 24 {
		if d.err == nil {
			d.err = fmt.Errorf("decode %s: %w: %s overflows uint24", field, wire.ErrInvalidIntegerWidth, v)
		}
		return 0
	}
	return uint32(v.Uint64())
}

func (d *decoder) addr(value interface{}, field string) common.Address {
	v, ok := value.(common.Address)
	if !ok {
		d.fail(field, value)
	}
	return v
}

func (d *decoder) flag(value interface{}, field string) bool {
	v, ok := value.(bool)
	if !ok {
		d.fail(field, value)
	}
	return v
}
