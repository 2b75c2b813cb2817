package wire

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Packed builds a tightly packed (abi.encodePacked) byte string: every value keeps its natural
// width and nothing is padded.
type Packed struct {
	buf []byte
}

// Byte appends a single byte.
func (p *Packed) Byte(b byte) *Packed {
	p.buf = append(p.buf, b)
	return p
}

// Address appends the 20 address bytes.
func (p *Packed) Address(addr common.Address) *Packed {
	p.buf = append(p.buf, addr.Bytes()...)
	return p
}

// Hash appends the 32 hash bytes.
func (p *Packed) Hash(h common.Hash) *Packed {
	p.buf = append(p.buf, h.Bytes()...)
	return p
}

// Uint256 appends value as a 32-byte big-endian word. value must already satisfy CheckUint(value, 256).
func (p *Packed) Uint256(value *big.Int) *Packed {
	p.buf = append(p.buf, common.LeftPadBytes(value.Bytes(), 32)...)
	return p
}

// Raw appends data unchanged.
func (p *Packed) Raw(data []byte) *Packed {
	p.buf = append(p.buf, data...)
	return p
}

// Bytes returns the packed encoding.
func (p *Packed) Bytes() []byte {
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out
}
