package wire

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI types used by the swap payload schemas.
var (
	Uint256 = mustNewType("uint256")
	Uint160 = mustNewType("uint160")
	Uint24  = mustNewType("uint24")
	Uint8   = mustNewType("uint8")
	Address = mustNewType("address")
	Bool    = mustNewType("bool")
	Bytes   = mustNewType("bytes")
	Bytes32 = mustNewType("bytes32")
)

// Field is one named, typed slot of a schema.
type Field struct {
	Name string
	Type abi.Type
}

// Schema is an ordered field list encoded with the padded (abi.encode) rules.
//
// For a schema made only of static types the encoding of the field list is identical to the
// encoding of a single tuple holding the same fields, so a Schema also describes tuple(...) payloads.
type Schema []Field

// Arguments converts the schema into go-ethereum ABI arguments.
func (s Schema) Arguments() abi.Arguments {
	args := make(abi.Arguments, 0, len(s))
	for _, field := range s {
		args = append(args, abi.Argument{Name: field.Name, Type: field.Type})
	}
	return args
}

// Static reports whether every field has a fixed encoded size.
func (s Schema) Static() bool {
	for _, field := range s {
		if isDynamic(field.Type) {
			return false
		}
	}
	return true
}

// Size returns the encoded size of an all-static schema.
func (s Schema) Size() int {
	return len(s) * 32
}

// Pack encodes values in schema order.
func (s Schema) Pack(values ...interface{}) ([]byte, error) {
	if len(values) != len(s) {
		return nil, fmt.Errorf("schema expects %d values, got %d", len(s), len(values))
	}
	return s.Arguments().Pack(values...)
}

// Unpack decodes data in schema order. All-static schemas require the exact encoded size.
func (s Schema) Unpack(data []byte) ([]interface{}, error) {
	if s.Static() && len(data) != s.Size() {
		return nil, fmt.Errorf("payload is %d bytes, want %d", len(data), s.Size())
	}
	return s.Arguments().Unpack(data)
}

func isDynamic(t abi.Type) bool {
	switch t.T {
	case abi.StringTy, abi.BytesTy, abi.SliceTy:
		return true
	case abi.TupleTy:
		for _, elem := range t.TupleElems {
			if isDynamic(*elem) {
				return true
			}
		}
	case abi.ArrayTy:
		return isDynamic(*t.Elem)
	}
	return false
}

func mustNewType(name string) abi.Type {
	typ, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", name, err))
	}
	return typ
}
