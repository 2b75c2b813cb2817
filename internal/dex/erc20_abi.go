package dex

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Some tokens (MKR, SAI) return bytes32 from name and symbol, so the ERC20 reads are parsed
// twice with different text output types. Selectors are identical.
const erc20ABITemplate = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "%[1]s"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "%[1]s"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "owner", "type": "address"}], "name": "balanceOf", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const (
	textString  = "string"
	textBytes32 = "bytes32"
)

type parsedABI struct {
	once   sync.Once
	parsed abi.ABI
	err    error
}

var erc20ABIs = map[string]*parsedABI{
	textString:  {},
	textBytes32: {},
}

func erc20ABI(textType string) (abi.ABI, error) {
	entry, ok := erc20ABIs[textType]
	if !ok {
		return abi.ABI{}, fmt.Errorf("unsupported erc20 text type %q", textType)
	}
	return entry.load(fmt.Sprintf(erc20ABITemplate, textType))
}
