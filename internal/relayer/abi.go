package relayer

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const relayerABIJSON = `[
  {
    "inputs": [
      {"internalType": "uint8", "name": "v", "type": "uint8"},
      {"internalType": "bytes32", "name": "r", "type": "bytes32"},
      {"internalType": "bytes32", "name": "s", "type": "bytes32"},
      {"internalType": "bytes", "name": "payload", "type": "bytes"}
    ],
    "name": "relayedSwap",
    "outputs": [{"internalType": "uint256", "name": "amount", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "uint8", "name": "v", "type": "uint8"},
      {"internalType": "bytes32", "name": "r", "type": "bytes32"},
      {"internalType": "bytes32", "name": "s", "type": "bytes32"},
      {"internalType": "bytes", "name": "payload", "type": "bytes"}
    ],
    "name": "signedSwap",
    "outputs": [{"internalType": "uint256", "name": "amount", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"internalType": "address", "name": "", "type": "address"}],
    "name": "nonces",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "tokenIn", "type": "address"},
      {"internalType": "address", "name": "tokenOut", "type": "address"},
      {"internalType": "uint24", "name": "fee", "type": "uint24"},
      {"internalType": "uint256", "name": "amountIn", "type": "uint256"},
      {"internalType": "uint256", "name": "amountOut", "type": "uint256"}
    ],
    "name": "quote",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "gasTank",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const gasTankABIJSON = `[
  {
    "inputs": [],
    "name": "deposit",
    "outputs": [],
    "stateMutability": "payable",
    "type": "function"
  }
]`

const erc20ABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "spender", "type": "address"},
      {"internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "approve",
    "outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address", "name": "owner", "type": "address"},
      {"internalType": "address", "name": "spender", "type": "address"}
    ],
    "name": "allowance",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	relayerABIOnce sync.Once
	relayerABI     abi.ABI
	relayerABIErr  error

	gasTankABIOnce sync.Once
	gasTankABI     abi.ABI
	gasTankABIErr  error

	erc20ABIOnce sync.Once
	erc20ABI     abi.ABI
	erc20ABIErr  error
)

// RelayerABI returns the parsed uniV3Relayed ABI.
func RelayerABI() (abi.ABI, error) {
	relayerABIOnce.Do(func() {
		relayerABI, relayerABIErr = abi.JSON(strings.NewReader(relayerABIJSON))
	})
	return relayerABI, relayerABIErr
}

// GasTankABI returns the parsed gas tank ABI.
func GasTankABI() (abi.ABI, error) {
	gasTankABIOnce.Do(func() {
		gasTankABI, gasTankABIErr = abi.JSON(strings.NewReader(gasTankABIJSON))
	})
	return gasTankABI, gasTankABIErr
}

func erc20ApprovalABI() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}
