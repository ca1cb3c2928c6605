package abis

import (
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Price consumer contract method names.
const (
	ConsumerUpdatePrice = "updatePrice"
	ConsumerGetPrice    = "getPrice"
	ConsumerPause       = "pause"
	ConsumerUnpause     = "unpause"
)

// The consumer contract stores the last pushed price and only accepts
// updatePrice from its authorized keeper.
const priceConsumerABIJSON = `[
	{
		"inputs": [{"internalType": "bytes[]", "name": "updateData", "type": "bytes[]"}],
		"name": "updatePrice",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getPrice",
		"outputs": [
			{"internalType": "int64", "name": "price", "type": "int64"},
			{"internalType": "uint256", "name": "timestamp", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "pause",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "unpause",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

var priceConsumerABI = sync.OnceValue(func() *abi.ABI { return mustParseABI("price consumer", priceConsumerABIJSON) })

// PriceConsumerABI returns the ABI of the price consumer contract.
func PriceConsumerABI() *abi.ABI {
	return priceConsumerABI()
}
