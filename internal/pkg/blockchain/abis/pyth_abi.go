package abis

import (
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Pyth contract method names.
const (
	PythGetUpdateFee                = "getUpdateFee"
	PythUpdatePriceFeeds            = "updatePriceFeeds"
	PythUpdatePriceFeedsIfNecessary = "updatePriceFeedsIfNecessary"
	PythGetPriceUnsafe              = "getPriceUnsafe"
)

const pythABIJSON = `[
	{
		"inputs": [{"internalType": "bytes[]", "name": "updateData", "type": "bytes[]"}],
		"name": "getUpdateFee",
		"outputs": [{"internalType": "uint256", "name": "feeAmount", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "bytes[]", "name": "updateData", "type": "bytes[]"}],
		"name": "updatePriceFeeds",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "bytes[]", "name": "updateData", "type": "bytes[]"},
			{"internalType": "bytes32[]", "name": "priceIds", "type": "bytes32[]"},
			{"internalType": "uint64[]", "name": "publishTimes", "type": "uint64[]"}
		],
		"name": "updatePriceFeedsIfNecessary",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "bytes32", "name": "id", "type": "bytes32"}],
		"name": "getPriceUnsafe",
		"outputs": [
			{
				"components": [
					{"internalType": "int64", "name": "price", "type": "int64"},
					{"internalType": "uint64", "name": "conf", "type": "uint64"},
					{"internalType": "int32", "name": "expo", "type": "int32"},
					{"internalType": "uint256", "name": "publishTime", "type": "uint256"}
				],
				"internalType": "struct PythStructs.Price",
				"name": "price",
				"type": "tuple"
			}
		],
		"stateMutability": "view",
		"type": "function"
	}
]`

var pythABI = sync.OnceValue(func() *abi.ABI { return mustParseABI("pyth", pythABIJSON) })

// PythABI returns the subset of the Pyth contract ABI the keeper calls.
func PythABI() *abi.ABI {
	return pythABI()
}
