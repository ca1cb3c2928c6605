package abis

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ParseABI parses a JSON ABI definition.
func ParseABI(abiJSON string) (*abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func mustParseABI(name, abiJSON string) *abi.ABI {
	parsed, err := ParseABI(abiJSON)
	if err != nil {
		panic(fmt.Sprintf("parsing %s ABI: %v", name, err))
	}
	return parsed
}
