// Package ethrpc implements outbound ports that read from an EVM node.
package ethrpc

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/stl/pyth-keeper/internal/pkg/blockchain"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/blockchain/abis"
	"github.com/archon-research/stl/pyth-keeper/internal/ports/outbound"
)

var _ outbound.UpdateFeeQuoter = (*FeeQuoter)(nil)

// FeeQuoter quotes Pyth update fees with an eth_call against the latest block.
type FeeQuoter struct {
	caller ethereum.ContractCaller
	logger *slog.Logger
}

// NewFeeQuoter creates a FeeQuoter. caller is typically an *ethclient.Client.
func NewFeeQuoter(caller ethereum.ContractCaller, logger *slog.Logger) (*FeeQuoter, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FeeQuoter{
		caller: caller,
		logger: logger.With("component", "fee-quoter"),
	}, nil
}

// GetUpdateFee calls getUpdateFee(bytes[]) on contract.
func (q *FeeQuoter) GetUpdateFee(ctx context.Context, contract common.Address, updateData [][]byte) (*big.Int, error) {
	data, err := blockchain.EncodeGetUpdateFee(updateData)
	if err != nil {
		return nil, err
	}

	out, err := q.caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling getUpdateFee on %s: %w", contract.Hex(), err)
	}

	values, err := abis.PythABI().Unpack(abis.PythGetUpdateFee, out)
	if err != nil {
		return nil, fmt.Errorf("unpacking getUpdateFee result: %w", err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getUpdateFee returned %d values, expected 1", len(values))
	}
	fee, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("getUpdateFee returned %T, expected *big.Int", values[0])
	}

	q.logger.Debug("quoted update fee", "contract", contract.Hex(), "updates", len(updateData), "fee", fee)
	return fee, nil
}
