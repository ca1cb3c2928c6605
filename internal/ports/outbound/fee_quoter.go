package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UpdateFeeQuoter quotes the fee the price contract charges for an update.
type UpdateFeeQuoter interface {
	// GetUpdateFee returns the fee in wei for submitting updateData to contract.
	GetUpdateFee(ctx context.Context, contract common.Address, updateData [][]byte) (*big.Int, error)
}
