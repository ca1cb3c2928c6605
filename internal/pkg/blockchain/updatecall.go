// Package blockchain encodes the on-chain calls the keeper recommends.
package blockchain

import (
	"fmt"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/blockchain/abis"
)

// UpdateCall is the input for one price update call.
// FeedIDs and PublishTimes are parallel slices; only CallModeMulti reads them.
type UpdateCall struct {
	Mode         entity.CallMode
	UpdateData   [][]byte
	FeedIDs      []entity.FeedID
	PublishTimes []int64
}

// EncodeUpdateCall ABI-encodes the update call for the given mode.
func EncodeUpdateCall(call UpdateCall) ([]byte, error) {
	if len(call.UpdateData) == 0 {
		return nil, fmt.Errorf("update data is empty")
	}

	switch call.Mode {
	case entity.CallModeMulti, "":
		if len(call.FeedIDs) != len(call.PublishTimes) {
			return nil, fmt.Errorf("feed ids (%d) and publish times (%d) differ in length",
				len(call.FeedIDs), len(call.PublishTimes))
		}
		ids := make([][32]byte, len(call.FeedIDs))
		times := make([]uint64, len(call.PublishTimes))
		for i, id := range call.FeedIDs {
			ids[i] = id.Bytes32()
			if call.PublishTimes[i] < 0 {
				return nil, fmt.Errorf("negative publish time for feed %s", id)
			}
			times[i] = uint64(call.PublishTimes[i])
		}
		return pack(abis.PythABI().Pack(abis.PythUpdatePriceFeedsIfNecessary, call.UpdateData, ids, times))

	case entity.CallModeFeeds:
		return pack(abis.PythABI().Pack(abis.PythUpdatePriceFeeds, call.UpdateData))

	case entity.CallModeConsumer:
		return pack(abis.PriceConsumerABI().Pack(abis.ConsumerUpdatePrice, call.UpdateData))

	default:
		return nil, fmt.Errorf("unknown call mode %q", call.Mode)
	}
}

// EncodeGetUpdateFee encodes a getUpdateFee(bytes[]) call.
func EncodeGetUpdateFee(updateData [][]byte) ([]byte, error) {
	return pack(abis.PythABI().Pack(abis.PythGetUpdateFee, updateData))
}

func pack(data []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, fmt.Errorf("packing call: %w", err)
	}
	return data, nil
}
