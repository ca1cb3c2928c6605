package blockchain

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
	"github.com/archon-research/stl/pyth-keeper/internal/pkg/blockchain/abis"
)

func unpack(t *testing.T, parsed *abi.ABI, data []byte) (string, []any) {
	t.Helper()
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		t.Fatalf("MethodById: %v", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	return method.Name, args
}

func TestEncodeUpdateCall_Multi(t *testing.T) {
	idA := entity.MustParseFeedID("0xaa" + strings.Repeat("00", 31))
	idB := entity.MustParseFeedID("0x" + strings.Repeat("bb", 32))
	update := [][]byte{{0x01, 0x02}, {0x03}}

	data, err := EncodeUpdateCall(UpdateCall{
		Mode:         entity.CallModeMulti,
		UpdateData:   update,
		FeedIDs:      []entity.FeedID{idA, idB},
		PublishTimes: []int64{1000, 2000},
	})
	if err != nil {
		t.Fatalf("EncodeUpdateCall: %v", err)
	}

	name, args := unpack(t, abis.PythABI(), data)
	if name != abis.PythUpdatePriceFeedsIfNecessary {
		t.Fatalf("method = %s", name)
	}

	gotData := args[0].([][]byte)
	if len(gotData) != 2 || !bytes.Equal(gotData[0], update[0]) || !bytes.Equal(gotData[1], update[1]) {
		t.Errorf("updateData = %x", gotData)
	}
	gotIDs := args[1].([][32]byte)
	if len(gotIDs) != 2 || gotIDs[0] != idA.Bytes32() || gotIDs[1] != idB.Bytes32() {
		t.Errorf("priceIds = %x", gotIDs)
	}
	gotTimes := args[2].([]uint64)
	if len(gotTimes) != 2 || gotTimes[0] != 1000 || gotTimes[1] != 2000 {
		t.Errorf("publishTimes = %v", gotTimes)
	}
}

func TestEncodeUpdateCall_SingleArgModes(t *testing.T) {
	update := [][]byte{{0xde, 0xad}}

	tests := []struct {
		mode   entity.CallMode
		parsed *abi.ABI
		method string
	}{
		{mode: entity.CallModeFeeds, parsed: abis.PythABI(), method: abis.PythUpdatePriceFeeds},
		{mode: entity.CallModeConsumer, parsed: abis.PriceConsumerABI(), method: abis.ConsumerUpdatePrice},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			data, err := EncodeUpdateCall(UpdateCall{Mode: tt.mode, UpdateData: update})
			if err != nil {
				t.Fatalf("EncodeUpdateCall: %v", err)
			}
			name, args := unpack(t, tt.parsed, data)
			if name != tt.method {
				t.Errorf("method = %s, want %s", name, tt.method)
			}
			got := args[0].([][]byte)
			if len(got) != 1 || !bytes.Equal(got[0], update[0]) {
				t.Errorf("updateData = %x", got)
			}
		})
	}
}

func TestEncodeUpdateCall_Errors(t *testing.T) {
	id := entity.MustParseFeedID("0x" + strings.Repeat("cc", 32))

	tests := []struct {
		name string
		call UpdateCall
	}{
		{name: "empty update data", call: UpdateCall{Mode: entity.CallModeFeeds}},
		{name: "length mismatch", call: UpdateCall{Mode: entity.CallModeMulti, UpdateData: [][]byte{{1}}, FeedIDs: []entity.FeedID{id}}},
		{name: "negative publish time", call: UpdateCall{Mode: entity.CallModeMulti, UpdateData: [][]byte{{1}}, FeedIDs: []entity.FeedID{id}, PublishTimes: []int64{-1}}},
		{name: "unknown mode", call: UpdateCall{Mode: "broadcast", UpdateData: [][]byte{{1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeUpdateCall(tt.call); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncodeGetUpdateFee(t *testing.T) {
	data, err := EncodeGetUpdateFee([][]byte{{0x01}})
	if err != nil {
		t.Fatalf("EncodeGetUpdateFee: %v", err)
	}
	name, _ := unpack(t, abis.PythABI(), data)
	if name != abis.PythGetUpdateFee {
		t.Errorf("method = %s", name)
	}
}
