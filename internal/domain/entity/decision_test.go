package entity

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDecision_MarshalJSON(t *testing.T) {
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")

	tests := []struct {
		name     string
		decision Decision
		want     string
	}{
		{
			name:     "no action",
			decision: NoAction("price within %d bps", 200),
			want:     `{"canExec":false,"message":"price within 200 bps"}`,
		},
		{
			name:     "execute",
			decision: Execute(CallData{To: to, Data: []byte{0x01, 0x02}, Value: big.NewInt(12345)}),
			want:     `{"canExec":true,"callData":[{"to":"0x1111111111111111111111111111111111111111","data":"0x0102","value":"12345"}]}`,
		},
		{
			name:     "execute without value",
			decision: Execute(CallData{To: to, Data: []byte{0xff}}),
			want:     `{"canExec":true,"callData":[{"to":"0x1111111111111111111111111111111111111111","data":"0xff"}]}`,
		},
		{
			name:     "execute drops message",
			decision: Decision{CanExec: true, Message: "ignored", CallData: []CallData{{To: to, Data: []byte{}}}},
			want:     `{"canExec":true,"callData":[{"to":"0x1111111111111111111111111111111111111111","data":"0x"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.decision)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("json = %s\nwant   %s", data, tt.want)
			}
		})
	}
}

func TestDecision_UnmarshalJSON(t *testing.T) {
	var d Decision
	data := `{"canExec":true,"callData":[{"to":"0x1111111111111111111111111111111111111111","data":"0xbeef","value":"7"}]}`
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !d.CanExec || len(d.CallData) != 1 {
		t.Fatalf("decision = %+v", d)
	}
	if d.CallData[0].Value.Int64() != 7 || d.CallData[0].Data[1] != 0xef {
		t.Errorf("call = %+v", d.CallData[0])
	}

	if err := json.Unmarshal([]byte(`{"canExec":true,"callData":[{"to":"0x1111111111111111111111111111111111111111","data":"0x","value":"seven"}]}`), &d); err == nil {
		t.Error("expected error for non-numeric value")
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	feed := MustParseFeedID(strings.Repeat("aa", 32))

	wrapped := []error{
		&ConfigFetchError{SourceID: "gist", Err: cause},
		&PriceFetchError{Endpoint: "https://hermes", Err: cause},
		&MalformedStateError{Key: "pythConfig", Err: cause},
		&StorageError{Op: "get", Key: "k", Err: cause},
		&CallBuildError{Step: "fee", Err: cause},
	}
	for _, err := range wrapped {
		if !errors.Is(err, cause) {
			t.Errorf("%T does not unwrap to its cause", err)
		}
	}

	partial := &PartialPriceDataError{Requested: 2, Received: 1, Missing: []FeedID{feed}}
	if !strings.Contains(partial.Error(), "not all prices available") || !strings.Contains(partial.Error(), feed.Hex()) {
		t.Errorf("PartialPriceDataError = %q", partial.Error())
	}

	eval := &EvaluationError{FeedID: feed, Reason: "last price is zero"}
	var target *EvaluationError
	if !errors.As(error(eval), &target) || target.Reason != "last price is zero" {
		t.Errorf("errors.As failed for %v", eval)
	}
}
