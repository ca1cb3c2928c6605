package entity

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CallData describes one transaction the keeper recommends submitting.
type CallData struct {
	To    common.Address
	Data  []byte
	Value *big.Int // nil means no value attached
}

// Decision is the result of one invocation. It is never persisted.
type Decision struct {
	CanExec  bool
	Message  string
	CallData []CallData
}

// NoAction returns a Decision that recommends nothing.
func NoAction(format string, args ...any) Decision {
	return Decision{
		CanExec: false,
		Message: fmt.Sprintf(format, args...),
	}
}

// Execute returns a Decision that recommends the given calls.
func Execute(calls ...CallData) Decision {
	return Decision{
		CanExec:  true,
		CallData: calls,
	}
}

type callDataJSON struct {
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data"`
	Value string         `json:"value,omitempty"`
}

type decisionJSON struct {
	CanExec  bool           `json:"canExec"`
	Message  string         `json:"message,omitempty"`
	CallData []callDataJSON `json:"callData,omitempty"`
}

// MarshalJSON renders the decision in the web3-function result shape:
// {"canExec":false,"message":"..."} or {"canExec":true,"callData":[{"to","data","value"}]}.
func (d Decision) MarshalJSON() ([]byte, error) {
	out := decisionJSON{CanExec: d.CanExec}
	if !d.CanExec {
		out.Message = d.Message
		return json.Marshal(out)
	}

	out.CallData = make([]callDataJSON, len(d.CallData))
	for i, c := range d.CallData {
		out.CallData[i] = callDataJSON{To: c.To, Data: c.Data}
		if c.Value != nil {
			out.CallData[i].Value = c.Value.String()
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var raw decisionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	dec := Decision{CanExec: raw.CanExec, Message: raw.Message}
	for _, c := range raw.CallData {
		cd := CallData{To: c.To, Data: c.Data}
		if c.Value != "" {
			v, ok := new(big.Int).SetString(c.Value, 10)
			if !ok {
				return fmt.Errorf("invalid call value %q", c.Value)
			}
			cd.Value = v
		}
		dec.CallData = append(dec.CallData, cd)
	}

	*d = dec
	return nil
}
