// Package configdoc parses the remote oracle config document.
//
// The document is YAML (JSON is accepted as YAML flow syntax):
//
//	pythNetworkAddress: "0xff1a0f4744e8582DF1aE09D5611b887B6a12925C"
//	priceServiceEndpoint: "https://hermes.pyth.network"
//	configRefreshRateInSeconds: 3600
//	validTimePeriodSeconds: 86400
//	deviationThresholdBps: 200
//	priceIds:
//	  - "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"
//	debug: false
//
// Optional keys: targetAddress and callMode ("multi", "feeds", "consumer").
package configdoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
)

// Document is the wire form of the config. Pointer fields distinguish
// "missing" from "zero" so required keys can be enforced.
type Document struct {
	PythNetworkAddress         *string  `yaml:"pythNetworkAddress" json:"pythNetworkAddress"`
	PriceServiceEndpoint       *string  `yaml:"priceServiceEndpoint" json:"priceServiceEndpoint"`
	ConfigRefreshRateInSeconds *int64   `yaml:"configRefreshRateInSeconds" json:"configRefreshRateInSeconds"`
	ValidTimePeriodSeconds     *int64   `yaml:"validTimePeriodSeconds" json:"validTimePeriodSeconds"`
	DeviationThresholdBps      *int64   `yaml:"deviationThresholdBps" json:"deviationThresholdBps"`
	PriceIDs                   []string `yaml:"priceIds" json:"priceIds"`
	Debug                      bool     `yaml:"debug" json:"debug,omitempty"`
	TargetAddress              string   `yaml:"targetAddress" json:"targetAddress,omitempty"`
	CallMode                   string   `yaml:"callMode" json:"callMode,omitempty"`
}

// Parse decodes and validates a config document.
func Parse(data []byte) (*entity.OracleConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("config document is empty")
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing config document: %w", err)
	}
	return doc.ToConfig()
}

// ParseJSON decodes a JSON-encoded document, as stored in the config cache slot.
func ParseJSON(data []byte) (*entity.OracleConfig, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing config document: %w", err)
	}
	return doc.ToConfig()
}

// ToConfig converts the document into a validated OracleConfig.
func (d Document) ToConfig() (*entity.OracleConfig, error) {
	var missing []string
	if d.PythNetworkAddress == nil {
		missing = append(missing, "pythNetworkAddress")
	}
	if d.PriceServiceEndpoint == nil {
		missing = append(missing, "priceServiceEndpoint")
	}
	if d.ConfigRefreshRateInSeconds == nil {
		missing = append(missing, "configRefreshRateInSeconds")
	}
	if d.ValidTimePeriodSeconds == nil {
		missing = append(missing, "validTimePeriodSeconds")
	}
	if d.DeviationThresholdBps == nil {
		missing = append(missing, "deviationThresholdBps")
	}
	if d.PriceIDs == nil {
		missing = append(missing, "priceIds")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config document missing required fields: %v", missing)
	}

	contract, err := parseAddress("pythNetworkAddress", *d.PythNetworkAddress)
	if err != nil {
		return nil, err
	}

	var target common.Address
	if d.TargetAddress != "" {
		target, err = parseAddress("targetAddress", d.TargetAddress)
		if err != nil {
			return nil, err
		}
	}

	mode, err := entity.ParseCallMode(d.CallMode)
	if err != nil {
		return nil, err
	}

	ids := make([]entity.FeedID, 0, len(d.PriceIDs))
	for _, raw := range d.PriceIDs {
		id, err := entity.ParseFeedID(raw)
		if err != nil {
			return nil, fmt.Errorf("priceIds: %w", err)
		}
		ids = append(ids, id)
	}

	cfg := &entity.OracleConfig{
		ContractAddress:        contract,
		ServiceEndpoint:        *d.PriceServiceEndpoint,
		RefreshIntervalSeconds: *d.ConfigRefreshRateInSeconds,
		ValidPeriodSeconds:     *d.ValidTimePeriodSeconds,
		DeviationThresholdBps:  *d.DeviationThresholdBps,
		FeedIDs:                ids,
		Debug:                  d.Debug,
		TargetAddress:          target,
		CallMode:               mode,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// FromConfig builds the wire form of a config.
func FromConfig(cfg *entity.OracleConfig) Document {
	contract := cfg.ContractAddress.Hex()
	endpoint := cfg.ServiceEndpoint
	refresh := cfg.RefreshIntervalSeconds
	valid := cfg.ValidPeriodSeconds
	threshold := cfg.DeviationThresholdBps

	doc := Document{
		PythNetworkAddress:         &contract,
		PriceServiceEndpoint:       &endpoint,
		ConfigRefreshRateInSeconds: &refresh,
		ValidTimePeriodSeconds:     &valid,
		DeviationThresholdBps:      &threshold,
		PriceIDs:                   entity.FeedIDHexes(cfg.FeedIDs),
		Debug:                      cfg.Debug,
		CallMode:                   string(cfg.CallMode),
	}
	if cfg.TargetAddress != (common.Address{}) {
		doc.TargetAddress = cfg.TargetAddress.Hex()
	}
	return doc
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}
