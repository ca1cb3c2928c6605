package entity

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CallMode selects which contract function the update call targets.
type CallMode string

const (
	// CallModeMulti calls updatePriceFeedsIfNecessary(bytes[],bytes32[],uint64[]) on the Pyth contract.
	CallModeMulti CallMode = "multi"
	// CallModeFeeds calls updatePriceFeeds(bytes[]) on the Pyth contract.
	CallModeFeeds CallMode = "feeds"
	// CallModeConsumer calls updatePrice(bytes[]) on a consumer contract.
	CallModeConsumer CallMode = "consumer"
)

// ParseCallMode parses a call mode. An empty string yields CallModeMulti.
func ParseCallMode(s string) (CallMode, error) {
	switch CallMode(s) {
	case "":
		return CallModeMulti, nil
	case CallModeMulti, CallModeFeeds, CallModeConsumer:
		return CallMode(s), nil
	default:
		return "", fmt.Errorf("unknown call mode %q", s)
	}
}

// OracleConfig holds the operating parameters of one oracle deployment.
// A config is replaced as a whole on refresh and never partially updated.
type OracleConfig struct {
	// ContractAddress is the Pyth contract used for the fee quote and, except in
	// consumer mode, as the call destination.
	ContractAddress common.Address

	// ServiceEndpoint is the base URL of the price service.
	ServiceEndpoint string

	// RefreshIntervalSeconds bounds how long a cached config is used before refetching.
	RefreshIntervalSeconds int64

	// ValidPeriodSeconds is the maximum publish time gap before a feed counts as stale.
	ValidPeriodSeconds int64

	// DeviationThresholdBps triggers an update when the price moves at least this many basis points.
	// Zero means any nonzero move triggers.
	DeviationThresholdBps int64

	// FeedIDs is the ordered set of tracked feeds.
	FeedIDs []FeedID

	Debug bool

	// TargetAddress is the consumer contract. Only used with CallModeConsumer.
	TargetAddress common.Address

	CallMode CallMode
}

// RefreshInterval returns RefreshIntervalSeconds as a duration.
func (c *OracleConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// Destination returns the address the update call is sent to.
func (c *OracleConfig) Destination() common.Address {
	if c.CallMode == CallModeConsumer {
		return c.TargetAddress
	}
	return c.ContractAddress
}

// Validate checks the config invariants.
func (c *OracleConfig) Validate() error {
	var errs []error

	if c.ContractAddress == (common.Address{}) {
		errs = append(errs, errors.New("contract address must not be zero"))
	}
	if c.ServiceEndpoint == "" {
		errs = append(errs, errors.New("service endpoint must not be empty"))
	} else if u, err := url.Parse(c.ServiceEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("service endpoint %q is not an absolute URL", c.ServiceEndpoint))
	}
	if c.RefreshIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("refresh interval must be positive, got %d", c.RefreshIntervalSeconds))
	}
	if c.ValidPeriodSeconds < 0 {
		errs = append(errs, fmt.Errorf("valid period must not be negative, got %d", c.ValidPeriodSeconds))
	}
	if c.DeviationThresholdBps < 0 {
		errs = append(errs, fmt.Errorf("deviation threshold must not be negative, got %d", c.DeviationThresholdBps))
	}
	if len(c.FeedIDs) == 0 {
		errs = append(errs, errors.New("at least one feed id is required"))
	}

	seen := make(map[FeedID]bool, len(c.FeedIDs))
	for _, id := range c.FeedIDs {
		if id.IsZero() {
			errs = append(errs, errors.New("feed id must not be zero"))
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("duplicate feed id %s", id))
		}
		seen[id] = true
	}

	if _, err := ParseCallMode(string(c.CallMode)); err != nil {
		errs = append(errs, err)
	}
	if c.CallMode == CallModeConsumer && c.TargetAddress == (common.Address{}) {
		errs = append(errs, errors.New("target address is required in consumer mode"))
	}

	return errors.Join(errs...)
}
