package entity

import "fmt"

// ConfigFetchError reports that the remote config could not be fetched or was malformed.
type ConfigFetchError struct {
	SourceID string
	Err      error
}

func (e *ConfigFetchError) Error() string {
	return fmt.Sprintf("fetching config %q: %v", e.SourceID, e.Err)
}

func (e *ConfigFetchError) Unwrap() error { return e.Err }

// PriceFetchError reports that the price service could not be reached.
type PriceFetchError struct {
	Endpoint string
	Err      error
}

func (e *PriceFetchError) Error() string {
	return fmt.Sprintf("fetching prices from %s: %v", e.Endpoint, e.Err)
}

func (e *PriceFetchError) Unwrap() error { return e.Err }

// PartialPriceDataError reports that the price service answered without every requested feed.
type PartialPriceDataError struct {
	Requested int
	Received  int
	Missing   []FeedID
}

func (e *PartialPriceDataError) Error() string {
	return fmt.Sprintf("not all prices available: received %d of %d, missing %v",
		e.Received, e.Requested, FeedIDHexes(e.Missing))
}

// EvaluationError reports a degenerate evaluation, such as a zero prior price.
type EvaluationError struct {
	FeedID FeedID
	Reason string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluating feed %s: %s", e.FeedID, e.Reason)
}

// MalformedStateError reports a persisted value that exists but cannot be decoded.
// It is never treated as an absent value.
type MalformedStateError struct {
	Key string
	Err error
}

func (e *MalformedStateError) Error() string {
	return fmt.Sprintf("malformed stored value for key %q: %v", e.Key, e.Err)
}

func (e *MalformedStateError) Unwrap() error { return e.Err }

// StorageError reports a failed read or write against the key-value store.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CallBuildError reports a failure while building the outbound call or quoting its fee.
type CallBuildError struct {
	Step string
	Err  error
}

func (e *CallBuildError) Error() string {
	return fmt.Sprintf("building update call (%s): %v", e.Step, e.Err)
}

func (e *CallBuildError) Unwrap() error { return e.Err }
