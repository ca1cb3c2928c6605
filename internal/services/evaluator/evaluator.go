// Package evaluator decides whether a feed needs an on-chain update.
//
// Deviation is computed in integer basis points on arbitrary-precision
// integers and truncated toward zero:
//
//	deviationBps = |last - current| * 10000 / last
//
// No floating point takes part in the decision.
package evaluator

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/archon-research/stl/pyth-keeper/internal/domain/entity"
)

// BpsDenominator is the number of basis points in 100%.
const BpsDenominator = 10_000

var bpsDenominator = big.NewInt(BpsDenominator)

// Reason explains an evaluation result.
type Reason string

const (
	ReasonInitialize       Reason = "initialize"
	ReasonDeviation        Reason = "deviation"
	ReasonStale            Reason = "stale"
	ReasonWithinThresholds Reason = "within-thresholds"
)

// Evaluation is the detailed result of evaluating one feed.
type Evaluation struct {
	NeedsUpdate bool
	Reason      Reason

	// DeviationBps is nil when there is no prior record.
	DeviationBps *big.Int

	// ElapsedSeconds is current.PublishTime - last.PublishTime (0 without a prior record).
	ElapsedSeconds int64
}

// Summary renders the evaluation for human-readable messages.
func (e Evaluation) Summary() string {
	if e.DeviationBps == nil {
		return string(e.Reason)
	}
	pct := decimal.NewFromBigInt(e.DeviationBps, -2)
	return fmt.Sprintf("%s (deviation %s%%, elapsed %ds)", e.Reason, pct.StringFixed(2), e.ElapsedSeconds)
}

// NeedsUpdate reports whether current should be pushed given the last persisted record.
// last == nil means the feed was never recorded.
func NeedsUpdate(last *entity.PriceRecord, current entity.PriceRecord, cfg *entity.OracleConfig) (bool, error) {
	ev, err := Evaluate(entity.FeedID{}, last, current, cfg)
	if err != nil {
		return false, err
	}
	return ev.NeedsUpdate, nil
}

// Evaluate applies the update rules in order:
//  1. no prior record: update (bootstrap)
//  2. deviation at or above the threshold: update
//  3. publish time gap above the valid period: update
//  4. otherwise: no update
//
// A zero prior price makes the deviation undefined and yields an *entity.EvaluationError.
func Evaluate(id entity.FeedID, last *entity.PriceRecord, current entity.PriceRecord, cfg *entity.OracleConfig) (Evaluation, error) {
	if cfg == nil {
		return Evaluation{}, &entity.EvaluationError{FeedID: id, Reason: "config is nil"}
	}
	if last == nil {
		return Evaluation{NeedsUpdate: true, Reason: ReasonInitialize}, nil
	}
	if last.IsZeroPrice() {
		return Evaluation{}, &entity.EvaluationError{FeedID: id, Reason: "last price is zero, deviation is undefined"}
	}

	diff, bps := DeviationBps(last.Price(), current.Price())
	elapsed := current.PublishTime() - last.PublishTime()

	ev := Evaluation{
		DeviationBps:   bps,
		ElapsedSeconds: elapsed,
	}

	if exceedsThreshold(diff, bps, cfg.DeviationThresholdBps) {
		ev.NeedsUpdate = true
		ev.Reason = ReasonDeviation
		return ev, nil
	}

	if elapsed > cfg.ValidPeriodSeconds {
		ev.NeedsUpdate = true
		ev.Reason = ReasonStale
		return ev, nil
	}

	ev.Reason = ReasonWithinThresholds
	return ev, nil
}

// DeviationBps returns |last-current| and the truncated deviation in basis points.
// last must be nonzero. A negative last price is measured against its magnitude.
func DeviationBps(last, current *big.Int) (diff, bps *big.Int) {
	diff = new(big.Int).Sub(last, current)
	diff.Abs(diff)

	bps = new(big.Int).Mul(diff, bpsDenominator)
	bps.Quo(bps, new(big.Int).Abs(last))
	return diff, bps
}

// exceedsThreshold treats a zero threshold as "any nonzero move", so an
// unchanged price never triggers through the deviation rule.
func exceedsThreshold(diff, bps *big.Int, thresholdBps int64) bool {
	if thresholdBps <= 0 {
		return diff.Sign() != 0
	}
	return bps.Cmp(big.NewInt(thresholdBps)) >= 0
}
