package batcher

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/holiman/uint256"
)

const (
	// DefaultSafetyFactor inflates dry-run results before live submission.
	DefaultSafetyFactor SafetyFactor = 1.01

	// DefaultToleranceBlocks divides the block weight budget into a per-call ceiling.
	DefaultToleranceBlocks uint64 = 10

	// DefaultMaxBatchCalls is the default planner limit for a single batch.
	DefaultMaxBatchCalls = 256

	// DefaultBlockInterval is used when the chain exposes no block-time signal.
	DefaultBlockInterval = 6 * time.Second

	// MaxBlockInterval caps any derived block interval.
	MaxBlockInterval = 24 * time.Hour

	// minimumPeriodThreshold is the smallest timestamp.minimumPeriod trusted as a block-time signal.
	minimumPeriodThreshold = 1000 * time.Millisecond / 2

	// validPercentage is the share of a block a call may use before the estimate is flagged invalid.
	validPercentage = 65

	factorPrecision = 10_000
	megaUnit        = 1_000_000
)

// MaxCallWeight is the budget used when the chain reports no weight metadata.
var MaxCallWeight = Weight{RefTime: 5_000_000_000_000 - 1, ProofSize: 1_000_000}

// Weight is a two-dimensional execution budget. Legacy weights only carry RefTime.
type Weight struct {
	RefTime   uint64
	ProofSize uint64
	Legacy    bool
}

// NewWeight returns a two-dimensional weight.
func NewWeight(refTime, proofSize uint64) Weight {
	return Weight{RefTime: refTime, ProofSize: proofSize}
}

// LegacyWeight returns a one-dimensional weight.
func LegacyWeight(refTime uint64) Weight {
	return Weight{RefTime: refTime, Legacy: true}
}

// IsZero reports whether every tracked dimension is zero.
func (w Weight) IsZero() bool {
	return w.RefTime == 0 && (w.Legacy || w.ProofSize == 0)
}

// Covers reports whether w is at least o in every dimension.
func (w Weight) Covers(o Weight) bool {
	if w.RefTime < o.RefTime {
		return false
	}
	return w.Legacy || o.Legacy || w.ProofSize >= o.ProofSize
}

// AtLeast raises each dimension of w to the matching dimension of floor.
func (w Weight) AtLeast(floor Weight) Weight {
	if w.RefTime < floor.RefTime {
		w.RefTime = floor.RefTime
	}
	if !w.Legacy && w.ProofSize < floor.ProofSize {
		w.ProofSize = floor.ProofSize
	}
	return w
}

// Inflate scales each dimension by f, rounding down.
func (w Weight) Inflate(f SafetyFactor) Weight {
	w.RefTime = f.applyUint64(w.RefTime)
	if !w.Legacy {
		w.ProofSize = f.applyUint64(w.ProofSize)
	}
	return w
}

func (w Weight) clampTo(max Weight) Weight {
	if max.RefTime != 0 && w.RefTime > max.RefTime {
		w.RefTime = max.RefTime
	}
	if !w.Legacy && max.ProofSize != 0 && w.ProofSize > max.ProofSize {
		w.ProofSize = max.ProofSize
	}
	return w
}

func (w Weight) String() string {
	if w.Legacy {
		return fmt.Sprintf("{refTime: %d}", w.RefTime)
	}
	return fmt.Sprintf("{refTime: %d, proofSize: %d}", w.RefTime, w.ProofSize)
}

// SafetyFactor is a multiplier >= 1 with four decimal places of precision.
type SafetyFactor float64

func (f SafetyFactor) ratio() *uint256.Int {
	if f < 1 {
		f = 1
	}
	return uint256.NewInt(uint64(math.Round(float64(f) * factorPrecision)))
}

// Apply returns floor(v*f). The input is not modified.
func (f SafetyFactor) Apply(v *uint256.Int) *uint256.Int {
	if v == nil {
		return nil
	}
	out, overflow := new(uint256.Int).MulDivOverflow(v, f.ratio(), uint256.NewInt(factorPrecision))
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return out
}

func (f SafetyFactor) applyUint64(v uint64) uint64 {
	out := f.Apply(uint256.NewInt(v))
	if !out.IsUint64() {
		return math.MaxUint64
	}
	return out.Uint64()
}

// ConsensusConstants carries the chain constants the estimator reads.
// A nil pointer or zero value means the chain does not expose the constant.
type ConsensusConstants struct {
	BabeExpectedBlockTime     *uint64 // ms
	DifficultyTargetBlockTime *uint64 // ms
	SubspaceExpectedBlockTime *uint64 // ms
	TimestampMinimumPeriod    *uint64 // ms
	HasParachainSystem        bool

	MaxBlockWeight     *Weight
	MaxExtrinsicWeight *Weight
	IsWeightV2         bool
}

type intervalSource struct {
	name    string
	resolve func(ConsensusConstants) (time.Duration, bool)
}

// intervalSources are evaluated in order; the first hit wins.
var intervalSources = []intervalSource{
	{"babe.expectedBlockTime", func(c ConsensusConstants) (time.Duration, bool) {
		return millis(c.BabeExpectedBlockTime)
	}},
	{"difficulty.targetBlockTime", func(c ConsensusConstants) (time.Duration, bool) {
		return millis(c.DifficultyTargetBlockTime)
	}},
	{"subspace.expectedBlockTime", func(c ConsensusConstants) (time.Duration, bool) {
		return millis(c.SubspaceExpectedBlockTime)
	}},
	{"timestamp.minimumPeriod", func(c ConsensusConstants) (time.Duration, bool) {
		d, ok := millis(c.TimestampMinimumPeriod)
		if !ok || d < minimumPeriodThreshold {
			return 0, false
		}
		return 2 * d, true
	}},
	{"parachain.default", func(c ConsensusConstants) (time.Duration, bool) {
		return 2 * DefaultBlockInterval, c.HasParachainSystem
	}},
}

func millis(v *uint64) (time.Duration, bool) {
	if v == nil || *v == 0 {
		return 0, false
	}
	if *v > uint64(MaxBlockInterval/time.Millisecond) {
		return MaxBlockInterval, true
	}
	return time.Duration(*v) * time.Millisecond, true
}

// EstimateBlockInterval derives the expected block time from consensus constants,
// falling back to DefaultBlockInterval. The result never exceeds MaxBlockInterval.
func EstimateBlockInterval(c ConsensusConstants) time.Duration {
	d, _ := resolveBlockInterval(c)
	return d
}

func resolveBlockInterval(c ConsensusConstants) (time.Duration, string) {
	for _, src := range intervalSources {
		if d, ok := src.resolve(c); ok {
			return min(d, MaxBlockInterval), src.name
		}
	}
	return DefaultBlockInterval, "default"
}

// WeightEstimate is the per-call weight ceiling derived from the block budget.
type WeightEstimate struct {
	Weight        Weight
	MegaRefTime   uint64
	IsWeightV2    bool
	IsEmpty       bool
	IsValid       bool
	ExecutionTime time.Duration
	Percentage    float64
}

// Limit returns the ceiling, or ErrEstimationUnavailable when the chain
// reported no weight metadata.
func (e WeightEstimate) Limit() (Weight, error) {
	if e.IsEmpty {
		return Weight{}, ErrEstimationUnavailable
	}
	return e.Weight, nil
}

// GasLimit returns the ceiling, or MaxCallWeight when estimation is unavailable.
func (e WeightEstimate) GasLimit() Weight {
	w, err := e.Limit()
	if err != nil {
		return MaxCallWeight
	}
	return w
}

// EstimateWeight reads the chain's block weight budget and returns a safe
// per-call ceiling spread over toleranceBlocks blocks.
func EstimateWeight(ctx context.Context, client ChainClient, blockInterval time.Duration, toleranceBlocks uint64) (WeightEstimate, error) {
	consts, err := client.Constants(ctx)
	if err != nil {
		return WeightEstimate{}, fmt.Errorf("batcher: read chain constants: %w", err)
	}
	return WeightFromConstants(consts, blockInterval, toleranceBlocks), nil
}

// WeightFromConstants is EstimateWeight over already-fetched constants.
func WeightFromConstants(c ConsensusConstants, blockInterval time.Duration, toleranceBlocks uint64) WeightEstimate {
	if toleranceBlocks == 0 {
		toleranceBlocks = DefaultToleranceBlocks
	}
	if c.MaxBlockWeight == nil || c.MaxBlockWeight.RefTime == 0 {
		return WeightEstimate{IsEmpty: true, IsWeightV2: c.IsWeightV2}
	}

	max := *c.MaxBlockWeight
	mega := max.RefTime / megaUnit / toleranceBlocks
	w := Weight{RefTime: mega * megaUnit, Legacy: !c.IsWeightV2}
	if c.IsWeightV2 {
		w.ProofSize = max.ProofSize / toleranceBlocks
	}
	if c.MaxExtrinsicWeight != nil {
		w = w.clampTo(*c.MaxExtrinsicWeight)
	}

	var exec time.Duration
	var pct float64
	if blockInterval > 0 {
		exec = time.Duration(float64(blockInterval) * float64(w.RefTime) / float64(max.RefTime))
		pct = float64(exec) / float64(blockInterval) * 100
	}

	return WeightEstimate{
		Weight:        w,
		MegaRefTime:   w.RefTime / megaUnit,
		IsWeightV2:    c.IsWeightV2,
		IsValid:       w.RefTime >= megaUnit && pct < validPercentage,
		ExecutionTime: exec,
		Percentage:    pct,
	}
}
