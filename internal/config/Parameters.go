/*

This file contains the protocol-wide safety bounds for pool-type fee
parameters and the default parameter bundles for each pool classification.

These defaults are designed for pools carrying significant reserve capital in
a production environment. Each value has been chosen to balance fee
responsiveness against manipulation resistance.

*/

package config

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dfre/internal/types"
)

// Protocol-wide safety bounds. ValidateParameters rejects any bundle outside
// these ranges; nothing else in the engine re-checks them.
var (
	// ProtocolMaxFeePips caps every pool type's MaxFeePips. 100_000 pips = 10%.
	ProtocolMaxFeePips int64 = 100_000

	// ProtocolMaxAdjustmentRate caps a single update's fee delta relative to
	// the current fee, regardless of streak amplification. 0.5 means one
	// update can never move the fee by more than half its current value.
	ProtocolMaxAdjustmentRate = sdkmath.LegacyNewDecWithPrec(5, 1)

	// Smoothing window bounds, in update periods.
	MinSmoothingWindow uint32 = 7
	MaxSmoothingWindow uint32 = 365

	// MinCooldownPeriod is the floor on time between fee updates.
	MinCooldownPeriod = time.Hour

	// RatioTolerance must sit in (0, MaxRatioTolerance].
	MaxRatioTolerance = sdkmath.LegacyNewDecWithPrec(5, 1) // 50%

	// LinearSlope must sit in (0, MaxLinearSlope].
	MaxLinearSlope = sdkmath.LegacyNewDec(10)

	// Side factors must sit in [1, MaxSideFactor].
	MaxSideFactor = sdkmath.LegacyNewDec(10)

	// MaxCurrentRatio must sit in (0, MaxObservableRatio].
	MaxObservableRatio = sdkmath.LegacyNewDec(1000)
)

// DefaultStableParameters suits pools of tightly correlated assets.
// Fees stay low and move slowly; activity ratios are expected to hug 1.0.
var DefaultStableParameters = types.PoolTypeParameters{
	MinFeePips: 100, // 0.01% floor.
	// Rationale: stable pairs compete on fee; anything above a few bps
	// routes flow elsewhere.

	MaxFeePips: 5_000, // 0.5% ceiling.

	BaseMaxDeltaPips: 50, // Per-update delta base before streak scaling.

	SmoothingWindow: 30, // A month of daily pokes; slow-moving target.

	CooldownPeriod: 12 * time.Hour,

	RatioTolerance: sdkmath.LegacyNewDecWithPrec(5, 2), // 5% band.

	LinearSlope: sdkmath.LegacyNewDecWithPrec(5, 1), // 0.5

	MaxCurrentRatio: sdkmath.LegacyNewDec(10),

	UpperSideFactor: sdkmath.LegacyNewDec(1),
	LowerSideFactor: sdkmath.LegacyNewDec(1),
}

// DefaultStandardParameters suits ordinary volatile-pair pools.
var DefaultStandardParameters = types.PoolTypeParameters{
	MinFeePips: 500, // 0.05%

	MaxFeePips: 30_000, // 3%

	BaseMaxDeltaPips: 500,

	SmoothingWindow: 14,

	CooldownPeriod: 4 * time.Hour,

	RatioTolerance: sdkmath.LegacyNewDecWithPrec(1, 1), // 10% band.

	LinearSlope: sdkmath.LegacyNewDec(1),

	MaxCurrentRatio: sdkmath.LegacyNewDec(50),

	UpperSideFactor: sdkmath.LegacyNewDec(2), // React twice as fast to excess activity.
	// Rationale: excess activity against a stale fee is what toxic flow
	// looks like; raising the fee late costs the reserve real value, while
	// lowering it late only forgoes volume.

	LowerSideFactor: sdkmath.LegacyNewDec(1),
}

// DefaultVolatileParameters suits long-tail pools where flow is bursty and
// adverse selection is the dominant cost.
var DefaultVolatileParameters = types.PoolTypeParameters{
	MinFeePips: 3_000, // 0.3%

	MaxFeePips: 100_000, // 10%, the protocol ceiling.

	BaseMaxDeltaPips: 2_000,

	SmoothingWindow: 7, // React within a week of pokes.

	CooldownPeriod: time.Hour,

	RatioTolerance: sdkmath.LegacyNewDecWithPrec(15, 2), // 15% band.

	LinearSlope: sdkmath.LegacyNewDec(2),

	MaxCurrentRatio: sdkmath.LegacyNewDec(100),

	UpperSideFactor: sdkmath.LegacyNewDec(3),
	LowerSideFactor: sdkmath.LegacyNewDec(1),
}

// DefaultParameters maps each built-in pool type to its default bundle.
var DefaultParameters = map[types.PoolType]types.PoolTypeParameters{
	"stable":   DefaultStableParameters,
	"standard": DefaultStandardParameters,
	"volatile": DefaultVolatileParameters,
}

// ValidateParameters checks a parameter bundle against the protocol safety
// bounds. It is the only gate between an administrator and stored
// parameters, so every field is checked. Errors wrap
// types.ErrInvalidParameter for classification.
func ValidateParameters(p types.PoolTypeParameters) error {
	if p.MinFeePips < 0 {
		return fmt.Errorf("%w: min fee %d is negative", types.ErrInvalidParameter, p.MinFeePips)
	}
	if p.MaxFeePips < p.MinFeePips {
		return fmt.Errorf("%w: max fee %d below min fee %d", types.ErrInvalidParameter, p.MaxFeePips, p.MinFeePips)
	}
	if p.MaxFeePips > ProtocolMaxFeePips {
		return fmt.Errorf("%w: max fee %d exceeds protocol ceiling %d", types.ErrInvalidParameter, p.MaxFeePips, ProtocolMaxFeePips)
	}
	if p.BaseMaxDeltaPips <= 0 {
		return fmt.Errorf("%w: base max delta %d must be positive", types.ErrInvalidParameter, p.BaseMaxDeltaPips)
	}
	if p.BaseMaxDeltaPips > ProtocolMaxFeePips {
		return fmt.Errorf("%w: base max delta %d exceeds protocol ceiling %d", types.ErrInvalidParameter, p.BaseMaxDeltaPips, ProtocolMaxFeePips)
	}
	if p.SmoothingWindow < MinSmoothingWindow || p.SmoothingWindow > MaxSmoothingWindow {
		return fmt.Errorf("%w: smoothing window %d outside [%d, %d]", types.ErrInvalidParameter, p.SmoothingWindow, MinSmoothingWindow, MaxSmoothingWindow)
	}
	if p.CooldownPeriod < MinCooldownPeriod {
		return fmt.Errorf("%w: cooldown %s below minimum %s", types.ErrInvalidParameter, p.CooldownPeriod, MinCooldownPeriod)
	}
	if p.RatioTolerance.IsNil() || !p.RatioTolerance.IsPositive() || p.RatioTolerance.GT(MaxRatioTolerance) {
		return fmt.Errorf("%w: ratio tolerance %s outside (0, %s]", types.ErrInvalidParameter, p.RatioTolerance, MaxRatioTolerance)
	}
	if p.LinearSlope.IsNil() || !p.LinearSlope.IsPositive() || p.LinearSlope.GT(MaxLinearSlope) {
		return fmt.Errorf("%w: linear slope %s outside (0, %s]", types.ErrInvalidParameter, p.LinearSlope, MaxLinearSlope)
	}
	if p.MaxCurrentRatio.IsNil() || !p.MaxCurrentRatio.IsPositive() || p.MaxCurrentRatio.GT(MaxObservableRatio) {
		return fmt.Errorf("%w: max current ratio %s outside (0, %s]", types.ErrInvalidParameter, p.MaxCurrentRatio, MaxObservableRatio)
	}
	if err := validateSideFactor("upper side factor", p.UpperSideFactor); err != nil {
		return err
	}
	if err := validateSideFactor("lower side factor", p.LowerSideFactor); err != nil {
		return err
	}
	return nil
}

func validateSideFactor(name string, f sdkmath.LegacyDec) error {
	if f.IsNil() || f.LT(sdkmath.LegacyOneDec()) || f.GT(MaxSideFactor) {
		return fmt.Errorf("%w: %s %s outside [1, %s]", types.ErrInvalidParameter, name, f, MaxSideFactor)
	}
	return nil
}
