/*
This file contains WAD-scaled (1e18) fixed-point arithmetic primitives used
by every other component: pips and bps conversions, proportional mul-div
with explicit rounding direction, and clamps. All ratio math in the engine
runs on sdkmath.LegacyDec, which carries exactly 18 decimal places.
*/

package utils

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrNegativeValue  = errors.New("value is negative")
	ErrNilValue       = errors.New("value is nil")
)

const (
	// PipsDenominator expresses fees: 1_000_000 pips == 100%.
	PipsDenominator = 1_000_000

	// BpsDenominator expresses slippage tolerances: 10_000 bps == 100%.
	BpsDenominator = 10_000
)

// PipsToDec converts a pips quantity to its WAD fraction (1e6 pips = 1.0).
func PipsToDec(pips int64) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDec(pips).QuoInt64(PipsDenominator)
}

// BpsToDec converts a basis-point quantity to its WAD fraction.
func BpsToDec(bps uint32) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDec(int64(bps)).QuoInt64(BpsDenominator)
}

// MulDivFloor returns a * b / c rounded toward zero.
// Used for withdrawal amounts so rounding always favors the reserve.
func MulDivFloor(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	if a.IsNil() || b.IsNil() || c.IsNil() {
		return sdkmath.ZeroInt(), ErrNilValue
	}
	if c.IsZero() {
		return sdkmath.ZeroInt(), ErrDivisionByZero
	}
	if a.IsNegative() || b.IsNegative() || c.IsNegative() {
		return sdkmath.ZeroInt(), ErrNegativeValue
	}
	return a.Mul(b).Quo(c), nil
}

// MulDivCeil returns a * b / c rounded away from zero.
// Used for deposit amounts so rounding always favors the reserve.
func MulDivCeil(a, b, c sdkmath.Int) (sdkmath.Int, error) {
	if a.IsNil() || b.IsNil() || c.IsNil() {
		return sdkmath.ZeroInt(), ErrNilValue
	}
	if c.IsZero() {
		return sdkmath.ZeroInt(), ErrDivisionByZero
	}
	if a.IsNegative() || b.IsNegative() || c.IsNegative() {
		return sdkmath.ZeroInt(), ErrNegativeValue
	}
	num := a.Mul(b)
	out := num.Quo(c)
	if !num.Mod(c).IsZero() {
		out = out.AddRaw(1)
	}
	return out, nil
}

// ClampInt64 bounds v to [lo, hi].
func ClampInt64(v, lo, hi int64) (int64, error) {
	if lo > hi {
		return 0, fmt.Errorf("invalid clamp bounds: lo %d > hi %d", lo, hi)
	}
	if v < lo {
		return lo, nil
	}
	if v > hi {
		return hi, nil
	}
	return v, nil
}

// ClampDec bounds v to [lo, hi].
func ClampDec(v, lo, hi sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if v.IsNil() || lo.IsNil() || hi.IsNil() {
		return sdkmath.LegacyZeroDec(), ErrNilValue
	}
	if lo.GT(hi) {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("invalid clamp bounds: lo %s > hi %s", lo, hi)
	}
	if v.LT(lo) {
		return lo, nil
	}
	if v.GT(hi) {
		return hi, nil
	}
	return v, nil
}

// RelativeDeviation returns |observed - reference| / reference.
func RelativeDeviation(observed, reference sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if observed.IsNil() || reference.IsNil() {
		return sdkmath.LegacyZeroDec(), ErrNilValue
	}
	if reference.IsZero() {
		return sdkmath.LegacyZeroDec(), ErrDivisionByZero
	}
	return observed.Sub(reference).Abs().Quo(reference.Abs()), nil
}

// MinInt returns the smaller of a and b.
func MinInt(a, b sdkmath.Int) sdkmath.Int {
	if a.LT(b) {
		return a
	}
	return b
}
