/*

PoolTypeParameters is the shared per-pool-type configuration bundle for the
fee controller. Many pools reference one bundle by type name; changing a
bundle takes effect on the next fee update for each pool, never
retroactively (an out-of-bounds stored fee is clamped by the next update,
not by the parameter change itself).

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// PoolTypeParameters holds the fee algorithm knobs shared by every pool of
// one classification. Validation against protocol safety bounds happens at
// write time (config.ValidateParameters); values here are trusted afterward.
type PoolTypeParameters struct {
	// Fee bounds and per-update delta base, all in pips (1e-6).
	MinFeePips       int64 `json:"min_fee_pips"`
	MaxFeePips       int64 `json:"max_fee_pips"`
	BaseMaxDeltaPips int64 `json:"base_max_delta_pips"`

	// SmoothingWindow is the EMA window in update periods;
	// alpha = 2 / (window + 1).
	SmoothingWindow uint32 `json:"smoothing_window"`

	// CooldownPeriod is the minimum time between two fee updates.
	CooldownPeriod time.Duration `json:"cooldown_period"`

	// RatioTolerance is the WAD half-width of the no-adjustment band around
	// the target, as a fraction of the target.
	RatioTolerance sdkmath.LegacyDec `json:"ratio_tolerance"`

	// LinearSlope scales the raw fee delta (WAD).
	LinearSlope sdkmath.LegacyDec `json:"linear_slope"`

	// MaxCurrentRatio is the ceiling on caller-observed activity ratios
	// and on the smoothed target (WAD).
	MaxCurrentRatio sdkmath.LegacyDec `json:"max_current_ratio"`

	// Side factors (WAD, each >= 1) make the response asymmetric: the upper
	// factor applies when the ratio sits above the band, the lower factor
	// when below.
	UpperSideFactor sdkmath.LegacyDec `json:"upper_side_factor"`
	LowerSideFactor sdkmath.LegacyDec `json:"lower_side_factor"`
}
