/*

The fee controller maintains each pool's dynamic fee by tracking a smoothed
target activity ratio and nudging the fee toward it on every update.

One update performs, in order:

 1. Exponential smoothing of the target with alpha = 2 / (window + 1).
 2. Classification of the observed ratio against a tolerance band around
    the new target; in-band observations change nothing but reset the
    direction streak.
 3. Asymmetric side selection (upper/lower factor) for out-of-band ratios.
 4. Streak amplification: sustained pressure in one direction raises the
    per-update delta ceiling linearly, still capped by the protocol-wide
    adjustment rate relative to the current fee.
 5. A raw delta proportional to the relative deviation and the current fee,
    clamped to the ceiling and then to the pool type's [min, max] bounds.

A pool-type parameter change never re-clamps a stored fee by itself; the
clamp in step 5 applies it on the next update. This deferred effect is
deliberate and covered by tests.

*/

package feecontroller

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/dfre/internal/config"
	"github.com/elys-network/dfre/internal/logger"
	"github.com/elys-network/dfre/internal/types"
	"github.com/elys-network/dfre/internal/utils"
)

// Controller computes fee updates. It holds no per-pool state of its own;
// callers pass the pool's PoolFeeState, which the update mutates on success
// and leaves untouched on failure.
type Controller struct {
	logger zerolog.Logger
}

// NewController creates a fee controller.
func NewController() *Controller {
	return &Controller{
		logger: logger.GetForComponent("fee_controller"),
	}
}

// Update applies one caller-observed activity ratio to the pool's fee state
// and returns the resulting fee update event. The caller is responsible for
// lifecycle gating (active, not paused); Update enforces the ratio ceiling
// and the cooldown.
func (c *Controller) Update(
	poolID types.PoolID,
	state *types.PoolFeeState,
	params types.PoolTypeParameters,
	currentRatio sdkmath.LegacyDec,
	now time.Time,
) (*types.FeeUpdate, error) {
	if state == nil {
		return nil, fmt.Errorf("fee state cannot be nil")
	}
	if currentRatio.IsNil() || currentRatio.IsNegative() {
		return nil, fmt.Errorf("%w: observed ratio %s is not a valid WAD quantity", types.ErrRatioOutOfBounds, currentRatio)
	}
	if currentRatio.GT(params.MaxCurrentRatio) {
		return nil, fmt.Errorf("%w: observed ratio %s exceeds ceiling %s", types.ErrRatioOutOfBounds, currentRatio, params.MaxCurrentRatio)
	}
	if elapsed := now.Sub(state.LastUpdate); !state.LastUpdate.IsZero() && elapsed < params.CooldownPeriod {
		return nil, &types.CooldownError{Remaining: (params.CooldownPeriod - elapsed).String()}
	}

	oldFee := state.CurrentFeePips
	oldTarget := state.TargetRatio

	newTarget, err := c.smoothTarget(oldTarget, currentRatio, params)
	if err != nil {
		return nil, err
	}

	deviation := currentRatio.Sub(newTarget)
	relDeviation := deviation.Abs().Quo(newTarget)

	update := &types.FeeUpdate{
		PoolID:       poolID,
		OldFeePips:   oldFee,
		CurrentRatio: currentRatio,
		OldTarget:    oldTarget,
		NewTarget:    newTarget,
		Timestamp:    now,
	}

	if relDeviation.LTE(params.RatioTolerance) {
		// In band: no delta, and streak state resets so a later excursion
		// starts from a cold streak. Bounds still apply, which is how a fee
		// left out of range by a parameter change gets clamped on the next
		// update rather than at change time.
		inBandFee, err := utils.ClampInt64(oldFee, params.MinFeePips, params.MaxFeePips)
		if err != nil {
			return nil, fmt.Errorf("failed to clamp fee: %w", err)
		}

		state.CurrentFeePips = inBandFee
		state.TargetRatio = newTarget
		state.LastUpdate = now
		state.LastDirection = types.DirectionNone
		state.Streak = 0

		update.NewFeePips = inBandFee
		update.Direction = types.DirectionNone
		update.Streak = 0

		c.logUpdate(update, "ratio in tolerance band, fee unchanged")
		return update, nil
	}

	direction := types.DirectionUp
	sideFactor := params.UpperSideFactor
	if deviation.IsNegative() {
		direction = types.DirectionDown
		sideFactor = params.LowerSideFactor
	}

	streak := uint32(1)
	if direction == state.LastDirection {
		streak = state.Streak + 1
	}

	maxDelta := c.maxPermissibleDelta(oldFee, streak, params)

	rawDelta := params.LinearSlope.
		Mul(sideFactor).
		Mul(deviation.Quo(newTarget)).
		MulInt64(oldFee).
		TruncateInt64()

	delta, err := utils.ClampInt64(rawDelta, -maxDelta, maxDelta)
	if err != nil {
		return nil, fmt.Errorf("failed to clamp fee delta: %w", err)
	}

	newFee, err := utils.ClampInt64(oldFee+delta, params.MinFeePips, params.MaxFeePips)
	if err != nil {
		return nil, fmt.Errorf("failed to clamp fee: %w", err)
	}

	state.CurrentFeePips = newFee
	state.TargetRatio = newTarget
	state.LastUpdate = now
	state.LastDirection = direction
	state.Streak = streak

	update.NewFeePips = newFee
	update.Direction = direction
	update.Streak = streak

	c.logUpdate(update, "fee updated")
	return update, nil
}

// smoothTarget advances the EMA target one period toward the observed ratio
// and keeps it strictly positive and at or below the type's ceiling.
func (c *Controller) smoothTarget(
	oldTarget, currentRatio sdkmath.LegacyDec,
	params types.PoolTypeParameters,
) (sdkmath.LegacyDec, error) {
	alpha := sdkmath.LegacyNewDec(2).QuoInt64(int64(params.SmoothingWindow) + 1)
	newTarget := oldTarget.Add(alpha.Mul(currentRatio.Sub(oldTarget)))

	// The target may never reach zero: a zero target would make every later
	// relative deviation undefined. Floor at one WAD unit.
	return utils.ClampDec(newTarget, sdkmath.LegacySmallestDec(), params.MaxCurrentRatio)
}

// maxPermissibleDelta is the per-update delta ceiling: the type's base delta
// scaled by the streak, but never more than the protocol adjustment rate
// applied to the current fee.
func (c *Controller) maxPermissibleDelta(currentFee int64, streak uint32, params types.PoolTypeParameters) int64 {
	streakCeiling := params.BaseMaxDeltaPips * int64(streak)
	rateCeiling := config.ProtocolMaxAdjustmentRate.MulInt64(currentFee).TruncateInt64()
	if rateCeiling < streakCeiling {
		return rateCeiling
	}
	return streakCeiling
}

func (c *Controller) logUpdate(u *types.FeeUpdate, msg string) {
	c.logger.Info().
		Uint64("pool_id", uint64(u.PoolID)).
		Int64("old_fee_pips", u.OldFeePips).
		Int64("new_fee_pips", u.NewFeePips).
		Str("old_target", u.OldTarget.String()).
		Str("current_ratio", u.CurrentRatio.String()).
		Str("new_target", u.NewTarget.String()).
		Str("direction", u.Direction.String()).
		Uint32("streak", u.Streak).
		Msg(msg)
}
