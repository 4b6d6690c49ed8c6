/*

Core domain types for the dynamic fee and rehypothecation engine.
A pool is identified by PoolID and carries per-pool fee state, a JIT
deployment range, and a lifecycle status. All WAD-scaled quantities use
sdkmath.LegacyDec (18 decimal places); token amounts use sdkmath.Int.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

type PoolID uint64

// AssetID is the canonical identifier of a pool asset (denom).
type AssetID string

// PoolType classifies a pool for fee-parameter purposes, e.g. "stable",
// "standard", "volatile". All pools of a type share one parameter bundle.
type PoolType string

// PoolStatus is the lifecycle state of a managed pool.
type PoolStatus int

const (
	StatusUninitialized PoolStatus = iota
	StatusConfigured
	StatusActive
	StatusPaused
	StatusDeactivated
)

func (s PoolStatus) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusConfigured:
		return "configured"
	case StatusActive:
		return "active"
	case StatusPaused:
		return "paused"
	case StatusDeactivated:
		return "deactivated"
	default:
		return "unknown"
	}
}

// Direction records which way the last fee adjustment moved.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "none"
	}
}

// PoolFeeState is the mutable per-pool fee state. It is created at pool
// activation and mutated only by the fee controller's update operation.
type PoolFeeState struct {
	CurrentFeePips int64             `json:"current_fee_pips"`
	TargetRatio    sdkmath.LegacyDec `json:"target_ratio"` // WAD, strictly positive
	LastUpdate     time.Time         `json:"last_update"`
	LastDirection  Direction         `json:"last_direction"`
	Streak         uint32            `json:"streak"` // consecutive same-direction updates
}

// TickRange bounds where JIT liquidity is deployed, expressed as WAD prices.
// Mutable only while the pool is paused. The lower bound is inclusive;
// whether the upper bound is inclusive is configurable because one-sided
// behavior exactly at the boundary is a matter of convention.
type TickRange struct {
	Lower          sdkmath.LegacyDec `json:"lower"`
	Upper          sdkmath.LegacyDec `json:"upper"`
	InclusiveUpper bool              `json:"inclusive_upper"`
}

// IsEmpty reports whether the range contains no prices.
func (r TickRange) IsEmpty() bool {
	return r.Lower.IsNil() || r.Upper.IsNil() || !r.Lower.IsPositive() || r.Upper.LTE(r.Lower)
}

// Contains reports whether price lies inside the range.
func (r TickRange) Contains(price sdkmath.LegacyDec) bool {
	if r.IsEmpty() {
		return false
	}
	if price.LT(r.Lower) {
		return false
	}
	if r.InclusiveUpper {
		return price.LTE(r.Upper)
	}
	return price.LT(r.Upper)
}

// FeeUpdate is the explicit result of one fee controller update. Callers
// decide how to propagate it; the engine never emits implicitly.
type FeeUpdate struct {
	PoolID       PoolID            `json:"pool_id"`
	OldFeePips   int64             `json:"old_fee_pips"`
	NewFeePips   int64             `json:"new_fee_pips"`
	OldTarget    sdkmath.LegacyDec `json:"old_target"`
	CurrentRatio sdkmath.LegacyDec `json:"current_ratio"`
	NewTarget    sdkmath.LegacyDec `json:"new_target"`
	Direction    Direction         `json:"direction"`
	Streak       uint32            `json:"streak"`
	Timestamp    time.Time         `json:"timestamp"`
}
