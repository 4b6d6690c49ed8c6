/*

Error taxonomy for the engine. Every failure is fail-fast and atomic: all
validation happens before any value transfer, and a failed call leaves no
partial state behind. Sentinels allow errors.Is classification; the detail
types carry the operands a caller needs to act on the failure.

*/

package types

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrInvalidParameter      = errors.New("parameter outside safety range")
	ErrRatioOutOfBounds      = errors.New("observed ratio exceeds type ceiling")
	ErrCooldownActive        = errors.New("fee update cooldown has not elapsed")
	ErrPoolPaused            = errors.New("pool is paused")
	ErrPoolNotConfigured     = errors.New("pool is not configured")
	ErrPoolAlreadyConfigured = errors.New("pool is already configured")
	ErrPoolNotActive         = errors.New("pool is not active")
	ErrPoolNotPaused         = errors.New("operation requires a paused pool")
	ErrSwapInProgress        = errors.New("a swap deployment is in flight")
	ErrZeroShares            = errors.New("share amount is zero")
	ErrInsufficientShares    = errors.New("insufficient shares")
	ErrPriceSlippageExceeded = errors.New("price slippage exceeds tolerance")
	ErrAssetMismatch         = errors.New("vault underlying asset does not match pool asset")
	ErrInvalidCaller         = errors.New("caller lacks required role")
)

// InsufficientSharesError reports a withdrawal of more shares than held.
type InsufficientSharesError struct {
	Requested sdkmath.Int
	Held      sdkmath.Int
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares: requested %s, held %s", e.Requested, e.Held)
}

func (e *InsufficientSharesError) Unwrap() error { return ErrInsufficientShares }

// PriceSlippageError reports a slippage guard trip with the operands that
// tripped it.
type PriceSlippageError struct {
	Expected     sdkmath.LegacyDec
	Observed     sdkmath.LegacyDec
	ToleranceBps uint32
}

func (e *PriceSlippageError) Error() string {
	return fmt.Sprintf("price slippage exceeded: expected %s, observed %s, tolerance %d bps",
		e.Expected, e.Observed, e.ToleranceBps)
}

func (e *PriceSlippageError) Unwrap() error { return ErrPriceSlippageExceeded }

// CooldownError reports how much of the cooldown remains.
type CooldownError struct {
	Remaining string
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: %s remaining", e.Remaining)
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }

// AssetMismatchError reports a rebind attempt against a vault whose
// underlying asset differs from the pool asset.
type AssetMismatchError struct {
	Want AssetID
	Got  AssetID
}

func (e *AssetMismatchError) Error() string {
	return fmt.Sprintf("asset mismatch: pool asset %s, vault underlying %s", e.Want, e.Got)
}

func (e *AssetMismatchError) Unwrap() error { return ErrAssetMismatch }
