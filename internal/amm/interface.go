package amm

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dfre/internal/types"
)

// Pool defines the interface for the AMM pool the engine hooks into. This
// interface abstracts away the AMM's own swap and tick bookkeeping; the
// engine only needs range liquidity, the live price, and delta settlement.
type Pool interface {
	// CurrentPrice returns the pool's live price of asset 0 in asset 1.
	CurrentPrice() (sdkmath.LegacyDec, error)

	// AddLiquidity places liquidity in the given range, sized by the
	// desired per-asset amounts, and returns the amounts actually used.
	// The caller settles those amounts afterward via Settle.
	AddLiquidity(rng types.TickRange, desired0, desired1 sdkmath.Int) (actual0, actual1 sdkmath.Int, err error)

	// RemoveLiquidity removes the caller's entire position in the given
	// range and returns the per-asset amounts paid out.
	RemoveLiquidity(rng types.TickRange) (amount0, amount1 sdkmath.Int, err error)

	// Settle transfers amount of asset from the caller's custody into the
	// pool, covering deltas owed after AddLiquidity.
	Settle(asset types.AssetID, amount sdkmath.Int) error
}
