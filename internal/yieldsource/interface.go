package yieldsource

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dfre/internal/types"
)

// YieldSource defines the interface for an external per-asset vault the
// engine idles reserve capital in. This interface abstracts away the
// specific vault implementation, allowing for different backings
// (mock vault, chain-backed vault, no-op).
//
// Deposits pull from the engine's reserve account and withdrawals push back
// to it; a YieldSource never touches any other account.
type YieldSource interface {
	// UnderlyingAsset returns the asset this vault accepts. The adapter
	// checks it against the pool asset before any funds move.
	UnderlyingAsset() types.AssetID

	// Deposit moves amount from the reserve account into the vault.
	Deposit(amount sdkmath.Int) error

	// Withdraw moves up to amount from the vault back to the reserve
	// account and returns the amount actually withdrawn.
	Withdraw(amount sdkmath.Int) (sdkmath.Int, error)

	// ValueHeld returns the current redeemable value of the engine's
	// position in the vault.
	ValueHeld() (sdkmath.Int, error)
}
