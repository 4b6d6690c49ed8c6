package bank

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dfre/internal/types"
)

// Transferor defines the asset transfer primitive the engine consumes.
// This interface abstracts away the token implementation, allowing for
// different backings (in-memory simulation, chain-backed custody, etc.).
// The engine only moves funds between named accounts; it never creates or
// destroys them.
type Transferor interface {
	// Transfer moves amount of asset from one account to another.
	Transfer(from, to string, asset types.AssetID, amount sdkmath.Int) error

	// BalanceOf returns the balance of asset held by account.
	BalanceOf(account string, asset types.AssetID) sdkmath.Int
}
