/*

The adapter gives the rest of the engine one uniform deposit/withdraw/value
surface over the per-asset vault bindings. An asset without a binding simply
keeps its funds idle in the reserve account: deposits and withdrawals are
no-ops and the held value is zero.

Alongside the flows it tracks a per-asset principal, the cost basis of the
position, so the share ledger can tell realized yield from deposited capital
when collecting tax.

*/

package yieldsource

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/dfre/internal/logger"
	"github.com/elys-network/dfre/internal/types"
	"github.com/elys-network/dfre/internal/utils"
)

// Adapter routes reserve capital between the reserve account and the bound
// vault of each pool asset.
type Adapter struct {
	logger   zerolog.Logger
	bindings map[types.AssetID]YieldSource
	// principal is the deposited cost basis per asset; the excess of a
	// vault's value over it is unrealized yield.
	principal map[types.AssetID]sdkmath.Int
}

// NewAdapter creates an adapter with no bindings.
func NewAdapter() *Adapter {
	return &Adapter{
		logger:    logger.GetForComponent("yield_source_adapter"),
		bindings:  make(map[types.AssetID]YieldSource),
		principal: make(map[types.AssetID]sdkmath.Int),
	}
}

// Bound reports whether a vault is bound for asset.
func (a *Adapter) Bound(asset types.AssetID) bool {
	_, ok := a.bindings[asset]
	return ok
}

// Deposit forwards amount of asset into its bound vault. Without a binding
// the call is a no-op and funds stay idle in the reserve's own custody.
func (a *Adapter) Deposit(asset types.AssetID, amount sdkmath.Int) error {
	vault, ok := a.bindings[asset]
	if !ok || amount.IsNil() || !amount.IsPositive() {
		return nil
	}
	if err := vault.Deposit(amount); err != nil {
		return fmt.Errorf("vault deposit of %s %s failed: %w", amount, asset, err)
	}
	a.principal[asset] = a.Principal(asset).Add(amount)

	a.logger.Debug().
		Str("asset", string(asset)).
		Str("amount", amount.String()).
		Msg("Deposited into yield source")
	return nil
}

// Withdraw pulls up to amount of asset out of its bound vault into the
// reserve account and returns the amount actually withdrawn. Without a
// binding the call is a no-op returning zero.
func (a *Adapter) Withdraw(asset types.AssetID, amount sdkmath.Int) (sdkmath.Int, error) {
	vault, ok := a.bindings[asset]
	if !ok || amount.IsNil() || !amount.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}

	valueBefore, err := vault.ValueHeld()
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to query vault value for %s: %w", asset, err)
	}

	actual, err := vault.Withdraw(amount)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("vault withdrawal of %s %s failed: %w", amount, asset, err)
	}

	// A withdrawal takes principal and yield out pro rata.
	principal := a.Principal(asset)
	if actual.GTE(valueBefore) || valueBefore.IsZero() {
		a.principal[asset] = sdkmath.ZeroInt()
	} else {
		reduction, err := utils.MulDivCeil(actual, principal, valueBefore)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("failed to reduce principal for %s: %w", asset, err)
		}
		a.principal[asset] = sdkmath.MaxInt(principal.Sub(reduction), sdkmath.ZeroInt())
	}

	a.logger.Debug().
		Str("asset", string(asset)).
		Str("requested", amount.String()).
		Str("actual", actual.String()).
		Msg("Withdrew from yield source")
	return actual, nil
}

// ValueHeld returns the current vault-held value of asset, zero if unbound.
func (a *Adapter) ValueHeld(asset types.AssetID) (sdkmath.Int, error) {
	vault, ok := a.bindings[asset]
	if !ok {
		return sdkmath.ZeroInt(), nil
	}
	value, err := vault.ValueHeld()
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("failed to query vault value for %s: %w", asset, err)
	}
	return value, nil
}

// Principal returns the tracked cost basis for asset.
func (a *Adapter) Principal(asset types.AssetID) sdkmath.Int {
	if p, ok := a.principal[asset]; ok {
		return p
	}
	return sdkmath.ZeroInt()
}

// RestoreYield lowers the tracked cost basis of asset by amount, floored at
// zero. The JIT orchestrator snapshots accrued yield before a full recall and
// restores it here after the post-swap re-deposit, so a swap cycle does not
// convert untaxed yield into principal.
func (a *Adapter) RestoreYield(asset types.AssetID, amount sdkmath.Int) {
	if amount.IsNil() || !amount.IsPositive() || !a.Bound(asset) {
		return
	}
	a.principal[asset] = sdkmath.MaxInt(a.Principal(asset).Sub(amount), sdkmath.ZeroInt())
}

// MarkPrincipal realizes all current yield by resetting the cost basis to
// the vault's present value. The share ledger calls this at tax collection.
func (a *Adapter) MarkPrincipal(asset types.AssetID) error {
	if !a.Bound(asset) {
		return nil
	}
	value, err := a.ValueHeld(asset)
	if err != nil {
		return err
	}
	a.principal[asset] = value
	return nil
}

// Rebind atomically replaces the vault bound for asset. The new vault's
// underlying asset is checked before any funds move; then the full current
// position leaves the old vault and enters the new one, so no partial
// migration is ever observable. A nil newVault unbinds, leaving withdrawn
// funds idle in the reserve account.
func (a *Adapter) Rebind(asset types.AssetID, newVault YieldSource) error {
	if newVault != nil && newVault.UnderlyingAsset() != asset {
		return &types.AssetMismatchError{Want: asset, Got: newVault.UnderlyingAsset()}
	}

	var migrated sdkmath.Int = sdkmath.ZeroInt()
	if oldVault, ok := a.bindings[asset]; ok {
		value, err := oldVault.ValueHeld()
		if err != nil {
			return fmt.Errorf("failed to query old vault value for %s: %w", asset, err)
		}
		if value.IsPositive() {
			migrated, err = oldVault.Withdraw(value)
			if err != nil {
				return fmt.Errorf("failed to exit old vault for %s: %w", asset, err)
			}
		}
	}

	if newVault == nil {
		delete(a.bindings, asset)
		a.principal[asset] = sdkmath.ZeroInt()
		a.logger.Info().Str("asset", string(asset)).Msg("Yield source unbound")
		return nil
	}

	a.bindings[asset] = newVault
	if migrated.IsPositive() {
		if err := newVault.Deposit(migrated); err != nil {
			return fmt.Errorf("failed to enter new vault for %s: %w", asset, err)
		}
	}
	// The migrated position keeps its basis, capped at the value that
	// actually arrived in the new vault.
	a.principal[asset] = utils.MinInt(a.Principal(asset), migrated)

	a.logger.Info().
		Str("asset", string(asset)).
		Str("migrated", migrated.String()).
		Msg("Yield source rebound")
	return nil
}
