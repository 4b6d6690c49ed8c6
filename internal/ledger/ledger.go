/*

The share ledger mints and burns proportional ownership shares against the
pool's two-asset reserve. A share is always worth its pro-rata slice of the
reserve's current total value per asset, wherever that value sits (idle in
the reserve account or held by a yield source). Yield, loss, and tax reach
holders implicitly through this ratio; no holder balance is ever mutated
directly.

Redemption value is computed on demand, so a loss between two deposits is
borne entirely by the earlier depositors: the later depositor enters at the
new, lower effective share price and is unaffected.

*/

package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/dfre/internal/bank"
	"github.com/elys-network/dfre/internal/logger"
	"github.com/elys-network/dfre/internal/slippage"
	"github.com/elys-network/dfre/internal/types"
	"github.com/elys-network/dfre/internal/utils"
	"github.com/elys-network/dfre/internal/yieldsource"
)

// Ledger is the per-pool share ledger over a two-asset reserve.
type Ledger struct {
	logger zerolog.Logger

	poolID          types.PoolID
	asset0          types.AssetID
	asset1          types.AssetID
	reserveAccount  string
	treasuryAccount string

	bank    bank.Transferor
	adapter *yieldsource.Adapter

	totalShares  sdkmath.Int
	shares       map[string]sdkmath.Int
	yieldTaxPips int64
}

// Config holds the dependencies for creating a new Ledger.
type Config struct {
	PoolID          types.PoolID
	Asset0          types.AssetID
	Asset1          types.AssetID
	ReserveAccount  string
	TreasuryAccount string
	Bank            bank.Transferor
	Adapter         *yieldsource.Adapter
}

// NewLedger creates an empty share ledger.
func NewLedger(cfg Config) (*Ledger, error) {
	if cfg.Bank == nil {
		return nil, fmt.Errorf("bank cannot be nil")
	}
	if cfg.Adapter == nil {
		return nil, fmt.Errorf("yield source adapter cannot be nil")
	}
	if cfg.ReserveAccount == "" || cfg.TreasuryAccount == "" {
		return nil, fmt.Errorf("reserve and treasury accounts cannot be empty")
	}
	if cfg.Asset0 == cfg.Asset1 || cfg.Asset0 == "" || cfg.Asset1 == "" {
		return nil, fmt.Errorf("pool assets must be two distinct denoms")
	}
	return &Ledger{
		logger:          logger.GetForComponent("share_ledger"),
		poolID:          cfg.PoolID,
		asset0:          cfg.Asset0,
		asset1:          cfg.Asset1,
		reserveAccount:  cfg.ReserveAccount,
		treasuryAccount: cfg.TreasuryAccount,
		bank:            cfg.Bank,
		adapter:         cfg.Adapter,
		totalShares:     sdkmath.ZeroInt(),
		shares:          make(map[string]sdkmath.Int),
	}, nil
}

// TotalShares returns the outstanding share count.
func (l *Ledger) TotalShares() sdkmath.Int { return l.totalShares }

// SharesOf returns holder's share balance.
func (l *Ledger) SharesOf(holder string) sdkmath.Int {
	if s, ok := l.shares[holder]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}

// YieldTaxPips returns the configured tax fraction in pips.
func (l *Ledger) YieldTaxPips() int64 { return l.yieldTaxPips }

// SetYieldTaxPips configures the fraction of realized yield diverted to the
// treasury at collection time.
func (l *Ledger) SetYieldTaxPips(pips int64) error {
	if pips < 0 || pips > utils.PipsDenominator {
		return fmt.Errorf("%w: yield tax %d pips outside [0, %d]", types.ErrInvalidParameter, pips, int64(utils.PipsDenominator))
	}
	l.yieldTaxPips = pips
	return nil
}

// ReserveValue returns the reserve's current total value of asset: idle
// custody plus whatever the bound yield source reports.
func (l *Ledger) ReserveValue(asset types.AssetID) (sdkmath.Int, error) {
	held, err := l.adapter.ValueHeld(asset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return l.bank.BalanceOf(l.reserveAccount, asset).Add(held), nil
}

// PreviewDeposit returns the per-asset amounts a deposit of sharesRequested
// would pull, without changing any state. Deposit uses exactly this math.
func (l *Ledger) PreviewDeposit(sharesRequested sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	if sharesRequested.IsNil() || !sharesRequested.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrZeroShares
	}

	// First deposit seeds the reserve 1:1 per asset.
	if l.totalShares.IsZero() {
		return sharesRequested, sharesRequested, nil
	}

	value0, err := l.ReserveValue(l.asset0)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	value1, err := l.ReserveValue(l.asset1)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	// Rounding up keeps later depositors from diluting existing holders.
	amount0, err := utils.MulDivCeil(sharesRequested, value0, l.totalShares)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	amount1, err := utils.MulDivCeil(sharesRequested, value1, l.totalShares)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	return amount0, amount1, nil
}

// PreviewWithdraw returns the per-asset amounts burning sharesToBurn would
// redeem, without changing any state. Withdraw uses exactly this math.
func (l *Ledger) PreviewWithdraw(sharesToBurn sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	if sharesToBurn.IsNil() || !sharesToBurn.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrZeroShares
	}
	if l.totalShares.IsZero() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), &types.InsufficientSharesError{Requested: sharesToBurn, Held: sdkmath.ZeroInt()}
	}

	value0, err := l.ReserveValue(l.asset0)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	value1, err := l.ReserveValue(l.asset1)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	// Rounding down keeps a withdrawal from draining more than its share.
	amount0, err := utils.MulDivFloor(sharesToBurn, value0, l.totalShares)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	amount1, err := utils.MulDivFloor(sharesToBurn, value1, l.totalShares)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	return amount0, amount1, nil
}

// Deposit mints sharesRequested to holder against the per-asset amounts the
// preview math demands. All validation, including the slippage guard, runs
// before any funds move.
func (l *Ledger) Deposit(
	holder string,
	sharesRequested sdkmath.Int,
	expectedPrice, observedPrice sdkmath.LegacyDec,
	toleranceBps uint32,
) (sdkmath.Int, sdkmath.Int, error) {
	amount0, amount1, err := l.PreviewDeposit(sharesRequested)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	if err := slippage.Check(expectedPrice, observedPrice, toleranceBps); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	// Check both balances up front so the two pulls cannot half-apply.
	if held := l.bank.BalanceOf(holder, l.asset0); held.LT(amount0) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("holder %s has %s %s, deposit needs %s", holder, held, l.asset0, amount0)
	}
	if held := l.bank.BalanceOf(holder, l.asset1); held.LT(amount1) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("holder %s has %s %s, deposit needs %s", holder, held, l.asset1, amount1)
	}

	if err := l.bank.Transfer(holder, l.reserveAccount, l.asset0, amount0); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if err := l.bank.Transfer(holder, l.reserveAccount, l.asset1, amount1); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	// Forward into the yield sources; unbound assets stay idle.
	if err := l.adapter.Deposit(l.asset0, amount0); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if err := l.adapter.Deposit(l.asset1, amount1); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	l.shares[holder] = l.SharesOf(holder).Add(sharesRequested)
	l.totalShares = l.totalShares.Add(sharesRequested)

	l.logger.Info().
		Uint64("pool_id", uint64(l.poolID)).
		Str("holder", holder).
		Str("shares", sharesRequested.String()).
		Str("amount0", amount0.String()).
		Str("amount1", amount1.String()).
		Msg("Deposit complete")
	return amount0, amount1, nil
}

// Withdraw burns sharesToBurn from holder and pays out the pro-rata slice
// of the reserve's current value, pulling from the yield sources as needed.
func (l *Ledger) Withdraw(
	holder string,
	sharesToBurn sdkmath.Int,
	expectedPrice, observedPrice sdkmath.LegacyDec,
	toleranceBps uint32,
) (sdkmath.Int, sdkmath.Int, error) {
	if sharesToBurn.IsNil() || !sharesToBurn.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), types.ErrZeroShares
	}
	if held := l.SharesOf(holder); held.LT(sharesToBurn) {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), &types.InsufficientSharesError{Requested: sharesToBurn, Held: held}
	}

	amount0, amount1, err := l.PreviewWithdraw(sharesToBurn)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	if err := slippage.Check(expectedPrice, observedPrice, toleranceBps); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	if err := l.ensureIdle(l.asset0, amount0); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if err := l.ensureIdle(l.asset1, amount1); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	l.shares[holder] = l.SharesOf(holder).Sub(sharesToBurn)
	l.totalShares = l.totalShares.Sub(sharesToBurn)

	if err := l.bank.Transfer(l.reserveAccount, holder, l.asset0, amount0); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if err := l.bank.Transfer(l.reserveAccount, holder, l.asset1, amount1); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	l.logger.Info().
		Uint64("pool_id", uint64(l.poolID)).
		Str("holder", holder).
		Str("shares", sharesToBurn.String()).
		Str("amount0", amount0.String()).
		Str("amount1", amount1.String()).
		Msg("Withdrawal complete")
	return amount0, amount1, nil
}

// CollectTax realizes the yield accrued in each asset's yield source since
// the last collection and diverts the configured fraction to the treasury.
// An asset with no bound yield source contributes zero without failing.
func (l *Ledger) CollectTax() (sdkmath.Int, sdkmath.Int, error) {
	tax0, err := l.collectAssetTax(l.asset0)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	tax1, err := l.collectAssetTax(l.asset1)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	l.logger.Info().
		Uint64("pool_id", uint64(l.poolID)).
		Str("tax0", tax0.String()).
		Str("tax1", tax1.String()).
		Msg("Yield tax collected")
	return tax0, tax1, nil
}

func (l *Ledger) collectAssetTax(asset types.AssetID) (sdkmath.Int, error) {
	if !l.adapter.Bound(asset) {
		return sdkmath.ZeroInt(), nil
	}

	value, err := l.adapter.ValueHeld(asset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	yield := value.Sub(l.adapter.Principal(asset))
	if !yield.IsPositive() || l.yieldTaxPips == 0 {
		return sdkmath.ZeroInt(), nil
	}

	tax := utils.PipsToDec(l.yieldTaxPips).MulInt(yield).TruncateInt()
	if tax.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	// Realize the whole yield first so the tax withdrawal leaves the
	// untaxed remainder as new basis.
	if err := l.adapter.MarkPrincipal(asset); err != nil {
		return sdkmath.ZeroInt(), err
	}
	actual, err := l.adapter.Withdraw(asset, tax)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if err := l.bank.Transfer(l.reserveAccount, l.treasuryAccount, asset, actual); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return actual, nil
}

// ensureIdle tops the reserve account's idle balance of asset up to amount
// by pulling from the yield source.
func (l *Ledger) ensureIdle(asset types.AssetID, amount sdkmath.Int) error {
	idle := l.bank.BalanceOf(l.reserveAccount, asset)
	if idle.GTE(amount) {
		return nil
	}
	needed := amount.Sub(idle)
	actual, err := l.adapter.Withdraw(asset, needed)
	if err != nil {
		return err
	}
	if actual.LT(needed) {
		return fmt.Errorf("reserve shortfall for %s: needed %s from yield source, got %s", asset, needed, actual)
	}
	return nil
}
