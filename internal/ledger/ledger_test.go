package ledger

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/dfre/internal/bank"
	"github.com/elys-network/dfre/internal/types"
	"github.com/elys-network/dfre/internal/yieldsource"
)

const (
	reserveAccount  = "reserve"
	treasuryAccount = "treasury"
	assetAtom       = types.AssetID("uatom")
	assetUSDC       = types.AssetID("uusdc")
)

type fixture struct {
	bank    *bank.Ledger
	adapter *yieldsource.Adapter
	ledger  *Ledger
	vault0  *yieldsource.MockVault
	vault1  *yieldsource.MockVault
}

// newFixture builds a ledger over a fresh bank, with both assets bound to
// mock vaults and two funded depositors.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	b := bank.NewLedger()
	for _, holder := range []string{"alice", "bob"} {
		require.NoError(t, b.Mint(holder, assetAtom, sdkmath.NewInt(1_000_000)))
		require.NoError(t, b.Mint(holder, assetUSDC, sdkmath.NewInt(1_000_000)))
	}

	adapter := yieldsource.NewAdapter()
	vault0 := yieldsource.NewMockVault(b, "vault_atom", reserveAccount, assetAtom)
	vault1 := yieldsource.NewMockVault(b, "vault_usdc", reserveAccount, assetUSDC)
	require.NoError(t, adapter.Rebind(assetAtom, vault0))
	require.NoError(t, adapter.Rebind(assetUSDC, vault1))

	l, err := NewLedger(Config{
		PoolID:          1,
		Asset0:          assetAtom,
		Asset1:          assetUSDC,
		ReserveAccount:  reserveAccount,
		TreasuryAccount: treasuryAccount,
		Bank:            b,
		Adapter:         adapter,
	})
	require.NoError(t, err)

	return &fixture{bank: b, adapter: adapter, ledger: l, vault0: vault0, vault1: vault1}
}

func noSlippage() (sdkmath.LegacyDec, sdkmath.LegacyDec, uint32) {
	return sdkmath.LegacyZeroDec(), sdkmath.LegacyZeroDec(), 0
}

func mustDeposit(t *testing.T, f *fixture, holder string, shares int64) (sdkmath.Int, sdkmath.Int) {
	t.Helper()
	exp, obs, tol := noSlippage()
	amount0, amount1, err := f.ledger.Deposit(holder, sdkmath.NewInt(shares), exp, obs, tol)
	require.NoError(t, err)
	return amount0, amount1
}

func TestDepositZeroSharesFails(t *testing.T) {
	f := newFixture(t)
	exp, obs, tol := noSlippage()
	_, _, err := f.ledger.Deposit("alice", sdkmath.ZeroInt(), exp, obs, tol)
	assert.ErrorIs(t, err, types.ErrZeroShares)
}

func TestFirstDepositSeedsOneToOne(t *testing.T) {
	f := newFixture(t)

	amount0, amount1 := mustDeposit(t, f, "alice", 1000)
	assert.Equal(t, int64(1000), amount0.Int64())
	assert.Equal(t, int64(1000), amount1.Int64())
	assert.Equal(t, int64(1000), f.ledger.TotalShares().Int64())
	assert.Equal(t, int64(1000), f.ledger.SharesOf("alice").Int64())

	// Funds flow straight through to the bound vaults.
	assert.Equal(t, int64(1000), f.bank.BalanceOf("vault_atom", assetAtom).Int64())
	assert.Equal(t, int64(1000), f.bank.BalanceOf("vault_usdc", assetUSDC).Int64())
}

func TestPreviewDepositMatchesDeposit(t *testing.T) {
	f := newFixture(t)
	mustDeposit(t, f, "alice", 1000)
	require.NoError(t, f.vault0.AccrueYield(sdkmath.NewInt(137)))

	previewed0, previewed1, err := f.ledger.PreviewDeposit(sdkmath.NewInt(333))
	require.NoError(t, err)

	actual0, actual1 := mustDeposit(t, f, "bob", 333)
	assert.Equal(t, previewed0, actual0)
	assert.Equal(t, previewed1, actual1)
}

func TestPreviewWithdrawMatchesWithdraw(t *testing.T) {
	f := newFixture(t)
	mustDeposit(t, f, "alice", 1000)
	require.NoError(t, f.vault1.AccrueYield(sdkmath.NewInt(89)))

	previewed0, previewed1, err := f.ledger.PreviewWithdraw(sdkmath.NewInt(250))
	require.NoError(t, err)

	exp, obs, tol := noSlippage()
	actual0, actual1, err := f.ledger.Withdraw("alice", sdkmath.NewInt(250), exp, obs, tol)
	require.NoError(t, err)
	assert.Equal(t, previewed0, actual0)
	assert.Equal(t, previewed1, actual1)
}

func TestWithdrawInsufficientShares(t *testing.T) {
	f := newFixture(t)
	mustDeposit(t, f, "alice", 100)

	exp, obs, tol := noSlippage()
	_, _, err := f.ledger.Withdraw("alice", sdkmath.NewInt(101), exp, obs, tol)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientShares)

	var detail *types.InsufficientSharesError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, int64(101), detail.Requested.Int64())
	assert.Equal(t, int64(100), detail.Held.Int64())

	// Nothing burned on failure.
	assert.Equal(t, int64(100), f.ledger.SharesOf("alice").Int64())
}

func TestSlippageGuardBlocksDepositBeforeFundsMove(t *testing.T) {
	f := newFixture(t)
	aliceAtomBefore := f.bank.BalanceOf("alice", assetAtom)

	_, _, err := f.ledger.Deposit("alice", sdkmath.NewInt(100),
		sdkmath.LegacyNewDec(100), sdkmath.LegacyNewDec(103), 150)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPriceSlippageExceeded)

	assert.True(t, f.ledger.TotalShares().IsZero())
	assert.Equal(t, aliceAtomBefore, f.bank.BalanceOf("alice", assetAtom))
}

func TestSlippageOptOutWithZeroExpectedPrice(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.ledger.Deposit("alice", sdkmath.NewInt(100),
		sdkmath.LegacyZeroDec(), sdkmath.LegacyNewDec(12345), 1)
	assert.NoError(t, err)
}

func TestProportionalFairness(t *testing.T) {
	f := newFixture(t)
	mustDeposit(t, f, "alice", 2000)
	mustDeposit(t, f, "bob", 1000)

	// Yield and loss in between must not disturb the 2:1 ratio.
	require.NoError(t, f.vault0.AccrueYield(sdkmath.NewInt(900)))
	require.NoError(t, f.vault1.RealizeLoss(sdkmath.NewInt(600)))

	alice0, alice1, err := f.ledger.PreviewWithdraw(f.ledger.SharesOf("alice"))
	require.NoError(t, err)
	bob0, bob1, err := f.ledger.PreviewWithdraw(f.ledger.SharesOf("bob"))
	require.NoError(t, err)

	assert.Equal(t, alice0.Int64(), 2*bob0.Int64())
	assert.Equal(t, alice1.Int64(), 2*bob1.Int64())
}

func TestLossBetweenDepositsIsBorneByEarlierDepositor(t *testing.T) {
	f := newFixture(t)
	mustDeposit(t, f, "alice", 1000)

	// Asset 0 loses half before bob enters.
	require.NoError(t, f.vault0.RealizeLoss(sdkmath.NewInt(500)))

	bob0, bob1 := mustDeposit(t, f, "bob", 1000)
	// Bob buys in at the post-loss effective price.
	assert.Equal(t, int64(500), bob0.Int64())
	assert.Equal(t, int64(1000), bob1.Int64())

	alice0, alice1, err := f.ledger.PreviewWithdraw(sdkmath.NewInt(1000))
	require.NoError(t, err)
	// Alice carries the whole loss; bob is unaffected.
	assert.Equal(t, int64(500), alice0.Int64())
	assert.Equal(t, int64(1000), alice1.Int64())
}

func TestEndToEndHalfLossPreview(t *testing.T) {
	f := newFixture(t)

	// Seed the reserve with 1000 of each asset, then a second depositor
	// adds 100 shares.
	mustDeposit(t, f, "alice", 1000)
	deposited0, deposited1 := mustDeposit(t, f, "bob", 100)
	require.Equal(t, int64(100), deposited0.Int64())
	require.Equal(t, int64(100), deposited1.Int64())

	// 50% loss on asset 0 only.
	value0, err := f.ledger.ReserveValue(assetAtom)
	require.NoError(t, err)
	require.NoError(t, f.vault0.RealizeLoss(value0.Quo(sdkmath.NewInt(2))))

	out0, out1, err := f.ledger.PreviewWithdraw(sdkmath.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, int64(50), out0.Int64(), "asset 0 redeems at half the deposited amount")
	assert.Equal(t, int64(100), out1.Int64(), "asset 1 redeems in full")
}

func TestWithdrawPullsFromYieldSource(t *testing.T) {
	f := newFixture(t)
	mustDeposit(t, f, "alice", 1000)

	// Everything sits in the vaults; the reserve account is empty.
	require.True(t, f.bank.BalanceOf(reserveAccount, assetAtom).IsZero())

	exp, obs, tol := noSlippage()
	out0, out1, err := f.ledger.Withdraw("alice", sdkmath.NewInt(1000), exp, obs, tol)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), out0.Int64())
	assert.Equal(t, int64(1000), out1.Int64())
	assert.True(t, f.ledger.TotalShares().IsZero())
}

func TestCollectTax(t *testing.T) {
	f := newFixture(t)
	mustDeposit(t, f, "alice", 1000)
	require.NoError(t, f.ledger.SetYieldTaxPips(100_000)) // 10%

	require.NoError(t, f.vault0.AccrueYield(sdkmath.NewInt(500)))

	tax0, tax1, err := f.ledger.CollectTax()
	require.NoError(t, err)
	assert.Equal(t, int64(50), tax0.Int64())
	assert.True(t, tax1.IsZero())
	assert.Equal(t, int64(50), f.bank.BalanceOf(treasuryAccount, assetAtom).Int64())

	// Same yield is never taxed twice.
	tax0, tax1, err = f.ledger.CollectTax()
	require.NoError(t, err)
	assert.True(t, tax0.IsZero())
	assert.True(t, tax1.IsZero())
}

func TestCollectTaxWithoutYieldSourceReturnsZero(t *testing.T) {
	b := bank.NewLedger()
	require.NoError(t, b.Mint("alice", assetAtom, sdkmath.NewInt(10_000)))
	require.NoError(t, b.Mint("alice", assetUSDC, sdkmath.NewInt(10_000)))

	l, err := NewLedger(Config{
		PoolID:          1,
		Asset0:          assetAtom,
		Asset1:          assetUSDC,
		ReserveAccount:  reserveAccount,
		TreasuryAccount: treasuryAccount,
		Bank:            b,
		Adapter:         yieldsource.NewAdapter(),
	})
	require.NoError(t, err)
	require.NoError(t, l.SetYieldTaxPips(100_000))

	exp, obs, tol := noSlippage()
	_, _, err = l.Deposit("alice", sdkmath.NewInt(100), exp, obs, tol)
	require.NoError(t, err)

	tax0, tax1, err := l.CollectTax()
	require.NoError(t, err)
	assert.True(t, tax0.IsZero())
	assert.True(t, tax1.IsZero())
}

func TestConservationAcrossDepositsWithdrawalsAndTax(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.SetYieldTaxPips(200_000)) // 20%

	mustDeposit(t, f, "alice", 1500)
	mustDeposit(t, f, "bob", 700)
	require.NoError(t, f.vault0.AccrueYield(sdkmath.NewInt(333)))
	_, _, err := f.ledger.CollectTax()
	require.NoError(t, err)

	exp, obs, tol := noSlippage()
	_, _, err = f.ledger.Withdraw("bob", sdkmath.NewInt(250), exp, obs, tol)
	require.NoError(t, err)

	for _, asset := range []types.AssetID{assetAtom, assetUSDC} {
		reserveValue, err := f.ledger.ReserveValue(asset)
		require.NoError(t, err)

		redeemable := sdkmath.ZeroInt()
		for _, holder := range []string{"alice", "bob"} {
			shares := f.ledger.SharesOf(holder)
			if shares.IsZero() {
				continue
			}
			a0, a1, err := f.ledger.PreviewWithdraw(shares)
			require.NoError(t, err)
			if asset == assetAtom {
				redeemable = redeemable.Add(a0)
			} else {
				redeemable = redeemable.Add(a1)
			}
		}

		// Every unit of reserve value is claimable by some holder, give or
		// take integer rounding across two holders.
		diff := reserveValue.Sub(redeemable).Abs()
		assert.True(t, diff.LTE(sdkmath.NewInt(2)),
			"asset %s: reserve %s vs redeemable %s", asset, reserveValue, redeemable)
	}
}
