package yieldsource

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/dfre/internal/bank"
	"github.com/elys-network/dfre/internal/types"
)

const (
	reserveAccount = "reserve"
	assetAtom      = types.AssetID("uatom")
	assetUSDC      = types.AssetID("uusdc")
)

func newTestLedger(t *testing.T) *bank.Ledger {
	t.Helper()
	l := bank.NewLedger()
	require.NoError(t, l.Mint(reserveAccount, assetAtom, sdkmath.NewInt(10_000)))
	require.NoError(t, l.Mint(reserveAccount, assetUSDC, sdkmath.NewInt(10_000)))
	return l
}

func TestAdapterUnboundIsNoop(t *testing.T) {
	a := NewAdapter()

	require.NoError(t, a.Deposit(assetAtom, sdkmath.NewInt(100)))

	out, err := a.Withdraw(assetAtom, sdkmath.NewInt(100))
	require.NoError(t, err)
	assert.True(t, out.IsZero())

	value, err := a.ValueHeld(assetAtom)
	require.NoError(t, err)
	assert.True(t, value.IsZero())
	assert.False(t, a.Bound(assetAtom))
}

func TestAdapterDepositWithdraw(t *testing.T) {
	l := newTestLedger(t)
	a := NewAdapter()
	require.NoError(t, a.Rebind(assetAtom, NewMockVault(l, "vault_atom", reserveAccount, assetAtom)))

	require.NoError(t, a.Deposit(assetAtom, sdkmath.NewInt(1_000)))
	value, err := a.ValueHeld(assetAtom)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), value.Int64())
	assert.Equal(t, int64(9_000), l.BalanceOf(reserveAccount, assetAtom).Int64())
	assert.Equal(t, int64(1_000), a.Principal(assetAtom).Int64())

	out, err := a.Withdraw(assetAtom, sdkmath.NewInt(400))
	require.NoError(t, err)
	assert.Equal(t, int64(400), out.Int64())
	assert.Equal(t, int64(9_400), l.BalanceOf(reserveAccount, assetAtom).Int64())
	assert.Equal(t, int64(600), a.Principal(assetAtom).Int64())
}

func TestAdapterWithdrawCapsAtPosition(t *testing.T) {
	l := newTestLedger(t)
	a := NewAdapter()
	require.NoError(t, a.Rebind(assetAtom, NewMockVault(l, "vault_atom", reserveAccount, assetAtom)))
	require.NoError(t, a.Deposit(assetAtom, sdkmath.NewInt(500)))

	out, err := a.Withdraw(assetAtom, sdkmath.NewInt(10_000))
	require.NoError(t, err)
	assert.Equal(t, int64(500), out.Int64())
	assert.True(t, a.Principal(assetAtom).IsZero())
}

func TestAdapterRebindAssetMismatch(t *testing.T) {
	l := newTestLedger(t)
	a := NewAdapter()

	err := a.Rebind(assetAtom, NewMockVault(l, "vault_usdc", reserveAccount, assetUSDC))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAssetMismatch)

	var mismatch *types.AssetMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, assetAtom, mismatch.Want)
	assert.Equal(t, assetUSDC, mismatch.Got)
	assert.False(t, a.Bound(assetAtom))
}

func TestAdapterRebindMigratesFullPosition(t *testing.T) {
	l := newTestLedger(t)
	a := NewAdapter()

	oldVault := NewMockVault(l, "vault_old", reserveAccount, assetAtom)
	require.NoError(t, a.Rebind(assetAtom, oldVault))
	require.NoError(t, a.Deposit(assetAtom, sdkmath.NewInt(2_000)))
	require.NoError(t, oldVault.AccrueYield(sdkmath.NewInt(500)))

	newVault := NewMockVault(l, "vault_new", reserveAccount, assetAtom)
	require.NoError(t, a.Rebind(assetAtom, newVault))

	// Nothing left behind, everything (including yield) in the new vault.
	assert.True(t, l.BalanceOf("vault_old", assetAtom).IsZero())
	assert.Equal(t, int64(2_500), l.BalanceOf("vault_new", assetAtom).Int64())

	value, err := a.ValueHeld(assetAtom)
	require.NoError(t, err)
	assert.Equal(t, int64(2_500), value.Int64())
	// Basis carries across the migration, so the yield stays collectible.
	assert.Equal(t, int64(2_000), a.Principal(assetAtom).Int64())
}

func TestAdapterUnbindLeavesFundsIdle(t *testing.T) {
	l := newTestLedger(t)
	a := NewAdapter()
	require.NoError(t, a.Rebind(assetAtom, NewMockVault(l, "vault_atom", reserveAccount, assetAtom)))
	require.NoError(t, a.Deposit(assetAtom, sdkmath.NewInt(2_000)))

	require.NoError(t, a.Rebind(assetAtom, nil))
	assert.False(t, a.Bound(assetAtom))
	assert.Equal(t, int64(10_000), l.BalanceOf(reserveAccount, assetAtom).Int64())
	assert.True(t, a.Principal(assetAtom).IsZero())
}

func TestAdapterMarkPrincipalRealizesYield(t *testing.T) {
	l := newTestLedger(t)
	a := NewAdapter()
	vault := NewMockVault(l, "vault_atom", reserveAccount, assetAtom)
	require.NoError(t, a.Rebind(assetAtom, vault))
	require.NoError(t, a.Deposit(assetAtom, sdkmath.NewInt(1_000)))
	require.NoError(t, vault.AccrueYield(sdkmath.NewInt(300)))

	require.NoError(t, a.MarkPrincipal(assetAtom))
	assert.Equal(t, int64(1_300), a.Principal(assetAtom).Int64())
}

func TestAdapterRestoreYieldLowersBasis(t *testing.T) {
	l := newTestLedger(t)
	a := NewAdapter()
	require.NoError(t, a.Rebind(assetAtom, NewMockVault(l, "vault_atom", reserveAccount, assetAtom)))
	require.NoError(t, a.Deposit(assetAtom, sdkmath.NewInt(1_000)))

	a.RestoreYield(assetAtom, sdkmath.NewInt(300))
	assert.Equal(t, int64(700), a.Principal(assetAtom).Int64())

	// The basis floors at zero when the carried yield exceeds it.
	a.RestoreYield(assetAtom, sdkmath.NewInt(10_000))
	assert.True(t, a.Principal(assetAtom).IsZero())

	// Unbound assets are ignored.
	a.RestoreYield(assetUSDC, sdkmath.NewInt(100))
	assert.True(t, a.Principal(assetUSDC).IsZero())
}

func TestNoopVault(t *testing.T) {
	v := NewNoopVault(assetAtom)
	assert.Equal(t, assetAtom, v.UnderlyingAsset())
	assert.NoError(t, v.Deposit(sdkmath.NewInt(100)))

	out, err := v.Withdraw(sdkmath.NewInt(100))
	require.NoError(t, err)
	assert.True(t, out.IsZero())

	value, err := v.ValueHeld()
	require.NoError(t, err)
	assert.True(t, value.IsZero())
}
