package hook

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/dfre/internal/amm"
	"github.com/elys-network/dfre/internal/bank"
	"github.com/elys-network/dfre/internal/types"
	"github.com/elys-network/dfre/internal/yieldsource"
)

const (
	ownerAccount    = "owner"
	managerAccount  = "manager"
	aliceAccount    = "alice"
	traderAccount   = "trader"
	poolAccount     = "amm_pool"
	reserveAccount  = "reserve_1"
	treasuryAccount = "treasury"
	vaultAccount0   = "vault0"
	vaultAccount1   = "vault1"
	assetAtom       = types.AssetID("uatom")
	assetUSDC       = types.AssetID("uusdc")

	poolID = types.PoolID(1)
)

type fixture struct {
	bank *bank.Ledger
	pool *amm.SimPool
	hook *Hook
}

func newFixture(t *testing.T, startPrice sdkmath.LegacyDec) *fixture {
	t.Helper()
	b := bank.NewLedger()
	for _, account := range []string{aliceAccount, traderAccount} {
		require.NoError(t, b.Mint(account, assetAtom, sdkmath.NewInt(1_000_000)))
		require.NoError(t, b.Mint(account, assetUSDC, sdkmath.NewInt(1_000_000)))
	}

	pool, err := amm.NewSimPool(b, poolAccount, reserveAccount, assetAtom, assetUSDC, startPrice)
	require.NoError(t, err)

	h, err := New(Config{
		Bank:  b,
		Roles: NewStaticRoles(ownerAccount, managerAccount),
	})
	require.NoError(t, err)

	require.NoError(t, h.ConfigurePool(managerAccount, PoolConfig{
		PoolID:          poolID,
		PoolType:        types.PoolType("standard"),
		Asset0:          assetAtom,
		Asset1:          assetUSDC,
		ReserveAccount:  reserveAccount,
		TreasuryAccount: treasuryAccount,
		Pool:            pool,
	}))
	return &fixture{bank: b, pool: pool, hook: h}
}

func (f *fixture) activate(t *testing.T) {
	t.Helper()
	require.NoError(t, f.hook.ActivatePool(managerAccount, poolID, 3000, sdkmath.LegacyOneDec()))
}

func (f *fixture) bindVaults(t *testing.T) (*yieldsource.MockVault, *yieldsource.MockVault) {
	t.Helper()
	v0 := yieldsource.NewMockVault(f.bank, vaultAccount0, reserveAccount, assetAtom)
	v1 := yieldsource.NewMockVault(f.bank, vaultAccount1, reserveAccount, assetUSDC)
	require.NoError(t, f.hook.SetYieldSource(managerAccount, poolID, assetAtom, v0))
	require.NoError(t, f.hook.SetYieldSource(managerAccount, poolID, assetUSDC, v1))
	return v0, v1
}

func (f *fixture) setRange(t *testing.T, lower, upper int64) {
	t.Helper()
	require.NoError(t, f.hook.PausePool(managerAccount, poolID))
	require.NoError(t, f.hook.SetTickRange(managerAccount, poolID, types.TickRange{
		Lower: sdkmath.LegacyNewDec(lower),
		Upper: sdkmath.LegacyNewDec(upper),
	}))
	require.NoError(t, f.hook.ResumePool(managerAccount, poolID))
}

func TestLifecycleGating(t *testing.T) {
	f := newFixture(t, sdkmath.LegacyNewDec(2))

	// Configured but not active: pokes and deposits refuse.
	_, err := f.hook.PokeFee(managerAccount, poolID, sdkmath.LegacyOneDec())
	assert.ErrorIs(t, err, types.ErrPoolNotActive)
	_, _, err = f.hook.Deposit(aliceAccount, poolID, sdkmath.NewInt(100), sdkmath.LegacyZeroDec(), 0)
	assert.ErrorIs(t, err, types.ErrPoolNotActive)

	err = f.hook.ConfigurePool(managerAccount, PoolConfig{PoolID: poolID, PoolType: "standard", Pool: f.pool,
		Asset0: assetAtom, Asset1: assetUSDC, ReserveAccount: reserveAccount, TreasuryAccount: treasuryAccount})
	assert.ErrorIs(t, err, types.ErrPoolAlreadyConfigured)

	f.activate(t)

	require.NoError(t, f.hook.PausePool(managerAccount, poolID))
	_, err = f.hook.PokeFee(managerAccount, poolID, sdkmath.LegacyOneDec())
	assert.ErrorIs(t, err, types.ErrPoolPaused)
	_, _, err = f.hook.Withdraw(aliceAccount, poolID, sdkmath.NewInt(1), sdkmath.LegacyZeroDec(), 0)
	assert.ErrorIs(t, err, types.ErrPoolPaused)

	require.NoError(t, f.hook.ResumePool(managerAccount, poolID))
	_, err = f.hook.PokeFee(managerAccount, poolID, sdkmath.LegacyOneDec())
	assert.NoError(t, err)

	require.NoError(t, f.hook.DeactivatePool(managerAccount, poolID))
	_, err = f.hook.PokeFee(managerAccount, poolID, sdkmath.LegacyOneDec())
	assert.ErrorIs(t, err, types.ErrPoolNotActive)
	err = f.hook.ResumePool(managerAccount, poolID)
	assert.ErrorIs(t, err, types.ErrPoolNotPaused)
}

func TestActivationValidatesInitialState(t *testing.T) {
	f := newFixture(t, sdkmath.LegacyNewDec(2))

	err := f.hook.ActivatePool(managerAccount, poolID, 1, sdkmath.LegacyOneDec())
	assert.ErrorIs(t, err, types.ErrInvalidParameter, "fee below type minimum")

	err = f.hook.ActivatePool(managerAccount, poolID, 3000, sdkmath.LegacyZeroDec())
	assert.ErrorIs(t, err, types.ErrInvalidParameter, "zero target ratio")

	err = f.hook.ActivatePool(managerAccount, types.PoolID(99), 3000, sdkmath.LegacyOneDec())
	assert.ErrorIs(t, err, types.ErrPoolNotConfigured)

	f.activate(t)
	state, err := f.hook.FeeState(poolID)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, int64(3000), state.CurrentFeePips)
	assert.Equal(t, types.DirectionNone, state.LastDirection)
}

func TestRoleGating(t *testing.T) {
	f := newFixture(t, sdkmath.LegacyNewDec(2))
	f.activate(t)

	_, err := f.hook.PokeFee(aliceAccount, poolID, sdkmath.LegacyOneDec())
	assert.ErrorIs(t, err, types.ErrInvalidCaller)

	err = f.hook.SetYieldTaxPips(managerAccount, poolID, 100)
	assert.ErrorIs(t, err, types.ErrInvalidCaller, "tax rate is owner-only")

	params, err := f.hook.Parameters("standard")
	require.NoError(t, err)
	err = f.hook.SetPoolTypeParameters(managerAccount, "standard", params)
	assert.ErrorIs(t, err, types.ErrInvalidCaller)
	assert.NoError(t, f.hook.SetPoolTypeParameters(ownerAccount, "standard", params))

	// The owner holds every role.
	_, err = f.hook.PokeFee(ownerAccount, poolID, sdkmath.LegacyOneDec())
	assert.NoError(t, err)
}

func TestPokeFeeEnforcesCooldown(t *testing.T) {
	f := newFixture(t, sdkmath.LegacyNewDec(2))
	f.activate(t)

	update, err := f.hook.PokeFee(managerAccount, poolID, sdkmath.LegacyNewDec(2))
	require.NoError(t, err)
	assert.Equal(t, poolID, update.PoolID)

	_, err = f.hook.PokeFee(managerAccount, poolID, sdkmath.LegacyNewDec(2))
	assert.ErrorIs(t, err, types.ErrCooldownActive)
}

type captureSink struct {
	updates []*types.FeeUpdate
}

func (s *captureSink) RecordFeeUpdate(update *types.FeeUpdate) error {
	s.updates = append(s.updates, update)
	return nil
}

func TestPokeFeeForwardsEventToSink(t *testing.T) {
	b := bank.NewLedger()
	pool, err := amm.NewSimPool(b, poolAccount, reserveAccount, assetAtom, assetUSDC, sdkmath.LegacyNewDec(2))
	require.NoError(t, err)

	sink := &captureSink{}
	h, err := New(Config{Bank: b, Roles: OpenRoles{}, Sink: sink})
	require.NoError(t, err)
	require.NoError(t, h.ConfigurePool(managerAccount, PoolConfig{
		PoolID: poolID, PoolType: "volatile", Asset0: assetAtom, Asset1: assetUSDC,
		ReserveAccount: reserveAccount, TreasuryAccount: treasuryAccount, Pool: pool,
	}))
	require.NoError(t, h.ActivatePool(managerAccount, poolID, 10_000, sdkmath.LegacyOneDec()))

	update, err := h.PokeFee(managerAccount, poolID, sdkmath.LegacyNewDec(3))
	require.NoError(t, err)
	require.Len(t, sink.updates, 1)
	assert.Equal(t, update, sink.updates[0])
}

func TestSetTickRangeRequiresPause(t *testing.T) {
	f := newFixture(t, sdkmath.LegacyNewDec(2))
	f.activate(t)

	rng := types.TickRange{Lower: sdkmath.LegacyNewDec(1), Upper: sdkmath.LegacyNewDec(4)}
	err := f.hook.SetTickRange(managerAccount, poolID, rng)
	assert.ErrorIs(t, err, types.ErrPoolNotPaused)

	require.NoError(t, f.hook.PausePool(managerAccount, poolID))
	assert.NoError(t, f.hook.SetTickRange(managerAccount, poolID, rng))
	require.NoError(t, f.hook.ResumePool(managerAccount, poolID))

	snapshot, err := f.hook.Snapshot(poolID)
	require.NoError(t, err)
	assert.Equal(t, rng.Lower, snapshot.TickRange.Lower)
	assert.Equal(t, rng.Upper, snapshot.TickRange.Upper)
}

func TestDepositAndWithdrawThroughHook(t *testing.T) {
	f := newFixture(t, sdkmath.LegacyNewDec(2))
	f.activate(t)

	in0, in1, err := f.hook.Deposit(aliceAccount, poolID, sdkmath.NewInt(1000), sdkmath.LegacyZeroDec(), 0)
	require.NoError(t, err)
	assert.Equal(t, "1000", in0.String())
	assert.Equal(t, "1000", in1.String())

	shares, err := f.hook.SharesOf(poolID, aliceAccount)
	require.NoError(t, err)
	assert.Equal(t, "1000", shares.String())

	// The observed price comes from the pool, so a stale expectation trips
	// the guard before funds move.
	_, _, err = f.hook.Deposit(aliceAccount, poolID, sdkmath.NewInt(10), sdkmath.LegacyNewDec(3), 100)
	assert.ErrorIs(t, err, types.ErrPriceSlippageExceeded)

	out0, out1, err := f.hook.Withdraw(aliceAccount, poolID, sdkmath.NewInt(1000), sdkmath.LegacyNewDec(2), 100)
	require.NoError(t, err)
	assert.Equal(t, "1000", out0.String())
	assert.Equal(t, "1000", out1.String())
}

func TestExecuteSwapFullCycle(t *testing.T) {
	// price 2.25 inside [1, 4].
	f := newFixture(t, sdkmath.LegacyNewDecWithPrec(225, 2))
	f.activate(t)

	_, _, err := f.hook.Deposit(aliceAccount, poolID, sdkmath.NewInt(1000), sdkmath.LegacyZeroDec(), 0)
	require.NoError(t, err)
	f.bindVaults(t)
	f.setRange(t, 1, 4)

	supply0 := f.bank.TotalSupply(assetAtom)
	supply1 := f.bank.TotalSupply(assetUSDC)

	deployment, err := f.hook.ExecuteSwap(poolID, traderAccount, sdkmath.LegacyNewDecWithPrec(169, 2))
	require.NoError(t, err)
	require.NotNil(t, deployment)
	assert.True(t, deployment.Deployed0.IsPositive())
	assert.True(t, deployment.Deployed1.IsPositive())

	snapshot, err := f.hook.Snapshot(poolID)
	require.NoError(t, err)
	assert.Nil(t, snapshot.Deployment, "deployment unwound after the swap")
	assert.Equal(t, "1.690000000000000000", snapshot.CurrentPrice.String())

	// Nothing stranded in the pool or idle in the reserve; supply conserved.
	assert.True(t, f.bank.BalanceOf(poolAccount, assetAtom).IsZero())
	assert.True(t, f.bank.BalanceOf(poolAccount, assetUSDC).IsZero())
	assert.True(t, f.bank.BalanceOf(reserveAccount, assetAtom).IsZero())
	assert.True(t, f.bank.BalanceOf(reserveAccount, assetUSDC).IsZero())
	assert.Equal(t, supply0, f.bank.TotalSupply(assetAtom))
	assert.Equal(t, supply1, f.bank.TotalSupply(assetUSDC))

	// The price dropped, so the reserve's exposure rotated toward asset 0.
	assert.True(t, snapshot.ReserveValue0.GT(sdkmath.NewInt(1000)))
	assert.True(t, snapshot.ReserveValue1.LT(sdkmath.NewInt(1000)))

	// The sole holder can still redeem the full reserve.
	out0, out1, err := f.hook.Withdraw(aliceAccount, poolID, sdkmath.NewInt(1000), sdkmath.LegacyZeroDec(), 0)
	require.NoError(t, err)
	assert.Equal(t, snapshot.ReserveValue0, out0)
	assert.Equal(t, snapshot.ReserveValue1, out1)
}

func TestShareOpsRefusedMidDeployment(t *testing.T) {
	// price 2.25 inside [1, 4].
	f := newFixture(t, sdkmath.LegacyNewDecWithPrec(225, 2))
	f.activate(t)

	_, _, err := f.hook.Deposit(aliceAccount, poolID, sdkmath.NewInt(1000), sdkmath.LegacyZeroDec(), 0)
	require.NoError(t, err)
	f.bindVaults(t)
	f.setRange(t, 1, 4)

	deployment, err := f.hook.BeforeSwap(poolID)
	require.NoError(t, err)
	require.NotNil(t, deployment)

	// With reserves sitting in the pool, a deposit would price shares
	// against a nearly empty reserve and dilute existing holders.
	bob := "bob"
	require.NoError(t, f.bank.Mint(bob, assetAtom, sdkmath.NewInt(10_000)))
	require.NoError(t, f.bank.Mint(bob, assetUSDC, sdkmath.NewInt(10_000)))
	_, _, err = f.hook.Deposit(bob, poolID, sdkmath.NewInt(1000), sdkmath.LegacyZeroDec(), 0)
	assert.ErrorIs(t, err, types.ErrSwapInProgress)
	_, _, err = f.hook.Withdraw(aliceAccount, poolID, sdkmath.NewInt(100), sdkmath.LegacyZeroDec(), 0)
	assert.ErrorIs(t, err, types.ErrSwapInProgress)
	_, _, err = f.hook.CollectAccumulatedTax(managerAccount, poolID)
	assert.ErrorIs(t, err, types.ErrSwapInProgress)

	require.NoError(t, f.hook.AfterSwap(poolID))

	// Once the deployment unwinds, the same deposit pays full price.
	in0, in1, err := f.hook.Deposit(bob, poolID, sdkmath.NewInt(1000), sdkmath.LegacyZeroDec(), 0)
	require.NoError(t, err)
	assert.Equal(t, "1000", in0.String())
	assert.Equal(t, "1000", in1.String())
}

func TestOneSidedRangeSelfHeals(t *testing.T) {
	// price 2.25 sits below [4, 9]: only asset 0 is in the money.
	f := newFixture(t, sdkmath.LegacyNewDecWithPrec(225, 2))
	f.activate(t)

	_, _, err := f.hook.Deposit(aliceAccount, poolID, sdkmath.NewInt(1000), sdkmath.LegacyZeroDec(), 0)
	require.NoError(t, err)
	v0, v1 := f.bindVaults(t)
	f.setRange(t, 4, 9)

	// The swap carries the price into the range; the one-sided asset 0
	// position converts partially to asset 1 on the way.
	_, err = f.hook.ExecuteSwap(poolID, traderAccount, sdkmath.LegacyNewDec(6))
	require.NoError(t, err)

	held0, err := v0.ValueHeld()
	require.NoError(t, err)
	held1, err := v1.ValueHeld()
	require.NoError(t, err)
	assert.True(t, held0.IsPositive())
	assert.True(t, held1.GT(sdkmath.NewInt(1000)), "asset 1 exposure grew past the original deposit")

	// The next swap deploys two-sided without any operator intervention.
	deployment, err := f.hook.ExecuteSwap(poolID, traderAccount, sdkmath.LegacyNewDec(5))
	require.NoError(t, err)
	require.NotNil(t, deployment)
	assert.True(t, deployment.Deployed0.IsPositive())
	assert.True(t, deployment.Deployed1.IsPositive())
}

func TestCollectAccumulatedTax(t *testing.T) {
	f := newFixture(t, sdkmath.LegacyNewDec(2))
	f.activate(t)

	_, _, err := f.hook.Deposit(aliceAccount, poolID, sdkmath.NewInt(1000), sdkmath.LegacyZeroDec(), 0)
	require.NoError(t, err)
	v0, _ := f.bindVaults(t)
	require.NoError(t, f.hook.SetYieldTaxPips(ownerAccount, poolID, 100_000)) // 10%

	require.NoError(t, v0.AccrueYield(sdkmath.NewInt(500)))

	tax0, tax1, err := f.hook.CollectAccumulatedTax(managerAccount, poolID)
	require.NoError(t, err)
	assert.Equal(t, "50", tax0.String())
	assert.True(t, tax1.IsZero())
	assert.Equal(t, sdkmath.NewInt(50), f.bank.BalanceOf(treasuryAccount, assetAtom))

	// A second collection realizes nothing new.
	tax0, _, err = f.hook.CollectAccumulatedTax(managerAccount, poolID)
	require.NoError(t, err)
	assert.True(t, tax0.IsZero())
}

func TestCollectTaxSurvivesSwapCycle(t *testing.T) {
	// price 2.25 inside [1, 4].
	f := newFixture(t, sdkmath.LegacyNewDecWithPrec(225, 2))
	f.activate(t)

	_, _, err := f.hook.Deposit(aliceAccount, poolID, sdkmath.NewInt(1000), sdkmath.LegacyZeroDec(), 0)
	require.NoError(t, err)
	v0, _ := f.bindVaults(t)
	f.setRange(t, 1, 4)
	require.NoError(t, f.hook.SetYieldTaxPips(ownerAccount, poolID, 100_000)) // 10%

	require.NoError(t, v0.AccrueYield(sdkmath.NewInt(500)))

	// The cycle recalls the full vault position and re-deposits the proceeds
	// afterwards; yield accrued before the swap must stay taxable through it.
	_, err = f.hook.ExecuteSwap(poolID, traderAccount, sdkmath.LegacyNewDecWithPrec(169, 2))
	require.NoError(t, err)

	tax0, tax1, err := f.hook.CollectAccumulatedTax(managerAccount, poolID)
	require.NoError(t, err)
	assert.Equal(t, "50", tax0.String())
	assert.True(t, tax1.IsZero())
	assert.Equal(t, sdkmath.NewInt(50), f.bank.BalanceOf(treasuryAccount, assetAtom))
}

func TestSetYieldSourceRejectsForeignAsset(t *testing.T) {
	f := newFixture(t, sdkmath.LegacyNewDec(2))
	f.activate(t)

	err := f.hook.SetYieldSource(managerAccount, poolID, types.AssetID("uosmo"),
		yieldsource.NewNoopVault(types.AssetID("uosmo")))
	assert.ErrorIs(t, err, types.ErrInvalidParameter)

	// A vault whose declared underlying differs from the pool asset fails
	// before any funds move.
	err = f.hook.SetYieldSource(managerAccount, poolID, assetAtom,
		yieldsource.NewNoopVault(assetUSDC))
	assert.ErrorIs(t, err, types.ErrAssetMismatch)
}
