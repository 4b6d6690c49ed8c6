package yieldsource

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dfre/internal/bank"
	"github.com/elys-network/dfre/internal/types"
	"github.com/elys-network/dfre/internal/utils"
)

// MockVault is a bank-backed YieldSource for simulation and tests. Its
// position is simply its own bank account; yield and loss are realized by
// minting into or burning from that account, so conservation stays checkable
// at the bank level.
type MockVault struct {
	ledger         *bank.Ledger
	account        string
	reserveAccount string
	asset          types.AssetID
}

// NewMockVault creates a mock vault holding asset in its own account,
// settling deposits and withdrawals against reserveAccount.
func NewMockVault(ledger *bank.Ledger, account, reserveAccount string, asset types.AssetID) *MockVault {
	return &MockVault{
		ledger:         ledger,
		account:        account,
		reserveAccount: reserveAccount,
		asset:          asset,
	}
}

func (v *MockVault) UnderlyingAsset() types.AssetID { return v.asset }

func (v *MockVault) Deposit(amount sdkmath.Int) error {
	return v.ledger.Transfer(v.reserveAccount, v.account, v.asset, amount)
}

func (v *MockVault) Withdraw(amount sdkmath.Int) (sdkmath.Int, error) {
	available := v.ledger.BalanceOf(v.account, v.asset)
	out := utils.MinInt(amount, available)
	if err := v.ledger.Transfer(v.account, v.reserveAccount, v.asset, out); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return out, nil
}

func (v *MockVault) ValueHeld() (sdkmath.Int, error) {
	return v.ledger.BalanceOf(v.account, v.asset), nil
}

// AccrueYield realizes yield on the position by minting into the vault
// account. Simulation only.
func (v *MockVault) AccrueYield(amount sdkmath.Int) error {
	if err := v.ledger.Mint(v.account, v.asset, amount); err != nil {
		return fmt.Errorf("failed to accrue yield: %w", err)
	}
	return nil
}

// RealizeLoss burns part of the position, as an external vault losing value
// would. Simulation only.
func (v *MockVault) RealizeLoss(amount sdkmath.Int) error {
	if err := v.ledger.Burn(v.account, v.asset, amount); err != nil {
		return fmt.Errorf("failed to realize loss: %w", err)
	}
	return nil
}

// NoopVault is a YieldSource that accepts nothing and holds nothing. Binding
// it is equivalent to leaving funds idle in the reserve's own custody while
// keeping the asset-identity check in place.
type NoopVault struct {
	asset types.AssetID
}

// NewNoopVault creates a no-op vault for asset.
func NewNoopVault(asset types.AssetID) *NoopVault {
	return &NoopVault{asset: asset}
}

func (v *NoopVault) UnderlyingAsset() types.AssetID { return v.asset }

func (v *NoopVault) Deposit(sdkmath.Int) error { return nil }

func (v *NoopVault) Withdraw(sdkmath.Int) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

func (v *NoopVault) ValueHeld() (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}
