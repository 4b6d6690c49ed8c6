package bank

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/dfre/internal/logger"
	"github.com/elys-network/dfre/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("transfer amount is invalid")
	ErrInvalidAccount      = errors.New("account name is empty")
)

// Ledger is an in-memory Transferor used by the simulation backends and
// tests. Balances are tracked per (account, asset); Mint and Burn exist so
// a simulated yield source can realize gains and losses.
type Ledger struct {
	logger   zerolog.Logger
	balances map[string]map[types.AssetID]sdkmath.Int
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		logger:   logger.GetForComponent("bank_ledger"),
		balances: make(map[string]map[types.AssetID]sdkmath.Int),
	}
}

// Transfer moves amount of asset from one account to another. A transfer of
// zero is a no-op; a transfer exceeding the sender's balance fails without
// touching either account.
func (l *Ledger) Transfer(from, to string, asset types.AssetID, amount sdkmath.Int) error {
	if from == "" || to == "" {
		return ErrInvalidAccount
	}
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if amount.IsZero() {
		return nil
	}

	fromBalance := l.BalanceOf(from, asset)
	if fromBalance.LT(amount) {
		return fmt.Errorf("%w: account %s holds %s %s, needs %s", ErrInsufficientBalance, from, fromBalance, asset, amount)
	}

	l.set(from, asset, fromBalance.Sub(amount))
	l.set(to, asset, l.BalanceOf(to, asset).Add(amount))

	l.logger.Debug().
		Str("from", from).
		Str("to", to).
		Str("asset", string(asset)).
		Str("amount", amount.String()).
		Msg("Transferred")
	return nil
}

// BalanceOf returns the balance of asset held by account.
func (l *Ledger) BalanceOf(account string, asset types.AssetID) sdkmath.Int {
	if accountBalances, ok := l.balances[account]; ok {
		if balance, ok := accountBalances[asset]; ok {
			return balance
		}
	}
	return sdkmath.ZeroInt()
}

// Mint credits amount of asset to account out of thin air. Simulation only:
// this is how a mock vault realizes yield.
func (l *Ledger) Mint(account string, asset types.AssetID, amount sdkmath.Int) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	l.set(account, asset, l.BalanceOf(account, asset).Add(amount))
	return nil
}

// Burn removes amount of asset from account. Simulation only: this is how a
// mock vault realizes a loss.
func (l *Ledger) Burn(account string, asset types.AssetID, amount sdkmath.Int) error {
	if account == "" {
		return ErrInvalidAccount
	}
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	balance := l.BalanceOf(account, asset)
	if balance.LT(amount) {
		return fmt.Errorf("%w: account %s holds %s %s, burning %s", ErrInsufficientBalance, account, balance, asset, amount)
	}
	l.set(account, asset, balance.Sub(amount))
	return nil
}

// TotalSupply sums every account's balance of asset. Used by conservation
// checks in tests.
func (l *Ledger) TotalSupply(asset types.AssetID) sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, accountBalances := range l.balances {
		if balance, ok := accountBalances[asset]; ok {
			total = total.Add(balance)
		}
	}
	return total
}

func (l *Ledger) set(account string, asset types.AssetID, amount sdkmath.Int) {
	accountBalances, ok := l.balances[account]
	if !ok {
		accountBalances = make(map[types.AssetID]sdkmath.Int)
		l.balances[account] = accountBalances
	}
	accountBalances[asset] = amount
}
