/*

SimPool is a deterministic concentrated-liquidity pool used by the demo
wiring and the orchestration tests. Positions follow the standard range
math: for liquidity L in [pa, pb] at price p (clamped to the range),

	amount0 = L * (sqrt(pb) - sqrt(p)) / (sqrt(p) * sqrt(pb))
	amount1 = L * (sqrt(p)  - sqrt(pa))

A swap moves the price to a target and exchanges the implied per-position
deltas with the trader, so total token supply is conserved exactly and the
asymmetry between deployed and recovered amounts is real range exposure,
not an artifact.

*/

package amm

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/dfre/internal/bank"
	"github.com/elys-network/dfre/internal/logger"
	"github.com/elys-network/dfre/internal/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrice    = errors.New("price is invalid")
	ErrEmptyRange      = errors.New("tick range is empty")
	ErrNoPosition      = errors.New("no position in range")
	ErrNothingToDeploy = errors.New("desired amounts produce no liquidity")
)

type position struct {
	rng       types.TickRange
	liquidity sdkmath.LegacyDec
}

// SimPool implements Pool against the in-memory bank.
type SimPool struct {
	logger zerolog.Logger

	bank         *bank.Ledger
	account      string // the pool's own custody account
	counterparty string // the engine's reserve account, for settlement

	asset0 types.AssetID
	asset1 types.AssetID

	price     sdkmath.LegacyDec
	positions map[string]*position
}

// NewSimPool creates a simulated pool at the given starting price.
// Liquidity settlements and removals move funds between the pool's account
// and counterparty; swaps move funds between the pool and the trader.
func NewSimPool(b *bank.Ledger, account, counterparty string, asset0, asset1 types.AssetID, startPrice sdkmath.LegacyDec) (*SimPool, error) {
	if startPrice.IsNil() || !startPrice.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, startPrice)
	}
	return &SimPool{
		logger:       logger.GetForComponent("sim_pool"),
		bank:         b,
		account:      account,
		counterparty: counterparty,
		asset0:       asset0,
		asset1:       asset1,
		price:        startPrice,
		positions:    make(map[string]*position),
	}, nil
}

func (p *SimPool) CurrentPrice() (sdkmath.LegacyDec, error) {
	return p.price, nil
}

// AddLiquidity sizes the largest position the desired amounts can fund at
// the current price and records it. Amounts actually consumed are returned;
// the caller owes them via Settle.
func (p *SimPool) AddLiquidity(rng types.TickRange, desired0, desired1 sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	if rng.IsEmpty() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrEmptyRange
	}

	sa, sb, err := rangeSqrts(rng)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	sp, err := clampedSqrtPrice(p.price, sa, sb)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	liquidity := liquidityForAmounts(sp, sa, sb, desired0, desired1)
	if !liquidity.IsPositive() {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), ErrNothingToDeploy
	}

	actual0, actual1 := amountsForLiquidity(liquidity, sp, sa, sb)

	key := rangeKey(rng)
	if existing, ok := p.positions[key]; ok {
		existing.liquidity = existing.liquidity.Add(liquidity)
	} else {
		p.positions[key] = &position{rng: rng, liquidity: liquidity}
	}

	p.logger.Debug().
		Str("range", key).
		Str("liquidity", liquidity.String()).
		Str("actual0", actual0.String()).
		Str("actual1", actual1.String()).
		Msg("Liquidity added")
	return actual0, actual1, nil
}

// RemoveLiquidity pays the position's current amounts out to the
// counterparty and deletes it.
func (p *SimPool) RemoveLiquidity(rng types.TickRange) (sdkmath.Int, sdkmath.Int, error) {
	key := rangeKey(rng)
	pos, ok := p.positions[key]
	if !ok {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrNoPosition, key)
	}

	sa, sb, err := rangeSqrts(rng)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	sp, err := clampedSqrtPrice(p.price, sa, sb)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	amount0, amount1 := amountsForLiquidity(pos.liquidity, sp, sa, sb)
	delete(p.positions, key)

	// Never pay out more than the pool holds; entry flooring can leave the
	// computed exit a unit above the settled funds.
	amount0 = sdkmath.MinInt(amount0, p.bank.BalanceOf(p.account, p.asset0))
	amount1 = sdkmath.MinInt(amount1, p.bank.BalanceOf(p.account, p.asset1))

	if err := p.bank.Transfer(p.account, p.counterparty, p.asset0, amount0); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	if err := p.bank.Transfer(p.account, p.counterparty, p.asset1, amount1); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	p.logger.Debug().
		Str("range", key).
		Str("amount0", amount0.String()).
		Str("amount1", amount1.String()).
		Msg("Liquidity removed")
	return amount0, amount1, nil
}

// Settle pulls amount of asset from the counterparty into the pool.
func (p *SimPool) Settle(asset types.AssetID, amount sdkmath.Int) error {
	return p.bank.Transfer(p.counterparty, p.account, asset, amount)
}

// Swap moves the pool price to newPrice and exchanges the implied position
// deltas with the trader. With no positions the price still moves but no
// funds change hands.
func (p *SimPool) Swap(trader string, newPrice sdkmath.LegacyDec) error {
	if newPrice.IsNil() || !newPrice.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, newPrice)
	}

	out0, out1 := sdkmath.ZeroInt(), sdkmath.ZeroInt() // pool pays trader
	in0, in1 := sdkmath.ZeroInt(), sdkmath.ZeroInt()   // trader pays pool

	for _, pos := range p.positions {
		sa, sb, err := rangeSqrts(pos.rng)
		if err != nil {
			return err
		}
		spOld, err := clampedSqrtPrice(p.price, sa, sb)
		if err != nil {
			return err
		}
		spNew, err := clampedSqrtPrice(newPrice, sa, sb)
		if err != nil {
			return err
		}

		old0, old1 := amountsForLiquidity(pos.liquidity, spOld, sa, sb)
		new0, new1 := amountsForLiquidity(pos.liquidity, spNew, sa, sb)

		if new0.GT(old0) {
			in0 = in0.Add(new0.Sub(old0))
		} else {
			out0 = out0.Add(old0.Sub(new0))
		}
		if new1.GT(old1) {
			in1 = in1.Add(new1.Sub(old1))
		} else {
			out1 = out1.Add(old1.Sub(new1))
		}
	}

	out0 = sdkmath.MinInt(out0, p.bank.BalanceOf(p.account, p.asset0))
	out1 = sdkmath.MinInt(out1, p.bank.BalanceOf(p.account, p.asset1))

	if err := p.bank.Transfer(trader, p.account, p.asset0, in0); err != nil {
		return err
	}
	if err := p.bank.Transfer(trader, p.account, p.asset1, in1); err != nil {
		return err
	}
	if err := p.bank.Transfer(p.account, trader, p.asset0, out0); err != nil {
		return err
	}
	if err := p.bank.Transfer(p.account, trader, p.asset1, out1); err != nil {
		return err
	}

	p.logger.Debug().
		Str("old_price", p.price.String()).
		Str("new_price", newPrice.String()).
		Str("in0", in0.String()).Str("in1", in1.String()).
		Str("out0", out0.String()).Str("out1", out1.String()).
		Msg("Swap executed")

	p.price = newPrice
	return nil
}

// SetPrice moves the price without exchanging funds, as an external price
// move on another venue would. Simulation only.
func (p *SimPool) SetPrice(newPrice sdkmath.LegacyDec) error {
	if newPrice.IsNil() || !newPrice.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, newPrice)
	}
	p.price = newPrice
	return nil
}

// --- Range math helpers ---

func rangeKey(rng types.TickRange) string {
	return rng.Lower.String() + "/" + rng.Upper.String()
}

func rangeSqrts(rng types.TickRange) (sa, sb sdkmath.LegacyDec, err error) {
	sa, err = rng.Lower.ApproxSqrt()
	if err != nil {
		return sa, sb, fmt.Errorf("failed to take sqrt of lower bound %s: %w", rng.Lower, err)
	}
	sb, err = rng.Upper.ApproxSqrt()
	if err != nil {
		return sa, sb, fmt.Errorf("failed to take sqrt of upper bound %s: %w", rng.Upper, err)
	}
	return sa, sb, nil
}

// clampedSqrtPrice returns sqrt(price) clamped to [sa, sb].
func clampedSqrtPrice(price sdkmath.LegacyDec, sa, sb sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	sp, err := price.ApproxSqrt()
	if err != nil {
		return sp, fmt.Errorf("failed to take sqrt of price %s: %w", price, err)
	}
	if sp.LT(sa) {
		return sa, nil
	}
	if sp.GT(sb) {
		return sb, nil
	}
	return sp, nil
}

// liquidityForAmounts returns the largest liquidity the desired amounts can
// fund at sqrt-price sp within [sa, sb].
func liquidityForAmounts(sp, sa, sb sdkmath.LegacyDec, desired0, desired1 sdkmath.Int) sdkmath.LegacyDec {
	d0 := sdkmath.LegacyNewDecFromInt(desired0)
	d1 := sdkmath.LegacyNewDecFromInt(desired1)

	if sp.Equal(sa) {
		// At or below the lower bound the position is all asset 0.
		return d0.Mul(sa).Mul(sb).Quo(sb.Sub(sa))
	}
	if sp.Equal(sb) {
		// At or above the upper bound the position is all asset 1.
		return d1.Quo(sb.Sub(sa))
	}

	l0 := d0.Mul(sp).Mul(sb).Quo(sb.Sub(sp))
	l1 := d1.Quo(sp.Sub(sa))
	if l0.LT(l1) {
		return l0
	}
	return l1
}

// amountsForLiquidity returns the position's token amounts at sqrt-price sp,
// floored to integers.
func amountsForLiquidity(liquidity, sp, sa, sb sdkmath.LegacyDec) (sdkmath.Int, sdkmath.Int) {
	amount0 := sdkmath.ZeroInt()
	amount1 := sdkmath.ZeroInt()
	if sp.LT(sb) {
		amount0 = liquidity.Mul(sb.Sub(sp)).Quo(sp.Mul(sb)).TruncateInt()
	}
	if sp.GT(sa) {
		amount1 = liquidity.Mul(sp.Sub(sa)).TruncateInt()
	}
	return amount0, amount1
}
