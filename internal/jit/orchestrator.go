// Package jit deploys rehypothecated reserves into the pool for the duration
// of a single swap. BeforeSwap recalls funds from the yield source and places
// them as a concentrated position around the configured tick range; AfterSwap
// unwinds the position and re-deposits whatever came back.
package jit

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/dfre/internal/amm"
	"github.com/elys-network/dfre/internal/bank"
	"github.com/elys-network/dfre/internal/logger"
	"github.com/elys-network/dfre/internal/types"
	"github.com/elys-network/dfre/internal/yieldsource"
)

// Deployment records one in-flight JIT position. It exists between a
// BeforeSwap that deployed funds and the AfterSwap that unwound them.
type Deployment struct {
	ID        string          `json:"id"`
	PoolID    types.PoolID    `json:"pool_id"`
	Range     types.TickRange `json:"range"`
	Deployed0 sdkmath.Int     `json:"deployed0"`
	Deployed1 sdkmath.Int     `json:"deployed1"`
	CreatedAt time.Time       `json:"created_at"`
}

// Config wires an Orchestrator. All fields are required.
type Config struct {
	PoolID         types.PoolID
	Asset0         types.AssetID
	Asset1         types.AssetID
	ReserveAccount string
	Bank           bank.Transferor
	Pool           amm.Pool
	Adapter        *yieldsource.Adapter
}

// Orchestrator performs the recall / deploy / unwind / re-deposit cycle.
// It is not safe for concurrent use; the owning hook serializes swaps.
type Orchestrator struct {
	cfg    Config
	active *Deployment
	// carried holds per-asset yield that had accrued in the vault when a
	// recall emptied it. The post-swap sweep restores it so the re-deposit
	// does not turn untaxed yield into fresh principal.
	carried map[types.AssetID]sdkmath.Int
	logger  zerolog.Logger
}

func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Bank == nil || cfg.Pool == nil || cfg.Adapter == nil {
		return nil, fmt.Errorf("jit: bank, pool and adapter are required")
	}
	if cfg.ReserveAccount == "" {
		return nil, fmt.Errorf("jit: reserve account is required")
	}
	return &Orchestrator{
		cfg:     cfg,
		carried: make(map[types.AssetID]sdkmath.Int),
		logger:  logger.GetForComponent("jit_orchestrator"),
	}, nil
}

// Active returns the deployment currently sitting in the pool, or nil.
func (o *Orchestrator) Active() *Deployment {
	return o.active
}

// BeforeSwap recalls reserves and deploys them into rng. Prices below the
// range get an asset-0-only position, prices at or above the upper bound get
// asset 1 only, and in-range prices get a two-sided position sized by the
// pool. A nil deployment with a nil error means there was nothing to deploy.
func (o *Orchestrator) BeforeSwap(rng types.TickRange) (*Deployment, error) {
	if o.active != nil {
		return nil, fmt.Errorf("jit: deployment %s still active", o.active.ID)
	}
	if rng.IsEmpty() {
		return nil, nil
	}

	price, err := o.cfg.Pool.CurrentPrice()
	if err != nil {
		return nil, fmt.Errorf("jit: reading pool price: %w", err)
	}

	want0, want1 := true, true
	switch {
	case price.LT(rng.Lower):
		want1 = false
	case !rng.Contains(price):
		want0 = false
	}

	desired0, err := o.recall(o.cfg.Asset0, want0)
	if err != nil {
		return nil, err
	}
	desired1, err := o.recall(o.cfg.Asset1, want1)
	if err != nil {
		return nil, err
	}
	if desired0.IsZero() && desired1.IsZero() {
		return nil, nil
	}

	actual0, actual1, err := o.cfg.Pool.AddLiquidity(rng, desired0, desired1)
	if err != nil {
		if errors.Is(err, amm.ErrNothingToDeploy) {
			return nil, nil
		}
		return nil, fmt.Errorf("jit: deploying liquidity: %w", err)
	}
	if actual0.IsPositive() {
		if err := o.cfg.Pool.Settle(o.cfg.Asset0, actual0); err != nil {
			return nil, fmt.Errorf("jit: settling %s: %w", o.cfg.Asset0, err)
		}
	}
	if actual1.IsPositive() {
		if err := o.cfg.Pool.Settle(o.cfg.Asset1, actual1); err != nil {
			return nil, fmt.Errorf("jit: settling %s: %w", o.cfg.Asset1, err)
		}
	}

	o.active = &Deployment{
		ID:        uuid.New().String(),
		PoolID:    o.cfg.PoolID,
		Range:     rng,
		Deployed0: actual0,
		Deployed1: actual1,
		CreatedAt: time.Now().UTC(),
	}
	o.logger.Info().
		Str("deployment_id", o.active.ID).
		Str("deployed0", actual0.String()).
		Str("deployed1", actual1.String()).
		Str("range_lower", rng.Lower.String()).
		Str("range_upper", rng.Upper.String()).
		Msg("JIT liquidity deployed")
	return o.active, nil
}

// AfterSwap unwinds the active deployment and pushes every idle reserve
// balance back into the yield source. It also runs the re-deposit sweep when
// no deployment is active, which reconciles deposits that arrived while the
// vault binding was absent.
func (o *Orchestrator) AfterSwap() error {
	if o.active != nil {
		returned0, returned1, err := o.cfg.Pool.RemoveLiquidity(o.active.Range)
		if err != nil {
			return fmt.Errorf("jit: unwinding deployment %s: %w", o.active.ID, err)
		}
		o.logger.Info().
			Str("deployment_id", o.active.ID).
			Str("returned0", returned0.String()).
			Str("returned1", returned1.String()).
			Msg("JIT liquidity unwound")
		o.active = nil
	}
	return o.Sweep()
}

// Sweep deposits the full idle reserve balance of each bound asset into the
// yield source, then restores any yield a recall carried out of the vault.
func (o *Orchestrator) Sweep() error {
	for _, asset := range []types.AssetID{o.cfg.Asset0, o.cfg.Asset1} {
		if !o.cfg.Adapter.Bound(asset) {
			continue
		}
		idle := o.cfg.Bank.BalanceOf(o.cfg.ReserveAccount, asset)
		if idle.IsPositive() {
			if err := o.cfg.Adapter.Deposit(asset, idle); err != nil {
				return fmt.Errorf("jit: re-depositing %s: %w", asset, err)
			}
		}
		if carried, ok := o.carried[asset]; ok {
			o.cfg.Adapter.RestoreYield(asset, carried)
			delete(o.carried, asset)
		}
	}
	return nil
}

// recall pulls the asset's entire yield source position back to the reserve
// account and returns the total now deployable. Assets on the wrong side of
// the range stay put.
func (o *Orchestrator) recall(asset types.AssetID, wanted bool) (sdkmath.Int, error) {
	if !wanted {
		return sdkmath.ZeroInt(), nil
	}
	held, err := o.cfg.Adapter.ValueHeld(asset)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("jit: reading %s vault value: %w", asset, err)
	}
	if held.IsPositive() {
		// A full withdrawal zeroes the adapter's basis; remember the yield
		// portion so the sweep can restore it untaxed.
		if yield := held.Sub(o.cfg.Adapter.Principal(asset)); yield.IsPositive() {
			prev, ok := o.carried[asset]
			if !ok {
				prev = sdkmath.ZeroInt()
			}
			o.carried[asset] = prev.Add(yield)
		}
		if _, err := o.cfg.Adapter.Withdraw(asset, held); err != nil {
			return sdkmath.Int{}, fmt.Errorf("jit: recalling %s: %w", asset, err)
		}
	}
	return o.cfg.Bank.BalanceOf(o.cfg.ReserveAccount, asset), nil
}
