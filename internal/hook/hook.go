// Package hook is the engine's single entry point. It owns pool lifecycle,
// authorization, and the pause flag, and routes every external call to the
// fee controller, share ledger, yield source adapter, or JIT orchestrator of
// the addressed pool. Calls are serialized with one mutex per hook; each call
// either fully completes or leaves no state behind.
package hook

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/dfre/internal/amm"
	"github.com/elys-network/dfre/internal/bank"
	"github.com/elys-network/dfre/internal/config"
	"github.com/elys-network/dfre/internal/feecontroller"
	"github.com/elys-network/dfre/internal/jit"
	"github.com/elys-network/dfre/internal/ledger"
	"github.com/elys-network/dfre/internal/logger"
	"github.com/elys-network/dfre/internal/types"
	"github.com/elys-network/dfre/internal/yieldsource"
)

// FeeEventSink receives every successful fee update for persistence. A sink
// failure is logged and does not fail the poke.
type FeeEventSink interface {
	RecordFeeUpdate(update *types.FeeUpdate) error
}

// managedPool bundles one pool's components and lifecycle state.
type managedPool struct {
	id       types.PoolID
	poolType types.PoolType
	status   types.PoolStatus

	asset0 types.AssetID
	asset1 types.AssetID

	feeState  *types.PoolFeeState
	tickRange types.TickRange

	pool         amm.Pool
	adapter      *yieldsource.Adapter
	shares       *ledger.Ledger
	orchestrator *jit.Orchestrator
}

// PoolConfig describes a pool to bring under management.
type PoolConfig struct {
	PoolID          types.PoolID
	PoolType        types.PoolType
	Asset0          types.AssetID
	Asset1          types.AssetID
	ReserveAccount  string
	TreasuryAccount string
	Pool            amm.Pool
}

// Hook manages a set of pools against one bank and role checker.
type Hook struct {
	mu sync.Mutex

	bank       bank.Transferor
	roles      RoleChecker
	controller *feecontroller.Controller
	params     map[types.PoolType]types.PoolTypeParameters
	pools      map[types.PoolID]*managedPool
	sink       FeeEventSink
	logger     zerolog.Logger
}

// Config wires a Hook. Sink is optional; Params defaults to the built-in
// pool type presets when nil.
type Config struct {
	Bank   bank.Transferor
	Roles  RoleChecker
	Params map[types.PoolType]types.PoolTypeParameters
	Sink   FeeEventSink
}

func New(cfg Config) (*Hook, error) {
	if cfg.Bank == nil {
		return nil, fmt.Errorf("hook: bank cannot be nil")
	}
	if cfg.Roles == nil {
		return nil, fmt.Errorf("hook: role checker cannot be nil")
	}
	params := make(map[types.PoolType]types.PoolTypeParameters)
	source := cfg.Params
	if source == nil {
		source = config.DefaultParameters
	}
	for poolType, p := range source {
		if err := config.ValidateParameters(p); err != nil {
			return nil, fmt.Errorf("hook: parameters for type %q: %w", poolType, err)
		}
		params[poolType] = p
	}
	return &Hook{
		bank:       cfg.Bank,
		roles:      cfg.Roles,
		controller: feecontroller.NewController(),
		params:     params,
		pools:      make(map[types.PoolID]*managedPool),
		sink:       cfg.Sink,
		logger:     logger.GetForComponent("hook"),
	}, nil
}

// ConfigurePool registers a pool and builds its ledger, adapter and
// orchestrator. The pool starts in the Configured state; fee state is created
// at activation.
func (h *Hook) ConfigurePool(caller string, cfg PoolConfig) error {
	if err := h.roles.Require(caller, RoleManager); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.pools[cfg.PoolID]; ok {
		return fmt.Errorf("pool %d: %w", cfg.PoolID, types.ErrPoolAlreadyConfigured)
	}
	if _, ok := h.params[cfg.PoolType]; !ok {
		return fmt.Errorf("unknown pool type %q: %w", cfg.PoolType, types.ErrInvalidParameter)
	}
	if cfg.Pool == nil {
		return fmt.Errorf("pool %d: amm pool cannot be nil: %w", cfg.PoolID, types.ErrInvalidParameter)
	}

	adapter := yieldsource.NewAdapter()
	shares, err := ledger.NewLedger(ledger.Config{
		PoolID:          cfg.PoolID,
		Asset0:          cfg.Asset0,
		Asset1:          cfg.Asset1,
		ReserveAccount:  cfg.ReserveAccount,
		TreasuryAccount: cfg.TreasuryAccount,
		Bank:            h.bank,
		Adapter:         adapter,
	})
	if err != nil {
		return fmt.Errorf("pool %d: building share ledger: %w", cfg.PoolID, err)
	}
	orchestrator, err := jit.NewOrchestrator(jit.Config{
		PoolID:         cfg.PoolID,
		Asset0:         cfg.Asset0,
		Asset1:         cfg.Asset1,
		ReserveAccount: cfg.ReserveAccount,
		Bank:           h.bank,
		Pool:           cfg.Pool,
		Adapter:        adapter,
	})
	if err != nil {
		return fmt.Errorf("pool %d: building orchestrator: %w", cfg.PoolID, err)
	}

	h.pools[cfg.PoolID] = &managedPool{
		id:           cfg.PoolID,
		poolType:     cfg.PoolType,
		status:       types.StatusConfigured,
		asset0:       cfg.Asset0,
		asset1:       cfg.Asset1,
		pool:         cfg.Pool,
		adapter:      adapter,
		shares:       shares,
		orchestrator: orchestrator,
	}
	h.logger.Info().
		Uint64("pool_id", uint64(cfg.PoolID)).
		Str("pool_type", string(cfg.PoolType)).
		Msg("Pool configured")
	return nil
}

// ActivatePool creates the pool's fee state with the caller-supplied initial
// fee and target ratio and moves it to Active.
func (h *Hook) ActivatePool(caller string, poolID types.PoolID, initialFeePips int64, initialTarget sdkmath.LegacyDec) error {
	if err := h.roles.Require(caller, RoleManager); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.pool(poolID)
	if err != nil {
		return err
	}
	if p.status != types.StatusConfigured {
		return fmt.Errorf("pool %d is %s: %w", poolID, p.status, types.ErrPoolAlreadyConfigured)
	}
	params := h.params[p.poolType]
	if initialFeePips < params.MinFeePips || initialFeePips > params.MaxFeePips {
		return fmt.Errorf("initial fee %d outside [%d, %d]: %w",
			initialFeePips, params.MinFeePips, params.MaxFeePips, types.ErrInvalidParameter)
	}
	if initialTarget.IsNil() || !initialTarget.IsPositive() || initialTarget.GT(params.MaxCurrentRatio) {
		return fmt.Errorf("initial target ratio must sit in (0, %s]: %w",
			params.MaxCurrentRatio, types.ErrInvalidParameter)
	}

	p.feeState = &types.PoolFeeState{
		CurrentFeePips: initialFeePips,
		TargetRatio:    initialTarget,
		LastDirection:  types.DirectionNone,
	}
	p.status = types.StatusActive
	h.logger.Info().
		Uint64("pool_id", uint64(poolID)).
		Int64("initial_fee_pips", initialFeePips).
		Str("initial_target", initialTarget.String()).
		Msg("Pool activated")
	return nil
}

// PausePool moves an active pool to Paused. Paused blocks every mutating
// entry point and is the gate for tick range changes.
func (h *Hook) PausePool(caller string, poolID types.PoolID) error {
	if err := h.roles.Require(caller, RoleManager); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.pool(poolID)
	if err != nil {
		return err
	}
	if p.status != types.StatusActive {
		return fmt.Errorf("pool %d is %s: %w", poolID, p.status, types.ErrPoolNotActive)
	}
	p.status = types.StatusPaused
	h.logger.Info().Uint64("pool_id", uint64(poolID)).Msg("Pool paused")
	return nil
}

// ResumePool moves a paused pool back to Active.
func (h *Hook) ResumePool(caller string, poolID types.PoolID) error {
	if err := h.roles.Require(caller, RoleManager); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.pool(poolID)
	if err != nil {
		return err
	}
	if p.status != types.StatusPaused {
		return fmt.Errorf("pool %d is %s: %w", poolID, p.status, types.ErrPoolNotPaused)
	}
	p.status = types.StatusActive
	h.logger.Info().Uint64("pool_id", uint64(poolID)).Msg("Pool resumed")
	return nil
}

// DeactivatePool retires a pool permanently. Fee state survives for reads;
// every mutating entry point is refused from then on.
func (h *Hook) DeactivatePool(caller string, poolID types.PoolID) error {
	if err := h.roles.Require(caller, RoleManager); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.pool(poolID)
	if err != nil {
		return err
	}
	if p.status != types.StatusActive && p.status != types.StatusPaused {
		return fmt.Errorf("pool %d is %s: %w", poolID, p.status, types.ErrPoolNotActive)
	}
	p.status = types.StatusDeactivated
	h.logger.Info().Uint64("pool_id", uint64(poolID)).Msg("Pool deactivated")
	return nil
}

// PokeFee feeds one observed activity ratio into the fee controller. The
// resulting event is forwarded to the sink when one is configured.
func (h *Hook) PokeFee(caller string, poolID types.PoolID, currentRatio sdkmath.LegacyDec) (*types.FeeUpdate, error) {
	if err := h.roles.Require(caller, RoleManager); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.activePool(poolID)
	if err != nil {
		return nil, err
	}
	update, err := h.controller.Update(poolID, p.feeState, h.params[p.poolType], currentRatio, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if h.sink != nil {
		if err := h.sink.RecordFeeUpdate(update); err != nil {
			h.logger.Error().Err(err).Uint64("pool_id", uint64(poolID)).Msg("Failed to persist fee update")
		}
	}
	return update, nil
}

// Deposit mints shares for holder against a pro-rata contribution of both
// assets. Refused while a JIT deployment is in flight.
func (h *Hook) Deposit(
	caller string,
	poolID types.PoolID,
	shares sdkmath.Int,
	expectedPrice sdkmath.LegacyDec,
	toleranceBps uint32,
) (sdkmath.Int, sdkmath.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.settledPool(poolID)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	observed, err := p.pool.CurrentPrice()
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("reading pool price: %w", err)
	}
	return p.shares.Deposit(caller, shares, expectedPrice, observed, toleranceBps)
}

// Withdraw burns the caller's shares and pays out their pro-rata slice of
// current reserve value. Refused while a JIT deployment is in flight.
func (h *Hook) Withdraw(
	caller string,
	poolID types.PoolID,
	shares sdkmath.Int,
	expectedPrice sdkmath.LegacyDec,
	toleranceBps uint32,
) (sdkmath.Int, sdkmath.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.settledPool(poolID)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	observed, err := p.pool.CurrentPrice()
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), fmt.Errorf("reading pool price: %w", err)
	}
	return p.shares.Withdraw(caller, shares, expectedPrice, observed, toleranceBps)
}

// PreviewDeposit quotes the per-asset amounts a deposit of shares would pull.
func (h *Hook) PreviewDeposit(poolID types.PoolID, shares sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.pool(poolID)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	return p.shares.PreviewDeposit(shares)
}

// PreviewWithdraw quotes the per-asset amounts a burn of shares would pay.
func (h *Hook) PreviewWithdraw(poolID types.PoolID, shares sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.pool(poolID)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	return p.shares.PreviewWithdraw(shares)
}

// SetPoolTypeParameters replaces the shared parameters of one pool type. A
// stored fee now outside the new bounds is reclamped by the next poke, never
// here.
func (h *Hook) SetPoolTypeParameters(caller string, poolType types.PoolType, params types.PoolTypeParameters) error {
	if err := h.roles.Require(caller, RoleOwner); err != nil {
		return err
	}
	if err := config.ValidateParameters(params); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.params[poolType] = params
	h.logger.Info().Str("pool_type", string(poolType)).Msg("Pool type parameters replaced")
	return nil
}

// SetTickRange replaces the pool's JIT deployment range. Only permitted
// while the pool is paused so a range change can never race an in-flight
// deployment.
func (h *Hook) SetTickRange(caller string, poolID types.PoolID, rng types.TickRange) error {
	if err := h.roles.Require(caller, RoleManager); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.pool(poolID)
	if err != nil {
		return err
	}
	if p.status != types.StatusPaused {
		return fmt.Errorf("pool %d is %s: %w", poolID, p.status, types.ErrPoolNotPaused)
	}
	if !rng.IsEmpty() && rng.Upper.GT(config.MaxObservableRatio) {
		return fmt.Errorf("tick range upper bound %s above %s: %w",
			rng.Upper, config.MaxObservableRatio, types.ErrInvalidParameter)
	}
	p.tickRange = rng
	h.logger.Info().
		Uint64("pool_id", uint64(poolID)).
		Str("lower", rng.Lower.String()).
		Str("upper", rng.Upper.String()).
		Msg("Tick range replaced")
	return nil
}

// SetYieldSource rebinds one asset's yield source vault. Passing a nil vault
// unbinds the asset and leaves its funds idle in the reserve.
func (h *Hook) SetYieldSource(caller string, poolID types.PoolID, asset types.AssetID, vault yieldsource.YieldSource) error {
	if err := h.roles.Require(caller, RoleManager); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.pool(poolID)
	if err != nil {
		return err
	}
	if p.status == types.StatusDeactivated {
		return fmt.Errorf("pool %d is %s: %w", poolID, p.status, types.ErrPoolNotActive)
	}
	if asset != p.asset0 && asset != p.asset1 {
		return fmt.Errorf("asset %s is not a pool asset: %w", asset, types.ErrInvalidParameter)
	}
	if err := p.adapter.Rebind(asset, vault); err != nil {
		return err
	}
	// Funds that were idle before the bind existed get swept in.
	if vault != nil {
		return p.orchestrator.Sweep()
	}
	return nil
}

// SetYieldTaxPips sets the fraction of realized yield diverted to the
// treasury at collection time.
func (h *Hook) SetYieldTaxPips(caller string, poolID types.PoolID, pips int64) error {
	if err := h.roles.Require(caller, RoleOwner); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.pool(poolID)
	if err != nil {
		return err
	}
	return p.shares.SetYieldTaxPips(pips)
}

// CollectAccumulatedTax realizes yield on both assets and transfers the
// configured tax fraction to the treasury. Assets without a bound vault
// contribute zero. Refused while a JIT deployment is in flight.
func (h *Hook) CollectAccumulatedTax(caller string, poolID types.PoolID) (sdkmath.Int, sdkmath.Int, error) {
	if err := h.roles.Require(caller, RoleManager); err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.settledPool(poolID)
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	return p.shares.CollectTax()
}

// BeforeSwap deploys JIT liquidity for the pool's configured tick range.
func (h *Hook) BeforeSwap(poolID types.PoolID) (*jit.Deployment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.activePool(poolID)
	if err != nil {
		return nil, err
	}
	return p.orchestrator.BeforeSwap(p.tickRange)
}

// AfterSwap unwinds the pool's JIT deployment and re-deposits the proceeds.
func (h *Hook) AfterSwap(poolID types.PoolID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.activePool(poolID)
	if err != nil {
		return err
	}
	return p.orchestrator.AfterSwap()
}

// swapper is the optional trade surface of a pool backend. The simulated
// pool implements it; a production backend executes swaps out of band and
// only the Before/AfterSwap callbacks run here.
type swapper interface {
	Swap(trader string, newPrice sdkmath.LegacyDec) error
}

// ExecuteSwap runs a full JIT cycle around one swap on a pool backend that
// supports in-process trades.
func (h *Hook) ExecuteSwap(poolID types.PoolID, trader string, newPrice sdkmath.LegacyDec) (*jit.Deployment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.activePool(poolID)
	if err != nil {
		return nil, err
	}
	s, ok := p.pool.(swapper)
	if !ok {
		return nil, fmt.Errorf("pool %d backend does not execute swaps in process", poolID)
	}

	deployment, err := p.orchestrator.BeforeSwap(p.tickRange)
	if err != nil {
		return nil, err
	}
	if err := s.Swap(trader, newPrice); err != nil {
		// Unwind so a failed trade never strands the deployment.
		if unwindErr := p.orchestrator.AfterSwap(); unwindErr != nil {
			h.logger.Error().Err(unwindErr).Uint64("pool_id", uint64(poolID)).Msg("Failed to unwind after swap error")
		}
		return nil, fmt.Errorf("executing swap: %w", err)
	}
	if err := p.orchestrator.AfterSwap(); err != nil {
		return nil, err
	}
	return deployment, nil
}

func (h *Hook) pool(poolID types.PoolID) (*managedPool, error) {
	p, ok := h.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("pool %d: %w", poolID, types.ErrPoolNotConfigured)
	}
	return p, nil
}

// settledPool is activePool plus a no-deployment gate. Reserve value cannot
// be read while funds sit in the pool mid-swap, so share pricing and tax
// collection wait for AfterSwap.
func (h *Hook) settledPool(poolID types.PoolID) (*managedPool, error) {
	p, err := h.activePool(poolID)
	if err != nil {
		return nil, err
	}
	if d := p.orchestrator.Active(); d != nil {
		return nil, fmt.Errorf("pool %d: deployment %s: %w", poolID, d.ID, types.ErrSwapInProgress)
	}
	return p, nil
}

// activePool resolves poolID and enforces the Active gate shared by every
// mutating entry point.
func (h *Hook) activePool(poolID types.PoolID) (*managedPool, error) {
	p, err := h.pool(poolID)
	if err != nil {
		return nil, err
	}
	switch p.status {
	case types.StatusActive:
		return p, nil
	case types.StatusPaused:
		return nil, fmt.Errorf("pool %d: %w", poolID, types.ErrPoolPaused)
	default:
		return nil, fmt.Errorf("pool %d is %s: %w", poolID, p.status, types.ErrPoolNotActive)
	}
}
