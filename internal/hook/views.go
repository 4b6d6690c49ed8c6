package hook

import (
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dfre/internal/jit"
	"github.com/elys-network/dfre/internal/types"
)

// PoolSnapshot is a read-only view of one managed pool.
type PoolSnapshot struct {
	PoolID        types.PoolID        `json:"pool_id"`
	PoolType      types.PoolType      `json:"pool_type"`
	Status        string              `json:"status"`
	Asset0        types.AssetID       `json:"asset0"`
	Asset1        types.AssetID       `json:"asset1"`
	FeeState      *types.PoolFeeState `json:"fee_state,omitempty"`
	TickRange     types.TickRange     `json:"tick_range"`
	CurrentPrice  sdkmath.LegacyDec   `json:"current_price"`
	TotalShares   sdkmath.Int         `json:"total_shares"`
	ReserveValue0 sdkmath.Int         `json:"reserve_value0"`
	ReserveValue1 sdkmath.Int         `json:"reserve_value1"`
	YieldTaxPips  int64               `json:"yield_tax_pips"`
	Deployment    *jit.Deployment     `json:"deployment,omitempty"`
}

// PoolIDs returns the managed pool identifiers in ascending order.
func (h *Hook) PoolIDs() []types.PoolID {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]types.PoolID, 0, len(h.pools))
	for id := range h.pools {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot assembles the full read-only view of one pool.
func (h *Hook) Snapshot(poolID types.PoolID) (*PoolSnapshot, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.pool(poolID)
	if err != nil {
		return nil, err
	}

	price, err := p.pool.CurrentPrice()
	if err != nil {
		return nil, fmt.Errorf("reading pool price: %w", err)
	}
	value0, err := p.shares.ReserveValue(p.asset0)
	if err != nil {
		return nil, err
	}
	value1, err := p.shares.ReserveValue(p.asset1)
	if err != nil {
		return nil, err
	}

	snapshot := &PoolSnapshot{
		PoolID:        p.id,
		PoolType:      p.poolType,
		Status:        p.status.String(),
		Asset0:        p.asset0,
		Asset1:        p.asset1,
		TickRange:     p.tickRange,
		CurrentPrice:  price,
		TotalShares:   p.shares.TotalShares(),
		ReserveValue0: value0,
		ReserveValue1: value1,
		YieldTaxPips:  p.shares.YieldTaxPips(),
		Deployment:    p.orchestrator.Active(),
	}
	if p.feeState != nil {
		copied := *p.feeState
		snapshot.FeeState = &copied
	}
	return snapshot, nil
}

// Parameters returns the shared parameters of one pool type.
func (h *Hook) Parameters(poolType types.PoolType) (types.PoolTypeParameters, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	params, ok := h.params[poolType]
	if !ok {
		return types.PoolTypeParameters{}, fmt.Errorf("unknown pool type %q: %w", poolType, types.ErrInvalidParameter)
	}
	return params, nil
}

// SharesOf returns holder's share balance in one pool.
func (h *Hook) SharesOf(poolID types.PoolID, holder string) (sdkmath.Int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.pool(poolID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return p.shares.SharesOf(holder), nil
}

// FeeState returns a copy of the pool's current fee state, or nil before
// activation.
func (h *Hook) FeeState(poolID types.PoolID) (*types.PoolFeeState, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, err := h.pool(poolID)
	if err != nil {
		return nil, err
	}
	if p.feeState == nil {
		return nil, nil
	}
	copied := *p.feeState
	return &copied, nil
}
