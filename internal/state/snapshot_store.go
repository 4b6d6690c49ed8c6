// ./internal/state/snapshot_store.go
package state

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/dfre/internal/hook"
	"github.com/elys-network/dfre/internal/types"
)

// ReserveSnapshot is one persisted point-in-time view of a pool's reserve.
type ReserveSnapshot struct {
	Timestamp     time.Time    `json:"timestamp"`
	PoolID        types.PoolID `json:"pool_id"`
	PoolStatus    string       `json:"pool_status"`
	CurrentPrice  string       `json:"current_price"`
	TotalShares   string       `json:"total_shares"`
	ReserveValue0 string       `json:"reserve_value0"`
	ReserveValue1 string       `json:"reserve_value1"`
	YieldTaxPips  int64        `json:"yield_tax_pips"`
}

// SaveReserveSnapshot persists one pool snapshot.
func SaveReserveSnapshot(snapshot *hook.PoolSnapshot) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if snapshot == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	stmt := `
        INSERT INTO reserve_snapshots (
            pool_id, pool_status, current_price,
            total_shares, reserve_value0, reserve_value1, yield_tax_pips
        ) VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := DB.Exec(stmt,
		int64(snapshot.PoolID), snapshot.Status, snapshot.CurrentPrice.String(),
		snapshot.TotalShares.String(), snapshot.ReserveValue0.String(),
		snapshot.ReserveValue1.String(), snapshot.YieldTaxPips,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reserve snapshot: %w", err)
	}

	log.Debug().
		Uint64("pool_id", uint64(snapshot.PoolID)).
		Str("reserve_value0", snapshot.ReserveValue0.String()).
		Str("reserve_value1", snapshot.ReserveValue1.String()).
		Msg("Saved reserve snapshot")
	return nil
}

// LoadRecentReserveSnapshots returns the pool's most recent snapshots,
// newest first.
func LoadRecentReserveSnapshots(poolID types.PoolID, limit int) ([]ReserveSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
        SELECT snapshot_timestamp, pool_id, pool_status, current_price,
               total_shares, reserve_value0, reserve_value1, yield_tax_pips
        FROM reserve_snapshots
        WHERE pool_id = $1
        ORDER BY snapshot_timestamp DESC
        LIMIT $2;`

	rows, err := DB.Query(query, int64(poolID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reserve snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []ReserveSnapshot
	for rows.Next() {
		var (
			s  ReserveSnapshot
			id int64
		)
		err = rows.Scan(&s.Timestamp, &id, &s.PoolStatus, &s.CurrentPrice,
			&s.TotalShares, &s.ReserveValue0, &s.ReserveValue1, &s.YieldTaxPips)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reserve snapshot: %w", err)
		}
		s.PoolID = types.PoolID(id)
		snapshots = append(snapshots, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reserve snapshots: %w", err)
	}
	return snapshots, nil
}
