// ./internal/state/fee_event_store.go
package state

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/dfre/internal/types"
)

// EventSink persists fee updates through the global DB. It satisfies the
// hook's sink interface.
type EventSink struct{}

func (EventSink) RecordFeeUpdate(update *types.FeeUpdate) error {
	return SaveFeeUpdate(update)
}

// SaveFeeUpdate inserts one fee update event.
func SaveFeeUpdate(update *types.FeeUpdate) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if update == nil {
		return fmt.Errorf("fee update cannot be nil")
	}

	stmt := `
        INSERT INTO fee_update_events (
            event_timestamp, pool_id,
            old_fee_pips, new_fee_pips,
            old_target, current_ratio, new_target,
            direction, streak
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err := DB.Exec(stmt,
		update.Timestamp, int64(update.PoolID),
		update.OldFeePips, update.NewFeePips,
		update.OldTarget.String(), update.CurrentRatio.String(), update.NewTarget.String(),
		update.Direction.String(), update.Streak,
	)
	if err != nil {
		return fmt.Errorf("failed to insert fee update event: %w", err)
	}

	log.Debug().
		Uint64("pool_id", uint64(update.PoolID)).
		Int64("old_fee_pips", update.OldFeePips).
		Int64("new_fee_pips", update.NewFeePips).
		Msg("Saved fee update event")
	return nil
}

// LoadRecentFeeUpdates returns the pool's most recent fee update events,
// newest first.
func LoadRecentFeeUpdates(poolID types.PoolID, limit int) ([]types.FeeUpdate, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
        SELECT event_timestamp, pool_id, old_fee_pips, new_fee_pips,
               old_target, current_ratio, new_target, direction, streak
        FROM fee_update_events
        WHERE pool_id = $1
        ORDER BY event_timestamp DESC
        LIMIT $2;`

	rows, err := DB.Query(query, int64(poolID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fee update events: %w", err)
	}
	defer rows.Close()

	var updates []types.FeeUpdate
	for rows.Next() {
		var (
			u                                  types.FeeUpdate
			id                                 int64
			oldTarget, currentRatio, newTarget string
			direction                          string
		)
		err = rows.Scan(&u.Timestamp, &id, &u.OldFeePips, &u.NewFeePips,
			&oldTarget, &currentRatio, &newTarget, &direction, &u.Streak)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fee update event: %w", err)
		}
		u.PoolID = types.PoolID(id)
		if u.OldTarget, err = sdkmath.LegacyNewDecFromStr(oldTarget); err != nil {
			return nil, fmt.Errorf("parsing old_target %q: %w", oldTarget, err)
		}
		if u.CurrentRatio, err = sdkmath.LegacyNewDecFromStr(currentRatio); err != nil {
			return nil, fmt.Errorf("parsing current_ratio %q: %w", currentRatio, err)
		}
		if u.NewTarget, err = sdkmath.LegacyNewDecFromStr(newTarget); err != nil {
			return nil, fmt.Errorf("parsing new_target %q: %w", newTarget, err)
		}
		u.Direction = parseDirection(direction)
		updates = append(updates, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fee update events: %w", err)
	}
	return updates, nil
}

func parseDirection(s string) types.Direction {
	switch s {
	case "up":
		return types.DirectionUp
	case "down":
		return types.DirectionDown
	default:
		return types.DirectionNone
	}
}
