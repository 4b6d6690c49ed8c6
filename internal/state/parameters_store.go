// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/dfre/internal/types"
)

// SaveTypeParameters saves a new version of a pool type's parameter bundle.
func SaveTypeParameters(poolType types.PoolType, params types.PoolTypeParameters, version int, makeActive bool) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback() // Rollback if error occurred
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE pool_type_parameters SET is_active = FALSE WHERE pool_type = $1 AND is_active = TRUE;`
		_, err = tx.Exec(stmtDeactivate, string(poolType))
		if err != nil {
			return 0, fmt.Errorf("failed to deactivate existing active parameters for %s: %w", poolType, err)
		}
	}

	stmt := `
        INSERT INTO pool_type_parameters (
            version, pool_type, is_active, activated_at, created_at,
            min_fee_pips, max_fee_pips, base_max_delta_pips,
            smoothing_window, cooldown_seconds,
            ratio_tolerance, linear_slope, max_current_ratio,
            upper_side_factor, lower_side_factor
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            $9, $10,
            $11, $12, $13,
            $14, $15
        ) RETURNING params_id;`

	var paramsID int64
	currentTime := time.Now()
	err = tx.QueryRow(
		stmt,
		version, string(poolType), makeActive, currentTime, currentTime,
		params.MinFeePips, params.MaxFeePips, params.BaseMaxDeltaPips,
		params.SmoothingWindow, int64(params.CooldownPeriod/time.Second),
		params.RatioTolerance.String(), params.LinearSlope.String(), params.MaxCurrentRatio.String(),
		params.UpperSideFactor.String(), params.LowerSideFactor.String(),
	).Scan(&paramsID)

	if err != nil {
		return 0, fmt.Errorf("failed to insert pool type parameters: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("pool_type", string(poolType)).
		Int64("params_id", paramsID).
		Bool("active", makeActive).
		Msg("Saved pool type parameters")
	return paramsID, nil
}

// LoadActiveTypeParameters loads the currently active parameter bundle for a
// pool type. sql.ErrNoRows surfaces as a descriptive error; callers that
// want to fall back to defaults should use LoadAllActiveParameters.
func LoadActiveTypeParameters(poolType types.PoolType) (*types.PoolTypeParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT
            min_fee_pips, max_fee_pips, base_max_delta_pips,
            smoothing_window, cooldown_seconds,
            ratio_tolerance, linear_slope, max_current_ratio,
            upper_side_factor, lower_side_factor
        FROM pool_type_parameters
        WHERE pool_type = $1 AND is_active = TRUE
        ORDER BY activated_at DESC
        LIMIT 1;`

	row := DB.QueryRow(query, string(poolType))
	params, err := scanParameters(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no active parameters found for pool type '%s'", poolType)
		}
		return nil, fmt.Errorf("failed to scan active parameters for pool type '%s': %w", poolType, err)
	}
	log.Info().Str("pool_type", string(poolType)).Msg("Loaded active pool type parameters")
	return params, nil
}

// LoadAllActiveParameters loads every pool type's active parameter bundle.
// An empty map with a nil error means nothing has been persisted yet.
func LoadAllActiveParameters() (map[types.PoolType]types.PoolTypeParameters, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
        SELECT DISTINCT ON (pool_type)
            pool_type,
            min_fee_pips, max_fee_pips, base_max_delta_pips,
            smoothing_window, cooldown_seconds,
            ratio_tolerance, linear_slope, max_current_ratio,
            upper_side_factor, lower_side_factor
        FROM pool_type_parameters
        WHERE is_active = TRUE
        ORDER BY pool_type, activated_at DESC;`

	rows, err := DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active parameters: %w", err)
	}
	defer rows.Close()

	result := make(map[types.PoolType]types.PoolTypeParameters)
	for rows.Next() {
		var (
			poolType                                       string
			p                                              types.PoolTypeParameters
			cooldownSeconds                                int64
			tolerance, slope, maxRatio, upperSF, lowerSF   string
		)
		err = rows.Scan(
			&poolType,
			&p.MinFeePips, &p.MaxFeePips, &p.BaseMaxDeltaPips,
			&p.SmoothingWindow, &cooldownSeconds,
			&tolerance, &slope, &maxRatio,
			&upperSF, &lowerSF,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parameter row: %w", err)
		}
		p.CooldownPeriod = time.Duration(cooldownSeconds) * time.Second
		if err = assignDecs(&p, tolerance, slope, maxRatio, upperSF, lowerSF); err != nil {
			return nil, fmt.Errorf("parameters for pool type '%s': %w", poolType, err)
		}
		result[types.PoolType(poolType)] = p
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parameter rows: %w", err)
	}
	return result, nil
}

func scanParameters(row *sql.Row) (*types.PoolTypeParameters, error) {
	var (
		p                                            types.PoolTypeParameters
		cooldownSeconds                              int64
		tolerance, slope, maxRatio, upperSF, lowerSF string
	)
	err := row.Scan(
		&p.MinFeePips, &p.MaxFeePips, &p.BaseMaxDeltaPips,
		&p.SmoothingWindow, &cooldownSeconds,
		&tolerance, &slope, &maxRatio,
		&upperSF, &lowerSF,
	)
	if err != nil {
		return nil, err
	}
	p.CooldownPeriod = time.Duration(cooldownSeconds) * time.Second
	if err := assignDecs(&p, tolerance, slope, maxRatio, upperSF, lowerSF); err != nil {
		return nil, err
	}
	return &p, nil
}

func assignDecs(p *types.PoolTypeParameters, tolerance, slope, maxRatio, upperSF, lowerSF string) error {
	var err error
	if p.RatioTolerance, err = sdkmath.LegacyNewDecFromStr(tolerance); err != nil {
		return fmt.Errorf("parsing ratio_tolerance %q: %w", tolerance, err)
	}
	if p.LinearSlope, err = sdkmath.LegacyNewDecFromStr(slope); err != nil {
		return fmt.Errorf("parsing linear_slope %q: %w", slope, err)
	}
	if p.MaxCurrentRatio, err = sdkmath.LegacyNewDecFromStr(maxRatio); err != nil {
		return fmt.Errorf("parsing max_current_ratio %q: %w", maxRatio, err)
	}
	if p.UpperSideFactor, err = sdkmath.LegacyNewDecFromStr(upperSF); err != nil {
		return fmt.Errorf("parsing upper_side_factor %q: %w", upperSF, err)
	}
	if p.LowerSideFactor, err = sdkmath.LegacyNewDecFromStr(lowerSF); err != nil {
		return fmt.Errorf("parsing lower_side_factor %q: %w", lowerSF, err)
	}
	return nil
}
