package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// PoolID is the ID of the pool this engine instance will manage.
	PoolID uint64

	// PoolTypeName is the fee classification of the managed pool
	// (e.g. "stable", "standard", "volatile").
	PoolTypeName string

	// Asset0 and Asset1 are the denoms of the managed pool's two assets.
	Asset0 string
	Asset1 string

	// TreasuryAccount receives collected yield tax.
	TreasuryAccount string

	// OwnerAccount holds the owner role; it may call every privileged
	// entry point.
	OwnerAccount string

	// StartPrice is the simulated pool's initial price as a decimal string.
	StartPrice string

	// InitialFeePips and InitialTargetRatio seed the pool's fee state at
	// activation. The fee must sit inside the pool type's bounds.
	InitialFeePips     uint64
	InitialTargetRatio string

	// WebPort is the port for the read-only JSON API.
	WebPort string

	// SnapshotInterval is the interval, in seconds, between persisted
	// reserve snapshots.
	SnapshotInterval uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables except WEB_PORT are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	PoolID, err = getEnvAsUint64("DFRE_POOL_ID")
	if err != nil {
		return err
	}

	PoolTypeName, err = getEnv("DFRE_POOL_TYPE")
	if err != nil {
		return err
	}

	Asset0, err = getEnv("DFRE_ASSET_0")
	if err != nil {
		return err
	}

	Asset1, err = getEnv("DFRE_ASSET_1")
	if err != nil {
		return err
	}

	TreasuryAccount, err = getEnv("DFRE_TREASURY_ACCOUNT")
	if err != nil {
		return err
	}

	OwnerAccount, err = getEnv("DFRE_OWNER_ACCOUNT")
	if err != nil {
		return err
	}

	StartPrice, err = getEnv("DFRE_START_PRICE")
	if err != nil {
		return err
	}

	InitialFeePips, err = getEnvAsUint64("DFRE_INITIAL_FEE_PIPS")
	if err != nil {
		return err
	}

	InitialTargetRatio, err = getEnv("DFRE_INITIAL_TARGET_RATIO")
	if err != nil {
		return err
	}

	SnapshotInterval, err = getEnvAsUint64("DFRE_SNAPSHOT_INTERVAL_SECONDS")
	if err != nil {
		return err
	}

	// WEB_PORT is optional; the web server falls back to its default.
	WebPort = os.Getenv("WEB_PORT")

	log.Debug().
		Uint64("PoolID", PoolID).
		Str("PoolType", PoolTypeName).
		Str("Asset0", Asset0).
		Str("Asset1", Asset1).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
