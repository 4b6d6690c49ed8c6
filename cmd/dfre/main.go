package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/dfre/internal/amm"
	"github.com/elys-network/dfre/internal/bank"
	"github.com/elys-network/dfre/internal/config"
	"github.com/elys-network/dfre/internal/hook"
	"github.com/elys-network/dfre/internal/logger"
	"github.com/elys-network/dfre/internal/state"
	"github.com/elys-network/dfre/internal/types"
	"github.com/elys-network/dfre/internal/web"
)

// main is the entry point for the dynamic fee and rehypothecation engine.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE"))
	log.Info().Msg("DFRE Core Logic Starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load pool type parameters; fall back to defaults and persist them on
	// first run.
	params, err := state.LoadAllActiveParameters()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load pool type parameters")
	}
	if len(params) == 0 {
		log.Warn().Msg("No persisted pool type parameters, saving defaults.")
		params = config.DefaultParameters
		for poolType, p := range params {
			if _, err := state.SaveTypeParameters(poolType, p, 1, true); err != nil {
				log.Fatal().Err(err).Str("pool_type", string(poolType)).Msg("Failed to save default parameters")
			}
		}
	}
	log.Info().Int("pool_types", len(params)).Msg("Pool type parameters loaded successfully.")

	// --- 2. Pool Backend Initialization (with Safety Switch) ---
	mode := os.Getenv("DFRE_MODE")
	if mode != "sim" {
		log.Fatal().Msg("DFRE_MODE is not set to 'sim'. Halting: no live AMM backend is wired into this build. Set DFRE_MODE=sim to run against the simulated pool.")
	}

	startPrice, err := sdkmath.LegacyNewDecFromStr(config.StartPrice)
	if err != nil {
		log.Fatal().Err(err).Str("start_price", config.StartPrice).Msg("Invalid start price")
	}
	initialTarget, err := sdkmath.LegacyNewDecFromStr(config.InitialTargetRatio)
	if err != nil {
		log.Fatal().Err(err).Str("initial_target", config.InitialTargetRatio).Msg("Invalid initial target ratio")
	}

	poolID := types.PoolID(config.PoolID)
	reserveAccount := fmt.Sprintf("reserve_%d", poolID)
	poolAccount := fmt.Sprintf("amm_pool_%d", poolID)

	bankLedger := bank.NewLedger()
	pool, err := amm.NewSimPool(bankLedger, poolAccount, reserveAccount,
		types.AssetID(config.Asset0), types.AssetID(config.Asset1), startPrice)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create simulated pool")
	}

	// --- 3. Hook Assembly with Dependency Injection ---
	log.Info().Msg("Assembling hook with dependency injection...")

	engine, err := hook.New(hook.Config{
		Bank:   bankLedger,
		Roles:  hook.NewStaticRoles(config.OwnerAccount),
		Params: params,
		Sink:   state.EventSink{},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create hook")
	}

	err = engine.ConfigurePool(config.OwnerAccount, hook.PoolConfig{
		PoolID:          poolID,
		PoolType:        types.PoolType(config.PoolTypeName),
		Asset0:          types.AssetID(config.Asset0),
		Asset1:          types.AssetID(config.Asset1),
		ReserveAccount:  reserveAccount,
		TreasuryAccount: config.TreasuryAccount,
		Pool:            pool,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure pool")
	}
	err = engine.ActivatePool(config.OwnerAccount, poolID, int64(config.InitialFeePips), initialTarget)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to activate pool")
	}
	log.Info().
		Uint64("pool_id", uint64(poolID)).
		Str("pool_type", config.PoolTypeName).
		Msg("Pool configured and activated")

	// --- 4. Start Web Server ---
	webServer := web.NewWebServer(engine, config.WebPort)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Snapshot Loop ---
	interval := time.Duration(config.SnapshotInterval) * time.Second
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	log.Info().Str("interval", interval.String()).Msg("Starting reserve snapshot loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			snapshot, err := engine.Snapshot(poolID)
			if err != nil {
				log.Error().Err(err).Msg("Failed to snapshot pool")
				continue
			}
			if err := state.SaveReserveSnapshot(snapshot); err != nil {
				log.Error().Err(err).Msg("Failed to persist reserve snapshot")
			}
		case sig := <-shutdown:
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			return
		}
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
