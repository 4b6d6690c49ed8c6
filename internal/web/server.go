package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/gorilla/mux"

	"github.com/elys-network/dfre/internal/hook"
	"github.com/elys-network/dfre/internal/logger"
	"github.com/elys-network/dfre/internal/state"
	"github.com/elys-network/dfre/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes the engine's read surface and the fee poke endpoint.
type WebServer struct {
	router *mux.Router
	hook   *hook.Hook
	port   string
}

// NewWebServer creates a new web server instance
func NewWebServer(h *hook.Hook, port string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		hook:   h,
		port:   port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/pools", ws.handleGetPools).Methods("GET")
	api.HandleFunc("/pools/{id}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{id}/fee", ws.handleGetFeeState).Methods("GET")
	api.HandleFunc("/pools/{id}/events", ws.handleGetFeeEvents).Methods("GET")
	api.HandleFunc("/pools/{id}/snapshots", ws.handleGetSnapshots).Methods("GET")
	api.HandleFunc("/pools/{id}/poke", ws.handlePokeFee).Methods("POST")
	api.HandleFunc("/parameters/{type}", ws.handleGetParameters).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if err := state.TestDBConnection(); err != nil {
		dbHealthy = false
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
		},
		"component": map[string]interface{}{
			"name":    "dfre-dynamic-fee-engine",
			"version": "1.0.0",
		},
		"engine_status": map[string]interface{}{
			"database_healthy": dbHealthy,
			"managed_pools":    len(ws.hook.PoolIDs()),
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetPools returns a snapshot of every managed pool
func (ws *WebServer) handleGetPools(w http.ResponseWriter, r *http.Request) {
	ids := ws.hook.PoolIDs()
	snapshots := make([]*hook.PoolSnapshot, 0, len(ids))
	for _, id := range ids {
		snapshot, err := ws.hook.Snapshot(id)
		if err != nil {
			webLogger.Error().Err(err).Uint64("pool_id", uint64(id)).Msg("Failed to snapshot pool")
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to snapshot pools")
			return
		}
		snapshots = append(snapshots, snapshot)
	}

	response := map[string]interface{}{
		"pools": snapshots,
		"count": len(snapshots),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPool returns one pool's snapshot
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	snapshot, err := ws.hook.Snapshot(poolID)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, snapshot)
}

// handleGetFeeState returns one pool's fee state
func (ws *WebServer) handleGetFeeState(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	feeState, err := ws.hook.FeeState(poolID)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not found")
		return
	}
	if feeState == nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Pool not activated")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, feeState)
}

// handleGetFeeEvents returns a pool's recent fee update events
func (ws *WebServer) handleGetFeeEvents(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}
	limit := ws.limitFromRequest(r)

	events, err := state.LoadRecentFeeUpdates(poolID, limit)
	if err != nil {
		webLogger.Error().Err(err).Uint64("pool_id", uint64(poolID)).Msg("Failed to load fee events")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve fee events")
		return
	}

	response := map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetSnapshots returns a pool's recent reserve snapshots
func (ws *WebServer) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}
	limit := ws.limitFromRequest(r)

	snapshots, err := state.LoadRecentReserveSnapshots(poolID, limit)
	if err != nil {
		webLogger.Error().Err(err).Uint64("pool_id", uint64(poolID)).Msg("Failed to load snapshots")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve snapshots")
		return
	}

	response := map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// pokeRequest is the body of POST /api/pools/{id}/poke.
type pokeRequest struct {
	Caller       string `json:"caller"`
	CurrentRatio string `json:"current_ratio"`
}

// handlePokeFee feeds one observed activity ratio into the fee controller.
// The caller field is taken from the request body unauthenticated, which is
// only acceptable for the simulated deployment this server fronts; a
// production surface must derive the principal from an auth layer instead.
func (ws *WebServer) handlePokeFee(w http.ResponseWriter, r *http.Request) {
	poolID, ok := ws.poolIDFromRequest(w, r)
	if !ok {
		return
	}

	var req pokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ratio, err := sdkmath.LegacyNewDecFromStr(req.CurrentRatio)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid current_ratio")
		return
	}

	update, err := ws.hook.PokeFee(req.Caller, poolID, ratio)
	if err != nil {
		webLogger.Warn().Err(err).Uint64("pool_id", uint64(poolID)).Msg("Fee poke rejected")
		ws.writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, update)
}

// handleGetParameters returns a pool type's parameter bundle
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	poolType := types.PoolType(vars["type"])

	params, err := ws.hook.Parameters(poolType)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Unknown pool type")
		return
	}

	response := map[string]interface{}{
		"pool_type":  poolType,
		"parameters": params,
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// poolIDFromRequest parses the {id} path variable
func (ws *WebServer) poolIDFromRequest(w http.ResponseWriter, r *http.Request) (types.PoolID, bool) {
	vars := mux.Vars(r)
	id, err := strconv.ParseUint(vars["id"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid pool ID")
		return 0, false
	}
	return types.PoolID(id), true
}

// limitFromRequest parses an optional ?limit= query parameter
func (ws *WebServer) limitFromRequest(r *http.Request) int {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}
	return limit
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
