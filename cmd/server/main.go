// Package main provides the contagion service: an HTTP API that accepts a
// bank network, runs a shocked valuation to its fixed point, persists run
// records and equity history, and streams committed rounds over websocket.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"contagion-lab/internal/network"
	"contagion-lab/internal/observability"
	"contagion-lab/internal/parser"
	"contagion-lab/internal/simulation"
	"contagion-lab/internal/solver"
	"contagion-lab/internal/storage"
	chstore "contagion-lab/internal/storage/clickhouse"
	"contagion-lab/internal/storage/memory"
	"contagion-lab/internal/storage/migrations"
	pgstore "contagion-lab/internal/storage/postgres"
	"contagion-lab/internal/stream"
	"contagion-lab/internal/valuation"
)

// Server holds all components of the service.
type Server struct {
	runStore     storage.RunStore
	historyStore storage.HistoryStore
	runner       *simulation.Runner
	hub          *stream.Hub
	metrics      *observability.Metrics
	logger       *log.Logger
	started      time.Time
}

func main() {
	// Load .env file if present; real env vars win.
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	addr := flag.String("addr", envOr("CONTAGION_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	migrate := flag.Bool("migrate", false, "Apply schema migrations on startup")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics("")

	// Create stores
	runStore, historyStore, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, *migrate, metrics)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	hub := stream.NewHub(nil)
	defer hub.Close()

	server := &Server{
		runStore:     runStore,
		historyStore: historyStore,
		runner: simulation.NewRunner(simulation.RunnerOptions{
			RunStore:     runStore,
			HistoryStore: historyStore,
			Metrics:      metrics,
			Rounds:       hub,
		}),
		hub:     hub,
		metrics: metrics,
		logger:  logger,
		started: time.Now(),
	}

	go server.trackUptime(ctx)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.routes(),
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
	}()

	logger.Printf("Listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("HTTP server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores wires the run and history stores, memory-backed or
// PostgreSQL + ClickHouse.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory, migrate bool, metrics *observability.Metrics) (storage.RunStore, storage.HistoryStore, func(), error) {
	if useMemory {
		return memory.NewRunStore(), memory.NewHistoryStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	if migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			pool.Close()
			return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
	}

	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return pgstore.NewRunStore(pool).WithMetrics(metrics),
		chstore.NewHistoryStore(conn).WithMetrics(metrics),
		cleanup, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("POST /api/v1/runs", s.handleCreateRun)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/history", s.handleGetHistory)
	mux.HandleFunc("GET /api/v1/networks/{id}/runs", s.handleListRuns)
	mux.HandleFunc("GET /ws", s.handleWS)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// runRequest is the POST /api/v1/runs payload. Network carries the same
// schema the JSON parser accepts; Shock maps bank names to deltas.
type runRequest struct {
	Network         json.RawMessage    `json:"network"`
	Method          string             `json:"method"`
	RecoveryRate    *float64           `json:"recovery_rate,omitempty"`
	ShockTarget     string             `json:"shock_target,omitempty"`
	Shock           map[string]float64 `json:"shock,omitempty"`
	Tolerance       float64            `json:"tolerance,omitempty"`
	MaxRounds       int                `json:"max_rounds,omitempty"`
	InnerTolerance  float64            `json:"inner_tolerance,omitempty"`
	InnerIterations int                `json:"inner_iterations,omitempty"`
	SolveAssets     bool               `json:"solve_assets,omitempty"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	if len(req.Network) == 0 {
		writeError(w, http.StatusBadRequest, "network is required")
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, "method is required")
		return
	}

	sys, err := parser.ParseJSON(bytes.NewReader(req.Network))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parse network: %v", err))
		return
	}

	shock, err := buildShock(sys, req.Shock, req.ShockTarget)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := solver.DefaultConfig()
	if req.Tolerance > 0 {
		cfg.Tolerance = req.Tolerance
	}
	if req.MaxRounds > 0 {
		cfg.MaxRounds = req.MaxRounds
	}
	if req.InnerTolerance > 0 {
		cfg.Inner.Tolerance = req.InnerTolerance
	}
	if req.InnerIterations > 0 {
		cfg.Inner.MaxIterations = req.InnerIterations
	}
	cfg.SolveAssets = req.SolveAssets

	report, err := s.runner.Run(r.Context(), simulation.RunInput{
		System: sys,
		Valuation: valuation.Config{
			Method:       req.Method,
			RecoveryRate: req.RecoveryRate,
		},
		Shock:  shock,
		Solver: cfg,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if isClientError(err) {
			status = http.StatusBadRequest
		} else if errors.Is(err, storage.ErrDuplicateKey) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}

	s.logger.Printf("Run %s: method=%s status=%s rounds=%d",
		report.Run.RunID[:12], report.Run.Method, report.Run.Status, report.Run.Rounds)

	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	record, err := s.runStore.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	points, err := s.historyStore.GetByRunID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(points) == 0 {
		writeError(w, http.StatusNotFound, "no history for run")
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	records, err := s.runStore.ListByNetwork(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.metrics.StreamSubscribers.Inc()
	defer s.metrics.StreamSubscribers.Dec()
	s.hub.ServeHTTP(w, r)
}

// trackUptime bumps the uptime counter once a second.
func (s *Server) trackUptime(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.metrics.UptimeSeconds.Inc()
		}
	}
}

// buildShock maps per-name deltas onto the system order.
func buildShock(sys *network.System, deltas map[string]float64, target string) (solver.Shock, error) {
	shock := solver.ZeroShock(sys.Size())
	if target != "" {
		shock.Target = solver.ShockTarget(target)
	}
	for name, delta := range deltas {
		bank, ok := sys.ByName(name)
		if !ok {
			return shock, fmt.Errorf("shock references unknown bank %q", name)
		}
		shock.Deltas[bank.Index()] = delta
	}
	return shock, nil
}

// isClientError reports whether the failure is a bad request rather than a
// server fault.
func isClientError(err error) bool {
	var validation *network.ValidationError
	return errors.As(err, &validation) ||
		errors.Is(err, valuation.ErrUnknownMethod) ||
		errors.Is(err, valuation.ErrRecoveryRateRange) ||
		errors.Is(err, valuation.ErrNegativeVolatility) ||
		errors.Is(err, solver.ErrShockLength) ||
		errors.Is(err, solver.ErrUnknownShockTarget) ||
		errors.Is(err, solver.ErrBadTolerance) ||
		errors.Is(err, solver.ErrBadRoundCap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
