package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"contagion-lab/internal/network"
	"contagion-lab/internal/parser"
	"contagion-lab/internal/reporting"
	"contagion-lab/internal/simulation"
	"contagion-lab/internal/solver"
	"contagion-lab/internal/storage"
	chstore "contagion-lab/internal/storage/clickhouse"
	"contagion-lab/internal/storage/memory"
	"contagion-lab/internal/storage/migrations"
	pgstore "contagion-lab/internal/storage/postgres"
	"contagion-lab/internal/valuation"
)

func main() {
	// Input
	networkJSON := flag.String("network-json", "", "Network JSON file (alternative to CSV inputs)")
	balanceSheets := flag.String("balance-sheets", "", "Balance sheets CSV file")
	exposures := flag.String("exposures", "", "Exposures CSV file (list or dense matrix)")
	delimiter := flag.String("delimiter", ",", "CSV field delimiter")

	// Valuation
	method := flag.String("method", "", "Valuation method: "+strings.Join(valuation.MethodNames(), ", ")+" (required)")
	recoveryRate := flag.Float64("recovery-rate", 0, "Uniform recovery rate override in [0,1]")

	// Shock
	shockSpec := flag.String("shock", "", "Shock deltas as name=delta pairs, e.g. 'alpha=-30,beta=-10'")
	shockTarget := flag.String("shock-target", "equity", "Shock target: equity, extasset")

	// Solver tuning
	tolerance := flag.Float64("tolerance", 1e-3, "Round convergence tolerance")
	maxRounds := flag.Int("max-rounds", 100, "Contagion round cap")
	innerTolerance := flag.Float64("inner-tolerance", 1e-3, "Nested fixed-point tolerance")
	innerIterations := flag.Int("inner-iterations", 100, "Nested fixed-point iteration cap")
	solveAssets := flag.Bool("solve-assets", false, "Calibrate external assets and volatility pre-shock")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	migrate := flag.Bool("migrate", false, "Apply schema migrations before the run")
	persistResult := flag.Bool("persist", false, "Persist run record and equity history")

	// Output
	format := flag.String("format", "text", "Output format: text, json, csv, markdown")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[solve] ", log.LstdFlags)

	if *method == "" {
		logger.Fatal("--method is required")
	}

	var recoveryOverride *float64
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "recovery-rate" {
			recoveryOverride = recoveryRate
		}
	})

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Load the system
	sys, err := loadSystem(*networkJSON, *balanceSheets, *exposures, *delimiter)
	if err != nil {
		logger.Fatalf("load network: %v", err)
	}
	if err := sys.CheckConsistency(); err != nil {
		logger.Fatalf("network inconsistent: %v", err)
	}

	// Build the shock
	shock, err := buildShock(sys, *shockSpec, *shockTarget)
	if err != nil {
		logger.Fatalf("build shock: %v", err)
	}

	// Create stores when persisting
	var runStore storage.RunStore
	var historyStore storage.HistoryStore
	if *persistResult {
		if *useMemory {
			runStore = memory.NewRunStore()
			historyStore = memory.NewHistoryStore()
		} else {
			if *postgresDSN == "" {
				logger.Fatal("--postgres-dsn is required when persisting without --use-memory")
			}
			if *clickhouseDSN == "" {
				logger.Fatal("--clickhouse-dsn is required when persisting without --use-memory")
			}

			pool, err := pgstore.NewPool(ctx, *postgresDSN)
			if err != nil {
				logger.Fatalf("connect to postgres: %v", err)
			}
			defer pool.Close()

			conn, err := chstore.NewConn(ctx, *clickhouseDSN)
			if err != nil {
				logger.Fatalf("connect to clickhouse: %v", err)
			}
			defer conn.Close()

			if *migrate {
				if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
					logger.Fatalf("postgres migrations: %v", err)
				}
				if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
					logger.Fatalf("clickhouse migrations: %v", err)
				}
			}

			runStore = pgstore.NewRunStore(pool)
			historyStore = chstore.NewHistoryStore(conn)
		}
	}

	runner := simulation.NewRunner(simulation.RunnerOptions{
		RunStore:     runStore,
		HistoryStore: historyStore,
	})

	logger.Printf("Running contagion: banks=%d method=%s solve-assets=%t",
		sys.Size(), *method, *solveAssets)

	report, err := runner.Run(ctx, simulation.RunInput{
		System: sys,
		Valuation: valuation.Config{
			Method:       *method,
			RecoveryRate: recoveryOverride,
		},
		Shock: shock,
		Solver: solver.Config{
			Tolerance: *tolerance,
			MaxRounds: *maxRounds,
			Inner: solver.InnerConfig{
				Tolerance:     *innerTolerance,
				MaxIterations: *innerIterations,
			},
			SolveAssets: *solveAssets,
		},
	})
	if err != nil {
		logger.Fatalf("run failed: %v", err)
	}

	switch *format {
	case "json":
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	case "csv":
		fmt.Print(reporting.RenderPaymentsCSV(report))
		fmt.Println()
		fmt.Print(reporting.RenderHistoryCSV(report))
	case "markdown":
		fmt.Print(reporting.RenderMarkdown(report))
	case "text":
		printReport(report)
	default:
		logger.Fatalf("Invalid format: %s. Must be text, json, csv, or markdown", *format)
	}
}

// loadSystem reads the network from the JSON file or the CSV pair.
func loadSystem(networkJSON, balanceSheets, exposures, delimiter string) (*network.System, error) {
	if networkJSON != "" {
		f, err := os.Open(networkJSON)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return parser.ParseJSON(f)
	}

	if balanceSheets == "" || exposures == "" {
		return nil, fmt.Errorf("either --network-json or both --balance-sheets and --exposures are required")
	}
	if len(delimiter) != 1 {
		return nil, fmt.Errorf("delimiter must be a single character, got %q", delimiter)
	}

	bsFile, err := os.Open(balanceSheets)
	if err != nil {
		return nil, err
	}
	defer bsFile.Close()

	expFile, err := os.Open(exposures)
	if err != nil {
		return nil, err
	}
	defer expFile.Close()

	sys, _, err := parser.ParseCSV(bsFile, expFile, rune(delimiter[0]))
	return sys, err
}

// buildShock parses name=delta pairs into a full shock vector; unnamed banks
// get a zero delta.
func buildShock(sys *network.System, spec, target string) (solver.Shock, error) {
	shock := solver.ZeroShock(sys.Size())
	shock.Target = solver.ShockTarget(target)

	if spec == "" {
		return shock, nil
	}

	for _, pair := range strings.Split(spec, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return shock, fmt.Errorf("malformed shock entry %q, want name=delta", pair)
		}
		bank, found := sys.ByName(name)
		if !found {
			return shock, fmt.Errorf("shock references unknown bank %q", name)
		}
		delta, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return shock, fmt.Errorf("shock delta for %q: %w", name, err)
		}
		shock.Deltas[bank.Index()] = delta
	}
	return shock, nil
}

// printReport outputs a human-readable run summary.
func printReport(r *reporting.RunReport) {
	fmt.Println()
	fmt.Println("=== Contagion Run ===")
	fmt.Printf("Run ID:           %s\n", r.Run.RunID)
	fmt.Printf("Network ID:       %s\n", r.Run.NetworkID)
	fmt.Printf("Method:           %s\n", r.Run.Method)
	fmt.Printf("Status:           %s\n", r.Run.Status)
	fmt.Printf("Rounds:           %d\n", r.Run.Rounds)
	fmt.Printf("Inner iterations: %d\n", r.Run.InnerIterations)
	fmt.Println()

	fmt.Println("Terminal state:")
	for _, p := range r.Payments {
		marker := ""
		if p.Equity < 0 {
			marker = "  DEFAULT"
		}
		fmt.Printf("  %-16s equity=%12.4f payment=%12.4f%s\n", p.BankName, p.Equity, p.Payment, marker)
	}

	if len(r.Defaulted) > 0 {
		fmt.Println()
		fmt.Printf("Defaulted banks:  %s\n", strings.Join(r.Defaulted, ", "))
	}
}
