// Package simulation orchestrates contagion runs: valuation setup, shock
// and solve, persistence, and reporting.
package simulation

import (
	"context"
	"time"

	"contagion-lab/internal/idhash"
	"contagion-lab/internal/network"
	"contagion-lab/internal/observability"
	"contagion-lab/internal/reporting"
	"contagion-lab/internal/solver"
	"contagion-lab/internal/storage"
	"contagion-lab/internal/stream"
	"contagion-lab/internal/valuation"
)

// RoundStream receives per-round updates tagged with run identity. Satisfied
// by *stream.Hub.
type RoundStream interface {
	Broadcast(u stream.RoundUpdate)
}

// Runner executes contagion runs over a bank network.
type Runner struct {
	runStore     storage.RunStore
	historyStore storage.HistoryStore
	metrics      *observability.Metrics
	rounds       RoundStream
	now          func() time.Time
}

// RunnerOptions contains configuration for creating a Runner. All fields
// are optional: a zero-value Runner solves without persisting, publishing,
// or recording metrics.
type RunnerOptions struct {
	RunStore     storage.RunStore
	HistoryStore storage.HistoryStore
	Metrics      *observability.Metrics
	Rounds       RoundStream
	Now          func() time.Time
}

// NewRunner creates a run orchestrator.
func NewRunner(opts RunnerOptions) *Runner {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		runStore:     opts.RunStore,
		historyStore: opts.HistoryStore,
		metrics:      opts.Metrics,
		rounds:       opts.Rounds,
		now:          now,
	}
}

// RunInput describes one run: the system to solve, the valuation method,
// the shock, and the solver tuning.
type RunInput struct {
	System    *network.System
	Valuation valuation.Config
	Shock     solver.Shock
	Solver    solver.Config
}

// Run executes one contagion run, mutating the input system in place.
// Steps:
//  1. Build the valuation method via valuation.FromConfig
//  2. Fingerprint the pre-shock system and derive the run ID
//  3. Shock and solve, streaming committed rounds if a stream is attached
//  4. Persist the run record and equity history
//  5. Assemble the report from the terminal state
func (r *Runner) Run(ctx context.Context, in RunInput) (*reporting.RunReport, error) {
	started := r.now()

	// 1. Build the valuation method; captures per-bank baselines from the
	// pre-shock state.
	method, err := valuation.FromConfig(in.Valuation, in.System)
	if err != nil {
		r.countError("config")
		return nil, err
	}

	// 2. Identity: the network fingerprint covers the pre-shock balance
	// sheets and exposures, the run ID adds method and shock parameters.
	networkID := idhash.ComputeNetworkID(in.System)
	runID := idhash.ComputeRunID(networkID, in.Valuation.Method,
		string(in.Shock.Target), in.Solver.SolveAssets, started.UnixMilli())

	bankNames := make([]string, in.System.Size())
	for i, b := range in.System.Banks() {
		bankNames[i] = b.Name
	}

	// 3. Solve. The stream observer is chained in front of any observer the
	// caller configured.
	cfg := in.Solver
	if r.rounds != nil {
		cfg.Observer = &streamObserver{
			runner: r,
			runID:  runID,
			banks:  bankNames,
			next:   cfg.Observer,
		}
	}

	res, err := solver.ShockAndSolve(in.System, in.Shock, method, cfg)
	if err != nil {
		r.countError("solve")
		return nil, err
	}
	r.observeRun(in.Valuation.Method, res, in.System, started)

	if r.rounds != nil {
		r.rounds.Broadcast(stream.RoundUpdate{
			RunID:    runID,
			Round:    res.Rounds,
			Equities: res.History.Latest(),
			Final:    true,
			Status:   string(res.Status),
		})
	}

	record := buildRecord(runID, networkID, in, res, started, r.now())

	// 4. Persist, when stores are attached.
	if r.runStore != nil {
		if err := r.runStore.Insert(ctx, record); err != nil {
			r.countError("persist")
			return nil, err
		}
	}
	if r.historyStore != nil {
		points := historyPoints(runID, in.System, res.History)
		if err := r.historyStore.InsertBulk(ctx, points); err != nil {
			r.countError("persist")
			return nil, err
		}
	}

	// 5. Report from the terminal state.
	return reporting.NewRunReport(*record, in.System, res.History), nil
}

// streamObserver broadcasts each committed round and forwards to the next
// observer in the chain. Round 0 carries the bank order.
type streamObserver struct {
	runner *Runner
	runID  string
	banks  []string
	next   solver.RoundObserver
}

func (o *streamObserver) OnRound(round int, equities []float64) {
	u := stream.RoundUpdate{
		RunID:    o.runID,
		Round:    round,
		Equities: append([]float64(nil), equities...),
	}
	if round == 0 {
		u.Banks = o.banks
	}
	o.runner.rounds.Broadcast(u)
	if o.runner.metrics != nil {
		o.runner.metrics.RoundsStreamed.Inc()
	}
	if o.next != nil {
		o.next.OnRound(round, equities)
	}
}
