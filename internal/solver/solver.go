// Package solver computes fixed-point equity valuations of an interbank
// network under a pluggable contagion model.
//
// The solver alternates synchronous (Jacobi-style) rounds: every bank's
// interbank-asset value is recomputed from the previous round's global
// state, equities are committed together, and the new vector is appended to
// the run history. Rounds repeat until the change between consecutive
// vectors falls below tolerance or a round cap is hit. Pro-rata clearing
// additionally equilibrates recoveries to a simultaneous fixed point inside
// each round, with its own tolerance and iteration cap.
package solver

import (
	"errors"
	"fmt"
	"math"

	"contagion-lab/internal/network"
	"contagion-lab/internal/valuation"
)

// Solver errors.
var (
	ErrBadTolerance = errors.New("tolerance must be positive")
	ErrBadRoundCap  = errors.New("round cap must be positive")
	ErrNonFinite    = errors.New("valuation produced a non-finite equity")
)

// Status is the terminal state of a run.
type Status string

// Run status constants. StatusMaxRounds is a signal, not a failure: the
// accumulated history is valid and returned.
const (
	StatusConverged Status = "converged"
	StatusMaxRounds Status = "max_rounds_reached"
)

// RoundObserver receives the committed equity vector after the shock
// (round 0) and after every completed round. Observers must not retain the
// slice past the call.
type RoundObserver interface {
	OnRound(round int, equities []float64)
}

// InnerConfig bounds a nested fixed point: the per-round clearing
// equilibration and the pre-shock asset calibration.
type InnerConfig struct {
	Tolerance     float64
	MaxIterations int
}

// Config tunes one solver run. Rounds of contagion and iterations to
// convergence within a round are deliberately distinct knobs.
type Config struct {
	// Tolerance is the convergence tolerance on the round-to-round equity
	// change (symmetric relative error summed over banks).
	Tolerance float64

	// MaxRounds caps the number of contagion rounds.
	MaxRounds int

	// Inner bounds the nested fixed points.
	Inner InnerConfig

	// SolveAssets, when set, first calibrates external assets and their
	// volatility so that the unshocked fixed point reproduces the book
	// equities. External assets then vary with the calibration and must
	// stabilize jointly with their volatility.
	SolveAssets bool

	// Observer, when non-nil, is notified after the shock and after every
	// committed round.
	Observer RoundObserver
}

// DefaultConfig returns the standard tolerances: 1e-3 and 100 iterations
// for both loops.
func DefaultConfig() Config {
	return Config{
		Tolerance: 1e-3,
		MaxRounds: 100,
		Inner: InnerConfig{
			Tolerance:     1e-3,
			MaxIterations: 100,
		},
	}
}

// Result is the outcome of one run. History entry 0 is the post-shock
// state; entry r is the state after round r.
type Result struct {
	Status          Status
	Rounds          int // completed contagion rounds
	InnerIterations int // nested iterations summed over rounds and calibration
	History         *network.History
}

// ShockAndSolve applies the shock to the system and iterates the valuation
// map to a fixed point, mutating the system in place and recording one
// equity vector per round.
//
// Configuration faults surface before any state is touched. A round cap
// without convergence is not an error: the result carries StatusMaxRounds
// and the partial history. A non-finite equity aborts the run, returning
// the history accumulated so far together with ErrNonFinite.
func ShockAndSolve(sys *network.System, shock Shock, method valuation.Method, cfg Config) (*Result, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if err := shock.validate(sys); err != nil {
		return nil, err
	}

	res := &Result{History: network.NewHistory()}

	if cfg.SolveAssets {
		res.InnerIterations += calibrateAssets(sys, method, cfg.Inner)
	}

	shock.apply(sys)
	res.History.Append(sys.Equities())
	notify(cfg.Observer, 0, res.History.Latest())

	for round := 1; round <= cfg.MaxRounds; round++ {
		old := sys.Equities()

		var next []float64
		if method.Clearing() {
			var iters int
			next, iters = clearRound(sys, method, cfg.Inner)
			res.InnerIterations += iters
		} else {
			next = sweep(sys, method)
		}
		if !finite(next) {
			return res, fmt.Errorf("%w in round %d", ErrNonFinite, round)
		}

		sys.SetEquities(next)
		res.History.Append(next)
		res.Rounds = round
		notify(cfg.Observer, round, next)

		if symRelErr(old, next) <= cfg.Tolerance {
			res.Status = StatusConverged
			return res, nil
		}
	}

	res.Status = StatusMaxRounds
	return res, nil
}

func validateConfig(cfg Config) error {
	if cfg.Tolerance <= 0 {
		return fmt.Errorf("%w: round tolerance %v", ErrBadTolerance, cfg.Tolerance)
	}
	if cfg.Inner.Tolerance <= 0 {
		return fmt.Errorf("%w: inner tolerance %v", ErrBadTolerance, cfg.Inner.Tolerance)
	}
	if cfg.MaxRounds <= 0 {
		return fmt.Errorf("%w: max rounds %d", ErrBadRoundCap, cfg.MaxRounds)
	}
	if cfg.Inner.MaxIterations <= 0 {
		return fmt.Errorf("%w: inner iterations %d", ErrBadRoundCap, cfg.Inner.MaxIterations)
	}
	return nil
}

// sweep performs one synchronous valuation pass: recoveries for all debtors
// are read from the current state before any equity is written.
func sweep(sys *network.System, method valuation.Method) []float64 {
	banks := sys.Banks()
	recovered := make([]float64, len(banks))
	for j, b := range banks {
		recovered[j] = method.Recover(b)
	}

	next := make([]float64, len(banks))
	for i, b := range banks {
		ibValue := 0.0
		for _, c := range b.Claims() {
			ibValue += c.Amount * recovered[c.Debtor.Index()]
		}
		next[i] = b.ExtAsset - b.ExtLiab + ibValue - b.IBLiabTot
	}
	return next
}

// clearRound equilibrates pro-rata recoveries to a simultaneous fixed point
// within one round, starting from the previous round's state. Returns the
// equilibrated equity vector and the iterations spent.
func clearRound(sys *network.System, method valuation.Method, inner InnerConfig) ([]float64, int) {
	entry := sys.Equities()
	cur := entry

	iters := 0
	for iters < inner.MaxIterations {
		next := sweep(sys, method)
		iters++
		err := symRelErr(cur, next)
		sys.SetEquities(next)
		cur = next
		if err <= inner.Tolerance || !finite(next) {
			break
		}
	}

	// The round commits as a single update from the entry state.
	sys.SetEquities(entry)
	return cur, iters
}

// symRelErr is the convergence metric: twice the sum over banks of
// |old-new| / (|old|+|new|), with zero contribution when both are zero.
func symRelErr(old, next []float64) float64 {
	err := 0.0
	for i := range old {
		if old[i] == 0.0 && next[i] == 0.0 {
			continue
		}
		err += math.Abs(old[i]-next[i]) / (math.Abs(old[i]) + math.Abs(next[i]))
	}
	return 2 * err
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func notify(obs RoundObserver, round int, equities []float64) {
	if obs != nil {
		obs.OnRound(round, equities)
	}
}
