package solver

import (
	"errors"
	"fmt"

	"contagion-lab/internal/network"
)

// ShockTarget selects the balance-sheet field a shock is expressed against.
type ShockTarget string

// Shock target constants.
const (
	TargetEquity   ShockTarget = "equity"
	TargetExtAsset ShockTarget = "extasset"
)

// Shock errors.
var (
	ErrShockLength        = errors.New("shock vector length does not match bank count")
	ErrUnknownShockTarget = errors.New("unknown shock target")
)

// Shock is an exogenous perturbation applied before the first round:
// new_value = old_value + delta for every bank, in system order. Losses are
// negative deltas.
//
// Whatever the target field, the delta lands on external assets and equity
// jointly: liabilities are untouched, so shifting only one side would break
// the balance-sheet identity. The target is kept for run records.
type Shock struct {
	Target ShockTarget
	Deltas []float64
}

// ZeroShock returns a no-op shock on equity for a system of n banks.
func ZeroShock(n int) Shock {
	return Shock{Target: TargetEquity, Deltas: make([]float64, n)}
}

// validate checks the shock against the system before any state is touched.
func (s Shock) validate(sys *network.System) error {
	switch s.Target {
	case TargetEquity, TargetExtAsset:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownShockTarget, s.Target)
	}
	if len(s.Deltas) != sys.Size() {
		return fmt.Errorf("%w: %d deltas for %d banks", ErrShockLength, len(s.Deltas), sys.Size())
	}
	return nil
}

// apply mutates the system in place.
func (s Shock) apply(sys *network.System) {
	for i, b := range sys.Banks() {
		b.ExtAsset += s.Deltas[i]
		b.Equity += s.Deltas[i]
	}
}
