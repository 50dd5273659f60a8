package valuation

import (
	"errors"
	"fmt"

	"contagion-lab/internal/network"
)

// Configuration errors, raised before the first solver round.
var (
	ErrUnknownMethod      = errors.New("unknown valuation method")
	ErrRecoveryRateRange  = errors.New("recovery rate outside [0, 1]")
	ErrNegativeVolatility = errors.New("negative volatility")
)

// Config selects a valuation method and its parameters. Method-specific
// parameters attached per bank (volatility, recovery rate) live on
// network.Params; Config carries run-level overrides.
type Config struct {
	// Method is one of the MethodNames identifiers.
	Method string

	// RecoveryRate, when set, overrides every bank's recovery rate for the
	// methods that use one (black_cox, black_cox_gbm, merton_gbm).
	RecoveryRate *float64
}

// FromConfig builds a Method for the given system, validating all
// parameters eagerly. Per-bank state needed by a method (DebtRank
// baselines, recovery rates) is captured from the system's current,
// pre-shock state.
func FromConfig(cfg Config, sys *network.System) (Method, error) {
	switch cfg.Method {
	case MethodEisenbergNoe:
		return eisenbergNoeMethod{}, nil
	case MethodFurfine:
		return furfineMethod{}, nil
	case MethodLinearDebtRank:
		return newDebtRank(sys), nil
	case MethodBlackCox:
		rates, err := recoveryRates(cfg, sys)
		if err != nil {
			return nil, err
		}
		return &blackCoxMethod{rates: rates}, nil
	case MethodBlackCoxGBM:
		rates, err := recoveryRates(cfg, sys)
		if err != nil {
			return nil, err
		}
		if err := checkVolatilities(sys); err != nil {
			return nil, err
		}
		return &blackCoxGBMMethod{rates: rates}, nil
	case MethodMertonGBM:
		rates, err := recoveryRates(cfg, sys)
		if err != nil {
			return nil, err
		}
		if err := checkVolatilities(sys); err != nil {
			return nil, err
		}
		return &mertonGBMMethod{rates: rates}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, cfg.Method)
	}
}

func newDebtRank(sys *network.System) *debtRankMethod {
	return &debtRankMethod{
		baseline: sys.Equities(),
		distress: make([]float64, sys.Size()),
	}
}

// recoveryRates resolves the effective per-bank recovery rate: the uniform
// override when set, the bank's own parameter otherwise.
func recoveryRates(cfg Config, sys *network.System) ([]float64, error) {
	rates := make([]float64, sys.Size())
	for i, b := range sys.Banks() {
		rate := b.Params.RecoveryRate
		if cfg.RecoveryRate != nil {
			rate = *cfg.RecoveryRate
		}
		if rate < 0 || rate > 1 {
			return nil, fmt.Errorf("%w: bank %q has rate %v", ErrRecoveryRateRange, b.Name, rate)
		}
		rates[i] = rate
	}
	return rates, nil
}

func checkVolatilities(sys *network.System) error {
	for _, b := range sys.Banks() {
		if b.Params.Sigma < 0 {
			return fmt.Errorf("%w: bank %q has sigma %v", ErrNegativeVolatility, b.Name, b.Params.Sigma)
		}
		if b.Params.SigmaEquity < 0 {
			return fmt.Errorf("%w: bank %q has equity sigma %v", ErrNegativeVolatility, b.Name, b.Params.SigmaEquity)
		}
	}
	return nil
}
