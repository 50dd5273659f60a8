package valuation

import (
	"contagion-lab/internal/network"
)

// Method is one member of the valuation-function family. A Method maps a
// debtor's current balance-sheet state to the fraction of its interbank
// liabilities recoverable by creditors.
//
// Recover must be pure given the bank state, with one sanctioned exception:
// Linear DebtRank carries per-run monotone distress state, created by the
// factory and owned by a single run.
type Method interface {
	// Name returns the method identifier.
	Name() string

	// Recover returns the recoverable fraction in [0,1] for the debtor's
	// current state.
	Recover(debtor *network.Bank) float64

	// Clearing reports whether recoveries must be equilibrated to a
	// simultaneous fixed point within each round. True only for methods
	// whose recovered amount depends on what the debtor itself recovers,
	// i.e. pro-rata clearing.
	Clearing() bool
}

// Method name constants accepted by FromConfig.
const (
	MethodEisenbergNoe   = "eisenberg_noe"
	MethodFurfine        = "furfine"
	MethodLinearDebtRank = "linear_debtrank"
	MethodBlackCox       = "black_cox"
	MethodBlackCoxGBM    = "black_cox_gbm"
	MethodMertonGBM      = "merton_gbm"
)

// MethodNames lists the supported method identifiers.
func MethodNames() []string {
	return []string{
		MethodEisenbergNoe,
		MethodFurfine,
		MethodLinearDebtRank,
		MethodBlackCox,
		MethodBlackCoxGBM,
		MethodMertonGBM,
	}
}

// eisenbergNoeMethod is pro-rata clearing a la Eisenberg and Noe.
type eisenbergNoeMethod struct{}

func (eisenbergNoeMethod) Name() string { return MethodEisenbergNoe }

func (eisenbergNoeMethod) Clearing() bool { return true }

func (eisenbergNoeMethod) Recover(debtor *network.Bank) float64 {
	return eisenbergNoe(debtor.Equity, debtor.IBLiabTot)
}

// furfineMethod is binary contagion on default.
type furfineMethod struct{}

func (furfineMethod) Name() string { return MethodFurfine }

func (furfineMethod) Clearing() bool { return false }

func (furfineMethod) Recover(debtor *network.Bank) float64 {
	return furfine(debtor.Equity)
}

// debtRankMethod is Linear DebtRank: recovery is 1 - distress, where
// distress is the monotone running maximum of the clipped relative equity
// loss against the bank's pre-shock equity. Distress already propagated is
// never re-propagated.
type debtRankMethod struct {
	baseline []float64 // pre-shock equity, by bank index
	distress []float64 // monotone, in [0,1], by bank index
}

func (*debtRankMethod) Name() string { return MethodLinearDebtRank }

func (*debtRankMethod) Clearing() bool { return false }

func (m *debtRankMethod) Recover(debtor *network.Bank) float64 {
	idx := debtor.Index()
	if loss := relLoss(debtor.Equity, m.baseline[idx]); loss > m.distress[idx] {
		m.distress[idx] = loss
	}
	return exanteENBlackCox(0.0, m.distress[idx])
}

// Distress returns a copy of the per-bank distress vector.
func (m *debtRankMethod) Distress() []float64 {
	out := make([]float64, len(m.distress))
	copy(out, m.distress)
	return out
}

// blackCoxMethod is the structural threshold model without asset dynamics:
// full payment while solvent, an exogenous recovery rate on default.
type blackCoxMethod struct {
	rates []float64 // per-bank recovery rate, by bank index
}

func (*blackCoxMethod) Name() string { return MethodBlackCox }

func (*blackCoxMethod) Clearing() bool { return false }

func (m *blackCoxMethod) Recover(debtor *network.Bank) float64 {
	return exogenousRecovery(debtor.Equity, m.rates[debtor.Index()])
}

// blackCoxGBMMethod is the ex-ante Black and Cox model: external assets
// follow a geometric Brownian motion and the bank defaults the first time
// asset value crosses the liability barrier before maturity.
type blackCoxGBMMethod struct {
	rates []float64
}

func (*blackCoxGBMMethod) Name() string { return MethodBlackCoxGBM }

func (*blackCoxGBMMethod) Clearing() bool { return false }

func (m *blackCoxGBMMethod) Recover(debtor *network.Bank) float64 {
	pd := blackcoxPD(debtor.Equity, debtor.ExtAsset, debtor.Params.Sigma)
	return clamp01(exanteENBlackCox(m.rates[debtor.Index()], pd))
}

// mertonGBMMethod is the ex-ante Eisenberg and Noe model with default only
// at maturity and external assets following a geometric Brownian motion.
type mertonGBMMethod struct {
	rates []float64
}

func (*mertonGBMMethod) Name() string { return MethodMertonGBM }

func (*mertonGBMMethod) Clearing() bool { return false }

func (m *mertonGBMMethod) Recover(debtor *network.Bank) float64 {
	liabTot := debtor.IBLiabTot
	if liabTot <= 0 {
		return 1.0
	}
	sigma := debtor.Params.Sigma
	rho := m.rates[debtor.Index()]
	if sigma <= 0 {
		return exogenousRecovery(debtor.Equity, rho)
	}
	pd := lognormalPD(debtor.Equity, debtor.ExtAsset, sigma)
	pdShifted := lognormalPD(debtor.Equity+liabTot, debtor.ExtAsset, sigma)
	cav := lognormalCavAext(debtor.Equity, debtor.ExtAsset, liabTot, sigma)
	return clamp01(exanteENMerton(debtor.Equity, debtor.ExtAsset, liabTot, rho, pd, pdShifted, cav))
}
