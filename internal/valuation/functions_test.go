package valuation

import (
	"math"
	"testing"
)

func TestEisenbergNoe(t *testing.T) {
	cases := []struct {
		name    string
		equity  float64
		liabTot float64
		want    float64
	}{
		{"solvent pays in full", 10, 100, 1.0},
		{"zero equity pays in full share", 0, 100, 1.0},
		{"partial recovery", -40, 100, 0.6},
		{"wiped out", -100, 100, 0.0},
		{"beyond wiped out clips at zero", -250, 100, 0.0},
		{"no obligations", -50, 0, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := eisenbergNoe(tc.equity, tc.liabTot); math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("eisenbergNoe(%v, %v) = %v, want %v", tc.equity, tc.liabTot, got, tc.want)
			}
		})
	}
}

func TestFurfine(t *testing.T) {
	if got := furfine(0.001); got != 1.0 {
		t.Errorf("solvent: got %v, want 1", got)
	}
	if got := furfine(0); got != 0.0 {
		t.Errorf("zero equity: got %v, want 0", got)
	}
	if got := furfine(-10); got != 0.0 {
		t.Errorf("insolvent: got %v, want 0", got)
	}
}

func TestExogenousRecovery(t *testing.T) {
	if got := exogenousRecovery(5, 0.4); got != 1.0 {
		t.Errorf("solvent: got %v, want 1", got)
	}
	if got := exogenousRecovery(-5, 0.4); got != 0.4 {
		t.Errorf("defaulted: got %v, want 0.4", got)
	}
	// rho=0 reduces to Furfine.
	if got := exogenousRecovery(-5, 0); got != 0.0 {
		t.Errorf("zero recovery: got %v, want 0", got)
	}
}

func TestRelLoss(t *testing.T) {
	cases := []struct {
		name    string
		equity  float64
		equity0 float64
		want    float64
	}{
		{"above reference", 120, 100, 0.0},
		{"at reference", 100, 100, 0.0},
		{"half lost", 50, 100, 0.5},
		{"zero equity", 0, 100, 1.0},
		{"negative equity", -30, 100, 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := relLoss(tc.equity, tc.equity0); math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("relLoss(%v, %v) = %v, want %v", tc.equity, tc.equity0, got, tc.want)
			}
		})
	}
}

func TestExanteENBlackCox(t *testing.T) {
	// No default risk: face value.
	if got := exanteENBlackCox(0.5, 0); got != 1.0 {
		t.Errorf("pd=0: got %v, want 1", got)
	}
	// Certain default: recovery rate.
	if got := exanteENBlackCox(0.5, 1); got != 0.5 {
		t.Errorf("pd=1: got %v, want 0.5", got)
	}
	// rho=0, pd as relative loss reduces to Linear DebtRank.
	if got := exanteENBlackCox(0, 0.25); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("debtrank reduction: got %v, want 0.75", got)
	}
}

func TestLognormalPD(t *testing.T) {
	// Equity at or above external assets cannot default.
	if got := lognormalPD(100, 100, 0.5); got != 0.0 {
		t.Errorf("equity=assets: got %v, want 0", got)
	}
	// Degenerate volatility steps on equity.
	if got := lognormalPD(-1, 100, 0); got != 1.0 {
		t.Errorf("sigma=0 insolvent: got %v, want 1", got)
	}
	if got := lognormalPD(1, 100, 0); got != 0.0 {
		t.Errorf("sigma=0 solvent: got %v, want 0", got)
	}
	// Probabilities stay in [0,1] and grow as equity shrinks.
	pdHigh := lognormalPD(50, 100, 0.3)
	pdLow := lognormalPD(10, 100, 0.3)
	if pdHigh < 0 || pdHigh > 1 || pdLow < 0 || pdLow > 1 {
		t.Errorf("pd outside unit interval: %v, %v", pdHigh, pdLow)
	}
	if pdLow <= pdHigh {
		t.Errorf("pd should rise as equity falls: pd(10)=%v <= pd(50)=%v", pdLow, pdHigh)
	}
}

func TestBlackcoxPD(t *testing.T) {
	if got := blackcoxPD(-1, 100, 0.3); got != 1.0 {
		t.Errorf("insolvent: got %v, want 1", got)
	}
	if got := blackcoxPD(100, 100, 0.3); got != 0.0 {
		t.Errorf("equity=assets: got %v, want 0", got)
	}
	if got := blackcoxPD(50, 100, 0); got != 0.0 {
		t.Errorf("sigma=0 solvent: got %v, want 0", got)
	}
	// First-passage default dominates maturity-only default.
	fp := blackcoxPD(40, 100, 0.4)
	mat := lognormalPD(40, 100, 0.4)
	if fp < mat {
		t.Errorf("first-passage pd %v below maturity pd %v", fp, mat)
	}
}

func TestLognormalCavAext(t *testing.T) {
	if got := lognormalCavAext(100, 100, 50, 0.3); got != 0.0 {
		t.Errorf("no default region: got %v, want 0", got)
	}
	if got := lognormalCavAext(50, 100, 50, 0); got != 0.0 {
		t.Errorf("sigma=0: got %v, want 0", got)
	}
	// Conditional recovery value is bounded by external assets.
	got := lognormalCavAext(20, 100, 50, 0.4)
	if got < 0 || got > 100 {
		t.Errorf("recovery value %v outside [0, extAsset]", got)
	}
}

func TestSigmaFromEquity(t *testing.T) {
	if got := SigmaFromEquity(50, 100, 0.4); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("got %v, want 0.2", got)
	}
	if got := SigmaFromEquity(50, 0, 0.4); got != 0.0 {
		t.Errorf("zero assets: got %v, want 0", got)
	}
}

func TestClamp01(t *testing.T) {
	if got := clamp01(-0.5); got != 0.0 {
		t.Errorf("below: got %v", got)
	}
	if got := clamp01(0.5); got != 0.5 {
		t.Errorf("inside: got %v", got)
	}
	if got := clamp01(1.5); got != 1.0 {
		t.Errorf("above: got %v", got)
	}
}
