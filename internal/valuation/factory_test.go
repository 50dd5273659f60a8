package valuation

import (
	"errors"
	"testing"

	"contagion-lab/internal/network"
)

func testSystem(t *testing.T, params network.Params) *network.System {
	t.Helper()

	sys, err := network.NewSystem(
		[]*network.Bank{
			network.NewBank("alpha", 100, 50, params),
			network.NewBank("beta", 200, 100, params),
		},
		[]network.Exposure{{Creditor: "alpha", Debtor: "beta", Amount: 50}},
	)
	if err != nil {
		t.Fatalf("NewSystem failed: %v", err)
	}
	return sys
}

func ptrFloat(v float64) *float64 { return &v }

func TestFromConfig_AllMethods(t *testing.T) {
	sys := testSystem(t, network.Params{Sigma: 0.2, RecoveryRate: 0.4})

	for _, name := range MethodNames() {
		t.Run(name, func(t *testing.T) {
			m, err := FromConfig(Config{Method: name}, sys)
			if err != nil {
				t.Fatalf("FromConfig(%q) failed: %v", name, err)
			}
			if m.Name() != name {
				t.Errorf("Name() = %q, want %q", m.Name(), name)
			}
			// Only pro-rata clearing equilibrates within a round.
			wantClearing := name == MethodEisenbergNoe
			if m.Clearing() != wantClearing {
				t.Errorf("Clearing() = %t, want %t", m.Clearing(), wantClearing)
			}
		})
	}
}

func TestFromConfig_UnknownMethod(t *testing.T) {
	sys := testSystem(t, network.Params{})

	_, err := FromConfig(Config{Method: "merton"}, sys)
	if !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestFromConfig_RecoveryRateRange(t *testing.T) {
	sys := testSystem(t, network.Params{})

	_, err := FromConfig(Config{Method: MethodBlackCox, RecoveryRate: ptrFloat(1.5)}, sys)
	if !errors.Is(err, ErrRecoveryRateRange) {
		t.Errorf("override above 1: expected ErrRecoveryRateRange, got %v", err)
	}

	_, err = FromConfig(Config{Method: MethodBlackCox, RecoveryRate: ptrFloat(-0.1)}, sys)
	if !errors.Is(err, ErrRecoveryRateRange) {
		t.Errorf("override below 0: expected ErrRecoveryRateRange, got %v", err)
	}

	// Per-bank rate out of range without an override.
	bad := testSystem(t, network.Params{RecoveryRate: 2})
	_, err = FromConfig(Config{Method: MethodBlackCox}, bad)
	if !errors.Is(err, ErrRecoveryRateRange) {
		t.Errorf("bad per-bank rate: expected ErrRecoveryRateRange, got %v", err)
	}
}

func TestFromConfig_NegativeVolatility(t *testing.T) {
	sys := testSystem(t, network.Params{Sigma: -0.1})

	_, err := FromConfig(Config{Method: MethodMertonGBM}, sys)
	if !errors.Is(err, ErrNegativeVolatility) {
		t.Errorf("expected ErrNegativeVolatility, got %v", err)
	}

	// Plain black_cox ignores volatility.
	if _, err := FromConfig(Config{Method: MethodBlackCox}, sys); err != nil {
		t.Errorf("black_cox should not check volatility: %v", err)
	}
}

func TestFromConfig_RecoveryOverrideWins(t *testing.T) {
	sys := testSystem(t, network.Params{RecoveryRate: 0.2})

	m, err := FromConfig(Config{Method: MethodBlackCox, RecoveryRate: ptrFloat(0.8)}, sys)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	beta, _ := sys.ByName("beta")
	beta.Equity = -10
	if got := m.Recover(beta); got != 0.8 {
		t.Errorf("override not applied: got %v, want 0.8", got)
	}
}

func TestDebtRank_MonotoneDistress(t *testing.T) {
	sys := testSystem(t, network.Params{})
	m, err := FromConfig(Config{Method: MethodLinearDebtRank}, sys)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	dr := m.(*debtRankMethod)

	beta, _ := sys.ByName("beta") // baseline equity 50

	beta.Equity = 25 // half lost
	if got := m.Recover(beta); got != 0.5 {
		t.Errorf("half loss: recovery %v, want 0.5", got)
	}

	// Equity recovering does not undo propagated distress.
	beta.Equity = 50
	if got := m.Recover(beta); got != 0.5 {
		t.Errorf("distress must be monotone: recovery %v, want 0.5", got)
	}

	// Deeper loss does propagate further.
	beta.Equity = -5
	if got := m.Recover(beta); got != 0.0 {
		t.Errorf("full loss: recovery %v, want 0", got)
	}

	d := dr.Distress()
	if d[beta.Index()] != 1.0 {
		t.Errorf("distress: got %v, want 1", d[beta.Index()])
	}
	for _, v := range d {
		if v < 0 || v > 1 {
			t.Errorf("distress outside [0,1]: %v", v)
		}
	}
}

func TestMertonGBM_DegenerateVolatility(t *testing.T) {
	sys := testSystem(t, network.Params{Sigma: 0, RecoveryRate: 0.3})
	m, err := FromConfig(Config{Method: MethodMertonGBM}, sys)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	beta, _ := sys.ByName("beta")

	// sigma=0 falls back to the exogenous-recovery step.
	beta.Equity = 10
	if got := m.Recover(beta); got != 1.0 {
		t.Errorf("solvent: got %v, want 1", got)
	}
	beta.Equity = -10
	if got := m.Recover(beta); got != 0.3 {
		t.Errorf("defaulted: got %v, want 0.3", got)
	}

	// A bank without interbank liabilities is always valued at par.
	alpha, _ := sys.ByName("alpha")
	alpha.Equity = -100
	if got := m.Recover(alpha); got != 1.0 {
		t.Errorf("no obligations: got %v, want 1", got)
	}
}

func TestMertonGBM_BoundedRecovery(t *testing.T) {
	sys := testSystem(t, network.Params{Sigma: 0.4, RecoveryRate: 0.5})
	m, err := FromConfig(Config{Method: MethodMertonGBM}, sys)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	beta, _ := sys.ByName("beta")
	for _, equity := range []float64{80, 40, 10, 0, -40, -200} {
		beta.Equity = equity
		got := m.Recover(beta)
		if got < 0 || got > 1 {
			t.Errorf("equity=%v: recovery %v outside [0,1]", equity, got)
		}
	}
}
