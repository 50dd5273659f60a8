// Package reporting derives the output views of a solver run: the payment
// vector and per-round equity tables, rendered as CSV or markdown.
package reporting

import (
	"contagion-lab/internal/domain"
	"contagion-lab/internal/network"
)

// RunReport bundles everything the renderers need about one run.
type RunReport struct {
	Run       domain.RunRecord
	BankNames []string
	History   *network.History
	Payments  []domain.PaymentRow
	Defaulted []string
}

// NewRunReport assembles a report from the run record and the solved
// system. The system must be in its post-run state.
func NewRunReport(run domain.RunRecord, sys *network.System, history *network.History) *RunReport {
	names := make([]string, sys.Size())
	for i, b := range sys.Banks() {
		names[i] = b.Name
	}
	return &RunReport{
		Run:       run,
		BankNames: names,
		History:   history,
		Payments:  PaymentVector(sys),
		Defaulted: DefaultedBanks(sys),
	}
}

// PaymentVector derives the interbank payment view from the system's
// current equities: a solvent bank pays its interbank liabilities in full,
// an insolvent one pays what its assets cover, floored at zero.
func PaymentVector(sys *network.System) []domain.PaymentRow {
	rows := make([]domain.PaymentRow, sys.Size())
	for i, b := range sys.Banks() {
		payment := b.IBLiabTot
		if b.Equity < 0 {
			payment = max(b.Equity+b.IBLiabTot, 0)
		}
		rows[i] = domain.PaymentRow{
			BankName:  b.Name,
			Equity:    b.Equity,
			IBLiabTot: b.IBLiabTot,
			Payment:   payment,
		}
	}
	return rows
}

// DefaultedBanks returns the names of banks with negative equity in the
// system's current state.
func DefaultedBanks(sys *network.System) []string {
	var names []string
	for _, b := range sys.Banks() {
		if b.Equity < 0 {
			names = append(names, b.Name)
		}
	}
	return names
}
