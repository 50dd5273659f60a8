package reporting

import (
	"fmt"
	"strings"
)

// RenderHistoryCSV renders the run history as CSV: one row per round, one
// column per bank in system order.
func RenderHistoryCSV(r *RunReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("round")
	for _, name := range r.BankNames {
		sb.WriteString(",")
		sb.WriteString(name)
	}
	sb.WriteString("\n")

	// Rows; round 0 is the post-shock state.
	for round, equities := range r.History.Entries() {
		sb.WriteString(fmt.Sprintf("%d", round))
		for _, e := range equities {
			sb.WriteString(fmt.Sprintf(",%.6f", e))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderPaymentsCSV renders the derived payment vector as CSV.
func RenderPaymentsCSV(r *RunReport) string {
	var sb strings.Builder

	sb.WriteString("bank_name,equity,interbank_liabilities,payment\n")
	for _, p := range r.Payments {
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.6f,%.6f\n",
			p.BankName,
			p.Equity,
			p.IBLiabTot,
			p.Payment,
		))
	}

	return sb.String()
}
