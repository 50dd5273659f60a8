package reporting

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a run summary as a markdown document: run
// metadata, terminal equities with payments, and the per-round history
// table.
func RenderMarkdown(r *RunReport) string {
	var sb strings.Builder

	sb.WriteString("# Contagion Run Report\n\n")
	sb.WriteString(fmt.Sprintf("- **Run**: `%s`\n", r.Run.RunID))
	sb.WriteString(fmt.Sprintf("- **Network**: `%s`\n", r.Run.NetworkID))
	sb.WriteString(fmt.Sprintf("- **Method**: %s\n", r.Run.Method))
	sb.WriteString(fmt.Sprintf("- **Status**: %s after %d round(s)\n", r.Run.Status, r.Run.Rounds))
	if r.Run.InnerIterations > 0 {
		sb.WriteString(fmt.Sprintf("- **Inner iterations**: %d\n", r.Run.InnerIterations))
	}
	if len(r.Defaulted) > 0 {
		sb.WriteString(fmt.Sprintf("- **Defaulted banks**: %s\n", strings.Join(r.Defaulted, ", ")))
	} else {
		sb.WriteString("- **Defaulted banks**: none\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Terminal State\n\n")
	sb.WriteString("| Bank | Equity | Interbank Liabilities | Payment |\n")
	sb.WriteString("|------|-------:|----------------------:|--------:|\n")
	for _, p := range r.Payments {
		sb.WriteString(fmt.Sprintf("| %s | %.4f | %.4f | %.4f |\n",
			p.BankName, p.Equity, p.IBLiabTot, p.Payment))
	}
	sb.WriteString("\n")

	sb.WriteString("## Equity History\n\n")
	sb.WriteString("| Round |")
	for _, name := range r.BankNames {
		sb.WriteString(fmt.Sprintf(" %s |", name))
	}
	sb.WriteString("\n|-------|")
	for range r.BankNames {
		sb.WriteString("------:|")
	}
	sb.WriteString("\n")
	for round, equities := range r.History.Entries() {
		label := fmt.Sprintf("%d", round)
		if round == 0 {
			label = "0 (shock)"
		}
		sb.WriteString(fmt.Sprintf("| %s |", label))
		for _, e := range equities {
			sb.WriteString(fmt.Sprintf(" %.4f |", e))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
