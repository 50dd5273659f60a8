package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"contagion-lab/internal/network"
)

// ExportJSON renders the system's current balance sheets back into the
// JSON document schema accepted by ParseJSON. Parsing the output
// reproduces the balance-sheet numbers exactly.
func ExportJSON(sys *network.System) ([]byte, error) {
	wire := make([]jsonBank, 0, sys.Size())
	for _, b := range sys.Banks() {
		jb := jsonBank{
			Name:     b.Name,
			ExtAsset: b.ExtAsset,
			ExtLiab:  b.ExtLiab,
		}
		liab := b.IBLiabTot
		jb.IBLiabTot = &liab
		if len(b.Claims()) > 0 {
			jb.IBAsset = make(map[string]float64, len(b.Claims()))
			for _, c := range b.Claims() {
				jb.IBAsset[c.Debtor.Name] = c.Amount
			}
		}
		if b.Params.Sigma != 0 {
			sigma := b.Params.Sigma
			jb.SigmaAsset = &sigma
		}
		if b.Params.SigmaEquity != 0 {
			se := b.Params.SigmaEquity
			jb.SigmaEquity = &se
		}
		if b.Params.RecoveryRate != 0 {
			rr := b.Params.RecoveryRate
			jb.RecoveryRate = &rr
		}
		wire = append(wire, jb)
	}
	return json.MarshalIndent(wire, "", "  ")
}

// ExportCSV renders the system back into the two CSV sources accepted by
// ParseCSV: a balance-sheet table and an exposure adjacency list.
func ExportCSV(sys *network.System) (balanceSheets, exposures string) {
	var bs strings.Builder
	bs.WriteString("bank_name,external_asset,external_liabilities,sigma_asset,sigma_equity,recovery_rate\n")
	for _, b := range sys.Banks() {
		bs.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s\n",
			b.Name,
			formatFloat(b.ExtAsset),
			formatFloat(b.ExtLiab),
			formatFloat(b.Params.Sigma),
			formatFloat(b.Params.SigmaEquity),
			formatFloat(b.Params.RecoveryRate),
		))
	}

	var exp strings.Builder
	exp.WriteString("lender,borrower,amount\n")
	for _, e := range sys.Exposures() {
		exp.WriteString(fmt.Sprintf("%s,%s,%s\n", e.Creditor, e.Debtor, formatFloat(e.Amount)))
	}

	return bs.String(), exp.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
