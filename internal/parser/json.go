package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"contagion-lab/internal/network"
)

// jsonBank is the wire form of one bank. The root of the document is an
// array of these:
//
//	[
//	  {
//	    "name": "A",
//	    "extasset": 1.0,
//	    "extliab": 0.0,
//	    "ibasset": {"B": 1.0},
//	    "ibliabtot": 0.0
//	  },
//	  ...
//	]
//
// ibasset maps borrower name to the face value owed to this bank.
// ibliabtot is redundant with the exposure set and is cross-checked when
// present. sigma_asset, sigma_equity and recovery_rate are optional model
// parameters.
type jsonBank struct {
	Name         string             `json:"name"`
	ExtAsset     float64            `json:"extasset"`
	ExtLiab      float64            `json:"extliab"`
	IBAsset      map[string]float64 `json:"ibasset,omitempty"`
	IBLiabTot    *float64           `json:"ibliabtot,omitempty"`
	SigmaAsset   *float64           `json:"sigma_asset,omitempty"`
	SigmaEquity  *float64           `json:"sigma_equity,omitempty"`
	RecoveryRate *float64           `json:"recovery_rate,omitempty"`
}

// liabCheckTol bounds the acceptable drift between a declared ibliabtot
// and the total derived from the exposure set.
const liabCheckTol = 1e-6

// ParseJSON reads a single JSON document holding both balance sheets and
// exposures and returns the validated system.
func ParseJSON(r io.Reader) (*network.System, error) {
	var wire []jsonBank
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode system document: %w", err)
	}

	banks := make([]*network.Bank, 0, len(wire))
	declared := make(map[string]*float64, len(wire))
	var exposures []network.Exposure
	for _, jb := range wire {
		var params network.Params
		if jb.SigmaAsset != nil {
			params.Sigma = *jb.SigmaAsset
		}
		if jb.SigmaEquity != nil {
			params.SigmaEquity = *jb.SigmaEquity
		}
		if jb.RecoveryRate != nil {
			params.RecoveryRate = *jb.RecoveryRate
		}
		banks = append(banks, network.NewBank(jb.Name, jb.ExtAsset, jb.ExtLiab, params))
		declared[jb.Name] = jb.IBLiabTot

		// Borrowers sorted so the exposure order (and the network
		// fingerprint) does not depend on map iteration.
		borrowers := make([]string, 0, len(jb.IBAsset))
		for borrower := range jb.IBAsset {
			borrowers = append(borrowers, borrower)
		}
		sort.Strings(borrowers)
		for _, borrower := range borrowers {
			exposures = append(exposures, network.Exposure{
				Creditor: jb.Name,
				Debtor:   borrower,
				Amount:   jb.IBAsset[borrower],
			})
		}
	}

	sys, err := network.NewSystem(banks, exposures)
	if err != nil {
		return nil, err
	}

	// A declared liability total that disagrees with the exposure set means
	// the document dropped or double-counted an exposure somewhere.
	for _, b := range sys.Banks() {
		want := declared[b.Name]
		if want == nil {
			continue
		}
		if math.Abs(*want-b.IBLiabTot) > liabCheckTol {
			return nil, &network.ValidationError{
				Record: fmt.Sprintf("bank %q", b.Name),
				Reason: fmt.Sprintf("declared ibliabtot %v does not match exposures %v", *want, b.IBLiabTot),
			}
		}
	}

	return sys, nil
}
