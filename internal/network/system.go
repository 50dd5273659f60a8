package network

import "math"

// Exposure is a directed edge of the network: a claim of Creditor on Debtor
// with the given face value. Multiple exposures between the same pair are
// aggregated at construction.
type Exposure struct {
	Creditor string
	Debtor   string
	Amount   float64
}

// System is the full interbank network: an ordered collection of banks plus
// the exposure set, indexed by creditor and by debtor. Bank order is fixed
// for the lifetime of a run and determines vector positions in history
// snapshots.
//
// A System is exclusively owned by one solver run. Use Clone to run
// independent simulations over the same network.
type System struct {
	banks      []*Bank
	byName     map[string]*Bank
	exposures  []Exposure // aggregated, creditor-then-debtor system order
	byCreditor map[string][]Exposure
	byDebtor   map[string][]Exposure
}

// consistencyTol bounds the acceptable drift between aggregated exposures
// and per-bank interbank totals.
const consistencyTol = 1e-9

// NewSystem builds a system from banks and raw exposures.
//
// It rejects duplicate or empty bank names, negative external assets or
// liabilities, exposures referencing unknown banks, self-exposures and
// negative notionals, all as *ValidationError identifying the offending
// record. Duplicate (creditor, debtor) pairs are summed. Each bank's
// interbank totals are derived from the exposure set and its equity is set
// to face value.
func NewSystem(banks []*Bank, exposures []Exposure) (*System, error) {
	s := &System{
		banks:      banks,
		byName:     make(map[string]*Bank, len(banks)),
		byCreditor: make(map[string][]Exposure),
		byDebtor:   make(map[string][]Exposure),
	}

	for idx, b := range banks {
		record := bankRecord(b.Name)
		if b.Name == "" {
			return nil, validationErrorf("bank", "empty name at position %d", idx)
		}
		if _, dup := s.byName[b.Name]; dup {
			return nil, validationErrorf(record, "duplicate name")
		}
		if b.ExtAsset < 0 {
			return nil, validationErrorf(record, "negative external assets %v", b.ExtAsset)
		}
		if b.ExtLiab < 0 {
			return nil, validationErrorf(record, "negative external liabilities %v", b.ExtLiab)
		}
		b.index = idx
		b.claims = nil
		b.IBLiabTot = 0
		s.byName[b.Name] = b
	}

	// Aggregate duplicate pairs, keeping first-seen order.
	aggregated := make(map[[2]string]int)
	for _, e := range exposures {
		record := exposureRecord(e)
		if _, ok := s.byName[e.Creditor]; !ok {
			return nil, validationErrorf(record, "unknown creditor")
		}
		if _, ok := s.byName[e.Debtor]; !ok {
			return nil, validationErrorf(record, "unknown debtor")
		}
		if e.Creditor == e.Debtor {
			return nil, validationErrorf(record, "self-exposure")
		}
		if e.Amount < 0 {
			return nil, validationErrorf(record, "negative notional %v", e.Amount)
		}
		key := [2]string{e.Creditor, e.Debtor}
		if pos, seen := aggregated[key]; seen {
			s.exposures[pos].Amount += e.Amount
		} else {
			aggregated[key] = len(s.exposures)
			s.exposures = append(s.exposures, e)
		}
	}

	for _, e := range s.exposures {
		creditor := s.byName[e.Creditor]
		debtor := s.byName[e.Debtor]
		creditor.claims = append(creditor.claims, Claim{Debtor: debtor, Amount: e.Amount})
		debtor.IBLiabTot += e.Amount
		s.byCreditor[e.Creditor] = append(s.byCreditor[e.Creditor], e)
		s.byDebtor[e.Debtor] = append(s.byDebtor[e.Debtor], e)
	}

	for _, b := range s.banks {
		b.Equity = b.NaiveEquity()
	}

	return s, nil
}

func bankRecord(name string) string {
	return `bank "` + name + `"`
}

func exposureRecord(e Exposure) string {
	return `exposure "` + e.Creditor + `"->"` + e.Debtor + `"`
}

// Size returns the number of banks.
func (s *System) Size() int {
	return len(s.banks)
}

// Banks returns the banks in system order. The slice is owned by the system.
func (s *System) Banks() []*Bank {
	return s.banks
}

// At returns the bank at the given system-order index.
func (s *System) At(idx int) *Bank {
	return s.banks[idx]
}

// ByName looks a bank up by name.
func (s *System) ByName(name string) (*Bank, bool) {
	b, ok := s.byName[name]
	return b, ok
}

// Exposures returns the aggregated exposure set.
func (s *System) Exposures() []Exposure {
	return s.exposures
}

// ExposuresOfCreditor returns the aggregated exposures held by a creditor.
func (s *System) ExposuresOfCreditor(name string) []Exposure {
	return s.byCreditor[name]
}

// ExposuresOfDebtor returns the aggregated exposures owed by a debtor.
func (s *System) ExposuresOfDebtor(name string) []Exposure {
	return s.byDebtor[name]
}

// Equities returns a copy of the current equity vector in system order.
func (s *System) Equities() []float64 {
	out := make([]float64, len(s.banks))
	for i, b := range s.banks {
		out[i] = b.Equity
	}
	return out
}

// SetEquities sets the equity of every bank from a vector in system order.
func (s *System) SetEquities(equities []float64) {
	for i, b := range s.banks {
		b.Equity = equities[i]
	}
}

// NaiveEquities returns the face-value equity vector.
func (s *System) NaiveEquities() []float64 {
	out := make([]float64, len(s.banks))
	for i, b := range s.banks {
		out[i] = b.NaiveEquity()
	}
	return out
}

// ExtAssets returns a copy of the external-asset vector in system order.
func (s *System) ExtAssets() []float64 {
	out := make([]float64, len(s.banks))
	for i, b := range s.banks {
		out[i] = b.ExtAsset
	}
	return out
}

// SetExtAssets sets the external assets of every bank.
func (s *System) SetExtAssets(extAssets []float64) {
	for i, b := range s.banks {
		b.ExtAsset = extAssets[i]
	}
}

// GrossNotional returns the sum of all exposure face values.
func (s *System) GrossNotional() float64 {
	total := 0.0
	for _, e := range s.exposures {
		total += e.Amount
	}
	return total
}

// ExposureMatrix returns the dense creditor×debtor matrix of face values in
// system order.
func (s *System) ExposureMatrix() [][]float64 {
	m := make([][]float64, len(s.banks))
	for i := range m {
		m[i] = make([]float64, len(s.banks))
	}
	for _, b := range s.banks {
		for _, c := range b.claims {
			m[b.index][c.Debtor.index] = c.Amount
		}
	}
	return m
}

// CheckConsistency verifies that no exposure has been dropped or double
// counted: for every bank the stored interbank liability total must equal
// the sum of claims held against it, and the gross notional must equal the
// sum of all interbank liabilities.
func (s *System) CheckConsistency() error {
	owed := make(map[string]float64, len(s.banks))
	for _, b := range s.banks {
		for _, c := range b.claims {
			owed[c.Debtor.Name] += c.Amount
		}
	}
	liabTot := 0.0
	for _, b := range s.banks {
		if math.Abs(owed[b.Name]-b.IBLiabTot) > consistencyTol {
			return validationErrorf(bankRecord(b.Name),
				"interbank liabilities %v do not match claims against it %v",
				b.IBLiabTot, owed[b.Name])
		}
		liabTot += b.IBLiabTot
	}
	if gross := s.GrossNotional(); math.Abs(gross-liabTot) > consistencyTol {
		return validationErrorf("system",
			"gross notional %v does not match total interbank liabilities %v",
			gross, liabTot)
	}
	return nil
}

// Clone returns a deep copy of the system, suitable for an independent
// solver run.
func (s *System) Clone() *System {
	banks := make([]*Bank, len(s.banks))
	for i, b := range s.banks {
		cp := *b
		cp.claims = nil
		banks[i] = &cp
	}
	exposures := make([]Exposure, len(s.exposures))
	copy(exposures, s.exposures)

	// Reconstruction through NewSystem cannot fail: the source system
	// already validated, and it resets equity to face value, so restore
	// the current state afterwards.
	clone, err := NewSystem(banks, exposures)
	if err != nil {
		panic("network: clone of valid system failed: " + err.Error())
	}
	for i, b := range s.banks {
		clone.banks[i].Equity = b.Equity
		clone.banks[i].ExtAsset = b.ExtAsset
		clone.banks[i].Params = b.Params
	}
	return clone
}
