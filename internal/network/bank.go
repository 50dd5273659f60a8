package network

// Params carries optional per-bank model parameters. Valuation methods read
// only the fields they need; unused fields stay zero.
type Params struct {
	Sigma        float64 // volatility of external assets (GBM methods)
	SigmaEquity  float64 // volatility of equity, used to calibrate Sigma
	RecoveryRate float64 // exogenous recovery rate on default
}

// Bank is one node of the interbank network.
//
// The balance sheet splits into external and interbank positions. Interbank
// assets are claims on other banks in the system; a claim of bank i on bank j
// appears as a liability in j's IBLiabTot. The book value of equity is
//
//	Equity = ExtAsset - ExtLiab + ibAssetTot - IBLiabTot
//
// Equity is mutated by the solver each round; all other balance-sheet fields
// are fixed at construction unless asset calibration is enabled.
type Bank struct {
	Name      string
	ExtAsset  float64 // external (non-interbank) assets
	ExtLiab   float64 // external liabilities
	IBLiabTot float64 // total interbank liabilities, derived from exposures
	Equity    float64
	Params    Params

	index  int
	claims []Claim // interbank assets: claims on other banks
}

// Claim is one interbank asset held by a creditor: a debtor and the face
// value owed.
type Claim struct {
	Debtor *Bank
	Amount float64
}

// NewBank creates a bank with the given external balance-sheet fields.
// Interbank positions and equity are filled in by NewSystem.
func NewBank(name string, extAsset, extLiab float64, params Params) *Bank {
	return &Bank{
		Name:     name,
		ExtAsset: extAsset,
		ExtLiab:  extLiab,
		Params:   params,
	}
}

// Index returns the bank's fixed position in system order.
func (b *Bank) Index() int {
	return b.index
}

// Claims returns the bank's interbank assets in debtor order.
// The returned slice is owned by the system and must not be modified.
func (b *Bank) Claims() []Claim {
	return b.claims
}

// IBAssetTot returns the total face value of the bank's interbank assets.
func (b *Bank) IBAssetTot() float64 {
	total := 0.0
	for _, c := range b.claims {
		total += c.Amount
	}
	return total
}

// NaiveEquity returns the face value of equity: all assets taken at face
// value, without any devaluation. It is the largest possible equity.
func (b *Bank) NaiveEquity() float64 {
	return b.ExtAsset - b.ExtLiab + b.IBAssetTot() - b.IBLiabTot
}

// LeastEquity returns the equity under complete devaluation of all assets.
func (b *Bank) LeastEquity() float64 {
	return -b.ExtLiab - b.IBLiabTot
}
