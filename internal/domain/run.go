package domain

// RunRecord describes one completed solver run.
// Corresponds to runs table in PostgreSQL.
type RunRecord struct {
	RunID           string  // PRIMARY KEY, deterministic hash
	NetworkID       string  // fingerprint of the input system
	Method          string  // valuation method identifier
	ShockTarget     string  // "equity" | "extasset"
	SolveAssets     bool    // asset/volatility calibration enabled
	Status          string  // "converged" | "max_rounds_reached"
	Rounds          int     // completed contagion rounds
	InnerIterations int     // nested iterations summed over the run
	Tolerance       float64 // round convergence tolerance
	MaxRounds       int     // configured round cap
	StartedAt       int64   // Unix timestamp in milliseconds
	CreatedAt       int64   // record creation timestamp (ms)
}

// EquityPoint is one bank's state after one round of a run.
// Corresponds to equity_history table in ClickHouse. Round 0 is the
// post-shock, pre-iteration state.
type EquityPoint struct {
	RunID     string
	Round     int
	BankIndex int // position in system order
	BankName  string
	Equity    float64
	ExtAsset  float64
}

// PaymentRow is the derived payment view for one bank: full interbank
// liability payment while solvent, max(equity + liabilities, 0) otherwise.
type PaymentRow struct {
	BankName  string
	Equity    float64
	IBLiabTot float64
	Payment   float64
}
