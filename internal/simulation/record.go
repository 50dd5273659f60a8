package simulation

import (
	"time"

	"contagion-lab/internal/domain"
	"contagion-lab/internal/network"
	"contagion-lab/internal/solver"
)

func buildRecord(runID, networkID string, in RunInput, res *solver.Result, started, created time.Time) *domain.RunRecord {
	return &domain.RunRecord{
		RunID:           runID,
		NetworkID:       networkID,
		Method:          in.Valuation.Method,
		ShockTarget:     string(in.Shock.Target),
		SolveAssets:     in.Solver.SolveAssets,
		Status:          string(res.Status),
		Rounds:          res.Rounds,
		InnerIterations: res.InnerIterations,
		Tolerance:       in.Solver.Tolerance,
		MaxRounds:       in.Solver.MaxRounds,
		StartedAt:       started.UnixMilli(),
		CreatedAt:       created.UnixMilli(),
	}
}

// historyPoints flattens the run history into storage rows. External assets
// are constant across rounds once the shock is applied, so every round
// carries the system's current values.
func historyPoints(runID string, sys *network.System, history *network.History) []*domain.EquityPoint {
	banks := sys.Banks()
	points := make([]*domain.EquityPoint, 0, history.Len()*len(banks))
	for round := 0; round < history.Len(); round++ {
		equities := history.At(round)
		for i, b := range banks {
			points = append(points, &domain.EquityPoint{
				RunID:     runID,
				Round:     round,
				BankIndex: i,
				BankName:  b.Name,
				Equity:    equities[i],
				ExtAsset:  b.ExtAsset,
			})
		}
	}
	return points
}

func (r *Runner) countError(errorType string) {
	if r.metrics != nil {
		r.metrics.RunErrors.WithLabelValues(errorType).Inc()
	}
}

func (r *Runner) observeRun(method string, res *solver.Result, sys *network.System, started time.Time) {
	if r.metrics == nil {
		return
	}
	m := r.metrics
	m.RunsTotal.WithLabelValues(method, string(res.Status)).Inc()
	m.RunDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
	m.RoundsPerRun.Observe(float64(res.Rounds))
	m.InnerIterations.Observe(float64(res.InnerIterations))
	m.SystemSize.Set(float64(sys.Size()))

	defaulted := 0
	for _, b := range sys.Banks() {
		if b.Equity < 0 {
			defaulted++
		}
	}
	m.DefaultedBanks.Set(float64(defaulted))
	m.LastSuccessfulRun.SetToCurrentTime()
}
