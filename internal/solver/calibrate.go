package solver

import (
	"math"

	"contagion-lab/internal/network"
	"contagion-lab/internal/valuation"
)

// calibrateAssets runs the pre-shock joint fixed point on external assets
// and their volatility, so that the unshocked valuation fixed point
// reproduces the book equities. Equities stay fixed; external assets are
// solved from the inverted valuation map and volatilities are re-estimated
// from equity volatility where one is given.
//
// Returns the iterations spent. Bounded by the inner config; a calibration
// that hits the cap leaves the best iterate in place.
func calibrateAssets(sys *network.System, method valuation.Method, inner InnerConfig) int {
	banks := sys.Banks()
	n := len(banks)

	iters := 0
	for iters < inner.MaxIterations {
		oldAssets := sys.ExtAssets()
		oldSigmas := sigmas(sys)

		// Jacobi update: all recoveries read before any field is written.
		recovered := make([]float64, n)
		for j, b := range banks {
			recovered[j] = method.Recover(b)
		}

		newAssets := make([]float64, n)
		newSigmas := make([]float64, n)
		for i, b := range banks {
			ibValue := 0.0
			for _, c := range b.Claims() {
				ibValue += c.Amount * recovered[c.Debtor.Index()]
			}
			newAssets[i] = b.Equity + b.ExtLiab + b.IBLiabTot - ibValue
			if b.Params.SigmaEquity > 0 {
				newSigmas[i] = valuation.SigmaFromEquity(b.Equity, b.ExtAsset, b.Params.SigmaEquity)
			} else {
				newSigmas[i] = b.Params.Sigma
			}
		}

		sys.SetExtAssets(newAssets)
		setSigmas(sys, newSigmas)
		iters++

		errA := symRelErr(oldAssets, newAssets)
		errS := symRelErr(oldSigmas, newSigmas)
		if math.Sqrt(errA*errA+errS*errS) <= inner.Tolerance {
			break
		}
	}
	return iters
}

func sigmas(sys *network.System) []float64 {
	out := make([]float64, sys.Size())
	for i, b := range sys.Banks() {
		out[i] = b.Params.Sigma
	}
	return out
}

func setSigmas(sys *network.System, v []float64) {
	for i, b := range sys.Banks() {
		b.Params.Sigma = v[i]
	}
}
