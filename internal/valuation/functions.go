package valuation

import "math"

// The kernels below map a debtor's balance-sheet state to the fraction of
// its interbank liabilities recoverable by creditors, following Barucca et
// al., "Network Valuation in Financial Systems". All return values in [0,1]
// unless noted.

// eisenbergNoe is the pro-rata clearing valuation: full payment while
// solvent, otherwise the available-asset share of the liability total.
// A zero liability total means no obligation, valued as full payment.
func eisenbergNoe(equity, liabTot float64) float64 {
	if liabTot <= 0 {
		return 1.0
	}
	if equity > 0 {
		return 1.0
	}
	return math.Max((equity+liabTot)/liabTot, 0.0)
}

// furfine is the binary contagion-on-default valuation: face value while
// the debtor is solvent, nothing otherwise.
func furfine(equity float64) float64 {
	if equity > 0 {
		return 1.0
	}
	return 0.0
}

// exogenousRecovery is the step valuation with an exogenous recovery rate:
// face value while solvent, rho on default.
func exogenousRecovery(equity, rho float64) float64 {
	if equity > 0 {
		return 1.0
	}
	return rho
}

// relLoss is the clipped relative equity loss against the reference value
// equity0: 0 above the reference, 1 at or below zero equity, linear in
// between. It is the default probability driving Linear DebtRank.
func relLoss(equity, equity0 float64) float64 {
	if equity > equity0 {
		return 0.0
	}
	if equity > 0 {
		return 1.0 - equity/equity0
	}
	return 1.0
}

// exanteENBlackCox combines an exogenous recovery rate with a default
// probability: 1 + (rho-1)*pd. With rho=0 and the relative equity loss as
// pd this reduces to Linear DebtRank.
func exanteENBlackCox(rho, probDef float64) float64 {
	return 1.0 + (rho-1.0)*probDef
}

// lognormalPD is the maturity-only (Merton) default probability for
// external assets following a geometric Brownian motion with volatility
// sigma. The sigma<=0 limit degenerates to a step on equity.
func lognormalPD(equity, extAsset, sigma float64) float64 {
	if equity >= extAsset {
		return 0.0
	}
	if sigma <= 0 {
		if equity <= 0 {
			return 1.0
		}
		return 0.0
	}
	return 0.5 * (1.0 + math.Erf((sigma*sigma/2+math.Log(1.0-equity/extAsset))/
		(math.Sqrt2*sigma)))
}

// blackcoxPD is the first-passage default probability for the Black and Cox
// model: the bank defaults as soon as asset value crosses the liability
// barrier before maturity.
func blackcoxPD(equity, extAsset, sigma float64) float64 {
	if equity <= 0 {
		return 1.0
	}
	if equity >= extAsset {
		return 0.0
	}
	if sigma <= 0 {
		return 0.0
	}
	halfVar := sigma * sigma / 2
	logDist := math.Log(1.0 - equity/extAsset)
	return 0.5*(1.0+math.Erf((logDist+halfVar)/(math.Sqrt2*sigma))) +
		(extAsset/(extAsset-equity))/2*
			(1.0+math.Erf((logDist-halfVar)/(math.Sqrt2*sigma)))
}

// lognormalCavAext is the conditional expected endogenous recovery on
// external assets under the lognormal (Merton) model.
func lognormalCavAext(equity, extAsset, liabTot, sigma float64) float64 {
	if extAsset <= equity || sigma <= 0 {
		return 0.0
	}
	halfVar := sigma * sigma / 2
	spread := math.Sqrt2 * sigma
	out := 0.5 * (1.0 + math.Erf((math.Log(1.0-equity/extAsset)-halfVar)/spread))
	if extAsset > equity+liabTot {
		out -= 0.5 * (1.0 + math.Erf((math.Log(1.0-(equity+liabTot)/extAsset)-halfVar)/spread))
	}
	return extAsset * out
}

// exanteENMerton is the ex-ante Eisenberg and Noe valuation for banks that
// can default only at maturity, with exogenous recovery rho and the
// endogenous recovery folded in.
func exanteENMerton(equity, extAsset, liabTot, rho, probDef, probDefShifted, cavAext float64) float64 {
	return (1.0 - probDef) +
		rho*((1.0+(equity-extAsset)/liabTot)*(probDef-probDefShifted)+
			cavAext/liabTot)
}

// SigmaFromEquity estimates external-asset volatility from equity
// volatility, assuming both follow a geometric Brownian motion.
func SigmaFromEquity(equity, extAsset, sigmaEquity float64) float64 {
	if extAsset <= 0 {
		return 0.0
	}
	return equity / extAsset * sigmaEquity
}

// clamp01 bounds a valuation to [0,1]. The Merton kernel can overflow the
// unit interval for extreme inputs.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0.0
	}
	if v > 1 {
		return 1.0
	}
	return v
}
