package portfolio

import "optifolio/internal/stats"

// ci95Z is the two-sided 95% z-score used for the confidence band.
const ci95Z = 1.96

// DerivedStats are the probability statistics attached to an optimization
// result: a 95% confidence band and negative-return probabilities at four
// horizons.
type DerivedStats struct {
	CI95Low   float64 `json:"ci95Low"`
	CI95High  float64 `json:"ci95High"`
	ProbNeg1M float64 `json:"probNeg1m"`
	ProbNeg3M float64 `json:"probNeg3m"`
	ProbNeg1Y float64 `json:"probNeg1y"`
	ProbNeg2Y float64 `json:"probNeg2y"`
}

// ComputeDerivedStats derives the probability block from an annualized
// return/volatility pair. The confidence band is the normal approximation
// return +/- 1.96*volatility over the annualized figures; it deliberately
// keeps the historical convention of not rescaling to a horizon.
func ComputeDerivedStats(annualReturn, annualVol float64) DerivedStats {
	return DerivedStats{
		CI95Low:   annualReturn - ci95Z*annualVol,
		CI95High:  annualReturn + ci95Z*annualVol,
		ProbNeg1M: stats.ProbNegativeReturn(annualReturn, annualVol, 1.0/12.0),
		ProbNeg3M: stats.ProbNegativeReturn(annualReturn, annualVol, 3.0/12.0),
		ProbNeg1Y: stats.ProbNegativeReturn(annualReturn, annualVol, 1),
		ProbNeg2Y: stats.ProbNegativeReturn(annualReturn, annualVol, 2),
	}
}
