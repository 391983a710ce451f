package portfolio

import (
	"optifolio/internal/stats"
)

// AssetStats holds the annualized statistics derived for one asset.
type AssetStats struct {
	Ticker           string  `json:"ticker"`
	AnnualReturn     float64 `json:"annual_return"`
	AnnualVolatility float64 `json:"annual_volatility"`
	// Estimated marks a volatility that was substituted with the fallback
	// constant because the return series was empty.
	Estimated bool `json:"estimated,omitempty"`
}

// Universe is the aligned input set one optimization call consumes: an
// ordered asset sequence with positionally indexed vectors and matrices.
// Order is significant for the lifetime of the call.
type Universe struct {
	Tickers         []string
	ExpectedReturns []float64
	Volatilities    []float64
	Correlation     [][]float64
	Covariance      [][]float64
	Stats           []AssetStats
}

// PrepareUniverse turns per-asset log-return series into the aligned inputs
// of one optimization call. Series are trimmed to their common trailing
// length before any cross-asset statistic is computed; empty series fall
// back to the default volatility and are flagged estimated.
func PrepareUniverse(tickers []string, returnSeries [][]float64, periodsPerYear float64) *Universe {
	trimmed := trimNonEmpty(returnSeries)
	n := len(tickers)

	u := &Universe{
		Tickers:         tickers,
		ExpectedReturns: make([]float64, n),
		Volatilities:    make([]float64, n),
		Stats:           make([]AssetStats, n),
	}
	for i := 0; i < n; i++ {
		var series []float64
		if i < len(trimmed) {
			series = trimmed[i]
		}
		ret := stats.AnnualizedReturn(series, periodsPerYear)
		vol, estimated := stats.AnnualizedVolatility(series, periodsPerYear)
		u.ExpectedReturns[i] = ret
		u.Volatilities[i] = vol
		u.Stats[i] = AssetStats{
			Ticker:           tickers[i],
			AnnualReturn:     ret,
			AnnualVolatility: vol,
			Estimated:        estimated,
		}
	}
	u.Correlation = stats.CorrelationMatrix(trimmed)
	u.Covariance = BuildCovarianceMatrix(u.Volatilities, u.Correlation)
	return u
}

// trimNonEmpty trims every non-empty series to the common trailing length of
// the non-empty ones. An empty series would otherwise drag the common length
// to zero and wipe out every asset's statistics; instead it stays empty, its
// volatility falls back, and its correlations default to zero through the
// length-mismatch rule.
func trimNonEmpty(series [][]float64) [][]float64 {
	minLen := -1
	for _, s := range series {
		if len(s) == 0 {
			continue
		}
		if minLen < 0 || len(s) < minLen {
			minLen = len(s)
		}
	}
	out := make([][]float64, len(series))
	for i, s := range series {
		if len(s) == 0 || minLen < 0 {
			out[i] = nil
			continue
		}
		out[i] = s[len(s)-minLen:]
	}
	return out
}
