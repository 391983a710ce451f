// Package stats provides the statistics primitives the optimizer is built on:
// means, population standard deviations, Pearson correlations, rolling
// volatility, log returns and a normal-CDF approximation. All functions are
// pure and total: malformed or empty input yields a defined default (usually
// zero) instead of an error.
package stats

import "math"

const (
	// PeriodsPerYearDaily annualizes statistics computed from daily returns.
	PeriodsPerYearDaily = 252.0
	// PeriodsPerYearMonthly annualizes statistics computed from monthly returns.
	PeriodsPerYearMonthly = 12.0

	// FallbackVolatility is substituted when a return series is empty, so the
	// optimizer always has a usable risk figure. It is a guard value, not
	// calibrated domain knowledge; substitutions are flagged as estimated.
	FallbackVolatility = 0.05
)

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// Variance returns the population variance of xs (divide by N, not N-1),
// or 0 for an empty slice.
func Variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation of xs.
func StdDev(xs []float64) float64 {
	return math.Sqrt(Variance(xs))
}

// Correlation returns the Pearson correlation of xs and ys. It returns 0 when
// the lengths mismatch, either series is empty, or either series has zero
// variance. That default keeps downstream matrix assembly total, but it also
// means malformed inputs produce a silently uncorrelated pair rather than an
// error; callers validating data quality must check lengths themselves.
func Correlation(xs, ys []float64) float64 {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return 0
	}
	mx, my := Mean(xs), Mean(ys)
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// CorrelationMatrix builds the symmetric correlation matrix for the given
// return series. Each upper-triangular pair is computed once and mirrored;
// the diagonal is fixed at 1.
func CorrelationMatrix(series [][]float64) [][]float64 {
	n := len(series)
	corr := make([][]float64, n)
	for i := range corr {
		corr[i] = make([]float64, n)
		corr[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			c := Correlation(series[i], series[j])
			corr[i][j] = c
			corr[j][i] = c
		}
	}
	return corr
}

// RollingStdDev returns the population standard deviation over a sliding
// window. The result has length len(xs)-window+1; it is empty when the series
// is shorter than the window or the window is below 2.
func RollingStdDev(xs []float64, window int) []float64 {
	if window < 2 || len(xs) < window {
		return nil
	}
	out := make([]float64, 0, len(xs)-window+1)
	for i := 0; i+window <= len(xs); i++ {
		out = append(out, StdDev(xs[i:i+window]))
	}
	return out
}

// LogReturns converts a price series into per-period log returns,
// ln(P_t / P_{t-1}). A series with fewer than two prices yields nil.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out[i-1] = math.Log(prices[i] / prices[i-1])
	}
	return out
}

// TrimToCommonLength trims every series to the shortest length across all of
// them, keeping the trailing (most recent) observations. Cross-asset
// statistics must only ever see series of equal length.
func TrimToCommonLength(series [][]float64) [][]float64 {
	if len(series) == 0 {
		return nil
	}
	minLen := len(series[0])
	for _, s := range series[1:] {
		if len(s) < minLen {
			minLen = len(s)
		}
	}
	out := make([][]float64, len(series))
	for i, s := range series {
		out[i] = s[len(s)-minLen:]
	}
	return out
}

// AnnualizedReturn scales the mean per-period return to a yearly figure.
func AnnualizedReturn(returns []float64, periodsPerYear float64) float64 {
	return Mean(returns) * periodsPerYear
}

// AnnualizedVolatility scales the per-period standard deviation to a yearly
// figure. An empty series yields FallbackVolatility with estimated=true so the
// substitution stays observable.
func AnnualizedVolatility(returns []float64, periodsPerYear float64) (vol float64, estimated bool) {
	if len(returns) == 0 {
		return FallbackVolatility, true
	}
	return StdDev(returns) * math.Sqrt(periodsPerYear), false
}

// Abramowitz & Stegun 7.1.26 rational approximation constants for erf.
const (
	erfP  = 0.3275911
	erfA1 = 0.254829592
	erfA2 = -0.284496736
	erfA3 = 1.421413741
	erfA4 = -1.453152027
	erfA5 = 1.061405429
)

// NormalCDF returns the standard normal cumulative distribution at x using
// the Abramowitz-Stegun erf approximation (absolute error below 1.5e-7).
func NormalCDF(x float64) float64 {
	return 0.5 * (1 + erfApprox(x/math.Sqrt2))
}

func erfApprox(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1
		x = -x
	}
	t := 1 / (1 + erfP*x)
	poly := t * (erfA1 + t*(erfA2+t*(erfA3+t*(erfA4+t*erfA5))))
	return sign * (1 - poly*math.Exp(-x*x))
}

// ProbNegativeReturn converts an annualized return/volatility pair into the
// probability of a negative realized return over a horizon of t years:
// P = NormalCDF(-r*t / (sigma*sqrt(t))). Zero volatility collapses to a step
// function on the sign of the return.
func ProbNegativeReturn(annualReturn, annualVol, tYears float64) float64 {
	if tYears <= 0 {
		return 0
	}
	if annualVol <= 0 {
		if annualReturn < 0 {
			return 1
		}
		return 0
	}
	z := -(annualReturn * tYears) / (annualVol * math.Sqrt(tYears))
	return NormalCDF(z)
}
