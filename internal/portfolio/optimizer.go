package portfolio

import (
	"errors"
	"fmt"
	"math"
)

// Solver constants. Like the projection constants these are part of the
// observable contract: results are deterministic across runs and
// implementations only while they hold.
const (
	// DefaultTolerance is the Euclidean step size below which the solver
	// declares convergence.
	DefaultTolerance = 1e-8
	// DefaultMaxIterations caps the projected-gradient loop.
	DefaultMaxIterations = 1000
	// initialLearningRate is the starting gradient step size.
	initialLearningRate = 0.1
	// learningRateDecay is applied every learningRateDecayEvery iterations to
	// settle late-stage oscillation near the optimum.
	learningRateDecay      = 0.9
	learningRateDecayEvery = 100
)

// ErrTooFewAssets is returned when fewer than two assets are supplied.
var ErrTooFewAssets = errors.New("portfolio: need at least 2 assets")

// Status reports how the solver stopped. The solver never fails outright;
// Status lets callers tell a trustworthy optimum from a heuristic fallback.
type Status int

const (
	// StatusConverged means the step size dropped below the tolerance.
	StatusConverged Status = iota
	// StatusMaxIterations means the iteration cap was hit first.
	StatusMaxIterations
	// StatusInfeasible means the final iterate still violates a configured
	// return floor or volatility ceiling.
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusMaxIterations:
		return "max-iterations"
	case StatusInfeasible:
		return "infeasible"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Options configures one MinVariance call.
type Options struct {
	Constraints
	// Tolerance is the convergence threshold; 0 means DefaultTolerance.
	Tolerance float64
	// MaxIterations caps the gradient loop; 0 means DefaultMaxIterations.
	MaxIterations int
}

// Result is the outcome of one optimization. It is constructed fresh per call
// and never mutated afterwards.
type Result struct {
	Weights    []float64 `json:"weights"`
	Return     float64   `json:"return"`
	Volatility float64   `json:"volatility"`
	Status     Status    `json:"-"`
	// Success is kept for compatibility with the historical always-answer
	// contract: it is true whenever a usable weight vector exists. Consult
	// Status to distinguish a converged optimum from a best-effort iterate.
	Success bool `json:"success"`
}

// Sharpe returns the risk-adjusted return (r - rf) / vol, or 0 when the
// volatility is non-positive.
func (r Result) Sharpe(riskFreeRate float64) float64 {
	if r.Volatility <= 0 {
		return 0
	}
	return (r.Return - riskFreeRate) / r.Volatility
}

// MinVariance finds the minimum-variance portfolio for the given expected
// returns and covariance matrix under opts. It runs projected gradient
// descent from the uniform portfolio: each iteration takes an unconstrained
// step against the variance gradient 2Σw and projects back onto the feasible
// set. Correctness rests entirely on Project being a true Euclidean
// projection onto the constraint polytope.
//
// The returned Result always carries the last feasible iterate; the Status
// field reports whether the loop converged, ran out of iterations, or could
// not satisfy a configured floor or ceiling.
func MinVariance(returns []float64, cov [][]float64, opts Options) (Result, error) {
	n := len(returns)
	if n < 2 {
		return Result{}, ErrTooFewAssets
	}
	if len(cov) != n {
		return Result{}, fmt.Errorf("portfolio: covariance matrix has %d rows for %d assets", len(cov), n)
	}
	for i := range cov {
		if len(cov[i]) != n {
			return Result{}, fmt.Errorf("portfolio: covariance row %d has %d columns for %d assets", i, len(cov[i]), n)
		}
	}

	tolerance := opts.Tolerance
	if tolerance == 0 {
		tolerance = DefaultTolerance
	}
	maxIter := opts.MaxIterations
	if maxIter == 0 {
		maxIter = DefaultMaxIterations
	}
	if opts.Budget == 0 {
		opts.Budget = 1
	}

	covDense := denseFromRows(cov)
	w := make([]float64, n)
	for i := range w {
		w[i] = opts.Budget / float64(n)
	}

	grad := make([]float64, n)
	candidate := make([]float64, n)
	lr := initialLearningRate
	status := StatusMaxIterations

	for iter := 0; iter < maxIter; iter++ {
		gradVariance(grad, w, covDense)
		for i := range candidate {
			candidate[i] = w[i] - lr*grad[i]
		}
		projected := opts.Project(candidate, returns, cov)

		step := 0.0
		for i := range projected {
			d := projected[i] - w[i]
			step += d * d
		}
		copy(w, projected)

		if math.Sqrt(step) < tolerance {
			status = StatusConverged
			break
		}
		if (iter+1)%learningRateDecayEvery == 0 {
			lr *= learningRateDecay
		}
	}

	ret := PortfolioReturn(w, returns)
	vol := math.Sqrt(PortfolioVariance(w, cov))
	if !math.IsInf(opts.RMin, -1) && ret < opts.RMin-FeasTolerance {
		status = StatusInfeasible
	}
	if opts.VolMax > 0 && vol > opts.VolMax+FeasTolerance {
		status = StatusInfeasible
	}

	return Result{
		Weights:    w,
		Return:     ret,
		Volatility: vol,
		Status:     status,
		Success:    true,
	}, nil
}
