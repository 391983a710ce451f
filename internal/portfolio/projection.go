package portfolio

import (
	"math"
	"sort"
)

// Numeric constants of the projection and repair loops. They define the
// feasibility and convergence tests, so changing any of them changes
// observable optimization results.
const (
	// FeasTolerance is the residual below which a constraint counts as met.
	FeasTolerance = 1e-10
	// SumProjectionMaxIter caps the bounded-sum redistribution loop used when
	// short selling widens the box below zero.
	SumProjectionMaxIter = 50
	// ReturnRepairStep is the weight increment moved per return-floor repair
	// step.
	ReturnRepairStep = 0.01
	// ReturnRepairMaxIter caps the return-floor repair loop.
	ReturnRepairMaxIter = 100
	// VolRepairStep is the gradient step size of the volatility-ceiling
	// repair loop.
	VolRepairStep = 0.05
	// VolRepairMaxIter caps the volatility-ceiling repair loop.
	VolRepairMaxIter = 100
)

// Constraints describes the feasible set the projection targets.
type Constraints struct {
	// WMin and WMax are per-asset box bounds. WMin is 0 unless short selling
	// is allowed, in which case it is -WMax.
	WMin float64
	// WMax is the per-asset upper bound.
	WMax float64
	// Budget is the leverage budget L the weights sum to (1.0 without
	// leverage, up to 3.0 with it).
	Budget float64
	// EnforceFullInvestment requires sum(w) == Budget; otherwise only
	// sum(w) <= Budget is enforced.
	EnforceFullInvestment bool
	// RMin is the minimum portfolio return. math.Inf(-1) disables the floor.
	RMin float64
	// VolMax is the maximum portfolio volatility. 0 disables the ceiling.
	VolMax float64
}

// DefaultConstraints returns the long-only, fully invested unit-budget set
// with no return floor or volatility ceiling.
func DefaultConstraints() Constraints {
	return Constraints{
		WMin:                  0,
		WMax:                  1,
		Budget:                1,
		EnforceFullInvestment: true,
		RMin:                  math.Inf(-1),
	}
}

// Project returns the nearest feasible point to w for the constraint set.
// The repair stages run in fixed order: box clamp, budget projection,
// upper-bound re-clamp with renormalization, return-floor repair, and
// volatility-ceiling repair. The budget projection is an exact Euclidean
// projection (Duchi et al. for the long-only simplex); the two repair stages
// are best-effort greedy loops with fixed iteration caps.
//
// returns and cov are only consulted by the repair stages; they may be nil
// when RMin is -Inf and VolMax is 0.
func (c Constraints) Project(w, returns []float64, cov [][]float64) []float64 {
	out := make([]float64, len(w))
	copy(out, w)

	clampBox(out, c.WMin, c.WMax)

	if c.WMin >= 0 {
		c.projectSimplex(out)
	} else {
		c.projectBoundedSum(out)
	}

	// The budget projection can push entries past the upper bound when the
	// box and budget interact; re-clamp and rescale the drift away.
	for i, v := range out {
		if v > c.WMax {
			out[i] = c.WMax
		}
	}
	c.renormalize(out)

	if !math.IsInf(c.RMin, -1) && returns != nil {
		c.repairReturnFloor(out, returns)
	}
	if c.VolMax > 0 && cov != nil {
		c.repairVolCeiling(out, cov)
	}
	return out
}

// Feasible reports whether w already satisfies the box, budget and return
// constraints within FeasTolerance. The volatility ceiling is checked only
// when cov is supplied.
func (c Constraints) Feasible(w, returns []float64, cov [][]float64) bool {
	sum := 0.0
	for _, v := range w {
		if v < c.WMin-FeasTolerance || v > c.WMax+FeasTolerance {
			return false
		}
		sum += v
	}
	if c.EnforceFullInvestment {
		if math.Abs(sum-c.Budget) > FeasTolerance {
			return false
		}
	} else if sum > c.Budget+FeasTolerance {
		return false
	}
	if !math.IsInf(c.RMin, -1) && returns != nil {
		if PortfolioReturn(w, returns) < c.RMin-FeasTolerance {
			return false
		}
	}
	if c.VolMax > 0 && cov != nil {
		if math.Sqrt(PortfolioVariance(w, cov)) > c.VolMax+FeasTolerance {
			return false
		}
	}
	return true
}

func clampBox(w []float64, lo, hi float64) {
	for i, v := range w {
		if v < lo {
			w[i] = lo
		} else if v > hi {
			w[i] = hi
		}
	}
}

// projectSimplex is the Euclidean projection onto {w >= 0, sum(w) = Budget}
// from Duchi et al., "Efficient Projections onto the l1-Ball for Learning in
// High Dimensions": sort descending, find the pivot rho, shift by theta and
// clip at zero. O(N log N).
func (c Constraints) projectSimplex(w []float64) {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if !c.EnforceFullInvestment && sum <= c.Budget+FeasTolerance {
		return
	}
	if math.Abs(sum-c.Budget) <= FeasTolerance {
		return
	}

	sorted := make([]float64, len(w))
	copy(sorted, w)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	cumsum := 0.0
	rho := -1
	theta := 0.0
	for i, v := range sorted {
		cumsum += v
		t := (cumsum - c.Budget) / float64(i+1)
		if v-t > 0 {
			rho = i
			theta = t
		}
	}
	if rho < 0 {
		// All mass below the threshold: spread the budget uniformly.
		for i := range w {
			w[i] = c.Budget / float64(len(w))
		}
		return
	}
	for i, v := range w {
		w[i] = math.Max(0, v-theta)
	}
}

// projectBoundedSum projects onto {WMin <= w_i <= WMax, sum(w) = Budget}
// (or <= Budget) by iterating clamp and uniform redistribution of the
// residual across coordinates that still have headroom. Terminates once the
// residual is within FeasTolerance or after SumProjectionMaxIter passes.
func (c Constraints) projectBoundedSum(w []float64) {
	for iter := 0; iter < SumProjectionMaxIter; iter++ {
		clampBox(w, c.WMin, c.WMax)

		sum := 0.0
		for _, v := range w {
			sum += v
		}
		residual := c.Budget - sum
		if math.Abs(residual) <= FeasTolerance {
			return
		}
		if !c.EnforceFullInvestment && residual > 0 {
			// Under budget and equality not required.
			return
		}

		adjustable := 0
		for _, v := range w {
			if residual > 0 && v < c.WMax-FeasTolerance {
				adjustable++
			} else if residual < 0 && v > c.WMin+FeasTolerance {
				adjustable++
			}
		}
		if adjustable == 0 {
			return
		}
		delta := residual / float64(adjustable)
		for i, v := range w {
			if residual > 0 && v < c.WMax-FeasTolerance {
				w[i] = v + delta
			} else if residual < 0 && v > c.WMin+FeasTolerance {
				w[i] = v + delta
			}
		}
	}
}

// renormalize rescales w to the budget when the sum drifted more than
// FeasTolerance away from it. Without full investment only over-budget
// vectors are scaled back.
func (c Constraints) renormalize(w []float64) {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum == 0 {
		return
	}
	drifted := math.Abs(sum-c.Budget) > FeasTolerance
	if !drifted {
		return
	}
	if !c.EnforceFullInvestment && sum < c.Budget {
		return
	}
	scale := c.Budget / sum
	for i := range w {
		w[i] *= scale
	}
}

// repairReturnFloor greedily moves weight from the lowest-expected-return
// donor to the highest-expected-return recipient in ReturnRepairStep
// increments until w·r reaches RMin, no donor/recipient pair has headroom,
// or the iteration cap is hit. The vector is renormalized to the budget
// afterwards.
func (c Constraints) repairReturnFloor(w, returns []float64) {
	order := make([]int, len(returns))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return returns[order[a]] < returns[order[b]]
	})

	for iter := 0; iter < ReturnRepairMaxIter; iter++ {
		if PortfolioReturn(w, returns) >= c.RMin-FeasTolerance {
			break
		}

		donor, recipient := -1, -1
		for _, i := range order {
			if w[i] > c.WMin+FeasTolerance {
				donor = i
				break
			}
		}
		for k := len(order) - 1; k >= 0; k-- {
			i := order[k]
			if w[i] < c.WMax-FeasTolerance {
				recipient = i
				break
			}
		}
		if donor < 0 || recipient < 0 || donor == recipient {
			break
		}
		if returns[recipient] <= returns[donor] {
			// No transfer can raise the portfolio return further.
			break
		}

		step := ReturnRepairStep
		if headroom := w[donor] - c.WMin; headroom < step {
			step = headroom
		}
		if headroom := c.WMax - w[recipient]; headroom < step {
			step = headroom
		}
		w[donor] -= step
		w[recipient] += step
	}
	c.renormalize(w)
}

// repairVolCeiling walks the weights toward the global minimum-variance
// direction with fixed gradient steps, re-clamping and renormalizing after
// each one, until the volatility ceiling holds or the iteration budget runs
// out. Best effort: it is not guaranteed to land exactly on the boundary.
func (c Constraints) repairVolCeiling(w []float64, cov [][]float64) {
	covDense := denseFromRows(cov)
	grad := make([]float64, len(w))
	for iter := 0; iter < VolRepairMaxIter; iter++ {
		vol := math.Sqrt(PortfolioVariance(w, cov))
		if vol <= c.VolMax+FeasTolerance {
			return
		}
		gradVariance(grad, w, covDense)
		for i := range w {
			w[i] -= VolRepairStep * grad[i]
		}
		clampBox(w, c.WMin, c.WMax)
		c.renormalize(w)
	}
}
