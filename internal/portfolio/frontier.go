package portfolio

import (
	"math"
	"sort"
)

const (
	// DefaultFrontierPoints is the frontier resolution used when the caller
	// does not ask for a specific sample count. Sharpe selection needs at
	// least this many points to resolve the tangency region.
	DefaultFrontierPoints = 50
	// MinFrontierPoints and MaxFrontierPoints bound requested resolutions.
	MinFrontierPoints = 9
	MaxFrontierPoints = 200
)

// FrontierPoint is one sampled portfolio on the efficient frontier.
type FrontierPoint struct {
	Return     float64   `json:"return"`
	Volatility float64   `json:"volatility"`
	Weights    []float64 `json:"weights"`
	Status     Status    `json:"-"`
}

// EfficientFrontier samples numPoints minimum-variance portfolios at target
// returns linearly spaced between the global minimum-variance portfolio's
// return and the maximum achievable return max(r_i)*Budget. The first point
// is always the global minimum-variance portfolio itself.
func EfficientFrontier(returns []float64, cov [][]float64, opts Options, numPoints int) ([]FrontierPoint, error) {
	if numPoints < MinFrontierPoints {
		numPoints = DefaultFrontierPoints
	}
	if numPoints > MaxFrontierPoints {
		numPoints = MaxFrontierPoints
	}
	if opts.Budget == 0 {
		opts.Budget = 1
	}

	gmvOpts := opts
	gmvOpts.RMin = math.Inf(-1)
	gmv, err := MinVariance(returns, cov, gmvOpts)
	if err != nil {
		return nil, err
	}

	maxRet := returns[0]
	for _, r := range returns[1:] {
		if r > maxRet {
			maxRet = r
		}
	}
	maxRet *= opts.Budget

	points := make([]FrontierPoint, 0, numPoints)
	points = append(points, FrontierPoint{
		Return:     gmv.Return,
		Volatility: gmv.Volatility,
		Weights:    gmv.Weights,
		Status:     gmv.Status,
	})

	for i := 1; i < numPoints; i++ {
		target := gmv.Return + (maxRet-gmv.Return)*float64(i)/float64(numPoints-1)
		ptOpts := opts
		ptOpts.RMin = target
		res, err := MinVariance(returns, cov, ptOpts)
		if err != nil {
			return nil, err
		}
		points = append(points, FrontierPoint{
			Return:     res.Return,
			Volatility: res.Volatility,
			Weights:    res.Weights,
			Status:     res.Status,
		})
	}
	return points, nil
}

// MaxSharpe picks the frontier point maximizing (return - riskFreeRate) /
// volatility among points with positive volatility. The frontier is sampled
// at DefaultFrontierPoints or more for resolution.
func MaxSharpe(returns []float64, cov [][]float64, opts Options, riskFreeRate float64, numPoints int) (Result, error) {
	if numPoints < DefaultFrontierPoints {
		numPoints = DefaultFrontierPoints
	}
	frontier, err := EfficientFrontier(returns, cov, opts, numPoints)
	if err != nil {
		return Result{}, err
	}
	best := -1
	bestSharpe := math.Inf(-1)
	for i, p := range frontier {
		if p.Volatility <= 0 {
			continue
		}
		sharpe := (p.Return - riskFreeRate) / p.Volatility
		if sharpe > bestSharpe {
			bestSharpe = sharpe
			best = i
		}
	}
	if best < 0 {
		best = 0
	}
	return resultFromPoint(frontier[best]), nil
}

// KneePoint picks the frontier point with the maximum perpendicular distance
// from the chord joining the frontier's first and last points. That point
// approximates maximum curvature, a pragmatic risk/return compromise, without
// computing second derivatives.
func KneePoint(returns []float64, cov [][]float64, opts Options, numPoints int) (Result, error) {
	frontier, err := EfficientFrontier(returns, cov, opts, numPoints)
	if err != nil {
		return Result{}, err
	}
	best := kneeIndex(frontier)
	return resultFromPoint(frontier[best]), nil
}

// kneeIndex returns the index of the point furthest from the chord between
// the first and last frontier points, in (volatility, return) space.
func kneeIndex(frontier []FrontierPoint) int {
	if len(frontier) < 3 {
		return 0
	}
	x1, y1 := frontier[0].Volatility, frontier[0].Return
	x2, y2 := frontier[len(frontier)-1].Volatility, frontier[len(frontier)-1].Return
	norm := math.Hypot(y2-y1, x2-x1)
	if norm == 0 {
		return 0
	}
	best, bestDist := 0, -1.0
	for i, p := range frontier {
		d := math.Abs((y2-y1)*p.Volatility-(x2-x1)*p.Return+x2*y1-y2*x1) / norm
		if d > bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// MaxReturn is closed form: with an unconstraining upper bound the whole
// budget goes to the single highest-return asset; otherwise allocation fills
// assets in descending return order at WMax each until the budget runs out.
func MaxReturn(returns []float64, cov [][]float64, opts Options) (Result, error) {
	n := len(returns)
	if n < 2 {
		return Result{}, ErrTooFewAssets
	}
	if opts.Budget == 0 {
		opts.Budget = 1
	}

	w := make([]float64, n)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return returns[order[a]] > returns[order[b]]
	})

	if opts.WMax >= opts.Budget {
		w[order[0]] = opts.Budget
	} else {
		remaining := opts.Budget
		for _, i := range order {
			if remaining <= 0 {
				break
			}
			alloc := math.Min(opts.WMax, remaining)
			w[i] = alloc
			remaining -= alloc
		}
	}

	return Result{
		Weights:    w,
		Return:     PortfolioReturn(w, returns),
		Volatility: math.Sqrt(PortfolioVariance(w, cov)),
		Status:     StatusConverged,
		Success:    true,
	}, nil
}

// TargetRisk scans a frontier for the highest-return point whose volatility
// stays at or below the target, falling back to the minimum-volatility point
// when none qualifies.
func TargetRisk(returns []float64, cov [][]float64, opts Options, targetVol float64, numPoints int) (Result, error) {
	frontier, err := EfficientFrontier(returns, cov, opts, numPoints)
	if err != nil {
		return Result{}, err
	}

	best := -1
	for i, p := range frontier {
		if p.Volatility > targetVol+FeasTolerance {
			continue
		}
		if best < 0 || p.Return > frontier[best].Return {
			best = i
		}
	}
	if best < 0 {
		// Nothing under the ceiling: take the least volatile point.
		best = 0
		for i, p := range frontier {
			if p.Volatility < frontier[best].Volatility {
				best = i
			}
		}
	}
	return resultFromPoint(frontier[best]), nil
}

func resultFromPoint(p FrontierPoint) Result {
	return Result{
		Weights:    p.Weights,
		Return:     p.Return,
		Volatility: p.Volatility,
		Status:     p.Status,
		Success:    true,
	}
}
