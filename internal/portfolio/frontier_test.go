package portfolio

import (
	"math"
	"testing"
)

func testUniverse() ([]float64, [][]float64) {
	returns := []float64{0.08, 0.05, 0.11}
	cov := BuildCovarianceMatrix(
		[]float64{0.20, 0.10, 0.30},
		[][]float64{
			{1, 0.2, 0.4},
			{0.2, 1, 0.1},
			{0.4, 0.1, 1},
		},
	)
	return returns, cov
}

func TestEfficientFrontier_ShapeAndAnchors(t *testing.T) {
	returns, cov := testUniverse()
	opts := Options{Constraints: DefaultConstraints()}

	frontier, err := EfficientFrontier(returns, cov, opts, 9)
	if err != nil {
		t.Fatalf("EfficientFrontier: %v", err)
	}
	if len(frontier) != 9 {
		t.Fatalf("len = %d, want 9", len(frontier))
	}

	// First point is the global minimum-variance portfolio.
	gmvOpts := opts
	gmvOpts.RMin = math.Inf(-1)
	gmv, err := MinVariance(returns, cov, gmvOpts)
	if err != nil {
		t.Fatalf("MinVariance: %v", err)
	}
	if math.Abs(frontier[0].Volatility-gmv.Volatility) > 1e-12 {
		t.Errorf("first point vol = %v, want GMV vol %v", frontier[0].Volatility, gmv.Volatility)
	}

	for i, p := range frontier {
		if math.Abs(sum(p.Weights)-1) > 1e-9 {
			t.Errorf("point %d: sum = %v, want 1", i, sum(p.Weights))
		}
	}
}

// With a well-conditioned covariance matrix the frontier's volatility is
// non-decreasing in the target return. The repair loop's 0.01 weight
// granularity allows tiny local inversions, hence the slack.
func TestEfficientFrontier_MonotoneVolatility(t *testing.T) {
	returns, cov := testUniverse()
	opts := Options{Constraints: DefaultConstraints()}

	frontier, err := EfficientFrontier(returns, cov, opts, 9)
	if err != nil {
		t.Fatalf("EfficientFrontier: %v", err)
	}
	for i := 1; i < len(frontier); i++ {
		if frontier[i].Volatility < frontier[i-1].Volatility-5e-3 {
			t.Errorf("volatility decreased at %d: %v -> %v",
				i, frontier[i-1].Volatility, frontier[i].Volatility)
		}
	}
}

func TestMaxSharpe_BeatsEveryFrontierPoint(t *testing.T) {
	returns, cov := testUniverse()
	opts := Options{Constraints: DefaultConstraints()}
	const riskFree = 0.02

	res, err := MaxSharpe(returns, cov, opts, riskFree, 50)
	if err != nil {
		t.Fatalf("MaxSharpe: %v", err)
	}
	frontier, err := EfficientFrontier(returns, cov, opts, 50)
	if err != nil {
		t.Fatalf("EfficientFrontier: %v", err)
	}

	best := res.Sharpe(riskFree)
	for i, p := range frontier {
		if p.Volatility <= 0 {
			continue
		}
		sharpe := (p.Return - riskFree) / p.Volatility
		if sharpe > best+1e-12 {
			t.Errorf("frontier point %d has sharpe %v > selected %v", i, sharpe, best)
		}
	}
}

func TestKneeIndex_PicksElbow(t *testing.T) {
	// An L-shaped frontier: steep gain first, flat after. The elbow is the
	// middle point.
	frontier := []FrontierPoint{
		{Volatility: 0.10, Return: 0.02},
		{Volatility: 0.11, Return: 0.08},
		{Volatility: 0.30, Return: 0.09},
	}
	if got := kneeIndex(frontier); got != 1 {
		t.Errorf("kneeIndex = %d, want 1", got)
	}
}

func TestKneeIndex_Degenerate(t *testing.T) {
	if got := kneeIndex(nil); got != 0 {
		t.Errorf("empty frontier: %d, want 0", got)
	}
	two := []FrontierPoint{{Volatility: 0.1}, {Volatility: 0.2}}
	if got := kneeIndex(two); got != 0 {
		t.Errorf("two points: %d, want 0", got)
	}
}

func TestKneePoint_ReturnsFrontierPortfolio(t *testing.T) {
	returns, cov := testUniverse()
	opts := Options{Constraints: DefaultConstraints()}

	res, err := KneePoint(returns, cov, opts, 50)
	if err != nil {
		t.Fatalf("KneePoint: %v", err)
	}
	if math.Abs(sum(res.Weights)-1) > 1e-9 {
		t.Errorf("sum = %v, want 1", sum(res.Weights))
	}
	if res.Volatility <= 0 {
		t.Errorf("volatility = %v, want > 0", res.Volatility)
	}
}

func TestMaxReturn_ClosedForm(t *testing.T) {
	returns, cov := testUniverse()

	t.Run("unconstrained goes all-in on best asset", func(t *testing.T) {
		opts := Options{Constraints: DefaultConstraints()}
		res, err := MaxReturn(returns, cov, opts)
		if err != nil {
			t.Fatalf("MaxReturn: %v", err)
		}
		want := []float64{0, 0, 1}
		for i := range want {
			if math.Abs(res.Weights[i]-want[i]) > 1e-12 {
				t.Errorf("weights = %v, want %v", res.Weights, want)
				break
			}
		}
		if math.Abs(res.Return-0.11) > 1e-12 {
			t.Errorf("return = %v, want 0.11", res.Return)
		}
	})

	t.Run("capped fills descending by return", func(t *testing.T) {
		opts := Options{Constraints: DefaultConstraints()}
		opts.WMax = 0.4
		res, err := MaxReturn(returns, cov, opts)
		if err != nil {
			t.Fatalf("MaxReturn: %v", err)
		}
		// Order by return: asset 2 (0.11), asset 0 (0.08), asset 1 (0.05).
		want := []float64{0.4, 0.2, 0.4}
		for i := range want {
			if math.Abs(res.Weights[i]-want[i]) > 1e-12 {
				t.Errorf("weights = %v, want %v", res.Weights, want)
				break
			}
		}
	})
}

func TestTargetRisk_SelectsHighestReturnUnderCeiling(t *testing.T) {
	returns, cov := testUniverse()
	opts := Options{Constraints: DefaultConstraints()}

	frontier, err := EfficientFrontier(returns, cov, opts, 50)
	if err != nil {
		t.Fatalf("EfficientFrontier: %v", err)
	}
	target := (frontier[0].Volatility + frontier[len(frontier)-1].Volatility) / 2

	res, err := TargetRisk(returns, cov, opts, target, 50)
	if err != nil {
		t.Fatalf("TargetRisk: %v", err)
	}
	if res.Volatility > target+1e-9 {
		t.Errorf("vol = %v, above target %v", res.Volatility, target)
	}
	for i, p := range frontier {
		if p.Volatility <= target+FeasTolerance && p.Return > res.Return+1e-12 {
			t.Errorf("frontier point %d (ret %v, vol %v) beats selection (ret %v)",
				i, p.Return, p.Volatility, res.Return)
		}
	}
}

func TestTargetRisk_FallsBackToMinVol(t *testing.T) {
	returns, cov := testUniverse()
	opts := Options{Constraints: DefaultConstraints()}

	// Ceiling below anything achievable: fall back to the least volatile
	// frontier point.
	res, err := TargetRisk(returns, cov, opts, 0.001, 50)
	if err != nil {
		t.Fatalf("TargetRisk: %v", err)
	}
	frontier, err := EfficientFrontier(returns, cov, opts, 50)
	if err != nil {
		t.Fatalf("EfficientFrontier: %v", err)
	}
	minVol := frontier[0].Volatility
	for _, p := range frontier {
		if p.Volatility < minVol {
			minVol = p.Volatility
		}
	}
	if math.Abs(res.Volatility-minVol) > 1e-12 {
		t.Errorf("fallback vol = %v, want min frontier vol %v", res.Volatility, minVol)
	}
}
