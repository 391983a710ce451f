package portfolio

import (
	"math"
	"testing"
)

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

func TestProject_SimplexBudgetAndBounds(t *testing.T) {
	c := DefaultConstraints()
	tests := []struct {
		name string
		in   []float64
	}{
		{"over budget", []float64{0.8, 0.7, 0.5}},
		{"under budget", []float64{0.1, 0.1, 0.1}},
		{"negative entries", []float64{-0.5, 1.2, 0.4}},
		{"all zero", []float64{0, 0, 0}},
		{"one dominant", []float64{5, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Project(tt.in, nil, nil)
			if math.Abs(sum(got)-c.Budget) > 1e-9 {
				t.Errorf("sum = %v, want %v", sum(got), c.Budget)
			}
			for i, v := range got {
				if v < c.WMin-1e-9 || v > c.WMax+1e-9 {
					t.Errorf("w[%d] = %v outside [%v, %v]", i, v, c.WMin, c.WMax)
				}
			}
		})
	}
}

// The simplex projection must be the Euclidean-nearest feasible point. A fine
// grid over the 2-simplex is the brute-force oracle.
func TestProject_SimplexIsEuclideanNearest(t *testing.T) {
	c := DefaultConstraints()
	inputs := [][]float64{
		{0.9, 0.4},
		{1.5, -0.3},
		{0.1, 0.2},
		{-1, 2},
	}
	for _, in := range inputs {
		got := c.Project(in, nil, nil)
		gotDist := math.Hypot(got[0]-in[0], got[1]-in[1])

		bestDist := math.Inf(1)
		for w0 := 0.0; w0 <= 1.0; w0 += 0.0005 {
			d := math.Hypot(w0-in[0], (1-w0)-in[1])
			if d < bestDist {
				bestDist = d
			}
		}
		if gotDist > bestDist+1e-3 {
			t.Errorf("Project(%v) = %v at distance %v, brute force found %v", in, got, gotDist, bestDist)
		}
	}
}

func TestProject_IdempotentOnFeasible(t *testing.T) {
	c := DefaultConstraints()
	feasible := [][]float64{
		{0.5, 0.5},
		{1, 0},
		{0.2, 0.3, 0.5},
	}
	for _, w := range feasible {
		got := c.Project(w, nil, nil)
		for i := range w {
			if math.Abs(got[i]-w[i]) > 1e-9 {
				t.Errorf("Project(%v) = %v, want unchanged", w, got)
			}
		}
	}
}

func TestProject_ShortSellingBoundedSum(t *testing.T) {
	c := Constraints{
		WMin:                  -0.5,
		WMax:                  0.5,
		Budget:                1,
		EnforceFullInvestment: true,
		RMin:                  math.Inf(-1),
	}
	in := []float64{2, -1, 0.3, 0.1}
	got := c.Project(in, nil, nil)

	if math.Abs(sum(got)-1) > 1e-9 {
		t.Errorf("sum = %v, want 1", sum(got))
	}
	for i, v := range got {
		if v < c.WMin-1e-9 || v > c.WMax+1e-9 {
			t.Errorf("w[%d] = %v outside [%v, %v]", i, v, c.WMin, c.WMax)
		}
	}
}

func TestProject_LeverageBudget(t *testing.T) {
	c := DefaultConstraints()
	c.Budget = 2
	got := c.Project([]float64{0.5, 0.5, 0.5}, nil, nil)
	if math.Abs(sum(got)-2) > 1e-9 {
		t.Errorf("sum = %v, want 2", sum(got))
	}
}

func TestProject_NoFullInvestment_KeepsUnderBudget(t *testing.T) {
	c := DefaultConstraints()
	c.EnforceFullInvestment = false
	in := []float64{0.2, 0.3}
	got := c.Project(in, nil, nil)
	for i := range in {
		if math.Abs(got[i]-in[i]) > 1e-9 {
			t.Errorf("under-budget vector should be unchanged: %v -> %v", in, got)
		}
	}
}

func TestProject_ReturnFloorRepair(t *testing.T) {
	c := DefaultConstraints()
	returns := []float64{0.10, -0.05}

	t.Run("floor reachable by partial shift", func(t *testing.T) {
		c.RMin = 0.08
		got := c.Project([]float64{0, 1}, returns, nil)
		if ret := PortfolioReturn(got, returns); ret < c.RMin-1e-9 {
			t.Errorf("return = %v, below floor %v", ret, c.RMin)
		}
		if math.Abs(sum(got)-1) > 1e-9 {
			t.Errorf("sum = %v, want 1", sum(got))
		}
	})

	t.Run("floor at max return forces full concentration", func(t *testing.T) {
		// Only w=[1,0] attains a 0.10 floor; the final transfer is capped by
		// recipient headroom, so the repair lands on it exactly.
		c.RMin = 0.10
		got := c.Project([]float64{0.5, 0.5}, returns, nil)
		if math.Abs(got[0]-1) > 1e-9 || math.Abs(got[1]) > 1e-9 {
			t.Errorf("weights = %v, want [1 0]", got)
		}
	})
}

func TestProject_VolCeilingRepair(t *testing.T) {
	cov := [][]float64{{0.04, 0}, {0, 0.01}}

	t.Run("ceiling near boundary is met", func(t *testing.T) {
		c := DefaultConstraints()
		c.VolMax = 0.110
		// Uniform weights sit at vol ~0.1118, just above the ceiling; the
		// fixed-step repair reaches it well inside its iteration budget.
		got := c.Project([]float64{0.5, 0.5}, nil, cov)
		vol := math.Sqrt(PortfolioVariance(got, cov))
		if vol > c.VolMax+1e-6 {
			t.Errorf("vol = %v, want <= %v", vol, c.VolMax)
		}
		if math.Abs(sum(got)-1) > 1e-9 {
			t.Errorf("sum = %v, want 1", sum(got))
		}
	})

	t.Run("far ceiling improves best effort", func(t *testing.T) {
		c := DefaultConstraints()
		c.VolMax = 0.12
		// Concentrated in the risky asset the repair cannot reach the
		// ceiling within its cap, but it must move toward it.
		in := []float64{0.9, 0.1}
		before := math.Sqrt(PortfolioVariance(in, cov))
		got := c.Project(in, nil, cov)
		after := math.Sqrt(PortfolioVariance(got, cov))
		if after >= before {
			t.Errorf("vol did not improve: before %v, after %v", before, after)
		}
		if math.Abs(sum(got)-1) > 1e-9 {
			t.Errorf("sum = %v, want 1", sum(got))
		}
	})
}

func TestFeasible(t *testing.T) {
	c := DefaultConstraints()
	if !c.Feasible([]float64{0.5, 0.5}, nil, nil) {
		t.Error("uniform vector should be feasible")
	}
	if c.Feasible([]float64{0.7, 0.7}, nil, nil) {
		t.Error("over-budget vector should not be feasible")
	}
	if c.Feasible([]float64{1.2, -0.2}, nil, nil) {
		t.Error("out-of-box vector should not be feasible")
	}
}
