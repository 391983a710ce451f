package stats

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		want float64
	}{
		{"empty", nil, 0},
		{"single", []float64{42}, 42},
		{"five", []float64{1, 2, 3, 4, 5}, 3},
		{"negative", []float64{-10, -20, -30}, -20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mean(tt.x)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Mean(%v) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}
}

func TestStdDev_Population(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		want float64
	}{
		{"empty", nil, 0},
		{"constant", []float64{5, 5, 5}, 0},
		// Population stddev of {1..5}: sqrt(2), not the sample value sqrt(2.5).
		{"one to five", []float64{1, 2, 3, 4, 5}, math.Sqrt(2)},
		{"two values", []float64{0, 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StdDev(tt.x)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("StdDev(%v) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}
}

func TestCorrelation(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
		want float64
	}{
		{"perfect positive", []float64{1, 2, 3}, []float64{2, 4, 6}, 1},
		{"perfect negative", []float64{1, 2, 3}, []float64{3, 2, 1}, -1},
		{"zero variance x", []float64{1, 1, 1}, []float64{1, 2, 3}, 0},
		{"zero variance y", []float64{1, 2, 3}, []float64{7, 7, 7}, 0},
		{"length mismatch", []float64{1, 2, 3}, []float64{1, 2}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Correlation(tt.x, tt.y)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Correlation = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCorrelationMatrix_SymmetricUnitDiagonal(t *testing.T) {
	series := [][]float64{
		{0.01, 0.02, -0.01, 0.03},
		{0.02, 0.04, -0.02, 0.06},
		{0.05, -0.01, 0.02, 0.00},
	}
	corr := CorrelationMatrix(series)
	n := len(series)
	for i := 0; i < n; i++ {
		if corr[i][i] != 1 {
			t.Errorf("diagonal [%d][%d] = %v, want 1", i, i, corr[i][i])
		}
		for j := 0; j < n; j++ {
			if corr[i][j] != corr[j][i] {
				t.Errorf("asymmetric at [%d][%d]: %v vs %v", i, j, corr[i][j], corr[j][i])
			}
			if corr[i][j] < -1-1e-12 || corr[i][j] > 1+1e-12 {
				t.Errorf("entry [%d][%d] = %v outside [-1, 1]", i, j, corr[i][j])
			}
		}
	}
	// Series 0 and 1 are exact multiples.
	if math.Abs(corr[0][1]-1) > 1e-9 {
		t.Errorf("corr[0][1] = %v, want 1", corr[0][1])
	}
}

func TestRollingStdDev(t *testing.T) {
	t.Run("window three over five points", func(t *testing.T) {
		got := RollingStdDev([]float64{1, 2, 3, 4, 5}, 3)
		if len(got) != 3 {
			t.Fatalf("len = %d, want 3", len(got))
		}
		// Each 3-element window of consecutive integers has population
		// stddev sqrt(2/3).
		want := math.Sqrt(2.0 / 3.0)
		for i, v := range got {
			if math.Abs(v-want) > 1e-9 {
				t.Errorf("window %d stddev = %v, want %v", i, v, want)
			}
		}
	})
	t.Run("series shorter than window", func(t *testing.T) {
		if got := RollingStdDev([]float64{1, 2}, 3); len(got) != 0 {
			t.Errorf("want empty, got %v", got)
		}
	})
	t.Run("window below two", func(t *testing.T) {
		if got := RollingStdDev([]float64{1, 2, 3}, 1); len(got) != 0 {
			t.Errorf("want empty, got %v", got)
		}
	})
}

func TestLogReturns(t *testing.T) {
	got := LogReturns([]float64{100, 110, 99})
	want := []float64{math.Log(1.1), math.Log(0.9)}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("ret[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if LogReturns([]float64{100}) != nil {
		t.Error("single price should yield nil")
	}
}

func TestTrimToCommonLength_KeepsTail(t *testing.T) {
	series := [][]float64{
		{1, 2, 3, 4, 5},
		{10, 20, 30},
		{7, 8, 9, 10},
	}
	got := TrimToCommonLength(series)
	for i, s := range got {
		if len(s) != 3 {
			t.Errorf("series %d len = %d, want 3", i, len(s))
		}
	}
	if got[0][0] != 3 || got[2][0] != 8 {
		t.Errorf("trim should keep the most recent observations: %v", got)
	}
}

func TestAnnualizedVolatility_FallbackOnEmpty(t *testing.T) {
	vol, estimated := AnnualizedVolatility(nil, PeriodsPerYearDaily)
	if !estimated {
		t.Error("empty series should be flagged estimated")
	}
	if vol != FallbackVolatility {
		t.Errorf("vol = %v, want %v", vol, FallbackVolatility)
	}

	vol, estimated = AnnualizedVolatility([]float64{0.01, -0.01, 0.02}, PeriodsPerYearDaily)
	if estimated {
		t.Error("non-empty series should not be flagged estimated")
	}
	want := StdDev([]float64{0.01, -0.01, 0.02}) * math.Sqrt(PeriodsPerYearDaily)
	if math.Abs(vol-want) > 1e-12 {
		t.Errorf("vol = %v, want %v", vol, want)
	}
}

func TestNormalCDF_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		want float64
		eps  float64
	}{
		{"zero", 0, 0.5, 1e-6},
		{"far negative", -10, 0, 1e-7},
		{"far positive", 10, 1, 1e-7},
		{"one sigma", 1, 0.8413447461, 1e-6},
		{"minus one sigma", -1, 0.1586552539, 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalCDF(tt.x)
			if math.Abs(got-tt.want) > tt.eps {
				t.Errorf("NormalCDF(%v) = %v, want %v", tt.x, got, tt.want)
			}
		})
	}
}

// The rational approximation is contracted to stay within 1.5e-7 of the true
// CDF; gonum's exact implementation is the oracle.
func TestNormalCDF_ApproximationError(t *testing.T) {
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	for x := -6.0; x <= 6.0; x += 0.01 {
		got := NormalCDF(x)
		want := norm.CDF(x)
		if math.Abs(got-want) > 1.5e-7 {
			t.Fatalf("NormalCDF(%v) = %v, want %v (err %v)", x, got, want, math.Abs(got-want))
		}
	}
}

func TestProbNegativeReturn(t *testing.T) {
	// r=0 at any horizon is a coin flip.
	if got := ProbNegativeReturn(0, 0.2, 1); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("zero return prob = %v, want 0.5", got)
	}
	// Positive drift lowers the probability as the horizon grows.
	p1m := ProbNegativeReturn(0.08, 0.2, 1.0/12.0)
	p2y := ProbNegativeReturn(0.08, 0.2, 2)
	if p2y >= p1m {
		t.Errorf("prob should shrink with horizon: 1m=%v 2y=%v", p1m, p2y)
	}
	// Degenerate volatility collapses to the sign of the return.
	if got := ProbNegativeReturn(0.05, 0, 1); got != 0 {
		t.Errorf("positive return, zero vol: prob = %v, want 0", got)
	}
	if got := ProbNegativeReturn(-0.05, 0, 1); got != 1 {
		t.Errorf("negative return, zero vol: prob = %v, want 1", got)
	}
}
