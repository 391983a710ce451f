package portfolio

import (
	"math"
	"testing"
)

func TestComputeDerivedStats(t *testing.T) {
	d := ComputeDerivedStats(0.06, 0.10)

	if math.Abs(d.CI95Low-(0.06-1.96*0.10)) > 1e-12 {
		t.Errorf("ci95Low = %v", d.CI95Low)
	}
	if math.Abs(d.CI95High-(0.06+1.96*0.10)) > 1e-12 {
		t.Errorf("ci95High = %v", d.CI95High)
	}

	// Positive drift: the loss probability shrinks as the horizon grows.
	probs := []float64{d.ProbNeg1M, d.ProbNeg3M, d.ProbNeg1Y, d.ProbNeg2Y}
	for i := 1; i < len(probs); i++ {
		if probs[i] >= probs[i-1] {
			t.Errorf("probabilities should decrease with horizon: %v", probs)
		}
	}
	for i, p := range probs {
		if p < 0 || p > 1 {
			t.Errorf("prob[%d] = %v outside [0, 1]", i, p)
		}
	}
}

func TestComputeDerivedStats_ZeroReturn(t *testing.T) {
	d := ComputeDerivedStats(0, 0.10)
	for _, p := range []float64{d.ProbNeg1M, d.ProbNeg3M, d.ProbNeg1Y, d.ProbNeg2Y} {
		if math.Abs(p-0.5) > 1e-6 {
			t.Errorf("zero drift prob = %v, want 0.5", p)
		}
	}
}
