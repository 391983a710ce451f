package config

import (
	"math"
	"testing"
)

func TestDefault_Values(t *testing.T) {
	c := Default()
	if c == nil {
		t.Fatal("Default() returned nil")
	}
	if c.RiskFreeRate != 0.045 {
		t.Errorf("RiskFreeRate = %v, want 0.045", c.RiskFreeRate)
	}
	if c.MaxWeight != 1 {
		t.Errorf("MaxWeight = %v, want 1", c.MaxWeight)
	}
	if c.AllowShortSelling {
		t.Error("AllowShortSelling should default to false")
	}
	if !c.EnforceFullInvestment {
		t.Error("EnforceFullInvestment should default to true")
	}
	if c.MaxLeverage != 1 {
		t.Errorf("MaxLeverage = %v, want 1", c.MaxLeverage)
	}
	if c.FrontierPoints != 50 {
		t.Errorf("FrontierPoints = %v, want 50", c.FrontierPoints)
	}
	if c.PeriodsPerYear != 252 {
		t.Errorf("PeriodsPerYear = %v, want 252", c.PeriodsPerYear)
	}
	if c.MaxTickers != 20 {
		t.Errorf("MaxTickers = %v, want 20", c.MaxTickers)
	}
}

func TestConstraints_LongOnly(t *testing.T) {
	cons := Default().Constraints()
	if cons.WMin != 0 {
		t.Errorf("WMin = %v, want 0", cons.WMin)
	}
	if cons.WMax != 1 {
		t.Errorf("WMax = %v, want 1", cons.WMax)
	}
	if cons.Budget != 1 {
		t.Errorf("Budget = %v, want 1", cons.Budget)
	}
	if !cons.EnforceFullInvestment {
		t.Error("EnforceFullInvestment should carry over")
	}
	if !math.IsInf(cons.RMin, -1) {
		t.Errorf("RMin = %v, want -Inf", cons.RMin)
	}
}

func TestConstraints_ShortSellingMirrorsBound(t *testing.T) {
	c := Default()
	c.AllowShortSelling = true
	c.MaxWeight = 0.6
	cons := c.Constraints()
	if cons.WMin != -0.6 {
		t.Errorf("WMin = %v, want -0.6", cons.WMin)
	}
	if cons.WMax != 0.6 {
		t.Errorf("WMax = %v, want 0.6", cons.WMax)
	}
}
