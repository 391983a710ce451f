package portfolio

import (
	"errors"
	"fmt"
	"math"
)

// Strategy is the closed set of portfolio selection rules. It is parsed once
// at the API boundary so the solver layer dispatches on a typed value, never
// on a raw string.
type Strategy int

const (
	// StrategyMaxSharpe maximizes (return - riskFreeRate) / volatility over a
	// sampled frontier.
	StrategyMaxSharpe Strategy = iota
	// StrategyMinRisk is the global minimum-variance portfolio.
	StrategyMinRisk
	// StrategyMaxReturn allocates greedily to the highest-return assets.
	StrategyMaxReturn
	// StrategyTargetReturn minimizes variance subject to a return floor.
	StrategyTargetReturn
	// StrategyTargetRisk maximizes return subject to a volatility ceiling.
	StrategyTargetRisk
	// StrategyKneePoint picks the frontier point of maximum perpendicular
	// distance from the frontier's chord.
	StrategyKneePoint
)

// ErrUnknownStrategy is returned for strategy names outside the closed set.
var ErrUnknownStrategy = errors.New("portfolio: unknown strategy")

var strategyNames = map[Strategy]string{
	StrategyMaxSharpe:    "max-sharpe",
	StrategyMinRisk:      "min-risk",
	StrategyMaxReturn:    "max-return",
	StrategyTargetReturn: "target-return",
	StrategyTargetRisk:   "target-risk",
	StrategyKneePoint:    "knee-point",
}

func (s Strategy) String() string {
	if name, ok := strategyNames[s]; ok {
		return name
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy maps a wire name onto the Strategy enum.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// SolveParams carries the strategy-specific knobs alongside the shared
// constraint set.
type SolveParams struct {
	Options
	RiskFreeRate float64
	TargetReturn float64
	TargetRisk   float64
	NumPoints    int
}

// Solve dispatches one optimization according to the strategy. The switch is
// exhaustive over the Strategy enum; an out-of-range value yields
// ErrUnknownStrategy.
func Solve(strategy Strategy, returns []float64, cov [][]float64, params SolveParams) (Result, error) {
	switch strategy {
	case StrategyMaxSharpe:
		return MaxSharpe(returns, cov, params.Options, params.RiskFreeRate, params.NumPoints)
	case StrategyMinRisk:
		opts := params.Options
		opts.RMin = math.Inf(-1)
		return MinVariance(returns, cov, opts)
	case StrategyMaxReturn:
		return MaxReturn(returns, cov, params.Options)
	case StrategyTargetReturn:
		opts := params.Options
		opts.RMin = params.TargetReturn
		return MinVariance(returns, cov, opts)
	case StrategyTargetRisk:
		return TargetRisk(returns, cov, params.Options, params.TargetRisk, params.NumPoints)
	case StrategyKneePoint:
		return KneePoint(returns, cov, params.Options, params.NumPoints)
	default:
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(strategy))
	}
}
