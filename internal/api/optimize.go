package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"optifolio/internal/config"
	"optifolio/internal/db"
	"optifolio/internal/logger"
	"optifolio/internal/portfolio"
	"optifolio/internal/stats"
)

// optimizeRequest is the shared request body of the optimize, frontier, and
// analyze endpoints. Assets come either as tickers (prices are fetched) or as
// explicit expected-return/volatility/correlation inputs.
type optimizeRequest struct {
	Tickers           []string    `json:"tickers"`
	ExpectedReturns   []float64   `json:"expectedReturns"`
	Volatilities      []float64   `json:"volatilities"`
	CorrelationMatrix [][]float64 `json:"correlationMatrix"`

	Strategy string `json:"strategy"`

	WMax                  *float64 `json:"wMax"`
	AllowShortSelling     *bool    `json:"allowShortSelling"`
	EnforceFullInvestment *bool    `json:"enforceFullInvestment"`
	MaxLeverage           *float64 `json:"maxLeverage"`
	VolMax                float64  `json:"volMax"`
	RiskFreeRate          *float64 `json:"riskFreeRate"`
	TargetReturn          *float64 `json:"targetReturn"`
	TargetRisk            *float64 `json:"targetRisk"`
	NumPoints             int      `json:"numPoints"`
}

type weightEntry struct {
	AssetIndex int     `json:"assetIndex"`
	Ticker     string  `json:"ticker"`
	Weight     float64 `json:"weight"`
	ExpReturn  float64 `json:"expReturn"`
	Volatility float64 `json:"volatility"`
}

type optimizeResponse struct {
	Weights        []weightEntry          `json:"weights"`
	ExpectedReturn float64                `json:"expectedReturn"`
	Volatility     float64                `json:"volatility"`
	SharpeRatio    float64                `json:"sharpeRatio"`
	Status         string                 `json:"status"`
	Success        bool                   `json:"success"`
	Stats          portfolio.DerivedStats `json:"stats"`
	Warnings       []string               `json:"warnings,omitempty"`
}

// validate checks the request-level bounds before any numeric work.
func (req *optimizeRequest) validate() error {
	if req.WMax != nil && (*req.WMax <= 0 || *req.WMax > 1) {
		return fmt.Errorf("wMax must be in (0, 1], got %v", *req.WMax)
	}
	if req.MaxLeverage != nil && (*req.MaxLeverage < 1 || *req.MaxLeverage > 3) {
		return fmt.Errorf("maxLeverage must be in [1, 3], got %v", *req.MaxLeverage)
	}
	if req.VolMax < 0 {
		return fmt.Errorf("volMax must be non-negative, got %v", req.VolMax)
	}
	if req.TargetRisk != nil && *req.TargetRisk <= 0 {
		return fmt.Errorf("targetRisk must be positive, got %v", *req.TargetRisk)
	}
	if req.TargetReturn != nil && (math.IsNaN(*req.TargetReturn) || math.IsInf(*req.TargetReturn, 0)) {
		return fmt.Errorf("targetReturn must be finite")
	}
	if req.NumPoints != 0 &&
		(req.NumPoints < portfolio.MinFrontierPoints || req.NumPoints > portfolio.MaxFrontierPoints) {
		return fmt.Errorf("numPoints must be in [%d, %d], got %d",
			portfolio.MinFrontierPoints, portfolio.MaxFrontierPoints, req.NumPoints)
	}
	return nil
}

// strategy parses the requested strategy, defaulting to max-sharpe.
func (req *optimizeRequest) strategy() (portfolio.Strategy, error) {
	name := req.Strategy
	if name == "" {
		name = "max-sharpe"
	}
	strat, err := portfolio.ParseStrategy(name)
	if err != nil {
		return 0, err
	}
	if strat == portfolio.StrategyTargetReturn && req.TargetReturn == nil {
		return 0, fmt.Errorf("strategy target-return requires targetReturn")
	}
	if strat == portfolio.StrategyTargetRisk && req.TargetRisk == nil {
		return 0, fmt.Errorf("strategy target-risk requires targetRisk")
	}
	return strat, nil
}

// constraints merges configured defaults with per-request overrides.
func (req *optimizeRequest) constraints(cfg config.Config) portfolio.Constraints {
	cons := cfg.Constraints()
	wMax := cons.WMax
	if req.WMax != nil {
		wMax = *req.WMax
	}
	short := cfg.AllowShortSelling
	if req.AllowShortSelling != nil {
		short = *req.AllowShortSelling
	}
	cons.WMax = wMax
	cons.WMin = 0
	if short {
		cons.WMin = -wMax
	}
	if req.MaxLeverage != nil {
		cons.Budget = *req.MaxLeverage
	}
	if req.EnforceFullInvestment != nil {
		cons.EnforceFullInvestment = *req.EnforceFullInvestment
	}
	cons.VolMax = req.VolMax
	return cons
}

// solveParams builds the strategy knobs from the request and config defaults.
func (req *optimizeRequest) solveParams(cfg config.Config) portfolio.SolveParams {
	params := portfolio.SolveParams{
		Options:      portfolio.Options{Constraints: req.constraints(cfg)},
		RiskFreeRate: cfg.RiskFreeRate,
		NumPoints:    cfg.FrontierPoints,
	}
	if req.RiskFreeRate != nil {
		params.RiskFreeRate = *req.RiskFreeRate
	}
	if req.TargetReturn != nil {
		params.TargetReturn = *req.TargetReturn
	}
	if req.TargetRisk != nil {
		params.TargetRisk = *req.TargetRisk
	}
	if req.NumPoints != 0 {
		params.NumPoints = req.NumPoints
	}
	return params
}

// buildUniverse assembles the aligned optimization inputs, either from the
// explicit vectors of the request or by fetching price history for the
// requested tickers. Tickers that fail to fetch are skipped with a warning.
func (s *Server) buildUniverse(ctx context.Context, cfg config.Config, req *optimizeRequest) (*portfolio.Universe, []string, error) {
	if len(req.ExpectedReturns) > 0 {
		u, err := universeFromVectors(req)
		return u, nil, err
	}

	tickers := normalizeTickers(req.Tickers)
	if len(tickers) < 2 {
		return nil, nil, fmt.Errorf("need at least 2 tickers, got %d", len(tickers))
	}
	if len(tickers) > cfg.MaxTickers {
		return nil, nil, fmt.Errorf("too many tickers: %d, max %d", len(tickers), cfg.MaxTickers)
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout(cfg)*2)
	defer cancel()
	series, failed := s.market.FetchAll(ctx, tickers, span(cfg.HistoryYears), nil)

	var warnings []string
	kept := tickers[:0]
	returnSeries := make([][]float64, 0, len(tickers))
	for _, ticker := range tickers {
		closes, ok := series[ticker]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("skipped %s: %v", ticker, failed[ticker]))
			continue
		}
		kept = append(kept, ticker)
		returnSeries = append(returnSeries, stats.LogReturns(closes))
	}
	sort.Strings(warnings)
	if len(kept) < 2 {
		return nil, warnings, fmt.Errorf("only %d of %d tickers have usable price data", len(kept), len(tickers))
	}
	for _, warning := range warnings {
		logger.Warn("API", warning)
	}
	return portfolio.PrepareUniverse(kept, returnSeries, cfg.PeriodsPerYear), warnings, nil
}

func normalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// universeFromVectors builds a Universe from explicit statistical inputs.
func universeFromVectors(req *optimizeRequest) (*portfolio.Universe, error) {
	n := len(req.ExpectedReturns)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 assets, got %d", n)
	}
	if len(req.Volatilities) != n {
		return nil, fmt.Errorf("volatilities length %d does not match %d assets", len(req.Volatilities), n)
	}
	if len(req.CorrelationMatrix) != n {
		return nil, fmt.Errorf("correlationMatrix must be %dx%d", n, n)
	}
	for i, row := range req.CorrelationMatrix {
		if len(row) != n {
			return nil, fmt.Errorf("correlationMatrix row %d has %d entries, want %d", i, len(row), n)
		}
	}
	for i, v := range req.Volatilities {
		if v < 0 {
			return nil, fmt.Errorf("volatility %d must be non-negative, got %v", i, v)
		}
	}

	tickers := req.Tickers
	if len(tickers) != n {
		tickers = make([]string, n)
		for i := range tickers {
			tickers[i] = fmt.Sprintf("ASSET%d", i+1)
		}
	}
	assetStats := make([]portfolio.AssetStats, n)
	for i := range assetStats {
		assetStats[i] = portfolio.AssetStats{
			Ticker:           tickers[i],
			AnnualReturn:     req.ExpectedReturns[i],
			AnnualVolatility: req.Volatilities[i],
		}
	}
	return &portfolio.Universe{
		Tickers:         tickers,
		ExpectedReturns: req.ExpectedReturns,
		Volatilities:    req.Volatilities,
		Correlation:     req.CorrelationMatrix,
		Covariance:      portfolio.BuildCovarianceMatrix(req.Volatilities, req.CorrelationMatrix),
		Stats:           assetStats,
	}, nil
}

// buildResponse shapes one optimization result for the wire.
func buildResponse(u *portfolio.Universe, res portfolio.Result, riskFreeRate float64, warnings []string) optimizeResponse {
	weights := make([]weightEntry, len(res.Weights))
	for i, w := range res.Weights {
		weights[i] = weightEntry{
			AssetIndex: i,
			Ticker:     u.Tickers[i],
			Weight:     w,
			ExpReturn:  u.ExpectedReturns[i],
			Volatility: u.Volatilities[i],
		}
	}
	return optimizeResponse{
		Weights:        weights,
		ExpectedReturn: res.Return,
		Volatility:     res.Volatility,
		SharpeRatio:    res.Sharpe(riskFreeRate),
		Status:         res.Status.String(),
		Success:        res.Success,
		Stats:          portfolio.ComputeDerivedStats(res.Return, res.Volatility),
		Warnings:       warnings,
	}
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, 400, err.Error())
		return
	}
	strat, err := req.strategy()
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	cfg := s.configSnapshot()
	u, warnings, err := s.buildUniverse(r.Context(), cfg, &req)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	params := req.solveParams(cfg)
	res, err := portfolio.Solve(strat, u.ExpectedReturns, u.Covariance, params)
	if err != nil {
		writeError(w, 422, err.Error())
		return
	}
	logger.Info("API", fmt.Sprintf("optimize %s: %d assets, ret=%.4f vol=%.4f (%s)",
		strat, len(u.Tickers), res.Return, res.Volatility, res.Status))
	if err := s.db.SaveRun(db.RunRecord{
		Timestamp:      time.Now().UTC(),
		Strategy:       strat.String(),
		Tickers:        u.Tickers,
		ExpectedReturn: res.Return,
		Volatility:     res.Volatility,
		Sharpe:         res.Sharpe(params.RiskFreeRate),
		Status:         res.Status.String(),
		Weights:        res.Weights,
	}); err != nil {
		logger.Warn("API", "save run: "+err.Error())
	}
	writeJSON(w, buildResponse(u, res, params.RiskFreeRate, warnings))
}
