package api

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"optifolio/internal/logger"
	"optifolio/internal/portfolio"
	"optifolio/internal/stats"
)

type frontierResponse struct {
	Points         []portfolio.FrontierPoint `json:"points"`
	MaxSharpeIndex int                       `json:"maxSharpeIndex"`
	GMVIndex       int                       `json:"gmvIndex"`
	Warnings       []string                  `json:"warnings,omitempty"`
}

// frontierView samples the frontier and locates the max-Sharpe and global
// minimum-variance points.
func frontierView(u *portfolio.Universe, params portfolio.SolveParams) (frontierResponse, error) {
	points, err := portfolio.EfficientFrontier(u.ExpectedReturns, u.Covariance, params.Options, params.NumPoints)
	if err != nil {
		return frontierResponse{}, err
	}

	bestSharpe := math.Inf(-1)
	sharpeIdx, gmvIdx := 0, 0
	for i, p := range points {
		if p.Volatility > 0 {
			if sharpe := (p.Return - params.RiskFreeRate) / p.Volatility; sharpe > bestSharpe {
				bestSharpe = sharpe
				sharpeIdx = i
			}
		}
		if p.Volatility < points[gmvIdx].Volatility {
			gmvIdx = i
		}
	}
	return frontierResponse{Points: points, MaxSharpeIndex: sharpeIdx, GMVIndex: gmvIdx}, nil
}

func (s *Server) handleFrontier(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, 400, err.Error())
		return
	}

	cfg := s.configSnapshot()
	u, warnings, err := s.buildUniverse(r.Context(), cfg, &req)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	resp, err := frontierView(u, req.solveParams(cfg))
	if err != nil {
		writeError(w, 422, err.Error())
		return
	}
	resp.Warnings = warnings
	logger.Info("API", fmt.Sprintf("frontier: %d assets, %d points", len(u.Tickers), len(resp.Points)))
	writeJSON(w, resp)
}

type analyzeResponse struct {
	Assets      []portfolio.AssetStats `json:"assets"`
	Correlation [][]float64            `json:"correlation"`
	Frontier    frontierResponse       `json:"frontier"`
	Portfolio   optimizeResponse       `json:"portfolio"`
	Strategy    string                 `json:"strategy"`
	Warnings    []string               `json:"warnings,omitempty"`
}

// handleAnalyze is the combined view: per-asset statistics, the efficient
// frontier, and the portfolio chosen by the requested strategy, all derived
// from fetched price history in one call.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if len(req.Tickers) == 0 {
		writeError(w, 400, "analyze requires tickers")
		return
	}
	req.ExpectedReturns = nil // analyze is always price-driven
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
	frontier, err := frontierView(u, params)
	if err != nil {
		writeError(w, 422, err.Error())
		return
	}
	res, err := portfolio.Solve(strat, u.ExpectedReturns, u.Covariance, params)
	if err != nil {
		writeError(w, 422, err.Error())
		return
	}

	logger.Info("API", fmt.Sprintf("analyze %s: %d assets", strat, len(u.Tickers)))
	writeJSON(w, analyzeResponse{
		Assets:      u.Stats,
		Correlation: u.Correlation,
		Frontier:    frontier,
		Portfolio:   buildResponse(u, res, params.RiskFreeRate, nil),
		Strategy:    strat.String(),
		Warnings:    warnings,
	})
}

type riskReturnRequest struct {
	Tickers []string `json:"tickers"`
	Window  int      `json:"window"`
}

type riskReturnAsset struct {
	Ticker            string    `json:"ticker"`
	AnnualReturn      float64   `json:"annualReturn"`
	AnnualVolatility  float64   `json:"annualVolatility"`
	RollingVolatility []float64 `json:"rollingVolatility"`
}

type riskReturnResponse struct {
	Window   int               `json:"window"`
	Assets   []riskReturnAsset `json:"assets"`
	Warnings []string          `json:"warnings,omitempty"`
}

const defaultRollingWindow = 30

// handleHistoryRiskReturn computes per-asset rolling annualized volatility
// over a trailing window of return observations.
func (s *Server) handleHistoryRiskReturn(w http.ResponseWriter, r *http.Request) {
	var req riskReturnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Window == 0 {
		req.Window = defaultRollingWindow
	}
	if req.Window < 2 || req.Window > 500 {
		writeError(w, 400, fmt.Sprintf("window must be in [2, 500], got %d", req.Window))
		return
	}

	cfg := s.configSnapshot()
	oreq := optimizeRequest{Tickers: req.Tickers}
	u, warnings, err := s.buildUniverse(r.Context(), cfg, &oreq)
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	// The universe carries annualized stats; the rolling series needs the
	// raw return series again, so recompute from the cached prices.
	series, _ := s.market.FetchAll(r.Context(), u.Tickers, span(cfg.HistoryYears), nil)

	scale := math.Sqrt(cfg.PeriodsPerYear)
	assets := make([]riskReturnAsset, 0, len(u.Tickers))
	for i, ticker := range u.Tickers {
		returns := stats.LogReturns(series[ticker])
		rolling := stats.RollingStdDev(returns, req.Window)
		for j := range rolling {
			rolling[j] *= scale
		}
		assets = append(assets, riskReturnAsset{
			Ticker:            ticker,
			AnnualReturn:      u.Stats[i].AnnualReturn,
			AnnualVolatility:  u.Stats[i].AnnualVolatility,
			RollingVolatility: rolling,
		})
	}
	writeJSON(w, riskReturnResponse{Window: req.Window, Assets: assets, Warnings: warnings})
}
