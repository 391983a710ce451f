package config

import "optifolio/internal/portfolio"

// Config holds service-wide optimizer defaults (in-memory representation).
// Requests may override the per-call fields; persistence is handled by the
// internal/db package.
type Config struct {
	// RiskFreeRate is the annualized rate used in Sharpe ratios.
	RiskFreeRate float64 `json:"risk_free_rate"`
	// MaxWeight is the default per-asset upper bound.
	MaxWeight float64 `json:"max_weight"`
	// AllowShortSelling widens the lower bound to -MaxWeight.
	AllowShortSelling bool `json:"allow_short_selling"`
	// EnforceFullInvestment requires weights to sum to the budget exactly.
	EnforceFullInvestment bool `json:"enforce_full_investment"`
	// MaxLeverage is the default leverage budget (1.0 unlevered, up to 3.0).
	MaxLeverage float64 `json:"max_leverage"`
	// FrontierPoints is the default efficient-frontier resolution.
	FrontierPoints int `json:"frontier_points"`
	// HistoryYears is the default price history depth for analyze requests.
	HistoryYears int `json:"history_years"`
	// PeriodsPerYear annualizes return statistics: 252 for daily series,
	// 12 for monthly.
	PeriodsPerYear float64 `json:"periods_per_year"`
	// MaxTickers caps the universe size of one request.
	MaxTickers int `json:"max_tickers"`
	// FetchTimeoutSeconds bounds one upstream price request.
	FetchTimeoutSeconds int `json:"fetch_timeout_seconds"`
	// PriceCacheTTLMinutes is how long fetched price series stay fresh.
	PriceCacheTTLMinutes int `json:"price_cache_ttl_minutes"`
}

// Default returns a Config with sensible defaults: long-only, fully invested,
// unlevered, daily data.
func Default() *Config {
	return &Config{
		RiskFreeRate:          0.045,
		MaxWeight:             1,
		AllowShortSelling:     false,
		EnforceFullInvestment: true,
		MaxLeverage:           1,
		FrontierPoints:        portfolio.DefaultFrontierPoints,
		HistoryYears:          2,
		PeriodsPerYear:        252,
		MaxTickers:            20,
		FetchTimeoutSeconds:   15,
		PriceCacheTTLMinutes:  15,
	}
}

// Constraints converts the configured defaults into the optimizer's
// constraint set.
func (c *Config) Constraints() portfolio.Constraints {
	cons := portfolio.DefaultConstraints()
	cons.WMax = c.MaxWeight
	if c.AllowShortSelling {
		cons.WMin = -c.MaxWeight
	}
	cons.Budget = c.MaxLeverage
	cons.EnforceFullInvestment = c.EnforceFullInvestment
	return cons
}
