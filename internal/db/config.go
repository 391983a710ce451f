package db

import (
	"strconv"

	"optifolio/internal/config"
)

// LoadConfig reads config from SQLite. If empty, returns defaults.
func (d *DB) LoadConfig() *config.Config {
	cfg := config.Default()

	rows, err := d.sql.Query("SELECT key, value FROM config")
	if err != nil {
		return cfg
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		rows.Scan(&k, &v)
		m[k] = v
	}

	if len(m) == 0 {
		return cfg
	}

	if v, ok := m["risk_free_rate"]; ok {
		cfg.RiskFreeRate, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["max_weight"]; ok {
		cfg.MaxWeight, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["allow_short_selling"]; ok {
		cfg.AllowShortSelling, _ = strconv.ParseBool(v)
	}
	if v, ok := m["enforce_full_investment"]; ok {
		cfg.EnforceFullInvestment, _ = strconv.ParseBool(v)
	}
	if v, ok := m["max_leverage"]; ok {
		cfg.MaxLeverage, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["frontier_points"]; ok {
		cfg.FrontierPoints, _ = strconv.Atoi(v)
	}
	if v, ok := m["history_years"]; ok {
		cfg.HistoryYears, _ = strconv.Atoi(v)
	}
	if v, ok := m["periods_per_year"]; ok {
		cfg.PeriodsPerYear, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := m["max_tickers"]; ok {
		cfg.MaxTickers, _ = strconv.Atoi(v)
	}
	if v, ok := m["fetch_timeout_seconds"]; ok {
		cfg.FetchTimeoutSeconds, _ = strconv.Atoi(v)
	}
	if v, ok := m["price_cache_ttl_minutes"]; ok {
		cfg.PriceCacheTTLMinutes, _ = strconv.Atoi(v)
	}
	return cfg
}

// SaveConfig persists the full config as key/value rows.
func (d *DB) SaveConfig(cfg *config.Config) error {
	pairs := map[string]string{
		"risk_free_rate":          strconv.FormatFloat(cfg.RiskFreeRate, 'f', -1, 64),
		"max_weight":              strconv.FormatFloat(cfg.MaxWeight, 'f', -1, 64),
		"allow_short_selling":     strconv.FormatBool(cfg.AllowShortSelling),
		"enforce_full_investment": strconv.FormatBool(cfg.EnforceFullInvestment),
		"max_leverage":            strconv.FormatFloat(cfg.MaxLeverage, 'f', -1, 64),
		"frontier_points":         strconv.Itoa(cfg.FrontierPoints),
		"history_years":           strconv.Itoa(cfg.HistoryYears),
		"periods_per_year":        strconv.FormatFloat(cfg.PeriodsPerYear, 'f', -1, 64),
		"max_tickers":             strconv.Itoa(cfg.MaxTickers),
		"fetch_timeout_seconds":   strconv.Itoa(cfg.FetchTimeoutSeconds),
		"price_cache_ttl_minutes": strconv.Itoa(cfg.PriceCacheTTLMinutes),
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for k, v := range pairs {
		if _, err := tx.Exec(
			"INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			k, v,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
