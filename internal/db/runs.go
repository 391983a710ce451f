package db

import (
	"encoding/json"
	"strings"
	"time"
)

// RunRecord is one persisted optimization outcome, kept for history views.
type RunRecord struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Strategy       string    `json:"strategy"`
	Tickers        []string  `json:"tickers"`
	ExpectedReturn float64   `json:"expected_return"`
	Volatility     float64   `json:"volatility"`
	Sharpe         float64   `json:"sharpe"`
	Status         string    `json:"status"`
	Weights        []float64 `json:"weights"`
}

// SaveRun appends one optimization outcome to the run history.
func (d *DB) SaveRun(run RunRecord) error {
	weights, err := json.Marshal(run.Weights)
	if err != nil {
		return err
	}
	_, err = d.sql.Exec(`
		INSERT INTO optimization_runs
			(timestamp, strategy, tickers, expected_return, volatility, sharpe, status, weights)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Timestamp.UTC().Format(time.RFC3339Nano), run.Strategy,
		strings.Join(run.Tickers, ","), run.ExpectedReturn, run.Volatility,
		run.Sharpe, run.Status, string(weights))
	return err
}

// RecentRuns returns up to limit optimization outcomes, newest first.
func (d *DB) RecentRuns(limit int) ([]RunRecord, error) {
	rows, err := d.sql.Query(`
		SELECT id, timestamp, strategy, tickers, expected_return, volatility, sharpe, status, weights
		FROM optimization_runs ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var run RunRecord
		var ts, tickers, weights string
		if err := rows.Scan(&run.ID, &ts, &run.Strategy, &tickers,
			&run.ExpectedReturn, &run.Volatility, &run.Sharpe, &run.Status, &weights); err != nil {
			return nil, err
		}
		run.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		if tickers != "" {
			run.Tickers = strings.Split(tickers, ",")
		}
		json.Unmarshal([]byte(weights), &run.Weights)
		out = append(out, run)
	}
	return out, rows.Err()
}
