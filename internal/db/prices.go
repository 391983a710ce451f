package db

import (
	"encoding/json"
	"time"
)

// SavePrices caches a fetched close-price series for a ticker and range span
// (e.g. "2y").
func (d *DB) SavePrices(ticker, span string, closes []float64, fetchedAt time.Time) error {
	blob, err := json.Marshal(closes)
	if err != nil {
		return err
	}
	_, err = d.sql.Exec(`
		INSERT INTO price_history (ticker, span, fetched_at, closes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticker, span) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			closes = excluded.closes`,
		ticker, span, fetchedAt.UTC().Format(time.RFC3339Nano), string(blob))
	return err
}

// LoadPrices returns a cached close-price series no older than maxAge.
// The bool reports a fresh hit.
func (d *DB) LoadPrices(ticker, span string, maxAge time.Duration) ([]float64, bool) {
	var fetchedAt, blob string
	err := d.sql.QueryRow(
		"SELECT fetched_at, closes FROM price_history WHERE ticker = ? AND span = ?",
		ticker, span).Scan(&fetchedAt, &blob)
	if err != nil {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil || time.Since(t) > maxAge {
		return nil, false
	}
	var closes []float64
	if err := json.Unmarshal([]byte(blob), &closes); err != nil {
		return nil, false
	}
	return closes, true
}
