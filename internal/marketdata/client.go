package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Yahoo rejects requests without a browser-like agent.
const userAgent = "Mozilla/5.0 (compatible; optifolio/1.0)"

// minPricePoints is the shortest close series worth computing statistics on.
const minPricePoints = 30

// fetchConcurrency bounds parallel Yahoo requests during a multi-ticker fetch.
const fetchConcurrency = 4

// PriceStore is a persistent L2 cache for close price series.
type PriceStore interface {
	SavePrices(ticker, span string, closes []float64, fetchedAt time.Time) error
	LoadPrices(ticker, span string, maxAge time.Duration) ([]float64, bool)
}

type memEntry struct {
	closes  []float64
	expires time.Time
}

// Client fetches historical close prices from the Yahoo Finance chart API.
// Results are cached in memory (L1) and in the price store (L2); a
// singleflight.Group coalesces concurrent fetches for the same ticker+span.
type Client struct {
	http    *http.Client
	BaseURL string
	store   PriceStore
	ttl     time.Duration
	group   singleflight.Group

	mu  sync.RWMutex
	mem map[string]memEntry
}

// NewClient creates a market data client backed by the given price store.
// store may be nil, in which case only the in-memory cache is used.
func NewClient(store PriceStore, ttl time.Duration, timeout time.Duration) *Client {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		BaseURL: defaultBaseURL,
		store:   store,
		ttl:     ttl,
		mem:     make(map[string]memEntry),
	}
}

type yahooResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					// Closes arrive as a mix of numbers and JSON nulls.
					Close []any `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchHistory returns the close price series for one ticker over the given
// span ("1y", "2y", "5y", ...). Cached data within the TTL is returned
// without a network round trip.
func (c *Client) FetchHistory(ctx context.Context, ticker, span string) ([]float64, error) {
	key := ticker + ":" + span

	c.mu.RLock()
	e, ok := c.mem[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expires) {
		return e.closes, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetchHistory(ctx, ticker, span, key)
	})
	if err != nil {
		return nil, err
	}
	return result.([]float64), nil
}

// fetchHistory is the actual implementation behind singleflight.
func (c *Client) fetchHistory(ctx context.Context, ticker, span, key string) ([]float64, error) {
	if c.store != nil {
		if closes, ok := c.store.LoadPrices(ticker, span, c.ttl); ok {
			c.remember(key, closes)
			return closes, nil
		}
	}

	closes, err := c.fetchChart(ctx, ticker, span)
	if err != nil {
		return nil, err
	}

	c.remember(key, closes)
	if c.store != nil {
		if err := c.store.SavePrices(ticker, span, closes, time.Now()); err != nil {
			return closes, nil // cache write failure is not a fetch failure
		}
	}
	return closes, nil
}

func (c *Client) remember(key string, closes []float64) {
	c.mu.Lock()
	c.mem[key] = memEntry{closes: closes, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// fetchChart performs the HTTP request and filters the close series.
func (c *Client) fetchChart(ctx context.Context, ticker, span string) ([]float64, error) {
	url := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s", c.BaseURL, ticker, span)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", ticker, resp.StatusCode)
	}

	var yr yahooResponse
	if err := json.NewDecoder(resp.Body).Decode(&yr); err != nil {
		return nil, fmt.Errorf("decoding response for %s: %w", ticker, err)
	}
	if yr.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %s", ticker, yr.Chart.Error.Description)
	}
	if len(yr.Chart.Result) == 0 || len(yr.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no data for %s", ticker)
	}

	raw := yr.Chart.Result[0].Indicators.Quote[0].Close
	closes := make([]float64, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) || f <= 0 {
			continue
		}
		closes = append(closes, f)
	}
	if len(closes) < minPricePoints {
		return nil, fmt.Errorf("not enough price data for %s: %d points, need %d",
			ticker, len(closes), minPricePoints)
	}
	return closes, nil
}

// FetchAll fetches close series for every ticker concurrently. Tickers that
// fail are skipped and reported in the error map; progress, if non-nil, is
// called once per completed ticker.
func (c *Client) FetchAll(ctx context.Context, tickers []string, span string, progress func(string)) (map[string][]float64, map[string]error) {
	series := make(map[string][]float64, len(tickers))
	failed := make(map[string]error)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, ticker := range tickers {
		g.Go(func() error {
			closes, err := c.FetchHistory(ctx, ticker, span)
			mu.Lock()
			if err != nil {
				failed[ticker] = err
			} else {
				series[ticker] = closes
			}
			mu.Unlock()
			if progress != nil {
				if err != nil {
					progress(fmt.Sprintf("failed %s: %v", ticker, err))
				} else {
					progress(fmt.Sprintf("fetched %s (%d points)", ticker, len(closes)))
				}
			}
			return nil // per-ticker failures do not cancel the group
		})
	}
	g.Wait()
	return series, failed
}
