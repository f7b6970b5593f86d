// Package datasource fetches daily price history over the network. Each
// source implements PriceSource and returns adjusted closes as a wide
// table with one column per ticker.
package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/seenimoa/finsight/pkg/models"
	"github.com/seenimoa/finsight/pkg/utils"
)

// PriceSource retrieves adjusted daily closes for a set of tickers.
type PriceSource interface {
	// Name returns the human-readable name of this data source.
	Name() string

	// AdjustedCloses returns one column per ticker, in the given order,
	// from start up to now. Dates are the union over all tickers; a ticker
	// with no bar on a date holds NaN there.
	AdjustedCloses(ctx context.Context, tickers []string, start time.Time) (*models.PriceTable, error)
}

// --- Sentinel errors ---

// ErrNotSupported is returned when a data source is not usable as configured.
var ErrNotSupported = fmt.Errorf("operation not supported by this data source")

// ErrTickerNotFound is returned when a ticker cannot be resolved.
var ErrTickerNotFound = fmt.Errorf("ticker not found")

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// NewHTTPClient returns an HTTP client with the given timeout (30s when
// zero).
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// doGet performs a GET request with the given URL and headers, returning the response body.
// The caller is responsible for closing the returned ReadCloser.
func doGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP GET %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, resp.StatusCode, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, resp.StatusCode, nil
}

// --- Table assembly ---

// dailyCloses is one ticker's adjusted close keyed by calendar day.
type dailyCloses map[time.Time]float64

// assemble builds the wide table from per-ticker closes. Column order
// follows tickers; dates are the sorted union.
func assemble(tickers []string, closes []dailyCloses) *models.PriceTable {
	seen := make(map[time.Time]struct{})
	for _, c := range closes {
		for d := range c {
			seen[d] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	table := models.NewPriceTable(tickers...)
	for _, d := range dates {
		row := make(map[string]float64, len(tickers))
		for i, t := range tickers {
			if v, ok := closes[i][d]; ok {
				row[t] = v
			}
		}
		table.AppendRow(d, row)
	}
	return table
}

// normalizeTickers upper-cases tickers and rejects an empty list or
// duplicates, which would collide as table columns.
func normalizeTickers(tickers []string) ([]string, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers given")
	}
	out := make([]string, len(tickers))
	seen := make(map[string]bool, len(tickers))
	for i, t := range tickers {
		n := utils.NormalizeTicker(t)
		if n == "" {
			return nil, fmt.Errorf("%w: empty ticker", ErrTickerNotFound)
		}
		if seen[n] {
			return nil, fmt.Errorf("duplicate ticker %s", n)
		}
		seen[n] = true
		out[i] = n
	}
	return out, nil
}

// --- Rate limiter ---

// RateLimiter provides simple token-bucket rate limiting.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter that allows maxTokens requests
// per refillRate duration.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()
		if rl.tokens > 0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// refill adds tokens based on elapsed time. Must be called with mu held.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed >= rl.refillRate {
		periods := int(elapsed / rl.refillRate)
		rl.tokens += periods
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = rl.lastRefill.Add(time.Duration(periods) * rl.refillRate)
	}
}
