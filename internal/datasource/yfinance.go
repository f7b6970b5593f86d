package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/finsight/pkg/models"
	"github.com/seenimoa/finsight/pkg/utils"
)

// DefaultYahooBaseURL is the Yahoo Finance chart API host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YFinanceConfig configures the Yahoo Finance source.
type YFinanceConfig struct {
	BaseURL   string        // default DefaultYahooBaseURL
	Timeout   time.Duration // per request, default 30s
	RateLimit int           // requests per second, default 5
}

// YFinance implements PriceSource using the Yahoo Finance chart API.
type YFinance struct {
	baseURL string
	client  *http.Client
	limiter *RateLimiter
	log     *zap.Logger
	now     func() time.Time
}

// NewYFinance creates a new Yahoo Finance data source.
func NewYFinance(cfg YFinanceConfig, log *zap.Logger) *YFinance {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultYahooBaseURL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &YFinance{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  NewHTTPClient(cfg.Timeout),
		limiter: NewRateLimiter(cfg.RateLimit, time.Second),
		log:     log,
		now:     time.Now,
	}
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol    string `json:"symbol"`
	Currency  string `json:"currency"`
	GmtOffset int64  `json:"gmtoffset"`
}

type yfIndicators struct {
	Quote    []yfOHLCV    `json:"quote"`
	AdjClose []yfAdjClose `json:"adjclose"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfAdjClose struct {
	AdjClose []*float64 `json:"adjclose"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// AdjustedCloses fetches each ticker in turn and assembles the table.
func (y *YFinance) AdjustedCloses(ctx context.Context, tickers []string, start time.Time) (*models.PriceTable, error) {
	syms, err := normalizeTickers(tickers)
	if err != nil {
		return nil, err
	}
	end := y.now()

	closes := make([]dailyCloses, len(syms))
	for i, sym := range syms {
		candles, err := y.GetHistoricalData(ctx, sym, start, end)
		if err != nil {
			return nil, err
		}
		closes[i] = adjustedByDay(candles)
		y.log.Debug("fetched price history",
			zap.String("source", y.Name()),
			zap.String("ticker", sym),
			zap.Int("bars", len(candles)),
		)
	}
	return assemble(syms, closes), nil
}

// GetHistoricalData returns daily candles from the Yahoo Finance chart API.
func (y *YFinance) GetHistoricalData(ctx context.Context, ticker string, from, to time.Time) ([]models.OHLCV, error) {
	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(
		"%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&includeAdjustedClose=true",
		y.baseURL, url.PathEscape(ticker), from.Unix(), to.Unix(),
	)

	body, _, err := doGet(ctx, y.client, endpoint, map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		var herr *ErrHTTP
		if errors.As(err, &herr) && herr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s: %w", ErrTickerNotFound, ticker, err)
		}
		return nil, fmt.Errorf("yfinance chart %s: %w", ticker, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yfinance chart: %w", err)
	}

	if resp.Chart.Error != nil {
		if strings.EqualFold(resp.Chart.Error.Code, "Not Found") {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
		}
		return nil, fmt.Errorf("yfinance chart error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Timestamp) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}

	return parseYFCandles(resp.Chart.Result[0]), nil
}

// --- Helpers ---

// parseYFCandles converts a chart result into daily bars. Timestamps are
// shifted into the exchange's time zone before truncating to the day.
func parseYFCandles(result yfChartResult) []models.OHLCV {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	q := result.Indicators.Quote[0]
	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	candles := make([]models.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := models.OHLCV{
			Timestamp: utils.DayOf(time.Unix(ts+result.Meta.GmtOffset, 0).UTC()),
			Open:      math.NaN(),
			High:      math.NaN(),
			Low:       math.NaN(),
			Close:     math.NaN(),
			AdjClose:  math.NaN(),
		}
		if i < len(q.Open) && q.Open[i] != nil {
			c.Open = *q.Open[i]
		}
		if i < len(q.High) && q.High[i] != nil {
			c.High = *q.High[i]
		}
		if i < len(q.Low) && q.Low[i] != nil {
			c.Low = *q.Low[i]
		}
		if i < len(q.Close) && q.Close[i] != nil {
			c.Close = *q.Close[i]
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		if i < len(adjCloses) && adjCloses[i] != nil {
			c.AdjClose = *adjCloses[i]
		}
		candles = append(candles, c)
	}
	return candles
}

// adjustedByDay keys the adjusted close by day, falling back to the raw
// close when Yahoo omits the adjusted value.
func adjustedByDay(candles []models.OHLCV) dailyCloses {
	out := make(dailyCloses, len(candles))
	for _, c := range candles {
		v := c.AdjClose
		if !models.IsDefined(v) {
			v = c.Close
		}
		if models.IsDefined(v) {
			out[c.Timestamp] = v
		}
	}
	return out
}
