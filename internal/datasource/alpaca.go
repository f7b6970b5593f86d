package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"go.uber.org/zap"

	"github.com/seenimoa/finsight/pkg/models"
	"github.com/seenimoa/finsight/pkg/utils"
)

// AlpacaConfig configures the Alpaca market-data source.
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string // empty uses the client default
	Feed      string // "iex" or "sip"; empty uses the account default
}

// barsClient is the part of the Alpaca market-data client used here.
type barsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// Alpaca implements PriceSource using Alpaca's v2 daily bars with
// split and dividend adjustment.
type Alpaca struct {
	client barsClient
	feed   string
	log    *zap.Logger
	now    func() time.Time
}

// NewAlpaca creates an Alpaca source. Both credentials are required.
func NewAlpaca(cfg AlpacaConfig, log *zap.Logger) (*Alpaca, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: alpaca api key and secret are required", ErrNotSupported)
	}
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
		BaseURL:   cfg.BaseURL,
	})
	return newAlpaca(client, cfg.Feed, log), nil
}

func newAlpaca(client barsClient, feed string, log *zap.Logger) *Alpaca {
	if log == nil {
		log = zap.NewNop()
	}
	return &Alpaca{client: client, feed: feed, log: log, now: time.Now}
}

// Name returns the data source name.
func (a *Alpaca) Name() string { return "Alpaca" }

// AdjustedCloses fetches all tickers in one multi-symbol request.
func (a *Alpaca) AdjustedCloses(ctx context.Context, tickers []string, start time.Time) (*models.PriceTable, error) {
	syms, err := normalizeTickers(tickers)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.All,
		Start:      start,
		End:        a.now(),
	}
	if a.feed != "" {
		req.Feed = marketdata.Feed(a.feed)
	}

	bars, err := a.client.GetMultiBars(syms, req)
	if err != nil {
		return nil, fmt.Errorf("alpaca bars: %w", err)
	}

	closes := make([]dailyCloses, len(syms))
	for i, sym := range syms {
		b := bars[sym]
		if len(b) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, sym)
		}
		c := make(dailyCloses, len(b))
		for _, bar := range b {
			c[utils.DayOf(bar.Timestamp)] = bar.Close
		}
		closes[i] = c
		a.log.Debug("fetched price history",
			zap.String("source", a.Name()),
			zap.String("ticker", sym),
			zap.Int("bars", len(b)),
		)
	}
	return assemble(syms, closes), nil
}
