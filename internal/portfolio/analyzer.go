package portfolio

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/finsight/internal/datasource"
	"github.com/seenimoa/finsight/internal/report"
	"github.com/seenimoa/finsight/pkg/models"
)

// DefaultStart is the history start used when none is given.
var DefaultStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Params holds the annualisation inputs.
type Params struct {
	TradingDays  int     `mapstructure:"trading_days" yaml:"trading_days"`
	RiskFreeRate float64 `mapstructure:"risk_free_rate" yaml:"risk_free_rate"`
}

// DefaultParams returns 252 trading days and a 2% risk-free rate.
func DefaultParams() Params {
	return Params{TradingDays: 252, RiskFreeRate: 0.02}
}

// Result is the outcome of one analysis.
type Result struct {
	Metrics models.PortfolioMetrics `json:"metrics" yaml:"metrics"`
	Dates   []time.Time             `json:"dates" yaml:"dates"`
	Daily   []float64               `json:"daily_returns" yaml:"daily_returns"`
}

// Analyzer fetches prices, combines them with weights and reports metrics.
type Analyzer struct {
	source datasource.PriceSource
	sink   report.Sink
	params Params
	log    *zap.Logger
}

// NewAnalyzer wires an Analyzer. Zero-valued params take DefaultParams.
// A nil sink skips charting; a nil logger disables logging.
func NewAnalyzer(source datasource.PriceSource, sink report.Sink, params Params, log *zap.Logger) *Analyzer {
	if params == (Params{}) {
		params = DefaultParams()
	}
	if params.TradingDays <= 0 {
		params.TradingDays = DefaultParams().TradingDays
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{source: source, sink: sink, params: params, log: log}
}

// Analyze fetches adjusted closes for tickers from start (DefaultStart when
// zero), computes the weighted daily portfolio return and its annualised
// metrics, and renders the cumulative return chart.
func (a *Analyzer) Analyze(ctx context.Context, tickers []string, weights models.WeightVector, start time.Time) (*Result, error) {
	if start.IsZero() {
		start = DefaultStart
	}
	weights, err := NormalizeWeights(weights)
	if err != nil {
		return nil, err
	}
	if sum := weights.Sum(); math.Abs(sum-1) > 1e-6 {
		a.log.Warn("weights do not sum to 1", zap.Float64("sum", sum))
	}

	prices, err := a.source.AdjustedCloses(ctx, tickers, start)
	if err != nil {
		return nil, fmt.Errorf("fetch prices from %s: %w", a.source.Name(), err)
	}

	returns := DailyReturns(prices)
	daily, err := Combine(returns, weights)
	if err != nil {
		return nil, err
	}
	metrics, err := Annualize(daily, a.params.TradingDays, a.params.RiskFreeRate)
	if err != nil {
		return nil, err
	}

	a.log.Info("portfolio analysed",
		zap.Strings("tickers", prices.Columns),
		zap.Int("observations", len(daily)),
		zap.Float64("expected_return", metrics.ExpectedReturn),
		zap.Float64("volatility", metrics.Volatility),
		zap.Float64("sharpe_ratio", metrics.SharpeRatio),
	)

	if a.sink != nil {
		chart, err := report.CumulativeReturns(returns.Dates, daily)
		if err != nil {
			return nil, err
		}
		if err := a.sink.Render(ctx, chart); err != nil {
			return nil, fmt.Errorf("render chart: %w", err)
		}
	}

	return &Result{Metrics: metrics, Dates: returns.Dates, Daily: daily}, nil
}
