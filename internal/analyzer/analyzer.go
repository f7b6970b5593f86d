// Package analyzer runs offline analysis of a single price file: load,
// compute technical indicators, chart them, and optimise a portfolio over
// the file's price columns.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/finsight/internal/analysis/technical"
	"github.com/seenimoa/finsight/internal/loader"
	"github.com/seenimoa/finsight/internal/optimizer"
	"github.com/seenimoa/finsight/internal/report"
	"github.com/seenimoa/finsight/pkg/models"
)

// ErrDataNotLoaded is returned when indicators are requested before
// RetrieveData has succeeded.
var ErrDataNotLoaded = fmt.Errorf("data not loaded: call RetrieveData first")

// Config selects the file, date window and calculation parameters.
type Config struct {
	DataPath     string
	Start        time.Time
	End          time.Time
	Indicators   technical.Params
	Optimizer    optimizer.Params
	AssetColumns []string // empty means every column except Volume
}

// FinancialAnalyzer holds the loaded series between calls.
type FinancialAnalyzer struct {
	cfg    Config
	loader *loader.Loader
	opt    *optimizer.Optimizer
	sink   report.Sink
	log    *zap.Logger

	data *models.PriceSeries
}

// New creates a FinancialAnalyzer. Charts go to sink; a nil logger
// disables logging. Zero-valued Indicators or Optimizer params take their
// defaults, including the 2% risk-free rate.
func New(cfg Config, sink report.Sink, log *zap.Logger) *FinancialAnalyzer {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Indicators == (technical.Params{}) {
		cfg.Indicators = technical.DefaultParams()
	}
	if cfg.Optimizer == (optimizer.Params{}) {
		cfg.Optimizer = optimizer.DefaultParams()
	}
	return &FinancialAnalyzer{
		cfg:    cfg,
		loader: loader.New(log),
		opt:    optimizer.New(cfg.Optimizer, log),
		sink:   sink,
		log:    log,
	}
}

// Data returns the loaded series, or nil before RetrieveData.
func (a *FinancialAnalyzer) Data() *models.PriceSeries { return a.data }

// RetrieveData loads the configured file, filtered to [Start, End] when
// both are set, and keeps it for CalculateIndicators.
func (a *FinancialAnalyzer) RetrieveData() (*models.PriceSeries, error) {
	series, err := a.loader.LoadSeries(a.cfg.DataPath, loader.Options{Start: a.cfg.Start, End: a.cfg.End})
	if err != nil {
		return nil, err
	}
	a.data = series
	a.log.Info("data retrieved", zap.String("path", a.cfg.DataPath), zap.Int("rows", series.Len()))
	return series, nil
}

// CalculateIndicators appends SMA, RSI, EMA and the MACD family to the
// loaded series and returns it.
func (a *FinancialAnalyzer) CalculateIndicators() (*models.PriceSeries, error) {
	if a.data == nil {
		return nil, ErrDataNotLoaded
	}
	if err := technical.Compute(a.data, a.cfg.Indicators); err != nil {
		return nil, fmt.Errorf("calculate indicators: %w", err)
	}
	a.log.Debug("indicators calculated",
		zap.Int("sma", a.cfg.Indicators.SMAPeriod),
		zap.Int("rsi", a.cfg.Indicators.RSIPeriod),
		zap.Int("ema", a.cfg.Indicators.EMAPeriod),
	)
	return a.data, nil
}

// PlotStockData charts Close with its SMA.
func (a *FinancialAnalyzer) PlotStockData(ctx context.Context, data *models.PriceSeries) error {
	return report.Plot(ctx, a.sink, data, report.PriceWithSMA)
}

// PlotRSI charts the RSI column.
func (a *FinancialAnalyzer) PlotRSI(ctx context.Context, data *models.PriceSeries) error {
	return report.Plot(ctx, a.sink, data, report.RSIChart)
}

// PlotEMA charts Close with its EMA.
func (a *FinancialAnalyzer) PlotEMA(ctx context.Context, data *models.PriceSeries) error {
	return report.Plot(ctx, a.sink, data, report.PriceWithEMA)
}

// PlotMACD charts MACD with its signal line.
func (a *FinancialAnalyzer) PlotMACD(ctx context.Context, data *models.PriceSeries) error {
	return report.Plot(ctx, a.sink, data, report.MACDChart)
}

// PlotAll renders the four indicator charts in order, stopping at the
// first failure.
func (a *FinancialAnalyzer) PlotAll(ctx context.Context, data *models.PriceSeries) error {
	for _, plot := range []func(context.Context, *models.PriceSeries) error{
		a.PlotStockData, a.PlotRSI, a.PlotEMA, a.PlotMACD,
	} {
		if err := plot(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// OptimizeFile reloads path independently of the analyzer state and
// returns the cleaned max-Sharpe weights over its asset columns together
// with the portfolio's performance.
func (a *FinancialAnalyzer) OptimizeFile(path string, start, end time.Time) (*optimizer.Result, error) {
	table, err := a.loader.LoadTable(path, loader.Options{Start: start, End: end})
	if err != nil {
		return nil, err
	}
	cols, err := optimizer.AssetColumns(table, a.cfg.AssetColumns)
	if err != nil {
		return nil, err
	}
	prices, err := table.Select(cols...)
	if err != nil {
		return nil, err
	}
	return a.opt.OptimizePrices(prices)
}

// PortfolioWeights returns the cleaned max-Sharpe weights of the asset
// columns in path.
func (a *FinancialAnalyzer) PortfolioWeights(path string, start, end time.Time) (models.WeightVector, error) {
	res, err := a.OptimizeFile(path, start, end)
	if err != nil {
		return nil, err
	}
	return res.Weights, nil
}

// PortfolioPerformance optimises over the daily returns of the series'
// Close column and reports the optimised portfolio's expected return,
// volatility and Sharpe ratio.
func (a *FinancialAnalyzer) PortfolioPerformance(data *models.PriceSeries) (models.PortfolioMetrics, error) {
	if data == nil {
		return models.PortfolioMetrics{}, ErrDataNotLoaded
	}
	prices := models.NewPriceTable(models.ColumnClose)
	for _, b := range data.Bars {
		prices.AppendRow(b.Timestamp, map[string]float64{models.ColumnClose: b.Close})
	}
	res, err := a.opt.OptimizeReturns(prices.PctChange().DropNaN())
	if err != nil {
		return models.PortfolioMetrics{}, err
	}
	return res.Performance, nil
}
