package report

import (
	"context"
	"fmt"
	"time"

	"github.com/seenimoa/finsight/pkg/models"
	"github.com/seenimoa/finsight/pkg/utils"
)

// ErrMissingColumn is returned when a chart asks for a column the series
// does not have.
var ErrMissingColumn = fmt.Errorf("missing column")

// Series colours shared by the presets.
const (
	colorPrice  = "#1f77b4"
	colorSMA    = "#ff7f0e"
	colorEMA    = "#2ca02c"
	colorRSI    = "#9467bd"
	colorMACD   = "#1f77b4"
	colorSignal = "#d62728"
)

// FromSeries builds a chart over the named columns of series. Column names
// are price columns (Close, Open, ...) or computed indicators.
func FromSeries(series *models.PriceSeries, title, yLabel string, columns ...string) (Chart, error) {
	if series == nil {
		return Chart{}, fmt.Errorf("%w: no data", ErrMissingColumn)
	}
	c := Chart{
		Title:  title,
		XLabel: models.ColumnDate,
		YLabel: yLabel,
		Labels: dateLabels(series.Dates()),
	}
	for _, col := range columns {
		vals, ok := series.Column(col)
		if !ok {
			return Chart{}, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
		c.Series = append(c.Series, LineChartSeries{Name: col, Values: vals})
	}
	return c, nil
}

// Chart titles of the presets.
const (
	TitlePriceSMA = "Stock Closing Price With Moving Average"
	TitleRSI      = "Relative Strength Index (RSI)"
	TitlePriceEMA = "Stock Closing Price With Exponential Moving Average"
	TitleMACD     = "Moving Average Convergence Divergence"
)

// PriceWithSMA is Close with its simple moving average.
func PriceWithSMA(series *models.PriceSeries) (Chart, error) {
	c, err := FromSeries(series, TitlePriceSMA, "Price", models.ColumnClose, models.IndicatorSMA)
	if err != nil {
		return Chart{}, err
	}
	c.Series[0].Color, c.Series[1].Color = colorPrice, colorSMA
	return c, nil
}

// RSIChart is the relative strength index on its own axis.
func RSIChart(series *models.PriceSeries) (Chart, error) {
	c, err := FromSeries(series, TitleRSI, "RSI", models.IndicatorRSI)
	if err != nil {
		return Chart{}, err
	}
	c.Series[0].Color = colorRSI
	return c, nil
}

// PriceWithEMA is Close with its exponential moving average.
func PriceWithEMA(series *models.PriceSeries) (Chart, error) {
	c, err := FromSeries(series, TitlePriceEMA, "Price", models.ColumnClose, models.IndicatorEMA)
	if err != nil {
		return Chart{}, err
	}
	c.Series[0].Color, c.Series[1].Color = colorPrice, colorEMA
	return c, nil
}

// MACDChart is the MACD line with its signal line.
func MACDChart(series *models.PriceSeries) (Chart, error) {
	c, err := FromSeries(series, TitleMACD, "MACD",
		models.IndicatorMACD, models.IndicatorMACDSignal)
	if err != nil {
		return Chart{}, err
	}
	c.Series[0].Color, c.Series[1].Color = colorMACD, colorSignal
	return c, nil
}

// CumulativeReturnsTitle is the title of the portfolio returns chart.
const CumulativeReturnsTitle = "Portfolio Cumulative Returns"

// CumulativeReturns charts the running sum of daily returns.
func CumulativeReturns(dates []time.Time, daily []float64) (Chart, error) {
	if len(dates) != len(daily) {
		return Chart{}, fmt.Errorf("cumulative returns: %d dates for %d returns", len(dates), len(daily))
	}
	cum := make([]float64, len(daily))
	sum := 0.0
	for i, r := range daily {
		sum += r
		cum[i] = sum
	}
	return Chart{
		Title:  CumulativeReturnsTitle,
		XLabel: models.ColumnDate,
		YLabel: "Cumulative Return",
		Labels: dateLabels(dates),
		Series: []LineChartSeries{{Name: "Portfolio Growth", Values: cum, Color: colorPrice}},
	}, nil
}

// Plot builds a chart with build and hands it to sink.
func Plot(ctx context.Context, sink Sink, series *models.PriceSeries, build func(*models.PriceSeries) (Chart, error)) error {
	c, err := build(series)
	if err != nil {
		return err
	}
	return sink.Render(ctx, c)
}

func dateLabels(dates []time.Time) []string {
	labels := make([]string, len(dates))
	for i, d := range dates {
		labels[i] = utils.FormatDate(d)
	}
	return labels
}
