package models

import (
	"math"
	"sort"
)

// WeightVector maps a ticker (or asset column) to its portfolio weight.
type WeightVector map[string]float64

// Tickers returns the keys in sorted order.
func (w WeightVector) Tickers() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sum returns the total weight.
func (w WeightVector) Sum() float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum
}

// Metric keys of PortfolioMetrics.AsMap.
const (
	MetricExpectedReturn = "Expected Return"
	MetricVolatility     = "Volatility"
	MetricSharpeRatio    = "Sharpe Ratio"
)

// PortfolioMetrics holds annualised portfolio statistics.
type PortfolioMetrics struct {
	ExpectedReturn float64 `json:"Expected Return" yaml:"Expected Return"`
	Volatility     float64 `json:"Volatility"      yaml:"Volatility"`
	SharpeRatio    float64 `json:"Sharpe Ratio"    yaml:"Sharpe Ratio"`
}

// AsMap returns the metrics keyed by their display names.
func (m PortfolioMetrics) AsMap() map[string]float64 {
	return map[string]float64{
		MetricExpectedReturn: m.ExpectedReturn,
		MetricVolatility:     m.Volatility,
		MetricSharpeRatio:    m.SharpeRatio,
	}
}

// Finite reports whether every metric is a finite number.
func (m PortfolioMetrics) Finite() bool {
	for _, v := range []float64{m.ExpectedReturn, m.Volatility, m.SharpeRatio} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
