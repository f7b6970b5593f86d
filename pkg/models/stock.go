// Package models defines the core data structures shared by both finsight
// pipelines: price series, wide price tables, indicator columns, weight
// vectors and portfolio metrics.
package models

import (
	"fmt"
	"math"
	"time"
)

// OHLCV represents a single daily bar of price data.
type OHLCV struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
	AdjClose  float64   `json:"adj_close,omitempty"`
}

// Column names understood by PriceSeries.Column.
const (
	ColumnDate     = "Date"
	ColumnOpen     = "Open"
	ColumnHigh     = "High"
	ColumnLow      = "Low"
	ColumnClose    = "Close"
	ColumnAdjClose = "Adj Close"
	ColumnVolume   = "Volume"
)

// Indicator column names appended by the indicator calculator.
const (
	IndicatorSMA        = "SMA"
	IndicatorRSI        = "RSI"
	IndicatorEMA        = "EMA"
	IndicatorMACD       = "MACD"
	IndicatorMACDSignal = "MACD_Signal"
	IndicatorMACDHist   = "MACD_Hist"
)

// IndicatorSet maps an indicator name to a sequence aligned with the
// series' Close column. Warm-up positions hold NaN.
type IndicatorSet map[string][]float64

// PriceSeries is an ordered run of daily bars, ascending by date, plus any
// indicator columns computed over it.
type PriceSeries struct {
	Ticker     string       `json:"ticker,omitempty"`
	Bars       []OHLCV      `json:"bars"`
	Indicators IndicatorSet `json:"indicators,omitempty"`
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Closes extracts the Close column.
func (s *PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Dates returns the bar timestamps in order.
func (s *PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		dates[i] = b.Timestamp
	}
	return dates
}

// SetIndicator stores an indicator column. The column must be aligned with
// the bars.
func (s *PriceSeries) SetIndicator(name string, values []float64) error {
	if len(values) != len(s.Bars) {
		return fmt.Errorf("indicator %s has %d values, series has %d bars", name, len(values), len(s.Bars))
	}
	if s.Indicators == nil {
		s.Indicators = make(IndicatorSet)
	}
	s.Indicators[name] = values
	return nil
}

// Column returns a price or indicator column by name. The boolean is false
// when the series carries no such column.
func (s *PriceSeries) Column(name string) ([]float64, bool) {
	pick := func(f func(OHLCV) float64) []float64 {
		out := make([]float64, len(s.Bars))
		for i, b := range s.Bars {
			out[i] = f(b)
		}
		return out
	}

	switch name {
	case ColumnOpen:
		return pick(func(b OHLCV) float64 { return b.Open }), true
	case ColumnHigh:
		return pick(func(b OHLCV) float64 { return b.High }), true
	case ColumnLow:
		return pick(func(b OHLCV) float64 { return b.Low }), true
	case ColumnClose:
		return s.Closes(), true
	case ColumnAdjClose:
		return pick(func(b OHLCV) float64 { return b.AdjClose }), true
	case ColumnVolume:
		return pick(func(b OHLCV) float64 { return float64(b.Volume) }), true
	}

	vals, ok := s.Indicators[name]
	return vals, ok
}

// Clone returns a deep copy so callers can append columns without touching
// the original.
func (s *PriceSeries) Clone() *PriceSeries {
	out := &PriceSeries{
		Ticker: s.Ticker,
		Bars:   append([]OHLCV(nil), s.Bars...),
	}
	if s.Indicators != nil {
		out.Indicators = make(IndicatorSet, len(s.Indicators))
		for k, v := range s.Indicators {
			out.Indicators[k] = append([]float64(nil), v...)
		}
	}
	return out
}

// IsDefined reports whether v holds a usable number.
func IsDefined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
