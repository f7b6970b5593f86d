// Package technical computes the technical indicators appended to a price
// series: SMA, EMA, RSI and MACD. The arithmetic is delegated to go-talib,
// a Go port of TA-Lib; this package aligns the outputs with the input and
// marks every position inside an indicator's warm-up window as NaN.
package technical

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"github.com/seenimoa/finsight/pkg/models"
)

// Params holds the indicator periods.
type Params struct {
	SMAPeriod  int `mapstructure:"sma_period"  yaml:"sma_period"`
	RSIPeriod  int `mapstructure:"rsi_period"  yaml:"rsi_period"`
	EMAPeriod  int `mapstructure:"ema_period"  yaml:"ema_period"`
	MACDFast   int `mapstructure:"macd_fast"   yaml:"macd_fast"`
	MACDSlow   int `mapstructure:"macd_slow"   yaml:"macd_slow"`
	MACDSignal int `mapstructure:"macd_signal" yaml:"macd_signal"`
}

// DefaultParams returns SMA(20), RSI(14), EMA(20), MACD(12,26,9).
func DefaultParams() Params {
	return Params{
		SMAPeriod:  20,
		RSIPeriod:  14,
		EMAPeriod:  20,
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
	}
}

// Validate checks that every period is usable.
func (p Params) Validate() error {
	switch {
	case p.SMAPeriod < 2:
		return fmt.Errorf("sma period must be >= 2, got %d", p.SMAPeriod)
	case p.RSIPeriod < 2:
		return fmt.Errorf("rsi period must be >= 2, got %d", p.RSIPeriod)
	case p.EMAPeriod < 2:
		return fmt.Errorf("ema period must be >= 2, got %d", p.EMAPeriod)
	case p.MACDFast < 2:
		return fmt.Errorf("macd fast period must be >= 2, got %d", p.MACDFast)
	case p.MACDSlow <= p.MACDFast:
		return fmt.Errorf("macd slow period (%d) must exceed fast period (%d)", p.MACDSlow, p.MACDFast)
	case p.MACDSignal < 1:
		return fmt.Errorf("macd signal period must be >= 1, got %d", p.MACDSignal)
	}
	return nil
}

// SMA returns the simple moving average of data. Indices below period-1 are NaN.
func SMA(data []float64, period int) []float64 {
	lookback := period - 1
	if period < 2 || len(data) <= lookback {
		return nanSlice(len(data))
	}
	return mask(talib.Sma(data, period), lookback)
}

// EMA returns the exponential moving average of data, seeded with the SMA
// of the first period values. Indices below period-1 are NaN.
func EMA(data []float64, period int) []float64 {
	lookback := period - 1
	if period < 2 || len(data) <= lookback {
		return nanSlice(len(data))
	}
	return mask(talib.Ema(data, period), lookback)
}

// RSI returns Wilder's Relative Strength Index (0–100). Indices below
// period are NaN.
func RSI(data []float64, period int) []float64 {
	lookback := period
	if period < 2 || len(data) <= lookback {
		return nanSlice(len(data))
	}
	return mask(talib.Rsi(data, period), lookback)
}

// MACDResult holds the three aligned MACD series.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACDLookback is the number of leading positions without a MACD value.
func MACDLookback(slow, signal int) int {
	return (slow - 1) + (signal - 1)
}

// MACD calculates the Moving Average Convergence Divergence line, its
// signal line and the histogram. All three are NaN before MACDLookback.
func MACD(data []float64, fast, slow, signal int) MACDResult {
	n := len(data)
	lookback := MACDLookback(slow, signal)
	if fast < 2 || slow <= fast || signal < 1 || n <= lookback {
		return MACDResult{MACD: nanSlice(n), Signal: nanSlice(n), Histogram: nanSlice(n)}
	}

	macd, sig, hist := talib.Macd(data, fast, slow, signal)
	return MACDResult{
		MACD:      mask(macd, lookback),
		Signal:    mask(sig, lookback),
		Histogram: mask(hist, lookback),
	}
}

// Compute appends SMA, RSI, EMA, MACD, MACD_Signal and MACD_Hist columns
// computed over the Close column of series.
func Compute(series *models.PriceSeries, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	closes := series.Closes()
	macd := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)

	columns := []struct {
		name   string
		values []float64
	}{
		{models.IndicatorSMA, SMA(closes, p.SMAPeriod)},
		{models.IndicatorRSI, RSI(closes, p.RSIPeriod)},
		{models.IndicatorEMA, EMA(closes, p.EMAPeriod)},
		{models.IndicatorMACD, macd.MACD},
		{models.IndicatorMACDSignal, macd.Signal},
		{models.IndicatorMACDHist, macd.Histogram},
	}
	for _, c := range columns {
		if err := series.SetIndicator(c.name, c.values); err != nil {
			return err
		}
	}
	return nil
}

// --- helper functions ---

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// mask copies vals and overwrites the first lookback positions with NaN.
func mask(vals []float64, lookback int) []float64 {
	out := make([]float64, len(vals))
	copy(out, vals)
	for i := 0; i < lookback && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}
