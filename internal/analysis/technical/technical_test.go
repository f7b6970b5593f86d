package technical

import (
	"math"
	"testing"
	"time"

	"github.com/seenimoa/finsight/pkg/models"
)

// makeCandles generates synthetic daily bars with a linear trend and a
// small alternating wiggle so that both gains and losses occur.
func makeCandles(n int, basePrice float64, trend float64) []models.OHLCV {
	candles := make([]models.OHLCV, n)
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	price := basePrice
	for i := 0; i < n; i++ {
		wiggle := 0.4
		if i%2 == 1 {
			wiggle = -0.4
		}
		price += trend
		close := price + wiggle
		candles[i] = models.OHLCV{
			Timestamp: base.AddDate(0, 0, i),
			Open:      close - trend,
			High:      close + 1,
			Low:       close - 1,
			Close:     close,
			Volume:    1000000 + int64(i*10000),
		}
	}
	return candles
}

func closesOf(candles []models.OHLCV) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func TestSMAWindowMean(t *testing.T) {
	closes := closesOf(makeCandles(60, 100, 0.7))
	vals := SMA(closes, 20)
	if len(vals) != len(closes) {
		t.Fatalf("expected %d SMA values, got %d", len(closes), len(vals))
	}
	for i := 0; i < 19; i++ {
		if !math.IsNaN(vals[i]) {
			t.Errorf("SMA[%d] should be NaN during warm-up, got %v", i, vals[i])
		}
	}
	for i := 19; i < len(closes); i++ {
		sum := 0.0
		for _, c := range closes[i-19 : i+1] {
			sum += c
		}
		if want := sum / 20; !approx(vals[i], want) {
			t.Errorf("SMA[%d] = %v, want %v", i, vals[i], want)
		}
	}
}

func TestSMASmallInput(t *testing.T) {
	data := []float64{10, 20, 30, 40, 50}
	vals := SMA(data, 3)
	// SMA(3) at index 2 = (10+20+30)/3 = 20
	if !approx(vals[2], 20) {
		t.Errorf("expected SMA[2]=20, got %.4f", vals[2])
	}
	// SMA(3) at index 4 = (30+40+50)/3 = 40
	if !approx(vals[4], 40) {
		t.Errorf("expected SMA[4]=40, got %.4f", vals[4])
	}
}

func TestIndicatorsInsufficientData(t *testing.T) {
	closes := closesOf(makeCandles(5, 100, 1))
	for name, vals := range map[string][]float64{
		"SMA": SMA(closes, 20),
		"EMA": EMA(closes, 20),
		"RSI": RSI(closes, 14),
	} {
		if len(vals) != 5 {
			t.Errorf("%s: expected aligned output of length 5, got %d", name, len(vals))
		}
		for i, v := range vals {
			if !math.IsNaN(v) {
				t.Errorf("%s[%d] = %v, want NaN", name, i, v)
			}
		}
	}
	m := MACD(closes, 12, 26, 9)
	if len(m.MACD) != 5 || !math.IsNaN(m.MACD[4]) {
		t.Errorf("MACD on short input should be all NaN, got %v", m.MACD)
	}
}

func TestEMASeedAndRecursion(t *testing.T) {
	closes := closesOf(makeCandles(40, 100, 0.5))
	vals := EMA(closes, 20)
	if !math.IsNaN(vals[18]) {
		t.Errorf("EMA[18] should be NaN, got %v", vals[18])
	}
	seed := 0.0
	for _, c := range closes[:20] {
		seed += c
	}
	seed /= 20
	if !approx(vals[19], seed) {
		t.Errorf("EMA seed = %v, want SMA of first 20 = %v", vals[19], seed)
	}
	k := 2.0 / 21.0
	for i := 20; i < len(closes); i++ {
		want := closes[i]*k + vals[i-1]*(1-k)
		if math.Abs(vals[i]-want) > 1e-9 {
			t.Errorf("EMA[%d] = %v, want %v", i, vals[i], want)
		}
	}
}

func TestRSI(t *testing.T) {
	closes := closesOf(makeCandles(50, 100, 1.5))
	vals := RSI(closes, 14)
	if len(vals) != 50 {
		t.Fatalf("expected 50 RSI values, got %d", len(vals))
	}
	for i := 0; i < 14; i++ {
		if !math.IsNaN(vals[i]) {
			t.Errorf("RSI[%d] should be NaN, got %v", i, vals[i])
		}
	}
	for i := 14; i < 50; i++ {
		if vals[i] < 0 || vals[i] > 100 {
			t.Errorf("RSI[%d] = %v out of [0,100]", i, vals[i])
		}
	}
	// In a strong uptrend RSI should be high.
	if latest := vals[len(vals)-1]; latest < 50 {
		t.Errorf("expected RSI > 50 in uptrend, got %.2f", latest)
	}
}

func TestRSIDowntrend(t *testing.T) {
	closes := closesOf(makeCandles(50, 200, -1.5))
	vals := RSI(closes, 14)
	if latest := vals[len(vals)-1]; latest > 50 {
		t.Errorf("expected RSI < 50 in downtrend, got %.2f", latest)
	}
}

func TestMACD(t *testing.T) {
	closes := closesOf(makeCandles(80, 100, 1))
	m := MACD(closes, 12, 26, 9)
	if len(m.MACD) != 80 || len(m.Signal) != 80 || len(m.Histogram) != 80 {
		t.Fatalf("MACD outputs must align with input")
	}
	lb := MACDLookback(26, 9)
	if lb != 33 {
		t.Fatalf("MACDLookback(26, 9) = %d, want 33", lb)
	}
	for i := 0; i < lb; i++ {
		if !math.IsNaN(m.MACD[i]) || !math.IsNaN(m.Signal[i]) || !math.IsNaN(m.Histogram[i]) {
			t.Fatalf("MACD outputs should be NaN at %d", i)
		}
	}
	for i := lb; i < 80; i++ {
		if math.IsNaN(m.MACD[i]) || math.IsNaN(m.Signal[i]) {
			t.Fatalf("MACD outputs should be defined at %d", i)
		}
		if math.Abs(m.Histogram[i]-(m.MACD[i]-m.Signal[i])) > 1e-9 {
			t.Errorf("hist[%d] = %v, want macd-signal = %v", i, m.Histogram[i], m.MACD[i]-m.Signal[i])
		}
	}
	// In uptrend MACD line should be positive.
	if m.MACD[79] <= 0 {
		t.Errorf("expected positive MACD line in uptrend, got %.4f", m.MACD[79])
	}
}

func TestComputeAppendsColumns(t *testing.T) {
	series := &models.PriceSeries{Ticker: "AAPL", Bars: makeCandles(100, 100, 0.2)}
	if err := Compute(series, DefaultParams()); err != nil {
		t.Fatalf("Compute error: %v", err)
	}
	for _, name := range []string{
		models.IndicatorSMA, models.IndicatorRSI, models.IndicatorEMA,
		models.IndicatorMACD, models.IndicatorMACDSignal, models.IndicatorMACDHist,
	} {
		vals, ok := series.Column(name)
		if !ok {
			t.Errorf("column %s missing", name)
			continue
		}
		if len(vals) != series.Len() {
			t.Errorf("column %s has %d values, want %d", name, len(vals), series.Len())
		}
		if math.IsNaN(vals[len(vals)-1]) {
			t.Errorf("column %s: last value should be defined", name)
		}
	}
}

func TestComputeDeterministic(t *testing.T) {
	a := &models.PriceSeries{Bars: makeCandles(60, 50, 0.3)}
	b := &models.PriceSeries{Bars: makeCandles(60, 50, 0.3)}
	if err := Compute(a, DefaultParams()); err != nil {
		t.Fatal(err)
	}
	if err := Compute(b, DefaultParams()); err != nil {
		t.Fatal(err)
	}
	for name, va := range a.Indicators {
		vb := b.Indicators[name]
		for i := range va {
			if math.IsNaN(va[i]) != math.IsNaN(vb[i]) || (!math.IsNaN(va[i]) && va[i] != vb[i]) {
				t.Fatalf("%s[%d] differs between identical inputs", name, i)
			}
		}
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}
	bad := DefaultParams()
	bad.MACDSlow = 10
	if err := bad.Validate(); err == nil {
		t.Error("expected error when slow <= fast")
	}
	bad = DefaultParams()
	bad.SMAPeriod = 1
	if err := Compute(&models.PriceSeries{Bars: makeCandles(30, 10, 1)}, bad); err == nil {
		t.Error("Compute should reject invalid params")
	}
}
