package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

// ── PriceTable Tests ──

func TestPriceTableAppendRowFillsNaN(t *testing.T) {
	tbl := NewPriceTable("A", "B")
	tbl.AppendRow(day(1), map[string]float64{"A": 1})
	if tbl.Len() != 1 {
		t.Fatalf("Len = %d", tbl.Len())
	}
	b, _ := tbl.Column("B")
	if !math.IsNaN(b[0]) {
		t.Errorf("missing cell = %v, want NaN", b[0])
	}
	if _, err := tbl.Column("C"); err == nil {
		t.Error("expected error for unknown column")
	}
	if !tbl.HasColumn("A") || tbl.HasColumn("C") {
		t.Error("HasColumn mismatch")
	}
}

func TestPriceTableFilterInclusive(t *testing.T) {
	tbl := NewPriceTable("A")
	for d := 1; d <= 5; d++ {
		tbl.AppendRow(day(d), map[string]float64{"A": float64(d)})
	}

	got := tbl.Filter(day(2), day(4))
	if got.Len() != 3 || !got.Dates[0].Equal(day(2)) || !got.Dates[2].Equal(day(4)) {
		t.Errorf("Filter = %v", got.Dates)
	}

	// One bound alone does not filter.
	if tbl.Filter(day(2), time.Time{}).Len() != 5 {
		t.Error("single bound should leave table unchanged")
	}
}

func TestPriceTableSortByDateStable(t *testing.T) {
	tbl := NewPriceTable("A")
	tbl.AppendRow(day(3), map[string]float64{"A": 3})
	tbl.AppendRow(day(1), map[string]float64{"A": 1})
	tbl.AppendRow(day(3), map[string]float64{"A": 33})
	tbl.AppendRow(day(2), map[string]float64{"A": 2})

	got := tbl.SortByDate()
	a, _ := got.Column("A")
	want := []float64{1, 2, 3, 33}
	for i := range want {
		if a[i] != want[i] {
			t.Fatalf("sorted A = %v, want %v", a, want)
		}
	}
	for i := 1; i < got.Len(); i++ {
		if got.Dates[i].Before(got.Dates[i-1]) {
			t.Fatalf("dates not sorted: %v", got.Dates)
		}
	}
}

func TestPriceTablePctChangeDropNaN(t *testing.T) {
	tbl := NewPriceTable("A", "B")
	tbl.AppendRow(day(1), map[string]float64{"A": 100, "B": 50})
	tbl.AppendRow(day(2), map[string]float64{"A": 110, "B": 55})
	tbl.AppendRow(day(3), map[string]float64{"A": 99})

	ret := tbl.PctChange()
	a, _ := ret.Column("A")
	if !math.IsNaN(a[0]) || math.Abs(a[1]-0.1) > 1e-12 || math.Abs(a[2]+0.1) > 1e-12 {
		t.Errorf("pct change A = %v", a)
	}

	clean := ret.DropNaN()
	if clean.Len() != 1 || !clean.Dates[0].Equal(day(2)) {
		t.Errorf("DropNaN dates = %v", clean.Dates)
	}
	if m := clean.Matrix(); len(m) != 2 || math.Abs(m[1]-0.1) > 1e-12 {
		t.Errorf("Matrix = %v", m)
	}
}

func TestPriceTableSelect(t *testing.T) {
	tbl := NewPriceTable("A", "B", "C")
	tbl.AppendRow(day(1), map[string]float64{"A": 1, "B": 2, "C": 3})

	sel, err := tbl.Select("C", "A")
	if err != nil {
		t.Fatal(err)
	}
	if row := sel.Row(0); row[0] != 3 || row[1] != 1 {
		t.Errorf("Row = %v", row)
	}
	if _, err := tbl.Select("Z"); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestPriceTableToSeries(t *testing.T) {
	tbl := NewPriceTable(ColumnOpen, ColumnClose, ColumnVolume)
	tbl.AppendRow(day(1), map[string]float64{ColumnOpen: 9, ColumnClose: 10, ColumnVolume: 1000})
	tbl.AppendRow(day(2), map[string]float64{ColumnOpen: 10, ColumnClose: 11})

	s, err := tbl.ToSeries("TEST")
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 || s.Bars[0].Open != 9 || s.Bars[1].Close != 11 {
		t.Errorf("bars = %+v", s.Bars)
	}
	if s.Bars[1].Volume != 0 {
		t.Errorf("NaN volume = %d, want 0", s.Bars[1].Volume)
	}

	if _, err := NewPriceTable(ColumnOpen).ToSeries("X"); err == nil {
		t.Error("expected error without Close column")
	}
}

// ── PriceSeries Tests ──

func TestPriceSeriesIndicators(t *testing.T) {
	s := &PriceSeries{Bars: []OHLCV{
		{Timestamp: day(1), Close: 1, Volume: 10},
		{Timestamp: day(2), Close: 2, Volume: 20},
	}}

	if err := s.SetIndicator(IndicatorSMA, []float64{math.NaN()}); err == nil {
		t.Error("expected length mismatch error")
	}
	if err := s.SetIndicator(IndicatorSMA, []float64{math.NaN(), 1.5}); err != nil {
		t.Fatal(err)
	}

	sma, ok := s.Column(IndicatorSMA)
	if !ok || sma[1] != 1.5 {
		t.Errorf("SMA = %v, %v", sma, ok)
	}
	if vol, ok := s.Column(ColumnVolume); !ok || vol[1] != 20 {
		t.Errorf("Volume = %v", vol)
	}
	if _, ok := s.Column(IndicatorRSI); ok {
		t.Error("RSI should be absent")
	}

	c := s.Clone()
	c.Indicators[IndicatorSMA][1] = 99
	if s.Indicators[IndicatorSMA][1] != 1.5 {
		t.Error("Clone shares indicator storage")
	}
}

// ── Portfolio Tests ──

func TestPortfolioMetricsAsMap(t *testing.T) {
	m := PortfolioMetrics{ExpectedReturn: 0.1, Volatility: 0.2, SharpeRatio: 0.4}
	got := m.AsMap()
	if len(got) != 3 {
		t.Fatalf("AsMap keys = %v", got)
	}
	for k, want := range map[string]float64{
		MetricExpectedReturn: 0.1,
		MetricVolatility:     0.2,
		MetricSharpeRatio:    0.4,
	} {
		if got[k] != want {
			t.Errorf("%s = %v, want %v", k, got[k], want)
		}
	}
	if !m.Finite() {
		t.Error("Finite = false")
	}
	if (PortfolioMetrics{SharpeRatio: math.Inf(1)}).Finite() {
		t.Error("Inf Sharpe reported finite")
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]float64
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded[MetricSharpeRatio] != 0.4 {
		t.Errorf("json keys = %v", decoded)
	}
}

func TestWeightVector(t *testing.T) {
	w := WeightVector{"MSFT": 0.4, "AAPL": 0.6}
	if got := w.Tickers(); got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("Tickers = %v", got)
	}
	if math.Abs(w.Sum()-1) > 1e-12 {
		t.Errorf("Sum = %v", w.Sum())
	}
}
