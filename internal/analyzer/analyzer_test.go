package analyzer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/finsight/internal/loader"
	"github.com/seenimoa/finsight/internal/optimizer"
	"github.com/seenimoa/finsight/internal/report"
	"github.com/seenimoa/finsight/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

var base = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

func closeAt(i int) float64 {
	return 100 * math.Pow(1.002, float64(i)) * (1 + 0.01*math.Sin(float64(i)))
}

// writeOHLCV writes n daily rows, newest first, to exercise sorting.
func writeOHLCV(t *testing.T, n int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("Date,Open,High,Low,Close,Adj Close,Volume\n")
	for i := n - 1; i >= 0; i-- {
		c := closeAt(i)
		fmt.Fprintf(&sb, "%s,%.4f,%.4f,%.4f,%.4f,%.4f,%d\n",
			base.AddDate(0, 0, i).Format("2006-01-02"), c-0.5, c+1, c-1, c, c, 1000+i)
	}
	return writeFile(t, "TEST.csv", sb.String())
}

func writeWide(t *testing.T, n int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("Date,AAA,BBB,Volume\n")
	for i := 0; i < n; i++ {
		a := 100 * math.Pow(1.002, float64(i)) * (1 + 0.01*math.Sin(float64(i)))
		b := 50 * math.Pow(1.001, float64(i)) * (1 + 0.02*math.Cos(1.3*float64(i)))
		fmt.Fprintf(&sb, "%s,%.6f,%.6f,%d\n", base.AddDate(0, 0, i).Format("2006-01-02"), a, b, 5000+i)
	}
	return writeFile(t, "wide.csv", sb.String())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// ════════════════════════════════════════════════════════════════════
// Indicators
// ════════════════════════════════════════════════════════════════════

func TestCalculateIndicatorsRequiresData(t *testing.T) {
	a := New(Config{DataPath: "unused.csv"}, &report.MemorySink{}, nil)
	if _, err := a.CalculateIndicators(); !errors.Is(err, ErrDataNotLoaded) {
		t.Errorf("expected ErrDataNotLoaded, got %v", err)
	}
}

func TestRetrieveDataAndIndicators(t *testing.T) {
	a := New(Config{DataPath: writeOHLCV(t, 80)}, &report.MemorySink{}, nil)
	series, err := a.RetrieveData()
	if err != nil {
		t.Fatalf("RetrieveData error: %v", err)
	}
	if series.Len() != 80 || a.Data() != series {
		t.Fatalf("loaded %d rows", series.Len())
	}
	if !series.Bars[0].Timestamp.Equal(base) {
		t.Errorf("first row %v, want %v", series.Bars[0].Timestamp, base)
	}

	data, err := a.CalculateIndicators()
	if err != nil {
		t.Fatalf("CalculateIndicators error: %v", err)
	}
	for _, col := range []string{
		models.IndicatorSMA, models.IndicatorRSI, models.IndicatorEMA,
		models.IndicatorMACD, models.IndicatorMACDSignal, models.IndicatorMACDHist,
	} {
		vals, ok := data.Column(col)
		if !ok || len(vals) != 80 {
			t.Errorf("column %s missing or misaligned", col)
		}
	}

	sma, _ := data.Column(models.IndicatorSMA)
	closes := data.Closes()
	for i := range sma {
		if i < 19 {
			if !math.IsNaN(sma[i]) {
				t.Fatalf("SMA[%d] = %v, want NaN", i, sma[i])
			}
			continue
		}
		sum := 0.0
		for _, c := range closes[i-19 : i+1] {
			sum += c
		}
		if math.Abs(sma[i]-sum/20) > 1e-9 {
			t.Fatalf("SMA[%d] = %v, want %v", i, sma[i], sum/20)
		}
	}
}

func TestRetrieveDataWindow(t *testing.T) {
	cfg := Config{
		DataPath: writeOHLCV(t, 30),
		Start:    base.AddDate(0, 0, 5),
		End:      base.AddDate(0, 0, 14),
	}
	series, err := New(cfg, nil, nil).RetrieveData()
	if err != nil {
		t.Fatalf("RetrieveData error: %v", err)
	}
	if series.Len() != 10 {
		t.Errorf("expected 10 rows in window, got %d", series.Len())
	}
}

func TestRetrieveDataMissingFile(t *testing.T) {
	a := New(Config{DataPath: filepath.Join(t.TempDir(), "nope.csv")}, nil, nil)
	if _, err := a.RetrieveData(); !errors.Is(err, loader.ErrLoad) {
		t.Errorf("expected ErrLoad, got %v", err)
	}
	if _, err := a.CalculateIndicators(); !errors.Is(err, ErrDataNotLoaded) {
		t.Errorf("failed load must leave no data, got %v", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Charts
// ════════════════════════════════════════════════════════════════════

func TestPlots(t *testing.T) {
	sink := &report.MemorySink{}
	a := New(Config{DataPath: writeOHLCV(t, 60)}, sink, nil)
	if _, err := a.RetrieveData(); err != nil {
		t.Fatal(err)
	}

	// Before indicators exist only the missing-column error is possible.
	if err := a.PlotRSI(context.Background(), a.Data()); !errors.Is(err, report.ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}

	data, err := a.CalculateIndicators()
	if err != nil {
		t.Fatal(err)
	}
	if err := a.PlotAll(context.Background(), data); err != nil {
		t.Fatalf("PlotAll error: %v", err)
	}
	want := []string{
		report.TitlePriceSMA,
		report.TitleRSI,
		report.TitlePriceEMA,
		report.TitleMACD,
	}
	if len(sink.Charts) != len(want) {
		t.Fatalf("rendered %d charts, want %d", len(sink.Charts), len(want))
	}
	for i, title := range want {
		if sink.Charts[i].Title != title {
			t.Errorf("chart %d = %q, want %q", i, sink.Charts[i].Title, title)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Portfolio
// ════════════════════════════════════════════════════════════════════

func TestPortfolioWeights(t *testing.T) {
	a := New(Config{}, nil, nil)
	path := writeWide(t, 200)
	w, err := a.PortfolioWeights(path, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("PortfolioWeights error: %v", err)
	}
	if len(w) != 2 {
		t.Fatalf("weights = %v, want AAA and BBB only", w)
	}
	if _, ok := w["Volume"]; ok {
		t.Error("Volume must not be an asset")
	}
	if math.Abs(w.Sum()-1) > 1e-4 {
		t.Errorf("weights sum to %v", w.Sum())
	}
	for k, v := range w {
		if v < 0 {
			t.Errorf("%s weight %v is negative", k, v)
		}
		if r := math.Round(v*1e5) / 1e5; math.Abs(r-v) > 1e-12 {
			t.Errorf("%s weight %v not rounded to 5 places", k, v)
		}
	}
}

func TestPortfolioWeightsSubset(t *testing.T) {
	a := New(Config{AssetColumns: []string{"BBB"}}, nil, nil)
	w, err := a.PortfolioWeights(writeWide(t, 100), time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("PortfolioWeights error: %v", err)
	}
	if len(w) != 1 || w["BBB"] != 1 {
		t.Errorf("weights = %v, want BBB=1", w)
	}
}

func TestNewDefaultsOptimizerParams(t *testing.T) {
	a := New(Config{}, nil, nil)
	if got, want := a.opt.Params(), optimizer.DefaultParams(); got != want {
		t.Errorf("optimizer params = %+v, want %+v", got, want)
	}

	custom := optimizer.DefaultParams()
	custom.RiskFreeRate = 0.05
	a = New(Config{Optimizer: custom}, nil, nil)
	if rf := a.opt.Params().RiskFreeRate; rf != 0.05 {
		t.Errorf("risk-free rate = %v, want 0.05", rf)
	}
}

func TestPortfolioPerformance(t *testing.T) {
	a := New(Config{DataPath: writeOHLCV(t, 120)}, nil, nil)
	data, err := a.RetrieveData()
	if err != nil {
		t.Fatal(err)
	}
	m, err := a.PortfolioPerformance(data)
	if err != nil {
		t.Fatalf("PortfolioPerformance error: %v", err)
	}
	if !m.Finite() || m.Volatility <= 0 {
		t.Errorf("metrics = %+v", m)
	}
	rf := optimizer.DefaultParams().RiskFreeRate
	if math.Abs(m.SharpeRatio-(m.ExpectedReturn-rf)/m.Volatility) > 1e-9 {
		t.Errorf("sharpe inconsistent: %+v", m)
	}

	if _, err := a.PortfolioPerformance(nil); !errors.Is(err, ErrDataNotLoaded) {
		t.Errorf("expected ErrDataNotLoaded, got %v", err)
	}
}

func TestPortfolioPerformanceNoExcessReturn(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Date,Close\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, "%s,%.4f\n", base.AddDate(0, 0, i).Format("2006-01-02"), 100*math.Pow(0.999, float64(i)))
	}
	a := New(Config{DataPath: writeFile(t, "down.csv", sb.String())}, nil, nil)
	data, err := a.RetrieveData()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.PortfolioPerformance(data); !errors.Is(err, optimizer.ErrNoPositiveExcessReturn) {
		t.Errorf("expected ErrNoPositiveExcessReturn, got %v", err)
	}
}
