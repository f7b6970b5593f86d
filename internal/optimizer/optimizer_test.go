package optimizer

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/seenimoa/finsight/pkg/models"
)

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

// returnsTable builds a table of per-asset return columns.
func returnsTable(cols map[string][]float64, order ...string) *models.PriceTable {
	t := models.NewPriceTable(order...)
	n := len(cols[order[0]])
	d := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		row := make(map[string]float64, len(order))
		for _, c := range order {
			row[c] = cols[c][i]
		}
		t.AppendRow(d.AddDate(0, 0, i), row)
	}
	return t
}

func TestMeanHistoricalReturn(t *testing.T) {
	n := 252
	data := make([]float64, n)
	for i := range data {
		data[i] = 0.001
	}
	mu := MeanHistoricalReturn(mat.NewDense(n, 1, data), 252)
	want := math.Pow(1.001, 252) - 1
	if !approx(mu[0], want, 1e-12) {
		t.Errorf("mu = %v, want %v", mu[0], want)
	}

	// Half the periods: growth is compounded up to a full year.
	mu = MeanHistoricalReturn(mat.NewDense(126, 1, data[:126]), 252)
	if !approx(mu[0], want, 1e-12) {
		t.Errorf("mu(126) = %v, want %v", mu[0], want)
	}
}

func TestSampleCov(t *testing.T) {
	// Column b is exactly 2a.
	x := mat.NewDense(3, 2, []float64{
		0.01, 0.02,
		0.02, 0.04,
		0.03, 0.06,
	})
	cov := SampleCov(x, 252)
	varA := 0.0001 * 252 // sample variance of (0.01,0.02,0.03) is 1e-4
	if !approx(cov.At(0, 0), varA, 1e-12) {
		t.Errorf("var(a) = %v, want %v", cov.At(0, 0), varA)
	}
	if !approx(cov.At(1, 1), 4*varA, 1e-12) {
		t.Errorf("var(b) = %v, want %v", cov.At(1, 1), 4*varA)
	}
	if !approx(cov.At(0, 1), 2*varA, 1e-12) || cov.At(0, 1) != cov.At(1, 0) {
		t.Errorf("cov(a,b) = %v, want %v", cov.At(0, 1), 2*varA)
	}
}

func TestMaxSharpeUncorrelated(t *testing.T) {
	// With diagonal Σ the tangency weights are ∝ Σ⁻¹(μ − rf):
	// (0.08/0.04, 0.18/0.09) = (2, 2), i.e. an equal split.
	in := &Inputs{
		Assets: []string{"A", "B"},
		Mu:     []float64{0.10, 0.20},
		Sigma:  mat.NewSymDense(2, []float64{0.04, 0, 0, 0.09}),
	}
	o := New(DefaultParams(), nil)
	w, err := o.MaxSharpe(in)
	if err != nil {
		t.Fatalf("MaxSharpe error: %v", err)
	}
	if !approx(w["A"], 0.5, 1e-3) || !approx(w["B"], 0.5, 1e-3) {
		t.Errorf("weights = %v, want 0.5/0.5", w)
	}
	if !approx(w.Sum(), 1, 1e-9) {
		t.Errorf("weights sum to %v", w.Sum())
	}
}

func TestMaxSharpeLongOnly(t *testing.T) {
	// B is dominated: lower return, higher risk. Its weight must stay
	// non-negative and A carries the portfolio.
	in := &Inputs{
		Assets: []string{"A", "B"},
		Mu:     []float64{0.15, 0.01},
		Sigma:  mat.NewSymDense(2, []float64{0.04, 0, 0, 0.09}),
	}
	w, err := New(DefaultParams(), nil).MaxSharpe(in)
	if err != nil {
		t.Fatalf("MaxSharpe error: %v", err)
	}
	if w["B"] < 0 || w["A"] < 0.9 {
		t.Errorf("weights = %v, want A dominant and B >= 0", w)
	}
}

func TestMaxSharpeErrors(t *testing.T) {
	o := New(DefaultParams(), nil)
	in := &Inputs{
		Assets: []string{"A", "B"},
		Mu:     []float64{0.01, 0.02},
		Sigma:  mat.NewSymDense(2, []float64{0.04, 0, 0, 0.09}),
	}
	if _, err := o.MaxSharpe(in); !errors.Is(err, ErrNoPositiveExcessReturn) {
		t.Errorf("expected ErrNoPositiveExcessReturn, got %v", err)
	}
	if _, err := o.MaxSharpe(&Inputs{}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestMaxSharpeSingleAsset(t *testing.T) {
	in := &Inputs{Assets: []string{"A"}, Mu: []float64{0.1}, Sigma: mat.NewSymDense(1, []float64{0.04})}
	w, err := New(DefaultParams(), nil).MaxSharpe(in)
	if err != nil {
		t.Fatalf("MaxSharpe error: %v", err)
	}
	if w["A"] != 1 {
		t.Errorf("single asset weight = %v, want 1", w["A"])
	}
	perf := Performance(w, in, 0.02)
	if !approx(perf.ExpectedReturn, 0.1, 1e-12) || !approx(perf.Volatility, 0.2, 1e-12) || !approx(perf.SharpeRatio, 0.4, 1e-12) {
		t.Errorf("performance = %+v", perf)
	}
}

func TestCleanWeights(t *testing.T) {
	w := models.WeightVector{"A": 0.123456789, "B": 0.00005, "C": 0.876493211}
	got := CleanWeights(w, 1e-4, 5)
	want := map[string]float64{"A": 0.12346, "B": 0, "C": 0.87649}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestOptimizeReturns(t *testing.T) {
	// A trends up with small noise, B is flat noise.
	n := 120
	a := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = 0.002 + 0.001*math.Sin(float64(i))
		b[i] = 0.0001 + 0.01*math.Cos(float64(i)*1.7)
	}
	res, err := New(DefaultParams(), nil).OptimizeReturns(returnsTable(map[string][]float64{"A": a, "B": b}, "A", "B"))
	if err != nil {
		t.Fatalf("OptimizeReturns error: %v", err)
	}
	if len(res.Weights) != 2 {
		t.Fatalf("weights = %v", res.Weights)
	}
	if res.Weights["A"] < res.Weights["B"] {
		t.Errorf("expected A to dominate, got %v", res.Weights)
	}
	if !res.Performance.Finite() || res.Performance.Volatility <= 0 {
		t.Errorf("performance = %+v", res.Performance)
	}
}

func TestOptimizePricesInsufficient(t *testing.T) {
	prices := returnsTable(map[string][]float64{"A": {100, 101}}, "A")
	if _, err := New(DefaultParams(), nil).OptimizePrices(prices); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestAssetColumns(t *testing.T) {
	table := models.NewPriceTable("Open", "Close", "Volume")
	cols, err := AssetColumns(table, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cols) != 2 || cols[0] != "Open" || cols[1] != "Close" {
		t.Errorf("cols = %v", cols)
	}
	if _, err := AssetColumns(table, []string{"Missing"}); err == nil {
		t.Error("expected error for unknown subset column")
	}
	if _, err := AssetColumns(models.NewPriceTable("Volume"), nil); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestRanked(t *testing.T) {
	got := Ranked(models.WeightVector{"B": 0.2, "A": 0.2, "C": 0.6})
	want := []string{"C", "A", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Ranked = %v, want %v", got, want)
		}
	}
}
