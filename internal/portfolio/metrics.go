// Package portfolio evaluates a fixed-weight portfolio over fetched price
// history: daily returns, the weighted portfolio return series, and its
// annualised return, volatility and Sharpe ratio.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/finsight/pkg/models"
	"github.com/seenimoa/finsight/pkg/utils"
)

var (
	// ErrWeightMismatch is returned when the weight keys differ from the
	// fetched columns.
	ErrWeightMismatch = fmt.Errorf("weights do not match tickers")

	// ErrInsufficientData is returned when fewer than two daily returns
	// remain after dropping undefined rows.
	ErrInsufficientData = fmt.Errorf("not enough return observations")
)

// ════════════════════════════════════════════════════════════════════
// Returns
// ════════════════════════════════════════════════════════════════════

// DailyReturns is the percentage change of every column with undefined
// rows dropped, including the leading one.
func DailyReturns(prices *models.PriceTable) *models.PriceTable {
	return prices.PctChange().DropNaN()
}

// Combine matches weights to columns by name and returns the weighted sum
// of each row. The key set of weights must equal the column set.
func Combine(returns *models.PriceTable, weights models.WeightVector) ([]float64, error) {
	if err := checkWeights(returns.Columns, weights); err != nil {
		return nil, err
	}
	out := make([]float64, returns.Len())
	for _, c := range returns.Columns {
		w := weights[c]
		for i, r := range returns.Values[c] {
			out[i] += w * r
		}
	}
	return out, nil
}

// NormalizeWeights rewrites weight keys the way price sources name their
// columns. Keys that are empty or collide after normalisation are rejected.
func NormalizeWeights(weights models.WeightVector) (models.WeightVector, error) {
	out := make(models.WeightVector, len(weights))
	for _, k := range weights.Tickers() {
		t := utils.NormalizeTicker(k)
		if t == "" {
			return nil, fmt.Errorf("%w: empty ticker %q", ErrWeightMismatch, k)
		}
		if _, dup := out[t]; dup {
			return nil, fmt.Errorf("%w: weight for %s given twice", ErrWeightMismatch, t)
		}
		out[t] = weights[k]
	}
	return out, nil
}

func checkWeights(columns []string, weights models.WeightVector) error {
	var missing, extra []string
	cols := make(map[string]bool, len(columns))
	for _, c := range columns {
		cols[c] = true
		if _, ok := weights[c]; !ok {
			missing = append(missing, c)
		}
	}
	for k := range weights {
		if !cols[k] {
			extra = append(extra, k)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "no weight for "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "unknown ticker "+strings.Join(extra, ", "))
	}
	return fmt.Errorf("%w: %s", ErrWeightMismatch, strings.Join(parts, "; "))
}

// ════════════════════════════════════════════════════════════════════
// Annualised metrics
// ════════════════════════════════════════════════════════════════════

// Annualize turns a daily return series into annual metrics:
// mean × days, sample stdev × √days and (return − rf) / volatility.
func Annualize(daily []float64, tradingDays int, riskFreeRate float64) (models.PortfolioMetrics, error) {
	if len(daily) < 2 {
		return models.PortfolioMetrics{}, fmt.Errorf("%w: %d", ErrInsufficientData, len(daily))
	}
	td := float64(tradingDays)
	er := stat.Mean(daily, nil) * td
	vol := stat.StdDev(daily, nil) * math.Sqrt(td)
	return models.PortfolioMetrics{
		ExpectedReturn: er,
		Volatility:     vol,
		SharpeRatio:    (er - riskFreeRate) / vol,
	}, nil
}
