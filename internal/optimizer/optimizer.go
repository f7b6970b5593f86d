// Package optimizer implements mean-variance portfolio optimisation:
// expected returns and covariance estimation from historical data, the
// long-only maximum-Sharpe portfolio, its performance and weight cleanup.
package optimizer

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/seenimoa/finsight/pkg/models"
)

var (
	// ErrInsufficientData is returned when fewer than two return rows remain.
	ErrInsufficientData = fmt.Errorf("insufficient data for optimisation")

	// ErrNoPositiveExcessReturn is returned when no asset's expected return
	// exceeds the risk-free rate, so no portfolio has a positive Sharpe ratio.
	ErrNoPositiveExcessReturn = fmt.Errorf("at least one asset must have an expected return exceeding the risk-free rate")
)

// Params configures the optimiser.
type Params struct {
	Frequency    int     `mapstructure:"frequency" yaml:"frequency"`         // periods per year
	RiskFreeRate float64 `mapstructure:"risk_free_rate" yaml:"risk_free_rate"`
	WeightCutoff float64 `mapstructure:"weight_cutoff" yaml:"weight_cutoff"` // weights below are zeroed
	Rounding     int32   `mapstructure:"rounding" yaml:"rounding"`           // decimal places kept
	MaxIter      int     `mapstructure:"max_iterations" yaml:"max_iterations"`
}

// DefaultParams returns daily frequency, a 2% risk-free rate and
// five-decimal weights.
func DefaultParams() Params {
	return Params{
		Frequency:    252,
		RiskFreeRate: 0.02,
		WeightCutoff: 1e-4,
		Rounding:     5,
		MaxIter:      5000,
	}
}

// Inputs are the estimated annualised moments of a set of assets.
type Inputs struct {
	Assets []string
	Mu     []float64
	Sigma  *mat.SymDense
}

// Result is an optimised portfolio.
type Result struct {
	Weights     models.WeightVector     `json:"weights" yaml:"weights"`
	Performance models.PortfolioMetrics `json:"performance" yaml:"performance"`
}

// Optimizer runs max-Sharpe optimisation over price or return tables.
type Optimizer struct {
	params Params
	log    *zap.Logger
}

// New creates an Optimizer. Zero-valued params fall back to defaults.
func New(params Params, log *zap.Logger) *Optimizer {
	def := DefaultParams()
	if params.Frequency <= 0 {
		params.Frequency = def.Frequency
	}
	if params.WeightCutoff <= 0 {
		params.WeightCutoff = def.WeightCutoff
	}
	if params.Rounding <= 0 {
		params.Rounding = def.Rounding
	}
	if params.MaxIter <= 0 {
		params.MaxIter = def.MaxIter
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Optimizer{params: params, log: log}
}

// Params returns the effective parameters.
func (o *Optimizer) Params() Params { return o.params }

// OptimizePrices treats every column of prices as an asset price series.
// Daily returns are derived first.
func (o *Optimizer) OptimizePrices(prices *models.PriceTable) (*Result, error) {
	return o.OptimizeReturns(prices.PctChange().DropNaN())
}

// OptimizeReturns treats every column of returns as an asset return series.
func (o *Optimizer) OptimizeReturns(returns *models.PriceTable) (*Result, error) {
	in, err := Estimate(returns, o.params.Frequency)
	if err != nil {
		return nil, err
	}
	raw, err := o.MaxSharpe(in)
	if err != nil {
		return nil, err
	}
	perf := Performance(raw, in, o.params.RiskFreeRate)
	cleaned := CleanWeights(raw, o.params.WeightCutoff, o.params.Rounding)

	o.log.Debug("max sharpe portfolio",
		zap.Strings("assets", in.Assets),
		zap.Int("observations", returns.Len()),
		zap.Float64("expected_return", perf.ExpectedReturn),
		zap.Float64("volatility", perf.Volatility),
		zap.Float64("sharpe", perf.SharpeRatio),
	)
	return &Result{Weights: cleaned, Performance: perf}, nil
}

// Estimate computes annualised mean historical returns and sample
// covariance from a table of periodic returns.
func Estimate(returns *models.PriceTable, frequency int) (*Inputs, error) {
	if returns == nil || len(returns.Columns) == 0 {
		return nil, fmt.Errorf("%w: no asset columns", ErrInsufficientData)
	}
	if returns.Len() < 2 {
		return nil, fmt.Errorf("%w: %d return rows", ErrInsufficientData, returns.Len())
	}
	x := mat.NewDense(returns.Len(), len(returns.Columns), returns.Matrix())
	return &Inputs{
		Assets: append([]string(nil), returns.Columns...),
		Mu:     MeanHistoricalReturn(x, frequency),
		Sigma:  SampleCov(x, frequency),
	}, nil
}

// MeanHistoricalReturn is the compounded annual growth rate of each column
// of returns: (Π(1+r))^(frequency/n) − 1.
func MeanHistoricalReturn(returns mat.Matrix, frequency int) []float64 {
	n, c := returns.Dims()
	mu := make([]float64, c)
	for j := 0; j < c; j++ {
		growth := 1.0
		for i := 0; i < n; i++ {
			growth *= 1 + returns.At(i, j)
		}
		mu[j] = math.Pow(growth, float64(frequency)/float64(n)) - 1
	}
	return mu
}

// SampleCov is the annualised sample covariance of the columns of returns.
func SampleCov(returns mat.Matrix, frequency int) *mat.SymDense {
	_, c := returns.Dims()
	cov := mat.NewSymDense(c, nil)
	stat.CovarianceMatrix(cov, returns, nil)
	cov.ScaleSym(float64(frequency), cov)
	return cov
}

// MaxSharpe finds the long-only, fully invested weights maximising
// (μ·w − rf)/√(w'Σw). Weights are parameterised as w = x²/Σx² so the
// search is unconstrained.
func (o *Optimizer) MaxSharpe(in *Inputs) (models.WeightVector, error) {
	n := len(in.Assets)
	if n == 0 {
		return nil, fmt.Errorf("%w: no assets", ErrInsufficientData)
	}
	rf := o.params.RiskFreeRate

	positive := false
	for _, m := range in.Mu {
		if m > rf {
			positive = true
			break
		}
	}
	if !positive {
		return nil, ErrNoPositiveExcessReturn
	}
	if n == 1 {
		return models.WeightVector{in.Assets[0]: 1}, nil
	}

	mu := mat.NewVecDense(n, in.Mu)
	w := mat.NewVecDense(n, nil)
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if !toWeights(x, w) {
				return math.MaxFloat64
			}
			variance := mat.Inner(w, in.Sigma, w)
			if variance <= 0 {
				return math.MaxFloat64
			}
			return -(mat.Dot(mu, w) - rf) / math.Sqrt(variance)
		},
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = math.Sqrt(1 / float64(n))
	}
	settings := &optimize.Settings{MajorIterations: o.params.MaxIter}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("optimization failed: %w", err)
	}
	// Restart from the first optimum; the simplex tends to stall on flat
	// ridges of the Sharpe surface.
	refined, err := optimize.Minimize(problem, result.X, settings, &optimize.NelderMead{})
	if err == nil && refined.F <= result.F {
		result = refined
	}
	if result.Status == optimize.Failure {
		return nil, fmt.Errorf("optimization did not converge: status=%v", result.Status)
	}

	final := mat.NewVecDense(n, nil)
	if !toWeights(result.X, final) {
		return nil, fmt.Errorf("optimization failed: degenerate solution")
	}
	weights := make(models.WeightVector, n)
	for i, asset := range in.Assets {
		weights[asset] = final.AtVec(i)
	}
	return weights, nil
}

// toWeights maps unconstrained x onto the simplex. It reports false when
// every coordinate is zero.
func toWeights(x []float64, dst *mat.VecDense) bool {
	norm := 0.0
	for _, v := range x {
		norm += v * v
	}
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return false
	}
	for i, v := range x {
		dst.SetVec(i, v*v/norm)
	}
	return true
}

// Performance returns the annualised expected return, volatility and
// Sharpe ratio of weights under in. Assets missing from weights count as
// zero.
func Performance(weights models.WeightVector, in *Inputs, riskFreeRate float64) models.PortfolioMetrics {
	n := len(in.Assets)
	w := mat.NewVecDense(n, nil)
	for i, asset := range in.Assets {
		w.SetVec(i, weights[asset])
	}
	ret := mat.Dot(mat.NewVecDense(n, in.Mu), w)
	vol := math.Sqrt(mat.Inner(w, in.Sigma, w))
	return models.PortfolioMetrics{
		ExpectedReturn: ret,
		Volatility:     vol,
		SharpeRatio:    (ret - riskFreeRate) / vol,
	}
}

// CleanWeights zeroes weights whose magnitude is below cutoff and rounds
// the rest to the given number of decimal places.
func CleanWeights(weights models.WeightVector, cutoff float64, places int32) models.WeightVector {
	out := make(models.WeightVector, len(weights))
	for asset, v := range weights {
		if math.Abs(v) < cutoff {
			out[asset] = 0
			continue
		}
		rounded, _ := decimal.NewFromFloat(v).Round(places).Float64()
		out[asset] = rounded
	}
	return out
}

// AssetColumns picks the asset columns of a price table: the requested
// subset when given, otherwise every column except Volume.
func AssetColumns(t *models.PriceTable, subset []string) ([]string, error) {
	if len(subset) > 0 {
		for _, c := range subset {
			if !t.HasColumn(c) {
				return nil, fmt.Errorf("asset column %q not found", c)
			}
		}
		return append([]string(nil), subset...), nil
	}
	var cols []string
	for _, c := range t.Columns {
		if c != models.ColumnVolume {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no asset columns", ErrInsufficientData)
	}
	return cols, nil
}

// Ranked returns the assets ordered by descending weight, ties by name.
func Ranked(weights models.WeightVector) []string {
	assets := weights.Tickers()
	sort.SliceStable(assets, func(i, j int) bool {
		return weights[assets[i]] > weights[assets[j]]
	})
	return assets
}
