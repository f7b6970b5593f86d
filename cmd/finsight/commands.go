package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/finsight/internal/analysis/technical"
	"github.com/seenimoa/finsight/internal/analyzer"
	"github.com/seenimoa/finsight/internal/config"
	"github.com/seenimoa/finsight/internal/datasource"
	"github.com/seenimoa/finsight/internal/optimizer"
	"github.com/seenimoa/finsight/internal/portfolio"
	"github.com/seenimoa/finsight/internal/report"
	"github.com/seenimoa/finsight/pkg/models"
	"github.com/seenimoa/finsight/pkg/utils"
)

func init() {
	for _, c := range []*cobra.Command{analyzeCmd, optimizeCmd, performanceCmd} {
		c.Flags().String("start", "", "first date to include (YYYY-MM-DD)")
		c.Flags().String("end", "", "last date to include (YYYY-MM-DD)")
	}
	analyzeCmd.Flags().Bool("no-charts", false, "skip chart rendering")
	analyzeCmd.Flags().Int("tail", 5, "number of most recent rows to print")
	optimizeCmd.Flags().StringSlice("columns", nil, "asset columns to optimise over (default: all but Volume)")

	portfolioCmd.Flags().String("tickers", "", "comma-separated tickers, e.g. AAPL,MSFT")
	portfolioCmd.Flags().String("weights", "", "ticker weights, e.g. AAPL=0.6,MSFT=0.4 (default: equal)")
	portfolioCmd.Flags().String("start", "", "history start (YYYY-MM-DD, default 2020-01-01)")
	portfolioCmd.Flags().String("source", "", "price source override (yahoo, alpaca)")
	portfolioCmd.Flags().Bool("no-charts", false, "skip chart rendering")
	_ = portfolioCmd.MarkFlagRequired("tickers")
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Load a price file, compute indicators and chart them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noCharts, _ := cmd.Flags().GetBool("no-charts")
		var sink *report.FileSink
		if !noCharts {
			sink = newSink(cfg.Chart)
		}
		fa, path, err := newFileAnalyzer(cmd, args, nil, sink)
		if err != nil {
			return err
		}
		if _, err := fa.RetrieveData(); err != nil {
			return err
		}
		data, err := fa.CalculateIndicators()
		if err != nil {
			return err
		}

		res := analyzeResult{File: path, Rows: data.Len()}
		if sink != nil {
			if err := fa.PlotAll(cmd.Context(), data); err != nil {
				return err
			}
			res.Charts = sink.Written()
		}
		tail, _ := cmd.Flags().GetInt("tail")
		res.Latest = latestRows(data, tail)
		return emit(cmd.OutOrStdout(), outputFormat(cmd), res)
	},
}

type indicatorRow struct {
	Date       string   `json:"date" yaml:"date"`
	Close      *float64 `json:"close" yaml:"close"`
	SMA        *float64 `json:"sma" yaml:"sma"`
	RSI        *float64 `json:"rsi" yaml:"rsi"`
	EMA        *float64 `json:"ema" yaml:"ema"`
	MACD       *float64 `json:"macd" yaml:"macd"`
	MACDSignal *float64 `json:"macd_signal" yaml:"macd_signal"`
	MACDHist   *float64 `json:"macd_hist" yaml:"macd_hist"`
}

type analyzeResult struct {
	File   string         `json:"file" yaml:"file"`
	Rows   int            `json:"rows" yaml:"rows"`
	Latest []indicatorRow `json:"latest" yaml:"latest"`
	Charts []string       `json:"charts,omitempty" yaml:"charts,omitempty"`
}

func (r analyzeResult) writeTable(w *tabwriter.Writer) {
	fmt.Fprintf(w, "File:\t%s\n", r.File)
	fmt.Fprintf(w, "Rows:\t%d\n\n", r.Rows)
	fmt.Fprintln(w, "DATE\tCLOSE\tSMA\tRSI\tEMA\tMACD\tSIGNAL\tHIST")
	for _, row := range r.Latest {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Date,
			cell(row.Close, "%.2f"),
			cell(row.SMA, "%.2f"),
			cell(row.RSI, "%.2f"),
			cell(row.EMA, "%.2f"),
			cell(row.MACD, "%.4f"),
			cell(row.MACDSignal, "%.4f"),
			cell(row.MACDHist, "%.4f"),
		)
	}
	if len(r.Charts) > 0 {
		fmt.Fprintln(w)
		for _, c := range r.Charts {
			fmt.Fprintf(w, "Chart:\t%s\n", c)
		}
	}
}

// latestRows returns the last n rows of data with their indicators.
func latestRows(data *models.PriceSeries, n int) []indicatorRow {
	from := data.Len() - n
	if n <= 0 || from < 0 {
		from = 0
	}
	at := func(name string, i int) *float64 {
		col, ok := data.Column(name)
		if !ok || i >= len(col) {
			return nil
		}
		return number(col[i])
	}
	rows := make([]indicatorRow, 0, data.Len()-from)
	for i := from; i < data.Len(); i++ {
		rows = append(rows, indicatorRow{
			Date:       utils.FormatDate(data.Bars[i].Timestamp),
			Close:      number(data.Bars[i].Close),
			SMA:        at(models.IndicatorSMA, i),
			RSI:        at(models.IndicatorRSI, i),
			EMA:        at(models.IndicatorEMA, i),
			MACD:       at(models.IndicatorMACD, i),
			MACDSignal: at(models.IndicatorMACDSignal, i),
			MACDHist:   at(models.IndicatorMACDHist, i),
		})
	}
	return rows
}

// --- Optimize Command ---

var optimizeCmd = &cobra.Command{
	Use:   "optimize [file]",
	Short: "Find max-Sharpe weights over the price columns of a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		columns, _ := cmd.Flags().GetStringSlice("columns")
		fa, path, err := newFileAnalyzer(cmd, args, columns, nil)
		if err != nil {
			return err
		}
		start, end, err := dateWindow(cmd)
		if err != nil {
			return err
		}
		res, err := fa.OptimizeFile(path, start, end)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), outputFormat(cmd), newOptimizeResult(res))
	},
}

type weightEntry struct {
	Asset  string  `json:"asset" yaml:"asset"`
	Weight float64 `json:"weight" yaml:"weight"`
}

type metricsView struct {
	ExpectedReturn *float64 `json:"Expected Return" yaml:"Expected Return"`
	Volatility     *float64 `json:"Volatility" yaml:"Volatility"`
	SharpeRatio    *float64 `json:"Sharpe Ratio" yaml:"Sharpe Ratio"`
}

func newMetricsView(m models.PortfolioMetrics) metricsView {
	return metricsView{
		ExpectedReturn: number(m.ExpectedReturn),
		Volatility:     number(m.Volatility),
		SharpeRatio:    number(m.SharpeRatio),
	}
}

func (m metricsView) writeTable(w *tabwriter.Writer) {
	fmt.Fprintf(w, "%s:\t%s\n", models.MetricExpectedReturn, cell(m.ExpectedReturn, "%.4f"))
	fmt.Fprintf(w, "%s:\t%s\n", models.MetricVolatility, cell(m.Volatility, "%.4f"))
	fmt.Fprintf(w, "%s:\t%s\n", models.MetricSharpeRatio, cell(m.SharpeRatio, "%.4f"))
}

type optimizeResult struct {
	Weights     []weightEntry `json:"weights" yaml:"weights"`
	Performance metricsView   `json:"performance" yaml:"performance"`
}

func newOptimizeResult(res *optimizer.Result) optimizeResult {
	out := optimizeResult{Performance: newMetricsView(res.Performance)}
	for _, asset := range optimizer.Ranked(res.Weights) {
		out.Weights = append(out.Weights, weightEntry{Asset: asset, Weight: res.Weights[asset]})
	}
	return out
}

func (r optimizeResult) writeTable(w *tabwriter.Writer) {
	fmt.Fprintln(w, "ASSET\tWEIGHT")
	for _, e := range r.Weights {
		fmt.Fprintf(w, "%s\t%.5f\n", e.Asset, e.Weight)
	}
	fmt.Fprintln(w)
	r.Performance.writeTable(w)
}

// --- Performance Command ---

var performanceCmd = &cobra.Command{
	Use:   "performance [file]",
	Short: "Report return, volatility and Sharpe ratio of a file's Close prices",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fa, _, err := newFileAnalyzer(cmd, args, nil, nil)
		if err != nil {
			return err
		}
		data, err := fa.RetrieveData()
		if err != nil {
			return err
		}
		m, err := fa.PortfolioPerformance(data)
		if err != nil {
			return err
		}
		return emit(cmd.OutOrStdout(), outputFormat(cmd), newMetricsView(m))
	},
}

// --- Portfolio Command ---

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Fetch prices and report metrics of a fixed-weight portfolio",
	Example: `  finsight portfolio --tickers AAPL,MSFT,GOOGL --weights AAPL=0.4,MSFT=0.3,GOOGL=0.3
  finsight portfolio --tickers SPY --start 2022-01-01 -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawTickers, _ := cmd.Flags().GetString("tickers")
		tickers := utils.ParseTickers(rawTickers)
		if len(tickers) == 0 {
			return fmt.Errorf("no tickers given")
		}

		weights, err := portfolioWeights(cmd, tickers)
		if err != nil {
			return err
		}

		rawStart, _ := cmd.Flags().GetString("start")
		if rawStart == "" {
			rawStart = cfg.Portfolio.StartDate
		}
		start, err := utils.ParseOptionalDate(rawStart)
		if err != nil {
			return err
		}

		srcCfg := cfg.Source
		if p, _ := cmd.Flags().GetString("source"); p != "" {
			srcCfg.Provider = p
		}
		source, err := newSource(srcCfg)
		if err != nil {
			return err
		}

		var sink report.Sink
		var files *report.FileSink
		if noCharts, _ := cmd.Flags().GetBool("no-charts"); !noCharts {
			files = newSink(cfg.Chart)
			sink = files
		}

		pa := portfolio.NewAnalyzer(source, sink, portfolio.Params{
			TradingDays:  cfg.Portfolio.TradingDays,
			RiskFreeRate: cfg.Portfolio.RiskFreeRate,
		}, logger)
		res, err := pa.Analyze(cmd.Context(), tickers, weights, start)
		if err != nil {
			return err
		}

		out := portfolioResult{
			Source:       source.Name(),
			Observations: len(res.Daily),
			Metrics:      newMetricsView(res.Metrics),
		}
		for _, t := range tickers {
			out.Weights = append(out.Weights, weightEntry{Asset: t, Weight: weights[t]})
		}
		if len(res.Dates) > 0 {
			out.From = utils.FormatDate(res.Dates[0])
			out.To = utils.FormatDate(res.Dates[len(res.Dates)-1])
		}
		if files != nil {
			out.Charts = files.Written()
		}
		return emit(cmd.OutOrStdout(), outputFormat(cmd), out)
	},
}

type portfolioResult struct {
	Source       string        `json:"source" yaml:"source"`
	Weights      []weightEntry `json:"weights" yaml:"weights"`
	From         string        `json:"from,omitempty" yaml:"from,omitempty"`
	To           string        `json:"to,omitempty" yaml:"to,omitempty"`
	Observations int           `json:"observations" yaml:"observations"`
	Metrics      metricsView   `json:"metrics" yaml:"metrics"`
	Charts       []string      `json:"charts,omitempty" yaml:"charts,omitempty"`
}

func (r portfolioResult) writeTable(w *tabwriter.Writer) {
	fmt.Fprintf(w, "Source:\t%s\n", r.Source)
	fmt.Fprintf(w, "Period:\t%s → %s (%d returns)\n\n", r.From, r.To, r.Observations)
	fmt.Fprintln(w, "TICKER\tWEIGHT")
	for _, e := range r.Weights {
		fmt.Fprintf(w, "%s\t%.4f\n", e.Asset, e.Weight)
	}
	fmt.Fprintln(w)
	r.Metrics.writeTable(w)
	for _, c := range r.Charts {
		fmt.Fprintf(w, "Chart:\t%s\n", c)
	}
}

// portfolioWeights parses --weights, or splits equally across tickers when
// none are given.
func portfolioWeights(cmd *cobra.Command, tickers []string) (models.WeightVector, error) {
	raw, _ := cmd.Flags().GetString("weights")
	if raw == "" {
		w := make(models.WeightVector, len(tickers))
		for _, t := range tickers {
			w[t] = 1 / float64(len(tickers))
		}
		return w, nil
	}
	parsed, err := utils.ParseWeights(raw)
	if err != nil {
		return nil, err
	}
	return models.WeightVector(parsed), nil
}

// --- Wiring ---

func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}

// dateWindow merges --start/--end with the configured data window.
func dateWindow(cmd *cobra.Command) (time.Time, time.Time, error) {
	rawStart, _ := cmd.Flags().GetString("start")
	rawEnd, _ := cmd.Flags().GetString("end")
	if rawStart == "" {
		rawStart = cfg.Data.StartDate
	}
	if rawEnd == "" {
		rawEnd = cfg.Data.EndDate
	}
	start, err := utils.ParseOptionalDate(rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--start: %w", err)
	}
	end, err := utils.ParseOptionalDate(rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--end: %w", err)
	}
	return start, end, nil
}

// newFileAnalyzer builds a FinancialAnalyzer for the file argument, or the
// configured data path when none is given, and returns the path used.
func newFileAnalyzer(cmd *cobra.Command, args []string, columns []string, sink *report.FileSink) (*analyzer.FinancialAnalyzer, string, error) {
	path := cfg.Data.Path
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return nil, "", fmt.Errorf("no data file given (argument or data.path)")
	}
	start, end, err := dateWindow(cmd)
	if err != nil {
		return nil, "", err
	}
	if len(columns) == 0 {
		columns = cfg.Data.AssetColumns
	}
	var s report.Sink
	if sink != nil {
		s = sink
	}
	fa := analyzer.New(analyzer.Config{
		DataPath:     path,
		Start:        start,
		End:          end,
		Indicators:   indicatorParams(cfg.Indicators),
		Optimizer:    optimizerParams(cfg.Portfolio),
		AssetColumns: columns,
	}, s, logger)
	return fa, path, nil
}

func indicatorParams(c config.IndicatorsConfig) technical.Params {
	return technical.Params{
		SMAPeriod:  c.SMAPeriod,
		RSIPeriod:  c.RSIPeriod,
		EMAPeriod:  c.EMAPeriod,
		MACDFast:   c.MACDFast,
		MACDSlow:   c.MACDSlow,
		MACDSignal: c.MACDSignal,
	}
}

func optimizerParams(c config.PortfolioConfig) optimizer.Params {
	return optimizer.Params{
		Frequency:    c.TradingDays,
		RiskFreeRate: c.RiskFreeRate,
		WeightCutoff: c.WeightCutoff,
		Rounding:     int32(c.Rounding),
	}
}

func newSink(c config.ChartConfig) *report.FileSink {
	chart := report.DefaultChartConfig()
	if c.Width > 0 {
		chart.Width = c.Width
	}
	if c.Height > 0 {
		chart.Height = c.Height
	}
	return report.NewFileSink(report.FileSinkConfig{
		Dir:    c.OutputDir,
		Format: report.Format(c.Format),
		Open:   c.Open,
		Chart:  chart,
	}, logger)
}

// newSource returns the configured price source.
func newSource(c config.SourceConfig) (datasource.PriceSource, error) {
	switch c.Provider {
	case "", "yahoo":
		return datasource.NewYFinance(datasource.YFinanceConfig{
			BaseURL:   c.YahooBaseURL,
			Timeout:   c.Timeout,
			RateLimit: c.RateLimit,
		}, logger), nil
	case "alpaca":
		return datasource.NewAlpaca(datasource.AlpacaConfig{
			APIKey:    c.Alpaca.APIKey,
			APISecret: c.Alpaca.APISecret,
			BaseURL:   c.Alpaca.BaseURL,
			Feed:      c.Alpaca.Feed,
		}, logger)
	default:
		logger.Warn("unknown price source", zap.String("provider", c.Provider))
		return nil, fmt.Errorf("%w: provider %q", datasource.ErrNotSupported, c.Provider)
	}
}
