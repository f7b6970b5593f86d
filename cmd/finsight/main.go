// Command finsight does exploratory price analysis and portfolio optimisation.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/finsight/internal/config"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set up before every command.
var (
	cfg    *config.Config
	logger = zap.NewNop()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "finsight",
	Short: "finsight: technical indicators, charts and portfolio metrics",
	Long: `finsight loads daily price data from CSV files or fetches it from
Yahoo Finance or Alpaca, computes technical indicators (SMA, RSI, EMA, MACD),
renders line charts, finds maximum-Sharpe portfolio weights and reports
annualised portfolio return, volatility and Sharpe ratio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
			cfg.Logging.Level = lvl
		}
		logger, err = config.NewLogger(cfg.Logging)
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("output")
		return validateFormat(format)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output", "o", formatTable, "output format (table, json, yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(performanceCmd)
	rootCmd.AddCommand(portfolioCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "finsight %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", date)
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show effective configuration and credential status",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintln(out, "  finsight status")
		fmt.Fprintln(out, "═══════════════════════════════════════")
		fmt.Fprintf(out, "  Version:        %s (%s)\n", version, commit)
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  Configuration:")
		fmt.Fprintf(out, "    Data file:      %s\n", cfg.Data.Path)
		fmt.Fprintf(out, "    Source:         %s\n", cfg.Source.Provider)
		fmt.Fprintf(out, "    Trading days:   %d\n", cfg.Portfolio.TradingDays)
		fmt.Fprintf(out, "    Risk-free rate: %.4f\n", cfg.Portfolio.RiskFreeRate)
		fmt.Fprintf(out, "    Charts:         %s (%s, open=%t)\n", cfg.Chart.OutputDir, cfg.Chart.Format, cfg.Chart.Open)
		fmt.Fprintln(out)

		fmt.Fprintln(out, "  API Keys:")
		for _, c := range config.AlpacaCredentials(cfg) {
			fmt.Fprintf(out, "    %-20s %s\n", c.Name+":", c)
		}
		if cfg.Source.Provider == "alpaca" && !config.AlpacaReady(cfg) {
			fmt.Fprintln(out, "    warning: source is alpaca but credentials are incomplete")
		}
		fmt.Fprintln(out, "═══════════════════════════════════════")
		return nil
	},
}
