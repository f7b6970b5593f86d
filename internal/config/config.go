// Package config handles configuration loading for finsight.
// It supports YAML config files, a .env file and FINSIGHT_* environment
// variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "FINSIGHT"

// Config represents the complete application configuration.
type Config struct {
	Data       DataConfig       `mapstructure:"data"       yaml:"data"`
	Indicators IndicatorsConfig `mapstructure:"indicators" yaml:"indicators"`
	Portfolio  PortfolioConfig  `mapstructure:"portfolio"  yaml:"portfolio"`
	Source     SourceConfig     `mapstructure:"source"     yaml:"source"`
	Chart      ChartConfig      `mapstructure:"chart"      yaml:"chart"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
}

// DataConfig holds the offline analysis input.
type DataConfig struct {
	Path         string   `mapstructure:"path"          yaml:"path"`
	StartDate    string   `mapstructure:"start_date"    yaml:"start_date"` // inclusive, optional
	EndDate      string   `mapstructure:"end_date"      yaml:"end_date"`   // inclusive, optional
	AssetColumns []string `mapstructure:"asset_columns" yaml:"asset_columns"`
}

// IndicatorsConfig holds technical indicator periods.
type IndicatorsConfig struct {
	SMAPeriod  int `mapstructure:"sma_period"  yaml:"sma_period"`
	RSIPeriod  int `mapstructure:"rsi_period"  yaml:"rsi_period"`
	EMAPeriod  int `mapstructure:"ema_period"  yaml:"ema_period"`
	MACDFast   int `mapstructure:"macd_fast"   yaml:"macd_fast"`
	MACDSlow   int `mapstructure:"macd_slow"   yaml:"macd_slow"`
	MACDSignal int `mapstructure:"macd_signal" yaml:"macd_signal"`
}

// PortfolioConfig holds annualisation and optimisation settings.
type PortfolioConfig struct {
	TradingDays  int     `mapstructure:"trading_days"   yaml:"trading_days"`
	RiskFreeRate float64 `mapstructure:"risk_free_rate" yaml:"risk_free_rate"`
	StartDate    string  `mapstructure:"start_date"     yaml:"start_date"`
	WeightCutoff float64 `mapstructure:"weight_cutoff"  yaml:"weight_cutoff"`
	Rounding     int     `mapstructure:"rounding"       yaml:"rounding"`
}

// SourceConfig selects and configures the market data source.
type SourceConfig struct {
	Provider     string        `mapstructure:"provider"       yaml:"provider"` // "yahoo" or "alpaca"
	YahooBaseURL string        `mapstructure:"yahoo_base_url" yaml:"yahoo_base_url"`
	Timeout      time.Duration `mapstructure:"timeout"        yaml:"timeout"`
	RateLimit    int           `mapstructure:"rate_limit"     yaml:"rate_limit"` // requests per second
	Alpaca       AlpacaConfig  `mapstructure:"alpaca"         yaml:"alpaca"`
}

// AlpacaConfig holds Alpaca market-data credentials.
type AlpacaConfig struct {
	APIKey    string `mapstructure:"api_key"    yaml:"api_key"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"`
	BaseURL   string `mapstructure:"base_url"   yaml:"base_url"`
	Feed      string `mapstructure:"feed"       yaml:"feed"` // "iex" or "sip"
}

// ChartConfig controls where charts are written and how they look.
type ChartConfig struct {
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	Format    string `mapstructure:"format"     yaml:"format"` // "html" or "svg"
	Open      bool   `mapstructure:"open"       yaml:"open"`   // open in the system viewer
	Width     int    `mapstructure:"width"      yaml:"width"`
	Height    int    `mapstructure:"height"     yaml:"height"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.finsight/config.yaml (home directory)
//  3. /etc/finsight/config.yaml (system)
//
// A .env file in the working directory is loaded first; variables already
// set in the environment win. Environment variables override config file
// values. Format: FINSIGHT_<SECTION>_<KEY>, e.g. FINSIGHT_PORTFOLIO_TRADING_DAYS.
func Load() (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".finsight"))
	v.AddConfigPath("/etc/finsight")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Data defaults
	v.SetDefault("data.path", "data/prices.csv")
	v.SetDefault("data.start_date", "")
	v.SetDefault("data.end_date", "")
	v.SetDefault("data.asset_columns", []string{})

	// Indicator defaults
	v.SetDefault("indicators.sma_period", 20)
	v.SetDefault("indicators.rsi_period", 14)
	v.SetDefault("indicators.ema_period", 20)
	v.SetDefault("indicators.macd_fast", 12)
	v.SetDefault("indicators.macd_slow", 26)
	v.SetDefault("indicators.macd_signal", 9)

	// Portfolio defaults
	v.SetDefault("portfolio.trading_days", 252)
	v.SetDefault("portfolio.risk_free_rate", 0.02)
	v.SetDefault("portfolio.start_date", "2020-01-01")
	v.SetDefault("portfolio.weight_cutoff", 1e-4)
	v.SetDefault("portfolio.rounding", 5)

	// Source defaults
	v.SetDefault("source.provider", "yahoo")
	v.SetDefault("source.yahoo_base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("source.timeout", 30*time.Second)
	v.SetDefault("source.rate_limit", 5)
	v.SetDefault("source.alpaca.api_key", "")
	v.SetDefault("source.alpaca.api_secret", "")
	v.SetDefault("source.alpaca.base_url", "")
	v.SetDefault("source.alpaca.feed", "iex")

	// Chart defaults
	v.SetDefault("chart.output_dir", "charts")
	v.SetDefault("chart.format", "html")
	v.SetDefault("chart.open", false)
	v.SetDefault("chart.width", 1000)
	v.SetDefault("chart.height", 600)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(EnvAlpacaKey); key != "" {
		cfg.Source.Alpaca.APIKey = key
	}
	if key := os.Getenv(EnvAlpacaSecret); key != "" {
		cfg.Source.Alpaca.APISecret = key
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Source.Provider {
	case "yahoo", "alpaca":
	default:
		return fmt.Errorf("source.provider: unknown provider %q", c.Source.Provider)
	}
	switch c.Chart.Format {
	case "html", "svg":
	default:
		return fmt.Errorf("chart.format: unknown format %q", c.Chart.Format)
	}
	if c.Portfolio.TradingDays <= 0 {
		return fmt.Errorf("portfolio.trading_days must be positive, got %d", c.Portfolio.TradingDays)
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
