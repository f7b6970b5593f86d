package config

import (
	"fmt"
	"os"
)

// Secrets read from the environment.
const (
	EnvAlpacaKey    = "FINSIGHT_SOURCE_ALPACA_API_KEY"
	EnvAlpacaSecret = "FINSIGHT_SOURCE_ALPACA_API_SECRET"
)

// Credential reports one Alpaca secret without exposing it.
type Credential struct {
	Name    string `json:"name"           yaml:"name"`
	EnvVar  string `json:"env"            yaml:"env"`
	Set     bool   `json:"set"            yaml:"set"`
	FromEnv bool   `json:"from_env"       yaml:"from_env"`
	Hint    string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

// String renders the credential for the status screen.
func (c Credential) String() string {
	switch {
	case !c.Set:
		return "not set (" + c.EnvVar + ")"
	case c.FromEnv:
		return fmt.Sprintf("set from %s (%s)", c.EnvVar, c.Hint)
	default:
		return fmt.Sprintf("set in config file (%s)", c.Hint)
	}
}

// AlpacaCredentials describes the key and secret the Alpaca source needs.
func AlpacaCredentials(cfg *Config) []Credential {
	return []Credential{
		credential("Alpaca API key", EnvAlpacaKey, cfg.Source.Alpaca.APIKey),
		credential("Alpaca API secret", EnvAlpacaSecret, cfg.Source.Alpaca.APISecret),
	}
}

// AlpacaReady reports whether both Alpaca secrets are configured.
func AlpacaReady(cfg *Config) bool {
	return cfg.Source.Alpaca.APIKey != "" && cfg.Source.Alpaca.APISecret != ""
}

func credential(name, env, value string) Credential {
	c := Credential{Name: name, EnvVar: env, Set: value != ""}
	if c.Set {
		// overrideFromEnv copies the variable into cfg, so equality means
		// the environment won.
		c.FromEnv = os.Getenv(env) == value
		c.Hint = redact(value)
	}
	return c
}

// redact keeps the first and last three characters of long secrets.
func redact(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:3] + "..." + secret[len(secret)-3:]
}
