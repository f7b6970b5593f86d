package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeTicker trims whitespace and a leading "$" and upper-cases the symbol.
func NormalizeTicker(ticker string) string {
	t := strings.TrimSpace(ticker)
	t = strings.TrimPrefix(t, "$")
	return strings.ToUpper(t)
}

// ParseTickers splits a comma or space separated list of tickers,
// normalising each and dropping duplicates while keeping order.
func ParseTickers(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		t := NormalizeTicker(f)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// ParseWeights parses "AAPL=0.6,MSFT=0.4" into a ticker→weight map.
// Weights must be non-negative numbers.
func ParseWeights(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			k, v, ok = strings.Cut(part, ":")
		}
		if !ok {
			return nil, fmt.Errorf("weight %q: expected TICKER=WEIGHT", part)
		}
		ticker := NormalizeTicker(k)
		w, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", part, err)
		}
		if w < 0 {
			return nil, fmt.Errorf("weight %q: must not be negative", part)
		}
		if _, dup := out[ticker]; dup {
			return nil, fmt.Errorf("weight for %s given twice", ticker)
		}
		out[ticker] = w
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no weights given")
	}
	return out, nil
}
