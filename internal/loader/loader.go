// Package loader reads daily price data from local files into date-indexed
// tables and price series. CSV is the primary format; saved HTML pages are
// read from their first <table>.
package loader

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seenimoa/finsight/pkg/models"
	"github.com/seenimoa/finsight/pkg/utils"
)

// ErrLoad is returned (wrapped) for every failure to read or parse a file.
var ErrLoad = fmt.Errorf("data loading failed")

// Options bounds the rows returned by a load. The date filter applies only
// when both Start and End are set; both ends are inclusive.
type Options struct {
	Start time.Time
	End   time.Time
}

// Loader reads price files.
type Loader struct {
	log *zap.Logger
}

// New creates a Loader. A nil logger disables logging.
func New(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{log: log}
}

// LoadTable reads path, filters by opts and sorts ascending by date.
func (l *Loader) LoadTable(path string, opts Options) (*models.PriceTable, error) {
	raw, err := l.readRecords(path)
	if err != nil {
		return nil, err
	}

	table, err := buildTable(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}

	total := table.Len()
	table = table.Filter(opts.Start, opts.End).SortByDate()

	l.log.Debug("loaded price table",
		zap.String("path", path),
		zap.Strings("columns", table.Columns),
		zap.Int("rows_read", total),
		zap.Int("rows_kept", table.Len()),
	)
	return table, nil
}

// LoadSeries reads path into a PriceSeries. The file must carry Date and
// Close columns.
func (l *Loader) LoadSeries(path string, opts Options) (*models.PriceSeries, error) {
	table, err := l.LoadTable(path, opts)
	if err != nil {
		return nil, err
	}
	ticker := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	series, err := table.ToSeries(ticker)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}
	return series, nil
}

// readRecords dispatches on the file extension.
func (l *Loader) readRecords(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer f.Close()

	var records [][]string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		records, err = readHTMLTable(f)
	default:
		records, err = readCSV(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoad, path, err)
	}
	return records, nil
}

// buildTable turns header + rows into a PriceTable. The Date column is
// required and every cell in it must parse; other cells that are not
// numbers become NaN.
func buildTable(records [][]string) (*models.PriceTable, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	header := make([]string, len(records[0]))
	dateCol := -1
	for i, h := range records[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if strings.EqualFold(h, models.ColumnDate) {
			dateCol = i
		}
	}
	if dateCol < 0 {
		return nil, fmt.Errorf("missing %q column", models.ColumnDate)
	}

	columns := make([]string, 0, len(header)-1)
	for i, h := range header {
		if i != dateCol && h != "" {
			columns = append(columns, canonicalColumn(h))
		}
	}
	table := models.NewPriceTable(columns...)

	for n, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		if dateCol >= len(rec) {
			return nil, fmt.Errorf("row %d: missing date", n+2)
		}
		date, err := utils.ParseDate(rec[dateCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+2, err)
		}

		row := make(map[string]float64, len(columns))
		for i, h := range header {
			if i == dateCol || h == "" {
				continue
			}
			v := math.NaN()
			if i < len(rec) {
				v = parseNumber(rec[i])
			}
			row[canonicalColumn(h)] = v
		}
		table.AppendRow(date, row)
	}
	return table, nil
}

// canonicalColumn maps common header spellings onto the model column names.
func canonicalColumn(h string) string {
	switch strings.ToLower(strings.Join(strings.Fields(h), " ")) {
	case "open":
		return models.ColumnOpen
	case "high":
		return models.ColumnHigh
	case "low":
		return models.ColumnLow
	case "close", "close*", "close price":
		return models.ColumnClose
	case "adj close", "adj close**", "adj_close", "adjclose", "adjusted close":
		return models.ColumnAdjClose
	case "volume", "vol", "vol.":
		return models.ColumnVolume
	}
	return h
}

// parseNumber accepts plain numbers and thousands separators; anything
// else is NaN.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func isBlank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
