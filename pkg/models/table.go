package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PriceTable is a wide, date-indexed table of numeric columns: one column
// per CSV field or one column per ticker. Missing cells hold NaN.
type PriceTable struct {
	Dates   []time.Time          `json:"dates"`
	Columns []string             `json:"columns"`
	Values  map[string][]float64 `json:"values"`
}

// NewPriceTable creates an empty table with the given column order.
func NewPriceTable(columns ...string) *PriceTable {
	t := &PriceTable{
		Columns: append([]string(nil), columns...),
		Values:  make(map[string][]float64, len(columns)),
	}
	for _, c := range columns {
		t.Values[c] = nil
	}
	return t
}

// Len returns the number of rows.
func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Dates)
}

// HasColumn reports whether the table carries the named column.
func (t *PriceTable) HasColumn(name string) bool {
	_, ok := t.Values[name]
	return ok
}

// Column returns the named column.
func (t *PriceTable) Column(name string) ([]float64, error) {
	vals, ok := t.Values[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	return vals, nil
}

// AppendRow adds one row. Columns absent from row receive NaN.
func (t *PriceTable) AppendRow(date time.Time, row map[string]float64) {
	t.Dates = append(t.Dates, date)
	for _, c := range t.Columns {
		v, ok := row[c]
		if !ok {
			v = math.NaN()
		}
		t.Values[c] = append(t.Values[c], v)
	}
}

// Row returns the values of row i in column order.
func (t *PriceTable) Row(i int) []float64 {
	out := make([]float64, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = t.Values[c][i]
	}
	return out
}

// Filter keeps rows whose date lies in [from, to]. The filter applies only
// when both bounds are set; otherwise the table is returned unchanged.
func (t *PriceTable) Filter(from, to time.Time) *PriceTable {
	if from.IsZero() || to.IsZero() {
		return t
	}
	keep := make([]int, 0, len(t.Dates))
	for i, d := range t.Dates {
		if !d.Before(from) && !d.After(to) {
			keep = append(keep, i)
		}
	}
	return t.pick(keep)
}

// SortByDate returns a copy ordered ascending by date. Rows with equal
// dates keep their file order.
func (t *PriceTable) SortByDate() *PriceTable {
	idx := make([]int, len(t.Dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return t.Dates[idx[a]].Before(t.Dates[idx[b]])
	})
	return t.pick(idx)
}

// Select returns a table restricted to the given columns, in that order.
func (t *PriceTable) Select(columns ...string) (*PriceTable, error) {
	out := NewPriceTable(columns...)
	out.Dates = append([]time.Time(nil), t.Dates...)
	for _, c := range columns {
		vals, err := t.Column(c)
		if err != nil {
			return nil, err
		}
		out.Values[c] = append([]float64(nil), vals...)
	}
	return out, nil
}

// DropNaN removes every row holding NaN in any column.
func (t *PriceTable) DropNaN() *PriceTable {
	keep := make([]int, 0, len(t.Dates))
	for i := range t.Dates {
		ok := true
		for _, c := range t.Columns {
			if math.IsNaN(t.Values[c][i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	return t.pick(keep)
}

// PctChange returns the period-over-period percentage change of every
// column. Row 0 is NaN, as is any row whose previous value is NaN or zero.
func (t *PriceTable) PctChange() *PriceTable {
	out := NewPriceTable(t.Columns...)
	out.Dates = append([]time.Time(nil), t.Dates...)
	for _, c := range t.Columns {
		src := t.Values[c]
		dst := make([]float64, len(src))
		for i := range src {
			if i == 0 || src[i-1] == 0 {
				dst[i] = math.NaN()
				continue
			}
			dst[i] = src[i]/src[i-1] - 1
		}
		out.Values[c] = dst
	}
	return out
}

// Matrix returns the table as row-major data suitable for gonum.
func (t *PriceTable) Matrix() []float64 {
	data := make([]float64, 0, len(t.Dates)*len(t.Columns))
	for i := range t.Dates {
		data = append(data, t.Row(i)...)
	}
	return data
}

func (t *PriceTable) pick(idx []int) *PriceTable {
	out := NewPriceTable(t.Columns...)
	out.Dates = make([]time.Time, len(idx))
	for j, i := range idx {
		out.Dates[j] = t.Dates[i]
	}
	for _, c := range t.Columns {
		src := t.Values[c]
		dst := make([]float64, len(idx))
		for j, i := range idx {
			dst[j] = src[i]
		}
		out.Values[c] = dst
	}
	return out
}

// ToSeries converts a table holding at least a Close column into a
// PriceSeries. Optional OHLC, Adj Close and Volume columns are carried over.
func (t *PriceTable) ToSeries(ticker string) (*PriceSeries, error) {
	closes, err := t.Column(ColumnClose)
	if err != nil {
		return nil, err
	}
	get := func(name string, i int) float64 {
		if vals, ok := t.Values[name]; ok {
			return vals[i]
		}
		return 0
	}

	s := &PriceSeries{Ticker: ticker, Bars: make([]OHLCV, len(t.Dates))}
	for i, d := range t.Dates {
		vol := get(ColumnVolume, i)
		if math.IsNaN(vol) {
			vol = 0
		}
		s.Bars[i] = OHLCV{
			Timestamp: d,
			Open:      get(ColumnOpen, i),
			High:      get(ColumnHigh, i),
			Low:       get(ColumnLow, i),
			Close:     closes[i],
			Volume:    int64(vol),
			AdjClose:  get(ColumnAdjClose, i),
		}
	}
	return s, nil
}
