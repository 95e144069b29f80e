package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Column kinds reported by Info.
const (
	KindInt    = "int64"
	KindFloat  = "float64"
	KindObject = "object"
)

// ColumnInfo describes one column of the table.
type ColumnInfo struct {
	Name    string
	NonNull int
	Kind    string
}

// TableInfo is the shape of the table and a per-column summary.
type TableInfo struct {
	Rows    int
	Columns []ColumnInfo
}

// Info reports the table shape, the non-empty cell count of every column and
// whether it holds integers, floats or text.
func (f *Frame) Info() TableInfo {
	info := TableInfo{Rows: f.NRows(), Columns: make([]ColumnInfo, len(f.Columns))}
	for j, name := range f.Columns {
		ci := ColumnInfo{Name: name, Kind: KindInt}
		for _, row := range f.rows {
			cell := row[j]
			if cell == "" {
				continue
			}
			ci.NonNull++
			switch ci.Kind {
			case KindInt:
				if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
					continue
				}
				if _, err := strconv.ParseFloat(cell, 64); err == nil {
					ci.Kind = KindFloat
					continue
				}
				ci.Kind = KindObject
			case KindFloat:
				if _, err := strconv.ParseFloat(cell, 64); err != nil {
					ci.Kind = KindObject
				}
			}
		}
		if ci.NonNull == 0 {
			ci.Kind = KindObject
		}
		info.Columns[j] = ci
	}
	return info
}

// DuplicateReport lists fully duplicated data rows. The first occurrence of
// a row is not counted.
type DuplicateReport struct {
	Count   int
	Indices []int
}

// Message is the console summary of the duplicate check.
func (d DuplicateReport) Message() string {
	if d.Count == 0 {
		return fmt.Sprintf("Número de registros duplicados: %d\nNo se encontraron registros duplicados.", d.Count)
	}
	return fmt.Sprintf("Número de registros duplicados: %d\nRegistros duplicados:", d.Count)
}

// Duplicates finds rows identical to an earlier row in every column.
func (f *Frame) Duplicates() DuplicateReport {
	seen := make(map[string]struct{}, len(f.rows))
	var rep DuplicateReport
	for i, row := range f.rows {
		key := strings.Join(row, "\x1f")
		if _, ok := seen[key]; ok {
			rep.Count++
			rep.Indices = append(rep.Indices, i)
			continue
		}
		seen[key] = struct{}{}
	}
	return rep
}

// Rows returns a frame holding the data rows at indices.
func (f *Frame) Rows(indices []int) *Frame {
	rows := make([][]string, len(indices))
	for i, idx := range indices {
		rows[i] = f.rows[idx]
	}
	return &Frame{Source: f.Source, Columns: f.Columns, rows: rows}
}

// Head returns the first n rows (5 when n <= 0).
func (f *Frame) Head(n int) *Frame {
	if n <= 0 {
		n = 5
	}
	if n > f.NRows() {
		n = f.NRows()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return f.Rows(idx)
}

// ColumnSummary holds descriptive statistics of one numeric column.
// Std is the sample standard deviation; quartiles interpolate linearly.
type ColumnSummary struct {
	Column string
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q25    float64
	Q50    float64
	Q75    float64
	Max    float64
}

// Describe summarises every numeric column, skipping empty cells.
func (f *Frame) Describe() ([]ColumnSummary, error) {
	info := f.Info()
	var out []ColumnSummary
	for j, ci := range info.Columns {
		if ci.Kind == KindObject {
			continue
		}
		data := make(stats.Float64Data, 0, ci.NonNull)
		for _, row := range f.rows {
			if row[j] == "" {
				continue
			}
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, err
			}
			data = append(data, v)
		}
		s, err := summarize(ci.Name, data)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func summarize(name string, data stats.Float64Data) (ColumnSummary, error) {
	s := ColumnSummary{Column: name, Count: data.Len()}
	var err error
	if s.Min, err = data.Min(); err != nil {
		return s, err
	}
	if s.Max, err = data.Max(); err != nil {
		return s, err
	}
	if s.Q50, err = data.Median(); err != nil {
		return s, err
	}
	s.Mean = stat.Mean(data, nil)
	s.Std = math.NaN()
	if data.Len() > 1 {
		s.Std = stat.StdDev(data, nil)
	}

	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	s.Q25 = linearQuantile(sorted, 0.25)
	s.Q75 = linearQuantile(sorted, 0.75)
	return s, nil
}

// linearQuantile interpolates between the order statistics around
// q·(n-1) (Hyndman and Fan type 7).
func linearQuantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
