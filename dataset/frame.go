// Package dataset loads the clinical table and turns it into the feature
// matrix and label vector used by the benchmark.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/diabench/pkg/errors"
	"github.com/YuminosukeSato/diabench/pkg/log"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

// Features are the clinical attributes used for training, in matrix column order.
var Features = []string{"Edad", "Glucosa", "HbA1c", "Colesterol", "Trigliceridos", "HDL", "LDL", "IMC"}

// Target is the binary outcome column.
const Target = "Diabetes"

// Frame is a table of trimmed string cells with a header row. Empty cells
// are treated as missing.
type Frame struct {
	Source  string
	Columns []string
	rows    [][]string
}

// NewFrame builds a frame from a header and data rows. Short rows are padded
// with empty cells and long rows truncated to the header width.
func NewFrame(source string, columns []string, rows [][]string) *Frame {
	f := &Frame{Source: source, Columns: make([]string, len(columns))}
	for i, c := range columns {
		f.Columns[i] = strings.TrimSpace(c)
	}
	f.rows = make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, len(columns))
		for j := 0; j < len(columns) && j < len(r); j++ {
			row[j] = strings.TrimSpace(r[j])
		}
		f.rows[i] = row
	}
	return f
}

// Load reads a .csv file or the first sheet of an .xlsx file.
func Load(path string) (*Frame, error) {
	logger := log.GetLoggerWithName("dataset").With(log.PathKey, path)

	var (
		f   *Frame
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		var file *os.File
		file, err = os.Open(path)
		if err != nil {
			return nil, errors.Wrap(err, "open data file")
		}
		defer file.Close()
		f, err = ReadCSV(file, path)
	case ".xlsx", ".xlsm":
		f, err = readXLSX(path)
	default:
		return nil, errors.NewValueError("dataset.Load", fmt.Sprintf("unsupported file type %q (want .csv or .xlsx)", ext))
	}
	if err != nil {
		return nil, err
	}

	logger.Info("data loaded", log.SamplesKey, f.NRows(), log.FeaturesKey, len(f.Columns))
	return f, nil
}

// ReadCSV parses comma-separated data with a header row.
func ReadCSV(r io.Reader, source string) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read CSV", source)
	}
	return fromRecords(source, records)
}

func readXLSX(path string) (*Frame, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewValueError("dataset.Load", path+": workbook has no sheets")
	}
	records, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read sheet %q", path, sheets[0])
	}
	return fromRecords(path, records)
}

func fromRecords(source string, records [][]string) (*Frame, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, errors.NewValueError("dataset.Load", source+": missing header row")
	}
	return NewFrame(source, records[0], records[1:]), nil
}

// NRows returns the number of data rows.
func (f *Frame) NRows() int { return len(f.rows) }

// Row returns a copy of data row i.
func (f *Frame) Row(i int) []string { return append([]string(nil), f.rows[i]...) }

// ColumnIndex returns the position of name in the header, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Select returns a frame with only the named columns, in the given order.
// Every absent column is reported in a single MissingColumnError.
func (f *Frame) Select(columns ...string) (*Frame, error) {
	idx := make([]int, len(columns))
	var missing []string
	for i, c := range columns {
		idx[i] = f.ColumnIndex(c)
		if idx[i] < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewMissingColumnError(f.Source, missing)
	}

	rows := make([][]string, len(f.rows))
	for r, row := range f.rows {
		out := make([]string, len(idx))
		for j, k := range idx {
			out[j] = row[k]
		}
		rows[r] = out
	}
	return &Frame{Source: f.Source, Columns: append([]string(nil), columns...), rows: rows}, nil
}

// Float parses column name as numbers. Row numbers in errors are 1-based
// data rows.
func (f *Frame) Float(name string) ([]float64, error) {
	j := f.ColumnIndex(name)
	if j < 0 {
		return nil, errors.NewMissingColumnError(f.Source, []string{name})
	}
	out := make([]float64, len(f.rows))
	for i, row := range f.rows {
		cell := row[j]
		if cell == "" {
			return nil, errors.NewCellError(i+1, name, cell, "missing value")
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, errors.NewCellError(i+1, name, cell, "not a number")
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.NewCellError(i+1, name, cell, "not a finite number")
		}
		out[i] = v
	}
	return out, nil
}

// XY builds the feature matrix and the n×1 label vector. Target values must
// be 0 or 1.
func (f *Frame) XY(features []string, target string) (*mat.Dense, *mat.Dense, error) {
	sel, err := f.Select(append(append([]string(nil), features...), target)...)
	if err != nil {
		return nil, nil, err
	}
	n := sel.NRows()
	if n == 0 {
		return nil, nil, errors.NewValueError("dataset.XY", f.Source+": no data rows")
	}

	X := mat.NewDense(n, len(features), nil)
	for j, name := range features {
		col, err := sel.Float(name)
		if err != nil {
			return nil, nil, err
		}
		X.SetCol(j, col)
	}

	labels, err := sel.Float(target)
	if err != nil {
		return nil, nil, err
	}
	for i, v := range labels {
		if v != 0 && v != 1 {
			return nil, nil, errors.NewCellError(i+1, target, sel.rows[i][len(features)], "label must be 0 or 1")
		}
	}
	return X, mat.NewDense(n, 1, labels), nil
}
