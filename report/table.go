// Package report renders benchmark progress and results: console output,
// grid tables, PNG charts and an XLSX workbook.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/YuminosukeSato/diabench/evaluation"
)

// ResultHeaders are the column titles of the results table.
var ResultHeaders = []string{
	"Modelo", "Mejores Hiperparámetros", "Exactitud", "AUC", "Precisión", "Sensibilidad", "F1-Score",
}

// ResultRows turns records into table rows. A missing AUC stays nil and
// renders as an empty cell.
func ResultRows(results []evaluation.ResultRecord) [][]interface{} {
	rows := make([][]interface{}, len(results))
	for i, r := range results {
		var auc interface{}
		if r.AUC != nil {
			auc = *r.AUC
		}
		rows[i] = []interface{}{r.Model, r.BestParams.String(), r.Accuracy, auc, r.Precision, r.Recall, r.F1}
	}
	return rows
}

// ResultsTable renders the results table in grid layout.
func ResultsTable(results []evaluation.ResultRecord) string {
	return Grid(ResultHeaders, ResultRows(results))
}

// Grid renders rows in the "grid" layout: every row boxed by +---+ rules,
// the header separated by +===+. Cells may be strings, ints, float64 or nil
// (empty). Columns whose non-empty cells are all numbers are right aligned on
// the decimal point; floats print with six significant digits.
func Grid(headers []string, rows [][]interface{}) string {
	nCols := len(headers)
	for _, r := range rows {
		if len(r) > nCols {
			nCols = len(r)
		}
	}

	cells := make([][]string, len(rows))
	numeric := make([]bool, nCols)
	for j := range numeric {
		numeric[j] = true
	}
	for i, r := range rows {
		cells[i] = make([]string, nCols)
		for j := 0; j < nCols; j++ {
			var v interface{}
			if j < len(r) {
				v = r[j]
			}
			s, isNum := formatCell(v)
			cells[i][j] = s
			if !isNum && v != nil {
				numeric[j] = false
			}
		}
	}

	for j := 0; j < nCols; j++ {
		if numeric[j] {
			alignDecimal(cells, j)
		}
	}

	widths := make([]int, nCols)
	for j := 0; j < nCols; j++ {
		if j < len(headers) {
			widths[j] = utf8.RuneCountInString(headers[j]) + 2
		}
		for i := range cells {
			if w := utf8.RuneCountInString(cells[i][j]); w > widths[j] {
				widths[j] = w
			}
		}
	}

	var b strings.Builder
	rule := func(fill string) {
		b.WriteByte('+')
		for _, w := range widths {
			b.WriteString(strings.Repeat(fill, w+2))
			b.WriteByte('+')
		}
		b.WriteByte('\n')
	}
	line := func(values []string) {
		b.WriteByte('|')
		for j, w := range widths {
			v := ""
			if j < len(values) {
				v = values[j]
			}
			b.WriteByte(' ')
			b.WriteString(pad(v, w, numeric[j]))
			b.WriteString(" |")
		}
		b.WriteByte('\n')
	}

	rule("-")
	line(headers)
	rule("=")
	for _, r := range cells {
		line(r)
		rule("-")
	}
	return b.String()
}

func formatCell(v interface{}) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case float64:
		return strconv.FormatFloat(x, 'g', 6, 64), true
	case int:
		return strconv.Itoa(x), true
	case string:
		if _, err := strconv.ParseFloat(x, 64); err == nil {
			return x, true
		}
		return x, false
	case fmt.Stringer:
		return x.String(), false
	default:
		return fmt.Sprint(x), false
	}
}

// alignDecimal pads the fractional parts of column j to a common width.
func alignDecimal(cells [][]string, j int) {
	maxFrac := 0
	for i := range cells {
		if f := fracWidth(cells[i][j]); f > maxFrac {
			maxFrac = f
		}
	}
	for i := range cells {
		if cells[i][j] == "" {
			continue
		}
		cells[i][j] += strings.Repeat(" ", maxFrac-fracWidth(cells[i][j]))
	}
}

// fracWidth counts the characters from the decimal point on.
func fracWidth(s string) int {
	if s == "" || strings.ContainsAny(s, "eE") {
		return 0
	}
	if k := strings.IndexByte(s, '.'); k >= 0 {
		return len(s) - k
	}
	return 0
}

func pad(s string, width int, right bool) string {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", n) + s
	}
	return s + strings.Repeat(" ", n)
}
