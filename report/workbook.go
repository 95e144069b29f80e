package report

import (
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/diabench/evaluation"
	"github.com/YuminosukeSato/diabench/model_selection"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook.
const (
	ResultsSheet = "Resultados"
	SearchSheet  = "Busqueda"
)

// SearchHeaders are the column titles of the search sheet.
var SearchHeaders = []string{"Modelo", "Hiperparámetros", "Exactitud CV (media)", "Exactitud CV (desv.)", "Estado", "Motivo"}

// WriteWorkbook saves the results table and every search trial to path.
func WriteWorkbook(path string, results []evaluation.ResultRecord) (err error) {
	wb := excelize.NewFile()
	defer func() {
		if cerr := wb.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close workbook")
		}
	}()

	if err := wb.SetSheetName(wb.GetSheetName(0), ResultsSheet); err != nil {
		return errors.Wrap(err, "rename results sheet")
	}
	if err := writeRow(wb, ResultsSheet, 1, toAny(ResultHeaders)); err != nil {
		return err
	}
	for i, row := range ResultRows(results) {
		if err := writeRow(wb, ResultsSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := wb.NewSheet(SearchSheet); err != nil {
		return errors.Wrap(err, "create search sheet")
	}
	if err := writeRow(wb, SearchSheet, 1, toAny(SearchHeaders)); err != nil {
		return err
	}
	line := 2
	for _, r := range results {
		if r.Search == nil {
			continue
		}
		for _, t := range r.Search.Trials {
			row := []interface{}{r.Model, t.Params.String(), nil, nil, t.Status.String(), nil}
			if t.Status == model_selection.TrialOk {
				row[2], row[3] = t.MeanScore, t.StdScore
			} else {
				row[5] = t.Reason
			}
			if err := writeRow(wb, SearchSheet, line, row); err != nil {
				return err
			}
			line++
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	if err := wb.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save workbook %s", path)
	}
	return nil
}

func writeRow(wb *excelize.File, sheet string, line int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return errors.Wrap(err, "cell name")
	}
	if err := wb.SetSheetRow(sheet, cell, &values); err != nil {
		return errors.Wrapf(err, "write %s row %d", sheet, line)
	}
	return nil
}

func toAny(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
