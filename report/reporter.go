package report

import (
	"fmt"

	"github.com/YuminosukeSato/diabench/evaluation"
	"github.com/YuminosukeSato/diabench/pkg/log"
)

// Reporter receives records from the evaluation loop and renders them.
// With nil charts no images are written.
type Reporter struct {
	console *Console
	charts  *Charts
	logger  log.Logger
	files   []string
}

// NewReporter creates a reporter printing to console and, when charts is
// non-nil, drawing per-model charts.
func NewReporter(console *Console, charts *Charts, logger log.Logger) *Reporter {
	if logger == nil {
		logger = log.GetLoggerWithName("report")
	}
	return &Reporter{console: console, charts: charts, logger: logger}
}

var _ evaluation.Reporter = (*Reporter)(nil)

// ModelStarted prints the progress line of a model.
func (r *Reporter) ModelStarted(name string) {
	r.console.Progress(name)
}

// ModelEvaluated draws the confusion matrix and, when probabilities exist,
// the ROC curve of rec.
func (r *Reporter) ModelEvaluated(rec *evaluation.ResultRecord) error {
	if rec.Search != nil {
		if skipped := rec.Search.Skipped(); len(skipped) > 0 {
			r.console.Warn(fmt.Sprintf("%s: %d combinaciones omitidas", rec.Model, len(skipped)))
		}
	}
	if r.charts == nil {
		return nil
	}
	path, err := r.charts.Confusion(rec)
	if err != nil {
		return err
	}
	r.wrote(path)
	if rec.YProba != nil && rec.AUC != nil {
		if path, err = r.charts.ROC(rec); err != nil {
			return err
		}
		r.wrote(path)
	}
	return nil
}

// Summary prints the results table, draws the comparison charts and, when
// workbookPath is set, exports the workbook.
func (r *Reporter) Summary(results []evaluation.ResultRecord, workbookPath string) error {
	r.console.Title("Resultados finales")
	r.console.Print(ResultsTable(results))

	if r.charts != nil {
		path, err := r.charts.AccuracyBars(results)
		if err != nil {
			return err
		}
		r.wrote(path)
		hasAUC := false
		for _, rec := range results {
			hasAUC = hasAUC || rec.AUC != nil
		}
		if hasAUC {
			if path, err = r.charts.AUCBars(results); err != nil {
				return err
			}
			r.wrote(path)
		}
	}

	if workbookPath != "" {
		if err := WriteWorkbook(workbookPath, results); err != nil {
			return err
		}
		r.wrote(workbookPath)
	}
	return nil
}

// Files lists every file written so far, in order.
func (r *Reporter) Files() []string {
	return append([]string(nil), r.files...)
}

func (r *Reporter) wrote(path string) {
	r.files = append(r.files, path)
	r.logger.Debug("report written", log.PathKey, path)
}
