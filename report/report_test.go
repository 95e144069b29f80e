package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/diabench/dataset"
	"github.com/YuminosukeSato/diabench/evaluation"
	"github.com/YuminosukeSato/diabench/model_selection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"
)

func TestGrid(t *testing.T) {
	got := Grid([]string{"Modelo", "Exactitud", "AUC"}, [][]interface{}{
		{"KNN", 0.95, nil},
		{"SVM", 1.0, 0.5},
	})
	want := strings.Join([]string{
		"+----------+-------------+-------+",
		"| Modelo   |   Exactitud |   AUC |",
		"+==========+=============+=======+",
		"| KNN      |        0.95 |       |",
		"+----------+-------------+-------+",
		"| SVM      |        1    |   0.5 |",
		"+----------+-------------+-------+",
	}, "\n") + "\n"
	assert.Equal(t, want, got)
}

func TestGridFormatting(t *testing.T) {
	tests := []struct {
		name string
		cell interface{}
		want string
	}{
		{"six significant digits", 0.9533333333333334, "0.953333"},
		{"whole float", 1.0, "1"},
		{"int", 42, "42"},
		{"small float", 0.0001, "0.0001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, numeric := formatCell(tt.cell)
			assert.Equal(t, tt.want, s)
			assert.True(t, numeric)
		})
	}

	// accented headers are measured in characters, not bytes
	out := Grid([]string{"Precisión"}, [][]interface{}{{"x"}})
	lines := strings.Split(out, "\n")
	assert.Equal(t, len([]rune(lines[0])), len([]rune(lines[1])))
}

func sampleResults() []evaluation.ResultRecord {
	auc := 0.875
	yTest := mat.NewVecDense(8, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	yPred := mat.NewVecDense(8, []float64{0, 0, 0, 1, 1, 1, 1, 0})
	proba := mat.NewVecDense(8, []float64{0.1, 0.2, 0.3, 0.6, 0.7, 0.8, 0.9, 0.4})
	cm := mat.NewDense(2, 2, []float64{3, 1, 1, 3})

	search := &model_selection.SearchResult{
		Trials: []model_selection.Trial{
			{Index: 0, Params: model_selection.Params{"n_neighbors": 3}, Status: model_selection.TrialOk, MeanScore: 0.8, StdScore: 0.05},
			{Index: 1, Params: model_selection.Params{"n_neighbors": 500}, Status: model_selection.TrialSkipped, Reason: "fold 0: too many neighbors"},
		},
		BestParams: model_selection.Params{"n_neighbors": 3},
	}
	return []evaluation.ResultRecord{
		{
			Model: "KNN", BestParams: search.BestParams, Accuracy: 0.75, AUC: &auc,
			Precision: 0.75, Recall: 0.75, F1: 0.75,
			YTest: yTest, YPred: yPred, YProba: proba, Confusion: cm, Search: search,
		},
		{
			Model: "Sin AUC", BestParams: model_selection.Params{"C": 1.0}, Accuracy: 0.5,
			YTest: yTest, YPred: yPred, Confusion: cm,
		},
	}
}

func TestResultsTable(t *testing.T) {
	out := ResultsTable(sampleResults())
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	for _, h := range ResultHeaders {
		assert.Contains(t, lines[1], h)
	}
	assert.Contains(t, lines[3], "{'n_neighbors': 3}")
	assert.Contains(t, lines[3], "0.875")
	assert.Contains(t, lines[5], "{'C': 1}")
}

func TestCharts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	charts, err := NewCharts(dir)
	require.NoError(t, err)
	results := sampleResults()

	paths := []string{}
	p, err := charts.Confusion(&results[0])
	require.NoError(t, err)
	paths = append(paths, p)
	p, err = charts.ROC(&results[0])
	require.NoError(t, err)
	paths = append(paths, p)
	p, err = charts.AccuracyBars(results)
	require.NoError(t, err)
	paths = append(paths, p)
	p, err = charts.AUCBars(results)
	require.NoError(t, err)
	paths = append(paths, p)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Greater(t, info.Size(), int64(0), p)
		assert.Equal(t, ".png", filepath.Ext(p))
	}
	assert.Equal(t, filepath.Join(dir, "confusion_knn.png"), paths[0])

	_, err = charts.ROC(&results[1])
	assert.Error(t, err)
	_, err = charts.AUCBars(results[1:])
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "máquinas_de_soporte_vectorial", slug("Máquinas de Soporte Vectorial"))
	assert.Equal(t, "regresión_logística", slug("Regresión Logística"))
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resultados.xlsx")
	require.NoError(t, WriteWorkbook(path, sampleResults()))

	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer wb.Close()

	assert.Equal(t, []string{ResultsSheet, SearchSheet}, wb.GetSheetList())

	rows, err := wb.GetRows(ResultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ResultHeaders, rows[0])
	assert.Equal(t, "KNN", rows[1][0])
	assert.Equal(t, "0.875", rows[1][3])
	assert.Equal(t, "", rows[2][3])

	trials, err := wb.GetRows(SearchSheet)
	require.NoError(t, err)
	require.Len(t, trials, 3)
	assert.Equal(t, "ok", trials[1][4])
	assert.Equal(t, "skipped", trials[2][4])
	assert.Equal(t, "fold 0: too many neighbors", trials[2][5])

	// missing parent directories are created
	nested := filepath.Join(t.TempDir(), "a", "b", "resultados.xlsx")
	require.NoError(t, WriteWorkbook(nested, sampleResults()))
	_, err = os.Stat(nested)
	assert.NoError(t, err)
}

func TestReporter(t *testing.T) {
	var buf bytes.Buffer
	charts, err := NewCharts(t.TempDir())
	require.NoError(t, err)
	r := NewReporter(NewConsole(&buf, true), charts, nil)
	results := sampleResults()

	r.ModelStarted("KNN")
	require.NoError(t, r.ModelEvaluated(&results[0]))
	require.NoError(t, r.ModelEvaluated(&results[1]))
	workbook := filepath.Join(t.TempDir(), "r.xlsx")
	require.NoError(t, r.Summary(results, workbook))

	out := buf.String()
	assert.Contains(t, out, "Optimizando KNN...\n")
	assert.Contains(t, out, "KNN: 1 combinaciones omitidas")
	assert.Contains(t, out, "Resultados finales")
	// confusion ×2, ROC ×1, accuracy and AUC bars, workbook
	assert.Len(t, r.Files(), 6)
	assert.Equal(t, workbook, r.Files()[5])
}

func TestConsoleEDA(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, true)
	f := dataset.NewFrame("mem", []string{"Edad", "Sexo"}, [][]string{{"40", "M"}, {"50", "F"}, {"40", "M"}})

	c.Info(f)
	c.Duplicates(f)
	require.NoError(t, c.Describe(f))
	c.Head(f, 2)

	out := buf.String()
	assert.Contains(t, out, "Registros: 3, Columnas: 2")
	assert.Contains(t, out, "Número de registros duplicados: 1")
	assert.Contains(t, out, "| mean  |")
	assert.Contains(t, out, "43.3333")
	assert.NotContains(t, out, "\x1b[")
}
