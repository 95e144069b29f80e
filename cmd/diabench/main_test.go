package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/diabench/config"
	"github.com/YuminosukeSato/diabench/evaluation"
	"github.com/YuminosukeSato/diabench/model_selection"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"github.com/YuminosukeSato/diabench/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeClinicalCSV writes 70 negative and 30 positive records in which
// Glucosa separates the classes. Sexo is dropped by feature selection.
func writeClinicalCSV(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("Edad,Sexo,Glucosa,HbA1c,Colesterol,Trigliceridos,HDL,LDL,IMC,Diabetes\n")
	for i := 0; i < 100; i++ {
		label, glucosa := 0, 80+float64(i%20)
		if i%10 < 3 {
			label, glucosa = 1, 180+float64(i%20)
		}
		fmt.Fprintf(&b, "%d,%s,%.1f,%.1f,%d,%d,%d,%d,%.1f,%d\n",
			30+i%40, []string{"M", "F"}[i%2], glucosa, 5+float64(i%7)/10,
			180+i%30, 120+i%25, 45+i%15, 100+i%35, 22+float64(i%9)/2, label)
	}
	path := filepath.Join(t.TempDir(), "diabetes.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func smallRegistry(seed int64) *evaluation.Registry {
	grids := map[string]model_selection.ParamGrid{
		evaluation.RandomForestName:       {"n_estimators": {10}, "max_depth": {nil}},
		evaluation.LogisticRegressionName: {"C": {1.0}, "solver": {"lbfgs"}},
		evaluation.KNNName:                {"n_neighbors": {3}, "weights": {"uniform", "distance"}},
		evaluation.SVMName:                {"C": {1.0}, "kernel": {"linear"}},
		evaluation.NeuralNetworkName:      {"hidden_layer_sizes": {[]int{10}}, "learning_rate_init": {0.01}},
	}
	specs := evaluation.DefaultRegistry(seed).Specs()
	for i := range specs {
		specs[i].Grid = grids[specs[i].Name]
	}
	return evaluation.NewRegistry(specs...)
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.DataPath = writeClinicalCSV(t)
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.CVFolds = 3
	cfg.NoColor = true
	return cfg
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	logger, logs := log.NewTestLogger(log.LevelInfo)
	var stdout bytes.Buffer

	require.NoError(t, run(context.Background(), cfg, smallRegistry(cfg.Seed), &stdout, logger))

	out := stdout.String()
	assert.Contains(t, out, "Registros: 100, Columnas: 10")
	assert.Contains(t, out, "No se encontraron registros duplicados.")
	for _, name := range smallRegistry(cfg.Seed).Names() {
		assert.Contains(t, out, "Optimizando "+name+"...")
	}
	assert.Contains(t, out, "Resultados finales")

	// SMOTE balances 70/30 into 70/70
	assert.True(t, logger.ContainsField(log.SamplesKey, 140.0), logs.String())
	assert.True(t, logger.ContainsMessage("run finished"))

	pngs, err := filepath.Glob(filepath.Join(cfg.OutputDir, "*.png"))
	require.NoError(t, err)
	// five confusion matrices, five ROC curves, two bar charts
	assert.Len(t, pngs, 12)
	_, err = os.Stat(cfg.WorkbookPath())
	assert.NoError(t, err)
}

func TestRunWithoutOutputs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Charts = false
	cfg.ExportXLSX = false
	logger, _ := log.NewTestLogger(log.LevelInfo)

	require.NoError(t, run(context.Background(), cfg, smallRegistry(cfg.Seed), &bytes.Buffer{}, logger))
	_, err := os.Stat(cfg.OutputDir)
	assert.True(t, os.IsNotExist(err))
}

func TestRunWorkbookWithoutCharts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Charts = false
	cfg.ExportXLSX = true
	logger, _ := log.NewTestLogger(log.LevelInfo)

	require.NoError(t, run(context.Background(), cfg, smallRegistry(cfg.Seed), &bytes.Buffer{}, logger))
	_, err := os.Stat(cfg.WorkbookPath())
	assert.NoError(t, err)
	pngs, err := filepath.Glob(filepath.Join(cfg.OutputDir, "*.png"))
	require.NoError(t, err)
	assert.Empty(t, pngs)
}

func TestRunErrors(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelInfo)

	t.Run("missing file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.DataPath = filepath.Join(t.TempDir(), "absent.csv")
		err := run(context.Background(), cfg, smallRegistry(cfg.Seed), &bytes.Buffer{}, logger)
		assert.Error(t, err)
	})

	t.Run("missing columns", func(t *testing.T) {
		cfg := testConfig(t)
		path := filepath.Join(t.TempDir(), "partial.csv")
		require.NoError(t, os.WriteFile(path, []byte("Edad,Glucosa,Diabetes\n40,90,0\n50,190,1\n"), 0o600))
		cfg.DataPath = path
		err := run(context.Background(), cfg, smallRegistry(cfg.Seed), &bytes.Buffer{}, logger)
		var mce *errors.MissingColumnError
		require.True(t, errors.As(err, &mce), "got %v", err)
		assert.Contains(t, err.Error(), "HbA1c")
	})

	t.Run("cancelled", func(t *testing.T) {
		cfg := testConfig(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := run(ctx, cfg, smallRegistry(cfg.Seed), &bytes.Buffer{}, logger)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
