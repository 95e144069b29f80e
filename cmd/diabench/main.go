// Command diabench benchmarks five classifier families on a clinical
// diabetes table and writes the comparison to the console and output dir.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YuminosukeSato/diabench/config"
	"github.com/YuminosukeSato/diabench/dataset"
	"github.com/YuminosukeSato/diabench/evaluation"
	"github.com/YuminosukeSato/diabench/model_selection"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"github.com/YuminosukeSato/diabench/pkg/log"
	"github.com/YuminosukeSato/diabench/preprocessing"
	"github.com/YuminosukeSato/diabench/report"
	"github.com/YuminosukeSato/diabench/sklearn/over_sampling"
	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "", "optional .hcl, .yaml or .yml run configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath, ".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "diabench: %v\n", err)
		os.Exit(2)
	}

	provider := log.NewZerologProvider(os.Stderr, cfg.LogLevelValue(), log.Format(cfg.LogFormat),
		log.RunIDKey, uuid.NewString())
	log.SetProvider(provider)
	logger := log.GetLoggerWithName("diabench")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, evaluation.DefaultRegistry(cfg.Seed), os.Stdout, logger); err != nil {
		logger.Error("run failed", err)
		stop()
		os.Exit(1)
	}
}

// run executes the whole pipeline: load, explore, balance, scale, split,
// evaluate every registered model and report.
func run(ctx context.Context, cfg config.Config, registry *evaluation.Registry, stdout io.Writer, logger log.Logger) error {
	start := time.Now()
	logger.Info("run started", cfg.Fields()...)

	frame, err := dataset.Load(cfg.DataPath)
	if err != nil {
		return err
	}

	console := report.NewConsole(stdout, cfg.NoColor)
	console.Info(frame)
	console.Duplicates(frame)
	if err := console.Describe(frame); err != nil {
		return err
	}
	console.Head(frame, 5)

	X, y, err := frame.XY(dataset.Features, dataset.Target)
	if err != nil {
		return err
	}

	XRes, yRes, err := over_sampling.NewSMOTE(over_sampling.WithRandomState(cfg.Seed)).FitResample(X, y)
	if err != nil {
		return errors.Wrap(err, "balance classes")
	}

	XScaled, err := preprocessing.NewStandardScalerDefault().FitTransform(XRes)
	if err != nil {
		return errors.Wrap(err, "scale features")
	}

	split, err := model_selection.TrainTestSplit(XScaled, yRes, cfg.TestSize, true, cfg.Seed)
	if err != nil {
		return errors.Wrap(err, "split data")
	}
	trainRows, _ := split.XTrain.Dims()
	testRows, _ := split.XTest.Dims()
	logger.Info("data prepared",
		log.SamplesKey, trainRows+testRows,
		log.TrainSamplesKey, trainRows,
		log.TestSamplesKey, testRows,
	)

	var charts *report.Charts
	if cfg.Charts {
		if charts, err = report.NewCharts(cfg.OutputDir); err != nil {
			return err
		}
	}
	reporter := report.NewReporter(console, charts, logger)

	evaluator := evaluation.NewEvaluator(registry,
		evaluation.WithCVFolds(cfg.CVFolds),
		evaluation.WithNJobs(cfg.NJobs),
		evaluation.WithReporter(reporter),
	)
	results, err := evaluator.Evaluate(ctx, split.XTrain, split.YTrain, split.XTest, split.YTest)
	if err != nil {
		return err
	}

	if err := reporter.Summary(results, cfg.WorkbookPath()); err != nil {
		return err
	}
	logger.Info("run finished",
		log.DurationMsKey, time.Since(start).Milliseconds(),
		log.ReportFilesKey, len(reporter.Files()),
	)
	return nil
}
