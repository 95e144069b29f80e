package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/YuminosukeSato/diabench/core/model"
	"github.com/YuminosukeSato/diabench/metrics"
	"github.com/YuminosukeSato/diabench/model_selection"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"github.com/YuminosukeSato/diabench/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Stage is the lifecycle position of one model during evaluation.
type Stage int

const (
	// StagePending: not started.
	StagePending Stage = iota
	// StageSearching: grid search and refit in progress.
	StageSearching
	// StageEvaluated: test metrics computed.
	StageEvaluated
	// StageReported: record emitted and handed to the reporter.
	StageReported
)

func (s Stage) String() string {
	switch s {
	case StagePending:
		return "pending"
	case StageSearching:
		return "searching"
	case StageEvaluated:
		return "evaluated"
	case StageReported:
		return "reported"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// modelRun tracks the stage of one model; only forward single-step moves are legal.
type modelRun struct {
	name  string
	stage Stage
}

func (r *modelRun) advance(to Stage) error {
	if to != r.stage+1 {
		return errors.NewValueError("evaluation",
			fmt.Sprintf("%s: illegal stage transition %s -> %s", r.name, r.stage, to))
	}
	r.stage = to
	return nil
}

// ResultRecord holds the test-set outcome of one model family. AUC is nil
// when the model has no probability output or the AUC could not be computed.
type ResultRecord struct {
	Model      string
	BestParams model_selection.Params
	Accuracy   float64
	AUC        *float64
	Precision  float64
	Recall     float64
	F1         float64

	YTest     *mat.VecDense
	YPred     *mat.VecDense
	YProba    *mat.VecDense
	Confusion *mat.Dense
	Search    *model_selection.SearchResult
}

// Reporter receives progress and finished records from the evaluation loop.
// An error returned from ModelEvaluated aborts the run.
type Reporter interface {
	ModelStarted(name string)
	ModelEvaluated(rec *ResultRecord) error
}

type nopReporter struct{}

func (nopReporter) ModelStarted(string)                 {}
func (nopReporter) ModelEvaluated(*ResultRecord) error { return nil }

// Evaluator runs grid search, refit and test scoring for every spec of a
// registry, strictly in registry order.
type Evaluator struct {
	registry *Registry
	cvFolds  int
	nJobs    int
	reporter Reporter
	logger   log.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCVFolds sets the number of stratified folds (default 5).
func WithCVFolds(k int) Option {
	return func(e *Evaluator) { e.cvFolds = k }
}

// WithNJobs bounds the search worker pool (-1 for one per core).
func WithNJobs(n int) Option {
	return func(e *Evaluator) { e.nJobs = n }
}

// WithReporter sets the hand-off target for finished records.
func WithReporter(r Reporter) Option {
	return func(e *Evaluator) { e.reporter = r }
}

// WithLogger replaces the package logger.
func WithLogger(l log.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator creates an evaluator over registry.
func NewEvaluator(registry *Registry, opts ...Option) *Evaluator {
	e := &Evaluator{
		registry: registry,
		cvFolds:  5,
		nJobs:    -1,
		reporter: nopReporter{},
		logger:   log.GetLoggerWithName("evaluation"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns one record per registered spec, in registry order.
// Data errors such as a FoldSizeError, a model whose every combination was
// skipped and reporter failures abort the run.
func (e *Evaluator) Evaluate(ctx context.Context, XTrain, yTrain, XTest, yTest mat.Matrix) ([]ResultRecord, error) {
	if _, _, err := model.CheckXY("Evaluate(train)", XTrain, yTrain); err != nil {
		return nil, err
	}
	if _, _, err := model.CheckXY("Evaluate(test)", XTest, yTest); err != nil {
		return nil, err
	}

	specs := e.registry.Specs()
	results := make([]ResultRecord, 0, len(specs))
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := e.evaluateOne(ctx, spec, XTrain, yTrain, XTest, yTest)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}
	return results, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, spec ModelSpec, XTrain, yTrain, XTest, yTest mat.Matrix) (*ResultRecord, error) {
	logger := e.logger.With(log.ModelNameKey, spec.Name)
	run := &modelRun{name: spec.Name}
	started := time.Now()

	if err := run.advance(StageSearching); err != nil {
		return nil, err
	}
	logger.Info("model stage", log.StageKey, run.stage.String())
	e.reporter.ModelStarted(spec.Name)

	search := model_selection.NewGridSearchCV(spec.Name, spec.New, spec.Grid,
		model_selection.WithCV(model_selection.NewStratifiedKFold(e.cvFolds, false, 0)),
		model_selection.WithScoring(metrics.Accuracy),
		model_selection.WithNJobs(e.nJobs),
		model_selection.WithLogger(logger),
	)
	sr, err := search.Fit(ctx, XTrain, yTrain)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: grid search", spec.Name)
	}

	rec, err := e.score(spec, sr, XTest, yTest, logger)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: evaluation", spec.Name)
	}
	if err := run.advance(StageEvaluated); err != nil {
		return nil, err
	}
	fields := []any{
		log.StageKey, run.stage.String(),
		log.HyperParamsKey, rec.BestParams.String(),
		log.AccuracyKey, rec.Accuracy,
		log.PrecisionKey, rec.Precision,
		log.RecallKey, rec.Recall,
		log.F1Key, rec.F1,
		log.DurationMsKey, time.Since(started).Milliseconds(),
	}
	if rec.AUC != nil {
		fields = append(fields, log.AUCKey, *rec.AUC)
	}
	logger.Info("model stage", fields...)

	if err := e.reporter.ModelEvaluated(rec); err != nil {
		return nil, errors.Wrapf(err, "%s: report", spec.Name)
	}
	if err := run.advance(StageReported); err != nil {
		return nil, err
	}
	logger.Debug("model stage", log.StageKey, run.stage.String())
	return rec, nil
}

// score predicts the test partition with the refitted best estimator.
func (e *Evaluator) score(spec ModelSpec, sr *model_selection.SearchResult, XTest, yTest mat.Matrix, logger log.Logger) (*ResultRecord, error) {
	est := sr.BestEstimator
	pred, err := est.Predict(XTest)
	if err != nil {
		return nil, err
	}
	yTrue := metrics.ColumnVector(yTest, 0)
	yPred := metrics.ColumnVector(pred, 0)

	rec := &ResultRecord{
		Model:      spec.Name,
		BestParams: sr.BestParams.Clone(),
		YTest:      yTrue,
		YPred:      yPred,
		Search:     sr,
	}
	if rec.Accuracy, err = metrics.Accuracy(yTrue, yPred); err != nil {
		return nil, err
	}
	if rec.Precision, err = metrics.Precision(yTrue, yPred); err != nil {
		return nil, err
	}
	if rec.Recall, err = metrics.Recall(yTrue, yPred); err != nil {
		return nil, err
	}
	if rec.F1, err = metrics.F1(yTrue, yPred); err != nil {
		return nil, err
	}
	if rec.Confusion, err = metrics.ConfusionMatrix(yTrue, yPred); err != nil {
		return nil, err
	}

	if !spec.SupportsProbability {
		return rec, nil
	}
	pc, ok := est.(model.ProbabilisticClassifier)
	if !ok {
		return nil, errors.NewModelError("evaluation.score",
			fmt.Sprintf("%s is registered with probabilities but %T has no PredictProba", spec.Name, est), nil)
	}
	proba, err := pc.PredictProba(XTest)
	if err != nil {
		return nil, err
	}
	col := -1
	for i, c := range pc.Classes() {
		if c == 1 {
			col = i
		}
	}
	if col < 0 {
		logger.Warn("positive class missing from the fitted model; AUC omitted")
		return rec, nil
	}
	rec.YProba = metrics.ColumnVector(proba, col)
	auc, err := metrics.AUC(yTrue, rec.YProba)
	if err != nil {
		logger.Warn("AUC omitted", "error", err)
		return rec, nil
	}
	rec.AUC = &auc
	return rec, nil
}
