package model_selection

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/YuminosukeSato/diabench/core/model"
	"github.com/YuminosukeSato/diabench/core/parallel"
	"github.com/YuminosukeSato/diabench/metrics"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"github.com/YuminosukeSato/diabench/pkg/log"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ScoreFunc scores predictions against true labels; higher is better.
type ScoreFunc func(yTrue, yPred *mat.VecDense) (float64, error)

// TrialStatus tells whether a hyperparameter combination produced a score.
type TrialStatus int

const (
	// TrialOk means every fold was fitted and scored.
	TrialOk TrialStatus = iota
	// TrialSkipped means the combination could not be evaluated; Reason says why.
	TrialSkipped
)

func (s TrialStatus) String() string {
	if s == TrialOk {
		return "ok"
	}
	return "skipped"
}

// Trial is the outcome of one hyperparameter combination.
type Trial struct {
	Index      int
	Params     Params
	Status     TrialStatus
	FoldScores []float64
	MeanScore  float64
	StdScore   float64
	Reason     string
	Duration   time.Duration
}

// SearchResult is the outcome of GridSearchCV.Fit. Trials are in grid order.
type SearchResult struct {
	Trials        []Trial
	BestIndex     int
	BestParams    Params
	BestScore     float64
	BestEstimator model.Tunable
	NSplits       int
}

// Skipped returns the trials that could not be evaluated.
func (r *SearchResult) Skipped() []Trial {
	var out []Trial
	for _, t := range r.Trials {
		if t.Status == TrialSkipped {
			out = append(out, t)
		}
	}
	return out
}

// GridSearchCV evaluates every combination of a parameter grid with
// cross-validation and refits the best one on the whole training set.
type GridSearchCV struct {
	name    string
	factory func() model.Tunable
	grid    ParamGrid
	cv      KFoldSplitter
	scoring ScoreFunc
	nJobs   int
	refit   bool
	logger  log.Logger
}

// GridSearchOption configures a GridSearchCV.
type GridSearchOption func(*GridSearchCV)

// NewGridSearchCV creates a search over grid for estimators built by factory.
// Defaults: 5-fold StratifiedKFold without shuffling, accuracy scoring,
// n_jobs=-1 and refit.
func NewGridSearchCV(name string, factory func() model.Tunable, grid ParamGrid, opts ...GridSearchOption) *GridSearchCV {
	gs := &GridSearchCV{
		name:    name,
		factory: factory,
		grid:    grid.Clone(),
		cv:      NewStratifiedKFold(5, false, 0),
		scoring: metrics.Accuracy,
		nJobs:   -1,
		refit:   true,
		logger:  log.GetLoggerWithName("GridSearchCV"),
	}
	for _, opt := range opts {
		opt(gs)
	}
	return gs
}

// WithCV sets the splitter.
func WithCV(cv KFoldSplitter) GridSearchOption {
	return func(gs *GridSearchCV) { gs.cv = cv }
}

// WithScoring sets the score function.
func WithScoring(f ScoreFunc) GridSearchOption {
	return func(gs *GridSearchCV) { gs.scoring = f }
}

// WithNJobs bounds the number of concurrent fits (-1 for one per core).
func WithNJobs(n int) GridSearchOption {
	return func(gs *GridSearchCV) { gs.nJobs = n }
}

// WithRefit toggles refitting the best combination on the full data.
func WithRefit(refit bool) GridSearchOption {
	return func(gs *GridSearchCV) { gs.refit = refit }
}

// WithLogger replaces the package logger.
func WithLogger(l log.Logger) GridSearchOption {
	return func(gs *GridSearchCV) { gs.logger = l }
}

type foldData struct {
	XTrain, YTrain *mat.Dense
	XTest          *mat.Dense
	YTest          *mat.VecDense
}

// Fit runs the search. Fold assignment errors (for example a FoldSizeError)
// and a grid without any evaluable combination are fatal; errors and panics
// inside a single combination turn it into a skipped trial.
func (gs *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) (*SearchResult, error) {
	candidates := ParameterGrid(gs.grid)
	if len(candidates) == 0 {
		return nil, errors.NewValueError("GridSearchCV.Fit", "parameter grid is empty")
	}

	folds, err := gs.cv.Split(X, y)
	if err != nil {
		return nil, err
	}
	data := make([]foldData, len(folds))
	for f, fold := range folds {
		xtr, ytr := Subset(X, y, fold.TrainIndices)
		xte, yte := Subset(X, y, fold.TestIndices)
		data[f] = foldData{XTrain: xtr, YTrain: ytr, XTest: xte, YTest: metrics.ColumnVector(yte, 0)}
	}

	workers := parallel.Workers(gs.nJobs)
	logger := gs.logger.With(log.ModelNameKey, gs.name)
	logger.Info("grid search started",
		log.CandidatesKey, len(candidates),
		log.FoldKey, len(folds),
		log.WorkersKey, workers,
	)
	started := time.Now()

	nFolds := len(folds)
	scores := make([]float64, len(candidates)*nFolds)
	taskErrs := make([]error, len(candidates)*nFolds)
	elapsed := make([]time.Duration, len(candidates)*nFolds)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for c := range candidates {
		for f := 0; f < nFolds; f++ {
			slot := c*nFolds + f
			params, fd := candidates[c], data[f]
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				t0 := time.Now()
				taskErrs[slot] = errors.SafeExecute("GridSearchCV.trial", func() error {
					s, err := gs.evaluate(params, fd)
					scores[slot] = s
					return err
				})
				elapsed[slot] = time.Since(t0)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "grid search interrupted")
	}

	result := &SearchResult{BestIndex: -1, BestScore: math.Inf(-1), NSplits: nFolds}
	result.Trials = make([]Trial, len(candidates))
	for c, params := range candidates {
		trial := Trial{Index: c, Params: params}
		for f := 0; f < nFolds; f++ {
			trial.Duration += elapsed[c*nFolds+f]
			if err := taskErrs[c*nFolds+f]; err != nil && trial.Reason == "" {
				trial.Status = TrialSkipped
				trial.Reason = fmt.Sprintf("fold %d: %v", f, err)
			}
		}
		if trial.Status == TrialOk {
			trial.FoldScores = append([]float64(nil), scores[c*nFolds:(c+1)*nFolds]...)
			mean, variance := stat.PopMeanVariance(trial.FoldScores, nil)
			trial.MeanScore, trial.StdScore = mean, math.Sqrt(variance)
			logger.Debug("trial scored",
				log.TrialKey, c,
				log.HyperParamsKey, params.String(),
				log.CVScoreKey, trial.MeanScore,
			)
			// strict comparison keeps the first of equal scores
			if trial.MeanScore > result.BestScore {
				result.BestScore = trial.MeanScore
				result.BestIndex = c
			}
		} else {
			logger.Warn("hyperparameter combination skipped",
				log.TrialKey, c,
				log.HyperParamsKey, params.String(),
				log.SkipReasonKey, trial.Reason,
			)
		}
		result.Trials[c] = trial
	}

	if result.BestIndex < 0 {
		return nil, errors.NewModelError("GridSearchCV.Fit",
			fmt.Sprintf("all %d combinations for %s were skipped", len(candidates), gs.name), errors.ErrNoValidTrial)
	}
	result.BestParams = candidates[result.BestIndex].Clone()

	logger.Info("grid search finished",
		log.HyperParamsKey, result.BestParams.String(),
		log.CVScoreKey, result.BestScore,
		log.SkippedKey, len(result.Skipped()),
		log.DurationMsKey, time.Since(started).Milliseconds(),
	)

	if gs.refit {
		est := gs.factory()
		if err := est.SetParams(result.BestParams.Clone()); err != nil {
			return nil, errors.Wrapf(err, "%s: refit", gs.name)
		}
		if err := est.Fit(X, y); err != nil {
			return nil, errors.Wrapf(err, "%s: refit", gs.name)
		}
		result.BestEstimator = est
	}
	return result, nil
}

// evaluate fits a fresh estimator on one fold and scores it.
func (gs *GridSearchCV) evaluate(params Params, fd foldData) (float64, error) {
	est := gs.factory()
	if err := est.SetParams(params.Clone()); err != nil {
		return 0, err
	}
	if err := est.Fit(fd.XTrain, fd.YTrain); err != nil {
		return 0, err
	}
	pred, err := est.Predict(fd.XTest)
	if err != nil {
		return 0, err
	}
	return gs.scoring(fd.YTest, metrics.ColumnVector(pred, 0))
}
