// Package log defines standard attribute keys for the benchmark pipeline.
//
// Keys follow a hierarchical naming convention ("model.name", "data.samples",
// "search.cv_score") so that a run can be filtered and aggregated from the
// JSON log stream alone.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the model family, e.g. "KNN" or "Red Neuronal".
	ModelNameKey = "model.name"

	// EstimatorKey is the estimator type behind a model family, e.g. "SVC".
	EstimatorKey = "model.estimator"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "transform", "fit_resample", "search"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the pipeline phase.
	PhaseKey = "ml.phase"

	// StageKey records the evaluation state machine stage of a model.
	StageKey = "eval.stage"

	// RunIDKey identifies one execution of the pipeline.
	RunIDKey = "run.id"
)

// Data Shape
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ClassesKey  = "data.classes"
	// SyntheticKey counts samples generated by oversampling.
	SyntheticKey = "data.synthetic"
	// PathKey is the input or output file path.
	PathKey = "data.path"
	// ReportFilesKey counts the files a run wrote.
	ReportFilesKey = "report.files"
	// TrainSamplesKey and TestSamplesKey size the held-out split.
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"
)

// Performance Metrics
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	AUCKey        = "metrics.auc"
	PrecisionKey  = "metrics.precision"
	RecallKey     = "metrics.recall"
	F1Key         = "metrics.f1"
	LossKey       = "metrics.loss"

	// IterationKey records the current iteration of an iterative solver.
	IterationKey = "training.iteration"
)

// Hyperparameter search
const (
	// HyperParamsKey contains a trial's or the winner's hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// CandidatesKey is the number of hyperparameter combinations in a grid.
	CandidatesKey = "search.candidates"

	// TrialKey is the index of a combination in grid order.
	TrialKey = "search.trial"

	// FoldKey is the cross-validation fold index.
	FoldKey = "search.fold"

	// CVScoreKey is the mean cross-validation score.
	CVScoreKey = "search.cv_score"

	// SkipReasonKey explains why a combination was skipped.
	SkipReasonKey = "search.skip_reason"

	// SkippedKey counts skipped combinations.
	SkippedKey = "search.skipped"

	// WorkersKey is the degree of parallelism of a search.
	WorkersKey = "search.workers"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
	OutputDirKey  = "config.output_dir"
	TestSizeKey   = "config.test_size"
	CVFoldsKey    = "config.cv_folds"
	NJobsKey      = "config.n_jobs"
)

// Error Context
const (
	ErrorCodeKey  = "error.code"
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit         = "fit"
	OperationPredict     = "predict"
	OperationTransform   = "transform"
	OperationFitResample = "fit_resample"
	OperationSearch      = "search"
	OperationLoad        = "load"
	OperationReport      = "report"

	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhaseReporting     = "reporting"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorMissingColumn     = "MISSING_COLUMN"
	ErrorIncompatible      = "INCOMPATIBLE_PARAMS"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
)
