// Package ensemble implements bagged tree ensembles.
package ensemble

import (
	"math/rand"

	"github.com/YuminosukeSato/diabench/core/model"
	"github.com/YuminosukeSato/diabench/core/parallel"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"github.com/YuminosukeSato/diabench/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Tunable                 = (*RandomForestClassifier)(nil)
	_ model.ProbabilisticClassifier = (*RandomForestClassifier)(nil)
	_ model.Scorer                  = (*RandomForestClassifier)(nil)
)

// RandomForestClassifier fits decision trees on bootstrap samples with a
// random feature subset per split and averages their leaf distributions.
// Compatible with scikit-learn's RandomForestClassifier.
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int // -1 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	randomState     int64
	nJobs           int

	// Fitted attributes
	estimators_ []*tree.DecisionTreeClassifier
	classes_    []int
}

// RandomForestOption configures a RandomForestClassifier.
type RandomForestOption func(*RandomForestClassifier)

// NewRandomForestClassifier creates a forest with scikit-learn's defaults.
func NewRandomForestClassifier(opts ...RandomForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager("RandomForestClassifier"),
		nEstimators:     100,
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		nJobs:           1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithForestMaxDepth sets the depth limit of every tree; -1 disables it.
func WithForestMaxDepth(depth int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.maxDepth = depth }
}

// WithForestMinSamplesSplit sets min_samples_split of every tree.
func WithForestMinSamplesSplit(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

// WithForestMinSamplesLeaf sets min_samples_leaf of every tree.
func WithForestMinSamplesLeaf(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithBootstrap toggles bootstrap sampling.
func WithBootstrap(bootstrap bool) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.bootstrap = bootstrap }
}

// WithForestRandomState sets the seed from which per-tree seeds are drawn.
func WithForestRandomState(seed int64) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs sets the number of trees built concurrently (-1 for all cores).
func WithNJobs(n int) RandomForestOption {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

// Fit builds the forest. Tree seeds and bootstrap draws are taken from
// randomState before any tree is built, so the result does not depend on n_jobs.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.CheckXY("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}

	rf.classes_ = model.UniqueClasses(model.LabelsOf(y))

	rng := rand.New(rand.NewSource(rf.randomState))
	seeds := make([]int64, rf.nEstimators)
	weights := make([][]float64, rf.nEstimators)
	for t := range seeds {
		seeds[t] = rng.Int63()
		weights[t] = rf.sampleWeights(rand.New(rand.NewSource(seeds[t])), nSamples)
	}

	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	errs := make([]error, rf.nEstimators)
	parallel.ParallelizeWorkers(parallel.Workers(rf.nJobs), rf.nEstimators, func(start, end int) {
		for t := start; t < end; t++ {
			dt := tree.NewDecisionTreeClassifier(
				tree.WithCriterion(rf.criterion),
				tree.WithMaxDepth(rf.maxDepth),
				tree.WithMinSamplesSplit(rf.minSamplesSplit),
				tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
				tree.WithMaxFeatures(rf.maxFeatures),
				tree.WithRandomState(seeds[t]),
			)
			errs[t] = dt.FitWeighted(X, y, weights[t])
			trees[t] = dt
		}
	})
	for t, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "RandomForestClassifier.Fit: tree %d", t)
		}
	}

	rf.estimators_ = trees
	rf.state.SetFitted(nFeatures, nSamples)
	return nil
}

// sampleWeights returns bootstrap multiplicities, or all ones without bootstrap.
func (rf *RandomForestClassifier) sampleWeights(rng *rand.Rand, n int) []float64 {
	w := make([]float64, n)
	if !rf.bootstrap {
		for i := range w {
			w[i] = 1
		}
		return w
	}
	for i := 0; i < n; i++ {
		w[rng.Intn(n)]++
	}
	return w
}

// PredictProba averages the per-tree class distributions.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := rf.state.RequireFitted("PredictProba", c); err != nil {
		return nil, err
	}
	sum := mat.NewDense(r, len(rf.classes_), nil)
	for _, dt := range rf.estimators_ {
		p, err := dt.PredictProba(X)
		if err != nil {
			return nil, err
		}
		sum.Add(sum, p)
	}
	sum.Scale(1/float64(len(rf.estimators_)), sum)
	return sum, nil
}

// Predict returns the class with the highest averaged probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ProbaArgmax(proba, rf.classes_), nil
}

// Score returns the mean accuracy on the given data.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0
	}
	return model.MeanAccuracy(pred, y)
}

// Classes returns the sorted class labels seen during fitting.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// FeatureImportances averages the trees' normalised importances.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	if len(rf.estimators_) == 0 {
		return nil
	}
	var out []float64
	for _, dt := range rf.estimators_ {
		imp := dt.GetFeatureImportances()
		if out == nil {
			out = make([]float64, len(imp))
		}
		for j, v := range imp {
			out[j] += v / float64(len(rf.estimators_))
		}
	}
	return out
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
	}
}

// SetParams sets hyperparameters and resets the fitted state.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, v := range params {
		var err error
		switch key {
		case "n_estimators":
			rf.nEstimators, err = model.IntParam(key, v)
		case "criterion":
			rf.criterion, err = model.StringParam(key, v, "gini", "entropy")
		case "max_depth":
			rf.maxDepth, err = model.OptionalIntParam(key, v)
		case "min_samples_split":
			rf.minSamplesSplit, err = model.IntParam(key, v)
		case "min_samples_leaf":
			rf.minSamplesLeaf, err = model.IntParam(key, v)
		case "max_features":
			rf.maxFeatures, err = model.StringParam(key, v, "", "sqrt", "log2")
		case "bootstrap":
			rf.bootstrap, err = model.BoolParam(key, v)
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, v)
			rf.randomState = int64(seed)
		case "n_jobs":
			rf.nJobs, err = model.IntParam(key, v)
		default:
			err = model.UnknownParam("RandomForestClassifier", key, v)
		}
		if err != nil {
			return err
		}
	}
	rf.state.Reset()
	rf.estimators_ = nil
	return nil
}
