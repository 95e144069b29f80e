// Package neighbors implements k-nearest-neighbour classification.
package neighbors

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/diabench/core/model"
	"github.com/YuminosukeSato/diabench/core/parallel"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Tunable                 = (*KNeighborsClassifier)(nil)
	_ model.ProbabilisticClassifier = (*KNeighborsClassifier)(nil)
	_ model.Scorer                  = (*KNeighborsClassifier)(nil)
)

// parallelThreshold is the number of query rows below which prediction stays sequential.
const parallelThreshold = 64

// KNeighborsClassifier is a brute-force k-nearest-neighbours classifier
// compatible with scikit-learn's KNeighborsClassifier.
type KNeighborsClassifier struct {
	state *model.StateManager

	nNeighbors int
	weights    string // "uniform" or "distance"
	metric     string // "euclidean" or "manhattan"

	rows     [][]float64
	encoded  []int
	classes_ []int
}

// KNNOption configures a KNeighborsClassifier.
type KNNOption func(*KNeighborsClassifier)

// NewKNeighborsClassifier creates a classifier with k=5, uniform weights and
// the euclidean metric.
func NewKNeighborsClassifier(opts ...KNNOption) *KNeighborsClassifier {
	knn := &KNeighborsClassifier{
		state:      model.NewStateManager("KNeighborsClassifier"),
		nNeighbors: 5,
		weights:    "uniform",
		metric:     "euclidean",
	}
	for _, opt := range opts {
		opt(knn)
	}
	return knn
}

// WithNNeighbors sets k.
func WithNNeighbors(k int) KNNOption {
	return func(knn *KNeighborsClassifier) { knn.nNeighbors = k }
}

// WithWeights sets the vote weighting ("uniform" or "distance").
func WithWeights(weights string) KNNOption {
	return func(knn *KNeighborsClassifier) { knn.weights = weights }
}

// WithMetric sets the distance ("euclidean" or "manhattan").
func WithMetric(metric string) KNNOption {
	return func(knn *KNeighborsClassifier) { knn.metric = metric }
}

// Fit stores the training set.
func (knn *KNeighborsClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.CheckXY("KNeighborsClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if knn.nNeighbors < 1 {
		return errors.NewValidationError("n_neighbors", "must be >= 1", knn.nNeighbors)
	}
	if knn.nNeighbors > nSamples {
		return errors.NewIncompatibleParamsError("KNeighborsClassifier",
			map[string]interface{}{"n_neighbors": knn.nNeighbors},
			fmt.Sprintf("expected n_neighbors <= n_samples_fit, but n_samples_fit = %d", nSamples))
	}

	labels := model.LabelsOf(y)
	knn.classes_ = model.UniqueClasses(labels)
	knn.encoded = model.EncodeLabels(labels, knn.classes_)
	knn.rows = model.ToRows(X)
	knn.state.SetFitted(nFeatures, nSamples)
	return nil
}

func (knn *KNeighborsClassifier) distance(a, b []float64) float64 {
	if knn.metric == "manhattan" {
		return floats.Distance(a, b, 1)
	}
	return floats.Distance(a, b, 2)
}

type neighbor struct {
	index int
	dist  float64
}

// kneighbors returns the k nearest training samples ordered by distance;
// equal distances keep training order.
func (knn *KNeighborsClassifier) kneighbors(x []float64) []neighbor {
	all := make([]neighbor, len(knn.rows))
	for i, r := range knn.rows {
		all[i] = neighbor{index: i, dist: knn.distance(x, r)}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].dist < all[b].dist })
	return all[:knn.nNeighbors]
}

// vote writes the class distribution of x's neighbourhood into out.
// With distance weights, exact matches take all the weight.
func (knn *KNeighborsClassifier) vote(x []float64, out []float64) {
	for k := range out {
		out[k] = 0
	}
	nbrs := knn.kneighbors(x)

	if knn.weights == "distance" {
		exact := false
		for _, n := range nbrs {
			if n.dist == 0 {
				out[knn.encoded[n.index]]++
				exact = true
			}
		}
		if !exact {
			for _, n := range nbrs {
				out[knn.encoded[n.index]] += 1 / n.dist
			}
		}
	} else {
		for _, n := range nbrs {
			out[knn.encoded[n.index]]++
		}
	}
	floats.Scale(1/floats.Sum(out), out)
}

// PredictProba returns the (weighted) neighbour vote share per class.
func (knn *KNeighborsClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := knn.state.RequireFitted("PredictProba", c); err != nil {
		return nil, err
	}
	if knn.weights != "uniform" && knn.weights != "distance" {
		return nil, errors.NewValidationError("weights", "must be 'uniform' or 'distance'", knn.weights)
	}

	proba := mat.NewDense(r, len(knn.classes_), nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		row := make([]float64, c)
		for i := start; i < end; i++ {
			row = model.Row(X, i, row)
			knn.vote(row, proba.RawRowView(i))
		}
	})
	return proba, nil
}

// Predict returns the majority (or weighted majority) class of the neighbours.
func (knn *KNeighborsClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := knn.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ProbaArgmax(proba, knn.classes_), nil
}

// Score returns the mean accuracy on the given data.
func (knn *KNeighborsClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := knn.Predict(X)
	if err != nil {
		return 0
	}
	return model.MeanAccuracy(pred, y)
}

// Classes returns the sorted class labels seen during fitting.
func (knn *KNeighborsClassifier) Classes() []int {
	return append([]int(nil), knn.classes_...)
}

// GetParams returns the hyperparameters.
func (knn *KNeighborsClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_neighbors": knn.nNeighbors,
		"weights":     knn.weights,
		"metric":      knn.metric,
	}
}

// SetParams sets hyperparameters and resets the fitted state.
func (knn *KNeighborsClassifier) SetParams(params map[string]interface{}) error {
	for key, v := range params {
		var err error
		switch key {
		case "n_neighbors":
			knn.nNeighbors, err = model.IntParam(key, v)
		case "weights":
			knn.weights, err = model.StringParam(key, v, "uniform", "distance")
		case "metric":
			knn.metric, err = model.StringParam(key, v, "euclidean", "manhattan")
		default:
			err = model.UnknownParam("KNeighborsClassifier", key, v)
		}
		if err != nil {
			return err
		}
	}
	knn.state.Reset()
	return nil
}
