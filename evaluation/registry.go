// Package evaluation declares the benchmarked model families and runs the
// search, refit and scoring loop over them.
package evaluation

import (
	"github.com/YuminosukeSato/diabench/core/model"
	"github.com/YuminosukeSato/diabench/model_selection"
	"github.com/YuminosukeSato/diabench/sklearn/ensemble"
	"github.com/YuminosukeSato/diabench/sklearn/linear_model"
	"github.com/YuminosukeSato/diabench/sklearn/neighbors"
	"github.com/YuminosukeSato/diabench/sklearn/neural_network"
	"github.com/YuminosukeSato/diabench/sklearn/svm"
)

// ModelSpec describes one model family: a display name, a factory producing
// a fresh unfitted estimator, and the hyperparameter grid to search.
type ModelSpec struct {
	Name                string
	New                 func() model.Tunable
	Grid                model_selection.ParamGrid
	SupportsProbability bool
}

// clone returns a copy whose grid can be modified without touching the registry.
func (s ModelSpec) clone() ModelSpec {
	s.Grid = s.Grid.Clone()
	return s
}

// Registry is an ordered, read-only list of model specs.
type Registry struct {
	specs []ModelSpec
}

// NewRegistry builds a registry from specs, keeping their order.
func NewRegistry(specs ...ModelSpec) *Registry {
	r := &Registry{specs: make([]ModelSpec, len(specs))}
	for i, s := range specs {
		r.specs[i] = s.clone()
	}
	return r
}

// Specs returns copies of the registered specs in registration order.
func (r *Registry) Specs() []ModelSpec {
	out := make([]ModelSpec, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.clone()
	}
	return out
}

// Len returns the number of registered specs.
func (r *Registry) Len() int { return len(r.specs) }

// Names returns the model names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.specs))
	for i, s := range r.specs {
		names[i] = s.Name
	}
	return names
}

// Model family names, as shown in every report.
const (
	RandomForestName       = "Bosque Aleatorio"
	LogisticRegressionName = "Regresión Logística"
	KNNName                = "KNN"
	SVMName                = "Máquinas de Soporte Vectorial"
	NeuralNetworkName      = "Red Neuronal"
)

// DefaultRegistry returns the five benchmarked families with their search
// grids. Every randomised estimator is seeded with seed.
func DefaultRegistry(seed int64) *Registry {
	return NewRegistry(
		ModelSpec{
			Name: RandomForestName,
			New: func() model.Tunable {
				return ensemble.NewRandomForestClassifier(ensemble.WithForestRandomState(seed))
			},
			Grid: model_selection.ParamGrid{
				"n_estimators":      {100, 200, 500},
				"max_depth":         {10, 20, nil},
				"min_samples_split": {2, 5, 10},
				"min_samples_leaf":  {1, 2, 4},
			},
			SupportsProbability: true,
		},
		ModelSpec{
			Name: LogisticRegressionName,
			New: func() model.Tunable {
				return linear_model.NewLogisticRegression(
					linear_model.WithLRRandomState(seed),
					linear_model.WithLRMaxIter(1000),
				)
			},
			Grid: model_selection.ParamGrid{
				"C":      {0.01, 0.1, 1.0, 10.0},
				"solver": {"liblinear", "lbfgs"},
			},
			SupportsProbability: true,
		},
		ModelSpec{
			Name: KNNName,
			New: func() model.Tunable {
				return neighbors.NewKNeighborsClassifier()
			},
			Grid: model_selection.ParamGrid{
				"n_neighbors": {3, 5, 10},
				"weights":     {"uniform", "distance"},
				"metric":      {"euclidean", "manhattan"},
			},
			SupportsProbability: true,
		},
		ModelSpec{
			Name: SVMName,
			New: func() model.Tunable {
				return svm.NewSVC(svm.WithProbability(true), svm.WithSVCRandomState(seed))
			},
			Grid: model_selection.ParamGrid{
				"C":      {0.1, 1.0, 10.0},
				"gamma":  {"scale", "auto"},
				"kernel": {"linear", "rbf"},
			},
			SupportsProbability: true,
		},
		ModelSpec{
			Name: NeuralNetworkName,
			New: func() model.Tunable {
				return neural_network.NewMLPClassifier(
					neural_network.WithRandomState(seed),
					neural_network.WithMaxIter(1000),
				)
			},
			Grid: model_selection.ParamGrid{
				"hidden_layer_sizes": {[]int{50, 25, 10}, []int{100, 50}, []int{50}},
				"activation":         {"relu", "tanh"},
				"solver":             {"adam", "sgd"},
				"alpha":              {0.0001, 0.001, 0.01},
			},
			SupportsProbability: true,
		},
	)
}
