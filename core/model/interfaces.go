// Package model provides the contracts shared by every estimator in the repository.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Scorer is the interface for models that report mean accuracy on labelled data.
type Scorer interface {
	Score(X, y mat.Matrix) float64
}

// ProbabilisticClassifier is an estimator that can output class probabilities.
type ProbabilisticClassifier interface {
	Estimator

	// PredictProba returns an n×n_classes matrix whose columns follow Classes().
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes returns the sorted class labels seen during fitting.
	Classes() []int
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	// GetParams returns the model's hyperparameters keyed by their scikit-learn names.
	GetParams() map[string]interface{}
}

// ParameterSetter is the interface for models that allow parameter modification.
type ParameterSetter interface {
	// SetParams sets hyperparameters. Unknown keys and values of the wrong type
	// are errors; combinations the estimator cannot honour return
	// *errors.IncompatibleParamsError.
	SetParams(params map[string]interface{}) error
}

// Tunable is an estimator whose hyperparameters can be searched.
type Tunable interface {
	Estimator
	ParameterGetter
	ParameterSetter
}
