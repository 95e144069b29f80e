package svm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func blobs() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(12, 2, []float64{
		0, 0, 0.5, 0, 0, 0.5, 1, 1, 0.5, 1, 1, 0.5,
		3, 3, 3.5, 3, 3, 3.5, 4, 4, 3.5, 4, 4, 3.5,
	})
	y := mat.NewDense(12, 1, []float64{
		0, 0, 0, 0, 0, 0,
		1, 1, 1, 1, 1, 1,
	})
	return X, y
}

func TestSVC_Kernels(t *testing.T) {
	X, y := blobs()

	tests := []struct {
		name string
		opts []SVCOption
	}{
		{"linear", []SVCOption{WithKernel("linear"), WithC(1)}},
		{"rbf scale", []SVCOption{WithKernel("rbf"), WithGamma("scale")}},
		{"rbf auto", []SVCOption{WithKernel("rbf"), WithGamma("auto"), WithC(10)}},
		{"rbf float gamma", []SVCOption{WithKernel("rbf"), WithGamma(0.5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSVC(tt.opts...)
			require.NoError(t, svc.Fit(X, y))
			assert.Equal(t, 1.0, svc.Score(X, y))
			assert.Greater(t, svc.NSupport(), 0)

			dec, err := svc.DecisionFunction(mat.NewDense(2, 2, []float64{0.2, 0.2, 3.8, 3.8}))
			require.NoError(t, err)
			assert.Less(t, dec.AtVec(0), 0.0)
			assert.Greater(t, dec.AtVec(1), 0.0)
		})
	}
}

func TestSVC_LinearMarginSymmetric(t *testing.T) {
	// two points: the maximum margin hyperplane is x = 1 with |w| = 1
	X := mat.NewDense(2, 1, []float64{0, 2})
	y := mat.NewDense(2, 1, []float64{0, 1})

	svc := NewSVC(WithKernel("linear"), WithC(100))
	require.NoError(t, svc.Fit(X, y))

	dec, err := svc.DecisionFunction(mat.NewDense(3, 1, []float64{0, 1, 2}))
	require.NoError(t, err)
	assert.InDelta(t, -1.0, dec.AtVec(0), 1e-3)
	assert.InDelta(t, 0.0, dec.AtVec(1), 1e-3)
	assert.InDelta(t, 1.0, dec.AtVec(2), 1e-3)
}

func TestSVC_Probability(t *testing.T) {
	X, y := blobs()

	svc := NewSVC(WithProbability(true), WithSVCRandomState(42))
	require.NoError(t, svc.Fit(X, y))

	proba, err := svc.PredictProba(X)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	require.Equal(t, 2, cols)
	for i := 0; i < rows; i++ {
		assert.InDelta(t, 1.0, proba.At(i, 0)+proba.At(i, 1), 1e-9)
		if y.At(i, 0) == 1 {
			assert.Greater(t, proba.At(i, 1), 0.5, "row %d", i)
		} else {
			assert.Less(t, proba.At(i, 1), 0.5, "row %d", i)
		}
	}

	noProba := NewSVC()
	require.NoError(t, noProba.Fit(X, y))
	_, err = noProba.PredictProba(X)
	assert.Error(t, err)
}

func TestSVC_GammaScale(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{0, 0, 2, 2})
	svc := NewSVC()
	// all entries {0,0,2,2}: variance 1, two features
	assert.InDelta(t, 0.5, svc.resolveGamma(X), 1e-12)

	constant := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	assert.Equal(t, 1.0, svc.resolveGamma(constant))
}

func TestSVC_Params(t *testing.T) {
	svc := NewSVC()
	require.NoError(t, svc.SetParams(map[string]interface{}{
		"C": 10.0, "gamma": "auto", "kernel": "linear",
	}))
	params := svc.GetParams()
	assert.Equal(t, 10.0, params["C"])
	assert.Equal(t, "auto", params["gamma"])
	assert.Equal(t, "linear", params["kernel"])

	assert.Error(t, svc.SetParams(map[string]interface{}{"gamma": "huge"}))
	assert.Error(t, svc.SetParams(map[string]interface{}{"kernel": "poly"}))
	assert.Error(t, svc.SetParams(map[string]interface{}{"degree": 3}))

	_, err := NewSVC().Predict(mat.NewDense(1, 2, nil))
	assert.Error(t, err)
}

func TestSVC_InvalidGammaOption(t *testing.T) {
	X, y := blobs()
	for _, gamma := range []interface{}{"foo", -1.0} {
		svc := NewSVC(WithGamma(gamma))
		err := svc.Fit(X, y)
		assert.Error(t, err, "gamma %v", gamma)
	}

	svc := NewSVC(WithGamma("foo"))
	require.NoError(t, svc.SetParams(map[string]interface{}{"gamma": "auto"}))
	assert.NoError(t, svc.Fit(X, y))
}

func TestPlattPredictStable(t *testing.T) {
	for _, f := range []float64{-1e6, -5, 0, 5, 1e6} {
		p := plattPredict(f, -2, 0)
		assert.False(t, math.IsNaN(p))
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}
