package model_selection

import (
	"math/rand"
	"testing"

	"github.com/YuminosukeSato/diabench/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKFold(t *testing.T) {
	t.Run("Basic KFold split", func(t *testing.T) {
		n := 100
		X := mat.NewDense(n, 2, nil)
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			X.Set(i, 0, float64(i))
			X.Set(i, 1, float64(i)*2)
			y.Set(i, 0, float64(i%2))
		}

		kf := NewKFold(5, false, 42)
		assert.Equal(t, 5, kf.GetNSplits())

		folds, err := kf.Split(X, y)
		require.NoError(t, err)
		assert.Equal(t, 5, len(folds))

		for i, fold := range folds {
			assert.Equal(t, 80, len(fold.TrainIndices), "Fold %d train size", i)
			assert.Equal(t, 20, len(fold.TestIndices), "Fold %d test size", i)

			testSet := make(map[int]bool)
			for _, idx := range fold.TestIndices {
				testSet[idx] = true
			}
			for _, idx := range fold.TrainIndices {
				assert.False(t, testSet[idx], "Train index %d in test set", idx)
			}
		}

		// Each index should appear exactly once as test
		allIndices := make(map[int]int)
		for _, fold := range folds {
			for _, idx := range fold.TestIndices {
				allIndices[idx]++
			}
		}
		for i := 0; i < n; i++ {
			assert.Equal(t, 1, allIndices[i], "Index %d coverage", i)
		}
	})

	t.Run("KFold with shuffle", func(t *testing.T) {
		n := 50
		X := mat.NewDense(n, 2, nil)
		y := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			X.Set(i, 0, float64(i))
			y.Set(i, 0, float64(i))
		}

		foldsNoShuffle, err := NewKFold(5, false, 42).Split(X, y)
		require.NoError(t, err)
		foldsShuffle, err := NewKFold(5, true, 42).Split(X, y)
		require.NoError(t, err)

		different := false
		for i := 0; i < 5 && !different; i++ {
			for j := range foldsNoShuffle[i].TestIndices {
				if foldsNoShuffle[i].TestIndices[j] != foldsShuffle[i].TestIndices[j] {
					different = true
					break
				}
			}
		}
		assert.True(t, different, "Shuffled folds should have different order")

		again, err := NewKFold(5, true, 42).Split(X, y)
		require.NoError(t, err)
		assert.Equal(t, foldsShuffle, again, "same seed must give the same folds")
	})

	t.Run("Uneven split", func(t *testing.T) {
		// 23 samples with 5 folds: 3 folds with 5 samples, 2 folds with 4 samples
		n := 23
		X := mat.NewDense(n, 1, nil)
		y := mat.NewDense(n, 1, nil)

		folds, err := NewKFold(5, false, 42).Split(X, y)
		require.NoError(t, err)

		testSizes := make([]int, 5)
		for i, fold := range folds {
			testSizes[i] = len(fold.TestIndices)
		}
		assert.Equal(t, []int{5, 5, 5, 4, 4}, testSizes)
	})

	t.Run("More splits than samples", func(t *testing.T) {
		X := mat.NewDense(3, 1, nil)
		y := mat.NewDense(3, 1, nil)
		_, err := NewKFold(5, false, 0).Split(X, y)
		require.Error(t, err)
		var ve *errors.ValueError
		assert.True(t, errors.As(err, &ve))
	})
}

func TestStratifiedKFold(t *testing.T) {
	t.Run("Binary classification stratification", func(t *testing.T) {
		n := 100
		X := mat.NewDense(n, 2, nil)
		y := mat.NewDense(n, 1, nil)

		// 70% class 0, 30% class 1
		for i := 0; i < n; i++ {
			X.Set(i, 0, rand.Float64()) // #nosec G404 - test data generation
			X.Set(i, 1, rand.Float64()) // #nosec G404 - test data generation
			if i >= 70 {
				y.Set(i, 0, 1.0)
			}
		}

		folds, err := NewStratifiedKFold(5, false, 42).Split(X, y)
		require.NoError(t, err)

		for i, fold := range folds {
			class0Count, class1Count := 0, 0
			for _, idx := range fold.TestIndices {
				if y.At(idx, 0) == 0.0 {
					class0Count++
				} else {
					class1Count++
				}
			}
			assert.Equal(t, 14, class0Count, "Fold %d class 0 count", i)
			assert.Equal(t, 6, class1Count, "Fold %d class 1 count", i)
		}
	})

	t.Run("Multi-class stratification", func(t *testing.T) {
		n := 90
		X := mat.NewDense(n, 2, nil)
		y := mat.NewDense(n, 1, nil)

		// 30 samples per class
		for i := 0; i < n; i++ {
			X.Set(i, 0, rand.Float64()) // #nosec G404 - test data generation
			X.Set(i, 1, rand.Float64()) // #nosec G404 - test data generation
			y.Set(i, 0, float64(i/30))
		}

		folds, err := NewStratifiedKFold(3, true, 42).Split(X, y)
		require.NoError(t, err)

		for i, fold := range folds {
			classCounts := make(map[float64]int)
			for _, idx := range fold.TestIndices {
				classCounts[y.At(idx, 0)]++
			}
			assert.Equal(t, 10, classCounts[0.0], "Fold %d class 0", i)
			assert.Equal(t, 10, classCounts[1.0], "Fold %d class 1", i)
			assert.Equal(t, 10, classCounts[2.0], "Fold %d class 2", i)
		}
	})

	t.Run("Round-robin allocation without shuffle", func(t *testing.T) {
		labels := []float64{0, 0, 0, 0, 0, 0, 0, 1, 1, 1}
		X := mat.NewDense(len(labels), 1, nil)
		y := mat.NewDense(len(labels), 1, labels)

		folds, err := NewStratifiedKFold(3, false, 0).Split(X, y)
		require.NoError(t, err)
		require.Len(t, folds, 3)

		assert.Equal(t, []int{0, 1, 2, 7}, folds[0].TestIndices)
		assert.Equal(t, []int{3, 4, 8}, folds[1].TestIndices)
		assert.Equal(t, []int{5, 6, 9}, folds[2].TestIndices)
		assert.Equal(t, []int{3, 4, 5, 6, 8, 9}, folds[0].TrainIndices)
	})

	t.Run("Class smaller than n_splits", func(t *testing.T) {
		labels := []float64{0, 0, 0, 0, 0, 0, 0, 1, 1, 1}
		X := mat.NewDense(len(labels), 1, nil)
		y := mat.NewDense(len(labels), 1, labels)

		_, err := NewStratifiedKFold(5, false, 0).Split(X, y)
		require.Error(t, err)
		var fse *errors.FoldSizeError
		require.True(t, errors.As(err, &fse))
		assert.Equal(t, 5, fse.NSplits)
		assert.Equal(t, 3, fse.ClassCount)
	})
}

func TestTrainTestSplit(t *testing.T) {
	n := 20
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(-i))
		if i >= 14 {
			y.Set(i, 0, 1)
		}
	}

	t.Run("Stratified", func(t *testing.T) {
		s, err := TrainTestSplit(X, y, 0.25, true, 42)
		require.NoError(t, err)

		trainRows, _ := s.XTrain.Dims()
		testRows, _ := s.XTest.Dims()
		assert.Equal(t, 15, trainRows)
		assert.Equal(t, 5, testRows)

		positives := 0
		for i := 0; i < testRows; i++ {
			positives += int(s.YTest.At(i, 0))
			// rows keep their label
			assert.Equal(t, s.XTest.At(i, 0) >= 14, s.YTest.At(i, 0) == 1)
			assert.Equal(t, -s.XTest.At(i, 0), s.XTest.At(i, 1))
		}
		assert.Equal(t, 1, positives)

		seen := make(map[float64]bool)
		for i := 0; i < trainRows; i++ {
			seen[s.XTrain.At(i, 0)] = true
		}
		for i := 0; i < testRows; i++ {
			assert.False(t, seen[s.XTest.At(i, 0)], "row %v in both partitions", s.XTest.At(i, 0))
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		a, err := TrainTestSplit(X, y, 0.2, true, 7)
		require.NoError(t, err)
		b, err := TrainTestSplit(X, y, 0.2, true, 7)
		require.NoError(t, err)
		assert.True(t, mat.Equal(a.XTrain, b.XTrain))
		assert.True(t, mat.Equal(a.XTest, b.XTest))
	})

	t.Run("Not stratified", func(t *testing.T) {
		s, err := TrainTestSplit(X, y, 0.3, false, 1)
		require.NoError(t, err)
		testRows, _ := s.XTest.Dims()
		assert.Equal(t, 6, testRows)
	})

	t.Run("Errors", func(t *testing.T) {
		_, err := TrainTestSplit(X, y, 0, true, 1)
		assert.Error(t, err)
		_, err = TrainTestSplit(X, y, 1.5, true, 1)
		assert.Error(t, err)

		single := mat.NewDense(n, 1, nil)
		single.Set(0, 0, 1)
		_, err = TrainTestSplit(X, single, 0.2, true, 1)
		assert.Error(t, err)
	})
}
