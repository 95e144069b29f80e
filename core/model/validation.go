package model

import (
	"sort"

	"github.com/YuminosukeSato/diabench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// CheckXY validates a training pair: non-empty X, y an n×1 column with the same
// number of rows. It returns the sample and feature counts.
func CheckXY(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	if X == nil || y == nil {
		return 0, 0, errors.NewModelError(op, "nil input", errors.ErrEmptyData)
	}
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	return nSamples, nFeatures, nil
}

// LabelsOf returns the integer labels of an n×1 matrix.
func LabelsOf(y mat.Matrix) []int {
	n, _ := y.Dims()
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		labels[i] = int(y.At(i, 0))
	}
	return labels
}

// UniqueClasses returns the sorted distinct labels.
func UniqueClasses(labels []int) []int {
	seen := make(map[int]struct{})
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes
}

// EncodeLabels maps labels to their index in classes.
func EncodeLabels(labels, classes []int) []int {
	index := make(map[int]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded := make([]int, len(labels))
	for i, l := range labels {
		encoded[i] = index[l]
	}
	return encoded
}

// MeanAccuracy is the fraction of rows where pred equals y; used by Score.
func MeanAccuracy(pred, y mat.Matrix) float64 {
	n, _ := y.Dims()
	if n == 0 {
		return 0
	}
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n)
}

// ProbaArgmax turns a probability matrix into class labels; ties go to the
// lowest class index.
func ProbaArgmax(proba mat.Matrix, classes []int) *mat.Dense {
	n, k := proba.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, float64(classes[best]))
	}
	return out
}

// Row copies row i of X into dst, allocating when dst is short.
func Row(X mat.Matrix, i int, dst []float64) []float64 {
	_, c := X.Dims()
	if cap(dst) < c {
		dst = make([]float64, c)
	}
	dst = dst[:c]
	if rv, ok := X.(mat.RawRowViewer); ok {
		copy(dst, rv.RawRowView(i))
		return dst
	}
	for j := 0; j < c; j++ {
		dst[j] = X.At(i, j)
	}
	return dst
}

// ToRows converts X to a slice of row slices.
func ToRows(X mat.Matrix) [][]float64 {
	r, _ := X.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = Row(X, i, nil)
	}
	return rows
}
