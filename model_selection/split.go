// Package model_selection provides data splitters, parameter grids and
// exhaustive cross-validated hyperparameter search.
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/diabench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// KFoldSplitter defines interface for cross-validation splitters
type KFoldSplitter interface {
	Split(X, y mat.Matrix) ([]CVFold, error)
	GetNSplits() int
}

// CVFold represents a single fold in cross-validation
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int64) *KFold {
	if nSplits < 2 {
		nSplits = 5 // Default to 5-fold
	}
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold. The first
// n_samples % n_splits folds get one extra test sample.
func (kf *KFold) Split(X, _ mat.Matrix) ([]CVFold, error) {
	nSamples, _ := X.Dims()
	if kf.NSplits > nSamples {
		return nil, errors.NewValueError("KFold.Split",
			fmt.Sprintf("cannot have number of splits n_splits=%d greater than the number of samples: n_samples=%d", kf.NSplits, nSamples))
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := newRand(kf.RandomSeed)
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	testFold := make([]int, nSamples)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	current := 0
	for f := 0; f < kf.NSplits; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			testFold[idx] = f
		}
		current += size
	}
	return foldsFromAssignment(testFold, kf.NSplits), nil
}

// foldsFromAssignment turns a per-sample test fold number into train/test
// index lists, both in ascending sample order.
func foldsFromAssignment(testFold []int, nSplits int) []CVFold {
	folds := make([]CVFold, nSplits)
	for f := range folds {
		for i, tf := range testFold {
			if tf == f {
				folds[f].TestIndices = append(folds[f].TestIndices, i)
			} else {
				folds[f].TrainIndices = append(folds[f].TrainIndices, i)
			}
		}
	}
	return folds
}

// StratifiedKFold implements stratified k-fold cross-validation with the
// fold allocation of scikit-learn: labels are sorted and dealt round-robin
// to the folds, so each fold's class counts differ by at most one.
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int64) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates stratified train/test indices for each fold. It fails with
// a FoldSizeError when any class has fewer members than n_splits.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) ([]CVFold, error) {
	nSamples, _ := X.Dims()
	if yr, _ := y.Dims(); yr != nSamples {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", nSamples, yr, 0)
	}

	// encode classes in order of first appearance
	var labels []float64
	code := make(map[float64]int)
	encoded := make([]int, nSamples)
	for i := 0; i < nSamples; i++ {
		v := y.At(i, 0)
		k, ok := code[v]
		if !ok {
			k = len(labels)
			code[v] = k
			labels = append(labels, v)
		}
		encoded[i] = k
	}
	nClasses := len(labels)
	counts := make([]int, nClasses)
	for _, k := range encoded {
		counts[k]++
	}
	for k, c := range counts {
		if skf.NSplits > c {
			return nil, errors.NewFoldSizeError(skf.NSplits, labels[k], c)
		}
	}

	order := append([]int(nil), encoded...)
	sort.Ints(order)
	allocation := make([][]int, skf.NSplits)
	for f := range allocation {
		allocation[f] = make([]int, nClasses)
		for i := f; i < nSamples; i += skf.NSplits {
			allocation[f][order[i]]++
		}
	}

	var r *rand.Rand
	if skf.Shuffle {
		r = newRand(skf.RandomSeed)
	}
	testFold := make([]int, nSamples)
	for k := 0; k < nClasses; k++ {
		foldsForClass := make([]int, 0, counts[k])
		for f := 0; f < skf.NSplits; f++ {
			for n := 0; n < allocation[f][k]; n++ {
				foldsForClass = append(foldsForClass, f)
			}
		}
		if r != nil {
			r.Shuffle(len(foldsForClass), func(i, j int) {
				foldsForClass[i], foldsForClass[j] = foldsForClass[j], foldsForClass[i]
			})
		}
		next := 0
		for i, e := range encoded {
			if e == k {
				testFold[i] = foldsForClass[next]
				next++
			}
		}
	}
	return foldsFromAssignment(testFold, skf.NSplits), nil
}

// Subset copies the rows of X and y named by indices, in that order.
func Subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, xCols := X.Dims()
	_, yCols := y.Dims()

	xSubset := mat.NewDense(len(indices), xCols, nil)
	ySubset := mat.NewDense(len(indices), yCols, nil)
	for i, idx := range indices {
		for j := 0; j < xCols; j++ {
			xSubset.Set(i, j, X.At(idx, j))
		}
		for j := 0; j < yCols; j++ {
			ySubset.Set(i, j, y.At(idx, j))
		}
	}
	return xSubset, ySubset
}

// Split holds the four partitions produced by TrainTestSplit.
type Split struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense
}

// TrainTestSplit holds out ceil(testSize·n) samples for testing. With
// stratify, per-class test counts are proportional to the class sizes, with
// the rounding remainder given to the classes with the largest fractional
// parts. The split is a deterministic function of seed.
func TrainTestSplit(X, y mat.Matrix, testSize float64, stratify bool, seed int64) (*Split, error) {
	nSamples, _ := X.Dims()
	if yr, _ := y.Dims(); yr != nSamples {
		return nil, errors.NewDimensionError("TrainTestSplit", nSamples, yr, 0)
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(nSamples)))
	if nTest >= nSamples || nTest == 0 {
		return nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("test_size=%g leaves an empty partition for n_samples=%d", testSize, nSamples))
	}

	r := newRand(seed)
	var train, test []int
	if stratify {
		var err error
		train, test, err = stratifiedIndices(y, nTest, r)
		if err != nil {
			return nil, err
		}
	} else {
		perm := r.Perm(nSamples)
		test, train = perm[:nTest], perm[nTest:]
	}

	s := &Split{}
	s.XTrain, s.YTrain = Subset(X, y, train)
	s.XTest, s.YTest = Subset(X, y, test)
	return s, nil
}

func stratifiedIndices(y mat.Matrix, nTest int, r *rand.Rand) (train, test []int, err error) {
	n, _ := y.Dims()
	members := make(map[float64][]int)
	var labels []float64
	for i := 0; i < n; i++ {
		v := y.At(i, 0)
		if _, ok := members[v]; !ok {
			labels = append(labels, v)
		}
		members[v] = append(members[v], i)
	}
	sort.Float64s(labels)
	for _, l := range labels {
		if len(members[l]) < 2 {
			return nil, nil, errors.NewValueError("TrainTestSplit",
				fmt.Sprintf("the least populated class in y (%g) has only 1 member, which is too few; the minimum number of groups for any class cannot be less than 2", l))
		}
	}
	if nTest < len(labels) {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("the test_size = %d should be greater or equal to the number of classes = %d", nTest, len(labels)))
	}

	// largest remainder allocation of the test share
	alloc := make([]int, len(labels))
	frac := make([]float64, len(labels))
	assigned := 0
	for k, l := range labels {
		exact := float64(len(members[l])) * float64(nTest) / float64(n)
		alloc[k] = int(math.Floor(exact))
		frac[k] = exact - float64(alloc[k])
		assigned += alloc[k]
	}
	byRemainder := make([]int, len(labels))
	for k := range byRemainder {
		byRemainder[k] = k
	}
	sort.SliceStable(byRemainder, func(a, b int) bool { return frac[byRemainder[a]] > frac[byRemainder[b]] })
	for i := 0; assigned < nTest; i++ {
		alloc[byRemainder[i%len(labels)]]++
		assigned++
	}

	for k, l := range labels {
		idx := append([]int(nil), members[l]...)
		r.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		test = append(test, idx[:alloc[k]]...)
		train = append(train, idx[alloc[k]:]...)
	}
	r.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	r.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}
