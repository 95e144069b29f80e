// Package tree implements CART decision trees for classification.
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/diabench/core/model"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Tunable                 = (*DecisionTreeClassifier)(nil)
	_ model.ProbabilisticClassifier = (*DecisionTreeClassifier)(nil)
	_ model.Scorer                  = (*DecisionTreeClassifier)(nil)
)

const impurityEpsilon = 1e-12

// node is a single node of a fitted tree. Leaves have feature == -1.
type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node

	// value holds the weighted class distribution, normalised to sum to 1
	value    []float64
	impurity float64
	nSamples int
}

func (n *node) isLeaf() bool { return n.feature < 0 }

// DecisionTreeClassifier is a CART classifier compatible with scikit-learn's
// DecisionTreeClassifier. Splits are chosen greedily by impurity decrease;
// candidate thresholds are midpoints between consecutive distinct values.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string // "gini" or "entropy"
	maxDepth        int    // -1 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string // "" (all features), "sqrt" or "log2"
	randomState     int64

	// Fitted attributes
	root                *node
	classes_            []int
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64
	depth_              int
	nLeaves_            int
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates a tree with scikit-learn's defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager("DecisionTreeClassifier"),
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     0,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion sets the split quality measure ("gini" or "entropy").
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) { dt.criterion = criterion }
}

// WithMaxDepth sets the maximum depth; -1 disables the limit.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum samples required in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) { dt.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are considered per split:
// "" for all, "sqrt" or "log2".
func WithMaxFeatures(maxFeatures string) Option {
	return func(dt *DecisionTreeClassifier) { dt.maxFeatures = maxFeatures }
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) { dt.randomState = seed }
}

// Fit builds the tree from the training set.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted builds the tree with per-sample weights. Samples with zero
// weight take no part in the tree but their labels still define the class
// set, which keeps bootstrap trees of a forest aligned on the same columns.
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, sampleWeight []float64) error {
	nSamples, nFeatures, err := model.CheckXY("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := dt.validate(); err != nil {
		return err
	}
	if sampleWeight == nil {
		sampleWeight = make([]float64, nSamples)
		for i := range sampleWeight {
			sampleWeight[i] = 1
		}
	} else if len(sampleWeight) != nSamples {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", nSamples, len(sampleWeight), 0)
	}

	labels := model.LabelsOf(y)
	dt.classes_ = model.UniqueClasses(labels)
	dt.nClasses_ = len(dt.classes_)
	dt.nFeatures_ = nFeatures

	b := &builder{
		dt:      dt,
		rows:    model.ToRows(X),
		yEnc:    model.EncodeLabels(labels, dt.classes_),
		weights: sampleWeight,
		rng:     rand.New(rand.NewSource(dt.randomState)),
		gains:   make([]float64, nFeatures),
	}
	b.nTry = dt.featuresPerSplit(nFeatures)

	indices := make([]int, 0, nSamples)
	for i, w := range sampleWeight {
		if w > 0 {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", "sample weights sum to zero")
	}

	dt.depth_, dt.nLeaves_ = 0, 0
	dt.root = b.build(indices, 0)

	total := 0.0
	for _, g := range b.gains {
		total += g
	}
	dt.featureImportances_ = make([]float64, nFeatures)
	if total > 0 {
		for j, g := range b.gains {
			dt.featureImportances_[j] = g / total
		}
	}

	dt.state.SetFitted(nFeatures, nSamples)
	return nil
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", dt.criterion)
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be >= 2", dt.minSamplesSplit)
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", dt.minSamplesLeaf)
	}
	if dt.maxDepth == 0 || dt.maxDepth < -1 {
		return errors.NewValidationError("max_depth", "must be positive or -1", dt.maxDepth)
	}
	switch dt.maxFeatures {
	case "", "sqrt", "log2":
	default:
		return errors.NewValidationError("max_features", "must be '', 'sqrt' or 'log2'", dt.maxFeatures)
	}
	return nil
}

func (dt *DecisionTreeClassifier) featuresPerSplit(nFeatures int) int {
	var k int
	switch dt.maxFeatures {
	case "sqrt":
		k = int(math.Sqrt(float64(nFeatures)))
	case "log2":
		k = int(math.Log2(float64(nFeatures)))
	default:
		k = nFeatures
	}
	if k < 1 {
		k = 1
	}
	return k
}

// builder holds the scratch state of one Fit call.
type builder struct {
	dt      *DecisionTreeClassifier
	rows    [][]float64
	yEnc    []int
	weights []float64
	rng     *rand.Rand
	nTry    int
	gains   []float64
}

type split struct {
	feature   int
	threshold float64
	pos       int // indices[:pos] go left after sorting by feature
	impurity  float64
}

func (b *builder) distribution(indices []int) ([]float64, float64) {
	counts := make([]float64, b.dt.nClasses_)
	total := 0.0
	for _, i := range indices {
		counts[b.yEnc[i]] += b.weights[i]
		total += b.weights[i]
	}
	return counts, total
}

func (b *builder) build(indices []int, depth int) *node {
	counts, total := b.distribution(indices)
	imp := b.impurity(counts, total)

	n := &node{feature: -1, impurity: imp, nSamples: len(indices)}
	n.value = make([]float64, len(counts))
	for k, c := range counts {
		n.value[k] = c / total
	}
	if depth > b.dt.depth_ {
		b.dt.depth_ = depth
	}

	canSplit := (b.dt.maxDepth < 0 || depth < b.dt.maxDepth) &&
		len(indices) >= b.dt.minSamplesSplit &&
		len(indices) >= 2*b.dt.minSamplesLeaf &&
		imp > impurityEpsilon
	if !canSplit {
		b.dt.nLeaves_++
		return n
	}

	best, ok := b.bestSplit(indices, counts, total)
	if !ok {
		b.dt.nLeaves_++
		return n
	}

	sortByFeature(indices, b.rows, best.feature)
	left := append([]int(nil), indices[:best.pos]...)
	right := append([]int(nil), indices[best.pos:]...)

	lc, lw := b.distribution(left)
	rc, rw := b.distribution(right)
	b.gains[best.feature] += total*imp - lw*b.impurity(lc, lw) - rw*b.impurity(rc, rw)

	n.feature = best.feature
	n.threshold = best.threshold
	n.left = b.build(left, depth+1)
	n.right = b.build(right, depth+1)
	return n
}

// bestSplit scans candidate features for the split with the lowest weighted
// child impurity. Zero-gain splits are allowed; ties keep the first candidate.
func (b *builder) bestSplit(indices []int, parentCounts []float64, total float64) (split, bool) {
	nFeatures := b.dt.nFeatures_
	features := make([]int, nFeatures)
	for j := range features {
		features[j] = j
	}
	if b.nTry < nFeatures {
		b.rng.Shuffle(nFeatures, func(i, j int) { features[i], features[j] = features[j], features[i] })
	}

	best := split{impurity: math.Inf(1)}
	found := false
	tried := 0
	left := make([]float64, b.dt.nClasses_)
	right := make([]float64, b.dt.nClasses_)
	minLeaf := b.dt.minSamplesLeaf

	for _, f := range features {
		if tried >= b.nTry && found {
			break
		}
		sortByFeature(indices, b.rows, f)
		if b.rows[indices[0]][f] == b.rows[indices[len(indices)-1]][f] {
			// constant features do not count towards max_features
			continue
		}
		tried++

		for k := range left {
			left[k] = 0
			right[k] = parentCounts[k]
		}
		lw, rw := 0.0, total
		for pos := 1; pos < len(indices); pos++ {
			i := indices[pos-1]
			w := b.weights[i]
			left[b.yEnc[i]] += w
			right[b.yEnc[i]] -= w
			lw += w
			rw -= w

			cur, next := b.rows[i][f], b.rows[indices[pos]][f]
			if cur == next {
				continue
			}
			if pos < minLeaf || len(indices)-pos < minLeaf {
				continue
			}
			imp := (lw*b.impurity(left, lw) + rw*b.impurity(right, rw)) / total
			if imp < best.impurity {
				best = split{feature: f, threshold: (cur + next) / 2, pos: pos, impurity: imp}
				found = true
			}
		}
	}
	return best, found
}

func (b *builder) impurity(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	switch b.dt.criterion {
	case "entropy":
		h := 0.0
		for _, c := range counts {
			if c > 0 {
				p := c / total
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		g := 1.0
		for _, c := range counts {
			p := c / total
			g -= p * p
		}
		return g
	}
}

func sortByFeature(indices []int, rows [][]float64, f int) {
	sort.SliceStable(indices, func(a, b int) bool {
		return rows[indices[a]][f] < rows[indices[b]][f]
	})
}

// PredictProba returns the class distribution of the leaf each sample falls in.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := dt.state.RequireFitted("PredictProba", c); err != nil {
		return nil, err
	}
	proba := mat.NewDense(r, dt.nClasses_, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		row = model.Row(X, i, row)
		proba.SetRow(i, dt.leaf(row).value)
	}
	return proba, nil
}

// Predict returns the most probable class for each sample.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ProbaArgmax(proba, dt.classes_), nil
}

func (dt *DecisionTreeClassifier) leaf(x []float64) *node {
	n := dt.root
	for !n.isLeaf() {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n
}

// Score returns the mean accuracy on the given data; 0 when prediction fails.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	return model.MeanAccuracy(pred, y)
}

// Classes returns the sorted class labels seen during fitting.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalised total impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the fitted tree (a single leaf has depth 0).
func (dt *DecisionTreeClassifier) GetDepth() int {
	return dt.depth_
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	return dt.nLeaves_
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams sets hyperparameters and resets the fitted state.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, v := range params {
		var err error
		switch key {
		case "criterion":
			dt.criterion, err = model.StringParam(key, v, "gini", "entropy")
		case "max_depth":
			dt.maxDepth, err = model.OptionalIntParam(key, v)
		case "min_samples_split":
			dt.minSamplesSplit, err = model.IntParam(key, v)
		case "min_samples_leaf":
			dt.minSamplesLeaf, err = model.IntParam(key, v)
		case "max_features":
			dt.maxFeatures, err = model.StringParam(key, v, "", "sqrt", "log2")
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, v)
			dt.randomState = int64(seed)
		default:
			err = model.UnknownParam("DecisionTreeClassifier", key, v)
		}
		if err != nil {
			return err
		}
	}
	dt.state.Reset()
	return nil
}

// String returns a short description of the tree.
func (dt *DecisionTreeClassifier) String() string {
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		dt.criterion, dt.maxDepth, dt.minSamplesSplit, dt.minSamplesLeaf)
}
