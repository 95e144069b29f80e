// Package neural_network implements a multi-layer perceptron classifier.
package neural_network

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/YuminosukeSato/diabench/core/model"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	_ model.Tunable                 = (*MLPClassifier)(nil)
	_ model.ProbabilisticClassifier = (*MLPClassifier)(nil)
	_ model.Scorer                  = (*MLPClassifier)(nil)
)

// MLPClassifier is a feed-forward network trained by backpropagation,
// compatible with scikit-learn's MLPClassifier. Binary problems use one
// logistic output unit; more classes use a softmax layer.
type MLPClassifier struct {
	state *model.StateManager

	// Hyperparameters
	hiddenLayerSizes []int
	activation       string // "relu", "tanh", "logistic" or "identity"
	solver           string // "adam" or "sgd"
	alpha            float64
	batchSize        int // 0 means min(200, n_samples)
	learningRateInit float64
	maxIter          int
	tol              float64
	nIterNoChange    int
	momentum         float64
	nesterov         bool
	shuffle          bool
	beta1, beta2     float64
	epsilon          float64
	randomState      int64

	// Fitted attributes
	params     []float64 // all weights and biases, layer by layer
	coefs      []*mat.Dense
	intercepts [][]float64
	classes_   []int
	nOutputs   int
	lossCurve  []float64
	nIter_     int
}

// MLPOption configures an MLPClassifier.
type MLPOption func(*MLPClassifier)

// NewMLPClassifier creates a classifier with scikit-learn's defaults.
func NewMLPClassifier(opts ...MLPOption) *MLPClassifier {
	m := &MLPClassifier{
		state:            model.NewStateManager("MLPClassifier"),
		hiddenLayerSizes: []int{100},
		activation:       "relu",
		solver:           "adam",
		alpha:            1e-4,
		learningRateInit: 1e-3,
		maxIter:          200,
		tol:              1e-4,
		nIterNoChange:    10,
		momentum:         0.9,
		nesterov:         true,
		shuffle:          true,
		beta1:            0.9,
		beta2:            0.999,
		epsilon:          1e-8,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithHiddenLayerSizes sets the width of each hidden layer.
func WithHiddenLayerSizes(sizes ...int) MLPOption {
	return func(m *MLPClassifier) { m.hiddenLayerSizes = append([]int(nil), sizes...) }
}

// WithActivation sets the hidden activation.
func WithActivation(activation string) MLPOption {
	return func(m *MLPClassifier) { m.activation = activation }
}

// WithSolver sets the optimiser ("adam" or "sgd").
func WithSolver(solver string) MLPOption {
	return func(m *MLPClassifier) { m.solver = solver }
}

// WithAlpha sets the L2 penalty.
func WithAlpha(alpha float64) MLPOption {
	return func(m *MLPClassifier) { m.alpha = alpha }
}

// WithMaxIter sets the maximum number of epochs.
func WithMaxIter(n int) MLPOption {
	return func(m *MLPClassifier) { m.maxIter = n }
}

// WithLearningRateInit sets the step size.
func WithLearningRateInit(lr float64) MLPOption {
	return func(m *MLPClassifier) { m.learningRateInit = lr }
}

// WithBatchSize sets the minibatch size (0 for min(200, n_samples)).
func WithBatchSize(n int) MLPOption {
	return func(m *MLPClassifier) { m.batchSize = n }
}

// WithRandomState seeds weight initialisation and shuffling.
func WithRandomState(seed int64) MLPOption {
	return func(m *MLPClassifier) { m.randomState = seed }
}

func (m *MLPClassifier) validate() error {
	if len(m.hiddenLayerSizes) == 0 {
		return errors.NewValidationError("hidden_layer_sizes", "must not be empty", m.hiddenLayerSizes)
	}
	for _, h := range m.hiddenLayerSizes {
		if h < 1 {
			return errors.NewValidationError("hidden_layer_sizes", "every layer must have at least one unit", m.hiddenLayerSizes)
		}
	}
	switch m.activation {
	case "relu", "tanh", "logistic", "identity":
	default:
		return errors.NewValidationError("activation", "must be relu, tanh, logistic or identity", m.activation)
	}
	if m.solver != "adam" && m.solver != "sgd" {
		return errors.NewValidationError("solver", "must be 'adam' or 'sgd'", m.solver)
	}
	if m.alpha < 0 {
		return errors.NewValidationError("alpha", "must be >= 0", m.alpha)
	}
	if m.maxIter < 1 {
		return errors.NewValidationError("max_iter", "must be >= 1", m.maxIter)
	}
	if m.learningRateInit <= 0 {
		return errors.NewValidationError("learning_rate_init", "must be positive", m.learningRateInit)
	}
	return nil
}

// initialize allocates the flat parameter vector and Glorot-uniform weights.
func (m *MLPClassifier) initialize(nFeatures int, rng *rand.Rand) {
	sizes := append([]int{nFeatures}, m.hiddenLayerSizes...)
	sizes = append(sizes, m.nOutputs)

	total := 0
	for l := 0; l < len(sizes)-1; l++ {
		total += sizes[l]*sizes[l+1] + sizes[l+1]
	}
	m.params = make([]float64, total)
	m.coefs = make([]*mat.Dense, len(sizes)-1)
	m.intercepts = make([][]float64, len(sizes)-1)

	factor := 6.0
	if m.activation == "logistic" {
		factor = 2.0
	}
	off := 0
	for l := 0; l < len(sizes)-1; l++ {
		fanIn, fanOut := sizes[l], sizes[l+1]
		bound := math.Sqrt(factor / float64(fanIn+fanOut))
		w := m.params[off : off+fanIn*fanOut]
		off += fanIn * fanOut
		b := m.params[off : off+fanOut]
		off += fanOut
		for i := range w {
			w[i] = (2*rng.Float64() - 1) * bound
		}
		for i := range b {
			b[i] = (2*rng.Float64() - 1) * bound
		}
		m.coefs[l] = mat.NewDense(fanIn, fanOut, w)
		m.intercepts[l] = b
	}
}

// views lays out a gradient buffer with the same shapes as the parameters.
func (m *MLPClassifier) views(buf []float64) ([]*mat.Dense, [][]float64) {
	coefs := make([]*mat.Dense, len(m.coefs))
	intercepts := make([][]float64, len(m.coefs))
	off := 0
	for l, W := range m.coefs {
		r, c := W.Dims()
		coefs[l] = mat.NewDense(r, c, buf[off:off+r*c])
		off += r * c
		intercepts[l] = buf[off : off+c]
		off += c
	}
	return coefs, intercepts
}

func (m *MLPClassifier) activate(z *mat.Dense) {
	switch m.activation {
	case "relu":
		z.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, z)
	case "tanh":
		z.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, z)
	case "logistic":
		z.Apply(func(_, _ int, v float64) float64 { return errors.Expit(v) }, z)
	}
}

// derivative multiplies delta by the activation derivative, expressed
// through the activation output a.
func (m *MLPClassifier) derivative(a, delta *mat.Dense) {
	switch m.activation {
	case "relu":
		delta.Apply(func(i, j int, v float64) float64 {
			if a.At(i, j) <= 0 {
				return 0
			}
			return v
		}, delta)
	case "tanh":
		delta.Apply(func(i, j int, v float64) float64 {
			x := a.At(i, j)
			return v * (1 - x*x)
		}, delta)
	case "logistic":
		delta.Apply(func(i, j int, v float64) float64 {
			x := a.At(i, j)
			return v * x * (1 - x)
		}, delta)
	}
}

func (m *MLPClassifier) outputActivate(z *mat.Dense) {
	if m.nOutputs == 1 {
		z.Apply(func(_, _ int, v float64) float64 { return errors.Expit(v) }, z)
		return
	}
	r, _ := z.Dims()
	for i := 0; i < r; i++ {
		row := z.RawRowView(i)
		lse := floats.LogSumExp(row)
		for j := range row {
			row[j] = math.Exp(row[j] - lse)
		}
	}
}

// forward returns the activations of every layer, input first.
func (m *MLPClassifier) forward(X *mat.Dense) []*mat.Dense {
	acts := make([]*mat.Dense, 0, len(m.coefs)+1)
	acts = append(acts, X)
	last := len(m.coefs) - 1
	for l, W := range m.coefs {
		b := m.intercepts[l]
		z := new(mat.Dense)
		z.Mul(acts[l], W)
		z.Apply(func(_, j int, v float64) float64 { return v + b[j] }, z)
		if l == last {
			m.outputActivate(z)
		} else {
			m.activate(z)
		}
		acts = append(acts, z)
	}
	return acts
}

// lossAndGrad runs one minibatch and fills grad; it returns the penalised loss.
func (m *MLPClassifier) lossAndGrad(X, Y *mat.Dense, grad []float64) float64 {
	n, _ := X.Dims()
	acts := m.forward(X)
	out := acts[len(acts)-1]

	const eps = 2.220446049250313e-16
	loss := 0.0
	r, c := out.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p := errors.ClipValue(out.At(i, j), eps, 1-eps)
			yv := Y.At(i, j)
			if m.nOutputs == 1 {
				loss -= yv*math.Log(p) + (1-yv)*math.Log(1-p)
			} else if yv > 0 {
				loss -= yv * math.Log(p)
			}
		}
	}
	loss /= float64(n)
	penalty := 0.0
	for _, W := range m.coefs {
		penalty += mat.Sum(mulElem(W, W))
	}
	loss += 0.5 * m.alpha * penalty / float64(n)

	gW, gb := m.views(grad)
	delta := new(mat.Dense)
	delta.Sub(out, Y)
	for l := len(m.coefs) - 1; l >= 0; l-- {
		gW[l].Mul(acts[l].T(), delta)
		gW[l].Add(gW[l], scaled(m.alpha, m.coefs[l]))
		gW[l].Scale(1/float64(n), gW[l])
		for j := range gb[l] {
			gb[l][j] = 0
		}
		dr, _ := delta.Dims()
		for i := 0; i < dr; i++ {
			floats.Add(gb[l], delta.RawRowView(i))
		}
		floats.Scale(1/float64(n), gb[l])

		if l > 0 {
			next := new(mat.Dense)
			next.Mul(delta, m.coefs[l].T())
			m.derivative(acts[l], next)
			delta = next
		}
	}
	return loss
}

func mulElem(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.MulElem(a, b)
	return &out
}

func scaled(f float64, a mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Scale(f, a)
	return &out
}

// optimizer applies one update to params from grad.
type optimizer interface {
	step(params, grad []float64)
}

type sgdOptimizer struct {
	lr, momentum float64
	nesterov     bool
	velocity     []float64
}

func (o *sgdOptimizer) step(params, grad []float64) {
	for i, g := range grad {
		o.velocity[i] = o.momentum*o.velocity[i] - o.lr*g
		update := o.velocity[i]
		if o.nesterov {
			update = o.momentum*o.velocity[i] - o.lr*g
		}
		params[i] += update
	}
}

type adamOptimizer struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  []float64
}

func (o *adamOptimizer) step(params, grad []float64) {
	o.t++
	lrT := o.lr * math.Sqrt(1-math.Pow(o.beta2, float64(o.t))) / (1 - math.Pow(o.beta1, float64(o.t)))
	for i, g := range grad {
		o.m[i] = o.beta1*o.m[i] + (1-o.beta1)*g
		o.v[i] = o.beta2*o.v[i] + (1-o.beta2)*g*g
		params[i] -= lrT * o.m[i] / (math.Sqrt(o.v[i]) + o.eps)
	}
}

// Fit trains the network with minibatch gradient descent. Training stops when
// the epoch loss has not improved by tol for n_iter_no_change epochs; hitting
// max_iter first raises a ConvergenceWarning.
func (m *MLPClassifier) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.CheckXY("MLPClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := m.validate(); err != nil {
		return err
	}

	labels := model.LabelsOf(y)
	m.classes_ = model.UniqueClasses(labels)
	if len(m.classes_) < 2 {
		return errors.NewClassCountError("MLPClassifier.Fit", 2, len(m.classes_), "")
	}
	encoded := model.EncodeLabels(labels, m.classes_)
	m.nOutputs = len(m.classes_)
	if m.nOutputs == 2 {
		m.nOutputs = 1
	}

	rng := rand.New(rand.NewSource(m.randomState))
	m.initialize(nFeatures, rng)

	rows := model.ToRows(X)
	batch := m.batchSize
	if batch <= 0 {
		batch = 200
	}
	if batch > nSamples {
		batch = nSamples
	}

	var opt optimizer
	if m.solver == "sgd" {
		opt = &sgdOptimizer{lr: m.learningRateInit, momentum: m.momentum, nesterov: m.nesterov,
			velocity: make([]float64, len(m.params))}
	} else {
		opt = &adamOptimizer{lr: m.learningRateInit, beta1: m.beta1, beta2: m.beta2, eps: m.epsilon,
			m: make([]float64, len(m.params)), v: make([]float64, len(m.params))}
	}

	grad := make([]float64, len(m.params))
	order := make([]int, nSamples)
	for i := range order {
		order[i] = i
	}

	m.lossCurve = m.lossCurve[:0]
	bestLoss := math.Inf(1)
	noImprovement := 0
	converged := false

	for epoch := 0; epoch < m.maxIter; epoch++ {
		if m.shuffle {
			rng.Shuffle(nSamples, func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		accumulated := 0.0
		for start := 0; start < nSamples; start += batch {
			end := start + batch
			if end > nSamples {
				end = nSamples
			}
			Xb, Yb := m.batch(rows, encoded, order[start:end])
			batchLoss := m.lossAndGrad(Xb, Yb, grad)
			accumulated += batchLoss * float64(end-start)
			opt.step(m.params, grad)
		}
		loss := accumulated / float64(nSamples)
		if err := errors.CheckScalar("MLPClassifier.Fit loss", loss, epoch); err != nil {
			return err
		}
		m.lossCurve = append(m.lossCurve, loss)
		m.nIter_ = epoch + 1

		if loss > bestLoss-m.tol {
			noImprovement++
		} else {
			noImprovement = 0
		}
		if loss < bestLoss {
			bestLoss = loss
		}
		if noImprovement > m.nIterNoChange {
			converged = true
			break
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("MLPClassifier", m.maxIter,
			fmt.Sprintf("Stochastic Optimizer: Maximum iterations (%d) reached and the optimization hasn't converged yet", m.maxIter)))
	}

	m.state.SetFitted(nFeatures, nSamples)
	return nil
}

func (m *MLPClassifier) batch(rows [][]float64, encoded, idx []int) (*mat.Dense, *mat.Dense) {
	nFeatures := len(rows[0])
	Xb := mat.NewDense(len(idx), nFeatures, nil)
	Yb := mat.NewDense(len(idx), m.nOutputs, nil)
	for k, i := range idx {
		Xb.SetRow(k, rows[i])
		if m.nOutputs == 1 {
			Yb.Set(k, 0, float64(encoded[i]))
		} else {
			Yb.Set(k, encoded[i], 1)
		}
	}
	return Xb, Yb
}

// PredictProba returns class probabilities in Classes() order.
func (m *MLPClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := m.state.RequireFitted("PredictProba", c); err != nil {
		return nil, err
	}
	acts := m.forward(mat.DenseCopyOf(X))
	out := acts[len(acts)-1]
	if m.nOutputs > 1 {
		return out, nil
	}
	proba := mat.NewDense(r, 2, nil)
	for i := 0; i < r; i++ {
		p := out.At(i, 0)
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba, nil
}

// Predict returns the most probable class.
func (m *MLPClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ProbaArgmax(proba, m.classes_), nil
}

// Score returns the mean accuracy on the given data.
func (m *MLPClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := m.Predict(X)
	if err != nil {
		return 0
	}
	return model.MeanAccuracy(pred, y)
}

// Classes returns the sorted class labels seen during fitting.
func (m *MLPClassifier) Classes() []int {
	return append([]int(nil), m.classes_...)
}

// LossCurve returns the training loss of each epoch.
func (m *MLPClassifier) LossCurve() []float64 {
	return append([]float64(nil), m.lossCurve...)
}

// NIter returns the number of epochs run by the last Fit.
func (m *MLPClassifier) NIter() int {
	return m.nIter_
}

// GetParams returns the hyperparameters.
func (m *MLPClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"hidden_layer_sizes": append([]int(nil), m.hiddenLayerSizes...),
		"activation":         m.activation,
		"solver":             m.solver,
		"alpha":              m.alpha,
		"batch_size":         m.batchSize,
		"learning_rate_init": m.learningRateInit,
		"max_iter":           m.maxIter,
		"tol":                m.tol,
		"n_iter_no_change":   m.nIterNoChange,
		"momentum":           m.momentum,
		"nesterovs_momentum": m.nesterov,
		"shuffle":            m.shuffle,
		"random_state":       m.randomState,
	}
}

// SetParams sets hyperparameters and resets the fitted state.
func (m *MLPClassifier) SetParams(params map[string]interface{}) error {
	for key, v := range params {
		var err error
		switch key {
		case "hidden_layer_sizes":
			m.hiddenLayerSizes, err = model.IntsParam(key, v)
		case "activation":
			m.activation, err = model.StringParam(key, v, "relu", "tanh", "logistic", "identity")
		case "solver":
			m.solver, err = model.StringParam(key, v, "adam", "sgd")
		case "alpha":
			m.alpha, err = model.FloatParam(key, v)
		case "batch_size":
			m.batchSize, err = model.IntParam(key, v)
		case "learning_rate_init":
			m.learningRateInit, err = model.FloatParam(key, v)
		case "max_iter":
			m.maxIter, err = model.IntParam(key, v)
		case "tol":
			m.tol, err = model.FloatParam(key, v)
		case "n_iter_no_change":
			m.nIterNoChange, err = model.IntParam(key, v)
		case "momentum":
			m.momentum, err = model.FloatParam(key, v)
		case "nesterovs_momentum":
			m.nesterov, err = model.BoolParam(key, v)
		case "shuffle":
			m.shuffle, err = model.BoolParam(key, v)
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, v)
			m.randomState = int64(seed)
		default:
			err = model.UnknownParam("MLPClassifier", key, v)
		}
		if err != nil {
			return err
		}
	}
	m.state.Reset()
	return nil
}
