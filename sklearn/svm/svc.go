// Package svm implements a C-support vector classifier trained with SMO.
package svm

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/diabench/core/model"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	_ model.Tunable                 = (*SVC)(nil)
	_ model.ProbabilisticClassifier = (*SVC)(nil)
	_ model.Scorer                  = (*SVC)(nil)
)

const (
	tau = 1e-12

	// maxCachedRows bounds the kernel row cache used during training
	maxCachedRows = 2048

	// defaultIterCap mirrors libsvm's internal limit when max_iter is -1
	defaultIterCap = 10000000
)

// SVC is a binary C-support vector classifier compatible with scikit-learn's
// SVC. Training solves the dual with sequential minimal optimisation using
// second-order working set selection. With probability enabled a Platt
// sigmoid is fitted to the training decision values.
type SVC struct {
	state *model.StateManager

	// Hyperparameters
	C           float64
	kernel      string // "linear" or "rbf"
	gammaMode   string // "scale", "auto" or "value"
	gammaValue  float64
	gammaErr    error // invalid value passed to WithGamma
	tol         float64
	maxIter     int // -1 means no limit
	probability bool
	randomState int64

	// Fitted attributes
	gamma_         float64
	supportVectors [][]float64
	dualCoef       []float64 // α_i·y_i of each support vector
	rho            float64
	probA, probB   float64
	classes_       []int
	nIter_         int
}

// SVCOption configures an SVC.
type SVCOption func(*SVC)

// NewSVC creates a classifier with scikit-learn's defaults (C=1, rbf, gamma="scale").
func NewSVC(opts ...SVCOption) *SVC {
	s := &SVC{
		state:     model.NewStateManager("SVC"),
		C:         1.0,
		kernel:    "rbf",
		gammaMode: "scale",
		tol:       1e-3,
		maxIter:   -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithC sets the penalty parameter.
func WithC(c float64) SVCOption {
	return func(s *SVC) { s.C = c }
}

// WithKernel sets the kernel ("linear" or "rbf").
func WithKernel(kernel string) SVCOption {
	return func(s *SVC) { s.kernel = kernel }
}

// WithGamma sets gamma to "scale", "auto" or a positive float64.
func WithGamma(gamma interface{}) SVCOption {
	return func(s *SVC) { s.gammaErr = s.setGamma(gamma) }
}

// WithProbability enables Platt-scaled probability estimates.
func WithProbability(enabled bool) SVCOption {
	return func(s *SVC) { s.probability = enabled }
}

// WithSVCRandomState sets the seed (kept for API parity; training is deterministic).
func WithSVCRandomState(seed int64) SVCOption {
	return func(s *SVC) { s.randomState = seed }
}

// WithSVCMaxIter caps the SMO iterations (-1 for no limit).
func WithSVCMaxIter(n int) SVCOption {
	return func(s *SVC) { s.maxIter = n }
}

func (s *SVC) setGamma(v interface{}) error {
	if str, ok := v.(string); ok {
		if str != "scale" && str != "auto" {
			return errors.NewValidationError("gamma", "must be 'scale', 'auto' or a positive number", v)
		}
		s.gammaMode = str
		return nil
	}
	g, err := model.FloatParam("gamma", v)
	if err != nil {
		return err
	}
	if g <= 0 {
		return errors.NewValidationError("gamma", "must be positive", v)
	}
	s.gammaMode, s.gammaValue = "value", g
	return nil
}

// resolveGamma computes the kernel coefficient for the training matrix.
func (s *SVC) resolveGamma(X mat.Matrix) float64 {
	_, nFeatures := X.Dims()
	switch s.gammaMode {
	case "auto":
		return 1 / float64(nFeatures)
	case "scale":
		all := mat.DenseCopyOf(X).RawMatrix().Data
		_, variance := stat.PopMeanVariance(all, nil)
		if variance == 0 {
			return 1
		}
		return 1 / (float64(nFeatures) * variance)
	default:
		return s.gammaValue
	}
}

func (s *SVC) kernelValue(a, b []float64) float64 {
	if s.kernel == "linear" {
		return floats.Dot(a, b)
	}
	d := floats.Distance(a, b, 2)
	return math.Exp(-s.gamma_ * d * d)
}

// Fit solves the dual problem and, when probability is enabled, fits the
// Platt sigmoid.
func (s *SVC) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.CheckXY("SVC.Fit", X, y)
	if err != nil {
		return err
	}
	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	if s.kernel != "linear" && s.kernel != "rbf" {
		return errors.NewValidationError("kernel", "must be 'linear' or 'rbf'", s.kernel)
	}
	if s.gammaErr != nil {
		return s.gammaErr
	}

	labels := model.LabelsOf(y)
	s.classes_ = model.UniqueClasses(labels)
	if len(s.classes_) != 2 {
		return errors.NewClassCountError("SVC.Fit", 2, len(s.classes_),
			fmt.Sprintf("binary problems only, got classes %v", s.classes_))
	}

	rows := model.ToRows(X)
	sign := make([]float64, nSamples)
	for i, l := range labels {
		sign[i] = -1
		if l == s.classes_[1] {
			sign[i] = 1
		}
	}
	s.gamma_ = s.resolveGamma(X)

	sol := newSolver(s, rows, sign)
	alpha, rho, iters := sol.solve()
	s.rho, s.nIter_ = rho, iters

	s.supportVectors = s.supportVectors[:0]
	s.dualCoef = s.dualCoef[:0]
	for i, a := range alpha {
		if a > 0 {
			s.supportVectors = append(s.supportVectors, rows[i])
			s.dualCoef = append(s.dualCoef, a*sign[i])
		}
	}

	s.state.SetFitted(nFeatures, nSamples)

	if s.probability {
		dec := make([]float64, nSamples)
		for i, r := range rows {
			dec[i] = s.decision(r)
		}
		s.probA, s.probB = plattTrain(dec, sign)
	}
	return nil
}

// smoSolver holds the state of one dual optimisation.
type smoSolver struct {
	svc   *SVC
	rows  [][]float64
	y     []float64
	alpha []float64
	grad  []float64
	diag  []float64
	cache map[int][]float64
	order []int
}

func newSolver(s *SVC, rows [][]float64, y []float64) *smoSolver {
	n := len(rows)
	sol := &smoSolver{
		svc:   s,
		rows:  rows,
		y:     y,
		alpha: make([]float64, n),
		grad:  make([]float64, n),
		diag:  make([]float64, n),
		cache: make(map[int][]float64),
	}
	for i := range rows {
		sol.grad[i] = -1
		sol.diag[i] = s.kernelValue(rows[i], rows[i])
	}
	return sol
}

// q returns row i of Q, Q_it = y_i·y_t·K(x_i, x_t), with FIFO caching.
func (sol *smoSolver) q(i int) []float64 {
	if row, ok := sol.cache[i]; ok {
		return row
	}
	row := make([]float64, len(sol.rows))
	for t, r := range sol.rows {
		row[t] = sol.y[i] * sol.y[t] * sol.svc.kernelValue(sol.rows[i], r)
	}
	if len(sol.order) >= maxCachedRows {
		delete(sol.cache, sol.order[0])
		sol.order = sol.order[1:]
	}
	sol.cache[i] = row
	sol.order = append(sol.order, i)
	return row
}

func (sol *smoSolver) isUpper(t int) bool {
	return (sol.y[t] > 0 && sol.alpha[t] < sol.svc.C) || (sol.y[t] < 0 && sol.alpha[t] > 0)
}

func (sol *smoSolver) isLower(t int) bool {
	return (sol.y[t] > 0 && sol.alpha[t] > 0) || (sol.y[t] < 0 && sol.alpha[t] < sol.svc.C)
}

// selectWorkingSet picks the maximal violating pair with the second order
// gain heuristic. ok is false once the KKT gap is within tol.
func (sol *smoSolver) selectWorkingSet() (i, j int, ok bool) {
	gMax := math.Inf(-1)
	i = -1
	for t := range sol.alpha {
		if sol.isUpper(t) && -sol.y[t]*sol.grad[t] >= gMax {
			gMax = -sol.y[t] * sol.grad[t]
			i = t
		}
	}
	if i < 0 {
		return 0, 0, false
	}

	qi := sol.q(i)
	gMax2 := math.Inf(-1)
	objMin := math.Inf(1)
	j = -1
	for t := range sol.alpha {
		if !sol.isLower(t) {
			continue
		}
		yg := sol.y[t] * sol.grad[t]
		if yg > gMax2 {
			gMax2 = yg
		}
		b := gMax + yg
		if b > 0 {
			a := sol.diag[i] + sol.diag[t] - 2*sol.y[i]*qi[t]*sol.y[t]
			if a <= 0 {
				a = tau
			}
			if obj := -(b * b) / a; obj <= objMin {
				objMin = obj
				j = t
			}
		}
	}
	if gMax+gMax2 < sol.svc.tol || j < 0 {
		return 0, 0, false
	}
	return i, j, true
}

func (sol *smoSolver) solve() ([]float64, float64, int) {
	C := sol.svc.C
	limit := sol.svc.maxIter
	if limit < 0 {
		limit = defaultIterCap
	}

	iter := 0
	converged := false
	for ; iter < limit; iter++ {
		i, j, ok := sol.selectWorkingSet()
		if !ok {
			converged = true
			break
		}
		qi, qj := sol.q(i), sol.q(j)
		oldI, oldJ := sol.alpha[i], sol.alpha[j]
		a := sol.alpha

		if sol.y[i] != sol.y[j] {
			quad := sol.diag[i] + sol.diag[j] + 2*qi[j]
			if quad <= 0 {
				quad = tau
			}
			delta := (-sol.grad[i] - sol.grad[j]) / quad
			diff := a[i] - a[j]
			a[i] += delta
			a[j] += delta
			if diff > 0 {
				if a[j] < 0 {
					a[j], a[i] = 0, diff
				}
			} else if a[i] < 0 {
				a[i], a[j] = 0, -diff
			}
			if diff > 0 {
				if a[i] > C {
					a[i], a[j] = C, C-diff
				}
			} else if a[j] > C {
				a[j], a[i] = C, C+diff
			}
		} else {
			quad := sol.diag[i] + sol.diag[j] - 2*qi[j]
			if quad <= 0 {
				quad = tau
			}
			delta := (sol.grad[i] - sol.grad[j]) / quad
			sum := a[i] + a[j]
			a[i] -= delta
			a[j] += delta
			if sum > C {
				if a[i] > C {
					a[i], a[j] = C, sum-C
				}
			} else if a[j] < 0 {
				a[j], a[i] = 0, sum
			}
			if sum > C {
				if a[j] > C {
					a[j], a[i] = C, sum-C
				}
			} else if a[i] < 0 {
				a[i], a[j] = 0, sum
			}
		}

		dI, dJ := a[i]-oldI, a[j]-oldJ
		for t := range sol.grad {
			sol.grad[t] += qi[t]*dI + qj[t]*dJ
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("SVC", iter,
			"solver terminated early; consider pre-processing your data or raising max_iter"))
	}
	return sol.alpha, sol.computeRho(), iter
}

// computeRho averages y·G over free vectors, or takes the midpoint of the
// feasible interval when every vector is at a bound.
func (sol *smoSolver) computeRho() float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	sumFree, nFree := 0.0, 0
	for t, a := range sol.alpha {
		yg := sol.y[t] * sol.grad[t]
		switch {
		case a >= sol.svc.C:
			if sol.y[t] < 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		case a <= 0:
			if sol.y[t] > 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		default:
			nFree++
			sumFree += yg
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}

func (s *SVC) decision(x []float64) float64 {
	f := -s.rho
	for k, sv := range s.supportVectors {
		f += s.dualCoef[k] * s.kernelValue(sv, x)
	}
	return f
}

// DecisionFunction returns the signed distance to the separating surface;
// positive values favour Classes()[1].
func (s *SVC) DecisionFunction(X mat.Matrix) (*mat.VecDense, error) {
	r, c := X.Dims()
	if err := s.state.RequireFitted("DecisionFunction", c); err != nil {
		return nil, err
	}
	out := mat.NewVecDense(r, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		row = model.Row(X, i, row)
		out.SetVec(i, s.decision(row))
	}
	return out, nil
}

// Predict labels samples by the sign of the decision function.
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n := dec.Len()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		label := s.classes_[0]
		if dec.AtVec(i) > 0 {
			label = s.classes_[1]
		}
		out.Set(i, 0, float64(label))
	}
	return out, nil
}

// PredictProba returns Platt-scaled probabilities. It fails unless the
// classifier was built with probability enabled.
func (s *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !s.probability {
		return nil, errors.NewValueError("SVC.PredictProba", "predict_proba is not available when probability=false")
	}
	dec, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n := dec.Len()
	proba := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		p := plattPredict(dec.AtVec(i), s.probA, s.probB)
		proba.Set(i, 0, 1-p)
		proba.Set(i, 1, p)
	}
	return proba, nil
}

// Score returns the mean accuracy on the given data.
func (s *SVC) Score(X, y mat.Matrix) float64 {
	pred, err := s.Predict(X)
	if err != nil {
		return 0
	}
	return model.MeanAccuracy(pred, y)
}

// Classes returns the sorted class labels seen during fitting.
func (s *SVC) Classes() []int {
	return append([]int(nil), s.classes_...)
}

// NSupport returns the number of support vectors.
func (s *SVC) NSupport() int {
	return len(s.supportVectors)
}

// GetParams returns the hyperparameters.
func (s *SVC) GetParams() map[string]interface{} {
	var gamma interface{} = s.gammaMode
	if s.gammaMode == "value" {
		gamma = s.gammaValue
	}
	return map[string]interface{}{
		"C":            s.C,
		"kernel":       s.kernel,
		"gamma":        gamma,
		"tol":          s.tol,
		"max_iter":     s.maxIter,
		"probability":  s.probability,
		"random_state": s.randomState,
	}
}

// SetParams sets hyperparameters and resets the fitted state.
func (s *SVC) SetParams(params map[string]interface{}) error {
	for key, v := range params {
		var err error
		switch key {
		case "C":
			s.C, err = model.FloatParam(key, v)
		case "kernel":
			s.kernel, err = model.StringParam(key, v, "linear", "rbf")
		case "gamma":
			if err = s.setGamma(v); err == nil {
				s.gammaErr = nil
			}
		case "tol":
			s.tol, err = model.FloatParam(key, v)
		case "max_iter":
			s.maxIter, err = model.IntParam(key, v)
		case "probability":
			s.probability, err = model.BoolParam(key, v)
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, v)
			s.randomState = int64(seed)
		default:
			err = model.UnknownParam("SVC", key, v)
		}
		if err != nil {
			return err
		}
	}
	s.state.Reset()
	return nil
}
