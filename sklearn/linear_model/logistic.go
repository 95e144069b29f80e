// Package linear_model implements regularised logistic regression.
package linear_model

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/diabench/core/model"
	"github.com/YuminosukeSato/diabench/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

var (
	_ model.Tunable                 = (*LogisticRegression)(nil)
	_ model.ProbabilisticClassifier = (*LogisticRegression)(nil)
	_ model.Scorer                  = (*LogisticRegression)(nil)
)

// LogisticRegression implements logistic regression for classification
// Compatible with scikit-learn's LogisticRegression
//
// The objective is C·Σ logloss + ½‖w‖². Binary problems fit one weight
// vector; with more classes lbfgs fits a multinomial model and liblinear
// fits one-vs-rest.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	randomState  int64   // Random seed (kept for API parity; both solvers are deterministic)
	solver       string  // Solver: "lbfgs" or "liblinear"
	maxIter      int     // Maximum iterations
	tol          float64 // Tolerance for stopping

	// Model parameters
	coef_      [][]float64 // Coefficients (n_classes x n_features or 1 x n_features for binary)
	intercept_ []float64   // Intercept terms
	classes_   []int       // Unique class labels
	nClasses_  int         // Number of classes
	nFeatures_ int         // Number of features
	nIter_     []int       // Actual iterations per fitted problem
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager("LogisticRegression"),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		solver:       "lbfgs",
		maxIter:      100,
		tol:          1e-4,
	}

	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRSolver sets the optimization solver
func WithLRSolver(solver string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.solver = solver
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRRandomState sets the random seed
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.randomState = seed
	}
}

// checkSolver rejects solver/penalty pairs that scikit-learn also rejects.
func (lr *LogisticRegression) checkSolver() error {
	params := map[string]interface{}{"solver": lr.solver, "penalty": lr.penalty}
	switch lr.solver {
	case "lbfgs":
		if lr.penalty != "l2" && lr.penalty != "none" {
			return errors.NewIncompatibleParamsError("LogisticRegression", params,
				"solver lbfgs supports only 'l2' or 'none' penalties")
		}
	case "liblinear":
		if lr.penalty == "none" {
			return errors.NewIncompatibleParamsError("LogisticRegression", params,
				"penalty='none' is not supported for the liblinear solver")
		}
		if lr.penalty != "l2" {
			return errors.NewIncompatibleParamsError("LogisticRegression", params,
				"only the 'l2' penalty is implemented for liblinear")
		}
	default:
		return errors.NewValidationError("solver", "must be 'lbfgs' or 'liblinear'", lr.solver)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	nSamples, nFeatures, err := model.CheckXY("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if err := lr.checkSolver(); err != nil {
		return err
	}

	labels := model.LabelsOf(y)
	lr.classes_ = model.UniqueClasses(labels)
	lr.nClasses_ = len(lr.classes_)
	lr.nFeatures_ = nFeatures
	if lr.nClasses_ < 2 {
		return errors.NewClassCountError("LogisticRegression.Fit", 2, lr.nClasses_,
			fmt.Sprintf("only class %d present", lr.classes_[0]))
	}

	rows := model.ToRows(X)
	encoded := model.EncodeLabels(labels, lr.classes_)

	switch {
	case lr.nClasses_ == 2:
		target := make([]float64, nSamples)
		for i, k := range encoded {
			target[i] = float64(k)
		}
		w, b, iters, err := lr.fitBinary(rows, target)
		if err != nil {
			return err
		}
		lr.coef_ = [][]float64{w}
		lr.intercept_ = []float64{b}
		lr.nIter_ = []int{iters}
	case lr.solver == "lbfgs":
		if err := lr.fitMultinomial(rows, encoded); err != nil {
			return err
		}
	default:
		if err := lr.fitOVR(rows, encoded); err != nil {
			return err
		}
	}

	lr.state.SetFitted(nFeatures, nSamples)
	return nil
}

func (lr *LogisticRegression) fitBinary(rows [][]float64, target []float64) ([]float64, float64, int, error) {
	if lr.solver == "liblinear" {
		return lr.fitNewton(rows, target)
	}
	return lr.fitLBFGS(rows, target)
}

// fitOVR fits one binary problem per class
func (lr *LogisticRegression) fitOVR(rows [][]float64, encoded []int) error {
	lr.coef_ = make([][]float64, lr.nClasses_)
	lr.intercept_ = make([]float64, lr.nClasses_)
	lr.nIter_ = make([]int, lr.nClasses_)
	target := make([]float64, len(rows))
	for k := 0; k < lr.nClasses_; k++ {
		for i, c := range encoded {
			target[i] = 0
			if c == k {
				target[i] = 1
			}
		}
		w, b, iters, err := lr.fitBinary(rows, target)
		if err != nil {
			return errors.Wrapf(err, "failed to fit class %d", lr.classes_[k])
		}
		lr.coef_[k], lr.intercept_[k], lr.nIter_[k] = w, b, iters
	}
	return nil
}

// penaltyScale is the weight of ½‖w‖² after dividing the objective by C·n.
func (lr *LogisticRegression) penaltyScale(n int) float64 {
	if lr.penalty == "none" {
		return 0
	}
	return 1 / (lr.C * float64(n))
}

// fitLBFGS minimises the mean log loss plus ‖w‖²/(2Cn); the intercept is
// not penalised.
func (lr *LogisticRegression) fitLBFGS(rows [][]float64, target []float64) ([]float64, float64, int, error) {
	n, d := len(rows), lr.nFeatures_
	alpha := lr.penaltyScale(n)
	z := make([]float64, n)

	linear := func(x []float64) {
		for i, r := range rows {
			z[i] = floats.Dot(r, x[:d]) + x[d]
		}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			linear(x)
			loss := 0.0
			for i := range rows {
				// log(1+e^z) - y·z
				loss += errors.Log1pExp(z[i]) - target[i]*z[i]
			}
			w := x[:d]
			return loss/float64(n) + 0.5*alpha*floats.Dot(w, w)
		},
		Grad: func(grad, x []float64) {
			linear(x)
			for j := range grad {
				grad[j] = 0
			}
			for i, r := range rows {
				res := (errors.Expit(z[i]) - target[i]) / float64(n)
				floats.AddScaled(grad[:d], res, r)
				grad[d] += res
			}
			floats.AddScaled(grad[:d], alpha, x[:d])
			if !lr.fitIntercept {
				grad[d] = 0
			}
		},
	}

	x, iters, err := lr.minimize(problem, make([]float64, d+1))
	if err != nil {
		return nil, 0, 0, err
	}
	return x[:d], x[d], iters, nil
}

// fitMultinomial fits a softmax model over all classes with lbfgs
func (lr *LogisticRegression) fitMultinomial(rows [][]float64, encoded []int) error {
	n, d, k := len(rows), lr.nFeatures_, lr.nClasses_
	stride := d + 1
	alpha := lr.penaltyScale(n)
	scores := make([]float64, k)

	// softmax fills scores with class probabilities for row r and returns the log-sum-exp
	softmax := func(x, r []float64) float64 {
		for c := 0; c < k; c++ {
			p := x[c*stride : (c+1)*stride]
			scores[c] = floats.Dot(r, p[:d]) + p[d]
		}
		lse := floats.LogSumExp(scores)
		for c := range scores {
			scores[c] = math.Exp(scores[c] - lse)
		}
		return lse
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			loss := 0.0
			for i, r := range rows {
				p := x[encoded[i]*stride : (encoded[i]+1)*stride]
				zy := floats.Dot(r, p[:d]) + p[d]
				loss += softmax(x, r) - zy
			}
			reg := 0.0
			for c := 0; c < k; c++ {
				w := x[c*stride : c*stride+d]
				reg += floats.Dot(w, w)
			}
			return loss/float64(n) + 0.5*alpha*reg
		},
		Grad: func(grad, x []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i, r := range rows {
				softmax(x, r)
				for c := 0; c < k; c++ {
					res := scores[c]
					if c == encoded[i] {
						res--
					}
					res /= float64(n)
					g := grad[c*stride : (c+1)*stride]
					floats.AddScaled(g[:d], res, r)
					g[d] += res
				}
			}
			for c := 0; c < k; c++ {
				floats.AddScaled(grad[c*stride:c*stride+d], alpha, x[c*stride:c*stride+d])
				if !lr.fitIntercept {
					grad[c*stride+d] = 0
				}
			}
		},
	}

	x, iters, err := lr.minimize(problem, make([]float64, k*stride))
	if err != nil {
		return err
	}
	lr.coef_ = make([][]float64, k)
	lr.intercept_ = make([]float64, k)
	for c := 0; c < k; c++ {
		lr.coef_[c] = append([]float64(nil), x[c*stride:c*stride+d]...)
		lr.intercept_[c] = x[c*stride+d]
	}
	lr.nIter_ = []int{iters}
	return nil
}

func (lr *LogisticRegression) minimize(problem optimize.Problem, init []float64) ([]float64, int, error) {
	settings := &optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
	}
	result, err := optimize.Minimize(problem, init, settings, &optimize.LBFGS{})
	if result == nil {
		return nil, 0, errors.NewModelError("LogisticRegression.Fit", "lbfgs failed", err)
	}
	if err != nil || result.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("lbfgs", result.Stats.MajorIterations,
			"failed to converge; increase max_iter or scale the data"))
	}
	return result.X, result.Stats.MajorIterations, nil
}

// fitNewton is the liblinear-style primal solver: the intercept is an extra
// feature of constant 1 and is penalised like the other weights. Each Newton
// step solves (I + C·XᵀDX) s = -g and backtracks until the objective falls.
func (lr *LogisticRegression) fitNewton(rows [][]float64, target []float64) ([]float64, float64, int, error) {
	n, d := len(rows), lr.nFeatures_
	p := d
	if lr.fitIntercept {
		p = d + 1
	}
	aug := make([][]float64, n)
	for i, r := range rows {
		aug[i] = make([]float64, p)
		copy(aug[i], r)
		if lr.fitIntercept {
			aug[i][d] = 1
		}
	}

	objective := func(w []float64) float64 {
		f := 0.5 * floats.Dot(w, w)
		for i, r := range aug {
			z := floats.Dot(r, w)
			f += lr.C * (errors.Log1pExp(z) - target[i]*z)
		}
		return f
	}

	w := make([]float64, p)
	g := make([]float64, p)
	hess := mat.NewSymDense(p, nil)
	var step mat.VecDense
	var chol mat.Cholesky

	nPos := floats.Sum(target)
	minClass := math.Max(math.Min(nPos, float64(n)-nPos), 1)
	var gnorm0 float64

	iter := 0
	converged := false
	f := objective(w)
	for ; iter < lr.maxIter; iter++ {
		copy(g, w)
		for a := 0; a < p; a++ {
			for b := a; b < p; b++ {
				v := 0.0
				if a == b {
					v = 1
				}
				hess.SetSym(a, b, v)
			}
		}
		for i, r := range aug {
			prob := errors.Expit(floats.Dot(r, w))
			floats.AddScaled(g, lr.C*(prob-target[i]), r)
			dii := lr.C * prob * (1 - prob)
			for a := 0; a < p; a++ {
				if r[a] == 0 {
					continue
				}
				for b := a; b < p; b++ {
					hess.SetSym(a, b, hess.At(a, b)+dii*r[a]*r[b])
				}
			}
		}

		gnorm := floats.Norm(g, 2)
		if iter == 0 {
			gnorm0 = gnorm
		}
		if gnorm <= lr.tol*minClass/float64(n)*gnorm0 || gnorm == 0 {
			converged = true
			break
		}

		if ok := chol.Factorize(hess); !ok {
			return nil, 0, 0, errors.NewModelError("LogisticRegression.Fit", "singular Newton system", nil)
		}
		if err := chol.SolveVecTo(&step, mat.NewVecDense(p, g)); err != nil {
			return nil, 0, 0, errors.NewModelError("LogisticRegression.Fit", "Newton step", err)
		}

		// backtracking line search along -step
		dir := step.RawVector().Data
		slope := floats.Dot(g, dir)
		t := 1.0
		next := make([]float64, p)
		for ls := 0; ls < 30; ls++ {
			floats.AddScaledTo(next, w, -t, dir)
			fNext := objective(next)
			if fNext <= f-0.01*t*slope {
				copy(w, next)
				f = fNext
				break
			}
			t *= 0.5
		}
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("liblinear", iter,
			"failed to converge; increase max_iter"))
	}

	if lr.fitIntercept {
		return w[:d], w[d], iter, nil
	}
	return w, 0, iter, nil
}

// decision returns the per-class linear scores of one sample.
func (lr *LogisticRegression) decision(x []float64, out []float64) {
	for k := range lr.coef_ {
		out[k] = floats.Dot(x, lr.coef_[k]) + lr.intercept_[k]
	}
}

// PredictProba returns probability estimates for each class
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	nSamples, c := X.Dims()
	if err := lr.state.RequireFitted("PredictProba", c); err != nil {
		return nil, err
	}

	probas := mat.NewDense(nSamples, lr.nClasses_, nil)
	scores := make([]float64, len(lr.coef_))
	row := make([]float64, c)
	for i := 0; i < nSamples; i++ {
		row = model.Row(X, i, row)
		lr.decision(row, scores)
		switch {
		case lr.nClasses_ == 2:
			p1 := errors.Expit(scores[0])
			probas.Set(i, 0, 1-p1)
			probas.Set(i, 1, p1)
		case lr.solver == "lbfgs":
			lse := floats.LogSumExp(scores)
			for k, s := range scores {
				probas.Set(i, k, math.Exp(s-lse))
			}
		default:
			// one-vs-rest: normalised sigmoids
			sum := 0.0
			for k, s := range scores {
				scores[k] = errors.Expit(s)
				sum += scores[k]
			}
			for k, s := range scores {
				probas.Set(i, k, s/sum)
			}
		}
	}
	return probas, nil
}

// Predict makes predictions for input data
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return model.ProbaArgmax(proba, lr.classes_), nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) float64 {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0.0
	}
	return model.MeanAccuracy(predictions, y)
}

// Classes returns the sorted class labels seen during fitting.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// Coef returns a copy of the fitted coefficients.
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef_))
	for k, w := range lr.coef_ {
		out[k] = append([]float64(nil), w...)
	}
	return out
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"random_state":  lr.randomState,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			lr.penalty, err = model.StringParam(key, value, "l1", "l2", "elasticnet", "none")
		case "C":
			lr.C, err = model.FloatParam(key, value)
		case "fit_intercept":
			lr.fitIntercept, err = model.BoolParam(key, value)
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, value)
			lr.randomState = int64(seed)
		case "solver":
			lr.solver, err = model.StringParam(key, value)
		case "max_iter":
			lr.maxIter, err = model.IntParam(key, value)
		case "tol":
			lr.tol, err = model.FloatParam(key, value)
		default:
			err = model.UnknownParam("LogisticRegression", key, value)
		}
		if err != nil {
			return err
		}
	}
	lr.state.Reset()
	return nil
}
