package errors

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
)

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// NaN や Inf を検出した操作と反復回数を保持します。
type NumericalInstabilityError struct {
	Operation string
	Value     float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("diabench: numerical instability detected in %s at iteration %d (value: %g)",
		e.Operation, e.Iteration, e.Value)
}

// CheckScalar checks a single scalar value for NaN or Inf.
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.WithStack(&NumericalInstabilityError{Operation: operation, Value: value, Iteration: iteration})
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

// ClipValue clips a value to the range [min, max].
func ClipValue(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Expit is the logistic sigmoid evaluated without overflow for large |z|.
func Expit(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1.0 + ez)
}

// Log1pExp computes log(1 + exp(z)) without overflow.
func Log1pExp(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}
