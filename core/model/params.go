package model

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/diabench/pkg/errors"
)

// IntParam coerces a hyperparameter value to int. Whole float64 values are
// accepted so grids decoded from YAML or HCL work unchanged.
func IntParam(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case float64:
		if x == math.Trunc(x) {
			return int(x), nil
		}
	}
	return 0, errors.NewValidationError(name, "must be an integer", v)
}

// OptionalIntParam is IntParam where nil means "no limit" and maps to -1.
func OptionalIntParam(name string, v interface{}) (int, error) {
	if v == nil {
		return -1, nil
	}
	return IntParam(name, v)
}

// FloatParam coerces a hyperparameter value to float64.
func FloatParam(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(name, "must be a number", v)
}

// StringParam requires a string value, optionally restricted to allowed.
func StringParam(name string, v interface{}, allowed ...string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", errors.NewValidationError(name, "must be a string", v)
	}
	if len(allowed) == 0 {
		return s, nil
	}
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", errors.NewValidationError(name, fmt.Sprintf("must be one of %v", allowed), v)
}

// BoolParam requires a bool value.
func BoolParam(name string, v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.NewValidationError(name, "must be a bool", v)
	}
	return b, nil
}

// IntsParam coerces a layer-size style value ([]int, []interface{} or a single int).
func IntsParam(name string, v interface{}) ([]int, error) {
	switch x := v.(type) {
	case []int:
		out := make([]int, len(x))
		copy(out, x)
		return out, nil
	case []interface{}:
		out := make([]int, len(x))
		for i, e := range x {
			n, err := IntParam(name, e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	n, err := IntParam(name, v)
	if err != nil {
		return nil, errors.NewValidationError(name, "must be a list of integers", v)
	}
	return []int{n}, nil
}

// UnknownParam is the error every SetParams returns for a key it does not know.
func UnknownParam(estimator, key string, v interface{}) error {
	return errors.NewValidationError(key, "unknown parameter for "+estimator, v)
}
