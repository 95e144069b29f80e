package model_selection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Params is one hyperparameter combination keyed by scikit-learn names.
type Params map[string]interface{}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the combination like a Python dict with sorted keys,
// e.g. {'C': 1, 'solver': 'liblinear'}. nil prints as None and integer
// slices as tuples.
func (p Params) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range p.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s': %s", k, pyRepr(p[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func pyRepr(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return "'" + x + "'"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []int:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = strconv.Itoa(n)
		}
		if len(x) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprint(x)
	}
}

// ParamGrid maps each hyperparameter to the values to try.
type ParamGrid map[string][]interface{}

// Clone returns a deep copy so callers cannot mutate a shared grid.
func (g ParamGrid) Clone() ParamGrid {
	out := make(ParamGrid, len(g))
	for k, vs := range g {
		out[k] = append([]interface{}(nil), vs...)
	}
	return out
}

// Size returns the number of combinations.
func (g ParamGrid) Size() int {
	if len(g) == 0 {
		return 0
	}
	n := 1
	for _, vs := range g {
		n *= len(vs)
	}
	return n
}

// ParameterGrid enumerates every combination of g. Keys are iterated in
// sorted order with the last key varying fastest, matching scikit-learn's
// ParameterGrid.
func ParameterGrid(g ParamGrid) []Params {
	size := g.Size()
	if size == 0 {
		return nil
	}
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Params, size)
	for idx := 0; idx < size; idx++ {
		p := make(Params, len(keys))
		rest := idx
		for k := len(keys) - 1; k >= 0; k-- {
			vs := g[keys[k]]
			p[keys[k]] = vs[rest%len(vs)]
			rest /= len(vs)
		}
		out[idx] = p
	}
	return out
}
