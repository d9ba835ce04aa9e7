package synth

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownParam is returned for an ID the table does not define.
	ErrUnknownParam = errors.New("synth: unknown parameter")
	// ErrInvalidValue is returned for an enum value outside its choice list.
	ErrInvalidValue = errors.New("synth: invalid parameter value")
)

// ParamSpec declares one named instrument parameter. Parameters with
// EnumNames hold a choice index.
type ParamSpec struct {
	ID        string
	Default   float64
	Min       float64
	Max       float64
	EnumNames []string
}

// Param is the current state of a parameter as seen by callers.
type Param struct {
	Value     float64
	EnumNames []string
}

// ParamTable maps parameter IDs to current values.
type ParamTable struct {
	specs  []ParamSpec
	index  map[string]int
	values []float64
}

// NewParamTable creates a table holding the defaults of specs. Later specs
// with a duplicate ID replace earlier ones.
func NewParamTable(specs ...[]ParamSpec) *ParamTable {
	t := &ParamTable{index: make(map[string]int)}
	for _, group := range specs {
		for _, s := range group {
			if i, ok := t.index[s.ID]; ok {
				t.specs[i] = s
				t.values[i] = s.Default
				continue
			}
			t.index[s.ID] = len(t.specs)
			t.specs = append(t.specs, s)
			t.values = append(t.values, s.Default)
		}
	}
	return t
}

// GetParamByID returns the current value and choice list of id.
func (t *ParamTable) GetParamByID(id string) (Param, bool) {
	i, ok := t.index[id]
	if !ok {
		return Param{}, false
	}
	return Param{Value: t.values[i], EnumNames: t.specs[i].EnumNames}, true
}

// Spec returns the declaration of id.
func (t *ParamTable) Spec(id string) (ParamSpec, bool) {
	i, ok := t.index[id]
	if !ok {
		return ParamSpec{}, false
	}
	return t.specs[i], true
}

// Value returns the current value of id, or 0 if it is not defined.
func (t *ParamTable) Value(id string) float64 {
	if i, ok := t.index[id]; ok {
		return t.values[i]
	}
	return 0
}

// IDs lists all parameter IDs in declaration order.
func (t *ParamTable) IDs() []string {
	ids := make([]string, len(t.specs))
	for i, s := range t.specs {
		ids[i] = s.ID
	}
	return ids
}

// EnumIndex resolves a choice name of id to its index.
func (t *ParamTable) EnumIndex(id string, name string) (int, bool) {
	s, ok := t.Spec(id)
	if !ok {
		return 0, false
	}
	for i, n := range s.EnumNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Set stores v for id. Continuous values are clamped to the declared range.
// Enum values must name a valid choice; otherwise the prior value is kept.
func (t *ParamTable) Set(id string, v float64) (float64, error) {
	i, ok := t.index[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParam, id)
	}
	s := t.specs[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return t.values[i], fmt.Errorf("%w: %s=%v", ErrInvalidValue, id, v)
	}
	if len(s.EnumNames) > 0 {
		if v != math.Trunc(v) || v < 0 || int(v) >= len(s.EnumNames) {
			return t.values[i], fmt.Errorf("%w: %s=%v (expected 0..%d)", ErrInvalidValue, id, v, len(s.EnumNames)-1)
		}
	} else if s.Max > s.Min {
		v = math.Max(s.Min, math.Min(s.Max, v))
	}
	t.values[i] = v
	return v, nil
}
