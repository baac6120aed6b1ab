package dataframe

import (
	"fmt"

	"github.com/paveg/rapids/internal/errors"
	"github.com/paveg/rapids/internal/expr"
)

// Selector picks columns of a frame by name, by position, or as a sequence
// of either. Selectors are resolved once into an ordered index list; the
// rest of the package only deals in indices.
type Selector interface {
	appendIndices(op string, names []string, dst []int) ([]int, error)
	appendRaw(dst []any) []any
}

// ByName selects the column with this exact, case-sensitive name.
type ByName string

// ByIndex selects the column at this zero-based position.
type ByIndex int

// BySeq selects each member in order.
type BySeq []Selector

// Names is shorthand for a sequence of ByName selectors.
func Names(names ...string) BySeq {
	seq := make(BySeq, len(names))
	for i, n := range names {
		seq[i] = ByName(n)
	}
	return seq
}

// Indices is shorthand for a sequence of ByIndex selectors.
func Indices(idx ...int) BySeq {
	seq := make(BySeq, len(idx))
	for i, n := range idx {
		seq[i] = ByIndex(n)
	}
	return seq
}

// Resolve turns sel into column positions against the given column names.
func Resolve(op string, sel Selector, names []string) ([]int, error) {
	if sel == nil {
		return nil, errors.NewInvalidInputError(op, "column selector is nil")
	}
	return sel.appendIndices(op, names, nil)
}

func (n ByName) appendIndices(op string, names []string, dst []int) ([]int, error) {
	for i, name := range names {
		if name == string(n) {
			return append(dst, i), nil
		}
	}
	return dst, errors.NewColumnNotFoundError(op, string(n), names)
}

func (n ByName) appendRaw(dst []any) []any {
	return append(dst, string(n))
}

func (i ByIndex) appendIndices(op string, names []string, dst []int) ([]int, error) {
	if int(i) < 0 || int(i) >= len(names) {
		return dst, errors.NewIndexOutOfRangeError(op, int(i), len(names))
	}
	return append(dst, int(i)), nil
}

func (i ByIndex) appendRaw(dst []any) []any {
	return append(dst, int(i))
}

func (s BySeq) appendIndices(op string, names []string, dst []int) ([]int, error) {
	var err error
	for _, sel := range s {
		if sel == nil {
			return dst, errors.NewInvalidInputError(op, "column selector is nil")
		}
		if dst, err = sel.appendIndices(op, names, dst); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

func (s BySeq) appendRaw(dst []any) []any {
	for _, sel := range s {
		if sel != nil {
			dst = sel.appendRaw(dst)
		}
	}
	return dst
}

// unresolvedOperand renders a selector for a frame whose column names are
// not known yet. The evaluator accepts either a number list or a string
// list, so a selector mixing names and positions cannot be sent as is.
func unresolvedOperand(op string, sel Selector) (expr.Operand, error) {
	if sel == nil {
		return nil, errors.NewInvalidInputError(op, "column selector is nil")
	}
	raw := sel.appendRaw(nil)
	var names []string
	var idx []int
	for _, r := range raw {
		switch v := r.(type) {
		case string:
			names = append(names, v)
		case int:
			if v < 0 {
				return nil, errors.NewValidationError(op, fmt.Sprintf("#%d", v),
					errors.ErrColumnIndexOutOfRange, "negative column index")
			}
			idx = append(idx, v)
		}
	}
	switch {
	case len(names) > 0 && len(idx) > 0:
		return nil, errors.NewInvalidInputError(op,
			fmt.Sprintf("selector %v mixes names and positions; materialize the frame first", raw))
	case len(names) > 0:
		return expr.Strs(names), nil
	default:
		return expr.Indices(idx), nil
	}
}
