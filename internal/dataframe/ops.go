package dataframe

import (
	"context"

	"github.com/paveg/rapids/internal/errors"
	"github.com/paveg/rapids/internal/expr"
)

// Binary operations. other is a *Frame or a literal (number, string, bool,
// nil). None of these contact the cluster.

func (f *Frame) binary(name, op string, other any) *Frame {
	return f.st.sess.compose(name, op, f, other)
}

// Add returns f + other.
func (f *Frame) Add(other any) *Frame { return f.binary("Add", expr.OpAdd, other) }

// Sub returns f - other.
func (f *Frame) Sub(other any) *Frame { return f.binary("Sub", expr.OpSub, other) }

// Mul returns f * other.
func (f *Frame) Mul(other any) *Frame { return f.binary("Mul", expr.OpMul, other) }

// Div returns f / other.
func (f *Frame) Div(other any) *Frame { return f.binary("Div", expr.OpDiv, other) }

// Mod returns f % other.
func (f *Frame) Mod(other any) *Frame { return f.binary("Mod", expr.OpMod, other) }

// Pow returns f ^ other.
func (f *Frame) Pow(other any) *Frame { return f.binary("Pow", expr.OpPow, other) }

// IntDiv returns the integer quotient of f and other.
func (f *Frame) IntDiv(other any) *Frame { return f.binary("IntDiv", expr.OpIntDiv, other) }

// Lt returns f < other.
func (f *Frame) Lt(other any) *Frame { return f.binary("Lt", expr.OpLt, other) }

// Le returns f <= other.
func (f *Frame) Le(other any) *Frame { return f.binary("Le", expr.OpLe, other) }

// Gt returns f > other.
func (f *Frame) Gt(other any) *Frame { return f.binary("Gt", expr.OpGt, other) }

// Ge returns f >= other.
func (f *Frame) Ge(other any) *Frame { return f.binary("Ge", expr.OpGe, other) }

// Eq returns f == other.
func (f *Frame) Eq(other any) *Frame { return f.binary("Eq", expr.OpEq, other) }

// Ne returns f != other.
func (f *Frame) Ne(other any) *Frame { return f.binary("Ne", expr.OpNe, other) }

// And returns the element-wise logical and.
func (f *Frame) And(other any) *Frame { return f.binary("And", expr.OpAnd, other) }

// Or returns the element-wise logical or.
func (f *Frame) Or(other any) *Frame { return f.binary("Or", expr.OpOr, other) }

// Unary operations.

func (f *Frame) unary(name, op string) *Frame {
	return f.st.sess.compose(name, op, f)
}

// Not returns the element-wise logical negation.
func (f *Frame) Not() *Frame { return f.unary("Not", expr.OpNot) }

// Neg returns -f.
func (f *Frame) Neg() *Frame { return f.st.sess.compose("Neg", expr.OpSub, 0, f) }

func (f *Frame) Abs() *Frame       { return f.unary("Abs", expr.OpAbs) }
func (f *Frame) Sqrt() *Frame      { return f.unary("Sqrt", expr.OpSqrt) }
func (f *Frame) Log() *Frame       { return f.unary("Log", expr.OpLog) }
func (f *Frame) Exp() *Frame       { return f.unary("Exp", expr.OpExp) }
func (f *Frame) Floor() *Frame     { return f.unary("Floor", expr.OpFloor) }
func (f *Frame) Ceiling() *Frame   { return f.unary("Ceiling", expr.OpCeiling) }
func (f *Frame) IsNA() *Frame      { return f.unary("IsNA", expr.OpIsNA) }
func (f *Frame) AsFactor() *Frame  { return f.unary("AsFactor", expr.OpAsFactor) }
func (f *Frame) AsNumeric() *Frame { return f.unary("AsNumeric", expr.OpAsNumeric) }
func (f *Frame) Unique() *Frame    { return f.unary("Unique", expr.OpUnique) }

// Reductions. Each yields a 1x1 frame; read it with ScalarValue or Float.

func (f *Frame) Sum() *Frame  { return f.unary("Sum", expr.OpSum) }
func (f *Frame) Mean() *Frame { return f.unary("Mean", expr.OpMean) }
func (f *Frame) Min() *Frame  { return f.unary("Min", expr.OpMin) }
func (f *Frame) Max() *Frame  { return f.unary("Max", expr.OpMax) }
func (f *Frame) Sd() *Frame   { return f.unary("Sd", expr.OpSdev) }
func (f *Frame) Nrow() *Frame { return f.unary("Nrow", expr.OpNrow) }
func (f *Frame) Ncol() *Frame { return f.unary("Ncol", expr.OpNcol) }

// Selection.

// Select keeps the columns picked by sel, in selector order. Names are
// checked locally when the frame's columns are known; on a pending frame
// they are sent as-is and the evaluator checks them.
func (f *Frame) Select(sel Selector) *Frame {
	s := f.st.sess
	if err := f.check("Select"); err != nil {
		return s.failed(err)
	}
	var cols expr.Operand
	if f.st.materialized {
		idx, err := Resolve("Select", sel, f.st.cols)
		if err != nil {
			return s.failed(err)
		}
		cols = expr.Indices(idx)
	} else {
		var err error
		if cols, err = unresolvedOperand("Select", sel); err != nil {
			return s.failed(err)
		}
	}
	return s.compose("Select", expr.OpCols, f, cols)
}

// Column is Select of a single column by name.
func (f *Frame) Column(name string) *Frame {
	return f.Select(ByName(name))
}

// Filter keeps the rows where mask, a single boolean column, is true.
func (f *Frame) Filter(mask *Frame) *Frame {
	return f.st.sess.compose("Filter", expr.OpRows, f, mask)
}

// Head keeps the first n rows.
func (f *Frame) Head(n int64) *Frame {
	if n < 0 {
		return f.st.sess.failed(errors.NewInvalidInputError("Head", "row count must be non-negative"))
	}
	return f.st.sess.compose("Head", expr.OpRows, f, expr.Span{Start: 0, Count: n})
}

// Cbind appends the columns of others to f.
func (f *Frame) Cbind(others ...*Frame) *Frame {
	return f.st.sess.compose("Cbind", expr.OpCbind, framesWith(f, others)...)
}

// Rbind appends the rows of others to f.
func (f *Frame) Rbind(others ...*Frame) *Frame {
	return f.st.sess.compose("Rbind", expr.OpRbind, framesWith(f, others)...)
}

func framesWith(first *Frame, rest []*Frame) []any {
	args := make([]any, 0, len(rest)+1)
	args = append(args, first)
	for _, r := range rest {
		args = append(args, r)
	}
	return args
}

// GroupBy starts a group-by accumulator over f. See NewGroupBy.
func (f *Frame) GroupBy(ctx context.Context, by Selector, orderBy Selector) (*GroupBy, error) {
	return NewGroupBy(ctx, f, by, orderBy)
}
