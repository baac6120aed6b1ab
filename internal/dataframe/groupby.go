package dataframe

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/paveg/rapids/internal/errors"
	"github.com/paveg/rapids/internal/expr"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// AggOp is an aggregate function understood by the group-by evaluator.
type AggOp string

const (
	AggMin   AggOp = "min"
	AggMax   AggOp = "max"
	AggMean  AggOp = "mean"
	AggCount AggOp = "nrow" // row count; the column argument is ignored
	AggSum   AggOp = "sum"
	AggSd    AggOp = "sdev"
	AggVar   AggOp = "var"
	AggSS    AggOp = "sumSquares"
	AggMode  AggOp = "mode"
)

func (op AggOp) valid() bool {
	switch op {
	case AggMin, AggMax, AggMean, AggCount, AggSum, AggSd, AggVar, AggSS, AggMode:
		return true
	}
	return false
}

// NAPolicy selects how missing values enter an aggregate. The evaluator
// defines the exact arithmetic; the client only passes the token along.
type NAPolicy string

const (
	NAAll    NAPolicy = "all"    // include NAs
	NAIgnore NAPolicy = "ignore" // skip NAs in the aggregate but count them
	NARemove NAPolicy = "rm"     // exclude NAs
)

func (na NAPolicy) valid() bool {
	return na == NAAll || na == NAIgnore || na == NARemove
}

// Aggregate is one requested (op, column, NA policy) triple.
type Aggregate struct {
	Op     AggOp
	Column int
	NA     NAPolicy
}

// GroupBy batches aggregate requests over a frame into a single grouped
// query. Adding or removing aggregates never contacts the cluster; Frame
// evaluates everything in one request and caches the result until the next
// change.
type GroupBy struct {
	src     *Frame
	names   []string
	by      []int
	orderBy int // position within by, or -1
	aggs    *orderedmap.OrderedMap[string, Aggregate]

	result   *Frame
	stale    []*Frame
	computed bool
	closed   bool
}

// NewGroupBy creates an accumulator grouping fr by the columns in by.
// orderBy may be nil; otherwise it must pick one of the grouping columns.
// fr is evaluated if needed to learn its column names. The accumulator
// holds its own reference to fr until Release.
func NewGroupBy(ctx context.Context, fr *Frame, by Selector, orderBy Selector) (*GroupBy, error) {
	names, err := fr.ColumnNames(ctx)
	if err != nil {
		return nil, err
	}
	byIdx, err := Resolve("GroupBy", by, names)
	if err != nil {
		return nil, err
	}
	if len(byIdx) == 0 {
		return nil, errors.NewInvalidInputError("GroupBy", "at least one group by column is required")
	}

	order := -1
	if orderBy != nil {
		if order, err = orderPosition(orderBy, byIdx, names); err != nil {
			return nil, err
		}
	}

	return &GroupBy{
		src:     fr.Copy(),
		names:   names,
		by:      byIdx,
		orderBy: order,
		aggs:    orderedmap.New[string, Aggregate](),
	}, nil
}

func orderPosition(orderBy Selector, by []int, names []string) (int, error) {
	idx, err := Resolve("GroupBy", orderBy, names)
	if err != nil {
		return -1, &errors.FrameError{Op: "GroupBy", Kind: errors.ErrInvalidOrderBy, Cause: err}
	}
	if len(idx) != 1 {
		return -1, errors.NewValidationError("GroupBy", "", errors.ErrInvalidOrderBy,
			fmt.Sprintf("expected one column, got %d", len(idx)))
	}
	for pos, b := range by {
		if b == idx[0] {
			return pos, nil
		}
	}
	return -1, errors.NewValidationError("GroupBy", names[idx[0]], errors.ErrInvalidOrderBy, "")
}

// By returns the grouping column positions.
func (g *GroupBy) By() []int {
	return append([]int(nil), g.by...)
}

// OrderBy returns the ordering position within By, or -1.
func (g *GroupBy) OrderBy() int {
	return g.orderBy
}

// Add requests op over the columns picked by col. A nil col means every
// column that is not a grouping column. Each aggregate is named
// "<op>_<column>"; adding an existing name replaces it in place.
func (g *GroupBy) Add(op AggOp, col Selector, na NAPolicy) error {
	if g.closed {
		return errors.NewReleasedError("GroupBy")
	}
	if !op.valid() {
		return errors.NewInvalidInputError("GroupBy", fmt.Sprintf("unknown aggregate %q", op))
	}
	if !na.valid() {
		return errors.NewValidationError("GroupBy", string(op), errors.ErrInvalidNAPolicy,
			fmt.Sprintf("got %q, want one of all, ignore, rm", na))
	}

	if op == AggCount {
		g.aggs.Set(fmt.Sprintf("%s_%s", op, g.names[0]), Aggregate{Op: op, Column: 0, NA: na})
		g.invalidate()
		return nil
	}

	var cols []int
	switch {
	case col == nil:
		for i := range g.names {
			if !g.isGrouped(i) {
				cols = append(cols, i)
			}
		}
	default:
		var err error
		if cols, err = Resolve("GroupBy", col, g.names); err != nil {
			return err
		}
	}

	for _, c := range cols {
		g.aggs.Set(fmt.Sprintf("%s_%s", op, g.names[c]), Aggregate{Op: op, Column: c, NA: na})
	}
	g.invalidate()
	return nil
}

func (g *GroupBy) isGrouped(col int) bool {
	for _, b := range g.by {
		if b == col {
			return true
		}
	}
	return false
}

func (g *GroupBy) Min(col Selector, na NAPolicy) error  { return g.Add(AggMin, col, na) }
func (g *GroupBy) Max(col Selector, na NAPolicy) error  { return g.Add(AggMax, col, na) }
func (g *GroupBy) Mean(col Selector, na NAPolicy) error { return g.Add(AggMean, col, na) }
func (g *GroupBy) Sum(col Selector, na NAPolicy) error  { return g.Add(AggSum, col, na) }
func (g *GroupBy) Sd(col Selector, na NAPolicy) error   { return g.Add(AggSd, col, na) }
func (g *GroupBy) Var(col Selector, na NAPolicy) error  { return g.Add(AggVar, col, na) }
func (g *GroupBy) SS(col Selector, na NAPolicy) error   { return g.Add(AggSS, col, na) }
func (g *GroupBy) Mode(col Selector, na NAPolicy) error { return g.Add(AggMode, col, na) }

// Count requests the row count of each group. It is named after the
// first column of the source, e.g. "nrow_a".
func (g *GroupBy) Count(na NAPolicy) error { return g.Add(AggCount, nil, na) }

// Remove drops the named aggregate.
func (g *GroupBy) Remove(name string) error {
	if _, ok := g.aggs.Delete(name); !ok {
		return errors.NewValidationError("GroupBy", name, errors.ErrNoSuchAggregate, "")
	}
	g.invalidate()
	return nil
}

// RemoveMatching drops every aggregate whose name contains substr and
// returns how many were dropped.
func (g *GroupBy) RemoveMatching(substr string) int {
	var victims []string
	for pair := g.aggs.Oldest(); pair != nil; pair = pair.Next() {
		if strings.Contains(pair.Key, substr) {
			victims = append(victims, pair.Key)
		}
	}
	for _, name := range victims {
		g.aggs.Delete(name)
	}
	if len(victims) > 0 {
		g.invalidate()
	}
	return len(victims)
}

// RemoveAll drops every aggregate.
func (g *GroupBy) RemoveAll() {
	g.aggs = orderedmap.New[string, Aggregate]()
	g.invalidate()
}

// Aggregates returns the aggregate names in insertion order.
func (g *GroupBy) Aggregates() []string {
	names := make([]string, 0, g.aggs.Len())
	for pair := g.aggs.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Aggregate returns the named aggregate.
func (g *GroupBy) Aggregate(name string) (Aggregate, bool) {
	return g.aggs.Get(name)
}

func (g *GroupBy) invalidate() {
	g.computed = false
	if g.result != nil {
		g.stale = append(g.stale, g.result)
		g.result = nil
	}
}

// Expression returns the grouped query that Frame would submit.
func (g *GroupBy) Expression() (*expr.Node, error) {
	src, _, err := g.src.operand("GroupBy")
	if err != nil {
		return nil, err
	}
	return g.node(src), nil
}

func (g *GroupBy) node(src expr.Operand) *expr.Node {
	operands := make([]expr.Operand, 0, 3+3*g.aggs.Len())
	operands = append(operands, src, expr.Indices(g.by))
	if g.orderBy >= 0 {
		operands = append(operands, expr.Int(g.orderBy))
	} else {
		operands = append(operands, expr.None)
	}
	for pair := g.aggs.Oldest(); pair != nil; pair = pair.Next() {
		a := pair.Value
		operands = append(operands, expr.Symbol(a.Op), expr.Int(a.Column), expr.Symbol(a.NA))
	}
	return expr.New(expr.OpGroupBy, operands...)
}

// Frame evaluates the grouped query, once per change, and returns a new
// handle to the result. The caller releases the returned handle; the
// accumulator keeps its own until the next change or Release.
func (g *GroupBy) Frame(ctx context.Context) (*Frame, error) {
	if g.closed {
		return nil, errors.NewReleasedError("GroupBy")
	}
	if err := g.releaseStale(ctx); err != nil {
		return nil, err
	}
	if !g.computed {
		if g.aggs.Len() == 0 {
			return nil, errors.NewInvalidInputError("GroupBy", "no aggregates requested")
		}
		src, deps, err := g.src.operand("GroupBy")
		if err != nil {
			return nil, err
		}
		res := g.src.st.sess.pending(g.node(src), deps)
		if err := res.Materialize(ctx); err != nil {
			_ = res.Release(ctx)
			return nil, err
		}
		g.result = res
		g.computed = true
	}
	return g.result.Copy(), nil
}

func (g *GroupBy) releaseStale(ctx context.Context) error {
	var result *multierror.Error
	for _, f := range g.stale {
		if err := f.Release(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	g.stale = nil
	return result.ErrorOrNil()
}

// Release gives back the cached result and the accumulator's reference to
// the source frame. Later calls do nothing.
func (g *GroupBy) Release(ctx context.Context) error {
	if g.closed {
		return nil
	}
	g.closed = true
	g.invalidate()
	var result *multierror.Error
	if err := g.releaseStale(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := g.src.Release(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// String summarizes the accumulator without contacting the cluster.
func (g *GroupBy) String() string {
	return fmt.Sprintf("GroupBy(frame=%s, by=%v, aggregates=%v)", g.src.Key(), g.by, g.Aggregates())
}
