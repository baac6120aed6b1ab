package dataframe

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/paveg/rapids/internal/errors"
	"github.com/paveg/rapids/internal/expr"
	"github.com/paveg/rapids/internal/remote"
)

// frameState is shared by every handle aliasing the same frame.
//
// A frame is pending (node set, key empty) or materialized (key set, node
// nil). Once the count reaches zero the state is released for good.
type frameState struct {
	sess *Session

	key  string
	node *expr.Node
	// deps are the materialized frames whose keys appear in node. They are
	// retained until this frame no longer needs them.
	deps []*frameState

	rows         int64
	cols         []string
	materialized bool
	keep         bool

	refs     int
	released bool
	// removed is set when the key was deleted through Session.Remove.
	removed bool

	// err is a construction failure carried to the first terminal call.
	err error
}

// Frame is a handle to tabular data on the cluster, computed or not.
//
// Operations such as Add or Select build a new pending Frame without any
// network traffic. RowCount, ColumnNames, ScalarValue, Show and Materialize
// send the accumulated expression as one request.
//
// Each handle owns one reference. Copy makes another handle to the same
// frame; Release gives the reference back. When the last reference goes the
// remote frame is deleted unless it was kept.
type Frame struct {
	st       *frameState
	released bool
}

func (s *Session) pending(node *expr.Node, deps []*frameState) *Frame {
	st := &frameState{sess: s, node: node, refs: 1}
	seen := make(map[*frameState]struct{}, len(deps))
	for _, d := range deps {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		d.refs++
		st.deps = append(st.deps, d)
	}
	return &Frame{st: st}
}

func (s *Session) failed(err error) *Frame {
	return &Frame{st: &frameState{sess: s, err: err, refs: 1}}
}

// compose builds a pending frame applying op to args, each a *Frame or a
// literal accepted by expr.Lit.
func (s *Session) compose(name, op string, args ...any) *Frame {
	operands := make([]expr.Operand, 0, len(args))
	var deps []*frameState
	for _, a := range args {
		o, d, err := operandOf(name, a)
		if err != nil {
			return s.failed(err)
		}
		operands = append(operands, o)
		deps = append(deps, d...)
	}
	return s.pending(expr.New(op, operands...), deps)
}

func operandOf(name string, v any) (expr.Operand, []*frameState, error) {
	if f, ok := v.(*Frame); ok {
		if f == nil {
			return nil, nil, errors.NewInvalidInputError(name, "frame operand is nil")
		}
		return f.operand(name)
	}
	o, err := expr.Lit(v)
	if err != nil {
		return nil, nil, &errors.FrameError{Op: name, Kind: errors.ErrInvalidInput, Cause: err}
	}
	return o, nil, nil
}

// operand renders the frame for use inside another expression: its key once
// materialized, otherwise its whole pending tree.
func (f *Frame) operand(name string) (expr.Operand, []*frameState, error) {
	if err := f.check(name); err != nil {
		return nil, nil, err
	}
	st := f.st
	if st.err != nil {
		return nil, nil, st.err
	}
	if st.key != "" {
		return expr.Ref(st.remoteKey), []*frameState{st}, nil
	}
	return st.node, st.deps, nil
}

// remoteKey is read when an expression referencing the frame is rendered,
// so dependents follow Assign.
func (st *frameState) remoteKey() string {
	return st.key
}

func (f *Frame) check(op string) error {
	if f.st.removed && !f.released {
		return errors.NewRemovedError(op, f.st.key)
	}
	if f.released || f.st.released {
		return errors.NewReleasedError(op)
	}
	return nil
}

// Err returns the construction error of this frame, if any.
func (f *Frame) Err() error {
	return f.st.err
}

// Key returns the remote identifier, or "" while the frame is pending.
func (f *Frame) Key() string {
	return f.st.key
}

// IsMaterialized reports whether the frame has been evaluated.
func (f *Frame) IsMaterialized() bool {
	return f.st.materialized
}

// IsReleased reports whether this handle has been released.
func (f *Frame) IsReleased() bool {
	return f.released
}

// Kept reports whether the frame survives its last release.
func (f *Frame) Kept() bool {
	return f.st.keep
}

// RefCount returns the number of live references to the frame, including
// those held by pending frames built on top of it.
func (f *Frame) RefCount() int {
	return f.st.refs
}

// Expression returns the pending expression text, or "" once materialized.
func (f *Frame) Expression() string {
	if f.st.node == nil {
		return ""
	}
	return f.st.node.Serialize()
}

// Keep pins the frame so that releasing its last reference does not delete
// it remotely. It has no effect through a released handle.
func (f *Frame) Keep() *Frame {
	if f.check("Keep") != nil {
		return f
	}
	f.st.keep = true
	return f
}

// Copy returns a new handle to the same frame and bumps the shared count.
func (f *Frame) Copy() *Frame {
	if err := f.check("Copy"); err != nil {
		return f.st.sess.failed(err)
	}
	f.st.refs++
	return &Frame{st: f.st}
}

// Materialize evaluates the pending expression. Calling it again, through
// any handle of the same frame, does not resubmit.
func (f *Frame) Materialize(ctx context.Context) error {
	if err := f.check("Materialize"); err != nil {
		return err
	}
	return f.st.materialize(ctx)
}

func (st *frameState) materialize(ctx context.Context) error {
	if st.materialized {
		return nil
	}
	if st.err != nil {
		return st.err
	}
	s := st.sess

	// The key is bound before describing so that a failed describe is
	// retried without resubmitting.
	if st.key == "" {
		if st.node == nil {
			return errors.NewInvalidInputError("Materialize", "frame has neither key nor expression")
		}
		for _, d := range st.deps {
			if d.removed {
				return errors.NewRemovedError("Materialize", d.key)
			}
		}
		key, err := s.newKey()
		if err != nil {
			return err
		}
		res, err := s.submit(ctx, expr.New(expr.OpTmpAssign, expr.Symbol(key), st.node))
		if err != nil {
			return err
		}
		if res.Key != "" {
			key = res.Key
		}
		st.key = key
		st.node = nil
		s.track(st)
		if err := st.dropDeps(ctx); err != nil {
			s.logger.Warn("releasing operands after materialize", slog.String("key", key), slog.Any("error", err))
		}
	}

	desc, err := s.describe(ctx, st.key)
	if err != nil {
		return err
	}
	st.rows = desc.Rows
	st.cols = append([]string(nil), desc.Columns...)
	st.materialized = true
	return nil
}

// Release gives back this handle's reference. The call that drops the
// count to zero deletes the remote frame, unless it is kept or was never
// evaluated. Releasing the same handle twice returns ErrAlreadyReleased
// and has no other effect.
func (f *Frame) Release(ctx context.Context) error {
	if f.released {
		return errors.NewValidationError("Release", f.st.key, errors.ErrAlreadyReleased, "")
	}
	f.released = true
	return f.st.drop(ctx)
}

func (st *frameState) drop(ctx context.Context) error {
	if st.released {
		return nil
	}
	st.refs--
	if st.refs > 0 {
		return nil
	}
	st.released = true
	st.node = nil
	if st.key != "" {
		st.sess.untrack(st, st.key)
	}

	var result *multierror.Error
	if err := st.dropDeps(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if st.key != "" && !st.keep {
		if err := st.sess.deleteFrame(ctx, st.key); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (st *frameState) dropDeps(ctx context.Context) error {
	deps := st.deps
	st.deps = nil
	var result *multierror.Error
	for _, d := range deps {
		if err := d.drop(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// RowCount returns the number of rows, evaluating the frame if needed.
func (f *Frame) RowCount(ctx context.Context) (int64, error) {
	if err := f.ensure(ctx, "RowCount"); err != nil {
		return 0, err
	}
	return f.st.rows, nil
}

// ColumnNames returns the ordered column names, evaluating the frame if
// needed.
func (f *Frame) ColumnNames(ctx context.Context) ([]string, error) {
	if err := f.ensure(ctx, "ColumnNames"); err != nil {
		return nil, err
	}
	return append([]string(nil), f.st.cols...), nil
}

// ColumnCount returns the number of columns, evaluating the frame if needed.
func (f *Frame) ColumnCount(ctx context.Context) (int, error) {
	if err := f.ensure(ctx, "ColumnCount"); err != nil {
		return 0, err
	}
	return len(f.st.cols), nil
}

// IndexOf resolves a column name to its position.
func (f *Frame) IndexOf(ctx context.Context, name string) (int, error) {
	if err := f.ensure(ctx, "IndexOf"); err != nil {
		return -1, err
	}
	idx, err := ByName(name).appendIndices("IndexOf", f.st.cols, nil)
	if err != nil {
		return -1, err
	}
	return idx[0], nil
}

// Resolve turns sel into column positions of this frame.
func (f *Frame) Resolve(ctx context.Context, sel Selector) ([]int, error) {
	if err := f.ensure(ctx, "Resolve"); err != nil {
		return nil, err
	}
	return Resolve("Resolve", sel, f.st.cols)
}

func (f *Frame) ensure(ctx context.Context, op string) error {
	if err := f.check(op); err != nil {
		return err
	}
	return f.st.materialize(ctx)
}

// ScalarValue returns the single cell of a 1x1 frame.
func (f *Frame) ScalarValue(ctx context.Context) (remote.Value, error) {
	if err := f.ensure(ctx, "ScalarValue"); err != nil {
		return remote.Value{}, err
	}
	if f.st.rows != 1 || len(f.st.cols) != 1 {
		return remote.Value{}, errors.NewValidationError("ScalarValue", "", errors.ErrNotScalar,
			fmt.Sprintf("frame is %dx%d", f.st.rows, len(f.st.cols)))
	}
	res, err := f.st.sess.submit(ctx, expr.New(expr.OpFlatten, expr.Key(f.st.key)))
	if err != nil {
		return remote.Value{}, err
	}
	return res.Scalar, nil
}

// Float is ScalarValue converted to a number.
func (f *Frame) Float(ctx context.Context) (float64, error) {
	v, err := f.ScalarValue(ctx)
	if err != nil {
		return 0, err
	}
	return v.Float()
}

// Show evaluates the frame and writes a short description of it to w.
func (f *Frame) Show(ctx context.Context, w io.Writer) error {
	if err := f.ensure(ctx, "Show"); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Frame %s: %d rows x %d cols\n  %s\n",
		f.st.key, f.st.rows, len(f.st.cols), strings.Join(f.st.cols, ", "))
	return err
}

// String describes the handle without contacting the cluster.
func (f *Frame) String() string {
	switch {
	case f.released:
		return "Frame(released)"
	case f.st.err != nil:
		return fmt.Sprintf("Frame(error: %v)", f.st.err)
	case f.st.materialized:
		return fmt.Sprintf("Frame(%s, %dx%d)", f.st.key, f.st.rows, len(f.st.cols))
	case f.st.key != "":
		return fmt.Sprintf("Frame(%s)", f.st.key)
	default:
		return fmt.Sprintf("Frame(pending %s)", f.st.node.Serialize())
	}
}

// Assign evaluates the frame and stores it under key, which from then on
// identifies the frame. The frame becomes kept.
func (f *Frame) Assign(ctx context.Context, key string) error {
	if key == "" {
		return errors.NewInvalidInputError("Assign", "key must not be empty")
	}
	if err := f.ensure(ctx, "Assign"); err != nil {
		return err
	}
	old := f.st.key
	if old == key {
		f.st.keep = true
		return nil
	}
	_, err := f.st.sess.submit(ctx, expr.Comma(
		expr.New(expr.OpGlobalPut, expr.Str(key), expr.Key(old)),
		expr.New(expr.OpRemoveFrame, expr.Key(old)),
	))
	if err != nil {
		return err
	}
	f.st.sess.untrack(f.st, old)
	f.st.key = key
	f.st.sess.track(f.st)
	f.st.keep = true
	return nil
}
