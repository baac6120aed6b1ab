package dataframe_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/paveg/rapids/internal/dataframe"
	rerrors "github.com/paveg/rapids/internal/errors"
	"github.com/paveg/rapids/internal/remote"
	"github.com/paveg/rapids/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*testutil.FakeCluster, *dataframe.Session, *dataframe.Frame) {
	t.Helper()
	cluster := testutil.NewFakeCluster().
		AddFrame("fr", testutil.Response{Rows: 3, Columns: []string{"a", "b", "c"}})
	sess := testutil.NewSession(t, cluster)
	fr, err := sess.GetFrame(context.Background(), "fr")
	require.NoError(t, err)
	return cluster, sess, fr
}

func TestGetFrame(t *testing.T) {
	ctx := context.Background()
	cluster, sess, fr := setup(t)

	assert.Equal(t, "fr", fr.Key())
	assert.True(t, fr.IsMaterialized())
	assert.True(t, fr.Kept())
	rows, err := fr.RowCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rows)
	assert.Empty(t, cluster.Submitted())

	require.NoError(t, fr.Release(ctx))
	assert.Empty(t, cluster.Deleted(), "kept frames are never deleted")
	assert.True(t, cluster.Has("fr"))

	_, err = sess.GetFrame(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, remote.ErrNotFound))
}

func TestOperationsAreLazy(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)

	res := fr.Add(3).Mul(fr).Sub(1).Abs()
	assert.False(t, res.IsMaterialized())
	assert.Empty(t, res.Key())
	assert.Equal(t, "(abs (- (* (+ fr 3) fr) 1))", res.Expression())
	assert.Zero(t, cluster.Calls(), "composing must not contact the cluster")

	_ = res.String()
	assert.Zero(t, cluster.Calls(), "String must not contact the cluster")

	require.NoError(t, res.Materialize(ctx))
	submitted := cluster.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, "(tmp= "+res.Key()+" (abs (- (* (+ fr 3) fr) 1)))", submitted[0])
	assert.Empty(t, res.Expression())
}

func TestMaterializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)

	res := fr.Add(1)
	alias := res.Copy()
	require.NoError(t, res.Materialize(ctx))
	require.NoError(t, res.Materialize(ctx))
	require.NoError(t, alias.Materialize(ctx))
	_, err := alias.ColumnNames(ctx)
	require.NoError(t, err)

	assert.Len(t, cluster.Submitted(), 1)
	assert.Equal(t, res.Key(), alias.Key())
}

func TestTerminalCallsShareOneSubmission(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)
	cluster.On("(> fr 0)", testutil.Response{Rows: 3, Columns: []string{"a", "b", "c"}})

	res := fr.Gt(0)
	idx, err := res.Resolve(ctx, dataframe.Names("b"))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, idx)

	i, err := res.IndexOf(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	n, err := res.ColumnCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Len(t, cluster.Submitted(), 1)
}

func TestReleaseDeletesOnce(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)

	res := fr.Add(1)
	require.NoError(t, res.Materialize(ctx))
	key := res.Key()
	other := res.Copy()
	assert.Equal(t, 2, res.RefCount())

	require.NoError(t, res.Release(ctx))
	assert.Empty(t, cluster.Deleted(), "another handle is still live")
	assert.Equal(t, 1, other.RefCount())

	require.NoError(t, other.Release(ctx))
	assert.Equal(t, []string{key}, cluster.Deleted())
	assert.False(t, cluster.Has(key))

	err := other.Release(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrAlreadyReleased))
	assert.Equal(t, []string{key}, cluster.Deleted(), "second release must not delete again")
}

func TestKeepNeverDeletes(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)

	res := fr.Add(1).Keep()
	require.NoError(t, res.Materialize(ctx))
	require.NoError(t, res.Release(ctx))

	assert.Empty(t, cluster.Deleted())
	assert.True(t, cluster.Has(res.Key()))
}

func TestReleasePendingFrameSendsNothing(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)

	res := fr.Add(1)
	require.NoError(t, res.Release(ctx))
	assert.Zero(t, cluster.Calls())
}

func TestUseAfterRelease(t *testing.T) {
	ctx := context.Background()
	_, _, fr := setup(t)

	res := fr.Add(1)
	require.NoError(t, res.Release(ctx))
	assert.True(t, res.IsReleased())

	_, err := res.RowCount(ctx)
	assert.True(t, errors.Is(err, rerrors.ErrUseAfterRelease))

	derived := res.Mul(2)
	assert.True(t, errors.Is(derived.Err(), rerrors.ErrUseAfterRelease))
	assert.False(t, res.Keep().Kept(), "released handles cannot be pinned")
	assert.Equal(t, "Frame(released)", res.String())
}

func TestOperandsOutliveTheirHandles(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)

	base := fr.Add(1)
	require.NoError(t, base.Materialize(ctx))
	baseKey := base.Key()

	res := base.Mul(2)
	require.NoError(t, base.Release(ctx))
	assert.Empty(t, cluster.Deleted(), "pending frame still references base")

	require.NoError(t, res.Materialize(ctx))
	assert.Contains(t, cluster.Submitted()[1], "(* "+baseKey+" 2)")
	assert.Equal(t, []string{baseKey}, cluster.Deleted(), "base goes once res no longer needs it")

	require.NoError(t, res.Release(ctx))
	assert.Equal(t, []string{baseKey, res.Key()}, cluster.Deleted())
}

func TestSelfReferenceRetainsOnce(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)

	base := fr.Add(1)
	require.NoError(t, base.Materialize(ctx))
	sq := base.Mul(base)
	assert.Equal(t, 2, base.RefCount())

	require.NoError(t, sq.Release(ctx))
	assert.Equal(t, 1, base.RefCount())
	require.NoError(t, base.Release(ctx))
	assert.Equal(t, []string{base.Key()}, cluster.Deleted())
}

func TestDeferredErrors(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)

	bad := fr.Select(dataframe.ByName("nope"))
	require.Error(t, bad.Err())
	assert.True(t, errors.Is(bad.Err(), rerrors.ErrNoSuchColumn))

	chained := bad.Add(1).Sum()
	_, err := chained.RowCount(ctx)
	assert.True(t, errors.Is(err, rerrors.ErrNoSuchColumn))
	assert.Contains(t, chained.String(), "error")

	lit := fr.Add(struct{}{})
	assert.True(t, errors.Is(lit.Err(), rerrors.ErrInvalidInput))

	assert.True(t, errors.Is(fr.Head(-1).Err(), rerrors.ErrInvalidInput))
	assert.Zero(t, cluster.Calls())
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	_, _, fr := setup(t)

	t.Run("materialized frames resolve names locally", func(t *testing.T) {
		sel := fr.Select(dataframe.Names("c", "a"))
		require.NoError(t, sel.Err())
		assert.Equal(t, "(cols fr [2 0])", sel.Expression())
	})

	t.Run("out of range index", func(t *testing.T) {
		sel := fr.Select(dataframe.ByIndex(5))
		assert.True(t, errors.Is(sel.Err(), rerrors.ErrColumnIndexOutOfRange))
	})

	t.Run("pending frames send names as is", func(t *testing.T) {
		sel := fr.Add(1).Select(dataframe.Names("a", "b"))
		require.NoError(t, sel.Err())
		assert.Equal(t, `(cols (+ fr 1) ["a" "b"])`, sel.Expression())
	})

	t.Run("pending frames reject mixed selectors", func(t *testing.T) {
		sel := fr.Add(1).Select(dataframe.BySeq{dataframe.ByName("a"), dataframe.ByIndex(1)})
		assert.True(t, errors.Is(sel.Err(), rerrors.ErrInvalidInput))
	})

	t.Run("column, filter and head", func(t *testing.T) {
		col := fr.Column("b")
		mask := col.Gt(1)
		assert.Equal(t, "(rows fr (> (cols fr [1]) 1))", fr.Filter(mask).Expression())
		assert.Equal(t, "(rows fr [0:10])", fr.Head(10).Expression())
		assert.Equal(t, "(cbind fr (cols fr [1]))", fr.Cbind(col).Expression())
		assert.Equal(t, "(rbind fr fr)", fr.Rbind(fr).Expression())
		require.NoError(t, col.Release(ctx))
		require.NoError(t, mask.Release(ctx))
	})
}

func TestUnaryAndReductions(t *testing.T) {
	_, _, fr := setup(t)

	cases := map[string]*dataframe.Frame{
		"(! fr)":           fr.Not(),
		"(- 0 fr)":         fr.Neg(),
		"(sqrt fr)":        fr.Sqrt(),
		"(is.na fr)":       fr.IsNA(),
		"(as.factor fr)":   fr.AsFactor(),
		"(sum fr)":         fr.Sum(),
		"(sd fr)":          fr.Sd(),
		"(nrow fr)":        fr.Nrow(),
		"(intDiv fr 2)":    fr.IntDiv(2),
		"(== fr \"x\")":    fr.Eq("x"),
		"(& fr TRUE)":      fr.And(true),
		"(^ fr 0.5)":       fr.Pow(0.5),
		"(unique fr)":      fr.Unique(),
		"(as.numeric fr)":  fr.AsNumeric(),
		"(ceiling fr)":     fr.Ceiling(),
		"(!= fr [])":       fr.Ne(nil),
		"(<= fr [1 2 3])":  fr.Le([]int{1, 2, 3}),
		"(| (< fr 1) fr)":  fr.Lt(1).Or(fr),
		"(% (/ fr 2) 3)":   fr.Div(2).Mod(3),
		"(log (exp fr))":   fr.Exp().Log(),
		"(floor (abs fr))": fr.Abs().Floor(),
	}
	for want, f := range cases {
		require.NoError(t, f.Err(), want)
		assert.Equal(t, want, f.Expression())
	}
}

func TestScalarValue(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)
	cluster.On("(sum ", testutil.Response{Rows: 1, Columns: []string{"sum"}, Scalar: remote.NumberValue(42)})

	v, err := fr.Column("a").Sum().Float(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 42.0, v, 1e-9)

	submitted := cluster.Submitted()
	require.Len(t, submitted, 2)
	assert.True(t, strings.HasPrefix(submitted[1], "(flatten "))

	_, err = fr.ScalarValue(ctx)
	assert.True(t, errors.Is(err, rerrors.ErrNotScalar))
}

func TestRemoteErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)
	cluster.On("(log ", testutil.Response{Error: "log of a categorical column"})

	res := fr.Log()
	err := res.Materialize(ctx)
	require.Error(t, err)
	var remoteErr *rerrors.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Contains(t, remoteErr.Expr, "(log fr)")
	assert.False(t, res.IsMaterialized())
}

func TestShow(t *testing.T) {
	ctx := context.Background()
	_, _, fr := setup(t)

	var buf bytes.Buffer
	require.NoError(t, fr.Show(ctx, &buf))
	assert.Contains(t, buf.String(), "3 rows x 3 cols")
	assert.Contains(t, buf.String(), "a, b, c")
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)

	res := fr.Add(1)
	require.NoError(t, res.Materialize(ctx))
	tmp := res.Key()

	require.NoError(t, res.Assign(ctx, "named"))
	assert.Equal(t, "named", res.Key())
	assert.True(t, res.Kept())
	assert.True(t, cluster.Has("named"))
	assert.False(t, cluster.Has(tmp))

	submitted := cluster.Submitted()
	assert.Equal(t, `(, (gput "named" `+tmp+`) (removeframe `+tmp+`))`, submitted[len(submitted)-1])

	require.NoError(t, res.Release(ctx))
	assert.Empty(t, cluster.Deleted())

	assert.True(t, errors.Is(fr.Assign(ctx, ""), rerrors.ErrInvalidInput))
}

func TestAssignIsSeenByDependents(t *testing.T) {
	ctx := context.Background()
	cluster, _, fr := setup(t)

	res := fr.Add(1)
	require.NoError(t, res.Materialize(ctx))
	tmp := res.Key()
	doubled := res.Mul(2)

	require.NoError(t, res.Assign(ctx, "named"))
	assert.Equal(t, "(* named 2)", doubled.Expression())

	require.NoError(t, doubled.Materialize(ctx))
	submitted := cluster.Submitted()
	last := submitted[len(submitted)-1]
	assert.Contains(t, last, "(* named 2)")
	assert.NotContains(t, last, tmp)
}
