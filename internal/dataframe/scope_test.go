package dataframe_test

import (
	"context"
	"errors"
	"testing"

	"github.com/paveg/rapids/internal/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReleaser struct {
	name  string
	order *[]string
	err   error
}

func (r *recordingReleaser) Release(context.Context) error {
	*r.order = append(*r.order, r.name)
	return r.err
}

func TestScope(t *testing.T) {
	ctx := context.Background()

	t.Run("releases in reverse order", func(t *testing.T) {
		var order []string
		scope := dataframe.NewScope()
		scope.Track(&recordingReleaser{name: "first", order: &order})
		scope.Track(&recordingReleaser{name: "second", order: &order})
		scope.Track(nil)
		assert.Equal(t, 2, scope.Count())

		require.NoError(t, scope.ReleaseAll(ctx))
		assert.Equal(t, []string{"second", "first"}, order)
		assert.Zero(t, scope.Count())
	})

	t.Run("collects every error", func(t *testing.T) {
		var order []string
		scope := dataframe.NewScope()
		scope.Track(&recordingReleaser{name: "a", order: &order, err: errors.New("a failed")})
		scope.Track(&recordingReleaser{name: "b", order: &order})
		scope.Track(&recordingReleaser{name: "c", order: &order, err: errors.New("c failed")})

		err := scope.ReleaseAll(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a failed")
		assert.Contains(t, err.Error(), "c failed")
		assert.Len(t, order, 3)
	})

	t.Run("skips handles released by the caller", func(t *testing.T) {
		cluster, _, fr := setup(t)
		scope := dataframe.NewScope()
		f := scope.Frame(fr.Add(1))
		require.NoError(t, f.Materialize(ctx))
		require.NoError(t, f.Release(ctx))

		require.NoError(t, scope.ReleaseAll(ctx))
		assert.Len(t, cluster.Deleted(), 1)
	})

	t.Run("tracks group-by accumulators", func(t *testing.T) {
		cluster, _, fr := setup(t)
		scope := dataframe.NewScope()
		g, err := fr.GroupBy(ctx, dataframe.ByIndex(0), nil)
		require.NoError(t, err)
		scope.Track(g)
		require.NoError(t, g.Sum(dataframe.ByIndex(1), dataframe.NAAll))
		res, err := g.Frame(ctx)
		require.NoError(t, err)
		scope.Track(res)

		require.NoError(t, scope.ReleaseAll(ctx))
		assert.Equal(t, []string{res.Key()}, cluster.Deleted())
		assert.Equal(t, 1, fr.RefCount())
	})
}
