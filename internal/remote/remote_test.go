package remote_test

import (
	"testing"

	"github.com/paveg/rapids/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	t.Run("number", func(t *testing.T) {
		v := remote.NumberValue(3.5)
		f, err := v.Float()
		require.NoError(t, err)
		assert.InDelta(t, 3.5, f, 1e-12)
		assert.Equal(t, "3.5", v.String())
	})

	t.Run("numeric string", func(t *testing.T) {
		f, err := remote.StringValue("42").Float()
		require.NoError(t, err)
		assert.InDelta(t, 42.0, f, 1e-12)
	})

	t.Run("non numeric string", func(t *testing.T) {
		v := remote.StringValue("UTC")
		_, err := v.Float()
		assert.Error(t, err)
		assert.Equal(t, "UTC", v.String())
	})

	t.Run("empty", func(t *testing.T) {
		var v remote.Value
		_, err := v.Float()
		assert.Error(t, err)
		assert.Empty(t, v.String())
	})
}
