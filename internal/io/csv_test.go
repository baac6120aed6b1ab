package io_test

import (
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/rapids/internal/io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVReader(t *testing.T) {
	mem := memory.NewGoAllocator()

	t.Run("infers column types", func(t *testing.T) {
		data := "name,age,score,active\nAlice,25,85.5,true\nBob,30,92.0,false\nCarol,35,78.5,TRUE\n"
		rec, err := io.NewCSVReader(strings.NewReader(data), io.DefaultCSVOptions(), mem).Read()
		require.NoError(t, err)
		defer rec.Release()

		assert.Equal(t, int64(3), rec.NumRows())
		require.Equal(t, int64(4), rec.NumCols())
		assert.Equal(t, arrow.STRING, rec.Column(0).DataType().ID())
		assert.Equal(t, arrow.INT64, rec.Column(1).DataType().ID())
		assert.Equal(t, arrow.FLOAT64, rec.Column(2).DataType().ID())
		assert.Equal(t, arrow.BOOL, rec.Column(3).DataType().ID())

		assert.Equal(t, "Alice", rec.Column(0).(*array.String).Value(0))
		assert.Equal(t, int64(30), rec.Column(1).(*array.Int64).Value(1))
		assert.InDelta(t, 78.5, rec.Column(2).(*array.Float64).Value(2), 1e-9)
		assert.True(t, rec.Column(3).(*array.Boolean).Value(2))
	})

	t.Run("missing values become nulls", func(t *testing.T) {
		data := "x,y\n1,a\nNA,\n3,c\n"
		rec, err := io.NewCSVReader(strings.NewReader(data), io.DefaultCSVOptions(), mem).Read()
		require.NoError(t, err)
		defer rec.Release()

		x := rec.Column(0).(*array.Int64)
		assert.True(t, x.IsNull(1))
		assert.Equal(t, int64(3), x.Value(2))
		assert.True(t, rec.Column(1).IsNull(1))
	})

	t.Run("short rows are padded with nulls", func(t *testing.T) {
		data := "a,b\n1,2\n3\n"
		rec, err := io.NewCSVReader(strings.NewReader(data), io.DefaultCSVOptions(), mem).Read()
		require.NoError(t, err)
		defer rec.Release()

		assert.True(t, rec.Column(1).IsNull(1))
	})

	t.Run("short rows stay numeric without NA strings", func(t *testing.T) {
		opts := io.DefaultCSVOptions()
		opts.NAStrings = nil
		rec, err := io.NewCSVReader(strings.NewReader("a,b\n1,2\n3\n4,5\n"), opts, mem).Read()
		require.NoError(t, err)
		defer rec.Release()

		require.Equal(t, arrow.INT64, rec.Column(1).DataType().ID())
		b := rec.Column(1).(*array.Int64)
		assert.True(t, b.IsNull(1))
		assert.Equal(t, int64(5), b.Value(2))
	})

	t.Run("header only", func(t *testing.T) {
		rec, err := io.NewCSVReader(strings.NewReader("a,b\n"), io.DefaultCSVOptions(), mem).Read()
		require.NoError(t, err)
		defer rec.Release()

		assert.Equal(t, int64(0), rec.NumRows())
		assert.Equal(t, "b", rec.ColumnName(1))
	})

	t.Run("no header", func(t *testing.T) {
		opts := io.DefaultCSVOptions()
		opts.Header = false
		rec, err := io.NewCSVReader(strings.NewReader("1,2\n3,4\n"), opts, mem).Read()
		require.NoError(t, err)
		defer rec.Release()

		assert.Equal(t, int64(2), rec.NumRows())
		assert.Equal(t, "C1", rec.ColumnName(0))
		assert.Equal(t, "C2", rec.ColumnName(1))
	})

	t.Run("custom delimiter", func(t *testing.T) {
		opts := io.DefaultCSVOptions()
		opts.Delimiter = ';'
		rec, err := io.NewCSVReader(strings.NewReader("a;b\n1.5;x\n"), opts, mem).Read()
		require.NoError(t, err)
		defer rec.Release()

		assert.Equal(t, arrow.FLOAT64, rec.Column(0).DataType().ID())
		assert.Equal(t, "x", rec.Column(1).(*array.String).Value(0))
	})

	t.Run("malformed input", func(t *testing.T) {
		_, err := io.NewCSVReader(strings.NewReader("a,b\n\"unterminated,1\n"), io.DefaultCSVOptions(), mem).Read()
		require.Error(t, err)
	})
}
