package expr_test

import (
	"math"
	"testing"

	"github.com/paveg/rapids/internal/expr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_Serialize(t *testing.T) {
	tests := []struct {
		name     string
		node     *expr.Node
		expected string
	}{
		{
			name:     "binary on frames",
			node:     expr.New(expr.OpAdd, expr.Key("frameA"), expr.Key("frameB")),
			expected: "(+ frameA frameB)",
		},
		{
			name:     "integer and float literals",
			node:     expr.New(expr.OpMul, expr.Int(3), expr.Num(2.5)),
			expected: "(* 3 2.5)",
		},
		{
			name:     "boolean and NaN sentinels",
			node:     expr.New("h2o.which", expr.Bool(true), expr.Bool(false), expr.Num(math.NaN())),
			expected: "(h2o.which TRUE FALSE NaN)",
		},
		{
			name:     "quoted strings with escapes",
			node:     expr.New("setTimeZone", expr.Str(`Europe/"Paris"\x`)),
			expected: `(setTimeZone "Europe/\"Paris\"\\x")`,
		},
		{
			name:     "lists and none",
			node:     expr.New(expr.OpGroupBy, expr.Key("fr"), expr.Indices([]int{0}), expr.None, expr.Symbol("sum"), expr.Int(1), expr.Symbol("all")),
			expected: "(GB fr [0] [] sum 1 all)",
		},
		{
			name:     "string list",
			node:     expr.New("colnames=", expr.Key("fr"), expr.Strs{"a", "b"}),
			expected: `(colnames= fr ["a" "b"])`,
		},
		{
			name:     "row span",
			node:     expr.New(expr.OpRows, expr.Key("fr"), expr.Span{Start: 0, Count: 10}),
			expected: "(rows fr [0:10])",
		},
		{
			name:     "no operands",
			node:     expr.New(expr.OpStoreSize),
			expected: "(store_size)",
		},
		{
			name:     "nil operand renders as none",
			node:     expr.New("f", nil),
			expected: "(f [])",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.node.Serialize())
			assert.Equal(t, tt.expected, tt.node.String())
		})
	}
}

func TestNode_Nested(t *testing.T) {
	// (frameA + 3) * frameB
	inner := expr.New(expr.OpAdd, expr.Key("frameA"), expr.Int(3))
	outer := expr.New(expr.OpMul, inner, expr.Key("frameB"))

	assert.Equal(t, "(* (+ frameA 3) frameB)", outer.Serialize())
	// serialization is pure
	assert.Equal(t, outer.Serialize(), outer.Serialize())
}

func TestNode_StructuralEquality(t *testing.T) {
	build := func() *expr.Node {
		return expr.New(expr.OpMul,
			expr.New(expr.OpAdd, expr.Key("frameA"), expr.Int(3)),
			expr.Key("frameB"))
	}
	a, b := build(), build()

	require.NotSame(t, a, b)
	assert.Equal(t, a.Serialize(), b.Serialize())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	c := expr.New(expr.OpMul, expr.New(expr.OpAdd, expr.Key("frameA"), expr.Int(4)), expr.Key("frameB"))
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestNode_Immutable(t *testing.T) {
	operands := []expr.Operand{expr.Key("a"), expr.Int(1)}
	n := expr.New(expr.OpAdd, operands...)

	operands[1] = expr.Int(99)
	assert.Equal(t, "(+ a 1)", n.Serialize())

	got := n.Operands()
	got[0] = expr.Key("z")
	assert.Equal(t, "(+ a 1)", n.Serialize())
	assert.Equal(t, expr.OpAdd, n.Op())
}

func TestComma(t *testing.T) {
	n := expr.Comma(
		expr.New(expr.OpGlobalPut, expr.Str("dest"), expr.Key("tmp_1")),
		expr.New(expr.OpRemoveFrame, expr.Key("tmp_1")),
	)
	assert.Equal(t, `(, (gput "dest" tmp_1) (removeframe tmp_1))`, n.Serialize())
}

func TestLit(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"nil", nil, "[]"},
		{"int", 7, "7"},
		{"int64", int64(-3), "-3"},
		{"float", 0.25, "0.25"},
		{"whole float", 2.0, "2"},
		{"string", "abc", `"abc"`},
		{"bool", true, "TRUE"},
		{"int slice", []int{1, 2}, "[1 2]"},
		{"string slice", []string{"x"}, `["x"]`},
		{"infinity", math.Inf(-1), "-Inf"},
		{"operand passthrough", expr.Key("k"), "k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := expr.Lit(tt.value)
			require.NoError(t, err)
			assert.Equal(t, "(f "+tt.expected+")", expr.New("f", op).Serialize())
		})
	}

	t.Run("unsupported type", func(t *testing.T) {
		_, err := expr.Lit(struct{}{})
		assert.Error(t, err)
	})
}

func TestNode_RefReadsKeyAtRender(t *testing.T) {
	key := "tmp1"
	n := expr.New(expr.OpMul, expr.Ref(func() string { return key }), expr.Int(2))
	assert.Equal(t, "(* tmp1 2)", n.Serialize())

	key = "named"
	assert.Equal(t, "(* named 2)", n.Serialize())
}
