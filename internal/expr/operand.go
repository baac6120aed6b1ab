package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Operand is one argument of a Node. The set of implementations is closed;
// each knows how to render itself in the cluster's prefix grammar.
type Operand interface {
	appendTo(sb *strings.Builder)
}

// Num is a floating point literal.
type Num float64

// Int is an integer literal.
type Int int64

// Str is a string literal. It renders double-quoted.
type Str string

// Bool is a boolean literal rendered as TRUE or FALSE.
type Bool bool

// Key references a materialized frame by its remote identifier.
type Key string

// Ref references a frame whose identifier is looked up each time the
// expression is rendered. Expressions built on a frame that is later
// renamed render the new identifier.
type Ref func() string

// Symbol is a bare token such as an aggregate name, an NA policy or an
// assignment target.
type Symbol string

// Nums is a bracketed list of numbers, e.g. column indices.
type Nums []float64

// Strs is a bracketed list of string literals.
type Strs []string

// Span is a row range rendered as [start:count].
type Span struct {
	Start int64
	Count int64
}

// None is the absent value. It renders as the empty list.
var None Operand = none{}

type none struct{}

func (n Num) appendTo(sb *strings.Builder) {
	sb.WriteString(formatFloat(float64(n)))
}

func (i Int) appendTo(sb *strings.Builder) {
	sb.WriteString(strconv.FormatInt(int64(i), 10))
}

func (s Str) appendTo(sb *strings.Builder) {
	writeQuoted(sb, string(s))
}

func (b Bool) appendTo(sb *strings.Builder) {
	if b {
		sb.WriteString("TRUE")
		return
	}
	sb.WriteString("FALSE")
}

func (k Key) appendTo(sb *strings.Builder) {
	sb.WriteString(string(k))
}

func (r Ref) appendTo(sb *strings.Builder) {
	sb.WriteString(r())
}

func (s Symbol) appendTo(sb *strings.Builder) {
	sb.WriteString(string(s))
}

func (n Nums) appendTo(sb *strings.Builder) {
	sb.WriteByte('[')
	for i, v := range n {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(formatFloat(v))
	}
	sb.WriteByte(']')
}

func (s Strs) appendTo(sb *strings.Builder) {
	sb.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			sb.WriteByte(' ')
		}
		writeQuoted(sb, v)
	}
	sb.WriteByte(']')
}

func (s Span) appendTo(sb *strings.Builder) {
	fmt.Fprintf(sb, "[%d:%d]", s.Start, s.Count)
}

func (none) appendTo(sb *strings.Builder) {
	sb.WriteString("[]")
}

// Indices converts column positions into a Nums list.
func Indices(idx []int) Nums {
	out := make(Nums, len(idx))
	for i, v := range idx {
		out[i] = float64(v)
	}
	return out
}

// Lit converts a Go value into an Operand. Supported are the numeric kinds,
// string, bool, nil, []int, []float64, []string and any Operand.
func Lit(v any) (Operand, error) {
	switch val := v.(type) {
	case nil:
		return None, nil
	case Operand:
		return val, nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case float32:
		return Num(val), nil
	case float64:
		return Num(val), nil
	case string:
		return Str(val), nil
	case bool:
		return Bool(val), nil
	case []int:
		return Indices(val), nil
	case []float64:
		return Nums(append([]float64(nil), val...)), nil
	case []string:
		return Strs(append([]string(nil), val...)), nil
	default:
		return nil, fmt.Errorf("unsupported literal type %T", v)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeQuoted(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	sb.WriteByte('"')
}
