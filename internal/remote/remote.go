// Package remote defines what the evaluation core needs from the cluster:
// submitting an expression, deleting a key, and describing a frame.
//
// The REST client in internal/rest implements these interfaces; tests use
// the in-memory cluster from internal/testutil.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Transport submits expressions and deletes keys.
type Transport interface {
	// Submit evaluates one Rapids expression. A server-side failure is
	// reported through Result.Error, not the returned error.
	Submit(ctx context.Context, ast string) (*Result, error)
	// Delete removes a key from the cluster's key-value store.
	Delete(ctx context.Context, key string) error
}

// Describer fetches frame metadata.
type Describer interface {
	Describe(ctx context.Context, key string) (*Description, error)
}

// Downloader streams a frame's contents as CSV with a header row.
type Downloader interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// ErrNotFound is returned by Delete and Describe for a key the cluster does
// not hold.
var ErrNotFound = errors.New("key not found")

// FrameCreator builds a synthetic frame on the cluster and waits for the
// job to finish.
type FrameCreator interface {
	CreateFrame(ctx context.Context, opts CreateFrameOptions) (string, error)
}

// CreateFrameOptions mirrors the parameters of the CreateFrame endpoint.
// Zero values are sent as-is; use DefaultCreateFrameOptions for the
// server's documented defaults.
type CreateFrameOptions struct {
	Dest                string  `json:"dest"`
	Rows                int64   `json:"rows"`
	Cols                int     `json:"cols"`
	Randomize           bool    `json:"randomize"`
	Value               int64   `json:"value"`
	RealRange           float64 `json:"real_range"`
	CategoricalFraction float64 `json:"categorical_fraction"`
	Factors             int     `json:"factors"`
	IntegerFraction     float64 `json:"integer_fraction"`
	IntegerRange        int64   `json:"integer_range"`
	BinaryFraction      float64 `json:"binary_fraction"`
	BinaryOnesFraction  float64 `json:"binary_ones_fraction"`
	MissingFraction     float64 `json:"missing_fraction"`
	ResponseFactors     int     `json:"response_factors"`
	HasResponse         bool    `json:"has_response"`
	Seed                int64   `json:"seed"`
}

// DefaultCreateFrameOptions returns the defaults of the CreateFrame endpoint.
func DefaultCreateFrameOptions() CreateFrameOptions {
	return CreateFrameOptions{
		Rows:                10000,
		Cols:                10,
		Randomize:           true,
		RealRange:           100,
		CategoricalFraction: 0.2,
		Factors:             100,
		IntegerFraction:     0.2,
		IntegerRange:        100,
		BinaryFraction:      0.1,
		BinaryOnesFraction:  0.02,
		MissingFraction:     0.01,
		ResponseFactors:     2,
		Seed:                -1,
	}
}

// Result is the evaluator's response to a submission.
type Result struct {
	Key    string // Frame result key; empty for scalar results
	Rows   int64
	Cols   int
	Scalar Value
	Error  string // Server diagnostic; empty on success
}

// Description is the metadata of a materialized frame.
type Description struct {
	Key     string
	Rows    int64
	Columns []string
}

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindNone ValueKind = iota
	KindNumber
	KindString
)

// Value is a scalar returned by the evaluator.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
}

// NumberValue wraps a numeric scalar.
func NumberValue(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// StringValue wraps a string scalar.
func StringValue(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Float returns the value as a number. String values are parsed.
func (v Value) Float() (float64, error) {
	switch v.Kind {
	case KindNumber:
		return v.Num, nil
	case KindString:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, fmt.Errorf("scalar %q is not numeric: %w", v.Str, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("scalar is empty")
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindString:
		return v.Str
	default:
		return ""
	}
}
