package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/paveg/rapids/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestFrameError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *errors.FrameError
		expected string
	}{
		{
			name:     "Error with column",
			err:      errors.NewColumnNotFoundError("IndexOf", "age", nil),
			expected: "IndexOf operation failed on column 'age': no such column",
		},
		{
			name:     "Error with available columns",
			err:      errors.NewColumnNotFoundError("IndexOf", "nam", []string{"name", "age"}),
			expected: "IndexOf operation failed on column 'nam': no such column (available columns: [name, age])",
		},
		{
			name:     "Error without column",
			err:      errors.NewReleasedError("Materialize"),
			expected: "Materialize operation failed: use after release",
		},
		{
			name:     "Error without kind",
			err:      &errors.FrameError{Op: "Join", Message: "mismatched lengths"},
			expected: "Join operation failed: mismatched lengths",
		},
		{
			name:     "Error with cause",
			err:      &errors.FrameError{Op: "Add", Kind: errors.ErrInvalidInput, Cause: stderrors.New("unsupported literal type struct {}")},
			expected: "Add operation failed: invalid input: unsupported literal type struct {}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestFrameError_Is(t *testing.T) {
	err := errors.NewIndexOutOfRangeError("Select", 7, 3)

	assert.ErrorIs(t, err, errors.ErrColumnIndexOutOfRange)
	assert.NotErrorIs(t, err, errors.ErrNoSuchColumn)

	wrapped := fmt.Errorf("resolving selector: %w", err)
	assert.ErrorIs(t, wrapped, errors.ErrColumnIndexOutOfRange)

	same := errors.NewIndexOutOfRangeError("Select", 7, 3)
	assert.True(t, err.Is(same))
	assert.False(t, err.Is(errors.NewIndexOutOfRangeError("Select", 8, 3)))
}

func TestFrameError_Unwrap(t *testing.T) {
	cause := stderrors.New("underlying error")
	err := &errors.FrameError{Op: "Filter", Kind: errors.ErrInvalidInput, Cause: cause}

	assert.Equal(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestRemoteError(t *testing.T) {
	err := errors.NewRemoteError("(+ a b)", "Illegal argument: a not found")

	assert.Equal(t, "rapids expression not evaluated: Illegal argument: a not found", err.Error())
	assert.Equal(t, "(+ a b)", err.Expr)

	var remote *errors.RemoteError
	assert.ErrorAs(t, fmt.Errorf("materialize: %w", err), &remote)
	assert.Equal(t, "Illegal argument: a not found", remote.Message)
}

func TestNewValidationError(t *testing.T) {
	err := errors.NewValidationError("GroupBy", "median", errors.ErrInvalidNAPolicy, "na must be one of all, ignore, rm")

	assert.Equal(t, "GroupBy", err.Op)
	assert.Equal(t, "median", err.Column)
	assert.ErrorIs(t, err, errors.ErrInvalidNAPolicy)
	assert.Contains(t, err.Error(), "invalid NA policy")
}
