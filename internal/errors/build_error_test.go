package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/paveg/joinhash/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *errors.BuildError
		expected string
	}{
		{
			name: "Error with code",
			err: &errors.BuildError{
				Op:      "FillBaseline",
				Code:    errors.CodeTableFull,
				Message: "hash table is full",
			},
			expected: "FillBaseline operation failed with code -2: hash table is full",
		},
		{
			name: "Error without code",
			err: &errors.BuildError{
				Op:      "InitPerfect",
				Message: "buffer too small",
			},
			expected: "InitPerfect operation failed: buffer too small",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestBuildError_Unwrap(t *testing.T) {
	cause := stderrors.New("underlying error")
	err := errors.NewInternalError("BuildOneToMany", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
}

func TestBuildError_IsMatchesByCode(t *testing.T) {
	err := errors.FromCode("FillPerfect", errors.CodeOneToOneViolation)
	require.Error(t, err)

	assert.ErrorIs(t, err, errors.ErrOneToOneViolation)
	assert.NotErrorIs(t, err, errors.ErrTableFull)

	var be *errors.BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "FillPerfect", be.Op)
}

func TestBuildError_IsMatchesByOpAndMessage(t *testing.T) {
	err1 := errors.NewInvalidInputError("Init", "bad layout")
	err2 := errors.NewInvalidInputError("Init", "bad layout")
	err3 := errors.NewInvalidInputError("Fill", "bad layout")

	assert.ErrorIs(t, err1, err2)
	assert.NotErrorIs(t, err1, err3)
}

func TestFromCode(t *testing.T) {
	assert.NoError(t, errors.FromCode("op", errors.CodeOK))
	assert.ErrorIs(t, errors.FromCode("op", errors.CodeTableFull), errors.ErrTableFull)

	err := errors.FromCode("op", -7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown build failure")
}
