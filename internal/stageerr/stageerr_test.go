package stageerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/stageerr"
)

func TestStageError_Unwrap(t *testing.T) {
	err := stageerr.New(stageerr.KindSolverCrash, "exit code %d", 137)

	require.ErrorIs(t, err, stageerr.ErrSolverCrash)
	assert.Equal(t, "SolverCrash: exit code 137", err.Error())
}

func TestInternal_CarriesTraceback(t *testing.T) {
	err := stageerr.Internal("goroutine 1 [running]:\n...", "panic recovered")

	assert.Equal(t, stageerr.KindInternal, err.Kind)
	assert.NotEmpty(t, err.Traceback)
}

func TestAs_WrapsPlainError(t *testing.T) {
	err := stageerr.As(errors.New("boom"))

	require.NotNil(t, err)
	assert.Equal(t, stageerr.KindInternal, err.Kind)
	assert.Equal(t, "boom", err.Message)
}

func TestAs_PassesThroughStageError(t *testing.T) {
	original := stageerr.New(stageerr.KindEclipsed, "reach 123")

	got := stageerr.As(original)

	assert.Same(t, original, got)
}

func TestAs_Nil(t *testing.T) {
	assert.Nil(t, stageerr.As(nil))
}
