package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/stageerr"
)

func intPtr(i int) *int { return &i }

func TestInputSpec_StringPath(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	spec := InputSpec{Name: "plan_file", Domain: DomainStringPath, Required: true}

	require.NoError(t, spec.apply(map[string]any{"plan_file": "p01.p01"}))

	err := spec.apply(map[string]any{"plan_file": ""})
	assertInvalidInput(t, err)

	err = spec.apply(map[string]any{})
	assertInvalidInput(t, err)
}

func TestInputSpec_EnumeratedString(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	spec := InputSpec{Name: "dem_units", Domain: DomainEnumeratedString, Enum: []string{"meters", "feet"}}

	require.NoError(t, spec.apply(map[string]any{"dem_units": "meters"}))

	err := spec.apply(map[string]any{"dem_units": "furlongs"})
	assertInvalidInput(t, err)
}

func TestInputSpec_BoundedInteger(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	spec := InputSpec{Name: "max_steps", Domain: DomainBoundedInteger, Min: intPtr(1), Max: intPtr(100)}

	require.NoError(t, spec.apply(map[string]any{"max_steps": float64(50)}))

	err := spec.apply(map[string]any{"max_steps": float64(0)})
	assertInvalidInput(t, err)

	err = spec.apply(map[string]any{"max_steps": float64(101)})
	assertInvalidInput(t, err)

	err = spec.apply(map[string]any{"max_steps": "fifty"})
	assertInvalidInput(t, err)
}

func TestInputSpec_Boolean(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	spec := InputSpec{Name: "dry_run", Domain: DomainBoolean}

	require.NoError(t, spec.apply(map[string]any{"dry_run": true}))

	err := spec.apply(map[string]any{"dry_run": "yes"})
	assertInvalidInput(t, err)
}

func TestInputSpec_DefaultAppliedWhenAbsent(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	spec := InputSpec{Name: "downstream_slope", Domain: DomainBoundedInteger, Default: float64(1)}

	fields := map[string]any{}
	require.NoError(t, spec.apply(fields))
	assert.Equal(t, float64(1), fields["downstream_slope"])
}

func assertInvalidInput(t *testing.T, err error) {
	t.Helper()

	require.Error(t, err)
	assert.ErrorIs(t, err, stageerr.ErrInvalidInput)
}
