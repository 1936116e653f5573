package rasio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/rasio"
)

func TestSelectPrimaryPlan_PrefersActiveWithoutEncroachments(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	plans := []rasio.PlanDocument{
		{Suffix: "01", Active: false, HasEncroachments: false},
		{Suffix: "02", Active: true, HasEncroachments: false},
	}

	plan, err := rasio.SelectPrimaryPlan(plans)
	require.NoError(t, err)
	assert.Equal(t, "02", plan.Suffix)
}

func TestSelectPrimaryPlan_FallsBackWhenActiveHasEncroachments(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	plans := []rasio.PlanDocument{
		{Suffix: "01", Active: true, HasEncroachments: true},
		{Suffix: "02", Active: false, HasEncroachments: false},
	}

	plan, err := rasio.SelectPrimaryPlan(plans)
	require.NoError(t, err)
	assert.Equal(t, "02", plan.Suffix)
}

func TestSelectPrimaryPlan_NoValidPlan(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	plans := []rasio.PlanDocument{
		{Suffix: "01", Active: true, HasEncroachments: true},
		{Suffix: "02", Active: false, HasEncroachments: true},
	}

	_, err := rasio.SelectPrimaryPlan(plans)
	assert.ErrorIs(t, err, rasio.ErrNoValidPlan)
}
