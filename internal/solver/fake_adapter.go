package solver

import (
	"context"
	"math"
	"sync"
)

// FakeAdapter is a deterministic stand-in for the external solver, used by
// every pipeline-stage test. It never touches disk or spawns a process:
// Run succeeds for any plan registered via RegisterPlan, and OpenResults
// synthesizes a monotone rating curve from the discharges named in that
// plan's spec.
//
// The synthesis is a closed-form normal-depth (Manning's equation)
// backwater approximation for a wide rectangular channel, which is
// physically plausible (stage rises monotonically with discharge) without
// needing an actual solver run:
//
//	depth = (Q*n / (width * slope^0.5))^(3/5)
//	wse   = bed_elevation + depth
//	velocity = Q / (width * depth)
type FakeAdapter struct {
	mu    sync.Mutex
	plans map[string]PlanSpec
}

// PlanSpec is the subset of a plan's content the fake synthesis needs:
// the discharges to solve, the reach's geometric/roughness parameters, and
// whether the solver should simulate a crash.
type PlanSpec struct {
	River         string
	Reach         string
	Station       float64
	BedElevation  float64
	ChannelWidth  float64
	ManningsN     float64
	BedSlope      float64
	Discharges    []float64
	SimulateCrash bool
}

// NewFakeAdapter returns an empty FakeAdapter.
func NewFakeAdapter() *FakeAdapter {
	return &FakeAdapter{plans: make(map[string]PlanSpec)}
}

// RegisterPlan associates planPath with the spec Run should synthesize
// results from. Stage tests call this before invoking the stage under test.
func (a *FakeAdapter) RegisterPlan(planPath string, spec PlanSpec) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.plans[planPath] = spec
}

// Run implements Adapter.
func (a *FakeAdapter) Run(_ context.Context, planPath string) (int, string, error) {
	a.mu.Lock()
	spec, ok := a.plans[planPath]
	a.mu.Unlock()

	if !ok {
		return 1, planPath, nil
	}

	if spec.SimulateCrash {
		return 1, planPath, nil
	}

	return 0, planPath, nil
}

// OpenResults implements Adapter.
func (a *FakeAdapter) OpenResults(resultsPath string) (ResultReader, error) {
	a.mu.Lock()
	spec, ok := a.plans[resultsPath]
	a.mu.Unlock()

	if !ok {
		return &fakeResultReader{}, nil
	}

	return &fakeResultReader{profiles: synthesizeProfiles(spec)}, nil
}

func synthesizeProfiles(spec PlanSpec) []Profile {
	width := spec.ChannelWidth
	if width <= 0 {
		width = 100
	}

	n := spec.ManningsN
	if n <= 0 {
		n = 0.035
	}

	slope := spec.BedSlope
	if slope <= 0 {
		slope = 0.001
	}

	profiles := make([]Profile, 0, len(spec.Discharges))

	for _, q := range spec.Discharges {
		depth := math.Pow(q*n/(width*math.Sqrt(slope)), 3.0/5.0)
		velocity := 0.0

		if depth > 0 {
			velocity = q / (width * depth)
		}

		profiles = append(profiles, Profile{
			Discharge:             q,
			River:                 spec.River,
			Reach:                 spec.Reach,
			Station:               spec.Station,
			WaterSurfaceElevation: spec.BedElevation + depth,
			Velocity:              velocity,
		})
	}

	return profiles
}

type fakeResultReader struct {
	profiles []Profile
}

func (r *fakeResultReader) Profiles() ([]Profile, error) {
	return r.profiles, nil
}

func (r *fakeResultReader) Close() error {
	return nil
}

var (
	_ Adapter      = (*ExecAdapter)(nil)
	_ Adapter      = (*FakeAdapter)(nil)
	_ ResultReader = (*csvResultReader)(nil)
	_ ResultReader = (*fakeResultReader)(nil)
)
