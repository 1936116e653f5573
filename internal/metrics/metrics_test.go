package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floodlib/ripple-engine/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()

	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)

	var m dto.Metric
	require.NoError(t, (<-ch).Write(&m))

	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()

	var m dto.Metric
	require.NoError(t, g.Write(&m))

	return m.GetGauge().GetValue()
}

func TestRegistry_JobLifecycleCounters(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.JobEnqueued("conflate_model")
	m.JobEnqueued("conflate_model")
	m.JobCompleted("conflate_model", "successful")

	assert.InDelta(t, 2.0, counterValue(t, m.JobsEnqueuedTotal.WithLabelValues("conflate_model")), 0)
	assert.InDelta(t, 1.0, counterValue(t, m.JobsCompletedTotal.WithLabelValues("conflate_model", "successful")), 0)
}

func TestRegistry_RunningGaugeTracksStartAndFinish(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.JobStarted()
	m.JobStarted()
	assert.InDelta(t, 2.0, gaugeValue(t, m.JobsRunning), 0)

	m.JobFinished()
	assert.InDelta(t, 1.0, gaugeValue(t, m.JobsRunning), 0)
}

func TestRegistry_SetQueueDepth(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.SetQueueDepth(7)
	assert.InDelta(t, 7.0, gaugeValue(t, m.JobQueueDepth), 0)
}

func TestRegistry_ObserveStageDuration(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.ObserveStageDuration("create_model_run_normal_depth", 2500000000)

	ch := make(chan prometheus.Metric, 1)
	m.StageDuration.WithLabelValues("create_model_run_normal_depth").Collect(ch)
	close(ch)

	var out dto.Metric
	require.NoError(t, (<-ch).Write(&out))
	assert.EqualValues(t, 1, out.GetHistogram().GetSampleCount())
}
