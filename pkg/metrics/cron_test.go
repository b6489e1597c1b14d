package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronMetricsRecordsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronMetrics(reg)
	m.ObserveRun("wishlist-resync", JobSucceeded, 250*time.Millisecond)
	m.ObserveRun("wishlist-resync", JobTimedOut, time.Second)
	m.ObserveRun("wishlist-resync", JobTimedOut, time.Second)
	m.IncCycle(CycleSkipped)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := counterValue(mfs, "storefront_cron_job_runs_total", map[string]string{"job": "wishlist-resync", "result": JobTimedOut})
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = counterValue(mfs, "storefront_cron_cycles_total", map[string]string{"outcome": CycleSkipped})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	hist := findMetricFamily(mfs, "storefront_cron_job_duration_seconds")
	require.NotNil(t, hist)
	assert.Equal(t, uint64(3), hist.GetMetric()[0].GetHistogram().GetSampleCount())

	last := findMetricFamily(mfs, "storefront_cron_job_last_success_timestamp_seconds")
	require.NotNil(t, last)
	assert.Greater(t, last.GetMetric()[0].GetGauge().GetValue(), 0.0)
}

func TestCronMetricsLastSuccessIgnoresFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronMetrics(reg)
	m.ObserveRun("wishlist-resync", JobFailed, time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Nil(t, findMetricFamily(mfs, "storefront_cron_job_last_success_timestamp_seconds"))
}

func counterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if hasLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q has no series %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
