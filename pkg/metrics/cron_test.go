package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsSplitsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveRun("draft-reconcile", 250*time.Millisecond, nil)
	m.ObserveRun("draft-reconcile", time.Second, errors.New("db down"))
	m.ObserveRun("", time.Millisecond, nil)
	m.IncSkipped()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	runs := findMetricFamily(mfs, "cron_job_runs_total")
	require.NotNil(t, runs)
	var success, failure float64
	for _, metric := range runs.GetMetric() {
		if !matchesLabel(metric.GetLabel(), "job", "draft-reconcile") {
			continue
		}
		switch {
		case matchesLabel(metric.GetLabel(), "outcome", outcomeSuccess):
			success = metric.GetCounter().GetValue()
		case matchesLabel(metric.GetLabel(), "outcome", outcomeFailure):
			failure = metric.GetCounter().GetValue()
		}
	}
	require.Equal(t, float64(1), success)
	require.Equal(t, float64(1), failure)

	sum, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "draft-reconcile")
	require.NoError(t, err)
	require.InDelta(t, 1.25, sum, 0.001)

	_, err = fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "unknown")
	require.NoError(t, err)

	last := findMetricFamily(mfs, "cron_job_last_success_timestamp_seconds")
	require.NotNil(t, last)
	require.Positive(t, last.GetMetric()[0].GetGauge().GetValue())

	skipped := findMetricFamily(mfs, "cron_cycles_skipped_total")
	require.NotNil(t, skipped)
	require.Equal(t, float64(1), skipped.GetMetric()[0].GetCounter().GetValue())
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("x", time.Second, nil)
	m.IncSkipped()
	NewCronJobMetrics(nil).ObserveRun("x", time.Second, errors.New("boom"))
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
