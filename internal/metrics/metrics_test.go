package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestObserveRefreshIncrementsCounterAndHistogram(t *testing.T) {
	labels := map[string]string{"outcome": "ok_test_observe"}
	RefreshTotal.WithLabelValues(labels["outcome"])

	before := getCounterValue(t, "lineupd_refresh_total", labels)
	ObserveRefresh(labels["outcome"], time.Now().Add(-2*time.Second))
	after := getCounterValue(t, "lineupd_refresh_total", labels)

	require.Equal(t, before+1, after)
	require.GreaterOrEqual(t, getHistogramCount(t, "lineupd_refresh_duration_seconds", labels), uint64(1))
}

func getCounterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	mf := findMetricFamily(t, name)
	for _, m := range mf.Metric {
		if labelsMatch(m.GetLabel(), labels) {
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func getHistogramCount(t *testing.T, name string, labels map[string]string) uint64 {
	t.Helper()
	mf := findMetricFamily(t, name)
	for _, m := range mf.Metric {
		if labelsMatch(m.GetLabel(), labels) {
			return m.GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func findMetricFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	require.FailNow(t, "metric family not found", name)
	return nil
}

func labelsMatch(pairs []*dto.LabelPair, labels map[string]string) bool {
	if len(pairs) != len(labels) {
		return false
	}
	for _, pair := range pairs {
		if labels[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}
