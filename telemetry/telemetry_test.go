package telemetry

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNoopCollector(t *testing.T) {
	collector := Noop()
	require.NotNil(t, collector)
	collector.IncPoll(ResultOK)
	collector.IncCommand("hf", ResultError)
	collector.IncStateChange()
}

func TestResult(t *testing.T) {
	require.Equal(t, ResultOK, Result(nil))
	require.Equal(t, ResultError, Result(errors.New("boom")))
}

func TestPrometheusCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	collector.IncPoll(ResultOK)
	collector.IncPoll(ResultOK)
	collector.IncPoll(ResultError)
	collector.IncCommand("hf", ResultOK)
	collector.IncStateChange()

	families := gather(t, reg)

	polls := families["station_sync_polls_total"]
	require.NotNil(t, polls)
	require.Equal(t, float64(2), counterWithLabel(t, polls, "result", ResultOK))
	require.Equal(t, float64(1), counterWithLabel(t, polls, "result", ResultError))

	commands := families["station_commands_total"]
	require.NotNil(t, commands)
	require.Equal(t, float64(1), counterWithLabel(t, commands, "command", "hf"))

	changes := families["station_state_changes_total"]
	require.NotNil(t, changes)
	require.Len(t, changes.Metric, 1)
	require.Equal(t, float64(1), changes.Metric[0].Counter.GetValue())
}

func TestPrometheusCollectorReusesRegisteredCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	again, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.Same(t, first.polls, again.polls)
	require.Same(t, first.commands, again.commands)

	first.IncStateChange()
	again.IncStateChange()

	families := gather(t, reg)
	require.Equal(t, float64(2), families["station_state_changes_total"].Metric[0].Counter.GetValue())
}

func TestNilPrometheusCollectorIsSafe(t *testing.T) {
	var collector *PrometheusCollector
	collector.IncPoll(ResultOK)
	collector.IncCommand("hf", ResultOK)
	collector.IncStateChange()
}

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	metrics, err := reg.Gather()
	require.NoError(t, err)
	families := make(map[string]*dto.MetricFamily, len(metrics))
	for _, mf := range metrics {
		families[mf.GetName()] = mf
	}
	return families
}

func counterWithLabel(t *testing.T, mf *dto.MetricFamily, name, value string) float64 {
	t.Helper()
	for _, metric := range mf.Metric {
		for _, label := range metric.Label {
			if label.GetName() == name && label.GetValue() == value {
				require.NotNil(t, metric.Counter)
				return metric.Counter.GetValue()
			}
		}
	}
	t.Fatalf("no %s metric with %s=%s", mf.GetName(), name, value)
	return 0
}
