package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels used by the collectors.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Collector captures synchronization and dispatch events.
//
// Calls happen inline with every poll and command, so implementations must
// be cheap and must never block.
type Collector interface {
	IncPoll(result string)
	IncCommand(command, result string)
	IncStateChange()
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncPoll(string)            {}
func (noopCollector) IncCommand(string, string) {}
func (noopCollector) IncStateChange()           {}

// PrometheusCollector exposes the controller counters via Prometheus.
type PrometheusCollector struct {
	polls        *prometheus.CounterVec
	commands     *prometheus.CounterVec
	stateChanges prometheus.Counter
}

// NewPrometheusCollector registers the counters with reg, reusing counters
// that an earlier collector already registered there.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	polls, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "station_sync_polls_total",
		Help: "Number of device state polls by result.",
	}, []string{"result"})
	if err != nil {
		return nil, err
	}

	commands, err := registerCounterVec(reg, prometheus.CounterOpts{
		Name: "station_commands_total",
		Help: "Number of control commands sent to the device by command name and result.",
	}, []string{"command", "result"})
	if err != nil {
		return nil, err
	}

	var changes prometheus.Counter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_state_changes_total",
		Help: "Number of times the known device state changed.",
	})
	if err := reg.Register(changes); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(prometheus.Counter)
		if !ok {
			return nil, err
		}
		changes = existing
	}

	return &PrometheusCollector{
		polls:        polls,
		commands:     commands,
		stateChanges: changes,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	counter := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(counter); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		return existing, nil
	}
	return counter, nil
}

// Result maps an error to the result label.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func (p *PrometheusCollector) IncPoll(result string) {
	if p == nil || p.polls == nil {
		return
	}
	p.polls.WithLabelValues(result).Inc()
}

func (p *PrometheusCollector) IncCommand(command, result string) {
	if p == nil || p.commands == nil {
		return
	}
	p.commands.WithLabelValues(command, result).Inc()
}

func (p *PrometheusCollector) IncStateChange() {
	if p == nil || p.stateChanges == nil {
		return
	}
	p.stateChanges.Inc()
}
