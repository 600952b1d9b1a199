// Package metrics exposes the supervisor's own activity as Prometheus
// collectors: daemon starts/stops/restarts, state transitions, and current
// state, served over an optional local /metrics endpoint independent of the
// IPC transport.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	regOK atomic.Bool

	daemonStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syspulse",
			Subsystem: "daemon",
			Name:      "starts_total",
			Help:      "Number of successful daemon starts.",
		}, []string{"name"},
	)
	daemonRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syspulse",
			Subsystem: "daemon",
			Name:      "restarts_total",
			Help:      "Number of restarts triggered by the restart evaluator.",
		}, []string{"name"},
	)
	daemonStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syspulse",
			Subsystem: "daemon",
			Name:      "stops_total",
			Help:      "Number of stops, graceful or forced.",
		}, []string{"name"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "syspulse",
			Subsystem: "daemon",
			Name:      "state_transitions_total",
			Help:      "Number of lifecycle state transitions.",
		}, []string{"name", "from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "syspulse",
			Subsystem: "daemon",
			Name:      "current_state",
			Help:      "1 for the daemon's current lifecycle state, 0 for every other state.",
		}, []string{"name", "state"},
	)
	runningInstances = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "syspulse",
			Subsystem: "daemon",
			Name:      "running_total",
			Help:      "Count of daemons currently in the Running state.",
		},
	)
	memoryBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "syspulse",
			Subsystem: "daemon",
			Name:      "memory_bytes",
			Help:      "Resident set size of a running daemon's process, sampled each monitor tick.",
		}, []string{"name"},
	)
	cpuPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "syspulse",
			Subsystem: "daemon",
			Name:      "cpu_percent",
			Help:      "CPU utilization of a running daemon's process, sampled each monitor tick.",
		}, []string{"name"},
	)
)

// Register registers every collector against r. It is safe to call more
// than once; an AlreadyRegisteredError for a collector already registered is
// not treated as a failure.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	collectors := []prometheus.Collector{
		daemonStarts, daemonRestarts, daemonStops,
		stateTransitions, currentState, runningInstances,
		memoryBytes, cpuPercent,
	}
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default Prometheus gatherer; the caller wires it onto
// an HTTP server.
func Handler() http.Handler { return promhttp.Handler() }

// The helpers below no-op until Register has succeeded, so callers never
// need to check whether metrics are enabled.

func IncStart(name string) {
	if regOK.Load() {
		daemonStarts.WithLabelValues(name).Inc()
	}
}

func IncRestart(name string) {
	if regOK.Load() {
		daemonRestarts.WithLabelValues(name).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		daemonStops.WithLabelValues(name).Inc()
	}
}

func RecordStateTransition(name, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(name, from, to).Inc()
	}
}

func SetCurrentState(name string, states []string, active string) {
	if !regOK.Load() {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == active {
			v = 1.0
		}
		currentState.WithLabelValues(name, s).Set(v)
	}
}

func SetRunningTotal(n int) {
	if regOK.Load() {
		runningInstances.Set(float64(n))
	}
}

func SetResourceUsage(name string, rssBytes uint64, cpuPct float64) {
	if regOK.Load() {
		memoryBytes.WithLabelValues(name).Set(float64(rssBytes))
		cpuPercent.WithLabelValues(name).Set(cpuPct)
	}
}

func DeleteDaemon(name string) {
	if regOK.Load() {
		memoryBytes.DeleteLabelValues(name)
		cpuPercent.DeleteLabelValues(name)
	}
}
