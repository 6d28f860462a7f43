// Package metrics exposes conductor telemetry as Prometheus collectors.
//
// A Collector owns its registry, so several conductors in one process (as in
// tests) never collide on metric registration.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records call, interface and instance metrics.
type Collector struct {
	registry *prometheus.Registry

	callsTotal       *prometheus.CounterVec
	callDuration     *prometheus.HistogramVec
	rpcRequestsTotal *prometheus.CounterVec
	rpcRejected      *prometheus.CounterVec
	instancesRunning prometheus.Gauge
}

// NewCollector creates a collector. An empty namespace becomes "holopos".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "holopos"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Zome calls executed, by instance, function and output case",
		},
		[]string{"instance", "function", "result"},
	)

	c.callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Time from dequeue to recorded completion",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"instance", "function"},
	)

	c.rpcRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "JSON-RPC requests handled, by method and response code",
		},
		[]string{"method", "code"},
	)

	c.rpcRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "rejected_total",
			Help:      "Requests refused before dispatch",
		},
		[]string{"reason"},
	)

	c.instancesRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances_running",
			Help:      "Instances whose engine loop is running",
		},
	)

	c.registry.MustRegister(
		c.callsTotal,
		c.callDuration,
		c.rpcRequestsTotal,
		c.rpcRejected,
		c.instancesRunning,
	)

	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveCall records one completed zome call. It implements
// engine.CallObserver.
func (c *Collector) ObserveCall(instance, function, outputCase string, d time.Duration) {
	c.callsTotal.WithLabelValues(instance, function, outputCase).Inc()
	c.callDuration.WithLabelValues(instance, function).Observe(d.Seconds())
}

// RecordRPCRequest counts a JSON-RPC request. code is "ok" or the JSON-RPC
// error code.
func (c *Collector) RecordRPCRequest(method, code string) {
	c.rpcRequestsTotal.WithLabelValues(method, code).Inc()
}

// RecordRejected counts a request refused by middleware, e.g. "rate_limited".
func (c *Collector) RecordRejected(reason string) {
	c.rpcRejected.WithLabelValues(reason).Inc()
}

// InstanceStarted and InstanceStopped track running engines.
func (c *Collector) InstanceStarted() { c.instancesRunning.Inc() }

func (c *Collector) InstanceStopped() { c.instancesRunning.Dec() }
