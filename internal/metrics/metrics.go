package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vizora"

// Collector owns a private registry so tests can create as many as they like.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	GuardDecisions      *prometheus.CounterVec
	Redemptions         *prometheus.CounterVec
	AuditDispatch       *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entitlement",
			Name:      "guard_decisions_total",
			Help:      "Entitlement guard decisions by guard and outcome",
		}, []string{"guard", "outcome"}),
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "promotions",
			Name:      "redemptions_total",
			Help:      "Promotion redemption attempts by outcome",
		}, []string{"outcome"}),
		AuditDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "dispatch_total",
			Help:      "Audit records dispatched by path and outcome",
		}, []string{"path", "outcome"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}

	reg.MustRegister(c.GuardDecisions)
	reg.MustRegister(c.Redemptions)
	reg.MustRegister(c.AuditDispatch)
	reg.MustRegister(c.HTTPRequestDuration)
	reg.MustRegister(collectors.NewGoCollector())

	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordGuardDecision(guard string, allowed bool) {
	if c == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	c.GuardDecisions.WithLabelValues(guard, outcome).Inc()
}

func (c *Collector) RecordRedemption(outcome string) {
	if c == nil {
		return
	}
	c.Redemptions.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordAuditDispatch(path, outcome string) {
	if c == nil {
		return
	}
	c.AuditDispatch.WithLabelValues(path, outcome).Inc()
}

func (c *Collector) RecordHTTPRequest(method, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequestDuration.WithLabelValues(method, status).Observe(d.Seconds())
}
