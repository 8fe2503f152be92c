// Package metrics is the Prometheus exposition surface named in §6. It is
// an external-collaborator concern: the packet-plane
// engines call into it, but nothing about rate limiting, cookie
// validation, or RA synthesis depends on metrics being wired up.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every counter and histogram named in §6, registered
// against its own [prometheus.Registry] so a process embedding this
// module never collides with metrics registered elsewhere, matching the
// style of AdGuard Home's internal/prometheus package.
type Registry struct {
	reg *prometheus.Registry

	RadvReceivedPackets *prometheus.CounterVec
	RadvSolicitations   *prometheus.CounterVec
	RadvSentPackets     *prometheus.CounterVec

	DNSInQueryLatency *prometheus.HistogramVec
	DNSInQueryResult  *prometheus.CounterVec
	DNSInQueryDropped prometheus.Counter
}

// New constructs and registers all of erbium's metrics.
func New() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,

		RadvReceivedPackets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radv_received_packets",
			Help: "Total number of ICMPv6 packets received on the RA socket.",
		}, []string{"interface"}),

		RadvSolicitations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radv_solicitations",
			Help: "Total number of Router Solicitations received.",
		}, []string{"interface"}),

		RadvSentPackets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radv_sent_packets",
			Help: "Total number of Router Advertisements sent.",
		}, []string{"interface"}),

		DNSInQueryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dns_in_query_latency",
			Help:    "Latency of handling an inbound DNS query, in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.00025, 2, 16),
		}, []string{"protocol"}),

		DNSInQueryResult: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dns_in_query_result",
			Help: `Total inbound DNS queries by result, e.g. "NOERROR", "REFUSED (PROHIBITED)", or "parse fail".`,
		}, []string{"protocol", "result"}),

		DNSInQueryDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "dns_in_query_dropped",
			Help: "Total inbound UDP DNS queries left unanswered: unparsable datagrams and replies denied by the rate limiter.",
		}),
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
