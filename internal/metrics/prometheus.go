package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "screenlink_coordinator"

// Registry exposes the counters to Prometheus. The collectors read the
// atomics on scrape, so nothing is double-counted.
func (m *Metrics) Registry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	counter := func(name, help string, v *atomic.Int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}
	gauge := func(name, help string, f func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, f)
	}

	reg.MustRegister(
		counter("connections_total", "Signaling connections accepted.", &m.TotalConnections),
		gauge("connections_active", "Signaling connections currently open.", func() float64 {
			return float64(m.ActiveConnections.Load())
		}),
		counter("registrations_total", "Register messages applied.", &m.Registrations),
		counter("slow_consumers_total", "Sessions closed because their send queue filled.", &m.SlowConsumers),
		counter("pairing_codes_issued_total", "Pairing codes issued.", &m.CodesIssued),
		counter("pairing_codes_verified_total", "Pairing codes consumed by a successful verify.", &m.CodesVerified),
		counter("pairing_codes_expired_total", "Pairing codes that reached their expiry.", &m.CodesExpired),
		counter("pairing_verify_failures_total", "Verify attempts with an unknown, expired or own code.", &m.FailedVerifies),
		counter("pairing_verify_limited_total", "Verify attempts rejected by the rate limiter.", &m.LimitedVerifies),
		counter("relay_messages_total", "Negotiation messages forwarded.", &m.RelayedMessages),
		counter("relay_dropped_total", "Negotiation messages dropped because the target was gone.", &m.DroppedRelays),
		counter("protocol_errors_total", "Malformed or unknown inbound frames.", &m.ProtocolErrors),
		gauge("uptime_seconds", "Seconds since the coordinator started.", func() float64 {
			return time.Since(m.startTime).Seconds()
		}),
	)
	return reg
}

// Handler serves the Prometheus text exposition for m.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})
}
