// Package metrics tracks coordinator runtime counters. All counters are
// atomic so handlers can bump them without coordination.
package metrics

import (
	"sync/atomic"
	"time"
)

type Metrics struct {
	startTime time.Time

	TotalConnections  atomic.Int64
	ActiveConnections atomic.Int64
	Registrations     atomic.Int64
	SlowConsumers     atomic.Int64 // sessions closed because their queue filled

	CodesIssued     atomic.Int64
	CodesVerified   atomic.Int64
	CodesExpired    atomic.Int64
	FailedVerifies  atomic.Int64
	LimitedVerifies atomic.Int64

	RelayedMessages atomic.Int64
	DroppedRelays   atomic.Int64
	ProtocolErrors  atomic.Int64
}

func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

type Snapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	TotalConnections  int64 `json:"total_connections"`
	ActiveConnections int64 `json:"active_connections"`
	Registrations     int64 `json:"registrations"`
	SlowConsumers     int64 `json:"slow_consumers"`

	CodesIssued     int64 `json:"codes_issued"`
	CodesVerified   int64 `json:"codes_verified"`
	CodesExpired    int64 `json:"codes_expired"`
	FailedVerifies  int64 `json:"failed_verifies"`
	LimitedVerifies int64 `json:"limited_verifies"`

	RelayedMessages int64 `json:"relayed_messages"`
	DroppedRelays   int64 `json:"dropped_relays"`
	ProtocolErrors  int64 `json:"protocol_errors"`
}

func (m *Metrics) Snapshot() Snapshot {
	uptime := time.Since(m.startTime)
	return Snapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		TotalConnections:  m.TotalConnections.Load(),
		ActiveConnections: m.ActiveConnections.Load(),
		Registrations:     m.Registrations.Load(),
		SlowConsumers:     m.SlowConsumers.Load(),
		CodesIssued:       m.CodesIssued.Load(),
		CodesVerified:     m.CodesVerified.Load(),
		CodesExpired:      m.CodesExpired.Load(),
		FailedVerifies:    m.FailedVerifies.Load(),
		LimitedVerifies:   m.LimitedVerifies.Load(),
		RelayedMessages:   m.RelayedMessages.Load(),
		DroppedRelays:     m.DroppedRelays.Load(),
		ProtocolErrors:    m.ProtocolErrors.Load(),
	}
}
