// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/internal/notify"
)

// Metrics contains the AuthCore Prometheus collectors. It implements
// auth.Recorder and auth.SweepRecorder, and counts notification delivery
// outcomes for the notify package.
type Metrics struct {
	AuthEvents    *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	SweepDeleted  *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_auth_events_total",
				Help: "Total number of auth lifecycle operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_notifications_total",
				Help: "Total number of reset notifications by delivery outcome",
			},
			[]string{"outcome"},
		),
		SweepDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authcore_sweep_deleted_total",
				Help: "Total number of expired records removed by the sweeper",
			},
			[]string{"kind"},
		),
	}

	reg.MustRegister(m.AuthEvents, m.Notifications, m.SweepDeleted)
	return m
}

// RecordAuthEvent counts one completed lifecycle operation.
func (m *Metrics) RecordAuthEvent(operation, outcome string) {
	m.AuthEvents.WithLabelValues(operation, outcome).Inc()
}

// RecordSweep adds deleted to the per-kind sweep counter.
func (m *Metrics) RecordSweep(kind string, deleted int64) {
	if deleted > 0 {
		m.SweepDeleted.WithLabelValues(kind).Add(float64(deleted))
	}
}

// RecordNotification counts one notification outcome.
func (m *Metrics) RecordNotification(outcome string) {
	m.Notifications.WithLabelValues(outcome).Inc()
}

var (
	_ auth.Recorder      = (*Metrics)(nil)
	_ auth.SweepRecorder = (*Metrics)(nil)
	_ notify.Recorder    = (*Metrics)(nil)
)
