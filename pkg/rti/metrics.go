// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rti

import (
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	measurementInstant = "instant"
	measurementWindow  = "window"
)

type metrics struct {
	framesSent      prometheus.Counter
	framesReceived  prometheus.Counter
	framesDropped   prometheus.Counter
	reconnects      prometheus.Counter
	callbackFaults  prometheus.Counter
	measurements    *prometheus.CounterVec
	pendingRpcCalls prometheus.Gauge
}

// newMetrics creates the metrics of one client, labeled by its id, and registers them if reg is not nil.
func newMetrics(clientID string, reg prometheus.Registerer) (*metrics, error) {
	labels := prometheus.Labels{"client": clientID}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "rti",
			Subsystem:   "client",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
	}

	m := &metrics{
		framesSent:     counter("frames_sent_total", "Text frames sent to the broker."),
		framesReceived: counter("frames_received_total", "Text frames received from the broker."),
		framesDropped:  counter("frames_dropped_total", "Text frames dropped while no connection was open."),
		reconnects:     counter("reconnects_total", "Automatic reconnection attempts."),
		callbackFaults: counter("callback_faults_total", "Subscription callbacks which panicked."),
		measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rti",
			Subsystem:   "client",
			Name:        "measurements_total",
			Help:        "Published measurements by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		pendingRpcCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "rti",
			Subsystem:   "client",
			Name:        "pending_rpc_calls",
			Help:        "Invoked RPC calls without a reply.",
			ConstLabels: labels,
		}),
	}

	if reg == nil {
		return m, nil
	}

	var errs error
	for _, c := range []prometheus.Collector{
		m.framesSent, m.framesReceived, m.framesDropped, m.reconnects, m.callbackFaults, m.measurements, m.pendingRpcCalls,
	} {
		if err := reg.Register(c); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return m, errs
}
