// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package doctor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricConnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "danex_doctor_connections_total",
			Help: "Number of accepted service connections.",
		},
	)
	metricRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "danex_doctor_rejected_total",
			Help: "Number of service connections closed before a request was served.",
		},
		[]string{
			"reason", // rate_limit, max_connections, handshake
		},
	)
	metricRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "danex_doctor_requests_total",
			Help: "Number of service requests answered, by result.",
		},
		[]string{
			"result", // ok, error
		},
	)
)
