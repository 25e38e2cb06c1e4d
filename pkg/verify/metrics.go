// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package verify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricVerify = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "danex_verify_total",
			Help: "Number of DANE verifications started.",
		},
	)
	metricVerifyErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "danex_verify_errors_total",
			Help: "Number of DANE verifications that failed without a report, by stage.",
		},
		[]string{
			"stage", // lookup, retrieve
		},
	)
	metricVerifyMatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "danex_verify_matches_total",
			Help: "Number of DANE verifications where the certificate matched at least one TLSA record.",
		},
	)
	metricVerifyUntrusted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "danex_verify_untrusted_total",
			Help: "Number of DANE verifications whose TLSA answer was not DNSSEC secure.",
		},
	)
)
