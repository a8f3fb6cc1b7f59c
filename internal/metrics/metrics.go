// Package metrics exposes Prometheus metrics for the quote server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printdesk_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "printdesk_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printdesk_quote_estimates_total",
			Help: "Total number of cost estimates computed",
		},
		[]string{"outcome"},
	)

	FleetProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "printdesk_fleet_probes_total",
			Help: "Total number of printer status probes",
		},
		[]string{"printer", "status"},
	)

	PrintersPrinting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "printdesk_printers_printing",
			Help: "Number of printers currently printing",
		},
	)
)
