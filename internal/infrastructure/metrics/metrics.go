package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the counters below.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeNotFound = "not_found"
	OutcomeExpired  = "expired"
	OutcomeCached   = "cached"
	OutcomeSkipped  = "skipped"
)

var (
	LinksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlinks_created_total",
			Help: "Total number of short links created",
		},
	)

	Redirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlinks_redirects_total",
			Help: "Redirect attempts by outcome",
		},
		[]string{"outcome"},
	)

	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geolocation_lookups_total",
			Help: "Geolocation lookups by outcome",
		},
		[]string{"outcome"},
	)

	CollectorSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "log_collector_sends_total",
			Help: "Log entries forwarded to the external collector by outcome",
		},
		[]string{"outcome"},
	)

	ClickEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_events_published_total",
			Help: "Click events handed to the event stream by outcome",
		},
		[]string{"outcome"},
	)
)
