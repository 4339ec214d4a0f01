package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LinksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortlink_links_created_total",
		Help: "Short links created.",
	})

	RedirectsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortlink_redirects_served_total",
		Help: "Redirects resolved and served.",
	})

	RedirectsNotFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortlink_redirects_not_found_total",
		Help: "Redirect requests that did not resolve to an active link.",
	})

	ClicksRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shortlink_clicks_recorded_total",
		Help: "Click events handed to the analytics writer.",
	})
)
