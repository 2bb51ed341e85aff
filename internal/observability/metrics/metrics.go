package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Счетчики сервиса. Экспортируются на /metrics.
var (
	SettlementsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guard_settlements_ingested_total",
		Help: "Accepted settlement instructions, all versions.",
	})

	SettlementsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guard_settlements_rejected_total",
		Help: "Settlement instructions rejected by validation or version checks.",
	})

	LimitBreaches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guard_limit_breaches_total",
		Help: "Ingestions that pushed a group total over its exposure limit.",
	})

	ReleaseRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guard_release_requests_total",
		Help: "Successful release requests recorded in the activity trail.",
	})

	Authorisations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guard_authorisations_total",
		Help: "Successful authorisations recorded in the activity trail.",
	})

	Recalculations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guard_recalculations_total",
		Help: "Per-group recalculations performed.",
	})

	RateRefreshErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guard_rate_refresh_errors_total",
		Help: "Failed attempts to refresh exchange rates from the upstream feed.",
	})
)
