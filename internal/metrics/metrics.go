package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hospops"

var (
	once sync.Once

	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Backend calls by client, entity, operation and outcome.",
		},
		[]string{"client", "entity", "op", "outcome"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of backend calls.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"client", "op"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Read cache lookups by entity and result (hit/miss).",
		},
		[]string{"entity", "result"},
	)

	cacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Whole-entity cache invalidations after mutations.",
		},
		[]string{"entity"},
	)

	rateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_rate_limited_total",
			Help:      "Mutations rejected by the submit guard.",
		},
		[]string{"entity"},
	)

	superseded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "effects_superseded_total",
			Help:      "In-flight effects canceled by a newer dispatch of the same slot.",
		},
		[]string{"slot"},
	)

	staleResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_dropped_total",
			Help:      "Debounced search responses discarded because a newer request was dispatched.",
		},
		[]string{"name"},
	)

	remindersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_total",
			Help:      "Reservation reminders by outcome (sent/failed/skipped).",
		},
		[]string{"outcome"},
	)

	reminderSendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reminder_send_duration_seconds",
			Help:      "Time to deliver one reminder, retries included.",
			Buckets:   []float64{.05, .1, .5, 1, 2, 5, 30},
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			requestsTotal,
			requestDuration,
			cacheLookups,
			cacheInvalidations,
			rateLimited,
			superseded,
			staleResponses,
			remindersTotal,
			reminderSendDuration,
		)
	})
}

func ObserveRequest(client, entity, op, outcome string, elapsed time.Duration) {
	requestsTotal.WithLabelValues(client, entity, op, outcome).Inc()
	requestDuration.WithLabelValues(client, op).Observe(elapsed.Seconds())
}

func IncCacheHit(entity string) {
	cacheLookups.WithLabelValues(entity, "hit").Inc()
}

func IncCacheMiss(entity string) {
	cacheLookups.WithLabelValues(entity, "miss").Inc()
}

func IncCacheInvalidation(entity string) {
	cacheInvalidations.WithLabelValues(entity).Inc()
}

func IncRateLimited(entity string) {
	rateLimited.WithLabelValues(entity).Inc()
}

func IncSuperseded(slot string) {
	superseded.WithLabelValues(slot).Inc()
}

func IncStaleResponse(name string) {
	staleResponses.WithLabelValues(name).Inc()
}

func ObserveReminder(outcome string, elapsed time.Duration) {
	remindersTotal.WithLabelValues(outcome).Inc()
	if outcome == "sent" {
		reminderSendDuration.Observe(elapsed.Seconds())
	}
}
