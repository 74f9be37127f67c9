package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Operations - завершенные операции движка по имени и результату
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thread_engine_operations_total",
		Help: "Engine operations by name and result.",
	}, []string{"op", "result"})

	// Fallbacks - локальные посты, созданные вместо недоступного сервера
	Fallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thread_engine_local_fallbacks_total",
		Help: "Optimistic local posts synthesized after a failed write.",
	}, []string{"op"})

	Superseded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thread_engine_local_superseded_total",
		Help: "Local posts replaced by their authoritative version.",
	})

	Debounced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thread_engine_reactions_debounced_total",
		Help: "Reaction taps ignored by the per-post cooldown.",
	})

	Requests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "thread_backend_request_duration_seconds",
		Help:    "Backend HTTP request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)

func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
