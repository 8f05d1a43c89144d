// Package metrics collects and exposes Prometheus metrics for TodoBot.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records HTTP and agent metrics. It implements agent.Recorder
// and middleware.HTTPRecorder.
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	modelCalls   *prometheus.CounterVec
	modelLatency *prometheus.HistogramVec
	actions      *prometheus.CounterVec
	turns        *prometheus.CounterVec
	turnRounds   prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todobot_http_requests_total",
			Help: "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todobot_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		modelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todobot_model_calls_total",
			Help: "Language model calls by provider and result.",
		}, []string{"provider", "result"}),
		modelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todobot_model_call_duration_seconds",
			Help:    "Language model call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"provider"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todobot_actions_total",
			Help: "Todo actions dispatched on behalf of the model.",
		}, []string{"action", "result"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todobot_chat_turns_total",
			Help: "Chat turns by outcome.",
		}, []string{"outcome"}),
		turnRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "todobot_chat_turn_rounds",
			Help:    "Tool-call rounds used per chat turn.",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12, 20},
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.modelCalls,
		c.modelLatency,
		c.actions,
		c.turns,
		c.turnRounds,
	)

	return c
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveModelCall records a language model call.
func (c *Collector) ObserveModelCall(provider string, d time.Duration, err error) {
	c.modelCalls.WithLabelValues(provider, result(err == nil)).Inc()
	c.modelLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveAction records a dispatched todo action.
func (c *Collector) ObserveAction(action string, ok bool) {
	c.actions.WithLabelValues(action, result(ok)).Inc()
}

// ObserveTurn records a finished chat turn.
func (c *Collector) ObserveTurn(outcome string, rounds int) {
	c.turns.WithLabelValues(outcome).Inc()
	c.turnRounds.Observe(float64(rounds))
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
