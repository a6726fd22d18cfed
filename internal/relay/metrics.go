package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var tokensTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "arxiv_relay",
	Subsystem: "relay",
	Name:      "tokens_total",
	Help:      "Token events emitted to clients.",
})

var fallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "arxiv_relay",
	Subsystem: "relay",
	Name:      "fallbacks_total",
	Help:      "Zero-token streams retried as non-streaming completions.",
})
