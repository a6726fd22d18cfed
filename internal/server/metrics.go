package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "arxiv_relay",
	Name:      "actions_total",
	Help:      "Envelope actions served, by action name.",
}, []string{"action"})

var dispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "arxiv_relay",
	Name:      "dispatches_total",
	Help:      "Workflow dispatches attempted, by outcome.",
}, []string{"outcome"})

var pollTransientTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "arxiv_relay",
	Name:      "poll_transient_errors_total",
	Help:      "Status polls that degraded to found=false on a transient error.",
})

func observeAction(action string) {
	actionsTotal.WithLabelValues(action).Inc()
}

func observeDispatch(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	dispatchesTotal.WithLabelValues(outcome).Inc()
}
