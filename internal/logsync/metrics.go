package logsync

import "github.com/prometheus/client_golang/prometheus"

const (
	opLoad   = "load"
	opAdd    = "add"
	opDelete = "delete"
	opClear  = "clear"
)

var (
	remoteCallsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "sync",
		Name:      "remote_calls_total",
		Help:      "Remote collection calls by operation and outcome.",
	}, []string{"op", "outcome"})

	fallbackCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitlog",
		Subsystem: "sync",
		Name:      "local_fallbacks_total",
		Help:      "Operations served by the local store after a remote failure.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(remoteCallsCounter, fallbackCounter)
}

func recordRemote(op string, err error) {
	if err != nil {
		remoteCallsCounter.WithLabelValues(op, "error").Inc()
		fallbackCounter.WithLabelValues(op).Inc()
		return
	}
	remoteCallsCounter.WithLabelValues(op, "ok").Inc()
}
