// Package metrics exposes the bot's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BrokerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alpacabot_broker_requests_total",
		Help: "Broker API calls by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	BrokerRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alpacabot_broker_retries_total",
		Help: "Retry attempts against the broker API.",
	})

	ArmedWatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alpacabot_armed_watches",
		Help: "Currently armed price trigger watches.",
	})

	WatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alpacabot_watch_outcomes_total",
		Help: "Terminal watch outcomes (fired, expired, cancelled).",
	}, []string{"outcome"})

	SignalsParsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alpacabot_signals_parsed_total",
		Help: "Parsed signals by parser (regex, ai) and result (hit, miss).",
	}, []string{"parser", "result"})

	Executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alpacabot_executions_total",
		Help: "Trigger executions by outcome (filled, skipped, error).",
	}, []string{"outcome"})

	ExitsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alpacabot_exits_reconciled_total",
		Help: "Closed sell orders reconciled by exit reason.",
	}, []string{"reason"})
)
