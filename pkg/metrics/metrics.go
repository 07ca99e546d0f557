package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	slideconv = "slideconv"

	// Pipeline metrics
	jobsReceivedTotal = "jobs_received_total"
	jobsFinishedTotal = "jobs_finished_total"

	// Gate metrics
	gateDecisionsTotal = "gate_decisions_total"

	// Labels
	jobOutcomeLabel   = "outcome"
	gateDecisionLabel = "decision"
)

var jobsFinishedTotalLabels = []string{
	jobOutcomeLabel,
}

var gateDecisionsTotalLabels = []string{
	gateDecisionLabel,
}

/**
* Metrics definition
**/
var jobsReceivedTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: slideconv,
		Name:      jobsReceivedTotal,
		Help:      "number of conversion jobs received from the queue",
	},
)

var jobsFinishedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: slideconv,
		Name:      jobsFinishedTotal,
		Help:      "number of conversion jobs finished, by terminal outcome",
	},
	jobsFinishedTotalLabels,
)

var gateDecisionsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: slideconv,
		Name:      gateDecisionsTotal,
		Help:      "number of retrieval requests decided by the access gate",
	},
	gateDecisionsTotalLabels,
)

func IncreaseJobsReceivedTotalMetric() {
	jobsReceivedTotalMetric.Inc()
}

func IncreaseJobsFinishedTotalMetric(outcome string) {
	labels := prometheus.Labels{
		jobOutcomeLabel: outcome,
	}
	jobsFinishedTotalMetric.With(labels).Inc()
}

func IncreaseGateDecisionsTotalMetric(decision string) {
	labels := prometheus.Labels{
		gateDecisionLabel: decision,
	}
	gateDecisionsTotalMetric.With(labels).Inc()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsReceivedTotalMetric)
	prometheus.MustRegister(jobsFinishedTotalMetric)
	prometheus.MustRegister(gateDecisionsTotalMetric)
}
