package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Messages handed to the transport and accepted, per feature
	messagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_messages_sent_total",
			Help: "Total number of SMS messages sent (or simulated in dry-run)",
		},
		[]string{"feature"},
	)

	// Transport failures, per feature
	messagesFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_messages_failed_total",
			Help: "Total number of SMS sends rejected by the gateway",
		},
		[]string{"feature"},
	)

	// Candidates excluded before sending, per feature and skip reason
	candidatesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_candidates_skipped_total",
			Help: "Total number of candidates skipped by the eligibility pipeline",
		},
		[]string{"feature", "reason"},
	)

	// Completed pipeline runs, per feature and result (finished|aborted)
	jobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_job_runs_total",
			Help: "Total number of pipeline runs by terminal state",
		},
		[]string{"feature", "result"},
	)
)
