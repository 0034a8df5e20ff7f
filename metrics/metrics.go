// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "election_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by route pattern and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	TallyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "election_tally_duration_seconds",
			Help:    "Time to compute one zone tally, by view.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"view"},
	)

	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "election_merges_total",
			Help: "Offline merge calls, by outcome (merged, already_satisfied, denied, unavailable, error).",
		},
		[]string{"outcome"},
	)

	BallotsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "election_offline_ballots_merged_total",
			Help: "Offline ballots flipped to merged.",
		},
	)

	MergeRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "election_merge_retries_total",
			Help: "Merge transactions retried after transient contention.",
		},
	)

	ChallengeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "election_declaration_challenge_transitions_total",
			Help: "Declaration challenge state changes, by target state.",
		},
		[]string{"state"},
	)

	CodeSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "election_declaration_code_submissions_total",
			Help: "One-time code submissions, by principal and outcome.",
		},
		[]string{"principal", "outcome"},
	)

	GateActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "election_declaration_gate_actions_total",
			Help: "Declare/revoke calls, by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	SweptRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "election_declaration_swept_rows_total",
			Help: "Expired codes, tokens and challenges removed by the sweeper.",
		},
	)
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
