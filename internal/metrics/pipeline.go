// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phantomclip_jobs_total",
		Help: "Clip jobs by terminal outcome",
	}, []string{"platform", "outcome"})

	jobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "phantomclip_jobs_in_flight",
		Help: "Clip jobs currently between Created and a terminal state",
	})

	stateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phantomclip_job_transitions_total",
		Help: "Job state transitions",
	}, []string{"from", "to"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "phantomclip_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
	}, []string{"stage", "result"})

	stageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phantomclip_stage_errors_total",
		Help: "Pipeline failures by stage and error code",
	}, []string{"stage", "code"})

	fetchBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phantomclip_fetch_bytes_total",
		Help: "Bytes persisted by the fetcher",
	})

	transformBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "phantomclip_transform_bytes",
		Help:    "Size of transform inputs and outputs",
		Buckets: prometheus.ExponentialBuckets(64<<10, 4, 9), // 64KiB to ~4GiB
	}, []string{"direction"})

	resolverRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phantomclip_resolver_requests_total",
		Help: "Resolver lookups by platform and outcome (hit, miss, error, shared)",
	}, []string{"platform", "outcome"})

	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phantomclip_publish_total",
		Help: "Publish attempts by sink and outcome",
	}, []string{"sink", "outcome"})

	procSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phantomclip_proc_signals_total",
		Help: "Signals sent to media tool process groups",
	}, []string{"signal", "result"})
)

// JobStarted marks a job as in flight.
func JobStarted() { jobsInFlight.Inc() }

// JobFinished records a terminal outcome ("ready", "delivered" or "failed") and clears the
// in-flight mark.
func JobFinished(platform, outcome string) {
	jobsInFlight.Dec()
	jobsTotal.WithLabelValues(labelOrUnknown(platform), outcome).Inc()
}

func IncTransition(from, to string) { stateTransitionsTotal.WithLabelValues(from, to).Inc() }

// ObserveStage records how long a stage took. result is "ok" or "error".
func ObserveStage(stage, result string, seconds float64) {
	stageDuration.WithLabelValues(stage, result).Observe(seconds)
}

func IncStageError(stage, code string) { stageErrorsTotal.WithLabelValues(stage, code).Inc() }

func AddFetchBytes(n int64) {
	if n > 0 {
		fetchBytesTotal.Add(float64(n))
	}
}

// ObserveTransformBytes records input and output sizes of a successful transform.
func ObserveTransformBytes(in, out int64) {
	transformBytes.WithLabelValues("in").Observe(float64(in))
	transformBytes.WithLabelValues("out").Observe(float64(out))
}

func IncResolver(platform, outcome string) {
	resolverRequestsTotal.WithLabelValues(labelOrUnknown(platform), outcome).Inc()
}

func IncPublish(sink, outcome string) { publishTotal.WithLabelValues(sink, outcome).Inc() }

func IncProcSignal(signal, result string) { procSignalsTotal.WithLabelValues(signal, result).Inc() }

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
