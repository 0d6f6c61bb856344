// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "phantomclip_retention_sweeps_total",
		Help: "Completed retention sweeps",
	})

	sweptFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "phantomclip_retention_files_total",
		Help: "Files visited by the retention sweeper by result (removed, skipped, failed)",
	}, []string{"result"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "phantomclip_retention_sweep_duration_seconds",
		Help:    "Duration of a retention sweep",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})

	lastSweepTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "phantomclip_retention_last_sweep_timestamp_seconds",
		Help: "Unix time of the last completed retention sweep",
	})

	storedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "phantomclip_storage_files",
		Help: "Files present in the storage directory after the last sweep",
	})
)

// RecordSweep records the outcome of one retention sweep.
func RecordSweep(removed, skipped, failed, remaining int, took time.Duration, at time.Time) {
	sweepsTotal.Inc()
	sweptFilesTotal.WithLabelValues("removed").Add(float64(removed))
	sweptFilesTotal.WithLabelValues("skipped").Add(float64(skipped))
	sweptFilesTotal.WithLabelValues("failed").Add(float64(failed))
	sweepDuration.Observe(took.Seconds())
	lastSweepTimestamp.Set(float64(at.Unix()))
	storedFiles.Set(float64(remaining))
}
