// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes the handful of prometheus series the core cares
// about: queue depth, download throughput, and search latency.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector wraps the registered series as typed fields, so call sites
// don't pass label strings around.
type Collector struct {
	QueueDepth       prometheus.Gauge
	DownloadsActive  prometheus.Gauge
	DownloadBytes    *prometheus.CounterVec
	DownloadSpeed    prometheus.Histogram
	SearchDuration   *prometheus.HistogramVec
	SearchResults    prometheus.Histogram
}

// NewCollector builds a Collector and registers every series on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kapowarr",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Number of entries currently in the download queue.",
		}),
		DownloadsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kapowarr",
			Subsystem: "queue",
			Name:      "downloads_active",
			Help:      "Number of downloads currently in progress.",
		}),
		DownloadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kapowarr",
			Subsystem: "download",
			Name:      "bytes_total",
			Help:      "Total bytes downloaded, by source kind.",
		}, []string{"source_kind"}),
		DownloadSpeed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kapowarr",
			Subsystem: "download",
			Name:      "speed_bytes_per_second",
			Help:      "Observed download speed in bytes per second.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kapowarr",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Aggregator search latency, by search kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"search_kind"}),
		SearchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kapowarr",
			Subsystem: "search",
			Name:      "results_count",
			Help:      "Number of results returned per search.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}

	reg.MustRegister(c.QueueDepth, c.DownloadsActive, c.DownloadBytes, c.DownloadSpeed,
		c.SearchDuration, c.SearchResults)
	return c
}
