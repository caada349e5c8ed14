// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

// Package metrics exposes Prometheus instrumentation for the derived-data
// pipeline: hierarchy builds, spatial queries, view evaluation, cache
// efficiency, and API traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Hierarchy / index build metrics

	HierarchyBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowatlas_hierarchy_build_duration_seconds",
			Help:    "Duration of clustering hierarchy builds in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SpatialIndexBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowatlas_spatial_index_build_duration_seconds",
			Help:    "Duration of spatial index builds in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DatasetLocations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowatlas_dataset_locations",
			Help: "Number of working-set locations per dataset",
		},
		[]string{"dataset"},
	)

	DatasetFlows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flowatlas_dataset_flows",
			Help: "Number of working-set flows per dataset",
		},
		[]string{"dataset"},
	)

	// Ingestion metrics

	IngestExcludedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowatlas_ingest_excluded_rows_total",
			Help: "Rows excluded during ingestion by reason",
		},
		[]string{"reason"}, // "invalid_coordinates", "unknown_endpoint"
	)

	IngestDuplicateRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowatlas_ingest_duplicate_rows_total",
			Help: "Raw flow rows merged into an existing flow during ingestion",
		},
	)

	// Derived view metrics

	ViewEvalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowatlas_view_eval_duration_seconds",
			Help:    "Duration of full derived-view evaluations in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	ViewCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowatlas_view_cache_hits_total",
			Help: "Derived views served from the view memo",
		},
	)

	ViewCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowatlas_view_cache_misses_total",
			Help: "Derived views that required a full evaluation",
		},
	)

	SelectorRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowatlas_selector_recomputes_total",
			Help: "Recomputations per selector node of the derived-view graph",
		},
		[]string{"selector"},
	)

	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowatlas_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flowatlas_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)
