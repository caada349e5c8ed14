// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

// Package flow collapses raw flows onto the node set valid at a target
// zoom level and resolves the time granularity of a flow set.
package flow

import (
	"math"
	"sort"
	"time"

	"github.com/flowatlas/flowatlas/internal/cluster"
	"github.com/flowatlas/flowatlas/internal/models"
)

// TimeFilter reports whether a flow passes a time restriction. A nil
// TimeFilter passes everything.
type TimeFilter func(f *models.Flow) bool

// TimeRangeFilter returns a TimeFilter passing flows whose timestamp lies
// within [start, end]. Flows without a timestamp are excluded, matching
// the semantics of a user-selected time range.
func TimeRangeFilter(start, end time.Time) TimeFilter {
	return func(f *models.Flow) bool {
		if f.Time == nil {
			return false
		}
		return !f.Time.Before(start) && !f.Time.After(end)
	}
}

// Aggregator collapses flows via a cluster index. The zero value is not
// usable; construct with NewAggregator.
type Aggregator struct {
	index *cluster.Index
}

// NewAggregator creates an aggregator mapping flow endpoints through the
// given cluster index.
func NewAggregator(index *cluster.Index) *Aggregator {
	return &Aggregator{index: index}
}

// Aggregate groups flows by their (origin, dest) endpoints mapped to the
// node set at the given zoom, summing counts. Self-mapped pairs are
// retained as "within" flows. A non-nil filter drops flows before
// grouping (used for time-range restriction).
//
// Rules, in order:
//   - flows with an endpoint unknown to the index are skipped (the
//     ingestion boundary has already reported them);
//   - non-finite counts contribute zero, never NaN;
//   - color carries over per group as first non-empty encountered;
//   - output is sorted by descending |count|, stable in encounter order,
//     so equal magnitudes keep their relative input order.
//
// Conservation holds by construction: every resolvable count is added to
// exactly one group, so the total at any zoom equals the raw total.
func (a *Aggregator) Aggregate(flows []models.Flow, zoom int, filter TimeFilter) []models.AggregatedFlow {
	type group struct {
		order int
		flow  models.AggregatedFlow
	}
	groups := make(map[[2]string]*group)

	for i := range flows {
		f := &flows[i]
		if filter != nil && !filter(f) {
			continue
		}

		origin, ok := a.index.IDForZoom(f.Origin, zoom)
		if !ok {
			continue
		}
		dest, ok := a.index.IDForZoom(f.Dest, zoom)
		if !ok {
			continue
		}

		count := f.Count
		if math.IsNaN(count) || math.IsInf(count, 0) {
			count = 0
		}

		key := [2]string{origin, dest}
		g, exists := groups[key]
		if !exists {
			g = &group{
				order: len(groups),
				flow:  models.AggregatedFlow{Origin: origin, Dest: dest},
			}
			groups[key] = g
		}
		g.flow.Count += count
		if g.flow.Color == "" {
			g.flow.Color = f.Color
		}
	}

	out := make([]models.AggregatedFlow, 0, len(groups))
	orders := make(map[[2]string]int, len(groups))
	for key, g := range groups {
		out = append(out, g.flow)
		orders[key] = g.order
	}

	// Encounter order first, then a stable sort by descending magnitude,
	// so ties keep their input order.
	sort.Slice(out, func(i, j int) bool {
		return orders[[2]string{out[i].Origin, out[i].Dest}] < orders[[2]string{out[j].Origin, out[j].Dest}]
	})
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Count) > math.Abs(out[j].Count)
	})
	return out
}

// LocationWeights sums the absolute incident flow magnitude per location
// ID. Both endpoints of a flow receive its magnitude; self-loops count
// once. Non-finite counts contribute zero. This is the weight function
// fed into the hierarchy builder.
func LocationWeights(flows []models.Flow) map[string]float64 {
	weights := make(map[string]float64)
	for i := range flows {
		count := flows[i].Count
		if math.IsNaN(count) || math.IsInf(count, 0) {
			continue
		}
		mag := math.Abs(count)
		weights[flows[i].Origin] += mag
		if flows[i].Dest != flows[i].Origin {
			weights[flows[i].Dest] += mag
		}
	}
	return weights
}
