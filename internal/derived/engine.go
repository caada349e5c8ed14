// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

// Package derived evaluates renderer-ready views from a dataset and a
// view state. The evaluation is organized as a pull-based graph: each
// intermediate result (cluster zoom, node set, spatial index, aggregated
// flows, filtered flows, totals, extents) is computed from declared
// inputs only, and the expensive stages are memoized under canonical
// keys of those inputs, so repeated pulls with unchanged inputs reuse
// earlier results instead of recomputing them.
package derived

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flowatlas/flowatlas/internal/cache"
	"github.com/flowatlas/flowatlas/internal/cluster"
	"github.com/flowatlas/flowatlas/internal/flow"
	"github.com/flowatlas/flowatlas/internal/geo"
	"github.com/flowatlas/flowatlas/internal/ingest"
	"github.com/flowatlas/flowatlas/internal/metrics"
	"github.com/flowatlas/flowatlas/internal/models"
	"github.com/flowatlas/flowatlas/internal/spatial"
)

// Options control engine construction and evaluation.
type Options struct {
	// Cluster configures the hierarchy build.
	Cluster cluster.Options

	// MaxTopFlows caps the number of flows returned in a View, keeping
	// the heaviest ones. Defaults to 5000.
	MaxTopFlows int

	// ViewportPadPx expands the viewport cull rectangle on every side so
	// flows just off screen are still drawn while panning.
	ViewportPadPx int

	// ViewCacheSize bounds the memoized view cache. Defaults to 128.
	ViewCacheSize int

	// ViewCacheTTL expires memoized views; zero disables expiry.
	ViewCacheTTL time.Duration
}

// DefaultOptions returns the options used when a field is zero.
func DefaultOptions() Options {
	return Options{
		Cluster:       cluster.DefaultOptions(),
		MaxTopFlows:   5000,
		ViewportPadPx: 64,
		ViewCacheSize: 128,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxTopFlows <= 0 {
		o.MaxTopFlows = d.MaxTopFlows
	}
	if o.ViewportPadPx < 0 {
		o.ViewportPadPx = 0
	}
	if o.ViewCacheSize <= 0 {
		o.ViewCacheSize = d.ViewCacheSize
	}
	return o
}

// Engine ties the cluster index, spatial indexes, flow aggregator, and
// time resolver for one dataset into a single object. All per-dataset
// state is immutable after construction; the memo caches are the only
// mutable state and are safe for concurrent use, so one Engine can serve
// many requests.
type Engine struct {
	opts    Options
	dataset *ingest.Dataset

	index       *cluster.Index
	agg         *flow.Aggregator
	granularity flow.Granularity
	timeExtent  *TimeRange
	diffMode    bool
	searchItems []SearchItem

	mu            sync.Mutex
	spatialByZoom map[int]*spatial.Index

	aggMemo  *cache.LRU[string, []models.AggregatedFlow]
	viewMemo *cache.LRU[string, *View]
}

// NewEngine builds the clustering hierarchy and supporting indexes for
// the dataset. Construction is the expensive step; View calls afterwards
// are cheap pulls against memoized selectors.
func NewEngine(ds *ingest.Dataset, opts Options) *Engine {
	opts = opts.withDefaults()

	weights := flow.LocationWeights(ds.Flows)
	index := cluster.Build(ds.Locations, func(id string) float64 {
		return weights[id]
	}, opts.Cluster)

	e := &Engine{
		opts:          opts,
		dataset:       ds,
		index:         index,
		agg:           flow.NewAggregator(index),
		granularity:   flow.ResolveGranularity(ds.Flows),
		spatialByZoom: make(map[int]*spatial.Index),
		aggMemo:       cache.NewLRU[string, []models.AggregatedFlow](opts.ViewCacheSize, opts.ViewCacheTTL),
		viewMemo:      cache.NewLRU[string, *View](opts.ViewCacheSize, opts.ViewCacheTTL),
	}

	if start, end, ok := flow.TimeExtent(ds.Flows); ok {
		e.timeExtent = &TimeRange{Start: start, End: end}
	}
	for _, f := range ds.Flows {
		if f.Count < 0 {
			e.diffMode = true
			break
		}
	}
	e.searchItems = buildSearchItems(ds.Locations)

	metrics.DatasetLocations.WithLabelValues(ds.ID).Set(float64(len(ds.Locations)))
	metrics.DatasetFlows.WithLabelValues(ds.ID).Set(float64(len(ds.Flows)))
	return e
}

// Dataset returns the dataset the engine was built from.
func (e *Engine) Dataset() *ingest.Dataset { return e.dataset }

// ClusterIndex exposes the hierarchy for cluster expansion lookups.
func (e *Engine) ClusterIndex() *cluster.Index { return e.index }

// AvailableClusterZoomLevels lists the zooms a view can resolve to.
func (e *Engine) AvailableClusterZoomLevels() []int {
	return e.index.AvailableZoomLevels()
}

// Granularity returns the resolved time granularity of the dataset.
func (e *Engine) Granularity() flow.Granularity { return e.granularity }

// SearchItems returns the dataset's search-box entries, sorted by
// display name.
func (e *Engine) SearchItems() []SearchItem { return e.searchItems }

// View evaluates the derived view for the given state. Equal states
// (after canonicalization) return the memoized view; callers must treat
// the result as read-only.
func (e *Engine) View(state ViewState) *View {
	timer := prometheus.NewTimer(metrics.ViewEvalDuration)
	defer timer.ObserveDuration()

	key := state.key()
	if v, ok := e.viewMemo.Get(key); ok {
		metrics.ViewCacheHits.Inc()
		return v
	}
	metrics.ViewCacheMisses.Inc()

	v := e.evaluate(state)
	e.viewMemo.Add(key, v)
	return v
}

// evaluate runs one full pass of the selector graph against a single
// state snapshot. Every output of the returned View derives from the
// same cluster zoom and the same filtered flow set.
func (e *Engine) evaluate(state ViewState) *View {
	metrics.SelectorRecomputes.WithLabelValues("view").Inc()

	clusterZoom := e.resolveClusterZoom(state)
	nodes := e.index.NodesForZoom(clusterZoom)
	visible := e.visibleIDs(state, clusterZoom, nodes)

	aggregated := e.aggregatedFlows(clusterZoom, state.TimeRange)
	selected := e.selectionAtZoom(state.SelectedIDs, clusterZoom)

	filtered := aggregated
	if len(selected) > 0 {
		filtered = make([]models.AggregatedFlow, 0, len(aggregated))
		for _, f := range aggregated {
			if passesSelection(f, selected, state.FilterMode) {
				filtered = append(filtered, f)
			}
		}
	}

	totals := locationTotals(filtered)

	// Viewport cull keeps flows with at least one visible endpoint; the
	// extent is taken before the top-N cap so capping never rescales.
	culled := filtered
	if visible != nil {
		culled = make([]models.AggregatedFlow, 0, len(filtered))
		for _, f := range filtered {
			if visible[f.Origin] || visible[f.Dest] {
				culled = append(culled, f)
			}
		}
	}

	flowExtentSrc := filtered
	totalsScope := map[string]bool(nil)
	if state.AdaptiveScalesEnabled && visible != nil {
		flowExtentSrc = culled
		totalsScope = visible
	}

	v := &View{
		Locations:                  nodes,
		Flows:                      capFlows(culled, e.opts.MaxTopFlows),
		LocationTotals:             totals,
		FlowMagnitudeExtent:        flowMagnitudeExtent(flowExtentSrc),
		LocationTotalsExtent:       locationTotalsExtent(totals, totalsScope),
		ClusterZoom:                clusterZoom,
		AvailableClusterZoomLevels: e.index.AvailableZoomLevels(),
		TimeGranularity:            e.granularity.String(),
		TimeExtent:                 e.timeExtent,
		DiffMode:                   e.diffMode,
		SearchItems:                e.searchItems,
	}
	return v
}

// resolveClusterZoom picks the hierarchy level a view renders at. A
// manual override wins, otherwise the floored map zoom is used; both are
// clamped to the levels the hierarchy actually has. With clustering off
// the view always renders leaves.
func (e *Engine) resolveClusterZoom(state ViewState) int {
	if e.index.Empty() {
		return 0
	}
	if !state.ClusteringEnabled {
		return e.index.MaxZoom()
	}
	if state.ManualClusterZoom != nil {
		return e.index.ClampZoom(*state.ManualClusterZoom)
	}
	return e.index.ClampZoom(int(math.Floor(state.Zoom)))
}

// visibleIDs returns the set of node IDs inside the padded viewport, or
// nil when the viewport is degenerate and nothing should be culled.
func (e *Engine) visibleIDs(state ViewState, zoom int, nodes []cluster.Node) map[string]bool {
	if state.ViewportWidth <= 0 || state.ViewportHeight <= 0 {
		return nil
	}
	bounds := geo.ViewportBounds(state.CenterLon, state.CenterLat, state.Zoom,
		state.ViewportWidth, state.ViewportHeight, e.opts.ViewportPadPx)

	sidx := e.spatialIndexFor(zoom, nodes)

	// World Y grows southward, so the north edge is the smaller Y.
	pts := sidx.Range(
		geo.ProjectX(bounds.MinLon), geo.ProjectY(bounds.MaxLat),
		geo.ProjectX(bounds.MaxLon), geo.ProjectY(bounds.MinLat),
	)
	visible := make(map[string]bool, len(pts))
	for _, p := range pts {
		visible[p.ID] = true
	}
	return visible
}

// spatialIndexFor lazily builds and caches the per-zoom point index over
// the node set of that zoom. Node positions never change after the
// hierarchy build, so the index is built at most once per zoom.
func (e *Engine) spatialIndexFor(zoom int, nodes []cluster.Node) *spatial.Index {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sidx, ok := e.spatialByZoom[zoom]; ok {
		return sidx
	}
	metrics.SelectorRecomputes.WithLabelValues("spatial_index").Inc()
	timer := prometheus.NewTimer(metrics.SpatialIndexBuildDuration)
	defer timer.ObserveDuration()

	pts := make([]spatial.Point, len(nodes))
	for i, n := range nodes {
		pts[i] = spatial.Point{X: geo.ProjectX(n.Lon), Y: geo.ProjectY(n.Lat), ID: n.ID}
	}
	sidx := spatial.NewIndex(pts)
	e.spatialByZoom[zoom] = sidx
	return sidx
}

// aggregatedFlows memoizes aggregation per (zoom, time range); the rest
// of the state does not affect it.
func (e *Engine) aggregatedFlows(zoom int, tr *TimeRange) []models.AggregatedFlow {
	key := strconv.Itoa(zoom)
	var filter flow.TimeFilter
	if tr != nil {
		key = fmt.Sprintf("%d|%x:%x", zoom, tr.Start.UnixNano(), tr.End.UnixNano())
		filter = flow.TimeRangeFilter(tr.Start, tr.End)
	}
	if flows, ok := e.aggMemo.Get(key); ok {
		return flows
	}
	metrics.SelectorRecomputes.WithLabelValues("aggregate").Inc()
	flows := e.agg.Aggregate(e.dataset.Flows, zoom, filter)
	e.aggMemo.Add(key, flows)
	return flows
}

// selectionAtZoom maps selected IDs to the nodes standing in for them at
// the given zoom. Unknown IDs are dropped. Selecting a location selects
// the cluster currently containing it; selecting a cluster keeps working
// after a zoom change because the ID re-resolves through its leaves.
func (e *Engine) selectionAtZoom(ids []string, zoom int) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		if mapped, ok := e.index.IDForZoom(id, zoom); ok {
			selected[mapped] = true
		}
	}
	if len(selected) == 0 {
		return nil
	}
	return selected
}

func passesSelection(f models.AggregatedFlow, selected map[string]bool, mode models.FilterMode) bool {
	origin, dest := selected[f.Origin], selected[f.Dest]
	switch mode {
	case models.FilterModeBetween:
		return origin && dest
	case models.FilterModeIncoming:
		return dest
	case models.FilterModeOutgoing:
		return origin
	default:
		return origin || dest
	}
}

// locationTotals sums signed counts per endpoint: self-loops accumulate
// into Within, everything else into the origin's Outgoing and the
// destination's Incoming.
func locationTotals(flows []models.AggregatedFlow) map[string]models.LocationTotals {
	totals := make(map[string]models.LocationTotals)
	for _, f := range flows {
		if f.Origin == f.Dest {
			t := totals[f.Origin]
			t.Within += f.Count
			totals[f.Origin] = t
			continue
		}
		o := totals[f.Origin]
		o.Outgoing += f.Count
		totals[f.Origin] = o

		d := totals[f.Dest]
		d.Incoming += f.Count
		totals[f.Dest] = d
	}
	return totals
}

// flowMagnitudeExtent spans |count| over non-self flows.
func flowMagnitudeExtent(flows []models.AggregatedFlow) [2]float64 {
	var ext [2]float64
	first := true
	for _, f := range flows {
		if f.Origin == f.Dest {
			continue
		}
		m := math.Abs(f.Count)
		if first {
			ext[0], ext[1] = m, m
			first = false
			continue
		}
		if m < ext[0] {
			ext[0] = m
		}
		if m > ext[1] {
			ext[1] = m
		}
	}
	return ext
}

// locationTotalsExtent spans the per-node circle magnitude, defined as
// the larger of |incoming + within| and |outgoing + within|. A non-nil
// scope restricts the extent to nodes in it.
func locationTotalsExtent(totals map[string]models.LocationTotals, scope map[string]bool) [2]float64 {
	var ext [2]float64
	first := true
	for id, t := range totals {
		if scope != nil && !scope[id] {
			continue
		}
		m := math.Max(math.Abs(t.Incoming+t.Within), math.Abs(t.Outgoing+t.Within))
		if first {
			ext[0], ext[1] = m, m
			first = false
			continue
		}
		if m < ext[0] {
			ext[0] = m
		}
		if m > ext[1] {
			ext[1] = m
		}
	}
	return ext
}

func capFlows(flows []models.AggregatedFlow, limit int) []models.AggregatedFlow {
	if len(flows) <= limit {
		return flows
	}
	return flows[:limit]
}

func buildSearchItems(locations []models.Location) []SearchItem {
	items := make([]SearchItem, 0, len(locations))
	for _, loc := range locations {
		items = append(items, SearchItem{
			ID:   loc.ID,
			Name: loc.DisplayName(),
			Lat:  loc.Lat,
			Lon:  loc.Lon,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
	return items
}
