// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

package derived

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/flowatlas/flowatlas/internal/cluster"
	"github.com/flowatlas/flowatlas/internal/models"
)

// TimeRange is a closed interval of timestamps.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ViewState is one immutable snapshot of the UI state a derived view is
// computed from. A View is always evaluated against a single ViewState
// value, never against live mutable state, so every output in a View is
// consistent with every other.
type ViewState struct {
	// Viewport geometry.
	ViewportWidth  int
	ViewportHeight int
	CenterLon      float64
	CenterLat      float64
	Zoom           float64

	// Clustering controls.
	ClusteringEnabled bool

	// ManualClusterZoom overrides the viewport-derived cluster zoom when
	// non-nil; it is clamped to the available levels.
	ManualClusterZoom *int

	// Selection and filtering.
	SelectedIDs []string
	FilterMode  models.FilterMode
	TimeRange   *TimeRange

	// AdaptiveScalesEnabled restricts the magnitude extents to flows
	// touching the currently visible node set.
	AdaptiveScalesEnabled bool
}

// key canonicalizes the state into a memoization key. Selection order is
// irrelevant to the result, so selected IDs are sorted before encoding;
// two states with equal keys always produce equal views.
func (s ViewState) key() string {
	var b strings.Builder
	b.Grow(128)

	writeInt := func(v int) {
		b.WriteString(strconv.Itoa(v))
		b.WriteByte('|')
	}
	writeFloat := func(v float64) {
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte('|')
	}

	writeInt(s.ViewportWidth)
	writeInt(s.ViewportHeight)
	writeFloat(s.CenterLon)
	writeFloat(s.CenterLat)
	writeFloat(s.Zoom)
	b.WriteString(strconv.FormatBool(s.ClusteringEnabled))
	b.WriteByte('|')
	if s.ManualClusterZoom != nil {
		writeInt(*s.ManualClusterZoom)
	} else {
		b.WriteString("-|")
	}

	selected := append([]string(nil), s.SelectedIDs...)
	sort.Strings(selected)
	b.WriteString(strings.Join(selected, ","))
	b.WriteByte('|')
	b.WriteString(string(s.FilterMode))
	b.WriteByte('|')
	if s.TimeRange != nil {
		b.WriteString(strconv.FormatInt(s.TimeRange.Start.UnixNano(), 16))
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(s.TimeRange.End.UnixNano(), 16))
	}
	b.WriteByte('|')
	b.WriteString(strconv.FormatBool(s.AdaptiveScalesEnabled))
	return b.String()
}

// SearchItem is one entry for the renderer's search box.
type SearchItem struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// View is the renderer-ready derived tuple. All fields are derived from
// one ViewState in one evaluation pass: locations, flows, totals, and
// extents never mix zoom levels.
type View struct {
	// Locations is the node set for the resolved cluster zoom. It is the
	// full zoom-level set, not viewport-culled: flows are culled to the
	// viewport, and a visible flow may need an off-screen endpoint.
	Locations []cluster.Node `json:"locations"`

	// Flows is the aggregated, filtered, viewport-culled flow set,
	// capped to the configured display limit, in descending magnitude.
	Flows []models.AggregatedFlow `json:"flows"`

	LocationTotals map[string]models.LocationTotals `json:"locationTotals"`

	// FlowMagnitudeExtent is the [min, max] of |count| over the filtered
	// non-self flows; zeros when no flow passes.
	FlowMagnitudeExtent [2]float64 `json:"flowMagnitudeExtent"`

	// LocationTotalsExtent is the [min, max] per-node circle magnitude,
	// where a node's magnitude is max(|in + within|, |out + within|).
	LocationTotalsExtent [2]float64 `json:"locationTotalsExtent"`

	ClusterZoom                int    `json:"clusterZoom"`
	AvailableClusterZoomLevels []int  `json:"availableClusterZoomLevels"`
	TimeGranularity            string `json:"timeGranularity"`

	// TimeExtent spans the dataset's timestamps; nil without timestamps.
	TimeExtent *TimeRange `json:"timeExtent,omitempty"`

	// DiffMode is set when any flow carries a negative count.
	DiffMode bool `json:"diffMode"`

	SearchItems []SearchItem `json:"searchItems"`
}
