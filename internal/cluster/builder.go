// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

// Package cluster builds the multi-resolution clustering hierarchy over a
// location set and exposes a read-only query index over it.
//
// The hierarchy is a forest stored in a flat arena of immutable Node
// records. Leaves are the original locations at MaxZoom; walking down the
// zoom levels, nearby nodes are greedily merged into parent nodes whose
// centroid is the flow-weighted centroid of their children. Parent IDs
// only ever point at nodes created at a lower zoom, so the structure is
// acyclic by construction and no node is mutated after it is appended.
package cluster

import (
	"fmt"
	"math"
	"time"

	"github.com/flowatlas/flowatlas/internal/geo"
	"github.com/flowatlas/flowatlas/internal/logging"
	"github.com/flowatlas/flowatlas/internal/metrics"
	"github.com/flowatlas/flowatlas/internal/models"
	"github.com/flowatlas/flowatlas/internal/spatial"
)

// Options configures the hierarchy build.
type Options struct {
	// MinZoom is the lowest zoom level to build down to. The build may
	// stop earlier once all locations have collapsed into a single node.
	MinZoom int

	// MaxZoom is the zoom at which every location is its own node.
	MaxZoom int

	// RadiusPx is the screen-space merge radius in pixels: nodes closer
	// than this at a given zoom are merged into one parent.
	RadiusPx float64

	// ExtentPx is the tile extent in pixels the radius is relative to.
	ExtentPx float64
}

// DefaultOptions returns the build options used when a field is zero.
func DefaultOptions() Options {
	return Options{
		MinZoom:  0,
		MaxZoom:  18,
		RadiusPx: 40,
		ExtentPx: 512,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxZoom <= 0 {
		o.MaxZoom = d.MaxZoom
	}
	if o.MinZoom < 0 || o.MinZoom > o.MaxZoom {
		o.MinZoom = d.MinZoom
	}
	if o.RadiusPx <= 0 {
		o.RadiusPx = d.RadiusPx
	}
	if o.ExtentPx <= 0 {
		o.ExtentPx = d.ExtentPx
	}
	return o
}

// Node is one node of the clustering hierarchy. Zoom is the highest zoom
// level at which the node is still shown as a single aggregate; above it
// the node dissolves into its children. Leaf nodes carry the location ID
// as their own ID and have no children.
type Node struct {
	ID       string   `json:"id"`
	ParentID string   `json:"parentId,omitempty"`
	Zoom     int      `json:"zoom"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Name     string   `json:"name"`
	Children []string `json:"childIds,omitempty"`
	Weight   float64  `json:"-"`

	// leaves caches the indices of every original location under this
	// node, filled during the build so ExpandCluster never re-walks.
	leaves []int32
}

// IsCluster reports whether the node aggregates more than one location.
func (n Node) IsCluster() bool {
	return len(n.Children) > 0
}

// NumLocations returns the number of original locations under the node.
func (n Node) NumLocations() int {
	return len(n.leaves)
}

// Build constructs the hierarchy and its query index for the given
// locations. The weight function maps a location ID to its total incident
// flow magnitude; it drives centroid weighting and display-name synthesis.
// A nil weight function treats all locations equally.
//
// An empty location set yields a valid empty index, not an error.
func Build(locations []models.Location, weight func(id string) float64, opts Options) *Index {
	opts = opts.withDefaults()
	start := time.Now()

	idx := &Index{
		locations:    locations,
		locIdxByID:   make(map[string]int32, len(locations)),
		nodeIdxByID:  make(map[string]int32, 2*len(locations)),
		activeByZoom: make(map[int][]int32),
		assignByZoom: make(map[int][]int32),
		minZoom:      opts.MaxZoom,
		maxZoom:      opts.MaxZoom,
	}
	if len(locations) == 0 {
		return idx
	}
	if weight == nil {
		weight = func(string) float64 { return 1 }
	}

	// Leaf nodes, one per location, active at MaxZoom.
	active := make([]int32, len(locations))
	assign := make([]int32, len(locations))
	for i, loc := range locations {
		n := Node{
			ID:     loc.ID,
			Zoom:   opts.MaxZoom,
			Lat:    loc.Lat,
			Lon:    loc.Lon,
			Name:   loc.DisplayName(),
			Weight: weight(loc.ID),
			leaves: []int32{int32(i)},
		}
		idx.nodes = append(idx.nodes, n)
		idx.locIdxByID[loc.ID] = int32(i)
		idx.nodeIdxByID[loc.ID] = int32(i)
		active[i] = int32(i)
		assign[i] = int32(i)
	}
	idx.activeByZoom[opts.MaxZoom] = active
	idx.assignByZoom[opts.MaxZoom] = assign

	for z := opts.MaxZoom - 1; z >= opts.MinZoom; z-- {
		active = idx.mergeLevel(active, z, opts)

		assign = make([]int32, len(locations))
		for _, nodeIdx := range active {
			for _, leaf := range idx.nodes[nodeIdx].leaves {
				assign[leaf] = nodeIdx
			}
		}
		idx.activeByZoom[z] = active
		idx.assignByZoom[z] = assign
		idx.minZoom = z

		if len(active) == 1 {
			break
		}
	}

	idx.fillMinZoomByLocation()

	metrics.HierarchyBuildDuration.Observe(time.Since(start).Seconds())
	logging.Debug().
		Int("locations", len(locations)).
		Int("nodes", len(idx.nodes)).
		Int("min_zoom", idx.minZoom).
		Int("max_zoom", idx.maxZoom).
		Dur("took", time.Since(start)).
		Msg("Clustering hierarchy built")

	return idx
}

// mergeLevel merges the active node set of zoom z+1 down to zoom z and
// returns the new active set. Nodes whose projected separation is below
// the merge radius form one parent; nodes with no neighbor in range are
// carried down unchanged.
func (idx *Index) mergeLevel(active []int32, z int, opts Options) []int32 {
	// Merge radius in normalized world units at this zoom.
	radius := opts.RadiusPx / (opts.ExtentPx * math.Pow(2, float64(z)))

	points := make([]spatial.Point, len(active))
	posByID := make(map[string]int, len(active))
	for pos, nodeIdx := range active {
		n := idx.nodes[nodeIdx]
		points[pos] = spatial.Point{
			X:  geo.ProjectX(n.Lon),
			Y:  geo.ProjectY(n.Lat),
			ID: n.ID,
		}
		posByID[n.ID] = pos
	}
	levelIndex := spatial.NewIndex(points)

	processed := make([]bool, len(active))
	newActive := make([]int32, 0, len(active))
	seq := 0

	// Greedy agglomeration in first-encountered order. Tie-breaks are
	// therefore build-order dependent, which is documented as cosmetic.
	for pos, nodeIdx := range active {
		if processed[pos] {
			continue
		}
		processed[pos] = true
		p := points[pos]

		var memberPos []int
		for _, cand := range levelIndex.Range(p.X-radius, p.Y-radius, p.X+radius, p.Y+radius) {
			cpos := posByID[cand.ID]
			if processed[cpos] {
				continue
			}
			dx := cand.X - p.X
			dy := cand.Y - p.Y
			if dx*dx+dy*dy <= radius*radius {
				memberPos = append(memberPos, cpos)
			}
		}

		if len(memberPos) == 0 {
			newActive = append(newActive, nodeIdx)
			continue
		}

		members := make([]int32, 0, len(memberPos)+1)
		members = append(members, nodeIdx)
		for _, mp := range memberPos {
			processed[mp] = true
			members = append(members, active[mp])
		}

		parentIdx := idx.appendParent(members, z, seq)
		seq++
		newActive = append(newActive, parentIdx)
	}

	return newActive
}

// appendParent creates the parent node for the given member arena indices
// at zoom z and records it in the arena and lookup maps. The parent's
// centroid, weight, leaf list, and display name are all computed here, as
// part of construction; nodes are never touched again afterwards.
func (idx *Index) appendParent(members []int32, z, seq int) int32 {
	id := fmt.Sprintf("{%d:%d}", z, seq)

	var sumW, sumLat, sumLon float64
	var leaves []int32
	children := make([]string, len(members))
	for i, m := range members {
		child := idx.nodes[m]
		children[i] = child.ID
		w := child.Weight
		if w < 0 {
			w = -w
		}
		sumW += w
		sumLat += child.Lat * w
		sumLon += child.Lon * w
		leaves = append(leaves, child.leaves...)
	}

	var lat, lon float64
	if sumW > 0 {
		lat = sumLat / sumW
		lon = sumLon / sumW
	} else {
		for _, m := range members {
			lat += idx.nodes[m].Lat
			lon += idx.nodes[m].Lon
		}
		lat /= float64(len(members))
		lon /= float64(len(members))
	}

	var totalW float64
	for _, m := range members {
		totalW += idx.nodes[m].Weight
	}

	parentIdx := int32(len(idx.nodes))
	idx.nodes = append(idx.nodes, Node{
		ID:       id,
		Zoom:     z,
		Lat:      lat,
		Lon:      lon,
		Name:     idx.clusterName(leaves),
		Children: children,
		Weight:   totalW,
		leaves:   leaves,
	})
	idx.nodeIdxByID[id] = parentIdx

	// Parent links point from already-built children up to the new node.
	for _, m := range members {
		idx.nodes[m].ParentID = id
	}

	return parentIdx
}

// clusterName synthesizes the display name from the heaviest leaf under
// the cluster: "<name> and <N> others". Ties between equally heavy leaves
// go to the first-encountered one.
func (idx *Index) clusterName(leaves []int32) string {
	top := leaves[0]
	for _, leaf := range leaves[1:] {
		if idx.nodes[leaf].Weight > idx.nodes[top].Weight {
			top = leaf
		}
	}
	return fmt.Sprintf("%s and %d others", idx.nodes[top].Name, len(leaves)-1)
}

// fillMinZoomByLocation computes, for every location, the lowest zoom at
// which it is still an independent (unmerged) node. At and below the zoom
// where its first ancestor cluster forms, the location is only visible
// inside that ancestor.
func (idx *Index) fillMinZoomByLocation() {
	idx.minZoomByLoc = make(map[string]int, len(idx.locations))
	for i, loc := range idx.locations {
		minZ := idx.maxZoom
		for z := idx.maxZoom; z >= idx.minZoom; z-- {
			if idx.assignByZoom[z][i] == int32(i) {
				minZ = z
			} else {
				break
			}
		}
		idx.minZoomByLoc[loc.ID] = minZ
	}
}
