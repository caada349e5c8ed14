// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

package cluster

import "github.com/flowatlas/flowatlas/internal/models"

// Index is the read-only query layer over a built hierarchy. It is safe
// for concurrent readers; nothing mutates it after Build returns.
type Index struct {
	locations []models.Location

	// nodes is the arena: locations first (arena index == location
	// index), then cluster nodes in creation order.
	nodes []Node

	locIdxByID  map[string]int32
	nodeIdxByID map[string]int32

	// activeByZoom lists the arena indices of the nodes that partition
	// the location set at each built zoom level.
	activeByZoom map[int][]int32

	// assignByZoom maps location index -> covering node arena index.
	assignByZoom map[int][]int32

	minZoomByLoc map[string]int

	minZoom int
	maxZoom int
}

// Empty reports whether the index was built over zero locations.
func (idx *Index) Empty() bool {
	return len(idx.locations) == 0
}

// NumLocations returns the number of locations in the underlying dataset.
func (idx *Index) NumLocations() int {
	return len(idx.locations)
}

// Locations returns the underlying location set. Callers must not modify
// the returned slice.
func (idx *Index) Locations() []models.Location {
	return idx.locations
}

// MinZoom returns the lowest built zoom level.
func (idx *Index) MinZoom() int { return idx.minZoom }

// MaxZoom returns the zoom at which every location is its own node.
func (idx *Index) MaxZoom() int { return idx.maxZoom }

// AvailableZoomLevels returns the built zoom levels in ascending order.
// Empty for an empty index.
func (idx *Index) AvailableZoomLevels() []int {
	if idx.Empty() {
		return nil
	}
	levels := make([]int, 0, idx.maxZoom-idx.minZoom+1)
	for z := idx.minZoom; z <= idx.maxZoom; z++ {
		levels = append(levels, z)
	}
	return levels
}

// ClampZoom snaps an arbitrary zoom into the built range.
func (idx *Index) ClampZoom(zoom int) int {
	if zoom < idx.minZoom {
		return idx.minZoom
	}
	if zoom > idx.maxZoom {
		return idx.maxZoom
	}
	return zoom
}

// ClusterByID looks up any node (leaf or cluster) by its ID.
func (idx *Index) ClusterByID(id string) (Node, bool) {
	i, ok := idx.nodeIdxByID[id]
	if !ok {
		return Node{}, false
	}
	return idx.nodes[i], true
}

// NodesForZoom returns the node set that partitions the location set at
// the given zoom level. The zoom is clamped into the built range. The
// returned slice is freshly allocated; the node records are value copies.
func (idx *Index) NodesForZoom(zoom int) []Node {
	if idx.Empty() {
		return nil
	}
	active := idx.activeByZoom[idx.ClampZoom(zoom)]
	out := make([]Node, len(active))
	for i, nodeIdx := range active {
		out[i] = idx.nodes[nodeIdx]
	}
	return out
}

// ExpandCluster returns every original location under the node with the
// given ID, using the leaf list cached at build time. The result has no
// duplicates regardless of how many zoom levels separate the node from
// its leaves. Unknown IDs yield nil.
func (idx *Index) ExpandCluster(id string) []models.Location {
	i, ok := idx.nodeIdxByID[id]
	if !ok {
		return nil
	}
	leaves := idx.nodes[i].leaves
	out := make([]models.Location, len(leaves))
	for j, leaf := range leaves {
		out[j] = idx.locations[leaf]
	}
	return out
}

// MinZoomForLocation returns the lowest zoom level at which the location
// still appears as an independent node. Above that zoom it is guaranteed
// independent; at lower zooms it is represented only inside an ancestor.
func (idx *Index) MinZoomForLocation(id string) (int, bool) {
	z, ok := idx.minZoomByLoc[id]
	return z, ok
}

// IDForZoom maps a location or cluster-node ID to the ID of the node
// covering it at the given zoom level (the node itself while it is still
// active there). The zoom is clamped into the built range. Unknown IDs
// report false. Feeding already-aggregated IDs back in at the same zoom
// is therefore a fixed point, which makes aggregation idempotent.
func (idx *Index) IDForZoom(id string, zoom int) (string, bool) {
	i, ok := idx.locIdxByID[id]
	if !ok {
		n, isNode := idx.nodeIdxByID[id]
		if !isNode {
			return "", false
		}
		// Any leaf under the node shares the node's covering ancestor.
		i = idx.nodes[n].leaves[0]
	}
	nodeIdx := idx.assignByZoom[idx.ClampZoom(zoom)][i]
	return idx.nodes[nodeIdx].ID, true
}
