// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

// Package spatial provides a static 2D point index with exact rectangular
// range queries, used for viewport culling of locations and cluster nodes.
//
// The index is a kd-tree stored as flat node and point slices addressed by
// int32 indices. It is built once over a fixed point set and is read-only
// afterwards; a changed point set requires building a new index.
package spatial

import (
	"math"
	"sort"
)

// Point is an indexed 2D point. X and Y are normalized world coordinates
// in [0,1] (see the geo package); ID references the location or cluster
// node the point stands for.
type Point struct {
	X, Y float64
	ID   string
}

// node is one kd-tree node. Leaves hold a contiguous run of points
// [start, start+count); interior nodes split the run at the median point.
type node struct {
	start int32
	count int32 // > 0 only for leaves
	left  int32
	right int32
	axis  uint8
}

// Index is a static kd-tree over a fixed point set.
type Index struct {
	nodes    []node
	points   []Point
	leafSize int

	minX, minY float64
	maxX, maxY float64
}

// DefaultLeafSize is the bucket size below which subtrees become leaves.
const DefaultLeafSize = 16

// NewIndex builds an index over the given points. The input slice is
// copied; the caller may reuse it. An empty point set yields a valid,
// empty index.
func NewIndex(points []Point) *Index {
	idx := &Index{
		points:   make([]Point, len(points)),
		leafSize: DefaultLeafSize,
		minX:     math.Inf(1),
		minY:     math.Inf(1),
		maxX:     math.Inf(-1),
		maxY:     math.Inf(-1),
	}
	copy(idx.points, points)

	for _, p := range idx.points {
		idx.minX = math.Min(idx.minX, p.X)
		idx.minY = math.Min(idx.minY, p.Y)
		idx.maxX = math.Max(idx.maxX, p.X)
		idx.maxY = math.Max(idx.maxY, p.Y)
	}

	if len(idx.points) > 0 {
		idx.nodes = make([]node, 0, 2*len(idx.points)/idx.leafSize+1)
		idx.build(0, int32(len(idx.points))-1, 0)
	}
	return idx
}

// build constructs the subtree for points[start..end] (inclusive) and
// returns its node index, or -1 for an empty range.
func (idx *Index) build(start, end int32, depth int) int32 {
	if start > end {
		return -1
	}

	nodeIdx := int32(len(idx.nodes))
	idx.nodes = append(idx.nodes, node{})

	if end-start < int32(idx.leafSize) {
		idx.nodes[nodeIdx] = node{
			start: start,
			count: end - start + 1,
			left:  -1,
			right: -1,
		}
		return nodeIdx
	}

	axis := uint8(depth % 2)
	median := (start + end) / 2
	sortRange(idx.points[start:end+1], axis)

	// Children are built after the slot is reserved, so child indices
	// always point at already-appended nodes.
	left := idx.build(start, median-1, depth+1)
	right := idx.build(median+1, end, depth+1)

	idx.nodes[nodeIdx] = node{
		start: median,
		count: 0,
		left:  left,
		right: right,
		axis:  axis,
	}
	return nodeIdx
}

func sortRange(points []Point, axis uint8) {
	if axis == 0 {
		sort.Slice(points, func(i, j int) bool { return points[i].X < points[j].X })
	} else {
		sort.Slice(points, func(i, j int) bool { return points[i].Y < points[j].Y })
	}
}

// Len returns the number of indexed points.
func (idx *Index) Len() int {
	return len(idx.points)
}

// Range returns every indexed point whose coordinate lies within the
// rectangle, edges included. The rectangle may be degenerate (min == max).
// The test is exact: no false positives and no false negatives.
func (idx *Index) Range(minX, minY, maxX, maxY float64) []Point {
	if len(idx.points) == 0 || minX > maxX || minY > maxY {
		return nil
	}
	// Whole-extent queries skip the tree walk.
	if minX <= idx.minX && minY <= idx.minY && maxX >= idx.maxX && maxY >= idx.maxY {
		out := make([]Point, len(idx.points))
		copy(out, idx.points)
		return out
	}

	var out []Point
	idx.rangeSearch(0, minX, minY, maxX, maxY, &out)
	return out
}

func (idx *Index) rangeSearch(nodeIdx int32, minX, minY, maxX, maxY float64, out *[]Point) {
	if nodeIdx < 0 {
		return
	}
	n := idx.nodes[nodeIdx]

	if n.count > 0 {
		for _, p := range idx.points[n.start : n.start+n.count] {
			if p.X >= minX && p.X <= maxX && p.Y >= minY && p.Y <= maxY {
				*out = append(*out, p)
			}
		}
		return
	}

	median := idx.points[n.start]
	if median.X >= minX && median.X <= maxX && median.Y >= minY && median.Y <= maxY {
		*out = append(*out, median)
	}

	var splitVal, lo, hi float64
	if n.axis == 0 {
		splitVal, lo, hi = median.X, minX, maxX
	} else {
		splitVal, lo, hi = median.Y, minY, maxY
	}

	if lo <= splitVal {
		idx.rangeSearch(n.left, minX, minY, maxX, maxY, out)
	}
	if hi >= splitVal {
		idx.rangeSearch(n.right, minX, minY, maxX, maxY, out)
	}
}
