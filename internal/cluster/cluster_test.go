// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

package cluster

import (
	"fmt"
	"testing"

	"github.com/flowatlas/flowatlas/internal/models"
)

// testLocations is the reference scenario: A and B nearly co-located,
// C far away.
func testLocations() []models.Location {
	return []models.Location{
		{ID: "A", Lat: 0, Lon: 0},
		{ID: "B", Lat: 0, Lon: 0.001},
		{ID: "C", Lat: 50, Lon: 50},
	}
}

func testWeights() func(string) float64 {
	w := map[string]float64{"A": 16, "B": 15, "C": 1}
	return func(id string) float64 { return w[id] }
}

func TestBuildEmpty(t *testing.T) {
	idx := Build(nil, nil, Options{})
	if !idx.Empty() {
		t.Fatal("index over zero locations should be empty")
	}
	if levels := idx.AvailableZoomLevels(); levels != nil {
		t.Errorf("empty index zoom levels = %v, want nil", levels)
	}
	if nodes := idx.NodesForZoom(5); nodes != nil {
		t.Errorf("empty index NodesForZoom = %v, want nil", nodes)
	}
}

func TestBuildSingleLocation(t *testing.T) {
	idx := Build([]models.Location{{ID: "X", Lat: 10, Lon: 10}}, nil, Options{})
	if idx.Empty() {
		t.Fatal("single-location index should not be empty")
	}

	nodes := idx.NodesForZoom(idx.MaxZoom())
	if len(nodes) != 1 || nodes[0].ID != "X" {
		t.Fatalf("NodesForZoom(max) = %v, want the single location", nodes)
	}
	// One node can never merge further, so the build stops immediately
	// below max zoom.
	if len(idx.AvailableZoomLevels()) == 0 {
		t.Error("expected at least one available zoom level")
	}
}

func TestNearbyLocationsMerge(t *testing.T) {
	idx := Build(testLocations(), testWeights(), Options{MaxZoom: 18})

	low := idx.NodesForZoom(idx.MinZoom())
	if len(low) != 2 {
		t.Fatalf("at min zoom got %d nodes, want 2 (AB cluster + C)", len(low))
	}

	var ab, c *Node
	for i := range low {
		switch low[i].NumLocations() {
		case 2:
			ab = &low[i]
		case 1:
			c = &low[i]
		}
	}
	if ab == nil {
		t.Fatal("no cluster containing exactly A and B at min zoom")
	}
	if c == nil || c.ID != "C" {
		t.Fatalf("expected C to remain separate, got %+v", c)
	}

	if ab.Name != "A and 1 others" {
		t.Errorf("cluster name = %q, want %q", ab.Name, "A and 1 others")
	}
	if !ab.IsCluster() {
		t.Error("AB node should report IsCluster")
	}
}

func TestMaxZoomIsSingletonPartition(t *testing.T) {
	locs := testLocations()
	idx := Build(locs, testWeights(), Options{})

	nodes := idx.NodesForZoom(idx.MaxZoom())
	if len(nodes) != len(locs) {
		t.Fatalf("at max zoom got %d nodes, want %d singletons", len(nodes), len(locs))
	}
	for _, n := range nodes {
		if n.IsCluster() {
			t.Errorf("node %s at max zoom should be a singleton", n.ID)
		}
	}
}

func TestHierarchyMonotonicity(t *testing.T) {
	locs := testLocations()
	idx := Build(locs, testWeights(), Options{})

	isAncestorOrSelf := func(ancestor, id string) bool {
		for id != "" {
			if id == ancestor {
				return true
			}
			n, ok := idx.ClusterByID(id)
			if !ok {
				return false
			}
			id = n.ParentID
		}
		return false
	}

	levels := idx.AvailableZoomLevels()
	for _, loc := range locs {
		for i := 0; i+1 < len(levels); i++ {
			lowID, ok := idx.IDForZoom(loc.ID, levels[i])
			if !ok {
				t.Fatalf("IDForZoom(%s, %d) not found", loc.ID, levels[i])
			}
			highID, _ := idx.IDForZoom(loc.ID, levels[i+1])
			if !isAncestorOrSelf(lowID, highID) {
				t.Errorf("location %s: node %s at zoom %d is not ancestor-or-self of %s at zoom %d",
					loc.ID, lowID, levels[i], highID, levels[i+1])
			}
		}
	}
}

func TestPartitionProperty(t *testing.T) {
	locs := testLocations()
	idx := Build(locs, testWeights(), Options{})

	for _, z := range idx.AvailableZoomLevels() {
		seen := make(map[string]int)
		for _, n := range idx.NodesForZoom(z) {
			expanded := idx.ExpandCluster(n.ID)
			if len(expanded) == 0 {
				t.Fatalf("zoom %d: ExpandCluster(%s) is empty", z, n.ID)
			}
			for _, loc := range expanded {
				seen[loc.ID]++
			}
		}
		if len(seen) != len(locs) {
			t.Errorf("zoom %d: partition covers %d locations, want %d", z, len(seen), len(locs))
		}
		for id, count := range seen {
			if count != 1 {
				t.Errorf("zoom %d: location %s appears %d times, want exactly once", z, id, count)
			}
		}
	}
}

func TestExpandClusterNoDuplicates(t *testing.T) {
	// A grid of co-located pairs forces multi-level merging.
	var locs []models.Location
	for i := 0; i < 8; i++ {
		locs = append(locs,
			models.Location{ID: fmt.Sprintf("p%d", 2*i), Lat: float64(i) * 0.002, Lon: 0},
			models.Location{ID: fmt.Sprintf("p%d", 2*i+1), Lat: float64(i)*0.002 + 0.0001, Lon: 0},
		)
	}
	idx := Build(locs, nil, Options{})

	root := idx.NodesForZoom(idx.MinZoom())
	total := 0
	for _, n := range root {
		expanded := idx.ExpandCluster(n.ID)
		seen := make(map[string]bool)
		for _, loc := range expanded {
			if seen[loc.ID] {
				t.Errorf("ExpandCluster(%s): duplicate location %s", n.ID, loc.ID)
			}
			seen[loc.ID] = true
		}
		total += len(expanded)
	}
	if total != len(locs) {
		t.Errorf("expanded %d locations across top-level nodes, want %d", total, len(locs))
	}
}

func TestMinZoomForLocation(t *testing.T) {
	idx := Build(testLocations(), testWeights(), Options{})

	zA, ok := idx.MinZoomForLocation("A")
	if !ok {
		t.Fatal("MinZoomForLocation(A) not found")
	}
	// Above zA the location must be independent; at zA-1 it must not be.
	if id, _ := idx.IDForZoom("A", zA); id != "A" {
		t.Errorf("at its min zoom %d, A maps to %s, want A", zA, id)
	}
	if zA > idx.MinZoom() {
		if id, _ := idx.IDForZoom("A", zA-1); id == "A" {
			t.Errorf("below its min zoom, A should be inside an ancestor, still maps to A")
		}
	}

	// C never merges, so it stays independent down to the lowest level.
	zC, _ := idx.MinZoomForLocation("C")
	if zC != idx.MinZoom() {
		t.Errorf("MinZoomForLocation(C) = %d, want min zoom %d", zC, idx.MinZoom())
	}

	if _, ok := idx.MinZoomForLocation("nope"); ok {
		t.Error("unknown location should report not found")
	}
}

func TestDeterministicRebuild(t *testing.T) {
	locs := testLocations()
	a := Build(locs, testWeights(), Options{})
	b := Build(locs, testWeights(), Options{})

	for _, z := range a.AvailableZoomLevels() {
		na, nb := a.NodesForZoom(z), b.NodesForZoom(z)
		if len(na) != len(nb) {
			t.Fatalf("zoom %d: node count differs between rebuilds: %d vs %d", z, len(na), len(nb))
		}
		for i := range na {
			if na[i].ID != nb[i].ID {
				t.Errorf("zoom %d: node %d id differs: %s vs %s", z, i, na[i].ID, nb[i].ID)
			}
		}
	}
}

func TestWeightedCentroid(t *testing.T) {
	locs := []models.Location{
		{ID: "heavy", Lat: 0, Lon: 0},
		{ID: "light", Lat: 0, Lon: 0.001},
	}
	w := func(id string) float64 {
		if id == "heavy" {
			return 3
		}
		return 1
	}
	idx := Build(locs, w, Options{})

	nodes := idx.NodesForZoom(idx.MinZoom())
	if len(nodes) != 1 {
		t.Fatalf("expected a single merged node, got %d", len(nodes))
	}
	// Weighted centroid: (3*0 + 1*0.001) / 4 = 0.00025.
	if got, want := nodes[0].Lon, 0.00025; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("centroid lon = %g, want %g", got, want)
	}
	if nodes[0].Name != "heavy and 1 others" {
		t.Errorf("name = %q, want %q", nodes[0].Name, "heavy and 1 others")
	}
}

func TestSelfLoopOnlyFlowsStillCluster(t *testing.T) {
	// Clustering is driven by proximity; weights from self-loop flows keep
	// every location at nonzero weight but must not block merging.
	idx := Build(testLocations(), func(string) float64 { return 5 }, Options{})
	if len(idx.NodesForZoom(idx.MinZoom())) != 2 {
		t.Error("proximity clustering should merge A and B regardless of flow topology")
	}
}
