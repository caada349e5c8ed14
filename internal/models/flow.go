// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

// Package models defines the shared data types exchanged between the
// ingestion boundary, the derived-data engine, and the HTTP API.
package models

import "time"

// Location is a geographic point in a dataset. Identity is ID, which is
// unique within a dataset. Locations are immutable once loaded.
type Location struct {
	ID   string  `json:"id"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name,omitempty"`
}

// DisplayName returns the name to show for the location, falling back to
// the ID when no name was provided.
func (l Location) DisplayName() string {
	if l.Name != "" {
		return l.Name
	}
	return l.ID
}

// Flow is a weighted directed edge between two locations. Count may be
// negative (diff mode). Time is optional; flows without timestamps belong
// to a single implicit bucket.
type Flow struct {
	Origin string     `json:"origin"`
	Dest   string     `json:"dest"`
	Count  float64    `json:"count"`
	Time   *time.Time `json:"time,omitempty"`
	Color  string     `json:"color,omitempty"`
}

// AggregatedFlow is the result of collapsing raw flows onto the node set
// valid at a target zoom level. Origin and Dest reference either location
// IDs or cluster node IDs. Self-loops (Origin == Dest) are retained as
// "within" flows.
type AggregatedFlow struct {
	Origin string  `json:"origin"`
	Dest   string  `json:"dest"`
	Count  float64 `json:"count"`
	Color  string  `json:"color,omitempty"`
}

// LocationTotals holds the per-node flow totals used for circle sizing.
// Incoming sums counts where the node is the destination of a non-self
// flow, Outgoing where it is the origin, and Within sums self-loops.
type LocationTotals struct {
	Incoming float64 `json:"incoming"`
	Outgoing float64 `json:"outgoing"`
	Within   float64 `json:"within"`
}

// FilterMode selects which flows pass the selection filter when one or
// more locations are selected.
type FilterMode string

const (
	// FilterModeAll passes flows whose origin or destination is selected.
	FilterModeAll FilterMode = "ALL"

	// FilterModeBetween passes flows with both endpoints selected.
	FilterModeBetween FilterMode = "BETWEEN"

	// FilterModeIncoming passes flows whose destination is selected.
	FilterModeIncoming FilterMode = "INCOMING"

	// FilterModeOutgoing passes flows whose origin is selected.
	FilterModeOutgoing FilterMode = "OUTGOING"
)

// Valid reports whether the filter mode is one of the known values.
func (m FilterMode) Valid() bool {
	switch m {
	case FilterModeAll, FilterModeBetween, FilterModeIncoming, FilterModeOutgoing:
		return true
	}
	return false
}
