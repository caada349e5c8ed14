// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

package ingest

import (
	"fmt"
	"strings"
)

// maxReportedIDs caps how many IDs a warning lists before folding the
// rest into "and N others".
const maxReportedIDs = 10

// Report collects every data problem found while preparing a dataset.
// Problems are batched per kind so a million bad rows still produce a
// handful of warnings.
type Report struct {
	// InvalidLocationIDs lists locations excluded for out-of-range or
	// non-finite coordinates, in encounter order.
	InvalidLocationIDs []string `json:"invalidLocationIds,omitempty"`

	// DuplicateLocationIDs lists location IDs that appeared more than
	// once; only the first occurrence is kept.
	DuplicateLocationIDs []string `json:"duplicateLocationIds,omitempty"`

	// UnknownLocationIDs lists the distinct IDs referenced by flows but
	// absent from the location set. Each ID appears exactly once no
	// matter how many flows referenced it.
	UnknownLocationIDs []string `json:"unknownLocationIds,omitempty"`

	// DuplicateFlowCount counts raw rows merged into an existing flow
	// with the same origin, destination, and timestamp.
	DuplicateFlowCount int `json:"duplicateFlowCount,omitempty"`

	// AllFlowsUnresolved escalates the unknown-endpoint warning: not a
	// single flow resolved, which usually means a wrong column mapping
	// rather than scattered bad rows.
	AllFlowsUnresolved bool `json:"allFlowsUnresolved,omitempty"`
}

// HasIssues reports whether anything at all was excluded or merged.
func (r *Report) HasIssues() bool {
	return len(r.InvalidLocationIDs) > 0 ||
		len(r.DuplicateLocationIDs) > 0 ||
		len(r.UnknownLocationIDs) > 0 ||
		r.DuplicateFlowCount > 0
}

// Warnings renders the report as human-readable warning lines, one per
// problem kind, with ID lists capped.
func (r *Report) Warnings() []string {
	var out []string

	if len(r.InvalidLocationIDs) > 0 {
		out = append(out, fmt.Sprintf("%d locations have invalid coordinates and were excluded: %s",
			len(r.InvalidLocationIDs), capIDs(r.InvalidLocationIDs)))
	}
	if len(r.DuplicateLocationIDs) > 0 {
		out = append(out, fmt.Sprintf("%d duplicate location ids ignored: %s",
			len(r.DuplicateLocationIDs), capIDs(r.DuplicateLocationIDs)))
	}
	if len(r.UnknownLocationIDs) > 0 {
		msg := fmt.Sprintf("flows reference %d unknown locations and were excluded: %s",
			len(r.UnknownLocationIDs), capIDs(r.UnknownLocationIDs))
		if r.AllFlowsUnresolved {
			msg = "no flow could be resolved to known locations; the origin/destination columns are likely mapped incorrectly. " + msg
		}
		out = append(out, msg)
	}
	if r.DuplicateFlowCount > 0 {
		out = append(out, fmt.Sprintf("%d duplicate flow rows were summed into existing flows", r.DuplicateFlowCount))
	}
	return out
}

// capIDs formats an ID list as "a, b, c and N others".
func capIDs(ids []string) string {
	if len(ids) <= maxReportedIDs {
		return strings.Join(ids, ", ")
	}
	return fmt.Sprintf("%s and %d others",
		strings.Join(ids[:maxReportedIDs], ", "), len(ids)-maxReportedIDs)
}
