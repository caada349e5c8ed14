// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

// Package ingest is the in-process ingestion boundary of the derived-data
// engine. It validates raw locations and flows into a working set, sums
// duplicate rows, and collects every data problem into a single batched
// Report instead of failing row by row. Nothing here returns an error for
// bad data: the output is always a best-effort working set.
package ingest

import (
	"hash/fnv"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/flowatlas/flowatlas/internal/geo"
	"github.com/flowatlas/flowatlas/internal/logging"
	"github.com/flowatlas/flowatlas/internal/metrics"
	"github.com/flowatlas/flowatlas/internal/models"
)

// Dataset is a validated working set ready for engine construction.
type Dataset struct {
	// ID identifies the dataset within the registry.
	ID string

	// Hash is a structural hash of the working set. Two datasets with
	// equal hashes produce identical hierarchies and indexes, so the
	// hash is the cache key for expensive builds.
	Hash uint64

	Locations []models.Location
	Flows     []models.Flow
}

// Prepare validates raw input into a Dataset plus a Report of everything
// that was excluded, merged, or suspicious. It never fails: an empty or
// fully invalid input yields an empty working set and a report, not an
// error.
func Prepare(locations []models.Location, flows []models.Flow) (*Dataset, *Report) {
	report := &Report{}

	ds := &Dataset{ID: uuid.NewString()}
	ds.Locations = prepareLocations(locations, report)

	known := make(map[string]bool, len(ds.Locations))
	for _, loc := range ds.Locations {
		known[loc.ID] = true
	}
	ds.Flows = prepareFlows(flows, known, report)

	// Nothing resolvable at all points at a wrong column mapping rather
	// than a few bad rows.
	if len(flows) > 0 && len(ds.Flows) == 0 && len(report.UnknownLocationIDs) > 0 {
		report.AllFlowsUnresolved = true
	}

	ds.Hash = ds.computeHash()

	if report.HasIssues() {
		logging.Warn().
			Str("dataset", ds.ID).
			Int("invalid_locations", len(report.InvalidLocationIDs)).
			Int("unknown_endpoints", len(report.UnknownLocationIDs)).
			Int("duplicate_flows", report.DuplicateFlowCount).
			Msg("Dataset prepared with issues")
	}

	return ds, report
}

func prepareLocations(locations []models.Location, report *Report) []models.Location {
	out := make([]models.Location, 0, len(locations))
	seen := make(map[string]bool, len(locations))

	for _, loc := range locations {
		if !geo.ValidLat(loc.Lat) || !geo.ValidLon(loc.Lon) {
			report.InvalidLocationIDs = append(report.InvalidLocationIDs, loc.ID)
			metrics.IngestExcludedRows.WithLabelValues("invalid_coordinates").Inc()
			continue
		}
		if seen[loc.ID] {
			report.DuplicateLocationIDs = append(report.DuplicateLocationIDs, loc.ID)
			continue
		}
		seen[loc.ID] = true
		out = append(out, loc)
	}
	return out
}

func prepareFlows(flows []models.Flow, known map[string]bool, report *Report) []models.Flow {
	type key struct {
		origin, dest string
		timeNano     int64
		hasTime      bool
	}

	out := make([]models.Flow, 0, len(flows))
	byKey := make(map[key]int, len(flows))
	unknownSeen := make(map[string]bool)

	for _, f := range flows {
		if !known[f.Origin] || !known[f.Dest] {
			for _, id := range []string{f.Origin, f.Dest} {
				if !known[id] && !unknownSeen[id] {
					unknownSeen[id] = true
					report.UnknownLocationIDs = append(report.UnknownLocationIDs, id)
				}
			}
			metrics.IngestExcludedRows.WithLabelValues("unknown_endpoint").Inc()
			continue
		}

		count := f.Count
		if math.IsNaN(count) || math.IsInf(count, 0) {
			count = 0
		}

		k := key{origin: f.Origin, dest: f.Dest}
		if f.Time != nil {
			k.timeNano = f.Time.UnixNano()
			k.hasTime = true
		}

		if i, dup := byKey[k]; dup {
			out[i].Count += count
			if out[i].Color == "" {
				out[i].Color = f.Color
			}
			report.DuplicateFlowCount++
			metrics.IngestDuplicateRows.Inc()
			continue
		}

		byKey[k] = len(out)
		merged := f
		merged.Count = count
		out = append(out, merged)
	}
	return out
}

// computeHash builds an FNV-1a structural hash over the working set.
func (ds *Dataset) computeHash() uint64 {
	h := fnv.New64a()
	buf := make([]byte, 0, 64)

	writeString := func(s string) {
		buf = strconv.AppendInt(buf[:0], int64(len(s)), 10)
		h.Write(buf)
		h.Write([]byte(s))
	}
	writeFloat := func(f float64) {
		buf = strconv.AppendUint(buf[:0], math.Float64bits(f), 16)
		h.Write(buf)
	}

	for _, loc := range ds.Locations {
		writeString(loc.ID)
		writeString(loc.Name)
		writeFloat(loc.Lat)
		writeFloat(loc.Lon)
	}
	for _, f := range ds.Flows {
		writeString(f.Origin)
		writeString(f.Dest)
		writeFloat(f.Count)
		writeString(f.Color)
		if f.Time != nil {
			buf = strconv.AppendInt(buf[:0], f.Time.UnixNano(), 16)
			h.Write(buf)
		}
	}
	return h.Sum64()
}

// timeFormats are the accepted timestamp layouts, most specific first.
var timeFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01",
	"200601",
	"2006",
}

// ParseTime parses a timestamp in one of the accepted formats. The second
// return value reports whether parsing succeeded; unparseable input is a
// data problem for the caller to report, not an error to propagate.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
